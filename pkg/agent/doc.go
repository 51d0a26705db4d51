// Package agent wires monitors, scan lanes, the state store and the IPC
// channel into the long-running node agent.
//
// # Flow
//
// Monitors publish re-check signals onto one event channel. The router
// turns container events into a debounced containers rescan, file events
// into a debounced files rescan, sampler ticks into a gated resources
// sample and heartbeat ticks into HEARTBEAT envelopes. Every rescan fetches
// outside the state lock and then reconciles through state.Store, so only
// changed domains are published, one SYNC_PARTIAL envelope per domain.
//
// Commands read from the parent are dispatched on the calling goroutine.
// Only exec, read_file and write_file block it, each bounded by the
// executor timeout.
//
// # Lifecycle
//
//	a := agent.New(ex, os.Stdout, agent.WithConfigDir(dir))
//	err := a.Run(ctx, os.Stdin)
//
// Run performs a forced full refresh, sends the initialSyncComplete marker
// and serves commands until input ends, a shutdown command arrives or ctx
// is canceled.
package agent
