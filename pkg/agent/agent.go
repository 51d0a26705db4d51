// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/cns-node-agent/pkg/collector"
	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/ipc"
	"github.com/NVIDIA/cns-node-agent/pkg/monitor"
	"github.com/NVIDIA/cns-node-agent/pkg/scheduler"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
	"github.com/NVIDIA/cns-node-agent/pkg/state"
)

// Clock is the time source for debouncers, tickers and envelopes.
type Clock interface {
	clock.WithTicker
	AfterFunc(d time.Duration, f func()) clock.Timer
}

// dirWatcher is a monitor whose watched directories follow the proxy mounts.
type dirWatcher interface {
	SetDirs(dirs []string) bool
}

// Option configures an Agent.
type Option func(*Agent)

// WithCollectors replaces the collectors built from the executor.
func WithCollectors(set collector.Set) Option {
	return func(a *Agent) {
		a.collectors = set
	}
}

// WithFS overrides the filesystem used for file commands and watching.
func WithFS(fs hostfs.FS) Option {
	return func(a *Agent) {
		a.fs = fs
	}
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(a *Agent) {
		a.clock = c
	}
}

// WithConfigDir sets the quadlet directory.
func WithConfigDir(dir string) Option {
	return func(a *Agent) {
		a.configDir = dir
	}
}

// WithMonitors replaces the default monitors. Passing none disables them.
func WithMonitors(m ...monitor.Monitor) Option {
	return func(a *Agent) {
		a.monitors = m
		if a.monitors == nil {
			a.monitors = []monitor.Monitor{}
		}
	}
}

// WithDebounce sets the quiet period of the rescan lanes.
func WithDebounce(d time.Duration) Option {
	return func(a *Agent) {
		a.debounce = d
	}
}

// WithVersion sets the version reported in logs.
func WithVersion(v string) Option {
	return func(a *Agent) {
		a.version = v
	}
}

// Agent is the node agent. Create with New and start with Run.
type Agent struct {
	id        string
	version   string
	exec      executor.Executor
	fs        hostfs.FS
	configDir string
	clock     Clock
	debounce  time.Duration

	collectors collector.Set
	store      *state.Store
	out        *ipc.Writer
	handlers   map[string]handler
	resources  *resourceGate

	monitors []monitor.Monitor
	watcher  dirWatcher
	events   chan monitor.Event
	group    errgroup.Group

	containerScan *scheduler.Debouncer
	fileScan      *scheduler.Debouncer

	// scanMu serializes rescans and refreshes. Lanes share domains, so a
	// scan must not reconcile a value older than one already published.
	scanMu sync.Mutex

	dirsMu    sync.Mutex
	baseDirs  []string
	proxyDirs []string

	synced atomic.Bool
}

// New returns an agent running commands through ex and writing envelopes
// to out.
func New(ex executor.Executor, out io.Writer, opts ...Option) *Agent {
	a := &Agent{
		id:        uuid.New().String(),
		version:   "dev",
		exec:      ex,
		configDir: config.DefaultConfigDir,
		clock:     clock.RealClock{},
		debounce:  defaults.ScanDebounce,
		resources: &resourceGate{},
		events:    make(chan monitor.Event, 64),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fs == nil {
		a.fs = hostfs.New(ex)
	}
	if a.collectors == nil {
		a.collectors = collector.NewSet(collector.NewDefaultFactory(ex,
			collector.WithFS(a.fs),
			collector.WithConfigDir(a.configDir)))
	}
	a.store = state.New(a.clock)
	a.out = ipc.NewWriter(out, a.clock)
	a.handlers = a.commandHandlers()
	return a
}

// ID returns the agent instance id.
func (a *Agent) ID() string { return a.id }

// Ready reports whether the initial sync has been sent.
func (a *Agent) Ready() bool { return a.synced.Load() }

// State returns the current snapshot of every domain.
func (a *Agent) State() snapshot.State { return a.store.Snapshot() }

// Run starts the monitors, performs the initial sync and serves commands
// from in until it ends, a shutdown command arrives or ctx is canceled.
func (a *Agent) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("agent starting",
		slog.String("id", a.id),
		slog.String("version", a.version),
		slog.String("target", string(a.exec.Target())),
		slog.Int("collectors", len(a.collectors)))

	a.dirsMu.Lock()
	a.baseDirs = []string{a.fs.ExpandHome(ctx, a.configDir)}
	a.dirsMu.Unlock()

	if a.monitors == nil {
		a.monitors = a.defaultMonitors()
	}
	for _, m := range a.monitors {
		if w, ok := m.(dirWatcher); ok {
			a.watcher = w
		}
	}

	a.containerScan = scheduler.NewDebouncer(containerLane.name,
		func() { a.rescan(ctx, containerLane) },
		scheduler.WithDelay(a.debounce), scheduler.WithClock(a.clock))
	a.fileScan = scheduler.NewDebouncer(fileLane.name,
		func() { a.rescan(ctx, fileLane) },
		scheduler.WithDelay(a.debounce), scheduler.WithClock(a.clock))

	emit := a.emitter(ctx)
	for _, m := range a.monitors {
		a.group.Go(func() error {
			slog.Debug("monitor started", slog.String("monitor", m.Name()))
			if err := m.Run(ctx, emit); err != nil && ctx.Err() == nil {
				slog.Warn("monitor stopped", slog.String("monitor", m.Name()), slog.String("error", err.Error()))
			}
			return nil
		})
	}
	a.group.Go(func() error {
		a.route(ctx)
		return nil
	})

	a.refresh(ctx, true)
	if err := a.out.SyncPartial(map[string]any{ipc.InitialSyncComplete: true}); err != nil {
		slog.Error("failed to send initial sync marker", slog.String("error", err.Error()))
	}
	a.synced.Store(true)
	slog.Info("initial sync complete", slog.Int64("timestamp", a.store.Timestamp()))

	err := a.serve(ctx, ipc.NewReader(in))
	a.stop(cancel)
	return err
}

func (a *Agent) defaultMonitors() []monitor.Monitor {
	a.dirsMu.Lock()
	dirs := slices.Clone(a.baseDirs)
	a.dirsMu.Unlock()

	return []monitor.Monitor{
		monitor.NewEventStream(a.exec),
		monitor.NewFileWatcher(a.fs, dirs, monitor.WithPolling(a.exec.Target() == config.TargetRemote)),
		monitor.NewTicker(monitor.SourceResources, defaults.ResourceTickInterval, a.clock),
		monitor.NewTicker(monitor.SourceHeartbeat, defaults.HeartbeatInterval, a.clock),
	}
}

func (a *Agent) emitter(ctx context.Context) monitor.EmitFunc {
	return func(ev monitor.Event) {
		select {
		case a.events <- ev:
		case <-ctx.Done():
		}
	}
}

// route turns monitor events into scans, samples and heartbeats.
func (a *Agent) route(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			eventsTotal.WithLabelValues(ev.Source).Inc()
			switch ev.Source {
			case monitor.SourceContainers:
				a.containerScan.Trigger()
			case monitor.SourceFiles:
				a.fileScan.Trigger()
			case monitor.SourceResources:
				a.sampleAsync(ctx, false)
			case monitor.SourceHeartbeat:
				if err := a.out.Heartbeat(); err != nil {
					slog.Debug("failed to send heartbeat", slog.String("error", err.Error()))
				}
			default:
				slog.Debug("ignoring event", slog.String("source", ev.Source))
			}
		}
	}
}

// stop cancels the monitors and waits for them up to the shutdown timeout.
func (a *Agent) stop(cancel context.CancelFunc) {
	slog.Info("agent stopping", slog.String("id", a.id))
	cancel()
	a.containerScan.Stop()
	a.fileScan.Stop()

	done := make(chan struct{})
	go func() {
		_ = a.group.Wait()
		close(done)
	}()

	t := a.clock.NewTimer(defaults.ShutdownTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C():
		slog.Warn("timed out waiting for monitors to exit", slog.Duration("timeout", defaults.ShutdownTimeout))
	}
}

// publish sends one changed domain. Called with the store lock held.
func (a *Agent) publish(d snapshot.Domain, v any) {
	publishesTotal.WithLabelValues(string(d)).Inc()
	if err := a.out.SyncPartial(map[string]any{string(d): v}); err != nil {
		slog.Error("failed to publish domain", slog.String("domain", string(d)), slog.String("error", err.Error()))
	}
}
