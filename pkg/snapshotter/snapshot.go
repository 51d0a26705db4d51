// Package snapshotter runs domain collectors in parallel.
//
// Collect is the single fan-out used by the agent for rescans and by the
// snapshot command. A collector that fails leaves its domain out of the
// result and marks it stale; the other domains are unaffected.
package snapshotter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/cns-node-agent/pkg/collector"
	"github.com/NVIDIA/cns-node-agent/pkg/serializer"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
	"github.com/NVIDIA/cns-node-agent/pkg/state"
)

// Result holds the fresh values of one collection batch.
type Result struct {
	Values map[snapshot.Domain]any
	Stale  []snapshot.Domain
}

// Collect runs the collectors of the requested domains concurrently. With no
// domains every collector in set runs. Domains absent from set are ignored.
func Collect(ctx context.Context, set collector.Set, domains ...snapshot.Domain) Result {
	if len(domains) == 0 {
		domains = set.Domains()
	}

	start := time.Now()
	defer func() {
		collectionDuration.Observe(time.Since(start).Seconds())
	}()

	var mu sync.Mutex
	res := Result{Values: make(map[snapshot.Domain]any, len(domains))}

	// Collector errors are recorded rather than returned so one failing
	// domain does not cancel the rest of the batch.
	var g errgroup.Group
	for _, d := range domains {
		c, ok := set[d]
		if !ok {
			continue
		}
		g.Go(func() error {
			collectorStart := time.Now()
			defer func() {
				collectorDuration.WithLabelValues(string(d)).Observe(time.Since(collectorStart).Seconds())
			}()

			v, err := c.Collect(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("collector failed, keeping last known state",
					slog.String("domain", string(d)),
					slog.String("error", err.Error()))
				collectorTotal.WithLabelValues(string(d), "stale").Inc()
				res.Stale = append(res.Stale, d)
				return nil
			}
			collectorTotal.WithLabelValues(string(d), "ok").Inc()
			res.Values[d] = v
			return nil
		})
	}
	_ = g.Wait()

	slog.Debug("collection complete",
		slog.Int("domains", len(res.Values)),
		slog.Int("stale", len(res.Stale)),
		slog.Duration("duration", time.Since(start)))
	return res
}

// NodeSnapshotter collects every domain once and serializes the result.
type NodeSnapshotter struct {
	// Collectors to run. Required.
	Collectors collector.Set

	// Serializer is the output. If nil, JSON on stdout is used.
	Serializer serializer.Serializer

	// Clock stamps the snapshot. If nil, the real clock is used.
	Clock clock.PassiveClock
}

// Measure collects all domains and serializes a snapshot.State. It fails
// only when no domain could be collected or serialization fails.
func (n *NodeSnapshotter) Measure(ctx context.Context) error {
	if len(n.Collectors) == 0 {
		return fmt.Errorf("no collectors configured")
	}

	res := Collect(ctx, n.Collectors)
	if len(res.Values) == 0 {
		return fmt.Errorf("all %d collectors failed", len(res.Stale))
	}

	store := state.New(n.Clock)
	store.Reconcile(res.Values, true, nil)

	if n.Serializer == nil {
		n.Serializer = serializer.NewWriter(serializer.FormatJSON, nil)
	}
	if err := n.Serializer.Serialize(ctx, store.Snapshot()); err != nil {
		slog.Error("failed to serialize", slog.String("error", err.Error()))
		return fmt.Errorf("failed to serialize: %w", err)
	}
	return nil
}
