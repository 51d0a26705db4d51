package agent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
	"github.com/NVIDIA/cns-node-agent/pkg/state"
)

// resourceGate throttles resource publishes. A sample is published when
// monitoring is enabled, it differs from the stored one and the minimum
// interval for the current mode has passed. Forced samples skip all three.
type resourceGate struct {
	mu            sync.Mutex
	enabled       bool
	highFrequency bool
	lastPublish   time.Time

	sampling atomic.Bool
}

func (g *resourceGate) setEnabled(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = v
}

func (g *resourceGate) isEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// setHighFrequency switches the publish interval. Entering high frequency
// clears the last publish time.
func (g *resourceGate) setHighFrequency(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.highFrequency = v
	if v {
		g.lastPublish = time.Time{}
	}
}

func (g *resourceGate) markPublished(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastPublish = now
}

func (g *resourceGate) interval() time.Duration {
	if g.highFrequency {
		return defaults.ResourcePublishHighFrequency
	}
	return defaults.ResourcePublishLowFrequency
}

// tickJitter is how early a tick may land and still count as a full
// interval. Ticks come at a fixed rate equal to the high frequency interval.
const tickJitter = defaults.ResourceTickInterval / 2

// decide runs under the store lock and must not call back into the store.
// now is the time the sample was started.
func (g *resourceGate) decide(now time.Time, force bool) state.DecideFunc {
	return func(changed bool) bool {
		if force {
			return true
		}
		if !changed {
			return false
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		return now.Sub(g.lastPublish) >= g.interval()-tickJitter
	}
}

// sampleResources collects host resources and publishes them through the
// gate. Returns whether a publish happened.
func (a *Agent) sampleResources(ctx context.Context, force bool) bool {
	if !force && !a.resources.isEnabled() {
		return false
	}
	c, ok := a.collectors[snapshot.Resources]
	if !ok {
		return false
	}

	now := a.clock.Now()
	v, err := c.Collect(ctx)
	if err != nil {
		slog.Warn("resource sample failed", slog.String("error", err.Error()))
		return false
	}

	if !a.store.Apply(snapshot.Resources, v, a.resources.decide(now, force), a.publish) {
		return false
	}
	a.resources.markPublished(now)
	return true
}

// sampleAsync samples off the calling goroutine. Ticks are dropped while a
// previous tick sample is still running; forced samples always run.
func (a *Agent) sampleAsync(ctx context.Context, force bool) {
	if !force && !a.resources.sampling.CompareAndSwap(false, true) {
		return
	}
	a.group.Go(func() error {
		if !force {
			defer a.resources.sampling.Store(false)
		}
		a.sampleResources(ctx, force)
		return nil
	})
}
