package monitor

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// Ticker emits an event every period.
type Ticker struct {
	name   string
	period time.Duration
	clock  clock.WithTicker
}

// NewTicker returns a fixed-period monitor. A nil clock uses the real one.
func NewTicker(name string, period time.Duration, clk clock.WithTicker) *Ticker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Ticker{name: name, period: period, clock: clk}
}

// Name implements Monitor.
func (t *Ticker) Name() string { return t.name }

// Run implements Monitor.
func (t *Ticker) Run(ctx context.Context, emit EmitFunc) error {
	tk := t.clock.NewTicker(t.period)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C():
			emit(Event{Source: t.name, Kind: KindEvent})
		}
	}
}
