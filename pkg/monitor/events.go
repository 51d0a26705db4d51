package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
)

// noisyActions are frequent events that never change observable state,
// mostly healthcheck execs.
var noisyActions = map[string]bool{
	"exec_create": true,
	"exec_start":  true,
	"exec_die":    true,
	"bind_mount":  true,
	"cleanup":     true,
}

var podmanEventsCmd = []string{"podman", "events", "--format", "json"}

type podmanEvent struct {
	Type   string `json:"Type"`
	Action string `json:"Action"`
	Status string `json:"Status"`
	Name   string `json:"Name"`
}

// EventStream follows the container runtime event stream.
type EventStream struct {
	ex        executor.Executor
	malformed rate.Sometimes
}

// NewEventStream returns a monitor running podman events on ex.
func NewEventStream(ex executor.Executor) *EventStream {
	return &EventStream{
		ex:        ex,
		malformed: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// Name implements Monitor.
func (m *EventStream) Name() string { return SourceContainers }

// Run implements Monitor.
func (m *EventStream) Run(ctx context.Context, emit EmitFunc) error {
	s, err := m.ex.Stream(ctx, podmanEventsCmd)
	if err != nil {
		slog.Error("container event stream failed to start", "error", err)
		return err
	}
	defer s.Close()

	// state may predate the stream
	emit(Event{Source: SourceContainers, Kind: KindInit})

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-s.Lines():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("container event stream ended, not restarting", "error", s.Err())
				return errors.Wrap(errors.ErrCodeUnavailable, "container event stream ended", s.Err())
			}
			if m.relevant(line) {
				emit(Event{Source: SourceContainers, Kind: KindEvent})
			}
		}
	}
}

func (m *EventStream) relevant(line string) bool {
	if line == "" {
		return false
	}
	var ev podmanEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		m.malformed.Do(func() {
			slog.Debug("skipping malformed event line", "error", err)
		})
		return false
	}
	act := ev.Action
	if act == "" {
		act = ev.Status
	}
	if noisyActions[act] {
		return false
	}
	slog.Debug("container event", "action", act, "type", ev.Type, "name", ev.Name)
	return true
}
