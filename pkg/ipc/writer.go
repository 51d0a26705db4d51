package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"k8s.io/utils/clock"
)

const terminator = 0

// Writer sends NUL-terminated envelopes.
type Writer struct {
	clock clock.PassiveClock

	mu     sync.Mutex
	w      io.Writer
	failed bool
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer, clk clock.PassiveClock) *Writer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Writer{w: w, clock: clk}
}

// Send marshals and writes one envelope. Only marshal failures are
// returned; transport errors are logged once and dropped.
func (w *Writer) Send(typ string, payload any) error {
	env := Envelope{Type: typ, Payload: payload, Timestamp: w.clock.Now().UnixMilli()}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", typ, err)
	}
	b = append(b, terminator)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(b); err != nil && !w.failed {
		w.failed = true
		slog.Debug("output write failed, dropping envelopes", "type", typ, "error", err)
	}
	return nil
}

// SyncPartial sends the changed domains.
func (w *Writer) SyncPartial(payload map[string]any) error {
	return w.Send(TypeSyncPartial, payload)
}

// Heartbeat sends an empty heartbeat.
func (w *Writer) Heartbeat() error {
	return w.Send(TypeHeartbeat, struct{}{})
}

// Respond sends the response for id. An empty errMsg means success.
func (w *Writer) Respond(id json.RawMessage, result any, errMsg string) error {
	resp := Response{ID: id, Result: result}
	if errMsg != "" {
		resp.Error = &errMsg
	}
	return w.Send(TypeResponse, resp)
}

// Split returns the complete NUL-terminated frames in b. A trailing
// unterminated fragment is dropped.
func Split(b []byte) [][]byte {
	var frames [][]byte
	for {
		i := bytes.IndexByte(b, terminator)
		if i < 0 {
			return frames
		}
		frames = append(frames, b[:i])
		b = b[i+1:]
	}
}
