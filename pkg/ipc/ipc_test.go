package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
)

func fixedClock() *testingclock.FakeClock {
	return testingclock.NewFakeClock(time.UnixMilli(1700000000000))
}

func TestRespondPong(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedClock())
	require.NoError(t, w.Respond(json.RawMessage(`"1"`), "pong", ""))

	want := `{"type":"response","payload":{"id":"1","result":"pong","error":null},"timestamp":1700000000000}` + "\x00"
	assert.Equal(t, want, buf.String())
}

func TestRespondError(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedClock())
	require.NoError(t, w.Respond(json.RawMessage(`"7"`), nil, "Unknown command: bogus"))

	frames := Split(buf.Bytes())
	require.Len(t, frames, 1)
	var env struct {
		Type    string `json:"type"`
		Payload struct {
			ID     string  `json:"id"`
			Result any     `json:"result"`
			Error  *string `json:"error"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &env))
	assert.Equal(t, TypeResponse, env.Type)
	assert.Equal(t, "7", env.Payload.ID)
	assert.Nil(t, env.Payload.Result)
	require.NotNil(t, env.Payload.Error)
	assert.Equal(t, "Unknown command: bogus", *env.Payload.Error)
}

func TestSyncPartialKeepsNewlines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, fixedClock())
	require.NoError(t, w.SyncPartial(map[string]any{"files": map[string]string{"/a": "line1\nline2"}}))
	require.NoError(t, w.Heartbeat())

	frames := Split(buf.Bytes())
	require.Len(t, frames, 2)
	assert.Contains(t, string(frames[0]), `"type":"SYNC_PARTIAL"`)
	assert.Contains(t, string(frames[0]), `line1\nline2`)
	assert.Equal(t, `{"type":"HEARTBEAT","payload":{},"timestamp":1700000000000}`, string(frames[1]))
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write([]byte) (int, error) {
	f.calls++
	return 0, errors.New("broken pipe")
}

func TestWriteErrorsSwallowed(t *testing.T) {
	fw := &failingWriter{}
	w := NewWriter(fw, nil)
	assert.NoError(t, w.Heartbeat())
	assert.NoError(t, w.Heartbeat())
	assert.Equal(t, 2, fw.calls)
}

func TestMarshalError(t *testing.T) {
	w := NewWriter(io.Discard, nil)
	assert.Error(t, w.Send(TypeSyncPartial, map[string]any{"bad": make(chan int)}))
}

// lockedBuffer checks frames from concurrent writers stay whole.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// split the write to widen any interleaving window
	half := len(p) / 2
	l.buf.Write(p[:half])
	l.buf.Write(p[half:])
	return len(p), nil
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	lb := &lockedBuffer{}
	w := NewWriter(lb, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := map[string]any{"files": strings.Repeat("x", 1000+i)}
			_ = w.SyncPartial(payload)
		}(i)
	}
	wg.Wait()

	frames := Split(lb.buf.Bytes())
	require.Len(t, frames, 20)
	for _, f := range frames {
		var env Envelope
		assert.NoError(t, json.Unmarshal(f, &env))
	}
}

func TestReaderSkipsMalformed(t *testing.T) {
	in := strings.Join([]string{
		`{"id":"1","action":"ping"}`,
		``,
		`not json`,
		`   `,
		`{"id":"2","action":"read_file","payload":{"path":"~/x"}}`,
		`{"id":3,"action":"refresh"}`,
	}, "\n")
	r := NewReader(strings.NewReader(in))

	c, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ping", c.Action)
	assert.Equal(t, "1", c.IDString())

	c, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "read_file", c.Action)
	var p struct {
		Path string `json:"path"`
	}
	require.NoError(t, c.Decode(&p))
	assert.Equal(t, "~/x", p.Path)

	c, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "3", c.IDString())
	assert.NoError(t, c.Decode(&p), "missing payload is not an error")

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderDropsOversizedLine(t *testing.T) {
	big := `{"id":1,"action":"write_file","payload":{"path":"~/x","content":"` +
		strings.Repeat("x", defaults.MaxIPCLineSize) + `"}}`
	r := NewReader(strings.NewReader(big + "\n" + `{"id":2,"action":"ping"}` + "\n"))

	c, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ping", c.Action)
	assert.Equal(t, "2", c.IDString())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderLineLimit(t *testing.T) {
	in := strings.Join([]string{
		`{"id":1,"action":"ping"}`,
		`{"id":2,"action":"exec","payload":{"command":"uptime"}}`,
		`{"id":3}` + "\r",
		`{"id":4,"action":"listServices","payload":{}}`,
	}, "\n")
	r := NewReader(strings.NewReader(in))
	r.max = len(`{"id":1,"action":"ping"}`)

	c, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", c.IDString())

	c, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "3", c.IDString(), "CRLF does not count toward the limit")

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF, "oversized final line without newline is dropped")
}

func TestCommandDecodeInvalid(t *testing.T) {
	c := &Command{Action: "exec", Payload: json.RawMessage(`{"command":5}`)}
	var p struct {
		Command string `json:"command"`
	}
	assert.Error(t, c.Decode(&p))
}

func TestSplit(t *testing.T) {
	assert.Empty(t, Split(nil))
	frames := Split([]byte("a\x00b\x00partial"))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, frames)
}
