package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/NVIDIA/cns-node-agent/pkg/collector"
	"github.com/NVIDIA/cns-node-agent/pkg/executor/executortest"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/ipc"
	"github.com/NVIDIA/cns-node-agent/pkg/monitor"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

var epoch = time.UnixMilli(1700000000000)

// stub is a collector returning a settable value.
type stub struct {
	mu    sync.Mutex
	v     any
	err   error
	calls int
	dirs  []string

	// entered and release hold the next Collect until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (s *stub) Collect(context.Context) (any, error) {
	s.mu.Lock()
	s.calls++
	entered, release := s.entered, s.release
	s.entered, s.release = nil, nil
	s.mu.Unlock()

	if release != nil {
		close(entered)
		<-release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v, s.err
}

// hold makes the next Collect block. It returns a channel closed once that
// Collect is running and a channel to close to let it finish.
func (s *stub) hold() (entered <-chan struct{}, release chan<- struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entered = make(chan struct{})
	s.release = make(chan struct{})
	return s.entered, s.release
}

func (s *stub) SetExtraDirs(dirs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs = dirs
}

func (s *stub) set(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
}

func (s *stub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stub) extraDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (l *lockedBuffer) frames(t *testing.T) []frame {
	t.Helper()
	l.mu.Lock()
	raw := slices.Clone(l.buf.Bytes())
	l.mu.Unlock()

	var out []frame
	for _, b := range ipc.Split(raw) {
		var f frame
		require.NoError(t, json.Unmarshal(b, &f))
		out = append(out, f)
	}
	return out
}

// synced returns the keys of every SYNC_PARTIAL payload in order.
func (l *lockedBuffer) synced(t *testing.T) []string {
	t.Helper()
	var keys []string
	for _, f := range l.frames(t) {
		if f.Type != ipc.TypeSyncPartial {
			continue
		}
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(f.Payload, &m))
		for k := range m {
			keys = append(keys, k)
		}
	}
	return keys
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

func (l *lockedBuffer) responses(t *testing.T) []response {
	t.Helper()
	var out []response
	for _, f := range l.frames(t) {
		if f.Type != ipc.TypeResponse {
			continue
		}
		var r response
		require.NoError(t, json.Unmarshal(f.Payload, &r))
		out = append(out, r)
	}
	return out
}

// chanMonitor emits whatever is sent on ch.
type chanMonitor struct {
	ch chan monitor.Event
}

func (m *chanMonitor) Name() string { return "test" }

func (m *chanMonitor) Run(ctx context.Context, emit monitor.EmitFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.ch:
			emit(ev)
		}
	}
}

type fakeWatcher struct {
	mu   sync.Mutex
	dirs []string
}

func (w *fakeWatcher) SetDirs(dirs []string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirs = dirs
	return true
}

type harness struct {
	agent *Agent
	out   *lockedBuffer
	clock *testingclock.FakeClock
	exec  *executortest.Fake
	stubs map[snapshot.Domain]*stub
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		out:   &lockedBuffer{},
		clock: testingclock.NewFakeClock(epoch),
		exec:  executortest.New(),
		stubs: map[snapshot.Domain]*stub{
			snapshot.Containers: {v: []snapshot.Container{{ID: "a1", Names: []string{"web"}, State: "running"}}},
			snapshot.Services:   {v: []snapshot.Service{{Name: "web", ActiveState: "active", Active: true}}},
			snapshot.Volumes:    {v: []snapshot.Volume{}},
			snapshot.Files:      {v: snapshot.FileSet{}},
			snapshot.Resources:  {v: &snapshot.HostResources{CPUUsage: 10, OS: &snapshot.OSInfo{Uptime: 1}}},
			snapshot.Proxy:      {v: []snapshot.ProxyRoute{}},
		},
	}
	set := collector.Set{}
	for d, s := range h.stubs {
		set[d] = s
	}
	base := []Option{
		WithCollectors(set),
		WithFS(hostfs.NewLocal()),
		WithClock(h.clock),
		WithMonitors(),
		WithConfigDir(t.TempDir()),
	}
	h.agent = New(h.exec, h.out, append(base, opts...)...)
	return h
}

func command(t *testing.T, id int, action string, payload any) *ipc.Command {
	t.Helper()
	cmd := &ipc.Command{ID: json.RawMessage(strconv.Itoa(id)), Action: action}
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		cmd.Payload = b
	}
	return cmd
}
