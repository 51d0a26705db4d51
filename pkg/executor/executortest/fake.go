// Package executortest provides a scriptable Executor for tests.
package executortest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
)

// Response is a canned outcome for one command line.
type Response struct {
	Result *executor.Result
	Err    error
}

// Call records one Execute invocation.
type Call struct {
	Argv  []string
	Stdin string
}

// Fake is an in-memory Executor. Commands are matched by their argv joined
// with single spaces; unmatched commands fall through to Handler, and then
// to a not-found result.
type Fake struct {
	Handler func(argv []string, stdin string) (*executor.Result, error)

	mu        sync.Mutex
	responses map[string]Response
	streams   map[string]*io.PipeReader
	calls     []Call
	target    config.Target
}

// New returns an empty local fake.
func New() *Fake {
	return &Fake{
		responses: make(map[string]Response),
		streams:   make(map[string]*io.PipeReader),
		target:    config.TargetLocal,
	}
}

// SetTarget changes the reported target.
func (f *Fake) SetTarget(t config.Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = t
}

// On registers stdout for a successful command.
func (f *Fake) On(cmdline, stdout string) *Fake {
	return f.OnResult(cmdline, &executor.Result{Stdout: stdout})
}

// OnResult registers a full result for a command.
func (f *Fake) OnResult(cmdline string, res *executor.Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = Response{Result: res}
	return f
}

// OnError registers an error for a command.
func (f *Fake) OnError(cmdline string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = Response{Err: err}
	return f
}

// OnStream registers a streaming command and returns the writer that feeds it.
// Closing the writer ends the stream.
func (f *Fake) OnStream(cmdline string) *io.PipeWriter {
	pr, pw := io.Pipe()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[cmdline] = pr
	return pw
}

// Calls returns the recorded Execute calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times cmdline was executed.
func (f *Fake) CallCount(cmdline string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Join(c.Argv, " ") == cmdline {
			n++
		}
	}
	return n
}

// Execute implements executor.Executor.
func (f *Fake) Execute(ctx context.Context, argv []string, opts ...executor.Option) (*executor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stdin := stdinOf(opts)
	key := strings.Join(argv, " ")

	f.mu.Lock()
	f.calls = append(f.calls, Call{Argv: append([]string(nil), argv...), Stdin: stdin})
	resp, ok := f.responses[key]
	handler := f.Handler
	f.mu.Unlock()

	if ok {
		if resp.Err != nil {
			return nil, resp.Err
		}
		r := *resp.Result
		return &r, nil
	}
	if handler != nil {
		return handler(argv, stdin)
	}
	return &executor.Result{ExitCode: executor.ExitNotFound, NotFound: true, Stderr: argv[0] + ": not found"}, nil
}

// Stream implements executor.Executor.
func (f *Fake) Stream(ctx context.Context, argv []string) (*executor.Stream, error) {
	key := strings.Join(argv, " ")
	f.mu.Lock()
	pr, ok := f.streams[key]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "no stream registered for "+key)
	}
	return executor.NewStream(ctx, pr, nil, func() { _ = pr.Close() }), nil
}

// Target implements executor.Executor.
func (f *Fake) Target() config.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

// Close implements executor.Executor.
func (f *Fake) Close() error { return nil }

// stdinOf extracts the stdin option.
func stdinOf(opts []executor.Option) string {
	return executor.StdinOf(opts...)
}
