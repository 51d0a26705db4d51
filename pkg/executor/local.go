package executor

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	cnserrors "github.com/NVIDIA/cns-node-agent/pkg/errors"
)

// waitDelay bounds how long Wait blocks on pipes held by orphaned children
// after the process is killed.
const waitDelay = 2 * time.Second

// Local runs commands as child processes of the agent.
type Local struct {
	timeout time.Duration
}

// NewLocal returns a local executor with the given default timeout.
func NewLocal(timeout time.Duration) *Local {
	return &Local{timeout: timeout}
}

// Target implements Executor.
func (l *Local) Target() config.Target { return config.TargetLocal }

// Close implements Executor.
func (l *Local) Close() error { return nil }

// Execute implements Executor.
func (l *Local) Execute(ctx context.Context, argv []string, opts ...Option) (*Result, error) {
	if err := checkArgv(argv); err != nil {
		return nil, err
	}
	o := buildOptions(l.timeout, opts)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if o.stdin != nil {
		cmd.Stdin = strings.NewReader(*o.stdin)
	}

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, contextError(ctx, argv, o.timeout)
	}

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	case isNotFound(err):
		slog.Debug("command not found", "command", argv[0])
		res.ExitCode = ExitNotFound
		res.NotFound = true
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
		return res, nil
	default:
		return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeInternal, "failed to run command", err,
			map[string]any{"command": strings.Join(argv, " ")})
	}
}

// Stream implements Executor.
func (l *Local) Stream(ctx context.Context, argv []string) (*Stream, error) {
	if err := checkArgv(argv); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(sctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to open stdout pipe", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if isNotFound(err) {
			return nil, cnserrors.WrapWithContext(cnserrors.ErrCodeNotFound, "command not found", err,
				map[string]any{"command": argv[0]})
		}
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to start command", err)
	}

	wait := func() error {
		defer cancel()
		return cmd.Wait()
	}
	// closing the pipe unblocks the reader even when a grandchild holds it open
	stop := func() {
		cancel()
		_ = stdout.Close()
	}
	return NewStream(sctx, stdout, wait, stop), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
