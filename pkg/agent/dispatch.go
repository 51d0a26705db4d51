package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/ipc"
)

// Command actions.
const (
	ActionPing            = "ping"
	ActionListServices    = "listServices"
	ActionListContainers  = "listContainers"
	ActionRefresh         = "refresh"
	ActionSetResourceMode = "setResourceMode"
	ActionExec            = "exec"
	ActionReadFile        = "read_file"
	ActionWriteFile       = "write_file"
	ActionStartMonitoring = "startMonitoring"
	ActionStopMonitoring  = "stopMonitoring"
	ActionShutdown        = "shutdown"
)

const resultOK = "ok"

// handler serves one action. The returned error becomes the response error.
type handler func(ctx context.Context, cmd *ipc.Command) (any, error)

type execPayload struct {
	Command string `json:"command"`
}

// ExecResult is the result of the exec action.
type ExecResult struct {
	Code   int    `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

type filePayload struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
}

type resourceModePayload struct {
	Active bool `json:"active"`
}

func (a *Agent) commandHandlers() map[string]handler {
	return map[string]handler{
		ActionPing:            a.handlePing,
		ActionListServices:    a.handleListServices,
		ActionListContainers:  a.handleListContainers,
		ActionSetResourceMode: a.handleSetResourceMode,
		ActionExec:            a.handleExec,
		ActionReadFile:        a.handleReadFile,
		ActionWriteFile:       a.handleWriteFile,
		ActionStartMonitoring: a.handleStartMonitoring,
		ActionStopMonitoring:  a.handleStopMonitoring,
	}
}

// serve dispatches commands until input ends, shutdown arrives or ctx is
// done. End of input is a clean exit.
func (a *Agent) serve(ctx context.Context, r *ipc.Reader) error {
	cmds := make(chan *ipc.Command)
	errc := make(chan error, 1)
	go func() {
		for {
			cmd, err := r.Next()
			if err != nil {
				errc <- err
				return
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if stderrors.Is(err, io.EOF) {
				slog.Info("command input closed")
				return nil
			}
			return fmt.Errorf("failed to read commands: %w", err)
		case cmd := <-cmds:
			if cmd.Action == ActionShutdown {
				slog.Info("shutdown requested", slog.String("id", cmd.IDString()))
				commandsTotal.WithLabelValues(cmd.Action, "ok").Inc()
				return nil
			}
			a.handle(ctx, cmd)
		}
	}
}

// handle runs one command and writes its response.
func (a *Agent) handle(ctx context.Context, cmd *ipc.Command) {
	start := time.Now()
	defer func() {
		commandDuration.WithLabelValues(cmd.Action).Observe(time.Since(start).Seconds())
	}()
	slog.Debug("received command", slog.String("action", cmd.Action), slog.String("id", cmd.IDString()))

	if cmd.Action == ActionRefresh {
		commandsTotal.WithLabelValues(cmd.Action, "ok").Inc()
		a.group.Go(func() error {
			a.refresh(ctx, false)
			return nil
		})
		return
	}

	h, ok := a.handlers[cmd.Action]
	if !ok {
		commandsTotal.WithLabelValues("unknown", "error").Inc()
		a.respond(cmd, nil, "Unknown command: "+cmd.Action)
		return
	}

	result, err := h(ctx, cmd)
	if err != nil {
		commandsTotal.WithLabelValues(cmd.Action, "error").Inc()
		slog.Debug("command failed", slog.String("action", cmd.Action), slog.String("error", err.Error()))
		a.respond(cmd, nil, errorMessage(err))
		return
	}
	commandsTotal.WithLabelValues(cmd.Action, "ok").Inc()
	a.respond(cmd, result, "")
}

func (a *Agent) respond(cmd *ipc.Command, result any, errMsg string) {
	if err := a.out.Respond(cmd.ID, result, errMsg); err != nil {
		slog.Error("failed to encode response", slog.String("action", cmd.Action), slog.String("error", err.Error()))
		_ = a.out.Respond(cmd.ID, nil, err.Error())
	}
}

// errorMessage renders request errors as their bare message.
func errorMessage(err error) string {
	var se *errors.StructuredError
	if stderrors.As(err, &se) && (se.Code == errors.ErrCodeInvalidRequest || se.Code == errors.ErrCodeNotFound) {
		return se.Message
	}
	return err.Error()
}

func (a *Agent) handlePing(context.Context, *ipc.Command) (any, error) {
	return "pong", nil
}

func (a *Agent) handleListServices(context.Context, *ipc.Command) (any, error) {
	return map[string]any{"services": a.store.Services()}, nil
}

func (a *Agent) handleListContainers(context.Context, *ipc.Command) (any, error) {
	return a.store.Containers(), nil
}

func (a *Agent) handleSetResourceMode(ctx context.Context, cmd *ipc.Command) (any, error) {
	var p resourceModePayload
	if err := cmd.Decode(&p); err != nil {
		return nil, err
	}
	a.resources.setHighFrequency(p.Active)
	slog.Info("resource mode changed", slog.Bool("highFrequency", p.Active))
	if p.Active {
		a.sampleAsync(ctx, true)
	}
	return resultOK, nil
}

func (a *Agent) handleStartMonitoring(ctx context.Context, _ *ipc.Command) (any, error) {
	a.resources.setEnabled(true)
	a.sampleAsync(ctx, true)
	return resultOK, nil
}

func (a *Agent) handleStopMonitoring(context.Context, *ipc.Command) (any, error) {
	a.resources.setEnabled(false)
	return resultOK, nil
}

func (a *Agent) handleExec(ctx context.Context, cmd *ipc.Command) (any, error) {
	var p execPayload
	if err := cmd.Decode(&p); err != nil {
		return nil, err
	}
	if p.Command == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "Missing command")
	}

	res, err := a.exec.Execute(ctx, []string{"sh", "-c", p.Command})
	if err != nil {
		return nil, err
	}
	return ExecResult{Code: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}, nil
}

func (a *Agent) handleReadFile(ctx context.Context, cmd *ipc.Command) (any, error) {
	var p filePayload
	if err := cmd.Decode(&p); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "Missing path")
	}

	b, err := a.fs.ReadFile(ctx, a.fs.ExpandHome(ctx, p.Path))
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil, errors.New(errors.ErrCodeNotFound, "File not found: "+p.Path)
		}
		return nil, err
	}
	return map[string]string{"content": string(b)}, nil
}

func (a *Agent) handleWriteFile(ctx context.Context, cmd *ipc.Command) (any, error) {
	var p filePayload
	if err := cmd.Decode(&p); err != nil {
		return nil, err
	}
	if p.Path == "" || p.Content == nil {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "Missing path or content")
	}

	if err := a.fs.WriteFile(ctx, a.fs.ExpandHome(ctx, p.Path), []byte(*p.Content)); err != nil {
		return nil, err
	}
	return resultOK, nil
}
