package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/cns-node-agent/pkg/agent"
	"github.com/NVIDIA/cns-node-agent/pkg/cleanup"
	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/server"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Stream host state over stdio (default)",
		Description: `Run the agent in streaming mode. Envelopes are written to stdout
separated by NUL bytes; commands are read from stdin as JSON lines.
The agent exits when stdin closes, on a shutdown command or on SIGTERM.`,
		Action: runAgent,
	}
}

func runAgent(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return cli.Exit(err.Error(), 1)
	}

	if cfg.CleanupOrphans {
		if killed, err := cleanup.New(ctx).Run(ctx); err != nil {
			slog.Warn("orphan cleanup failed", "error", err)
		} else if len(killed) > 0 {
			slog.Info("orphan cleanup completed", "terminated", len(killed))
		}
	}

	target := cfg.ResolveTarget()
	if target == config.TargetRemote && cfg.SSH.KnownHostsFile == "" {
		slog.Warn("SSH host key verification disabled", "host", cfg.SSH.Host)
	}

	ex := executor.New(ctx, target, cfg)
	defer func() {
		if err := ex.Close(); err != nil {
			slog.Debug("failed to close executor", "error", err)
		}
	}()

	a := agent.New(ex, os.Stdout,
		agent.WithConfigDir(cfg.ConfigDir),
		agent.WithVersion(cfg.Version),
	)

	slog.Info("agent starting",
		"id", a.ID(),
		"target", string(target),
		"configDir", cfg.ConfigDir)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if cfg.MetricsAddress != "" {
		srv := server.New(server.NewConfig(cfg.MetricsAddress), a.Ready)
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}
	g.Go(func() error {
		// stdin closing ends the agent and with it the listener
		defer cancel()
		return a.Run(gctx, os.Stdin)
	})

	if err := g.Wait(); err != nil {
		slog.Error("agent stopped with error", "error", err)
		return err
	}
	slog.Info("agent stopped")
	return nil
}
