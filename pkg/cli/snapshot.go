/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cns-node-agent/pkg/collector"
	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/serializer"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshotter"
)

var (
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file path (default: stdout)",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatJSON),
		Usage:   fmt.Sprintf("Output format (%v)", serializer.SupportedFormats()),
	}
)

func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q", f)
	}
	return f, nil
}

func snapshotCmd() *cli.Command {
	return &cli.Command{
		Name:                  "snapshot",
		EnableShellCompletion: true,
		Usage:                 "Collect every domain once and print the state",
		Description: `Collect containers, services, volumes, quadlet files, proxy routes and
host resources once, then print the combined state and exit.

  cns-agent snapshot --format table
  cns-agent --target remote --ssh-host node1 snapshot -o node1.yaml -t yaml`,
		Flags: []cli.Flag{
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			cfg, err := configFromCommand(cmd)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ctx, cancel := context.WithTimeout(ctx, defaults.CLISnapshotTimeout)
			defer cancel()

			ex := executor.New(ctx, cfg.ResolveTarget(), cfg)
			defer ex.Close()

			out := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
			defer out.Close()

			ns := snapshotter.NodeSnapshotter{
				Collectors: collector.NewSet(collector.NewDefaultFactory(ex,
					collector.WithConfigDir(cfg.ConfigDir),
				)),
				Serializer: out,
			}
			return ns.Measure(ctx)
		},
	}
}
