// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/serializer"
)

// parseConfig runs the root command with args and captures the config.
func parseConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var (
		cfg    *config.Config
		cfgErr error
	)
	cmd := newRootCmd()
	cmd.Before = nil
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		cfg, cfgErr = configFromCommand(c)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{name}, args...)))
	return cfg, cfgErr
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(t)
	require.NoError(t, err)

	assert.Equal(t, config.TargetAuto, cfg.Target)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, "~/.ssh/id_ed25519", cfg.SSH.KeyFile)
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout)
	assert.Equal(t, config.DefaultConfigDir, cfg.ConfigDir)
	assert.True(t, cfg.CleanupOrphans)
	assert.Empty(t, cfg.MetricsAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, name, cfg.Name)
}

func TestConfigFlags(t *testing.T) {
	cfg, err := parseConfig(t,
		"--target", "remote",
		"--ssh-host", "node1",
		"--ssh-port", "2222",
		"--ssh-user", "core",
		"--ssh-known-hosts", "/etc/ssh/known_hosts",
		"--command-timeout", "5s",
		"--config-dir", "/srv/quadlets",
		"--cleanup-orphans=false",
		"--metrics-address", ":9464",
		"--log-level", "debug",
	)
	require.NoError(t, err)

	assert.Equal(t, config.TargetRemote, cfg.Target)
	assert.Equal(t, "node1:2222", cfg.SSH.Address())
	assert.Equal(t, "core", cfg.SSH.User)
	assert.Equal(t, "/etc/ssh/known_hosts", cfg.SSH.KnownHostsFile)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, "/srv/quadlets", cfg.ConfigDir)
	assert.False(t, cfg.CleanupOrphans)
	assert.Equal(t, ":9464", cfg.MetricsAddress)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CNS_AGENT_TARGET", "local")
	t.Setenv("CNS_AGENT_COMMAND_TIMEOUT", "10s")
	t.Setenv("CNS_AGENT_CLEANUP_ORPHANS", "false")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := parseConfig(t)
	require.NoError(t, err)
	assert.Equal(t, config.TargetLocal, cfg.Target)
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout)
	assert.False(t, cfg.CleanupOrphans)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown target", []string{"--target", "cloud"}},
		{"remote without host", []string{"--target", "remote"}},
		{"bad port", []string{"--ssh-port", "70000"}},
		{"zero timeout", []string{"--command-timeout", "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		format  string
		want    serializer.Format
		wantErr bool
	}{
		{"json", serializer.FormatJSON, false},
		{"yaml", serializer.FormatYAML, false},
		{"table", serializer.FormatTable, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var (
				got serializer.Format
				err error
			)
			cmd := &cli.Command{
				Flags: []cli.Flag{&cli.StringFlag{Name: "format"}},
				Action: func(_ context.Context, c *cli.Command) error {
					got, err = parseOutputFormat(c)
					return nil
				},
			}
			require.NoError(t, cmd.Run(context.Background(), []string{"test", "--format", tt.format}))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands))
	for _, c := range root.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"run", "snapshot"}, names)
	assert.NotNil(t, root.Action)
}

func TestSnapshotRejectsUnknownFormat(t *testing.T) {
	root := newRootCmd()
	root.Before = nil
	err := root.Run(context.Background(), []string{name, "snapshot", "--format", "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
