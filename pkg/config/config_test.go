package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-node-agent/pkg/errors"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, TargetAuto, cfg.Target)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout)
	assert.True(t, cfg.CleanupOrphans)
	assert.Empty(t, cfg.MetricsAddress)
	require.NoError(t, cfg.Validate())
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"auto", TargetAuto, false},
		{"LOCAL", TargetLocal, false},
		{" remote ", TargetRemote, false},
		{"", TargetAuto, false},
		{"ssh", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"remote without host", func(c *Config) { c.Target = TargetRemote }, false},
		{"remote with host", func(c *Config) { c.Target = TargetRemote; c.SSH.Host = "node1" }, true},
		{"zero timeout", func(c *Config) { c.CommandTimeout = 0 }, false},
		{"bad port", func(c *Config) { c.SSH.Port = 70000 }, false},
		{"bad target", func(c *Config) { c.Target = "cloud" }, false},
		{"empty config dir", func(c *Config) { c.ConfigDir = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name          string
		target        Target
		host          string
		containerized bool
		want          Target
	}{
		{"explicit local", TargetLocal, "node1", true, TargetLocal},
		{"explicit remote", TargetRemote, "node1", false, TargetRemote},
		{"auto on host", TargetAuto, "node1", false, TargetLocal},
		{"auto in container without host", TargetAuto, "", true, TargetLocal},
		{"auto in container with host", TargetAuto, "node1", true, TargetRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveTarget(tt.target, tt.host, tt.containerized))
		})
	}
}

func TestInContainer(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, ".containerenv")
	assert.False(t, inContainer([]string{marker}))
	require.NoError(t, os.WriteFile(marker, nil, 0o600))
	assert.True(t, inContainer([]string{filepath.Join(dir, "missing"), marker}))
}

func TestExpandLocalPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh/id"), ExpandLocalPath("~/.ssh/id"))
	assert.Equal(t, home, ExpandLocalPath("~"))
	assert.Equal(t, "/etc/x", ExpandLocalPath("/etc/x"))
	assert.Equal(t, "~other/x", ExpandLocalPath("~other/x"))
}

func TestSSHAddress(t *testing.T) {
	assert.Equal(t, "node1:2222", SSH{Host: "node1", Port: 2222}.Address())
}
