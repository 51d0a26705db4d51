package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/executor/executortest"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
)

const unitsJSON = `[
 {"unit":"web.service","load":"loaded","active":"active","sub":"running","description":"web"},
 {"unit":"stack.service","load":"loaded","active":"reloading","sub":"reload","description":"kube stack"},
 {"unit":"nginx-web.service","load":"loaded","active":"failed","sub":"failed","description":"proxy"},
 {"unit":"servicebay.service","load":"loaded","active":"inactive","sub":"dead","description":"sb"},
 {"unit":"dbus.service","load":"loaded","active":"active","sub":"running","description":"bus"},
 {"unit":"orphan.service","load":"not-found","active":"inactive","sub":"dead","description":""}
]`

func quadletDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"web.container", "nested/stack.kube", "data.volume", "README.md"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("[Unit]\n"), 0o644))
	}
	return dir
}

func TestCollectSystemctl(t *testing.T) {
	f := executortest.New().On("systemctl --user list-units --type=service --all --output=json", unitsJSON)
	c := New(f, hostfs.NewLocal(), quadletDir(t), WithStrategy(StrategySystemctl))

	got, err := c.Collect(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"nginx-web", "servicebay", "stack", "web"}, names)

	assert.True(t, got[0].IsReverseProxy)
	assert.False(t, got[0].Active)
	assert.True(t, got[1].IsServiceBay)
	assert.True(t, got[2].Active, "reloading counts as active")
	assert.Equal(t, "web", got[3].ID)
	assert.Equal(t, "running", got[3].SubState)
	assert.Equal(t, StrategySystemctl, c.Strategy(context.Background()))
}

func TestCollectSystemctlFailureIsEmpty(t *testing.T) {
	f := executortest.New().OnResult("systemctl --user list-units --type=service --all --output=json",
		&executor.Result{ExitCode: 1, Stderr: "Failed to connect to bus"})
	got, err := New(f, hostfs.NewLocal(), t.TempDir(), WithStrategy(StrategySystemctl)).Collect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCollectTimeout(t *testing.T) {
	f := executortest.New().OnError("systemctl --user list-units --type=service --all --output=json",
		errors.New(errors.ErrCodeTimeout, "deadline"))
	_, err := New(f, hostfs.NewLocal(), t.TempDir(), WithStrategy(StrategySystemctl)).Collect(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestRemoteTargetUsesSystemctl(t *testing.T) {
	f := executortest.New()
	f.SetTarget(config.TargetRemote)
	c := New(f, hostfs.NewLocal(), t.TempDir(), WithStrategy(StrategyDBus))
	assert.Equal(t, StrategySystemctl, c.Strategy(context.Background()))
}

func TestIsReverseProxy(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"nginx", true},
		{"nginx-web", true},
		{"My-Proxy", true},
		{"web", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isReverseProxy(tt.name))
		})
	}
}
