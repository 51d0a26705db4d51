package hostfs

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
)

func TestLocalWriteCreatesParents(t *testing.T) {
	ctx := context.Background()
	fs := NewLocal()
	p := filepath.Join(t.TempDir(), "a", "b", "c.container")

	require.NoError(t, fs.WriteFile(ctx, p, []byte("[Container]\nImage=nginx\n")))
	b, err := fs.ReadFile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "[Container]\nImage=nginx\n", string(b))
	assert.True(t, fs.IsDir(ctx, filepath.Dir(p)))
	assert.False(t, fs.IsDir(ctx, p))
}

func TestLocalReadMissing(t *testing.T) {
	_, err := NewLocal().ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalWalk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.kube"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.yaml"), []byte("yy"), 0o600))

	files, err := NewLocal().Walk(ctx, dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	paths := []string{files[0].Path, files[1].Path}
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.kube"), filepath.Join(dir, "sub", "b.yaml")}, paths)

	missing, err := NewLocal().Walk(ctx, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestExpand(t *testing.T) {
	assert.Equal(t, "/home/u/x", expand("~/x", "/home/u"))
	assert.Equal(t, "/home/u/x", expand("~/x", "/home/u/"))
	assert.Equal(t, "/home/u", expand("~", "/home/u"))
	assert.Equal(t, "/etc/x", expand("/etc/x", "/home/u"))
	assert.Equal(t, "~/x", expand("~/x", ""))
}

func TestRemoteReadFile(t *testing.T) {
	ctx := context.Background()
	f := executortest.New()
	f.SetTarget(config.TargetRemote)
	f.OnResult("sh -c "+readScript+" sh /etc/a.conf", &executor.Result{Stdout: "server {}"})
	f.OnResult("sh -c "+readScript+" sh /etc/missing", &executor.Result{ExitCode: exitMissing})

	fs := New(f)
	b, err := fs.ReadFile(ctx, "/etc/a.conf")
	require.NoError(t, err)
	assert.Equal(t, "server {}", string(b))

	_, err = fs.ReadFile(ctx, "/etc/missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	assert.Contains(t, err.Error(), "File not found: /etc/missing")
}

func TestRemoteWriteFileUsesStdin(t *testing.T) {
	f := executortest.New()
	f.OnResult("sh -c "+writeScript+" sh /tmp/x/y.conf", &executor.Result{})

	require.NoError(t, NewRemote(f).WriteFile(context.Background(), "/tmp/x/y.conf", []byte("data")))
	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "data", calls[0].Stdin)
}

func TestRemoteErrorsPropagate(t *testing.T) {
	f := executortest.New()
	f.Handler = func([]string, string) (*executor.Result, error) {
		return nil, errors.New(errors.ErrCodeUnavailable, "down")
	}
	_, err := NewRemote(f).ReadFile(context.Background(), "/x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
}

func TestParseFind(t *testing.T) {
	out := "/a/b.kube\t12\t1700000000.5000000000\nbroken line\n/a/c.yaml\tx\t1\n"
	files := parseFind(out)
	require.Len(t, files, 1)
	assert.Equal(t, "/a/b.kube", files[0].Path)
	assert.Equal(t, int64(12), files[0].Size)
	assert.Equal(t, int64(1700000000), files[0].ModTime.Unix())
}

func TestRemoteExpandHome(t *testing.T) {
	f := executortest.New()
	f.On(`sh -c printf %s "$HOME"`, "/home/core")
	fs := NewRemote(f)
	ctx := context.Background()
	assert.Equal(t, "/home/core/.config", fs.ExpandHome(ctx, "~/.config"))
	assert.Equal(t, "/etc", fs.ExpandHome(ctx, "/etc"))
	assert.Equal(t, "/home/core", fs.ExpandHome(ctx, "~"))
	assert.Equal(t, 1, f.CallCount(`sh -c printf %s "$HOME"`))
}
