package volumes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/executor/executortest"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

type staticContainers struct {
	list []snapshot.Container
	err  error
}

func (s staticContainers) Collect(context.Context) ([]snapshot.Container, error) {
	return s.list, s.err
}

const volumesJSON = `[
 {"Name":"webdata","Driver":"local","Mountpoint":"/home/core/.local/share/containers/storage/volumes/webdata/_data","CreatedAt":"2024-01-01T00:00:00Z","Labels":{},"Scope":"local","Options":{}},
 {"Name":"unused","Driver":"local","Mountpoint":"/x","Labels":null}
]`

func TestCollect(t *testing.T) {
	f := executortest.New().On("podman volume ls --format json", volumesJSON)
	src := staticContainers{list: []snapshot.Container{
		{ID: "0123456789abcdef", Names: []string{"web"}, Mounts: []snapshot.Mount{
			{Type: "volume", Name: "webdata", Destination: "/data"},
			{Type: "bind", Source: "/etc/x", Destination: "/etc/x"},
		}},
		{ID: "fedcba9876543210", Mounts: []snapshot.Mount{{Type: "volume", Name: "webdata"}}},
	}}

	got, err := New(f, src).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []snapshot.VolumeUser{
		{ID: "0123456789abcdef", Name: "web"},
		{ID: "fedcba9876543210", Name: "fedcba987654"},
	}, got[0].UsedBy)
	assert.Equal(t, "local", got[0].Driver)
	assert.NotNil(t, got[1].UsedBy)
	assert.Empty(t, got[1].UsedBy)
	assert.NotNil(t, got[1].Labels)
}

func TestCollectWithoutSource(t *testing.T) {
	f := executortest.New().On("podman volume ls --format json", volumesJSON)
	got, err := New(f, nil).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got[0].UsedBy)
}

func TestCollectFailures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		f := executortest.New().OnResult("podman volume ls --format json", &executor.Result{ExitCode: 125})
		got, err := New(f, nil).Collect(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("session lost", func(t *testing.T) {
		f := executortest.New().OnError("podman volume ls --format json", errors.New(errors.ErrCodeUnavailable, "gone"))
		_, err := New(f, nil).Collect(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
	})

	t.Run("container source error", func(t *testing.T) {
		f := executortest.New().On("podman volume ls --format json", volumesJSON)
		_, err := New(f, staticContainers{err: errors.New(errors.ErrCodeTimeout, "slow")}).Collect(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
	})
}
