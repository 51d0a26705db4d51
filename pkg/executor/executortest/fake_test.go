package executortest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
)

func TestFakeExecute(t *testing.T) {
	f := New().On("podman ps", "[]")
	f.OnError("podman volume ls", errors.New(errors.ErrCodeTimeout, "slow"))

	res, err := f.Execute(context.Background(), []string{"podman", "ps"})
	require.NoError(t, err)
	assert.Equal(t, "[]", res.Stdout)

	_, err = f.Execute(context.Background(), []string{"podman", "volume", "ls"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))

	res, err = f.Execute(context.Background(), []string{"unknown"})
	require.NoError(t, err)
	assert.True(t, res.NotFound)

	assert.Equal(t, 1, f.CallCount("podman ps"))
	assert.Len(t, f.Calls(), 3)
}

func TestFakeStdinAndHandler(t *testing.T) {
	f := New()
	f.Handler = func(argv []string, stdin string) (*executor.Result, error) {
		return &executor.Result{Stdout: fmt.Sprintf("%d:%s", len(argv), stdin)}, nil
	}
	res, err := f.Execute(context.Background(), []string{"cat"}, executor.WithStdin("x"))
	require.NoError(t, err)
	assert.Equal(t, "1:x", res.Stdout)
	assert.Equal(t, "x", f.Calls()[0].Stdin)
}

func TestFakeStream(t *testing.T) {
	f := New()
	w := f.OnStream("podman events --format json")
	s, err := f.Stream(context.Background(), []string{"podman", "events", "--format", "json"})
	require.NoError(t, err)

	go func() {
		_, _ = fmt.Fprintln(w, `{"Action":"start"}`)
		_ = w.Close()
	}()

	var got []string
	for l := range s.Lines() {
		got = append(got, l)
	}
	assert.Equal(t, []string{`{"Action":"start"}`}, got)

	_, err = f.Stream(context.Background(), []string{"other"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
