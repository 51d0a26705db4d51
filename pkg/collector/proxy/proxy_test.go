package proxy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/executor/executortest"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

const routesJSON = `[{"host":"app.example.com","targetService":"web:8080","targetPort":8080,"ssl":true}]`

func TestCollectByLabel(t *testing.T) {
	f := executortest.New().
		On("podman ps --filter label=servicebay.role=reverse-proxy --format {{.Names}}", "edge\n").
		On("podman exec -i edge sh", routesJSON)

	got, err := New(f).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []snapshot.ProxyRoute{
		{Host: "app.example.com", TargetService: "web:8080", TargetPort: 8080, SSL: true},
	}, got)

	calls := f.Calls()
	assert.Equal(t, inspectScript, calls[len(calls)-1].Stdin)
}

func TestCollectByCandidateName(t *testing.T) {
	f := executortest.New().
		On("podman ps --filter label=servicebay.role=reverse-proxy --format {{.Names}}", "").
		On("podman ps --filter name=nginx-web --format {{.Names}}", "").
		On("podman ps --filter name=nginx --format {{.Names}}", "nginx\n").
		On("podman exec -i nginx sh", "[]")

	got, err := New(f).Collect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, f.CallCount("podman ps --filter name=proxy --format {{.Names}}"))
}

func TestCollectNoProxy(t *testing.T) {
	got, err := New(executortest.New()).Collect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCollectInspectFailures(t *testing.T) {
	base := func() *executortest.Fake {
		return executortest.New().On("podman ps --filter label=servicebay.role=reverse-proxy --format {{.Names}}", "edge")
	}

	t.Run("non-zero exit", func(t *testing.T) {
		f := base().OnResult("podman exec -i edge sh", &executor.Result{ExitCode: 126})
		got, err := New(f).Collect(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("garbage output", func(t *testing.T) {
		f := base().On("podman exec -i edge sh", "[{")
		got, err := New(f).Collect(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("timeout", func(t *testing.T) {
		f := base().OnError("podman exec -i edge sh", errors.New(errors.ErrCodeTimeout, "deadline"))
		_, err := New(f).Collect(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
	})
}

func TestInspectScript(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	files := map[string]string{
		"app.conf": `server {
    listen 443 ssl;
    server_name app.example.com;
    location / {
        # proxy_pass http://old:1;
        proxy_pass http://web:8080/;
    }
}
`,
		"npm.conf": `server {
  server_name npm.example.com;
  set $server "backend";
  set $port 3000;
}
`,
		"plain.conf": `server {
  server_name plain.example.com;
  proxy_pass http://static;
}
`,
		"empty.conf": "# nothing here\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cmd := exec.Command("sh")
	cmd.Stdin = strings.NewReader(inspectScript)
	cmd.Env = append(os.Environ(), "NGINX_CONFIGS="+filepath.Join(dir, "*.conf"))
	out, err := cmd.Output()
	require.NoError(t, err)

	f := executortest.New().
		On("podman ps --filter label=servicebay.role=reverse-proxy --format {{.Names}}", "edge").
		On("podman exec -i edge sh", string(out))
	got, err := New(f).Collect(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []snapshot.ProxyRoute{
		{Host: "app.example.com", TargetService: "web:8080", TargetPort: 8080, SSL: true},
		{Host: "npm.example.com", TargetService: "backend:3000", TargetPort: 3000},
		{Host: "plain.example.com", TargetService: "static", TargetPort: 80},
	}, got)
}
