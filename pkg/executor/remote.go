package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	cnserrors "github.com/NVIDIA/cns-node-agent/pkg/errors"
)

// RemoteConfig describes the SSH target.
type RemoteConfig struct {
	Address        string
	User           string
	KeyFile        string
	KnownHostsFile string
	Timeout        time.Duration
}

// Remote runs commands over a single SSH connection.
type Remote struct {
	timeout time.Duration
	addr    string

	mu       sync.Mutex
	client   *ssh.Client
	degraded error
}

// NewRemote dials the SSH target. On failure the executor is returned in a
// degraded state and every call fails with ErrCodeUnavailable.
func NewRemote(ctx context.Context, cfg RemoteConfig) *Remote {
	r := &Remote{timeout: cfg.Timeout, addr: cfg.Address}
	if r.timeout <= 0 {
		r.timeout = defaults.CommandTimeout
	}

	client, err := dial(ctx, cfg)
	if err != nil {
		slog.Error("remote session unavailable", "address", cfg.Address, "error", err)
		r.degraded = err
		return r
	}
	slog.Info("remote session established", "address", cfg.Address, "user", cfg.User)
	r.client = client
	return r
}

func dial(ctx context.Context, cfg RemoteConfig) (*ssh.Client, error) {
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", cfg.KeyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key %s: %w", cfg.KeyFile, err)
	}

	hostKey, err := hostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKey,
		Timeout:         defaults.SSHDialTimeout,
	}

	d := net.Dialer{Timeout: defaults.SSHDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Address, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, cfg.Address, clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", cfg.Address, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		slog.Warn("host key verification disabled, set --ssh-known-hosts to enable")
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opt-in via config
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", knownHostsFile, err)
	}
	return cb, nil
}

// Target implements Executor.
func (r *Remote) Target() config.Target { return config.TargetRemote }

// Err returns the reason the executor is degraded, or nil.
func (r *Remote) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// Close implements Executor.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	if r.degraded == nil {
		r.degraded = errors.New("executor closed")
	}
	return err
}

func (r *Remote) session() (*ssh.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded != nil {
		return nil, r.unavailable(r.degraded)
	}
	s, err := r.client.NewSession()
	if err != nil {
		r.degraded = err
		slog.Error("remote session lost", "address", r.addr, "error", err)
		return nil, r.unavailable(err)
	}
	return s, nil
}

func (r *Remote) unavailable(cause error) error {
	return cnserrors.WrapWithContext(cnserrors.ErrCodeUnavailable, "remote session not established", cause,
		map[string]any{"address": r.addr})
}

func (r *Remote) markLost(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded == nil {
		r.degraded = err
		slog.Error("remote session lost", "address", r.addr, "error", err)
	}
}

// Execute implements Executor.
func (r *Remote) Execute(ctx context.Context, argv []string, opts ...Option) (*Result, error) {
	if err := checkArgv(argv); err != nil {
		return nil, err
	}
	o := buildOptions(r.timeout, opts)

	sess, err := r.session()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if o.stdin != nil {
		sess.Stdin = strings.NewReader(*o.stdin)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(Quote(argv)) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		<-done
		return nil, contextError(ctx, argv, o.timeout)
	}

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	var missing *ssh.ExitMissingError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
		res.NotFound = res.ExitCode == ExitNotFound
		return res, nil
	case errors.As(err, &missing):
		res.ExitCode = -1
		return res, nil
	default:
		r.markLost(err)
		return nil, r.unavailable(err)
	}
}

// Stream implements Executor.
func (r *Remote) Stream(ctx context.Context, argv []string) (*Stream, error) {
	if err := checkArgv(argv); err != nil {
		return nil, err
	}
	sess, err := r.session()
	if err != nil {
		return nil, err
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to open remote stdout", err)
	}
	if err := sess.Start(Quote(argv)); err != nil {
		_ = sess.Close()
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to start remote command", err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sess.Signal(ssh.SIGKILL)
			_ = sess.Close()
		})
	}
	wait := func() error {
		defer cancel()
		return sess.Wait()
	}

	sctx, stop := context.WithCancel(ctx)
	return NewStream(sctx, stdout, wait, func() { stop(); cancel() }), nil
}
