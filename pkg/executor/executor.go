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

package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/errors"
)

// ExitNotFound is the shell convention for a missing binary.
const ExitNotFound = 127

// Executor runs commands on a fixed execution target.
type Executor interface {
	// Execute runs argv to completion.
	Execute(ctx context.Context, argv []string, opts ...Option) (*Result, error)
	// Stream starts argv and delivers its stdout line by line.
	Stream(ctx context.Context, argv []string) (*Stream, error)
	// Target reports where commands run.
	Target() config.Target
	// Close releases the underlying connection, if any.
	Close() error
}

// Result is the outcome of a command that ran.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// NotFound is set when the binary could not be located.
	NotFound bool
}

// Success reports whether the command exited zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0 && !r.NotFound
}

// Option configures a single Execute call.
type Option func(*options)

type options struct {
	timeout time.Duration
	stdin   *string
}

// WithTimeout overrides the executor's default deadline for one call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithStdin feeds s to the command's standard input.
func WithStdin(s string) Option {
	return func(o *options) {
		o.stdin = &s
	}
}

func buildOptions(def time.Duration, opts []Option) options {
	o := options{timeout: def}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the executor for the resolved target. A remote executor that
// fails to connect is returned degraded rather than as an error.
func New(ctx context.Context, target config.Target, cfg *config.Config) Executor {
	if target == config.TargetRemote {
		return NewRemote(ctx, RemoteConfig{
			Address:        cfg.SSH.Address(),
			User:           cfg.SSH.User,
			KeyFile:        config.ExpandLocalPath(cfg.SSH.KeyFile),
			KnownHostsFile: config.ExpandLocalPath(cfg.SSH.KnownHostsFile),
			Timeout:        cfg.CommandTimeout,
		})
	}
	return NewLocal(cfg.CommandTimeout)
}

func checkArgv(argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "empty command")
	}
	return nil
}

// contextError maps a finished context into the executor's error taxonomy.
func contextError(ctx context.Context, argv []string, timeout time.Duration) error {
	cause := ctx.Err()
	if cause == context.DeadlineExceeded {
		return errors.WrapWithContext(errors.ErrCodeTimeout,
			fmt.Sprintf("command timed out after %s", timeout), cause,
			map[string]any{"command": strings.Join(argv, " ")})
	}
	return errors.WrapWithContext(errors.ErrCodeInternal, "command canceled", cause,
		map[string]any{"command": strings.Join(argv, " ")})
}

// Quote renders argv as a POSIX shell command line.
func Quote(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = quoteArg(a)
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("@%+=:,./-_", r)
}

// StdinOf returns the stdin configured by opts, or "".
func StdinOf(opts ...Option) string {
	o := buildOptions(0, opts)
	if o.stdin == nil {
		return ""
	}
	return *o.stdin
}
