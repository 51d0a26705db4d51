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

// Package cleanup terminates agent processes left behind by a parent that
// died without shutting them down.
//
// An orphan is a process with the same executable name as the running agent
// whose parent is init (PPID 1). The process table is read with gopsutil;
// when that is not possible the pgrep/ps/kill tools are used instead. The
// strategy is chosen once per Cleaner.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
)

// Candidate is a process that may be an orphaned agent.
type Candidate struct {
	Pid  int32
	PPid int32
	Name string
}

// Strategy lists and terminates processes.
type Strategy interface {
	Name() string
	List(ctx context.Context, name string) ([]Candidate, error)
	Terminate(ctx context.Context, pid int32) error
}

// Cleaner finds and terminates orphaned agents.
type Cleaner struct {
	strategy Strategy
	self     int32
	name     string
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithStrategy overrides strategy detection.
func WithStrategy(s Strategy) Option {
	return func(c *Cleaner) {
		c.strategy = s
	}
}

// WithProcessName overrides the executable name matched.
func WithProcessName(name string) Option {
	return func(c *Cleaner) {
		c.name = name
	}
}

// WithSelf overrides the pid never terminated.
func WithSelf(pid int32) Option {
	return func(c *Cleaner) {
		c.self = pid
	}
}

// New returns a Cleaner for the running executable.
func New(ctx context.Context, opts ...Option) *Cleaner {
	c := &Cleaner{self: int32(os.Getpid())}
	if exe, err := os.Executable(); err == nil {
		c.name = filepath.Base(exe)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.strategy == nil {
		c.strategy = detect(ctx)
	}
	return c
}

// Strategy returns the selected strategy.
func (c *Cleaner) Strategy() Strategy {
	return c.strategy
}

// Run terminates orphans and returns their pids.
func (c *Cleaner) Run(ctx context.Context) ([]int32, error) {
	if c.name == "" {
		return nil, fmt.Errorf("process name unknown")
	}
	candidates, err := c.strategy.List(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes with %s: %w", c.strategy.Name(), err)
	}

	var killed []int32
	for _, p := range candidates {
		if p.Pid == c.self || p.PPid != 1 || p.Name != c.name {
			continue
		}
		if err := c.strategy.Terminate(ctx, p.Pid); err != nil {
			slog.Warn("failed to terminate orphaned agent", "pid", p.Pid, "error", err)
			continue
		}
		slog.Info("terminated orphaned agent", "pid", p.Pid)
		killed = append(killed, p.Pid)
	}
	return killed, nil
}

func detect(ctx context.Context) Strategy {
	if _, err := process.PidsWithContext(ctx); err == nil {
		return ProcessTable{}
	}
	slog.Debug("process table unavailable, using pgrep")
	return &Tools{Executor: executor.NewLocal(defaults.CommandTimeout)}
}

// ProcessTable reads processes through gopsutil.
type ProcessTable struct{}

func (ProcessTable) Name() string { return "process-table" }

func (ProcessTable) List(ctx context.Context, name string) ([]Candidate, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil || n != name {
			continue
		}
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, Candidate{Pid: p.Pid, PPid: ppid, Name: n})
	}
	return out, nil
}

func (ProcessTable) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

// Tools uses pgrep, ps and kill.
type Tools struct {
	Executor executor.Executor
}

func (*Tools) Name() string { return "pgrep" }

func (t *Tools) List(ctx context.Context, name string) ([]Candidate, error) {
	res, err := t.Executor.Execute(ctx, []string{"pgrep", "-x", name})
	if err != nil {
		return nil, err
	}
	// pgrep exits 1 when nothing matches
	if res.NotFound {
		return nil, fmt.Errorf("pgrep not available")
	}
	var out []Candidate
	for _, field := range strings.Fields(res.Stdout) {
		pid, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			continue
		}
		ppid, err := t.ppid(ctx, int32(pid))
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{Pid: int32(pid), PPid: ppid, Name: name})
	}
	return out, nil
}

func (t *Tools) ppid(ctx context.Context, pid int32) (int32, error) {
	res, err := t.Executor.Execute(ctx, []string{"ps", "-o", "ppid=", "-p", strconv.Itoa(int(pid))})
	if err != nil {
		return 0, err
	}
	if !res.Success() {
		return 0, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 32)
	if err != nil {
		return 0, nil
	}
	return int32(v), nil
}

func (t *Tools) Terminate(ctx context.Context, pid int32) error {
	res, err := t.Executor.Execute(ctx, []string{"kill", "-TERM", strconv.Itoa(int(pid))})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("kill exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}
