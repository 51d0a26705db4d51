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

// Package proxy reads the routes configured in the reverse-proxy container.
package proxy

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// RoleLabel marks the reverse-proxy container explicitly.
const RoleLabel = "servicebay.role=reverse-proxy"

// CandidateNames are tried in order when no container carries RoleLabel.
var CandidateNames = []string{"nginx-web", "nginx", "nginx-reverse-proxy", "proxy"}

//go:embed inspect.sh
var inspectScript string

// Collector lists proxy routes.
type Collector struct {
	ex executor.Executor
}

// New returns a proxy route collector.
func New(ex executor.Executor) *Collector {
	return &Collector{ex: ex}
}

// Collect implements the proxy snapshot. No proxy container, or a failing
// inspection, yields an empty list.
func (c *Collector) Collect(ctx context.Context) ([]snapshot.ProxyRoute, error) {
	out := []snapshot.ProxyRoute{}

	name, err := c.Find(ctx)
	if err != nil || name == "" {
		return out, err
	}

	res, err := c.ex.Execute(ctx, []string{"podman", "exec", "-i", name, "sh"},
		executor.WithStdin(inspectScript),
		executor.WithTimeout(defaults.ProxyInspectTimeout))
	if err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(res.Stderr); s != "" {
		slog.Debug("proxy inspector stderr", "container", name, "stderr", s)
	}
	if !res.Success() {
		slog.Warn("proxy inspection failed", "container", name, "exitCode", res.ExitCode)
		return out, nil
	}

	var routes []snapshot.ProxyRoute
	if err := json.Unmarshal([]byte(res.Stdout), &routes); err != nil {
		slog.Warn("failed to decode proxy routes", "container", name, "error", err)
		return out, nil
	}
	slog.Debug("collected proxy routes", "container", name, "count", len(routes))
	return append(out, routes...), nil
}

// Find returns the name of the reverse-proxy container, or "" when none runs.
func (c *Collector) Find(ctx context.Context) (string, error) {
	name, err := c.first(ctx, "label="+RoleLabel)
	if err != nil || name != "" {
		return name, err
	}
	for _, candidate := range CandidateNames {
		name, err := c.first(ctx, "name="+candidate)
		if err != nil || name != "" {
			return name, err
		}
	}
	return "", nil
}

func (c *Collector) first(ctx context.Context, filter string) (string, error) {
	res, err := c.ex.Execute(ctx, []string{"podman", "ps", "--filter", filter, "--format", "{{.Names}}"})
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", nil
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}
