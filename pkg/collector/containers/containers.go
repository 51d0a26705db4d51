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

package containers

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/distribution/reference"

	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

var (
	psCommand      = []string{"podman", "ps", "-a", "--format", "json"}
	inspectCommand = []string{"podman", "inspect", "--type", "container", "--format", "json"}
	socketsCommand = []string{"ss", "-tulpnH"}
)

// Collector lists the non-infra containers on the target.
type Collector struct {
	ex executor.Executor
}

// New returns a container collector running podman through ex.
func New(ex executor.Executor) *Collector {
	return &Collector{ex: ex}
}

type psPort struct {
	HostIP           string `json:"host_ip"`
	HostPort         int    `json:"host_port"`
	ContainerPort    int    `json:"container_port"`
	HostPortAlt      int    `json:"hostPort"`
	ContainerPortAlt int    `json:"containerPort"`
	PublicPort       int    `json:"PublicPort"`
	PrivatePort      int    `json:"PrivatePort"`
	Protocol         string `json:"protocol"`
	Type             string `json:"Type"`
}

type psContainer struct {
	ID       string            `json:"Id"`
	Names    []string          `json:"Names"`
	Image    string            `json:"Image"`
	State    string            `json:"State"`
	Status   string            `json:"Status"`
	Created  int64             `json:"Created"`
	Ports    []psPort          `json:"Ports"`
	Labels   map[string]string `json:"Labels"`
	Networks []string          `json:"Networks"`
	Pod      string            `json:"Pod"`
	PodName  string            `json:"PodName"`
	IsInfra  bool              `json:"IsInfra"`
	Pid      int               `json:"Pid"`
}

type inspectContainer struct {
	ID         string           `json:"Id"`
	Mounts     []snapshot.Mount `json:"Mounts"`
	HostConfig struct {
		NetworkMode string `json:"NetworkMode"`
	} `json:"HostConfig"`
}

// Collect implements the containers snapshot. A failing podman yields an
// empty list; a timeout or lost session is returned as an error.
func (c *Collector) Collect(ctx context.Context) ([]snapshot.Container, error) {
	res, err := c.ex.Execute(ctx, psCommand)
	if err != nil {
		return nil, err
	}
	out := []snapshot.Container{}
	if !res.Success() {
		slog.Warn("podman ps failed", "exitCode", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return out, nil
	}

	var raw []psContainer
	if s := strings.TrimSpace(res.Stdout); s != "" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			slog.Warn("failed to decode podman ps output", "error", err)
			return out, nil
		}
	}

	raw = slices.DeleteFunc(raw, isInfra)
	if len(raw) == 0 {
		return out, nil
	}

	details, err := c.inspect(ctx, raw)
	if err != nil {
		return nil, err
	}
	pids, err := c.hostPorts(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range raw {
		out = append(out, build(p, details[p.ID], pids[p.Pid]))
	}
	return out, nil
}

func isInfra(c psContainer) bool {
	if c.IsInfra {
		return true
	}
	if len(c.Names) == 0 {
		return false
	}
	name := c.Names[0]
	return strings.HasSuffix(name, "-infra") || strings.HasSuffix(name, "_infra")
}

// inspect returns mounts and network mode keyed by container id. Missing
// details leave the containers without mounts.
func (c *Collector) inspect(ctx context.Context, raw []psContainer) (map[string]inspectContainer, error) {
	argv := slices.Clone(inspectCommand)
	for _, p := range raw {
		argv = append(argv, p.ID)
	}
	res, err := c.ex.Execute(ctx, argv)
	if err != nil {
		return nil, err
	}
	out := make(map[string]inspectContainer, len(raw))
	// inspect exits non-zero when a container vanished between calls but
	// still prints the rest
	var details []inspectContainer
	if s := strings.TrimSpace(res.Stdout); s != "" {
		if err := json.Unmarshal([]byte(s), &details); err != nil {
			slog.Debug("failed to decode podman inspect output", "error", err)
			return out, nil
		}
	}
	for _, d := range details {
		out[d.ID] = d
	}
	return out, nil
}

// hostPorts maps listening PIDs to their sockets. Without ss the map is
// empty and only published ports are reported.
func (c *Collector) hostPorts(ctx context.Context) (map[int][]snapshot.Port, error) {
	res, err := c.ex.Execute(ctx, socketsCommand)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		slog.Warn("ss failed, host port detection disabled", "exitCode", res.ExitCode, "notFound", res.NotFound)
		return map[int][]snapshot.Port{}, nil
	}
	return ParseSockets(res.Stdout), nil
}

func build(p psContainer, d inspectContainer, detected []snapshot.Port) snapshot.Container {
	c := snapshot.Container{
		ID:       p.ID,
		Names:    p.Names,
		Image:    p.Image,
		State:    p.State,
		Status:   p.Status,
		Created:  p.Created,
		Labels:   p.Labels,
		Networks: p.Networks,
		PodID:    p.Pod,
		PodName:  p.PodName,
		IsInfra:  p.IsInfra,
		Pid:      p.Pid,
		Mounts:   d.Mounts,
	}
	if c.Names == nil {
		c.Names = []string{}
	}
	if c.Labels == nil {
		c.Labels = map[string]string{}
	}
	if c.Networks == nil {
		c.Networks = []string{}
	}
	if c.Mounts == nil {
		c.Mounts = []snapshot.Mount{}
	}
	c.IsHostNetwork = slices.Contains(c.Networks, "host") || d.HostConfig.NetworkMode == "host"
	c.ImageName, c.ImageTag = ParseImage(p.Image)
	c.Ports = mergePorts(normalizePorts(p.Ports), detected)
	return c
}

func normalizePorts(in []psPort) []snapshot.Port {
	out := make([]snapshot.Port, 0, len(in))
	for _, p := range in {
		np := snapshot.Port{
			HostIP:        p.HostIP,
			HostPort:      firstNonZero(p.HostPort, p.HostPortAlt, p.PublicPort),
			ContainerPort: firstNonZero(p.ContainerPort, p.ContainerPortAlt, p.PrivatePort),
			Protocol:      strings.ToLower(p.Protocol),
		}
		if np.Protocol == "" {
			np.Protocol = strings.ToLower(p.Type)
		}
		if np.Protocol == "" {
			np.Protocol = "tcp"
		}
		if np.HostPort == 0 && np.ContainerPort == 0 {
			continue
		}
		out = append(out, np)
	}
	return out
}

// mergePorts appends detected sockets that are not already published,
// keyed by host port and protocol.
func mergePorts(ports, detected []snapshot.Port) []snapshot.Port {
	seen := make(map[portKey]bool, len(ports)+len(detected))
	for _, p := range ports {
		seen[keyOf(p)] = true
	}
	for _, p := range detected {
		if seen[keyOf(p)] {
			continue
		}
		seen[keyOf(p)] = true
		ports = append(ports, p)
	}
	return ports
}

type portKey struct {
	port  int
	proto string
}

func keyOf(p snapshot.Port) portKey {
	return portKey{port: p.HostPort, proto: strings.ToLower(p.Protocol)}
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// ParseImage splits an image reference into its familiar name and tag.
// Digest-only or unparsable references return empty strings.
func ParseImage(image string) (name, tag string) {
	if image == "" {
		return "", ""
	}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", ""
	}
	name = reference.FamiliarName(named)
	if tagged, ok := named.(reference.Tagged); ok {
		tag = tagged.Tag()
	} else if _, ok := named.(reference.Digested); !ok {
		tag = "latest"
	}
	return name, tag
}
