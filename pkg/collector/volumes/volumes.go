// Package volumes collects podman named volumes and the containers using them.
package volumes

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

var listCommand = []string{"podman", "volume", "ls", "--format", "json"}

// ContainerSource supplies the containers whose mounts fill UsedBy.
type ContainerSource interface {
	Collect(ctx context.Context) ([]snapshot.Container, error)
}

// Collector lists volumes.
type Collector struct {
	ex         executor.Executor
	containers ContainerSource
}

// New returns a volume collector. containers may be nil, in which case
// UsedBy is always empty.
func New(ex executor.Executor, containers ContainerSource) *Collector {
	return &Collector{ex: ex, containers: containers}
}

// Collect implements the volumes snapshot.
func (c *Collector) Collect(ctx context.Context) ([]snapshot.Volume, error) {
	res, err := c.ex.Execute(ctx, listCommand)
	if err != nil {
		return nil, err
	}
	out := []snapshot.Volume{}
	if !res.Success() {
		slog.Warn("podman volume ls failed", "exitCode", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return out, nil
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			slog.Warn("failed to decode podman volume output", "error", err)
			return []snapshot.Volume{}, nil
		}
	}

	var users map[string][]snapshot.VolumeUser
	if c.containers != nil && len(out) > 0 {
		containers, err := c.containers.Collect(ctx)
		if err != nil {
			return nil, err
		}
		users = UsedBy(containers)
	}

	for i := range out {
		v := &out[i]
		v.UsedBy = users[v.Name]
		if v.UsedBy == nil {
			v.UsedBy = []snapshot.VolumeUser{}
		}
		if v.Labels == nil {
			v.Labels = map[string]string{}
		}
	}
	return out, nil
}

// UsedBy maps volume name to the containers mounting it.
func UsedBy(containers []snapshot.Container) map[string][]snapshot.VolumeUser {
	users := make(map[string][]snapshot.VolumeUser)
	for _, c := range containers {
		for _, m := range c.Mounts {
			if m.Type != "volume" || m.Name == "" {
				continue
			}
			users[m.Name] = append(users[m.Name], snapshot.VolumeUser{ID: c.ID, Name: c.Name()})
		}
	}
	return users
}
