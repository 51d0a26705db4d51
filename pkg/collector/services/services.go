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

package services

import (
	"context"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// Strategy selects how units are listed.
type Strategy string

const (
	StrategyAuto      Strategy = "auto"
	StrategyDBus      Strategy = "dbus"
	StrategySystemctl Strategy = "systemctl"
)

// SystemQuadletDir holds system-wide quadlet definitions.
const SystemQuadletDir = "/etc/containers/systemd"

var quadletExts = []string{".kube", ".container", ".pod"}

// unitStatus is the strategy-neutral view of one listed unit.
type unitStatus struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	Path        string
}

type lister interface {
	list(ctx context.Context, keep func(name string) bool) ([]unitStatus, error)
}

// Option configures the Collector.
type Option func(*Collector)

// WithStrategy forces a listing strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Collector) {
		c.strategy = s
	}
}

// WithQuadletDirs replaces the directories scanned for quadlet files.
func WithQuadletDirs(dirs ...string) Option {
	return func(c *Collector) {
		c.dirs = dirs
	}
}

// Collector lists quadlet-generated services.
type Collector struct {
	ex       executor.Executor
	fs       hostfs.FS
	dirs     []string
	strategy Strategy

	once   sync.Once
	lister lister
}

// New returns a services collector. configDir is the user quadlet directory.
func New(ex executor.Executor, fs hostfs.FS, configDir string, opts ...Option) *Collector {
	c := &Collector{
		ex:       ex,
		fs:       fs,
		dirs:     []string{configDir, SystemQuadletDir},
		strategy: StrategyAuto,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Strategy reports the listing strategy in use, resolving it if needed.
func (c *Collector) Strategy(ctx context.Context) Strategy {
	c.resolve(ctx)
	if _, ok := c.lister.(*dbusLister); ok {
		return StrategyDBus
	}
	return StrategySystemctl
}

func (c *Collector) resolve(ctx context.Context) {
	c.once.Do(func() {
		switch {
		case c.strategy == StrategySystemctl:
		case c.ex.Target() == config.TargetRemote:
			if c.strategy == StrategyDBus {
				slog.Warn("dbus strategy is not available on a remote target, using systemctl")
			}
		case dbusAvailable(ctx):
			c.lister = &dbusLister{}
			slog.Debug("listing services over the systemd user bus")
			return
		default:
			slog.Info("systemd user bus unavailable, falling back to systemctl")
		}
		c.lister = &systemctlLister{ex: c.ex}
	})
}

// Collect implements the services snapshot.
func (c *Collector) Collect(ctx context.Context) ([]snapshot.Service, error) {
	c.resolve(ctx)

	managed, err := c.quadletServices(ctx)
	if err != nil {
		return nil, err
	}
	keep := func(name string) bool {
		clean := strings.TrimSuffix(name, ".service")
		return managed[name] || isReverseProxy(clean) || isServiceBay(clean)
	}

	units, err := c.lister.list(ctx, keep)
	if err != nil {
		return nil, err
	}

	out := make([]snapshot.Service, 0, len(units))
	for _, u := range units {
		if !strings.HasSuffix(u.Name, ".service") || !keep(u.Name) {
			continue
		}
		out = append(out, toService(u))
	}
	slices.SortFunc(out, func(a, b snapshot.Service) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// quadletServices returns the service names generated by quadlet files.
func (c *Collector) quadletServices(ctx context.Context) (map[string]bool, error) {
	names := make(map[string]bool)
	for _, dir := range c.dirs {
		if dir == "" {
			continue
		}
		files, err := c.fs.Walk(ctx, c.fs.ExpandHome(ctx, dir))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if slices.Contains(quadletExts, path.Ext(f.Path)) {
				base := path.Base(f.Path)
				names[strings.TrimSuffix(base, path.Ext(base))+".service"] = true
			}
		}
	}
	return names, nil
}

func toService(u unitStatus) snapshot.Service {
	clean := strings.TrimSuffix(u.Name, ".service")
	return snapshot.Service{
		Name:           clean,
		ID:             clean,
		ActiveState:    u.ActiveState,
		SubState:       u.SubState,
		LoadState:      u.LoadState,
		Description:    u.Description,
		Path:           u.Path,
		Active:         u.ActiveState == "active" || u.ActiveState == "reloading",
		IsReverseProxy: isReverseProxy(clean),
		IsServiceBay:   isServiceBay(clean),
	}
}

func isReverseProxy(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "nginx") || strings.Contains(lower, "proxy")
}

func isServiceBay(name string) bool {
	return name == "servicebay" || name == "ServiceBay"
}
