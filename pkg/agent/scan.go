package agent

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/NVIDIA/cns-node-agent/pkg/collector/proxy"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshotter"
)

// lane is a set of domains rescanned together.
type lane struct {
	name    string
	domains []snapshot.Domain
}

var (
	containerLane = lane{
		name:    "containers",
		domains: []snapshot.Domain{snapshot.Containers, snapshot.Volumes, snapshot.Services, snapshot.Proxy},
	}
	fileLane = lane{
		name:    "files",
		domains: []snapshot.Domain{snapshot.Files, snapshot.Services, snapshot.Proxy},
	}
)

// rescan fetches the lane's domains and publishes the changed ones.
func (a *Agent) rescan(ctx context.Context, l lane) {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()
	scansTotal.WithLabelValues(l.name).Inc()
	slog.Debug("rescanning", slog.String("lane", l.name))

	res := snapshotter.Collect(ctx, a.collectors, l.domains...)
	published := a.store.Reconcile(res.Values, false, a.publish)
	if len(published) == 0 {
		slog.Debug("rescan found no changes", slog.String("lane", l.name))
		return
	}

	if cs, ok := res.Values[snapshot.Containers].([]snapshot.Container); ok && slices.Contains(published, snapshot.Containers) {
		if a.setProxyDirs(ctx, cs) && a.fileScan != nil {
			a.fileScan.Trigger()
		}
	}
}

// refresh fetches every domain. The initial refresh publishes all of them;
// later ones publish only changes.
func (a *Agent) refresh(ctx context.Context, initial bool) {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()
	scansTotal.WithLabelValues("full").Inc()

	// Containers first so the files collector sees the proxy config dirs.
	first := snapshotter.Collect(ctx, a.collectors, snapshot.Containers)
	if cs, ok := first.Values[snapshot.Containers].([]snapshot.Container); ok {
		a.setProxyDirs(ctx, cs)
	}

	rest := slices.DeleteFunc(a.collectors.Domains(), func(d snapshot.Domain) bool {
		return d == snapshot.Containers
	})
	res := snapshotter.Collect(ctx, a.collectors, rest...)
	maps.Copy(res.Values, first.Values)

	published := a.store.Reconcile(res.Values, initial, a.publish)
	if slices.Contains(published, snapshot.Resources) {
		a.resources.markPublished(a.clock.Now())
	}
	slog.Debug("refresh complete",
		slog.Bool("initial", initial),
		slog.Int("published", len(published)),
		slog.Int("stale", len(first.Stale)+len(res.Stale)))
}

// setProxyDirs points the files collector and the file watcher at the
// reverse proxy's config mounts. Returns whether the set changed.
func (a *Agent) setProxyDirs(ctx context.Context, containers []snapshot.Container) bool {
	dirs := slices.DeleteFunc(proxy.ConfigDirs(containers), func(d string) bool {
		return !a.fs.IsDir(ctx, d)
	})

	a.dirsMu.Lock()
	defer a.dirsMu.Unlock()
	if slices.Equal(a.proxyDirs, dirs) {
		return false
	}
	a.proxyDirs = dirs
	a.collectors.SetExtraDirs(dirs)
	if a.watcher != nil {
		a.watcher.SetDirs(append(slices.Clone(a.baseDirs), dirs...))
	}
	slog.Info("proxy config dirs updated", slog.Any("dirs", dirs))
	return true
}
