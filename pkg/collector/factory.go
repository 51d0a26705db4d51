package collector

import (
	"context"

	"github.com/NVIDIA/cns-node-agent/pkg/collector/containers"
	"github.com/NVIDIA/cns-node-agent/pkg/collector/files"
	"github.com/NVIDIA/cns-node-agent/pkg/collector/proxy"
	"github.com/NVIDIA/cns-node-agent/pkg/collector/resources"
	"github.com/NVIDIA/cns-node-agent/pkg/collector/services"
	"github.com/NVIDIA/cns-node-agent/pkg/collector/volumes"
	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
)

// Factory creates collectors with their dependencies.
// This interface enables dependency injection for testing.
type Factory interface {
	CreateContainerCollector() Collector
	CreateServiceCollector() Collector
	CreateVolumeCollector() Collector
	CreateFileCollector() Collector
	CreateResourceCollector() Collector
	CreateProxyCollector() Collector
}

// Option configures a DefaultFactory.
type Option func(*DefaultFactory)

// WithConfigDir sets the user quadlet directory.
func WithConfigDir(dir string) Option {
	return func(f *DefaultFactory) {
		f.ConfigDir = dir
	}
}

// WithFS overrides the filesystem derived from the executor.
func WithFS(fs hostfs.FS) Option {
	return func(f *DefaultFactory) {
		f.FS = fs
	}
}

// WithServiceStrategy forces the services listing strategy.
func WithServiceStrategy(s services.Strategy) Option {
	return func(f *DefaultFactory) {
		f.ServiceStrategy = s
	}
}

// DefaultFactory creates the production collectors for one executor.
type DefaultFactory struct {
	Executor        executor.Executor
	FS              hostfs.FS
	ConfigDir       string
	ServiceStrategy services.Strategy
}

// NewDefaultFactory returns a factory for ex.
func NewDefaultFactory(ex executor.Executor, opts ...Option) *DefaultFactory {
	f := &DefaultFactory{
		Executor:        ex,
		ConfigDir:       config.DefaultConfigDir,
		ServiceStrategy: services.StrategyAuto,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.FS == nil {
		f.FS = hostfs.New(ex)
	}
	return f
}

func (f *DefaultFactory) CreateContainerCollector() Collector {
	return Typed(containers.New(f.Executor).Collect)
}

func (f *DefaultFactory) CreateServiceCollector() Collector {
	return Typed(services.New(f.Executor, f.FS, f.ConfigDir, services.WithStrategy(f.ServiceStrategy)).Collect)
}

func (f *DefaultFactory) CreateVolumeCollector() Collector {
	return Typed(volumes.New(f.Executor, containers.New(f.Executor)).Collect)
}

func (f *DefaultFactory) CreateFileCollector() Collector {
	return &fileCollector{files.New(f.FS, f.ConfigDir)}
}

func (f *DefaultFactory) CreateResourceCollector() Collector {
	return Typed(resources.New(f.Executor, f.FS).Collect)
}

func (f *DefaultFactory) CreateProxyCollector() Collector {
	return Typed(proxy.New(f.Executor).Collect)
}

// fileCollector keeps SetExtraDirs reachable through the Collector interface.
type fileCollector struct {
	*files.Collector
}

func (c *fileCollector) Collect(ctx context.Context) (any, error) {
	v, err := c.Collector.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

var _ DirSetter = (*fileCollector)(nil)
