// Package collector turns the node's current state into domain snapshots.
//
// # Overview
//
// Each domain (containers, services, volumes, files, resources, proxy) has a
// collector in its own subpackage. Collectors are stateless with respect to
// the agent: they observe the target through an executor.Executor and a
// hostfs.FS and return a fresh snapshot value every call. They never touch
// the state store.
//
// # Core Interface
//
//	type Collector interface {
//	    Collect(ctx context.Context) (any, error)
//	}
//
// A failing external command degrades to an empty snapshot and a warning.
// Timeouts and lost remote sessions are returned as errors so that the
// caller can keep the previous value for that domain.
//
// # Factory Pattern
//
// DefaultFactory builds the production collectors for one executor:
//
//	factory := collector.NewDefaultFactory(ex,
//	    collector.WithConfigDir("~/.config/containers/systemd"),
//	)
//	set := collector.NewSet(factory)
//
//	v, err := set[snapshot.Containers].Collect(ctx)
//
// Tests substitute collectors with Func:
//
//	set := collector.Set{
//	    snapshot.Containers: collector.Func(func(context.Context) (any, error) {
//	        return []snapshot.Container{}, nil
//	    }),
//	}
package collector
