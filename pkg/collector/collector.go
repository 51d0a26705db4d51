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

package collector

import (
	"context"

	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// Collector produces one domain snapshot.
type Collector interface {
	Collect(ctx context.Context) (any, error)
}

// Func adapts a function to Collector.
type Func func(ctx context.Context) (any, error)

// Collect implements Collector.
func (f Func) Collect(ctx context.Context) (any, error) {
	return f(ctx)
}

// DirSetter is implemented by collectors whose search directories change at
// runtime.
type DirSetter interface {
	SetExtraDirs(dirs []string)
}

// Typed adapts a collector returning a concrete snapshot type.
func Typed[T any](fn func(context.Context) (T, error)) Collector {
	return Func(func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Set maps each domain to its collector.
type Set map[snapshot.Domain]Collector

// NewSet builds one collector per domain from f.
func NewSet(f Factory) Set {
	return Set{
		snapshot.Containers: f.CreateContainerCollector(),
		snapshot.Services:   f.CreateServiceCollector(),
		snapshot.Volumes:    f.CreateVolumeCollector(),
		snapshot.Files:      f.CreateFileCollector(),
		snapshot.Resources:  f.CreateResourceCollector(),
		snapshot.Proxy:      f.CreateProxyCollector(),
	}
}

// SetExtraDirs forwards dirs to every collector that accepts them.
func (s Set) SetExtraDirs(dirs []string) {
	for _, c := range s {
		if ds, ok := c.(DirSetter); ok {
			ds.SetExtraDirs(dirs)
		}
	}
}

// Domains returns the domains a Set covers in publish order.
func (s Set) Domains() []snapshot.Domain {
	out := make([]snapshot.Domain, 0, len(s))
	for _, d := range snapshot.Domains {
		if _, ok := s[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
