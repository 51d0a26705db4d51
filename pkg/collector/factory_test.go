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
	"errors"
	"testing"

	"github.com/NVIDIA/cns-node-agent/pkg/collector/services"
	"github.com/NVIDIA/cns-node-agent/pkg/executor/executortest"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

func TestNewDefaultFactory_Defaults(t *testing.T) {
	ex := executortest.New()
	factory := NewDefaultFactory(ex)

	if factory.ConfigDir != "~/.config/containers/systemd" {
		t.Errorf("unexpected config dir %q", factory.ConfigDir)
	}
	if factory.FS == nil {
		t.Fatal("expected FS derived from executor")
	}
	if _, ok := factory.FS.(*hostfs.Local); !ok {
		t.Errorf("expected local FS for local target, got %T", factory.FS)
	}
	if factory.ServiceStrategy != services.StrategyAuto {
		t.Errorf("expected auto strategy, got %s", factory.ServiceStrategy)
	}
}

func TestNewDefaultFactory_Options(t *testing.T) {
	fs := hostfs.NewLocal()
	factory := NewDefaultFactory(executortest.New(),
		WithConfigDir("/srv/quadlets"),
		WithFS(fs),
		WithServiceStrategy(services.StrategySystemctl),
	)

	if factory.ConfigDir != "/srv/quadlets" {
		t.Errorf("expected /srv/quadlets, got %s", factory.ConfigDir)
	}
	if factory.ServiceStrategy != services.StrategySystemctl {
		t.Errorf("expected systemctl, got %s", factory.ServiceStrategy)
	}
}

func TestNewSet_AllDomains(t *testing.T) {
	set := NewSet(NewDefaultFactory(executortest.New()))

	for _, d := range snapshot.Domains {
		if set[d] == nil {
			t.Errorf("missing collector for %s", d)
		}
	}
	if got := set.Domains(); len(got) != len(snapshot.Domains) {
		t.Errorf("expected %d domains, got %v", len(snapshot.Domains), got)
	}
	if _, ok := set[snapshot.Files].(DirSetter); !ok {
		t.Error("files collector should accept extra dirs")
	}
}

func TestDefaultFactory_ContainerCollectorDegrades(t *testing.T) {
	// the fake reports every unregistered command as not found
	c := NewDefaultFactory(executortest.New()).CreateContainerCollector()

	v, err := c.Collect(context.TODO())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := v.([]snapshot.Container)
	if !ok {
		t.Fatalf("expected []snapshot.Container, got %T", v)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestTyped(t *testing.T) {
	boom := errors.New("boom")

	c := Typed(func(context.Context) ([]snapshot.ProxyRoute, error) { return nil, boom })
	v, err := c.Collect(context.TODO())
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if v != nil {
		t.Errorf("expected untyped nil on error, got %#v", v)
	}

	c = Typed(func(context.Context) ([]snapshot.ProxyRoute, error) { return []snapshot.ProxyRoute{}, nil })
	v, err = c.Collect(context.TODO())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := v.([]snapshot.ProxyRoute); !ok {
		t.Errorf("expected []snapshot.ProxyRoute, got %T", v)
	}
}

type recordingDirs struct {
	Func
	dirs []string
}

func (r *recordingDirs) SetExtraDirs(dirs []string) { r.dirs = dirs }

func TestSet_SetExtraDirs(t *testing.T) {
	rec := &recordingDirs{Func: func(context.Context) (any, error) { return nil, nil }}
	set := Set{
		snapshot.Files: rec,
		snapshot.Proxy: Func(func(context.Context) (any, error) { return nil, nil }),
	}

	set.SetExtraDirs([]string{"/srv/nginx/conf.d"})
	if len(rec.dirs) != 1 || rec.dirs[0] != "/srv/nginx/conf.d" {
		t.Errorf("unexpected dirs %v", rec.dirs)
	}
	if got := set.Domains(); len(got) != 2 || got[0] != snapshot.Files || got[1] != snapshot.Proxy {
		t.Errorf("unexpected domain order %v", got)
	}
}
