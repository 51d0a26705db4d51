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

// Package state holds the agent's last-known-good snapshot per domain.
//
// All reads and writes go through one mutex. Collectors run outside it;
// only the comparison, the assignment and the publish of a changed domain
// happen while it is held, so a reader sees either the old or the new value
// of a domain, never a mix.
package state

import (
	"sync"

	"k8s.io/utils/clock"

	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// PublishFunc emits a changed domain. It is called with the store lock held
// and must not call back into the store.
type PublishFunc func(d snapshot.Domain, v any)

// DecideFunc reports whether a domain should be stored and published given
// whether it differs from the stored value.
type DecideFunc func(changed bool) bool

// Store is the agent state.
type Store struct {
	clock clock.PassiveClock

	mu        sync.Mutex
	values    map[snapshot.Domain]any
	timestamp int64
}

// New returns an empty store.
func New(clk clock.PassiveClock) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		clock:  clk,
		values: make(map[snapshot.Domain]any, len(snapshot.Domains)),
	}
}

// Apply compares fresh with the stored value of d. When decide returns true
// fresh replaces the stored value and is published. Returns whether it was.
func (s *Store) Apply(d snapshot.Domain, fresh any, decide DecideFunc, publish PublishFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(d, fresh, decide, publish)
}

func (s *Store) applyLocked(d snapshot.Domain, fresh any, decide DecideFunc, publish PublishFunc) bool {
	changed := !snapshot.Equal(d, s.values[d], fresh)
	if !decide(changed) {
		return false
	}
	s.values[d] = fresh
	s.timestamp = s.clock.Now().UnixMilli()
	if publish != nil {
		publish(d, fresh)
	}
	return true
}

// Reconcile applies every domain present in fresh in canonical order.
// Unchanged domains are skipped unless force is set. Returns the domains
// that were published.
func (s *Store) Reconcile(fresh map[snapshot.Domain]any, force bool, publish PublishFunc) []snapshot.Domain {
	decide := func(changed bool) bool { return changed || force }

	s.mu.Lock()
	defer s.mu.Unlock()

	var published []snapshot.Domain
	for _, d := range snapshot.Domains {
		v, ok := fresh[d]
		if !ok {
			continue
		}
		if s.applyLocked(d, v, decide, publish) {
			published = append(published, d)
		}
	}
	return published
}

// Get returns the stored value of d, or nil.
func (s *Store) Get(d snapshot.Domain) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[d]
}

// Containers returns the stored containers.
func (s *Store) Containers() []snapshot.Container {
	v, _ := s.Get(snapshot.Containers).([]snapshot.Container)
	if v == nil {
		return []snapshot.Container{}
	}
	return v
}

// Services returns the stored services.
func (s *Store) Services() []snapshot.Service {
	v, _ := s.Get(snapshot.Services).([]snapshot.Service)
	if v == nil {
		return []snapshot.Service{}
	}
	return v
}

// Timestamp returns the unix milliseconds of the last mutation.
func (s *Store) Timestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestamp
}

// Snapshot returns all domains at once.
func (s *Store) Snapshot() snapshot.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := snapshot.State{Timestamp: s.timestamp}
	st.Containers, _ = s.values[snapshot.Containers].([]snapshot.Container)
	st.Services, _ = s.values[snapshot.Services].([]snapshot.Service)
	st.Volumes, _ = s.values[snapshot.Volumes].([]snapshot.Volume)
	st.Files, _ = s.values[snapshot.Files].(snapshot.FileSet)
	st.Resources, _ = s.values[snapshot.Resources].(*snapshot.HostResources)
	st.Proxy, _ = s.values[snapshot.Proxy].([]snapshot.ProxyRoute)
	return st
}
