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

// Package monitor provides the background watchers that signal the agent
// that some part of node state may have changed.
//
// Monitors carry no payload and never read or write agent state. Each one
// publishes Events through the emit callback, which the agent wires to its
// single event channel.
package monitor

import "context"

// Kind tags an event.
type Kind string

const (
	// KindInit is sent once when a monitor starts observing.
	KindInit Kind = "init"
	// KindEvent means the watched source reported activity.
	KindEvent Kind = "event"
)

// Event sources.
const (
	SourceContainers = "podman-events"
	SourceFiles      = "files"
	SourceResources  = "resources"
	SourceHeartbeat  = "heartbeat"
)

// Event is a "re-check now" signal.
type Event struct {
	Source string
	Kind   Kind
}

// EmitFunc delivers an event.
type EmitFunc func(Event)

// Monitor watches one event source until ctx is done.
type Monitor interface {
	Name() string
	// Run blocks until ctx is canceled or the source dies. A dead source
	// is reported as an error and is not restarted.
	Run(ctx context.Context, emit EmitFunc) error
}
