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

package defaults

import "time"

// Command execution timeouts.
const (
	// CommandTimeout is the default deadline for a single external command.
	// Overridable with --command-timeout.
	CommandTimeout = 30 * time.Second

	// ProxyInspectTimeout bounds the reverse-proxy inspector run inside
	// the proxy container.
	ProxyInspectTimeout = 5 * time.Second

	// SSHDialTimeout is the timeout for establishing the remote session.
	SSHDialTimeout = 10 * time.Second
)

// Scan scheduling.
const (
	// ScanDebounce is the quiet period before a triggered rescan runs.
	ScanDebounce = 1 * time.Second

	// FileSettleWindow is how long the file watcher keeps draining
	// notifications after a wake before it signals.
	FileSettleWindow = 500 * time.Millisecond

	// FilePollInterval is the polling period used when native file
	// notifications are unavailable.
	FilePollInterval = 2 * time.Second
)

// Resource sampling.
const (
	// ResourceTickInterval is the sampler period.
	ResourceTickInterval = 5 * time.Second

	// ResourcePublishHighFrequency is the minimum publish interval while a
	// client has requested high-frequency updates.
	ResourcePublishHighFrequency = 5 * time.Second

	// ResourcePublishLowFrequency is the minimum publish interval otherwise.
	ResourcePublishLowFrequency = 60 * time.Second
)

// Agent lifecycle.
const (
	// HeartbeatInterval keeps the parent transport from idling out.
	HeartbeatInterval = 30 * time.Second

	// ShutdownTimeout bounds how long the agent waits for monitors to exit.
	ShutdownTimeout = 5 * time.Second

	// CLISnapshotTimeout is the default timeout for the one-shot snapshot command.
	CLISnapshotTimeout = 2 * time.Minute
)

// Metrics server timeouts.
const (
	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second
)

// Size limits.
const (
	// MaxFileSize is the largest config file the files collector will read.
	MaxFileSize = 100 * 1024

	// MaxIPCLineSize is the largest inbound command line accepted.
	MaxIPCLineSize = 16 * 1024 * 1024
)
