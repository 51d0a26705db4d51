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

// Package defaults provides centralized configuration constants for the node agent.
//
// This package defines timeout values, scheduling intervals, and size limits
// used across the codebase. Centralizing these values ensures consistency
// and makes tuning easier.
//
// # Categories
//
//   - Command timeouts: external commands, proxy inspection, SSH dial
//   - Scheduling: scan debounce, file settle window, poll interval
//   - Resource sampling: tick and minimum publish intervals
//   - Lifecycle: heartbeat and shutdown
//   - Metrics server: HTTP timeouts for the optional /metrics listener
//
// # Usage
//
//	import "github.com/NVIDIA/cns-node-agent/pkg/defaults"
//
//	res, err := exec.Execute(ctx, argv, executor.WithTimeout(defaults.ProxyInspectTimeout))
//
// # Guidelines
//
//   - Every external command carries a deadline; CommandTimeout is the default
//   - Resource publishes are gated at 5s in high-frequency mode, 60s otherwise
//   - The heartbeat fires every 30s regardless of activity
package defaults
