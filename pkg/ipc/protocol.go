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

package ipc

import (
	"encoding/json"
	"fmt"
)

// Envelope types.
const (
	TypeSyncPartial = "SYNC_PARTIAL"
	TypeHeartbeat   = "HEARTBEAT"
	TypeResponse    = "response"
)

// InitialSyncComplete is the payload key marking the end of the first
// full refresh.
const InitialSyncComplete = "initialSyncComplete"

// Command is an inbound request.
type Command struct {
	ID      json.RawMessage `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IDString renders the id for logs.
func (c *Command) IDString() string {
	var s string
	if err := json.Unmarshal(c.ID, &s); err == nil {
		return s
	}
	return string(c.ID)
}

// Decode unmarshals the payload into v. A missing payload leaves v untouched.
func (c *Command) Decode(v any) error {
	if len(c.Payload) == 0 || string(c.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("invalid payload for %s: %w", c.Action, err)
	}
	return nil
}

// Envelope is an outbound message.
type Envelope struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Response is the payload of a response envelope. Result and Error are
// always present, null when unset.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result"`
	Error  *string         `json:"error"`
}
