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

package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/errors"
)

// Target selects where commands run.
type Target string

const (
	// TargetAuto picks remote when running inside a container with an SSH
	// host configured, local otherwise.
	TargetAuto Target = "auto"
	// TargetLocal runs commands on this host.
	TargetLocal Target = "local"
	// TargetRemote runs commands on the SSH host.
	TargetRemote Target = "remote"
)

// ParseTarget converts a string into a Target.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case TargetAuto, TargetLocal, TargetRemote:
		return t, nil
	case "":
		return TargetAuto, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidRequest, "invalid target %q (want auto, local or remote)", s)
	}
}

// SSH holds the remote host settings.
type SSH struct {
	Host           string
	Port           int
	User           string
	KeyFile        string
	KnownHostsFile string
}

// Address returns host:port.
func (s SSH) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultConfigDir is the user quadlet directory.
const DefaultConfigDir = "~/.config/containers/systemd"

// Config holds agent configuration
type Config struct {
	Name    string
	Version string

	Target         Target
	SSH            SSH
	CommandTimeout time.Duration

	// ConfigDir is the quadlet directory watched for changes.
	ConfigDir string

	CleanupOrphans bool

	// MetricsAddress enables the /metrics listener when not empty.
	MetricsAddress string

	LogLevel string
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		Name:           "cns-agent",
		Version:        "undefined",
		Target:         TargetAuto,
		SSH:            SSH{Port: 22, User: currentUser(), KeyFile: "~/.ssh/id_ed25519"},
		CommandTimeout: defaults.CommandTimeout,
		ConfigDir:      DefaultConfigDir,
		CleanupOrphans: true,
		LogLevel:       "info",
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := ParseTarget(string(c.Target)); err != nil {
		return err
	}
	if c.CommandTimeout <= 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "command timeout must be positive")
	}
	if c.Target == TargetRemote && c.SSH.Host == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "remote target requires an SSH host")
	}
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return errors.Newf(errors.ErrCodeInvalidRequest, "invalid SSH port %d", c.SSH.Port)
	}
	if c.ConfigDir == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "config dir must not be empty")
	}
	return nil
}

// containerMarkers are files whose presence means we run inside a container.
var containerMarkers = []string{"/run/.containerenv", "/.dockerenv"}

// ResolveTarget returns the concrete execution target: local or remote.
func (c *Config) ResolveTarget() Target {
	return resolveTarget(c.Target, c.SSH.Host, inContainer(containerMarkers))
}

func resolveTarget(t Target, host string, containerized bool) Target {
	switch t {
	case TargetLocal, TargetRemote:
		return t
	}
	if containerized && host != "" {
		return TargetRemote
	}
	return TargetLocal
}

func inContainer(markers []string) bool {
	for _, m := range markers {
		if _, err := os.Stat(m); err == nil {
			return true
		}
	}
	return false
}

// ExpandLocalPath expands a leading ~ against the local user's home.
func ExpandLocalPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
