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

// Package resources samples host CPU, memory, disk, network and OS facts.
//
// A local target is sampled through gopsutil. A remote target is sampled by
// reading /proc and running df and ip through the executor, so the figures
// always describe the host the agent manages.
package resources

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// cpuSampleWindow separates the two CPU counter reads.
const cpuSampleWindow = 100 * time.Millisecond

// excludedFSTypes are virtual or image filesystems left out of Disks.
var excludedFSTypes = []string{
	"tmpfs", "devtmpfs", "overlay", "squashfs", "iso9660", "cgroup", "cgroup2",
	"tracefs", "sysfs", "proc", "devpts", "mqueue", "hugetlbfs", "securityfs",
	"debugfs", "pstore", "autofs", "fuse.portal", "fuse.gvfsd-fuse",
}

var excludedMountPrefixes = []string{"/var/lib/containers", "/var/lib/docker"}

type sampler interface {
	sample(ctx context.Context) (*snapshot.HostResources, error)
}

// Collector samples host resources.
type Collector struct {
	s sampler
}

// New returns a collector for the executor's target.
func New(ex executor.Executor, fs hostfs.FS) *Collector {
	if ex.Target() == config.TargetRemote {
		return &Collector{s: newProcSampler(ex, fs)}
	}
	return &Collector{s: &localSampler{}}
}

// Collect implements the resources snapshot.
func (c *Collector) Collect(ctx context.Context) (*snapshot.HostResources, error) {
	r, err := c.s.sample(ctx)
	if err != nil {
		return nil, err
	}
	if r.Network == nil {
		r.Network = map[string][]snapshot.Address{}
	}
	if r.Disks == nil {
		r.Disks = []snapshot.Disk{}
	}
	return r, nil
}

func includeDisk(fstype, mount string) bool {
	if slices.Contains(excludedFSTypes, fstype) {
		return false
	}
	for _, p := range excludedMountPrefixes {
		if strings.Contains(mount, p) {
			return false
		}
	}
	return true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}
