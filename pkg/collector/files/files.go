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

// Package files collects the content of quadlet definitions and reverse
// proxy configuration files on the target.
package files

import (
	"context"
	"log/slog"
	"path"
	"slices"
	"sync"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/quadlet"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// Extensions lists the file types included in the snapshot.
var Extensions = []string{".kube", ".container", ".volume", ".network", ".pod", ".nlink", ".yaml", ".yml", ".conf"}

// Collector scans the config directory plus a mutable set of extra
// directories.
type Collector struct {
	fs        hostfs.FS
	configDir string
	maxSize   int64

	mu    sync.Mutex
	extra []string
}

// New returns a file collector rooted at configDir.
func New(fs hostfs.FS, configDir string) *Collector {
	return &Collector{
		fs:        fs,
		configDir: configDir,
		maxSize:   defaults.MaxFileSize,
	}
}

// SetExtraDirs replaces the extra directories scanned after the config dir.
func (c *Collector) SetExtraDirs(dirs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extra = slices.Clone(dirs)
}

// Dirs returns every directory scanned, config dir first.
func (c *Collector) Dirs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{c.configDir}, c.extra...)
}

// Collect implements the files snapshot.
func (c *Collector) Collect(ctx context.Context) (snapshot.FileSet, error) {
	out := make(snapshot.FileSet)
	for _, dir := range c.Dirs() {
		if dir == "" {
			continue
		}
		infos, err := c.fs.Walk(ctx, c.fs.ExpandHome(ctx, dir))
		if err != nil {
			if stale(err) || ctx.Err() != nil {
				return nil, err
			}
			slog.Warn("failed to scan directory", "dir", dir, "error", err)
			continue
		}
		for _, info := range infos {
			if _, seen := out[info.Path]; seen {
				continue
			}
			if !slices.Contains(Extensions, path.Ext(info.Path)) || info.Size > c.maxSize {
				continue
			}
			f, err := c.read(ctx, info)
			if err != nil {
				if stale(err) {
					return nil, err
				}
				slog.Debug("skipping unreadable file", "path", info.Path, "error", err)
				continue
			}
			out[info.Path] = f
		}
	}
	return out, nil
}

func (c *Collector) read(ctx context.Context, info hostfs.FileInfo) (snapshot.File, error) {
	b, err := c.fs.ReadFile(ctx, info.Path)
	if err != nil {
		return snapshot.File{}, err
	}
	f := snapshot.File{
		Path:     info.Path,
		Content:  string(b),
		Modified: float64(info.ModTime.UnixNano()) / 1e9,
	}
	if quadlet.IsUnitFile(info.Path) {
		d, err := quadlet.Parse(f.Content)
		if err != nil {
			slog.Debug("failed to parse unit directives", "path", info.Path, "error", err)
		} else {
			f.Directives = d
		}
	}
	return f, nil
}

// stale reports errors that invalidate the whole scan rather than one file.
func stale(err error) bool {
	return errors.IsCode(err, errors.ErrCodeTimeout) || errors.IsCode(err, errors.ErrCodeUnavailable)
}
