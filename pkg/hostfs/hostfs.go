// Package hostfs reads and writes files on the agent's execution target.
//
// Local uses the os package directly. Remote goes through the executor, so
// files commands observe the same host the collectors do.
package hostfs

import (
	"context"
	"strings"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
)

// FileInfo describes one regular file found by Walk.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// FS is file access on the execution target.
type FS interface {
	// ReadFile returns the file content. A missing file yields an
	// errors.ErrCodeNotFound error.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile writes data, creating parent directories.
	WriteFile(ctx context.Context, path string, data []byte) error
	// Walk lists regular files below root. A missing root yields no files.
	Walk(ctx context.Context, root string) ([]FileInfo, error)
	// IsDir reports whether path is an existing directory.
	IsDir(ctx context.Context, path string) bool
	// ExpandHome replaces a leading ~ with the target user's home.
	ExpandHome(ctx context.Context, path string) string
}

// New returns the FS matching the executor's target.
func New(ex executor.Executor) FS {
	if ex.Target() == config.TargetRemote {
		return NewRemote(ex)
	}
	return NewLocal()
}

func expand(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return strings.TrimSuffix(home, "/") + path[1:]
	}
	return path
}
