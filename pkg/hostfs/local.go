package hostfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	cnserrors "github.com/NVIDIA/cns-node-agent/pkg/errors"
)

// Local is FS on this host.
type Local struct{}

// NewLocal returns a local FS.
func NewLocal() *Local { return &Local{} }

// ReadFile implements FS.
func (Local) ReadFile(_ context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeNotFound, "File not found: "+path, err)
		}
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to read "+path, err)
	}
	return b, nil
}

// WriteFile implements FS.
func (Local) WriteFile(_ context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to create parent directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // config files are world-readable
		return cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to write "+path, err)
	}
	return nil
}

// Walk implements FS.
func (Local) Walk(ctx context.Context, root string) ([]FileInfo, error) {
	var out []FileInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			// unreadable subtrees are skipped
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, FileInfo{Path: p, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsDir implements FS.
func (Local) IsDir(_ context.Context, path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

// ExpandHome implements FS.
func (Local) ExpandHome(_ context.Context, path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return expand(path, home)
}
