package hostfs

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
)

// exitMissing is the exit status the read script uses for a missing file.
const exitMissing = 44

const readScript = `test -f "$1" || exit 44; cat -- "$1"`

const writeScript = `mkdir -p -- "$(dirname -- "$1")" && cat > "$1"`

// Remote is FS on the executor's host.
type Remote struct {
	ex executor.Executor

	homeOnce sync.Once
	home     string
}

// NewRemote returns an FS backed by ex.
func NewRemote(ex executor.Executor) *Remote {
	return &Remote{ex: ex}
}

// ReadFile implements FS.
func (r *Remote) ReadFile(ctx context.Context, p string) ([]byte, error) {
	res, err := r.ex.Execute(ctx, []string{"sh", "-c", readScript, "sh", p})
	if err != nil {
		return nil, err
	}
	switch {
	case res.ExitCode == exitMissing:
		return nil, errors.New(errors.ErrCodeNotFound, "File not found: "+p)
	case !res.Success():
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("failed to read %s: %s", p, strings.TrimSpace(res.Stderr)))
	}
	return []byte(res.Stdout), nil
}

// WriteFile implements FS.
func (r *Remote) WriteFile(ctx context.Context, p string, data []byte) error {
	res, err := r.ex.Execute(ctx, []string{"sh", "-c", writeScript, "sh", p}, executor.WithStdin(string(data)))
	if err != nil {
		return err
	}
	if !res.Success() {
		return errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("failed to write %s: %s", p, strings.TrimSpace(res.Stderr)))
	}
	return nil
}

// Walk implements FS.
func (r *Remote) Walk(ctx context.Context, root string) ([]FileInfo, error) {
	res, err := r.ex.Execute(ctx, []string{"find", root, "-type", "f", "-printf", `%p\t%s\t%T@\n`})
	if err != nil {
		return nil, err
	}
	// find exits non-zero for a missing root or unreadable subtrees; keep
	// whatever it printed
	return parseFind(res.Stdout), nil
}

func parseFind(out string) []FileInfo {
	var files []FileInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			continue
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		secs, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    fields[0],
			Size:    size,
			ModTime: time.Unix(0, int64(secs*float64(time.Second))),
		})
	}
	return files
}

// IsDir implements FS.
func (r *Remote) IsDir(ctx context.Context, p string) bool {
	res, err := r.ex.Execute(ctx, []string{"test", "-d", p})
	return err == nil && res.Success()
}

// ExpandHome implements FS.
func (r *Remote) ExpandHome(ctx context.Context, p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	r.homeOnce.Do(func() {
		res, err := r.ex.Execute(ctx, []string{"sh", "-c", `printf %s "$HOME"`})
		if err == nil && res.Success() {
			r.home = path.Clean(strings.TrimSpace(res.Stdout))
		}
	})
	return expand(p, r.home)
}
