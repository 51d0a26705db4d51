package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
)

// Reader decodes line-delimited commands.
type Reader struct {
	br        *bufio.Reader
	max       int
	malformed rate.Sometimes
}

// NewReader returns a Reader on r. Lines longer than
// defaults.MaxIPCLineSize are dropped.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br:        bufio.NewReaderSize(r, 64*1024),
		max:       defaults.MaxIPCLineSize,
		malformed: rate.Sometimes{First: 5, Interval: time.Minute},
	}
}

// Next returns the next well-formed command. Blank, malformed and oversized
// lines are skipped. Returns io.EOF when input ends.
func (r *Reader) Next() (*Command, error) {
	for {
		line, size, err := r.readLine()
		if size > r.max {
			r.malformed.Do(func() {
				slog.Warn("dropping oversized command line", "length", size, "limit", r.max)
			})
		} else if cmd := r.decode(line); cmd != nil {
			return cmd, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// readLine reads through the next newline. Once a line exceeds the limit
// the rest of it is discarded; size still counts every byte.
func (r *Reader) readLine() (line []byte, size int, err error) {
	for {
		frag, err := r.br.ReadSlice('\n')
		size += len(bytes.TrimRight(frag, "\r\n"))
		if size <= r.max {
			line = append(line, frag...)
		} else {
			line = nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return line, size, err
		}
	}
}

func (r *Reader) decode(line []byte) *Command {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		r.malformed.Do(func() {
			slog.Warn("dropping malformed command line", "error", err, "length", len(line))
		})
		return nil
	}
	return &cmd
}
