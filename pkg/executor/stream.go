package executor

import (
	"bufio"
	"context"
	"io"
	"sync"
)

const maxStreamLine = 1024 * 1024

// Stream delivers the stdout of a long-running command line by line.
type Stream struct {
	lines  chan string
	done   chan struct{}
	cancel func()
	once   sync.Once

	mu  sync.Mutex
	err error
}

// NewStream pumps r into a line channel until EOF or ctx is done. wait is
// called once the reader is exhausted and its error is reported by Err.
// cancel must make r return (kill the process or close the session).
func NewStream(ctx context.Context, r io.Reader, wait func() error, cancel func()) *Stream {
	s := &Stream{
		lines:  make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.pump(ctx, r, wait)
	return s
}

func (s *Stream) pump(ctx context.Context, r io.Reader, wait func() error) {
	defer close(s.done)
	defer close(s.lines)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxStreamLine)
	for sc.Scan() {
		select {
		case s.lines <- sc.Text():
		case <-ctx.Done():
			s.cancel()
			s.finish(ctx.Err(), wait)
			return
		}
	}
	s.finish(sc.Err(), wait)
}

func (s *Stream) finish(scanErr error, wait func() error) {
	if wait == nil {
		s.setErr(scanErr)
		return
	}
	werr := wait()
	if scanErr != nil {
		s.setErr(scanErr)
		return
	}
	s.setErr(werr)
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Lines returns the channel of output lines. It is closed when the command
// exits or the stream is closed.
func (s *Stream) Lines() <-chan string {
	return s.lines
}

// Done is closed once the stream has fully terminated.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err reports why the stream ended. Only meaningful after Lines is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close terminates the command and waits for the pump to exit.
func (s *Stream) Close() error {
	s.once.Do(s.cancel)
	for range s.lines {
	}
	<-s.done
	return nil
}
