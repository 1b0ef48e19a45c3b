// Package file implements the container collaborator over a local log file,
// for development against captured logs without a Docker daemon.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nxadm/tail"

	"github.com/user/hubble/internal/domain"
)

// Runtime is a domain.ContainerRuntime that treats a log file on disk as the
// monitored workload. The file plays the container's role: it is "running"
// while it exists, and its appended lines are the log stream.
type Runtime struct {
	path string
}

func New(path string) *Runtime {
	return &Runtime{path: path}
}

func (r *Runtime) Resolve(ctx context.Context, mode domain.Mode) (domain.ContainerRef, error) {
	if _, err := os.Stat(r.path); err != nil {
		return domain.ContainerRef{}, fmt.Errorf("log file %s: %w", r.path, domain.ErrContainerNotFound)
	}
	return domain.ContainerRef{ID: r.path, Image: "file:" + r.path}, nil
}

func (r *Runtime) Status(ctx context.Context, id string) (string, error) {
	if _, err := os.Stat(r.path); err != nil {
		return "exited", nil
	}
	return "running", nil
}

// Logs tails the file. A zero cursor starts at the end of the file, matching
// a cold start against a live container; a non-zero cursor replays from the
// beginning and relies on downstream idempotency to absorb duplicates.
func (r *Runtime) Logs(ctx context.Context, id string, since time.Time) (domain.LogStream, error) {
	cfg := tail.Config{
		Follow: true,
		ReOpen: true,
		Poll:   true,
		Logger: tail.DiscardingLogger,
	}
	if since.IsZero() {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(r.path, cfg)
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", r.path, err)
	}
	return &logStream{ctx: ctx, tail: t}, nil
}

type logStream struct {
	ctx  context.Context
	tail *tail.Tail
}

func (s *logStream) Next() (string, error) {
	select {
	case line, ok := <-s.tail.Lines:
		if !ok {
			if err := s.tail.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		if line.Err != nil {
			return "", line.Err
		}
		return line.Text, nil
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	}
}

func (s *logStream) Close() error {
	err := s.tail.Stop()
	s.tail.Cleanup()
	return err
}
