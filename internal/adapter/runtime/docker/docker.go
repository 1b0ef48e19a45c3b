// Package docker implements the container collaborator over the Docker SDK.
package docker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/user/hubble/internal/domain"
)

// versionLabel is the OCI image label the workload images stamp their
// release into. Containers inherit it from the image config.
const versionLabel = "org.opencontainers.image.version"

// imageNeedles maps each workload mode to the image tag substring used to
// discover its container.
var imageNeedles = map[domain.Mode]string{
	domain.ModeNode:   "subspace/node",
	domain.ModeFarmer: "subspace/farmer",
}

// Runtime is a domain.ContainerRuntime backed by a Docker daemon.
type Runtime struct {
	cli *client.Client

	// imageNeedle overrides the per-mode discovery substring when non-empty.
	imageNeedle string
}

// New creates a Runtime. An empty host uses the environment defaults
// (DOCKER_HOST etc.).
func New(host, imageNeedle string) (*Runtime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Runtime{cli: cli, imageNeedle: imageNeedle}, nil
}

// Ping validates connectivity to the Docker daemon.
func (r *Runtime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	return nil
}

// Close releases resources held by the Docker client.
func (r *Runtime) Close() error {
	return r.cli.Close()
}

// Resolve scans all containers (running or not) for one whose image matches
// the mode's discovery substring.
func (r *Runtime) Resolve(ctx context.Context, mode domain.Mode) (domain.ContainerRef, error) {
	needle := r.imageNeedle
	if needle == "" {
		needle = imageNeedles[mode]
	}

	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return domain.ContainerRef{}, fmt.Errorf("list containers: %w", err)
	}

	for _, c := range containers {
		if !strings.Contains(c.Image, needle) {
			continue
		}
		return domain.ContainerRef{
			ID:      c.ID,
			Image:   c.Image,
			Version: c.Labels[versionLabel],
		}, nil
	}
	return domain.ContainerRef{}, fmt.Errorf("no container with image matching %q: %w", needle, domain.ErrContainerNotFound)
}

// Status inspects the container and returns its current state string.
// Docker caches nothing on our side, so each call reflects live status.
func (r *Runtime) Status(ctx context.Context, id string) (string, error) {
	inspect, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("inspect container: %w", err)
	}
	if inspect.State == nil {
		return "", fmt.Errorf("inspect container: no state reported")
	}
	return inspect.State.Status, nil
}

// Logs opens a following log stream. Non-TTY containers multiplex stdout and
// stderr into stdcopy frames, which are demuxed into a single line stream
// here; TTY containers are already raw.
func (r *Runtime) Logs(ctx context.Context, id string, since time.Time) (domain.LogStream, error) {
	inspect, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect container: %w", err)
	}

	body, err := r.cli.ContainerLogs(ctx, id, logsOptions(since))
	if err != nil {
		return nil, fmt.Errorf("open log stream: %w", err)
	}

	reader := io.Reader(body)
	var pipe *io.PipeReader
	if inspect.Config == nil || !inspect.Config.Tty {
		pr, pw := io.Pipe()
		go func() {
			_, copyErr := stdcopy.StdCopy(pw, pw, body)
			pw.CloseWithError(copyErr)
		}()
		reader = pr
		pipe = pr
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &logStream{body: body, pipe: pipe, scanner: scanner}, nil
}

// logsOptions maps the cursor to Engine API log options. A zero cursor must
// tail from now: the engine defaults an empty tail to "all", which on a
// first run against a long-lived container would replay the entire retained
// history into the backend.
func logsOptions(since time.Time) container.LogsOptions {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	}
	if since.IsZero() {
		opts.Tail = "0"
	} else {
		opts.Since = since.UTC().Format(time.RFC3339Nano)
	}
	return opts
}

type logStream struct {
	body    io.ReadCloser
	pipe    *io.PipeReader
	scanner *bufio.Scanner
}

func (s *logStream) Next() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *logStream) Close() error {
	if s.pipe != nil {
		_ = s.pipe.Close()
	}
	return s.body.Close()
}
