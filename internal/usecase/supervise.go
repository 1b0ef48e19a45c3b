package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/user/hubble/internal/adapter/metrics"
	"github.com/user/hubble/internal/adapter/scrub"
	"github.com/user/hubble/internal/domain"
)

const (
	defaultIdlePollInterval = 10 * time.Second
	defaultStreamBackoff    = 1 * time.Second

	statusRunning = "running"

	// Emitted by the Docker daemon when json-file log rotation corrupts the
	// follow stream. The stream stays broken until the container is
	// redeployed; recognizing the line lets us tell the operator instead of
	// silently reconnecting forever.
	logRotationArtifact = "Error grabbing logs: invalid character 'l' after object key:value pair"
)

// compatibleVersions is the release each workload was last verified against.
// A mismatch is only worth a warning.
var compatibleVersions = map[domain.Mode]string{
	domain.ModeNode:   "gemini-3h-2024-mar-29",
	domain.ModeFarmer: "gemini-3h-2024-mar-29",
}

// Supervisor owns the connection to the monitored container's output and
// keeps a live tail across restarts and transient failures. It is the single
// worker for its target: lines flow sequentially through scrub → parse →
// classify → route, so event order is preserved end to end.
type Supervisor struct {
	runtime    domain.ContainerRuntime
	classifier *Classifier
	router     *Router
	cursors    domain.CursorStore
	scrubber   *scrub.Scrubber
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger

	subject string
	mode    domain.Mode

	idlePollInterval time.Duration
	streamBackoff    time.Duration
}

// NewSupervisor creates a Supervisor for one monitored target.
func NewSupervisor(
	runtime domain.ContainerRuntime,
	classifier *Classifier,
	router *Router,
	cursors domain.CursorStore,
	subject string,
	mode domain.Mode,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *Supervisor {
	return &Supervisor{
		runtime:          runtime,
		classifier:       classifier,
		router:           router,
		cursors:          cursors,
		scrubber:         scrub.New(),
		metrics:          m,
		logger:           logger,
		subject:          subject,
		mode:             mode,
		idlePollInterval: defaultIdlePollInterval,
		streamBackoff:    defaultStreamBackoff,
	}
}

// Run locates the monitored container and tails it until ctx is cancelled.
// The only error it returns is a failed locate; everything past that point
// is retried forever, because a monitor that gives up is worse than one that
// lags.
func (s *Supervisor) Run(ctx context.Context) error {
	ref, err := s.runtime.Resolve(ctx, s.mode)
	if err != nil {
		return fmt.Errorf("locating monitored container: %w", err)
	}
	s.logger.Info("found monitored container",
		"mode", s.mode,
		"container_id", ref.ID,
		"image", ref.Image,
		"version", ref.Version,
	)
	s.checkVersion(ref)

	cursor := s.loadCursor(ctx)

	connected := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		status, err := s.runtime.Status(ctx, ref.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("failed to poll container status", "error", err)
			if !s.sleep(ctx, s.idlePollInterval) {
				return nil
			}
			continue
		}
		if status != statusRunning {
			s.logger.Warn("container is not running, waiting before checking again",
				"status", status,
				"poll_interval", s.idlePollInterval,
			)
			if !s.sleep(ctx, s.idlePollInterval) {
				return nil
			}
			continue
		}

		stream, err := s.runtime.Logs(ctx, ref.ID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.metrics.StreamErrorsTotal.Inc()
			s.logger.Error("failed to open log stream", "error", err)
			if !s.sleep(ctx, s.streamBackoff) {
				return nil
			}
			continue
		}
		// The first successful open is a connect, not a reconnect.
		if connected {
			s.metrics.ReconnectsTotal.Inc()
		}
		connected = true

		s.logger.Info("tailing log stream", "subject", s.subject, "mode", s.mode, "since", cursor)
		err = s.tail(ctx, stream, &cursor)
		_ = stream.Close()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.metrics.StreamErrorsTotal.Inc()
			s.logger.Error("log stream interrupted", "error", err)
		} else {
			s.logger.Warn("log stream ended, reconnecting")
		}
		if !s.sleep(ctx, s.streamBackoff) {
			return nil
		}
	}
}

// tail consumes the stream line by line until it fails or ends. A clean end
// (io.EOF) returns nil; the caller reconnects either way.
func (s *Supervisor) tail(ctx context.Context, stream domain.LogStream, cursor *time.Time) error {
	for {
		line, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.handleLine(ctx, line, cursor)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handleLine runs one raw line through the pipeline. Nothing that happens
// here may abort the tail loop: classification errors are logged and the
// line is dropped, and a panic in a pattern builder is contained the same
// way.
func (s *Supervisor) handleLine(ctx context.Context, raw string, cursor *time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while handling log line", "panic", rec, "line", raw)
		}
	}()

	s.metrics.LinesTotal.Inc()

	line := strings.TrimSpace(s.scrubber.Scrub(raw))
	if line == "" {
		return
	}
	if line == logRotationArtifact {
		s.logger.Error("log rotation has broken the log stream; redeploy the monitored container to restore it")
		return
	}

	parsed, ok := ParseLine(line, s.mode)
	if !ok {
		// Expected for multi-line and decorative output.
		return
	}

	ev, err := s.classifier.Classify(s.subject, parsed.Timestamp, parsed.Level, parsed.Message)
	if err != nil {
		s.logger.Warn("discarding line with malformed timestamp", "error", err)
		return
	}

	s.metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	s.router.Route(ctx, ev)
	s.advanceCursor(ctx, ev.Timestamp, cursor)
}

func (s *Supervisor) loadCursor(ctx context.Context) time.Time {
	if s.cursors == nil {
		return time.Time{}
	}
	ts, ok, err := s.cursors.Load(ctx, s.subject)
	if err != nil {
		s.logger.Warn("failed to load stream cursor, tailing from now", "error", err)
		return time.Time{}
	}
	if !ok {
		return time.Time{}
	}
	s.logger.Info("resuming stream from persisted cursor", "cursor", ts)
	return ts
}

func (s *Supervisor) advanceCursor(ctx context.Context, ts time.Time, cursor *time.Time) {
	if !ts.After(*cursor) {
		return
	}
	*cursor = ts
	if s.cursors == nil {
		return
	}
	if err := s.cursors.Save(ctx, s.subject, ts); err != nil {
		s.logger.Warn("failed to persist stream cursor", "error", err)
	}
}

func (s *Supervisor) checkVersion(ref domain.ContainerRef) {
	want := compatibleVersions[s.mode]
	if ref.Version == "" {
		s.logger.Warn("unable to verify workload version, hubble may not classify every line", "want", want)
		return
	}
	if ref.Version != want {
		s.logger.Warn("running an unverified workload version",
			"version", ref.Version,
			"verified_version", want,
		)
		return
	}
	s.logger.Info("workload version check passed", "version", ref.Version)
}

// sleep waits for d or until ctx is cancelled; it reports whether the full
// duration elapsed.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
