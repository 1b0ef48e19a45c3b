package domain

import (
	"context"
	"time"
)

// ContainerRef describes a located monitored container.
type ContainerRef struct {
	ID      string
	Image   string
	Version string
}

// LogStream is a live, line-oriented view of a container's output.
type LogStream interface {
	// Next returns the next raw line without its trailing newline, blocking
	// until one is available. A stream-level failure (disconnect, decode
	// error) surfaces here as a non-nil error; io.EOF means the stream ended
	// cleanly.
	Next() (string, error)

	Close() error
}

// ContainerRuntime abstracts the container engine the monitored process runs
// under. Implementations must tolerate being polled: Status reflects current
// liveness at call time, not a cached snapshot.
type ContainerRuntime interface {
	// Resolve locates the monitored container for the given mode. Failure to
	// locate is the pipeline's only fatal error (ErrContainerNotFound).
	Resolve(ctx context.Context, mode Mode) (ContainerRef, error)

	// Status returns the container's current status string (e.g. "running").
	Status(ctx context.Context, id string) (string, error)

	// Logs opens a live log stream. A zero since tails from now; otherwise
	// the stream replays output emitted at or after since.
	Logs(ctx context.Context, id string, since time.Time) (LogStream, error)
}

// EventSink is the Nexus backend collaborator. Every verb is independent,
// synchronous, and best-effort: a non-nil error (including a rejected
// *BackendError envelope) is logged by the caller and never retried.
type EventSink interface {
	// Hello probes backend connectivity.
	Hello(ctx context.Context) error

	// InsertFarmer registers the monitored subject by name.
	InsertFarmer(ctx context.Context, name string) error

	InsertEvent(ctx context.Context, ev Event) error
	InsertFarm(ctx context.Context, ev Event) error
	UpdateFarm(ctx context.Context, ev Event) error
	UpdateFarmer(ctx context.Context, ev Event) error
	InsertPlot(ctx context.Context, ev Event) error
	InsertReward(ctx context.Context, ev Event) error
	InsertConsensus(ctx context.Context, ev Event) error
	InsertClaim(ctx context.Context, ev Event) error
}

// Severity classifies an alert for presentation (embed color, etc.).
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier delivers operator alerts. Send is fire-and-forget: failures are
// logged by the caller and the alert is dropped, never queued or retried.
type Notifier interface {
	Send(ctx context.Context, title, message string, severity Severity) error
}

// CursorStore persists the last successfully processed event timestamp per
// subject, so a reconnecting supervisor can resume the stream without a gap.
// Replayed duplicates are tolerated; backend verbs are idempotent upserts.
type CursorStore interface {
	// Load returns the stored cursor and whether one exists.
	Load(ctx context.Context, subject string) (time.Time, bool, error)

	Save(ctx context.Context, subject string, ts time.Time) error

	Close() error
}
