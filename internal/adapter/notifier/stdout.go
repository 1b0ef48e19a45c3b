package notifier

import (
	"context"
	"log/slog"

	"github.com/user/hubble/internal/domain"
)

// Stdout logs alerts instead of delivering them. Used when no webhook is
// configured so the rest of the pipeline stays identical.
type Stdout struct {
	logger *slog.Logger
}

func NewStdout(logger *slog.Logger) *Stdout {
	return &Stdout{logger: logger}
}

func (s *Stdout) Send(ctx context.Context, title, message string, severity domain.Severity) error {
	s.logger.Info("alert", "title", title, "message", message, "severity", severity)
	return nil
}
