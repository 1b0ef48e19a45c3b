// Package notifier provides alert channel implementations.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/hubble/internal/domain"
)

// Embed colors per severity, in Discord's decimal color space.
var severityColors = map[domain.Severity]int{
	domain.SeverityInfo:    0x3498DB,
	domain.SeveritySuccess: 0x2ECC71,
	domain.SeverityWarning: 0xF1C40F,
	domain.SeverityError:   0xE74C3C,
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Discord posts alerts as webhook embeds.
type Discord struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDiscord(webhookURL string, logger *slog.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (d *Discord) Send(ctx context.Context, title, message string, severity domain.Severity) error {
	color, ok := severityColors[severity]
	if !ok {
		color = severityColors[domain.SeverityInfo]
	}

	body, err := json.Marshal(webhookPayload{
		Embeds: []embed{{Title: title, Description: message, Color: color}},
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected with status %d", resp.StatusCode)
	}

	d.logger.Debug("alert delivered", "title", title, "severity", severity)
	return nil
}
