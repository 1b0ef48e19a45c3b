// Package nexus implements the event sink against the Nexus REST backend.
package nexus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/hubble/internal/domain"
)

const defaultTimeout = 10 * time.Second

// envelope is the response body every Nexus endpoint returns.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client is a domain.EventSink over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hello probes backend reachability.
func (c *Client) Hello(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/hello", nil)
	if err != nil {
		return fmt.Errorf("hello: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hello: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// InsertFarmer registers the monitored subject with the backend.
func (c *Client) InsertFarmer(ctx context.Context, name string) error {
	return c.post(ctx, "insert_farmer", "/insert/farmer", map[string]string{"farmer_name": name})
}

func (c *Client) InsertEvent(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "insert_event", "/insert/event", ev)
}

func (c *Client) InsertFarm(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "insert_farm", "/insert/farm", ev)
}

func (c *Client) UpdateFarm(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "update_farm", "/update/farm", ev)
}

func (c *Client) UpdateFarmer(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "update_farmer", "/update/farmer", ev)
}

func (c *Client) InsertPlot(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "insert_plot", "/insert/plot", ev)
}

func (c *Client) InsertReward(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "insert_reward", "/insert/reward", ev)
}

func (c *Client) InsertConsensus(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "insert_consensus", "/consensus", ev)
}

func (c *Client) InsertClaim(ctx context.Context, ev domain.Event) error {
	return c.post(ctx, "insert_claim", "/claims", ev)
}

func (c *Client) post(ctx context.Context, verb, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode payload: %w", verb, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", verb, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", verb, err)
	}
	defer drain(resp.Body)

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response (status %d): %w", verb, resp.StatusCode, err)
	}
	if !env.Success {
		return &domain.BackendError{Verb: verb, Message: env.Message}
	}

	c.logger.Debug("backend call succeeded", "verb", verb, "message", env.Message)
	return nil
}

// drain reads the body to completion so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
