package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/hubble/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDiscordSendsEmbed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, testLogger())
	err := d.Send(context.Background(), "Reward", "reward won 🎉", domain.SeveritySuccess)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.Embeds))
	}
	if got.Embeds[0].Title != "Reward" {
		t.Errorf("title = %q, want Reward", got.Embeds[0].Title)
	}
	if got.Embeds[0].Color != severityColors[domain.SeveritySuccess] {
		t.Errorf("color = %d, want %d", got.Embeds[0].Color, severityColors[domain.SeveritySuccess])
	}
}

func TestDiscordRejectionIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, testLogger())
	if err := d.Send(context.Background(), "t", "m", domain.SeverityInfo); err == nil {
		t.Fatal("Send succeeded against a rejecting webhook, want error")
	}
}
