package nexus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/hubble/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInsertEventPostsEnvelope(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "stored"})
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger())
	ev := domain.Event{
		ID:          "abc",
		Type:        domain.EventReward,
		Timestamp:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Level:       "INFO",
		SubjectName: "barn",
	}

	if err := c.InsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if gotPath != "/insert/event" {
		t.Errorf("path = %q, want /insert/event", gotPath)
	}
	if gotBody["event_type"] != string(domain.EventReward) {
		t.Errorf("event_type = %v, want %q", gotBody["event_type"], domain.EventReward)
	}
	if gotBody["subject_name"] != "barn" {
		t.Errorf("subject_name = %v, want barn", gotBody["subject_name"])
	}
}

func TestRejectedEnvelopeBecomesBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "duplicate event"})
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger())
	err := c.InsertReward(context.Background(), domain.Event{Type: domain.EventReward})

	var backendErr *domain.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("err = %v, want *domain.BackendError", err)
	}
	if backendErr.Verb != "insert_reward" {
		t.Errorf("verb = %q, want insert_reward", backendErr.Verb)
	}
	if backendErr.Message != "duplicate event" {
		t.Errorf("message = %q, want duplicate event", backendErr.Message)
	}
}

func TestHelloChecksStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Hi"})
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger())
	if err := c.Hello(context.Background()); err != nil {
		t.Fatalf("Hello: %v", err)
	}

	down := New(srv.URL+"/missing", testLogger())
	if err := down.Hello(context.Background()); err == nil {
		t.Fatal("Hello against wrong path succeeded, want error")
	}
}

func TestInsertFarmerSendsName(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "registered"})
	}))
	defer srv.Close()

	c := New(srv.URL, testLogger(), WithTimeout(2*time.Second))
	if err := c.InsertFarmer(context.Background(), "barn"); err != nil {
		t.Fatalf("InsertFarmer: %v", err)
	}
	if gotBody["farmer_name"] != "barn" {
		t.Errorf("farmer_name = %q, want barn", gotBody["farmer_name"])
	}
}
