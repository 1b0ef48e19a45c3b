package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/user/hubble/internal/adapter/metrics"
	"github.com/user/hubble/internal/domain"
	"github.com/user/hubble/internal/domain/mocks"
	"github.com/user/hubble/internal/pkg/ratelimit"
)

func recentLine(message string) string {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
	return ts + " INFO " + message
}

func testSupervisor(rt *mocks.MockContainerRuntime, sink *mocks.MockEventSink, notifier *mocks.MockNotifier, cursors domain.CursorStore) *Supervisor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())
	limiter := ratelimit.New(10, time.Minute)
	router := NewRouter(sink, notifier, limiter, 50, m, logger)
	s := NewSupervisor(rt, NewClassifier(), router, cursors, "barn-01", domain.ModeFarmer, m, logger)
	s.idlePollInterval = time.Millisecond
	s.streamBackoff = time.Millisecond
	return s
}

// runUntil runs the supervisor in the background and cancels it once cond
// holds (or the deadline passes).
func runUntil(t *testing.T, s *Supervisor, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("condition not reached before deadline")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("supervisor returned error: %v", err)
	}
}

func TestSupervisorRun(t *testing.T) {
	t.Run("Locate Failure Is Fatal", func(t *testing.T) {
		rt := &mocks.MockContainerRuntime{ResolveErr: domain.ErrContainerNotFound}
		s := testSupervisor(rt, &mocks.MockEventSink{}, &mocks.MockNotifier{}, &mocks.MockCursorStore{})

		err := s.Run(context.Background())
		if !errors.Is(err, domain.ErrContainerNotFound) {
			t.Fatalf("expected ErrContainerNotFound, got %v", err)
		}
	})

	t.Run("Lines Flow Through To The Backend", func(t *testing.T) {
		rt := &mocks.MockContainerRuntime{
			Ref:      domain.ContainerRef{ID: "c1", Image: "subspace/farmer:latest", Version: "gemini-3h-2024-mar-29"},
			Statuses: []string{"running"},
			Streams: []*mocks.ScriptedStream{
				{Lines: []string{
					recentLine("Single disk farm 0:"),
					"thread panic: not a log line",
					recentLine("Successfully signed reward hash farm_index=0 hash 0xdeadbeef"),
				}},
				{}, // subsequent reconnects idle on an empty stream
			},
		}
		sink := &mocks.MockEventSink{}
		notifier := &mocks.MockNotifier{}
		s := testSupervisor(rt, sink, notifier, &mocks.MockCursorStore{})

		runUntil(t, s, func() bool { return len(sink.CallVerbs()) >= 4 })

		verbs := sink.CallVerbs()[:4]
		want := []string{"insert_event", "insert_farm", "insert_event", "insert_reward"}
		for i, v := range want {
			if verbs[i] != v {
				t.Fatalf("verb %d = %q, want %q (all: %v)", i, verbs[i], v, verbs)
			}
		}
		if len(notifier.Sent()) == 0 {
			t.Error("expected at least the reward alert")
		}
	})

	t.Run("Waits While Container Not Running", func(t *testing.T) {
		rt := &mocks.MockContainerRuntime{
			Ref:      domain.ContainerRef{ID: "c1"},
			Statuses: []string{"exited", "exited", "running"},
			Streams: []*mocks.ScriptedStream{
				{Lines: []string{recentLine("pausing plotting")}},
				{},
			},
		}
		sink := &mocks.MockEventSink{}
		s := testSupervisor(rt, sink, &mocks.MockNotifier{}, &mocks.MockCursorStore{})

		runUntil(t, s, func() bool { return len(sink.CallVerbs()) >= 2 })

		if rt.StatusCount() < 3 {
			t.Errorf("expected status polling through the idle state, got %d calls", rt.StatusCount())
		}
	})

	t.Run("Stream Error Triggers Reconnect", func(t *testing.T) {
		rt := &mocks.MockContainerRuntime{
			Ref:      domain.ContainerRef{ID: "c1"},
			Statuses: []string{"running"},
			Streams: []*mocks.ScriptedStream{
				{Lines: []string{recentLine("resuming plotting")}, FinalErr: errors.New("connection reset")},
				{Lines: []string{recentLine("pausing plotting")}},
				{},
			},
		}
		sink := &mocks.MockEventSink{}
		s := testSupervisor(rt, sink, &mocks.MockNotifier{}, &mocks.MockCursorStore{})

		runUntil(t, s, func() bool { return len(sink.CallVerbs()) >= 4 })

		if rt.LogCount() < 2 {
			t.Errorf("expected a reconnect after the stream error, got %d opens", rt.LogCount())
		}
	})

	t.Run("Rotation Artifact Does Not Stop The Stream", func(t *testing.T) {
		rt := &mocks.MockContainerRuntime{
			Ref:      domain.ContainerRef{ID: "c1"},
			Statuses: []string{"running"},
			Streams: []*mocks.ScriptedStream{
				{Lines: []string{
					"Error grabbing logs: invalid character 'l' after object key:value pair",
					recentLine("pausing plotting"),
				}},
				{},
			},
		}
		sink := &mocks.MockEventSink{}
		s := testSupervisor(rt, sink, &mocks.MockNotifier{}, &mocks.MockCursorStore{})

		runUntil(t, s, func() bool { return len(sink.CallVerbs()) >= 2 })
	})

	t.Run("Cursor Persisted And Reused", func(t *testing.T) {
		cursors := &mocks.MockCursorStore{}
		rt := &mocks.MockContainerRuntime{
			Ref:      domain.ContainerRef{ID: "c1"},
			Statuses: []string{"running"},
			Streams: []*mocks.ScriptedStream{
				{Lines: []string{recentLine("pausing plotting")}},
				{},
			},
		}
		sink := &mocks.MockEventSink{}
		s := testSupervisor(rt, sink, &mocks.MockNotifier{}, cursors)

		runUntil(t, s, func() bool {
			_, ok, _ := cursors.Load(context.Background(), "barn-01")
			return ok && rt.LogCount() >= 2
		})

		// The first open is cold (zero since); after processing, reconnects
		// must resume from the persisted event timestamp.
		seen := rt.SinceValues()
		if len(seen) < 2 {
			t.Fatalf("expected at least two stream opens, got %d", len(seen))
		}
		if !seen[0].IsZero() {
			t.Errorf("cold start should tail from now, got since=%v", seen[0])
		}
		last := seen[len(seen)-1]
		if last.IsZero() {
			t.Error("reconnect should carry the persisted cursor")
		}
	})
}

func TestReconnectsExcludeTheFirstConnect(t *testing.T) {
	rt := &mocks.MockContainerRuntime{
		Ref:      domain.ContainerRef{ID: "c1"},
		Statuses: []string{"running"},
		Streams: []*mocks.ScriptedStream{
			{Lines: []string{recentLine("Single disk farm 0:")}},
			{},
		},
	}
	sink := &mocks.MockEventSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())
	limiter := ratelimit.New(10, time.Minute)
	router := NewRouter(sink, &mocks.MockNotifier{}, limiter, 50, m, logger)
	s := NewSupervisor(rt, NewClassifier(), router, &mocks.MockCursorStore{}, "barn-01", domain.ModeFarmer, m, logger)
	s.idlePollInterval = time.Millisecond
	s.streamBackoff = time.Millisecond

	runUntil(t, s, func() bool { return rt.LogCount() >= 3 })

	// The supervisor has exited, so the counts are stable.
	got := int(testutil.ToFloat64(m.ReconnectsTotal))
	want := rt.LogCount() - 1
	if got != want {
		t.Errorf("reconnects = %d, want %d for %d stream opens", got, want, rt.LogCount())
	}
}
