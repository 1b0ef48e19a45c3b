package mocks

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/user/hubble/internal/domain"
)

// SinkCall records one backend verb invocation.
type SinkCall struct {
	Verb  string
	Event domain.Event
}

// MockEventSink is a mock implementation of domain.EventSink for testing.
type MockEventSink struct {
	mu    sync.Mutex
	Calls []SinkCall

	// Errs maps a verb name to the error its calls should return.
	Errs map[string]error

	HelloErr      error
	FarmerNames   []string
	InsertFarmerE error
}

func (m *MockEventSink) record(verb string, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, SinkCall{Verb: verb, Event: ev})
	if m.Errs != nil {
		return m.Errs[verb]
	}
	return nil
}

// CallVerbs returns the verbs invoked so far, in order.
func (m *MockEventSink) CallVerbs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	verbs := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		verbs[i] = c.Verb
	}
	return verbs
}

func (m *MockEventSink) Hello(ctx context.Context) error {
	return m.HelloErr
}

func (m *MockEventSink) InsertFarmer(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FarmerNames = append(m.FarmerNames, name)
	return m.InsertFarmerE
}

func (m *MockEventSink) InsertEvent(ctx context.Context, ev domain.Event) error {
	return m.record("insert_event", ev)
}

func (m *MockEventSink) InsertFarm(ctx context.Context, ev domain.Event) error {
	return m.record("insert_farm", ev)
}

func (m *MockEventSink) UpdateFarm(ctx context.Context, ev domain.Event) error {
	return m.record("update_farm", ev)
}

func (m *MockEventSink) UpdateFarmer(ctx context.Context, ev domain.Event) error {
	return m.record("update_farmer", ev)
}

func (m *MockEventSink) InsertPlot(ctx context.Context, ev domain.Event) error {
	return m.record("insert_plot", ev)
}

func (m *MockEventSink) InsertReward(ctx context.Context, ev domain.Event) error {
	return m.record("insert_reward", ev)
}

func (m *MockEventSink) InsertConsensus(ctx context.Context, ev domain.Event) error {
	return m.record("insert_consensus", ev)
}

func (m *MockEventSink) InsertClaim(ctx context.Context, ev domain.Event) error {
	return m.record("insert_claim", ev)
}

// SentAlert records one notifier invocation.
type SentAlert struct {
	Title    string
	Message  string
	Severity domain.Severity
}

// MockNotifier is a mock implementation of domain.Notifier for testing.
type MockNotifier struct {
	mu      sync.Mutex
	Alerts  []SentAlert
	SendErr error
}

func (m *MockNotifier) Send(ctx context.Context, title, message string, severity domain.Severity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Alerts = append(m.Alerts, SentAlert{Title: title, Message: message, Severity: severity})
	return nil
}

// Sent returns a copy of the alerts delivered so far.
func (m *MockNotifier) Sent() []SentAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentAlert, len(m.Alerts))
	copy(out, m.Alerts)
	return out
}

// ScriptedStream yields a fixed set of lines, then a terminal error (io.EOF
// by default). It implements domain.LogStream.
type ScriptedStream struct {
	mu       sync.Mutex
	Lines    []string
	FinalErr error
	pos      int
	Closed   bool
}

func (s *ScriptedStream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.Lines) {
		if s.FinalErr != nil {
			return "", s.FinalErr
		}
		return "", io.EOF
	}
	line := s.Lines[s.pos]
	s.pos++
	return line, nil
}

func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// MockContainerRuntime is a mock implementation of domain.ContainerRuntime.
// Statuses is consumed one entry per Status call, the last entry repeating;
// Streams is consumed one entry per Logs call, the last entry repeating.
type MockContainerRuntime struct {
	mu         sync.Mutex
	Ref        domain.ContainerRef
	ResolveErr error
	Statuses   []string
	StatusErr  error
	Streams    []*ScriptedStream
	LogsErr    error

	StatusCalls int
	LogsCalls   int
	SinceSeen   []time.Time
}

// StatusCount returns how many times Status was called.
func (m *MockContainerRuntime) StatusCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StatusCalls
}

// LogCount returns how many times Logs was called.
func (m *MockContainerRuntime) LogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LogsCalls
}

// SinceValues returns a copy of the since arguments seen by Logs.
func (m *MockContainerRuntime) SinceValues() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, len(m.SinceSeen))
	copy(out, m.SinceSeen)
	return out
}

func (m *MockContainerRuntime) Resolve(ctx context.Context, mode domain.Mode) (domain.ContainerRef, error) {
	if m.ResolveErr != nil {
		return domain.ContainerRef{}, m.ResolveErr
	}
	return m.Ref, nil
}

func (m *MockContainerRuntime) Status(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatusErr != nil {
		return "", m.StatusErr
	}
	idx := m.StatusCalls
	m.StatusCalls++
	if idx >= len(m.Statuses) {
		idx = len(m.Statuses) - 1
	}
	if idx < 0 {
		return "running", nil
	}
	return m.Statuses[idx], nil
}

func (m *MockContainerRuntime) Logs(ctx context.Context, id string, since time.Time) (domain.LogStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SinceSeen = append(m.SinceSeen, since)
	if m.LogsErr != nil {
		return nil, m.LogsErr
	}
	idx := m.LogsCalls
	m.LogsCalls++
	if idx >= len(m.Streams) {
		idx = len(m.Streams) - 1
	}
	if idx < 0 {
		return &ScriptedStream{}, nil
	}
	return m.Streams[idx], nil
}

// MockCursorStore is an in-memory domain.CursorStore.
type MockCursorStore struct {
	mu      sync.Mutex
	Cursors map[string]time.Time
	LoadErr error
	SaveErr error
}

func (m *MockCursorStore) Load(ctx context.Context, subject string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return time.Time{}, false, m.LoadErr
	}
	ts, ok := m.Cursors[subject]
	return ts, ok, nil
}

func (m *MockCursorStore) Save(ctx context.Context, subject string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.Cursors == nil {
		m.Cursors = make(map[string]time.Time)
	}
	m.Cursors[subject] = ts
	return nil
}

func (m *MockCursorStore) Close() error { return nil }
