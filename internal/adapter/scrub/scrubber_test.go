package scrub

import "testing"

func TestScrubber(t *testing.T) {
	s := New()

	t.Run("Plain Line Unchanged", func(t *testing.T) {
		line := "2024-05-01T10:00:00.123456Z INFO Plotting sector farm_index=2"
		if got := s.Scrub(line); got != line {
			t.Errorf("plain line modified: %q", got)
		}
	})

	t.Run("Color Codes Removed", func(t *testing.T) {
		line := "\x1b[32mINFO\x1b[0m Successfully signed reward hash"
		want := "INFO Successfully signed reward hash"
		if got := s.Scrub(line); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Control Characters Dropped", func(t *testing.T) {
		line := "Idle (12 peers)\r\x00"
		want := "Idle (12 peers)"
		if got := s.Scrub(line); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Tab Preserved", func(t *testing.T) {
		line := "a\tb"
		if got := s.Scrub(line); got != line {
			t.Errorf("tab should survive, got %q", got)
		}
	})
}
