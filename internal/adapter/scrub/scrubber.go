package scrub

import (
	"regexp"
	"strings"
)

// ansiEscape matches CSI/OSC terminal escape sequences. Both workloads write
// colored output when attached to a TTY, and the classifier's needles must
// see plain text.
var ansiEscape = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\))`)

// Scrubber strips terminal escape sequences and non-printable control
// characters from raw log lines before parsing.
type Scrubber struct{}

// New creates a Scrubber.
func New() *Scrubber {
	return &Scrubber{}
}

// Scrub returns the line with ANSI escape sequences removed and control
// characters (other than tab) dropped.
func (s *Scrubber) Scrub(line string) string {
	cleaned := ansiEscape.ReplaceAllString(line, "")
	if !strings.ContainsFunc(cleaned, isControl) {
		return cleaned
	}

	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		if !isControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return (r < 32 && r != '\t') || r == 127
}
