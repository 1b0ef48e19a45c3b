package usecase

import (
	"regexp"

	"github.com/user/hubble/internal/domain"
)

// The two known line shapes, one per workload. Both carry
// timestamp / level / message; the Farmer shape tolerates missing separators
// after the timestamp, the Node shape requires whitespace runs between
// fields. Lines that match neither (multi-line continuations, panics, blank
// output) are expected and dropped silently.
var (
	farmerLinePattern = regexp.MustCompile(`^(?P<timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z)\s*(?P<level>\w+)\s*(?P<message>.*)$`)
	nodeLinePattern   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z)\s+(\w+)\s+(.*)$`)
)

// ParseLine splits a raw log line into (timestamp, level, message) using the
// mode's line shape. The second return value is false when the line does not
// match; that is not an error and must not be logged as one.
func ParseLine(raw string, mode domain.Mode) (domain.ParsedLine, bool) {
	pattern := nodeLinePattern
	if mode == domain.ModeFarmer {
		pattern = farmerLinePattern
	}

	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return domain.ParsedLine{}, false
	}
	return domain.ParsedLine{
		Timestamp: m[1],
		Level:     m[2],
		Message:   m[3],
	}, true
}
