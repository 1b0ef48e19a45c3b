package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/hubble/internal/domain"
)

// eventPattern is one entry of the ordered classification table. The needle
// is a cheap substring pre-filter; extract runs only on needle hits. A nil
// extract means the needle alone classifies the line.
type eventPattern struct {
	typ     domain.EventType
	needle  string
	extract *regexp.Regexp
	payload func(subject string, m []string) map[string]any
}

var (
	sectorProgressRe = regexp.MustCompile(`farm_index=(\d+).*?(\d+\.\d+)% complete.*?sector_index=(\d+)`)
	pieceCacheSyncRe = regexp.MustCompile(`Piece cache sync (\d+\.\d+)% complete`)
	rewardHashRe     = regexp.MustCompile(`farm_index=(\d+).*hash\s(0x[0-9a-fA-F]+)`)
	singleDiskFarmRe = regexp.MustCompile(`Single disk farm (\d+):`)
	farmIndexRe      = regexp.MustCompile(`farm_index=(\d+)`)
	startWorkersRe   = regexp.MustCompile(`starting (\d+) workers`)
	farmIDRe         = regexp.MustCompile(`farm_index=(\d+).*ID:\s+([A-Z0-9]+)`)
	publicKeyRe      = regexp.MustCompile(`farm_index=(\d+).*Public key:\s+(0x[a-fA-F0-9]+)`)
	allocatedSpaceRe = regexp.MustCompile(`farm_index=(\d+).*Allocated space:\s+([\d.]+)\s+(GiB|TiB|GB|TB)\s+\(([\d.]+)\s+(GiB|TiB|GB|TB)\)`)
	directoryRe      = regexp.MustCompile(`farm_index=(\d+).*Directory:\s+(.+)`)
	idleNodeRe       = regexp.MustCompile(`Idle \((\d+) peers\), best: #(\d+).*finalized #(\d+).*⬇ (\d+(?:\.\d+)?)(?:kiB|MiB)?/s ⬆ (\d+(?:\.\d+)?)(?:kiB|MiB)?/s`)
	slotRe           = regexp.MustCompile(`slot=(\d+)`)
)

// patternTable is consulted in index order; the first needle matching the
// message wins, even if a later needle would also match. Reordering entries
// changes classification for overlapping needles, so append-only extension
// is the safe default.
var patternTable = []eventPattern{
	{
		typ:     domain.EventPieceCacheSync,
		needle:  "Piece cache sync",
		extract: pieceCacheSyncRe,
		payload: func(subject string, m []string) map[string]any {
			return map[string]any{
				"percentage":  mustFloat(m[1]),
				"farmer_name": subject,
			}
		},
	},
	{
		typ:     domain.EventReplottingSector,
		needle:  "Replotting sector",
		extract: sectorProgressRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"farm_index": mustInt(m[1]),
				"percentage": mustFloat(m[2]),
				"sector":     mustInt(m[3]),
				"replot":     1,
			}
		},
	},
	{
		// Plotting progress lines are recognized by the progress fragment
		// itself, not the "Plotting sector" prefix, because the workload
		// also emits bare progress lines. The two entries above must stay
		// ahead of this one: replot and cache sync lines carry the same
		// fragment.
		typ:     domain.EventPlottingSector,
		needle:  "% complete",
		extract: sectorProgressRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"farm_index": mustInt(m[1]),
				"percentage": m[2],
				"sector":     mustInt(m[3]),
				"replot":     0,
			}
		},
	},
	{typ: domain.EventPlottingPaused, needle: "pausing plotting", payload: subjectPayload},
	{typ: domain.EventPlottingResumed, needle: "resuming plotting", payload: subjectPayload},
	{typ: domain.EventFinishedPieceCacheSync, needle: "Finished piece cache synchronization", payload: subjectPayload},
	{
		typ:     domain.EventReward,
		needle:  "Successfully signed reward hash",
		extract: rewardHashRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"farm_index": mustInt(m[1]),
				"hash":       m[2],
			}
		},
	},
	{
		typ:     domain.EventNewFarmIdentified,
		needle:  "Single disk farm",
		extract: singleDiskFarmRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{"farm_index": mustInt(m[1])}
		},
	},
	{typ: domain.EventSynchronizingPieceCache, needle: "Synchronizing piece cache", payload: subjectPayload},
	{
		typ:     domain.EventReplottingComplete,
		needle:  "Replotting complete",
		extract: farmIndexRe,
		payload: farmIndexPayload,
	},
	{
		typ:     domain.EventFailedToSendSolution,
		needle:  "Failed to send solution",
		extract: farmIndexRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"farm_index": mustInt(m[1]),
				"hash":       nil,
			}
		},
	},
	{
		typ:     domain.EventStartingWorkers,
		needle:  "actix_server::builder: starting",
		extract: startWorkersRe,
		payload: func(subject string, m []string) map[string]any {
			return map[string]any{
				"workers":     mustInt(m[1]),
				"farmer_name": subject,
			}
		},
	},
	{
		typ:     domain.EventFarmID,
		needle:  "ID:",
		extract: farmIDRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"farm_index": mustInt(m[1]),
				"farm_id":    m[2],
			}
		},
	},
	{
		typ:     domain.EventFarmPublicKey,
		needle:  "Public key:",
		extract: publicKeyRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"farm_index": mustInt(m[1]),
				"public_key": m[2],
			}
		},
	},
	{
		typ:     domain.EventFarmAllocatedSpace,
		needle:  "Allocated space:",
		extract: allocatedSpaceRe,
		payload: func(_ string, m []string) map[string]any {
			// TiB captures are converted to GiB; GiB/GB pass through
			// unconverted. This is the single unit-normalization rule in the
			// system.
			allocated := mustFloat(m[2])
			if m[3] == "TiB" {
				allocated *= 1024
			}
			return map[string]any{
				"farm_index":          mustInt(m[1]),
				"allocated_space_gib": allocated,
			}
		},
	},
	{
		typ:     domain.EventFarmDirectory,
		needle:  "Directory:",
		extract: directoryRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"farm_index": mustInt(m[1]),
				"directory":  m[2],
			}
		},
	},
	{
		typ:     domain.EventPlottingComplete,
		needle:  "Plotting complete",
		extract: farmIndexRe,
		payload: farmIndexPayload,
	},
	{
		typ:     domain.EventIdleNode,
		needle:  "Idle (",
		extract: idleNodeRe,
		payload: func(_ string, m []string) map[string]any {
			return map[string]any{
				"peers":      mustInt(m[1]),
				"best":       mustInt(m[2]),
				"finalized":  mustInt(m[3]),
				"down_speed": mustFloat(m[4]),
				"up_speed":   mustFloat(m[5]),
			}
		},
	},
	{
		typ:     domain.EventClaimedVote,
		needle:  "Claimed vote",
		extract: slotRe,
		payload: slotPayload,
	},
	{
		typ:     domain.EventClaimedBlock,
		needle:  "Claimed block",
		extract: slotRe,
		payload: slotPayload,
	},
}

func subjectPayload(subject string, _ []string) map[string]any {
	return map[string]any{"farmer_name": subject}
}

func farmIndexPayload(_ string, m []string) map[string]any {
	return map[string]any{"farm_index": mustInt(m[1])}
}

func slotPayload(_ string, m []string) map[string]any {
	return map[string]any{"slot": mustInt(m[1])}
}

// mustInt converts a capture that the regex guarantees is all digits.
func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// Classifier turns parsed log lines into typed events. It is stateless; the
// only input besides its arguments is the wall clock, sampled at
// classification time so event age reflects processing latency too.
type Classifier struct {
	now func() time.Time
}

// NewClassifier creates a Classifier using the system clock.
func NewClassifier() *Classifier {
	return &Classifier{now: time.Now}
}

// Classify matches the message against the pattern table and builds a typed
// event. No needle match yields an Unknown event; a needle match whose
// extraction fails yields an Unparsed event. The only error condition is a
// malformed timestamp.
func (c *Classifier) Classify(subject, timestamp, level, message string) (domain.Event, error) {
	ts, err := parseLogTimestamp(timestamp)
	if err != nil {
		return domain.Event{}, &domain.TimestampFormatError{Raw: timestamp, Err: err}
	}

	ev := domain.Event{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		Level:       level,
		AgeMinutes:  ageMinutes(c.now(), ts),
		SubjectName: subject,
	}

	for _, p := range patternTable {
		if !strings.Contains(message, p.needle) {
			continue
		}
		if p.extract != nil {
			m := p.extract.FindStringSubmatch(message)
			if m == nil {
				ev.Type = domain.EventUnparsed
				ev.Payload = map[string]any{"log": message}
				return ev, nil
			}
			ev.Type = p.typ
			ev.Payload = p.payload(subject, m)
			return ev, nil
		}
		ev.Type = p.typ
		ev.Payload = p.payload(subject, nil)
		return ev, nil
	}

	ev.Type = domain.EventUnknown
	ev.Payload = map[string]any{"log": message}
	return ev, nil
}

// parseLogTimestamp normalizes an ISO-8601 UTC timestamp to millisecond
// precision (truncating any extra fractional digits) and parses it.
func parseLogTimestamp(raw string) (time.Time, error) {
	trimmed := strings.TrimSuffix(raw, "Z")
	base, frac, ok := strings.Cut(trimmed, ".")
	if !ok || frac == "" {
		return time.Parse("2006-01-02T15:04:05", trimmed)
	}
	if len(frac) > 3 {
		frac = frac[:3]
	}
	return time.Parse("2006-01-02T15:04:05.999", base+"."+frac)
}

// ageMinutes is the event's age in whole minutes at processing time.
func ageMinutes(now, ts time.Time) int {
	return int(math.Round(now.Sub(ts).Seconds() / 60))
}
