package domain

import (
	"time"
)

// Mode identifies which monitored workload a pipeline instance is attached to.
// The two modes emit the same logical log fields but differ in line shape and
// in which event types can occur.
type Mode string

const (
	ModeNode   Mode = "Node"
	ModeFarmer Mode = "Farmer"
)

// Valid reports whether the mode is one of the two known workloads.
func (m Mode) Valid() bool {
	return m == ModeNode || m == ModeFarmer
}

// ParsedLine is the structured form of a raw log line: an ISO-8601 UTC
// timestamp with sub-second precision, a level token, and the free-form
// remainder of the line.
type ParsedLine struct {
	Timestamp string
	Level     string
	Message   string
}

// EventType is the closed set of classified log meanings.
type EventType string

const (
	EventPlottingSector          EventType = "Plotting Sector"
	EventPieceCacheSync          EventType = "Piece Cache Sync"
	EventPlottingPaused          EventType = "Plotting Paused"
	EventPlottingResumed         EventType = "Plotting Resumed"
	EventFinishedPieceCacheSync  EventType = "Finished Piece Cache Sync"
	EventReward                  EventType = "Reward"
	EventNewFarmIdentified       EventType = "New Farm Identified"
	EventSynchronizingPieceCache EventType = "Synchronizing Piece Cache"
	EventReplottingSector        EventType = "Replotting Sector"
	EventReplottingComplete      EventType = "Replotting Complete"
	EventFailedToSendSolution    EventType = "Failed to Send Solution"
	EventStartingWorkers         EventType = "Starting Workers"
	EventFarmID                  EventType = "Farm ID"
	EventFarmPublicKey           EventType = "Farm Public Key"
	EventFarmAllocatedSpace      EventType = "Farm Allocated Space"
	EventFarmDirectory           EventType = "Farm Directory"
	EventPlottingComplete        EventType = "Plotting Complete"
	EventIdleNode                EventType = "Idle Node"
	EventClaimedVote             EventType = "Claimed Vote"
	EventClaimedBlock            EventType = "Claimed Block"

	// EventUnknown means no needle in the pattern table matched the message.
	EventUnknown EventType = "Unknown"
	// EventUnparsed means a needle matched but structured extraction failed.
	EventUnparsed EventType = "Unparsed"
)

// Classified reports whether the event carries a real classification, as
// opposed to the Unknown/Unparsed diagnostics buckets.
func (t EventType) Classified() bool {
	return t != EventUnknown && t != EventUnparsed
}

// Event is an immutable classified log event. It is created once by the
// classifier and only read afterwards; AgeMinutes is fixed at classification
// time and reflects processing latency as well as log age.
type Event struct {
	ID          string         `json:"event_id"`
	Type        EventType      `json:"event_type"`
	Timestamp   time.Time      `json:"event_datetime"`
	Level       string         `json:"level"`
	AgeMinutes  int            `json:"age_minutes"`
	SubjectName string         `json:"subject_name"`
	Payload     map[string]any `json:"data,omitempty"`
}
