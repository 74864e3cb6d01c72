// Package eventlog stores candidate stage movements exported from an applicant tracking
// system and projects them into forecast inputs.
package eventlog

import (
	"fmt"

	"pipeline-oracle/internal/funnel"
)

// EventType defines the objective nature of a candidate state change.
type EventType string

const (
	// Applied indicates the candidate entered the funnel.
	Applied EventType = "Applied"
	// Advanced indicates a move to a later funnel stage.
	Advanced EventType = "Advanced"
	// Closed indicates the candidate reached HIRED, REJECTED or WITHDRAWN.
	Closed EventType = "Closed"
)

// StageEvent represents a single candidate stage change. It is the primary unit of the
// event-sourced log.
type StageEvent struct {
	CandidateID string `json:"candidateId"`
	ReqID       string `json:"reqId"`
	// RecruiterID and HMID are the owners of the requisition when the event happened.
	RecruiterID string    `json:"recruiterId,omitempty"`
	HMID        string    `json:"hmId,omitempty"`
	EventType   EventType `json:"eventType"`
	// Timestamp is when the move happened (Unix microseconds).
	Timestamp int64 `json:"ts"`

	FromStage funnel.Stage `json:"fromStage,omitempty"`
	ToStage   funnel.Stage `json:"toStage"`
}

// TypeFor classifies a move into a stage.
func TypeFor(from, to funnel.Stage) EventType {
	switch {
	case to.IsTerminal():
		return Closed
	case from == "":
		return Applied
	default:
		return Advanced
	}
}

func (e StageEvent) identity() string {
	return fmt.Sprintf("%s|%s|%d|%s", e.ReqID, e.CandidateID, e.Timestamp, e.ToStage)
}
