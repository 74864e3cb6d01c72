package funnel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage identifies a discrete step of the hiring funnel.
type Stage string

const (
	StageApplied   Stage = "APPLIED"
	StageScreen    Stage = "SCREEN"
	StageHMScreen  Stage = "HM_SCREEN"
	StageOnsite    Stage = "ONSITE"
	StageDebrief   Stage = "DEBRIEF"
	StageOffer     Stage = "OFFER"
	StageHired     Stage = "HIRED"
	StageRejected  Stage = "REJECTED"
	StageWithdrawn Stage = "WITHDRAWN"
)

// IsTerminal reports whether a candidate in this stage has left the active pipeline.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageHired, StageRejected, StageWithdrawn:
		return true
	}
	return false
}

// OwnerType names the party whose throughput gates a stage.
type OwnerType string

const (
	OwnerNone      OwnerType = ""
	OwnerRecruiter OwnerType = "recruiter"
	OwnerHM        OwnerType = "hm"
	OwnerBoth      OwnerType = "both"
)

// Confidence is the coarse trust label attached to forecasts and capacity estimates.
// Ordering: LOW < MEDIUM < HIGH.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Less reports whether c is strictly less trustworthy than other.
func (c Confidence) Less(other Confidence) bool {
	return c.rank() < other.rank()
}

// MinConfidence returns the weakest of the supplied labels. No labels yields LOW.
func MinConfidence(levels ...Confidence) Confidence {
	if len(levels) == 0 {
		return ConfidenceLow
	}
	min := levels[0]
	for _, l := range levels[1:] {
		if l.Less(min) {
			min = l
		}
	}
	return min
}

// ParseConfidence accepts HIGH, MEDIUM, MED and LOW (case-insensitive).
// Capacity inference grades throughput with MED; both spellings map to MEDIUM.
func ParseConfidence(s string) (Confidence, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return ConfidenceHigh, nil
	case "MEDIUM", "MED":
		return ConfidenceMedium, nil
	case "LOW":
		return ConfidenceLow, nil
	}
	return "", fmt.Errorf("unknown confidence grade %q", s)
}

// UnmarshalJSON normalises MED to MEDIUM.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseConfidence(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Candidate is an immutable snapshot of an in-flight candidate.
type Candidate struct {
	ID    string `json:"id"`
	Stage Stage  `json:"stage"`
}
