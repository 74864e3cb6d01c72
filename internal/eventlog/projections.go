package eventlog

import (
	"sort"
	"time"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/demand"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"

	"github.com/rs/zerolog/log"
)

// Residency is one completed stay of a candidate in a stage.
type Residency struct {
	CandidateID string
	ReqID       string
	RecruiterID string
	HMID        string
	Stage       funnel.Stage
	To          funnel.Stage
	EnteredAt   time.Time
	ExitedAt    time.Time
}

// CandidateState is a candidate's position at the reference date.
type CandidateState struct {
	CandidateID string
	ReqID       string
	RecruiterID string
	HMID        string
	Stage       funnel.Stage
	EnteredAt   time.Time
}

func candidateKey(reqID, candidateID string) string {
	return reqID + "|" + candidateID
}

// Replay walks chronologically sorted events up to asOf and returns every completed stage
// residency together with each candidate's state at asOf. A zero asOf replays everything.
func Replay(events []StageEvent, asOf time.Time) ([]Residency, map[string]CandidateState) {
	states := make(map[string]CandidateState)
	var residencies []Residency

	cut := asOf.UnixMicro()
	for _, e := range events {
		if !asOf.IsZero() && e.Timestamp > cut {
			continue
		}
		ts := time.UnixMicro(e.Timestamp).UTC()
		key := candidateKey(e.ReqID, e.CandidateID)

		if cur, ok := states[key]; ok {
			if e.FromStage != "" && e.FromStage != cur.Stage {
				log.Debug().Str("candidate", e.CandidateID).Str("tracked", string(cur.Stage)).Str("from", string(e.FromStage)).Msg("Event source stage disagrees with replay; trusting replay")
			}
			if !cur.Stage.IsTerminal() {
				residencies = append(residencies, Residency{
					CandidateID: cur.CandidateID,
					ReqID:       cur.ReqID,
					RecruiterID: cur.RecruiterID,
					HMID:        cur.HMID,
					Stage:       cur.Stage,
					To:          e.ToStage,
					EnteredAt:   cur.EnteredAt,
					ExitedAt:    ts,
				})
			}
		}

		states[key] = CandidateState{
			CandidateID: e.CandidateID,
			ReqID:       e.ReqID,
			RecruiterID: e.RecruiterID,
			HMID:        e.HMID,
			Stage:       e.ToStage,
			EnteredAt:   ts,
		}
	}
	return residencies, states
}

// Passed reports whether a residency ended with the candidate moving further down the
// funnel. Skipped stages count as passed.
func Passed(c *catalog.Catalog, r Residency) bool {
	if r.To == funnel.StageRejected || r.To == funnel.StageWithdrawn {
		return false
	}
	return c.Index(r.To) > c.Index(r.Stage)
}

// Failed reports whether a residency ended with the candidate leaving the funnel.
func Failed(r Residency) bool {
	return r.To == funnel.StageRejected || r.To == funnel.StageWithdrawn
}

// ConversionStats returns the observed pass rate and decided-outcome count of every
// transitional stage with at least one decided residency. Backward moves are ignored.
func ConversionStats(c *catalog.Catalog, residencies []Residency) (map[funnel.Stage]float64, map[funnel.Stage]int) {
	passed := make(map[funnel.Stage]int)
	decided := make(map[funnel.Stage]int)
	for _, r := range residencies {
		switch {
		case Passed(c, r):
			passed[r.Stage]++
			decided[r.Stage]++
		case Failed(r):
			decided[r.Stage]++
		}
	}

	observed := make(map[funnel.Stage]float64, len(decided))
	for s, n := range decided {
		observed[s] = float64(passed[s]) / float64(n)
	}
	return observed, decided
}

// StageDurations converts passing residencies into per-stage duration days, with the
// exclusions of malformed residencies.
func StageDurations(c *catalog.Catalog, residencies []Residency) (map[funnel.Stage][]float64, []durations.Exclusion) {
	byStage := make(map[funnel.Stage][]durations.Transition)
	for _, r := range residencies {
		if !Passed(c, r) {
			continue
		}
		byStage[r.Stage] = append(byStage[r.Stage], durations.Transition{
			CandidateID: r.CandidateID,
			EnteredAt:   r.EnteredAt,
			ExitedAt:    r.ExitedAt,
		})
	}

	out := make(map[funnel.Stage][]float64, len(byStage))
	var excluded []durations.Exclusion
	for _, s := range c.Transitional() {
		trs, ok := byStage[s]
		if !ok {
			continue
		}
		days, ex := durations.FromTransitions(s, trs)
		excluded = append(excluded, ex...)
		if len(days) > 0 {
			out[s] = days
		}
	}
	return out, excluded
}

// ActiveCandidates returns the non-terminal candidates of a requisition, sorted by ID.
func ActiveCandidates(states map[string]CandidateState, reqID string) []funnel.Candidate {
	var out []funnel.Candidate
	for _, st := range states {
		if st.ReqID == reqID && !st.Stage.IsTerminal() {
			out = append(out, funnel.Candidate{ID: st.CandidateID, Stage: st.Stage})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Portfolio returns every candidate record and requisition known at the reference date.
// A requisition with a hire is reported as filled.
func Portfolio(states map[string]CandidateState) ([]demand.CandidateRecord, []demand.Requisition) {
	type reqState struct {
		req    demand.Requisition
		latest time.Time
	}
	reqs := make(map[string]*reqState)

	var records []demand.CandidateRecord
	for _, st := range states {
		records = append(records, demand.CandidateRecord{ID: st.CandidateID, ReqID: st.ReqID, Stage: st.Stage})

		rs, ok := reqs[st.ReqID]
		if !ok {
			rs = &reqState{req: demand.Requisition{ID: st.ReqID, Status: "open"}}
			reqs[st.ReqID] = rs
		}
		if !st.EnteredAt.Before(rs.latest) {
			rs.latest = st.EnteredAt
			rs.req.RecruiterID = st.RecruiterID
			rs.req.HMID = st.HMID
		}
		if st.Stage == funnel.StageHired {
			rs.req.Status = "filled"
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].ReqID != records[j].ReqID {
			return records[i].ReqID < records[j].ReqID
		}
		return records[i].ID < records[j].ID
	})

	out := make([]demand.Requisition, 0, len(reqs))
	for _, rs := range reqs {
		out = append(out, rs.req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return records, out
}

// Thresholds for the confidence of an observed throughput.
const (
	HighConfidenceTransitions   = 20
	HighConfidenceWeeks         = 8
	MediumConfidenceTransitions = 8
)

// ThroughputConfidence grades an observed throughput by its evidence.
func ThroughputConfidence(transitions int, weeks float64) funnel.Confidence {
	switch {
	case transitions >= HighConfidenceTransitions && weeks >= HighConfidenceWeeks:
		return funnel.ConfidenceHigh
	case transitions >= MediumConfidenceTransitions:
		return funnel.ConfidenceMedium
	}
	return funnel.ConfidenceLow
}

// ProfileOptions scopes a capacity profile inference.
type ProfileOptions struct {
	RecruiterID string
	HMID        string
	AsOf        time.Time
	// WindowWeeks is the look-back over which decisions are counted.
	WindowWeeks float64
}

// BuildProfile infers a capacity profile from decided residencies: an owner's throughput
// for a stage is the number of candidates they moved out of it per week of the window.
// Cohort defaults average the same counts over every owner seen for the stage.
func BuildProfile(c *catalog.Catalog, residencies []Residency, opts ProfileOptions) *capacity.Profile {
	if opts.WindowWeeks <= 0 {
		opts.WindowWeeks = 12
	}
	start := opts.AsOf.Add(-time.Duration(opts.WindowWeeks * 7 * 24 * float64(time.Hour)))

	first := opts.AsOf
	recruiter := make(map[funnel.Stage]int)
	hm := make(map[funnel.Stage]int)
	cohort := make(map[funnel.Stage]int)
	owners := make(map[funnel.Stage]map[string]bool)

	for _, r := range residencies {
		if r.ExitedAt.Before(start) || r.ExitedAt.After(opts.AsOf) {
			continue
		}
		if !Passed(c, r) && !Failed(r) {
			continue
		}
		owner := c.Owner(r.Stage)
		if owner == funnel.OwnerNone {
			continue
		}
		if r.ExitedAt.Before(first) {
			first = r.ExitedAt
		}

		gate := r.RecruiterID
		if owner == funnel.OwnerHM {
			gate = r.HMID
		}
		if gate != "" {
			cohort[r.Stage]++
			if owners[r.Stage] == nil {
				owners[r.Stage] = make(map[string]bool)
			}
			owners[r.Stage][gate] = true
		}

		if (owner == funnel.OwnerRecruiter || owner == funnel.OwnerBoth) && opts.RecruiterID != "" && r.RecruiterID == opts.RecruiterID {
			recruiter[r.Stage]++
		}
		if (owner == funnel.OwnerHM || owner == funnel.OwnerBoth) && opts.HMID != "" && r.HMID == opts.HMID {
			hm[r.Stage]++
		}
	}

	weeks := opts.AsOf.Sub(first).Hours() / (24 * 7)
	weeks = min(opts.WindowWeeks, max(1, weeks))

	profile := &capacity.Profile{}
	var levels []funnel.Confidence
	for _, s := range c.Controllable() {
		if n := recruiter[s]; n > 0 {
			t := throughput(s, n, weeks)
			profile.Recruiter = append(profile.Recruiter, t)
			levels = append(levels, t.Confidence)
		}
		if n := hm[s]; n > 0 {
			t := throughput(s, n, weeks)
			profile.HM = append(profile.HM, t)
			levels = append(levels, t.Confidence)
		}
		if n := cohort[s]; n > 0 {
			t := throughput(s, n, weeks)
			t.ThroughputPerWeek = round2(t.ThroughputPerWeek / float64(len(owners[s])))
			profile.CohortDefault = append(profile.CohortDefault, t)
			if recruiter[s] == 0 && hm[s] == 0 {
				profile.UsedCohortFallback = true
			}
		}
	}

	if len(levels) == 0 {
		profile.OverallConfidence = funnel.ConfidenceLow
	} else {
		profile.OverallConfidence = funnel.MinConfidence(levels...)
	}
	return profile
}

func throughput(stage funnel.Stage, n int, weeks float64) capacity.Throughput {
	return capacity.Throughput{
		Stage:               stage,
		ThroughputPerWeek:   round2(float64(n) / weeks),
		WeeksAnalyzed:       round2(weeks),
		TransitionsObserved: n,
		Confidence:          ThroughputConfidence(n, weeks),
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
