// Package demand rolls in-flight candidate counts up to the owner's whole portfolio.
package demand

import (
	"fmt"
	"sort"
	"strings"

	"pipeline-oracle/internal/funnel"
)

// Scope says how far demand was aggregated.
type Scope string

const (
	ScopeSingleReq         Scope = "single_req"
	ScopeGlobalByRecruiter Scope = "global_by_recruiter"
	ScopeGlobalByHM        Scope = "global_by_hm"
)

// Requisition is an open or closed role and its owners.
type Requisition struct {
	ID          string `json:"id"`
	RecruiterID string `json:"recruiter_id,omitempty"`
	HMID        string `json:"hm_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

// IsOpen treats an empty status as open.
func (r Requisition) IsOpen() bool {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case "", "open", "active", "on_hold":
		return true
	}
	return false
}

// CandidateRecord is a candidate attached to a requisition.
type CandidateRecord struct {
	ID    string       `json:"id"`
	ReqID string       `json:"req_id"`
	Stage funnel.Stage `json:"stage"`
}

// GlobalDemand is the demand picture handed to the capacity penalty engine.
// PortfolioByStage belongs to the scope owner. RecruiterByStage and HMByStage are set
// whenever the respective owner is known, so each stage can be charged to its own owner.
type GlobalDemand struct {
	Scope               Scope                `json:"demand_scope"`
	OwnerID             string               `json:"owner_id,omitempty"`
	SelectedReqID       string               `json:"selected_req_id"`
	SelectedByStage     map[funnel.Stage]int `json:"selected_req_by_stage"`
	PortfolioByStage    map[funnel.Stage]int `json:"portfolio_by_stage"`
	RecruiterByStage    map[funnel.Stage]int `json:"recruiter_portfolio_by_stage,omitempty"`
	HMByStage           map[funnel.Stage]int `json:"hm_portfolio_by_stage,omitempty"`
	RequisitionsCounted []string             `json:"requisitions_counted"`
	Confidence          funnel.Confidence    `json:"confidence"`
	ConfidenceReasons   []string             `json:"confidence_reasons"`
}

// StageDemand returns the demand a stage's owner faces. Recruiter stages count the
// recruiter's portfolio, HM stages the hiring manager's, and shared stages the larger of
// the two. Without a per-owner count the scope owner's portfolio is used.
func (gd GlobalDemand) StageDemand(stage funnel.Stage, owner funnel.OwnerType) int {
	recruiter := gd.PortfolioByStage[stage]
	if gd.RecruiterByStage != nil {
		recruiter = gd.RecruiterByStage[stage]
	}
	hm := gd.PortfolioByStage[stage]
	if gd.HMByStage != nil {
		hm = gd.HMByStage[stage]
	}

	switch owner {
	case funnel.OwnerRecruiter:
		return recruiter
	case funnel.OwnerHM:
		return hm
	case funnel.OwnerBoth:
		return max(recruiter, hm)
	}
	return gd.PortfolioByStage[stage]
}

// ResolveScope prefers the recruiter, whose portfolio is usually the larger one, over the HM.
func ResolveScope(recruiterID, hmID string) (Scope, string) {
	if id := strings.TrimSpace(recruiterID); id != "" {
		return ScopeGlobalByRecruiter, id
	}
	if id := strings.TrimSpace(hmID); id != "" {
		return ScopeGlobalByHM, id
	}
	return ScopeSingleReq, ""
}

// Aggregate counts active candidates per stage for the selected requisition and for every
// open requisition of each known owner. Hired, rejected and withdrawn candidates are not
// demand.
func Aggregate(selectedReqID, recruiterID, hmID string, candidates []CandidateRecord, reqs []Requisition) GlobalDemand {
	scope, ownerID := ResolveScope(recruiterID, hmID)

	gd := GlobalDemand{
		Scope:           scope,
		OwnerID:         ownerID,
		SelectedReqID:   selectedReqID,
		SelectedByStage: make(map[funnel.Stage]int),
		Confidence:      funnel.ConfidenceHigh,
	}

	for _, c := range candidates {
		if c.ReqID == selectedReqID && !c.Stage.IsTerminal() {
			gd.SelectedByStage[c.Stage]++
		}
	}

	if scope == ScopeSingleReq {
		gd.PortfolioByStage = make(map[funnel.Stage]int, len(gd.SelectedByStage))
		for s, n := range gd.SelectedByStage {
			gd.PortfolioByStage[s] = n
		}
		gd.RequisitionsCounted = []string{selectedReqID}
		gd.Confidence = funnel.ConfidenceLow
		gd.ConfidenceReasons = []string{
			"Neither recruiter nor hiring manager is known; demand covers the selected requisition only and understates the owner's true workload",
		}
		return gd
	}

	if id := strings.TrimSpace(recruiterID); id != "" {
		p := gd.countPortfolio(ScopeGlobalByRecruiter, id, candidates, reqs)
		gd.RecruiterByStage = p.byStage
		if scope == ScopeGlobalByRecruiter {
			gd.PortfolioByStage = p.byStage
			gd.RequisitionsCounted = p.reqIDs
		}
	}
	if id := strings.TrimSpace(hmID); id != "" {
		p := gd.countPortfolio(ScopeGlobalByHM, id, candidates, reqs)
		gd.HMByStage = p.byStage
		if scope == ScopeGlobalByHM {
			gd.PortfolioByStage = p.byStage
			gd.RequisitionsCounted = p.reqIDs
		}
	}

	return gd
}

type portfolio struct {
	byStage map[funnel.Stage]int
	reqIDs  []string
}

// countPortfolio counts one owner's open requisitions plus the selected one, recording
// a confidence reason for the owner.
func (gd *GlobalDemand) countPortfolio(scope Scope, ownerID string, candidates []CandidateRecord, reqs []Requisition) portfolio {
	owned := make(map[string]bool)
	selectedOwned := false
	for _, r := range reqs {
		if !r.IsOpen() || !ownedBy(r, scope, ownerID) {
			continue
		}
		owned[r.ID] = true
		if r.ID == gd.SelectedReqID {
			selectedOwned = true
		}
	}

	if !selectedOwned {
		owned[gd.SelectedReqID] = true
		gd.Confidence = funnel.MinConfidence(gd.Confidence, funnel.ConfidenceMedium)
		gd.ConfidenceReasons = append(gd.ConfidenceReasons,
			fmt.Sprintf("Selected requisition %s is not listed as an open requisition of %s; counted anyway", gd.SelectedReqID, ownerID))
	}

	p := portfolio{byStage: make(map[funnel.Stage]int)}
	for _, c := range candidates {
		if owned[c.ReqID] && !c.Stage.IsTerminal() {
			p.byStage[c.Stage]++
		}
	}
	for id := range owned {
		p.reqIDs = append(p.reqIDs, id)
	}
	sort.Strings(p.reqIDs)

	owner := "recruiter"
	if scope == ScopeGlobalByHM {
		owner = "hiring manager"
	}
	gd.ConfidenceReasons = append(gd.ConfidenceReasons,
		fmt.Sprintf("Demand aggregated across %d open requisitions of %s %s", len(p.reqIDs), owner, ownerID))
	return p
}

// Total sums a per-stage count map.
func Total(byStage map[funnel.Stage]int) int {
	total := 0
	for _, n := range byStage {
		total += n
	}
	return total
}

func ownedBy(r Requisition, scope Scope, ownerID string) bool {
	switch scope {
	case ScopeGlobalByRecruiter:
		return strings.TrimSpace(r.RecruiterID) == ownerID
	case ScopeGlobalByHM:
		return strings.TrimSpace(r.HMID) == ownerID
	}
	return false
}
