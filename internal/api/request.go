// Package api defines the JSON documents exchanged with the CLI and the MCP tools, and
// maps them onto the oracle's domain types.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/demand"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/knobs"
	"pipeline-oracle/internal/oracle"

	"github.com/google/jsonschema-go/jsonschema"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// ErrInvalidRequest wraps schema and mapping failures.
var ErrInvalidRequest = errors.New("invalid request")

// KnobsRequest carries the what-if preset labels.
type KnobsRequest struct {
	PriorWeight   string `json:"prior_weight,omitempty" jsonschema:"prior strength preset: low, medium or high"`
	MinNThreshold string `json:"min_n_threshold,omitempty" jsonschema:"duration fit sample gate: relaxed, standard or strict"`
	Iterations    int    `json:"iterations,omitempty" jsonschema:"Monte-Carlo iterations between 1000 and 10000"`
}

// ForecastRequest is one requisition's forecast input document.
type ForecastRequest struct {
	ReqID               string                   `json:"req_id" jsonschema:"requisition identifier"`
	RecruiterID         string                   `json:"recruiter_id,omitempty" jsonschema:"recruiter owning the requisition; selects portfolio demand"`
	HMID                string                   `json:"hm_id,omitempty" jsonschema:"hiring manager owning the requisition; used when no recruiter is given"`
	AsOf                string                   `json:"as_of" jsonschema:"forecast start date (YYYY-MM-DD or RFC 3339)"`
	Seed                string                   `json:"seed,omitempty" jsonschema:"seed string; identical seeds reproduce identical forecasts. Defaults to req_id"`
	Knobs               *KnobsRequest            `json:"knobs,omitempty" jsonschema:"what-if presets; defaults are medium, standard, 1000"`
	Parameters          oracle.Parameters        `json:"parameters" jsonschema:"observed stage conversion rates, duration models and sample sizes"`
	Pipeline            []funnel.Candidate       `json:"pipeline" jsonschema:"in-flight candidates of this requisition with their current stage"`
	CapacityProfile     *capacity.Profile        `json:"capacity_profile,omitempty" jsonschema:"recruiter, hiring manager and cohort weekly throughput per stage"`
	Requisitions        []demand.Requisition     `json:"requisitions,omitempty" jsonschema:"requisitions of the owner's portfolio"`
	PortfolioCandidates []demand.CandidateRecord `json:"portfolio_candidates,omitempty" jsonschema:"active candidates across the owner's portfolio"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	resolved   *jsonschema.Resolved
	schemaErr  error
)

func loadSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.For[ForecastRequest](nil)
		if schemaErr != nil {
			return
		}
		schema.Title = "ForecastRequest"
		resolved, schemaErr = schema.Resolve(nil)
	})
	return resolved, schemaErr
}

// Schema returns the JSON schema of a ForecastRequest document.
func Schema() (*jsonschema.Schema, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return schema, nil
}

// DecodeForecastRequest validates raw JSON against the request schema and decodes it.
func DecodeForecastRequest(data []byte) (ForecastRequest, error) {
	var req ForecastRequest

	rs, err := loadSchema()
	if err != nil {
		return req, fmt.Errorf("request schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := rs.Validate(instance); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// ToOracle validates the knobs and date and builds the oracle request.
func (r ForecastRequest) ToOracle() (oracle.Request, error) {
	if strings.TrimSpace(r.ReqID) == "" {
		return oracle.Request{}, fmt.Errorf("%w: req_id is required", ErrInvalidRequest)
	}
	asOf, err := ParseDate(r.AsOf)
	if err != nil {
		return oracle.Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var k KnobsRequest
	if r.Knobs != nil {
		k = *r.Knobs
	}
	settings, err := knobs.Parse(k.PriorWeight, k.MinNThreshold, k.Iterations)
	if err != nil {
		return oracle.Request{}, err
	}

	seed := r.Seed
	if seed == "" {
		seed = r.ReqID
	}

	return oracle.Request{
		ReqID:               r.ReqID,
		RecruiterID:         r.RecruiterID,
		HMID:                r.HMID,
		AsOf:                asOf,
		Seed:                seed,
		Knobs:               settings,
		Params:              r.Parameters,
		Pipeline:            r.Pipeline,
		Profile:             r.CapacityProfile,
		Requisitions:        r.Requisitions,
		PortfolioCandidates: r.PortfolioCandidates,
	}, nil
}
