// Package catalog holds the static description of the hiring funnel: stage
// order, stage ownership, prior pass rates and population-level duration fits.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"pipeline-oracle/internal/funnel"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// LognormalFit parameterises a log-normal duration distribution in days.
type LognormalFit struct {
	Mu    float64 `yaml:"mu" json:"mu"`
	Sigma float64 `yaml:"sigma" json:"sigma"`
}

// StageDef describes one funnel stage.
type StageDef struct {
	ID             funnel.Stage     `yaml:"id" json:"id"`
	Owner          funnel.OwnerType `yaml:"owner,omitempty" json:"owner,omitempty"`
	PriorRate      float64          `yaml:"prior_rate,omitempty" json:"prior_rate,omitempty"`
	GlobalDuration *LognormalFit    `yaml:"global_duration,omitempty" json:"global_duration,omitempty"`
	ConstantDays   *float64         `yaml:"constant_days,omitempty" json:"constant_days,omitempty"`
}

// Catalog is the ordered stage list plus capacity defaults.
type Catalog struct {
	HorizonWeeks float64    `yaml:"horizon_weeks" json:"horizon_weeks"`
	Stages       []StageDef `yaml:"stages" json:"stages"`

	index map[funnel.Stage]int
}

// Default returns the embedded canonical funnel.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded stage catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog override from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("stage catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Stages) < 2 {
		return fmt.Errorf("catalog needs at least two stages, got %d", len(c.Stages))
	}
	if last := c.Stages[len(c.Stages)-1].ID; last != funnel.StageHired {
		return fmt.Errorf("last stage must be %s, got %s", funnel.StageHired, last)
	}
	if c.HorizonWeeks <= 0 {
		c.HorizonWeeks = 1
	}

	c.index = make(map[funnel.Stage]int, len(c.Stages))
	for i, def := range c.Stages {
		if def.ID == "" {
			return fmt.Errorf("stage %d has no id", i)
		}
		if _, dup := c.index[def.ID]; dup {
			return fmt.Errorf("duplicate stage %s", def.ID)
		}
		if def.PriorRate < 0 || def.PriorRate > 1 {
			return fmt.Errorf("stage %s prior_rate %.3f outside [0,1]", def.ID, def.PriorRate)
		}
		switch def.Owner {
		case funnel.OwnerNone, funnel.OwnerRecruiter, funnel.OwnerHM, funnel.OwnerBoth:
		default:
			return fmt.Errorf("stage %s has unknown owner %q", def.ID, def.Owner)
		}
		if def.GlobalDuration != nil && def.GlobalDuration.Sigma < 0 {
			return fmt.Errorf("stage %s global_duration sigma must be >= 0", def.ID)
		}
		if def.ConstantDays != nil && *def.ConstantDays < 0 {
			return fmt.Errorf("stage %s constant_days must be >= 0", def.ID)
		}
		c.index[def.ID] = i
	}
	return nil
}

// Order returns the stages in progression order, HIRED last.
func (c *Catalog) Order() []funnel.Stage {
	out := make([]funnel.Stage, len(c.Stages))
	for i, def := range c.Stages {
		out[i] = def.ID
	}
	return out
}

// Index returns the position of a stage in the funnel, or -1 when unknown.
func (c *Catalog) Index(s funnel.Stage) int {
	if i, ok := c.index[s]; ok {
		return i
	}
	return -1
}

// Has reports whether the stage is part of the funnel.
func (c *Catalog) Has(s funnel.Stage) bool {
	return c.Index(s) >= 0
}

// Def returns the definition of a stage.
func (c *Catalog) Def(s funnel.Stage) (StageDef, bool) {
	i := c.Index(s)
	if i < 0 {
		return StageDef{}, false
	}
	return c.Stages[i], true
}

// Next returns the stage a candidate moves to after passing s.
func (c *Catalog) Next(s funnel.Stage) (funnel.Stage, bool) {
	i := c.Index(s)
	if i < 0 || i+1 >= len(c.Stages) {
		return "", false
	}
	return c.Stages[i+1].ID, true
}

// Owner returns the owner type of a stage; OwnerNone for stages nobody gates.
func (c *Catalog) Owner(s funnel.Stage) funnel.OwnerType {
	def, ok := c.Def(s)
	if !ok {
		return funnel.OwnerNone
	}
	return def.Owner
}

// Owners returns the stage → owner attribution table for every owned stage.
func (c *Catalog) Owners() map[funnel.Stage]funnel.OwnerType {
	out := make(map[funnel.Stage]funnel.OwnerType)
	for _, def := range c.Stages {
		if def.Owner != funnel.OwnerNone {
			out[def.ID] = def.Owner
		}
	}
	return out
}

// Controllable returns the owned stages in funnel order.
func (c *Catalog) Controllable() []funnel.Stage {
	var out []funnel.Stage
	for _, def := range c.Stages {
		if def.Owner != funnel.OwnerNone {
			out = append(out, def.ID)
		}
	}
	return out
}

// Transitional returns every stage a candidate can be waiting in (all but HIRED).
func (c *Catalog) Transitional() []funnel.Stage {
	order := c.Order()
	return order[:len(order)-1]
}
