package scenario

import (
	"errors"

	"github.com/danielpatrickdp/ecc-analyzer/internal/asil"
	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// DefaultTolerance applies to expected metrics when a scenario sets none.
const DefaultTolerance = 1e-9

// #region fixture-types

// Fixture is the top-level structure of a scenario file.
type Fixture struct {
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Scenarios   []Scenario `json:"scenarios" yaml:"scenarios" validate:"required,min=1,dive"`
}

// Scenario is one system to analyze and the outcome it must reproduce.
// Exactly one of Layout and LayoutFile is set.
type Scenario struct {
	Name       string        `json:"name" yaml:"name" validate:"required"`
	TotalFIT   float64       `json:"total_fit" yaml:"total_fit" validate:"gte=0"`
	Layout     *block.Config `json:"layout,omitempty" yaml:"layout,omitempty" validate:"-"`
	LayoutFile string        `json:"layout_file,omitempty" yaml:"layout_file,omitempty"`
	Expected   Expected      `json:"expected" yaml:"expected"`
}

// Expected lists the checked outcome. Nil metrics are not compared.
type Expected struct {
	Verdict     string   `json:"verdict" yaml:"verdict" validate:"required"`
	SPFM        *float64 `json:"spfm,omitempty" yaml:"spfm,omitempty" validate:"omitempty,lte=1"`
	LFM         *float64 `json:"lfm,omitempty" yaml:"lfm,omitempty" validate:"omitempty,lte=1"`
	ResidualFIT *float64 `json:"residual_fit,omitempty" yaml:"residual_fit,omitempty" validate:"omitempty,gte=0"`
	Tolerance   float64  `json:"tolerance,omitempty" yaml:"tolerance,omitempty" validate:"gte=0"`
}

// #endregion fixture-types

// #region result-types

// Result captures the outcome of running one scenario.
type Result struct {
	Scenario   string
	LayoutHash string
	Expected   Expected
	Metrics    asil.Metrics
	Diffs      []string // empty when every expected value matched
	Err        error    // set when the scenario could not be analyzed
}

// Match reports whether the scenario ran and reproduced its expectation.
func (r Result) Match() bool {
	return r.Err == nil && len(r.Diffs) == 0
}

// Summary provides aggregate stats from a run.
type Summary struct {
	Total   int
	Matches int
	Diverge int
	Errors  int
}

// #endregion result-types
