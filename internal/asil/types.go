package asil

import "errors"

var (
	ErrInvalidLevel = errors.New("invalid integrity level")
	ErrLevelOrder   = errors.New("levels not ordered strictest first")
)

// NonCompliant is the verdict when no level's residual ceiling is met.
const NonCompliant = "QM (Quality Management)"

// #region level
// Level is one row of the verdict table. A run achieves the level when
// SPFM >= MinSPFM, LFM >= MinLFM and the residual FIT sum < MaxResidualFIT.
type Level struct {
	Name           string  `json:"name" yaml:"name" validate:"required"`
	MinSPFM        float64 `json:"min_spfm" yaml:"min_spfm" validate:"gte=0,lte=1"`
	MinLFM         float64 `json:"min_lfm" yaml:"min_lfm" validate:"gte=0,lte=1"`
	MaxResidualFIT float64 `json:"max_residual_fit" yaml:"max_residual_fit" validate:"gt=0"`
}

// DefaultLevels returns the ISO 26262 hardware metric targets, strictest first.
func DefaultLevels() []Level {
	return []Level{
		{Name: "ASIL D", MinSPFM: 0.99, MinLFM: 0.90, MaxResidualFIT: 10},
		{Name: "ASIL C", MinSPFM: 0.97, MinLFM: 0.80, MaxResidualFIT: 100},
		{Name: "ASIL B", MinSPFM: 0.90, MinLFM: 0.60, MaxResidualFIT: 100},
		{Name: "ASIL A", MinSPFM: 0.00, MinLFM: 0.00, MaxResidualFIT: 1000},
	}
}

// #endregion level

// #region metrics
// Metrics is the result of one analysis run.
type Metrics struct {
	SPFM           float64 `json:"spfm"`
	LFM            float64 `json:"lfm"`
	ResidualFIT    float64 `json:"residual_fit"`     // sum of the residual map
	LatentFIT      float64 `json:"latent_fit"`       // sum of the latent map
	SafeAndCovered float64 `json:"safe_and_covered"` // total - residual
	Verdict        string  `json:"verdict"`
}

// #endregion metrics
