package asil

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

var levelValidate = validator.New()

// #region evaluator
// Evaluator reduces final rate maps to metrics and a verdict. It holds no
// state beyond its level table and is safe for concurrent use.
type Evaluator struct {
	Name   string
	levels []Level
}

// NewEvaluator returns an evaluator using DefaultLevels.
func NewEvaluator(name string) *Evaluator {
	return &Evaluator{Name: name, levels: DefaultLevels()}
}

// NewEvaluatorWithLevels returns an evaluator for a custom table. Levels must
// be valid and ordered strictest first: minimum metrics never increase and
// the residual ceiling never decreases down the table.
func NewEvaluatorWithLevels(name string, levels []Level) (*Evaluator, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidLevel)
	}
	for i, lv := range levels {
		if err := levelValidate.Struct(lv); err != nil {
			return nil, fmt.Errorf("%w: level %d (%s): %v", ErrInvalidLevel, i, lv.Name, err)
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1]
		if lv.MinSPFM > prev.MinSPFM || lv.MinLFM > prev.MinLFM || lv.MaxResidualFIT < prev.MaxResidualFIT {
			return nil, fmt.Errorf("%w: %s after %s", ErrLevelOrder, lv.Name, prev.Name)
		}
	}
	return &Evaluator{Name: name, levels: append([]Level(nil), levels...)}, nil
}

// Levels returns a copy of the verdict table.
func (e *Evaluator) Levels() []Level {
	return append([]Level(nil), e.levels...)
}

// ComputeMetrics derives SPFM, LFM and the verdict. A non-positive total
// yields SPFM 0 and a non-positive safe-and-covered rate yields LFM 0.
func (e *Evaluator) ComputeMetrics(total float64, residual, latent fault.RateMap) Metrics {
	d := residual.Sum()
	l := latent.Sum()

	var spfm, lfm float64
	if total > 0 {
		spfm = 1 - d/total
	}
	safe := total - d
	if safe > 0 {
		lfm = 1 - l/safe
	}

	return Metrics{
		SPFM:           spfm,
		LFM:            lfm,
		ResidualFIT:    d,
		LatentFIT:      l,
		SafeAndCovered: safe,
		Verdict:        e.Verdict(spfm, lfm, d),
	}
}

// Verdict scans the table strictest first. When no level matches but the
// residual sum is below the loosest ceiling, the loosest level is returned;
// otherwise NonCompliant.
func (e *Evaluator) Verdict(spfm, lfm, residualFIT float64) string {
	for _, lv := range e.levels {
		if spfm >= lv.MinSPFM && lfm >= lv.MinLFM && residualFIT < lv.MaxResidualFIT {
			return lv.Name
		}
	}
	loosest := e.levels[len(e.levels)-1]
	if residualFIT < loosest.MaxResidualFIT {
		return loosest.Name
	}
	return NonCompliant
}

// #endregion evaluator
