package block

import (
	"fmt"
	"math"
	"sort"

	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

// DistributionTolerance is the slack allowed above 1.0 when summing a
// Redistribute distribution.
const DistributionTolerance = 1e-9

// #region options
type stageOptions struct {
	name   string
	path   Path
	latent *float64
}

// Option customizes a stage built in code.
type Option func(*stageOptions)

// WithName labels a stage.
func WithName(name string) Option {
	return func(o *stageOptions) { o.name = name }
}

// OnPath selects the rate map a stage operates on. Transfer ignores it.
func OnPath(p Path) Option {
	return func(o *stageOptions) { o.path = p }
}

// WithLatentCoverage sets c_L on a CoverageSplit. Without it c_L = 1 - c_R.
func WithLatentCoverage(c float64) Option {
	return func(o *stageOptions) { o.latent = &c }
}

func applyOptions(opts []Option) (stageOptions, error) {
	o := stageOptions{path: PathResidual}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := ParsePath(string(o.path)); err != nil {
		return o, err
	}
	return o, nil
}

// #endregion options

// #region source
// Source injects a constant rate for one fault type into one path.
type Source struct {
	name  string
	fault fault.Type
	rate  float64
	path  Path
}

// NewSource builds a Source. The rate must be non-negative.
func NewSource(ft fault.Type, rate float64, opts ...Option) (*Source, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if !ft.Valid() {
		return nil, fmt.Errorf("%w: %d", fault.ErrUnknownFault, uint8(ft))
	}
	if err := nonNegative("rate", rate); err != nil {
		return nil, err
	}
	return &Source{name: o.name, fault: ft, rate: rate, path: o.path}, nil
}

func (s *Source) Kind() Kind   { return KindSource }
func (s *Source) Name() string { return s.name }
func (s *Source) sealed()      {}

func (s *Source) ComputeFIT(residual, latent fault.RateMap) (fault.RateMap, fault.RateMap) {
	r, l := residual.Clone(), latent.Clone()
	if s.path == PathLatent {
		add(l, s.fault, s.rate)
	} else {
		add(r, s.fault, s.rate)
	}
	return r, l
}

func (s *Source) Config() Config {
	return Config{
		Type:  KindSource,
		Name:  s.name,
		Fault: s.fault.String(),
		Rate:  Float(s.rate),
		Path:  s.path,
	}
}

// #endregion source

// #region coverage
// CoverageSplit applies a diagnostic mechanism's coverage to one fault type.
type CoverageSplit struct {
	name     string
	target   fault.Type
	residual float64
	latent   float64
	explicit bool
	path     Path
}

// NewCoverageSplit builds a CoverageSplit with residual coverage cR. Both
// coverages must lie in [0,1].
func NewCoverageSplit(target fault.Type, cR float64, opts ...Option) (*CoverageSplit, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %d", fault.ErrUnknownFault, uint8(target))
	}
	if err := unitInterval("residual_coverage", cR); err != nil {
		return nil, err
	}
	c := &CoverageSplit{name: o.name, target: target, residual: cR, latent: 1 - cR, path: o.path}
	if o.latent != nil {
		if err := unitInterval("latent_coverage", *o.latent); err != nil {
			return nil, err
		}
		c.latent = *o.latent
		c.explicit = true
	}
	return c, nil
}

func (c *CoverageSplit) Kind() Kind   { return KindCoverageSplit }
func (c *CoverageSplit) Name() string { return c.name }
func (c *CoverageSplit) sealed()      {}

// Coverages returns (c_R, c_L).
func (c *CoverageSplit) Coverages() (float64, float64) { return c.residual, c.latent }

func (c *CoverageSplit) ComputeFIT(residual, latent fault.RateMap) (fault.RateMap, fault.RateMap) {
	r, l := residual.Clone(), latent.Clone()
	if c.path == PathLatent {
		lambda, ok := l[c.target]
		if !ok {
			return r, l
		}
		delete(l, c.target)
		add(l, c.target, lambda*(1-c.residual))
		return r, l
	}

	lambda, ok := r[c.target]
	if !ok {
		return r, l
	}
	delete(r, c.target)
	add(r, c.target, lambda*(1-c.residual))
	add(l, c.target, lambda*(1-c.latent))
	return r, l
}

func (c *CoverageSplit) Config() Config {
	cfg := Config{
		Type:             KindCoverageSplit,
		Name:             c.name,
		Target:           c.target.String(),
		ResidualCoverage: Float(c.residual),
		Path:             c.path,
	}
	if c.explicit {
		cfg.LatentCoverage = Float(c.latent)
	}
	return cfg
}

// #endregion coverage

// #region redistribute
// Redistribute consumes one fault type and reassigns its rate to others by
// probability. Mass not assigned to any target is dropped.
type Redistribute struct {
	name         string
	source       fault.Type
	distribution fault.RateMap
	path         Path
}

// NewRedistribute builds a Redistribute. Probabilities must be non-negative
// and sum to at most 1 + DistributionTolerance.
func NewRedistribute(source fault.Type, distribution fault.RateMap, opts ...Option) (*Redistribute, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %d", fault.ErrUnknownFault, uint8(source))
	}
	for _, k := range distribution.Keys() {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %d", fault.ErrUnknownFault, uint8(k))
		}
		if err := nonNegative("distribution["+k.String()+"]", distribution[k]); err != nil {
			return nil, err
		}
	}
	if sum := distribution.Sum(); sum-1 > DistributionTolerance {
		return nil, fmt.Errorf("%w: %.12g", ErrDistributionSum, sum)
	}
	return &Redistribute{name: o.name, source: source, distribution: distribution.Clone(), path: o.path}, nil
}

func (d *Redistribute) Kind() Kind   { return KindRedistribute }
func (d *Redistribute) Name() string { return d.name }
func (d *Redistribute) sealed()      {}

func (d *Redistribute) ComputeFIT(residual, latent fault.RateMap) (fault.RateMap, fault.RateMap) {
	r, l := residual.Clone(), latent.Clone()
	m := r
	if d.path == PathLatent {
		m = l
	}
	lambda, ok := m[d.source]
	if !ok {
		return r, l
	}
	delete(m, d.source)
	for _, target := range d.distribution.Keys() {
		add(m, target, lambda*d.distribution[target])
	}
	return r, l
}

func (d *Redistribute) Config() Config {
	return Config{
		Type:         KindRedistribute,
		Name:         d.name,
		Source:       d.source.String(),
		Distribution: d.distribution.Names(),
		Path:         d.path,
	}
}

// #endregion redistribute

// #region transfer
// Transfer propagates a multiple of one fault type's residual rate into
// another without consuming the source.
type Transfer struct {
	name   string
	source fault.Type
	target fault.Type
	factor float64
}

// NewTransfer builds a Transfer. The factor must be non-negative and may
// exceed 1.
func NewTransfer(source, target fault.Type, factor float64, opts ...Option) (*Transfer, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	for _, ft := range []fault.Type{source, target} {
		if !ft.Valid() {
			return nil, fmt.Errorf("%w: %d", fault.ErrUnknownFault, uint8(ft))
		}
	}
	if err := nonNegative("factor", factor); err != nil {
		return nil, err
	}
	return &Transfer{name: o.name, source: source, target: target, factor: factor}, nil
}

func (t *Transfer) Kind() Kind   { return KindTransfer }
func (t *Transfer) Name() string { return t.name }
func (t *Transfer) sealed()      {}

func (t *Transfer) ComputeFIT(residual, latent fault.RateMap) (fault.RateMap, fault.RateMap) {
	r, l := residual.Clone(), latent.Clone()
	if lambda, ok := residual[t.source]; ok {
		add(r, t.target, lambda*t.factor)
	}
	return r, l
}

func (t *Transfer) Config() Config {
	return Config{
		Type:   KindTransfer,
		Name:   t.name,
		Source: t.source.String(),
		Target: t.target.String(),
		Factor: Float(t.factor),
	}
}

// #endregion transfer

// #region helpers
// add increases m[k] by v. Zero contributions leave m untouched so that
// absent and zero stay interchangeable without growing the map.
func add(m fault.RateMap, k fault.Type, v float64) {
	if v == 0 {
		return
	}
	m[k] += v
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || v < 0 {
		return fmt.Errorf("%w: %s=%g", ErrNegativeValue, field, v)
	}
	return nil
}

func unitInterval(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s=%g", ErrCoverageRange, field, v)
	}
	return nil
}

// sortedNames returns map keys in lexical order.
func sortedNames(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// #endregion helpers
