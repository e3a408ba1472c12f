package block

import (
	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

// #region sequence
// Sequence threads the rate maps through its children in order.
type Sequence struct {
	name     string
	children []Block
}

// NewSequence builds a Sequence. An empty child list passes its input through.
func NewSequence(name string, children ...Block) *Sequence {
	return &Sequence{name: name, children: append([]Block(nil), children...)}
}

func (s *Sequence) Kind() Kind   { return KindSequence }
func (s *Sequence) Name() string { return s.name }
func (s *Sequence) sealed()      {}

// Children returns the ordered child list.
func (s *Sequence) Children() []Block { return append([]Block(nil), s.children...) }

func (s *Sequence) ComputeFIT(residual, latent fault.RateMap) (fault.RateMap, fault.RateMap) {
	r, l := residual.Clone(), latent.Clone()
	for _, child := range s.children {
		r, l = child.ComputeFIT(r, l)
	}
	return r, l
}

func (s *Sequence) Config() Config {
	return Config{Type: KindSequence, Name: s.name, Children: childConfigs(s.children)}
}

// #endregion sequence

// #region aggregate
// Aggregate runs every child against the same input and sums the children's
// deltas onto that input, per fault type and per path.
type Aggregate struct {
	name     string
	children []Block
}

// NewAggregate builds an Aggregate. Child order does not affect the result
// beyond floating-point rounding.
func NewAggregate(name string, children ...Block) *Aggregate {
	return &Aggregate{name: name, children: append([]Block(nil), children...)}
}

func (a *Aggregate) Kind() Kind   { return KindAggregate }
func (a *Aggregate) Name() string { return a.name }
func (a *Aggregate) sealed()      {}

// Children returns the child list.
func (a *Aggregate) Children() []Block { return append([]Block(nil), a.children...) }

func (a *Aggregate) ComputeFIT(residual, latent fault.RateMap) (fault.RateMap, fault.RateMap) {
	acc := newDeltaSum(residual, latent)
	for _, child := range a.children {
		acc.include(child.ComputeFIT(residual, latent))
	}
	return acc.result()
}

func (a *Aggregate) Config() Config {
	return Config{Type: KindAggregate, Name: a.name, Children: childConfigs(a.children)}
}

// #endregion aggregate

// #region delta-sum
// deltaSum accumulates child outputs as deltas against a shared base.
type deltaSum struct {
	baseR, baseL fault.RateMap
	outR, outL   fault.RateMap
}

func newDeltaSum(residual, latent fault.RateMap) *deltaSum {
	return &deltaSum{
		baseR: residual,
		baseL: latent,
		outR:  residual.Clone(),
		outL:  latent.Clone(),
	}
}

func (d *deltaSum) include(r, l fault.RateMap) {
	accumulate(d.outR, d.baseR, r)
	accumulate(d.outL, d.baseL, l)
}

func (d *deltaSum) result() (fault.RateMap, fault.RateMap) {
	return d.outR, d.outL
}

// accumulate adds (got - base) to out for every fault type in either map.
func accumulate(out, base, got fault.RateMap) {
	for _, k := range fault.Union(base, got) {
		if delta := got[k] - base[k]; delta != 0 {
			out[k] += delta
			if out[k] == 0 {
				delete(out, k)
			}
		}
	}
}

// #endregion delta-sum

func childConfigs(children []Block) []Config {
	if len(children) == 0 {
		return nil
	}
	out := make([]Config, len(children))
	for i, c := range children {
		out[i] = c.Config()
	}
	return out
}
