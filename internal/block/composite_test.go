package block

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

// sampleInputs is the fixed set of (residual, latent) pairs used by the
// property tests.
func sampleInputs() [][2]fault.RateMap {
	return [][2]fault.RateMap{
		{{}, {}},
		{{fault.SBE: 1610, fault.DBE: 172.04}, {}},
		{{fault.SBE: 3, fault.DBE: 2, fault.TBE: 1}, {fault.SBE: 0.5, fault.MBE: 4}},
		{{fault.WD: 100, fault.AZ: 12.5}, {fault.SB: 7}},
	}
}

// sampleBlocks covers every kind, nested composites included.
func sampleBlocks(t *testing.T) []Block {
	t.Helper()
	src := mustSource(t, fault.SBE, 10, WithName("SBE_src"))
	cov := mustCoverage(t, fault.SBE, 0.9, WithLatentCoverage(0.5))
	red := mustRedistribute(t, fault.DBE, fault.RateMap{fault.TBE: 0.17, fault.MBE: 0.83})
	tr := mustTransfer(t, fault.WD, fault.DBE, 0.56)
	latCov := mustCoverage(t, fault.MBE, 0.5, OnPath(PathLatent))
	return []Block{
		src,
		mustSource(t, fault.MBE, 2, OnPath(PathLatent)),
		cov,
		latCov,
		red,
		tr,
		NewSequence("empty"),
		NewAggregate("empty"),
		NewSequence("chain", src, cov, red),
		NewAggregate("branches", src, red, tr, latCov),
		NewSequence("nested", NewAggregate("inner", src, tr), cov, NewSequence("tail", red)),
	}
}

// #region property-tests
func TestComputeFITIsPure(t *testing.T) {
	for _, b := range sampleBlocks(t) {
		for _, in := range sampleInputs() {
			rBefore, lBefore := in[0].Clone(), in[1].Clone()

			r1, l1 := b.ComputeFIT(in[0], in[1])
			r2, l2 := b.ComputeFIT(in[0], in[1])

			assert.Equal(t, r1, r2, "%s %q residual not deterministic", b.Kind(), b.Name())
			assert.Equal(t, l1, l2, "%s %q latent not deterministic", b.Kind(), b.Name())
			assert.Equal(t, rBefore, in[0], "%s %q mutated residual input", b.Kind(), b.Name())
			assert.Equal(t, lBefore, in[1], "%s %q mutated latent input", b.Kind(), b.Name())

			r1[fault.OTH] = 99
			assert.NotContains(t, in[0], fault.OTH)
		}
	}
}

func TestAggregateAdditivity(t *testing.T) {
	a := mustSource(t, fault.SBE, 5)
	b := mustCoverage(t, fault.DBE, 0.8, WithLatentCoverage(0.5))
	agg := NewAggregate("agg", a, b)

	for _, in := range sampleInputs() {
		gotR, gotL := agg.ComputeFIT(in[0], in[1])

		aR, aL := a.ComputeFIT(in[0], in[1])
		bR, bL := b.ComputeFIT(in[0], in[1])
		wantR, wantL := in[0].Clone(), in[1].Clone()
		for _, k := range fault.Union(in[0], aR, bR) {
			wantR[k] = in[0][k] + (aR[k] - in[0][k]) + (bR[k] - in[0][k])
		}
		for _, k := range fault.Union(in[1], aL, bL) {
			wantL[k] = in[1][k] + (aL[k] - in[1][k]) + (bL[k] - in[1][k])
		}
		assertRates(t, wantR, gotR)
		assertRates(t, wantL, gotL)
	}
}

func TestAggregateAccumulatesSameFault(t *testing.T) {
	agg := NewAggregate("sbe",
		mustSource(t, fault.SBE, 1),
		mustSource(t, fault.SBE, 2),
		mustSource(t, fault.SBE, 3),
	)
	r, l := agg.ComputeFIT(fault.RateMap{fault.SBE: 10}, nil)
	assertRates(t, fault.RateMap{fault.SBE: 16}, r)
	assert.Empty(t, l)
}

func TestAggregateIsNotLastWriterWins(t *testing.T) {
	agg := NewAggregate("mixed",
		mustCoverage(t, fault.SBE, 1, WithLatentCoverage(0)),
		mustSource(t, fault.DBE, 4),
	)
	r, l := agg.ComputeFIT(fault.RateMap{fault.SBE: 10, fault.DBE: 1}, fault.RateMap{})
	assertRates(t, fault.RateMap{fault.DBE: 5}, r)
	assertRates(t, fault.RateMap{fault.SBE: 10}, l)
}

func TestSequenceAssociativity(t *testing.T) {
	a := mustSource(t, fault.DBE, 3)
	b := mustRedistribute(t, fault.DBE, fault.RateMap{fault.TBE: 0.4, fault.SBE: 0.6})
	c := mustCoverage(t, fault.SBE, 0.7)

	flat := NewSequence("flat", a, b, c)
	nested := NewSequence("nested", NewSequence("ab", a, b), c)
	right := NewSequence("right", a, NewSequence("bc", b, c))

	for _, in := range sampleInputs() {
		fr, fl := flat.ComputeFIT(in[0], in[1])
		nr, nl := nested.ComputeFIT(in[0], in[1])
		rr, rl := right.ComputeFIT(in[0], in[1])
		assertRates(t, fr, nr)
		assertRates(t, fl, nl)
		assertRates(t, fr, rr)
		assertRates(t, fl, rl)
	}
}

func TestEmptyCompositesPassThrough(t *testing.T) {
	in := fault.RateMap{fault.SBE: 1}
	lat := fault.RateMap{fault.MBE: 2}
	for _, b := range []Block{NewSequence("s"), NewAggregate("a")} {
		r, l := b.ComputeFIT(in, lat)
		assert.Equal(t, in, r)
		assert.Equal(t, lat, l)
		r[fault.DBE] = 1
		assert.NotContains(t, in, fault.DBE)
	}
}

func TestEndToEndScenario(t *testing.T) {
	root := NewSequence("dram",
		NewAggregate("sources",
			mustSource(t, fault.SBE, 1610.0),
			mustSource(t, fault.DBE, 172.04),
		),
		mustCoverage(t, fault.SBE, 1.0, WithLatentCoverage(0.0)),
	)
	r, l := root.ComputeFIT(fault.RateMap{}, fault.RateMap{})
	assertRates(t, fault.RateMap{fault.DBE: 172.04}, r)
	assertRates(t, fault.RateMap{fault.SBE: 1610.0}, l)
	assert.NotContains(t, r, fault.SBE)
}

// #endregion property-tests

func TestChildrenReturnsCopy(t *testing.T) {
	src := mustSource(t, fault.SBE, 1)
	seq := NewSequence("s", src)
	kids := seq.Children()
	kids[0] = NewAggregate("other")
	assert.Equal(t, KindSource, seq.Children()[0].Kind())
}
