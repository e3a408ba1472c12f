package fault

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// #region rate-map
// RateMap maps fault types to FIT rates. An absent key and a 0.0 entry are
// equivalent. RateMaps are values: engine code never mutates one it was given.
type RateMap map[Type]float64

// Get returns the rate for t, or 0 when absent.
func (m RateMap) Get(t Type) float64 {
	return m[t]
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (m RateMap) Clone() RateMap {
	out := make(RateMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the present fault types in declaration order.
func (m RateMap) Keys() []Type {
	keys := make([]Type, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Sum totals all rates. Values are summed in key order so repeated calls on
// equal maps return bit-identical results.
func (m RateMap) Sum() float64 {
	if len(m) == 0 {
		return 0
	}
	vals := make([]float64, 0, len(m))
	for _, k := range m.Keys() {
		vals = append(vals, m[k])
	}
	return floats.Sum(vals)
}

// Equal reports whether both maps carry the same rate for every fault type,
// treating absent entries as 0.0.
func (m RateMap) Equal(other RateMap, tol float64) bool {
	for _, k := range Union(m, other) {
		if !scalar.EqualWithinAbsOrRel(m[k], other[k], tol, tol) {
			return false
		}
	}
	return true
}

// Names converts the map to name-keyed form for reports and wire encodings.
func (m RateMap) Names() map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k.String()] = v
	}
	return out
}

// #endregion rate-map

// #region helpers
// FromNames builds a RateMap from name-keyed rates.
func FromNames(in map[string]float64) (RateMap, error) {
	out := make(RateMap, len(in))
	for name, v := range in {
		t, err := Parse(name)
		if err != nil {
			return nil, err
		}
		out[t] = v
	}
	return out, nil
}

// Union returns the sorted set of fault types present in any of the maps.
func Union(maps ...RateMap) []Type {
	seen := make(map[Type]struct{})
	for _, m := range maps {
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	keys := make([]Type, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Format renders the map as "SBE=1.00 DBE=2.50" in key order.
func (m RateMap) Format() string {
	var b strings.Builder
	for i, k := range m.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%.2f", k, m[k])
	}
	return b.String()
}

// #endregion helpers
