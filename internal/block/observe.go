package block

import (
	"fmt"

	"github.com/danielpatrickdp/ecc-analyzer/internal/fault"
)

// #region types
// Port identifies one edge of the rate flow: a fault type on one path.
type Port struct {
	Fault fault.Type
	Path  Path
}

func (p Port) String() string { return fmt.Sprintf("%s/%s", p.Fault, p.Path) }

// Ports maps each live port to the ID of the node that produced it.
type Ports map[Port]string

func (p Ports) clone() Ports {
	out := make(Ports, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Event describes one evaluated node.
type Event struct {
	ID          string
	Kind        Kind
	Block       Block
	ResidualIn  fault.RateMap
	LatentIn    fault.RateMap
	ResidualOut fault.RateMap
	LatentOut   fault.RateMap
	InPorts     Ports
	OutPorts    Ports
}

// Observer receives one event per node after the node has been computed.
type Observer interface {
	OnBlockComputed(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnBlockComputed(e Event) { f(e) }

// Recorder keeps every event in the order it was emitted (post-order).
type Recorder struct {
	Events []Event
}

func (r *Recorder) OnBlockComputed(e Event) { r.Events = append(r.Events, e) }

// Event returns the recorded event for a node ID.
func (r *Recorder) Event(id string) (Event, bool) {
	for _, e := range r.Events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// #endregion types

// #region evaluate
// Evaluate computes root against (residual, latent) exactly as
// root.ComputeFIT does, reporting every node to obs. Node IDs are "root"
// for the tree root and "<parent>/<index>" below it.
//
// Ports follow the rate flow: a stage owns every output port whose value it
// changed, a Sequence forwards the ports of its last child, and an Aggregate
// owns a port when more than one child changed it (the junction) and
// otherwise forwards the single contributing child's port. Ports whose rate
// drops to zero disappear.
func Evaluate(root Block, residual, latent fault.RateMap, obs Observer) (fault.RateMap, fault.RateMap) {
	if obs == nil {
		obs = ObserverFunc(func(Event) {})
	}
	e := evaluator{obs: obs}
	r, l, _ := e.eval(root, "root", residual, latent, portsFor("", residual, latent))
	return r, l
}

type evaluator struct {
	obs Observer
}

func (e evaluator) eval(b Block, id string, residual, latent fault.RateMap, in Ports) (fault.RateMap, fault.RateMap, Ports) {
	var (
		r, l fault.RateMap
		out  Ports
	)

	switch n := b.(type) {
	case *Sequence:
		r, l = residual.Clone(), latent.Clone()
		out = in.clone()
		for i, child := range n.children {
			r, l, out = e.eval(child, childID(id, i), r, l, out)
		}

	case *Aggregate:
		acc := newDeltaSum(residual, latent)
		owners := make(map[Port][]string)
		for i, child := range n.children {
			cr, cl, cp := e.eval(child, childID(id, i), residual, latent, in)
			acc.include(cr, cl)
			for _, p := range changedPorts(residual, latent, cr, cl) {
				owners[p] = append(owners[p], cp[p])
			}
		}
		r, l = acc.result()
		out = in.clone()
		for p, producers := range owners {
			if len(producers) == 1 && producers[0] != "" {
				out[p] = producers[0]
			} else {
				out[p] = id
			}
		}
		prune(out, r, l)

	case *Source, *CoverageSplit, *Redistribute, *Transfer:
		r, l = b.ComputeFIT(residual, latent)
		out = in.clone()
		for _, p := range changedPorts(residual, latent, r, l) {
			out[p] = id
		}
		prune(out, r, l)

	default:
		panic(fmt.Sprintf("block: unhandled kind %s", b.Kind()))
	}

	e.obs.OnBlockComputed(Event{
		ID:          id,
		Kind:        b.Kind(),
		Block:       b,
		ResidualIn:  residual,
		LatentIn:    latent,
		ResidualOut: r,
		LatentOut:   l,
		InPorts:     in,
		OutPorts:    out,
	})
	return r, l, out
}

// #endregion evaluate

// #region helpers
func childID(parent string, i int) string {
	return fmt.Sprintf("%s/%d", parent, i)
}

// portsFor assigns every non-zero entry of the maps to owner.
func portsFor(owner string, residual, latent fault.RateMap) Ports {
	out := make(Ports)
	for k, v := range residual {
		if v != 0 {
			out[Port{Fault: k, Path: PathResidual}] = owner
		}
	}
	for k, v := range latent {
		if v != 0 {
			out[Port{Fault: k, Path: PathLatent}] = owner
		}
	}
	return out
}

// changedPorts lists the ports whose rate differs between input and output.
func changedPorts(rIn, lIn, rOut, lOut fault.RateMap) []Port {
	var out []Port
	for _, k := range fault.Union(rIn, rOut) {
		if rIn[k] != rOut[k] {
			out = append(out, Port{Fault: k, Path: PathResidual})
		}
	}
	for _, k := range fault.Union(lIn, lOut) {
		if lIn[k] != lOut[k] {
			out = append(out, Port{Fault: k, Path: PathLatent})
		}
	}
	return out
}

// prune drops ports that no longer carry a rate.
func prune(p Ports, residual, latent fault.RateMap) {
	for port := range p {
		m := residual
		if port.Path == PathLatent {
			m = latent
		}
		if m[port.Fault] == 0 {
			delete(p, port)
		}
	}
}

// #endregion helpers
