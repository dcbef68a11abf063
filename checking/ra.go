package checking

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
)

// RA is release/acquire consistency with relaxed and non-atomic accesses.
// For every address, hb restricted to the accesses of the address together
// with rf, co and fr must be acyclic, and RMWs must be atomic. Seq-cst
// accesses and fences are treated as acquire-release.
type RA struct {
	model
}

func NewRA() *RA {
	return &RA{}
}

func (c *RA) Name() string {
	return "ra"
}

func (c *RA) before(g *graph.ExecutionGraph, lab label.Label) func(event.Event) bool {
	return predView(g, lab, true).Contains
}

func (c *RA) CoherentStores(g *graph.ExecutionGraph, r *label.Read) []event.Event {
	return storesFrom(g, r.Addr(), lowerBound(g, r.Addr(), r.Pos(), c.before(g, r)))
}

func (c *RA) CoherentPlacings(g *graph.ExecutionGraph, w *label.Write) []event.Event {
	return placingsFrom(g, w, lowerBound(g, w.Addr(), w.Pos(), c.before(g, w)))
}

func (c *RA) CoherentRevisits(g *graph.ExecutionGraph, w *label.Write) []event.Event {
	return coherentRevisits(g, w, func(r *label.Read) *event.View {
		return predView(g, r, true)
	})
}

func (c *RA) IsConsistent(g *graph.ExecutionGraph) bool {
	if !atomicityHolds(g) {
		return false
	}
	for _, addr := range g.Addresses() {
		if !locationRelation(g, addr).acyclic() {
			return false
		}
	}
	return true
}

// Returns hb, rf, co and fr restricted to the accesses of addr
func locationRelation(g *graph.ExecutionGraph, addr label.SAddr) relation {
	rel := make(relation)
	acc := g.Accesses(addr)
	var reads []*label.Read
	for _, a := range acc {
		if r, ok := a.(*label.Read); ok {
			reads = append(reads, r)
		}
		for _, b := range acc {
			if a.Pos() != b.Pos() && b.HbView().Contains(a.Pos()) {
				rel.add(a.Pos(), b.Pos())
			}
		}
	}
	addLocationEdges(rel, g, addr, reads)
	return rel
}

func (c *RA) CheckErrors(g *graph.ExecutionGraph, lab label.Label) (ErrorKind, event.Event) {
	return checkErrors(g, lab)
}
