package checking

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
)

// SC is sequential consistency: a graph is consistent if po, rf, co and fr
// together with thread creation and joining are acyclic.
type SC struct {
	model
}

func NewSC() *SC {
	return &SC{model: model{syncAll: true}}
}

func (c *SC) Name() string {
	return "sc"
}

func scRelation(g *graph.ExecutionGraph) relation {
	rel := make(relation)
	reads := make(map[label.SAddr][]*label.Read)
	for t := 0; t < g.NumThreads(); t++ {
		for j := 1; j < g.ThreadSize(t); j++ {
			rel.add(event.Event{Thread: t, Index: j - 1}, event.Event{Thread: t, Index: j})
		}
		if ts := g.ThreadStart(t); ts != nil && g.ContainsPos(ts.Parent) {
			rel.add(ts.Parent, ts.Pos())
		}
	}
	for _, lab := range g.Labels() {
		switch l := lab.(type) {
		case *label.ThreadJoin:
			if last := g.LastLabel(l.Child); last != nil && last.Kind() == label.KindThreadFinish {
				rel.add(last.Pos(), l.Pos())
			}
		case *label.Read:
			reads[l.Addr()] = append(reads[l.Addr()], l)
		}
	}
	// Reads of an address without writes only read the initializer
	for _, addr := range g.Addresses() {
		addLocationEdges(rel, g, addr, reads[addr])
	}
	return rel
}

// Returns a membership test for the events that reach the po-predecessor of lab
func (c *SC) before(g *graph.ExecutionGraph, lab label.Label) func(event.Event) bool {
	prev := g.PrevLabel(lab)
	if prev == nil {
		return func(event.Event) bool { return false }
	}
	reach := scRelation(g).reaching(prev.Pos(), lab.Pos())
	return func(e event.Event) bool { return reach[e] }
}

func (c *SC) CoherentStores(g *graph.ExecutionGraph, r *label.Read) []event.Event {
	return storesFrom(g, r.Addr(), lowerBound(g, r.Addr(), r.Pos(), c.before(g, r)))
}

func (c *SC) CoherentPlacings(g *graph.ExecutionGraph, w *label.Write) []event.Event {
	return placingsFrom(g, w, lowerBound(g, w.Addr(), w.Pos(), c.before(g, w)))
}

func (c *SC) CoherentRevisits(g *graph.ExecutionGraph, w *label.Write) []event.Event {
	return coherentRevisits(g, w, func(r *label.Read) *event.View {
		return predView(g, r, false)
	})
}

func (c *SC) IsConsistent(g *graph.ExecutionGraph) bool {
	return atomicityHolds(g) && scRelation(g).acyclic()
}

func (c *SC) CheckErrors(g *graph.ExecutionGraph, lab label.Label) (ErrorKind, event.Event) {
	return checkErrors(g, lab)
}
