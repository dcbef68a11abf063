package graph

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	"golang.org/x/exp/slices"
)

// Returns the writes to addr in coherence order. The initializer is
// implicitly before all of them and is not part of the slice.
func (g *ExecutionGraph) Co(addr label.SAddr) []event.Event {
	return g.co[addr]
}

// Returns the coherence-maximal write to addr, or the initializer
func (g *ExecutionGraph) CoMax(addr label.SAddr) event.Event {
	co := g.co[addr]
	if len(co) == 0 {
		return event.Init()
	}
	return co[len(co)-1]
}

// Returns the rank of w in the coherence order of addr: -1 for the
// initializer, and -2 if w is not a write to addr.
func (g *ExecutionGraph) CoIndex(addr label.SAddr, w event.Event) int {
	if w.IsInitializer() {
		return -1
	}
	if i := slices.Index(g.co[addr], w); i >= 0 {
		return i
	}
	return -2
}

// Returns true if a is coherence-before b. Both must be writes to addr or the initializer.
func (g *ExecutionGraph) CoBefore(addr label.SAddr, a, b event.Event) bool {
	return g.CoIndex(addr, a) < g.CoIndex(addr, b)
}

// Returns the writes coherence-after w
func (g *ExecutionGraph) CoSuccessors(addr label.SAddr, w event.Event) []event.Event {
	i := g.CoIndex(addr, w)
	if i == -2 {
		bug("%v is not in the coherence order of %v", w, addr)
	}
	return g.co[addr][i+1:]
}

// Returns the write immediately coherence-after w, if any
func (g *ExecutionGraph) CoImmediateSucc(addr label.SAddr, w event.Event) (event.Event, bool) {
	succ := g.CoSuccessors(addr, w)
	if len(succ) == 0 {
		return event.Event{}, false
	}
	return succ[0], true
}

// Returns the write immediately coherence-before w, or the initializer
func (g *ExecutionGraph) CoImmediatePred(addr label.SAddr, w event.Event) event.Event {
	i := g.CoIndex(addr, w)
	if i < 0 {
		bug("%v has no coherence predecessor at %v", w, addr)
	}
	if i == 0 {
		return event.Init()
	}
	return g.co[addr][i-1]
}

// Returns true if w is the last write to addr in coherence order
func (g *ExecutionGraph) IsCoMaximal(addr label.SAddr, w event.Event) bool {
	return g.CoMax(addr) == w
}

func (g *ExecutionGraph) removeFromCo(w *label.Write) {
	co := g.co[w.Addr()]
	if i := slices.Index(co, w.Pos()); i >= 0 {
		co = slices.Delete(co, i, i+1)
	}
	if len(co) == 0 {
		delete(g.co, w.Addr())
		return
	}
	g.co[w.Addr()] = co
}

// Place w immediately after pred in the coherence order of its address.
// pred may be the initializer. w keeps its position, only its rank changes.
func (g *ExecutionGraph) AddStoreToCOAfter(w *label.Write, pred event.Event) {
	g.removeFromCo(w)
	co := g.co[w.Addr()]
	i := 0
	if !pred.IsInitializer() {
		i = slices.Index(co, pred) + 1
		if i == 0 {
			bug("%v is not in the coherence order of %v", pred, w.Addr())
		}
	}
	g.co[w.Addr()] = slices.Insert(co, i, w.Pos())
}

// Move w immediately after pred. Equivalent to AddStoreToCOAfter for a write
// already in the graph.
func (g *ExecutionGraph) MoveStoreCOAfter(w *label.Write, pred event.Event) {
	if g.CoIndex(w.Addr(), w.Pos()) < 0 {
		bug("moving %v which is not in coherence order", w.Pos())
	}
	g.AddStoreToCOAfter(w, pred)
}

// Returns true if the read at e is the read part of an RMW whose write has been added
func (g *ExecutionGraph) IsRMWLoad(e event.Event) bool {
	r := g.ReadLabel(e)
	if r == nil || !r.Kind().IsRMWRead() {
		return false
	}
	w := g.WriteLabel(e.Next())
	return w != nil && w.IsRMW() && w.Addr() == r.Addr()
}

// Returns true if w is the write of an RMW and another successful RMW reads
// from the same write as its read part
func (g *ExecutionGraph) ViolatesAtomicity(w *label.Write) bool {
	if !w.IsRMW() {
		return false
	}
	r := g.ReadLabel(w.Pos().Prev())
	rf, ok := r.Rf()
	if !ok {
		return false
	}
	for _, o := range g.Readers(w.Addr(), rf) {
		if o != r.Pos() && g.IsRMWLoad(o) {
			return true
		}
	}
	return false
}

// Returns the read part of another RMW that reads from the same write as
// the read part of the RMW write w
func (g *ExecutionGraph) PendingRMW(w *label.Write) (event.Event, bool) {
	if !w.IsRMW() {
		return event.Event{}, false
	}
	r := g.ReadLabel(w.Pos().Prev())
	rf, ok := r.Rf()
	if !ok {
		return event.Event{}, false
	}
	for _, o := range g.Readers(w.Addr(), rf) {
		if o == r.Pos() {
			continue
		}
		if oLab := g.ReadLabel(o); oLab != nil && oLab.Kind().IsRMWRead() {
			return o, true
		}
	}
	return event.Event{}, false
}

// Returns the reads of addr that read from w, which may be the initializer
func (g *ExecutionGraph) Readers(addr label.SAddr, w event.Event) []event.Event {
	if !w.IsInitializer() {
		return g.WriteLabel(w).Readers()
	}
	var out []event.Event
	for _, thr := range g.threads {
		for _, lab := range thr {
			if r, ok := lab.(*label.Read); ok && r.Addr() == addr {
				if rf, ok := r.Rf(); ok && rf.IsInitializer() {
					out = append(out, r.Pos())
				}
			}
		}
	}
	return out
}
