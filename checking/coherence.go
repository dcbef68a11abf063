package checking

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
)

// Returns the coherence rank of the latest write to addr that an event
// ordered after every event in before must not precede: the writes in
// before and the sources of the reads in before. -1 stands for the
// initializer.
func lowerBound(g *graph.ExecutionGraph, addr label.SAddr, self event.Event, before func(event.Event) bool) int {
	lower := -1
	for _, a := range g.Accesses(addr) {
		if a.Pos() == self || !before(a.Pos()) {
			continue
		}
		var w event.Event
		switch l := a.(type) {
		case *label.Write:
			w = l.Pos()
		case *label.Read:
			rf, ok := l.Rf()
			if !ok {
				continue
			}
			w = rf
		}
		if i := g.CoIndex(addr, w); i > lower {
			lower = i
		}
	}
	return lower
}

// Returns the writes to addr from rank lower onwards
func storesFrom(g *graph.ExecutionGraph, addr label.SAddr, lower int) []event.Event {
	var out []event.Event
	if lower < 0 {
		out = append(out, event.Init())
		lower = 0
	}
	return append(out, g.Co(addr)[lower:]...)
}

// Returns the placings of w after the writes from rank lower onwards,
// ranks being computed without w. A placing that would separate an RMW
// from the write it reads is skipped.
func placingsFrom(g *graph.ExecutionGraph, w *label.Write, lower int) []event.Event {
	if w.IsRMW() {
		if r := g.ReadLabel(w.Pos().Prev()); r != nil {
			if rf, ok := r.Rf(); ok {
				return []event.Event{rf}
			}
		}
	}
	var others []event.Event
	for _, e := range g.Co(w.Addr()) {
		if e != w.Pos() {
			others = append(others, e)
		}
	}
	var out []event.Event
	for i := lower; i < len(others); i++ {
		pred := event.Init()
		if i >= 0 {
			pred = others[i]
		}
		if i+1 < len(others) && readsFromRMW(g, others[i+1], pred) {
			continue
		}
		out = append(out, pred)
	}
	return out
}

// Returns true if succ is the write of an RMW whose read part reads from pred
func readsFromRMW(g *graph.ExecutionGraph, succ, pred event.Event) bool {
	w := g.WriteLabel(succ)
	if w == nil || !w.IsRMW() {
		return false
	}
	r := g.ReadLabel(succ.Prev())
	if r == nil {
		return false
	}
	rf, ok := r.Rf()
	return ok && rf == pred
}

// Returns the revisitable reads of the address of w that are not in its
// prefix and whose own prefix, as given by before, observes nothing
// coherence-after w
func coherentRevisits(g *graph.ExecutionGraph, w *label.Write, before func(*label.Read) *event.View) []event.Event {
	var out []event.Event
	for _, a := range g.Accesses(w.Addr()) {
		r, ok := a.(*label.Read)
		if !ok || !r.IsRevisitable() || w.PorfView().Contains(r.Pos()) {
			continue
		}
		if rf, ok := r.Rf(); ok && rf == w.Pos() {
			continue
		}
		if observesCoAfter(g, w, r, before(r)) {
			continue
		}
		out = append(out, r.Pos())
	}
	return out
}

func observesCoAfter(g *graph.ExecutionGraph, w *label.Write, r *label.Read, v *event.View) bool {
	addr := w.Addr()
	for _, a := range g.Accesses(addr) {
		if a.Pos() == r.Pos() || a.Pos() == w.Pos() || !v.Contains(a.Pos()) {
			continue
		}
		switch l := a.(type) {
		case *label.Write:
			if g.CoBefore(addr, w.Pos(), l.Pos()) {
				return true
			}
		case *label.Read:
			if rf, ok := l.Rf(); ok && g.CoBefore(addr, w.Pos(), rf) {
				return true
			}
		}
	}
	return false
}

// Returns the view of everything before lab in its thread, or an empty view
func predView(g *graph.ExecutionGraph, lab label.Label, hb bool) *event.View {
	prev := g.PrevLabel(lab)
	if prev == nil {
		return event.NewView()
	}
	if hb {
		return prev.HbView()
	}
	return prev.PorfView()
}
