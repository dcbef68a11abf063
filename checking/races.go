package checking

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
)

func hbOrdered(a, b label.Label) bool {
	return b.HbView().Contains(a.Pos()) || a.HbView().Contains(b.Pos())
}

func checkErrors(g *graph.ExecutionGraph, lab label.Label) (ErrorKind, event.Event) {
	switch l := lab.(type) {
	case label.Access:
		if racy, ok := findRace(g, l); ok {
			return RaceNotAtomic, racy
		}
		if f, ok := findFreeRace(g, l); ok {
			return AccessFreed, f
		}
	case *label.Free:
		for _, o := range g.FindFrees(l.Addr) {
			if o.Pos() != l.Pos() {
				return DoubleFree, o.Pos()
			}
		}
		if l.Kind() == label.KindFree {
			if a, ok := findAccessAfterFree(g, l); ok {
				return AccessFreed, a
			}
		}
	}
	return OK, event.Event{}
}

// Returns an access to the same address that conflicts with a and is not
// ordered with it by hb. Two accesses conflict when one of them is a write
// and one of them is non-atomic.
func findRace(g *graph.ExecutionGraph, a label.Access) (event.Event, bool) {
	for _, b := range g.Accesses(a.Addr()) {
		if b.Pos() == a.Pos() {
			continue
		}
		if !a.Kind().IsWrite() && !b.Kind().IsWrite() {
			continue
		}
		if a.Ordering().IsAtomic() && b.Ordering().IsAtomic() {
			continue
		}
		if !hbOrdered(a, b) {
			return b.Pos(), true
		}
	}
	return event.Event{}, false
}

// Returns a free of the allocation a accesses that is not hb-after a
func findFreeRace(g *graph.ExecutionGraph, a label.Access) (event.Event, bool) {
	if !a.Addr().IsDynamic() {
		return event.Event{}, false
	}
	m := g.FindAllocation(a.Addr())
	if m == nil {
		return event.Event{}, false
	}
	for _, f := range g.FindFrees(m.Addr) {
		if f.Kind() == label.KindFree && !f.HbView().Contains(a.Pos()) {
			return f.Pos(), true
		}
	}
	return event.Event{}, false
}

// Returns an access to the memory freed by f that is not hb-before f
func findAccessAfterFree(g *graph.ExecutionGraph, f *label.Free) (event.Event, bool) {
	m := g.FindAllocation(f.Addr)
	if m == nil {
		return event.Event{}, false
	}
	for _, lab := range g.Labels() {
		a, ok := lab.(label.Access)
		if !ok || !m.Contains(a.Addr()) {
			continue
		}
		if !f.HbView().Contains(a.Pos()) {
			return a.Pos(), true
		}
	}
	return event.Event{}, false
}
