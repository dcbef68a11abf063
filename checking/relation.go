package checking

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
)

// A relation over events stored as successor lists
type relation map[event.Event][]event.Event

func (rel relation) add(a, b event.Event) {
	rel[a] = append(rel[a], b)
}

// Returns true if the relation has no cycle
func (rel relation) acyclic() bool {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[event.Event]int)
	var visit func(e event.Event) bool
	visit = func(e event.Event) bool {
		state[e] = active
		for _, s := range rel[e] {
			switch state[s] {
			case active:
				return false
			case unvisited:
				if !visit(s) {
					return false
				}
			}
		}
		state[e] = done
		return true
	}
	for e := range rel {
		if state[e] == unvisited && !visit(e) {
			return false
		}
	}
	return true
}

// Returns the events from which target can be reached, target included.
// Paths through skip are not followed.
func (rel relation) reaching(target, skip event.Event) map[event.Event]bool {
	inv := make(relation)
	for a, succ := range rel {
		for _, b := range succ {
			inv.add(b, a)
		}
	}
	seen := map[event.Event]bool{target: true}
	queue := []event.Event{target}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		for _, p := range inv[e] {
			if p == skip || seen[p] {
				continue
			}
			seen[p] = true
			queue = append(queue, p)
		}
	}
	return seen
}

// Returns the first write coherence-after the write r reads from
func frTarget(g *graph.ExecutionGraph, r *label.Read) (event.Event, bool) {
	rf, ok := r.Rf()
	if !ok {
		return event.Event{}, false
	}
	succ := g.CoSuccessors(r.Addr(), rf)
	if len(succ) == 0 {
		return event.Event{}, false
	}
	return succ[0], true
}

// Adds the rf, co and fr edges of the accesses to addr
func addLocationEdges(rel relation, g *graph.ExecutionGraph, addr label.SAddr, reads []*label.Read) {
	co := g.Co(addr)
	for i := 1; i < len(co); i++ {
		rel.add(co[i-1], co[i])
	}
	for _, r := range reads {
		if rf, ok := r.Rf(); ok && !rf.IsInitializer() {
			rel.add(rf, r.Pos())
		}
		if w, ok := frTarget(g, r); ok {
			rel.add(r.Pos(), w)
		}
	}
}

// Returns true if the read part of every RMW reads from the write
// immediately coherence-before it
func atomicityHolds(g *graph.ExecutionGraph) bool {
	for _, lab := range g.Labels() {
		w, ok := lab.(*label.Write)
		if !ok || !w.IsRMW() {
			continue
		}
		r := g.ReadLabel(w.Pos().Prev())
		if r == nil {
			return false
		}
		rf, ok := r.Rf()
		if !ok || g.CoImmediatePred(w.Addr(), w.Pos()) != rf {
			return false
		}
	}
	return true
}
