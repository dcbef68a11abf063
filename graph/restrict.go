package graph

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Remove every label with a stamp greater than s.
//
// A remaining read whose source was removed is rebound to the
// coherence-maximal write of its address and returned, so that its views
// can be recomputed. Trailing threads left empty are removed.
func (g *ExecutionGraph) CutToStamp(s event.Stamp) []event.Event {
	for t, thr := range g.threads {
		keep := len(thr)
		for keep > 0 && thr[keep-1].Stamp() > s {
			keep--
		}
		for j := len(thr) - 1; j >= keep; j-- {
			g.unlink(thr[j])
		}
		g.threads[t] = thr[:keep]
	}
	for len(g.threads) > 1 && len(g.threads[len(g.threads)-1]) == 0 {
		g.threads = g.threads[:len(g.threads)-1]
	}
	repaired := g.RepairDanglingReads()
	g.nextStamp = g.maxStamp() + 1
	return repaired
}

func (g *ExecutionGraph) maxStamp() event.Stamp {
	var max event.Stamp
	for _, thr := range g.threads {
		if n := len(thr); n > 0 && thr[n-1].Stamp() > max {
			max = thr[n-1].Stamp()
		}
	}
	return max
}

// Rebind every read without a source to the coherence-maximal write.
// Returns the rebound reads.
func (g *ExecutionGraph) RepairDanglingReads() []event.Event {
	var repaired []event.Event
	for _, thr := range g.threads {
		for _, lab := range thr {
			r, ok := lab.(*label.Read)
			if !ok {
				continue
			}
			if _, ok := r.Rf(); ok {
				continue
			}
			g.SetRf(r, g.CoMax(r.Addr()))
			r.SetAddedMax(true)
			repaired = append(repaired, r.Pos())
		}
	}
	return repaired
}

// Renumber the labels with a stamp greater than s so that stamps after s are dense
func (g *ExecutionGraph) CompressStampsAfter(s event.Stamp) {
	var later []label.Label
	for _, thr := range g.threads {
		for _, lab := range thr {
			if lab.Stamp() > s {
				later = append(later, lab)
			}
		}
	}
	slices.SortFunc(later, func(a, b label.Label) bool {
		return a.Stamp() < b.Stamp()
	})
	next := s + 1
	for _, lab := range later {
		lab.SetStamp(next)
		next++
	}
	g.nextStamp = g.maxStamp() + 1
}

// Returns a deep copy of the labels included in v. Coherence orders keep
// their relative order. Reads whose source is not included lose it.
func (g *ExecutionGraph) GetCopyUpTo(v *event.View) *ExecutionGraph {
	c := &ExecutionGraph{
		threads:   make([][]label.Label, 0, len(g.threads)),
		co:        make(map[label.SAddr][]event.Event),
		nextStamp: g.nextStamp,
	}
	last := 0
	for t, thr := range g.threads {
		n := v.Max(t) + 1
		if n > len(thr) {
			n = len(thr)
		}
		if t == 0 && n == 0 {
			n = 1
		}
		copied := make([]label.Label, 0, n)
		for _, lab := range thr[:n] {
			copied = append(copied, label.Clone(lab))
		}
		c.threads = append(c.threads, copied)
		if n > 0 {
			last = t
		}
	}
	c.threads = c.threads[:last+1]
	for addr, co := range g.co {
		for _, w := range co {
			if c.ContainsPos(w) {
				c.co[addr] = append(c.co[addr], w)
			}
		}
	}
	for _, thr := range c.threads {
		for _, lab := range thr {
			switch l := lab.(type) {
			case *label.Read:
				if rf, ok := l.Rf(); ok && !rf.IsInitializer() && !c.ContainsPos(rf) {
					label.UnlinkRf(l, nil)
				}
			case *label.Write:
				label.FilterReaders(l, c.ContainsPos)
			}
		}
	}
	c.nextStamp = c.maxStamp() + 1
	return c
}

// Returns a deep copy of the graph
func (g *ExecutionGraph) Clone() *ExecutionGraph {
	c := &ExecutionGraph{
		threads:   make([][]label.Label, len(g.threads)),
		co:        make(map[label.SAddr][]event.Event, len(g.co)),
		nextStamp: g.nextStamp,
	}
	for t, thr := range g.threads {
		c.threads[t] = make([]label.Label, len(thr))
		for j, lab := range thr {
			c.threads[t][j] = label.Clone(lab)
		}
	}
	for addr, co := range g.co {
		c.co[addr] = slices.Clone(co)
	}
	return c
}

// Returns true if both graphs contain the same labels with the same relations.
// Stamps and views are ignored.
func (g *ExecutionGraph) Equal(o *ExecutionGraph) bool {
	if len(g.threads) != len(o.threads) {
		return false
	}
	for t := range g.threads {
		if len(g.threads[t]) != len(o.threads[t]) {
			return false
		}
		for j := range g.threads[t] {
			if describe(g.threads[t][j]) != describe(o.threads[t][j]) {
				return false
			}
		}
	}
	return maps.EqualFunc(g.co, o.co, func(a, b []event.Event) bool {
		return slices.Equal(a, b)
	})
}
