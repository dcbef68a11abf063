package checking

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
)

// model holds what the SC and RA checkers share. When syncAll is set every
// reads-from edge synchronizes, which makes hb coincide with porf.
type model struct {
	syncAll bool
}

func (m model) UpdateViews(g *graph.ExecutionGraph, lab label.Label) {
	porf := event.NewView()
	hb := event.NewView()
	if prev := g.PrevLabel(lab); prev != nil {
		porf.Update(prev.PorfView())
		hb.Update(prev.HbView())
	}
	porf.SetMax(lab.Pos())
	hb.SetMax(lab.Pos())

	switch l := lab.(type) {
	case *label.Read:
		if w := sourceWrite(g, l); w != nil {
			porf.Update(w.PorfView())
			if m.syncAll || l.Ordering().IsAtLeastAcquire() {
				hb.Update(m.releaseView(g, w))
			}
		}
	case *label.ThreadStart:
		if p := g.Label(l.Parent); p != nil {
			porf.Update(p.PorfView())
			hb.Update(p.HbView())
		}
	case *label.ThreadJoin:
		if last := g.LastLabel(l.Child); last != nil && last.Kind() == label.KindThreadFinish {
			porf.Update(last.PorfView())
			hb.Update(last.HbView())
		}
	case *label.Fence:
		if m.syncAll || l.Ordering().IsAtLeastAcquire() {
			for j := 0; j < l.Pos().Index; j++ {
				r := g.ReadLabel(event.Event{Thread: l.Pos().Thread, Index: j})
				if r == nil {
					continue
				}
				if w := sourceWrite(g, r); w != nil {
					hb.Update(m.releaseView(g, w))
				}
			}
		}
	}
	lab.SetViews(porf, hb)
}

// Returns the write r reads from, or nil if r reads from the initializer or
// from nothing
func sourceWrite(g *graph.ExecutionGraph, r *label.Read) *label.Write {
	rf, ok := r.Rf()
	if !ok || rf.IsInitializer() {
		return nil
	}
	return g.WriteLabel(rf)
}

// Returns the view an acquiring read of w synchronizes with: the hb view of
// w if it is a release, otherwise that of the last release fence before it,
// extended along the release sequence of RMWs.
func (m model) releaseView(g *graph.ExecutionGraph, w *label.Write) *event.View {
	v := event.NewView()
	switch {
	case m.syncAll || w.Ordering().IsAtLeastRelease():
		v.Update(w.HbView())
	default:
		if f := lastReleaseFence(g, w.Pos()); f != nil {
			v.Update(f.HbView())
		}
	}
	if w.IsRMW() {
		if r := g.ReadLabel(w.Pos().Prev()); r != nil {
			if src := sourceWrite(g, r); src != nil {
				v.Update(m.releaseView(g, src))
			}
		}
	}
	return v
}

func lastReleaseFence(g *graph.ExecutionGraph, e event.Event) label.Label {
	for j := e.Index - 1; j >= 0; j-- {
		lab := g.Label(event.Event{Thread: e.Thread, Index: j})
		if lab.Kind() == label.KindFence && lab.Ordering().IsAtLeastRelease() {
			return lab
		}
	}
	return nil
}
