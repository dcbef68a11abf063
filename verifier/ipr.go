package verifier

import (
	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	log "github.com/sirupsen/logrus"
)

// Revisit in place the blocked annotated reads among loads, which would
// only produce blocked executions when revisited backwards. Returns the
// loads left to revisit.
func (d *Driver) tryOptimizeIPRs(w *label.Write, loads []event.Event) []event.Event {
	g := d.g()
	out := loads[:0:0]
	for _, l := range loads {
		r := g.ReadLabel(l)
		if r.Annotation() != nil && !r.Kind().IsCasRead() && !r.ValueMakesAssumeSucceed(d.readValue(r)) {
			d.revisitInPlace(r, w)
			continue
		}
		out = append(out, l)
	}
	if _, ok := g.PendingRMW(w); !ok {
		return out
	}
	kept := out[:0]
	for _, l := range out {
		r := g.ReadLabel(l)
		if rf, ok := r.Rf(); ok && r.Annotation() != nil && !rf.IsInitializer() &&
			g.Label(rf).Stamp() > r.Stamp() && !w.PorfView().Contains(rf) {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// Make the blocked read r read from w without leaving the current
// execution. Its thread runs again from the start.
func (d *Driver) revisitInPlace(r *label.Read, w *label.Write) {
	g := d.g()
	t := r.Pos().Thread
	if g.ContainsPos(r.Pos().Next()) {
		g.RemoveLast(t)
	}
	g.SetRf(r, w.Pos())
	r.SetAddedMax(true)
	r.SetIPR(true)
	d.updateViews(r)
	d.completeRevisitedRMW(r)

	d.interp.ResetThread(t)
	d.growCursor(t)
	d.cursor[t] = 1
	d.prios = []int{t}
	log.Debugf("revisited %v in place from %v", r.Pos(), w.Pos())
}

// Replace a CAS read that would fail its annotation reading s with a block
// that waits for a write to its address
func (d *Driver) removeCASReadIfBlocks(r *label.Read, s event.Event) bool {
	if !r.Kind().IsCasRead() || r.Annotation() == nil {
		return false
	}
	if !d.conf.IPR && r.Kind() != label.KindLockCasRead {
		return false
	}
	if (r.Addr().IsDynamic() && s.IsInitializer()) || d.conf.bounded() {
		return false
	}
	if r.ValueMakesAssumeSucceed(d.writeValue(s, r.Addr())) {
		return false
	}
	b := label.NewBlock(r.Pos(), label.BlockReadOpt)
	b.Addr = r.Addr()
	d.blockThread(b)
	return true
}

// Wake up the threads whose CAS read was removed waiting for a write to
// the address of w
func (d *Driver) checkReconsiderReadOpts(w *label.Write) {
	g := d.g()
	for t := 0; t < g.NumThreads(); t++ {
		b, ok := g.LastLabel(t).(*label.Block)
		if !ok || b.Type != label.BlockReadOpt || b.Addr != w.Addr() {
			continue
		}
		g.RemoveLast(t)
		d.growCursor(t)
		d.cursor[t] = b.Pos().Index
	}
}

// An annotated read revisited in place relies on the writes to its address
// being ordered
func (d *Driver) checkIPRValidity(r *label.Read) bool {
	if !d.conf.IPR || r.Annotation() == nil {
		return true
	}
	g := d.g()
	for _, w := range g.Co(r.Addr()) {
		if g.WriteLabel(w).IsWWRacy() {
			d.reportError(&Report{Kind: checking.WWRace, Pos: r.Pos(), Racy: w, HasRacy: true,
				Msg: "Unordered writes to a location read by an annotated read"}, true)
			return false
		}
	}
	return true
}
