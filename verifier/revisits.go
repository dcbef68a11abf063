package verifier

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/revisit"
	log "github.com/sirupsen/logrus"
)

// Queue the backward revisits of the reads that may read from w. Returns
// false if the execution cannot be continued.
func (d *Driver) calcRevisits(w *label.Write) bool {
	g := d.g()
	loads := d.checker.CoherentRevisits(g, w)
	if d.conf.IPR {
		loads = d.tryOptimizeIPRs(w, loads)
	}
	if d.mode == estimation {
		for _, l := range loads {
			d.choices().Add(g.Label(l).Stamp(), w.Pos())
		}
		return d.checkAtomicity(w) && !d.moot
	}
	for _, l := range loads {
		br := d.constructBackwardRevisit(g.ReadLabel(l), w)
		if !d.isMaximalExtension(br) {
			continue
		}
		d.workSet().Add(w.Stamp(), br)
	}
	return d.checkAtomicity(w) && !d.moot
}

// Mark the execution moot if the RMW write w breaks atomicity
func (d *Driver) checkAtomicity(w *label.Write) bool {
	if d.g().ViolatesAtomicity(w) {
		d.setMoot()
		return false
	}
	return true
}

func (d *Driver) constructBackwardRevisit(r *label.Read, w *label.Write) *revisit.Backward {
	return &revisit.Backward{Read: r.Pos(), Rev: w.Pos(), View: d.revisitView(r, w, nil)}
}

// Returns the events a backward revisit keeps: the events added before r
// and the porf-prefix of w
func (d *Driver) revisitView(r *label.Read, w *label.Write, mid *event.Event) *event.View {
	g := d.g()
	v := g.PredsView(r.Pos())
	v.Update(w.PorfView())
	if mid != nil {
		v.Update(g.Label(*mid).PorfView())
	}
	return v
}

// Returns true if the revisit only deletes labels that were added
// maximally, so that the resulting graph is reached exactly once
func (d *Driver) isMaximalExtension(br *revisit.Backward) bool {
	g := d.g()
	w := g.WriteLabel(br.Rev)
	v := br.View
	if !w.IsRMW() {
		if succ, ok := g.CoImmediateSucc(w.Addr(), w.Pos()); ok && !v.Contains(succ) {
			return false
		}
	}
	for _, lab := range g.Labels() {
		if v.Contains(lab.Pos()) && lab.Pos() != br.Read {
			continue
		}
		if !wasAddedMaximally(lab) || d.isCoBeforeSavedPrefix(br, lab) || d.hasBeenRevisitedByDeleted(br, lab) {
			return false
		}
	}
	return true
}

func wasAddedMaximally(lab label.Label) bool {
	switch l := lab.(type) {
	case label.Access:
		return l.WasAddedMax()
	case *label.Optional:
		return !l.Expanded
	}
	return true
}

// Returns true if the write lab, or the write the read lab reads from, is
// coherence-before a write the revisit keeps
func (d *Driver) isCoBeforeSavedPrefix(br *revisit.Backward, lab label.Label) bool {
	g := d.g()
	var from event.Event
	switch l := lab.(type) {
	case *label.Write:
		from = l.Pos()
	case *label.Read:
		rf, ok := l.Rf()
		if !ok {
			return false
		}
		from = rf
	default:
		return false
	}
	for _, s := range g.CoSuccessors(lab.(label.Access).Addr(), from) {
		if s != br.Rev && br.View.Contains(s) {
			return true
		}
	}
	return false
}

// Returns true if the read lab reads from a later write that the revisit
// deletes
func (d *Driver) hasBeenRevisitedByDeleted(br *revisit.Backward, lab label.Label) bool {
	r, ok := lab.(*label.Read)
	if !ok || r.IsIPR() {
		return false
	}
	rf, ok := r.Rf()
	if !ok || rf.IsInitializer() || br.View.Contains(rf) {
		return false
	}
	return d.g().Label(rf).Stamp() > r.Stamp()
}

// Restore the graph to the point where item was queued and apply it.
// Returns false if there is nothing to run.
func (d *Driver) restrictAndRevisit(s event.Stamp, item revisit.Revisit) bool {
	if repaired := d.execs.top().Restrict(s); len(repaired) > 0 {
		d.refreshViews()
	}
	switch r := item.(type) {
	case *revisit.Backward:
		return d.backwardRevisit(r)
	case *revisit.ReadForward:
		return d.revisitRead(r.Read, r.Rev, r.Maximal)
	case *revisit.WriteForward:
		return d.revisitWrite(r)
	case *revisit.OptionalForward:
		return d.revisitOptional(r)
	case *revisit.RerunForward:
		return true
	}
	bug("unknown revisit %v", item)
	return false
}

// Make the read at pos read from rev
func (d *Driver) revisitRead(pos, rev event.Event, maximal bool) bool {
	g := d.g()
	r := g.ReadLabel(pos)
	g.SetRf(r, rev)
	r.SetAddedMax(maximal)
	r.SetIPR(false)
	d.updateViews(r)

	if d.removeCASReadIfBlocks(r, rev) {
		return true
	}
	if added, ok := d.completeRevisitedRMW(r); added {
		return ok
	}
	if r.Kind() == label.KindLockCasRead && !r.ValueMakesAssumeSucceed(d.readValue(r)) {
		d.blockThread(label.NewBlock(r.Pos().Next(), label.BlockLockNotAcq))
		if !d.conf.bounded() {
			d.prios = []int{rev.Thread}
		}
	}
	return true
}

// Add the write part of a revisited RMW if the new value makes it succeed.
// The first result is true if a write was added, the second is false if
// the execution cannot be continued.
func (d *Driver) completeRevisitedRMW(r *label.Read) (bool, bool) {
	if _, ok := r.RMW(); !ok {
		return false, true
	}
	val := d.readValue(r)
	if !r.ValueMakesRMWSucceed(val) {
		return false, true
	}
	rf, _ := r.Rf()
	w := label.NewWriteOfKind(r.Kind().WriteCounterpart(), r.Pos().Next(), r.Ordering(), r.Addr(), r.Size(), r.RMWWriteValue(val))
	d.addLabel(w)
	d.g().MoveStoreCOAfter(w, rf)
	return true, d.calcRevisits(w)
}

func (d *Driver) revisitWrite(item *revisit.WriteForward) bool {
	w := d.g().WriteLabel(item.Write)
	d.g().MoveStoreCOAfter(w, item.Pred)
	w.SetAddedMax(false)
	return d.calcRevisits(w)
}

func (d *Driver) revisitOptional(item *revisit.OptionalForward) bool {
	o := d.g().Label(item.Optional).(*label.Optional)
	o.Expandable = false
	o.Expanded = true
	return true
}

// Apply a backward revisit on a copy of the graph restricted to its view.
// The copy is pushed as a new execution, or offloaded if a pool takes it.
// The view is recomputed on the current graph, and the revisit is dropped
// if it is no longer a maximal extension.
func (d *Driver) backwardRevisit(br *revisit.Backward) bool {
	g := d.g()
	r, w := g.ReadLabel(br.Read), g.WriteLabel(br.Rev)
	if r == nil || w == nil {
		log.Debugf("dropped %v: labels are gone", br)
		return false
	}
	br = &revisit.Backward{Read: br.Read, Rev: br.Rev, Mid: br.Mid, View: d.revisitView(r, w, br.Mid)}
	if !d.isMaximalExtension(br) {
		log.Debugf("dropped %v: not a maximal extension", br)
		return false
	}

	c := g.GetCopyUpTo(br.View)
	c.CompressStampsAfter(r.Stamp())
	for _, lab := range c.Labels() {
		if cr, ok := lab.(*label.Read); ok && w.PorfView().Contains(cr.Pos()) {
			cr.SetRevisitable(false)
		}
	}
	d.execs.push(NewExecution(c, nil))
	if repaired := c.RepairDanglingReads(); len(repaired) > 0 {
		d.refreshViews()
	}

	ok := d.revisitRead(br.Read, br.Rev, br.Rev == c.CoMax(r.Addr()))
	if d.offload == nil {
		return ok
	}
	if ok && !d.moot && d.isRevisitValid(br) && d.offload(d.exportState()) {
		log.Debugf("offloaded %v", br)
		d.execs.pop()
		return false
	}
	return ok
}

// Returns true if the graph the revisit produced is worth running
func (d *Driver) isRevisitValid(item revisit.Revisit) bool {
	g := d.g()
	lab := g.Label(item.Pos())
	if _, ok := lab.(label.Access); !ok {
		return true
	}
	if !d.isExecutionValid(lab) {
		return false
	}
	r, ok := lab.(*label.Read)
	if !ok {
		return true
	}
	if !d.checkInitializedMem(r) {
		return false
	}
	if g.IsRMWLoad(r.Pos()) {
		w := g.Label(r.Pos().Next())
		return d.isExecutionValid(w) && d.checkForRaces(w)
	}
	return true
}

func (d *Driver) isExecutionValid(lab label.Label) bool {
	if d.conf.Symmetry && !d.isSymmetryOK(lab) {
		return false
	}
	return d.checker.IsConsistent(d.g()) && !d.partialExecutionExceedsBound()
}
