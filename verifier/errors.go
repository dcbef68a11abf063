package verifier

import (
	"fmt"

	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	log "github.com/sirupsen/logrus"
)

// Record a problem. Errors halt the exploration, warnings are kept and the
// exploration goes on. Only errors are recorded while estimating.
func (d *Driver) reportError(rep *Report, halt bool) {
	if d.halted.Load() {
		return
	}
	if !halt && d.mode == estimation {
		return
	}
	if rep.HasRacy {
		rep.Trace = d.trace(rep.Pos, rep.Racy)
	} else {
		rep.Trace = d.trace(rep.Pos)
	}
	if d.conf.PrintOnError {
		rep.Graph = d.g().String()
	}
	entry := log.WithFields(log.Fields{"kind": rep.Kind, "pos": rep.Pos})
	if !halt {
		d.result.Warnings = append(d.result.Warnings, rep)
		entry.Warn("warning reported")
		return
	}
	d.result.Error = rep
	entry.Info("error detected")
	d.halted.Store(true)
}

// Report a warning the first time its kind is seen. A write-write race is
// an error if the exploration relied on it being absent.
func (d *Driver) reportWarningOnce(pos event.Event, kind checking.ErrorKind, racy *event.Event) {
	upgrade := kind == checking.WWRace && d.reliesOnOrderedWrites(pos)
	if upgrade || !d.warned[kind] {
		rep := &Report{Kind: kind, Pos: pos}
		if racy != nil {
			rep.Racy, rep.HasRacy = *racy, true
		}
		if upgrade {
			rep.Msg = "Unordered writes do not constitute a bug per se, though they often indicate faulty design. " +
				"This is reported as an error because symmetry reduction or in-place revisiting is in use"
		}
		d.reportError(rep, upgrade)
	}
	d.warned[kind] = true
	if kind == checking.WWRace {
		if w := d.g().WriteLabel(pos); w != nil {
			w.SetWWRacy(true)
		}
	}
}

// Returns true if symmetry reduction is active for some thread, or if an
// annotated read of the address of the write at pos is revisited in place
func (d *Driver) reliesOnOrderedWrites(pos event.Event) bool {
	g := d.g()
	if d.conf.Symmetry {
		for t := 1; t < g.NumThreads(); t++ {
			if ts := g.ThreadStart(t); ts != nil && ts.SymmetricTid != -1 {
				return true
			}
		}
	}
	if !d.conf.IPR {
		return false
	}
	w := g.WriteLabel(pos)
	if w == nil {
		return false
	}
	for _, lab := range g.Labels() {
		if r, ok := lab.(*label.Read); ok && r.Addr() == w.Addr() && r.Annotation() != nil {
			return true
		}
	}
	return false
}

// Returns the labels that lead to the given events, in the order they
// were added. The initializer stands for the whole graph.
func (d *Driver) trace(pos ...event.Event) []string {
	g := d.g()
	all := false
	v := event.NewView()
	for _, p := range pos {
		if p.IsInitializer() {
			all = true
		} else if lab := g.Label(p); lab != nil {
			v.Update(lab.PorfView())
		}
	}
	var out []string
	for _, lab := range g.LabelsByStamp() {
		if lab.Kind() == label.KindInit {
			continue
		}
		if all || v.Contains(lab.Pos()) {
			out = append(out, fmt.Sprintf("%v: %v", lab.Pos(), lab))
		}
	}
	return out
}

// Returns false after reporting an access to unallocated memory or an
// access whose size differs from the other accesses to its address
func (d *Driver) checkAccessValidity(a label.Access) bool {
	g := d.g()
	addr := a.Addr()
	if addr.IsNull() || (addr.IsDynamic() && g.FindAllocation(addr) == nil) {
		d.reportError(&Report{Kind: checking.AccessNonMalloc, Pos: a.Pos()}, true)
		return false
	}
	for _, o := range g.Accesses(addr) {
		if o.Size() != a.Size() {
			d.reportError(&Report{Kind: checking.MixedSize, Pos: a.Pos(), Racy: o.Pos(), HasRacy: true,
				Msg: fmt.Sprintf("Accesses of %d and %d bytes to %v", a.Size(), o.Size(), addr)}, true)
			return false
		}
	}
	return true
}

// Returns false after reporting a race or a memory error involving lab
func (d *Driver) checkForRaces(lab label.Label) bool {
	if d.mode == estimation {
		return true
	}
	// An RMW that breaks atomicity is discarded before it can race
	if w, ok := lab.(*label.Write); ok && d.g().ViolatesAtomicity(w) {
		return true
	}
	kind, racy := d.checker.CheckErrors(d.g(), lab)
	if kind == checking.OK {
		return true
	}
	if kind.IsWarning() {
		d.reportWarningOnce(lab.Pos(), kind, &racy)
		return !d.halted.Load()
	}
	d.reportError(&Report{Kind: kind, Pos: lab.Pos(), Racy: racy, HasRacy: true}, true)
	return false
}

// Returns false after reporting a read of allocated memory that was never
// written
func (d *Driver) checkInitializedMem(r *label.Read) bool {
	rf, _ := r.Rf()
	if r.Addr().IsDynamic() && rf.IsInitializer() {
		d.reportError(&Report{Kind: checking.UninitializedMem, Pos: r.Pos()}, true)
		return false
	}
	return true
}

// Returns false after reporting an unlock without a matching lock
func (d *Driver) checkUnlockValidity(w *label.Write) bool {
	if w.Kind() != label.KindUnlockWrite || d.findMatchingLock(w) {
		return true
	}
	d.reportError(&Report{Kind: checking.InvalidUnlock, Pos: w.Pos(),
		Msg: fmt.Sprintf("Unlocking %v which is not locked by thread %d", w.Addr(), w.Pos().Thread)}, true)
	return false
}

// Returns true if the thread of u holds the lock u releases
func (d *Driver) findMatchingLock(u *label.Write) bool {
	g := d.g()
	for j := u.Pos().Index - 1; j > 0; j-- {
		w := g.WriteLabel(event.Event{Thread: u.Pos().Thread, Index: j})
		if w == nil || w.Addr() != u.Addr() {
			continue
		}
		switch w.Kind() {
		case label.KindUnlockWrite:
			return false
		case label.KindLockCasWrite:
			return true
		}
	}
	return false
}

// A final write must be the last write to its address: every other write
// happens before it
func (d *Driver) checkFinalAnnotations(w *label.Write) bool {
	g := d.g()
	for _, o := range g.Co(w.Addr()) {
		if o == w.Pos() {
			continue
		}
		oLab := g.WriteLabel(o)
		bad := false
		if w.Kind() == label.KindFinalWrite {
			bad = !w.HbView().Contains(o)
		} else {
			bad = oLab.Kind() == label.KindFinalWrite
		}
		if bad {
			d.reportError(&Report{Kind: checking.Annotation, Pos: w.Pos(), Racy: o, HasRacy: true,
				Msg: fmt.Sprintf("Write to %v is not ordered before the final write", w.Addr())}, true)
			return false
		}
	}
	return true
}

// Report a liveness violation if every thread stuck in a spinloop spins on
// the latest value
func (d *Driver) checkLiveness() {
	g := d.g()
	var spinning []int
	for t := 0; t < g.NumThreads(); t++ {
		if b, ok := g.LastLabel(t).(*label.Block); ok && b.Type == label.BlockSpinloop {
			spinning = append(spinning, t)
		}
	}
	if len(spinning) == 0 {
		return
	}
	for _, t := range spinning {
		if !d.spinsOnMaximal(t) {
			return
		}
	}
	t := spinning[len(spinning)-1]
	d.reportError(&Report{
		Kind: checking.Liveness,
		Pos:  g.LastLabel(t).Pos(),
		Msg:  fmt.Sprintf("Non-terminating spinloop: thread %d", t),
	}, true)
}

// Returns true if the read the spinloop of t blocked on observes the
// coherence-maximal write
func (d *Driver) spinsOnMaximal(t int) bool {
	g := d.g()
	r := g.ReadLabel(g.LastLabel(t).Pos().Prev())
	if r == nil {
		return false
	}
	rf, ok := r.Rf()
	return ok && rf == g.CoMax(r.Addr())
}

func (d *Driver) checkUnfreedMemory() {
	for _, lab := range d.g().Labels() {
		if m, ok := lab.(*label.Malloc); ok && len(d.g().FindFrees(m.Addr)) == 0 {
			d.reportWarningOnce(m.Pos(), checking.UnfreedMemory, nil)
			return
		}
	}
}

// Returns true if a helped CAS matching h has been executed
func (d *Driver) checkHelpingCasCondition(h *label.HelpingCas) bool {
	g := d.g()
	for _, lab := range g.Labels() {
		r, ok := lab.(*label.Read)
		if !ok || r.Kind() != label.KindHelpedCasRead || !g.IsRMWLoad(r.Pos()) {
			continue
		}
		rmw, _ := r.RMW()
		if r.Addr() == h.Addr && r.Size() == h.Size && r.Ordering() == h.Ordering() &&
			rmw.Expected == h.Expected && rmw.Swap == h.Swap {
			return true
		}
	}
	return false
}

// Let threads waiting for a helped CAS retry once one succeeds
func (d *Driver) unblockWaitingHelping(w *label.Write) {
	if w.Kind() != label.KindHelpedCasWrite {
		return
	}
	g := d.g()
	for t := 0; t < g.NumThreads(); t++ {
		if b, ok := g.LastLabel(t).(*label.Block); ok && b.Type == label.BlockHelpedCas {
			g.RemoveLast(t)
			d.cursor[t] = b.Pos().Index
		}
	}
}

// At the end of an execution, every helping CAS must have been helped, and
// the value a helping CAS expects may only be written to be consumed by a
// helped CAS
func (d *Driver) checkHelpingCasAnnotation() {
	g := d.g()
	for t := 0; t < g.NumThreads(); t++ {
		if b, ok := g.LastLabel(t).(*label.Block); ok && b.Type == label.BlockHelpedCas {
			d.reportError(&Report{Kind: checking.Annotation, Pos: b.Pos(),
				Msg: "Helping CAS is never matched by a helped CAS"}, true)
			return
		}
	}
	for _, lab := range g.Labels() {
		h, ok := lab.(*label.HelpingCas)
		if !ok {
			continue
		}
		for _, w := range g.Co(h.Addr) {
			if g.WriteLabel(w).Val() != h.Expected {
				continue
			}
			helped := false
			for _, r := range g.Readers(h.Addr, w) {
				if g.ReadLabel(r).Kind() == label.KindHelpedCasRead {
					helped = true
					break
				}
			}
			if !helped {
				d.reportError(&Report{Kind: checking.Annotation, Pos: w, Racy: h.Pos(), HasRacy: true,
					Msg: "Store read by a helping CAS is not read by a helped CAS"}, true)
				return
			}
		}
	}
}
