package verifier

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
)

// Returns the closest earlier thread that runs the same function with the
// same argument as the thread tc creates, with no memory access between
// the two creations, or -1
func (d *Driver) symmetricTid(tc *label.ThreadCreate) int {
	if !d.conf.Symmetry {
		return -1
	}
	for i := tc.Child - 1; i > 0; i-- {
		if d.isSymmetricTo(i, tc) {
			return i
		}
	}
	return -1
}

func (d *Driver) isSymmetricTo(cand int, tc *label.ThreadCreate) bool {
	g := d.g()
	ts := g.ThreadStart(cand)
	if ts == nil || ts.FuncID != tc.FuncID || ts.Arg != tc.Arg || ts.Parent.Thread != tc.Pos().Thread {
		return false
	}
	lo, hi := ts.Parent.Index, tc.Pos().Index
	if lo > hi {
		lo, hi = hi, lo
	}
	for j := lo + 1; j < hi; j++ {
		if g.Label(event.Event{Thread: tc.Pos().Thread, Index: j}).Kind().IsMemAccess() {
			return false
		}
	}
	return true
}

// Returns the thread t is symmetric to, or -1
func (d *Driver) symmPred(t int) int {
	if ts := d.g().ThreadStart(t); ts != nil {
		return ts.SymmetricTid
	}
	return -1
}

// Returns the thread symmetric to t, or -1
func (d *Driver) symmSucc(t int) int {
	g := d.g()
	for i := t + 1; i < g.NumThreads(); i++ {
		if d.symmPred(i) == t {
			return i
		}
	}
	return -1
}

// Of a chain of symmetric threads, run the first one that can run
func (d *Driver) firstSchedulableSymmetric(t int) int {
	if !d.conf.Symmetry {
		return t
	}
	first := t
	for s := d.symmPred(t); s != -1; s = d.symmPred(s) {
		if d.schedulable(s) {
			first = s
		}
	}
	return first
}

// Returns the last index j before pos such that thread tid and the thread
// of pos did the same thing up to j
func (d *Driver) largestSymmPrefixBefore(tid int, pos event.Event) int {
	g := d.g()
	if tid < 0 || tid >= g.NumThreads() {
		return -1
	}
	limit := pos.Index
	if n := g.ThreadSize(tid) - 1; n < limit {
		limit = n
	}
	for j := 0; j < limit; j++ {
		a := g.Label(event.Event{Thread: tid, Index: j})
		b := g.Label(event.Event{Thread: pos.Thread, Index: j})
		if a.Kind() != b.Kind() {
			return j - 1
		}
		switch la := a.(type) {
		case *label.Read:
			lb := b.(*label.Read)
			rfa, _ := la.Rf()
			rfb, _ := lb.Rf()
			if rfa.Thread == tid && rfb.Thread == pos.Thread && rfa.Index == rfb.Index {
				continue
			}
			if rfa != rfb {
				return j - 1
			}
		case *label.Write:
			return j - 1
		}
	}
	return limit
}

func (d *Driver) sharePrefix(tid int, pos event.Event) bool {
	return d.largestSymmPrefixBefore(tid, pos) == pos.Index
}

// A read of a thread symmetric to an earlier one does not read from the
// write the RMW of the earlier thread read from
func (d *Driver) filterSymmetricStores(r *label.Read, stores []event.Event) []event.Event {
	g := d.g()
	t := d.symmPred(r.Pos().Thread)
	if t == -1 || !d.sharePrefix(t, r.Pos()) {
		return stores
	}
	lab := g.ReadLabel(event.Event{Thread: t, Index: r.Pos().Index})
	if lab == nil || lab.Addr() != r.Addr() || lab.Size() != r.Size() || !g.IsRMWLoad(lab.Pos()) {
		return stores
	}
	rf, _ := lab.Rf()
	out := make([]event.Event, 0, len(stores))
	for _, s := range stores {
		if s != rf {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return stores
	}
	return out
}

// Returns true if lab is not eco-before the label at the same index of a
// thread symmetric to its own
func (d *Driver) isSymmetryOK(lab label.Label) bool {
	g := d.g()
	t := lab.Pos().Thread
	for s := d.symmPred(t); s != -1; s = d.symmPred(s) {
		if !d.sharePrefix(s, lab.Pos()) {
			continue
		}
		other := g.Label(event.Event{Thread: s, Index: lab.Pos().Index})
		if other != nil && other.Kind() == lab.Kind() && d.isEcoBefore(lab, s) {
			return false
		}
	}
	for s := d.symmSucc(t); s != -1; s = d.symmSucc(s) {
		if !d.sharePrefix(s, lab.Pos()) {
			continue
		}
		other := g.Label(event.Event{Thread: s, Index: lab.Pos().Index})
		if other != nil && other.Kind() == lab.Kind() && d.isEcoBefore(other, t) {
			return false
		}
	}
	return true
}

// Returns true if lab is coherence- or from-read-before the label at the
// same index in thread tid, or before a read of that label
func (d *Driver) isEcoBefore(lab label.Label, tid int) bool {
	g := d.g()
	a, ok := lab.(label.Access)
	if !ok {
		return false
	}
	target := event.Event{Thread: tid, Index: lab.Pos().Index}
	from := lab.Pos()
	if r, ok := lab.(*label.Read); ok {
		rf, ok := r.Rf()
		if !ok {
			return false
		}
		from = rf
	}
	for _, s := range g.CoSuccessors(a.Addr(), from) {
		if s == target {
			return true
		}
		for _, r := range g.Readers(a.Addr(), s) {
			if r == target {
				return true
			}
		}
	}
	return false
}

// Extend the porf view of lab with the prefix of the matching label of the
// thread it is symmetric to
func (d *Driver) updatePrefixWithSymmetries(lab label.Label) {
	g := d.g()
	t := d.symmPred(lab.Pos().Thread)
	if t == -1 {
		return
	}
	si := d.largestSymmPrefixBefore(t, lab.Pos())
	if si < 0 {
		return
	}
	symm := g.Label(event.Event{Thread: t, Index: si})
	if symm == nil {
		return
	}
	v := lab.PorfView().Clone()
	v.Update(symm.PorfView())
	if r, ok := symm.(*label.Read); ok {
		if rf, ok := r.Rf(); ok && !rf.IsInitializer() {
			v.Update(g.Label(rf).PorfView())
		}
	}
	lab.SetViews(v, lab.HbView())
}
