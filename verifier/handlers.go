package verifier

import (
	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/revisit"
	log "github.com/sirupsen/logrus"
)

// Size of the word a mutex occupies
const mutexSize label.ASize = 8

func (d *Driver) HandleLoad(t int, ord label.Ordering, addr label.SAddr, size label.ASize, annot *label.Annotation) (label.SVal, bool) {
	if r, ok := replay[*label.Read](d, t); ok {
		return d.replayRead(r)
	}
	return d.handleRead(label.NewRead(d.next(t), ord, addr, size, annot))
}

func (d *Driver) HandleCAS(t int, k label.Kind, ord label.Ordering, addr label.SAddr, size label.ASize, exp, swap label.SVal) (label.SVal, bool) {
	if r, ok := replay[*label.Read](d, t); ok {
		return d.replayRMW(r)
	}
	var annot *label.Annotation
	if k == label.KindLockCasRead {
		annot = &label.Annotation{Op: label.Eq, Value: exp}
	}
	return d.handleRead(label.NewCasRead(k, d.next(t), ord, addr, size, exp, swap, annot))
}

func (d *Driver) HandleFAI(t int, op label.RMWOp, ord label.Ordering, addr label.SAddr, size label.ASize, operand label.SVal) (label.SVal, bool) {
	if r, ok := replay[*label.Read](d, t); ok {
		return d.replayRMW(r)
	}
	return d.handleRead(label.NewFaiRead(d.next(t), ord, addr, size, op, operand))
}

// Replay the read part of an RMW and skip its write part if present
func (d *Driver) replayRMW(r *label.Read) (label.SVal, bool) {
	if d.g().IsRMWLoad(r.Pos()) {
		d.cursor[r.Pos().Thread]++
	}
	return d.replayRead(r)
}

// Returns the value of a replayed read. A read that was rebound to a value
// its annotation rejects blocks again.
func (d *Driver) replayRead(r *label.Read) (label.SVal, bool) {
	t := r.Pos().Thread
	val := d.readValue(r)
	if d.blockedAtCursor(t) {
		return val, false
	}
	if !d.replaying(t) && !r.ValueMakesAssumeSucceed(val) {
		d.blockOnAnnotation(r)
		return val, false
	}
	return val, true
}

// Block the thread of r, whose value fails its annotation
func (d *Driver) blockOnAnnotation(r *label.Read) {
	b := label.NewBlock(r.Pos().Next(), label.BlockSpinloop)
	if r.Kind() == label.KindLockCasRead {
		b.Type = label.BlockLockNotAcq
		d.blockThread(b)
		return
	}
	d.blockThreadTryMoot(b)
}

// Add a new read, pick its source and queue the alternatives. The write
// part of a successful RMW is added right after it.
func (d *Driver) handleRead(r *label.Read) (label.SVal, bool) {
	g := d.g()
	d.addLabel(r)
	if !d.checkAccessValidity(r) || !d.checkForRaces(r) || !d.checkIPRValidity(r) {
		return 0, false
	}
	if d.rescheduled != r.Pos() && d.removeCASReadIfBlocks(r, g.CoMax(r.Addr())) {
		return 0, false
	}
	if d.rescheduled == r.Pos() {
		d.rescheduled = event.Init()
	}

	stores := d.filterOptimizeRfs(r, d.rfsApproximation(r))
	if d.mode == estimation {
		for _, s := range stores {
			d.choices().Add(r.Stamp(), s)
		}
		stores = d.filterAtomicityViolations(r, stores)
		rf := stores[d.rand.Intn(len(stores))]
		g.SetRf(r, rf)
		r.SetAddedMax(rf == g.CoMax(r.Addr()))
	} else {
		_, rest, ok := d.findConsistentRf(r, stores)
		if !ok {
			return 0, false
		}
		for _, s := range rest {
			d.workSet().Add(r.Stamp(), &revisit.ReadForward{Read: r.Pos(), Rev: s})
		}
	}
	d.updateViews(r)
	if !d.checkInitializedMem(r) {
		return 0, false
	}

	val := d.readValue(r)
	if _, ok := r.RMW(); ok && r.ValueMakesRMWSucceed(val) {
		w := label.NewWriteOfKind(r.Kind().WriteCounterpart(), r.Pos().Next(), r.Ordering(), r.Addr(), r.Size(), r.RMWWriteValue(val))
		if !d.addWrite(w) {
			return val, false
		}
	}
	if !r.ValueMakesAssumeSucceed(val) {
		d.blockOnAnnotation(r)
		return val, false
	}
	return val, true
}

// Returns the writes r may read from. A CAS or FAI does not read from a
// write that another RMW has already settled on.
func (d *Driver) rfsApproximation(r *label.Read) []event.Event {
	g := d.g()
	stores := d.checker.CoherentStores(g, r)
	if !r.Kind().IsRMWRead() {
		return stores
	}
	before := r.PorfView()
	out := stores[:0:0]
	for _, s := range stores {
		settled := false
		for _, o := range g.Readers(r.Addr(), s) {
			oLab := g.ReadLabel(o)
			if o != r.Pos() && g.IsRMWLoad(o) && (!oLab.IsRevisitable() || before.Contains(o)) &&
				r.ValueMakesRMWSucceed(d.writeValue(s, r.Addr())) {
				settled = true
				break
			}
		}
		if !settled {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return stores[len(stores)-1:]
	}
	return out
}

// Drop the writes whose outcome is covered by another choice
func (d *Driver) filterOptimizeRfs(r *label.Read, stores []event.Event) []event.Event {
	if d.conf.Symmetry {
		stores = d.filterSymmetricStores(r, stores)
	}
	return d.filterValuesFromAnnotation(r, stores)
}

// An annotated read only needs the writes that satisfy its annotation, plus
// the maximal one to block on
func (d *Driver) filterValuesFromAnnotation(r *label.Read, stores []event.Event) []event.Event {
	if r.Annotation() == nil || len(stores) < 2 {
		return stores
	}
	g := d.g()
	last := stores[len(stores)-1]
	out := make([]event.Event, 0, len(stores))
	for _, s := range stores {
		if s == last || s == g.CoMax(r.Addr()) || r.ValueMakesAssumeSucceed(d.writeValue(s, r.Addr())) {
			out = append(out, s)
		}
	}
	return out
}

// Returns the source of r, trying the candidates from last to first under
// a bound. The second result holds the untried candidates.
func (d *Driver) findConsistentRf(r *label.Read, stores []event.Event) (event.Event, []event.Event, bool) {
	g := d.g()
	for len(stores) > 0 {
		rf := stores[len(stores)-1]
		stores = stores[:len(stores)-1]
		g.SetRf(r, rf)
		if !d.conf.bounded() {
			return rf, stores, true
		}
		d.updateViews(r)
		if d.isExecutionValid(r) {
			return rf, stores, true
		}
	}
	d.setMoot()
	return event.Event{}, nil, false
}

// Returns the placing of w, trying the candidates from last to first under
// a bound. The first result holds the untried candidates.
func (d *Driver) findConsistentCo(w *label.Write, cos []event.Event) ([]event.Event, bool) {
	g := d.g()
	for len(cos) > 0 {
		pred := cos[len(cos)-1]
		cos = cos[:len(cos)-1]
		g.MoveStoreCOAfter(w, pred)
		if !d.conf.bounded() || d.isExecutionValid(w) {
			return cos, true
		}
	}
	d.setMoot()
	return nil, false
}

func (d *Driver) HandleStore(t int, ord label.Ordering, addr label.SAddr, size label.ASize, val label.SVal, final bool) bool {
	if _, ok := replay[*label.Write](d, t); ok {
		return !d.blockedAtCursor(t)
	}
	k := label.KindWrite
	if final {
		k = label.KindFinalWrite
	}
	return d.addWrite(label.NewWriteOfKind(k, d.next(t), ord, addr, size, val))
}

// Add a new write, place it in coherence order and queue the reads it
// may revisit
func (d *Driver) addWrite(w *label.Write) bool {
	g := d.g()
	d.addLabel(w)
	if !d.checkAccessValidity(w) || !d.checkUnlockValidity(w) || !d.checkFinalAnnotations(w) || !d.checkForRaces(w) {
		return false
	}
	d.unblockWaitingHelping(w)
	d.checkReconsiderReadOpts(w)

	cos := d.checker.CoherentPlacings(g, w)
	if len(cos) > 1 {
		d.reportWarningOnce(w.Pos(), checking.WWRace, &cos[0])
		if d.halted.Load() {
			return false
		}
	}
	if d.mode == estimation {
		for _, c := range cos {
			d.choices().Add(w.Stamp(), c)
		}
		g.MoveStoreCOAfter(w, cos[d.rand.Intn(len(cos))])
	} else {
		rest, ok := d.findConsistentCo(w, cos)
		if !ok {
			return false
		}
		for _, c := range rest {
			d.workSet().Add(w.Stamp(), &revisit.WriteForward{Write: w.Pos(), Pred: c})
		}
	}
	return d.calcRevisits(w)
}

func (d *Driver) HandleFence(t int, ord label.Ordering) bool {
	if _, ok := replay[*label.Fence](d, t); ok {
		return !d.blockedAtCursor(t)
	}
	d.addLabel(label.NewFence(d.next(t), ord))
	return true
}

func (d *Driver) HandleMalloc(t int, size label.ASize) (label.SAddr, bool) {
	if m, ok := replay[*label.Malloc](d, t); ok {
		return m.Addr, !d.blockedAtCursor(t)
	}
	pos := d.next(t)
	addr := label.DynamicAddr(t, d.g().NextAllocationOffset(t, pos.Index))
	d.addLabel(label.NewMalloc(pos, addr, size))
	return addr, true
}

func (d *Driver) HandleFree(t int, addr label.SAddr) bool {
	if _, ok := replay[*label.Free](d, t); ok {
		return !d.blockedAtCursor(t)
	}
	return d.handleFree(label.NewFree(d.next(t), addr))
}

func (d *Driver) HandleHpRetire(t int, addr label.SAddr) bool {
	if _, ok := replay[*label.Free](d, t); ok {
		return !d.blockedAtCursor(t)
	}
	return d.handleFree(label.NewHpRetire(d.next(t), addr))
}

func (d *Driver) handleFree(f *label.Free) bool {
	d.addLabel(f)
	if m := d.g().FindAllocation(f.Addr); m == nil || m.Addr != f.Addr {
		d.reportError(&Report{Kind: checking.FreeNonMalloc, Pos: f.Pos()}, true)
		return false
	}
	return d.checkForRaces(f)
}

func (d *Driver) HandleHpProtect(t int, hp, addr label.SAddr) bool {
	if _, ok := replay[*label.HpProtect](d, t); ok {
		return !d.blockedAtCursor(t)
	}
	d.addLabel(label.NewHpProtect(d.next(t), hp, addr))
	return true
}

func (d *Driver) HandleThreadCreate(t int, funcID int, arg label.SVal) (int, bool) {
	if tc, ok := replay[*label.ThreadCreate](d, t); ok {
		// The start of the child may not have been kept by a revisit
		if d.g().IsThreadEmpty(tc.Child) {
			d.addThreadStart(tc)
		}
		return tc.Child, !d.blockedAtCursor(t)
	}
	tc := label.NewThreadCreate(d.next(t), d.g().FreeThreadID(), funcID, arg)
	d.addLabel(tc)
	d.addThreadStart(tc)
	return tc.Child, true
}

func (d *Driver) addThreadStart(tc *label.ThreadCreate) {
	symm := d.symmetricTid(tc)
	d.addLabel(label.NewThreadStart(event.Event{Thread: tc.Child}, tc.Pos(), tc.FuncID, tc.Arg, symm))
	log.Debugf("thread %d created by %v, symmetric to %d", tc.Child, tc.Pos(), symm)
}

func (d *Driver) HandleThreadJoin(t int, child int) (label.SVal, bool) {
	g := d.g()
	if j, ok := replay[*label.ThreadJoin](d, t); ok {
		return g.LastLabel(j.Child).(*label.ThreadFinish).Ret, !d.blockedAtCursor(t)
	}
	pos := d.next(t)
	if child <= 0 || child == t || child >= g.NumThreads() || g.IsThreadEmpty(child) {
		d.reportError(&Report{Kind: checking.InvalidJoin, Pos: pos}, true)
		return 0, false
	}
	if !g.IsThreadComplete(child) {
		b := label.NewBlock(pos, label.BlockJoin)
		b.Child = child
		d.blockThread(b)
		return 0, false
	}
	d.addLabel(label.NewThreadJoin(pos, child))
	return g.LastLabel(child).(*label.ThreadFinish).Ret, true
}

func (d *Driver) HandleThreadFinish(t int, ret label.SVal) bool {
	if _, ok := replay[*label.ThreadFinish](d, t); ok {
		return true
	}
	g := d.g()
	d.addLabel(label.NewThreadFinish(d.next(t), ret))
	for u := 0; u < g.NumThreads(); u++ {
		if b, ok := g.LastLabel(u).(*label.Block); ok && b.Type == label.BlockJoin && b.Child == t {
			g.RemoveLast(u)
			d.cursor[u] = b.Pos().Index
		}
	}
	if d.partialExecutionExceedsBound() {
		d.setMoot()
		return false
	}
	return true
}

func (d *Driver) HandleThreadKill(t int) bool {
	if _, ok := replay[*label.ThreadKill](d, t); ok {
		return true
	}
	d.addLabel(label.NewThreadKill(d.next(t)))
	return true
}

// A lock is an acquire CAS from 0 to 1 that only reads a released mutex
func (d *Driver) HandleLock(t int, addr label.SAddr) bool {
	_, ok := d.HandleCAS(t, label.KindLockCasRead, label.Acquire, addr, mutexSize, 0, 1)
	return ok
}

func (d *Driver) HandleUnlock(t int, addr label.SAddr) bool {
	if _, ok := replay[*label.Write](d, t); ok {
		return !d.blockedAtCursor(t)
	}
	return d.addWrite(label.NewWriteOfKind(label.KindUnlockWrite, d.next(t), label.Release, addr, mutexSize, 0))
}

func (d *Driver) HandleHelpingCas(t int, ord label.Ordering, addr label.SAddr, size label.ASize, exp, swap label.SVal) bool {
	if _, ok := replay[*label.HelpingCas](d, t); ok {
		return !d.blockedAtCursor(t)
	}
	h := label.NewHelpingCas(d.next(t), ord, addr, size, exp, swap)
	d.addLabel(h)
	if !d.checkHelpingCasCondition(h) {
		d.blockThread(label.NewBlock(h.Pos(), label.BlockHelpedCas))
		return false
	}
	return true
}

func (d *Driver) HandleOptional(t int) (bool, bool) {
	if o, ok := replay[*label.Optional](d, t); ok {
		return o.Expanded, !d.blockedAtCursor(t)
	}
	g := d.g()
	o := label.NewOptional(d.next(t))
	for _, lab := range g.Labels() {
		if oo, ok := lab.(*label.Optional); ok && !oo.Expandable {
			o.Expandable = false
			break
		}
	}
	d.addLabel(o)
	if d.mode == verification && o.Expandable {
		d.workSet().Add(o.Stamp(), &revisit.OptionalForward{Optional: o.Pos()})
	}
	return false, true
}

func (d *Driver) HandleAssume(t int, cond bool) bool {
	if cond {
		return true
	}
	d.blockThreadTryMoot(label.NewBlock(d.next(t), label.BlockUser))
	return false
}

func (d *Driver) HandleAssertFail(t int, msg string) bool {
	b := label.NewBlock(d.next(t), label.BlockError)
	d.blockThread(b)
	d.reportError(&Report{Kind: checking.Safety, Pos: b.Pos(), Msg: msg}, true)
	return false
}

func (d *Driver) Memory(addr label.SAddr) label.SVal {
	return d.writeValue(d.g().CoMax(addr), addr)
}

// Add a block label. A label already at the position of the block is
// replaced.
func (d *Driver) blockThread(b *label.Block) {
	g := d.g()
	t := b.Pos().Thread
	if last := g.LastLabel(t); last != nil && last.Pos() == b.Pos() {
		g.RemoveLast(t)
	}
	g.AddLabel(b)
	d.growCursor(t)
	d.cursor[t] = b.Pos().Index
	log.Debugf("blocked %v: %v", b.Pos(), b)
}

// Block the thread, and mark the execution moot if the read the thread
// blocked on will be revisited into another execution anyway
func (d *Driver) blockThreadTryMoot(b *label.Block) {
	d.blockThread(b)
	r, ok := d.previousAccess(b.Pos()).(*label.Read)
	if ok && (!r.IsRevisitable() || !r.WasAddedMax()) {
		d.setMoot()
	}
}

// Returns the last memory access of the thread of pos before pos, or nil
func (d *Driver) previousAccess(pos event.Event) label.Access {
	g := d.g()
	for j := pos.Index - 1; j > 0; j-- {
		if a, ok := g.Label(event.Event{Thread: pos.Thread, Index: j}).(label.Access); ok {
			return a
		}
	}
	return nil
}
