package label

import (
	"testing"

	"github.com/lililuanluan/weazer/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddresses(t *testing.T) {
	g := StaticAddr(8)
	h := DynamicAddr(3, 16)

	assert.True(t, g.IsStatic())
	assert.False(t, g.IsDynamic())
	assert.True(t, h.IsDynamic())
	assert.Equal(t, 3, h.Thread())
	assert.EqualValues(t, 16, h.Offset())
	assert.Equal(t, "g+0x8", g.String())
	assert.Equal(t, "h3+0x10", h.String())
	assert.Equal(t, "NULL", SAddr(0).String())
	assert.Equal(t, DynamicAddr(3, 20), h.Add(4))
}

func TestOrderingParse(t *testing.T) {
	for _, o := range []Ordering{NotAtomic, Relaxed, Acquire, Release, AcqRel, SeqCst} {
		p, ok := ParseOrdering(o.String())
		require.True(t, ok, o.String())
		assert.Equal(t, o, p)
	}
	_, ok := ParseOrdering("strong")
	assert.False(t, ok)
	assert.True(t, AcqRel.IsAtLeastAcquire())
	assert.True(t, AcqRel.IsAtLeastRelease())
	assert.False(t, Release.IsAtLeastAcquire())
	assert.False(t, NotAtomic.IsAtomic())
}

func TestRMWOps(t *testing.T) {
	tests := []struct {
		op       RMWOp
		old, arg SVal
		want     SVal
	}{
		{OpAdd, 3, 2, 5},
		{OpSub, 3, 2, 1},
		{OpXchg, 3, 2, 2},
		{OpAnd, 6, 3, 2},
		{OpOr, 6, 3, 7},
		{OpMax, 6, 3, 6},
		{OpMin, 6, 3, 3},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.op.Apply(test.old, test.arg), test.op.String())
	}
}

func TestAnnotation(t *testing.T) {
	var none *Annotation
	assert.True(t, none.Holds(7))

	a := &Annotation{Op: Eq, Value: 1}
	assert.True(t, a.Holds(1))
	assert.False(t, a.Holds(0))

	r := NewRead(event.Event{Thread: 1, Index: 1}, Acquire, StaticAddr(0), 4, a)
	assert.True(t, r.ValueMakesAssumeSucceed(1))
	assert.False(t, r.ValueMakesAssumeSucceed(2))
}

func TestRMWReads(t *testing.T) {
	pos := event.Event{Thread: 1, Index: 1}
	cas := NewCasRead(KindCasRead, pos, Relaxed, StaticAddr(0), 4, 0, 1, nil)
	assert.True(t, cas.ValueMakesRMWSucceed(0))
	assert.False(t, cas.ValueMakesRMWSucceed(1))
	assert.EqualValues(t, 1, cas.RMWWriteValue(0))
	assert.Equal(t, KindCasWrite, cas.Kind().WriteCounterpart())

	fai := NewFaiRead(pos, Relaxed, StaticAddr(0), 4, OpAdd, 2)
	assert.True(t, fai.ValueMakesRMWSucceed(40))
	assert.EqualValues(t, 42, fai.RMWWriteValue(40))

	plain := NewRead(pos, Relaxed, StaticAddr(0), 4, nil)
	_, ok := plain.RMW()
	assert.False(t, ok)
	assert.False(t, plain.ValueMakesRMWSucceed(0))

	assert.Panics(t, func() { NewCasRead(KindFaiRead, pos, Relaxed, StaticAddr(0), 4, 0, 1, nil) })
}

func TestCloneIsDeep(t *testing.T) {
	r := NewCasRead(KindCasRead, event.Event{Thread: 1, Index: 2}, Acquire, StaticAddr(0), 4, 0, 1, &Annotation{Op: Eq, Value: 0})
	w := NewWrite(event.Event{Thread: 2, Index: 1}, Release, StaticAddr(0), 4, 5)
	LinkRf(r, nil, w)
	r.SetViews(event.NewView().SetMax(r.Pos()), event.NewView().SetMax(r.Pos()))

	rc := Clone(r).(*Read)
	wc := Clone(w).(*Write)
	rc.Annotation().Value = 9
	rmw, _ := rc.RMW()
	rmw.Swap = 9
	rc.PorfView().SetMax(event.Event{Thread: 3, Index: 0})
	FilterReaders(wc, func(event.Event) bool { return false })

	assert.EqualValues(t, 0, r.Annotation().Value)
	orig, _ := r.RMW()
	assert.EqualValues(t, 1, orig.Swap)
	assert.False(t, r.PorfView().Contains(event.Event{Thread: 3, Index: 0}))
	assert.Equal(t, []event.Event{r.Pos()}, w.Readers())
	assert.Empty(t, wc.Readers())
}

func TestCloneEveryKind(t *testing.T) {
	pos := event.Event{Thread: 1, Index: 1}
	labels := []Label{
		NewInit(),
		NewThreadStart(event.Event{Thread: 1}, event.Init(), 0, 0, -1),
		NewThreadCreate(pos, 2, 0, 0),
		NewThreadJoin(pos, 2),
		NewThreadFinish(pos, 0),
		NewThreadKill(pos),
		NewBlock(pos, BlockSpinloop),
		NewFence(pos, SeqCst),
		NewMalloc(pos, DynamicAddr(1, 0), 8),
		NewFree(pos, DynamicAddr(1, 0)),
		NewHpRetire(pos, DynamicAddr(1, 0)),
		NewHpProtect(pos, StaticAddr(0), DynamicAddr(1, 0)),
		NewHelpingCas(pos, SeqCst, StaticAddr(0), 4, 0, 1),
		NewOptional(pos),
		NewEmpty(pos),
		NewRead(pos, Relaxed, StaticAddr(0), 4, nil),
		NewWrite(pos, Relaxed, StaticAddr(0), 4, 1),
	}
	for _, lab := range labels {
		c := Clone(lab)
		assert.Equal(t, lab.Kind(), c.Kind())
		assert.Equal(t, lab.String(), c.String())
		assert.NotSame(t, lab, c)
	}
	assert.True(t, IsTerminator(NewBlock(pos, BlockJoin)))
	assert.True(t, IsTerminator(NewThreadFinish(pos, 0)))
	assert.False(t, IsTerminator(NewFence(pos, SeqCst)))
}
