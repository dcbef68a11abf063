package graph

import (
	"testing"

	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var x = label.StaticAddr(0)

func ev(t, i int) event.Event {
	return event.Event{Thread: t, Index: i}
}

func spawn(g *ExecutionGraph, t int) {
	g.AddLabel(label.NewThreadStart(ev(t, 0), event.Init(), 0, 0, -1))
}

func write(g *ExecutionGraph, t int, v label.SVal) *label.Write {
	pos := ev(t, g.ThreadSize(t))
	return g.AddLabel(label.NewWrite(pos, label.Relaxed, x, 4, v)).(*label.Write)
}

func read(g *ExecutionGraph, t int, rf event.Event) *label.Read {
	pos := ev(t, g.ThreadSize(t))
	r := g.AddLabel(label.NewRead(pos, label.Relaxed, x, 4, nil)).(*label.Read)
	g.SetRf(r, rf)
	return r
}

// Two writers and a reader of the second writer
func twoWritersOneReader() *ExecutionGraph {
	g := New()
	spawn(g, 1)
	write(g, 1, 1)
	spawn(g, 2)
	write(g, 2, 2)
	spawn(g, 3)
	read(g, 3, ev(2, 1))
	return g
}

func TestNewGraphHasInit(t *testing.T) {
	g := New()
	require.Equal(t, 1, g.NumThreads())
	assert.Equal(t, label.KindInit, g.Label(event.Init()).Kind())
	assert.Equal(t, event.Init(), g.CoMax(x))
	assert.EqualValues(t, 1, g.NextStamp())
}

func TestAddLabelAtWrongPositionPanics(t *testing.T) {
	g := New()
	assert.Panics(t, func() {
		g.AddLabel(label.NewFence(ev(0, 3), label.SeqCst))
	})
	assert.Panics(t, func() {
		g.AddLabel(label.NewFence(ev(5, 1), label.SeqCst))
	})
}

func TestAddLabelAssignsIncreasingStamps(t *testing.T) {
	g := twoWritersOneReader()
	g.Validate()
	var last event.Stamp
	for _, lab := range g.LabelsByStamp()[1:] {
		assert.Greater(t, lab.Stamp(), last)
		last = lab.Stamp()
	}
}

func TestCoherenceOrder(t *testing.T) {
	g := twoWritersOneReader()
	assert.Equal(t, []event.Event{ev(1, 1), ev(2, 1)}, g.Co(x))
	assert.True(t, g.IsCoMaximal(x, ev(2, 1)))

	g.MoveStoreCOAfter(g.WriteLabel(ev(2, 1)), event.Init())
	assert.Equal(t, []event.Event{ev(2, 1), ev(1, 1)}, g.Co(x))
	assert.True(t, g.CoBefore(x, ev(2, 1), ev(1, 1)))
	assert.True(t, g.CoBefore(x, event.Init(), ev(2, 1)))
	assert.Equal(t, event.Init(), g.CoImmediatePred(x, ev(2, 1)))
	succ, ok := g.CoImmediateSucc(x, ev(2, 1))
	require.True(t, ok)
	assert.Equal(t, ev(1, 1), succ)
	_, ok = g.CoImmediateSucc(x, ev(1, 1))
	assert.False(t, ok)
	g.Validate()
}

func TestReadersFollowRf(t *testing.T) {
	g := twoWritersOneReader()
	r := g.ReadLabel(ev(3, 1))
	assert.Equal(t, []event.Event{ev(3, 1)}, g.WriteLabel(ev(2, 1)).Readers())

	g.SetRf(r, ev(1, 1))
	assert.Empty(t, g.WriteLabel(ev(2, 1)).Readers())
	assert.Equal(t, []event.Event{ev(3, 1)}, g.Readers(x, ev(1, 1)))

	g.SetRf(r, event.Init())
	assert.Equal(t, []event.Event{ev(3, 1)}, g.Readers(x, event.Init()))
	assert.Panics(t, func() { g.SetRf(r, ev(3, 0)) })
	g.Validate()
}

func TestCutToStampRepairsReads(t *testing.T) {
	g := New()
	spawn(g, 1)
	spawn(g, 2)
	r := read(g, 2, event.Init())
	w := write(g, 1, 1)
	g.SetRf(r, w.Pos())

	repaired := g.CutToStamp(r.Stamp())
	assert.Equal(t, []event.Event{r.Pos()}, repaired)
	rf, ok := g.ReadLabel(ev(2, 1)).Rf()
	require.True(t, ok)
	assert.Equal(t, event.Init(), rf)
	assert.Empty(t, g.Co(x))
	assert.Equal(t, r.Stamp()+1, g.NextStamp())
	g.Validate()
}

func TestCutThenReAddIsEqual(t *testing.T) {
	g := twoWritersOneReader()
	before := g.Clone()
	s := g.Label(ev(2, 0)).Stamp()

	g.CutToStamp(s)
	assert.Equal(t, 3, g.NumThreads())
	assert.False(t, g.Equal(before))

	write(g, 2, 2)
	spawn(g, 3)
	read(g, 3, ev(2, 1))
	assert.True(t, g.Equal(before))
	assert.Equal(t, before.Hash(), g.Hash())
	g.Validate()
}

func TestCutRemovesTrailingEmptyThreads(t *testing.T) {
	g := twoWritersOneReader()
	g.CutToStamp(g.Label(ev(1, 1)).Stamp())
	assert.Equal(t, 2, g.NumThreads())
	assert.Equal(t, 2, g.FreeThreadID())
}

func TestGetCopyUpTo(t *testing.T) {
	g := twoWritersOneReader()
	v := event.NewView().SetMax(ev(0, 0)).SetMax(ev(2, 1)).SetMax(ev(3, 1))

	c := g.GetCopyUpTo(v)
	c.Validate()
	assert.True(t, c.IsThreadEmpty(1))
	assert.Equal(t, 2, c.ThreadSize(2))
	assert.Equal(t, []event.Event{ev(2, 1)}, c.Co(x))
	rf, ok := c.ReadLabel(ev(3, 1)).Rf()
	require.True(t, ok)
	assert.Equal(t, ev(2, 1), rf)
	assert.Equal(t, 1, c.FreeThreadID())

	// The copy is independent of the original
	c.SetRf(c.ReadLabel(ev(3, 1)), event.Init())
	rf, _ = g.ReadLabel(ev(3, 1)).Rf()
	assert.Equal(t, ev(2, 1), rf)
}

func TestGetCopyUpToDropsMissingSources(t *testing.T) {
	g := twoWritersOneReader()
	v := event.NewView().SetMax(ev(0, 0)).SetMax(ev(1, 1)).SetMax(ev(3, 1))

	c := g.GetCopyUpTo(v)
	_, ok := c.ReadLabel(ev(3, 1)).Rf()
	assert.False(t, ok)
	assert.Equal(t, []event.Event{ev(3, 1)}, c.RepairDanglingReads())
	rf, _ := c.ReadLabel(ev(3, 1)).Rf()
	assert.Equal(t, ev(1, 1), rf)
	c.Validate()
}

func TestCompressStampsAfter(t *testing.T) {
	g := twoWritersOneReader()
	v := event.NewView().SetMax(ev(0, 0)).SetMax(ev(1, 1)).SetMax(ev(3, 1))
	c := g.GetCopyUpTo(v)

	c.CompressStampsAfter(0)
	stamps := []event.Stamp{}
	for _, lab := range c.LabelsByStamp() {
		stamps = append(stamps, lab.Stamp())
	}
	assert.Equal(t, []event.Stamp{0, 1, 2, 3, 4}, stamps)
	assert.EqualValues(t, 5, c.NextStamp())
}

func TestPredsView(t *testing.T) {
	g := twoWritersOneReader()
	v := g.PredsView(ev(2, 0))
	assert.True(t, v.Contains(ev(1, 1)))
	assert.True(t, v.Contains(ev(2, 0)))
	assert.False(t, v.Contains(ev(2, 1)))
	assert.False(t, v.Contains(ev(3, 0)))
}

func TestHashIgnoresStamps(t *testing.T) {
	a := New()
	spawn(a, 1)
	spawn(a, 2)
	write(a, 1, 1)
	write(a, 2, 2)

	b := New()
	spawn(b, 1)
	write(b, 1, 1)
	spawn(b, 2)
	write(b, 2, 2)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))

	b.MoveStoreCOAfter(b.WriteLabel(ev(2, 1)), event.Init())
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestAtomicity(t *testing.T) {
	g := New()
	spawn(g, 1)
	spawn(g, 2)
	for _, tid := range []int{1, 2} {
		r := g.AddLabel(label.NewFaiRead(ev(tid, 1), label.Relaxed, x, 4, label.OpAdd, 1)).(*label.Read)
		g.SetRf(r, event.Init())
		g.AddLabel(label.NewWriteOfKind(label.KindFaiWrite, ev(tid, 2), label.Relaxed, x, 4, 1))
	}
	assert.True(t, g.IsRMWLoad(ev(1, 1)))
	assert.True(t, g.ViolatesAtomicity(g.WriteLabel(ev(2, 2))))
	pending, ok := g.PendingRMW(g.WriteLabel(ev(2, 2)))
	require.True(t, ok)
	assert.Equal(t, ev(1, 1), pending)

	g.SetRf(g.ReadLabel(ev(2, 1)), ev(1, 2))
	assert.False(t, g.ViolatesAtomicity(g.WriteLabel(ev(2, 2))))
	assert.False(t, g.ViolatesAtomicity(g.WriteLabel(ev(1, 2))))
	_, ok = g.PendingRMW(g.WriteLabel(ev(2, 2)))
	assert.False(t, ok)
}

func TestAllocations(t *testing.T) {
	g := New()
	spawn(g, 1)
	p := label.DynamicAddr(1, 0)
	g.AddLabel(label.NewMalloc(ev(1, 1), p, 8))
	g.AddLabel(label.NewFree(ev(1, 2), p))

	assert.NotNil(t, g.FindAllocation(p.Add(4)))
	assert.Nil(t, g.FindAllocation(p.Add(8)))
	assert.Len(t, g.FindFrees(p), 1)
	assert.EqualValues(t, 8, g.NextAllocationOffset(1, 3))
	assert.EqualValues(t, 0, g.NextAllocationOffset(1, 1))
}
