package checking

import (
	"testing"

	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	x = label.StaticAddr(0)
	y = label.StaticAddr(8)
)

func ev(t, i int) event.Event {
	return event.Event{Thread: t, Index: i}
}

// builder appends labels to a graph and keeps their views up to date
type builder struct {
	g *graph.ExecutionGraph
	c Checker
}

func newBuilder(c Checker, threads int) *builder {
	b := &builder{g: graph.New(), c: c}
	for t := 1; t <= threads; t++ {
		b.add(label.NewThreadStart(ev(t, 0), event.Init(), 0, 0, -1))
	}
	return b
}

func (b *builder) next(t int) event.Event {
	return ev(t, b.g.ThreadSize(t))
}

func (b *builder) add(lab label.Label) label.Label {
	b.g.AddLabel(lab)
	b.c.UpdateViews(b.g, lab)
	return lab
}

func (b *builder) write(t int, ord label.Ordering, addr label.SAddr, v label.SVal) *label.Write {
	return b.add(label.NewWrite(b.next(t), ord, addr, 4, v)).(*label.Write)
}

// Adds a read without a source
func (b *builder) pending(t int, ord label.Ordering, addr label.SAddr) *label.Read {
	return b.add(label.NewRead(b.next(t), ord, addr, 4, nil)).(*label.Read)
}

func (b *builder) read(t int, ord label.Ordering, addr label.SAddr, rf event.Event) *label.Read {
	r := b.pending(t, ord, addr)
	b.setRf(r, rf)
	return r
}

func (b *builder) setRf(r *label.Read, rf event.Event) {
	b.g.SetRf(r, rf)
	b.c.UpdateViews(b.g, r)
}

func TestForModel(t *testing.T) {
	c, err := ForModel("sc")
	require.NoError(t, err)
	assert.Equal(t, "sc", c.Name())
	c, err = ForModel("ra")
	require.NoError(t, err)
	assert.Equal(t, "ra", c.Name())
	_, err = ForModel("tso")
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

// Store buffering: each thread writes one variable and reads the other
func storeBuffering(c Checker) (*builder, *label.Read) {
	b := newBuilder(c, 2)
	b.write(1, label.Relaxed, x, 1)
	b.read(1, label.Relaxed, y, event.Init())
	b.write(2, label.Relaxed, y, 1)
	return b, b.pending(2, label.Relaxed, x)
}

func TestStoreBufferingStores(t *testing.T) {
	b, r := storeBuffering(NewSC())
	assert.Equal(t, []event.Event{ev(1, 1)}, b.c.CoherentStores(b.g, r))

	b, r = storeBuffering(NewRA())
	assert.Equal(t, []event.Event{event.Init(), ev(1, 1)}, b.c.CoherentStores(b.g, r))
}

func TestStoreBufferingConsistency(t *testing.T) {
	b, r := storeBuffering(NewSC())
	b.setRf(r, event.Init())
	assert.False(t, b.c.IsConsistent(b.g))
	b.setRf(r, ev(1, 1))
	assert.True(t, b.c.IsConsistent(b.g))

	b, r = storeBuffering(NewRA())
	b.setRf(r, event.Init())
	assert.True(t, b.c.IsConsistent(b.g))
}

func TestCoherenceWithinThread(t *testing.T) {
	for _, c := range []Checker{NewSC(), NewRA()} {
		b := newBuilder(c, 2)
		b.write(1, label.Relaxed, x, 1)
		b.write(1, label.Relaxed, x, 2)
		r := b.pending(2, label.Relaxed, x)
		assert.Equal(t, []event.Event{event.Init(), ev(1, 1), ev(1, 2)}, c.CoherentStores(b.g, r), c.Name())
		b.setRf(r, ev(1, 2))

		own := b.pending(1, label.Relaxed, x)
		assert.Equal(t, []event.Event{ev(1, 2)}, c.CoherentStores(b.g, own), c.Name())

		// Reading the older write after the newer one violates coherence
		next := b.pending(2, label.Relaxed, x)
		assert.Equal(t, []event.Event{ev(1, 2)}, c.CoherentStores(b.g, next), c.Name())
		b.setRf(next, ev(1, 1))
		assert.False(t, c.IsConsistent(b.g), c.Name())
	}
}

func TestCoherentPlacings(t *testing.T) {
	c := NewRA()
	b := newBuilder(c, 2)
	b.write(1, label.Relaxed, x, 1)
	w := b.write(2, label.Relaxed, x, 2)
	assert.Equal(t, []event.Event{event.Init(), ev(1, 1)}, c.CoherentPlacings(b.g, w))

	w = b.write(1, label.Relaxed, x, 3)
	assert.Equal(t, []event.Event{ev(1, 1), ev(2, 1)}, c.CoherentPlacings(b.g, w))
}

func TestPlacingsKeepRMWsAtomic(t *testing.T) {
	c := NewRA()
	b := newBuilder(c, 2)
	r := b.add(label.NewFaiRead(b.next(1), label.Relaxed, x, 4, label.OpAdd, 1)).(*label.Read)
	b.setRf(r, event.Init())
	rmw := b.add(label.NewWriteOfKind(label.KindFaiWrite, b.next(1), label.Relaxed, x, 4, 1)).(*label.Write)
	assert.Equal(t, []event.Event{event.Init()}, c.CoherentPlacings(b.g, rmw))

	w := b.write(2, label.Relaxed, x, 5)
	assert.Equal(t, []event.Event{ev(1, 2)}, c.CoherentPlacings(b.g, w))
	assert.True(t, c.IsConsistent(b.g))

	b.g.MoveStoreCOAfter(w, event.Init())
	assert.False(t, c.IsConsistent(b.g))
}

func TestAtomicityViolation(t *testing.T) {
	c := NewSC()
	b := newBuilder(c, 2)
	for _, tid := range []int{1, 2} {
		r := b.add(label.NewFaiRead(b.next(tid), label.Relaxed, x, 4, label.OpAdd, 1)).(*label.Read)
		b.setRf(r, event.Init())
		b.add(label.NewWriteOfKind(label.KindFaiWrite, b.next(tid), label.Relaxed, x, 4, 1))
	}
	assert.False(t, c.IsConsistent(b.g))

	b.setRf(b.g.ReadLabel(ev(2, 1)), ev(1, 2))
	assert.True(t, c.IsConsistent(b.g))
}

func TestCoherentRevisits(t *testing.T) {
	c := NewRA()
	b := newBuilder(c, 2)
	r := b.read(1, label.Relaxed, x, event.Init())
	w := b.write(2, label.Relaxed, x, 1)
	assert.Equal(t, []event.Event{r.Pos()}, c.CoherentRevisits(b.g, w))

	r.SetRevisitable(false)
	assert.Empty(t, c.CoherentRevisits(b.g, w))
}

func TestRevisitsExcludePrefix(t *testing.T) {
	// Load buffering: the write of thread 2 depends on the read of thread 1
	for _, c := range []Checker{NewSC(), NewRA()} {
		b := newBuilder(c, 2)
		b.read(1, label.Relaxed, x, event.Init())
		wy := b.write(1, label.Relaxed, y, 1)
		b.read(2, label.Relaxed, y, wy.Pos())
		wx := b.write(2, label.Relaxed, x, 1)
		assert.Empty(t, c.CoherentRevisits(b.g, wx), c.Name())
	}
}

func TestRevisitsRespectCoherence(t *testing.T) {
	c := NewRA()
	b := newBuilder(c, 3)
	w1 := b.write(1, label.Relaxed, x, 1)
	r := b.read(2, label.Relaxed, x, w1.Pos())
	late := b.read(2, label.Relaxed, x, w1.Pos())
	w0 := b.write(3, label.Relaxed, x, 2)
	b.g.MoveStoreCOAfter(w0, event.Init())

	// late comes after a read of w1, which is coherence-after w0
	revisits := c.CoherentRevisits(b.g, w0)
	assert.Equal(t, []event.Event{r.Pos()}, revisits)
	assert.NotContains(t, revisits, late.Pos())
}

func messagePassing(c Checker, flagOrd label.Ordering) *builder {
	b := newBuilder(c, 2)
	data := b.write(1, label.NotAtomic, y, 1)
	flag := b.write(1, flagOrd, x, 1)
	readOrd := label.Relaxed
	if flagOrd.IsAtLeastRelease() {
		readOrd = label.Acquire
	}
	b.read(2, readOrd, x, flag.Pos())
	b.read(2, label.NotAtomic, y, data.Pos())
	return b
}

func TestMessagePassingViews(t *testing.T) {
	b := messagePassing(NewRA(), label.Release)
	assert.True(t, b.g.Label(ev(2, 1)).HbView().Contains(ev(1, 1)))
	assert.True(t, b.g.Label(ev(2, 1)).PorfView().Contains(ev(1, 2)))

	b = messagePassing(NewRA(), label.Relaxed)
	assert.False(t, b.g.Label(ev(2, 1)).HbView().Contains(ev(1, 1)))
	assert.True(t, b.g.Label(ev(2, 1)).PorfView().Contains(ev(1, 1)))

	b = messagePassing(NewSC(), label.Relaxed)
	assert.True(t, b.g.Label(ev(2, 1)).HbView().Contains(ev(1, 1)))
}

func TestMessagePassingRaces(t *testing.T) {
	c := NewRA()
	b := messagePassing(c, label.Release)
	kind, _ := c.CheckErrors(b.g, b.g.Label(ev(2, 2)))
	assert.Equal(t, OK, kind)

	b = messagePassing(c, label.Relaxed)
	kind, racy := c.CheckErrors(b.g, b.g.Label(ev(2, 2)))
	assert.Equal(t, RaceNotAtomic, kind)
	assert.Equal(t, ev(1, 1), racy)
}

func TestFencesSynchronize(t *testing.T) {
	c := NewRA()
	b := newBuilder(c, 2)
	b.write(1, label.NotAtomic, y, 1)
	b.add(label.NewFence(b.next(1), label.Release))
	flag := b.write(1, label.Relaxed, x, 1)
	b.read(2, label.Relaxed, x, flag.Pos())
	assert.False(t, b.g.Label(ev(2, 1)).HbView().Contains(ev(1, 1)))

	f := b.add(label.NewFence(b.next(2), label.Acquire))
	assert.True(t, f.HbView().Contains(ev(1, 1)))
}

func TestReleaseSequenceThroughRMW(t *testing.T) {
	c := NewRA()
	b := newBuilder(c, 3)
	b.write(1, label.NotAtomic, y, 1)
	rel := b.write(1, label.Release, x, 1)
	r := b.add(label.NewFaiRead(b.next(2), label.Relaxed, x, 4, label.OpAdd, 1)).(*label.Read)
	b.setRf(r, rel.Pos())
	rmw := b.add(label.NewWriteOfKind(label.KindFaiWrite, b.next(2), label.Relaxed, x, 4, 2))
	acq := b.read(3, label.Acquire, x, rmw.Pos())
	assert.True(t, acq.HbView().Contains(ev(1, 1)))
}

func TestMemoryErrors(t *testing.T) {
	c := NewRA()
	p := label.DynamicAddr(1, 0)

	b := newBuilder(c, 1)
	b.add(label.NewMalloc(b.next(1), p, 8))
	b.add(label.NewFree(b.next(1), p))
	second := b.add(label.NewFree(b.next(1), p))
	kind, other := c.CheckErrors(b.g, second)
	assert.Equal(t, DoubleFree, kind)
	assert.Equal(t, ev(1, 2), other)

	b = newBuilder(c, 1)
	b.add(label.NewMalloc(b.next(1), p, 8))
	b.add(label.NewFree(b.next(1), p))
	w := b.write(1, label.NotAtomic, p, 3)
	kind, other = c.CheckErrors(b.g, w)
	assert.Equal(t, AccessFreed, kind)
	assert.Equal(t, ev(1, 2), other)

	b = newBuilder(c, 1)
	b.add(label.NewMalloc(b.next(1), p, 8))
	w = b.write(1, label.NotAtomic, p, 3)
	kind, _ = c.CheckErrors(b.g, w)
	assert.Equal(t, OK, kind)
	f := b.add(label.NewFree(b.next(1), p))
	kind, _ = c.CheckErrors(b.g, f)
	assert.Equal(t, OK, kind)
}

func TestUnorderedFreeRacesWithAccess(t *testing.T) {
	c := NewRA()
	p := label.DynamicAddr(1, 0)
	b := newBuilder(c, 2)
	b.add(label.NewMalloc(b.next(1), p, 8))
	w := b.write(1, label.NotAtomic, p, 3)
	f := b.add(label.NewFree(b.next(2), p))
	kind, other := c.CheckErrors(b.g, f)
	assert.Equal(t, AccessFreed, kind)
	assert.Equal(t, w.Pos(), other)
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, WWRace.IsWarning())
	assert.True(t, UnfreedMemory.IsWarning())
	assert.False(t, RaceNotAtomic.IsWarning())
	assert.Equal(t, "Double-free attempt", DoubleFree.String())
}
