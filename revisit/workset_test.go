package revisit

import (
	"testing"

	"github.com/lililuanluan/weazer/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(t, i int) event.Event {
	return event.Event{Thread: t, Index: i}
}

func TestWorkSetOrder(t *testing.T) {
	ws := NewWorkSet()
	a := &ReadForward{Read: ev(1, 1), Rev: ev(2, 1)}
	b := &ReadForward{Read: ev(1, 1), Rev: ev(3, 1)}
	c := &WriteForward{Write: ev(2, 1), Pred: event.Init()}
	ws.Add(3, a)
	ws.Add(3, b)
	ws.Add(5, c)
	assert.Equal(t, 3, ws.Len())

	s, r, ok := ws.Next()
	require.True(t, ok)
	assert.Equal(t, event.Stamp(5), s)
	assert.Same(t, c, r)

	s, r, ok = ws.Next()
	require.True(t, ok)
	assert.Equal(t, event.Stamp(3), s)
	assert.Same(t, b, r, "items of one stamp are consumed last in, first out")

	_, r, ok = ws.Next()
	require.True(t, ok)
	assert.Same(t, a, r)

	_, _, ok = ws.Next()
	assert.False(t, ok)
	assert.True(t, ws.Empty())
}

func TestWorkSetStampZero(t *testing.T) {
	ws := NewWorkSet()
	ws.Add(0, &RerunForward{})
	s, r, ok := ws.Next()
	require.True(t, ok)
	assert.Equal(t, event.Stamp(0), s)
	assert.Equal(t, KindRerunForward, r.Kind())
}

func TestWorkSetRestrict(t *testing.T) {
	ws := NewWorkSet()
	for s := event.Stamp(1); s <= 6; s++ {
		ws.Add(s, &OptionalForward{Optional: ev(1, int(s))})
	}
	ws.Restrict(3)
	assert.Equal(t, []event.Stamp{1, 2, 3}, ws.Stamps())
	ws.Restrict(0)
	assert.True(t, ws.Empty())
}

func TestWorkSetClone(t *testing.T) {
	ws := NewWorkSet()
	ws.Add(2, &OptionalForward{Optional: ev(1, 2)})
	c := ws.Clone()
	c.Add(2, &OptionalForward{Optional: ev(1, 3)})
	c.Add(4, &RerunForward{})
	assert.Equal(t, 1, ws.Len())
	assert.Equal(t, 3, c.Len())
	assert.Len(t, ws.At(2), 1)
}

func TestRevisitStrings(t *testing.T) {
	mid := ev(2, 3)
	tests := []struct {
		r    Revisit
		kind Kind
		pos  event.Event
		str  string
	}{
		{&ReadForward{Read: ev(1, 2), Rev: ev(2, 1)}, KindReadForward, ev(1, 2), "ReadForward: (1, 2) <- (2, 1)"},
		{&WriteForward{Write: ev(2, 1), Pred: event.Init()}, KindWriteForward, ev(2, 1), "WriteForward: (2, 1) after INIT"},
		{&OptionalForward{Optional: ev(1, 4)}, KindOptionalForward, ev(1, 4), "OptionalForward: (1, 4)"},
		{&RerunForward{}, KindRerunForward, event.Init(), "RerunForward"},
		{&Backward{Read: ev(1, 1), Rev: ev(2, 2), View: event.NewView().SetMax(ev(1, 1)), Mid: &mid}, KindBackward, ev(1, 1), "Backward: (1, 1) <- (2, 2) [ (0, -1) (1, 1) ] mid (2, 3)"},
	}
	for _, test := range tests {
		assert.Equal(t, test.kind, test.r.Kind())
		assert.Equal(t, test.pos, test.r.Pos())
		assert.Equal(t, test.str, test.r.String())
		assert.Equal(t, test.kind != KindBackward, IsForward(test.r))
	}
}
