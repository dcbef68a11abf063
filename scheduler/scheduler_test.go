package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockThreads struct {
	runnable []bool
	loads    []bool
}

func (m mockThreads) NumThreads() int { return len(m.runnable) }
func (m mockThreads) Schedulable(t int) bool { return m.runnable[t] }
func (m mockThreads) NextIsLoad(t int) bool { return m.loads[t] }

func TestNew(t *testing.T) {
	for _, name := range Names {
		p, err := New(name, 1)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	_, err := New("fifo", 1)
	assert.True(t, errors.Is(err, ErrUnknownPolicy))
}

func TestLTR(t *testing.T) {
	th := mockThreads{runnable: []bool{false, true, true}, loads: []bool{false, true, false}}
	next, ok := LTR{}.Next(th)
	require.True(t, ok)
	assert.Equal(t, 1, next)

	_, ok = LTR{}.Next(mockThreads{runnable: []bool{false}, loads: []bool{false}})
	assert.False(t, ok)
}

func TestWF(t *testing.T) {
	th := mockThreads{runnable: []bool{false, true, true}, loads: []bool{false, true, false}}
	next, ok := WF{}.Next(th)
	require.True(t, ok)
	assert.Equal(t, 2, next, "threads about to write are preferred")

	th.loads[2] = true
	next, ok = WF{}.Next(th)
	require.True(t, ok)
	assert.Equal(t, 1, next, "falls back to left to right")
}

func TestWFRPrefersWrites(t *testing.T) {
	th := mockThreads{runnable: []bool{true, true, true, true}, loads: []bool{true, false, true, false}}
	p := NewWFR(7)
	seen := map[int]bool{}
	for i := 0; i < 100; i++ {
		next, ok := p.Next(th)
		require.True(t, ok)
		seen[next] = true
	}
	assert.Equal(t, map[int]bool{1: true, 3: true}, seen)
}

func TestRandomIsSeeded(t *testing.T) {
	th := mockThreads{runnable: []bool{true, false, true, true}, loads: []bool{false, false, false, false}}
	a, b := NewRandom(42), NewRandom(42)
	for i := 0; i < 50; i++ {
		x, ok := a.Next(th)
		require.True(t, ok)
		y, _ := b.Next(th)
		assert.Equal(t, x, y)
		assert.NotEqual(t, 1, x, "never picks a thread that cannot run")
	}
	_, ok := a.Next(mockThreads{})
	assert.False(t, ok)
}
