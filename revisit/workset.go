package revisit

import (
	"github.com/lililuanluan/weazer/event"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A WorkSet holds the pending revisits of one execution, keyed by the stamp
// of the label that produced them.
//
// Items are consumed from the highest stamp first, and within a stamp in
// LIFO order, which makes the exploration depth first.
type WorkSet struct {
	items map[event.Stamp][]Revisit
}

// Create an empty WorkSet
func NewWorkSet() *WorkSet {
	return &WorkSet{items: make(map[event.Stamp][]Revisit)}
}

// Queue an item at stamp s
func (ws *WorkSet) Add(s event.Stamp, r Revisit) {
	ws.items[s] = append(ws.items[s], r)
}

// Remove and return the most recently added item of the highest stamp.
// The last result is false if the set is empty.
func (ws *WorkSet) Next() (event.Stamp, Revisit, bool) {
	if len(ws.items) == 0 {
		return 0, nil, false
	}
	var max event.Stamp
	for s := range ws.items {
		if s >= max {
			max = s
		}
	}
	q := ws.items[max]
	r := q[len(q)-1]
	if len(q) == 1 {
		delete(ws.items, max)
	} else {
		ws.items[max] = q[:len(q)-1]
	}
	return max, r, true
}

// Drop every item queued at a stamp greater than s
func (ws *WorkSet) Restrict(s event.Stamp) {
	for k := range ws.items {
		if k > s {
			delete(ws.items, k)
		}
	}
}

// Returns the number of pending items
func (ws *WorkSet) Len() int {
	n := 0
	for _, q := range ws.items {
		n += len(q)
	}
	return n
}

func (ws *WorkSet) Empty() bool {
	return len(ws.items) == 0
}

// Returns the stamps that have pending items in increasing order
func (ws *WorkSet) Stamps() []event.Stamp {
	s := maps.Keys(ws.items)
	slices.Sort(s)
	return s
}

// Returns the items queued at s, oldest first
func (ws *WorkSet) At(s event.Stamp) []Revisit {
	return ws.items[s]
}

// Returns a copy of the set. The items are shared: they are never modified
// once queued.
func (ws *WorkSet) Clone() *WorkSet {
	c := NewWorkSet()
	for s, q := range ws.items {
		c.items[s] = slices.Clone(q)
	}
	return c
}
