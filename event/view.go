package event

import (
	"strings"

	"golang.org/x/exp/slices"
)

// A View is a vector clock recording, for every thread, the index of the
// last event of that thread that is included.
//
// A thread that is absent from the view has no included events.
type View struct {
	max []int
}

// Create an empty view
func NewView() *View {
	return &View{}
}

// Returns the number of threads the view has an entry for
func (v *View) Size() int {
	return len(v.max)
}

// Returns the index of the last included event of the thread or -1 if none is included
func (v *View) Max(thread int) int {
	if thread < 0 || thread >= len(v.max) {
		return -1
	}
	return v.max[thread]
}

func (v *View) grow(thread int) {
	for len(v.max) <= thread {
		v.max = append(v.max, -1)
	}
}

// Make e and all of its po-predecessors part of the view.
// Does nothing if the view already includes e.
func (v *View) SetMax(e Event) *View {
	v.grow(e.Thread)
	if v.max[e.Thread] < e.Index {
		v.max[e.Thread] = e.Index
	}
	return v
}

// Overwrite the entry of a thread, possibly shrinking the view
func (v *View) Set(thread, index int) *View {
	v.grow(thread)
	v.max[thread] = index
	return v
}

// Returns true if the view includes e
func (v *View) Contains(e Event) bool {
	return e.Index <= v.Max(e.Thread)
}

// Takes the pointwise maximum of v and o, storing the result in v.
func (v *View) Update(o *View) *View {
	if o == nil {
		return v
	}
	v.grow(len(o.max) - 1)
	for i, m := range o.max {
		if m > v.max[i] {
			v.max[i] = m
		}
	}
	return v
}

// Returns true if every event included in v is included in o
func (v *View) LessOrEqual(o *View) bool {
	for i, m := range v.max {
		if m > o.Max(i) {
			return false
		}
	}
	return true
}

// Returns the number of events included in the view
func (v *View) Count() int {
	n := 0
	for _, m := range v.max {
		n += m + 1
	}
	return n
}

// Returns a copy of the view
func (v *View) Clone() *View {
	if v == nil {
		return NewView()
	}
	return &View{max: slices.Clone(v.max)}
}

// Returns true if both views include exactly the same events
func (v *View) Equal(o *View) bool {
	return v.LessOrEqual(o) && o.LessOrEqual(v)
}

func (v *View) String() string {
	var sb strings.Builder
	sb.WriteString("[ ")
	for i, m := range v.max {
		sb.WriteString(Event{Thread: i, Index: m}.String())
		sb.WriteString(" ")
	}
	sb.WriteString("]")
	return sb.String()
}
