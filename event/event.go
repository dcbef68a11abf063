package event

import "fmt"

// An Event identifies a position in an execution graph: the index of a label
// inside the sequence of labels of its thread.
//
// Events are compared by value. The initializer event (0,0) doubles as the
// first event of the main thread.
type Event struct {
	Thread int
	Index  int
}

// Returns the event of the initializer
func Init() Event {
	return Event{Thread: 0, Index: 0}
}

// Returns true if the event is the initializer
func (e Event) IsInitializer() bool {
	return e.Thread == 0 && e.Index == 0
}

// Returns the event preceding e in program order
func (e Event) Prev() Event {
	return Event{Thread: e.Thread, Index: e.Index - 1}
}

// Returns the event following e in program order
func (e Event) Next() Event {
	return Event{Thread: e.Thread, Index: e.Index + 1}
}

// Returns true if e is (po) before o
func (e Event) Before(o Event) bool {
	return e.Thread == o.Thread && e.Index < o.Index
}

func (e Event) String() string {
	if e.IsInitializer() {
		return "INIT"
	}
	return fmt.Sprintf("(%d, %d)", e.Thread, e.Index)
}

// A Stamp is the logical time at which a label was added to a graph.
//
// Stamps are dense and strictly increasing along the program order of every thread.
type Stamp uint64
