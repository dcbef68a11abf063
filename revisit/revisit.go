package revisit

import (
	"fmt"

	"github.com/lililuanluan/weazer/event"
)

// The kind of a revisit item
type Kind uint8

const (
	KindReadForward Kind = iota
	KindWriteForward
	KindOptionalForward
	KindRerunForward
	KindBackward
)

var kindNames = [...]string{"ReadForward", "WriteForward", "OptionalForward", "RerunForward", "Backward"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// A Revisit describes an alternative exploration that is still pending:
// what to change in a graph, restricted to the stamp the item was queued
// at, to reach an execution not explored yet.
//
// The set of implementations is closed.
type Revisit interface {
	// The event the revisit changes
	Pos() event.Event
	Kind() Kind
	String() string

	isRevisit()
}

// Returns true for the kinds that are applied to the current graph in place
func IsForward(r Revisit) bool {
	return r.Kind() != KindBackward
}

// Makes a read read from a write that was added before it.
// Maximal records whether the write was coherence-maximal when the item was
// created.
type ReadForward struct {
	Read    event.Event
	Rev     event.Event
	Maximal bool
}

func (r *ReadForward) Pos() event.Event { return r.Read }
func (r *ReadForward) Kind() Kind { return KindReadForward }
func (r *ReadForward) isRevisit() {}

func (r *ReadForward) String() string {
	return fmt.Sprintf("%v: %v <- %v", r.Kind(), r.Read, r.Rev)
}

// Places a write immediately after Pred in coherence order
type WriteForward struct {
	Write event.Event
	Pred  event.Event
}

func (r *WriteForward) Pos() event.Event { return r.Write }
func (r *WriteForward) Kind() Kind { return KindWriteForward }
func (r *WriteForward) isRevisit() {}

func (r *WriteForward) String() string {
	return fmt.Sprintf("%v: %v after %v", r.Kind(), r.Write, r.Pred)
}

// Explores the taken branch of an optional block
type OptionalForward struct {
	Optional event.Event
}

func (r *OptionalForward) Pos() event.Event { return r.Optional }
func (r *OptionalForward) Kind() Kind { return KindOptionalForward }
func (r *OptionalForward) isRevisit() {}

func (r *OptionalForward) String() string {
	return fmt.Sprintf("%v: %v", r.Kind(), r.Optional)
}

// Runs the program again from the restricted graph without changing it.
// Used when sampling executions.
type RerunForward struct{}

func (r *RerunForward) Pos() event.Event { return event.Init() }
func (r *RerunForward) Kind() Kind { return KindRerunForward }
func (r *RerunForward) isRevisit() {}
func (r *RerunForward) String() string { return r.Kind().String() }

// Makes a read read from a write that was added after it.
//
// Everything outside View is deleted before the read is rebound: View holds
// the events added before the read together with the porf-prefix of the
// write. If Mid is set, the prefix of that event is kept as well.
type Backward struct {
	Read event.Event
	Rev  event.Event
	View *event.View
	Mid  *event.Event
}

func (r *Backward) Pos() event.Event { return r.Read }
func (r *Backward) Kind() Kind { return KindBackward }
func (r *Backward) isRevisit() {}

func (r *Backward) String() string {
	s := fmt.Sprintf("%v: %v <- %v %v", r.Kind(), r.Read, r.Rev, r.View)
	if r.Mid != nil {
		s += fmt.Sprintf(" mid %v", *r.Mid)
	}
	return s
}
