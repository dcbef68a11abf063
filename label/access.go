package label

import (
	"fmt"

	"github.com/lililuanluan/weazer/event"
	"golang.org/x/exp/slices"
)

// MemAccess holds the fields shared by reads and writes
type MemAccess struct {
	Base
	addr SAddr
	size ASize
	// True if the access was added reading from (or placed at) the
	// coherence-maximal position at the time it was added
	addedMax bool
}

func (m *MemAccess) Addr() SAddr { return m.addr }
func (m *MemAccess) Size() ASize { return m.size }
func (m *MemAccess) WasAddedMax() bool { return m.addedMax }
func (m *MemAccess) SetAddedMax(max bool) { m.addedMax = max }

// Implemented by Read and Write
type Access interface {
	Label
	Addr() SAddr
	Size() ASize
	WasAddedMax() bool
	SetAddedMax(bool)
}

// The extra operands of the read part of a read-modify-write
type RMW struct {
	// Fetch-and-op operation and operand
	Op      RMWOp
	Operand SVal
	// Compare-and-swap operands
	Expected SVal
	Swap     SVal
}

// A Read label. It observes the value of the write it reads from.
type Read struct {
	MemAccess
	kind        Kind
	rf          event.Event
	hasRf       bool
	annot       *Annotation
	rmw         *RMW
	revisitable bool
	ipr         bool
}

func NewRead(pos event.Event, ord Ordering, addr SAddr, size ASize, annot *Annotation) *Read {
	return newRead(KindRead, pos, ord, addr, size, annot, nil)
}

// Create the read part of a fetch-and-op
func NewFaiRead(pos event.Event, ord Ordering, addr SAddr, size ASize, op RMWOp, operand SVal) *Read {
	return newRead(KindFaiRead, pos, ord, addr, size, nil, &RMW{Op: op, Operand: operand})
}

// Create the read part of a compare-and-swap. k selects between a plain,
// lock and helped CAS.
func NewCasRead(k Kind, pos event.Event, ord Ordering, addr SAddr, size ASize, exp, swap SVal, annot *Annotation) *Read {
	if !k.IsCasRead() {
		panic(fmt.Sprintf("BUG: %v is not a CAS read kind", k))
	}
	return newRead(k, pos, ord, addr, size, annot, &RMW{Expected: exp, Swap: swap})
}

// Create a read of one of the plain flavours (confirming or speculative)
func NewReadOfKind(k Kind, pos event.Event, ord Ordering, addr SAddr, size ASize) *Read {
	if k != KindRead && k != KindConfirmingRead && k != KindSpeculativeRead {
		panic(fmt.Sprintf("BUG: %v is not a plain read kind", k))
	}
	return newRead(k, pos, ord, addr, size, nil, nil)
}

func newRead(k Kind, pos event.Event, ord Ordering, addr SAddr, size ASize, annot *Annotation, rmw *RMW) *Read {
	return &Read{
		MemAccess:   MemAccess{Base: newBase(pos, ord), addr: addr, size: size, addedMax: true},
		kind:        k,
		annot:       annot,
		rmw:         rmw,
		revisitable: true,
	}
}

func (r *Read) Kind() Kind { return r.kind }

// Returns the write the read reads from and whether it reads from anything
func (r *Read) Rf() (event.Event, bool) { return r.rf, r.hasRf }

// Only the graph changes reads-from, so that reader sets stay in sync
func (r *Read) setRf(w event.Event) {
	r.rf, r.hasRf = w, true
}

func (r *Read) clearRf() {
	r.rf, r.hasRf = event.Event{}, false
}

func (r *Read) Annotation() *Annotation { return r.annot }
func (r *Read) SetAnnotation(a *Annotation) { r.annot = a }

// Returns the RMW operands. The second result is false for plain reads.
func (r *Read) RMW() (*RMW, bool) {
	if !r.kind.IsRMWRead() {
		return nil, false
	}
	return r.rmw, true
}

func (r *Read) IsRevisitable() bool { return r.revisitable }
func (r *Read) SetRevisitable(b bool) { r.revisitable = b }
func (r *Read) IsIPR() bool { return r.ipr }
func (r *Read) SetIPR(b bool) { r.ipr = b }

// Returns true if reading v makes the RMW perform its write
func (r *Read) ValueMakesRMWSucceed(v SVal) bool {
	switch {
	case r.kind == KindFaiRead:
		return true
	case r.kind.IsCasRead():
		return r.rmw.Expected == v
	}
	return false
}

// Returns true if reading v satisfies the annotation of the read
func (r *Read) ValueMakesAssumeSucceed(v SVal) bool {
	return r.annot.Holds(v)
}

// Returns the value written by the RMW when v is read
func (r *Read) RMWWriteValue(v SVal) SVal {
	if r.kind == KindFaiRead {
		return r.rmw.Op.Apply(v, r.rmw.Operand)
	}
	return r.rmw.Swap
}

func (r *Read) String() string {
	s := fmt.Sprintf("%v%v %v", r.kind, r.ord, r.addr)
	if r.annot != nil {
		s += fmt.Sprintf(" {%v}", r.annot)
	}
	return s
}

// A Write label. It keeps the set of reads observing it as positions only.
type Write struct {
	MemAccess
	kind    Kind
	val     SVal
	readers []event.Event
	wwRacy  bool
}

func NewWrite(pos event.Event, ord Ordering, addr SAddr, size ASize, val SVal) *Write {
	return NewWriteOfKind(KindWrite, pos, ord, addr, size, val)
}

func NewWriteOfKind(k Kind, pos event.Event, ord Ordering, addr SAddr, size ASize, val SVal) *Write {
	if !k.IsWrite() {
		panic(fmt.Sprintf("BUG: %v is not a write kind", k))
	}
	return &Write{
		MemAccess: MemAccess{Base: newBase(pos, ord), addr: addr, size: size, addedMax: true},
		kind:      k,
		val:       val,
	}
}

func (w *Write) Kind() Kind { return w.kind }
func (w *Write) Val() SVal { return w.val }
func (w *Write) IsRMW() bool { return w.kind.IsRMWWrite() }

// Set when the write was added with more than one coherent placing
func (w *Write) IsWWRacy() bool { return w.wwRacy }
func (w *Write) SetWWRacy(b bool) { w.wwRacy = b }

// Returns the reads observing the write
func (w *Write) Readers() []event.Event { return w.readers }

func (w *Write) addReader(r event.Event) {
	if !slices.Contains(w.readers, r) {
		w.readers = append(w.readers, r)
	}
}

func (w *Write) removeReader(r event.Event) {
	if i := slices.Index(w.readers, r); i >= 0 {
		w.readers = slices.Delete(w.readers, i, i+1)
	}
}

func (w *Write) String() string {
	return fmt.Sprintf("%v%v %v, %d", w.kind, w.ord, w.addr, w.val)
}

// Keeps the reader set of w in sync with the reads-from edge of r.
// The previous source of r, if any, is passed as old.
func LinkRf(r *Read, old, w *Write) {
	if old != nil {
		old.removeReader(r.Pos())
	}
	r.setRf(w.Pos())
	w.addReader(r.Pos())
}

// Makes r read from the initializer
func LinkRfInit(r *Read, old *Write) {
	if old != nil {
		old.removeReader(r.Pos())
	}
	r.setRf(event.Init())
}

// Removes the reads-from edge of r
func UnlinkRf(r *Read, old *Write) {
	if old != nil {
		old.removeReader(r.Pos())
	}
	r.clearRf()
}

// Keeps only the readers of w for which keep returns true
func FilterReaders(w *Write, keep func(event.Event) bool) {
	out := w.readers[:0]
	for _, r := range w.readers {
		if keep(r) {
			out = append(out, r)
		}
	}
	w.readers = out
}
