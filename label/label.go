package label

import (
	"fmt"

	"github.com/lililuanluan/weazer/event"
	"golang.org/x/exp/slices"
)

// A Label describes one executed instruction of the program together with
// the views the consistency checker computed for it.
//
// The set of implementations is closed: every label is one of the pointer
// types declared in this package.
type Label interface {
	Pos() event.Event
	Kind() Kind
	Stamp() event.Stamp
	SetStamp(event.Stamp)
	Ordering() Ordering

	// The porf-prefix of the label, including itself
	PorfView() *event.View
	// The happens-before view of the label, including itself
	HbView() *event.View
	SetViews(porf, hb *event.View)

	String() string

	base() *Base
}

// Base holds the fields shared by every label
type Base struct {
	pos   event.Event
	stamp event.Stamp
	ord   Ordering
	porf  *event.View
	hb    *event.View
}

func newBase(pos event.Event, ord Ordering) Base {
	return Base{pos: pos, ord: ord}
}

func (b *Base) Pos() event.Event { return b.pos }
func (b *Base) Stamp() event.Stamp { return b.stamp }
func (b *Base) SetStamp(s event.Stamp) { b.stamp = s }
func (b *Base) Ordering() Ordering { return b.ord }
func (b *Base) base() *Base { return b }
func (b *Base) SetViews(p, h *event.View) { b.porf, b.hb = p, h }

func (b *Base) PorfView() *event.View {
	if b.porf == nil {
		return event.NewView().SetMax(b.pos)
	}
	return b.porf
}

func (b *Base) HbView() *event.View {
	if b.hb == nil {
		return event.NewView().SetMax(b.pos)
	}
	return b.hb
}

func (b *Base) clone() Base {
	c := *b
	if b.porf != nil {
		c.porf = b.porf.Clone()
	}
	if b.hb != nil {
		c.hb = b.hb.Clone()
	}
	return c
}

// The initializer. It is the first label of the main thread and acts as a
// write of the initial value to every static location.
type Init struct{ Base }

func NewInit() *Init {
	return &Init{Base: newBase(event.Init(), SeqCst)}
}

func (l *Init) Kind() Kind { return KindInit }
func (l *Init) String() string { return "INIT" }

// The first label of a spawned thread
type ThreadStart struct {
	Base
	// Position of the ThreadCreate label that spawned the thread
	Parent event.Event
	// The function the thread runs and its argument
	FuncID int
	Arg    SVal
	// A thread spawned just before by the same parent that is symmetric to
	// this one, or -1
	SymmetricTid int
}

func NewThreadStart(pos, parent event.Event, funcID int, arg SVal, symm int) *ThreadStart {
	return &ThreadStart{
		Base:         newBase(pos, Acquire),
		Parent:       parent,
		FuncID:       funcID,
		Arg:          arg,
		SymmetricTid: symm,
	}
}

func (l *ThreadStart) Kind() Kind { return KindThreadStart }
func (l *ThreadStart) String() string {
	return fmt.Sprintf("%v [%v]", KindThreadStart, l.Parent)
}

type ThreadCreate struct {
	Base
	Child  int
	FuncID int
	Arg    SVal
}

func NewThreadCreate(pos event.Event, child, funcID int, arg SVal) *ThreadCreate {
	return &ThreadCreate{Base: newBase(pos, Release), Child: child, FuncID: funcID, Arg: arg}
}

func (l *ThreadCreate) Kind() Kind { return KindThreadCreate }
func (l *ThreadCreate) String() string {
	return fmt.Sprintf("%v [thread %d]", KindThreadCreate, l.Child)
}

type ThreadJoin struct {
	Base
	Child int
}

func NewThreadJoin(pos event.Event, child int) *ThreadJoin {
	return &ThreadJoin{Base: newBase(pos, Acquire), Child: child}
}

func (l *ThreadJoin) Kind() Kind { return KindThreadJoin }
func (l *ThreadJoin) String() string {
	return fmt.Sprintf("%v [thread %d]", KindThreadJoin, l.Child)
}

type ThreadFinish struct {
	Base
	Ret SVal
}

func NewThreadFinish(pos event.Event, ret SVal) *ThreadFinish {
	return &ThreadFinish{Base: newBase(pos, Release), Ret: ret}
}

func (l *ThreadFinish) Kind() Kind { return KindThreadFinish }
func (l *ThreadFinish) String() string { return KindThreadFinish.String() }

type ThreadKill struct{ Base }

func NewThreadKill(pos event.Event) *ThreadKill {
	return &ThreadKill{Base: newBase(pos, NotAtomic)}
}

func (l *ThreadKill) Kind() Kind { return KindThreadKill }
func (l *ThreadKill) String() string { return KindThreadKill.String() }

// A Block label terminates a thread that cannot currently proceed
type Block struct {
	Base
	Type BlockType
	// The address a read-opt block waits on
	Addr SAddr
	// The thread a join block waits for
	Child int
}

func NewBlock(pos event.Event, t BlockType) *Block {
	return &Block{Base: newBase(pos, NotAtomic), Type: t}
}

func (l *Block) Kind() Kind { return KindBlock }
func (l *Block) String() string {
	return fmt.Sprintf("%v[%v]", KindBlock, l.Type)
}

type Fence struct{ Base }

func NewFence(pos event.Event, ord Ordering) *Fence {
	return &Fence{Base: newBase(pos, ord)}
}

func (l *Fence) Kind() Kind { return KindFence }
func (l *Fence) String() string {
	return fmt.Sprintf("%v%v", KindFence, l.ord)
}

type Malloc struct {
	Base
	Addr SAddr
	Size ASize
}

func NewMalloc(pos event.Event, addr SAddr, size ASize) *Malloc {
	return &Malloc{Base: newBase(pos, NotAtomic), Addr: addr, Size: size}
}

func (l *Malloc) Kind() Kind { return KindMalloc }
func (l *Malloc) String() string {
	return fmt.Sprintf("%v %v, %d", KindMalloc, l.Addr, l.Size)
}

// Returns true if addr lies inside the allocation
func (l *Malloc) Contains(addr SAddr) bool {
	return addr >= l.Addr && addr < l.Addr.Add(uint64(l.Size))
}

// A Free label deallocates memory. Hazard pointer retirement is a deferred free.
type Free struct {
	Base
	kind Kind
	Addr SAddr
}

func NewFree(pos event.Event, addr SAddr) *Free {
	return &Free{Base: newBase(pos, NotAtomic), kind: KindFree, Addr: addr}
}

func NewHpRetire(pos event.Event, addr SAddr) *Free {
	return &Free{Base: newBase(pos, NotAtomic), kind: KindHpRetire, Addr: addr}
}

func (l *Free) Kind() Kind { return l.kind }
func (l *Free) String() string {
	return fmt.Sprintf("%v %v", l.kind, l.Addr)
}

type HpProtect struct {
	Base
	HpAddr SAddr
	Addr   SAddr
}

func NewHpProtect(pos event.Event, hp, addr SAddr) *HpProtect {
	return &HpProtect{Base: newBase(pos, NotAtomic), HpAddr: hp, Addr: addr}
}

func (l *HpProtect) Kind() Kind { return KindHpProtect }
func (l *HpProtect) String() string {
	return fmt.Sprintf("%v %v, %v", KindHpProtect, l.HpAddr, l.Addr)
}

// A HelpingCas stands for a CAS that another thread's helped CAS is known
// to perform; it only requires that such a helped CAS exists.
type HelpingCas struct {
	Base
	Addr     SAddr
	Size     ASize
	Expected SVal
	Swap     SVal
}

func NewHelpingCas(pos event.Event, ord Ordering, addr SAddr, size ASize, exp, swap SVal) *HelpingCas {
	return &HelpingCas{Base: newBase(pos, ord), Addr: addr, Size: size, Expected: exp, Swap: swap}
}

func (l *HelpingCas) Kind() Kind { return KindHelpingCas }
func (l *HelpingCas) String() string {
	return fmt.Sprintf("%v%v %v, %d, %d", KindHelpingCas, l.ord, l.Addr, l.Expected, l.Swap)
}

// An Optional label marks a branch that is explored both taken and not taken
type Optional struct {
	Base
	Expandable bool
	Expanded   bool
}

func NewOptional(pos event.Event) *Optional {
	return &Optional{Base: newBase(pos, NotAtomic), Expandable: true}
}

func (l *Optional) Kind() Kind { return KindOptional }
func (l *Optional) String() string {
	return fmt.Sprintf("%v [expanded=%v]", KindOptional, l.Expanded)
}

type Empty struct{ Base }

func NewEmpty(pos event.Event) *Empty {
	return &Empty{Base: newBase(pos, NotAtomic)}
}

func (l *Empty) Kind() Kind { return KindEmpty }
func (l *Empty) String() string { return KindEmpty.String() }

// Returns a deep copy of a label
func Clone(lab Label) Label {
	switch l := lab.(type) {
	case *Init:
		return &Init{Base: l.clone()}
	case *ThreadStart:
		c := *l
		c.Base = l.clone()
		return &c
	case *ThreadCreate:
		c := *l
		c.Base = l.clone()
		return &c
	case *ThreadJoin:
		c := *l
		c.Base = l.clone()
		return &c
	case *ThreadFinish:
		c := *l
		c.Base = l.clone()
		return &c
	case *ThreadKill:
		return &ThreadKill{Base: l.clone()}
	case *Block:
		c := *l
		c.Base = l.clone()
		return &c
	case *Fence:
		return &Fence{Base: l.clone()}
	case *Malloc:
		c := *l
		c.Base = l.clone()
		return &c
	case *Free:
		c := *l
		c.Base = l.clone()
		return &c
	case *HpProtect:
		c := *l
		c.Base = l.clone()
		return &c
	case *HelpingCas:
		c := *l
		c.Base = l.clone()
		return &c
	case *Optional:
		c := *l
		c.Base = l.clone()
		return &c
	case *Empty:
		return &Empty{Base: l.clone()}
	case *Read:
		c := *l
		c.MemAccess.Base = l.MemAccess.Base.clone()
		if l.annot != nil {
			a := *l.annot
			c.annot = &a
		}
		if l.rmw != nil {
			r := *l.rmw
			c.rmw = &r
		}
		return &c
	case *Write:
		c := *l
		c.MemAccess.Base = l.MemAccess.Base.clone()
		c.readers = slices.Clone(l.readers)
		return &c
	}
	panic(fmt.Sprintf("BUG: cannot clone label of type %T", lab))
}

// Moves a label to another position. Used when a graph is renumbered.
func SetPos(lab Label, pos event.Event) {
	lab.base().pos = pos
}

// Returns true if the label ends its thread
func IsTerminator(lab Label) bool {
	switch lab.Kind() {
	case KindBlock, KindThreadFinish, KindThreadKill:
		return true
	}
	return false
}

// Returns the label as a Block if it is one
func AsBlock(lab Label) (*Block, bool) {
	b, ok := lab.(*Block)
	return b, ok
}
