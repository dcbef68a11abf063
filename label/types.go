package label

import "fmt"

// A SAddr is an address of the simulated program.
//
// Static addresses belong to global variables, dynamic addresses to
// allocations made with malloc. Dynamic addresses carry the allocating thread
// so that every thread allocates from its own deterministic region.
type SAddr uint64

const (
	staticBit  SAddr = 1 << 62
	dynamicBit SAddr = 1 << 61
	threadBits       = 16
	offsetBits       = 40
)

// Returns the static address at the given byte offset from the start of the globals
func StaticAddr(offset uint64) SAddr {
	return staticBit | SAddr(offset)
}

// Returns the dynamic address at the given byte offset of the heap region of a thread
func DynamicAddr(thread int, offset uint64) SAddr {
	return dynamicBit | SAddr(thread)<<offsetBits | SAddr(offset)
}

func (a SAddr) IsStatic() bool  { return a&staticBit != 0 }
func (a SAddr) IsDynamic() bool { return a&dynamicBit != 0 }
func (a SAddr) IsNull() bool    { return a == 0 }

// Returns the byte offset of the address inside its region
func (a SAddr) Offset() uint64 {
	return uint64(a) & (1<<offsetBits - 1)
}

// Returns the thread owning the heap region of a dynamic address
func (a SAddr) Thread() int {
	return int(uint64(a&^(staticBit|dynamicBit)) >> offsetBits & (1<<threadBits - 1))
}

// Returns the address shifted by off bytes
func (a SAddr) Add(off uint64) SAddr {
	return a + SAddr(off)
}

func (a SAddr) String() string {
	switch {
	case a.IsNull():
		return "NULL"
	case a.IsStatic():
		return fmt.Sprintf("g+%#x", a.Offset())
	case a.IsDynamic():
		return fmt.Sprintf("h%d+%#x", a.Thread(), a.Offset())
	}
	return fmt.Sprintf("%#x", uint64(a))
}

// An ASize is the size of a memory access in bytes
type ASize uint32

// A SVal is a value read or written by the simulated program
type SVal int64

// The memory ordering of an event
type Ordering uint8

const (
	NotAtomic Ordering = iota
	Relaxed
	Acquire
	Release
	AcqRel
	SeqCst
)

var orderingNames = [...]string{"na", "rlx", "acq", "rel", "ar", "sc"}

func (o Ordering) String() string {
	if int(o) < len(orderingNames) {
		return orderingNames[o]
	}
	return fmt.Sprintf("Ordering(%d)", o)
}

// Returns the ordering with the given short name
func ParseOrdering(s string) (Ordering, bool) {
	for i, n := range orderingNames {
		if n == s {
			return Ordering(i), true
		}
	}
	switch s {
	case "", "relaxed":
		return Relaxed, true
	case "acquire":
		return Acquire, true
	case "release":
		return Release, true
	case "acq_rel":
		return AcqRel, true
	case "seq_cst":
		return SeqCst, true
	case "nonatomic", "plain":
		return NotAtomic, true
	}
	return 0, false
}

func (o Ordering) IsAtomic() bool { return o != NotAtomic }

func (o Ordering) IsAtLeastAcquire() bool {
	return o == Acquire || o == AcqRel || o == SeqCst
}

func (o Ordering) IsAtLeastRelease() bool {
	return o == Release || o == AcqRel || o == SeqCst
}

// The reason a thread is blocked
type BlockType uint8

const (
	BlockJoin BlockType = iota
	BlockSpinloop
	BlockUser
	BlockLockNotAcq
	BlockReadOpt
	BlockHelpedCas
	BlockError
)

var blockNames = [...]string{"join", "spinloop", "assume", "lock", "read-opt", "helped-cas", "error"}

func (b BlockType) String() string {
	if int(b) < len(blockNames) {
		return blockNames[b]
	}
	return fmt.Sprintf("BlockType(%d)", b)
}

// Comparison used by annotations and by the program's conditions
type CmpOp uint8

const (
	Eq CmpOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var cmpNames = [...]string{"==", "!=", "<", "<=", ">", ">="}

func (c CmpOp) String() string {
	if int(c) < len(cmpNames) {
		return cmpNames[c]
	}
	return "?"
}

// Returns the comparison with the given symbol
func ParseCmp(s string) (CmpOp, bool) {
	for i, n := range cmpNames {
		if n == s {
			return CmpOp(i), true
		}
	}
	switch s {
	case "eq":
		return Eq, true
	case "ne":
		return Ne, true
	case "lt":
		return Lt, true
	case "le":
		return Le, true
	case "gt":
		return Gt, true
	case "ge":
		return Ge, true
	}
	return 0, false
}

// Evaluates a op b
func (c CmpOp) Eval(a, b SVal) bool {
	switch c {
	case Eq:
		return a == b
	case Ne:
		return a != b
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	}
	return false
}

// An Annotation is a predicate over the value of a read.
// A read whose value falsifies its annotation blocks its thread.
type Annotation struct {
	Op    CmpOp
	Value SVal
}

// Returns true if v satisfies the annotation
func (a *Annotation) Holds(v SVal) bool {
	if a == nil {
		return true
	}
	return a.Op.Eval(v, a.Value)
}

func (a *Annotation) String() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("v %v %d", a.Op, a.Value)
}

// The operation performed by a fetch-and-op
type RMWOp uint8

const (
	OpAdd RMWOp = iota
	OpSub
	OpXchg
	OpAnd
	OpOr
	OpMax
	OpMin
)

var rmwNames = [...]string{"add", "sub", "xchg", "and", "or", "max", "min"}

func (op RMWOp) String() string {
	if int(op) < len(rmwNames) {
		return rmwNames[op]
	}
	return "?"
}

// Returns the operation with the given name
func ParseRMWOp(s string) (RMWOp, bool) {
	for i, n := range rmwNames {
		if n == s {
			return RMWOp(i), true
		}
	}
	return 0, false
}

// Returns the value written by the operation when old is read
func (op RMWOp) Apply(old, operand SVal) SVal {
	switch op {
	case OpAdd:
		return old + operand
	case OpSub:
		return old - operand
	case OpXchg:
		return operand
	case OpAnd:
		return old & operand
	case OpOr:
		return old | operand
	case OpMax:
		if operand > old {
			return operand
		}
		return old
	case OpMin:
		if operand < old {
			return operand
		}
		return old
	}
	return old
}
