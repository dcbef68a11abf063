package verifier

import (
	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/predicate"
)

// Engine is the interface the interpreter reports instructions through.
//
// Every handler is called by Interpreter.Step for the thread being stepped.
// A false ok result means the thread stopped at this instruction: it blocked,
// an error was reported or the execution became moot. The interpreter must
// then leave the thread before the instruction so that it executes it again
// once the thread runs again.
type Engine interface {
	HandleLoad(t int, ord label.Ordering, addr label.SAddr, size label.ASize, annot *label.Annotation) (label.SVal, bool)
	HandleStore(t int, ord label.Ordering, addr label.SAddr, size label.ASize, val label.SVal, final bool) bool
	// Compare-and-swap. k selects a plain, lock or helped CAS read. Returns the value read.
	HandleCAS(t int, k label.Kind, ord label.Ordering, addr label.SAddr, size label.ASize, exp, swap label.SVal) (label.SVal, bool)
	// Fetch-and-op. Returns the value read.
	HandleFAI(t int, op label.RMWOp, ord label.Ordering, addr label.SAddr, size label.ASize, operand label.SVal) (label.SVal, bool)
	HandleFence(t int, ord label.Ordering) bool

	HandleMalloc(t int, size label.ASize) (label.SAddr, bool)
	HandleFree(t int, addr label.SAddr) bool
	HandleHpProtect(t int, hp, addr label.SAddr) bool
	HandleHpRetire(t int, addr label.SAddr) bool

	// Spawn a thread running funcID with arg. Returns the new thread's id.
	HandleThreadCreate(t int, funcID int, arg label.SVal) (int, bool)
	// Wait for child to finish. Returns its return value.
	HandleThreadJoin(t int, child int) (label.SVal, bool)
	HandleThreadFinish(t int, ret label.SVal) bool
	HandleThreadKill(t int) bool

	HandleLock(t int, addr label.SAddr) bool
	HandleUnlock(t int, addr label.SAddr) bool
	HandleHelpingCas(t int, ord label.Ordering, addr label.SAddr, size label.ASize, exp, swap label.SVal) bool

	// Returns whether the optional branch is taken
	HandleOptional(t int) (bool, bool)
	// Block the thread if cond is false
	HandleAssume(t int, cond bool) bool
	HandleAssertFail(t int, msg string) bool

	// Returns the value of the coherence-maximal write to addr
	Memory(addr label.SAddr) label.SVal
}

// Interpreter runs the program under test on behalf of the driver
type Interpreter interface {
	// Prepare a new run of the program from its first instruction.
	// Only the main thread (0) exists until it spawns others.
	Reset(e Engine)
	// Returns true if thread t exists and has not finished
	Runnable(t int) bool
	// Returns true if the next instruction of thread t that reaches the
	// engine is a load
	NextIsLoad(t int) bool
	// Execute instructions of thread t until exactly one handler was called
	Step(t int)
	// Move thread t back to its first instruction, clearing its local state
	ResetThread(t int)
	// Returns the value of addr before any write
	InitialValue(addr label.SAddr) label.SVal
	// Returns the final state of the current run
	Outcome() predicate.Outcome
}
