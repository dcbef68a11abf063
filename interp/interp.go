package interp

import (
	"fmt"

	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/lililuanluan/weazer/verifier"
)

// The handlers the interpreter reports instructions to
type Engine = verifier.Engine

// Size of every memory access
const wordSize label.ASize = 8

type thread struct {
	id   int
	fn   *Func
	arg  label.SVal
	pc   int
	regs map[string]label.SVal
	// Times each backward jump was taken
	jumps map[int]int
	done  bool
}

func newThread(id int, fn *Func, arg label.SVal) *thread {
	th := &thread{id: id, fn: fn, arg: arg}
	th.reset()
	return th
}

func (th *thread) reset() {
	th.pc = 0
	th.regs = map[string]label.SVal{"arg": th.arg}
	th.jumps = make(map[int]int)
	th.done = false
}

func (th *thread) value(o Operand) label.SVal {
	if o.Reg != "" {
		return th.regs[o.Reg]
	}
	return o.Imm
}

// Interpreter runs a Program. It implements verifier.Interpreter.
type Interpreter struct {
	prog    *Program
	e       Engine
	threads []*thread
	addrs   map[string]label.SAddr
	inits   map[label.SAddr]label.SVal
}

// Create an interpreter for a built program
func New(p *Program) *Interpreter {
	it := &Interpreter{
		prog:  p,
		addrs: make(map[string]label.SAddr, len(p.Globals)),
		inits: make(map[label.SAddr]label.SVal, len(p.Globals)),
	}
	for i, g := range p.Globals {
		a := label.StaticAddr(uint64(i) * uint64(wordSize))
		it.addrs[g.Name] = a
		it.inits[a] = g.Init
	}
	return it
}

func (it *Interpreter) Program() *Program {
	return it.prog
}

func (it *Interpreter) Reset(e Engine) {
	it.e = e
	it.threads = []*thread{newThread(0, it.prog.Funcs[0], 0)}
}

func (it *Interpreter) Runnable(t int) bool {
	return t >= 0 && t < len(it.threads) && it.threads[t] != nil && !it.threads[t].done
}

func (it *Interpreter) ResetThread(t int) {
	it.threads[t].reset()
}

func (it *Interpreter) InitialValue(addr label.SAddr) label.SVal {
	return it.inits[addr]
}

// Follows the local instructions of t on a copy of its registers
func (it *Interpreter) NextIsLoad(t int) bool {
	if !it.Runnable(t) {
		return false
	}
	th := it.threads[t]
	regs := make(map[string]label.SVal, len(th.regs))
	for k, v := range th.regs {
		regs[k] = v
	}
	pc := th.pc
	for steps := 0; steps < 64 && pc < len(th.fn.Body); steps++ {
		in := &th.fn.Body[pc]
		val := func(o Operand) label.SVal {
			if o.Reg != "" {
				return regs[o.Reg]
			}
			return o.Imm
		}
		switch in.Op {
		case OpSet:
			regs[in.Dst] = val(in.Args[0])
		case OpAdd:
			regs[in.Dst] += val(in.Args[0])
		case OpGoto:
			pc = in.target
			continue
		case OpBeq, OpBne:
			if (val(in.Args[0]) == val(in.Args[1])) == (in.Op == OpBeq) {
				pc = in.target
				continue
			}
		case OpAssert, OpAssume:
		default:
			return in.Op.isLoad()
		}
		pc++
	}
	return false
}

func (it *Interpreter) Outcome() predicate.Outcome {
	o := make(predicate.Outcome)
	for _, th := range it.threads {
		if th == nil {
			continue
		}
		for r, v := range th.regs {
			if r != "arg" {
				o[fmt.Sprintf("%d:%s", th.id, r)] = v
			}
		}
	}
	for _, g := range it.prog.Globals {
		o[g.Name] = it.e.Memory(it.addrs[g.Name])
	}
	return o
}

func (it *Interpreter) addr(th *thread, l Loc) label.SAddr {
	if l.Global != "" {
		return it.addrs[l.Global]
	}
	return label.SAddr(th.regs[l.Reg]).Add(l.Off)
}

// Executes the local instructions of t up to and including the first one
// that reaches the engine
func (it *Interpreter) Step(t int) {
	th := it.threads[t]
	for !th.done {
		if th.pc >= len(th.fn.Body) {
			th.done = it.e.HandleThreadFinish(t, 0)
			return
		}
		in := &th.fn.Body[th.pc]
		if !in.Op.local() {
			it.exec(th, in)
			return
		}
		if !it.execLocal(th, in) {
			return
		}
	}
}

// Returns false if the instruction reached the engine
func (it *Interpreter) execLocal(th *thread, in *Instr) bool {
	switch in.Op {
	case OpSet:
		th.regs[in.Dst] = th.value(in.Args[0])
	case OpAdd:
		th.regs[in.Dst] += th.value(in.Args[0])
	case OpGoto:
		return it.jump(th, in.target)
	case OpBeq, OpBne:
		if (th.value(in.Args[0]) == th.value(in.Args[1])) == (in.Op == OpBeq) {
			return it.jump(th, in.target)
		}
	case OpAssert:
		if !in.Cmp.Eval(th.value(in.Args[0]), th.value(in.Args[1])) {
			msg := in.Msg
			if msg == "" {
				msg = fmt.Sprintf("Assertion violation: %s", in)
			}
			it.e.HandleAssertFail(th.id, msg)
			return false
		}
	case OpAssume:
		if !in.Cmp.Eval(th.value(in.Args[0]), th.value(in.Args[1])) {
			it.e.HandleAssume(th.id, false)
			return false
		}
	}
	th.pc++
	return true
}

// Jump to pc. A backward jump taken more often than the unroll bound
// blocks the thread.
func (it *Interpreter) jump(th *thread, pc int) bool {
	if pc <= th.pc {
		th.jumps[th.pc]++
		if th.jumps[th.pc] > it.prog.Unroll {
			it.e.HandleAssume(th.id, false)
			return false
		}
	}
	th.pc = pc
	return true
}

func (it *Interpreter) exec(th *thread, in *Instr) {
	t := th.id
	next := th.pc + 1
	var ok bool
	switch in.Op {
	case OpLoad:
		var v label.SVal
		if v, ok = it.e.HandleLoad(t, in.Ord, it.addr(th, in.Loc), wordSize, nil); ok {
			th.regs[in.Dst] = v
		}
	case OpAwait:
		annot := &label.Annotation{Op: in.Cmp, Value: th.value(in.Args[0])}
		var v label.SVal
		if v, ok = it.e.HandleLoad(t, in.Ord, it.addr(th, in.Loc), wordSize, annot); ok {
			th.regs[in.Dst] = v
		}
	case OpStore, OpStoreFinal:
		ok = it.e.HandleStore(t, in.Ord, it.addr(th, in.Loc), wordSize, th.value(in.Args[0]), in.Op == OpStoreFinal)
	case OpCas, OpHelpedCas:
		k := label.KindCasRead
		if in.Op == OpHelpedCas {
			k = label.KindHelpedCasRead
		}
		var v label.SVal
		if v, ok = it.e.HandleCAS(t, k, in.Ord, it.addr(th, in.Loc), wordSize, th.value(in.Args[0]), th.value(in.Args[1])); ok {
			th.regs[in.Dst] = v
		}
	case OpFai:
		var v label.SVal
		if v, ok = it.e.HandleFAI(t, in.RMW, in.Ord, it.addr(th, in.Loc), wordSize, th.value(in.Args[0])); ok {
			th.regs[in.Dst] = v
		}
	case OpHelpingCas:
		ok = it.e.HandleHelpingCas(t, in.Ord, it.addr(th, in.Loc), wordSize, th.value(in.Args[0]), th.value(in.Args[1]))
	case OpFence:
		ok = it.e.HandleFence(t, in.Ord)
	case OpMalloc:
		var a label.SAddr
		if a, ok = it.e.HandleMalloc(t, label.ASize(th.value(in.Args[0]))); ok {
			th.regs[in.Dst] = label.SVal(a)
		}
	case OpFree:
		ok = it.e.HandleFree(t, it.addr(th, in.Loc))
	case OpHpRetire:
		ok = it.e.HandleHpRetire(t, it.addr(th, in.Loc))
	case OpHpProtect:
		ok = it.e.HandleHpProtect(t, it.addr(th, in.Loc), label.SAddr(th.value(in.Args[0])))
	case OpSpawn:
		var arg label.SVal
		if len(in.Args) > 0 {
			arg = th.value(in.Args[0])
		}
		var child int
		if child, ok = it.e.HandleThreadCreate(t, in.target, arg); ok {
			th.regs[in.Dst] = label.SVal(child)
			it.spawn(child, it.prog.Funcs[in.target], arg)
		}
	case OpJoin:
		var v label.SVal
		if v, ok = it.e.HandleThreadJoin(t, int(th.value(in.Args[0]))); ok {
			th.regs[in.Dst] = v
		}
	case OpRet:
		var v label.SVal
		if len(in.Args) > 0 {
			v = th.value(in.Args[0])
		}
		th.done = it.e.HandleThreadFinish(t, v)
		return
	case OpKill:
		th.done = it.e.HandleThreadKill(t)
		return
	case OpLock:
		ok = it.e.HandleLock(t, it.addr(th, in.Loc))
	case OpUnlock:
		ok = it.e.HandleUnlock(t, it.addr(th, in.Loc))
	case OpOptional:
		var taken bool
		if taken, ok = it.e.HandleOptional(t); ok && !taken {
			next = in.target
		}
	default:
		panic(fmt.Sprintf("BUG: instruction %q is not executable", in.Op))
	}
	if ok {
		th.pc = next
	}
}

func (it *Interpreter) spawn(id int, fn *Func, arg label.SVal) {
	for len(it.threads) <= id {
		it.threads = append(it.threads, nil)
	}
	it.threads[id] = newThread(id, fn, arg)
}
