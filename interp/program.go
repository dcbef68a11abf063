// Package interp runs small litmus-style programs against the verifier.
//
// A program is a set of global variables and a list of functions. The
// first function is the main thread; other threads are started with spawn.
// Every function body is a list of instructions in a textual form:
//
//	store.rel flag, 1
//	await.acq r0, flag == 1
//	fai.add.rlx r1, [r2+8], 1
//	beq r0, 0, done
//	done:
//
// Memory operands are global names or a register holding an address in
// brackets, with an optional offset. Registers are named r0, r1, ... and
// arg holds the argument a thread was spawned with.
package interp

import (
	"strconv"
	"strings"

	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/pkg/errors"
)

var (
	ErrSyntax       = errors.New("interp: syntax error")
	ErrUnknownName  = errors.New("interp: unknown name")
	ErrEmptyProgram = errors.New("interp: program has no function")
)

// Number of times a backward jump may be taken before the thread blocks
const DefaultUnroll = 3

type Op string

const (
	OpLoad       Op = "load"
	OpStore      Op = "store"
	OpStoreFinal Op = "store_final"
	OpCas        Op = "cas"
	OpFai        Op = "fai"
	OpAwait      Op = "await"
	OpFence      Op = "fence"
	OpMalloc     Op = "malloc"
	OpFree       Op = "free"
	OpSpawn      Op = "spawn"
	OpJoin       Op = "join"
	OpRet        Op = "ret"
	OpKill       Op = "kill"
	OpAssert     Op = "assert"
	OpAssume     Op = "assume"
	OpLock       Op = "lock"
	OpUnlock     Op = "unlock"
	OpOptional   Op = "optional"
	OpGoto       Op = "goto"
	OpBeq        Op = "beq"
	OpBne        Op = "bne"
	OpSet        Op = "set"
	OpAdd        Op = "add"
	OpHpProtect  Op = "hp_protect"
	OpHpRetire   Op = "hp_retire"
	OpHelpedCas  Op = "helped_cas"
	OpHelpingCas Op = "helping_cas"
)

// Returns true for instructions that never reach the engine on their own
func (op Op) local() bool {
	switch op {
	case OpGoto, OpBeq, OpBne, OpSet, OpAdd, OpAssert, OpAssume:
		return true
	}
	return false
}

// Returns true if the instruction reads shared memory first
func (op Op) isLoad() bool {
	switch op {
	case OpLoad, OpAwait, OpCas, OpFai, OpLock, OpHelpedCas:
		return true
	}
	return false
}

// An Operand is a register or an immediate
type Operand struct {
	Reg string
	Imm label.SVal
}

// A Loc is a memory operand: a global, or the address held in a register
// plus an offset
type Loc struct {
	Global string
	Reg    string
	Off    uint64
}

type Instr struct {
	Op   Op
	Ord  label.Ordering
	Dst  string
	Loc  Loc
	Args []Operand
	RMW  label.RMWOp
	Cmp  label.CmpOp
	// Jump label or spawned function
	Target string
	Msg    string

	target int
	text   string
}

func (in *Instr) String() string {
	return in.text
}

type Func struct {
	Name   string
	Body   []Instr
	labels map[string]int
}

type Global struct {
	Name string
	Init label.SVal
}

type Program struct {
	Name    string
	Globals []Global
	// Funcs[0] runs as the main thread
	Funcs  []*Func
	Unroll int
	// Expected properties of the outcomes
	Predicates []predicate.Predicate

	err error
}

// Create an empty program. Globals and functions are added with the
// builder methods and checked by Build.
func NewProgram(name string) *Program {
	return &Program{Name: name, Unroll: DefaultUnroll}
}

func (p *Program) Global(name string, init label.SVal) *Program {
	p.Globals = append(p.Globals, Global{Name: name, Init: init})
	return p
}

// Add a function made of the given instruction lines. A line ending with
// a colon defines a jump label.
func (p *Program) Func(name string, lines ...string) *Program {
	if p.err != nil {
		return p
	}
	f, err := parseFunc(name, lines)
	if err != nil {
		p.err = err
		return p
	}
	p.Funcs = append(p.Funcs, f)
	return p
}

func (p *Program) WithUnroll(n int) *Program {
	p.Unroll = n
	return p
}

func (p *Program) Expect(preds ...predicate.Predicate) *Program {
	p.Predicates = append(p.Predicates, preds...)
	return p
}

// Resolve the names used by the program and return the first error met
func (p *Program) Build() (*Program, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.Funcs) == 0 {
		return nil, errors.Wrapf(ErrEmptyProgram, "%q", p.Name)
	}
	globals := make(map[string]bool, len(p.Globals))
	for _, g := range p.Globals {
		globals[g.Name] = true
	}
	for _, f := range p.Funcs {
		for i := range f.Body {
			in := &f.Body[i]
			if in.Loc.Global != "" && !globals[in.Loc.Global] {
				return nil, errors.Wrapf(ErrUnknownName, "global %q in %s: %s", in.Loc.Global, f.Name, in)
			}
			switch in.Op {
			case OpSpawn:
				in.target = p.funcID(in.Target)
				if in.target < 0 {
					return nil, errors.Wrapf(ErrUnknownName, "function %q in %s: %s", in.Target, f.Name, in)
				}
			case OpGoto, OpBeq, OpBne, OpOptional:
				pc, ok := f.labels[in.Target]
				if !ok {
					return nil, errors.Wrapf(ErrUnknownName, "label %q in %s: %s", in.Target, f.Name, in)
				}
				in.target = pc
			}
		}
	}
	if p.Unroll <= 0 {
		p.Unroll = DefaultUnroll
	}
	return p, nil
}

// Like Build but panics on error. For programs written in Go.
func (p *Program) Must() *Program {
	b, err := p.Build()
	if err != nil {
		panic(err)
	}
	return b
}

func (p *Program) funcID(name string) int {
	for i, f := range p.Funcs {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func parseFunc(name string, lines []string) (*Func, error) {
	f := &Func{Name: name, labels: make(map[string]int)}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			f.labels[strings.TrimSuffix(line, ":")] = len(f.Body)
			continue
		}
		in, err := parseInstr(line)
		if err != nil {
			return nil, errors.Wrapf(err, "in %s", name)
		}
		f.Body = append(f.Body, in)
	}
	return f, nil
}

// Returns the default ordering of an instruction without a suffix
func defaultOrdering(op Op) label.Ordering {
	switch op {
	case OpLoad, OpStore, OpStoreFinal:
		return label.NotAtomic
	case OpAwait:
		return label.Acquire
	}
	return label.SeqCst
}

func parseInstr(line string) (Instr, error) {
	head, rest, _ := strings.Cut(line, " ")
	parts := strings.Split(head, ".")
	in := Instr{Op: Op(parts[0]), text: line}
	in.Ord = defaultOrdering(in.Op)
	for _, suffix := range parts[1:] {
		if o, ok := label.ParseOrdering(suffix); ok {
			in.Ord = o
		} else if op, ok := label.ParseRMWOp(suffix); ok && in.Op == OpFai {
			in.RMW = op
		} else {
			return in, errors.Wrapf(ErrSyntax, "bad suffix %q: %s", suffix, line)
		}
	}
	args := splitArgs(rest)
	bad := func() (Instr, error) {
		return in, errors.Wrapf(ErrSyntax, "%s", line)
	}
	var err error
	switch in.Op {
	case OpLoad:
		if len(args) != 2 {
			return bad()
		}
		in.Dst = args[0]
		in.Loc, err = parseLoc(args[1])
	case OpStore, OpStoreFinal:
		if len(args) != 2 {
			return bad()
		}
		in.Loc, err = parseLoc(args[0])
		in.Args, err = parseOperands(err, args[1:])
	case OpCas, OpHelpedCas:
		if len(args) != 4 {
			return bad()
		}
		in.Dst = args[0]
		in.Loc, err = parseLoc(args[1])
		in.Args, err = parseOperands(err, args[2:])
	case OpHelpingCas:
		if len(args) != 3 {
			return bad()
		}
		in.Loc, err = parseLoc(args[0])
		in.Args, err = parseOperands(err, args[1:])
	case OpFai:
		if len(args) != 3 {
			return bad()
		}
		in.Dst = args[0]
		in.Loc, err = parseLoc(args[1])
		in.Args, err = parseOperands(err, args[2:])
	case OpAwait:
		if len(args) != 2 {
			return bad()
		}
		in.Dst = args[0]
		var loc, val string
		loc, in.Cmp, val, err = parseCond(args[1])
		if err == nil {
			in.Loc, err = parseLoc(loc)
		}
		in.Args, err = parseOperands(err, []string{val})
	case OpFence, OpKill:
		if len(args) != 0 {
			return bad()
		}
	case OpMalloc:
		if len(args) != 2 {
			return bad()
		}
		in.Dst = args[0]
		in.Args, err = parseOperands(nil, args[1:])
	case OpFree, OpHpRetire, OpLock, OpUnlock:
		if len(args) != 1 {
			return bad()
		}
		in.Loc, err = parseLoc(args[0])
	case OpHpProtect:
		if len(args) != 2 {
			return bad()
		}
		in.Loc, err = parseLoc(args[0])
		in.Args, err = parseOperands(err, args[1:])
	case OpSpawn:
		if len(args) < 2 || len(args) > 3 {
			return bad()
		}
		in.Dst, in.Target = args[0], args[1]
		in.Args, err = parseOperands(nil, args[2:])
	case OpJoin:
		if len(args) != 2 {
			return bad()
		}
		in.Dst = args[0]
		in.Args, err = parseOperands(nil, args[1:])
	case OpRet:
		if len(args) > 1 {
			return bad()
		}
		in.Args, err = parseOperands(nil, args)
	case OpAssert, OpAssume:
		if len(args) < 1 || len(args) > 2 {
			return bad()
		}
		var reg, val string
		reg, in.Cmp, val, err = parseCond(args[0])
		in.Args, err = parseOperands(err, []string{reg, val})
		if len(args) == 2 {
			in.Msg = strings.Trim(args[1], `"`)
		}
	case OpOptional, OpGoto:
		if len(args) != 1 {
			return bad()
		}
		in.Target = args[0]
	case OpBeq, OpBne:
		if len(args) != 3 {
			return bad()
		}
		in.Args, err = parseOperands(nil, args[:2])
		in.Target = args[2]
	case OpSet, OpAdd:
		if len(args) != 2 {
			return bad()
		}
		in.Dst = args[0]
		in.Args, err = parseOperands(nil, args[1:])
	default:
		return in, errors.Wrapf(ErrSyntax, "unknown instruction %q", in.Op)
	}
	if err != nil {
		return in, errors.Wrapf(err, "%s", line)
	}
	return in, nil
}

func splitArgs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Split "a op b" into its parts
func parseCond(s string) (string, label.CmpOp, string, error) {
	f := strings.Fields(s)
	if len(f) != 3 {
		return "", 0, "", errors.Wrapf(ErrSyntax, "expected 'a op b', got %q", s)
	}
	op, ok := label.ParseCmp(f[1])
	if !ok {
		return "", 0, "", errors.Wrapf(ErrSyntax, "unknown comparison %q", f[1])
	}
	return f[0], op, f[2], nil
}

func isRegister(s string) bool {
	if s == "arg" {
		return true
	}
	if len(s) < 2 || s[0] != 'r' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

func parseOperands(err error, args []string) ([]Operand, error) {
	if err != nil {
		return nil, err
	}
	out := make([]Operand, 0, len(args))
	for _, a := range args {
		if isRegister(a) {
			out = append(out, Operand{Reg: a})
			continue
		}
		n, err := strconv.ParseInt(a, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrSyntax, "bad operand %q", a)
		}
		out = append(out, Operand{Imm: label.SVal(n)})
	}
	return out, nil
}

func parseLoc(s string) (Loc, error) {
	if !strings.HasPrefix(s, "[") {
		if s == "" || isRegister(s) {
			return Loc{}, errors.Wrapf(ErrSyntax, "bad location %q", s)
		}
		return Loc{Global: s}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return Loc{}, errors.Wrapf(ErrSyntax, "bad location %q", s)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	reg, off, hasOff := strings.Cut(inner, "+")
	reg = strings.TrimSpace(reg)
	if !isRegister(reg) {
		return Loc{}, errors.Wrapf(ErrSyntax, "bad base register in %q", s)
	}
	l := Loc{Reg: reg}
	if hasOff {
		n, err := strconv.ParseUint(strings.TrimSpace(off), 0, 64)
		if err != nil {
			return Loc{}, errors.Wrapf(ErrSyntax, "bad offset in %q", s)
		}
		l.Off = n
	}
	return l, nil
}
