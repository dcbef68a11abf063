package scheduler

import (
	"math/rand"

	"github.com/pkg/errors"
)

// The view of the running program a Policy chooses from
type Threads interface {
	// Returns the number of thread slots, including finished ones
	NumThreads() int
	// Returns true if the thread can execute its next instruction
	Schedulable(t int) bool
	// Returns true if the next instruction of the thread reads memory
	NextIsLoad(t int) bool
}

// A Policy selects the thread that executes the next instruction.
//
// A Policy is only consulted once replaying the current graph is done and
// no thread is prioritized. It must be deterministic for a given seed.
type Policy interface {
	Name() string
	// Returns the next thread to run, or false if no thread is schedulable
	Next(th Threads) (int, bool)
}

var ErrUnknownPolicy = errors.New("scheduler: unknown scheduling policy")

// Returns the policy with the given name. seed initializes the random
// source of the randomized policies.
func New(name string, seed int64) (Policy, error) {
	switch name {
	case "ltr":
		return LTR{}, nil
	case "wf":
		return WF{}, nil
	case "wfr":
		return NewWFR(seed), nil
	case "random", "arbitrary":
		return NewRandom(seed), nil
	}
	return nil, errors.Wrapf(ErrUnknownPolicy, "%q", name)
}

// Names lists the policies accepted by New
var Names = []string{"ltr", "wf", "wfr", "random", "arbitrary"}

// Returns the schedulable threads in increasing order
func schedulable(th Threads) []int {
	var out []int
	for t := 0; t < th.NumThreads(); t++ {
		if th.Schedulable(t) {
			out = append(out, t)
		}
	}
	return out
}

// LTR runs the first schedulable thread, left to right
type LTR struct{}

func (LTR) Name() string { return "ltr" }

func (LTR) Next(th Threads) (int, bool) {
	for t := 0; t < th.NumThreads(); t++ {
		if th.Schedulable(t) {
			return t, true
		}
	}
	return 0, false
}

// WF favours writes: it runs the first schedulable thread whose next
// instruction is not a load, and falls back to LTR.
type WF struct{}

func (WF) Name() string { return "wf" }

func (WF) Next(th Threads) (int, bool) {
	for t := 0; t < th.NumThreads(); t++ {
		if th.Schedulable(t) && !th.NextIsLoad(t) {
			return t, true
		}
	}
	return LTR{}.Next(th)
}

// WFR favours writes like WF, but picks randomly among the candidates
type WFR struct {
	rand *rand.Rand
}

// Create a new WFR policy initialized with seed
func NewWFR(seed int64) *WFR {
	return &WFR{rand: rand.New(rand.NewSource(seed))}
}

func (p *WFR) Name() string { return "wfr" }

func (p *WFR) Next(th Threads) (int, bool) {
	all := schedulable(th)
	if len(all) == 0 {
		return 0, false
	}
	var writers []int
	for _, t := range all {
		if !th.NextIsLoad(t) {
			writers = append(writers, t)
		}
	}
	if len(writers) > 0 {
		return writers[p.rand.Intn(len(writers))], true
	}
	return all[p.rand.Intn(len(all))], true
}

// Random picks uniformly among the schedulable threads.
//
// It is useful to sample a state space too large for an exhaustive search.
type Random struct {
	rand *rand.Rand
}

// Create a new Random policy initialized with seed
func NewRandom(seed int64) *Random {
	return &Random{rand: rand.New(rand.NewSource(seed))}
}

func (p *Random) Name() string { return "random" }

func (p *Random) Next(th Threads) (int, bool) {
	all := schedulable(th)
	if len(all) == 0 {
		return 0, false
	}
	return all[p.rand.Intn(len(all))], true
}
