package verifier

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/revisit"
	"golang.org/x/exp/slices"
)

// ChoiceMap records, for the stamp of every read and write, the
// alternatives that were considered when the label was added
type ChoiceMap map[event.Stamp][]event.Event

// Record an alternative for the label with stamp s
func (cm ChoiceMap) Add(s event.Stamp, e event.Event) {
	if !slices.Contains(cm[s], e) {
		cm[s] = append(cm[s], e)
	}
}

// Drop every entry above stamp s
func (cm ChoiceMap) Restrict(s event.Stamp) {
	for k := range cm {
		if k > s {
			delete(cm, k)
		}
	}
}

func (cm ChoiceMap) Clone() ChoiceMap {
	c := make(ChoiceMap, len(cm))
	for s, alts := range cm {
		c[s] = slices.Clone(alts)
	}
	return c
}

// Returns the number of executions the choices span: the product of the
// sizes of all choice sets
func (cm ChoiceMap) Product() float64 {
	p := 1.0
	for _, alts := range cm {
		if len(alts) > 0 {
			p *= float64(len(alts))
		}
	}
	return p
}

// An Execution is one unit of search state: a graph, the revisits pending
// on it and the choices made while building it
type Execution struct {
	Graph   *graph.ExecutionGraph
	WorkSet *revisit.WorkSet
	Choices ChoiceMap
}

// Create an execution holding g and no pending work
func NewExecution(g *graph.ExecutionGraph, choices ChoiceMap) *Execution {
	if choices == nil {
		choices = make(ChoiceMap)
	}
	return &Execution{Graph: g, WorkSet: revisit.NewWorkSet(), Choices: choices}
}

// Remove everything added after stamp s. Returns the reads whose source
// was removed and that were rebound to the coherence-maximal write.
func (ex *Execution) Restrict(s event.Stamp) []event.Event {
	repaired := ex.Graph.CutToStamp(s)
	ex.WorkSet.Restrict(s)
	ex.Choices.Restrict(s)
	return repaired
}

// A stack of executions. The top is the one being explored; the ones
// below are resumed once it is exhausted.
type execStack []*Execution

func (st *execStack) push(ex *Execution) {
	*st = append(*st, ex)
}

func (st *execStack) pop() *Execution {
	old := *st
	ex := old[len(old)-1]
	*st = old[:len(old)-1]
	return ex
}

func (st execStack) top() *Execution {
	return st[len(st)-1]
}

func (st execStack) len() int {
	return len(st)
}
