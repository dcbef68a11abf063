package verifier

import (
	"fmt"
	"strings"

	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/lililuanluan/weazer/tree"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A Report describes a problem found in the program under test
type Report struct {
	Kind checking.ErrorKind
	// The event that exposed the problem
	Pos event.Event
	// The conflicting event, for races and memory errors
	Racy    event.Event
	HasRacy bool
	Msg     string
	// The labels leading to the problem in the order they were added
	Trace []string
	// A dump of the graph, if requested
	Graph string
}

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error detected: %v!\n", r.Kind)
	fmt.Fprintf(&sb, "Event %v", r.Pos)
	if r.HasRacy {
		fmt.Fprintf(&sb, " conflicts with event %v", r.Racy)
	}
	sb.WriteString(" in graph:\n")
	for _, line := range r.Trace {
		fmt.Fprintf(&sb, "\t%s\n", line)
	}
	if r.Msg != "" {
		fmt.Fprintf(&sb, "%s\n", r.Msg)
	}
	if r.Graph != "" {
		sb.WriteString(r.Graph)
	}
	return sb.String()
}

// The statistics of an estimation
type Estimate struct {
	Samples int
	Mean    float64
	StdDev  float64
}

func (e Estimate) String() string {
	return fmt.Sprintf("%.0f executions (sd %.2f, %d samples)", e.Mean, e.StdDev, e.Samples)
}

// Result summarizes an exploration
type Result struct {
	// Complete executions
	Explored int
	// Executions where some thread stayed blocked
	ExploredBlocked int
	// Complete executions that exceeded the bound
	ExploredBounded int
	// Executions discarded while being built
	Moot int

	// The first error found, nil if none
	Error    *Report
	Warnings []*Report

	// How many complete executions reached each outcome
	Outcomes map[string]int
	// How many times each complete execution was reached, by graph hash
	Hashes map[[32]byte]int

	Estimation *Estimate
	// Every complete execution as its sequence of labels
	Tree *tree.Tree[string]
}

// Create an empty result
func NewResult() *Result {
	return &Result{
		Outcomes: make(map[string]int),
		Hashes:   make(map[[32]byte]int),
	}
}

// Returns the number of complete executions that were reached more than once
func (r *Result) Duplicates() int {
	n := 0
	for _, c := range r.Hashes {
		n += c - 1
	}
	return n
}

// Merge the result of another worker into r. The first error wins.
func (r *Result) Add(o *Result) {
	r.Explored += o.Explored
	r.ExploredBlocked += o.ExploredBlocked
	r.ExploredBounded += o.ExploredBounded
	r.Moot += o.Moot
	if r.Error == nil {
		r.Error = o.Error
	}
	for _, w := range o.Warnings {
		if slices.IndexFunc(r.Warnings, func(x *Report) bool { return x.Kind == w.Kind }) < 0 {
			r.Warnings = append(r.Warnings, w)
		}
	}
	for k, c := range o.Outcomes {
		r.Outcomes[k] += c
	}
	for h, c := range o.Hashes {
		r.Hashes[h] += c
	}
	if o.Tree != nil {
		if r.Tree == nil {
			r.Tree = newTree()
		}
		r.Tree.Merge(o.Tree)
	}
}

func newTree() *tree.Tree[string] {
	return tree.New("", func(a, b string) bool { return a == b })
}

// Evaluate the predicates that need every outcome. Reports a Safety error
// if one of them is broken and no error was found before.
func (r *Result) CheckPredicates(preds []predicate.Predicate) {
	if r.Error != nil {
		return
	}
	var seen []predicate.Outcome
	keys := maps.Keys(r.Outcomes)
	slices.Sort(keys)
	for _, k := range keys {
		if o, err := predicate.ParseOutcome(k); err == nil {
			seen = append(seen, o)
		}
	}
	if i := predicate.CheckEnd(preds, seen); i >= 0 {
		r.Error = &Report{
			Kind: checking.Safety,
			Pos:  event.Init(),
			Msg:  fmt.Sprintf("Predicate %q does not hold. Outcomes: %v", preds[i].Name, keys),
		}
	}
}

func (r *Result) String() string {
	var sb strings.Builder
	if r.Error != nil {
		sb.WriteString(r.Error.String())
	} else {
		sb.WriteString("No errors were detected.\n")
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "Warning: %v at %v\n", w.Kind, w.Pos)
	}
	if r.Estimation != nil {
		fmt.Fprintf(&sb, "Estimation: %v\n", r.Estimation)
		return sb.String()
	}
	fmt.Fprintf(&sb, "Number of complete executions explored: %d\n", r.Explored)
	if r.ExploredBlocked > 0 {
		fmt.Fprintf(&sb, "Number of blocked executions seen: %d\n", r.ExploredBlocked)
	}
	if r.ExploredBounded > 0 {
		fmt.Fprintf(&sb, "Number of complete executions exceeding the bound: %d\n", r.ExploredBounded)
	}
	return sb.String()
}
