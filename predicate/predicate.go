package predicate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lililuanluan/weazer/label"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// An Outcome is the final state of a complete execution. Globals are keyed
// by their name and registers by "thread:register".
type Outcome map[string]label.SVal

// Returns the outcome with its keys sorted, e.g. "1:r0=0 x=1"
func (o Outcome) String() string {
	keys := maps.Keys(o)
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, o[k])
	}
	return strings.Join(parts, " ")
}

// A Condition over an outcome
type Condition func(Outcome) bool

// A Predicate is checked against the outcomes of an exploration.
//
// Each is evaluated on the outcome of every complete execution and End once
// the exploration is over, on the distinct outcomes seen. Either may be nil.
type Predicate struct {
	Name string
	Each func(Outcome) bool
	End  func([]Outcome) bool
}

// The outcome must never satisfy cond
func Forbidden(name string, cond Condition) Predicate {
	return Predicate{
		Name: name,
		Each: func(o Outcome) bool { return !cond(o) },
	}
}

// Every outcome must satisfy cond
func Always(name string, cond Condition) Predicate {
	return Predicate{
		Name: name,
		Each: cond,
	}
}

// Some execution must reach an outcome satisfying cond
func Exists(name string, cond Condition) Predicate {
	return Predicate{
		Name: name,
		End: func(seen []Outcome) bool {
			return slices.IndexFunc(seen, cond) >= 0
		},
	}
}

// Check the outcome of a complete execution against the predicates.
// Returns the index of the first broken predicate, or -1 if all hold.
func CheckOutcome(preds []Predicate, o Outcome) int {
	for i, p := range preds {
		if p.Each != nil && !p.Each(o) {
			return i
		}
	}
	return -1
}

// Check the predicates that need every outcome of the exploration.
// Returns the index of the first broken predicate, or -1 if all hold.
func CheckEnd(preds []Predicate, seen []Outcome) int {
	for i, p := range preds {
		if p.End != nil && !p.End(seen) {
			return i
		}
	}
	return -1
}

// Returns the condition that holds if all conds hold
func And(conds ...Condition) Condition {
	return func(o Outcome) bool {
		for _, c := range conds {
			if !c(o) {
				return false
			}
		}
		return true
	}
}

// Returns the condition that holds if any of conds holds
func Or(conds ...Condition) Condition {
	return func(o Outcome) bool {
		for _, c := range conds {
			if c(o) {
				return true
			}
		}
		return false
	}
}

func Not(cond Condition) Condition {
	return func(o Outcome) bool { return !cond(o) }
}

// Returns the condition key op v. A key missing from the outcome never
// satisfies it.
func Compare(key string, op label.CmpOp, v label.SVal) Condition {
	return func(o Outcome) bool {
		got, ok := o[key]
		return ok && op.Eval(got, v)
	}
}

// Returns the condition key == v
func Eq(key string, v label.SVal) Condition {
	return Compare(key, label.Eq, v)
}

// Parse an outcome in the form produced by Outcome.String
func ParseOutcome(s string) (Outcome, error) {
	o := make(Outcome)
	for _, f := range strings.Fields(s) {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, errors.Wrapf(ErrSyntax, "bad outcome entry %q", f)
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrSyntax, "bad outcome value %q", v)
		}
		o[k] = label.SVal(n)
	}
	return o, nil
}
