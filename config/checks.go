package config

import "github.com/lililuanluan/weazer/predicate"

// Reports executions where every spinning thread reads the latest values
type LivenessOption struct{}

func (lo LivenessOption) VerifyOpt() {}

// Warns about memory still allocated at the end of an execution
type WarnUnfreedOption struct{}

func (wuo WarnUnfreedOption) VerifyOpt() {}

// Attaches a dump of the execution graph to error reports
type PrintOnErrorOption struct{}

func (poe PrintOnErrorOption) VerifyOpt() {}

// Adds predicates that are checked against the outcomes of the complete
// executions.
//
// Can be applied multiple times. The predicates of the program are always
// checked.
type PredicateOption struct {
	Preds []predicate.Predicate
}

func (po PredicateOption) VerifyOpt() {}
