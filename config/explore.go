// Package config holds the options accepted by weazer.PrepareVerification.
//
// Every option is a plain struct with a marker method. Options left out
// keep the defaults of verifier.DefaultConfig.
package config

import "github.com/lililuanluan/weazer/verifier"

// Implemented by every option
type VerifyOption interface {
	VerifyOpt()
}

// Configures the memory model the executions are checked against.
//
// One of "sc", "ra", "rc11". Default value is "rc11".
type ModelOption struct {
	Model string
}

func (mo ModelOption) VerifyOpt() {}

// Configures the order in which runnable threads are picked.
//
// One of "ltr", "wf", "wfr", "random", "arbitrary". The seed is used by the
// randomized policies and by estimation. Default value is "wf" with seed 1.
type SchedulerOption struct {
	Policy string
	Seed   int64
}

func (so SchedulerOption) VerifyOpt() {}

// Turns symmetry reduction on or off. Default value is on.
type SymmetryOption struct {
	Enabled bool
}

func (so SymmetryOption) VerifyOpt() {}

// Turns in-place revisiting of annotated reads on or off. Default value is on.
type IPROption struct {
	Enabled bool
}

func (ipo IPROption) VerifyOpt() {}

// Bounds the exploration by the number of context switches or rounds.
//
// Default value is no bound.
type BoundOption struct {
	Type  verifier.BoundType
	Value int
}

func (bo BoundOption) VerifyOpt() {}

// Configures the sampling budget of estimation.
//
// Sampling stops after Max samples, or after Min samples once the relative
// standard deviation is below SDThreshold. Zero fields keep their default.
type EstimationOption struct {
	Max         int
	Min         int
	SDThreshold float64
}

func (eo EstimationOption) VerifyOpt() {}

// Stops the exploration after the given number of complete executions.
//
// Default value is no limit.
type MaxExecutionsOption struct {
	N int
}

func (meo MaxExecutionsOption) VerifyOpt() {}
