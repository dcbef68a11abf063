package config

import "io"

// Configures how many local drivers explore the executions concurrently.
//
// Default value is 1, which runs a single driver without a pool.
type WorkersOption struct {
	N int
}

func (wo WorkersOption) VerifyOpt() {}

// Forwards branches of the exploration to workers at the given addresses.
//
// Can be applied multiple times. The workers must have been started with
// the same program.
type RemoteOption struct {
	Addrs []string
}

func (ro RemoteOption) VerifyOpt() {}

// Records every complete execution and writes the exploration tree to W in
// Newick format once the verification ends.
//
// Can be applied multiple times to add multiple writers.
type ExportTreeOption struct {
	W io.Writer
}

func (eto ExportTreeOption) VerifyOpt() {}
