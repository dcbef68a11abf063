package main

import (
	"os"

	"github.com/lililuanluan/weazer/config"
	"github.com/lililuanluan/weazer/interp"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

// The flags shared by the commands that explore a program
type options struct {
	model     string
	policy    string
	seed      int64
	symmetry  bool
	ipr       bool
	boundType string
	bound     int

	estimationMax int
	estimationMin int
	sdThreshold   float64

	liveness     bool
	warnUnfreed  bool
	printOnError bool

	workers       int
	remotes       []string
	maxExecutions int
	tree          string
}

func (o *options) register(fs *flag.FlagSet) {
	def := verifier.DefaultConfig()
	fs.StringVar(&o.model, "model", def.Model, "memory model: sc, ra or rc11")
	fs.StringVar(&o.policy, "schedule-policy", def.Policy, "thread scheduling policy: ltr, wf, wfr, random or arbitrary")
	fs.Int64Var(&o.seed, "seed", def.Seed, "seed of the random scheduling policies and of estimation")
	fs.BoolVar(&o.symmetry, "symmetry-reduction", def.Symmetry, "explore one of every set of symmetric threads")
	fs.BoolVar(&o.ipr, "ipr", def.IPR, "revisit annotated reads in place")
	fs.StringVar(&o.boundType, "bound-type", verifier.BoundNone.String(), "bounded exploration: none, context or round")
	fs.IntVar(&o.bound, "bound", 0, "value of the exploration bound")
	fs.IntVar(&o.estimationMax, "estimation-max", def.EstimationMax, "maximum number of estimation samples")
	fs.IntVar(&o.estimationMin, "estimation-min", def.EstimationMin, "minimum number of estimation samples")
	fs.Float64Var(&o.sdThreshold, "sd-threshold", def.SDThreshold, "relative standard deviation at which estimation stops")
	fs.BoolVar(&o.liveness, "check-liveness", false, "report spinloops that can never exit")
	fs.BoolVar(&o.warnUnfreed, "warn-unfreed-memory", false, "warn about memory not freed at the end of an execution")
	fs.BoolVar(&o.printOnError, "print-error-trace", false, "dump the execution graph along with errors")
	fs.IntVarP(&o.workers, "workers", "j", 1, "number of local exploration workers")
	fs.StringSliceVar(&o.remotes, "remote", nil, "addresses of remote workers")
	fs.IntVar(&o.maxExecutions, "max-executions", 0, "stop after this many complete executions, 0 for no limit")
	fs.StringVar(&o.tree, "export-tree", "", "write the exploration tree in Newick format to this file")
}

// Translate the flags into options. The returned function closes the files
// the options write to.
func (o *options) verifyOptions() ([]config.VerifyOption, func(), error) {
	bt, err := verifier.ParseBoundType(o.boundType)
	if err != nil {
		return nil, nil, err
	}
	opts := []config.VerifyOption{
		config.ModelOption{Model: o.model},
		config.SchedulerOption{Policy: o.policy, Seed: o.seed},
		config.SymmetryOption{Enabled: o.symmetry},
		config.IPROption{Enabled: o.ipr},
		config.BoundOption{Type: bt, Value: o.bound},
		config.EstimationOption{Max: o.estimationMax, Min: o.estimationMin, SDThreshold: o.sdThreshold},
		config.MaxExecutionsOption{N: o.maxExecutions},
		config.WorkersOption{N: o.workers},
	}
	if o.liveness {
		opts = append(opts, config.LivenessOption{})
	}
	if o.warnUnfreed {
		opts = append(opts, config.WarnUnfreedOption{})
	}
	if o.printOnError {
		opts = append(opts, config.PrintOnErrorOption{})
	}
	if len(o.remotes) > 0 {
		opts = append(opts, config.RemoteOption{Addrs: o.remotes})
	}
	closer := func() {}
	if o.tree != "" {
		f, err := os.Create(o.tree)
		if err != nil {
			return nil, nil, errors.Wrap(err, "creating tree file")
		}
		opts = append(opts, config.ExportTreeOption{W: f})
		closer = func() { _ = f.Close() }
	}
	return opts, closer, nil
}

func loadProgram(path string) (*interp.Program, error) {
	p, err := interp.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %v", path)
	}
	return p, nil
}
