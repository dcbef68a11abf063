// Package weazer explores every execution of a concurrent program under a
// weak memory model and reports the problems found.
//
// A verification is configured once with PrepareVerification and can then
// be run against programs built with the interp package:
//
//	v, err := weazer.PrepareVerification(
//		config.ModelOption{Model: "ra"},
//		config.WorkersOption{N: 4},
//	)
//	res, err := v.Verify(ctx, prog)
package weazer

import (
	"context"
	"io"

	"github.com/lililuanluan/weazer/config"
	"github.com/lililuanluan/weazer/interp"
	"github.com/lililuanluan/weazer/pool"
	"github.com/lililuanluan/weazer/remote"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

type Verification struct {
	conf    verifier.Config
	workers int
	remotes []string
	export  []io.Writer
}

// Resolve the options into a verification. Returns an error wrapping
// verifier.ErrInvalidConfig if they are inconsistent.
func PrepareVerification(opts ...config.VerifyOption) (*Verification, error) {
	v := &Verification{
		conf:    verifier.DefaultConfig(),
		workers: 1,
	}
	for _, opt := range opts {
		switch t := opt.(type) {
		case config.ModelOption:
			v.conf.Model = t.Model
		case config.SchedulerOption:
			v.conf.Policy, v.conf.Seed = t.Policy, t.Seed
		case config.SymmetryOption:
			v.conf.Symmetry = t.Enabled
		case config.IPROption:
			v.conf.IPR = t.Enabled
		case config.BoundOption:
			v.conf.Bound, v.conf.BoundValue = t.Type, t.Value
		case config.EstimationOption:
			if t.Max > 0 {
				v.conf.EstimationMax = t.Max
			}
			if t.Min > 0 {
				v.conf.EstimationMin = t.Min
			}
			if t.SDThreshold > 0 {
				v.conf.SDThreshold = t.SDThreshold
			}
		case config.MaxExecutionsOption:
			v.conf.MaxExecutions = t.N
		case config.LivenessOption:
			v.conf.CheckLiveness = true
		case config.WarnUnfreedOption:
			v.conf.WarnUnfreed = true
		case config.PrintOnErrorOption:
			v.conf.PrintOnError = true
		case config.PredicateOption:
			v.conf.Predicates = append(v.conf.Predicates, t.Preds...)
		case config.WorkersOption:
			v.workers = t.N
		case config.RemoteOption:
			v.remotes = append(v.remotes, t.Addrs...)
		case config.ExportTreeOption:
			v.export = append(v.export, t.W)
			v.conf.RecordTree = true
		}
	}
	if v.workers < 0 || v.workers+len(v.remotes) < 1 {
		return nil, errors.Wrapf(verifier.ErrInvalidConfig, "%d workers and %d remotes", v.workers, len(v.remotes))
	}
	if err := v.conf.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Returns the resolved configuration
func (v *Verification) Config() verifier.Config {
	return v.conf
}

// Explore every execution of p. The predicates of p are checked along with
// the configured ones.
func (v *Verification) Verify(ctx context.Context, p *interp.Program) (*verifier.Result, error) {
	conf := v.conf
	conf.Predicates = append(slices.Clone(conf.Predicates), p.Predicates...)

	var res *verifier.Result
	var err error
	if v.workers == 1 && len(v.remotes) == 0 {
		var d *verifier.Driver
		d, err = verifier.New(conf, interp.New(p))
		if err != nil {
			return nil, err
		}
		res, err = d.Verify(ctx)
	} else {
		res, err = v.verifyPool(ctx, conf, p)
	}
	if err != nil {
		return res, err
	}
	return res, v.exportTree(res)
}

func (v *Verification) verifyPool(ctx context.Context, conf verifier.Config, p *interp.Program) (*verifier.Result, error) {
	var remotes []pool.Explorer
	for _, addr := range v.remotes {
		c, err := remote.Dial(ctx, addr, p.Name)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		remotes = append(remotes, c)
	}
	if len(remotes) > 0 && len(v.export) > 0 {
		log.Warn("executions explored by remote workers are missing from the exploration tree")
	}
	pl, err := pool.New(conf, func() verifier.Interpreter { return interp.New(p) }, v.workers, remotes...)
	if err != nil {
		return nil, err
	}
	return pl.Verify(ctx)
}

func (v *Verification) exportTree(res *verifier.Result) error {
	if len(v.export) == 0 || res.Tree == nil {
		return nil
	}
	newick := res.Tree.Newick()
	for _, w := range v.export {
		if _, err := io.WriteString(w, newick+"\n"); err != nil {
			return errors.Wrap(err, "exporting exploration tree")
		}
	}
	return nil
}

// Sample random executions of p to estimate the number of executions a
// verification would explore
func (v *Verification) Estimate(ctx context.Context, p *interp.Program) (*verifier.Result, error) {
	d, err := verifier.New(v.conf, interp.New(p))
	if err != nil {
		return nil, err
	}
	return d.Estimate(ctx)
}
