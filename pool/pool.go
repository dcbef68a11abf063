// Package pool explores the executions of a program with several drivers.
//
// Every worker owns a driver. A driver offers the graphs its backward
// revisits produce to the pool, which hands them to an idle worker. The
// exploration ends once no worker is busy. All local drivers share one
// halt flag, so an error found by one of them stops the others.
package pool

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	"github.com/lililuanluan/weazer/verifier"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrNoWorkers = errors.New("pool: at least one worker is needed")

// An Explorer explores the executions reachable from a state. A nil state
// stands for the empty graph.
type Explorer interface {
	Explore(ctx context.Context, st *verifier.State) (*verifier.Result, error)
}

// Runs states on a local driver
type localExplorer struct {
	d *verifier.Driver
}

func (l localExplorer) Explore(ctx context.Context, st *verifier.State) (res *verifier.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("pool: driver panicked: %v\nStack Trace:\n %s", p, debug.Stack())
		}
	}()
	return l.d.Explore(ctx, st), nil
}

// The outcome of one unit of work
type status struct {
	res *verifier.Result
	err error
}

type Pool struct {
	conf    verifier.Config
	workers []Explorer
	halted  *atomic.Bool

	work chan *verifier.State
	// Units of work handed out and not yet reported
	busy atomic.Int64
}

// Create a pool of n local workers, each running its own interpreter, plus
// the given remote workers
func New(conf verifier.Config, newInterp func() verifier.Interpreter, n int, remotes ...Explorer) (*Pool, error) {
	if n+len(remotes) < 1 {
		return nil, ErrNoWorkers
	}
	p := &Pool{
		conf:   conf,
		halted: new(atomic.Bool),
	}
	for i := 0; i < n; i++ {
		d, err := verifier.New(conf, newInterp())
		if err != nil {
			return nil, errors.Wrap(err, "pool")
		}
		d.ShareHalt(p.halted)
		if n+len(remotes) > 1 {
			d.SetOffload(p.offload)
		}
		p.workers = append(p.workers, localExplorer{d})
	}
	p.workers = append(p.workers, remotes...)
	return p, nil
}

func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// Hand st to an idle worker. Returns false if every worker is busy.
func (p *Pool) offload(st *verifier.State) bool {
	if p.halted.Load() {
		return false
	}
	p.busy.Add(1)
	select {
	case p.work <- st:
		return true
	default:
		p.busy.Add(-1)
		return false
	}
}

// Explore every execution of the program and evaluate the predicates on
// the merged result
func (p *Pool) Verify(ctx context.Context) (*verifier.Result, error) {
	p.halted.Store(false)
	statuses := make(chan status)
	closing := make(chan bool)
	p.work = make(chan *verifier.State)
	for i, w := range p.workers {
		go p.runWorker(ctx, i, w, statuses, closing)
	}

	p.busy.Store(1)
	p.work <- nil

	res, err := p.mainLoop(ctx, statuses, closing)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(verifier.ErrInterrupted, err.Error())
	}
	res.CheckPredicates(p.conf.Predicates)
	log.WithFields(log.Fields{
		"workers":  len(p.workers),
		"explored": res.Explored,
		"blocked":  res.ExploredBlocked,
	}).Info("parallel verification finished")
	return res, nil
}

// Takes states from the work channel until it is closed. Reports the
// result of each on the status channel.
func (p *Pool) runWorker(ctx context.Context, id int, w Explorer, statuses chan<- status, closing chan<- bool) {
	for st := range p.work {
		res, err := w.Explore(ctx, st)
		if err != nil {
			err = errors.Wrapf(err, "worker %d", id)
		}
		statuses <- status{res: res, err: err}
	}
	closing <- true
}

// Collects the results of the workers. The work channel is closed once no
// unit of work is left, after which the loop waits for every worker to
// stop.
func (p *Pool) mainLoop(ctx context.Context, statuses chan status, closing chan bool) (*verifier.Result, error) {
	res := verifier.NewResult()
	var out error

	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			close(p.work)
		}
	}
	done := ctx.Done()
	ongoing := len(p.workers)
	for ongoing > 0 {
		select {
		case s := <-statuses:
			if s.err != nil && out == nil {
				out = s.err
				p.halted.Store(true)
			}
			if s.res != nil {
				res.Add(s.res)
				if s.res.Error != nil {
					p.halted.Store(true)
				}
			}
			if p.busy.Add(-1) == 0 {
				stop()
			}
		case <-closing:
			ongoing--
		case <-done:
			log.Info("verification interrupted")
			p.halted.Store(true)
			done = nil
		}
	}
	stop()
	close(closing)
	close(statuses)
	return res, out
}
