package verifier

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/aclements/go-moremath/stats"
	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/lililuanluan/weazer/revisit"
	"github.com/lililuanluan/weazer/scheduler"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInterrupted = errors.New("verifier: exploration interrupted")

type mode uint8

const (
	verification mode = iota
	estimation
)

// A Driver explores the executions of one program.
//
// It runs the program through an Interpreter, which reports every visible
// instruction through the Engine handlers. Each run either replays a label
// already in the current graph or extends the graph with a new label. The
// alternatives of every new label are queued as revisits, and the driver
// keeps applying them until none is left.
//
// A Driver is not safe for concurrent use. Parallel explorations use one
// driver per worker sharing a halt flag.
type Driver struct {
	conf    Config
	checker checking.Checker
	policy  scheduler.Policy
	interp  Interpreter
	rand    *rand.Rand
	mode    mode

	execs execStack

	// State of the current run
	cursor      []int
	prios       []int
	moot        bool
	rescheduled event.Event

	warned  map[checking.ErrorKind]bool
	result  *Result
	halted  *atomic.Bool
	offload func(*State) bool
	est     stats.StreamStats
}

// Create a driver for the program run by interp
func New(conf Config, interp Interpreter) (*Driver, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	checker, err := checking.ForModel(conf.Model)
	if err != nil {
		return nil, errors.Wrap(err, "verifier")
	}
	policy, err := scheduler.New(conf.Policy, conf.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "verifier")
	}
	return &Driver{
		conf:    conf,
		checker: checker,
		policy:  policy,
		interp:  interp,
		rand:    rand.New(rand.NewSource(conf.Seed)),
		halted:  new(atomic.Bool),
		result:  NewResult(),
		warned:  make(map[checking.ErrorKind]bool),
	}, nil
}

func (d *Driver) Config() Config {
	return d.conf
}

// Use h as the halt flag. Drivers sharing a flag stop together.
func (d *Driver) ShareHalt(h *atomic.Bool) {
	d.halted = h
}

// Stop the exploration as soon as possible
func (d *Driver) Halt() {
	d.halted.Store(true)
}

func (d *Driver) Halted() bool {
	return d.halted.Load()
}

// Register a function that is offered every valid backward revisit. If it
// returns true the state is explored elsewhere and the driver skips it.
func (d *Driver) SetOffload(f func(*State) bool) {
	d.offload = f
}

// Explore every execution of the program and evaluate the predicates.
// The error is non-nil only if ctx was cancelled, in which case the result
// covers the executions explored so far.
func (d *Driver) Verify(ctx context.Context) (*Result, error) {
	res := d.Explore(ctx, nil)
	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(ErrInterrupted, err.Error())
	}
	res.CheckPredicates(d.conf.Predicates)
	log.WithFields(log.Fields{
		"model":    d.checker.Name(),
		"explored": res.Explored,
		"blocked":  res.ExploredBlocked,
	}).Info("verification finished")
	return res, nil
}

// Explore the executions reachable from st, or from the empty graph if st
// is nil. Returns the result of this exploration only.
func (d *Driver) Explore(ctx context.Context, st *State) *Result {
	d.result = NewResult()
	d.warned = make(map[checking.ErrorKind]bool)
	d.execs = nil
	if st == nil {
		d.execs.push(NewExecution(graph.New(), nil))
	} else {
		d.execs.push(st.execution())
		d.refreshViews()
	}
	d.explore(ctx)
	return d.result
}

// Sample random executions to estimate the size of the state space
func (d *Driver) Estimate(ctx context.Context) (*Result, error) {
	policy := d.policy
	d.mode, d.policy = estimation, scheduler.NewRandom(d.conf.Seed)
	d.est = stats.StreamStats{}
	defer func() {
		d.mode, d.policy = verification, policy
	}()

	res := d.Explore(ctx, nil)
	res.Estimation = &Estimate{Samples: int(d.est.Count), Mean: d.est.Mean()}
	if d.est.Count > 1 {
		res.Estimation.StdDev = d.est.StdDev()
	}
	if err := ctx.Err(); err != nil {
		return res, errors.Wrap(ErrInterrupted, err.Error())
	}
	log.WithField("estimate", res.Estimation).Info("estimation finished")
	return res, nil
}

func (d *Driver) explore(ctx context.Context) {
	for !d.halted.Load() {
		if ctx.Err() != nil {
			return
		}
		d.run()
		d.handleExecutionEnd()

		for {
			if d.halted.Load() || ctx.Err() != nil {
				return
			}
			s, item, ok := d.execs.top().WorkSet.Next()
			if !ok {
				if d.execs.len() > 1 {
					d.execs.pop()
					continue
				}
				return
			}
			d.resetRun()
			log.Debugf("revisit @%d %v", s, item)
			if d.restrictAndRevisit(s, item) && d.isRevisitValid(item) {
				break
			}
		}
	}
}

func (d *Driver) resetRun() {
	d.moot = false
	d.prios = nil
	d.rescheduled = event.Init()
}

// Run the program once. Labels already in the graph are replayed, after
// which the graph is extended until no thread can proceed.
func (d *Driver) run() {
	g := d.g()
	d.cursor = make([]int, g.NumThreads())
	for t := range d.cursor {
		d.cursor[t] = 1
	}
	d.interp.Reset(d)
	for !d.moot && !d.halted.Load() {
		t, ok := d.scheduleNext()
		if !ok {
			return
		}
		d.interp.Step(t)
	}
}

func (d *Driver) g() *graph.ExecutionGraph {
	return d.execs.top().Graph
}

func (d *Driver) choices() ChoiceMap {
	return d.execs.top().Choices
}

func (d *Driver) workSet() *revisit.WorkSet {
	return d.execs.top().WorkSet
}

func (d *Driver) setMoot() {
	if !d.moot {
		log.Debug("execution is moot")
	}
	d.moot = true
}

func bug(format string, args ...any) {
	panic("BUG: " + fmt.Sprintf(format, args...))
}

// Returns the position the next label of t goes to
func (d *Driver) next(t int) event.Event {
	return event.Event{Thread: t, Index: d.cursor[t]}
}

// Returns true if thread t has labels left to replay
func (d *Driver) replaying(t int) bool {
	return t < len(d.cursor) && d.cursor[t] < d.g().ThreadSize(t)
}

func (d *Driver) blockedAtCursor(t int) bool {
	_, ok := d.g().Label(d.next(t)).(*label.Block)
	return ok
}

// Returns the label at the cursor of t and advances the cursor. The second
// result is false if t is not replaying.
func replay[L label.Label](d *Driver, t int) (L, bool) {
	var zero L
	if !d.replaying(t) {
		return zero, false
	}
	lab := d.g().Label(d.next(t))
	l, ok := lab.(L)
	if !ok {
		bug("replaying %T at %v but the graph has %v", zero, lab.Pos(), lab)
	}
	d.cursor[t]++
	return l, true
}

func (d *Driver) growCursor(t int) {
	for len(d.cursor) <= t {
		d.cursor = append(d.cursor, 1)
	}
}

// Add a new label at the cursor of its thread and compute its views
func (d *Driver) addLabel(lab label.Label) label.Label {
	g := d.g()
	if ts, ok := lab.(*label.ThreadStart); ok {
		g.AddThreadStart(ts)
	} else {
		g.AddLabel(lab)
	}
	d.growCursor(lab.Pos().Thread)
	d.cursor[lab.Pos().Thread] = lab.Pos().Index + 1
	d.updateViews(lab)
	log.Debugf("added %v @%d: %v", lab.Pos(), lab.Stamp(), lab)
	return lab
}

func (d *Driver) updateViews(lab label.Label) {
	d.checker.UpdateViews(d.g(), lab)
	if d.conf.Symmetry {
		d.updatePrefixWithSymmetries(lab)
	}
}

// Recompute the views of every label in stamp order. Used when a graph
// was built elsewhere.
func (d *Driver) refreshViews() {
	for _, lab := range d.g().LabelsByStamp() {
		lab.SetViews(nil, nil)
	}
	for changed := true; changed; {
		changed = false
		for _, lab := range d.g().LabelsByStamp() {
			porf, hb := lab.PorfView().Clone(), lab.HbView().Clone()
			d.updateViews(lab)
			if !porf.Equal(lab.PorfView()) || !hb.Equal(lab.HbView()) {
				changed = true
			}
		}
	}
}

// Returns the value r observes
func (d *Driver) readValue(r *label.Read) label.SVal {
	rf, ok := r.Rf()
	if !ok {
		bug("read %v has no source", r.Pos())
	}
	return d.writeValue(rf, r.Addr())
}

// Returns the value written by w, which may be the initializer
func (d *Driver) writeValue(w event.Event, addr label.SAddr) label.SVal {
	if w.IsInitializer() {
		return d.interp.InitialValue(addr)
	}
	return d.g().WriteLabel(w).Val()
}

// Adapts the driver to the view a scheduling policy needs
type threads struct {
	d *Driver
}

func (th threads) NumThreads() int { return th.d.g().NumThreads() }
func (th threads) Schedulable(t int) bool { return th.d.schedulable(t) }
func (th threads) NextIsLoad(t int) bool { return th.d.interp.NextIsLoad(t) }

// Returns true if thread t can execute its next instruction
func (d *Driver) schedulable(t int) bool {
	g := d.g()
	if t >= g.NumThreads() || t >= len(d.cursor) || g.IsThreadEmpty(t) || !d.interp.Runnable(t) {
		return false
	}
	if lab := g.Label(d.next(t)); lab != nil {
		return lab.Kind() != label.KindBlock
	}
	return !label.IsTerminator(g.LastLabel(t))
}

// Pick the thread that runs next: a thread with labels left to replay,
// then a prioritized thread, then the choice of the policy. If no thread
// can run, a read that was blocked on its value is given another chance.
func (d *Driver) scheduleNext() (int, bool) {
	g := d.g()
	for t := 0; t < g.NumThreads(); t++ {
		if d.replaying(t) && d.schedulable(t) {
			return t, true
		}
	}
	for len(d.prios) > 0 {
		t := d.prios[0]
		if d.schedulable(t) {
			return t, true
		}
		d.prios = d.prios[1:]
	}
	if t, ok := d.policy.Next(threads{d}); ok {
		return d.firstSchedulableSymmetric(t), true
	}
	return d.rescheduleReads()
}

// Unblock a read that was removed because of the value it would read
func (d *Driver) rescheduleReads() (int, bool) {
	g := d.g()
	for t := 0; t < g.NumThreads(); t++ {
		b, ok := g.LastLabel(t).(*label.Block)
		if !ok || b.Type != label.BlockReadOpt || t >= len(d.cursor) || !d.interp.Runnable(t) {
			continue
		}
		g.RemoveLast(t)
		d.cursor[t] = b.Pos().Index
		d.rescheduled = b.Pos()
		log.Debugf("rescheduling read %v", b.Pos())
		return t, true
	}
	return 0, false
}

func (d *Driver) isExecutionBlocked() bool {
	g := d.g()
	for t := 0; t < g.NumThreads(); t++ {
		if _, ok := g.LastLabel(t).(*label.Block); ok {
			return true
		}
	}
	return false
}

func (d *Driver) handleExecutionEnd() {
	if d.moot {
		d.result.Moot++
		if d.mode == estimation && !d.shouldStopEstimating() {
			d.workSet().Add(0, &revisit.RerunForward{})
		}
		return
	}
	if d.halted.Load() {
		return
	}
	d.checkHelpingCasAnnotation()

	if d.mode == estimation {
		d.updateEstimation()
		if !d.shouldStopEstimating() {
			d.workSet().Add(0, &revisit.RerunForward{})
		}
	}

	if d.isExecutionBlocked() {
		d.result.ExploredBlocked++
		if d.conf.CheckLiveness {
			d.checkLiveness()
		}
		return
	}
	if d.conf.WarnUnfreed {
		d.checkUnfreedMemory()
	}
	if d.halted.Load() {
		return
	}
	if d.fullExecutionExceedsBound() {
		d.result.ExploredBounded++
		return
	}

	g := d.g()
	d.result.Explored++
	if d.mode == estimation {
		return
	}
	outcome := d.interp.Outcome()
	if i := predicate.CheckOutcome(d.conf.Predicates, outcome); i >= 0 {
		d.reportError(&Report{
			Kind: checking.Safety,
			Pos:  event.Init(),
			Msg:  fmt.Sprintf("Predicate %q does not hold for outcome %v", d.conf.Predicates[i].Name, outcome),
		}, true)
	}
	d.result.Outcomes[outcome.String()]++
	d.result.Hashes[g.Hash()]++
	if d.conf.RecordTree {
		d.recordExecution()
	}
	log.Tracef("execution %d:\n%v", d.result.Explored, g)
	if d.conf.MaxExecutions > 0 && d.result.Explored >= d.conf.MaxExecutions {
		log.Infof("stopping after %d executions", d.result.Explored)
		d.halted.Store(true)
	}
}

// Add the labels of the current graph in stamp order as a path of the
// exploration tree. Reads carry their source.
func (d *Driver) recordExecution() {
	if d.result.Tree == nil {
		d.result.Tree = newTree()
	}
	var path []string
	for _, lab := range d.g().LabelsByStamp() {
		if lab.Kind() == label.KindInit {
			continue
		}
		node := fmt.Sprintf("%v:%v", lab.Pos(), lab)
		if r, ok := lab.(*label.Read); ok {
			rf, _ := r.Rf()
			node += fmt.Sprintf(" rf %v", rf)
		}
		path = append(path, node)
	}
	d.result.Tree.Insert(path)
}
