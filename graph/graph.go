package graph

import (
	"fmt"

	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// An ExecutionGraph holds, for every thread, the sequence of labels the
// thread executed, together with the coherence order of the writes to every
// address.
//
// The graph owns its labels. Reads-from edges and reader sets are stored as
// positions and resolved through the graph.
type ExecutionGraph struct {
	threads [][]label.Label
	co      map[label.SAddr][]event.Event

	nextStamp event.Stamp
}

// Create a graph containing only the initializer
func New() *ExecutionGraph {
	g := &ExecutionGraph{
		threads: [][]label.Label{{}},
		co:      make(map[label.SAddr][]event.Event),
	}
	g.AddLabel(label.NewInit())
	return g
}

func bug(format string, args ...any) {
	panic("BUG: " + fmt.Sprintf(format, args...))
}

// Returns the number of threads, including empty ones
func (g *ExecutionGraph) NumThreads() int {
	return len(g.threads)
}

// Returns the number of labels of a thread
func (g *ExecutionGraph) ThreadSize(t int) int {
	if t < 0 || t >= len(g.threads) {
		return 0
	}
	return len(g.threads[t])
}

func (g *ExecutionGraph) IsThreadEmpty(t int) bool {
	return g.ThreadSize(t) == 0
}

// Returns true if the graph has a label at position e
func (g *ExecutionGraph) ContainsPos(e event.Event) bool {
	return e.Index >= 0 && e.Index < g.ThreadSize(e.Thread)
}

// Returns the label at position e or nil if there is none
func (g *ExecutionGraph) Label(e event.Event) label.Label {
	if !g.ContainsPos(e) {
		return nil
	}
	return g.threads[e.Thread][e.Index]
}

// Returns the read at position e or nil if e is not a read
func (g *ExecutionGraph) ReadLabel(e event.Event) *label.Read {
	r, _ := g.Label(e).(*label.Read)
	return r
}

// Returns the write at position e or nil if e is not a write
func (g *ExecutionGraph) WriteLabel(e event.Event) *label.Write {
	w, _ := g.Label(e).(*label.Write)
	return w
}

// Returns the last label of a thread or nil if the thread is empty
func (g *ExecutionGraph) LastLabel(t int) label.Label {
	n := g.ThreadSize(t)
	if n == 0 {
		return nil
	}
	return g.threads[t][n-1]
}

func (g *ExecutionGraph) PrevLabel(lab label.Label) label.Label {
	return g.Label(lab.Pos().Prev())
}

func (g *ExecutionGraph) NextLabel(lab label.Label) label.Label {
	return g.Label(lab.Pos().Next())
}

// Returns every label in thread and index order
func (g *ExecutionGraph) Labels() []label.Label {
	out := make([]label.Label, 0, g.size())
	for _, thr := range g.threads {
		out = append(out, thr...)
	}
	return out
}

// Returns every label ordered by stamp
func (g *ExecutionGraph) LabelsByStamp() []label.Label {
	out := g.Labels()
	slices.SortFunc(out, func(a, b label.Label) bool {
		return a.Stamp() < b.Stamp()
	})
	return out
}

func (g *ExecutionGraph) size() int {
	n := 0
	for _, thr := range g.threads {
		n += len(thr)
	}
	return n
}

// Returns the stamp the next added label will get
func (g *ExecutionGraph) NextStamp() event.Stamp {
	return g.nextStamp
}

// Append a label at its position, which must be the current length of its
// thread. A label at index 0 of a thread past NumThreads() opens it, along
// with any empty slots before it. Writes are placed last in coherence order.
func (g *ExecutionGraph) AddLabel(lab label.Label) label.Label {
	pos := lab.Pos()
	for pos.Index == 0 && pos.Thread >= len(g.threads) {
		g.threads = append(g.threads, nil)
	}
	if pos.Thread < 0 || pos.Thread >= len(g.threads) {
		bug("adding label at %v to a graph with %d threads", pos, len(g.threads))
	}
	if pos.Index != len(g.threads[pos.Thread]) {
		bug("adding label at %v but thread %d has %d labels", pos, pos.Thread, len(g.threads[pos.Thread]))
	}
	lab.SetStamp(g.nextStamp)
	g.nextStamp++
	g.threads[pos.Thread] = append(g.threads[pos.Thread], lab)
	if w, ok := lab.(*label.Write); ok {
		g.co[w.Addr()] = append(g.co[w.Addr()], pos)
	}
	return lab
}

// Returns the first empty thread slot, or NumThreads() if there is none
func (g *ExecutionGraph) FreeThreadID() int {
	for i, thr := range g.threads {
		if i > 0 && len(thr) == 0 {
			return i
		}
	}
	return len(g.threads)
}

// Add the first label of a thread that occupies an empty slot
func (g *ExecutionGraph) AddThreadStart(lab *label.ThreadStart) {
	t := lab.Pos().Thread
	if t < len(g.threads) && len(g.threads[t]) != 0 {
		bug("thread %d is not empty", t)
	}
	g.AddLabel(lab)
}

// Remove the last label of a thread
func (g *ExecutionGraph) RemoveLast(t int) {
	lab := g.LastLabel(t)
	if lab == nil {
		bug("removing from empty thread %d", t)
	}
	g.unlink(lab)
	g.threads[t] = g.threads[t][:len(g.threads[t])-1]
}

// Remove the relations of a label that is about to be removed
func (g *ExecutionGraph) unlink(lab label.Label) {
	switch l := lab.(type) {
	case *label.Read:
		if rf, ok := l.Rf(); ok {
			label.UnlinkRf(l, g.WriteLabel(rf))
		}
	case *label.Write:
		g.removeFromCo(l)
		for _, r := range slices.Clone(l.Readers()) {
			if rLab := g.ReadLabel(r); rLab != nil {
				label.UnlinkRf(rLab, l)
			}
		}
	}
}

// Set the reads-from edge of a read, keeping reader sets in sync
func (g *ExecutionGraph) SetRf(r *label.Read, w event.Event) {
	var old *label.Write
	if rf, ok := r.Rf(); ok {
		old = g.WriteLabel(rf)
	}
	if w.IsInitializer() {
		label.LinkRfInit(r, old)
		return
	}
	wLab := g.WriteLabel(w)
	if wLab == nil {
		bug("read %v cannot read from %v", r.Pos(), w)
	}
	if wLab.Addr() != r.Addr() {
		bug("read %v of %v cannot read from %v of %v", r.Pos(), r.Addr(), w, wLab.Addr())
	}
	label.LinkRf(r, old, wLab)
}

// Returns the addresses that have at least one write in the graph
func (g *ExecutionGraph) Addresses() []label.SAddr {
	addrs := maps.Keys(g.co)
	slices.Sort(addrs)
	return addrs
}

// Returns the thread-start label of a thread or nil
func (g *ExecutionGraph) ThreadStart(t int) *label.ThreadStart {
	ts, _ := g.Label(event.Event{Thread: t, Index: 0}).(*label.ThreadStart)
	return ts
}

// Returns the position of the label creating thread t
func (g *ExecutionGraph) ThreadCreate(t int) (event.Event, bool) {
	ts := g.ThreadStart(t)
	if ts == nil {
		return event.Event{}, false
	}
	return ts.Parent, true
}

// Returns true if the thread ended with a ThreadFinish label
func (g *ExecutionGraph) IsThreadComplete(t int) bool {
	_, ok := g.LastLabel(t).(*label.ThreadFinish)
	return ok
}

// Returns the view of all events whose stamp is at most the stamp of e
func (g *ExecutionGraph) PredsView(e event.Event) *event.View {
	lab := g.Label(e)
	if lab == nil {
		bug("no label at %v", e)
	}
	return g.ViewFromStamp(lab.Stamp())
}

// Returns the view of all events with stamp at most s
func (g *ExecutionGraph) ViewFromStamp(s event.Stamp) *event.View {
	v := event.NewView()
	for t, thr := range g.threads {
		for j := len(thr) - 1; j >= 0; j-- {
			if thr[j].Stamp() <= s {
				v.SetMax(event.Event{Thread: t, Index: j})
				break
			}
		}
	}
	return v
}
