package checking

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
	"github.com/pkg/errors"
)

var ErrUnknownModel = errors.New("checking: unknown memory model")

// The Checker answers the memory model questions of the explorer.
//
// It decides which writes a read may observe, where a write may be placed in
// coherence order, which existing reads may be revisited by a new write and
// whether a whole graph is consistent.
type Checker interface {
	// The short name of the model
	Name() string

	// Compute the porf and hb views of a label that was just added to the
	// graph, or whose reads-from edge was just changed.
	UpdateViews(g *graph.ExecutionGraph, lab label.Label)

	// Returns the writes r may read from in coherence order.
	// The coherence-maximal write is always last.
	CoherentStores(g *graph.ExecutionGraph, r *label.Read) []event.Event

	// Returns the writes that w may be placed immediately after in coherence
	// order. The current coherence-maximal write is always last. The write of
	// an RMW has exactly one placing, right after the write its read part
	// observes.
	CoherentPlacings(g *graph.ExecutionGraph, w *label.Write) []event.Event

	// Returns the reads that may be revisited to read from w
	CoherentRevisits(g *graph.ExecutionGraph, w *label.Write) []event.Event

	// Returns true if the graph is consistent under the model
	IsConsistent(g *graph.ExecutionGraph) bool

	// Look for a race or memory error involving a just-added label.
	// Returns OK if there is none, otherwise the kind of error and the
	// conflicting event.
	CheckErrors(g *graph.ExecutionGraph, lab label.Label) (ErrorKind, event.Event)
}

// Returns the checker of the named model
func ForModel(name string) (Checker, error) {
	switch name {
	case "sc":
		return NewSC(), nil
	case "ra", "rc11":
		return NewRA(), nil
	}
	return nil, errors.Wrapf(ErrUnknownModel, "%q", name)
}

// Models lists the names accepted by ForModel
var Models = []string{"sc", "ra"}
