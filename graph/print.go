package graph

import (
	"fmt"
	"strings"

	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
	"golang.org/x/crypto/blake2b"
)

// A canonical description of a label and its outgoing relations, without stamps
func describe(lab label.Label) string {
	r, ok := lab.(*label.Read)
	if !ok {
		return lab.String()
	}
	rf, ok := r.Rf()
	if !ok {
		return r.String() + " rf:-"
	}
	return fmt.Sprintf("%v rf:%v", r, rf)
}

// Returns a digest of the graph as a labeled partial order: labels, their
// reads-from edges and the coherence orders. Stamps do not contribute, so two
// explorations reaching the same graph in different orders get the same hash.
func (g *ExecutionGraph) Hash() [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	for t, thr := range g.threads {
		fmt.Fprintf(h, "T%d\n", t)
		for _, lab := range thr {
			fmt.Fprintln(h, describe(lab))
		}
	}
	for _, addr := range g.Addresses() {
		fmt.Fprintf(h, "co %v:", addr)
		for _, w := range g.co[addr] {
			fmt.Fprintf(h, " %v", w)
		}
		fmt.Fprintln(h)
	}
	var out [blake2b.Size256]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (g *ExecutionGraph) String() string {
	var sb strings.Builder
	for t, thr := range g.threads {
		fmt.Fprintf(&sb, "<%d>:\n", t)
		for _, lab := range thr {
			fmt.Fprintf(&sb, "\t%v @%d: %v\n", lab.Pos(), lab.Stamp(), describe(lab))
		}
	}
	for _, addr := range g.Addresses() {
		fmt.Fprintf(&sb, "co(%v): INIT", addr)
		for _, w := range g.co[addr] {
			fmt.Fprintf(&sb, " -> %v", w)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Check the structural invariants of the graph: positions match indices,
// stamps are unique and increase along every thread, every read source is
// present and every coherence order holds exactly the writes to its address.
// A violation is a defect of the explorer and panics.
func (g *ExecutionGraph) Validate() {
	seen := make(map[event.Stamp]event.Event)
	writes := make(map[label.SAddr]int)
	for t, thr := range g.threads {
		for j, lab := range thr {
			pos := event.Event{Thread: t, Index: j}
			if lab.Pos() != pos {
				bug("label %v stored at %v", lab.Pos(), pos)
			}
			if j > 0 && thr[j-1].Stamp() >= lab.Stamp() {
				bug("stamps of %v and %v are not increasing", thr[j-1].Pos(), pos)
			}
			if o, ok := seen[lab.Stamp()]; ok {
				bug("labels %v and %v share stamp %d", o, pos, lab.Stamp())
			}
			seen[lab.Stamp()] = pos
			switch l := lab.(type) {
			case *label.Read:
				rf, ok := l.Rf()
				if !ok {
					continue
				}
				if !rf.IsInitializer() && g.WriteLabel(rf) == nil {
					bug("read %v reads from missing %v", pos, rf)
				}
			case *label.Write:
				writes[l.Addr()]++
				if g.CoIndex(l.Addr(), pos) < 0 {
					bug("write %v missing from coherence order", pos)
				}
				for _, r := range l.Readers() {
					rLab := g.ReadLabel(r)
					if rLab == nil {
						bug("write %v has missing reader %v", pos, r)
					}
					if rf, _ := rLab.Rf(); rf != pos {
						bug("write %v lists %v which reads from %v", pos, r, rf)
					}
				}
			}
		}
	}
	for addr, co := range g.co {
		if len(co) != writes[addr] {
			bug("coherence order of %v has %d entries for %d writes", addr, len(co), writes[addr])
		}
	}
}
