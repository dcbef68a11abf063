package graph

import "github.com/lililuanluan/weazer/label"

// Returns the allocation containing addr or nil
func (g *ExecutionGraph) FindAllocation(addr label.SAddr) *label.Malloc {
	for _, thr := range g.threads {
		for _, lab := range thr {
			if m, ok := lab.(*label.Malloc); ok && m.Contains(addr) {
				return m
			}
		}
	}
	return nil
}

// Returns the labels freeing the allocation starting at addr
func (g *ExecutionGraph) FindFrees(addr label.SAddr) []*label.Free {
	var out []*label.Free
	for _, thr := range g.threads {
		for _, lab := range thr {
			if f, ok := lab.(*label.Free); ok && f.Addr == addr {
				out = append(out, f)
			}
		}
	}
	return out
}

// Returns the end of the last allocation made by thread t before index j,
// i.e. the offset where its next allocation starts
func (g *ExecutionGraph) NextAllocationOffset(t, j int) uint64 {
	var off uint64
	if j > g.ThreadSize(t) {
		j = g.ThreadSize(t)
	}
	for _, lab := range g.threads[t][:j] {
		if m, ok := lab.(*label.Malloc); ok {
			off = m.Addr.Offset() + uint64(m.Size)
		}
	}
	return off
}

// Returns the accesses to addr
func (g *ExecutionGraph) Accesses(addr label.SAddr) []label.Access {
	var out []label.Access
	for _, thr := range g.threads {
		for _, lab := range thr {
			if a, ok := lab.(label.Access); ok && a.Addr() == addr {
				out = append(out, a)
			}
		}
	}
	return out
}
