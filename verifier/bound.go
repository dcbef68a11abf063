package verifier

import "github.com/lililuanluan/weazer/label"

// Returns the cost of the current graph under the configured bound.
//
// The labels are taken in the order they were added. Under a context bound
// the cost is the number of preemptions: switches away from a thread that
// continues later. Under a round bound it is the number of times the
// running thread id decreases.
func (d *Driver) boundCost() int {
	g := d.g()
	cost := 0
	var prev label.Label
	for _, lab := range g.LabelsByStamp() {
		switch lab.Kind() {
		case label.KindInit, label.KindThreadStart, label.KindBlock:
			continue
		}
		if prev != nil && prev.Pos().Thread != lab.Pos().Thread {
			switch d.conf.Bound {
			case BoundContext:
				next := g.Label(prev.Pos().Next())
				if !label.IsTerminator(prev) && next != nil && next.Kind() != label.KindBlock {
					cost++
				}
			case BoundRound:
				if lab.Pos().Thread < prev.Pos().Thread {
					cost++
				}
			}
		}
		prev = lab
	}
	return cost
}

func (d *Driver) exceedsBound(slack int) bool {
	if !d.conf.bounded() || d.mode != verification {
		return false
	}
	return d.boundCost() > d.conf.BoundValue+slack
}

// A partial execution may still be completed within the bound
func (d *Driver) partialExecutionExceedsBound() bool {
	return d.exceedsBound(1)
}

func (d *Driver) fullExecutionExceedsBound() bool {
	return d.exceedsBound(0)
}
