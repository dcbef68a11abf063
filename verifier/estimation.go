package verifier

import (
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/label"
)

// Add the number of executions the current sample stands for
func (d *Driver) updateEstimation() {
	d.est.Add(d.choices().Product())
}

// Sampling stops once the budget is spent, or once enough samples were
// taken and their relative standard deviation is small
func (d *Driver) shouldStopEstimating() bool {
	n := int(d.est.Count)
	if n+d.result.Moot >= d.conf.EstimationMax {
		return true
	}
	min := d.conf.EstimationMin
	if min < 2 {
		min = 2
	}
	if n < min {
		return false
	}
	mean := d.est.Mean()
	return mean > 0 && d.est.StdDev()/mean < d.conf.SDThreshold
}

// A sampled RMW does not read from a write another successful RMW already
// read from
func (d *Driver) filterAtomicityViolations(r *label.Read, stores []event.Event) []event.Event {
	if !r.Kind().IsRMWRead() {
		return stores
	}
	g := d.g()
	out := make([]event.Event, 0, len(stores))
	for _, s := range stores {
		taken := false
		for _, o := range g.Readers(r.Addr(), s) {
			if o != r.Pos() && g.IsRMWLoad(o) && r.ValueMakesRMWSucceed(d.writeValue(s, r.Addr())) {
				taken = true
				break
			}
		}
		if !taken {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return stores
	}
	return out
}
