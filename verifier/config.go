package verifier

import (
	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/lililuanluan/weazer/scheduler"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

var ErrInvalidConfig = errors.New("verifier: invalid configuration")

// The measure a bounded exploration limits
type BoundType uint8

const (
	BoundNone BoundType = iota
	// Number of preemptive context switches
	BoundContext
	// Number of round-robin rounds
	BoundRound
)

var boundNames = [...]string{"none", "context", "round"}

func (b BoundType) String() string {
	if int(b) < len(boundNames) {
		return boundNames[b]
	}
	return "?"
}

// Returns the bound type with the given name
func ParseBoundType(s string) (BoundType, error) {
	for i, n := range boundNames {
		if n == s {
			return BoundType(i), nil
		}
	}
	return BoundNone, errors.Wrapf(ErrInvalidConfig, "unknown bound type %q", s)
}

// Config is the resolved configuration of one verification
type Config struct {
	// Memory model passed to checking.ForModel
	Model string
	// Scheduling policy passed to scheduler.New
	Policy string
	Seed   int64

	// Symmetry reduction
	Symmetry bool
	// In-place revisiting of annotated reads
	IPR bool

	Bound      BoundType
	BoundValue int

	// Sampling budget of Estimate. Sampling stops after EstimationMax
	// samples, or after EstimationMin samples once the relative standard
	// deviation drops below SDThreshold.
	EstimationMax int
	EstimationMin int
	SDThreshold   float64

	CheckLiveness bool
	WarnUnfreed   bool
	// Attach a dump of the graph to error reports
	PrintOnError bool

	// Stop after this many complete executions. 0 means no limit.
	MaxExecutions int
	// Record every complete execution in an exploration tree
	RecordTree bool

	Predicates []predicate.Predicate
}

// Returns the default configuration
func DefaultConfig() Config {
	return Config{
		Model:         "rc11",
		Policy:        "wf",
		Seed:          1,
		IPR:           true,
		Symmetry:      true,
		EstimationMax: 1000,
		EstimationMin: 10,
		SDThreshold:   0.1,
	}
}

// Check the configuration and return an error describing the first problem found
func (c *Config) Validate() error {
	if _, err := checking.ForModel(c.Model); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if !slices.Contains(scheduler.Names, c.Policy) {
		return errors.Wrapf(ErrInvalidConfig, "unknown scheduling policy %q", c.Policy)
	}
	if c.Bound != BoundNone && c.BoundValue < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative bound %d", c.BoundValue)
	}
	if c.Bound > BoundRound {
		return errors.Wrapf(ErrInvalidConfig, "unknown bound type %d", c.Bound)
	}
	if c.EstimationMax < 0 || c.EstimationMin < 0 || c.EstimationMin > c.EstimationMax {
		return errors.Wrapf(ErrInvalidConfig, "estimation budget [%d, %d]", c.EstimationMin, c.EstimationMax)
	}
	if c.SDThreshold < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative threshold %v", c.SDThreshold)
	}
	if c.MaxExecutions < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative execution limit %d", c.MaxExecutions)
	}
	return nil
}

// Returns true if the exploration is bounded
func (c *Config) bounded() bool {
	return c.Bound != BoundNone
}
