package weazer_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/lililuanluan/weazer"
	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/config"
	"github.com/lililuanluan/weazer/interp"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeBuffering() *interp.Program {
	return interp.NewProgram("sb").Global("x", 0).Global("y", 0).
		Func("main", "spawn r0, left", "spawn r1, right").
		Func("left", "store.rlx x, 1", "load.rlx r0, y").
		Func("right", "store.rlx y, 1", "load.rlx r0, x").
		Must()
}

func TestPrepareVerificationDefaults(t *testing.T) {
	v, err := weazer.PrepareVerification()
	require.NoError(t, err)
	assert.Equal(t, verifier.DefaultConfig(), v.Config())
}

func TestPrepareVerificationOptions(t *testing.T) {
	v, err := weazer.PrepareVerification(
		config.ModelOption{Model: "ra"},
		config.SchedulerOption{Policy: "random", Seed: 7},
		config.SymmetryOption{Enabled: false},
		config.IPROption{Enabled: false},
		config.BoundOption{Type: verifier.BoundRound, Value: 2},
		config.EstimationOption{Max: 20},
		config.MaxExecutionsOption{N: 5},
		config.LivenessOption{},
		config.WarnUnfreedOption{},
		config.PrintOnErrorOption{},
		config.ExportTreeOption{W: &bytes.Buffer{}},
	)
	require.NoError(t, err)
	c := v.Config()
	assert.Equal(t, "ra", c.Model)
	assert.Equal(t, "random", c.Policy)
	assert.Equal(t, int64(7), c.Seed)
	assert.False(t, c.Symmetry)
	assert.False(t, c.IPR)
	assert.Equal(t, verifier.BoundRound, c.Bound)
	assert.Equal(t, 2, c.BoundValue)
	assert.Equal(t, 20, c.EstimationMax)
	assert.Equal(t, verifier.DefaultConfig().EstimationMin, c.EstimationMin)
	assert.Equal(t, 5, c.MaxExecutions)
	assert.True(t, c.CheckLiveness)
	assert.True(t, c.WarnUnfreed)
	assert.True(t, c.PrintOnError)
	assert.True(t, c.RecordTree)
}

func TestPrepareVerificationRejects(t *testing.T) {
	tests := []struct {
		name string
		opts []config.VerifyOption
	}{
		{"model", []config.VerifyOption{config.ModelOption{Model: "pso"}}},
		{"policy", []config.VerifyOption{config.SchedulerOption{Policy: "lifo"}}},
		{"no workers", []config.VerifyOption{config.WorkersOption{N: 0}}},
		{"negative workers", []config.VerifyOption{config.WorkersOption{N: -2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := weazer.PrepareVerification(tt.opts...)
			assert.ErrorIs(t, err, verifier.ErrInvalidConfig)
		})
	}
}

func TestVerify(t *testing.T) {
	for _, workers := range []int{1, 3} {
		v, err := weazer.PrepareVerification(
			config.ModelOption{Model: "ra"},
			config.WorkersOption{N: workers},
		)
		require.NoError(t, err)
		res, err := v.Verify(context.Background(), storeBuffering())
		require.NoError(t, err)
		assert.Nil(t, res.Error)
		assert.Equal(t, 4, res.Explored)
	}
}

func TestVerifyChecksPredicates(t *testing.T) {
	cond, err := predicate.Parse("1:r0 == 0 && 2:r0 == 0")
	require.NoError(t, err)
	v, err := weazer.PrepareVerification(
		config.ModelOption{Model: "sc"},
		config.PredicateOption{Preds: []predicate.Predicate{predicate.Exists("weak outcome", cond)}},
	)
	require.NoError(t, err)

	res, err := v.Verify(context.Background(), storeBuffering())
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.Safety, res.Error.Kind)
}

func TestVerifyExportsTree(t *testing.T) {
	var buf bytes.Buffer
	v, err := weazer.PrepareVerification(
		config.ModelOption{Model: "ra"},
		config.ExportTreeOption{W: &buf},
	)
	require.NoError(t, err)
	res, err := v.Verify(context.Background(), storeBuffering())
	require.NoError(t, err)
	require.NotNil(t, res.Tree)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "("))
	assert.True(t, strings.HasSuffix(out, ";\n"))
}

func TestEstimate(t *testing.T) {
	v, err := weazer.PrepareVerification(
		config.ModelOption{Model: "ra"},
		config.EstimationOption{Max: 30, Min: 5},
	)
	require.NoError(t, err)
	res, err := v.Estimate(context.Background(), storeBuffering())
	require.NoError(t, err)
	require.NotNil(t, res.Estimation)
	assert.GreaterOrEqual(t, res.Estimation.Samples, 5)
	assert.LessOrEqual(t, res.Estimation.Samples, 30)
	assert.Greater(t, res.Estimation.Mean, 0.0)
}
