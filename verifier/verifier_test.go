package verifier_test

import (
	"context"
	"strings"
	"testing"

	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/interp"
	"github.com/lililuanluan/weazer/predicate"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T, p *interp.Program, opts ...func(*verifier.Config)) *verifier.Driver {
	t.Helper()
	conf := verifier.DefaultConfig()
	conf.Predicates = p.Predicates
	for _, o := range opts {
		o(&conf)
	}
	d, err := verifier.New(conf, interp.New(p))
	require.NoError(t, err)
	return d
}

func verify(t *testing.T, p *interp.Program, opts ...func(*verifier.Config)) *verifier.Result {
	t.Helper()
	res, err := newDriver(t, p, opts...).Verify(context.Background())
	require.NoError(t, err)
	return res
}

func model(m string) func(*verifier.Config) {
	return func(c *verifier.Config) { c.Model = m }
}

func noSymmetry(c *verifier.Config) { c.Symmetry = false }

func cond(t *testing.T, s string) predicate.Condition {
	c, err := predicate.Parse(s)
	require.NoError(t, err)
	return c
}

func storeBuffering(t *testing.T) *interp.Program {
	return interp.NewProgram("sb").Global("x", 0).Global("y", 0).
		Func("main", "spawn r0, left", "spawn r1, right").
		Func("left", "store.rlx x, 1", "load.rlx r0, y").
		Func("right", "store.rlx y, 1", "load.rlx r0, x").
		Expect(predicate.Exists("both read 0", cond(t, "1:r0 == 0 && 2:r0 == 0"))).
		Must()
}

func TestStoreBufferingRA(t *testing.T) {
	res := verify(t, storeBuffering(t), model("ra"))
	assert.Nil(t, res.Error)
	assert.Equal(t, 4, res.Explored)
	assert.Len(t, res.Outcomes, 4)
	assert.Zero(t, res.Duplicates())
}

func TestStoreBufferingSC(t *testing.T) {
	res := verify(t, storeBuffering(t), model("sc"))
	assert.Equal(t, 3, res.Explored)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.Safety, res.Error.Kind)
	assert.Contains(t, res.Error.Msg, "both read 0")
}

func TestTwoWritersOneReader(t *testing.T) {
	p := interp.NewProgram("w+w+r").Global("x", 0).
		Func("main", "spawn r0, w1", "spawn r1, w2", "spawn r2, reader").
		Func("w1", "store.rlx x, 1").
		Func("w2", "store.rlx x, 2").
		Func("reader", "load.rlx r0, x").
		Must()
	res := verify(t, p, model("ra"))
	assert.Nil(t, res.Error)
	assert.Equal(t, 6, res.Explored)
	assert.Zero(t, res.Duplicates())
	// The final value of x and the value read are independent
	assert.Len(t, res.Outcomes, 6)
}

func TestMessagePassing(t *testing.T) {
	p, err := interp.LoadFile("../interp/testdata/mp.yaml")
	require.NoError(t, err)
	res := verify(t, p, model("ra"))
	assert.Nil(t, res.Error)
	assert.Equal(t, 3, res.Explored)
}

func TestRelaxedMessagePassingIsBroken(t *testing.T) {
	p := interp.NewProgram("mp-rlx").Global("x", 0).Global("flag", 0).
		Func("main", "spawn r0, writer", "load.rlx r1, flag", "load.rlx r2, x").
		Func("writer", "store.rlx x, 1", "store.rlx flag, 1").
		Expect(predicate.Forbidden("stale data", cond(t, "0:r1 == 1 && 0:r2 == 0"))).
		Must()
	res := verify(t, p, model("ra"))
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.Safety, res.Error.Kind)
	assert.NotEmpty(t, res.Error.Trace)
}

func TestNonAtomicRace(t *testing.T) {
	p := interp.NewProgram("race").Global("x", 0).
		Func("main", "spawn r0, writer", "load r1, x").
		Func("writer", "store x, 1").
		Must()
	res := verify(t, p)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.RaceNotAtomic, res.Error.Kind)
	assert.True(t, res.Error.HasRacy)
	assert.Contains(t, res.Error.String(), "Non-atomic race")
}

func TestAssertionFailure(t *testing.T) {
	p := interp.NewProgram("assert").Global("x", 0).
		Func("main", "spawn r0, writer", "load.rlx r1, x", `assert r1 == 0, "x was written"`).
		Func("writer", "store.rlx x, 1").
		Must()
	res := verify(t, p)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.Safety, res.Error.Kind)
	assert.Equal(t, "x was written", res.Error.Msg)
}

func incrementers(n int) *interp.Program {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "spawn r" + string(rune('0'+i)) + ", inc"
	}
	return interp.NewProgram("fai").Global("x", 0).
		Func("main", lines...).
		Func("inc", "fai.add.rlx r0, x, 1").
		Must()
}

func TestFetchAndAdd(t *testing.T) {
	res := verify(t, incrementers(3), model("ra"), noSymmetry)
	assert.Nil(t, res.Error)
	assert.Equal(t, 6, res.Explored)
	for o := range res.Outcomes {
		assert.Contains(t, o, "x=3")
	}
}

func TestSymmetryReduction(t *testing.T) {
	plain := verify(t, incrementers(3), model("ra"), noSymmetry)
	reduced := verify(t, incrementers(3), model("ra"))
	assert.Nil(t, reduced.Error)
	assert.Positive(t, reduced.Explored)
	assert.Less(t, reduced.Explored, plain.Explored)
}

func TestDoubleFree(t *testing.T) {
	p := interp.NewProgram("double-free").
		Func("main", "malloc r0, 8", "store [r0], 1", "free [r0]", "free [r0]").
		Must()
	res := verify(t, p)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.DoubleFree, res.Error.Kind)
}

func TestFreeStatic(t *testing.T) {
	p := interp.NewProgram("free-static").Global("x", 0).
		Func("main", "free x").
		Must()
	res := verify(t, p)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.FreeNonMalloc, res.Error.Kind)
}

func TestUninitializedRead(t *testing.T) {
	p := interp.NewProgram("uninit").
		Func("main", "malloc r0, 8", "load r1, [r0]").
		Must()
	res := verify(t, p)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.UninitializedMem, res.Error.Kind)
}

func TestUnfreedMemoryWarning(t *testing.T) {
	p := interp.NewProgram("leak").
		Func("main", "malloc r0, 8", "store [r0], 1").
		Must()
	res := verify(t, p, func(c *verifier.Config) { c.WarnUnfreed = true })
	assert.Nil(t, res.Error)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, checking.UnfreedMemory, res.Warnings[0].Kind)
	assert.Equal(t, 1, res.Explored)
}

func TestLockProtectsCounter(t *testing.T) {
	p := interp.NewProgram("lock").Global("m", 0).Global("c", 0).
		Func("main", "spawn r0, worker", "spawn r1, worker", "join r2, r0", "join r3, r1", "load r4, c").
		Func("worker", "lock m", "load r0, c", "add r0, 1", "store c, r0", "unlock m").
		Must()
	res := verify(t, p, noSymmetry)
	assert.Nil(t, res.Error)
	assert.Positive(t, res.Explored)
	for o := range res.Outcomes {
		assert.Contains(t, o, "0:r4=2")
	}
}

func TestUnlockWithoutLock(t *testing.T) {
	p := interp.NewProgram("unlock").Global("m", 0).
		Func("main", "unlock m").
		Must()
	res := verify(t, p)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.InvalidUnlock, res.Error.Kind)
}

func TestInvalidJoin(t *testing.T) {
	p := interp.NewProgram("join").
		Func("main", "join r0, 5").
		Must()
	res := verify(t, p)
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.InvalidJoin, res.Error.Kind)
}

func TestAwaitSucceedsOnce(t *testing.T) {
	p := interp.NewProgram("await").Global("flag", 0).
		Func("main", "spawn r0, waiter", "spawn r1, setter").
		Func("waiter", "await r0, flag == 1").
		Func("setter", "store.rel flag, 1").
		Must()
	res := verify(t, p, func(c *verifier.Config) { c.CheckLiveness = true })
	assert.Nil(t, res.Error)
	assert.Equal(t, 1, res.Explored)
}

func TestLivenessViolation(t *testing.T) {
	p := interp.NewProgram("spin").Global("flag", 0).
		Func("main", "spawn r0, waiter").
		Func("waiter", "await r0, flag == 1").
		Must()

	res := verify(t, p)
	assert.Nil(t, res.Error)
	assert.Zero(t, res.Explored)
	assert.Equal(t, 1, res.ExploredBlocked)

	res = verify(t, p, func(c *verifier.Config) { c.CheckLiveness = true })
	require.NotNil(t, res.Error)
	assert.Equal(t, checking.Liveness, res.Error.Kind)
}

func TestAssumeBlocks(t *testing.T) {
	p := interp.NewProgram("assume").Global("x", 0).
		Func("main", "spawn r0, writer", "load.rlx r1, x", "assume r1 == 1").
		Func("writer", "store.rlx x, 1").
		Must()
	res := verify(t, p)
	assert.Nil(t, res.Error)
	assert.Equal(t, 1, res.Explored)
	for o := range res.Outcomes {
		assert.Contains(t, o, "0:r1=1")
	}
}

func TestBoundedExploration(t *testing.T) {
	full := verify(t, storeBuffering(t), model("ra"))
	for _, b := range []verifier.BoundType{verifier.BoundContext, verifier.BoundRound} {
		res := verify(t, storeBuffering(t), model("ra"), func(c *verifier.Config) {
			c.Bound, c.BoundValue = b, 0
		})
		assert.LessOrEqual(t, res.Explored, full.Explored, b.String())
	}
}

func TestMaxExecutions(t *testing.T) {
	res := verify(t, storeBuffering(t), model("ra"), func(c *verifier.Config) { c.MaxExecutions = 2 })
	assert.Equal(t, 2, res.Explored)
}

func TestRecordTree(t *testing.T) {
	res := verify(t, storeBuffering(t), model("ra"), func(c *verifier.Config) { c.RecordTree = true })
	require.NotNil(t, res.Tree)
	assert.Equal(t, res.Explored, res.Tree.Count())
	assert.Len(t, res.Tree.GetAllLeafNodes(), res.Explored)
}

func TestVerifyInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newDriver(t, storeBuffering(t)).Verify(ctx)
	assert.ErrorIs(t, err, verifier.ErrInterrupted)
	assert.Zero(t, res.Explored)
}

func TestEstimate(t *testing.T) {
	d := newDriver(t, storeBuffering(t), model("ra"), func(c *verifier.Config) {
		c.EstimationMin, c.EstimationMax = 10, 50
	})
	res, err := d.Estimate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Estimation)
	assert.GreaterOrEqual(t, res.Estimation.Samples, 10)
	assert.LessOrEqual(t, res.Estimation.Samples, 50)
	assert.Positive(t, res.Estimation.Mean)
	assert.True(t, strings.HasPrefix(res.String(), "No errors were detected."))
}

func TestNewRejectsBadConfig(t *testing.T) {
	p := interp.NewProgram("p").Func("main", "fence").Must()
	conf := verifier.DefaultConfig()
	conf.Model = "tso"
	_, err := verifier.New(conf, interp.New(p))
	assert.ErrorIs(t, err, verifier.ErrInvalidConfig)
}
