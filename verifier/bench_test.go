package verifier_test

import (
	"context"
	"testing"

	"github.com/lililuanluan/weazer/interp"
	"github.com/lililuanluan/weazer/verifier"
)

func benchmarkVerify(b *testing.B, p *interp.Program, conf verifier.Config) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		d, err := verifier.New(conf, interp.New(p))
		if err != nil {
			b.Fatal(err)
		}
		if _, err := d.Verify(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIncrementersRA(b *testing.B) {
	conf := verifier.DefaultConfig()
	conf.Model = "ra"
	benchmarkVerify(b, incrementers(4), conf)
}

func BenchmarkIncrementersNoSymmetry(b *testing.B) {
	conf := verifier.DefaultConfig()
	conf.Model = "ra"
	conf.Symmetry = false
	benchmarkVerify(b, incrementers(4), conf)
}

func BenchmarkStoreBufferingSC(b *testing.B) {
	p := interp.NewProgram("sb").Global("x", 0).Global("y", 0).
		Func("main", "spawn r0, left", "spawn r1, right").
		Func("left", "store.rlx x, 1", "load.rlx r0, y").
		Func("right", "store.rlx y, 1", "load.rlx r0, x").
		Must()
	conf := verifier.DefaultConfig()
	conf.Model = "sc"
	benchmarkVerify(b, p, conf)
}
