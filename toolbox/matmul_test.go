package toolbox

import (
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWeightGradientKernel(t *testing.T) {
	batchSize := 100
	inputSize := 33
	outputSize := 44

	// dJ/dW = (dJ/da)ᵀ @ x summed over the batch.
	djda := MakeAF32(batchSize, outputSize)
	djda.Fill(1)

	x := MakeAF32(batchSize, inputSize)
	x.Fill(1)

	djdw := MakeAF32(outputSize, inputSize)
	matTMulInto(djda, x, djdw)

	wantDjdw := MakeAF32(outputSize, inputSize)
	wantDjdw.Fill(100)

	if diff := cmp.Diff(djdw, wantDjdw); diff != "" {
		t.Fatalf("Wrong output; diff (-got +want)\n%s", diff)
	}
}

func TestParallelRowsCoversEveryRow(t *testing.T) {
	for _, rows := range []int{1, 2, 7, 1000} {
		seen := make([]int, rows)
		parallelRows(rows, 1<<20, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				seen[i]++
			}
		})
		for i, n := range seen {
			if n != 1 {
				t.Fatalf("rows=%d: row %d visited %d times", rows, i, n)
			}
		}
	}
}

func TestParallelRowsBoundsWorkers(t *testing.T) {
	var running, peak atomic.Int32
	parallelRows(1000, 1<<20, func(lo, hi int) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		runtime.Gosched()
		running.Add(-1)
	})
	if limit := int32(runtime.GOMAXPROCS(0)); peak.Load() > limit {
		t.Errorf("%d chunks ran at once, want at most %d", peak.Load(), limit)
	}
}

func TestParallelRowsReraisesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected the worker panic on the calling goroutine")
		}
	}()
	parallelRows(100, 1<<20, func(lo, hi int) {
		if lo == 0 {
			panic("bad row")
		}
	})
}

func TestMatMulPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Expected a panic")
		}
	}()
	tape := NewTape()
	MatMul(tape.Const(MakeAF32(3, 4)), tape.Const(MakeAF32(5, 2)))
}

func BenchmarkApply(b *testing.B) {
	r := rand.New(rand.NewSource(12345))
	x := randomAF32(r, 2000, 2)
	w := randomAF32(r, 50, 2)
	bias := randomAF32(r, 50)

	for b.Loop() {
		tape := NewTape()
		Tanh(AddBias(MatMulT(tape.Const(x), tape.Param(w)), tape.Param(bias)))
	}
}

func BenchmarkLinReg(b *testing.B) {
	r := rand.New(rand.NewSource(12345))
	x := randomAF32(r, 2000, 2)
	y := randomAF32(r, 2000, 1)
	params := Params{
		"w": randomAF32(r, 1, 2),
		"b": randomAF32(r, 1),
	}

	objective := func(p *Vars) (*Var, error) {
		t := p.Tape()
		w, err := p.Get("w")
		if err != nil {
			return nil, err
		}
		bias, err := p.Get("b")
		if err != nil {
			return nil, err
		}
		diff := Sub(t.Const(y), AddBias(MatMulT(t.Const(x), w), bias))
		return Mean(Scale(SumRows(Mul(diff, diff)), 0.5)), nil
	}

	for b.Loop() {
		if _, _, err := ValueAndGrad(params, objective); err != nil {
			b.Fatal(err)
		}
	}
}
