package toolbox

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Products with fewer multiply-adds than this run on the calling goroutine.
const parallelMatMulWork = 1 << 16

// parallelRows calls fn over disjoint [lo, hi) row ranges covering [0, rows),
// at most GOMAXPROCS at a time.  Each row is written by exactly one call, so
// the result does not depend on scheduling.  A panic in fn is re-raised on
// the calling goroutine.
func parallelRows(rows, work int, fn func(lo, hi int)) {
	if work < parallelMatMulWork || rows < 2 {
		fn(0, rows)
		return
	}

	workers := min(runtime.GOMAXPROCS(0), rows)
	chunk := max((rows+4*workers-1)/(4*workers), 1)

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < rows; lo += chunk {
		hi := min(lo+chunk, rows)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("rows [%d, %d): %v", lo, hi, r)
				}
			}()
			fn(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err.Error())
	}
}

func check2D(name string, a *AF32) {
	if len(a.Shape) != 2 {
		panic(fmt.Sprintf("%s must be 2-D; got shape %v", name, a.Shape))
	}
}

// matMulInto computes out = a @ b.
//
// a is shape (n, k), b is shape (k, m), out is shape (n, m).
func matMulInto(a, b, out *AF32) {
	check2D("a", a)
	check2D("b", b)
	n, k, m := a.Shape[0], a.Shape[1], b.Shape[1]
	if b.Shape[0] != k {
		panic(fmt.Sprintf("matmul dimension mismatch: %v @ %v", a.Shape, b.Shape))
	}
	if len(out.V) != n*m {
		panic("output storage is not correctly sized")
	}

	parallelRows(n, n*k*m, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := out.V[i*m : i*m+m]
			clear(row)
			for p := 0; p < k; p++ {
				denseAxpy(a.V[i*k+p], b.V[p*m:p*m+m], row)
			}
		}
	})
}

// matMulTInto computes out = a @ bᵀ.
//
// a is shape (n, k), b is shape (m, k), out is shape (n, m).
func matMulTInto(a, b, out *AF32) {
	check2D("a", a)
	check2D("b", b)
	n, k, m := a.Shape[0], a.Shape[1], b.Shape[0]
	if b.Shape[1] != k {
		panic(fmt.Sprintf("matmul dimension mismatch: %v @ %vᵀ", a.Shape, b.Shape))
	}
	if len(out.V) != n*m {
		panic("output storage is not correctly sized")
	}

	parallelRows(n, n*k*m, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			for j := 0; j < m; j++ {
				out.V[i*m+j] = denseDot2(a.V[i*k:i*k+k], b.V[j*k:j*k+k])
			}
		}
	})
}

// matTMulInto computes out = aᵀ @ b.
//
// a is shape (n, k), b is shape (n, m), out is shape (k, m).
func matTMulInto(a, b, out *AF32) {
	check2D("a", a)
	check2D("b", b)
	n, k, m := a.Shape[0], a.Shape[1], b.Shape[1]
	if b.Shape[0] != n {
		panic(fmt.Sprintf("matmul dimension mismatch: %vᵀ @ %v", a.Shape, b.Shape))
	}
	if len(out.V) != k*m {
		panic("output storage is not correctly sized")
	}

	parallelRows(k, n*k*m, func(lo, hi int) {
		for p := lo; p < hi; p++ {
			row := out.V[p*m : p*m+m]
			clear(row)
			for i := 0; i < n; i++ {
				denseAxpy(a.V[i*k+p], b.V[i*m:i*m+m], row)
			}
		}
	})
}
