package toolbox

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"
)

func checkSameShape(opName string, a, b *Var) {
	if !slices.Equal(a.Value.Shape, b.Value.Shape) {
		panic(fmt.Sprintf("%s: operands must have same shape; got %v and %v", opName, a.Value.Shape, b.Value.Shape))
	}
}

// Add returns a + b elementwise.
func Add(a, b *Var) *Var {
	checkSameShape("Add", a, b)
	t := tapeOf(a, b)

	value := AF32ZerosLike(a.Value)
	for i := range value.V {
		value.V[i] = a.Value.V[i] + b.Value.V[i]
	}

	out := t.newVar(value, a, b)
	t.record("Add", out, func() {
		a.accumulate(out.Grad.V)
		b.accumulate(out.Grad.V)
	})
	return out
}

// Sub returns a - b elementwise.
func Sub(a, b *Var) *Var {
	checkSameShape("Sub", a, b)
	t := tapeOf(a, b)

	value := AF32ZerosLike(a.Value)
	for i := range value.V {
		value.V[i] = a.Value.V[i] - b.Value.V[i]
	}

	out := t.newVar(value, a, b)
	t.record("Sub", out, func() {
		a.accumulate(out.Grad.V)
		if b.requiresGrad {
			neg := make([]float32, len(out.Grad.V))
			for i, g := range out.Grad.V {
				neg[i] = -g
			}
			b.accumulate(neg)
		}
	})
	return out
}

// Mul returns a * b elementwise.
func Mul(a, b *Var) *Var {
	checkSameShape("Mul", a, b)
	t := tapeOf(a, b)

	value := AF32ZerosLike(a.Value)
	for i := range value.V {
		value.V[i] = a.Value.V[i] * b.Value.V[i]
	}

	out := t.newVar(value, a, b)
	t.record("Mul", out, func() {
		if a.requiresGrad {
			ga := make([]float32, len(out.Grad.V))
			for i, g := range out.Grad.V {
				ga[i] = g * b.Value.V[i]
			}
			a.accumulate(ga)
		}
		if b.requiresGrad {
			gb := make([]float32, len(out.Grad.V))
			for i, g := range out.Grad.V {
				gb[i] = g * a.Value.V[i]
			}
			b.accumulate(gb)
		}
	})
	return out
}

// Scale returns k * a.
func Scale(a *Var, k float32) *Var {
	return Affine(a, k, 0)
}

// Affine returns scale * a + shift elementwise.
func Affine(a *Var, scale, shift float32) *Var {
	t := a.tape

	value := AF32ZerosLike(a.Value)
	for i := range value.V {
		value.V[i] = scale*a.Value.V[i] + shift
	}

	out := t.newVar(value, a)
	t.record("Affine", out, func() {
		ga := make([]float32, len(out.Grad.V))
		for i, g := range out.Grad.V {
			ga[i] = scale * g
		}
		a.accumulate(ga)
	})
	return out
}

// Tanh returns tanh(a) elementwise.
func Tanh(a *Var) *Var {
	t := a.tape

	value := AF32ZerosLike(a.Value)
	for i := range value.V {
		value.V[i] = math32.Tanh(a.Value.V[i])
	}

	out := t.newVar(value, a)
	t.record("Tanh", out, func() {
		// d tanh(z)/dz = 1 - tanh(z)^2
		ga := make([]float32, len(out.Grad.V))
		for i, g := range out.Grad.V {
			s := value.V[i]
			ga[i] = g * (1 - s*s)
		}
		a.accumulate(ga)
	})
	return out
}

// MatMul returns a @ b.
//
// a is shape (n, k), b is shape (k, m).  The result is shape (n, m).
func MatMul(a, b *Var) *Var {
	check2D("a", a.Value)
	check2D("b", b.Value)
	t := tapeOf(a, b)

	value := MakeAF32(a.Value.Shape[0], b.Value.Shape[1])
	matMulInto(a.Value, b.Value, value)

	out := t.newVar(value, a, b)
	t.record("MatMul", out, func() {
		if a.requiresGrad {
			// dJ/da = dJ/dout @ bᵀ
			ga := AF32ZerosLike(a.Value)
			matMulTInto(out.Grad, b.Value, ga)
			a.accumulate(ga.V)
		}
		if b.requiresGrad {
			// dJ/db = aᵀ @ dJ/dout
			gb := AF32ZerosLike(b.Value)
			matTMulInto(a.Value, out.Grad, gb)
			b.accumulate(gb.V)
		}
	})
	return out
}

// MatMulT returns a @ wᵀ.
//
// a is shape (n, k), w is shape (m, k).  The result is shape (n, m).  This is
// the dense layer product for weights stored as (OutputSize, InputSize).
func MatMulT(a, w *Var) *Var {
	check2D("a", a.Value)
	check2D("w", w.Value)
	t := tapeOf(a, w)

	value := MakeAF32(a.Value.Shape[0], w.Value.Shape[0])
	matMulTInto(a.Value, w.Value, value)

	out := t.newVar(value, a, w)
	t.record("MatMulT", out, func() {
		if a.requiresGrad {
			// dJ/da = dJ/dout @ w
			ga := AF32ZerosLike(a.Value)
			matMulInto(out.Grad, w.Value, ga)
			a.accumulate(ga.V)
		}
		if w.requiresGrad {
			// dJ/dw = (dJ/dout)ᵀ @ a
			gw := AF32ZerosLike(w.Value)
			matTMulInto(out.Grad, a.Value, gw)
			w.accumulate(gw.V)
		}
	})
	return out
}

// AddBias adds the vector b to every row of a.
//
// a is shape (n, m), b has m elements.
func AddBias(a, b *Var) *Var {
	check2D("a", a.Value)
	t := tapeOf(a, b)
	n, m := a.Value.Shape[0], a.Value.Shape[1]
	if len(b.Value.V) != m {
		panic(fmt.Sprintf("AddBias: bias shape %v does not match rows of %v", b.Value.Shape, a.Value.Shape))
	}

	value := AF32ZerosLike(a.Value)
	for k := 0; k < n; k++ {
		for i := 0; i < m; i++ {
			value.V[k*m+i] = a.Value.V[k*m+i] + b.Value.V[i]
		}
	}

	out := t.newVar(value, a, b)
	t.record("AddBias", out, func() {
		a.accumulate(out.Grad.V)
		if b.requiresGrad {
			gb := make([]float32, m)
			for k := 0; k < n; k++ {
				for i := 0; i < m; i++ {
					gb[i] += out.Grad.V[k*m+i]
				}
			}
			b.accumulate(gb)
		}
	})
	return out
}

// SumRows sums each row of a, returning shape (n).  1-D input is treated as a
// single column and returned as-is in shape (n).
func SumRows(a *Var) *Var {
	t := a.tape
	n, d := a.Value.Rows(), a.Value.Cols()

	value := MakeAF32(n)
	for k := 0; k < n; k++ {
		var sum float32
		for i := 0; i < d; i++ {
			sum += a.Value.V[k*d+i]
		}
		value.V[k] = sum
	}

	out := t.newVar(value, a)
	t.record("SumRows", out, func() {
		ga := make([]float32, n*d)
		for k := 0; k < n; k++ {
			for i := 0; i < d; i++ {
				ga[k*d+i] = out.Grad.V[k]
			}
		}
		a.accumulate(ga)
	})
	return out
}

// Mean returns the arithmetic mean of every element of a, shape (1).
func Mean(a *Var) *Var {
	t := a.tape
	size := len(a.Value.V)

	var sum float32
	for _, v := range a.Value.V {
		sum += v
	}
	value := MakeScalarAF32(sum / float32(size))

	out := t.newVar(value, a)
	t.record("Mean", out, func() {
		g := out.Grad.V[0] / float32(size)
		ga := make([]float32, size)
		for i := range ga {
			ga[i] = g
		}
		a.accumulate(ga)
	})
	return out
}

// Column returns column j of a as shape (n, 1).
func Column(a *Var, j int) *Var {
	check2D("a", a.Value)
	t := a.tape
	n, m := a.Value.Shape[0], a.Value.Shape[1]
	if j < 0 || j >= m {
		panic(fmt.Sprintf("Column: index %d out of range for shape %v", j, a.Value.Shape))
	}

	value := MakeAF32(n, 1)
	for k := 0; k < n; k++ {
		value.V[k] = a.Value.V[k*m+j]
	}

	out := t.newVar(value, a)
	t.record("Column", out, func() {
		ga := make([]float32, n*m)
		for k := 0; k < n; k++ {
			ga[k*m+j] = out.Grad.V[k]
		}
		a.accumulate(ga)
	})
	return out
}

// ConcatCols joins 2-D vars with equal row counts side by side.
func ConcatCols(vs ...*Var) *Var {
	if len(vs) == 0 {
		panic("ConcatCols: no operands")
	}
	t := tapeOf(vs...)

	n := vs[0].Value.Rows()
	widths := make([]int, len(vs))
	total := 0
	for i, v := range vs {
		check2D("operand", v.Value)
		if v.Value.Shape[0] != n {
			panic(fmt.Sprintf("ConcatCols: row mismatch; got %v and %v", vs[0].Value.Shape, v.Value.Shape))
		}
		widths[i] = v.Value.Shape[1]
		total += widths[i]
	}

	value := MakeAF32(n, total)
	for k := 0; k < n; k++ {
		col := 0
		for i, v := range vs {
			copy(value.V[k*total+col:k*total+col+widths[i]], v.Value.V[k*widths[i]:k*widths[i]+widths[i]])
			col += widths[i]
		}
	}

	out := t.newVar(value, vs...)
	t.record("ConcatCols", out, func() {
		col := 0
		for i, v := range vs {
			if v.requiresGrad {
				gv := make([]float32, n*widths[i])
				for k := 0; k < n; k++ {
					copy(gv[k*widths[i]:k*widths[i]+widths[i]], out.Grad.V[k*total+col:k*total+col+widths[i]])
				}
				v.accumulate(gv)
			}
			col += widths[i]
		}
	})
	return out
}

// Reshape returns a view of a with a new shape.  The value shares storage
// with a.
func Reshape(a *Var, shape ...int) *Var {
	t := a.tape
	out := t.newVar(AF32Reshape(a.Value, shape...), a)
	t.record("Reshape", out, func() {
		a.accumulate(out.Grad.V)
	})
	return out
}

// Squeeze drops the singleton dimensions of a.
func Squeeze(a *Var) *Var {
	return Reshape(a, SqueezeShape(a.Value.Shape)...)
}

// Detach returns a constant holding a's value.  Gradients do not flow back
// through it.
func Detach(a *Var) *Var {
	return a.tape.Const(a.Value)
}
