package toolbox

import (
	"fmt"
)

// Var is a tensor recorded on a Tape.
//
// Grad holds dJ/dValue after Tape.Backward.  It stays nil for vars that no
// gradient flowed into (constants, or values the output does not depend on).
type Var struct {
	Value *AF32
	Grad  *AF32

	tape         *Tape
	requiresGrad bool
}

// op is one recorded operation.  backward reads out.Grad and accumulates
// into the gradients of the operation's inputs.
type op struct {
	name     string
	out      *Var
	backward func()
}

// Tape records differentiable operations in execution order so that
// gradients can be computed in reverse.
//
// A tape is used for one forward/backward pass and then discarded.
type Tape struct {
	ops []op
}

func NewTape() *Tape {
	return &Tape{
		ops: make([]op, 0, 64),
	}
}

// Param returns a leaf var that gradients flow into.
func (t *Tape) Param(value *AF32) *Var {
	return &Var{Value: value, tape: t, requiresGrad: true}
}

// Const returns a leaf var that never receives a gradient.
func (t *Tape) Const(value *AF32) *Var {
	return &Var{Value: value, tape: t}
}

// Len returns the number of recorded operations.
func (t *Tape) Len() int {
	return len(t.ops)
}

// newVar wraps the result of an operation over inputs.  The result requires
// a gradient if any input does.
func (t *Tape) newVar(value *AF32, inputs ...*Var) *Var {
	v := &Var{Value: value, tape: t}
	for _, in := range inputs {
		if in.requiresGrad {
			v.requiresGrad = true
			break
		}
	}
	return v
}

// record appends an operation.  Operations whose output does not require a
// gradient are not recorded at all.
func (t *Tape) record(name string, out *Var, backward func()) {
	if !out.requiresGrad {
		return
	}
	t.ops = append(t.ops, op{name: name, out: out, backward: backward})
}

// Backward computes the gradient of the scalar v with respect to every var
// on the tape that v depends on.
func (t *Tape) Backward(v *Var) error {
	if v.tape != t {
		return fmt.Errorf("var was not recorded on this tape")
	}
	if v.Value.Size() != 1 {
		return fmt.Errorf("backward requires a scalar output; got shape %v", v.Value.Shape)
	}

	v.Grad = AF32ZerosLike(v.Value)
	v.Grad.V[0] = 1

	for i := len(t.ops) - 1; i >= 0; i-- {
		o := t.ops[i]
		if o.out.Grad == nil {
			// No gradient flows through this operation.
			continue
		}
		o.backward()
	}

	return nil
}

// Tape returns the tape v was recorded on.
func (v *Var) Tape() *Tape {
	return v.tape
}

// RequiresGrad reports whether gradients flow into v.
func (v *Var) RequiresGrad() bool {
	return v.requiresGrad
}

// Shape is shorthand for v.Value.Shape.
func (v *Var) Shape() []int {
	return v.Value.Shape
}

// accumulate adds g into v.Grad, allocating it on first use.
func (v *Var) accumulate(g []float32) {
	if !v.requiresGrad {
		return
	}
	if v.Grad == nil {
		v.Grad = AF32ZerosLike(v.Value)
	}
	if len(g) != len(v.Grad.V) {
		panic(fmt.Sprintf("gradient of length %d does not fit shape %v", len(g), v.Value.Shape))
	}
	for i := range g {
		v.Grad.V[i] += g[i]
	}
}

func tapeOf(vs ...*Var) *Tape {
	t := vs[0].tape
	for _, v := range vs[1:] {
		if v.tape != t {
			panic("vars recorded on different tapes")
		}
	}
	return t
}
