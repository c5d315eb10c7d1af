package toolbox

import (
	"fmt"
	"maps"
	"slices"
)

// Params is a named collection of trainable tensors, e.g. "mlp.0.weights".
//
// Params values are treated as immutable once handed to an optimizer; code
// that produces new parameters allocates new tensors.
type Params map[string]*AF32

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Clone deep-copies every tensor.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = AF32Copy(v)
	}
	return out
}

// ZerosLike returns a Params with the same names and shapes, all zeros.
func (p Params) ZerosLike() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = AF32ZerosLike(v)
	}
	return out
}

// Size returns the total number of scalar parameters.
func (p Params) Size() int {
	n := 0
	for _, v := range p {
		n += len(v.V)
	}
	return n
}

// Flatten concatenates the tensors in key order.
func (p Params) Flatten() []float32 {
	out := make([]float32, 0, p.Size())
	for _, k := range p.Keys() {
		out = append(out, p[k].V...)
	}
	return out
}

// Unflatten returns a Params shaped like p holding the values of flat, in
// key order.
func (p Params) Unflatten(flat []float32) Params {
	if len(flat) != p.Size() {
		panic(fmt.Sprintf("flat vector of length %d does not fit %d parameters", len(flat), p.Size()))
	}
	out := make(Params, len(p))
	off := 0
	for _, k := range p.Keys() {
		t := AF32ZerosLike(p[k])
		copy(t.V, flat[off:off+len(t.V)])
		off += len(t.V)
		out[k] = t
	}
	return out
}

// Vars is a Params bound to a tape as differentiable leaves.
type Vars struct {
	tape *Tape
	vars map[string]*Var
}

// Bind records every tensor of p on t as a parameter.
func Bind(t *Tape, p Params) *Vars {
	vs := &Vars{
		tape: t,
		vars: make(map[string]*Var, len(p)),
	}
	for k, v := range p {
		vs.vars[k] = t.Param(v)
	}
	return vs
}

func (vs *Vars) Tape() *Tape {
	return vs.tape
}

// Get returns the named parameter.
func (vs *Vars) Get(name string) (*Var, error) {
	v, ok := vs.vars[name]
	if !ok {
		return nil, fmt.Errorf("no parameter named %s", name)
	}
	return v, nil
}

// Grads collects the gradient of every parameter.  Parameters the output did
// not depend on get a zero gradient.
func (vs *Vars) Grads() Params {
	out := make(Params, len(vs.vars))
	for k, v := range vs.vars {
		if v.Grad == nil {
			out[k] = AF32ZerosLike(v.Value)
		} else {
			out[k] = v.Grad
		}
	}
	return out
}

// Objective is a scalar function of bound parameters.  Anything else it
// depends on (model, inputs, targets) is captured by the closure and held
// fixed.
type Objective func(params *Vars) (*Var, error)

// Value evaluates f at params.
func Value(params Params, f Objective) (float32, error) {
	out, err := f(Bind(NewTape(), params))
	if err != nil {
		return 0, err
	}
	if out.Value.Size() != 1 {
		return 0, fmt.Errorf("objective must return a scalar; got shape %v", out.Value.Shape)
	}
	return out.Value.V[0], nil
}

// ValueAndGrad evaluates f at params and differentiates it with respect to
// params only, by reverse-mode accumulation over a fresh tape.
func ValueAndGrad(params Params, f Objective) (float32, Params, error) {
	t := NewTape()
	vs := Bind(t, params)

	out, err := f(vs)
	if err != nil {
		return 0, nil, err
	}
	if out.tape != t {
		return 0, nil, fmt.Errorf("objective returned a var from a different tape")
	}
	if err := t.Backward(out); err != nil {
		return 0, nil, fmt.Errorf("while differentiating objective: %w", err)
	}

	return out.Value.V[0], vs.Grads(), nil
}
