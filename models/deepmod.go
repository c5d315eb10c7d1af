package models

import (
	"fmt"
	"math/rand"

	"github.com/ahmedtd/modax/toolbox"
)

// Deepmod approximates a field u(t, x) with an MLP and explains its time
// derivative with a sparse linear combination of library terms.
//
// The input columns are (t, x).  Apply returns a *Physics whose coefficients
// are the least-squares fit of u_t against the library.  The coefficients are
// constants on the tape: at the least-squares optimum the derivative of the
// residual with respect to them is zero, so holding them fixed gives the
// exact gradient of the consistency loss.
type Deepmod struct {
	Features  []int // MLP layer sizes; the last must be 1
	PolyOrder int   // highest power of u in the library
	DiffOrder int   // highest spatial derivative in the library, at most MaxDiffOrder

	// Mask selects the active library terms.  Nil selects all of them.
	Mask []bool
}

var _ Model = (*Deepmod)(nil)

func (m *Deepmod) mlp() *MLP {
	return &MLP{InputSize: 2, Features: m.Features}
}

// NumTerms is the number of library columns.
func (m *Deepmod) NumTerms() int {
	return (m.PolyOrder + 1) * (m.DiffOrder + 1)
}

// Terms names the library columns.
func (m *Deepmod) Terms() []string {
	return LibraryTerms(m.PolyOrder, m.DiffOrder)
}

func (m *Deepmod) Init(r *rand.Rand) toolbox.Params {
	return m.mlp().Init(r)
}

func (m *Deepmod) validate() error {
	if len(m.Features) == 0 || m.Features[len(m.Features)-1] != 1 {
		return fmt.Errorf("deepmod needs a scalar output layer; got features %v", m.Features)
	}
	if m.DiffOrder < 1 || m.DiffOrder > MaxDiffOrder {
		return fmt.Errorf("derivative order %d not in [1, %d]", m.DiffOrder, MaxDiffOrder)
	}
	if m.PolyOrder < 0 {
		return fmt.Errorf("invalid polynomial order %d", m.PolyOrder)
	}
	if m.Mask != nil && len(m.Mask) != m.NumTerms() {
		return fmt.Errorf("mask has %d entries for %d terms", len(m.Mask), m.NumTerms())
	}
	return nil
}

// Apply runs the network and builds the library.
//
// x is the input.  Shape (batchSize, 2), columns (t, x)
func (m *Deepmod) Apply(params *toolbox.Vars, x *toolbox.AF32) (Output, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if len(x.Shape) != 2 || x.Shape[1] != 2 {
		return nil, fmt.Errorf("deepmod input must have columns (t, x); got shape %v", x.Shape)
	}
	t := params.Tape()
	batchSize := x.Shape[0]

	// Seed the derivatives of the inputs themselves.
	dt := toolbox.MakeAF32(batchSize, 2)
	dx := toolbox.MakeAF32(batchSize, 2)
	for k := 0; k < batchSize; k++ {
		dt.Set2(k, 0, 1)
		dx.Set2(k, 1, 1)
	}
	in := jet{
		a:   t.Const(x),
		at:  t.Const(dt),
		ax:  t.Const(dx),
		axx: t.Const(toolbox.MakeAF32(batchSize, 2)),
	}

	out, err := m.mlp().applyJet(params, in)
	if err != nil {
		return nil, err
	}

	derivs := []*toolbox.Var{out.ax, out.axx}[:m.DiffOrder]
	theta := Library(out.a, derivs, m.PolyOrder)

	coeffs, err := LeastSquares(theta.Value, out.at.Value, m.Mask)
	if err != nil {
		return nil, fmt.Errorf("while fitting library coefficients: %w", err)
	}

	return &Physics{
		Pred:   out.a,
		Dt:     out.at,
		Theta:  theta,
		Coeffs: t.Const(coeffs),
	}, nil
}
