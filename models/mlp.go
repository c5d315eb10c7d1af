package models

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ahmedtd/modax/toolbox"
)

type ActivationType int

const (
	Tanh ActivationType = iota
	Linear
)

// Dense describes one fully-connected layer.  Its weights are stored with
// shape (OutputSize, InputSize) and its biases with shape (OutputSize).
type Dense struct {
	Activation ActivationType

	InputSize  int
	OutputSize int
}

// init draws weights from N(0, 1/InputSize) and zeroes the biases.
func (lay Dense) init(r *rand.Rand) (w, b *toolbox.AF32) {
	w = toolbox.MakeAF32(lay.OutputSize, lay.InputSize)
	b = toolbox.MakeAF32(lay.OutputSize)

	std := 1 / math.Sqrt(float64(lay.InputSize))
	for i := 0; i < lay.OutputSize; i++ {
		for j := 0; j < lay.InputSize; j++ {
			w.Set2(i, j, float32(r.NormFloat64()*std))
		}
	}
	return w, b
}

func weightKey(l int) string { return fmt.Sprintf("mlp.%d.weights", l) }
func biasKey(l int) string   { return fmt.Sprintf("mlp.%d.biases", l) }

// MLP is a stack of dense layers.  Every layer but the last uses tanh; the
// last is linear.
type MLP struct {
	InputSize int
	Features  []int // OutputSize of each layer, in order
}

var _ Model = (*MLP)(nil)

func (m *MLP) Layers() []Dense {
	layers := make([]Dense, len(m.Features))
	in := m.InputSize
	for l, out := range m.Features {
		act := Tanh
		if l == len(m.Features)-1 {
			act = Linear
		}
		layers[l] = Dense{Activation: act, InputSize: in, OutputSize: out}
		in = out
	}
	return layers
}

func (m *MLP) Init(r *rand.Rand) toolbox.Params {
	params := toolbox.Params{}
	for l, lay := range m.Layers() {
		params[weightKey(l)], params[biasKey(l)] = lay.init(r)
	}
	return params
}

// Apply runs the network forward.
//
// x is the input.  Shape (batchSize, InputSize)
func (m *MLP) Apply(params *toolbox.Vars, x *toolbox.AF32) (Output, error) {
	if len(m.Features) == 0 {
		return nil, fmt.Errorf("mlp has no layers")
	}
	if len(x.Shape) != 2 || x.Shape[1] != m.InputSize {
		return nil, fmt.Errorf("input shape %v does not match input size %d", x.Shape, m.InputSize)
	}

	a := params.Tape().Const(x)
	for l, lay := range m.Layers() {
		w, b, err := layerParams(params, l)
		if err != nil {
			return nil, err
		}
		a = toolbox.AddBias(toolbox.MatMulT(a, w), b)
		if lay.Activation == Tanh {
			a = toolbox.Tanh(a)
		}
	}

	return Plain{Pred: a}, nil
}

func layerParams(params *toolbox.Vars, l int) (w, b *toolbox.Var, err error) {
	w, err = params.Get(weightKey(l))
	if err != nil {
		return nil, nil, fmt.Errorf("while loading layer %d: %w", l, err)
	}
	b, err = params.Get(biasKey(l))
	if err != nil {
		return nil, nil, fmt.Errorf("while loading layer %d: %w", l, err)
	}
	return w, b, nil
}

// jet is a layer activation together with its derivatives with respect to
// the network inputs t and x.  Every field has shape (batchSize, width).
type jet struct {
	a   *toolbox.Var
	at  *toolbox.Var // da/dt
	ax  *toolbox.Var // da/dx
	axx *toolbox.Var // d²a/dx²
}

// applyJet runs the network forward, propagating first derivatives in t and
// x and the second derivative in x alongside the activations.
//
// For a dense layer z = W a + b the derivatives pass through W without the
// bias.  For s = tanh(z), with s' = 1 - s² and s'' = -2 s s':
//
//	s_t  = s' z_t
//	s_x  = s' z_x
//	s_xx = s'' z_x² + s' z_xx
func (m *MLP) applyJet(params *toolbox.Vars, in jet) (jet, error) {
	j := in
	for l, lay := range m.Layers() {
		w, b, err := layerParams(params, l)
		if err != nil {
			return jet{}, err
		}

		z := jet{
			a:   toolbox.AddBias(toolbox.MatMulT(j.a, w), b),
			at:  toolbox.MatMulT(j.at, w),
			ax:  toolbox.MatMulT(j.ax, w),
			axx: toolbox.MatMulT(j.axx, w),
		}

		switch lay.Activation {
		case Linear:
			j = z
		case Tanh:
			s := toolbox.Tanh(z.a)
			ds := toolbox.Affine(toolbox.Mul(s, s), -1, 1)
			dds := toolbox.Scale(toolbox.Mul(s, ds), -2)
			j = jet{
				a:  s,
				at: toolbox.Mul(ds, z.at),
				ax: toolbox.Mul(ds, z.ax),
				axx: toolbox.Add(
					toolbox.Mul(dds, toolbox.Mul(z.ax, z.ax)),
					toolbox.Mul(ds, z.axx),
				),
			}
		default:
			panic("unhandled activation function")
		}
	}
	return j, nil
}
