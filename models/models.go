// Package models holds the networks trained by the losses in package losses.
//
// Every model returns an Output whose prediction slot is always filled.
// Models used for equation discovery return the Physics variant, which also
// carries the time derivative, the function library and its coefficients.
package models

import (
	"math/rand"

	"github.com/ahmedtd/modax/toolbox"
)

// Model is a parameterized function of the inputs x.
type Model interface {
	// Init returns freshly initialized parameters.
	Init(r *rand.Rand) toolbox.Params

	// Apply runs the forward pass with params bound to a tape.
	//
	// x is the input.  Shape (batchSize, InputSize)
	Apply(params *toolbox.Vars, x *toolbox.AF32) (Output, error)
}

// Output is one of Plain or *Physics.
type Output interface {
	// Prediction is the predicted field.  Shape (batchSize, OutputSize)
	Prediction() *toolbox.Var

	isOutput()
}

// Plain carries only the prediction.
type Plain struct {
	Pred *toolbox.Var
}

func (p Plain) Prediction() *toolbox.Var { return p.Pred }

func (Plain) isOutput() {}

// Physics is the output of a model-discovery network.
type Physics struct {
	Pred *toolbox.Var // Shape (batchSize, 1)
	Dt   *toolbox.Var // Time derivative of Pred.  Shape (batchSize, 1)

	Theta  *toolbox.Var // Library terms.  Shape (batchSize, numTerms)
	Coeffs *toolbox.Var // Shape (numTerms, 1)
}

func (p *Physics) Prediction() *toolbox.Var { return p.Pred }

func (*Physics) isOutput() {}
