// Package optim implements gradient-based parameter updates.
//
// Optimizer states are immutable: Step returns a new state and leaves the
// receiver, its parameters and its accumulators untouched.
package optim

import (
	"fmt"
	"slices"

	"github.com/ahmedtd/modax/toolbox"
)

// State holds the current parameters and whatever the update rule
// accumulates between steps.
type State interface {
	// Params returns the current parameters.  Callers must not modify them.
	Params() toolbox.Params

	// Step applies one update using grad, which must have the same names and
	// shapes as Params.
	Step(grad toolbox.Params) State

	// StepCount is the number of steps taken so far.
	StepCount() int
}

func checkGrad(params, grad toolbox.Params) {
	if len(params) != len(grad) {
		panic(fmt.Sprintf("gradient has %d tensors for %d parameters", len(grad), len(params)))
	}
	for k, p := range params {
		g, ok := grad[k]
		if !ok {
			panic(fmt.Sprintf("no gradient for parameter %s", k))
		}
		if !slices.Equal(p.Shape, g.Shape) {
			panic(fmt.Sprintf("gradient for %s has shape %v, want %v", k, g.Shape, p.Shape))
		}
	}
}

// GradientDescent applies w <- w - LearningRate * dJ/dw.
type GradientDescent struct {
	LearningRate float32

	params toolbox.Params
	step   int
}

var _ State = (*GradientDescent)(nil)

func NewGradientDescent(params toolbox.Params, learningRate float32) *GradientDescent {
	return &GradientDescent{
		LearningRate: learningRate,
		params:       params,
	}
}

func (gd *GradientDescent) Params() toolbox.Params {
	return gd.params
}

func (gd *GradientDescent) StepCount() int {
	return gd.step
}

func (gd *GradientDescent) Step(grad toolbox.Params) State {
	checkGrad(gd.params, grad)

	next := make(toolbox.Params, len(gd.params))
	for k, p := range gd.params {
		g := grad[k]
		w := toolbox.AF32ZerosLike(p)
		for i := range w.V {
			w.V[i] = p.V[i] - gd.LearningRate*g.V[i]
		}
		next[k] = w
	}

	return &GradientDescent{
		LearningRate: gd.LearningRate,
		params:       next,
		step:         gd.step + 1,
	}
}
