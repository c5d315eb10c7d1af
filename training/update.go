// Package training drives the optimization of a model under a loss.
package training

import (
	"github.com/ahmedtd/modax/losses"
	"github.com/ahmedtd/modax/models"
	"github.com/ahmedtd/modax/optim"
	"github.com/ahmedtd/modax/toolbox"
)

// UpdateFunc performs one optimization step.  It returns the new state and
// the loss evaluated at the old state's parameters; state itself is not
// modified.
type UpdateFunc func(state optim.State) (optim.State, float32, error)

// CreateUpdate binds model, x and y into an UpdateFunc that differentiates
// lossFn with respect to the parameters only.
func CreateUpdate(lossFn losses.LossFunc, model models.Model, x, y *toolbox.AF32) UpdateFunc {
	objective := func(params *toolbox.Vars) (*toolbox.Var, error) {
		return lossFn(params, model, x, y)
	}

	return func(state optim.State) (optim.State, float32, error) {
		loss, grad, err := toolbox.ValueAndGrad(state.Params(), objective)
		if err != nil {
			return nil, 0, err
		}
		return state.Step(grad), loss, nil
	}
}
