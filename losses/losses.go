// Package losses computes the scalar training losses for model discovery.
//
// Every loss takes the bound parameters as its first argument, because
// toolbox.ValueAndGrad differentiates with respect to that slot only.
package losses

import (
	"errors"
	"fmt"

	"github.com/ahmedtd/modax/models"
	"github.com/ahmedtd/modax/toolbox"
)

// ErrWrongOutput is returned when a model's output variant lacks what a loss
// needs.
var ErrWrongOutput = errors.New("wrong model output variant")

// LossFunc computes a scalar loss of the model's output on (x, y).
type LossFunc func(params *toolbox.Vars, model models.Model, x, y *toolbox.AF32) (*toolbox.Var, error)

var (
	_ LossFunc = LossFnMSE
	_ LossFunc = LossFnPINN
)

// MSE is the mean over samples of half the squared Euclidean norm of the
// per-sample residual y - yPred.
//
// yPred and y must have the same shape, (batchSize, D) or (batchSize) with
// D = 1.  NaN and Inf propagate into the result.
func MSE(yPred, y *toolbox.Var) *toolbox.Var {
	diff := toolbox.Sub(y, yPred)
	return toolbox.Mean(toolbox.Scale(toolbox.SumRows(toolbox.Mul(diff, diff)), 0.5))
}

// LossFnMSE is the plain regression loss on the model's prediction.
func LossFnMSE(params *toolbox.Vars, model models.Model, x, y *toolbox.AF32) (*toolbox.Var, error) {
	out, err := model.Apply(params, x)
	if err != nil {
		return nil, err
	}
	return MSE(out.Prediction(), params.Tape().Const(y)), nil
}

// LossFnPINN adds to the regression loss the discrepancy between the
// network's time derivative and the library fit theta @ coeffs.  The two
// terms are summed without weighting.
func LossFnPINN(params *toolbox.Vars, model models.Model, x, y *toolbox.AF32) (*toolbox.Var, error) {
	out, err := model.Apply(params, x)
	if err != nil {
		return nil, err
	}
	phys, ok := out.(*models.Physics)
	if !ok {
		return nil, fmt.Errorf("%w: physics-informed loss needs *models.Physics, got %T", ErrWrongOutput, out)
	}

	regression := MSE(phys.Pred, params.Tape().Const(y))
	return toolbox.Add(regression, Consistency(phys)), nil
}

// Consistency is MSE(squeeze(dt), squeeze(theta @ coeffs)).
func Consistency(phys *models.Physics) *toolbox.Var {
	fit := toolbox.MatMul(phys.Theta, phys.Coeffs)
	return MSE(toolbox.Squeeze(phys.Dt), toolbox.Squeeze(fit))
}
