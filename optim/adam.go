package optim

import (
	"fmt"

	"github.com/ahmedtd/modax/toolbox"
	"github.com/chewxy/math32"
)

// AdamConfig holds the Adam hyperparameters.  Zero fields take the defaults
// 1e-3, 0.9, 0.999 and 1e-8.
type AdamConfig struct {
	LearningRate float32 `yaml:"learning_rate"`
	Beta1        float32 `yaml:"beta1"`
	Beta2        float32 `yaml:"beta2"`
	Epsilon      float32 `yaml:"epsilon"`
}

func (c AdamConfig) withDefaults() AdamConfig {
	if c.LearningRate == 0 {
		c.LearningRate = 1e-3
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1e-8
	}
	return c
}

func (c AdamConfig) Validate() error {
	c = c.withDefaults()
	if c.LearningRate < 0 {
		return fmt.Errorf("learning rate must be positive; got %v", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("beta1 must be in [0, 1); got %v", c.Beta1)
	}
	if c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("beta2 must be in [0, 1); got %v", c.Beta2)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be positive; got %v", c.Epsilon)
	}
	return nil
}

// Adam is the state of the Adam optimizer (Kingma & Ba, 2014).
type Adam struct {
	config AdamConfig
	step   int

	// beta1^(step+1) and beta2^(step+1), the bias corrections for the next
	// step.
	beta1T, beta2T float32

	params toolbox.Params

	// The first and second moment vectors for each parameter
	m, v toolbox.Params
}

var _ State = (*Adam)(nil)

// NewAdam starts Adam at params with zero moment vectors.
func NewAdam(params toolbox.Params, config AdamConfig) *Adam {
	config = config.withDefaults()
	return &Adam{
		config: config,
		beta1T: config.Beta1,
		beta2T: config.Beta2,
		params: params,
		m:      params.ZerosLike(),
		v:      params.ZerosLike(),
	}
}

func (a *Adam) Params() toolbox.Params {
	return a.params
}

func (a *Adam) StepCount() int {
	return a.step
}

func (a *Adam) Config() AdamConfig {
	return a.config
}

// Step computes new moment vectors and then new weights:
//
//	m <- beta1 m + (1 - beta1) g
//	v <- beta2 v + (1 - beta2) g²
//	w <- w - alphaT m / (sqrt(v) + epsilon)
//
// with alphaT = alpha sqrt(1 - beta2^t) / (1 - beta1^t).
func (a *Adam) Step(grad toolbox.Params) State {
	checkGrad(a.params, grad)

	beta1 := a.config.Beta1
	beta2 := a.config.Beta2
	alphaT := a.config.LearningRate * math32.Sqrt(1-a.beta2T) / (1 - a.beta1T)

	next := &Adam{
		config: a.config,
		step:   a.step + 1,
		beta1T: a.beta1T * beta1,
		beta2T: a.beta2T * beta2,
		params: make(toolbox.Params, len(a.params)),
		m:      make(toolbox.Params, len(a.params)),
		v:      make(toolbox.Params, len(a.params)),
	}

	for k, w := range a.params {
		g := grad[k]
		oldM := a.m[k]
		oldV := a.v[k]

		newM := toolbox.AF32ZerosLike(w)
		newV := toolbox.AF32ZerosLike(w)
		newW := toolbox.AF32ZerosLike(w)
		for i := range w.V {
			newM.V[i] = beta1*oldM.V[i] + (1-beta1)*g.V[i]
			newV.V[i] = beta2*oldV.V[i] + (1-beta2)*g.V[i]*g.V[i]
			newW.V[i] = w.V[i] - alphaT*newM.V[i]/(math32.Sqrt(newV.V[i])+a.config.Epsilon)
		}

		next.params[k] = newW
		next.m[k] = newM
		next.v[k] = newV
	}

	return next
}
