package optim

import (
	"math"
	"testing"

	"github.com/ahmedtd/modax/toolbox"
	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
)

func scalarParams(w float32) toolbox.Params {
	return toolbox.Params{"w": toolbox.MakeScalarAF32(w)}
}

func TestGradientDescentStep(t *testing.T) {
	s0 := NewGradientDescent(scalarParams(2), 0.1)

	s1 := s0.Step(scalarParams(1))

	if got := s1.Params()["w"].V[0]; math32.Abs(got-1.9) > 1e-6 {
		t.Errorf("Wrong weight after one step; got %v, want 1.9", got)
	}
	if got := s1.StepCount(); got != 1 {
		t.Errorf("Wrong step count; got %d, want 1", got)
	}

	// The original state is untouched.
	if got := s0.Params()["w"].V[0]; got != 2 {
		t.Errorf("Original state mutated; got w=%v, want 2", got)
	}
	if got := s0.StepCount(); got != 0 {
		t.Errorf("Original step count mutated; got %d, want 0", got)
	}
}

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	// With bias correction, the first Adam step moves each weight by about
	// the learning rate in the direction opposite the gradient.
	s0 := NewAdam(scalarParams(1), AdamConfig{LearningRate: 0.01})
	s1 := s0.Step(scalarParams(5))

	if got := s1.Params()["w"].V[0]; math32.Abs(got-0.99) > 1e-5 {
		t.Errorf("Wrong weight after one step; got %v, want 0.99", got)
	}
	if got := s0.Params()["w"].V[0]; got != 1 {
		t.Errorf("Original state mutated; got w=%v, want 1", got)
	}
}

func TestAdamMatchesReference(t *testing.T) {
	config := AdamConfig{LearningRate: 2e-3, Beta1: 0.99, Beta2: 0.99, Epsilon: 1e-8}
	var state State = NewAdam(scalarParams(3), config)

	// Reference Adam in float64, minimizing w².
	w := float64(3)
	var m, v float64
	for step := 1; step <= 50; step++ {
		g := 2 * w
		m = 0.99*m + 0.01*g
		v = 0.99*v + 0.01*g*g
		alphaT := 2e-3 * math.Sqrt(1-math.Pow(0.99, float64(step))) / (1 - math.Pow(0.99, float64(step)))
		w -= alphaT * m / (math.Sqrt(v) + 1e-8)

		cur := state.Params()["w"].V[0]
		state = state.Step(scalarParams(2 * cur))
	}

	if got := state.StepCount(); got != 50 {
		t.Errorf("Wrong step count; got %d, want 50", got)
	}
	got := state.Params()["w"].V[0]
	if math.Abs(float64(got)-w) > 1e-4 {
		t.Errorf("Disagreement with reference Adam; got %v, want %v", got, w)
	}
	if got >= 3 {
		t.Errorf("Adam did not descend; w=%v", got)
	}
}

func TestAdamStepDoesNotMutate(t *testing.T) {
	params := toolbox.Params{
		"a": toolbox.AF32FromSlice([]float32{1, 2, 3}, 3),
		"b": toolbox.AF32FromSlice([]float32{4, 5}, 2, 1),
	}
	before := params.Clone()
	s0 := NewAdam(params, AdamConfig{})

	grad := toolbox.Params{
		"a": toolbox.AF32FromSlice([]float32{1, 1, 1}, 3),
		"b": toolbox.AF32FromSlice([]float32{-1, -1}, 2, 1),
	}
	s1 := s0.Step(grad)
	s2 := s0.Step(grad)

	if diff := cmp.Diff(s0.Params(), before); diff != "" {
		t.Errorf("Step mutated the original params; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(s2.Params(), s1.Params()); diff != "" {
		t.Errorf("Stepping the same state twice disagrees; diff (-second +first)\n%s", diff)
	}
	if got := s1.Params()["a"].V[0]; got >= 1 {
		t.Errorf("Positive gradient should decrease a[0]; got %v", got)
	}
	if got := s1.Params()["b"].V[0]; got <= 4 {
		t.Errorf("Negative gradient should increase b[0]; got %v", got)
	}
}

func TestStepRejectsMismatchedGradient(t *testing.T) {
	for _, tc := range []struct {
		desc string
		grad toolbox.Params
	}{
		{"missing param", toolbox.Params{"other": toolbox.MakeScalarAF32(1)}},
		{"wrong shape", toolbox.Params{"w": toolbox.MakeAF32(2)}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected a panic")
				}
			}()
			NewAdam(scalarParams(1), AdamConfig{}).Step(tc.grad)
		})
	}
}

func TestAdamConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		config  AdamConfig
		wantErr bool
	}{
		{AdamConfig{}, false},
		{AdamConfig{LearningRate: 2e-3, Beta1: 0.99, Beta2: 0.99}, false},
		{AdamConfig{Beta1: 1}, true},
		{AdamConfig{Beta2: 1.5}, true},
		{AdamConfig{LearningRate: -1}, true},
	} {
		if err := tc.config.Validate(); (err != nil) != tc.wantErr {
			t.Errorf("Validate(%+v) = %v, want error: %v", tc.config, err, tc.wantErr)
		}
	}
}
