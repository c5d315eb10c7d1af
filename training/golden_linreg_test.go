package training

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ahmedtd/modax/losses"
	"github.com/ahmedtd/modax/models"
	"github.com/ahmedtd/modax/optim"
	"github.com/ahmedtd/modax/toolbox"
	"github.com/chewxy/math32"
	"github.com/rs/zerolog"
)

func TestAgreesWithHandcodedLinreg(t *testing.T) {
	alpha := float32(0.5)
	steps := 1000

	batchSize := 1000
	x, y := generate1DLinRegDataset(batchSize)

	model := &models.MLP{InputSize: 1, Features: []int{1}}
	params := model.Init(rand.New(rand.NewSource(1)))
	initM := params["mlp.0.weights"].V[0]
	initB := params["mlp.0.biases"].V[0]

	update := CreateUpdate(losses.LossFnMSE, model, x, y)
	result, err := Train(context.Background(), update, optim.NewGradientDescent(params, alpha), LoopConfig{MaxEpochs: steps}, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Unexpected error while training: %v", err)
	}
	gotM := result.State.Params()["mlp.0.weights"].V[0]
	gotB := result.State.Params()["mlp.0.biases"].V[0]
	t.Logf("toolkit m=%v b=%v loss=%v", gotM, gotB, lossFn(x, y, gotM, gotB))

	m, b := gradientDescentLinReg(x, y, alpha, steps, initM, initB)
	t.Logf("original m=%v b=%v loss=%v", m, b, lossFn(x, y, m, b))

	if math32.Abs(gotM-m) > 0.001 {
		t.Errorf("Disagreement on m parameter; got %v, want %v", gotM, m)
	}

	if math32.Abs(gotB-b) > 0.001 {
		t.Errorf("Disagreement on b parameter; got %v, want %v", gotB, b)
	}

	// The loss trace is the handcoded loss at each step's starting point.
	if want := lossFn(x, y, initM, initB); math32.Abs(result.Losses[0]-want) > 1e-3*want {
		t.Errorf("Disagreement on initial loss; got %v, want %v", result.Losses[0], want)
	}
}

func TestAgreesWithGolden2DLinreg(t *testing.T) {
	alpha := float32(0.5)
	steps := 2000

	batchSize := 1000
	x, y := generate2DLinRegDataset(batchSize)

	model := &models.MLP{InputSize: 2, Features: []int{1}}
	params := model.Init(rand.New(rand.NewSource(1)))
	initial := params.Clone()

	update := CreateUpdate(losses.LossFnMSE, model, x, y)
	state := optim.State(optim.NewGradientDescent(params, alpha))
	for i := 0; i < steps; i++ {
		var err error
		state, _, err = update(state)
		if err != nil {
			t.Fatalf("Unexpected error at step %d: %v", i, err)
		}
	}
	w := state.Params()["mlp.0.weights"]
	gotB := state.Params()["mlp.0.biases"].V[0]
	t.Logf("toolkit m0=%v m1=%v b=%v loss=%v", w.V[0], w.V[1], gotB, mseLoss2D(x, y, w.V[0], w.V[1], gotB))

	m0, m1, b := gradientDescent2DLinReg(x, y, alpha, steps, initial["mlp.0.weights"].V[0], initial["mlp.0.weights"].V[1], initial["mlp.0.biases"].V[0])
	t.Logf("original m0=%v m1=%v b=%v loss=%v", m0, m1, b, mseLoss2D(x, y, m0, m1, b))

	if math32.Abs(w.V[0]-m0) > 0.001 {
		t.Errorf("Disagreement on m0 parameter; got %v, want %v", w.V[0], m0)
	}

	if math32.Abs(w.V[1]-m1) > 0.001 {
		t.Errorf("Disagreement on m1 parameter; got %v, want %v", w.V[1], m1)
	}

	if math32.Abs(gotB-b) > 0.001 {
		t.Errorf("Disagreement on b parameter; got %v, want %v", gotB, b)
	}
}

func generate1DLinRegDataset(m int) (x, y *toolbox.AF32) {
	r := rand.New(rand.NewSource(12345))

	x = toolbox.MakeAF32(m, 1)
	y = toolbox.MakeAF32(m, 1)

	for i := 0; i < m; i++ {
		// Normalization is important --- if I multiply x1 * 1000, the loss is
		// huge and the model blows up with NaNs.
		x1 := r.Float32()
		y1 := 10*x1 + 30

		// Perturb the point a little bit
		y1 += 0.1*math32.Sin(0.001*x1) + (r.Float32()-0.5)*10

		x.Set2(i, 0, x1)
		y.Set2(i, 0, y1)
	}

	return x, y
}

func lossFn(x, y *toolbox.AF32, m, b float32) float32 {
	loss := float32(0)
	for i := 0; i < x.Rows(); i++ {
		pred := m*x.At2(i, 0) + b
		loss += (pred - y.At2(i, 0)) * (pred - y.At2(i, 0)) / (2 * float32(x.Rows()))
	}
	return loss
}

func gradientFn(x, y *toolbox.AF32, m, b float32) (gradM, gradB float32) {
	gradB = float32(0)
	gradM = float32(0)
	for i := 0; i < x.Rows(); i++ {
		pred := m*x.At2(i, 0) + b
		gradM += (pred - y.At2(i, 0)) * x.At2(i, 0) / float32(x.Rows())
		gradB += (pred - y.At2(i, 0)) / float32(x.Rows())
	}
	return gradM, gradB
}

func gradientDescentLinReg(x, y *toolbox.AF32, learningRate float32, steps int, initM, initB float32) (m, b float32) {
	m = initM
	b = initB
	for i := 0; i < steps; i++ {
		gradM, gradB := gradientFn(x, y, m, b)
		m = m - learningRate*gradM
		b = b - learningRate*gradB
	}
	return m, b
}

func generate2DLinRegDataset(m int) (x, y *toolbox.AF32) {
	r := rand.New(rand.NewSource(12345))

	x = toolbox.MakeAF32(m, 2)
	y = toolbox.MakeAF32(m, 1)

	for k := 0; k < m; k++ {
		x0 := r.Float32()
		x1 := r.Float32()
		y0 := 10*x0 + 3*x1 + 30

		// Perturb the point a little bit
		y0 += 0.1*math32.Sin(0.001*x0) + (r.Float32()-0.5)*0.1

		x.Set2(k, 0, x0)
		x.Set2(k, 1, x1)
		y.Set2(k, 0, y0)
	}

	return x, y
}

func mseLoss2D(x, y *toolbox.AF32, m0, m1, b float32) float32 {
	loss := float32(0)
	for k := 0; k < x.Rows(); k++ {
		pred := m0*x.At2(k, 0) + m1*x.At2(k, 1) + b
		loss += (pred - y.At2(k, 0)) * (pred - y.At2(k, 0)) / (2 * float32(x.Rows()))
	}
	return loss
}

func gradientDescent2DLinReg(x, y *toolbox.AF32, learningRate float32, steps int, m0, m1, b float32) (float32, float32, float32) {
	for i := 0; i < steps; i++ {
		gradM0 := float32(0)
		gradM1 := float32(0)
		gradB := float32(0)
		for k := 0; k < x.Rows(); k++ {
			pred := m0*x.At2(k, 0) + m1*x.At2(k, 1) + b
			gradM0 += (pred - y.At2(k, 0)) * x.At2(k, 0) / float32(x.Rows())
			gradM1 += (pred - y.At2(k, 0)) * x.At2(k, 1) / float32(x.Rows())
			gradB += (pred - y.At2(k, 0)) / float32(x.Rows())
		}
		m0 = m0 - learningRate*gradM0
		m1 = m1 - learningRate*gradM1
		b = b - learningRate*gradB
	}
	return m0, m1, b
}
