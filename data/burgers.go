// Package data generates and stores datasets for model discovery.
//
// A dataset is a pair of arrays: X of shape (N, 2) with columns (t, x), and
// Y of shape (N, 1) holding the field u(t, x).
package data

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ahmedtd/modax/toolbox"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Dataset is a set of samples of a scalar field.
type Dataset struct {
	X *toolbox.AF32 // (N, 2), columns (t, x)
	Y *toolbox.AF32 // (N, 1)
}

// Burgers evaluates the solution of Burgers' equation
//
//	u_t = v u_xx - u u_x
//
// starting from a delta peak of strength a at x = 0 and t = 0.  t must be
// positive.
func Burgers(x, t, v, a float64) float64 {
	r := a / (2 * v)
	z := x / math.Sqrt(4*v*t)
	e := math.Expm1(r)
	return math.Sqrt(v/(math.Pi*t)) * e * math.Exp(-z*z) / (1 + e/2*math.Erfc(z))
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Grid lays out every (t, x) pair with t varying slowest.  The result has
// shape (len(t)*len(x), 2).
func Grid(t, x []float64) *toolbox.AF32 {
	out := toolbox.MakeAF32(len(t)*len(x), 2)
	for i, ti := range t {
		for j, xj := range x {
			k := i*len(x) + j
			out.Set2(k, 0, float32(ti))
			out.Set2(k, 1, float32(xj))
		}
	}
	return out
}

// BurgersConfig describes a sampled Burgers dataset.
type BurgersConfig struct {
	XMin   float64 `yaml:"x_min"`
	XMax   float64 `yaml:"x_max"`
	XCount int     `yaml:"x_count"`

	TMin   float64 `yaml:"t_min"`
	TMax   float64 `yaml:"t_max"`
	TCount int     `yaml:"t_count"`

	Viscosity float64 `yaml:"viscosity"`
	Strength  float64 `yaml:"strength"`

	// Noise is the standard deviation of added gaussian noise, relative to
	// the standard deviation of the clean field.
	Noise float64 `yaml:"noise"`
	Seed  int64   `yaml:"seed"`
}

// DefaultBurgersConfig samples 100 points in x over [-3, 4] and 20 points in
// t over [0.5, 5] of a field with viscosity 0.1 and strength 1.
func DefaultBurgersConfig() BurgersConfig {
	return BurgersConfig{
		XMin:      -3,
		XMax:      4,
		XCount:    100,
		TMin:      0.5,
		TMax:      5,
		TCount:    20,
		Viscosity: 0.1,
		Strength:  1,
		Seed:      42,
	}
}

func (c BurgersConfig) Validate() error {
	if c.XCount < 1 || c.TCount < 1 {
		return fmt.Errorf("grid must have at least one point per axis; got %d x %d", c.TCount, c.XCount)
	}
	if c.TMin <= 0 {
		return fmt.Errorf("times must be positive; got t_min=%v", c.TMin)
	}
	if c.TMax < c.TMin || c.XMax < c.XMin {
		return fmt.Errorf("empty domain t=[%v, %v] x=[%v, %v]", c.TMin, c.TMax, c.XMin, c.XMax)
	}
	if c.Viscosity <= 0 {
		return fmt.Errorf("viscosity must be positive; got %v", c.Viscosity)
	}
	if c.Noise < 0 {
		return fmt.Errorf("noise must be non-negative; got %v", c.Noise)
	}
	return nil
}

// BurgersDataset samples the Burgers solution on the configured grid.
func BurgersDataset(cfg BurgersConfig) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("while validating dataset config: %w", err)
	}

	t := Linspace(cfg.TMin, cfg.TMax, cfg.TCount)
	x := Linspace(cfg.XMin, cfg.XMax, cfg.XCount)

	X := Grid(t, x)
	u := make([]float64, len(t)*len(x))
	for i, ti := range t {
		for j, xj := range x {
			u[i*len(x)+j] = Burgers(xj, ti, cfg.Viscosity, cfg.Strength)
		}
	}

	if cfg.Noise > 0 {
		AddNoise(u, cfg.Noise, rand.New(rand.NewSource(cfg.Seed)))
	}

	return &Dataset{
		X: X,
		Y: toolbox.AF32FromFloat64(u, len(u), 1),
	}, nil
}

// AddNoise perturbs y in place with gaussian noise whose standard deviation
// is level times the standard deviation of y.
func AddNoise(y []float64, level float64, r *rand.Rand) {
	sigma := level * stat.PopStdDev(y, nil)
	for i := range y {
		y[i] += sigma * r.NormFloat64()
	}
}
