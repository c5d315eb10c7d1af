package models

import (
	"fmt"
	"math"

	"github.com/ahmedtd/modax/toolbox"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rcond is the float32 machine epsilon.
const rcond = 0x1p-23

// LeastSquares fits coeffs minimizing ||theta @ coeffs - dt||² over the
// library columns selected by mask.  Unselected coefficients are zero.  A nil
// mask selects every column.  Rank-deficient libraries, such as a zero or
// repeated column, get the minimum-norm solution.
//
// theta is shape (batchSize, numTerms), dt is shape (batchSize, 1).  The
// result is shape (numTerms, 1).
func LeastSquares(theta, dt *toolbox.AF32, mask []bool) (*toolbox.AF32, error) {
	if len(theta.Shape) != 2 {
		return nil, fmt.Errorf("theta must be 2-D; got shape %v", theta.Shape)
	}
	n, k := theta.Shape[0], theta.Shape[1]
	if dt.Size() != n {
		return nil, fmt.Errorf("dt shape %v does not match theta shape %v", dt.Shape, theta.Shape)
	}
	if mask != nil && len(mask) != k {
		return nil, fmt.Errorf("mask has %d entries for %d terms", len(mask), k)
	}

	active := make([]int, 0, k)
	for j := 0; j < k; j++ {
		if mask == nil || mask[j] {
			active = append(active, j)
		}
	}

	coeffs := toolbox.MakeAF32(k, 1)
	if len(active) == 0 {
		return coeffs, nil
	}
	if len(active) > n {
		return nil, fmt.Errorf("underdetermined fit: %d terms for %d samples", len(active), n)
	}

	a := mat.NewDense(n, len(active), nil)
	for i := 0; i < n; i++ {
		for c, j := range active {
			a.Set(i, c, float64(theta.At2(i, j)))
		}
	}
	b := mat.NewDense(n, 1, dt.ToFloat64())

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("while factorizing library: SVD did not converge")
	}
	// Singular values at or below rcond*max(rows, terms)*σ_max count as zero.
	rank := svd.Rank(rcond * float64(max(n, len(active))))
	if rank == 0 {
		return coeffs, nil
	}
	var x mat.Dense
	svd.SolveTo(&x, b, rank)

	for c, j := range active {
		coeffs.V[j] = float32(x.At(c, 0))
	}
	return coeffs, nil
}

// NormalizedCoeffs rescales each coefficient by the norm of its library
// column relative to the norm of dt, so that coefficients of differently
// scaled terms can be compared against one threshold.
func NormalizedCoeffs(theta, dt, coeffs *toolbox.AF32) []float64 {
	n, k := theta.Shape[0], theta.Shape[1]

	dtNorm := floats.Norm(dt.ToFloat64(), 2)
	if dtNorm == 0 {
		dtNorm = 1
	}

	col := make([]float64, n)
	out := make([]float64, k)
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			col[i] = float64(theta.At2(i, j))
		}
		out[j] = float64(coeffs.V[j]) * floats.Norm(col, 2) / dtNorm
	}
	return out
}

// ThresholdMask selects the terms whose normalized coefficient has magnitude
// at least threshold.
func ThresholdMask(normalized []float64, threshold float64) []bool {
	mask := make([]bool, len(normalized))
	for j, c := range normalized {
		mask[j] = math.Abs(c) >= threshold
	}
	return mask
}
