package data

import (
	"fmt"

	"github.com/ahmedtd/modax/toolbox"
	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
)

const (
	xArrayName = "x.npy"
	yArrayName = "y.npy"
)

// Save writes ds to an npz archive at path.  The arrays are stored as
// float64 so numpy reads them without conversion.
func Save(path string, ds *Dataset) error {
	w, err := npz.Create(path)
	if err != nil {
		return fmt.Errorf("while creating dataset file: %w", err)
	}

	if err := w.Write(xArrayName, toDense(ds.X)); err != nil {
		w.Close()
		return fmt.Errorf("while writing %s: %w", xArrayName, err)
	}
	if err := w.Write(yArrayName, toDense(ds.Y)); err != nil {
		w.Close()
		return fmt.Errorf("while writing %s: %w", yArrayName, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("while closing dataset file: %w", err)
	}
	return nil
}

// Load reads a dataset written by Save, or by numpy.savez with arrays named x
// and y.
func Load(path string) (*Dataset, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening dataset file: %w", err)
	}
	defer r.Close()

	x, err := loadMatrix(r, xArrayName)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", xArrayName, err)
	}
	if x.Shape[1] != 2 {
		return nil, fmt.Errorf("%s must have columns (t, x); got shape %v", xArrayName, x.Shape)
	}

	y, err := loadMatrix(r, yArrayName)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", yArrayName, err)
	}
	if y.Shape[1] != 1 {
		return nil, fmt.Errorf("%s must have one column; got shape %v", yArrayName, y.Shape)
	}
	if y.Shape[0] != x.Shape[0] {
		return nil, fmt.Errorf("%s has %d samples but %s has %d", yArrayName, y.Shape[0], xArrayName, x.Shape[0])
	}

	return &Dataset{X: x, Y: y}, nil
}

func toDense(a *toolbox.AF32) *mat.Dense {
	return mat.NewDense(a.Rows(), a.Cols(), a.ToFloat64())
}

// loadMatrix reads a 1-D or 2-D float64 array.  1-D arrays become a single
// column.
func loadMatrix(r *npz.Reader, name string) (*toolbox.AF32, error) {
	header := r.Header(name)
	if header == nil {
		return nil, fmt.Errorf("no array named %s", name)
	}

	shape := header.Descr.Shape
	var rows, cols int
	switch len(shape) {
	case 1:
		rows, cols = shape[0], 1
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("want a 1-D or 2-D array; got shape %v", shape)
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("array is empty; got shape %v", shape)
	}

	var raw []float64
	if err := r.Read(name, &raw); err != nil {
		return nil, fmt.Errorf("while reading float64 array: %w", err)
	}
	if len(raw) != rows*cols {
		return nil, fmt.Errorf("array has %d values for shape %v", len(raw), shape)
	}

	return toolbox.AF32FromFloat64(raw, rows, cols), nil
}
