package toolbox

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestZeroSizedShapesPanic(t *testing.T) {
	testCases := []struct {
		desc string
		fn   func()
	}{
		{"make zero rows", func() { MakeAF32(0, 2) }},
		{"make zero columns", func() { MakeAF32(3, 0) }},
		{"make negative", func() { MakeAF32(-1) }},
		{"reshape to zero", func() { AF32Reshape(MakeAF32(2, 3), 0, 6) }},
		{"from float64 with zero rows", func() { AF32FromFloat64(nil, 0, 1) }},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected a panic")
				}
			}()
			tc.fn()
		})
	}
}

func TestReshapeSharesStorage(t *testing.T) {
	a := AF32FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := AF32Reshape(a, 3, 2)

	if diff := cmp.Diff(b.Shape, []int{3, 2}); diff != "" {
		t.Errorf("Wrong shape; diff (-got +want)\n%s", diff)
	}
	b.Set2(2, 1, 60)
	if a.V[5] != 60 {
		t.Errorf("Reshape copied its storage; a.V[5] = %v", a.V[5])
	}
}
