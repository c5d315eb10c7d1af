package toolbox

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/chewxy/math32"
)

func denseDot2Naive(x []float32, y []float32) float32 {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	var sum float32
	for i := range len(x) {
		sum += x[i] * y[i]
	}
	return sum
}

func TestDenseDot2AgreesWithNaive(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	for _, size := range []int{0, 1, 3, 4, 5, 31, 32, 33, 257} {
		x := make([]float32, size)
		y := make([]float32, size)
		for i := range size {
			x[i] = r.Float32()
			y[i] = r.Float32()
		}

		got := denseDot2(x, y)
		want := denseDot2Naive(x, y)
		if math32.Abs(got-want) > 1e-4*math32.Max(1, math32.Abs(want)) {
			t.Errorf("size=%d: got %v, want %v", size, got, want)
		}
	}
}

func TestDenseAxpy(t *testing.T) {
	x := []float32{1, 2, 3}
	y := []float32{10, 20, 30}
	denseAxpy(2, x, y)

	want := []float32{12, 24, 36}
	for i := range want {
		if y[i] != want[i] {
			t.Errorf("y[%d] = %v, want %v", i, y[i], want[i])
		}
	}
}

func BenchmarkDenseDot2(b *testing.B) {
	b.Run("impl=naive", func(b *testing.B) {
		for i := 8; i < 16; i++ {
			b.Run("size="+strconv.Itoa(2<<i), func(b *testing.B) {
				x := make([]float32, 2<<i)
				y := make([]float32, 2<<i)
				for i := range 2 << i {
					x[i] = rand.Float32()
					y[i] = rand.Float32()
				}
				for b.Loop() {
					_ = denseDot2Naive(x, y)
				}
			})
		}
	})
	b.Run("impl=unrolled", func(b *testing.B) {
		for i := 8; i < 16; i++ {
			b.Run("size="+strconv.Itoa(2<<i), func(b *testing.B) {
				x := make([]float32, 2<<i)
				y := make([]float32, 2<<i)
				for i := range 2 << i {
					x[i] = rand.Float32()
					y[i] = rand.Float32()
				}
				for b.Loop() {
					_ = denseDot2(x, y)
				}
			})
		}
	})
}
