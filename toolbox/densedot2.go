package toolbox

// denseDot2 returns the inner product of x and y.
//
// Four independent accumulators keep the adds from serializing on a single
// register; the tail is handled one element at a time.
func denseDot2(x []float32, y []float32) float32 {
	if len(x) != len(y) {
		panic("mismatched length")
	}

	var s0, s1, s2, s3 float32

	// Writing anything slice indexing related in constant can reduce the bound checks.
	for len(x) >= 4 && len(y) >= 4 {
		s0 += x[0] * y[0]
		s1 += x[1] * y[1]
		s2 += x[2] * y[2]
		s3 += x[3] * y[3]
		x = x[4:]
		y = y[4:]
	}

	sum := (s0 + s1) + (s2 + s3)

	// Handle the tail.
	if len(x) == len(y) {
		for i := range len(x) {
			sum += x[i] * y[i]
		}
	}

	return sum
}

// denseAxpy computes y += alpha * x.
func denseAxpy(alpha float32, x []float32, y []float32) {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	for i := range len(x) {
		y[i] += alpha * x[i]
	}
}
