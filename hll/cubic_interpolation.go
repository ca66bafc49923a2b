package hll

import "fmt"

// interpolateTable evaluates a cubic Lagrange interpolant through four
// neighboring (x, y) samples of a lookup table at the query point x. The
// four neighbors are chosen by locating the bracketing interval in xArr and
// then sliding that window so it never runs off either end of the table.
// yAt supplies the y-value for a given table index: either a direct lookup
// (coupon estimator's stored table) or index*stride (the fixed-stride
// tables used by the HIP/composite estimator).
func interpolateTable(xArr []float64, x float64, yAt func(i int) float64) (float64, error) {
	n := len(xArr)
	if n < 4 {
		return 0, fmt.Errorf("X value out of range: %f", x)
	}
	last := n - 1
	if x == xArr[last] {
		return yAt(last), nil
	}

	straddle, err := bracketIndex(xArr, x)
	if err != nil {
		return 0, err
	}
	if straddle < 0 || straddle > n-2 {
		return 0, fmt.Errorf("offset out of range: %d", straddle)
	}

	window := straddle - 1
	switch {
	case straddle == 0:
		window = straddle
	case straddle == n-2:
		window = straddle - 2
	}

	var xs, ys [4]float64
	for i := 0; i < 4; i++ {
		xs[i] = xArr[window+i]
		ys[i] = yAt(window + i)
	}
	return lagrangeCubic(xs, ys, x), nil
}

// lagrangeCubic evaluates the unique cubic passing through four (x, y)
// pairs at the query point x, via the standard Lagrange basis.
func lagrangeCubic(xs, ys [4]float64, x float64) float64 {
	var sum float64
	for i := 0; i < 4; i++ {
		numer, denom := 1.0, 1.0
		for j := 0; j < 4; j++ {
			if j == i {
				continue
			}
			numer *= x - xs[j]
			denom *= xs[i] - xs[j]
		}
		sum += ys[i] * numer / denom
	}
	return sum
}

// bracketIndex finds the largest index i such that xArr[i] <= x < xArr[i+1],
// via iterative binary search over the (assumed sorted) table.
func bracketIndex(xArr []float64, x float64) (int, error) {
	if len(xArr) < 2 || x < xArr[0] || x > xArr[len(xArr)-1] {
		return 0, fmt.Errorf("X value out of range: %f", x)
	}
	left, right := 0, len(xArr)-1
	for left+1 < right {
		mid := left + (right-left)/2
		if xArr[mid] <= x {
			left = mid
		} else {
			right = mid
		}
	}
	return left, nil
}

func usingXAndYTables(xArr []float64, yArr []float64, x float64) (float64, error) {
	if len(xArr) != len(yArr) {
		return 0, fmt.Errorf("X value out of range: %f", x)
	}
	return interpolateTable(xArr, x, func(i int) float64 { return yArr[i] })
}

func usingXArrAndYStride(xArr []float64, yStride float64, x float64) (float64, error) {
	if x < xArr[0] || x > xArr[len(xArr)-1] {
		return 0, fmt.Errorf("X value out of range: %f", x)
	}
	return interpolateTable(xArr, x, func(i int) float64 { return yStride * float64(i) })
}
