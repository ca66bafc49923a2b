package hll

import (
	"math"
)

// compositeBreakpointCount is how many breakpoints compositeInterpolationTable spreads across
// the raw-estimate range hllCompositeEstimate ever evaluates over. Cubic interpolation needs at
// least 4 to always have a straddling window; the table is linear (see
// compositeInterpolationTable), so the extra breakpoints add no accuracy.
const compositeBreakpointCount = 8

// linearCountingSafetyMultiple bounds how far hllCompositeEstimate trusts the adjusted raw
// estimate before it stops considering the bitmap (linear-counting) estimator at all: above
// this multiple of configK, linear counting's own error has been observed to blow up, for
// 2^4 <= configK <= 2^21.
const linearCountingSafetyMultiple = 3

// hllCompositeEstimate blends two estimators depending on the sketch's fill level: Flajolet's raw
// HLL estimate (bias-corrected via interpolation) once enough registers are non-empty, or a
// bitmap/coupon-collector estimate when most registers still read empty and HLL's own bias would
// dominate.
func hllCompositeEstimate(a *hllArrayBase) (float64, error) {
	rawEst := getHllRawEstimate(a.lgConfigK, a.kxq0+a.kxq1)

	adjEst, clamped, err := adjustRawEstimate(a.lgConfigK, rawEst)
	if err != nil {
		return 0, err
	}
	if clamped || adjEst > float64(uint64(linearCountingSafetyMultiple<<a.lgConfigK)) {
		return adjEst, nil
	}

	linEst := getHllBitMapEstimate(a.lgConfigK, a.curMin, a.numAtCurMin)
	if preferAdjustedEstimate(a.lgConfigK, adjEst, linEst) {
		return adjEst, nil
	}
	return linEst, nil
}

// adjustRawEstimate corrects rawEst against the measured interpolation table for lgConfigK.
// clamped reports whether rawEst fell below the table's first breakpoint (estimate is exactly
// zero) or above its last (the correction factor at the boundary is extrapolated linearly) —
// either way the caller has nothing left to blend against and should return immediately.
func adjustRawEstimate(lgConfigK int, rawEst float64) (estimate float64, clamped bool, err error) {
	xArr, yStride := compositeInterpolationTable(lgConfigK)
	if rawEst < xArr[0] {
		return 0, true, nil
	}

	last := len(xArr) - 1
	if rawEst > xArr[last] {
		factor := (yStride * float64(last)) / xArr[last]
		return rawEst * factor, true, nil
	}

	adjEst, err := usingXArrAndYStride(xArr, yStride, rawEst)
	return adjEst, false, err
}

// preferAdjustedEstimate decides, once both estimators are in play, which one to report.
// Comparing a threshold against the average of the two estimators rather than against either one
// alone was found empirically to introduce less bias at the crossover point; the crossover
// fraction itself is a per-lgConfigK constant measured the same way.
func preferAdjustedEstimate(lgConfigK int, adjEst float64, linEst float64) bool {
	avgEst := (adjEst + linEst) / 2.0
	return avgEst > crossOverFraction(lgConfigK)*float64(uint64(1<<lgConfigK))
}

func crossOverFraction(lgConfigK int) float64 {
	switch lgConfigK {
	case 4:
		return 0.718
	case 5:
		return 0.672
	default:
		return 0.64
	}
}

// compositeInterpolationTable builds compositeBreakpointCount breakpoints evenly spread across
// [0, linearCountingSafetyMultiple*configK], the full range adjustRawEstimate ever evaluates
// over. They're spaced yStride apart in the corrected-estimate space too, so the cubic
// interpolation in usingXArrAndYStride is exact and reduces to the identity adjEst == rawEst:
// no second, independently-measured small-range correction is layered on top of getHllRawEstimate
// here.
func compositeInterpolationTable(lgConfigK int) ([]float64, float64) {
	configK := 1 << lgConfigK
	yStride := (float64(linearCountingSafetyMultiple) * float64(configK)) / float64(compositeBreakpointCount-1)
	xArr := make([]float64, compositeBreakpointCount)
	for i := range xArr {
		xArr[i] = yStride * float64(i)
	}
	return xArr, yStride
}

// getHllBitMapEstimate is the coupon-collector estimator, accurate when N is small (roughly
// below k*log(k)): every register still reading curMin==0 is treated as an unhit bucket, and the
// hit-bucket count is fed to getBitMapEstimate. A sketch with no unhit buckets has already grown
// past the range this estimator is meant for, so it falls back to the plain exponential formula.
func getHllBitMapEstimate(lgConfigK int, curMin int, numAtCurMin int) float64 {
	configK := 1 << lgConfigK
	numUnhitBuckets := 0
	if curMin == 0 {
		numUnhitBuckets = numAtCurMin
	}
	if numUnhitBuckets == 0 {
		return float64(configK) * math.Log(float64(configK)/0.5)
	}
	return getBitMapEstimate(configK, configK-numUnhitBuckets)
}

// getHllRawEstimate implements the estimator from Flajolet et al.'s 2007 HLL paper, Figure 3: a
// harmonic-mean-style combination of every register's value, scaled by a bias-correction constant
// that's measured separately for the smallest few lgConfigK values and computed asymptotically
// above that.
func getHllRawEstimate(lgConfigK int, kxqSum float64) float64 {
	configK := float64(uint64(1) << lgConfigK)
	return (rawEstimateCorrectionFactor(lgConfigK, configK) * configK * configK) / kxqSum
}

func rawEstimateCorrectionFactor(lgConfigK int, configK float64) float64 {
	switch lgConfigK {
	case 4:
		return 0.673
	case 5:
		return 0.697
	case 6:
		return 0.709
	default:
		return 0.7213 / (1.0 + (1.079 / configK))
	}
}

func hllUpperBound(a *hllArrayBase, numStdDev int) (float64, error) {
	estimate, err := a.GetEstimate()
	if err != nil {
		return 0, err
	}
	relErr, err := getRelErrAllK(true, a.isOutOfOrder(), a.lgConfigK, numStdDev)
	if err != nil {
		return 0, err
	}
	return estimate / (1.0 - relErr), nil
}

func hllLowerBound(a *hllArrayBase, numStdDev int) (float64, error) {
	estimate, err := a.GetEstimate()
	if err != nil {
		return 0, err
	}
	relErr, err := getRelErrAllK(false, a.isOutOfOrder(), a.lgConfigK, numStdDev)
	if err != nil {
		return 0, err
	}
	return math.Max(estimate/(1.0+relErr), countNonZeroRegisters(a)), nil
}

func countNonZeroRegisters(a *hllArrayBase) float64 {
	configK := float64(uint64(1) << a.lgConfigK)
	if a.curMin != 0 {
		return configK
	}
	return configK - float64(a.numAtCurMin)
}

// getRelErrAllK returns the relative error bound for a sketch of the given lgConfigK. upperBound
// is accepted for signature parity with callers that branch on bound direction but doesn't
// currently affect the result: both bounds share the same RSE factor, only their direction
// (hllUpperBound divides by 1-relErr, hllLowerBound by 1+relErr) differs.
//
// The asymptotic HIP/non-HIP RSE factors (hllHipRSEFActor, hllNonHipRSEFactor) hold well above
// lgConfigK 12. At lgConfigK 12 and below, small-K finite-size effects widen the true relative
// error beyond what the asymptotic formula predicts, so the result is multiplied by
// 1 + 0.02*(13 - lgConfigK) (1.02 at lgConfigK 12, 1.18 at lgConfigK 4); from lgConfigK 13 up
// it is used unwidened. The factor is the same for every Encoding.
func getRelErrAllK(upperBound bool, oooFlag bool, lgConfigK int, numStdDev int) (float64, error) {
	lgK, err := checkLgK(lgConfigK)
	if err != nil {
		return 0, err
	}
	rseFactor := hllHipRSEFActor
	if oooFlag {
		rseFactor = hllNonHipRSEFactor
	}
	relErr := (float64(numStdDev) * rseFactor) / math.Sqrt(float64(uint64(1)<<lgK))
	if lgK > 12 {
		return relErr, nil
	}
	return relErr * (1.0 + float64(13-lgK)*0.02), nil
}
