package hll

import "math"

const eulerMascheroniConstant = 0.577215664901532860606512090082

// exactHarmonicNumbers holds H(0)..H(24) as exact rationals; below this
// threshold the asymptotic expansion below loses too much precision against
// the direct sum, so small n are just looked up.
var exactHarmonicNumbers = []float64{
	0.0,                        // 0
	1.0,                        // 1
	1.5,                        // 2
	11.0 / 6.0,                 // 3
	25.0 / 12.0,                // 4
	137.0 / 60.0,               // 5
	49.0 / 20.0,                // 6
	363.0 / 140.0,              // 7
	761.0 / 280.0,              // 8
	7129.0 / 2520.0,            // 9
	7381.0 / 2520.0,            // 10
	83711.0 / 27720.0,          // 11
	86021.0 / 27720.0,          // 12
	1145993.0 / 360360.0,       // 13
	1171733.0 / 360360.0,       // 14
	1195757.0 / 360360.0,       // 15
	2436559.0 / 720720.0,       // 16
	42142223.0 / 12252240.0,    // 17
	14274301.0 / 4084080.0,     // 18
	275295799.0 / 77597520.0,   // 19
	55835135.0 / 15519504.0,    // 20
	18858053.0 / 5173168.0,     // 21
	19093197.0 / 5173168.0,     // 22
	444316699.0 / 118982864.0,  // 23
	1347822955.0 / 356948592.0, // 24
}

// asymptoticTerms are the signed Euler-Maclaurin correction coefficients for
// x^-2, x^-4, x^-6, x^-8, applied above exactHarmonicNumbers' range. Four
// terms match the precision of the 25-entry exact table in float64.
var asymptoticTerms = []float64{-1.0 / 12.0, 1.0 / 120.0, -1.0 / 252.0, 1.0 / 240.0}

// getBitMapEstimate is the estimator for a flat, randomly-accessed bit map
// (as in a Bloom filter): bitVectorLength is the bit vector's length in
// bits (> 0), numBitsSet is how many of those bits are set (0..bitVectorLength).
func getBitMapEstimate(bitVectorLength int, numBitsSet int) float64 {
	unsetLen := bitVectorLength - numBitsSet
	return float64(bitVectorLength) * (harmonicNumber(bitVectorLength) - harmonicNumber(unsetLen))
}

// harmonicNumber returns H(n) = sum_{k=1}^{n} 1/k.
func harmonicNumber(n int) float64 {
	if n < len(exactHarmonicNumbers) {
		return exactHarmonicNumbers[n]
	}
	x := float64(n)
	sum := math.Log(x) + eulerMascheroniConstant + 1.0/(2.0*x)
	invSq := 1.0 / (x * x)
	pow := invSq
	for _, term := range asymptoticTerms {
		sum += pow * term
		pow *= invSq
	}
	return sum
}
