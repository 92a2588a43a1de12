package stats

import (
	"math"
	"sort"
)

// Summarize computes the descriptive profile of a series. Empty input
// yields a zero summary; degenerate cases (constant series, too few
// points for higher moments) produce zeros rather than NaN.
func Summarize(values []float64) SummaryStats {
	n := len(values)
	if n == 0 {
		return SummaryStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	m := mean(values)
	v := sampleVariance(values, m)
	return SummaryStats{
		Count:    n,
		Mean:     m,
		Median:   percentile(sorted, 50),
		StdDev:   math.Sqrt(v),
		Variance: v,
		Min:      sorted[0],
		Max:      sorted[n-1],
		P95:      percentile(sorted, 95),
		P99:      percentile(sorted, 99),
		Skewness: skewness(values, m),
		Kurtosis: kurtosis(values, m),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance uses the n-1 denominator. A single point has no spread.
func sampleVariance(values []float64, m float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(n-1)
}

func stdDev(values []float64) float64 {
	return math.Sqrt(sampleVariance(values, mean(values)))
}

// populationStdDev divides by n. The anomaly window uses this form so a
// two-point window still produces a usable spread.
func populationStdDev(values []float64, m float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// percentile interpolates linearly between the two nearest ranks.
// Input must already be sorted ascending.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// skewness is the adjusted Fisher-Pearson coefficient (bias corrected).
// Needs at least 3 points and nonzero spread.
func skewness(values []float64, m float64) float64 {
	n := float64(len(values))
	if n < 3 {
		return 0
	}
	m2 := 0.0
	m3 := 0.0
	for _, v := range values {
		d := v - m
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}

// kurtosis is the bias-corrected excess kurtosis, zero for a normal
// distribution. Needs at least 4 points and nonzero spread.
func kurtosis(values []float64, m float64) float64 {
	n := float64(len(values))
	if n < 4 {
		return 0
	}
	m2 := 0.0
	m4 := 0.0
	for _, v := range values {
		d := v - m
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	g2 := m4/(m2*m2) - 3
	return ((n+1)*g2 + 6) * (n - 1) / ((n - 2) * (n - 3))
}
