package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSummarize(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	s := Summarize(values)

	if s.Count != 10 {
		t.Fatalf("expected count 10, got %d", s.Count)
	}
	if !almostEqual(s.Mean, 5.5, 1e-9) {
		t.Errorf("expected mean 5.5, got %f", s.Mean)
	}
	if !almostEqual(s.Median, 5.5, 1e-9) {
		t.Errorf("expected median 5.5, got %f", s.Median)
	}
	if !almostEqual(s.StdDev, 3.0276503541, 1e-6) {
		t.Errorf("expected stddev ~3.028, got %f", s.StdDev)
	}
	if s.Min != 1 || s.Max != 10 {
		t.Errorf("expected min 1 max 10, got %f/%f", s.Min, s.Max)
	}
	if !almostEqual(s.P95, 9.55, 1e-9) {
		t.Errorf("expected p95 9.55, got %f", s.P95)
	}
	if !almostEqual(s.P99, 9.91, 1e-9) {
		t.Errorf("expected p99 9.91, got %f", s.P99)
	}
	if !almostEqual(s.Skewness, 0, 1e-9) {
		t.Errorf("expected zero skewness for symmetric series, got %f", s.Skewness)
	}
	if !almostEqual(s.Kurtosis, -1.19987, 1e-4) {
		t.Errorf("expected kurtosis ~-1.2 for uniform series, got %f", s.Kurtosis)
	}
}

func TestSummarizeDegenerate(t *testing.T) {
	if s := Summarize(nil); s.Count != 0 || s.Mean != 0 {
		t.Fatalf("expected zero summary for empty input, got %+v", s)
	}

	s := Summarize([]float64{42})
	if s.Count != 1 || s.Mean != 42 || s.StdDev != 0 || s.Skewness != 0 || s.Kurtosis != 0 {
		t.Fatalf("expected neutral single-point summary, got %+v", s)
	}

	s = Summarize([]float64{7, 7, 7, 7, 7})
	if s.StdDev != 0 || s.Skewness != 0 || s.Kurtosis != 0 {
		t.Fatalf("expected zero spread for constant series, got %+v", s)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{25, 17.5},
		{50, 25},
		{100, 40},
		{110, 40},
		{-5, 10},
	}
	for _, tc := range tests {
		if got := percentile(sorted, tc.p); !almostEqual(got, tc.want, 1e-9) {
			t.Errorf("percentile(%v) = %f, want %f", tc.p, got, tc.want)
		}
	}
}

func TestSkewnessRightTail(t *testing.T) {
	if got := Summarize([]float64{1, 1, 1, 1, 10}).Skewness; got <= 0 {
		t.Fatalf("expected positive skew for right-tailed series, got %f", got)
	}
	if got := Summarize([]float64{10, 10, 10, 10, 1}).Skewness; got >= 0 {
		t.Fatalf("expected negative skew for left-tailed series, got %f", got)
	}
}
