package stats

import (
	"math"
	"time"
)

const (
	slopeThreshold = 0.1
	voteThreshold  = 0.1
	// confidenceRefPoints is the series length at which a perfect fit
	// reaches full confidence.
	confidenceRefPoints = 100
)

// linearRegression fits y = slope*x + intercept over x = 0..n-1 by
// ordinary least squares and reports the coefficient of determination.
// Fewer than two points or a constant series yield a flat, zero-R2 fit.
func linearRegression(values []float64) (slope, intercept, rSquared float64) {
	n := float64(len(values))
	if n < 2 {
		if n == 1 {
			return 0, values[0], 0
		}
		return 0, 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range values {
		fitted := slope*float64(i) + intercept
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fitted) * (y - fitted)
	}
	if ssTot == 0 {
		return slope, intercept, 0
	}
	rSquared = 1 - ssRes/ssTot
	if rSquared < 0 {
		rSquared = 0
	}
	return slope, intercept, rSquared
}

// rmse is the root mean squared error of the fit over x = 0..n-1.
func rmse(values []float64, slope, intercept float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for i, y := range values {
		r := y - (slope*float64(i) + intercept)
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(values)))
}

// analyzeTrend runs the regression for one test+metric series and
// classifies its direction. For throughput a rising slope improves the
// verdict; every other metric is lower-is-better, so the sign inverts.
func analyzeTrend(testName, metric string, values []float64, timespanMs int64, now time.Time) TrendAnalysis {
	slope, _, r2 := linearRegression(values)

	direction := TrendStable
	switch {
	case slope > slopeThreshold:
		direction = TrendDegrading
	case slope < -slopeThreshold:
		direction = TrendImproving
	}
	if metric == MetricThroughput {
		switch direction {
		case TrendDegrading:
			direction = TrendImproving
		case TrendImproving:
			direction = TrendDegrading
		}
	}

	strength := 0.0
	if m := mean(values); m != 0 {
		strength = math.Min(math.Abs(slope)/math.Abs(m)*10, 1)
	}

	confidence := 0.0
	if n := len(values); n > 1 {
		confidence = math.Min(r2*math.Log(float64(n))/math.Log(confidenceRefPoints), 1)
	}

	return TrendAnalysis{
		TestName:    testName,
		Metric:      metric,
		Direction:   direction,
		Slope:       slope,
		RSquared:    r2,
		Strength:    strength,
		Confidence:  confidence,
		SampleCount: len(values),
		TimespanMs:  timespanMs,
		AnalyzedAt:  now,
	}
}

// overallDirection collapses a set of trends into one weighted vote.
// Each trend contributes its signed confidence*strength; the mean score
// must clear the vote threshold to move off stable.
func overallDirection(trends []TrendAnalysis) (TrendDirection, float64) {
	if len(trends) == 0 {
		return TrendStable, 0
	}
	score := 0.0
	for _, t := range trends {
		switch t.Direction {
		case TrendImproving:
			score += t.Confidence * t.Strength
		case TrendDegrading:
			score -= t.Confidence * t.Strength
		}
	}
	score /= float64(len(trends))
	switch {
	case score > voteThreshold:
		return TrendImproving, score
	case score < -voteThreshold:
		return TrendDegrading, score
	}
	return TrendStable, score
}

// predictMetric extrapolates the fitted line one step past the series
// and widens it into a 95% interval from the residual error.
func predictMetric(testName, metric string, values []float64, now time.Time) PerformancePrediction {
	slope, intercept, _ := linearRegression(values)
	predicted := slope*float64(len(values)) + intercept
	errRMSE := rmse(values, slope, intercept)
	margin := 1.96 * errRMSE

	confidence := 0.1
	if predicted != 0 {
		confidence = math.Max(0.1, 1-errRMSE/math.Abs(predicted))
	}

	return PerformancePrediction{
		TestName:       testName,
		Metric:         metric,
		PredictedValue: predicted,
		Interval: ConfidenceInterval{
			Lower: predicted - margin,
			Upper: predicted + margin,
		},
		Confidence:      confidence,
		Model:           "linear_regression",
		TargetTimestamp: now.Add(24 * time.Hour),
		GeneratedAt:     now,
	}
}
