package stats

import "math"

const (
	maxAnomalyWindow = 20
	// maxDeviation caps the reported z-score when the trailing window
	// has zero spread, so persisted values stay finite.
	maxDeviation = 100.0

	highSeverityFactor   = 1.5
	mediumSeverityFactor = 1.2
)

// anomalyMetrics are the series scanned per test. Constant series
// produce no anomalies, so scanning optional metrics is harmless.
var anomalyMetrics = []string{
	MetricResponseTime,
	MetricThroughput,
	MetricErrorRate,
	MetricCPUUsage,
	MetricMemoryUsage,
}

// detectAnomalies slides a trailing window over one test+metric series
// and flags values whose z-score against the window exceeds the
// sensitivity threshold. The window covers up to 20 prior samples, or
// 80% of the series when shorter, and never includes the value under test.
func detectAnomalies(testName, metric string, samples []MetricSample, sensitivity Sensitivity) []AnomalyDetection {
	n := len(samples)
	window := maxAnomalyWindow
	if w := int(math.Floor(0.8 * float64(n))); w < window {
		window = w
	}
	if window < 2 {
		return nil
	}

	threshold := sensitivity.Threshold()
	var anomalies []AnomalyDetection
	values := make([]float64, n)
	for i, s := range samples {
		values[i] = s.Value(metric)
	}

	for i := window; i < n; i++ {
		trailing := values[i-window : i]
		m := mean(trailing)
		sd := populationStdDev(trailing, m)

		v := values[i]
		var z float64
		switch {
		case sd > 0:
			z = (v - m) / sd
		case v != m:
			z = math.Copysign(maxDeviation, v-m)
		default:
			continue
		}

		az := math.Abs(z)
		if az <= threshold {
			continue
		}

		severity := AnomalyLow
		switch {
		case az > highSeverityFactor*threshold:
			severity = AnomalyHigh
		case az > mediumSeverityFactor*threshold:
			severity = AnomalyMedium
		}

		anomalies = append(anomalies, AnomalyDetection{
			TestName:   testName,
			Metric:     metric,
			Timestamp:  samples[i].Timestamp,
			Value:      v,
			Expected:   m,
			Deviation:  z,
			Severity:   severity,
			Confidence: math.Min(az/threshold, 1),
			Window: WindowContext{
				Size:   window,
				Mean:   m,
				StdDev: sd,
			},
		})
	}
	return anomalies
}
