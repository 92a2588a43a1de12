package stats

import "time"

// minSeasonalSamples is the floor below which hourly grouping is too
// sparse to call a pattern.
const minSeasonalSamples = 48

// detectSeasonalPattern groups a series by hour of day and by weekday
// and reports the buckets whose average clears one standard deviation
// above the overall mean. Returns false when the series is too short or
// shows no peaks.
func detectSeasonalPattern(testName, metric string, samples []MetricSample, now time.Time) (SeasonalPattern, bool) {
	n := len(samples)
	if n < minSeasonalSamples {
		return SeasonalPattern{}, false
	}

	values := make([]float64, n)
	for i, s := range samples {
		values[i] = s.Value(metric)
	}
	m := mean(values)
	sd := stdDev(values)
	if sd == 0 {
		return SeasonalPattern{}, false
	}
	cutoff := m + sd

	var hourSum [24]float64
	var hourCount [24]int
	var daySum [7]float64
	var dayCount [7]int
	for _, s := range samples {
		h := s.Timestamp.Hour()
		hourSum[h] += s.Value(metric)
		hourCount[h]++
		d := int(s.Timestamp.Weekday())
		daySum[d] += s.Value(metric)
		dayCount[d]++
	}

	var peakHours []int
	for h := 0; h < 24; h++ {
		if hourCount[h] > 0 && hourSum[h]/float64(hourCount[h]) > cutoff {
			peakHours = append(peakHours, h)
		}
	}
	var peakDays []string
	for d := 0; d < 7; d++ {
		if dayCount[d] > 0 && daySum[d]/float64(dayCount[d]) > cutoff {
			peakDays = append(peakDays, time.Weekday(d).String())
		}
	}

	if len(peakHours) == 0 && len(peakDays) == 0 {
		return SeasonalPattern{}, false
	}
	return SeasonalPattern{
		TestName:    testName,
		Metric:      metric,
		HasDaily:    len(peakHours) > 0,
		HasWeekly:   len(peakDays) > 0,
		PeakHours:   peakHours,
		PeakDays:    peakDays,
		SampleCount: n,
		AnalyzedAt:  now,
	}, true
}
