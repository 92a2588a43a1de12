package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/perfwatch/perfwatch/internal/stats"
)

func testSnapshot(now time.Time) *stats.HistorySnapshot {
	mk := func(offset time.Duration, rt float64) stats.MetricSample {
		return stats.MetricSample{
			TestName:  "api-load",
			TestType:  "load",
			Timestamp: now.Add(offset),
			Metrics: stats.PerformanceMetrics{
				ResponseTime: stats.ResponseTimeStats{Mean: rt, P99: rt * 2},
				Throughput:   stats.ThroughputStats{RequestsPerSecond: 50},
				ErrorRate:    0.5,
			},
			Tags: map[string]string{"env": "staging"},
		}
	}
	return &stats.HistorySnapshot{
		DataPoints: map[string][]stats.MetricSample{
			"api-load": {mk(-2*time.Minute, 100), mk(-time.Minute, 120)},
		},
		Trends: []stats.TrendAnalysis{{
			TestName:   "api-load",
			Metric:     stats.MetricResponseTime,
			Direction:  stats.TrendDegrading,
			Slope:      20,
			RSquared:   1,
			AnalyzedAt: now,
		}},
		Anomalies: []stats.AnomalyDetection{{
			TestName:  "api-load",
			Metric:    stats.MetricResponseTime,
			Timestamp: now,
			Value:     500,
			Severity:  stats.AnomalyHigh,
		}},
		Predictions: map[string][]stats.PerformancePrediction{
			"api-load": {{TestName: "api-load", Metric: stats.MetricResponseTime, PredictedValue: 140, Model: "linear_regression", GeneratedAt: now}},
		},
		SeasonalPatterns: []stats.SeasonalPattern{{TestName: "api-load", Metric: stats.MetricResponseTime, HasDaily: true, PeakHours: []int{9}, AnalyzedAt: now}},
		SavedAt:          now,
	}
}

func verifySnapshot(t *testing.T, want, got *stats.HistorySnapshot) {
	t.Helper()
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}
	wantSamples := want.DataPoints["api-load"]
	gotSamples := got.DataPoints["api-load"]
	if len(gotSamples) != len(wantSamples) {
		t.Fatalf("expected %d samples, got %d", len(wantSamples), len(gotSamples))
	}
	for i := range wantSamples {
		if !gotSamples[i].Timestamp.Equal(wantSamples[i].Timestamp) {
			t.Errorf("sample %d timestamp mismatch: %s vs %s", i, gotSamples[i].Timestamp, wantSamples[i].Timestamp)
		}
		if gotSamples[i].Metrics.ResponseTime.Mean != wantSamples[i].Metrics.ResponseTime.Mean {
			t.Errorf("sample %d metrics mismatch: %+v", i, gotSamples[i].Metrics)
		}
		if gotSamples[i].Tags["env"] != "staging" {
			t.Errorf("sample %d lost tags: %+v", i, gotSamples[i].Tags)
		}
	}
	if len(got.Trends) != 1 || got.Trends[0].Direction != stats.TrendDegrading {
		t.Errorf("trends not preserved: %+v", got.Trends)
	}
	if len(got.Anomalies) != 1 || got.Anomalies[0].Severity != stats.AnomalyHigh {
		t.Errorf("anomalies not preserved: %+v", got.Anomalies)
	}
	if len(got.Predictions["api-load"]) != 1 || got.Predictions["api-load"][0].Model != "linear_regression" {
		t.Errorf("predictions not preserved: %+v", got.Predictions)
	}
	if len(got.SeasonalPatterns) != 1 || !got.SeasonalPatterns[0].HasDaily {
		t.Errorf("seasonal patterns not preserved: %+v", got.SeasonalPatterns)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	if snap, err := store.Load(); err != nil || snap != nil {
		t.Fatalf("expected empty store, got %v, %v", snap, err)
	}
	want := testSnapshot(time.Now())
	if err := store.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	verifySnapshot(t, want, got)
}

func TestJSONStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONStore(dir)

	if snap, err := store.Load(); err != nil || snap != nil {
		t.Fatalf("expected no snapshot in fresh dir, got %v, %v", snap, err)
	}

	want := testSnapshot(time.Now())
	if err := store.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// A fresh store over the same directory must see the same state.
	got, err := NewJSONStore(dir).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	verifySnapshot(t, want, got)

	if _, err := os.Stat(filepath.Join(dir, historyFileName+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestJSONStoreRewrite(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONStore(dir)

	first := testSnapshot(time.Now())
	if err := store.Save(first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := testSnapshot(time.Now())
	second.DataPoints["api-load"] = second.DataPoints["api-load"][:1]
	if err := store.Save(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got.DataPoints["api-load"]) != 1 {
		t.Fatalf("expected rewrite to replace state, got %d samples", len(got.DataPoints["api-load"]))
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	defer store.Close()

	if snap, err := store.Load(); err != nil || snap != nil {
		t.Fatalf("expected empty database, got %v, %v", snap, err)
	}

	want := testSnapshot(time.Now())
	if err := store.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	verifySnapshot(t, want, got)
}

func TestSQLiteStoreSaveReplaces(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	defer store.Close()

	first := testSnapshot(time.Now())
	if err := store.Save(first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := testSnapshot(time.Now())
	second.DataPoints["api-load"] = second.DataPoints["api-load"][:1]
	if err := store.Save(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got.DataPoints["api-load"]) != 1 {
		t.Fatalf("expected replaced state, got %d samples", len(got.DataPoints["api-load"]))
	}
}

func TestSQLiteStoreQuerySamples(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	defer store.Close()

	now := time.Now()
	if err := store.Save(testSnapshot(now)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	all, err := store.QuerySamples("api-load", now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(all))
	}

	recent, err := store.QuerySamples("api-load", now.Add(-90*time.Second), now)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Metrics.ResponseTime.Mean != 120 {
		t.Fatalf("expected only the newest sample, got %+v", recent)
	}

	none, err := store.QuerySamples("unknown-test", now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no samples for unknown test, got %d", len(none))
	}
}
