package perftest

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfwatch/perfwatch/internal/stats"
)

func TestBackgroundJobsRunAndStop(t *testing.T) {
	fx := newFixture(t, Options{
		MaintenanceInterval: 20 * time.Millisecond,
		AnalysisInterval:    25 * time.Millisecond,
		AutomatedInterval:   15 * time.Millisecond,
		Retention:           time.Hour,
	})

	var runs atomic.Int64
	fx.fw.RegisterAutomatedTest(AutomatedTest{
		Name:     "nightly-load",
		TestType: "load",
		Fn: func(context.Context) (stats.PerformanceMetrics, error) {
			runs.Add(1)
			return cleanMetrics(), nil
		},
	})

	fx.fw.Start()
	fx.fw.Start() // second call is a no-op

	var seen []Event
	require.Eventually(t, func() bool {
		seen = append(seen, drainEvents(fx.events)...)
		return runs.Load() >= 2 && hasEvent(seen, EventTestCompleted) && hasEvent(seen, EventAnalysisCompleted)
	}, 2*time.Second, 10*time.Millisecond)

	fx.fw.Stop()
	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no further runs after Stop")

	fx.fw.Stop() // idempotent
}

func TestRegisterAutomatedTestValidation(t *testing.T) {
	fx := newFixture(t, Options{})

	fx.fw.RegisterAutomatedTest(AutomatedTest{Name: "", Fn: passingTest(cleanMetrics())})
	fx.fw.RegisterAutomatedTest(AutomatedTest{Name: "no-fn"})
	assert.Empty(t, fx.fw.automated)

	fx.fw.RegisterAutomatedTest(AutomatedTest{Name: "ok", Fn: passingTest(cleanMetrics())})
	assert.Len(t, fx.fw.automated, 1)
}

func TestRunMaintenancePrunesResultsAndScreenshots(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, Options{DataDir: dir, Retention: 24 * time.Hour})
	now := time.Now()
	fx.fw.results = []*PerformanceTestResult{
		{ID: "old", TestName: "api-load", StartedAt: now.Add(-48 * time.Hour)},
		{ID: "fresh", TestName: "api-load", StartedAt: now.Add(-time.Hour)},
	}

	shots := filepath.Join(dir, "screenshots")
	require.NoError(t, os.MkdirAll(shots, 0755))
	oldShot := filepath.Join(shots, "old.png")
	freshShot := filepath.Join(shots, "fresh.png")
	require.NoError(t, os.WriteFile(oldShot, []byte("png"), 0644))
	require.NoError(t, os.WriteFile(freshShot, []byte("png"), 0644))
	ancient := now.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldShot, ancient, ancient))

	fx.fw.runMaintenance()

	results := fx.fw.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", results[0].ID)

	_, err := os.Stat(oldShot)
	assert.True(t, os.IsNotExist(err), "expired screenshot removed")
	_, err = os.Stat(freshShot)
	assert.NoError(t, err, "fresh screenshot kept")

	// The pruned history was written through.
	restarted := newFixture(t, Options{DataDir: dir})
	require.Len(t, restarted.fw.Results(), 1)
	assert.Equal(t, "fresh", restarted.fw.Results()[0].ID)
}

func TestRunMaintenanceWithoutDataDir(t *testing.T) {
	fx := newFixture(t, Options{Retention: time.Hour})
	fx.fw.results = []*PerformanceTestResult{
		{ID: "old", StartedAt: time.Now().Add(-2 * time.Hour)},
	}

	fx.fw.runMaintenance()
	assert.Empty(t, fx.fw.Results())
}
