package perftest

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/stats"
)

const screenshotsDir = "screenshots"

// AutomatedTest is one registered test the framework executes on the
// automated schedule.
type AutomatedTest struct {
	Name     string
	TestType string
	Fn       TestFunc
	Options  RunOptions
}

// RegisterAutomatedTest adds a test to the automated schedule. Tests
// without a name or function are ignored.
func (f *Framework) RegisterAutomatedTest(test AutomatedTest) {
	if test.Name == "" || test.Fn == nil {
		log.Warn().Str("test", test.Name).Msg("Ignoring automated test without name or function")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.automated = append(f.automated, test)
}

// Start launches the background jobs: maintenance pruning, scheduled
// regression analysis, and automated test execution. Calling Start
// more than once is a no-op.
func (f *Framework) Start() {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return
	}
	f.started = true
	f.mu.Unlock()

	f.wg.Add(3)
	go f.maintenanceLoop()
	go f.analysisLoop()
	go f.automatedLoop()
	log.Info().
		Dur("maintenance", f.opts.MaintenanceInterval).
		Dur("analysis", f.opts.AnalysisInterval).
		Dur("automated", f.opts.AutomatedInterval).
		Msg("Background jobs started")
}

// Stop cancels the background jobs and waits for them to exit. The
// engines the framework drives are stopped by their owners.
func (f *Framework) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})
	f.wg.Wait()
}

func (f *Framework) maintenanceLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.opts.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.runMaintenance()
		case <-f.stopCh:
			return
		}
	}
}

func (f *Framework) analysisLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.opts.AnalysisInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tr := stats.TimeRange{Start: time.Now().Add(-analysisWindow)}
			if _, err := f.RunRegressionAnalysis(context.Background(), tr); err != nil {
				log.Error().Err(err).Msg("Scheduled regression analysis failed")
			}
		case <-f.stopCh:
			return
		}
	}
}

func (f *Framework) automatedLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.opts.AutomatedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.runAutomatedTests()
		case <-f.stopCh:
			return
		}
	}
}

// runMaintenance drops results past retention and deletes screenshot
// files older than the same cutoff.
func (f *Framework) runMaintenance() {
	cutoff := time.Now().Add(-f.opts.Retention)

	f.mu.Lock()
	kept := make([]*PerformanceTestResult, 0, len(f.results))
	for _, r := range f.results {
		if r.StartedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	pruned := len(f.results) - len(kept)
	if pruned > 0 {
		f.results = kept
		f.persistLocked()
	}
	f.mu.Unlock()

	removed := f.pruneScreenshots(cutoff)
	if pruned > 0 || removed > 0 {
		log.Info().Int("results", pruned).Int("screenshots", removed).Msg("Maintenance pruned old data")
	}
}

func (f *Framework) pruneScreenshots(cutoff time.Time) int {
	if f.opts.DataDir == "" {
		return 0
	}
	dir := filepath.Join(f.opts.DataDir, screenshotsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Failed to scan screenshots directory")
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to remove screenshot")
				continue
			}
			removed++
		}
	}
	return removed
}

func (f *Framework) runAutomatedTests() {
	f.mu.RLock()
	tests := make([]AutomatedTest, len(f.automated))
	copy(tests, f.automated)
	f.mu.RUnlock()

	for _, test := range tests {
		if _, err := f.RunPerformanceTest(context.Background(), test.Name, test.TestType, test.Fn, test.Options); err != nil {
			log.Error().Err(err).Str("test", test.Name).Msg("Automated test run failed")
		}
	}
}
