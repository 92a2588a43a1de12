package main

import (
	"context"
	"fmt"
	"time"

	"github.com/perfwatch/perfwatch/internal/perftest"
	"github.com/spf13/cobra"
)

var (
	runName         string
	runType         string
	runURL          string
	runRequests     int
	runConcurrency  int
	runTimeout      time.Duration
	runDescriptor   string
	runSkipBaseline bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute an HTTP performance test and record the result",
	Long: `Run issues GET requests against a target URL, summarizes the measured
latencies, and routes the result through baseline comparison, trend
analysis, and alerting. The command exits non-zero when a regression
is detected, so it can gate CI pipelines.`,
	Example: `  # 100 requests, 10 in flight
  perfwatch run --name api-health --url https://api.example.com/health -n 100 -c 10

  # Record without touching the baseline
  perfwatch run --name api-health --url https://api.example.com/health --skip-baseline`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runName == "" {
			return fmt.Errorf("test name is required (use --name)")
		}
		if runURL == "" {
			return fmt.Errorf("target url is required (use --url)")
		}
		if runRequests < 1 {
			return fmt.Errorf("requests must be at least 1")
		}
		if runConcurrency < 1 {
			runConcurrency = 1
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		result, err := rt.framework.RunPerformanceTest(context.Background(), runName, runType,
			httpProbe(runURL, runRequests, runConcurrency, runTimeout),
			perftest.RunOptions{Descriptor: runDescriptor, SkipBaseline: runSkipBaseline})
		if err != nil {
			return fmt.Errorf("test run failed: %w", err)
		}

		printResult(result)

		if result.RegressionDetected {
			return fmt.Errorf("performance regression detected for %s", runName)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "Test name (required)")
	runCmd.Flags().StringVar(&runType, "type", "load", "Test type (load, stress, spike, endurance)")
	runCmd.Flags().StringVar(&runURL, "url", "", "Target URL (required)")
	runCmd.Flags().IntVarP(&runRequests, "requests", "n", 50, "Number of requests to send")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 5, "Requests in flight at once")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Second, "Per-request timeout")
	runCmd.Flags().StringVar(&runDescriptor, "descriptor", "", "Baseline descriptor (defaults to the test name)")
	runCmd.Flags().BoolVar(&runSkipBaseline, "skip-baseline", false, "Skip baseline recording and regression checks")
}

func printResult(result *perftest.PerformanceTestResult) {
	rt := result.Metrics.ResponseTime
	fmt.Printf("Test:        %s (%s)\n", result.TestName, result.TestType)
	fmt.Printf("Run ID:      %s\n", result.ID)
	fmt.Printf("Duration:    %dms\n", result.DurationMs)
	fmt.Printf("Response:    mean %.1fms  median %.1fms  p95 %.1fms  p99 %.1fms\n",
		rt.Mean, rt.Median, rt.P95, rt.P99)
	fmt.Printf("Throughput:  %.1f req/s (%d requests)\n",
		result.Metrics.Throughput.RequestsPerSecond, result.Metrics.Throughput.TotalRequests)
	fmt.Printf("Error rate:  %.2f%%\n", result.Metrics.ErrorRate)

	if result.Baseline != nil {
		fmt.Printf("Baseline:    %s (%d samples)\n", result.Baseline.Descriptor, result.Baseline.SampleCount)
	}
	switch {
	case result.RegressionDetected:
		fmt.Println("Status:      REGRESSION DETECTED")
	case result.Passed:
		fmt.Println("Status:      passed")
	default:
		fmt.Println("Status:      failed")
	}
	for _, alert := range result.Alerts {
		fmt.Printf("Alert:       [%s] %s\n", alert.Severity, alert.Message)
	}
	for _, delivery := range result.Deliveries {
		status := "sent"
		if !delivery.Sent {
			status = "failed: " + delivery.Error
		}
		fmt.Printf("Delivery:    %s -> %s\n", delivery.Channel, status)
	}
	for _, rec := range result.Recommendations {
		fmt.Printf("Suggestion:  %s\n", rec)
	}
}
