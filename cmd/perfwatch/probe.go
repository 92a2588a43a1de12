package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/perfwatch/perfwatch/internal/perftest"
	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/pkg/httputil"
)

// httpProbe builds a test function that load-tests url with GET
// requests, keeping at most concurrency requests in flight.
func httpProbe(url string, requests, concurrency int, timeout time.Duration) perftest.TestFunc {
	return func(ctx context.Context) (stats.PerformanceMetrics, error) {
		client := httputil.NewClient(timeout)

		var (
			mu        sync.Mutex
			latencies []float64
			failures  int
		)

		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		start := time.Now()

	dispatch:
		for i := 0; i < requests; i++ {
			select {
			case <-ctx.Done():
				break dispatch
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				elapsed, err := timedGet(ctx, client, url)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures++
					return
				}
				latencies = append(latencies, elapsed)
			}()
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return stats.PerformanceMetrics{}, err
		}
		if len(latencies) == 0 {
			return stats.PerformanceMetrics{}, fmt.Errorf("all %d requests against %s failed", requests, url)
		}

		elapsed := time.Since(start).Seconds()
		summary := stats.Summarize(latencies)
		completed := len(latencies)

		return stats.PerformanceMetrics{
			ResponseTime: stats.ResponseTimeStats{
				Mean:   summary.Mean,
				Median: summary.Median,
				P95:    summary.P95,
				P99:    summary.P99,
				Min:    summary.Min,
				Max:    summary.Max,
			},
			Throughput: stats.ThroughputStats{
				RequestsPerSecond: float64(completed) / elapsed,
				TotalRequests:     int64(requests),
			},
			ErrorRate: float64(failures) / float64(requests) * 100,
		}, nil
	}
}

// timedGet issues one GET and returns the latency in milliseconds.
// Responses with status >= 400 count as failures.
func timedGet(ctx context.Context, client *http.Client, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return 0, fmt.Errorf("status %s", resp.Status)
	}
	return float64(time.Since(start).Microseconds()) / 1000, nil
}
