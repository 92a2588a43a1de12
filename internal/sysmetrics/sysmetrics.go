// Package sysmetrics samples host CPU and memory utilisation so test
// results missing resource readings still carry them.
package sysmetrics

import (
	"context"
	"fmt"
	"time"

	gocpu "github.com/shirou/gopsutil/v4/cpu"
	gomem "github.com/shirou/gopsutil/v4/mem"
)

// System call wrappers for testing
var (
	cpuPercent    = gocpu.PercentWithContext
	virtualMemory = gomem.VirtualMemoryWithContext
)

// Usage is a point-in-time host resource reading, percentages 0-100.
type Usage struct {
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryPercent float64   `json:"memoryPercent"`
	SampledAt     time.Time `json:"sampledAt"`
}

// Sampler reads host utilisation. The CPU reading blocks for the
// configured interval to measure a delta.
type Sampler struct {
	interval time.Duration
}

func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Sampler{interval: interval}
}

// Sample reads current CPU and memory utilisation. A failed CPU read
// degrades to zero; a failed memory read is an error.
func (s *Sampler) Sample(ctx context.Context) (Usage, error) {
	sampleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	usage := Usage{SampledAt: time.Now()}

	if percentages, err := cpuPercent(sampleCtx, s.interval, false); err == nil && len(percentages) > 0 {
		usage.CPUPercent = clampPercent(percentages[0])
	}

	memStats, err := virtualMemory(sampleCtx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory stats: %w", err)
	}
	usage.MemoryPercent = clampPercent(memStats.UsedPercent)

	return usage, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
