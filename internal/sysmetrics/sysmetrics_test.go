package sysmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	gomem "github.com/shirou/gopsutil/v4/mem"
)

func stubReaders(t *testing.T, cpu func(context.Context, time.Duration, bool) ([]float64, error), mem func(context.Context) (*gomem.VirtualMemoryStat, error)) {
	t.Helper()
	origCPU, origMem := cpuPercent, virtualMemory
	t.Cleanup(func() {
		cpuPercent = origCPU
		virtualMemory = origMem
	})
	cpuPercent = cpu
	virtualMemory = mem
}

func TestSampleReadsStubbedValues(t *testing.T) {
	stubReaders(t,
		func(context.Context, time.Duration, bool) ([]float64, error) {
			return []float64{42.5}, nil
		},
		func(context.Context) (*gomem.VirtualMemoryStat, error) {
			return &gomem.VirtualMemoryStat{UsedPercent: 63.2}, nil
		})

	usage, err := NewSampler(time.Millisecond).Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if usage.CPUPercent != 42.5 || usage.MemoryPercent != 63.2 {
		t.Errorf("unexpected usage: %+v", usage)
	}
	if usage.SampledAt.IsZero() {
		t.Error("sample timestamp not set")
	}
}

func TestSampleClampsOutOfRange(t *testing.T) {
	stubReaders(t,
		func(context.Context, time.Duration, bool) ([]float64, error) {
			return []float64{150}, nil
		},
		func(context.Context) (*gomem.VirtualMemoryStat, error) {
			return &gomem.VirtualMemoryStat{UsedPercent: -5}, nil
		})

	usage, err := NewSampler(time.Millisecond).Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if usage.CPUPercent != 100 {
		t.Errorf("CPU should clamp to 100, got %.1f", usage.CPUPercent)
	}
	if usage.MemoryPercent != 0 {
		t.Errorf("memory should clamp to 0, got %.1f", usage.MemoryPercent)
	}
}

func TestSampleToleratesCPUFailure(t *testing.T) {
	stubReaders(t,
		func(context.Context, time.Duration, bool) ([]float64, error) {
			return nil, errors.New("no cpu stats")
		},
		func(context.Context) (*gomem.VirtualMemoryStat, error) {
			return &gomem.VirtualMemoryStat{UsedPercent: 40}, nil
		})

	usage, err := NewSampler(time.Millisecond).Sample(context.Background())
	if err != nil {
		t.Fatalf("CPU failure should degrade, got %v", err)
	}
	if usage.CPUPercent != 0 || usage.MemoryPercent != 40 {
		t.Errorf("unexpected usage: %+v", usage)
	}
}

func TestSampleFailsOnMemoryError(t *testing.T) {
	stubReaders(t,
		func(context.Context, time.Duration, bool) ([]float64, error) {
			return []float64{10}, nil
		},
		func(context.Context) (*gomem.VirtualMemoryStat, error) {
			return nil, errors.New("no memory stats")
		})

	if _, err := NewSampler(time.Millisecond).Sample(context.Background()); err == nil {
		t.Fatal("expected an error when memory stats fail")
	}
}
