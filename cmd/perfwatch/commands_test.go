package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/perfwatch/perfwatch/internal/config"
	"github.com/perfwatch/perfwatch/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fn := httpProbe(server.URL, 20, 5, 5*time.Second)
	metrics, err := fn(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(20), metrics.Throughput.TotalRequests)
	assert.Zero(t, metrics.ErrorRate)
	assert.Greater(t, metrics.Throughput.RequestsPerSecond, 0.0)
	assert.Greater(t, metrics.ResponseTime.Mean, 0.0)
	assert.LessOrEqual(t, metrics.ResponseTime.Min, metrics.ResponseTime.Median)
	assert.LessOrEqual(t, metrics.ResponseTime.Median, metrics.ResponseTime.Max)
}

func TestHTTPProbe_AllRequestsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	fn := httpProbe(server.URL, 10, 2, 5*time.Second)
	_, err := fn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 10 requests")
}

func TestHTTPProbe_PartialFailures(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1)%2 == 0 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fn := httpProbe(server.URL, 10, 1, 5*time.Second)
	metrics, err := fn(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 50.0, metrics.ErrorRate, 0.01)
	assert.Equal(t, int64(10), metrics.Throughput.TotalRequests)
}

func TestHTTPProbe_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := httpProbe(server.URL, 50, 5, 5*time.Second)
	_, err := fn(ctx)
	require.Error(t, err)
}

func TestTimedGet_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := timedGet(context.Background(), server.Client(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewRuntime_StoreSelection(t *testing.T) {
	jsonCfg := &config.Config{DataDir: t.TempDir(), Store: config.StoreJSON}
	rt, err := newRuntime(jsonCfg)
	require.NoError(t, err)
	assert.Empty(t, rt.closers)
	rt.Close()

	sqliteCfg := &config.Config{DataDir: t.TempDir(), Store: config.StoreSQLite}
	rt, err = newRuntime(sqliteCfg)
	require.NoError(t, err)
	assert.Len(t, rt.closers, 1)
	rt.Close()
}

func TestStarterChannels_AllBuildable(t *testing.T) {
	starter := starterChannels()
	kept, senders := notifications.BuildChannels(starter, notifications.NewDeliveryLog())
	assert.Len(t, kept, len(starter))
	assert.Len(t, senders, len(starter))
}
