package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics samples Go runtime health for the long-running server.
type RuntimeMetrics struct {
	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	heapSys    metric.Int64Gauge
	gcCycles   metric.Int64Counter
	uptime     metric.Float64Gauge

	startedAt   time.Time
	lastGCCount uint32
}

// NewRuntimeMetrics registers the runtime instruments on the meter.
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	m := &RuntimeMetrics{startedAt: time.Now()}
	var err error

	if m.goroutines, err = meter.Int64Gauge(
		"runtime_goroutines",
		metric.WithDescription("Number of active goroutines"),
	); err != nil {
		return nil, err
	}
	if m.heapAlloc, err = meter.Int64Gauge(
		"runtime_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.heapSys, err = meter.Int64Gauge(
		"runtime_heap_sys_bytes",
		metric.WithDescription("Bytes of heap memory obtained from the OS"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.gcCycles, err = meter.Int64Counter(
		"runtime_gc_cycles_total",
		metric.WithDescription("Completed GC cycles"),
	); err != nil {
		return nil, err
	}
	if m.uptime, err = meter.Float64Gauge(
		"process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Sample records one snapshot of the runtime state.
func (m *RuntimeMetrics) Sample(ctx context.Context) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
	m.heapAlloc.Record(ctx, int64(stats.HeapAlloc))
	m.heapSys.Record(ctx, int64(stats.HeapSys))
	m.uptime.Record(ctx, time.Since(m.startedAt).Seconds())

	if stats.NumGC > m.lastGCCount {
		m.gcCycles.Add(ctx, int64(stats.NumGC-m.lastGCCount))
		m.lastGCCount = stats.NumGC
	}
}

// Start samples on the given interval until the context is canceled.
func (m *RuntimeMetrics) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sample(ctx)
			}
		}
	}()
}
