package rotauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("snapshot = %+v, want empty", snap)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	for i := 0; i < 3; i++ {
		m.Inc(MetricRefreshSuccess)
	}
	m.Inc(MetricReuseDetected)

	if got := m.Value(MetricRefreshSuccess); got != 3 {
		t.Errorf("refresh success = %d, want 3", got)
	}
	if got := m.Value(MetricReuseDetected); got != 1 {
		t.Errorf("reuse = %d, want 1", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricRefreshSuccess] != 3 {
		t.Errorf("snapshot counter = %d, want 3", snap.Counters[MetricRefreshSuccess])
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []time.Duration{
		time.Millisecond,        // bucket 0 (<=5ms)
		8 * time.Millisecond,    // bucket 1
		40 * time.Millisecond,   // bucket 3
		900 * time.Millisecond,  // bucket 7 (+Inf)
		1200 * time.Millisecond, // bucket 7
	}
	for _, d := range samples {
		m.Observe(MetricValidateLatency, d)
	}

	// Only the validate latency metric carries a histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets, ok := snap.Histograms[MetricValidateLatency]
	if !ok || len(buckets) != 8 {
		t.Fatalf("histogram = %v", buckets)
	}

	want := []uint64{1, 1, 0, 1, 0, 0, 0, 2}
	for i, w := range want {
		if buckets[i] != w {
			t.Errorf("bucket %d = %d, want %d", i, buckets[i], w)
		}
	}

	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Error("non-latency metrics must not grow histograms")
	}
}

func TestMetricsHistogramDisabledByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricValidateLatency, time.Millisecond)

	snap := m.Snapshot()
	if len(snap.Histograms) != 0 {
		t.Fatalf("histograms = %+v, want none", snap.Histograms)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const (
		workers = 8
		perG    = 1000
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricTokenIssued)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricTokenIssued); got != workers*perG {
		t.Fatalf("counter = %d, want %d", got, workers*perG)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Second)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must read zero")
	}
}
