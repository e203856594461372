package bakeryauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoop(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricLoginSuccess)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if s := m.Snapshot(); len(s.Counters) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricRefreshSuccess); got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
}

func TestMetricsHistogramOnlyForLatencyIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginLatency, 3*time.Millisecond)
	m.Observe(MetricRefreshLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	s := m.Snapshot()
	if s.Histograms[MetricLoginLatency][0] != 1 {
		t.Fatalf("unexpected login buckets: %v", s.Histograms[MetricLoginLatency])
	}
	if s.Histograms[MetricRefreshLatency][7] != 1 {
		t.Fatalf("unexpected refresh buckets: %v", s.Histograms[MetricRefreshLatency])
	}
	if _, ok := s.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counters must not have histograms")
	}
	if _, ok := s.Counters[MetricLoginLatency]; ok {
		t.Fatal("histogram ids must not appear as counters")
	}
}
