// Package metricstest provides an in-memory implementation of the
// metrics.Metrics interface for tests.
package metricstest

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/edgezuul/zuul/metrics"
)

// MockMetrics records the measurements under the keys of the codahale
// backend.
type MockMetrics struct {
	Prefix string

	mu sync.Mutex

	// Metrics gathering
	counters map[string]int64
	gauges   map[string]float64
	measures map[string][]time.Duration
	Now      time.Time
}

var _ metrics.Metrics = &MockMetrics{}

//
// Public thread safe access to metrics
//

func (m *MockMetrics) WithCounters(f func(counters map[string]int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	f(m.counters)
}

func (m *MockMetrics) WithMeasures(f func(measures map[string][]time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.measures == nil {
		m.measures = make(map[string][]time.Duration)
	}
	f(m.measures)
}

func (m *MockMetrics) WithGauges(f func(map[string]float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges == nil {
		m.gauges = make(map[string]float64)
	}

	f(m.gauges)
}

func (m *MockMetrics) since(start time.Time) time.Duration {
	now := m.Now
	if now.IsZero() {
		now = time.Now()
	}

	return now.Sub(start)
}

//
// Interface Metrics
//

func (m *MockMetrics) MeasureSince(key string, start time.Time) {
	key = m.Prefix + key
	d := m.since(start)
	m.WithMeasures(func(measures map[string][]time.Duration) {
		measures[key] = append(measures[key], d)
	})
}

func (m *MockMetrics) IncCounter(key string) {
	m.IncCounterBy(key, 1)
}

func (m *MockMetrics) IncCounterBy(key string, value int64) {
	key = m.Prefix + key
	m.WithCounters(func(counters map[string]int64) {
		counters[key] += value
	})
}

func (m *MockMetrics) UpdateGauge(key string, value float64) {
	key = m.Prefix + key
	m.WithGauges(func(g map[string]float64) {
		g[key] = value
	})
}

func (m *MockMetrics) MeasureFilter(phase, filterName string, start time.Time) {
	m.MeasureSince(fmt.Sprintf(metrics.KeyFilter, phase, filterName), start)
}

func (m *MockMetrics) MeasureAllFilters(phase string, start time.Time) {
	m.MeasureSince(fmt.Sprintf(metrics.KeyAllFilters, phase), start)
}

func (m *MockMetrics) MeasureBackend(host string, start time.Time) {
	m.MeasureSince(fmt.Sprintf(metrics.KeyBackendHost, host), start)
}

func (m *MockMetrics) IncErrorsBackend(host string) {
	m.IncCounter(fmt.Sprintf(metrics.KeyErrorsBackend, host))
}

func (m *MockMetrics) MeasureServe(method string, code int, start time.Time) {
	m.MeasureSince(fmt.Sprintf(metrics.KeyServeMethod, method, code), start)
}

func (m *MockMetrics) IncPipelineFaults() {
	m.IncCounter(metrics.KeyPipelineFaults)
}

func (m *MockMetrics) IncErrorsWrite() {
	m.IncCounter(metrics.KeyErrorsWrite)
}

func (m *MockMetrics) IncErrorsComplete() {
	m.IncCounter(metrics.KeyErrorsComplete)
}

func (*MockMetrics) RegisterHandler(path string, handler *http.ServeMux) {}

func (m *MockMetrics) Counter(key string) (v int64, ok bool) {
	m.WithCounters(func(c map[string]int64) {
		v, ok = c[key]
	})

	return
}

func (m *MockMetrics) Gauge(key string) (v float64, ok bool) {
	m.WithGauges(func(g map[string]float64) {
		v, ok = g[key]
	})

	return
}

func (m *MockMetrics) Measure(key string) (d []time.Duration, ok bool) {
	m.WithMeasures(func(measures map[string][]time.Duration) {
		d, ok = measures[key]
	})

	return
}
