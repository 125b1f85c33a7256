package metrics

import (
	"net/http"
	"time"
)

// All reports every measurement to both the Prometheus and the
// CodaHale backends.
type All struct {
	prometheus *Prometheus
	codaHale   *CodaHale
}

func NewAll(o Options) *All {
	return &All{
		prometheus: NewPrometheus(o),
		codaHale:   NewCodaHale(o),
	}
}

func (a *All) MeasureSince(key string, start time.Time) {
	a.prometheus.MeasureSince(key, start)
	a.codaHale.MeasureSince(key, start)
}

func (a *All) IncCounter(key string) {
	a.prometheus.IncCounter(key)
	a.codaHale.IncCounter(key)
}

func (a *All) IncCounterBy(key string, value int64) {
	a.prometheus.IncCounterBy(key, value)
	a.codaHale.IncCounterBy(key, value)
}

func (a *All) UpdateGauge(key string, v float64) {
	a.prometheus.UpdateGauge(key, v)
	a.codaHale.UpdateGauge(key, v)
}

func (a *All) MeasureFilter(phase, filterName string, start time.Time) {
	a.prometheus.MeasureFilter(phase, filterName, start)
	a.codaHale.MeasureFilter(phase, filterName, start)
}

func (a *All) MeasureAllFilters(phase string, start time.Time) {
	a.prometheus.MeasureAllFilters(phase, start)
	a.codaHale.MeasureAllFilters(phase, start)
}

func (a *All) MeasureBackend(host string, start time.Time) {
	a.prometheus.MeasureBackend(host, start)
	a.codaHale.MeasureBackend(host, start)
}

func (a *All) IncErrorsBackend(host string) {
	a.prometheus.IncErrorsBackend(host)
	a.codaHale.IncErrorsBackend(host)
}

func (a *All) MeasureServe(method string, code int, start time.Time) {
	a.prometheus.MeasureServe(method, code, start)
	a.codaHale.MeasureServe(method, code, start)
}

func (a *All) IncPipelineFaults() {
	a.prometheus.IncPipelineFaults()
	a.codaHale.IncPipelineFaults()
}

func (a *All) IncErrorsWrite() {
	a.prometheus.IncErrorsWrite()
	a.codaHale.IncErrorsWrite()
}

func (a *All) IncErrorsComplete() {
	a.prometheus.IncErrorsComplete()
	a.codaHale.IncErrorsComplete()
}

// RegisterHandler serves the prometheus format on the path and the
// codahale format below the path prefixed with codahale.
func (a *All) RegisterHandler(path string, mux *http.ServeMux) {
	a.prometheus.RegisterHandler(path, mux)
	a.codaHale.RegisterHandler("/codahale"+path, mux)
}
