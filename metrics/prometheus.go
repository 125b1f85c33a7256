package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace         = "zuul"
	promFilterSubsystem   = "filter"
	promBackendSubsystem  = "backend"
	promServeSubsystem    = "serve"
	promPipelineSubsystem = "pipeline"
	promCustomSubsystem   = "custom"
)

// Prometheus implements the prometheus metrics backend.
type Prometheus struct {
	// Metrics.
	filterM         *prometheus.HistogramVec
	filterAllM      *prometheus.HistogramVec
	backendM        *prometheus.HistogramVec
	backendErrorsM  *prometheus.CounterVec
	serveM          *prometheus.HistogramVec
	serveCounterM   *prometheus.CounterVec
	pipelineErrorsM *prometheus.CounterVec
	customHistogram *prometheus.HistogramVec
	customCounterM  *prometheus.CounterVec
	customGaugeM    *prometheus.GaugeVec

	opts     Options
	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	filter := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promFilterSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of a single filter.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"phase", "filter"})

	filterAll := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promFilterSubsystem,
		Name:      "all_duration_seconds",
		Help:      "Duration in seconds of all the filters of a phase.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"phase"})

	backend := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promBackendSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of a backend roundtrip.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"host"})

	backendErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promBackendSubsystem,
		Name:      "error_total",
		Help:      "Total number of backend errors.",
	}, []string{"host"})

	serve := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promServeSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of serving a request.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"code", "method"})

	serveCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promServeSubsystem,
		Name:      "count",
		Help:      "Total number of served requests.",
	}, []string{"code", "method"})

	pipelineErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promPipelineSubsystem,
		Name:      "error_total",
		Help:      "Total number of request lifecycle errors by kind.",
	}, []string{"kind"})

	customCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promCustomSubsystem,
		Name:      "total",
		Help:      "Total number of custom metrics.",
	}, []string{"key"})

	customGauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: promCustomSubsystem,
		Name:      "gauges",
		Help:      "Gauges number of custom metrics.",
	}, []string{"key"})

	customHistogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promCustomSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of custom metrics.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"key"})

	p := &Prometheus{
		filterM:         filter,
		filterAllM:      filterAll,
		backendM:        backend,
		backendErrorsM:  backendErrors,
		serveM:          serve,
		serveCounterM:   serveCounter,
		pipelineErrorsM: pipelineErrors,
		customCounterM:  customCounter,
		customGaugeM:    customGauge,
		customHistogram: customHistogram,

		registry: opts.PrometheusRegistry,
		opts:     opts,
	}

	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
	}

	p.registerMetrics()
	return p
}

// sinceS returns the seconds passed since the start time until now.
func (p *Prometheus) sinceS(start time.Time) float64 {
	return time.Since(start).Seconds()
}

func (p *Prometheus) registerMetrics() {
	p.registry.MustRegister(p.filterM)
	p.registry.MustRegister(p.filterAllM)
	p.registry.MustRegister(p.backendM)
	p.registry.MustRegister(p.backendErrorsM)
	p.registry.MustRegister(p.serveM)
	p.registry.MustRegister(p.serveCounterM)
	p.registry.MustRegister(p.pipelineErrorsM)
	p.registry.MustRegister(p.customCounterM)
	p.registry.MustRegister(p.customHistogram)
	p.registry.MustRegister(p.customGaugeM)

	if p.opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
}

// Registry returns the prometheus registry of the backend.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) CreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) getHandler() http.Handler {
	if p.handler != nil {
		return p.handler
	}

	p.handler = p.CreateHandler()
	return p.handler
}

// RegisterHandler satisfies Metrics interface.
func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	mux.Handle(path, p.getHandler())
}

// MeasureSince satisfies Metrics interface.
func (p *Prometheus) MeasureSince(key string, start time.Time) {
	p.customHistogram.WithLabelValues(key).Observe(p.sinceS(start))
}

// IncCounter satisfies Metrics interface.
func (p *Prometheus) IncCounter(key string) {
	p.customCounterM.WithLabelValues(key).Inc()
}

// IncCounterBy satisfies Metrics interface.
func (p *Prometheus) IncCounterBy(key string, value int64) {
	p.customCounterM.WithLabelValues(key).Add(float64(value))
}

// UpdateGauge satisfies Metrics interface.
func (p *Prometheus) UpdateGauge(key string, v float64) {
	p.customGaugeM.WithLabelValues(key).Set(v)
}

// MeasureFilter satisfies Metrics interface.
func (p *Prometheus) MeasureFilter(phase, filterName string, start time.Time) {
	p.filterM.WithLabelValues(phase, filterName).Observe(p.sinceS(start))
}

// MeasureAllFilters satisfies Metrics interface.
func (p *Prometheus) MeasureAllFilters(phase string, start time.Time) {
	p.filterAllM.WithLabelValues(phase).Observe(p.sinceS(start))
}

func (p *Prometheus) hostLabel(host string) string {
	if p.opts.EnableBackendHostMetrics {
		return host
	}

	return ""
}

// MeasureBackend satisfies Metrics interface.
func (p *Prometheus) MeasureBackend(host string, start time.Time) {
	p.backendM.WithLabelValues(p.hostLabel(host)).Observe(p.sinceS(start))
}

// IncErrorsBackend satisfies Metrics interface.
func (p *Prometheus) IncErrorsBackend(host string) {
	p.backendErrorsM.WithLabelValues(p.hostLabel(host)).Inc()
}

// MeasureServe satisfies Metrics interface.
func (p *Prometheus) MeasureServe(method string, code int, start time.Time) {
	method = measuredMethod(method)
	if !p.opts.EnableServeMethodMetric {
		method = ""
	}

	c := fmt.Sprint(code)
	p.serveM.WithLabelValues(c, method).Observe(p.sinceS(start))
	p.serveCounterM.WithLabelValues(c, method).Inc()
}

// IncPipelineFaults satisfies Metrics interface.
func (p *Prometheus) IncPipelineFaults() {
	p.pipelineErrorsM.WithLabelValues("pipeline").Inc()
}

// IncErrorsWrite satisfies Metrics interface.
func (p *Prometheus) IncErrorsWrite() {
	p.pipelineErrorsM.WithLabelValues("write").Inc()
}

// IncErrorsComplete satisfies Metrics interface.
func (p *Prometheus) IncErrorsComplete() {
	p.pipelineErrorsM.WithLabelValues("complete").Inc()
}
