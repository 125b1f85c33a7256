package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind selects the metrics backend.
type Kind int

const (
	UnknownKind Kind = iota
	CodaHaleKind
	PrometheusKind
	AllKind = CodaHaleKind | PrometheusKind
)

func (k Kind) String() string {
	switch k {
	case AllKind:
		return "all"
	case CodaHaleKind:
		return "codahale"
	case PrometheusKind:
		return "prometheus"
	default:
		return "unknown"
	}
}

// ParseMetricsKind parses the metrics flavour, as set in the
// configuration. Empty defaults to codahale.
func ParseMetricsKind(t string) (Kind, error) {
	switch strings.ToLower(t) {
	case "", "codahale":
		return CodaHaleKind, nil
	case "prometheus":
		return PrometheusKind, nil
	case "all":
		return AllKind, nil
	default:
		return UnknownKind, fmt.Errorf("invalid metrics flavour: %s", t)
	}
}

// Metrics is the generic interface that all the required backends
// should implement.
type Metrics interface {
	// Custom metrics, used by the filters.
	MeasureSince(key string, start time.Time)
	IncCounter(key string)
	IncCounterBy(key string, value int64)
	UpdateGauge(key string, value float64)

	// Additional methods
	MeasureFilter(phase, filterName string, start time.Time)
	MeasureAllFilters(phase string, start time.Time)
	MeasureBackend(host string, start time.Time)
	IncErrorsBackend(host string)
	MeasureServe(method string, code int, start time.Time)
	IncPipelineFaults()
	IncErrorsWrite()
	IncErrorsComplete()
	RegisterHandler(path string, handler *http.ServeMux)
}

// Options for initializing metrics collection.
type Options struct {
	// the metrics exposing format.
	Format Kind

	// Common prefix for the keys of the different
	// collected metrics.
	Prefix string

	// If set, garbage collector metrics are collected
	// in addition to the http traffic metrics.
	EnableDebugGcMetrics bool

	// If set, Go runtime metrics are collected in
	// addition to the http traffic metrics.
	EnableRuntimeMetrics bool

	// If set, the backend metrics are measured per backend host,
	// otherwise only combined.
	EnableBackendHostMetrics bool

	// If set, the serve metrics carry the request method.
	EnableServeMethodMetric bool

	// If set, detailed response time metrics will be collected
	// using an exponentially decaying sample instead of a
	// uniform one. Applies to the codahale flavour only.
	UseExpDecaySample bool

	// Prometheus histogram buckets. When not set,
	// prometheus.DefBuckets is used.
	HistogramBuckets []float64

	// PrometheusRegistry is the prometheus registry that will be
	// used. When not set, a new registry is created.
	PrometheusRegistry *prometheus.Registry
}

var (
	// Void is a noop metrics backend.
	Void Metrics = NewVoid()

	// Default is the metrics backend used when none is configured.
	Default = Void
)

// NewDefault returns a metrics backend of the kind set in the
// options.
func NewDefault(o Options) Metrics {
	switch o.Format {
	case AllKind:
		return NewAll(o)
	case PrometheusKind:
		return NewPrometheus(o)
	default:
		return NewCodaHale(o)
	}
}

// NewHandler returns a collection of metrics handlers.
func NewHandler(path string, m Metrics) http.Handler {
	mux := http.NewServeMux()
	m.RegisterHandler(path, mux)
	return mux
}
