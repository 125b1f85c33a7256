package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
)

const (
	KeyFilter           = "filter.%s.%s"
	KeyAllFilters       = "allfilters.%s"
	KeyBackendCombined  = "all.backend"
	KeyBackendHost      = "backendhost.%s"
	KeyErrorsBackend    = "errors.backend.%s"
	KeyServe            = "serve.%d"
	KeyServeMethod      = "serve.%s.%d"
	KeyPipelineFaults   = "errors.pipeline"
	KeyErrorsWrite      = "errors.write"
	KeyErrorsComplete   = "errors.complete"
	KeyErrorsAllBackend = "errors.backend"

	statsRefreshDuration = 5 * time.Second

	defaultUniformReservoirSize  = 1024
	defaultExpDecayReservoirSize = 1028
	defaultExpDecayAlpha         = 0.015
)

// CodaHale is the CodaHale format backend, implements Metrics interface in DropWizard's CodaHale metrics format.
type CodaHale struct {
	reg           metrics.Registry
	createTimer   func() metrics.Timer
	createCounter func() metrics.Counter
	createGauge   func() metrics.GaugeFloat64
	options       Options
	handler       http.Handler
}

// NewCodaHale returns a new CodaHale backend of metrics.
func NewCodaHale(o Options) *CodaHale {
	c := &CodaHale{}
	c.reg = metrics.NewRegistry()

	var createSample func() metrics.Sample
	if o.UseExpDecaySample {
		createSample = newExpDecaySample
	} else {
		createSample = newUniformSample
	}
	c.createTimer = func() metrics.Timer { return createTimer(createSample()) }

	c.createCounter = metrics.NewCounter
	c.createGauge = metrics.NewGaugeFloat64
	c.options = o

	if o.EnableDebugGcMetrics {
		metrics.RegisterDebugGCStats(c.reg)
		go metrics.CaptureDebugGCStats(c.reg, statsRefreshDuration)
	}

	if o.EnableRuntimeMetrics {
		metrics.RegisterRuntimeMemStats(c.reg)
		go metrics.CaptureRuntimeMemStats(c.reg, statsRefreshDuration)
	}

	return c
}

// NewVoid returns a backend that drops every measurement.
func NewVoid() *CodaHale {
	c := &CodaHale{}
	c.reg = metrics.NewRegistry()
	c.createTimer = func() metrics.Timer { return metrics.NilTimer{} }
	c.createCounter = func() metrics.Counter { return metrics.NilCounter{} }
	c.createGauge = func() metrics.GaugeFloat64 { return metrics.NilGaugeFloat64{} }
	return c
}

func (c *CodaHale) getTimer(key string) metrics.Timer {
	return c.reg.GetOrRegister(key, c.createTimer).(metrics.Timer)
}

func (c *CodaHale) getGauge(key string) metrics.GaugeFloat64 {
	return c.reg.GetOrRegister(key, c.createGauge).(metrics.GaugeFloat64)
}

func (c *CodaHale) getCounter(key string) metrics.Counter {
	return c.reg.GetOrRegister(key, c.createCounter).(metrics.Counter)
}

func (c *CodaHale) measureSince(key string, start time.Time) {
	c.getTimer(key).UpdateSince(start)
}

func (c *CodaHale) incCounter(key string, value int64) {
	c.getCounter(key).Inc(value)
}

func (c *CodaHale) MeasureSince(key string, start time.Time) {
	c.measureSince(key, start)
}

func (c *CodaHale) IncCounter(key string) {
	c.incCounter(key, 1)
}

func (c *CodaHale) IncCounterBy(key string, value int64) {
	c.incCounter(key, value)
}

func (c *CodaHale) UpdateGauge(key string, v float64) {
	c.getGauge(key).Update(v)
}

func (c *CodaHale) MeasureFilter(phase, filterName string, start time.Time) {
	c.measureSince(fmt.Sprintf(KeyFilter, phase, filterName), start)
}

func (c *CodaHale) MeasureAllFilters(phase string, start time.Time) {
	c.measureSince(fmt.Sprintf(KeyAllFilters, phase), start)
}

func (c *CodaHale) MeasureBackend(host string, start time.Time) {
	c.measureSince(KeyBackendCombined, start)
	if c.options.EnableBackendHostMetrics {
		c.measureSince(fmt.Sprintf(KeyBackendHost, hostForKey(host)), start)
	}
}

func (c *CodaHale) IncErrorsBackend(host string) {
	c.incCounter(KeyErrorsAllBackend, 1)
	if c.options.EnableBackendHostMetrics {
		c.incCounter(fmt.Sprintf(KeyErrorsBackend, hostForKey(host)), 1)
	}
}

func (c *CodaHale) MeasureServe(method string, code int, start time.Time) {
	if c.options.EnableServeMethodMetric {
		c.measureSince(fmt.Sprintf(KeyServeMethod, measuredMethod(method), code), start)
		return
	}

	c.measureSince(fmt.Sprintf(KeyServe, code), start)
}

func (c *CodaHale) IncPipelineFaults() {
	c.incCounter(KeyPipelineFaults, 1)
}

func (c *CodaHale) IncErrorsWrite() {
	c.incCounter(KeyErrorsWrite, 1)
}

func (c *CodaHale) IncErrorsComplete() {
	c.incCounter(KeyErrorsComplete, 1)
}

func (c *CodaHale) RegisterHandler(path string, handler *http.ServeMux) {
	h := c.getHandler(path)
	handler.Handle(path, h)
}

func (c *CodaHale) CreateHandler(path string) http.Handler {
	return &codaHaleMetricsHandler{path: path, registry: c.reg, options: c.options}
}

func (c *CodaHale) getHandler(path string) http.Handler {
	if c.handler != nil {
		return c.handler
	}

	c.handler = c.CreateHandler(path)
	return c.handler
}

type codaHaleMetricsHandler struct {
	path     string
	registry metrics.Registry
	options  Options
}

func (c *codaHaleMetricsHandler) sendMetrics(w http.ResponseWriter, p string) {
	_, k := path.Split(p)

	metrics := filterMetrics(c.registry, c.options.Prefix, k)

	if len(metrics) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(metrics)
	} else {
		http.NotFound(w, nil)
	}
}

// This listener is only used to expose the metrics
func (c *codaHaleMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	c.sendMetrics(w, strings.TrimPrefix(r.URL.Path, c.path))
}

func filterMetrics(reg metrics.Registry, prefix, key string) zuulMetrics {
	metrics := make(zuulMetrics)

	canonicalKey := strings.TrimPrefix(key, prefix)
	m := reg.Get(canonicalKey)
	if m != nil {
		metrics[key] = m
	} else {
		reg.Each(func(name string, i interface{}) {
			if key == "" || (strings.HasPrefix(name, canonicalKey)) {
				metrics[prefix+name] = i
			}
		})
	}
	return metrics
}

type zuulMetrics map[string]interface{}

func timerValues(t metrics.Timer) map[string]interface{} {
	s := t.Snapshot()
	ps := s.Percentiles([]float64{0.5, 0.75, 0.95, 0.99, 0.999})
	return map[string]interface{}{
		"count":     s.Count(),
		"min":       s.Min(),
		"max":       s.Max(),
		"mean":      s.Mean(),
		"stddev":    s.StdDev(),
		"median":    ps[0],
		"75%":       ps[1],
		"95%":       ps[2],
		"99%":       ps[3],
		"99.9%":     ps[4],
		"1m.rate":   s.Rate1(),
		"5m.rate":   s.Rate5(),
		"15m.rate":  s.Rate15(),
		"mean.rate": s.RateMean(),
	}
}

func histogramValues(h metrics.Histogram) map[string]interface{} {
	s := h.Snapshot()
	ps := s.Percentiles([]float64{0.5, 0.75, 0.95, 0.99, 0.999})
	return map[string]interface{}{
		"count":  s.Count(),
		"min":    s.Min(),
		"max":    s.Max(),
		"mean":   s.Mean(),
		"stddev": s.StdDev(),
		"median": ps[0],
		"75%":    ps[1],
		"95%":    ps[2],
		"99%":    ps[3],
		"99.9%":  ps[4],
	}
}

// MarshalJSON groups the metrics by family: gauges, histograms,
// timers and counters.
func (zm zuulMetrics) MarshalJSON() ([]byte, error) {
	data := make(map[string]map[string]interface{})
	for name, metric := range zm {
		var (
			family string
			values map[string]interface{}
		)

		switch m := metric.(type) {
		case metrics.Gauge:
			family = "gauges"
			values = map[string]interface{}{"value": m.Value()}
		case metrics.GaugeFloat64:
			family = "gauges"
			values = map[string]interface{}{"value": m.Snapshot().Value()}
		case metrics.Histogram:
			family = "histograms"
			values = histogramValues(m)
		case metrics.Timer:
			family = "timers"
			values = timerValues(m)
		case metrics.Counter:
			family = "counters"
			values = map[string]interface{}{"count": m.Snapshot().Count()}
		default:
			family = "unknown"
			values = map[string]interface{}{"error": fmt.Sprintf("unknown metrics type %T", m)}
		}

		if data[family] == nil {
			data[family] = make(map[string]interface{})
		}

		data[family][name] = values
	}

	return json.Marshal(data)
}
