package zuul

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ot "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/edgezuul/zuul/circuit"
	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/filters/builtin"
	"github.com/edgezuul/zuul/filters/upstream"
	"github.com/edgezuul/zuul/logging"
	"github.com/edgezuul/zuul/metrics"
	"github.com/edgezuul/zuul/proxy"
	"github.com/edgezuul/zuul/session"
)

const (
	defaultShutdownGracePeriod = 10 * time.Second
	readHeaderTimeout          = time.Minute
)

// Options to start the gateway.
type Options struct {

	// Network address that the gateway should listen on.
	Address string

	// Network address of the listener serving /metrics and
	// /healthz. When empty, no support listener is started.
	SupportListener string

	// Filters defines the filter chain applied to every request.
	// Without an endpoint filter, every request is answered with
	// 404.
	Filters *filters.Definition

	// CustomFilters are registered in addition to the built-in
	// filters. A custom filter overrides the built-in one with the
	// same name.
	CustomFilters []filters.Spec

	// Decorator, when set, is applied to the session context of
	// every request.
	Decorator session.Decorator

	// RequestCompleteHandlers are notified about every request,
	// after the access log and the serve metrics.
	RequestCompleteHandlers []proxy.RequestCompleteHandler

	// PipelineTimeout limits the time spent in the filter chain,
	// including the upstream request.
	PipelineTimeout time.Duration

	// MaxRequestBodySize limits the size of the request bodies.
	// Zero means no limit.
	MaxRequestBodySize int64

	// Timeout of the upstream requests.
	UpstreamTimeout time.Duration

	// Timeout of establishing the connections to the backends.
	UpstreamDialTimeout time.Duration

	// Timeout of waiting for the response headers of the backends.
	ResponseHeaderTimeout time.Duration

	// Maximum number of idle connections per backend host.
	IdleConnectionsPerHost int

	// MaxResponseBodySize limits the size of the backend response
	// bodies. Zero means upstream.DefaultMaxResponseBodySize.
	MaxResponseBodySize int64

	// Number of times a bodiless upstream request is retried when
	// the connection to the backend fails.
	UpstreamRetries int

	// BreakerSettings enable the circuit breakers. The settings
	// without a host are the defaults for all the backend hosts.
	BreakerSettings []circuit.Settings

	// Output file of the application log. Defaults to stderr.
	ApplicationLogOutput string

	// Prefix of the application log entries.
	ApplicationLogPrefix string

	// Minimum level of the application log entries. Applied only
	// when ApplicationLogLevelSet is true.
	ApplicationLogLevel log.Level

	ApplicationLogLevelSet bool

	ApplicationLogJSONEnabled bool

	// Output file of the access log. Defaults to stderr.
	AccessLogOutput string

	AccessLogDisabled bool

	AccessLogJSONEnabled bool

	// MetricsFlavours selects the metrics backends: codahale,
	// prometheus or both. Defaults to codahale.
	MetricsFlavours []string

	// Common prefix of the metrics keys.
	MetricsPrefix string

	// If set, Go runtime metrics are collected.
	EnableRuntimeMetrics bool

	// If set, Go garbage collector metrics are collected.
	EnableDebugGcMetrics bool

	// If set, the codahale timers use an exponentially decaying
	// sample instead of a uniform one.
	MetricsUseExpDecaySample bool

	// Prometheus histogram buckets.
	HistogramMetricBuckets []float64

	// Metrics overrides the backend created from the metrics
	// options.
	Metrics metrics.Metrics

	// OpenTracer receives the spans of the requests, the filter
	// phases and the upstream requests. Defaults to the noop
	// tracer.
	OpenTracer ot.Tracer

	// Name of the span covering the whole request. Default:
	// "ingress".
	OpenTracingInitialSpan string

	// Tags not set on the request spans.
	OpenTracingExcludedProxyTags []string

	// If set, the start and the end of each filter is logged in
	// the phase spans.
	OpenTracingLogFilterEvents bool

	// Time to wait on SIGTERM for the open requests to complete
	// before closing the connections.
	ShutdownGracePeriod time.Duration
}

type gateway struct {
	proxy   *proxy.Proxy
	metrics metrics.Metrics
}

func openLogOutput(path string) (io.Writer, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %s: %w", path, err)
	}

	return f, nil
}

func initLog(o Options) error {
	appOut, err := openLogOutput(o.ApplicationLogOutput)
	if err != nil {
		return err
	}

	accessOut, err := openLogOutput(o.AccessLogOutput)
	if err != nil {
		return err
	}

	logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogOutput:      appOut,
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogLevelSet:    o.ApplicationLogLevelSet,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		AccessLogOutput:           accessOut,
		AccessLogDisabled:         o.AccessLogDisabled,
		AccessLogJSONEnabled:      o.AccessLogJSONEnabled,
	})

	return nil
}

func metricsKind(flavours []string) (metrics.Kind, error) {
	kind := metrics.UnknownKind
	for _, f := range flavours {
		k, err := metrics.ParseMetricsKind(f)
		if err != nil {
			return metrics.UnknownKind, err
		}

		kind |= k
	}

	if kind == metrics.UnknownKind {
		kind = metrics.CodaHaleKind
	}

	return kind, nil
}

func createMetrics(o Options) (metrics.Metrics, error) {
	if o.Metrics != nil {
		return o.Metrics, nil
	}

	kind, err := metricsKind(o.MetricsFlavours)
	if err != nil {
		return nil, err
	}

	return metrics.NewDefault(metrics.Options{
		Format:                   kind,
		Prefix:                   o.MetricsPrefix,
		EnableRuntimeMetrics:     o.EnableRuntimeMetrics,
		EnableDebugGcMetrics:     o.EnableDebugGcMetrics,
		UseExpDecaySample:        o.MetricsUseExpDecaySample,
		EnableBackendHostMetrics: true,
		EnableServeMethodMetric:  true,
		HistogramBuckets:         o.HistogramMetricBuckets,
	}), nil
}

func createBreakers(settings []circuit.Settings, m metrics.Metrics) *circuit.Registry {
	if len(settings) == 0 {
		return nil
	}

	var ro circuit.Options
	for _, s := range settings {
		if s.Host == "" {
			ro.Defaults = s
		} else {
			ro.HostSettings = append(ro.HostSettings, s)
		}
	}

	ro.Metrics = m
	return circuit.NewRegistry(ro)
}

func createRegistry(o Options, m metrics.Metrics) filters.Registry {
	r := builtin.MakeRegistry()
	r.Register(upstream.NewSpec(upstream.Options{
		Timeout:               o.UpstreamTimeout,
		DialTimeout:           o.UpstreamDialTimeout,
		ResponseHeaderTimeout: o.ResponseHeaderTimeout,
		IdleConnsPerHost:      o.IdleConnectionsPerHost,
		Breakers:              createBreakers(o.BreakerSettings, m),
		Retries:               o.UpstreamRetries,
		MaxResponseBodySize:   o.MaxResponseBodySize,
		Metrics:               m,
		Tracer:                o.OpenTracer,
	}))

	r.Register(o.CustomFilters...)
	return r
}

func newGateway(o Options) (*gateway, error) {
	m, err := createMetrics(o)
	if err != nil {
		return nil, err
	}

	compiled, err := filters.Compile(createRegistry(o, m), o.Filters)
	if err != nil {
		return nil, err
	}

	stages := filters.NewProcessor(compiled, filters.ProcessorOptions{
		Metrics:         m,
		Tracer:          o.OpenTracer,
		LogFilterEvents: o.OpenTracingLogFilterEvents,
	})

	handlers := []proxy.RequestCompleteHandler{
		proxy.AccessLogHandler{},
		proxy.MetricsHandler{Metrics: m},
	}

	handlers = append(handlers, o.RequestCompleteHandlers...)

	p := proxy.WithParams(proxy.Params{
		Stages:                 stages,
		ContextFactory:         &proxy.HTTPContextFactory{MaxBodySize: o.MaxRequestBodySize},
		Decorator:              o.Decorator,
		RequestCompleteHandler: proxy.CompleteHandlers(handlers...),
		PipelineTimeout:        o.PipelineTimeout,
		Metrics:                m,
		OpenTracing: &proxy.OpenTracingParams{
			Tracer:      o.OpenTracer,
			InitialSpan: o.OpenTracingInitialSpan,
			ExcludeTags: o.OpenTracingExcludedProxyTags,
		},
	})

	return &gateway{proxy: p, metrics: m}, nil
}

// handler serves the gateway requests. The resolved responses are
// stored in the request attributes.
func (g *gateway) handler() http.Handler {
	return proxy.AttributesHandler(g.proxy)
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		log.Errorf("Failed to write health check: %v", err)
	}
}

func (g *gateway) supportHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", metrics.NewHandler("/metrics", g.metrics))
	mux.HandleFunc("/healthz", healthCheck)
	return mux
}

func listen(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return l, nil
}

func shutdown(servers []*http.Server, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, err)
			s.Close()
		}
	}

	return errors.Join(errs...)
}

// run serves until a signal is received on sig, or one of the
// listeners fails. When ready is not nil, it receives the addresses of
// the main and the support listener, once they accept connections.
func run(o Options, sig <-chan os.Signal, ready func(main, support net.Addr)) error {
	if err := initLog(o); err != nil {
		return err
	}

	g, err := newGateway(o)
	if err != nil {
		return err
	}

	l, err := listen(o.Address)
	if err != nil {
		return err
	}

	servers := []*http.Server{{Handler: g.handler(), ReadHeaderTimeout: readHeaderTimeout}}
	listeners := []net.Listener{l}

	var supportAddr net.Addr
	if o.SupportListener != "" {
		sl, err := listen(o.SupportListener)
		if err != nil {
			l.Close()
			return err
		}

		supportAddr = sl.Addr()
		servers = append(servers, &http.Server{Handler: g.supportHandler(), ReadHeaderTimeout: readHeaderTimeout})
		listeners = append(listeners, sl)
	}

	grace := o.ShutdownGracePeriod
	if grace <= 0 {
		grace = defaultShutdownGracePeriod
	}

	eg, ctx := errgroup.WithContext(context.Background())
	for i, s := range servers {
		li := listeners[i]
		log.Infof("listening on %v", li.Addr())
		eg.Go(func() error {
			if err := s.Serve(li); !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("listener %v failed: %v", li.Addr(), err)
				return err
			}

			return nil
		})
	}

	if ready != nil {
		ready(l.Addr(), supportAddr)
	}

	eg.Go(func() error {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
		case <-ctx.Done():
		}

		return shutdown(servers, grace)
	})

	return eg.Wait()
}

// Run starts the gateway with the given options. It blocks until
// SIGTERM or SIGINT is received, and then waits for the open requests
// to complete within the shutdown grace period.
func Run(o Options) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sig)

	return run(o, sig, nil)
}
