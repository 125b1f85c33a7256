package config

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/edgezuul/zuul"
	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/filters/upstream"
)

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address            string        `yaml:"address"`
	SupportListener    string        `yaml:"support-listener"`
	PipelineTimeout    time.Duration `yaml:"pipeline-timeout"`
	MaxRequestBodySize int64         `yaml:"max-request-body-size"`
	ShutdownGrace      time.Duration `yaml:"shutdown-grace-period"`

	// filters:
	FiltersFile   string              `yaml:"filters-file"`
	FiltersInline *definitionFlag     `yaml:"filters"`
	FilterChain   *filters.Definition `yaml:"-"`

	// upstream:
	UpstreamTimeout       time.Duration `yaml:"timeout-backend"`
	UpstreamDialTimeout   time.Duration `yaml:"dial-timeout-backend"`
	ResponseHeaderTimeout time.Duration `yaml:"response-header-timeout-backend"`
	IdleConnsPerHost      int           `yaml:"idle-conns-num"`
	UpstreamRetries       int           `yaml:"upstream-retries"`
	MaxResponseBodySize   int64         `yaml:"max-response-body-size-backend"`
	Breakers              breakerFlags  `yaml:"breaker"`

	// logging, metrics, tracing:
	ApplicationLog               string    `yaml:"application-log"`
	ApplicationLogLevel          log.Level `yaml:"-"`
	ApplicationLogLevelString    string    `yaml:"application-log-level"`
	ApplicationLogPrefix         string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled    bool      `yaml:"application-log-json-enabled"`
	AccessLog                    string    `yaml:"access-log"`
	AccessLogDisabled            bool      `yaml:"access-log-disabled"`
	AccessLogJSONEnabled         bool      `yaml:"access-log-json-enabled"`
	MetricsFlavour               *listFlag `yaml:"metrics-flavour"`
	MetricsPrefix                string    `yaml:"metrics-prefix"`
	EnableRuntimeMetrics         bool      `yaml:"runtime-metrics"`
	DebugGcMetrics               bool      `yaml:"debug-gc-metrics"`
	MetricsUseExpDecaySample     bool      `yaml:"metrics-exp-decay-sample"`
	HistogramMetricBucketsString string    `yaml:"histogram-metric-buckets"`
	HistogramMetricBuckets       []float64 `yaml:"-"`
	OpenTracingInitialSpan       string    `yaml:"opentracing-initial-span"`
	OpenTracingExcludedProxyTags *listFlag `yaml:"opentracing-excluded-proxy-tags"`
	OpenTracingLogFilterEvents   bool      `yaml:"opentracing-log-filter-events"`
}

const (
	defaultApplicationLogLevel = "INFO"
	defaultMaxRequestBodySize  = 10 << 20
	defaultMetricsPrefix       = "zuul."
)

func NewConfig() *Config {
	cfg := new(Config)
	cfg.MetricsFlavour = commaListFlag("codahale", "prometheus")
	cfg.OpenTracingExcludedProxyTags = commaListFlag()
	cfg.FiltersInline = &definitionFlag{}

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", ":9090", "network address that zuul should listen on")
	flag.StringVar(&cfg.SupportListener, "support-listener", ":9911", "network address used for exposing the /metrics endpoint and the /healthz check. Disabled when empty")
	flag.DurationVar(&cfg.PipelineTimeout, "pipeline-timeout", 0, "maximum duration of the filter chain of a request, including the upstream request. Requests exceeding it are answered with 500. Zero means no limit")
	flag.Int64Var(&cfg.MaxRequestBodySize, "max-request-body-size", defaultMaxRequestBodySize, "maximum size of the request bodies in bytes. Larger requests are rejected by the upstream filter with 400. Zero means no limit")
	flag.DurationVar(&cfg.ShutdownGrace, "shutdown-grace-period", 10*time.Second, "time to wait for the open requests to complete on SIGTERM")

	// filters:
	flag.StringVar(&cfg.FiltersFile, "filters-file", "", "file with the YAML definition of the filter chain")
	flag.Var(cfg.FiltersInline, "filters", "YAML definition of the filter chain, used when no filters file is set")

	// upstream:
	flag.DurationVar(&cfg.UpstreamTimeout, "timeout-backend", upstream.DefaultTimeout, "timeout of the upstream requests, including reading the response")
	flag.DurationVar(&cfg.UpstreamDialTimeout, "dial-timeout-backend", upstream.DefaultDialTimeout, "timeout of establishing the connections to the backends")
	flag.DurationVar(&cfg.ResponseHeaderTimeout, "response-header-timeout-backend", 0, "timeout of waiting for the response headers of the backends. Zero means no limit other than timeout-backend")
	flag.IntVar(&cfg.IdleConnsPerHost, "idle-conns-num", upstream.DefaultIdleConnsPerHost, "maximum idle connections per backend host")
	flag.Int64Var(&cfg.MaxResponseBodySize, "max-response-body-size-backend", upstream.DefaultMaxResponseBodySize, "maximum size of the backend response bodies in bytes. Larger responses are answered with 502")
	flag.IntVar(&cfg.UpstreamRetries, "upstream-retries", 0, "number of times a request without a body is retried when the connection to the backend fails")
	flag.Var(&cfg.Breakers, "breaker", breakerUsage)

	// logging, metrics, tracing:
	flag.StringVar(&cfg.ApplicationLog, "application-log", "", "output file for the application log. When not set, /dev/stderr is used")
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", defaultApplicationLogLevel, "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", "[APP]", "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.StringVar(&cfg.AccessLog, "access-log", "", "output file for the access log. When not set, /dev/stderr is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.Var(cfg.MetricsFlavour, "metrics-flavour", "metrics flavour is used to change the exposed metrics format. Supported metric formats: 'codahale' and 'prometheus', you can select both of them")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", defaultMetricsPrefix, "allows setting a custom path prefix for the metrics keys")
	flag.BoolVar(&cfg.EnableRuntimeMetrics, "runtime-metrics", true, "enables reporting of the Go runtime statistics exported in runtime and specifically runtime.MemStats")
	flag.BoolVar(&cfg.DebugGcMetrics, "debug-gc-metrics", false, "enables reporting of the Go garbage collector statistics exported in debug.GCStats")
	flag.BoolVar(&cfg.MetricsUseExpDecaySample, "metrics-exp-decay-sample", false, "use exponentially decaying sample in the codahale timers")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for prometheus histograms, must be a comma-separated list of numbers")
	flag.StringVar(&cfg.OpenTracingInitialSpan, "opentracing-initial-span", "ingress", "set the name of the initial, pre-routing, tracing span")
	flag.Var(cfg.OpenTracingExcludedProxyTags, "opentracing-excluded-proxy-tags", "set tags that should be excluded from spans created for proxy operation. must be a comma-separated list of strings")
	flag.BoolVar(&cfg.OpenTracingLogFilterEvents, "opentracing-log-filter-events", false, "when this flag is set, the start and the end of each filter is logged in the phase spans")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	_, err := log.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return err
	}

	_, err = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)
	if err != nil {
		return err
	}

	if c.MaxRequestBodySize < 0 {
		return fmt.Errorf("invalid max-request-body-size: %d", c.MaxRequestBodySize)
	}

	if c.MaxResponseBodySize <= 0 {
		return fmt.Errorf("invalid max-response-body-size-backend: %d", c.MaxResponseBodySize)
	}

	if c.UpstreamRetries < 0 {
		return fmt.Errorf("invalid upstream-retries: %d", c.UpstreamRetries)
	}

	return nil
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		// the breakers of the flags are appended again below
		c.Breakers = nil
		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.HistogramMetricBuckets, _ = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)

	return c.loadFilters()
}

func (c *Config) loadFilters() error {
	if c.FiltersFile != "" {
		d, err := loadDefinition(c.FiltersFile)
		if err != nil {
			return fmt.Errorf("invalid filters file: %w", err)
		}

		c.FilterChain = d
		return nil
	}

	if c.FiltersInline != nil {
		c.FilterChain = c.FiltersInline.definition
	}

	return nil
}

func (c *Config) ToOptions() zuul.Options {
	var flavours, excludedTags []string
	if c.MetricsFlavour != nil {
		flavours = c.MetricsFlavour.values
	}

	if c.OpenTracingExcludedProxyTags != nil {
		excludedTags = c.OpenTracingExcludedProxyTags.values
	}

	return zuul.Options{
		// generic:
		Address:             c.Address,
		SupportListener:     c.SupportListener,
		PipelineTimeout:     c.PipelineTimeout,
		MaxRequestBodySize:  c.MaxRequestBodySize,
		ShutdownGracePeriod: c.ShutdownGrace,

		// filters:
		Filters: c.FilterChain,

		// upstream:
		UpstreamTimeout:        c.UpstreamTimeout,
		UpstreamDialTimeout:    c.UpstreamDialTimeout,
		ResponseHeaderTimeout:  c.ResponseHeaderTimeout,
		IdleConnectionsPerHost: c.IdleConnsPerHost,
		UpstreamRetries:        c.UpstreamRetries,
		MaxResponseBodySize:    c.MaxResponseBodySize,
		BreakerSettings:        c.Breakers,

		// logging, metrics, tracing:
		ApplicationLogOutput:         c.ApplicationLog,
		ApplicationLogPrefix:         c.ApplicationLogPrefix,
		ApplicationLogLevel:          c.ApplicationLogLevel,
		ApplicationLogLevelSet:       true,
		ApplicationLogJSONEnabled:    c.ApplicationLogJSONEnabled,
		AccessLogOutput:              c.AccessLog,
		AccessLogDisabled:            c.AccessLogDisabled,
		AccessLogJSONEnabled:         c.AccessLogJSONEnabled,
		MetricsFlavours:              flavours,
		MetricsPrefix:                c.MetricsPrefix,
		EnableRuntimeMetrics:         c.EnableRuntimeMetrics,
		EnableDebugGcMetrics:         c.DebugGcMetrics,
		MetricsUseExpDecaySample:     c.MetricsUseExpDecaySample,
		HistogramMetricBuckets:       c.HistogramMetricBuckets,
		OpenTracingInitialSpan:       c.OpenTracingInitialSpan,
		OpenTracingExcludedProxyTags: excludedTags,
		OpenTracingLogFilterEvents:   c.OpenTracingLogFilterEvents,
	}
}

func (c *Config) parseHistogramBuckets(bucketString string, defaultBuckets []float64) ([]float64, error) {
	if bucketString == "" {
		return defaultBuckets, nil
	}

	var result []float64
	thresholds := strings.Split(bucketString, ",")
	for _, v := range thresholds {
		bucket, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}
		result = append(result, bucket)
	}
	sort.Float64s(result)
	return result, nil
}
