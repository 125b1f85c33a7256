package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgezuul/zuul/circuit"
	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/filters/upstream"
)

func parse(t *testing.T, args ...string) *Config {
	t.Helper()
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("zuul", args))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := parse(t)

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, ":9911", cfg.SupportListener)
	assert.Equal(t, time.Duration(0), cfg.PipelineTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, upstream.DefaultTimeout, cfg.UpstreamTimeout)
	assert.Equal(t, upstream.DefaultDialTimeout, cfg.UpstreamDialTimeout)
	assert.Equal(t, upstream.DefaultIdleConnsPerHost, cfg.IdleConnsPerHost)
	assert.Equal(t, int64(10<<20), cfg.MaxRequestBodySize)
	assert.Equal(t, int64(upstream.DefaultMaxResponseBodySize), cfg.MaxResponseBodySize)
	assert.Equal(t, log.InfoLevel, cfg.ApplicationLogLevel)
	assert.Equal(t, "[APP]", cfg.ApplicationLogPrefix)
	assert.Equal(t, "zuul.", cfg.MetricsPrefix)
	assert.True(t, cfg.EnableRuntimeMetrics)
	assert.False(t, cfg.DebugGcMetrics)
	assert.False(t, cfg.MetricsUseExpDecaySample)
	assert.Equal(t, prometheus.DefBuckets, cfg.HistogramMetricBuckets)
	assert.Equal(t, "ingress", cfg.OpenTracingInitialSpan)
	assert.Empty(t, cfg.Breakers)
	assert.Nil(t, cfg.FilterChain)
}

func TestFlags(t *testing.T) {
	cfg := parse(t,
		"-address=:8080",
		"-pipeline-timeout=2s",
		"-application-log-level=debug",
		"-metrics-flavour=codahale,prometheus",
		"-opentracing-excluded-proxy-tags=http.url,flow_id",
		"-histogram-metric-buckets=5,1,2.5",
		"-breaker=type=rate,window=10,failures=3",
		"-breaker=host=api.example.org,failures=5",
	)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 2*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, log.DebugLevel, cfg.ApplicationLogLevel)
	assert.Equal(t, []string{"codahale", "prometheus"}, cfg.MetricsFlavour.values)
	assert.Equal(t, []string{"http.url", "flow_id"}, cfg.OpenTracingExcludedProxyTags.values)
	assert.Equal(t, []float64{1, 2.5, 5}, cfg.HistogramMetricBuckets)

	want := breakerFlags{{
		Type:     circuit.FailureRate,
		Window:   10,
		Failures: 3,
	}, {
		Type:     circuit.ConsecutiveFailures,
		Host:     "api.example.org",
		Failures: 5,
	}}

	if diff := cmp.Diff(want, cfg.Breakers); diff != "" {
		t.Errorf("invalid breakers (-want +got):\n%s", diff)
	}
}

func TestConfigFile(t *testing.T) {
	cfg := parse(t,
		"-config-file=testdata/test.yaml",
		"-address=:7070",
		"-breaker=type=disabled,host=legacy.example.org",
	)

	assert.Equal(t, ":7070", cfg.Address, "the flags take precedence over the file")
	assert.Equal(t, "", cfg.SupportListener)
	assert.Equal(t, 3*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, int64(1024), cfg.MaxRequestBodySize)
	assert.Equal(t, log.WarnLevel, cfg.ApplicationLogLevel)
	assert.Equal(t, []string{"codahale", "prometheus"}, cfg.MetricsFlavour.values)
	assert.Equal(t, "gateway.", cfg.MetricsPrefix)
	assert.Equal(t, 2, cfg.UpstreamRetries)

	wantBreakers := breakerFlags{{
		Type:     circuit.FailureRate,
		Window:   100,
		Failures: 10,
		Timeout:  time.Second,
	}, {
		Type:     circuit.ConsecutiveFailures,
		Host:     "api.example.org",
		Failures: 5,
	}, {
		Type: circuit.Disabled,
		Host: "legacy.example.org",
	}}

	if diff := cmp.Diff(wantBreakers, cfg.Breakers); diff != "" {
		t.Errorf("invalid breakers (-want +got):\n%s", diff)
	}

	wantFilters := &filters.Definition{
		Inbound:  []filters.Def{{Name: "flowId"}},
		Endpoint: &filters.Def{Name: "inlineContent", Args: []interface{}{"hello from the file"}},
	}

	if diff := cmp.Diff(wantFilters, cfg.FilterChain); diff != "" {
		t.Errorf("invalid filters (-want +got):\n%s", diff)
	}
}

func TestFilters(t *testing.T) {
	fromFile := &filters.Definition{
		Inbound:  []filters.Def{{Name: "setRequestHeader", Args: []interface{}{"X-Gateway", "zuul"}}},
		Endpoint: &filters.Def{Name: "upstream", Args: []interface{}{"http://localhost:8081"}},
		Outbound: []filters.Def{{Name: "compress"}},
	}

	inline := &filters.Definition{
		Endpoint: &filters.Def{Name: "status", Args: []interface{}{204}},
	}

	for _, tt := range []struct {
		title string
		args  []string
		want  *filters.Definition
	}{{
		title: "file",
		args:  []string{"-filters-file=testdata/filters.yaml"},
		want:  fromFile,
	}, {
		title: "inline",
		args:  []string{"-filters", "endpoint: {name: status, args: [204]}"},
		want:  inline,
	}, {
		title: "file takes precedence",
		args:  []string{"-filters-file=testdata/filters.yaml", "-filters", "endpoint: {name: status, args: [204]}"},
		want:  fromFile,
	}} {
		t.Run(tt.title, func(t *testing.T) {
			cfg := parse(t, tt.args...)
			if diff := cmp.Diff(tt.want, cfg.FilterChain); diff != "" {
				t.Errorf("invalid filters (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, tt := range []struct {
		title string
		args  []string
	}{{
		title: "unexpected argument",
		args:  []string{"unexpected"},
	}, {
		title: "log level",
		args:  []string{"-application-log-level=LOUD"},
	}, {
		title: "histogram buckets",
		args:  []string{"-histogram-metric-buckets=1,x"},
	}, {
		title: "negative body size",
		args:  []string{"-max-request-body-size=-1"},
	}, {
		title: "zero response body size",
		args:  []string{"-max-response-body-size-backend=0"},
	}, {
		title: "negative retries",
		args:  []string{"-upstream-retries=-1"},
	}, {
		title: "missing config file",
		args:  []string{"-config-file=testdata/missing.yaml"},
	}, {
		title: "missing filters file",
		args:  []string{"-filters-file=testdata/missing.yaml"},
	}, {
		title: "unknown key in the filters file",
		args:  []string{"-filters-file=testdata/invalid-filters.yaml"},
	}} {
		t.Run(tt.title, func(t *testing.T) {
			assert.Error(t, NewConfig().ParseArgs("zuul", tt.args))
		})
	}
}

func TestToOptions(t *testing.T) {
	cfg := parse(t,
		"-config-file=testdata/test.yaml",
		"-opentracing-excluded-proxy-tags=http.url",
		"-shutdown-grace-period=1s",
		"-debug-gc-metrics",
		"-metrics-exp-decay-sample",
		"-max-response-body-size-backend=4096",
	)

	o := cfg.ToOptions()
	assert.Equal(t, "localhost:8080", o.Address)
	assert.Equal(t, "", o.SupportListener)
	assert.Equal(t, 3*time.Second, o.PipelineTimeout)
	assert.Equal(t, int64(1024), o.MaxRequestBodySize)
	assert.Equal(t, time.Second, o.ShutdownGracePeriod)
	assert.Equal(t, 2, o.UpstreamRetries)
	assert.Equal(t, int64(4096), o.MaxResponseBodySize)
	assert.Len(t, o.BreakerSettings, 2)
	assert.Equal(t, log.WarnLevel, o.ApplicationLogLevel)
	assert.True(t, o.ApplicationLogLevelSet)
	assert.Equal(t, []string{"codahale", "prometheus"}, o.MetricsFlavours)
	assert.Equal(t, "gateway.", o.MetricsPrefix)
	assert.True(t, o.EnableDebugGcMetrics)
	assert.True(t, o.MetricsUseExpDecaySample)
	assert.Equal(t, []string{"http.url"}, o.OpenTracingExcludedProxyTags)
	assert.Same(t, cfg.FilterChain, o.Filters)
}

func TestPanicLogLevel(t *testing.T) {
	o := parse(t, "-application-log-level=PANIC").ToOptions()
	assert.Equal(t, log.PanicLevel, o.ApplicationLogLevel)
	assert.True(t, o.ApplicationLogLevelSet)
}
