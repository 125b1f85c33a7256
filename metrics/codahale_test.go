package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
)

func TestUseVoidByDefault(t *testing.T) {
	if Default != Void {
		t.Error("Default should not collect metrics")
	}

	c, ok := Default.(*CodaHale)
	if !ok {
		t.Fatal("Default metrics backend should be CodaHale")
	}

	key := fmt.Sprintf(KeyFilter, "inbound", "foo")
	if _, ok := c.getTimer(key).(metrics.NilTimer); !ok {
		t.Errorf("Able to get metric timer for key '%s' while it shouldn't be possible", key)
	}

	if _, ok := c.getCounter(KeyPipelineFaults).(metrics.NilCounter); !ok {
		t.Errorf("Able to get metric counter for key '%s' while it shouldn't be possible", KeyPipelineFaults)
	}
}

func TestCodaHaleDefaultOptions(t *testing.T) {
	c := NewCodaHale(Options{})
	if c.reg.Get("debug.GCStats.LastGC") != nil {
		t.Error("Default options should not enable debug gc stats")
	}

	if c.reg.Get("runtime.MemStats.Alloc") != nil {
		t.Error("Default options should not enable runtime stats")
	}
}

func TestCodaHaleRuntimeStats(t *testing.T) {
	c := NewCodaHale(Options{EnableRuntimeMetrics: true})
	if c.reg.Get("runtime.MemStats.Alloc") == nil {
		t.Error("Options enabled runtime stats but failed to find the key 'runtime.MemStats.Alloc'")
	}
}

func TestCodaHaleDebugGcStats(t *testing.T) {
	c := NewCodaHale(Options{EnableDebugGcMetrics: true})
	if c.reg.Get("debug.GCStats.LastGC") == nil {
		t.Error("Options enabled debug gc stats but failed to find the key 'debug.GCStats.LastGC'")
	}
}

func TestCodaHaleSample(t *testing.T) {
	const n = defaultExpDecayReservoirSize
	const total = n * (n + 1) / 2

	fill := func(o Options) metrics.Timer {
		timer := NewCodaHale(o).createTimer()
		for i := 1; i <= n; i++ {
			timer.Update(time.Duration(i))
		}

		return timer
	}

	if sum := fill(Options{UseExpDecaySample: true}).Sum(); sum != total {
		t.Errorf("expected the exponentially decaying sample to keep all values, sum %d, got %d", total, sum)
	}

	if sum := fill(Options{}).Sum(); sum >= total {
		t.Errorf("expected the uniform sample to drop values, sum %d", sum)
	}
}

func TestCodaHaleMeasurement(t *testing.T) {
	c := NewCodaHale(Options{})

	g1 := c.getGauge("TestGauge")
	c.UpdateGauge("TestGauge", 1)
	c.UpdateGauge("TestGauge", 3)
	if g1.Value() != 3 {
		t.Errorf("'TestGauge' metric should be 3. Got %f", g1.Value())
	}

	t1 := c.getTimer("TestMeasurement")
	if t1.Count() != 0 {
		t.Error("'TestMeasurement' metric should only have zeroes")
	}

	c.MeasureSince("TestMeasurement", time.Now().Add(-time.Millisecond))
	if t1.Count() != 1 || t1.Max() == 0 {
		t.Error("'TestMeasurement' metric should have some numbers")
	}

	c1 := c.getCounter("TestCounter")
	c.IncCounter("TestCounter")
	c.IncCounterBy("TestCounter", 2)
	if c1.Count() != 3 {
		t.Errorf("'TestCounter' metric should be 3. Got %d", c1.Count())
	}
}

type proxyMetricTest struct {
	metricsKey  string
	options     Options
	measureFunc func(Metrics)
}

var proxyMetricsTests = []proxyMetricTest{
	{fmt.Sprintf(KeyFilter, "inbound", "foo"), Options{}, func(m Metrics) { m.MeasureFilter("inbound", "foo", time.Now()) }},
	{fmt.Sprintf(KeyAllFilters, "outbound"), Options{}, func(m Metrics) { m.MeasureAllFilters("outbound", time.Now()) }},
	{KeyBackendCombined, Options{}, func(m Metrics) { m.MeasureBackend("example.org:80", time.Now()) }},
	{fmt.Sprintf(KeyBackendHost, "example_org__80"), Options{EnableBackendHostMetrics: true},
		func(m Metrics) { m.MeasureBackend("example.org:80", time.Now()) }},
	{KeyErrorsAllBackend, Options{}, func(m Metrics) { m.IncErrorsBackend("example.org") }},
	{fmt.Sprintf(KeyErrorsBackend, "example_org"), Options{EnableBackendHostMetrics: true},
		func(m Metrics) { m.IncErrorsBackend("example.org") }},
	{fmt.Sprintf(KeyServe, http.StatusOK), Options{}, func(m Metrics) { m.MeasureServe("GET", http.StatusOK, time.Now()) }},
	{fmt.Sprintf(KeyServeMethod, "_unknownmethod_", http.StatusOK), Options{EnableServeMethodMetric: true},
		func(m Metrics) { m.MeasureServe("FOO", http.StatusOK, time.Now()) }},
	{KeyPipelineFaults, Options{}, func(m Metrics) { m.IncPipelineFaults() }},
	{KeyErrorsWrite, Options{}, func(m Metrics) { m.IncErrorsWrite() }},
	{KeyErrorsComplete, Options{}, func(m Metrics) { m.IncErrorsComplete() }},
}

func TestCodaHaleProxyMetrics(t *testing.T) {
	for _, pmt := range proxyMetricsTests {
		t.Run(pmt.metricsKey, func(t *testing.T) {
			m := NewCodaHale(pmt.options)
			pmt.measureFunc(m)
			if m.reg.Get(pmt.metricsKey) == nil {
				t.Errorf("expected metric was not found: '%s'", pmt.metricsKey)
			}
		})
	}
}

type serializationResult map[string]map[string]map[string]interface{}

func TestMetricSerialization(t *testing.T) {
	for _, st := range []struct {
		i        interface{}
		expected serializationResult
	}{
		{metrics.NewGauge(), serializationResult{"gauges": {"test": {"value": 0.0}}}},
		{metrics.NewCounter(), serializationResult{"counters": {"test": {"count": 0.0}}}},
		{metrics.NewTimer(), serializationResult{"timers": {"test": {"15m.rate": 0.0, "1m.rate": 0.0, "5m.rate": 0.0,
			"75%": 0.0, "95%": 0.0, "99%": 0.0, "99.9%": 0.0, "count": 0.0, "max": 0.0, "mean": 0.0, "mean.rate": 0.0,
			"median": 0.0, "min": 0.0, "stddev": 0.0}}}},
		{metrics.NewHistogram(metrics.NewUniformSample(16)), serializationResult{"histograms": {"test": {"75%": 0.0,
			"95%": 0.0, "99%": 0.0, "99.9%": 0.0, "count": 0.0, "max": 0.0, "mean": 0.0, "median": 0.0, "min": 0.0,
			"stddev": 0.0}}}},
		{42, serializationResult{"unknown": {"test": {"error": "unknown metrics type int"}}}},
	} {
		b, err := json.Marshal(zuulMetrics{"test": st.i})
		if err != nil {
			t.Fatal(err)
		}

		var got serializationResult
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatal(err)
		}

		if !reflect.DeepEqual(got, st.expected) {
			t.Errorf("Got wrong serialization result. Expected '%v' but got '%v'", st.expected, got)
		}
	}
}

func TestCodaHaleHandler(t *testing.T) {
	c := NewCodaHale(Options{Prefix: "zuul."})
	c.IncPipelineFaults()
	c.IncErrorsWrite()

	mux := http.NewServeMux()
	c.RegisterHandler("/metrics/", mux)

	for _, ti := range []struct {
		msg    string
		method string
		path   string
		status int
		keys   []string
	}{{
		msg:    "all",
		method: "GET",
		path:   "/metrics/",
		status: http.StatusOK,
		keys:   []string{"zuul." + KeyPipelineFaults, "zuul." + KeyErrorsWrite},
	}, {
		msg:    "by prefixed key",
		method: "GET",
		path:   "/metrics/zuul.errors.write",
		status: http.StatusOK,
		keys:   []string{"zuul." + KeyErrorsWrite},
	}, {
		msg:    "by prefix",
		method: "GET",
		path:   "/metrics/errors.pipe",
		status: http.StatusOK,
		keys:   []string{"zuul." + KeyPipelineFaults},
	}, {
		msg:    "not found",
		method: "GET",
		path:   "/metrics/nothing",
		status: http.StatusNotFound,
	}, {
		msg:    "post",
		method: "POST",
		path:   "/metrics/",
		status: http.StatusMethodNotAllowed,
	}} {
		t.Run(ti.msg, func(t *testing.T) {
			rsp := httptest.NewRecorder()
			mux.ServeHTTP(rsp, httptest.NewRequest(ti.method, ti.path, nil))
			if rsp.Code != ti.status {
				t.Fatalf("expected status %d, got %d", ti.status, rsp.Code)
			}

			if ti.status != http.StatusOK {
				return
			}

			var got serializationResult
			if err := json.Unmarshal(rsp.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}

			if len(got["counters"]) != len(ti.keys) {
				t.Errorf("expected %d counters, got %v", len(ti.keys), got)
			}

			for _, k := range ti.keys {
				if _, ok := got["counters"][k]; !ok {
					t.Errorf("missing counter %s", k)
				}
			}
		})
	}
}

func TestParseMetricsKind(t *testing.T) {
	for _, ti := range []struct {
		in   string
		kind Kind
		err  bool
	}{
		{"", CodaHaleKind, false},
		{"codahale", CodaHaleKind, false},
		{"Prometheus", PrometheusKind, false},
		{"all", AllKind, false},
		{"statsd", UnknownKind, true},
	} {
		k, err := ParseMetricsKind(ti.in)
		if (err != nil) != ti.err || k != ti.kind {
			t.Errorf("%q: got %v, %v", ti.in, k, err)
		}
	}

	if AllKind.String() != "all" || (CodaHaleKind|PrometheusKind) != AllKind {
		t.Error("invalid all kind")
	}
}

func TestNewDefault(t *testing.T) {
	if _, ok := NewDefault(Options{Format: PrometheusKind}).(*Prometheus); !ok {
		t.Error("expected prometheus")
	}

	if _, ok := NewDefault(Options{Format: AllKind}).(*All); !ok {
		t.Error("expected all")
	}

	if _, ok := NewDefault(Options{}).(*CodaHale); !ok {
		t.Error("expected codahale")
	}
}
