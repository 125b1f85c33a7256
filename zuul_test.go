package zuul

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgezuul/zuul/circuit"
	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/filters/filtertest"
	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/metrics"
	"github.com/edgezuul/zuul/metrics/metricstest"
	"github.com/edgezuul/zuul/proxy"
)

func helloChain() *filters.Definition {
	return &filters.Definition{
		Endpoint: &filters.Def{Name: "inlineContent", Args: []interface{}{"Hello, world!"}},
		Outbound: []filters.Def{{Name: "setResponseHeader", Args: []interface{}{"X-Gateway", "zuul"}}},
	}
}

func get(t *testing.T, u string) (int, http.Header, string) {
	t.Helper()
	rsp, err := http.Get(u)
	require.NoError(t, err)
	defer rsp.Body.Close()

	b, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	return rsp.StatusCode, rsp.Header, string(b)
}

func TestInitLogLevel(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	for _, tt := range []struct {
		title string
		level log.Level
		set   bool
		want  log.Level
	}{{
		title: "not set",
		level: log.PanicLevel,
		want:  log.InfoLevel,
	}, {
		title: "panic",
		level: log.PanicLevel,
		set:   true,
		want:  log.PanicLevel,
	}, {
		title: "debug",
		level: log.DebugLevel,
		set:   true,
		want:  log.DebugLevel,
	}} {
		t.Run(tt.title, func(t *testing.T) {
			log.SetLevel(log.InfoLevel)
			require.NoError(t, initLog(Options{
				ApplicationLogLevel:    tt.level,
				ApplicationLogLevelSet: tt.set,
				AccessLogDisabled:      true,
			}))

			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestMetricsKind(t *testing.T) {
	for _, tt := range []struct {
		flavours []string
		want     metrics.Kind
		fail     bool
	}{
		{want: metrics.CodaHaleKind},
		{flavours: []string{"codahale"}, want: metrics.CodaHaleKind},
		{flavours: []string{"prometheus"}, want: metrics.PrometheusKind},
		{flavours: []string{"codahale", "prometheus"}, want: metrics.AllKind},
		{flavours: []string{"statsd"}, fail: true},
	} {
		t.Run(fmt.Sprint(tt.flavours), func(t *testing.T) {
			k, err := metricsKind(tt.flavours)
			if tt.fail {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestCreateBreakers(t *testing.T) {
	assert.Nil(t, createBreakers(nil, metrics.Default))

	r := createBreakers([]circuit.Settings{{
		Type:     circuit.FailureRate,
		Window:   10,
		Failures: 3,
	}, {
		Type:     circuit.ConsecutiveFailures,
		Host:     "api.example.org",
		Failures: 5,
	}, {
		Type: circuit.Disabled,
		Host: "legacy.example.org",
	}}, &metricstest.MockMetrics{})

	require.NotNil(t, r)

	b := r.Get("api.example.org")
	require.NotNil(t, b)
	assert.Equal(t, circuit.ConsecutiveFailures, b.Settings().Type)
	assert.Equal(t, 5, b.Settings().Failures)

	b = r.Get("www.example.org")
	require.NotNil(t, b)
	assert.Equal(t, circuit.FailureRate, b.Settings().Type)

	assert.Nil(t, r.Get("legacy.example.org"))
}

func TestGateway(t *testing.T) {
	m := &metricstest.MockMetrics{}
	g, err := newGateway(Options{Filters: helloChain(), Metrics: m})
	require.NoError(t, err)

	s := httptest.NewServer(g.handler())
	defer s.Close()

	status, h, body := get(t, s.URL+"/hello")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hello, world!", body)
	assert.Equal(t, "zuul", h.Get("X-Gateway"))
	assert.NotEmpty(t, h.Get(proxy.RequestIDHeader))

	assert.Eventually(t, func() bool {
		d, ok := m.Measure(fmt.Sprintf(metrics.KeyServeMethod, "GET", http.StatusOK))
		return ok && len(d) == 1
	}, 10*time.Second, 10*time.Millisecond)
}

func TestGatewayWithoutEndpoint(t *testing.T) {
	g, err := newGateway(Options{Metrics: &metricstest.MockMetrics{}})
	require.NoError(t, err)

	s := httptest.NewServer(g.proxy)
	defer s.Close()

	status, _, _ := get(t, s.URL)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCustomFilters(t *testing.T) {
	completed := make(chan int, 1)
	g, err := newGateway(Options{
		Filters: &filters.Definition{
			Endpoint: &filters.Def{Name: "inlineContent", Args: []interface{}{"overridden"}},
		},
		CustomFilters: []filters.Spec{&filtertest.Func{
			FilterName:  "inlineContent",
			FilterPhase: filters.Endpoint,
			F:           filtertest.Respond(http.StatusAccepted, "accepted"),
		}},
		RequestCompleteHandlers: []proxy.RequestCompleteHandler{
			proxy.RequestCompleteFunc(func(rsp *message.Response) error {
				completed <- rsp.StatusCode
				return nil
			}),
		},
		Metrics: &metricstest.MockMetrics{},
	})

	require.NoError(t, err)

	s := httptest.NewServer(g.proxy)
	defer s.Close()

	status, _, _ := get(t, s.URL)
	assert.Equal(t, http.StatusAccepted, status)
	select {
	case code := <-completed:
		assert.Equal(t, http.StatusAccepted, code)
	case <-time.After(10 * time.Second):
		t.Fatal("request complete handler not called")
	}
}

func TestGatewayInvalidOptions(t *testing.T) {
	_, err := newGateway(Options{
		Filters: &filters.Definition{Inbound: []filters.Def{{Name: "noSuchFilter"}}},
		Metrics: &metricstest.MockMetrics{},
	})

	assert.ErrorIs(t, err, filters.ErrUnknownFilter)

	_, err = newGateway(Options{MetricsFlavours: []string{"statsd"}})
	assert.Error(t, err)
}

func TestSupportHandler(t *testing.T) {
	g, err := newGateway(Options{Filters: helloChain(), MetricsFlavours: []string{"prometheus"}})
	require.NoError(t, err)

	main := httptest.NewServer(g.proxy)
	defer main.Close()

	support := httptest.NewServer(g.supportHandler())
	defer support.Close()

	status, _, body := get(t, support.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	get(t, main.URL)
	assert.Eventually(t, func() bool {
		rsp, err := http.Get(support.URL + "/metrics")
		if err != nil {
			return false
		}

		defer rsp.Body.Close()
		b, err := io.ReadAll(rsp.Body)
		return err == nil && rsp.StatusCode == http.StatusOK && strings.Contains(string(b), "zuul_serve_")
	}, 10*time.Second, 10*time.Millisecond)
}

func TestRun(t *testing.T) {
	sig := make(chan os.Signal, 1)
	addrs := make(chan [2]net.Addr, 1)
	done := make(chan error, 1)

	go func() {
		done <- run(Options{
			Address:             "127.0.0.1:0",
			SupportListener:     "127.0.0.1:0",
			Filters:             helloChain(),
			Metrics:             &metricstest.MockMetrics{},
			AccessLogDisabled:   true,
			ShutdownGracePeriod: time.Second,
		}, sig, func(main, support net.Addr) {
			addrs <- [2]net.Addr{main, support}
		})
	}()

	var a [2]net.Addr
	select {
	case a = <-addrs:
	case err := <-done:
		t.Fatalf("failed to start: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout while starting")
	}

	status, _, body := get(t, "http://"+a[0].String())
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hello, world!", body)

	status, _, body = get(t, "http://"+a[1].String()+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	sig <- syscall.SIGTERM
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout while shutting down")
	}

	_, err := http.Get("http://" + a[0].String())
	assert.Error(t, err)
}

func TestRunFailure(t *testing.T) {
	for _, tt := range []struct {
		title   string
		options Options
	}{{
		title:   "invalid address",
		options: Options{Address: "127.0.0.1:invalid"},
	}, {
		title:   "invalid support listener",
		options: Options{Address: "127.0.0.1:0", SupportListener: "127.0.0.1:invalid"},
	}, {
		title: "invalid filters",
		options: Options{
			Address: "127.0.0.1:0",
			Filters: &filters.Definition{Endpoint: &filters.Def{Name: "status", Args: []interface{}{"teapot"}}},
		},
	}, {
		title:   "invalid log output",
		options: Options{Address: "127.0.0.1:0", ApplicationLogOutput: "/no/such/dir/app.log"},
	}} {
		t.Run(tt.title, func(t *testing.T) {
			tt.options.Metrics = &metricstest.MockMetrics{}
			tt.options.AccessLogDisabled = true
			err := run(tt.options, make(chan os.Signal), nil)
			assert.Error(t, err)
		})
	}
}
