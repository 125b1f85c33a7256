// Package proxytest starts a proxy with a compiled filter chain on a
// local test server.
package proxytest

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/logging/loggingtest"
	"github.com/edgezuul/zuul/metrics/metricstest"
	"github.com/edgezuul/zuul/proxy"
)

type TestProxy struct {
	URL     string
	Port    string
	Log     *loggingtest.TestLogger
	Metrics *metricstest.MockMetrics

	proxy  *proxy.Proxy
	server *httptest.Server
}

type TestClient struct {
	*http.Client
}

// Config holds the filter registry, the definition of the chain and
// the proxy parameters. The Stages, Metrics and Log of ProxyParams are
// set by Create.
type Config struct {
	Registry    filters.Registry
	Definition  *filters.Definition
	ProxyParams proxy.Params
}

// New compiles the definition with the registry and starts the proxy.
// It panics when the definition is invalid.
func New(r filters.Registry, d *filters.Definition) *TestProxy {
	return Config{Registry: r, Definition: d}.Create()
}

// Parse creates the definition from YAML, and starts the proxy. It
// panics when the definition is invalid.
func Parse(r filters.Registry, yml string) *TestProxy {
	d, err := filters.ParseDefinition([]byte(yml))
	if err != nil {
		panic(err)
	}

	return New(r, d)
}

func (c Config) CreateUnstarted() *TestProxy {
	compiled, err := filters.Compile(c.Registry, c.Definition)
	if err != nil {
		panic(err)
	}

	tl := loggingtest.NewMuted()
	m := &metricstest.MockMetrics{}

	c.ProxyParams.Stages = filters.NewProcessor(compiled, filters.ProcessorOptions{
		Metrics: m,
		Log:     tl,
	})

	c.ProxyParams.Metrics = m
	c.ProxyParams.Log = tl

	pr := proxy.WithParams(c.ProxyParams)
	tsp := httptest.NewUnstartedServer(pr)
	_, port, _ := net.SplitHostPort(tsp.Listener.Addr().String())

	return &TestProxy{
		Port:    port,
		Log:     tl,
		Metrics: m,
		proxy:   pr,
		server:  tsp,
	}
}

func (p *TestProxy) Start() {
	p.server.Start()
	p.URL = p.server.URL
}

func (c Config) Create() *TestProxy {
	p := c.CreateUnstarted()
	p.Start()
	return p
}

func (p *TestProxy) Client() *TestClient {
	return &TestClient{p.server.Client()}
}

func (p *TestProxy) Close() {
	p.server.Close()
}

// GetBody issues a GET to the specified URL, reads and closes response body and
// returns response, response body bytes and error if any.
func (c *TestClient) GetBody(url string) (rsp *http.Response, body []byte, err error) {
	rsp, err = c.Get(url)
	if err != nil {
		return
	}
	defer rsp.Body.Close()

	body, err = io.ReadAll(rsp.Body)
	return
}
