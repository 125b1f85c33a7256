package proxy

import (
	"net/http"
	"os"

	ot "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

const (
	ComponentTag      = "component"
	ErrorTag          = "error"
	FlowIDTag         = "flow_id"
	HostnameTag       = "hostname"
	HTTPHostTag       = "http.host"
	HTTPMethodTag     = "http.method"
	HTTPRemoteAddrTag = "http.remote_addr"
	HTTPPathTag       = "http.path"
	HTTPUrlTag        = "http.url"
	HTTPStatusCodeTag = "http.status_code"
	RequestIDTag      = "zuul.request_id"
	SpanKindTag       = "span.kind"

	SpanKindServer = "server"

	EndEvent   = "end"
	StartEvent = "start"

	flowIDHeader = "X-Flow-Id"
)

type OpenTracingParams struct {

	// Tracer holds the tracer enabled for this proxy instance.
	Tracer ot.Tracer

	// InitialSpan can override the default name of the span covering
	// the request. Default: "ingress".
	InitialSpan string

	// ExcludeTags controls what tags are disabled. Any tag that is
	// listed here will be ignored.
	ExcludeTags []string
}

type proxyTracing struct {
	tracer               ot.Tracer
	initialOperationName string
	excludeTags          map[string]bool
	hostname             string
}

func newProxyTracing(p *OpenTracingParams) *proxyTracing {
	if p == nil {
		p = &OpenTracingParams{}
	}

	initialSpan := p.InitialSpan
	if initialSpan == "" {
		initialSpan = "ingress"
	}

	tracer := p.Tracer
	if tracer == nil {
		tracer = &ot.NoopTracer{}
	}

	excludedTags := make(map[string]bool)
	for _, t := range p.ExcludeTags {
		excludedTags[t] = true
	}

	return &proxyTracing{
		tracer:               tracer,
		initialOperationName: initialSpan,
		excludeTags:          excludedTags,
		hostname:             os.Getenv("HOSTNAME"),
	}
}

func (t *proxyTracing) setTag(span ot.Span, key string, value interface{}) *proxyTracing {
	if span == nil {
		return t
	}

	if !t.excludeTags[key] {
		span.SetTag(key, value)
	}

	return t
}

func (t *proxyTracing) logEvent(span ot.Span, eventName, eventValue string) {
	if span != nil {
		span.LogKV(eventName, eventValue)
	}
}

// startServerSpan starts the span of an incoming request, continuing
// the trace propagated by the client, if any
func (t *proxyTracing) startServerSpan(r *http.Request) ot.Span {
	var span ot.Span
	wireContext, err := t.tracer.Extract(ot.HTTPHeaders, ot.HTTPHeadersCarrier(r.Header))
	if err == nil {
		span = t.tracer.StartSpan(t.initialOperationName, ext.RPCServerOption(wireContext))
	} else {
		span = t.tracer.StartSpan(t.initialOperationName)
	}

	t.
		setTag(span, SpanKindTag, SpanKindServer).
		setTag(span, ComponentTag, "zuul").
		setTag(span, HTTPMethodTag, r.Method).
		setTag(span, HostnameTag, t.hostname).
		setTag(span, HTTPRemoteAddrTag, r.RemoteAddr).
		setTag(span, HTTPHostTag, r.Host)

	if r.URL != nil {
		t.
			setTag(span, HTTPUrlTag, r.URL.String()).
			setTag(span, HTTPPathTag, r.URL.Path)
	}

	if val := r.Header.Get(flowIDHeader); val != "" {
		t.setTag(span, FlowIDTag, val)
	}

	return span
}
