/*
Package upstream provides the endpoint that forwards the requests to a
backend service.

The endpoint takes the backend URL, and an optional "preserveHost" flag
to keep the Host header of the incoming request:

	endpoint:
	  name: upstream
	  args: ["https://backend.example.org/api", preserveHost]

The path of the backend URL is prepended to the path of the request. The
hop-by-hop headers are not forwarded in either direction, and the
client address is appended to X-Forwarded-For.

When the backend can't be reached, the endpoint answers with 502 Bad
Gateway, and with 504 Gateway Timeout when the backend doesn't respond
in time. Response bodies larger than MaxResponseBodySize are answered
with 502 as well. Requests without a body are retried when dialing the
backend fails. When the circuit breaker of the backend host is open,
the endpoint answers with 503 Service Unavailable and the
X-Circuit-Open header.
*/
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	ot "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/edgezuul/zuul/circuit"
	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/logging"
	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/metrics"
)

const (
	Name = "upstream"

	// PreserveHostArg keeps the Host header of the incoming request.
	PreserveHostArg = "preserveHost"

	CircuitOpenHeader = "X-Circuit-Open"
)

const (
	DefaultTimeout               = 30 * time.Second
	DefaultDialTimeout           = 5 * time.Second
	DefaultIdleConnsPerHost      = 64
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultRetryInterval         = 50 * time.Millisecond
	DefaultMaxResponseBodySize   = 64 << 20
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
)

var hopHeaders = map[string]bool{
	"Te":                  true,
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

type Options struct {

	// Transport executes the backend requests. When not set, an
	// http.Transport is created from the timeout and connection
	// settings below.
	Transport http.RoundTripper

	// Timeout bounds a single backend request, including the
	// reading of the response body. Defaults to DefaultTimeout.
	Timeout time.Duration

	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnsPerHost      int
	IdleConnTimeout       time.Duration

	// MaxResponseBodySize limits the size of the backend response
	// bodies. Larger responses are answered with 502 Bad Gateway.
	// Defaults to DefaultMaxResponseBodySize.
	MaxResponseBodySize int64

	// Breakers, when set, guard the backend hosts.
	Breakers *circuit.Registry

	// Retries is the number of additional attempts made for
	// requests without a body, when dialing the backend fails.
	Retries int

	// RetryInterval is the initial wait between the attempts, grown
	// exponentially. Defaults to DefaultRetryInterval.
	RetryInterval time.Duration

	Metrics metrics.Metrics
	Log     logging.Logger
	Tracer  ot.Tracer
}

type spec struct {
	options Options
}

type upstream struct {
	options      Options
	backend      *url.URL
	preserveHost bool
}

var errResponseTooLarge = errors.New("backend response body too large")

// dialError marks the failures that happened before any data was sent
// to the backend. These requests are safe to retry.
type dialError struct {
	err error
}

func (e *dialError) Error() string { return "dialing failed: " + e.err.Error() }
func (e *dialError) Unwrap() error { return e.err }

// NewTransport creates the default transport of the upstream
// endpoint.
func NewTransport(o Options) *http.Transport {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}

	if o.IdleConnsPerHost <= 0 {
		o.IdleConnsPerHost = DefaultIdleConnsPerHost
	}

	if o.IdleConnTimeout <= 0 {
		o.IdleConnTimeout = DefaultIdleConnTimeout
	}

	d := &net.Dialer{
		Timeout:   o.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if span := ot.SpanFromContext(ctx); span != nil {
				span.LogKV("dial_context", "start")
				defer span.LogKV("dial_context", "done")
			}

			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, &dialError{err: err}
			}

			return c, nil
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   o.IdleConnsPerHost,
		IdleConnTimeout:       o.IdleConnTimeout,
		ResponseHeaderTimeout: o.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
}

// NewSpec creates the upstream endpoint spec. The transport is shared
// by every instance created from the spec.
func NewSpec(o Options) filters.Spec {
	if o.Transport == nil {
		o.Transport = NewTransport(o)
	}

	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}

	if o.Retries < 0 {
		o.Retries = 0
	}

	if o.MaxResponseBodySize <= 0 {
		o.MaxResponseBodySize = DefaultMaxResponseBodySize
	}

	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	if o.Log == nil {
		o.Log = &logging.DefaultLog{}
	}

	if o.Tracer == nil {
		o.Tracer = &ot.NoopTracer{}
	}

	return &spec{options: o}
}

func (*spec) Name() string         { return Name }
func (*spec) Phase() filters.Phase { return filters.Endpoint }

func (s *spec) CreateFilter(args []interface{}) (filters.Filter, error) {
	a := filters.Args(args)
	rawURL := a.String()
	flag := a.OptionalString("")
	if err := a.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filters.ErrInvalidFilterParameters, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid backend url: %s", filters.ErrInvalidFilterParameters, rawURL)
	}

	if flag != "" && flag != PreserveHostArg {
		return nil, fmt.Errorf("%w: unknown flag: %s", filters.ErrInvalidFilterParameters, flag)
	}

	return &upstream{
		options:      s.options,
		backend:      u,
		preserveHost: flag == PreserveHostArg,
	}, nil
}

func cloneHeaderExcluding(h http.Header, exclude map[string]bool) http.Header {
	hh := make(http.Header, len(h))
	for k, v := range h {
		if !exclude[http.CanonicalHeaderKey(k)] {
			hh[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}

	return hh
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}

	return remoteAddr
}

func joinPath(prefix, p string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if p == "" {
		p = "/"
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return prefix + p
}

// creates an outgoing http request to the backend from the request
// message
func (u *upstream) mapRequest(ctx context.Context, req *message.Request) (*http.Request, error) {
	target := *u.backend
	target.Path = joinPath(u.backend.Path, req.Path)
	target.RawPath = joinPath(u.backend.EscapedPath(), req.EscapedPath())
	target.RawQuery = req.RawQuery()

	var body io.Reader
	if req.HasBody() {
		body = bytes.NewReader(req.Body())
	}

	rr, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	rr.Header = cloneHeaderExcluding(req.Header(), hopHeaders)
	rr.Host = u.backend.Host
	if u.preserveHost && req.Host != "" {
		rr.Host = req.Host
	}

	if ip := clientIP(req.RemoteAddr); ip != "" {
		if prior := rr.Header.Values("X-Forwarded-For"); len(prior) > 0 {
			ip = strings.Join(prior, ", ") + ", " + ip
		}

		rr.Header.Set("X-Forwarded-For", ip)
	}

	return rr, nil
}

func retryable(req *message.Request) bool {
	return !req.HasBody()
}

func (u *upstream) roundTrip(ctx context.Context, req *message.Request, span ot.Span) (*http.Response, []byte, error) {
	attempts := uint(1)
	if retryable(req) {
		attempts += uint(u.options.Retries)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.options.RetryInterval

	type result struct {
		rsp  *http.Response
		body []byte
	}

	var attempt int
	r, err := backoff.Retry(ctx, func() (result, error) {
		attempt++
		if attempt > 1 {
			span.LogKV("event", "retry", "attempt", attempt)
		}

		rr, err := u.mapRequest(ctx, req)
		if err != nil {
			return result{}, backoff.Permanent(err)
		}

		_ = u.options.Tracer.Inject(span.Context(), ot.HTTPHeaders, ot.HTTPHeadersCarrier(rr.Header))

		rsp, err := u.options.Transport.RoundTrip(rr)
		if err != nil {
			var derr *dialError
			if errors.As(err, &derr) && ctx.Err() == nil {
				u.options.Log.Debugf("dialing %s failed, attempt %d: %v", u.backend.Host, attempt, err)
				return result{}, err
			}

			return result{}, backoff.Permanent(err)
		}

		defer rsp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(rsp.Body, u.options.MaxResponseBodySize+1))
		if err != nil {
			return result{}, backoff.Permanent(err)
		}

		if int64(len(body)) > u.options.MaxResponseBodySize {
			return result{}, backoff.Permanent(errResponseTooLarge)
		}

		return result{rsp: rsp, body: body}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))

	return r.rsp, r.body, err
}

func (u *upstream) errorResponse(req *message.Request, code int) *message.Response {
	rsp := message.NewResponse(req.Context(), req, code)
	rsp.Header().Set("Content-Length", "0")
	return rsp
}

func (u *upstream) Apply(ctx context.Context, m message.Message) (message.Message, error) {
	req, ok := m.(*message.Request)
	if !ok {
		return m, nil
	}

	if err := req.Err(); err != nil {
		u.options.Log.Debugf("not forwarding malformed request to %s: %v", u.backend.Host, err)
		return u.errorResponse(req, http.StatusBadRequest), nil
	}

	var done func(bool)
	if u.options.Breakers != nil {
		if b := u.options.Breakers.Get(u.backend.Host); b != nil {
			var allow bool
			done, allow = b.Allow()
			if !allow {
				rsp := u.errorResponse(req, http.StatusServiceUnavailable)
				rsp.Header().Set(CircuitOpenHeader, "true")
				return rsp, nil
			}
		}
	}

	span, ctx := ot.StartSpanFromContextWithTracer(ctx, u.options.Tracer, Name)
	defer span.Finish()
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPMethod.Set(span, req.Method)
	ext.PeerHostname.Set(span, u.backend.Host)

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, u.options.Timeout)
	defer cancel()

	start := time.Now()
	rsp, body, err := u.roundTrip(ctx, req, span)
	if err != nil {
		if done != nil {
			done(false)
		}

		u.options.Metrics.IncErrorsBackend(u.backend.Host)
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())

		// the request was canceled or timed out outside of the
		// endpoint
		if perr := parent.Err(); perr != nil {
			return nil, perr
		}

		code := http.StatusBadGateway
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			code = http.StatusGatewayTimeout
		}

		u.options.Log.Errorf("error while forwarding to %s, status code %d: %v", u.backend.Host, code, err)
		ext.HTTPStatusCode.Set(span, uint16(code))
		return u.errorResponse(req, code), nil
	}

	if done != nil {
		done(rsp.StatusCode < http.StatusInternalServerError)
	}

	u.options.Metrics.MeasureBackend(u.backend.Host, start)
	ext.HTTPStatusCode.Set(span, uint16(rsp.StatusCode))

	out := message.NewResponse(req.Context(), req, rsp.StatusCode)
	for k, v := range cloneHeaderExcluding(rsp.Header, hopHeaders) {
		out.Header()[k] = v
	}

	out.SetBody(body)
	return out, nil
}
