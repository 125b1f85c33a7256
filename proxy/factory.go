package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/session"
)

const (
	// RequestIDHeader carries the id of the session context in the
	// responses.
	RequestIDHeader = "X-Zuul-Request-Id"

	serverName = "zuul"
)

// ContextFactory converts between the transport and the messages of
// the filter chain.
type ContextFactory interface {

	// Create builds the request message. Malformed input should be
	// reported by marking the request with SetErr. An error,
	// preferably a *RequestBuildError, means that no request message
	// could be built.
	Create(session.Context, *http.Request) (*message.Request, error)

	// Write sends the status line, the headers and the body of the
	// response to the client.
	Write(*message.Response, http.ResponseWriter) error
}

// HTTPContextFactory is the ContextFactory of net/http requests. The
// request body is read completely before the filters are executed.
type HTTPContextFactory struct {

	// MaxBodySize, when greater than zero, limits the size of the
	// request body. Larger requests are marked with ErrBodyTooLarge,
	// and their body is dropped.
	MaxBodySize int64
}

var _ ContextFactory = &HTTPContextFactory{}

func (f *HTTPContextFactory) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	var body io.Reader = r.Body
	if f.MaxBodySize > 0 {
		body = io.LimitReader(r.Body, f.MaxBodySize+1)
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	if f.MaxBodySize > 0 && int64(len(b)) > f.MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	return b, nil
}

func (f *HTTPContextFactory) Create(sc session.Context, r *http.Request) (*message.Request, error) {
	if r == nil || r.URL == nil {
		return nil, &RequestBuildError{Err: errMissingURL}
	}

	query, qerr := url.ParseQuery(r.URL.RawQuery)
	req := message.NewRequest(sc, r.Method, r.URL.Path, query, r.Header.Clone())
	req.Proto = r.Proto
	req.Host = r.Host
	req.RemoteAddr = r.RemoteAddr
	req.SetRaw(r.URL.EscapedPath(), r.URL.RawQuery)

	body, berr := f.readBody(r)
	req.SetBody(body)

	switch {
	case qerr != nil:
		req.SetErr(fmt.Errorf("invalid query: %w", qerr))
	case berr != nil:
		req.SetErr(berr)
	}

	return req, nil
}

func (f *HTTPContextFactory) Write(rsp *message.Response, w http.ResponseWriter) (err error) {
	if rsp == nil {
		return &ResponseWriteError{Err: errNilResponse}
	}

	// the response writer may panic, e.g. with http.ErrAbortHandler
	defer func() {
		if v := recover(); v != nil {
			err = &ResponseWriteError{Err: fmt.Errorf("panic while writing response: %v", v)}
		}
	}()

	h := w.Header()
	for k, vv := range rsp.Header() {
		for _, v := range vv {
			h.Add(k, v)
		}
	}

	if h.Get("Server") == "" {
		h.Set("Server", serverName)
	}

	if sc := rsp.Context(); sc != nil && h.Get(RequestIDHeader) == "" {
		h.Set(RequestIDHeader, sc.ID())
	}

	w.WriteHeader(rsp.StatusCode)
	rsp.CommitHeaders()

	if rsp.HasBody() {
		if _, err := w.Write(rsp.Body()); err != nil {
			return &ResponseWriteError{Err: err}
		}
	}

	rsp.CommitBody()
	return nil
}
