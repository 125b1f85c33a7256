package proxy

import (
	"errors"
	"fmt"
	"time"

	"github.com/edgezuul/zuul/logging"
	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/metrics"
)

// RequestCompleteHandler is notified once about every request that
// reached a resolved response, after the response was written or the
// write failed. Its errors are logged and counted by the proxy, and
// never change the outcome of the request.
type RequestCompleteHandler interface {
	Handle(*message.Response) error
}

// RequestCompleteFunc adapts a function to the RequestCompleteHandler
// interface.
type RequestCompleteFunc func(*message.Response) error

func (f RequestCompleteFunc) Handle(rsp *message.Response) error { return f(rsp) }

type completeHandlers []RequestCompleteHandler

// CompleteHandlers combines multiple handlers. Every handler is
// called, even when a previous one failed or panicked, and the errors
// are joined.
func CompleteHandlers(h ...RequestCompleteHandler) RequestCompleteHandler {
	return completeHandlers(h)
}

func (hs completeHandlers) Handle(rsp *message.Response) error {
	var errs []error
	for _, h := range hs {
		if h == nil {
			continue
		}

		if err := handleSafe(h, rsp); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func handleSafe(h RequestCompleteHandler, rsp *message.Response) (err error) {
	tryCatch(func() {
		err = h.Handle(rsp)
	}, func(v interface{}, stack string) {
		err = fmt.Errorf("panic in request complete handler: %v\n%s", v, stack)
	})

	return
}

// AccessLogHandler writes the access log entry of the request with
// logging.LogAccess.
type AccessLogHandler struct{}

func (AccessLogHandler) Handle(rsp *message.Response) error {
	if rsp == nil {
		return errNilResponse
	}

	e := &logging.AccessEntry{
		StatusCode:   rsp.StatusCode,
		ResponseSize: int64(len(rsp.Body())),
	}

	if req := rsp.Request(); req != nil {
		e.Method = req.Method
		e.URI = req.URI()
		e.Proto = req.Proto
		e.RequestedHost = req.Host
		e.RemoteAddr = req.RemoteAddr
		e.Referer = req.Header().Get("Referer")
		e.UserAgent = req.Header().Get("User-Agent")
		e.ForwardedFor = req.Header().Get("X-Forwarded-For")
	}

	if sc := rsp.Context(); sc != nil {
		t := sc.Timings().Request()
		e.RequestTime = t.StartTime()
		e.Duration = t.Elapsed()
		e.RequestID = sc.ID()
	}

	if e.RequestTime.IsZero() {
		e.RequestTime = time.Now()
	}

	logging.LogAccess(e)
	return nil
}

// MetricsHandler measures the served requests by method and status
// code, from the start of the request timer.
type MetricsHandler struct {
	Metrics metrics.Metrics
}

func (h MetricsHandler) Handle(rsp *message.Response) error {
	if rsp == nil {
		return errNilResponse
	}

	m := h.Metrics
	if m == nil {
		m = metrics.Default
	}

	start := time.Now()
	if sc := rsp.Context(); sc != nil {
		if t := sc.Timings().Request(); !t.StartTime().IsZero() {
			start = t.StartTime()
		}
	}

	var method string
	if req := rsp.Request(); req != nil {
		method = req.Method
	}

	m.MeasureServe(method, rsp.StatusCode, start)
	return nil
}
