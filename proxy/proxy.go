package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	ot "github.com/opentracing/opentracing-go"

	"github.com/edgezuul/zuul/logging"
	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/metrics"
	"github.com/edgezuul/zuul/pipeline"
	"github.com/edgezuul/zuul/session"
)

// Proxy initialization options.
type Params struct {

	// Stages apply the filter phases to the request. Required.
	Stages pipeline.Stages

	// ContextFactory converts between the transport and the
	// messages. Defaults to HTTPContextFactory without a body size
	// limit.
	ContextFactory ContextFactory

	// NewContext creates the session context of every request.
	// Defaults to session.New.
	NewContext func() session.Context

	// Decorator, when set, is applied to every new session context.
	Decorator session.Decorator

	// RequestCompleteHandler, when set, is notified about every
	// resolved response.
	RequestCompleteHandler RequestCompleteHandler

	// PipelineTimeout, when greater than zero, limits the time spent
	// in the filter chain. A request exceeding it is answered with
	// 500 Internal Server Error.
	PipelineTimeout time.Duration

	// Metrics defaults to metrics.Default.
	Metrics metrics.Metrics

	// Log defaults to logging.DefaultLog.
	Log logging.Logger

	// OpenTracing contains parameters related to OpenTracing
	// instrumentation. For default values check OpenTracingParams.
	OpenTracing *OpenTracingParams
}

// Proxy drives the lifecycle of the requests: it creates the session
// context, builds the request message, runs the filter phases,
// resolves a single response, writes it and notifies the request
// complete handler.
type Proxy struct {
	stages          pipeline.Stages
	factory         ContextFactory
	newContext      func() session.Context
	decorator       session.Decorator
	complete        RequestCompleteHandler
	pipelineTimeout time.Duration
	metrics         metrics.Metrics
	log             logging.Logger
	tracing         *proxyTracing
}

var _ http.Handler = &Proxy{}

func defaultNewContext() session.Context { return session.New() }

// WithParams returns an initialized Proxy.
func WithParams(p Params) *Proxy {
	if p.Stages == nil {
		p.Stages = pipeline.StageFuncs{}
	}

	if p.ContextFactory == nil {
		p.ContextFactory = &HTTPContextFactory{}
	}

	if p.NewContext == nil {
		p.NewContext = defaultNewContext
	}

	if p.Metrics == nil {
		p.Metrics = metrics.Default
	}

	if p.Log == nil {
		p.Log = &logging.DefaultLog{}
	}

	return &Proxy{
		stages:          p.Stages,
		factory:         p.ContextFactory,
		newContext:      p.NewContext,
		decorator:       p.Decorator,
		complete:        p.RequestCompleteHandler,
		pipelineTimeout: p.PipelineTimeout,
		metrics:         p.Metrics,
		log:             p.Log,
		tracing:         newProxyTracing(p.OpenTracing),
	}
}

// tryCatch executes function `p` and `onErr` if `p` panics
func tryCatch(p func(), onErr func(err interface{}, stack string)) {
	defer func() {
		if err := recover(); err != nil {
			buf := make([]byte, 1024)
			l := runtime.Stack(buf, false)
			onErr(err, string(buf[:l]))
		}
	}()

	p()
}

func (p *Proxy) createContext() (sc session.Context, err error) {
	tryCatch(func() {
		sc = p.newContext()
		if session.IsNil(sc) {
			err = errNilContext
			return
		}

		if p.decorator != nil {
			sc, err = p.decorator.Decorate(sc)
			if err != nil {
				return
			}

			if session.IsNil(sc) {
				err = errNilContext
				return
			}
		}

		// contexts embedding a nil implementation fail here
		if sc.ID() == "" {
			err = errEmptyContextID
		}
	}, func(v interface{}, _ string) {
		sc, err = nil, pipeline.NewPanicError(v)
	})

	if err != nil {
		return nil, &ContextError{Err: err}
	}

	return sc, nil
}

// buildRequest returns the request message, and the error of the
// factory when only a bare request could be built
func (p *Proxy) buildRequest(sc session.Context, r *http.Request) (req *message.Request, buildErr error) {
	tryCatch(func() {
		req, buildErr = p.factory.Create(sc, r)
	}, func(v interface{}, _ string) {
		req, buildErr = nil, pipeline.NewPanicError(v)
	})

	if buildErr == nil && req != nil {
		return req, nil
	}

	if buildErr == nil {
		buildErr = errors.New("context factory returned no request")
	}

	var rerr *RequestBuildError
	if !errors.As(buildErr, &rerr) {
		buildErr = &RequestBuildError{Err: buildErr}
	}

	var method, path string
	if r != nil {
		method = r.Method
		if r.URL != nil {
			path = r.URL.Path
		}
	}

	req = message.NewRequest(sc, method, path, nil, nil)
	req.SetErr(buildErr)
	return req, buildErr
}

// resolve runs the filter chain and returns its only response, or the
// fallback 500 when the chain fails. It never returns nil.
func (p *Proxy) resolve(ctx context.Context, req *message.Request, span ot.Span) *message.Response {
	if p.pipelineTimeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, p.pipelineTimeout)
		defer cancel()
	}

	var (
		m   message.Message
		err error
	)

	tryCatch(func() {
		m, err = pipeline.Compose(p.stages, req).Single(ctx)
	}, func(v interface{}, _ string) {
		m, err = nil, pipeline.NewPanicError(v)
	})

	if err == nil {
		if rsp, ok := m.(*message.Response); ok && rsp != nil {
			return rsp
		}

		err = ErrNotAResponse
	}

	p.metrics.IncPipelineFaults()
	p.tracing.setTag(span, ErrorTag, true)
	span.LogKV("event", "error", "message", err.Error())
	p.log.Errorf("error while processing request %s %s, id %s: %v", req.Method, req.URI(), req.Context().ID(), err)

	return message.NewResponse(req.Context(), req, http.StatusInternalServerError)
}

func (p *Proxy) notify(rsp *message.Response) {
	if p.complete == nil {
		return
	}

	var err error
	tryCatch(func() {
		err = p.complete.Handle(rsp)
	}, func(v interface{}, stack string) {
		err = fmt.Errorf("panic in request complete handler: %v\n%s", v, stack)
	})

	if err != nil {
		p.metrics.IncErrorsComplete()
		p.log.Errorf("request complete handler failed, id %s: %v", rsp.Context().ID(), err)
	}
}

// Service processes a single request. It returns a *ContextError when
// the session context could not be created, in which case nothing was
// written, and a *ResponseWriteError when the resolved response could
// not be written. Otherwise it returns nil.
//
// The request complete handler is notified about every resolved
// response, including the ones that could not be written.
func (p *Proxy) Service(w http.ResponseWriter, r *http.Request) error {
	sc, err := p.createContext()
	if err != nil {
		return err
	}

	span := p.tracing.startServerSpan(r)
	defer span.Finish()
	p.tracing.setTag(span, RequestIDTag, sc.ID())

	ctx := ot.ContextWithSpan(r.Context(), span)
	req, buildErr := p.buildRequest(sc, r)

	timer := sc.Timings().Request()
	timer.Start()

	var rsp *message.Response
	defer func() {
		timer.Stop()
		if rsp != nil {
			p.notify(rsp)
		}
	}()

	if buildErr != nil {
		p.metrics.IncPipelineFaults()
		p.tracing.setTag(span, ErrorTag, true)
		p.log.Errorf("error while building request, id %s: %v", sc.ID(), buildErr)
		rsp = message.NewResponse(sc, req, http.StatusInternalServerError)
	} else {
		rsp = p.resolve(ctx, req, span)
	}

	if a := AttributesFrom(r.Context()); a != nil {
		a.Set(ResponseAttribute, rsp)
	}

	p.tracing.setTag(span, HTTPStatusCodeTag, uint16(rsp.StatusCode))
	p.tracing.logEvent(span, "write_response", StartEvent)
	err = p.factory.Write(rsp, w)
	p.tracing.logEvent(span, "write_response", EndEvent)
	if err != nil {
		p.metrics.IncErrorsWrite()
		p.tracing.setTag(span, ErrorTag, true)

		var werr *ResponseWriteError
		if !errors.As(err, &werr) {
			err = &ResponseWriteError{Err: err}
		}

		return err
	}

	return nil
}

// ServeHTTP implements http.Handler. When the session context cannot
// be created, it responds with a generic 500. When the response cannot
// be written, it aborts the connection.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := p.Service(w, r)
	if err == nil {
		return
	}

	var cerr *ContextError
	if errors.As(err, &cerr) {
		p.log.Errorf("%v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	p.log.Errorf("error while serving %s %s: %v", r.Method, r.URL, err)
	panic(http.ErrAbortHandler)
}
