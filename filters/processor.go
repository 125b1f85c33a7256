package filters

import (
	"context"
	"errors"
	"net/http"
	"time"

	ot "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/edgezuul/zuul/logging"
	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/metrics"
	"github.com/edgezuul/zuul/pipeline"
)

const (
	startEvent = "start"
	endEvent   = "end"
)

// ErrNoResponse is returned when the endpoint filter does not turn the
// request into a response.
var ErrNoResponse = errors.New("endpoint did not produce a response")

type ProcessorOptions struct {

	// Metrics collects the duration of every filter and of every
	// phase. Defaults to metrics.Default.
	Metrics metrics.Metrics

	// Log receives the filter failures. Defaults to
	// logging.DefaultLog.
	Log logging.Logger

	// Tracer starts a span for each phase that has filters.
	// Defaults to the noop tracer.
	Tracer ot.Tracer

	// When set, the start and the end of each filter is logged
	// as an event of the phase span.
	LogFilterEvents bool
}

// Processor runs the phases of a compiled chain. It implements
// pipeline.Stages and can be shared by concurrent requests.
type Processor struct {
	chain     *Compiled
	metrics   metrics.Metrics
	log       logging.Logger
	tracer    ot.Tracer
	logEvents bool
}

var _ pipeline.Stages = &Processor{}

func NewProcessor(c *Compiled, o ProcessorOptions) *Processor {
	if c == nil {
		c = &Compiled{}
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

	return &Processor{
		chain:     c,
		metrics:   o.Metrics,
		log:       o.Log,
		tracer:    o.Tracer,
		logEvents: o.LogFilterEvents,
	}
}

func tryCatch(p func(), onErr func(v interface{})) {
	defer func() {
		if v := recover(); v != nil {
			onErr(v)
		}
	}()

	p()
}

func (p *Processor) applyFilter(ctx context.Context, phase Phase, f NamedFilter, m message.Message) (next message.Message, err error) {
	start := time.Now()
	tryCatch(func() {
		next, err = f.Apply(ctx, m)
	}, func(v interface{}) {
		next, err = nil, pipeline.NewPanicError(v)
	})

	p.metrics.MeasureFilter(phase.String(), f.Name, start)
	if err != nil {
		var pe *pipeline.PanicError
		if errors.As(err, &pe) {
			p.log.Errorf("panic in %v filter %s (%d): %v\n%s", phase, f.Name, f.Index, pe.Value, pe.Stack)
		}

		return nil, &FilterError{Phase: phase, Filter: f.Name, Err: err}
	}

	return next, nil
}

// runFilters applies the filters in order, until one of them fails,
// drops the message or returns a message accepted by stop.
func (p *Processor) runFilters(
	ctx context.Context,
	phase Phase,
	fs []NamedFilter,
	m message.Message,
	stop func(message.Message) bool,
) (message.Message, error) {
	if len(fs) == 0 {
		return m, nil
	}

	if sc := m.Context(); sc != nil {
		sw := sc.Timings().Get(phase.String())
		sw.Start()
		defer sw.Stop()
	}

	span, ctx := ot.StartSpanFromContextWithTracer(ctx, p.tracer, phase.String()+"_filters")
	defer span.Finish()
	span.SetTag("phase", phase.String())

	start := time.Now()
	defer p.metrics.MeasureAllFilters(phase.String(), start)

	for _, f := range fs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p.logEvents {
			span.LogKV(f.Name, startEvent)
		}

		next, err := p.applyFilter(ctx, phase, f, m)

		if p.logEvents {
			span.LogKV(f.Name, endEvent)
		}

		if err != nil {
			ext.Error.Set(span, true)
			span.LogKV("event", "error", "message", err.Error())
			return nil, err
		}

		if message.IsNil(next) {
			p.log.Debugf("%v filter %s dropped the message", phase, f.Name)
			return nil, nil
		}

		m = next
		if stop != nil && stop(m) {
			break
		}
	}

	return m, nil
}

func toChain(m message.Message, err error) pipeline.Chain {
	switch {
	case err != nil:
		return pipeline.Fail(err)
	case message.IsNil(m):
		return pipeline.Empty()
	default:
		return pipeline.Just(m)
	}
}

func isResponse(m message.Message) bool {
	_, ok := m.(*message.Response)
	return ok
}

// ApplyInbound runs the inbound filters on requests. A filter returning
// a response answers the request: the remaining inbound filters and
// the endpoint are skipped.
func (p *Processor) ApplyInbound(c pipeline.Chain) pipeline.Chain {
	return c.FlatMap(func(ctx context.Context, m message.Message) pipeline.Chain {
		if _, ok := m.(*message.Request); !ok {
			return pipeline.Just(m)
		}

		return toChain(p.runFilters(ctx, Inbound, p.chain.inbound, m, isResponse))
	})
}

// ApplyEndpoint turns requests into responses with the endpoint
// filter, or with a 404 when there is no endpoint. Responses pass
// through.
func (p *Processor) ApplyEndpoint(c pipeline.Chain) pipeline.Chain {
	return c.FlatMap(func(ctx context.Context, m message.Message) pipeline.Chain {
		req, ok := m.(*message.Request)
		if !ok {
			return pipeline.Just(m)
		}

		ep, ok := p.chain.Endpoint()
		if !ok {
			return pipeline.Just(message.NewResponse(req.Context(), req, http.StatusNotFound))
		}

		rsp, err := p.runFilters(ctx, Endpoint, []NamedFilter{ep}, m, nil)
		if err == nil && !message.IsNil(rsp) && !isResponse(rsp) {
			err = &FilterError{Phase: Endpoint, Filter: ep.Name, Err: ErrNoResponse}
		}

		return toChain(rsp, err)
	})
}

// ApplyOutbound runs the outbound filters on responses.
func (p *Processor) ApplyOutbound(c pipeline.Chain) pipeline.Chain {
	return c.FlatMap(func(ctx context.Context, m message.Message) pipeline.Chain {
		if !isResponse(m) {
			return pipeline.Just(m)
		}

		return toChain(p.runFilters(ctx, Outbound, p.chain.outbound, m, nil))
	})
}
