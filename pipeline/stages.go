package pipeline

import "github.com/edgezuul/zuul/message"

// Stages applies the filter phases to a chain. Implementations must
// not force the chain; they only extend it. Stage implementations are
// shared between concurrent requests and must not keep per-request
// state.
type Stages interface {
	ApplyInbound(Chain) Chain
	ApplyEndpoint(Chain) Chain
	ApplyOutbound(Chain) Chain
}

// StageFuncs implements Stages with plain functions. A nil function
// leaves the chain unchanged.
type StageFuncs struct {
	Inbound  func(Chain) Chain
	Endpoint func(Chain) Chain
	Outbound func(Chain) Chain
}

var _ Stages = StageFuncs{}

func apply(f func(Chain) Chain, c Chain) Chain {
	if f == nil {
		return c
	}

	return f(c)
}

func (s StageFuncs) ApplyInbound(c Chain) Chain  { return apply(s.Inbound, c) }
func (s StageFuncs) ApplyEndpoint(c Chain) Chain { return apply(s.Endpoint, c) }
func (s StageFuncs) ApplyOutbound(c Chain) Chain { return apply(s.Outbound, c) }

// Compose seeds a chain with the request and applies the inbound,
// endpoint and outbound phases in this order.
func Compose(s Stages, req message.Message) Chain {
	c := Just(req)
	c = s.ApplyInbound(c)
	c = s.ApplyEndpoint(c)
	return s.ApplyOutbound(c)
}
