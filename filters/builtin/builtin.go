/*
Package builtin provides a small, generic set of filters.
*/
package builtin

import (
	"context"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

const (
	SetRequestHeaderName     = "setRequestHeader"
	SetResponseHeaderName    = "setResponseHeader"
	AppendRequestHeaderName  = "appendRequestHeader"
	AppendResponseHeaderName = "appendResponseHeader"
	DropRequestHeaderName    = "dropRequestHeader"
	DropResponseHeaderName   = "dropResponseHeader"

	FlowIDName        = "flowId"
	StripQueryName    = "stripQuery"
	RateLimitName     = "ratelimit"
	CompressName      = "compress"
	StatusName        = "status"
	InlineContentName = "inlineContent"
)

// Returns a Registry object initialized with the default set of filter
// specifications found in this package.
func MakeRegistry() filters.Registry {
	r := make(filters.Registry)
	r.Register(
		NewSetRequestHeader(),
		NewAppendRequestHeader(),
		NewDropRequestHeader(),
		NewSetResponseHeader(),
		NewAppendResponseHeader(),
		NewDropResponseHeader(),
		NewFlowID(),
		NewStripQuery(),
		NewRateLimit(),
		NewCompress(),
		NewStatus(),
		NewInlineContent(),
	)

	return r
}

func respond(m message.Message, status int) *message.Response {
	req, _ := m.(*message.Request)
	return message.NewResponse(m.Context(), req, status)
}

// request and response filters in this package ignore the messages of
// the other kind
func requestFilter(f func(*message.Request) message.Message) filters.FilterFunc {
	return func(_ context.Context, m message.Message) (message.Message, error) {
		if req, ok := m.(*message.Request); ok {
			return f(req), nil
		}

		return m, nil
	}
}

func responseFilter(f func(*message.Response) message.Message) filters.FilterFunc {
	return func(_ context.Context, m message.Message) (message.Message, error) {
		if rsp, ok := m.(*message.Response); ok {
			return f(rsp), nil
		}

		return m, nil
	}
}
