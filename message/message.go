/*
Package message defines the envelopes moving through the filter phases:
the request built from the incoming transport request, and the
response eventually written back to the client. Every message carries
the session context of its request.
*/
package message

import (
	"net/http"

	"github.com/edgezuul/zuul/session"
)

// Message is either a *Request or a *Response.
type Message interface {
	Context() session.Context
	Header() http.Header
	Body() []byte
	SetBody([]byte)
	HasBody() bool
}

type envelope struct {
	ctx    session.Context
	header http.Header
	body   []byte
}

func newEnvelope(ctx session.Context, h http.Header) envelope {
	if h == nil {
		h = make(http.Header)
	}

	return envelope{ctx: ctx, header: h}
}

func (e *envelope) Context() session.Context { return e.ctx }
func (e *envelope) Header() http.Header      { return e.header }
func (e *envelope) Body() []byte             { return e.body }
func (e *envelope) SetBody(b []byte)         { e.body = b }
func (e *envelope) HasBody() bool            { return len(e.body) > 0 }

// IsNil tells whether m is nil or a typed nil request or response.
func IsNil(m Message) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *Request:
		return v == nil
	case *Response:
		return v == nil
	default:
		return false
	}
}
