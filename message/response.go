package message

import (
	"net/http"

	"github.com/edgezuul/zuul/session"
)

// Response is the outbound message written to the client.
type Response struct {
	envelope

	StatusCode int

	request          *Request
	headersCommitted bool
	bodyCommitted    bool
}

var _ Message = (*Response)(nil)

// NewResponse creates an empty response to req. It only uses the
// arguments, so it cannot fail. req may be nil.
func NewResponse(ctx session.Context, req *Request, status int) *Response {
	return &Response{
		envelope:   newEnvelope(ctx, nil),
		StatusCode: status,
		request:    req,
	}
}

// Request returns the request that this response answers.
func (r *Response) Request() *Request { return r.request }

// CommitHeaders records that the status line and the headers were
// sent to the client, after which they cannot be changed anymore.
func (r *Response) CommitHeaders() { r.headersCommitted = true }

// CommitBody records that the body was sent to the client.
func (r *Response) CommitBody() { r.bodyCommitted = true }

func (r *Response) HeadersCommitted() bool { return r.headersCommitted }
func (r *Response) BodyCommitted() bool    { return r.bodyCommitted }

// StatusText returns the canonical text of the status code.
func (r *Response) StatusText() string { return http.StatusText(r.StatusCode) }
