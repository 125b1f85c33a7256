package message

import (
	"net/http"
	"net/url"

	"github.com/edgezuul/zuul/session"
)

// Request is the inbound message built from the transport request.
type Request struct {
	envelope

	Method     string
	Proto      string
	Path       string
	Query      url.Values
	Host       string
	RemoteAddr string

	// the form received from the client, valid as long as Path and
	// Query are not changed
	rawPath, rawPathOf   string
	rawQuery, rawQueryOf string

	err error
}

var _ Message = (*Request)(nil)

func NewRequest(ctx session.Context, method, path string, query url.Values, h http.Header) *Request {
	if query == nil {
		query = make(url.Values)
	}

	return &Request{
		envelope: newEnvelope(ctx, h),
		Method:   method,
		Path:     path,
		Query:    query,
	}
}

// URI returns the path and the encoded query.
func (r *Request) URI() string {
	if len(r.Query) == 0 {
		return r.Path
	}

	return r.Path + "?" + r.Query.Encode()
}

// SetRaw records the escaped path and the query as received from the
// client. They are returned by EscapedPath and RawQuery until the
// filters change Path or Query.
func (r *Request) SetRaw(escapedPath, rawQuery string) {
	r.rawPath, r.rawPathOf = escapedPath, r.Path
	r.rawQuery, r.rawQueryOf = rawQuery, r.Query.Encode()
}

// EscapedPath returns the escaped form of Path.
func (r *Request) EscapedPath() string {
	if r.rawPath != "" && r.Path == r.rawPathOf {
		return r.rawPath
	}

	u := url.URL{Path: r.Path}
	return u.EscapedPath()
}

// RawQuery returns the encoded query, in the received form when the
// query was not changed.
func (r *Request) RawQuery() string {
	q := r.Query.Encode()
	if q == r.rawQueryOf && r.rawQuery != "" {
		return r.rawQuery
	}

	return q
}

// Err returns the reason why the transport request could not be
// converted completely, or nil.
func (r *Request) Err() error { return r.err }

// SetErr marks the request as malformed.
func (r *Request) SetErr(err error) { r.err = err }
