// Package filtertest provides filter specs and helpers for testing
// filter chains.
package filtertest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/session"
)

// CallsKey is the state bag key under which Filter records the names of
// the applied filters.
const CallsKey = "filtertest.calls"

// Filter is a spec whose filters record their name in the state bag of
// the message and return it unchanged. The created instances keep the
// arguments.
type Filter struct {
	FilterName  string
	FilterPhase filters.Phase
	Args        []interface{}
}

func (spec *Filter) Name() string         { return spec.FilterName }
func (spec *Filter) Phase() filters.Phase { return spec.FilterPhase }

func (spec *Filter) CreateFilter(args []interface{}) (filters.Filter, error) {
	return &Filter{spec.FilterName, spec.FilterPhase, args}, nil
}

func (f *Filter) Apply(_ context.Context, m message.Message) (message.Message, error) {
	sb := m.Context().StateBag()
	calls, _ := sb[CallsKey].([]string)
	sb[CallsKey] = append(calls, f.FilterName)
	return m, nil
}

// Calls returns the filter names recorded in the session context.
func Calls(c session.Context) []string {
	calls, _ := c.StateBag()[CallsKey].([]string)
	return calls
}

// Func is a spec whose filters call F.
type Func struct {
	FilterName  string
	FilterPhase filters.Phase
	F           filters.FilterFunc
}

func (spec *Func) Name() string         { return spec.FilterName }
func (spec *Func) Phase() filters.Phase { return spec.FilterPhase }

func (spec *Func) CreateFilter([]interface{}) (filters.Filter, error) {
	return spec.F, nil
}

// Respond is an endpoint filter function answering every request with
// the status and the body.
func Respond(status int, body string) filters.FilterFunc {
	return func(_ context.Context, m message.Message) (message.Message, error) {
		req, _ := m.(*message.Request)
		rsp := message.NewResponse(m.Context(), req, status)
		rsp.SetBody([]byte(body))
		return rsp, nil
	}
}

// NewRequest creates a request with a new session context. The target
// may contain a query.
func NewRequest(method, target string) *message.Request {
	u, err := url.Parse(target)
	if err != nil {
		panic(err)
	}

	req := message.NewRequest(session.New(), method, u.Path, u.Query(), http.Header{})
	req.SetRaw(u.EscapedPath(), u.RawQuery)
	return req
}
