package builtin

import (
	"github.com/edgezuul/zuul/filters"
	"github.com/edgezuul/zuul/message"
)

type statusSpec struct{}

type statusFilter struct {
	code int
}

// NewStatus creates the spec of the status endpoint. It answers every
// request with the status code passed as its only argument and an
// empty body.
//
// Name: "status".
func NewStatus() filters.Spec { return new(statusSpec) }

func (s *statusSpec) Name() string         { return StatusName }
func (s *statusSpec) Phase() filters.Phase { return filters.Endpoint }

func (s *statusSpec) CreateFilter(args []interface{}) (filters.Filter, error) {
	a := filters.Args(args)
	code := a.Int()
	if err := a.Err(); err != nil {
		return nil, err
	}

	if code < 100 || code > 999 {
		return nil, filters.ErrInvalidFilterParameters
	}

	f := &statusFilter{code}
	return requestFilter(f.request), nil
}

func (f *statusFilter) request(req *message.Request) message.Message {
	rsp := respond(req, f.code)
	rsp.Header().Set("Content-Length", "0")
	return rsp
}

