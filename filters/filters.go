package filters

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgezuul/zuul/message"
)

// Phase selects when a filter is executed.
type Phase int

const (
	// Inbound filters receive the request. They may modify it, or
	// answer it by returning a response, in which case the remaining
	// inbound filters and the endpoint are skipped.
	Inbound Phase = iota

	// Endpoint filters turn the request into a response. Only one
	// endpoint is executed for a request.
	Endpoint

	// Outbound filters receive the response, in the configured order.
	Outbound
)

func (p Phase) String() string {
	switch p {
	case Inbound:
		return "inbound"
	case Endpoint:
		return "endpoint"
	case Outbound:
		return "outbound"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Filter is a unit of work executed in one of the phases. Filter
// instances are shared by all requests, so any state stored in a
// filter is shared, too. Per-request data belongs to the session
// context of the message.
//
// Returning a nil message drops the message, which makes the request
// fail with a filter chain fault.
type Filter interface {
	Apply(context.Context, message.Message) (message.Message, error)
}

// Spec is the factory of a named filter.
type Spec interface {

	// Name of the filter as referenced in the filter definitions.
	Name() string

	// Phase in which the created filters can be used.
	Phase() Phase

	// CreateFilter creates a filter instance with the given
	// arguments. Invalid arguments are reported with an error
	// wrapping ErrInvalidFilterParameters.
	CreateFilter(args []interface{}) (Filter, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(context.Context, message.Message) (message.Message, error)

func (f FilterFunc) Apply(ctx context.Context, m message.Message) (message.Message, error) {
	return f(ctx, m)
}

var ErrInvalidFilterParameters = errors.New("invalid filter parameters")

// FilterError wraps the error returned, or the panic raised, by a
// filter.
type FilterError struct {
	Phase  Phase
	Filter string
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("%s filter %s: %v", e.Phase, e.Filter, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }
