package session

import (
	"reflect"

	"github.com/google/uuid"
)

// Context is the mutable state of a single request. It is created once
// per request, threaded through every filter phase, and never shared
// between concurrent requests. Implementations are not required to be
// safe for concurrent use.
type Context interface {

	// ID identifies the request in logs and response headers.
	ID() string

	// Timings returns the request and sub-phase stopwatches.
	Timings() *Timings

	// StateBag returns the attributes set by filters. Filters may
	// read and write it directly.
	StateBag() map[string]interface{}

	Set(key string, value interface{})
	Get(key string) (interface{}, bool)
	Delete(key string)

	// Debug tells the filters that extended information may be
	// collected for this request.
	Debug() bool
	SetDebug(bool)
}

// Default is the default Context implementation. Decorators may embed
// it to extend it.
type Default struct {
	id       string
	timings  *Timings
	stateBag map[string]interface{}
	debug    bool
}

var _ Context = (*Default)(nil)

// New creates an empty context with a random id.
func New() *Default {
	return &Default{
		id:       uuid.NewString(),
		timings:  NewTimings(),
		stateBag: make(map[string]interface{}),
	}
}

func (c *Default) ID() string                        { return c.id }
func (c *Default) Timings() *Timings                 { return c.timings }
func (c *Default) StateBag() map[string]interface{}  { return c.stateBag }
func (c *Default) Set(key string, value interface{}) { c.stateBag[key] = value }
func (c *Default) Delete(key string)                 { delete(c.stateBag, key) }
func (c *Default) Debug() bool                       { return c.debug }
func (c *Default) SetDebug(d bool)                   { c.debug = d }

func (c *Default) Get(key string) (interface{}, bool) {
	v, ok := c.stateBag[key]
	return v, ok
}

// IsNil tells whether c is nil, or an interface holding a nil pointer,
// like (*Default)(nil).
func IsNil(c Context) bool {
	if c == nil {
		return true
	}

	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
