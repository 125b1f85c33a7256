package proxy

import (
	"context"
	"net/http"
	"sync"

	"github.com/edgezuul/zuul/message"
)

// ResponseAttribute is the key of the resolved response in the request
// attributes.
const ResponseAttribute = "_zuul_response"

// Attributes are request scoped values shared between the proxy and
// the handlers wrapping it. They are safe for concurrent use.
type Attributes struct {
	mu     sync.Mutex
	values map[string]interface{}
}

type attributesKey struct{}

func (a *Attributes) Set(key string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.values == nil {
		a.values = make(map[string]interface{})
	}

	a.values[key] = value
}

func (a *Attributes) Get(key string) (interface{}, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[key]
	return v, ok
}

// WithAttributes returns a context carrying request attributes. When
// ctx already carries attributes, it is returned unchanged.
func WithAttributes(ctx context.Context) context.Context {
	if AttributesFrom(ctx) != nil {
		return ctx
	}

	return context.WithValue(ctx, attributesKey{}, &Attributes{})
}

// AttributesHandler passes every request to next with attributes in
// its context, so the handlers wrapped by it can read the resolved
// response with ResponseFrom.
func AttributesHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithAttributes(r.Context())))
	})
}

// AttributesFrom returns the attributes carried by ctx, or nil.
func AttributesFrom(ctx context.Context) *Attributes {
	a, _ := ctx.Value(attributesKey{}).(*Attributes)
	return a
}

// ResponseFrom returns the response resolved by the proxy for r. The
// attributes need to be added to the context of r before it is passed
// to the proxy:
//
//	r = r.WithContext(proxy.WithAttributes(r.Context()))
//	p.ServeHTTP(w, r)
//	rsp := proxy.ResponseFrom(r)
func ResponseFrom(r *http.Request) *message.Response {
	a := AttributesFrom(r.Context())
	if a == nil {
		return nil
	}

	v, _ := a.Get(ResponseAttribute)
	rsp, _ := v.(*message.Response)
	return rsp
}
