package session

// Decorator is applied to every new context exactly once, before the
// request message is built. It returns either the same context or one
// that wraps or extends it. The returned context replaces the original
// for the rest of the request.
type Decorator interface {
	Decorate(Context) (Context, error)
}

// DecoratorFunc adapts a function to the Decorator interface.
type DecoratorFunc func(Context) (Context, error)

func (f DecoratorFunc) Decorate(c Context) (Context, error) { return f(c) }
