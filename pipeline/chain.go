package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"github.com/edgezuul/zuul/message"
)

type sequenceError string

func (e sequenceError) Error() string { return string(e) }

const (
	ErrNoElements      = sequenceError("sequence yielded no message")
	ErrTooManyElements = sequenceError("sequence yielded more than one message")
)

const maxStackSize = 4096

// PanicError is returned when forcing a chain panics.
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while evaluating chain: %v", e.Value)
}

// NewPanicError captures the stack of the current goroutine. Call it
// from the deferred function that recovered v.
func NewPanicError(v interface{}) *PanicError {
	buf := make([]byte, maxStackSize)
	l := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:l])}
}

// Chain is a lazy sequence of messages. The zero value is the empty
// sequence. Chains are values and can be shared; every forcing
// evaluates the whole sequence again.
type Chain struct {
	eval func(context.Context) ([]message.Message, error)
}

// Defer creates a chain evaluated by f when forced.
func Defer(f func(context.Context) ([]message.Message, error)) Chain {
	return Chain{eval: f}
}

func Just(m message.Message) Chain {
	return Of(m)
}

func Of(m ...message.Message) Chain {
	return Defer(func(context.Context) ([]message.Message, error) {
		return m, nil
	})
}

func Empty() Chain {
	return Chain{}
}

// Fail creates a chain that fails with err when forced.
func Fail(err error) Chain {
	return Defer(func(context.Context) ([]message.Message, error) {
		return nil, err
	})
}

func (c Chain) run(ctx context.Context) ([]message.Message, error) {
	if c.eval == nil {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return c.eval(ctx)
}

// FlatMap returns a chain that replaces every message of c with the
// messages of the chain returned by f.
func (c Chain) FlatMap(f func(context.Context, message.Message) Chain) Chain {
	return Defer(func(ctx context.Context) ([]message.Message, error) {
		ms, err := c.run(ctx)
		if err != nil {
			return nil, err
		}

		var result []message.Message
		for _, m := range ms {
			next, err := f(ctx, m).run(ctx)
			if err != nil {
				return nil, err
			}

			result = append(result, next...)
		}

		return result, nil
	})
}

// Map returns a chain that transforms every message of c with f. When
// f returns a nil message, the message is dropped from the sequence.
func (c Chain) Map(f func(context.Context, message.Message) (message.Message, error)) Chain {
	return c.FlatMap(func(ctx context.Context, m message.Message) Chain {
		next, err := f(ctx, m)
		switch {
		case err != nil:
			return Fail(err)
		case message.IsNil(next):
			return Empty()
		default:
			return Just(next)
		}
	})
}

// Collect forces the chain and returns all of its messages. Panics are
// returned as *PanicError. When ctx is done by the end of the
// evaluation, its error is returned instead of the messages.
func (c Chain) Collect(ctx context.Context) (ms []message.Message, err error) {
	defer func() {
		if v := recover(); v != nil {
			ms, err = nil, NewPanicError(v)
		}
	}()

	ms, err = c.run(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, m := range ms {
		if message.IsNil(m) {
			return nil, fmt.Errorf("nil message in sequence")
		}
	}

	return ms, nil
}

// Single forces the chain and returns its only message. It fails with
// ErrNoElements or ErrTooManyElements when the sequence does not
// contain exactly one message.
func (c Chain) Single(ctx context.Context) (message.Message, error) {
	ms, err := c.Collect(ctx)
	if err != nil {
		return nil, err
	}

	switch len(ms) {
	case 0:
		return nil, ErrNoElements
	case 1:
		return ms[0], nil
	default:
		return nil, ErrTooManyElements
	}
}
