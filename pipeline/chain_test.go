package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgezuul/zuul/message"
	"github.com/edgezuul/zuul/session"
)

func testRequest() *message.Request {
	return message.NewRequest(session.New(), "GET", "/", nil, nil)
}

func TestChainIsLazy(t *testing.T) {
	var calls int
	c := Just(testRequest()).Map(func(_ context.Context, m message.Message) (message.Message, error) {
		calls++
		return m, nil
	})

	assert.Equal(t, 0, calls, "building a chain must not evaluate it")

	_, err := c.Single(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = c.Single(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "every forcing evaluates the chain")
}

func TestSingle(t *testing.T) {
	req := testRequest()
	testErr := errors.New("test error")

	for _, tt := range []struct {
		name    string
		chain   Chain
		want    message.Message
		wantErr error
	}{{
		name:  "one",
		chain: Just(req),
		want:  req,
	}, {
		name:    "zero value",
		chain:   Chain{},
		wantErr: ErrNoElements,
	}, {
		name:    "empty",
		chain:   Empty(),
		wantErr: ErrNoElements,
	}, {
		name:    "many",
		chain:   Of(req, req),
		wantErr: ErrTooManyElements,
	}, {
		name:    "failed",
		chain:   Fail(testErr),
		wantErr: testErr,
	}, {
		name: "dropped by map",
		chain: Just(req).Map(func(context.Context, message.Message) (message.Message, error) {
			return nil, nil
		}),
		wantErr: ErrNoElements,
	}, {
		name: "dropped by typed nil",
		chain: Just(req).Map(func(context.Context, message.Message) (message.Message, error) {
			var rsp *message.Response
			return rsp, nil
		}),
		wantErr: ErrNoElements,
	}, {
		name: "fanned out by flat map",
		chain: Just(req).FlatMap(func(_ context.Context, m message.Message) Chain {
			return Of(m, m, m)
		}),
		wantErr: ErrTooManyElements,
	}} {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.chain.Single(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
				return
			}

			require.NoError(t, err)
			assert.Same(t, tt.want, m)
		})
	}
}

func TestSingleRecoversPanic(t *testing.T) {
	c := Just(testRequest()).Map(func(context.Context, message.Message) (message.Message, error) {
		panic("boom")
	})

	m, err := c.Single(context.Background())
	assert.Nil(t, m)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
}

func TestSingleHonorsContext(t *testing.T) {
	t.Run("canceled before forcing", func(t *testing.T) {
		var called bool
		c := Defer(func(context.Context) ([]message.Message, error) {
			called = true
			return []message.Message{testRequest()}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Single(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("deadline exceeded during forcing", func(t *testing.T) {
		c := Just(testRequest()).Map(func(_ context.Context, m message.Message) (message.Message, error) {
			time.Sleep(20 * time.Millisecond)
			return m, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()

		_, err := c.Single(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

type stageBehavior int

const (
	identity stageBehavior = iota
	drop
	duplicate
	fail
	panics
	respond
)

func (b stageBehavior) String() string {
	return [...]string{"identity", "drop", "duplicate", "fail", "panic", "respond"}[b]
}

func (b stageBehavior) stage() func(Chain) Chain {
	return func(c Chain) Chain {
		return c.FlatMap(func(_ context.Context, m message.Message) Chain {
			switch b {
			case drop:
				return Empty()
			case duplicate:
				return Of(m, m)
			case fail:
				return Fail(errors.New("stage failed"))
			case panics:
				panic("stage panicked")
			case respond:
				return Just(message.NewResponse(m.Context(), nil, 200))
			default:
				return Just(m)
			}
		})
	}
}

// Forcing a composed pipeline yields exactly one message or an error,
// for every combination of stage behaviors.
func TestComposeSingleResponse(t *testing.T) {
	behaviors := []stageBehavior{identity, drop, duplicate, fail, panics, respond}
	for _, in := range behaviors {
		for _, ep := range behaviors {
			for _, out := range behaviors {
				t.Run(fmt.Sprintf("%v-%v-%v", in, ep, out), func(t *testing.T) {
					s := StageFuncs{Inbound: in.stage(), Endpoint: ep.stage(), Outbound: out.stage()}
					c := Compose(s, testRequest())

					m, err := c.Single(context.Background())
					all, collectErr := c.Collect(context.Background())

					if err != nil {
						assert.Nil(t, m)
						assert.True(t, collectErr != nil || len(all) != 1)
						return
					}

					assert.NotNil(t, m)
					require.NoError(t, collectErr)
					assert.Len(t, all, 1)
				})
			}
		}
	}
}

func TestComposeOrder(t *testing.T) {
	var order []string
	record := func(name string) func(Chain) Chain {
		return func(c Chain) Chain {
			return c.Map(func(_ context.Context, m message.Message) (message.Message, error) {
				order = append(order, name)
				return m, nil
			})
		}
	}

	s := StageFuncs{
		Inbound:  record("inbound"),
		Endpoint: record("endpoint"),
		Outbound: record("outbound"),
	}

	c := Compose(s, testRequest())
	assert.Empty(t, order)

	_, err := c.Single(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"inbound", "endpoint", "outbound"}, order)
}

func TestStageFuncsNilIsIdentity(t *testing.T) {
	req := testRequest()
	m, err := Compose(StageFuncs{}, req).Single(context.Background())
	require.NoError(t, err)
	assert.Same(t, req, m)
}
