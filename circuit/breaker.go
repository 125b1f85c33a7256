package circuit

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker guards a single backend host. Use the Get method of the
// Registry to request fully initialized breakers.
type Breaker struct {
	settings Settings
	gb       *gobreaker.TwoStepCircuitBreaker

	// failure rate, guarded by mx
	mx     sync.Mutex
	window *window

	// last access, guarded by the registry
	ts time.Time
}

func newBreaker(s Settings, onStateChange func(from, to gobreaker.State)) *Breaker {
	b := &Breaker{settings: s}
	if s.Type == FailureRate {
		b.window = newWindow(s.Window)
	}

	b.gb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        s.Host,
		MaxRequests: uint32(s.HalfOpenRequests),
		Timeout:     s.Timeout,
		ReadyToTrip: b.readyToTrip,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onStateChange != nil {
				onStateChange(from, to)
			}
		},
	})

	return b
}

func (b *Breaker) readyToTrip(c gobreaker.Counts) bool {
	if b.settings.Type == ConsecutiveFailures {
		return int(c.ConsecutiveFailures) >= b.settings.Failures
	}

	b.mx.Lock()
	defer b.mx.Unlock()
	if b.window.failures < b.settings.Failures {
		return false
	}

	b.window = newWindow(b.settings.Window)
	return true
}

// Allow returns true if the breaker lets the request through, and a
// callback for reporting the outcome. The callback expects true when
// the request succeeded. When the breaker is open, Allow returns
// false and no callback.
func (b *Breaker) Allow() (func(bool), bool) {
	done, err := b.gb.Allow()

	// the only possible errors tell that the breaker is open, or that
	// the half-open state has no more probes to let through
	if err != nil {
		return nil, false
	}

	if b.settings.Type != FailureRate {
		return done, true
	}

	return func(success bool) {
		b.mx.Lock()
		b.window.tick(!success)
		b.mx.Unlock()
		done(success)
	}, true
}

// State returns closed, half-open or open.
func (b *Breaker) State() string {
	return b.gb.State().String()
}

func (b *Breaker) Settings() Settings {
	return b.settings
}

func (b *Breaker) idle(now time.Time) bool {
	return now.Sub(b.ts) > b.settings.IdleTTL
}
