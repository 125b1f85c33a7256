package circuit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/edgezuul/zuul/logging"
	"github.com/edgezuul/zuul/metrics"
)

const DefaultIdleTTL = time.Hour

// KeyStateChange is the counter incremented when the breaker of a host
// changes state, e.g. circuit.backend_example_org.open.
const KeyStateChange = "circuit.%s.%s"

type Options struct {

	// Defaults apply to every host without own settings, and fill
	// the unset fields of the host settings.
	Defaults Settings

	// HostSettings override the defaults for individual hosts.
	// Settings of the same host are merged in order.
	HostSettings []Settings

	Log     logging.Logger
	Metrics metrics.Metrics
}

// Registry objects hold the active circuit breakers, ensure
// synchronized access to them, apply the settings and release the idle
// breakers.
type Registry struct {
	defaults     Settings
	hostSettings map[string]Settings
	log          logging.Logger
	metrics      metrics.Metrics

	mx     sync.Mutex
	lookup map[string]*Breaker
}

func NewRegistry(o Options) *Registry {
	defaults := o.Defaults
	defaults.Host = ""
	if defaults.IdleTTL <= 0 {
		defaults.IdleTTL = DefaultIdleTTL
	}

	hs := make(map[string]Settings)
	for _, s := range o.HostSettings {
		if prev, ok := hs[s.Host]; ok {
			hs[s.Host] = s.merge(prev)
		} else {
			hs[s.Host] = s.merge(defaults)
		}
	}

	if o.Log == nil {
		o.Log = &logging.DefaultLog{}
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	return &Registry{
		defaults:     defaults,
		hostSettings: hs,
		log:          o.Log,
		metrics:      o.Metrics,
		lookup:       make(map[string]*Breaker),
	}
}

func (r *Registry) settings(host string) Settings {
	s, ok := r.hostSettings[host]
	if !ok {
		s = r.defaults
		s.Host = host
	}

	return s
}

func (r *Registry) onStateChange(host string) func(from, to gobreaker.State) {
	key := strings.ReplaceAll(host, ".", "_")
	return func(from, to gobreaker.State) {
		r.log.Infof("circuit breaker %s went from %v to %v", host, from, to)
		r.metrics.IncCounter(fmt.Sprintf(KeyStateChange, key, to))
	}
}

func (r *Registry) dropIdle(now time.Time) {
	for h, b := range r.lookup {
		if b.idle(now) {
			delete(r.lookup, h)
		}
	}
}

// Get returns the circuit breaker of a backend host. It returns nil
// when the host has no breaker configured. An idle breaker is
// replaced by a new, closed one.
func (r *Registry) Get(host string) *Breaker {
	if host == "" {
		return nil
	}

	s := r.settings(host)
	switch s.Type {
	case ConsecutiveFailures, FailureRate:
	default:
		return nil
	}

	r.mx.Lock()
	defer r.mx.Unlock()

	now := time.Now()
	b, ok := r.lookup[host]
	if !ok || b.idle(now) {
		r.dropIdle(now)
		b = newBreaker(s, r.onStateChange(host))
		r.lookup[host] = b
	}

	b.ts = now
	return b
}
