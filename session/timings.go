package session

import "sort"

const (
	TimingInbound  = "inbound"
	TimingEndpoint = "endpoint"
	TimingOutbound = "outbound"
)

// Timings holds the whole-request stopwatch and the named stopwatches
// of the sub-phases of a single request.
type Timings struct {
	request *Stopwatch
	named   map[string]*Stopwatch
}

func NewTimings() *Timings {
	return &Timings{
		request: NewStopwatch(),
		named:   make(map[string]*Stopwatch),
	}
}

// Request returns the stopwatch covering the whole request.
func (t *Timings) Request() *Stopwatch {
	return t.request
}

// Get returns the named stopwatch, creating it on first use.
func (t *Timings) Get(name string) *Stopwatch {
	s, ok := t.named[name]
	if !ok {
		s = NewStopwatch()
		t.named[name] = s
	}

	return s
}

// Names returns the names of the sub-phase stopwatches in use, sorted.
func (t *Timings) Names() []string {
	names := make([]string, 0, len(t.named))
	for n := range t.named {
		names = append(names, n)
	}

	sort.Strings(names)
	return names
}
