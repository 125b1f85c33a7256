package session

import "time"

// Stopwatch measures the time spent in a span of the request lifecycle.
// Repeated start/stop cycles accumulate. The zero value is ready to use.
type Stopwatch struct {
	first   time.Time
	started time.Time
	elapsed time.Duration
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{}
}

// Start is a no-op when the watch is already running.
func (s *Stopwatch) Start() {
	if s.started.IsZero() {
		s.started = time.Now()
		if s.first.IsZero() {
			s.first = s.started
		}
	}
}

// Stop is a no-op when the watch is not running.
func (s *Stopwatch) Stop() {
	if !s.started.IsZero() {
		s.elapsed += time.Since(s.started)
		s.started = time.Time{}
	}
}

func (s *Stopwatch) Reset() {
	s.first = time.Time{}
	s.started = time.Time{}
	s.elapsed = 0
}

func (s *Stopwatch) Running() bool {
	return !s.started.IsZero()
}

// StartTime returns when the watch was first started since the last
// reset, or the zero time.
func (s *Stopwatch) StartTime() time.Time {
	return s.first
}

func (s *Stopwatch) Elapsed() time.Duration {
	if s.Running() {
		return s.elapsed + time.Since(s.started)
	}

	return s.elapsed
}
