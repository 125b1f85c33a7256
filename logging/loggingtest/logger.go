// Package loggingtest provides a logger that records entries, for tests
// that need to wait for or count log output.
package loggingtest

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

type subscription struct {
	exp      string
	n        int
	response chan struct{}
}

// TestLogger implements logging.Logger. Every entry is prefixed with
// its level, e.g. "ERROR: ".
type TestLogger struct {
	mu      sync.Mutex
	entries []string
	subs    []*subscription
	mute    bool
}

var ErrWaitTimeout = errors.New("timeout")

// New creates a TestLogger that also prints the entries with the
// standard log package.
func New() *TestLogger {
	return &TestLogger{}
}

// NewMuted creates a TestLogger that only records the entries.
func NewMuted() *TestLogger {
	return &TestLogger{mute: true}
}

func (tl *TestLogger) save(level, e string) {
	e = level + ": " + e
	if !tl.mute {
		log.Println(e)
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.entries = append(tl.entries, e)
	for i := len(tl.subs) - 1; i >= 0; i-- {
		s := tl.subs[i]
		if !strings.Contains(e, s.exp) {
			continue
		}

		s.n--
		if s.n <= 0 {
			close(s.response)
			tl.subs = append(tl.subs[:i], tl.subs[i+1:]...)
		}
	}
}

func (tl *TestLogger) countLocked(exp string) int {
	var n int
	for _, e := range tl.entries {
		if strings.Contains(e, exp) {
			n++
		}
	}

	return n
}

// Count returns the number of recorded entries containing exp.
func (tl *TestLogger) Count(exp string) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.countLocked(exp)
}

// Entries returns a copy of the recorded entries.
func (tl *TestLogger) Entries() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.entries...)
}

// WaitForN waits until at least n entries containing exp were recorded,
// including the ones recorded before the call.
func (tl *TestLogger) WaitForN(exp string, n int, to time.Duration) error {
	tl.mu.Lock()
	s := &subscription{exp: exp, n: n - tl.countLocked(exp), response: make(chan struct{})}
	if s.n <= 0 {
		tl.mu.Unlock()
		return nil
	}

	tl.subs = append(tl.subs, s)
	tl.mu.Unlock()

	select {
	case <-s.response:
		return nil
	case <-time.After(to):
		return ErrWaitTimeout
	}
}

func (tl *TestLogger) WaitFor(exp string, to time.Duration) error {
	return tl.WaitForN(exp, 1, to)
}

// Reset drops the recorded entries and the pending waits.
func (tl *TestLogger) Reset() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.entries = nil
	tl.subs = nil
}

func (tl *TestLogger) Error(a ...interface{})            { tl.save("ERROR", fmt.Sprint(a...)) }
func (tl *TestLogger) Errorf(f string, a ...interface{}) { tl.save("ERROR", fmt.Sprintf(f, a...)) }
func (tl *TestLogger) Warn(a ...interface{})             { tl.save("WARN", fmt.Sprint(a...)) }
func (tl *TestLogger) Warnf(f string, a ...interface{})  { tl.save("WARN", fmt.Sprintf(f, a...)) }
func (tl *TestLogger) Info(a ...interface{})             { tl.save("INFO", fmt.Sprint(a...)) }
func (tl *TestLogger) Infof(f string, a ...interface{})  { tl.save("INFO", fmt.Sprintf(f, a...)) }
func (tl *TestLogger) Debug(a ...interface{})            { tl.save("DEBUG", fmt.Sprint(a...)) }
func (tl *TestLogger) Debugf(f string, a ...interface{}) { tl.save("DEBUG", fmt.Sprintf(f, a...)) }
