package circuit

// window tracks the outcome of the last size requests and counts the
// failures among them
type window struct {
	outcomes []bool
	next     int
	filled   bool
	failures int
}

func newWindow(size int) *window {
	if size <= 0 {
		size = 1
	}

	return &window{outcomes: make([]bool, size)}
}

func (w *window) tick(failed bool) {
	if w.filled && w.outcomes[w.next] {
		w.failures--
	}

	w.outcomes[w.next] = failed
	if failed {
		w.failures++
	}

	w.next++
	if w.next == len(w.outcomes) {
		w.next = 0
		w.filled = true
	}
}
