package agent

import "sync"

// Token is the cooperative cancellation flag of a controller. It is polled
// between streamed tokens and between steps; Done lets a context follow it.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
}

// NewToken returns an unset token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the token. It reports false when the token was already set.
func (t *Token) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	close(t.done)
	return true
}

// Cancelled reports whether Cancel was called since the last Reset.
func (t *Token) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done is closed when the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Reset clears the token for the next task.
func (t *Token) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		t.cancelled = false
		t.done = make(chan struct{})
	}
}
