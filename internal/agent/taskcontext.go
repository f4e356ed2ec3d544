package agent

import (
	"sync"

	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
)

// TaskContext is a fixed-size ring of the most recent steps. When full, the
// oldest entry is overwritten.
type TaskContext struct {
	mu   sync.RWMutex
	buf  []domain.ContextEntry
	head int // next write position
	full bool
}

// NewTaskContext creates a window holding size entries.
// Non-positive sizes fall back to the default window.
func NewTaskContext(size int) *TaskContext {
	if size <= 0 {
		size = constants.DefaultContextWindow
	}
	return &TaskContext{buf: make([]domain.ContextEntry, size)}
}

// Add appends an entry, evicting the oldest one when the window is full.
func (c *TaskContext) Add(e domain.ContextEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[c.head] = e
	c.head = (c.head + 1) % len(c.buf)
	if c.head == 0 {
		c.full = true
	}
}

// Entries returns the window oldest first.
func (c *TaskContext) Entries() []domain.ContextEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.full {
		return append([]domain.ContextEntry(nil), c.buf[:c.head]...)
	}
	out := make([]domain.ContextEntry, 0, len(c.buf))
	out = append(out, c.buf[c.head:]...)
	return append(out, c.buf[:c.head]...)
}

// Len returns the number of entries held.
func (c *TaskContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.full {
		return len(c.buf)
	}
	return c.head
}

// Cap returns the window size.
func (c *TaskContext) Cap() int { return len(c.buf) }

// Clear empties the window.
func (c *TaskContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.buf)
	c.head, c.full = 0, false
}
