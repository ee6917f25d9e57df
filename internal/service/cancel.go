package service

import "sync"

// CancelSignal is a one-shot stop request shared between the caller and the
// dispatch engine. The engine polls it between completions; in-flight generation
// calls are not interrupted.
type CancelSignal struct {
	once sync.Once
	done chan struct{}
}

// NewCancelSignal creates an unsignalled CancelSignal.
func NewCancelSignal() *CancelSignal {
	return &CancelSignal{done: make(chan struct{})}
}

// Cancel requests a stop. Calling it more than once is harmless.
func (c *CancelSignal) Cancel() {
	c.once.Do(func() { close(c.done) })
}

// Cancelled reports whether Cancel has been called.
func (c *CancelSignal) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on Cancel.
func (c *CancelSignal) Done() <-chan struct{} {
	return c.done
}
