package ui

import (
	"sync"

	"chainvote/pkg/data"
)

// Controls disables a control for the duration of its network call.
// A second Run on a busy control fails with data.ErrBusy without invoking fn.
type Controls struct {
	mu   sync.Mutex
	busy map[Control]bool
	view Projection
}

// NewControls creates a latch set that mirrors busy state into view
func NewControls(view Projection) *Controls {
	return &Controls{
		busy: make(map[Control]bool),
		view: view,
	}
}

// Run executes fn while ctrl is marked busy. The control is released even
// if fn panics.
func (c *Controls) Run(ctrl Control, fn func() error) error {
	if !c.acquire(ctrl) {
		return data.ErrBusy
	}
	defer c.release(ctrl)
	return fn()
}

// Busy reports whether ctrl currently has a call in flight
func (c *Controls) Busy(ctrl Control) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[ctrl]
}

func (c *Controls) acquire(ctrl Control) bool {
	c.mu.Lock()
	if c.busy[ctrl] {
		c.mu.Unlock()
		return false
	}
	c.busy[ctrl] = true
	c.mu.Unlock()

	c.view.SetBusy(ctrl, true)
	return true
}

func (c *Controls) release(ctrl Control) {
	c.mu.Lock()
	delete(c.busy, ctrl)
	c.mu.Unlock()

	c.view.SetBusy(ctrl, false)
}
