package link

import (
	"errors"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/roach88/duoplan/internal/plan"
)

// Clipboard receives finished share links.
type Clipboard interface {
	Copy(text string) error
}

// SystemClipboard writes to the desktop clipboard.
type SystemClipboard struct{}

// Copy implements Clipboard. Headless systems without a clipboard utility
// report TRANSPORT_UNAVAILABLE.
func (SystemClipboard) Copy(text string) error {
	if clipboard.Unsupported {
		return plan.NewError(plan.ErrCodeTransportUnavailable, "no clipboard available", nil)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return plan.NewError(plan.ErrCodeTransportUnavailable, "copy to clipboard", err)
	}
	return nil
}

// NopClipboard discards everything. Used when clipboard support is off.
type NopClipboard struct{}

// Copy implements Clipboard.
func (NopClipboard) Copy(string) error { return nil }

// MemoryClipboard records copied text for tests.
type MemoryClipboard struct {
	mu   sync.Mutex
	last string
	Fail bool
}

// Copy implements Clipboard.
func (c *MemoryClipboard) Copy(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return plan.NewError(plan.ErrCodeTransportUnavailable, "copy to clipboard", errors.New("clipboard denied"))
	}
	c.last = text
	return nil
}

// Last returns the most recently copied text.
func (c *MemoryClipboard) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
