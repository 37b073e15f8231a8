// Package navigation tracks the current item within an open projection list.
package navigation

import (
	"fmt"
	"sync"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/models"
)

// Cursor is Closed until Open or OpenAt succeeds. It holds a reference to the
// list and never modifies it.
type Cursor struct {
	mu    sync.Mutex
	list  []*models.Memory
	index int
	open  bool
}

// New returns a closed cursor.
func New() *Cursor {
	return &Cursor{}
}

// Open positions the cursor on m within list, matched by source filename.
func (c *Cursor) Open(list []*models.Memory, m *models.Memory) error {
	if m == nil {
		return fmt.Errorf("navigation: open: nil memory: %w", apperr.ErrNotFound)
	}
	for i, item := range list {
		if item == m || item.Filename == m.Filename {
			return c.OpenAt(list, i)
		}
	}
	return fmt.Errorf("navigation: open %q: %w", m.Filename, apperr.ErrNotFound)
}

// OpenAt positions the cursor at index within list.
func (c *Cursor) OpenAt(list []*models.Memory, index int) error {
	if index < 0 || index >= len(list) {
		return fmt.Errorf("navigation: index %d out of range [0,%d): %w", index, len(list), apperr.ErrNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = list
	c.index = index
	c.open = true
	return nil
}

// Close discards the list and index.
func (c *Cursor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
	c.index = 0
	c.open = false
}

// IsOpen reports whether a list is open.
func (c *Cursor) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Current returns the memory under the cursor.
func (c *Cursor) Current() (*models.Memory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, apperr.ErrCursorClosed
	}
	return c.list[c.index], nil
}

// Index returns the current position, or -1 when closed.
func (c *Cursor) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return -1
	}
	return c.index
}

// Len returns the length of the open list.
func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}

func (c *Cursor) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && c.index < len(c.list)-1
}

func (c *Cursor) HasPrevious() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && c.index > 0
}

// Next advances by one unless already at the last item.
func (c *Cursor) Next() (*models.Memory, error) {
	return c.step(1)
}

// Previous moves back by one unless already at the first item.
func (c *Cursor) Previous() (*models.Memory, error) {
	return c.step(-1)
}

func (c *Cursor) step(delta int) (*models.Memory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, apperr.ErrCursorClosed
	}
	if next := c.index + delta; next >= 0 && next < len(c.list) {
		c.index = next
	}
	return c.list[c.index], nil
}
