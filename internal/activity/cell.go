package activity

import "sync"

// Cell holds the most recent Snapshot. The lock only covers the slot
// swap; readers receive copies and do their work outside it.
type Cell struct {
	mu   sync.Mutex
	snap Snapshot
	ok   bool
}

// NewCell returns an empty Cell.
func NewCell() *Cell {
	return &Cell{}
}

// Write replaces the current snapshot.
func (c *Cell) Write(s Snapshot) {
	s = s.clone()
	c.mu.Lock()
	c.snap, c.ok = s, true
	c.mu.Unlock()
}

// Read returns a copy of the current snapshot, or false before the first write.
func (c *Cell) Read() (Snapshot, bool) {
	c.mu.Lock()
	s, ok := c.snap, c.ok
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return s.clone(), true
}

// Reset empties the cell.
func (c *Cell) Reset() {
	c.mu.Lock()
	c.snap, c.ok = Snapshot{}, false
	c.mu.Unlock()
}
