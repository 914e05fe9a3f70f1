// File: pool/cursor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

// Cursor walks a snapshot of a buffer's data without moving the buffer's own
// cursor. It is valid as long as the view returned by Bytes would be.
type Cursor struct {
	data []byte
	pos  int
}

var cursors = NewSyncPool(func() *Cursor { return new(Cursor) }).
	WithReset(func(c *Cursor) { c.data, c.pos = nil, 0 })

// NewCursor returns a cursor positioned at the start of the data.
// Call Release when done to recycle it.
func (b *Buffer) NewCursor() *Cursor {
	c := cursors.Get()
	c.data = b.Bytes()
	c.pos = 0
	return c
}

// Next returns the next byte, or false at the end.
func (c *Cursor) Next() (byte, bool) {
	if c.pos >= len(c.data) {
		return 0, false
	}
	v := c.data[c.pos]
	c.pos++
	return v, true
}

// NextSlice returns the next n bytes without copying, or false if fewer than n
// remain. The cursor does not move on failure.
func (c *Cursor) NextSlice(n int) ([]byte, bool) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, false
	}
	s := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return s, true
}

// Position returns the number of bytes consumed.
func (c *Cursor) Position() int { return c.pos }

// Len returns the number of bytes left.
func (c *Cursor) Len() int { return len(c.data) - c.pos }

// Reset rewinds to the start.
func (c *Cursor) Reset() { c.pos = 0 }

// Release returns the cursor for reuse; it must not be used afterwards.
func (c *Cursor) Release() { cursors.Put(c) }
