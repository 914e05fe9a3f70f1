// File: pool/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Growable, reference-counted byte buffer with a read/write cursor.

package pool

import (
	"io"

	"github.com/momentics/hioload-mbuf/api"
	"github.com/momentics/hioload-mbuf/internal/memory"
)

// MaxBufferSize caps the capacity a single buffer may grow to.
const MaxBufferSize = 1 << 30

// minReadFrom is the headroom ReadFrom guarantees before each Read call.
const minReadFrom = 512

// Buffer is a handle onto shared backing storage.
//
// Handles obtained through Share alias the same bytes; each keeps its own
// length and cursor. A handle must be used by one goroutine at a time.
// Share and Release may be called concurrently on different handles.
type Buffer struct {
	st     *storage
	length int
	cursor int
}

var _ api.Buffer = (*Buffer)(nil)

// NewBuffer allocates a standalone buffer of at least capacity bytes on the Go
// heap. It has no pool: the last Release frees it.
func NewBuffer(capacity int) (*Buffer, error) {
	return NewBufferWithAllocator(capacity, memory.Heap())
}

// NewBufferWithAllocator is NewBuffer with an explicit backing allocator.
func NewBufferWithAllocator(capacity int, alloc memory.Allocator) (*Buffer, error) {
	if alloc == nil {
		alloc = memory.Heap()
	}
	st, err := allocStorage(capacity, alloc, nil)
	if err != nil {
		return nil, err
	}
	return &Buffer{st: st}, nil
}

func allocStorage(capacity int, alloc memory.Allocator, owner *Pool) (*storage, error) {
	if capacity < 0 || capacity > MaxBufferSize {
		return nil, api.NewError(api.ErrCodeAllocation, "pool: capacity out of range").
			WithContext("capacity", capacity)
	}
	region, err := alloc.Alloc(capacity)
	if err != nil {
		return nil, err
	}
	return newStorage(region, alloc, owner), nil
}

func (b *Buffer) live() *storage {
	if b.st == nil {
		panic("pool: use of released buffer")
	}
	return b.st
}

// Len returns the number of valid bytes.
func (b *Buffer) Len() int {
	b.live()
	return b.length
}

// Cap returns the size of the backing storage.
func (b *Buffer) Cap() int { return len(b.live().region) }

// Position returns the cursor offset.
func (b *Buffer) Position() int {
	b.live()
	return b.cursor
}

// Remaining returns the number of bytes between the cursor and the end of data.
func (b *Buffer) Remaining() int {
	b.live()
	return b.length - b.cursor
}

// Refs returns the number of live handles sharing this buffer's storage.
func (b *Buffer) Refs() int { return int(b.live().refs.Load()) }

// IsUnique reports whether this is the only handle onto its storage.
func (b *Buffer) IsUnique() bool { return b.Refs() == 1 }

// Pooled reports whether the storage returns to a pool on its last release.
func (b *Buffer) Pooled() bool { return b.live().owner != nil }

// Bytes returns a zero-copy view of [0, Len()). The view must be treated as
// read-only and is valid until the buffer grows or this handle is released.
// Its capacity is clipped so appending to it reallocates instead of writing
// into the buffer.
func (b *Buffer) Bytes() []byte {
	st := b.live()
	return st.region[:b.length:b.length]
}

// Unread returns a zero-copy view of [Position(), Len()).
func (b *Buffer) Unread() []byte {
	st := b.live()
	return st.region[b.cursor:b.length:b.length]
}

// reserve makes sure the storage holds at least need bytes.
//
// Growth is max(cap*1.5, need). A unique handle swaps the region in place
// and keeps its pool; a shared handle detaches onto private storage so the
// other handles keep their bytes.
func (b *Buffer) reserve(need int) error {
	st := b.live()
	oldCap := len(st.region)
	if need <= oldCap {
		return nil
	}
	if need > MaxBufferSize {
		return api.NewError(api.ErrCodeAllocation, "pool: buffer would exceed maximum size").
			WithContext("requested", need).
			WithContext("max", MaxBufferSize)
	}
	newCap := oldCap + (oldCap+1)/2
	if newCap < need {
		newCap = need
	}
	if newCap > MaxBufferSize {
		newCap = MaxBufferSize
	}
	region, err := st.alloc.Alloc(newCap)
	if err != nil {
		return err
	}
	copy(region, st.region[:b.length])

	if st.refs.Load() == 1 {
		old := st.region
		st.region = region[:cap(region)]
		st.alloc.Free(old)
		return nil
	}
	b.st = newStorage(region, st.alloc, nil)
	st.release()
	return nil
}

// Grow guarantees room for n more bytes past Len() without another growth.
func (b *Buffer) Grow(n int) error {
	if n < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "pool: negative grow").WithContext("n", n)
	}
	return b.reserve(b.Len() + n)
}

// Append writes p at the tail of the data, growing storage first when needed.
// The cursor does not move.
func (b *Buffer) Append(p []byte) (int, error) {
	if err := b.reserve(b.Len() + len(p)); err != nil {
		return 0, err
	}
	n := copy(b.st.region[b.length:], p)
	b.length += n
	return n, nil
}

// Write copies p at the cursor, overwriting existing data and extending the
// buffer past its end as needed. The cursor advances by len(p).
func (b *Buffer) Write(p []byte) (int, error) {
	b.live()
	end := b.cursor + len(p)
	if err := b.reserve(end); err != nil {
		return 0, err
	}
	n := copy(b.st.region[b.cursor:], p)
	b.cursor += n
	if b.cursor > b.length {
		b.length = b.cursor
	}
	return n, nil
}

// WriteByte writes c at the cursor.
func (b *Buffer) WriteByte(c byte) error {
	_, err := b.Write([]byte{c})
	return err
}

// Read copies data from the cursor into p and advances the cursor.
// At the end of the data it returns 0, io.EOF; io.EOF marks exhaustion and
// is not a failure, so io.Copy and io.ReadAll stop cleanly.
func (b *Buffer) Read(p []byte) (int, error) {
	st := b.live()
	if len(p) == 0 {
		return 0, nil
	}
	if b.cursor >= b.length {
		return 0, io.EOF
	}
	n := copy(p, st.region[b.cursor:b.length])
	b.cursor += n
	return n, nil
}

// ReadByte returns the byte at the cursor.
func (b *Buffer) ReadByte() (byte, error) {
	st := b.live()
	if b.cursor >= b.length {
		return 0, io.EOF
	}
	c := st.region[b.cursor]
	b.cursor++
	return c, nil
}

// WriteTo drains the unread data into w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	st := b.live()
	if b.cursor >= b.length {
		return 0, nil
	}
	data := st.region[b.cursor:b.length]
	n, err := w.Write(data)
	if n > len(data) {
		panic("pool: invalid Write count")
	}
	b.cursor += n
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// ReadFrom appends from r until io.EOF, growing as needed.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		if b.Cap()-b.length < minReadFrom {
			if err := b.reserve(b.length + minReadFrom); err != nil {
				return total, err
			}
		}
		n, err := r.Read(b.st.region[b.length:])
		if n < 0 {
			panic("pool: reader returned negative count")
		}
		b.length += n
		total += int64(n)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Seek moves the cursor within [0, Len()].
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	b.live()
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.cursor)
	case io.SeekEnd:
		base = int64(b.length)
	default:
		return 0, api.NewError(api.ErrCodeInvalidArgument, "pool: invalid whence").WithContext("whence", whence)
	}
	pos := base + offset
	if pos < 0 || pos > int64(b.length) {
		return 0, api.NewError(api.ErrCodeInvalidArgument, "pool: seek out of range").
			WithContext("position", pos).
			WithContext("length", b.length)
	}
	b.cursor = int(pos)
	return pos, nil
}

// Rewind moves the cursor back to the start of the data.
func (b *Buffer) Rewind() {
	b.live()
	b.cursor = 0
}

// Truncate keeps the first n bytes. It panics if n is out of [0, Len()].
func (b *Buffer) Truncate(n int) {
	b.live()
	if n < 0 || n > b.length {
		panic("pool: truncation out of range")
	}
	b.length = n
	if b.cursor > n {
		b.cursor = n
	}
}

// Reset empties the buffer; capacity is kept.
func (b *Buffer) Reset() {
	b.live()
	b.length = 0
	b.cursor = 0
}

// Compact discards the bytes before the cursor by moving the unread data to
// the front.
func (b *Buffer) Compact() {
	st := b.live()
	if b.cursor == 0 {
		return
	}
	n := copy(st.region, st.region[b.cursor:b.length])
	b.length = n
	b.cursor = 0
}

// Share returns a new handle aliasing the same storage. The storage is
// recycled or freed only after every handle has been released.
func (b *Buffer) Share() *Buffer {
	st := b.live()
	st.retain()
	return &Buffer{st: st, length: b.length, cursor: b.cursor}
}

// Release drops this handle. Releasing twice panics.
func (b *Buffer) Release() {
	st := b.live()
	b.st = nil
	b.length = 0
	b.cursor = 0
	st.release()
}
