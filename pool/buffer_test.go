package pool

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/momentics/hioload-mbuf/api"
)

func mustBuffer(t *testing.T, capacity int) *Buffer {
	t.Helper()
	b, err := NewBuffer(capacity)
	if err != nil {
		t.Fatalf("NewBuffer(%d): %v", capacity, err)
	}
	return b
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestBufferWithCapacity(t *testing.T) {
	b := mustBuffer(t, 1024)
	defer b.Release()

	if b.Len() != 0 {
		t.Errorf("expected length 0, got %d", b.Len())
	}
	if b.Cap() != 1024 {
		t.Errorf("expected capacity 1024, got %d", b.Cap())
	}
	if b.Refs() != 1 {
		t.Errorf("expected refcount 1, got %d", b.Refs())
	}
	if b.Pooled() {
		t.Error("standalone buffer reported as pooled")
	}
}

func TestBufferInvalidCapacity(t *testing.T) {
	for _, c := range []int{-1, MaxBufferSize + 1} {
		if _, err := NewBuffer(c); !errors.Is(err, api.ErrAllocation) {
			t.Errorf("capacity %d: expected ErrAllocation, got %v", c, err)
		}
	}
}

func TestBufferAppendGrows(t *testing.T) {
	b := mustBuffer(t, 4)
	defer b.Release()

	n, err := b.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes copied, got %d", n)
	}
	if b.Len() != 5 {
		t.Errorf("expected length 5, got %d", b.Len())
	}
	if b.Cap() < 5 {
		t.Errorf("expected capacity >= 5, got %d", b.Cap())
	}
	if got := string(b.Bytes()); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestBufferAppendLength(t *testing.T) {
	for _, n := range []int{0, 1, 7, 64, 1000, 4097, 100000} {
		b := mustBuffer(t, 0)
		data := bytes.Repeat([]byte{'x'}, n)
		if _, err := b.Append(data); err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if b.Len() != n {
			t.Errorf("n=%d: expected length %d, got %d", n, n, b.Len())
		}
		if b.Cap() < n {
			t.Errorf("n=%d: capacity %d below length", n, b.Cap())
		}
		b.Release()
	}
}

func TestBufferGrowthLaw(t *testing.T) {
	b := mustBuffer(t, 10)
	defer b.Release()

	chunks := []int{3, 8, 1, 20, 2, 2, 2, 150, 1, 40, 333}
	for _, c := range chunks {
		oldCap := b.Cap()
		newLen := b.Len() + c
		if _, err := b.Append(make([]byte, c)); err != nil {
			t.Fatalf("Append(%d): %v", c, err)
		}
		if newLen <= oldCap {
			if b.Cap() != oldCap {
				t.Errorf("capacity changed without growth: %d -> %d", oldCap, b.Cap())
			}
			continue
		}
		want := float64(oldCap) * 1.5
		if float64(newLen) > want {
			want = float64(newLen)
		}
		if float64(b.Cap()) < want {
			t.Errorf("growth from %d to length %d gave capacity %d, want >= %.1f", oldCap, newLen, b.Cap(), want)
		}
	}
}

func TestBufferGrowPreservesData(t *testing.T) {
	b := mustBuffer(t, 2)
	defer b.Release()

	b.Append([]byte("ab"))
	if err := b.Grow(100); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if b.Cap() < 102 {
		t.Errorf("expected capacity >= 102, got %d", b.Cap())
	}
	if string(b.Bytes()) != "ab" {
		t.Errorf("data lost on grow: %q", b.Bytes())
	}
	if err := b.Grow(-1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBufferBytesIsZeroCopy(t *testing.T) {
	b := mustBuffer(t, 16)
	defer b.Release()

	b.Append([]byte("abc"))
	v1 := b.Bytes()
	v2 := b.Bytes()
	if &v1[0] != &v2[0] {
		t.Error("Bytes returned different backing arrays")
	}
	if cap(v1) != len(v1) {
		t.Errorf("view capacity %d not clipped to length %d", cap(v1), len(v1))
	}
	_ = append(v1, 'z')
	b.Append([]byte("d"))
	if string(b.Bytes()) != "abcd" {
		t.Errorf("appending to the view corrupted the buffer: %q", b.Bytes())
	}
}

func TestBufferReadWrite(t *testing.T) {
	b := mustBuffer(t, 8)
	defer b.Release()

	n, err := b.Write([]byte("write test"))
	if err != nil || n != 10 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if b.Position() != 10 || b.Len() != 10 {
		t.Errorf("expected cursor 10 and length 10, got %d and %d", b.Position(), b.Len())
	}

	b.Rewind()
	dst := make([]byte, 5)
	n, err = b.Read(dst)
	if err != nil || n != 5 || string(dst) != "write" {
		t.Fatalf("Read: n=%d err=%v data=%q", n, err, dst)
	}
	if b.Remaining() != 5 {
		t.Errorf("expected 5 remaining, got %d", b.Remaining())
	}

	// Overwrite in the middle, then extend past the end.
	if _, err := b.Write([]byte("-TESTING")); err != nil {
		t.Fatal(err)
	}
	if got := string(b.Bytes()); got != "write-TESTING" {
		t.Errorf("expected %q, got %q", "write-TESTING", got)
	}

	n, err = b.Read(dst)
	if n != 0 || err != io.EOF {
		t.Errorf("expected 0, io.EOF at end of data, got %d, %v", n, err)
	}
	if n, err := b.Read(nil); n != 0 || err != nil {
		t.Errorf("empty read: expected 0, nil, got %d, %v", n, err)
	}
}

func TestBufferByteAccess(t *testing.T) {
	b := mustBuffer(t, 1)
	defer b.Release()

	for _, c := range []byte("xyz") {
		if err := b.WriteByte(c); err != nil {
			t.Fatal(err)
		}
	}
	b.Rewind()
	var got []byte
	for {
		c, err := b.ReadByte()
		if err == io.EOF {
			break
		}
		got = append(got, c)
	}
	if string(got) != "xyz" {
		t.Errorf("expected xyz, got %q", got)
	}
}

func TestBufferIOInterop(t *testing.T) {
	b := mustBuffer(t, 0)
	defer b.Release()

	src := strings.Repeat("0123456789", 300)
	n, err := b.ReadFrom(strings.NewReader(src))
	if err != nil || n != int64(len(src)) {
		t.Fatalf("ReadFrom: n=%d err=%v", n, err)
	}
	if b.Len() != len(src) {
		t.Errorf("expected length %d, got %d", len(src), b.Len())
	}

	var out bytes.Buffer
	b.Seek(10, io.SeekStart)
	m, err := b.WriteTo(&out)
	if err != nil || m != int64(len(src)-10) {
		t.Fatalf("WriteTo: n=%d err=%v", m, err)
	}
	if out.String() != src[10:] {
		t.Error("WriteTo output mismatch")
	}
	if b.Remaining() != 0 {
		t.Errorf("expected cursor at end, %d remaining", b.Remaining())
	}

	b.Rewind()
	all, err := io.ReadAll(b)
	if err != nil || string(all) != src {
		t.Errorf("io.ReadAll: err=%v, %d bytes", err, len(all))
	}
}

func TestBufferSeek(t *testing.T) {
	b := mustBuffer(t, 16)
	defer b.Release()
	b.Append([]byte("0123456789"))

	tests := []struct {
		offset int64
		whence int
		want   int64
		ok     bool
	}{
		{3, io.SeekStart, 3, true},
		{2, io.SeekCurrent, 5, true},
		{-1, io.SeekEnd, 9, true},
		{0, io.SeekEnd, 10, true},
		{1, io.SeekEnd, 0, false},
		{-1, io.SeekStart, 0, false},
		{0, 42, 0, false},
	}
	for _, tt := range tests {
		pos, err := b.Seek(tt.offset, tt.whence)
		if tt.ok {
			if err != nil || pos != tt.want {
				t.Errorf("Seek(%d, %d) = %d, %v; want %d", tt.offset, tt.whence, pos, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("Seek(%d, %d): expected ErrInvalidArgument, got %v", tt.offset, tt.whence, err)
		}
	}
}

func TestBufferTruncateResetCompact(t *testing.T) {
	b := mustBuffer(t, 32)
	defer b.Release()
	b.Append([]byte("header:payload"))

	b.Seek(7, io.SeekStart)
	b.Compact()
	if string(b.Bytes()) != "payload" || b.Position() != 0 {
		t.Errorf("Compact: got %q cursor %d", b.Bytes(), b.Position())
	}

	b.Seek(0, io.SeekEnd)
	b.Truncate(3)
	if string(b.Bytes()) != "pay" || b.Position() != 3 {
		t.Errorf("Truncate: got %q cursor %d", b.Bytes(), b.Position())
	}
	expectPanic(t, "Truncate out of range", func() { b.Truncate(4) })

	capBefore := b.Cap()
	b.Reset()
	if b.Len() != 0 || b.Position() != 0 || b.Cap() != capBefore {
		t.Errorf("Reset: len=%d cursor=%d cap=%d (was %d)", b.Len(), b.Position(), b.Cap(), capBefore)
	}
}

func TestBufferShareAndRelease(t *testing.T) {
	released := 0
	alloc := &countingAllocator{}
	b, err := NewBufferWithAllocator(64, alloc)
	if err != nil {
		t.Fatal(err)
	}
	b.Append([]byte("original"))

	other := b.Share()
	if b.Refs() != 2 || other.Refs() != 2 {
		t.Fatalf("expected refcount 2, got %d/%d", b.Refs(), other.Refs())
	}
	if b.IsUnique() {
		t.Error("shared buffer reported unique")
	}

	b.Release()
	if string(other.Bytes()) != "original" {
		t.Errorf("surviving handle sees %q", other.Bytes())
	}
	if !other.IsUnique() {
		t.Error("last handle should be unique")
	}
	if alloc.frees.Load() != 0 {
		t.Errorf("storage freed while a handle is alive")
	}

	other.Release()
	released = int(alloc.frees.Load())
	if released != 1 {
		t.Errorf("expected storage freed exactly once, got %d", released)
	}
}

func TestBufferGrowWhileSharedDetaches(t *testing.T) {
	b := mustBuffer(t, 8)
	b.Append([]byte("12345678"))
	reader := b.Share()

	if _, err := b.Append([]byte("9")); err != nil {
		t.Fatal(err)
	}
	if string(b.Bytes()) != "123456789" {
		t.Errorf("writer sees %q", b.Bytes())
	}
	if string(reader.Bytes()) != "12345678" {
		t.Errorf("reader sees %q", reader.Bytes())
	}
	if !b.IsUnique() || !reader.IsUnique() {
		t.Errorf("expected both handles unique after detach, got %d/%d", b.Refs(), reader.Refs())
	}
	b.Release()
	reader.Release()
}

func TestBufferMisusePanics(t *testing.T) {
	b := mustBuffer(t, 8)
	b.Release()

	expectPanic(t, "double release", func() { b.Release() })
	expectPanic(t, "Append after release", func() { b.Append([]byte("x")) })
	expectPanic(t, "Bytes after release", func() { b.Bytes() })
	expectPanic(t, "Share after release", func() { b.Share() })
	expectPanic(t, "Read after release", func() { b.Read(make([]byte, 1)) })
}

func TestBufferConcurrentShareRelease(t *testing.T) {
	const goroutines = 64
	const iterations = 500

	alloc := &countingAllocator{}
	b, err := NewBufferWithAllocator(128, alloc)
	if err != nil {
		t.Fatal(err)
	}
	b.Append([]byte("shared payload"))

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		h := b.Share()
		go func(h *Buffer) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				s := h.Share()
				if string(s.Bytes()) != "shared payload" {
					t.Error("reader observed modified data")
				}
				s.Release()
			}
			h.Release()
		}(h)
	}
	wg.Wait()

	if b.Refs() != 1 {
		t.Errorf("expected refcount back to 1, got %d", b.Refs())
	}
	b.Release()
	if alloc.frees.Load() != 1 {
		t.Errorf("expected exactly one free, got %d", alloc.frees.Load())
	}
}

func TestCursor(t *testing.T) {
	b := mustBuffer(t, 32)
	defer b.Release()
	data := []byte("cursor test")
	b.Append(data)

	c := b.NewCursor()
	defer c.Release()

	if v, ok := c.Next(); !ok || v != 'c' {
		t.Errorf("expected 'c', got %q %v", v, ok)
	}
	if c.Position() != 1 {
		t.Errorf("expected position 1, got %d", c.Position())
	}
	if s, ok := c.NextSlice(6); !ok || string(s) != "ursor " {
		t.Errorf("expected %q, got %q %v", "ursor ", s, ok)
	}
	if c.Position() != 7 {
		t.Errorf("expected position 7, got %d", c.Position())
	}
	if _, ok := c.NextSlice(100); ok {
		t.Error("NextSlice past end should fail")
	}
	if c.Position() != 7 {
		t.Error("failed NextSlice moved the cursor")
	}

	c.Reset()
	if s, ok := c.NextSlice(len(data)); !ok || !bytes.Equal(s, data) {
		t.Errorf("expected full data after reset, got %q", s)
	}
	if _, ok := c.Next(); ok {
		t.Error("Next at end should fail")
	}
	if b.Position() != 0 {
		t.Error("cursor moved the buffer's own position")
	}
}

func TestCursorEmpty(t *testing.T) {
	b := mustBuffer(t, 0)
	defer b.Release()

	c := b.NewCursor()
	defer c.Release()
	if _, ok := c.Next(); ok {
		t.Error("Next on empty buffer should fail")
	}
	if _, ok := c.NextSlice(1); ok {
		t.Error("NextSlice on empty buffer should fail")
	}
	if c.Len() != 0 {
		t.Errorf("expected 0 remaining, got %d", c.Len())
	}
}

func BenchmarkBufferAppend(b *testing.B) {
	chunk := make([]byte, 64)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf, _ := NewBuffer(0)
		for j := 0; j < 64; j++ {
			buf.Append(chunk)
		}
		buf.Release()
	}
}

func BenchmarkBufferShareRelease(b *testing.B) {
	buf, _ := NewBuffer(1024)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Share().Release()
	}
}
