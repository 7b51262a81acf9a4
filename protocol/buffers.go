package protocol

// Buffer is a fixed-capacity receive buffer. Incoming bytes are appended at
// the end and consumed bytes are discarded from the front, keeping the
// unread data contiguous for Framer.Scan without allocating.
type Buffer struct {
	buf []byte
	n   int
}

// NewBuffer creates a Buffer holding at most capacity bytes
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count written
func (b *Buffer) Write(data []byte) int {
	w := copy(b.buf[b.n:], data)
	b.n += w
	return w
}

// Bytes returns the unread data. Valid until the next Write or Discard.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.n]
}

// Discard drops n bytes from the front
func (b *Buffer) Discard(n int) {
	if n >= b.n {
		b.n = 0
		return
	}
	copy(b.buf, b.buf[n:b.n])
	b.n -= n
}

// Len returns the number of unread bytes
func (b *Buffer) Len() int {
	return b.n
}

// Free returns the space left for Write
func (b *Buffer) Free() int {
	return len(b.buf) - b.n
}

// Reset empties the buffer
func (b *Buffer) Reset() {
	b.n = 0
}
