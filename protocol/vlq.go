package protocol

import "errors"

var (
	ErrShortArgs = errors.New("protocol: truncated arguments")
	ErrBadLength = errors.New("protocol: length prefix exceeds data")
)

// AppendVLQ appends v in the variable-length encoding used for all integer
// arguments. Values in [-32, 96) take one byte.
func AppendVLQ(dst []byte, v int32) []byte {
	if v < -(1<<26) || v >= 3<<26 {
		dst = append(dst, byte(v>>28)&0x7F|0x80)
	}
	if v < -(1<<19) || v >= 3<<19 {
		dst = append(dst, byte(v>>21)&0x7F|0x80)
	}
	if v < -(1<<12) || v >= 3<<12 {
		dst = append(dst, byte(v>>14)&0x7F|0x80)
	}
	if v < -(1<<5) || v >= 3<<5 {
		dst = append(dst, byte(v>>7)&0x7F|0x80)
	}
	return append(dst, byte(v)&0x7F)
}

// AppendVLQUint appends an unsigned argument
func AppendVLQUint(dst []byte, v uint32) []byte {
	return AppendVLQ(dst, int32(v))
}

// AppendVLQBytes appends a length-prefixed byte string
func AppendVLQBytes(dst []byte, b []byte) []byte {
	dst = AppendVLQUint(dst, uint32(len(b)))
	return append(dst, b...)
}

// AppendVLQString appends a length-prefixed string
func AppendVLQString(dst []byte, s string) []byte {
	dst = AppendVLQUint(dst, uint32(len(s)))
	return append(dst, s...)
}

// Reader decodes VLQ arguments from a payload. The first decode error is
// sticky: later calls return zero values and Err reports it.
type Reader struct {
	data []byte
	err  error
}

// NewReader returns a Reader over b. b is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{data: b}
}

// Reset points the reader at a new payload and clears the error
func (r *Reader) Reset(b []byte) {
	r.data = b
	r.err = nil
}

// Int decodes a signed argument
func (r *Reader) Int() int32 {
	if r.err != nil {
		return 0
	}
	if len(r.data) == 0 {
		r.err = ErrShortArgs
		return 0
	}
	c := uint32(r.data[0])
	r.data = r.data[1:]
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for c&0x80 != 0 {
		if len(r.data) == 0 {
			r.err = ErrShortArgs
			return 0
		}
		c = uint32(r.data[0])
		r.data = r.data[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v)
}

// Uint decodes an unsigned argument
func (r *Reader) Uint() uint32 {
	return uint32(r.Int())
}

// Bytes decodes a length-prefixed byte string. The result aliases the payload.
func (r *Reader) Bytes() []byte {
	n := r.Uint()
	if r.err != nil {
		return nil
	}
	if uint32(len(r.data)) < n {
		r.err = ErrBadLength
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

// String decodes a length-prefixed string
func (r *Reader) String() string {
	return string(r.Bytes())
}

// Len returns the number of undecoded bytes
func (r *Reader) Len() int {
	return len(r.data)
}

// Err returns the first decode error
func (r *Reader) Err() error {
	return r.err
}
