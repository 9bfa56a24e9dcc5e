package wire

import "math"

// unbounded is the limit sentinel used while the total input length is not
// yet known (a chunk source that has not been finished).
const unbounded = math.MaxInt

// Cursor is a position-tracking read view over wire bytes. It exposes "read
// one primitive or fail" semantics; a chunked cursor additionally fails with
// ErrNeedMoreData (restoring its position exactly) when the bytes are not
// buffered yet but the source is not exhausted.
//
// Position is monotonically non-decreasing within one parse; the only
// rewind is PeekTag, which restores the position exactly on return.
type Cursor interface {
	// ReadTag reads the next field tag. It returns tag 0 with a nil error
	// only at the logical end of the current message (the enclosing limit,
	// or clean end of input at the top level). A wire-level tag with field
	// number 0 fails with ErrInvalidTag.
	ReadTag() (Tag, error)

	// PeekTag reads the next tag and restores the position exactly.
	PeekTag() (Tag, error)

	// ReadVarint reads one 64-bit varint.
	ReadVarint() (uint64, error)

	// ReadVarint32 reads a varint and truncates it to 32 bits. Any encoded
	// width up to 10 bytes is accepted; upper bits are discarded silently
	// (the historical wire-format rule for 32-bit reads).
	ReadVarint32() (uint32, error)

	// ReadFixed32 reads 4 bytes little-endian.
	ReadFixed32() (uint32, error)

	// ReadFixed64 reads 8 bytes little-endian.
	ReadFixed64() (uint64, error)

	// ReadFull reads exactly len(dst) bytes, assembling across chunk
	// boundaries when necessary.
	ReadFull(dst []byte) error

	// Discard consumes up to n bytes and returns how many were consumed.
	// Unlike the primitive reads it commits partial progress before
	// returning ErrNeedMoreData, so arbitrarily large skips need no
	// buffering.
	Discard(n int) (int, error)

	// PushLimit bounds the cursor to the next n bytes (a nested
	// length-delimited region) and returns the previous limit for PopLimit.
	PushLimit(n int) (int, error)

	// PopLimit restores a limit saved by PushLimit.
	PopLimit(prev int)

	// Pos returns the logical read position in bytes from the start of the
	// input.
	Pos() int

	// AtLimit reports whether the position has reached the current limit.
	AtLimit() bool
}

// BufferCursor reads from a single contiguous byte slice. Running out of
// bytes mid-primitive is always permanent: there is no source to deliver
// more, so shortfalls fail with ErrTruncatedMessage.
type BufferCursor struct {
	buf   []byte
	pos   int
	limit int
}

var _ Cursor = (*BufferCursor)(nil)

// NewBufferCursor creates a cursor over data. The slice is borrowed, never
// copied; the caller must not mutate it during the parse.
func NewBufferCursor(data []byte) *BufferCursor {
	return &BufferCursor{buf: data, limit: len(data)}
}

// Pos returns the current read position.
func (c *BufferCursor) Pos() int { return c.pos }

// AtLimit reports whether the cursor has consumed the current region.
func (c *BufferCursor) AtLimit() bool { return c.pos >= c.limit }

// ReadTag reads the next field tag, or returns 0 at end of the region.
func (c *BufferCursor) ReadTag() (Tag, error) {
	if c.pos >= c.limit {
		return 0, nil
	}
	v, err := c.ReadVarint32()
	if err != nil {
		return 0, err
	}
	tag := Tag(v)
	if tag.FieldNumber() < 1 || !tag.WireType().Valid() {
		return 0, ErrInvalidTag
	}
	return tag, nil
}

// PeekTag reads the next tag without consuming it.
func (c *BufferCursor) PeekTag() (Tag, error) {
	saved := c.pos
	tag, err := c.ReadTag()
	c.pos = saved
	return tag, err
}

// ReadVarint reads one 64-bit varint.
func (c *BufferCursor) ReadVarint() (uint64, error) {
	v, n := parseVarint(c.buf[c.pos:c.limit])
	switch {
	case n > 0:
		c.pos += n
		return v, nil
	case n < 0:
		return 0, ErrMalformedVarint
	default:
		return 0, ErrTruncatedMessage
	}
}

// ReadVarint32 reads a varint truncated to 32 bits.
func (c *BufferCursor) ReadVarint32() (uint32, error) {
	v, err := c.ReadVarint()
	return uint32(v), err
}

// ReadFixed32 reads 4 bytes little-endian.
func (c *BufferCursor) ReadFixed32() (uint32, error) {
	b, err := c.ReadBytes(Fixed32Size)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadFixed64 reads 8 bytes little-endian.
func (c *BufferCursor) ReadFixed64() (uint64, error) {
	b, err := c.ReadBytes(Fixed64Size)
	if err != nil {
		return 0, err
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

// ReadBytes returns a view of the next n bytes, borrowed from the
// underlying buffer without copying.
func (c *BufferCursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > c.limit {
		return nil, ErrTruncatedMessage
	}
	b := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadFull copies the next len(dst) bytes into dst.
func (c *BufferCursor) ReadFull(dst []byte) error {
	b, err := c.ReadBytes(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Discard consumes n bytes without decoding them.
func (c *BufferCursor) Discard(n int) (int, error) {
	if n < 0 || c.pos+n > c.limit {
		return 0, ErrTruncatedMessage
	}
	c.pos += n
	return n, nil
}

// PushLimit bounds the cursor to the next n bytes.
func (c *BufferCursor) PushLimit(n int) (int, error) {
	if n < 0 || c.pos+n > c.limit {
		return 0, ErrTruncatedMessage
	}
	prev := c.limit
	c.limit = c.pos + n
	return prev, nil
}

// PopLimit restores a limit saved by PushLimit.
func (c *BufferCursor) PopLimit(prev int) {
	c.limit = prev
}

// SkipField discards one field value of the given wire type: one varint, 4
// or 8 fixed bytes, or a varint length prefix plus that many bytes. Group
// wire types fail with ErrUnsupportedGroup; this codec neither emits nor
// consumes groups.
func SkipField(c Cursor, wt WireType) error {
	switch wt {
	case WireVarint:
		_, err := c.ReadVarint()
		return err
	case WireFixed32:
		_, err := c.Discard(Fixed32Size)
		return err
	case WireFixed64:
		_, err := c.Discard(Fixed64Size)
		return err
	case WireBytes:
		length, err := c.ReadVarint()
		if err != nil {
			return err
		}
		_, err = c.Discard(int(length))
		return err
	case WireStartGroup, WireEndGroup:
		return ErrUnsupportedGroup
	default:
		return ErrInvalidTag
	}
}
