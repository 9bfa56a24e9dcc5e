package wire

// ChunkCursor reads wire bytes from a forward-only sequence of chunks that
// arrive over time. Chunks are borrowed, never copied, and must be delivered
// in stream order; the cursor releases a chunk once every byte in it has been
// consumed.
//
// When a primitive needs bytes that are not buffered yet and the source has
// not been finished, the read fails with ErrNeedMoreData after restoring the
// position to the start of that primitive. Retrying the same read after Push
// therefore produces byte-for-byte the same result as a contiguous buffer
// would have.
type ChunkCursor struct {
	chunks [][]byte
	idx    int // chunk currently being read
	off    int // offset within chunks[idx]
	pos    int // logical position from the start of the stream
	limit  int // absolute position cap; unbounded until Finish
	total  int // logical position of the end of the last pushed chunk

	complete bool
	need     int // shortfall reported by the last ErrNeedMoreData
	pinned   bool
}

var _ Cursor = (*ChunkCursor)(nil)

// NewChunkCursor creates an empty cursor awaiting its first chunk.
func NewChunkCursor() *ChunkCursor {
	return &ChunkCursor{limit: unbounded}
}

// Push appends the next chunk from the source. Empty chunks are allowed and
// ignored. Push after Finish is a programming error and panics.
func (c *ChunkCursor) Push(chunk []byte) {
	if c.complete {
		panic("wire: Push on a finished ChunkCursor")
	}
	if len(chunk) == 0 {
		return
	}
	c.chunks = append(c.chunks, chunk)
	c.total += len(chunk)
}

// Finish marks the source exhausted: no further chunks will arrive and any
// subsequent shortfall is a permanent truncation.
func (c *ChunkCursor) Finish() {
	c.complete = true
}

// Missing returns the byte shortfall recorded by the last ErrNeedMoreData,
// for surfacing a required byte count to the caller's scheduler.
func (c *ChunkCursor) Missing() int { return c.need }

// Pos returns the logical read position.
func (c *ChunkCursor) Pos() int { return c.pos }

// AtLimit reports whether the position has reached the current limit.
func (c *ChunkCursor) AtLimit() bool { return c.pos >= c.limit }

// buffered returns the byte count available before the current limit.
func (c *ChunkCursor) buffered() int {
	avail := c.total - c.pos
	if c.limit != unbounded && c.limit-c.pos < avail {
		avail = c.limit - c.pos
	}
	return avail
}

// mark captures the position for exact restore on suspension.
type mark struct {
	idx, off, pos int
}

func (c *ChunkCursor) mark() mark {
	return mark{c.idx, c.off, c.pos}
}

func (c *ChunkCursor) restore(m mark) {
	c.idx, c.off, c.pos = m.idx, m.off, m.pos
}

// release drops fully consumed chunks. Only called after a committed read,
// never while a mark may still rewind into them.
func (c *ChunkCursor) release() {
	if c.pinned {
		return
	}
	for c.idx > 0 {
		c.chunks = c.chunks[1:]
		c.idx--
	}
	if c.idx == 0 && len(c.chunks) > 0 && c.off == len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
		c.off = 0
	}
}

// suspend restores the mark and reports a shortfall of n bytes, or converts
// it to a permanent truncation if the source is exhausted.
func (c *ChunkCursor) suspend(m mark, n int) error {
	c.restore(m)
	if c.complete {
		return ErrTruncatedMessage
	}
	c.need = n
	return ErrNeedMoreData
}

// readByte consumes one byte, or reports how the caller should fail.
func (c *ChunkCursor) readByte() (byte, error) {
	if c.pos >= c.limit {
		return 0, ErrTruncatedMessage
	}
	for c.idx < len(c.chunks) && c.off >= len(c.chunks[c.idx]) {
		c.idx++
		c.off = 0
	}
	if c.idx >= len(c.chunks) {
		if c.complete {
			return 0, ErrTruncatedMessage
		}
		return 0, ErrNeedMoreData
	}
	b := c.chunks[c.idx][c.off]
	c.off++
	c.pos++
	return b, nil
}

// ReadTag reads the next field tag, or returns 0 at the end of the region.
func (c *ChunkCursor) ReadTag() (Tag, error) {
	if c.atEnd() {
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

// atEnd reports the logical end of the current region: the pushed limit, or
// for the top-level region a cleanly exhausted source.
func (c *ChunkCursor) atEnd() bool {
	if c.limit != unbounded {
		return c.pos >= c.limit
	}
	return c.complete && c.pos >= c.total
}

// PeekTag reads the next tag and restores the position exactly. Chunk
// release is pinned for the duration so the restore target cannot be
// dropped mid-peek.
func (c *ChunkCursor) PeekTag() (Tag, error) {
	m := c.mark()
	c.pinned = true
	tag, err := c.ReadTag()
	c.pinned = false
	c.restore(m)
	return tag, err
}

// ReadVarint reads one 64-bit varint, assembling across chunk boundaries
// when fewer than 10 contiguous bytes remain in the current chunk.
func (c *ChunkCursor) ReadVarint() (uint64, error) {
	// Fast path: decode straight out of the current chunk.
	if c.idx < len(c.chunks) {
		rem := c.chunks[c.idx][c.off:]
		if n := c.buffered(); n < len(rem) {
			rem = rem[:n]
		}
		if len(rem) >= maxVarintLen {
			v, n := parseVarint(rem)
			if n <= 0 {
				return 0, ErrMalformedVarint
			}
			c.off += n
			c.pos += n
			c.release()
			return v, nil
		}
	}

	// Slow path: byte-by-byte across chunk boundaries.
	m := c.mark()
	var v uint64
	var shift uint
	for i := 0; i < maxVarintLen; i++ {
		b, err := c.readByte()
		if err == ErrNeedMoreData {
			return 0, c.suspend(m, 1)
		}
		if err != nil {
			c.restore(m)
			return 0, err
		}
		if shift < 64 {
			v |= uint64(b&0x7f) << shift
		}
		if b&0x80 == 0 {
			c.release()
			return v, nil
		}
		shift += 7
	}
	c.restore(m)
	return 0, ErrMalformedVarint
}

// ReadVarint32 reads a varint truncated to 32 bits.
func (c *ChunkCursor) ReadVarint32() (uint32, error) {
	v, err := c.ReadVarint()
	return uint32(v), err
}

// ReadFixed32 reads 4 bytes little-endian.
func (c *ChunkCursor) ReadFixed32() (uint32, error) {
	var b [Fixed32Size]byte
	if err := c.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadFixed64 reads 8 bytes little-endian.
func (c *ChunkCursor) ReadFixed64() (uint64, error) {
	var b [Fixed64Size]byte
	if err := c.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

// ReadFull reads exactly len(dst) bytes, copying across chunk boundaries.
// On suspension dst may have been partially written; the retry rewrites it
// from the start.
func (c *ChunkCursor) ReadFull(dst []byte) error {
	if len(dst) > c.limit-c.pos {
		return ErrTruncatedMessage
	}
	if len(dst) > c.buffered() {
		if c.complete {
			return ErrTruncatedMessage
		}
		c.need = len(dst) - c.buffered()
		return ErrNeedMoreData
	}
	copied := 0
	for copied < len(dst) {
		for c.off >= len(c.chunks[c.idx]) {
			c.idx++
			c.off = 0
		}
		n := copy(dst[copied:], c.chunks[c.idx][c.off:])
		copied += n
		c.off += n
		c.pos += n
	}
	c.release()
	return nil
}

// Discard consumes up to n bytes, committing partial progress so large
// skips never require the bytes to be buffered all at once.
func (c *ChunkCursor) Discard(n int) (int, error) {
	if n < 0 || n > c.limit-c.pos {
		return 0, ErrTruncatedMessage
	}
	discarded := 0
	for discarded < n {
		for c.idx < len(c.chunks) && c.off >= len(c.chunks[c.idx]) {
			c.idx++
			c.off = 0
		}
		if c.idx >= len(c.chunks) {
			c.release()
			if c.complete {
				return discarded, ErrTruncatedMessage
			}
			c.need = n - discarded
			return discarded, ErrNeedMoreData
		}
		step := len(c.chunks[c.idx]) - c.off
		if step > n-discarded {
			step = n - discarded
		}
		c.off += step
		c.pos += step
		discarded += step
	}
	c.release()
	return discarded, nil
}

// PushLimit bounds the cursor to the next n bytes.
func (c *ChunkCursor) PushLimit(n int) (int, error) {
	if n < 0 || (c.limit != unbounded && c.pos+n > c.limit) {
		return 0, ErrTruncatedMessage
	}
	if c.complete && c.pos+n > c.total {
		return 0, ErrTruncatedMessage
	}
	prev := c.limit
	c.limit = c.pos + n
	return prev, nil
}

// PopLimit restores a limit saved by PushLimit.
func (c *ChunkCursor) PopLimit(prev int) {
	c.limit = prev
}
