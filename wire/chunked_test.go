package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// drainPrimitives reads a fixed primitive sequence from c, pushing one more
// chunk from pending whenever the cursor suspends. It returns the values in
// read order.
func drainPrimitives(t *testing.T, c *ChunkCursor, pending [][]byte) []uint64 {
	t.Helper()
	feed := func() {
		require.NotEmpty(t, pending, "cursor suspended with no chunks left")
		c.Push(pending[0])
		pending = pending[1:]
		if len(pending) == 0 {
			c.Finish()
		}
	}
	var out []uint64
	reads := []func() (uint64, error){
		c.ReadVarint,
		func() (uint64, error) { v, err := c.ReadFixed32(); return uint64(v), err },
		c.ReadFixed64,
		c.ReadVarint,
	}
	for _, read := range reads {
		for {
			v, err := read()
			if err == ErrNeedMoreData {
				assert.Positive(t, c.Missing())
				feed()
				continue
			}
			require.NoError(t, err)
			out = append(out, v)
			break
		}
	}
	return out
}

func TestChunkCursor_SplitIndependence(t *testing.T) {
	// The same primitive sequence must decode identically no matter where
	// the chunk boundaries fall.
	buf := protowire.AppendVarint(nil, 300)
	buf = protowire.AppendFixed32(buf, 0xDEADBEEF)
	buf = protowire.AppendFixed64(buf, 0x0102030405060708)
	buf = protowire.AppendVarint(buf, 1<<40)
	want := []uint64{300, 0xDEADBEEF, 0x0102030405060708, 1 << 40}

	for split := 1; split <= len(buf); split++ {
		var chunks [][]byte
		for i := 0; i < len(buf); i += split {
			end := i + split
			if end > len(buf) {
				end = len(buf)
			}
			chunks = append(chunks, buf[i:end])
		}
		c := NewChunkCursor()
		got := drainPrimitives(t, c, chunks)
		assert.Equal(t, want, got, "split size %d", split)
		assert.Equal(t, len(buf), c.Pos(), "split size %d", split)
	}
}

func TestChunkCursor_SuspendRestoresPosition(t *testing.T) {
	buf := protowire.AppendVarint(nil, 300) // 2 bytes
	c := NewChunkCursor()
	c.Push(buf[:1])

	_, err := c.ReadVarint()
	require.ErrorIs(t, err, ErrNeedMoreData)
	assert.Equal(t, 0, c.Pos(), "suspension must restore the position exactly")

	c.Push(buf[1:])
	v, err := c.ReadVarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)
	assert.Equal(t, 2, c.Pos())
}

func TestChunkCursor_ReadFullAcrossChunks(t *testing.T) {
	c := NewChunkCursor()
	c.Push([]byte("he"))
	c.Push([]byte("l"))
	c.Push([]byte("lo"))

	dst := make([]byte, 5)
	require.NoError(t, c.ReadFull(dst))
	assert.Equal(t, "hello", string(dst))

	dst = make([]byte, 3)
	err := c.ReadFull(dst)
	require.ErrorIs(t, err, ErrNeedMoreData)
	assert.Equal(t, 3, c.Missing())

	c.Push([]byte("abc"))
	require.NoError(t, c.ReadFull(dst))
	assert.Equal(t, "abc", string(dst))
}

func TestChunkCursor_FinishMakesShortfallPermanent(t *testing.T) {
	c := NewChunkCursor()
	c.Push([]byte{0x80}) // continuation bit, terminator never arrives
	c.Finish()
	_, err := c.ReadVarint()
	assert.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestChunkCursor_CleanEndReadsTagZero(t *testing.T) {
	buf := protowire.AppendTag(nil, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 7)
	c := NewChunkCursor()
	c.Push(buf)

	// Source not finished: the next tag may still arrive.
	tag, err := c.ReadTag()
	require.NoError(t, err)
	require.NotZero(t, tag)
	_, err = c.ReadVarint()
	require.NoError(t, err)
	_, err = c.ReadTag()
	assert.ErrorIs(t, err, ErrNeedMoreData)

	// Finished and fully consumed: logical end of message.
	c.Finish()
	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, Tag(0), tag)
}

func TestChunkCursor_PeekTagAcrossBoundary(t *testing.T) {
	buf := protowire.AppendTag(nil, 1000, protowire.BytesType) // 2-byte tag
	c := NewChunkCursor()
	c.Push(buf[:1])
	c.Push(buf[1:])

	peeked, err := c.PeekTag()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Pos())

	tag, err := c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, peeked, tag)
	assert.Equal(t, FieldNumber(1000), tag.FieldNumber())
}

func TestChunkCursor_DiscardCommitsPartialProgress(t *testing.T) {
	c := NewChunkCursor()
	c.Push(make([]byte, 4))

	n, err := c.Discard(10)
	require.ErrorIs(t, err, ErrNeedMoreData)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, c.Pos())
	assert.Equal(t, 6, c.Missing())

	c.Push(make([]byte, 6))
	n, err = c.Discard(6)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 10, c.Pos())
}

func TestChunkCursor_Limits(t *testing.T) {
	c := NewChunkCursor()
	c.Push([]byte{0x08, 0x01, 0x10, 0x02}) // field 1 varint, field 2 varint

	prev, err := c.PushLimit(2)
	require.NoError(t, err)

	tag, err := c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, FieldNumber(1), tag.FieldNumber())
	_, err = c.ReadVarint()
	require.NoError(t, err)

	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, Tag(0), tag, "limit reached reads as end of message")
	assert.True(t, c.AtLimit())

	c.PopLimit(prev)
	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, FieldNumber(2), tag.FieldNumber())
}

func TestChunkCursor_PushLimitBeyondFinishedSource(t *testing.T) {
	c := NewChunkCursor()
	c.Push([]byte{0x01})
	c.Finish()
	_, err := c.PushLimit(5)
	assert.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestChunkCursor_EmptyChunksIgnored(t *testing.T) {
	c := NewChunkCursor()
	c.Push(nil)
	c.Push([]byte{})
	c.Push([]byte{0x05})
	v, err := c.ReadVarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)
}

func TestChunkCursor_PushAfterFinishPanics(t *testing.T) {
	c := NewChunkCursor()
	c.Finish()
	assert.Panics(t, func() { c.Push([]byte{0x01}) })
}
