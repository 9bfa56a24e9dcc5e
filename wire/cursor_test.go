package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestBufferCursor_ReadTag(t *testing.T) {
	buf := protowire.AppendTag(nil, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 150)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendString(buf, "hi")

	c := NewBufferCursor(buf)

	tag, err := c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, FieldNumber(1), tag.FieldNumber())
	assert.Equal(t, WireVarint, tag.WireType())

	v, err := c.ReadVarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), v)

	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, FieldNumber(2), tag.FieldNumber())
	assert.Equal(t, WireBytes, tag.WireType())

	n, err := c.ReadVarint()
	require.NoError(t, err)
	got := make([]byte, n)
	require.NoError(t, c.ReadFull(got))
	assert.Equal(t, "hi", string(got))

	// Clean end of input reads as tag 0.
	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, Tag(0), tag)
	assert.True(t, c.AtLimit())
}

func TestBufferCursor_InvalidTag(t *testing.T) {
	// Field number 0 is reserved and never valid on the wire.
	c := NewBufferCursor([]byte{0x00})
	_, err := c.ReadTag()
	assert.ErrorIs(t, err, ErrInvalidTag)

	// Wire type 6 does not exist.
	c = NewBufferCursor([]byte{0x0E})
	_, err = c.ReadTag()
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestBufferCursor_PeekTag(t *testing.T) {
	buf := protowire.AppendTag(nil, 7, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, 99)
	c := NewBufferCursor(buf)

	peeked, err := c.PeekTag()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Pos())

	tag, err := c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, peeked, tag)

	v, err := c.ReadFixed32()
	require.NoError(t, err)
	assert.Equal(t, uint32(99), v)
}

func TestBufferCursor_Limits(t *testing.T) {
	inner := protowire.AppendTag(nil, 1, protowire.VarintType)
	inner = protowire.AppendVarint(inner, 5)
	buf := protowire.AppendTag(nil, 3, protowire.BytesType)
	buf = protowire.AppendBytes(buf, inner)
	buf = protowire.AppendTag(buf, 4, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 6)

	c := NewBufferCursor(buf)
	tag, err := c.ReadTag()
	require.NoError(t, err)
	require.Equal(t, WireBytes, tag.WireType())

	length, err := c.ReadVarint()
	require.NoError(t, err)
	prev, err := c.PushLimit(int(length))
	require.NoError(t, err)

	// Inside the limit the nested field is visible.
	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, FieldNumber(1), tag.FieldNumber())
	_, err = c.ReadVarint()
	require.NoError(t, err)

	// The limit hides the enclosing message's remaining fields.
	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, Tag(0), tag)
	assert.True(t, c.AtLimit())

	c.PopLimit(prev)
	tag, err = c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, FieldNumber(4), tag.FieldNumber())
}

func TestBufferCursor_PushLimitPastEnd(t *testing.T) {
	c := NewBufferCursor([]byte{0x01, 0x02})
	_, err := c.PushLimit(3)
	assert.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestBufferCursor_Truncation(t *testing.T) {
	c := NewBufferCursor([]byte{0x01, 0x02})
	assert.ErrorIs(t, c.ReadFull(make([]byte, 3)), ErrTruncatedMessage)

	c = NewBufferCursor([]byte{0x01, 0x02})
	_, err := c.ReadFixed32()
	assert.ErrorIs(t, err, ErrTruncatedMessage)

	c = NewBufferCursor([]byte{0x01})
	_, err = c.ReadFixed64()
	assert.ErrorIs(t, err, ErrTruncatedMessage)

	c = NewBufferCursor([]byte{0x01, 0x02})
	_, err = c.Discard(5)
	assert.ErrorIs(t, err, ErrTruncatedMessage)
}

func TestSkipField(t *testing.T) {
	buf := protowire.AppendVarint(nil, 1<<40)
	buf = protowire.AppendFixed32(buf, 1)
	buf = protowire.AppendFixed64(buf, 2)
	buf = protowire.AppendString(buf, "skip me")
	end := protowire.AppendTag(buf, 9, protowire.VarintType)
	end = protowire.AppendVarint(end, 42)

	c := NewBufferCursor(end)
	require.NoError(t, SkipField(c, WireVarint))
	require.NoError(t, SkipField(c, WireFixed32))
	require.NoError(t, SkipField(c, WireFixed64))
	require.NoError(t, SkipField(c, WireBytes))

	tag, err := c.ReadTag()
	require.NoError(t, err)
	assert.Equal(t, FieldNumber(9), tag.FieldNumber())
}

func TestSkipField_Groups(t *testing.T) {
	c := NewBufferCursor([]byte{0x01})
	assert.ErrorIs(t, SkipField(c, WireStartGroup), ErrUnsupportedGroup)
	assert.ErrorIs(t, SkipField(c, WireEndGroup), ErrUnsupportedGroup)
}

func TestSkipField_TruncatedBytes(t *testing.T) {
	// Declares 100 bytes, delivers 1.
	c := NewBufferCursor([]byte{100, 0xAA})
	assert.ErrorIs(t, SkipField(c, WireBytes), ErrTruncatedMessage)
}
