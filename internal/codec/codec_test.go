package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsql/internal/value"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []value.Value{
		value.NewNull(),
		value.NewBool(true),
		value.NewBool(false),
		value.NewInt(-42),
		value.NewInt(0),
		value.NewInt(1 << 40),
		value.NewFloat(3.14),
		value.NewString("hello"),
		value.NewString(""),
	}
	for _, v := range cases {
		enc := NewEncoder().WriteValue(v).Bytes()
		got, err := NewDecoder(enc).ReadValue()
		require.NoError(t, err)
		assert.Equal(t, v.Kind(), got.Kind())
		assert.Equal(t, v.String(), got.String())
	}
}

func TestBytesRoundTripWithEmbeddedZero(t *testing.T) {
	in := []byte{0x00, 'a', 0x00, 0x00, 'b'}
	enc := NewEncoder().WriteBytes(in).Bytes()
	out, err := NewDecoder(enc).ReadBytes()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(in, out))
}

func TestIntOrderProperty(t *testing.T) {
	values := []int64{-100, -1, 0, 1, 100, 1 << 40}
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			a := NewEncoder().WriteInt64(values[i]).Bytes()
			b := NewEncoder().WriteInt64(values[j]).Bytes()
			assert.True(t, bytes.Compare(a, b) < 0, "encode(%d) should sort before encode(%d)", values[i], values[j])
		}
	}
}

func TestWriteBytesPrefixProperty(t *testing.T) {
	prefix := []byte("user")
	extension := []byte("user:42")

	prefixEnc := NewEncoder().WriteBytesPrefix(prefix).Bytes()
	fullEnc := NewEncoder().WriteBytes(extension).Bytes()
	assert.True(t, bytes.HasPrefix(fullEnc, prefixEnc))
}

func TestCompositeKeyOrderProperty(t *testing.T) {
	lo := NewEncoder().WriteTag(1).WriteString("a").WriteInt64(1).Bytes()
	hi := NewEncoder().WriteTag(1).WriteString("b").WriteInt64(0).Bytes()
	assert.True(t, bytes.Compare(lo, hi) < 0)
}

func TestNextPrefix(t *testing.T) {
	next, ok := NextPrefix([]byte{0x01, 0x02})
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x03}, next)

	_, ok = NextPrefix([]byte{0xFF, 0xFF})
	assert.False(t, ok)
}
