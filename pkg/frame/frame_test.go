package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
	}{
		{name: "empty payload", payload: []byte{}},
		{name: "small payload", payload: []byte("blob")},
		{name: "binary data", payload: []byte{0x00, 0x01, 0xFE, 0xFF}},
		{name: "large payload", payload: bytes.Repeat([]byte("v"), 10240)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.payload)
			require.NoError(t, err)
			assert.Len(t, encoded, HeaderSize+len(tc.payload))

			f, err := Decode(encoded)
			require.NoError(t, err)
			require.NoError(t, f.Validate())

			assert.Equal(t, tc.payload, f.Payload)
			assert.Equal(t, uint32(len(tc.payload)), f.PayloadSize)

			now := time.Now()
			assert.WithinDuration(t, now, f.Time(), time.Minute)
		})
	}
}

func TestFrame_Layout(t *testing.T) {
	f := &Frame{PayloadSize: 3, Timestamp: 42, Payload: []byte("abc")}
	f.CRC32 = f.checksum()

	data, err := f.MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, f.CRC32, binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, []byte("abc"), data[16:])
	assert.Equal(t, 19, f.Size())
}

func TestFrame_CRCValidation(t *testing.T) {
	t.Run("corrupted CRC fails validation", func(t *testing.T) {
		encoded, err := Encode([]byte("payload"))
		require.NoError(t, err)
		encoded[0] ^= 0xFF

		f, err := Decode(encoded)
		require.NoError(t, err)
		assert.ErrorIs(t, f.Validate(), ErrCorruption)
	})

	t.Run("corrupted payload fails validation", func(t *testing.T) {
		encoded, err := Encode([]byte("payload"))
		require.NoError(t, err)
		encoded[len(encoded)-1] ^= 0x01

		f, err := Decode(encoded)
		require.NoError(t, err)
		assert.ErrorIs(t, f.Validate(), ErrCorruption)
	})

	t.Run("corrupted timestamp fails validation", func(t *testing.T) {
		encoded, err := Encode([]byte("payload"))
		require.NoError(t, err)
		encoded[10] ^= 0x01

		f, err := Decode(encoded)
		require.NoError(t, err)
		assert.ErrorIs(t, f.Validate(), ErrCorruption)
	})
}

func TestFrame_DecodeShortData(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortFrame)

	encoded, err := Encode([]byte("payload"))
	require.NoError(t, err)
	_, err = Decode(encoded[:len(encoded)-2])
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestFrame_ReadSequence(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("one"), {}, []byte("three")}
	for _, p := range payloads {
		f, err := New(p)
		require.NoError(t, err)
		n, err := f.WriteTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, int64(f.Size()), n)
	}

	for _, want := range payloads {
		f, err := Read(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, f.Payload)
	}

	_, err := Read(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_ReadErrors(t *testing.T) {
	encoded, err := Encode([]byte("payload"))
	require.NoError(t, err)

	t.Run("partial header", func(t *testing.T) {
		_, err := Read(bytes.NewReader(encoded[:5]))
		assert.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("partial payload", func(t *testing.T) {
		_, err := Read(bytes.NewReader(encoded[:HeaderSize+2]))
		assert.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("corrupted", func(t *testing.T) {
		bad := bytes.Clone(encoded)
		bad[HeaderSize] ^= 0xFF
		_, err := Read(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrCorruption)
	})
}
