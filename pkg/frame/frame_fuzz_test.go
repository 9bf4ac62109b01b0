//go:build fuzz
// +build fuzz

package frame

import (
	"bytes"
	"testing"
)

// FuzzFrame_RoundTrip tests encode/decode round-trip with random payloads
func FuzzFrame_RoundTrip(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("payload"))
	f.Add([]byte{0x00, 0x01, 0x02})

	f.Fuzz(func(t *testing.T, payload []byte) {
		if len(payload) > 100000 {
			t.Skip("Input too large for fuzz test")
		}

		encoded, err := Encode(payload)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		fr, err := Read(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}

		if !bytes.Equal(fr.Payload, payload) {
			t.Errorf("Payload mismatch: got %q, want %q", fr.Payload, payload)
		}
	})
}

// FuzzFrame_Decode makes sure arbitrary bytes never panic the decoder
func FuzzFrame_Decode(f *testing.F) {
	f.Add([]byte{})
	f.Add(bytes.Repeat([]byte{0xFF}, HeaderSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		fr, err := Decode(data)
		if err != nil {
			return
		}
		_ = fr.Validate()
	})
}
