//go:build bench
// +build bench

package frame

import (
	"bytes"
	"testing"
)

func BenchmarkFrame_Encode(b *testing.B) {
	benchmarks := []struct {
		name    string
		payload []byte
	}{
		{name: "small", payload: []byte("john@example.com")},
		{name: "medium", payload: bytes.Repeat([]byte("v"), 1000)},
		{name: "large", payload: bytes.Repeat([]byte("v"), 100000)},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.SetBytes(int64(len(bm.payload)))
			for i := 0; i < b.N; i++ {
				if _, err := Encode(bm.payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkFrame_Read(b *testing.B) {
	encoded, err := Encode(bytes.Repeat([]byte("v"), 1000))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Read(bytes.NewReader(encoded)); err != nil {
			b.Fatal(err)
		}
	}
}
