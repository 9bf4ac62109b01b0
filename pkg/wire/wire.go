// Package wire holds the byte-level primitives of the shapebin format: endianness,
// address widths and width-aware readers and writers.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Endian is the byte order recorded in a header flag byte
type Endian uint8

const (
	Big    Endian = 0
	Little Endian = 1
)

// MaxAddressLength is the widest address this package can read or write.
const MaxAddressLength = 16

// Native returns the byte order of the running platform
func Native() Endian {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	if buf[0] == 1 {
		return Little
	}
	return Big
}

// NativeAddressLength returns the platform's native address width in bytes
func NativeAddressLength() int {
	return strconv.IntSize / 8
}

// ByteOrder returns the encoding/binary order for e
func (e Endian) ByteOrder() binary.ByteOrder {
	if e == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (e Endian) String() string {
	switch e {
	case Big:
		return "big"
	case Little:
		return "little"
	default:
		return "endian(" + strconv.Itoa(int(e)) + ")"
	}
}

// ParseEndian accepts "big", "little" or "native" (empty means native)
func ParseEndian(s string) (Endian, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return Native(), nil
	case "big", "be":
		return Big, nil
	case "little", "le":
		return Little, nil
	default:
		return 0, fmt.Errorf("unknown endianness %q", s)
	}
}

// ValidAddressLength reports whether n is a power of two in [1, MaxAddressLength]
func ValidAddressLength(n int) bool {
	return n > 0 && n <= MaxAddressLength && n&(n-1) == 0
}

// Log2 returns log2 of a valid address length, the value stored in the flag byte
func Log2(n int) uint8 {
	return uint8(bits.Len(uint(n)) - 1)
}

// MaxAddress returns the largest value representable in width bytes
func MaxAddress(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(width)) - 1
}

// Fits reports whether v can be written as a width-byte address
func Fits(v uint64, width int) bool {
	return v <= MaxAddress(width)
}
