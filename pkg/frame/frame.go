// Package frame wraps encoded blobs in a checksummed, timestamped record so
// they can be appended to a log and recovered one at a time.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"
)

// HeaderSize is the size of the fixed frame header:
// CRC32(4) + PayloadSize(4) + Timestamp(8)
const HeaderSize = 16

var (
	// ErrCorruption is returned when a frame fails its checksum
	ErrCorruption = errors.New("frame: checksum mismatch")
	// ErrShortFrame is returned when data ends inside a frame
	ErrShortFrame = errors.New("frame: data too short")
	// ErrTooLarge is returned for payloads that do not fit a 32-bit size
	ErrTooLarge = errors.New("frame: payload too large")
)

// Frame is a single blob with its integrity metadata
type Frame struct {
	CRC32       uint32 // checksum of everything after this field
	PayloadSize uint32 // size of Payload in bytes
	Timestamp   uint64 // Unix timestamp in nanoseconds
	Payload     []byte
}

// New creates a frame for payload stamped with the current time
func New(payload []byte) (*Frame, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	f := &Frame{
		PayloadSize: uint32(len(payload)),
		Timestamp:   uint64(time.Now().UnixNano()),
		Payload:     payload,
	}
	f.CRC32 = f.checksum()
	return f, nil
}

// Size returns the encoded size of the frame
func (f *Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

// Time returns the frame timestamp
func (f *Frame) Time() time.Time {
	return time.Unix(0, int64(f.Timestamp))
}

// Validate checks the frame checksum
func (f *Frame) Validate() error {
	if sum := f.checksum(); sum != f.CRC32 {
		return fmt.Errorf("%w: %08x != %08x", ErrCorruption, f.CRC32, sum)
	}
	return nil
}

// MarshalBinary encodes the frame.
// Format: [CRC32(4)][PayloadSize(4)][Timestamp(8)][Payload]
func (f *Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, f.Size())
	f.putHeader(buf)
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// WriteTo writes the encoded frame to w
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	var hdr [HeaderSize]byte
	f.putHeader(hdr[:])
	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(f.Payload)
	return int64(n + m), err
}

func (f *Frame) putHeader(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], f.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], f.PayloadSize)
	binary.LittleEndian.PutUint64(buf[8:], f.Timestamp)
}

// checksum covers PayloadSize, Timestamp and Payload
func (f *Frame) checksum() uint32 {
	var hdr [HeaderSize - 4]byte
	binary.LittleEndian.PutUint32(hdr[0:], f.PayloadSize)
	binary.LittleEndian.PutUint64(hdr[4:], f.Timestamp)
	crc := crc32.NewIEEE()
	crc.Write(hdr[:])
	crc.Write(f.Payload)
	return crc.Sum32()
}

// Encode frames payload and returns the encoded bytes
func Encode(payload []byte) ([]byte, error) {
	f, err := New(payload)
	if err != nil {
		return nil, err
	}
	return f.MarshalBinary()
}

// Decode parses one frame from the start of data. The payload aliases data.
// Decode does not check the checksum; call Validate for that.
func Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes for header", ErrShortFrame, len(data))
	}
	f := parseHeader(data)
	end := uint64(HeaderSize) + uint64(f.PayloadSize)
	if uint64(len(data)) < end {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortFrame, len(data), end)
	}
	f.Payload = data[HeaderSize:end]
	return f, nil
}

// Read reads and validates the next frame from r. It returns io.EOF when r
// ends cleanly between frames.
func Read(r io.Reader) (*Frame, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: partial header", ErrShortFrame)
		}
		return nil, err
	}
	f := parseHeader(hdr[:])
	f.Payload = make([]byte, f.PayloadSize)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: partial payload", ErrShortFrame)
		}
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func parseHeader(data []byte) *Frame {
	return &Frame{
		CRC32:       binary.LittleEndian.Uint32(data[0:4]),
		PayloadSize: binary.LittleEndian.Uint32(data[4:8]),
		Timestamp:   binary.LittleEndian.Uint64(data[8:16]),
	}
}
