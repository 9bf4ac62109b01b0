package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// readChunk bounds each allocation when reading address-prefixed data of
// unknown provenance from a stream.
const readChunk = 64 * 1024

// Reader reads fixed-width integers and address-prefixed byte strings.
type Reader struct {
	in        io.Reader
	order     binary.ByteOrder
	endian    Endian
	width     int
	n         int64
	remaining int64 // -1 when the source length is unknown
	buf       [MaxAddressLength]byte
}

// NewReader creates a reader over a stream of unknown length
func NewReader(in io.Reader, e Endian, width int) *Reader {
	return &Reader{
		in:        in,
		order:     e.ByteOrder(),
		endian:    e,
		width:     width,
		remaining: -1,
	}
}

// NewBytesReader creates a reader over an in-memory buffer
func NewBytesReader(data []byte, e Endian, width int) *Reader {
	r := NewReader(bytes.NewReader(data), e, width)
	r.remaining = int64(len(data))
	return r
}

// NewSectionReader creates a reader over n bytes of ra starting at off
func NewSectionReader(ra io.ReaderAt, off, n int64, e Endian, width int) *Reader {
	r := NewReader(io.NewSectionReader(ra, off, n), e, width)
	r.remaining = n
	return r
}

// NewLimitReader creates a reader over the next n bytes of a stream
func NewLimitReader(in io.Reader, n int64, e Endian, width int) *Reader {
	r := NewReader(io.LimitReader(in, n), e, width)
	r.remaining = n
	return r
}

// SetFormat switches byte order and address width, used once the header flag
// byte has been read.
func (r *Reader) SetFormat(e Endian, width int) {
	r.order = e.ByteOrder()
	r.endian = e
	r.width = width
}

// Endian returns the reader's byte order
func (r *Reader) Endian() Endian { return r.endian }

// Width returns the address width in bytes
func (r *Reader) Width() int { return r.width }

// Consumed returns the number of bytes consumed so far
func (r *Reader) Consumed() int64 { return r.n }

// Remaining returns the bytes left in a bounded source, or -1 if unknown
func (r *Reader) Remaining() int64 { return r.remaining }

func (r *Reader) fill(p []byte) error {
	if r.remaining >= 0 && int64(len(p)) > r.remaining {
		return io.ErrUnexpectedEOF
	}
	n, err := io.ReadFull(r.in, p)
	r.n += int64(n)
	if r.remaining >= 0 {
		r.remaining -= int64(n)
	}
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Uint8 reads a single byte
func (r *Reader) Uint8() (uint8, error) {
	if err := r.fill(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// Uint16 reads two bytes
func (r *Reader) Uint16() (uint16, error) {
	if err := r.fill(r.buf[:2]); err != nil {
		return 0, err
	}
	return r.order.Uint16(r.buf[:2]), nil
}

// Uint32 reads four bytes
func (r *Reader) Uint32() (uint32, error) {
	if err := r.fill(r.buf[:4]); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.buf[:4]), nil
}

// Uint64 reads eight bytes
func (r *Reader) Uint64() (uint64, error) {
	if err := r.fill(r.buf[:8]); err != nil {
		return 0, err
	}
	return r.order.Uint64(r.buf[:8]), nil
}

// Uint reads an unsigned integer of size bytes
func (r *Reader) Uint(size int) (uint64, error) {
	switch size {
	case 1:
		v, err := r.Uint8()
		return uint64(v), err
	case 2:
		v, err := r.Uint16()
		return uint64(v), err
	case 4:
		v, err := r.Uint32()
		return uint64(v), err
	case 8:
		return r.Uint64()
	case 16:
		if err := r.fill(r.buf[:16]); err != nil {
			return 0, err
		}
		hi, lo := r.buf[0:8], r.buf[8:16]
		if r.endian == Little {
			hi, lo = lo, hi
		}
		if r.order.Uint64(hi) != 0 {
			return 0, &OverflowError{Value: r.order.Uint64(hi), Width: 8}
		}
		return r.order.Uint64(lo), nil
	default:
		return 0, fmt.Errorf("unsupported integer width %d", size)
	}
}

// Address reads an integer of the reader's address width
func (r *Reader) Address() (uint64, error) {
	return r.Uint(r.width)
}

// Count reads an address and checks it against the bytes left in a bounded
// source, given that each counted item occupies at least minSize bytes.
func (r *Reader) Count(minSize int) (uint64, error) {
	v, err := r.Address()
	if err != nil {
		return 0, err
	}
	if r.remaining >= 0 && minSize > 0 && v > uint64(r.remaining)/uint64(minSize) {
		return 0, fmt.Errorf("count %d exceeds remaining %d bytes: %w", v, r.remaining, io.ErrUnexpectedEOF)
	}
	return v, nil
}

// Bytes reads exactly n bytes
func (r *Reader) Bytes(n uint64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if r.remaining >= 0 {
		if n > uint64(r.remaining) {
			return nil, io.ErrUnexpectedEOF
		}
		p := make([]byte, n)
		if err := r.fill(p); err != nil {
			return nil, err
		}
		return p, nil
	}
	var buf bytes.Buffer
	for n > 0 {
		step := n
		if step > readChunk {
			step = readChunk
		}
		m, err := io.CopyN(&buf, r.in, int64(step))
		r.n += m
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		n -= step
	}
	return buf.Bytes(), nil
}

// Sized reads an address-prefixed byte string
func (r *Reader) Sized() ([]byte, error) {
	n, err := r.Address()
	if err != nil {
		return nil, err
	}
	return r.Bytes(n)
}

// Text reads an address-prefixed string
func (r *Reader) Text() (string, error) {
	p, err := r.Sized()
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// Skip discards n bytes
func (r *Reader) Skip(n uint64) error {
	_, err := r.Bytes(n)
	return err
}
