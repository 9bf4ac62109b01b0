package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer writes fixed-width integers and address-prefixed byte strings in a
// chosen byte order.
type Writer struct {
	out    io.Writer
	order  binary.ByteOrder
	endian Endian
	width  int
	n      int64
	buf    [MaxAddressLength]byte
}

// NewWriter creates a writer emitting addresses of width bytes in byte order e
func NewWriter(out io.Writer, e Endian, width int) *Writer {
	return &Writer{
		out:    out,
		order:  e.ByteOrder(),
		endian: e,
		width:  width,
	}
}

// Endian returns the writer's byte order
func (w *Writer) Endian() Endian { return w.endian }

// Width returns the address width in bytes
func (w *Writer) Width() int { return w.width }

// Written returns the number of bytes written so far
func (w *Writer) Written() int64 { return w.n }

func (w *Writer) write(p []byte) error {
	n, err := w.out.Write(p)
	w.n += int64(n)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// Uint8 writes a single byte
func (w *Writer) Uint8(v uint8) error {
	w.buf[0] = v
	return w.write(w.buf[:1])
}

// Uint16 writes v in two bytes
func (w *Writer) Uint16(v uint16) error {
	w.order.PutUint16(w.buf[:2], v)
	return w.write(w.buf[:2])
}

// Uint32 writes v in four bytes
func (w *Writer) Uint32(v uint32) error {
	w.order.PutUint32(w.buf[:4], v)
	return w.write(w.buf[:4])
}

// Uint64 writes v in eight bytes
func (w *Writer) Uint64(v uint64) error {
	w.order.PutUint64(w.buf[:8], v)
	return w.write(w.buf[:8])
}

// Uint writes v in size bytes, size being a valid address length
func (w *Writer) Uint(v uint64, size int) error {
	if !Fits(v, size) {
		return fmt.Errorf("value %d overflows %d bytes", v, size)
	}
	switch size {
	case 1:
		return w.Uint8(uint8(v))
	case 2:
		return w.Uint16(uint16(v))
	case 4:
		return w.Uint32(uint32(v))
	case 8:
		return w.Uint64(v)
	case 16:
		clear(w.buf[:16])
		if w.endian == Big {
			w.order.PutUint64(w.buf[8:16], v)
		} else {
			w.order.PutUint64(w.buf[0:8], v)
		}
		return w.write(w.buf[:16])
	default:
		return fmt.Errorf("unsupported integer width %d", size)
	}
}

// Address writes v with the writer's address width
func (w *Writer) Address(v uint64) error {
	if !Fits(v, w.width) {
		return &OverflowError{Value: v, Width: w.width}
	}
	return w.Uint(v, w.width)
}

// Bytes writes p verbatim
func (w *Writer) Bytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return w.write(p)
}

// Sized writes len(p) as an address followed by p
func (w *Writer) Sized(p []byte) error {
	if err := w.Address(uint64(len(p))); err != nil {
		return err
	}
	return w.Bytes(p)
}

// Text writes s as an address-prefixed byte string
func (w *Writer) Text(s string) error {
	if err := w.Address(uint64(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	return w.write([]byte(s))
}

// OverflowError reports a value that does not fit the address width
type OverflowError struct {
	Value uint64
	Width int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("value %d does not fit in %d-byte address", e.Value, e.Width)
}

// Region is a fixed-size io.Writer over a byte slice. Writes beyond the end
// fail with io.ErrShortBuffer.
type Region struct {
	buf []byte
	off int
}

// NewRegion creates a region covering buf
func NewRegion(buf []byte) *Region {
	return &Region{buf: buf}
}

func (r *Region) Write(p []byte) (int, error) {
	n := copy(r.buf[r.off:], p)
	r.off += n
	if n < len(p) {
		return n, io.ErrShortBuffer
	}
	return n, nil
}

// Len returns the number of bytes written into the region
func (r *Region) Len() int { return r.off }

// Full reports whether every byte of the region has been written
func (r *Region) Full() bool { return r.off == len(r.buf) }
