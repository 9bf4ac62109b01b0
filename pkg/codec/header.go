package codec

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/leaf"
	"github.com/ssargent/shapebin/pkg/meta"
	"github.com/ssargent/shapebin/pkg/schema"
	"github.com/ssargent/shapebin/pkg/segment"
	"github.com/ssargent/shapebin/pkg/wire"
)

// Header is the self-describing prefix of every shapebin blob
type Header struct {
	RootTag       schema.Tag
	Endian        wire.Endian
	AddressLength int
	TotalSize     uint64
	Segments      segment.Table
	SubHeaders    []schema.SubHeader
	Fields        schema.Fields

	size int64 // encoded length, set when written or parsed
}

// Len returns the encoded length of the header, the offset of the payload.
// It returns 0 for a header that cannot be encoded, such as one with an
// invalid address length; WriteTo reports the reason.
func (h *Header) Len() int64 {
	if h.size == 0 {
		var n countingWriter
		_, _ = h.WriteTo(&n)
	}
	return h.size
}

func (h *Header) flag() byte {
	return byte(h.RootTag)<<6 | byte(h.Endian)<<5 | wire.Log2(h.AddressLength)
}

// WriteTo writes the header in its wire format
func (h *Header) WriteTo(out io.Writer) (int64, error) {
	if !wire.ValidAddressLength(h.AddressLength) {
		return 0, errors.Malformed("invalid address length %d", h.AddressLength)
	}
	w := wire.NewWriter(out, h.Endian, h.AddressLength)
	if err := h.write(w); err != nil {
		var oe *wire.OverflowError
		if stderrors.As(err, &oe) {
			return w.Written(), errors.Overflow(errors.PhaseHeader, oe.Value, oe.Width)
		}
		return w.Written(), errors.New(errors.PhaseHeader, errors.KindMalformedHeader).Cause(err).Build()
	}
	h.size = w.Written()
	return h.size, nil
}

func (h *Header) write(w *wire.Writer) error {
	if err := w.Uint8(h.flag()); err != nil {
		return err
	}
	if err := w.Address(h.TotalSize); err != nil {
		return err
	}
	for _, table := range [][segment.K]uint64{h.Segments.Items, h.Segments.Bytes} {
		if err := w.Address(segment.K); err != nil {
			return err
		}
		for _, v := range table {
			if err := w.Address(v); err != nil {
				return err
			}
		}
	}
	if err := w.Address(uint64(len(h.SubHeaders))); err != nil {
		return err
	}
	for _, s := range h.SubHeaders {
		if err := w.Uint8(uint8(s.Tag)); err != nil {
			return err
		}
		if err := w.Uint64(s.ID); err != nil {
			return err
		}
		if err := writeFields(w, s.Fields); err != nil {
			return err
		}
	}
	return writeFields(w, h.Fields)
}

func writeFields(w *wire.Writer, fields schema.Fields) error {
	if err := w.Address(uint64(len(fields))); err != nil {
		return err
	}
	for _, e := range fields {
		if err := w.Text(e.Name); err != nil {
			return err
		}
		if err := w.Address(e.Index); err != nil {
			return err
		}
	}
	return nil
}

// MarshalBinary returns the encoded header
func (h *Header) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readHeader parses a header from r. The reader's format is switched to the
// one announced by the flag byte.
func readHeader(r *wire.Reader, native int) (*Header, error) {
	flag, err := r.Uint8()
	if err != nil {
		return nil, headerReadErr(err)
	}

	h := &Header{
		RootTag: schema.Tag(flag >> 6),
		Endian:  wire.Endian(flag >> 5 & 1),
	}
	log2 := int(flag & 0x1f)
	if log2 > 4 {
		return nil, errors.Malformed("address length 2^%d exceeds %d bytes", log2, wire.MaxAddressLength)
	}
	h.AddressLength = 1 << log2
	if h.AddressLength > native {
		return nil, errors.AddressWidthUnsupported(h.AddressLength, native)
	}
	if !h.RootTag.Valid() {
		return nil, errors.New(errors.PhaseHeader, errors.KindInvalidRootTag).
			Detail("invalid root tag %d", uint8(h.RootTag)).Build()
	}
	r.SetFormat(h.Endian, h.AddressLength)

	if h.TotalSize, err = r.Address(); err != nil {
		return nil, headerReadErr(err)
	}
	for _, table := range []*[segment.K]uint64{&h.Segments.Items, &h.Segments.Bytes} {
		n, err := r.Address()
		if err != nil {
			return nil, headerReadErr(err)
		}
		if n != segment.K {
			return nil, errors.Malformed("segment table has %d entries, want %d", n, segment.K)
		}
		for j := range table {
			if table[j], err = r.Address(); err != nil {
				return nil, headerReadErr(err)
			}
		}
	}

	n, err := r.Count(1 + 8 + h.AddressLength)
	if err != nil {
		return nil, headerReadErr(err)
	}
	h.SubHeaders = make([]schema.SubHeader, 0, min(n, 1024))
	for i := uint64(0); i < n; i++ {
		tag, err := r.Uint8()
		if err != nil {
			return nil, headerReadErr(err)
		}
		id, err := r.Uint64()
		if err != nil {
			return nil, headerReadErr(err)
		}
		fields, err := readFields(r)
		if err != nil {
			return nil, err
		}
		h.SubHeaders = append(h.SubHeaders, schema.SubHeader{ID: id, Tag: schema.Tag(tag), Fields: fields})
	}
	if h.Fields, err = readFields(r); err != nil {
		return nil, err
	}
	h.size = r.Consumed()

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func readFields(r *wire.Reader) (schema.Fields, error) {
	n, err := r.Count(2 * r.Width())
	if err != nil {
		return nil, headerReadErr(err)
	}
	fields := make(schema.Fields, 0, min(n, 1024))
	for i := uint64(0); i < n; i++ {
		name, err := r.Text()
		if err != nil {
			return nil, headerReadErr(err)
		}
		idx, err := r.Address()
		if err != nil {
			return nil, headerReadErr(err)
		}
		fields = append(fields, schema.Entry{Name: name, Index: idx})
	}
	return fields, nil
}

func headerReadErr(err error) error {
	if stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, io.EOF) {
		return errors.New(errors.PhaseHeader, errors.KindTruncated).Cause(err).Build()
	}
	var oe *wire.OverflowError
	if stderrors.As(err, &oe) {
		return errors.Overflow(errors.PhaseHeader, oe.Value, oe.Width)
	}
	return errors.New(errors.PhaseHeader, errors.KindMalformedHeader).Cause(err).Build()
}

// Validate checks the header's structural invariants
func (h *Header) Validate() error {
	if !wire.ValidAddressLength(h.AddressLength) {
		return errors.Malformed("invalid address length %d", h.AddressLength)
	}
	if err := h.Segments.Validate(h.TotalSize); err != nil {
		return errors.New(errors.PhaseHeader, errors.KindMalformedHeader).Cause(err).Build()
	}
	if h.RootTag == schema.TagObject && h.Segments.Items[segment.K-1] > uint64(len(h.Fields)) {
		return errors.Malformed("item table references field %d of %d", h.Segments.Items[segment.K-1], len(h.Fields))
	}
	return schema.Validate(h.SubHeaders, h.Fields)
}

// Fit reports whether values of type t can be decoded from this header
func (h *Header) Fit(t reflect.Type, names meta.NameTransform) error {
	l, err := leaf.Compile(t, names)
	if err != nil {
		return err
	}
	return h.fit(l)
}

func (h *Header) fit(l *leaf.Layout) error {
	subs, fields, err := schema.Analyze(l)
	if err != nil {
		return err
	}
	if err := schema.Same(subs, fields, h.SubHeaders, h.Fields); err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			e.GoType = l.Type.String()
		}
		return err
	}
	return nil
}

// String renders the header as an indented tree
func (h *Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s endian=%s address=%d total=%d header=%d\n", h.RootTag, h.Endian, h.AddressLength, h.TotalSize, h.Len())
	fmt.Fprintf(&b, "segments items=%v bytes=%v\n", h.Segments.Items, h.Segments.Bytes)
	for _, f := range h.Fields {
		h.describe(&b, f, 1)
	}
	return b.String()
}

func (h *Header) describe(b *strings.Builder, e schema.Entry, depth int) {
	name := e.Name
	if name == "" {
		name = "<root>"
	}
	s := h.SubHeaders[e.Index]
	fmt.Fprintf(b, "%s%s: %s #%d id=%016x\n", strings.Repeat("  ", depth), name, s.Tag, e.Index, s.ID)
	for _, f := range s.Fields {
		h.describe(b, f, depth+1)
	}
}

type countingWriter int64

func (c *countingWriter) Write(p []byte) (int, error) {
	*c += countingWriter(len(p))
	return len(p), nil
}
