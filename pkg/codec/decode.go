package codec

import (
	stderrors "errors"
	"io"
	"reflect"
	"strconv"

	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/leaf"
	"github.com/ssargent/shapebin/pkg/schema"
	"github.com/ssargent/shapebin/pkg/segment"
	"github.com/ssargent/shapebin/pkg/wire"
)

// payload hands out readers over chunk byte ranges
type payload interface {
	chunk(c segment.Range, e wire.Endian, width int) *wire.Reader
	// random reports whether chunks can be read in any order
	random() bool
}

type bytesPayload []byte

func (p bytesPayload) chunk(c segment.Range, e wire.Endian, width int) *wire.Reader {
	return wire.NewBytesReader(p[c.ByteLo:c.ByteHi], e, width)
}

func (p bytesPayload) random() bool { return true }

type readerAtPayload struct {
	ra  io.ReaderAt
	off int64
}

func (p readerAtPayload) chunk(c segment.Range, e wire.Endian, width int) *wire.Reader {
	return wire.NewSectionReader(p.ra, p.off+int64(c.ByteLo), int64(c.Len()), e, width)
}

func (p readerAtPayload) random() bool { return true }

type streamPayload struct {
	r io.Reader
}

func (p streamPayload) chunk(c segment.Range, e wire.Endian, width int) *wire.Reader {
	return wire.NewLimitReader(p.r, int64(c.Len()), e, width)
}

func (p streamPayload) random() bool { return false }

func parseBytes(data []byte, o Options) (*Header, payload, error) {
	h, err := readHeader(wire.NewBytesReader(data, wire.Big, 1), o.NativeAddressLength)
	if err != nil {
		return nil, nil, err
	}
	rest := uint64(int64(len(data)) - h.Len())
	if rest < h.TotalSize {
		return nil, nil, truncated(h.TotalSize, rest)
	}
	logHeader(o, h)
	return h, bytesPayload(data[h.Len() : h.Len()+int64(h.TotalSize)]), nil
}

func parseReaderAt(ra io.ReaderAt, size int64, o Options) (*Header, payload, error) {
	h, err := readHeader(wire.NewSectionReader(ra, 0, size, wire.Big, 1), o.NativeAddressLength)
	if err != nil {
		return nil, nil, err
	}
	rest := uint64(size - h.Len())
	if rest < h.TotalSize {
		return nil, nil, truncated(h.TotalSize, rest)
	}
	logHeader(o, h)
	return h, readerAtPayload{ra: ra, off: h.Len()}, nil
}

func parseStream(r io.Reader, o Options) (*Header, payload, error) {
	h, err := readHeader(wire.NewReader(r, wire.Big, 1), o.NativeAddressLength)
	if err != nil {
		return nil, nil, err
	}
	logHeader(o, h)
	return h, streamPayload{r: r}, nil
}

func truncated(want, got uint64) error {
	return errors.New(errors.PhaseDecode, errors.KindTruncated).
		Detail("payload has %d bytes, header declares %d", got, want).Build()
}

func logHeader(o Options, h *Header) {
	o.Logger.Debug("header parsed",
		zap.Stringer("root", h.RootTag),
		zap.Int("sub_headers", len(h.SubHeaders)),
		zap.Int("fields", len(h.Fields)),
		zap.Uint64("total_size", h.TotalSize),
		zap.Int("address_length", h.AddressLength),
		zap.Stringer("endian", h.Endian))
}

// bind fits l against the header and returns a copy of l whose struct fields
// follow the header's field order.
func bind(h *Header, l *leaf.Layout, o Options) (*leaf.Layout, error) {
	if err := h.fit(l); err != nil {
		o.Logger.Warn("schema mismatch", zap.String("type", l.Type.String()), zap.Error(err))
		return nil, err
	}
	b := &binder{subs: h.SubHeaders, done: make(map[bindKey]*leaf.Layout)}
	if l.Kind == leaf.KindStruct {
		return b.object(l, h.Fields)
	}
	return b.node(l, h.Fields[0].Index)
}

type bindKey struct {
	layout *leaf.Layout
	sub    uint64
}

type binder struct {
	subs []schema.SubHeader
	done map[bindKey]*leaf.Layout
}

func (b *binder) object(l *leaf.Layout, fields schema.Fields) (*leaf.Layout, error) {
	bound, err := l.WithFieldOrder(fields.Names())
	if err != nil {
		return nil, errors.New(errors.PhaseFit, errors.KindSchemaMismatch).GoType(l.Type.String()).Cause(err).Build()
	}
	for i, f := range bound.Fields {
		child, err := b.node(f.Layout, fields[i].Index)
		if err != nil {
			return nil, err
		}
		bound.Fields[i].Layout = child
	}
	return bound, nil
}

func (b *binder) node(l *leaf.Layout, sub uint64) (*leaf.Layout, error) {
	if l.IsValue() {
		return l, nil
	}
	k := bindKey{layout: l, sub: sub}
	if bound, ok := b.done[k]; ok {
		return bound, nil
	}

	s := b.subs[sub]
	var bound *leaf.Layout
	var err error
	switch l.Kind {
	case leaf.KindStruct:
		bound, err = b.object(l, s.Fields)
	case leaf.KindMap:
		cp := *l
		bound = &cp
		if cp.Key, err = b.entry(l.Key, s, schema.KeyName); err == nil {
			cp.Elem, err = b.entry(l.Elem, s, schema.ValueName)
		}
	case leaf.KindPointer:
		cp := *l
		bound = &cp
		cp.Elem, err = b.entry(l.Elem, s, schema.OptionName)
	default:
		cp := *l
		bound = &cp
		cp.Elem, err = b.entry(l.Elem, s, schema.ElemName)
	}
	if err != nil {
		return nil, err
	}
	b.done[k] = bound
	return bound, nil
}

func (b *binder) entry(l *leaf.Layout, s schema.SubHeader, name string) (*leaf.Layout, error) {
	idx, ok := s.Fields.Lookup(name)
	if !ok {
		return nil, errors.SchemaMismatch([]string{name}, l.Type.String(), "entry missing from header")
	}
	return b.node(l, idx)
}

type decoder struct {
	opts   Options
	header *Header
	layout *leaf.Layout
	src    payload
}

func (d *decoder) run(fn func(j int) error) error {
	o := d.opts
	if !d.src.random() {
		o.Concurrent = false
	}
	return run(o, fn)
}

func (d *decoder) reader(c segment.Range) *wire.Reader {
	return d.src.chunk(c, d.header.Endian, d.header.AddressLength)
}

// object decodes an Object payload into the struct v
func (d *decoder) object(v reflect.Value) error {
	chunks := d.header.Segments.Chunks(int64(len(d.layout.Fields)), d.header.TotalSize)
	return d.run(func(j int) error {
		c := chunks[j]
		r := d.reader(c)
		for i := c.ItemLo; i < c.ItemHi; i++ {
			f := d.layout.Fields[i]
			target := v.Field(f.Index)
			if !f.Writable {
				target = reflect.New(f.Layout.Type).Elem()
			}
			if err := f.Layout.Decode(r, target); err != nil {
				return d.chunkErr(withPath(err, f.Name))
			}
		}
		return d.drained(j, r)
	})
}

// array decodes an Array payload into the slice v
func (d *decoder) array(v reflect.Value) error {
	chunks := d.header.Segments.Chunks(-1, d.header.TotalSize)
	var parts [segment.K]reflect.Value
	err := d.run(func(j int) error {
		c := chunks[j]
		r := d.reader(c)
		part := reflect.MakeSlice(v.Type(), 0, 0)

		// sequence elements always occupy bytes, so each one must consume some
		decodeOne := func(i int64) error {
			before := r.Remaining()
			part = reflect.Append(part, reflect.Zero(d.layout.Type))
			err := d.layout.Decode(r, part.Index(part.Len()-1))
			if err != nil {
				return d.chunkErr(withPath(err, indexSegment(i)))
			}
			if r.Remaining() == before {
				return malformed("chunk %d element %d consumed no bytes", j, i)
			}
			return nil
		}

		if c.ItemHi >= 0 {
			for i := c.ItemLo; i < c.ItemHi; i++ {
				if err := decodeOne(i); err != nil {
					return err
				}
			}
		} else {
			for i := c.ItemLo; r.Remaining() > 0; i++ {
				if err := decodeOne(i); err != nil {
					return err
				}
			}
		}
		parts[j] = part
		return d.drained(j, r)
	})
	if err != nil {
		return err
	}

	out := parts[0]
	for _, p := range parts[1:] {
		out = reflect.AppendSlice(out, p)
	}
	if out.Len() == 0 {
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
		return nil
	}
	v.Set(out)
	return nil
}

func (d *decoder) drained(j int, r *wire.Reader) error {
	if r.Remaining() != 0 {
		return malformed("chunk %d left %d bytes unread", j, r.Remaining())
	}
	return nil
}

// chunkErr turns reads past the end of a bounded chunk into payload errors.
// Streams keep Truncated since the source itself may have ended.
func (d *decoder) chunkErr(err error) error {
	if !d.src.random() {
		return err
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e.Kind == errors.KindTruncated {
		e.Kind = errors.KindMalformedPayload
		e.Detail = "element overruns its chunk"
	}
	return err
}

func malformed(detail string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindMalformedPayload).Detail(detail, args...).Build()
}

func indexSegment(i int64) string {
	return "[" + strconv.FormatInt(i, 10) + "]"
}
