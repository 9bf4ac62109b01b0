package codec

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"reflect"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/leaf"
	"github.com/ssargent/shapebin/pkg/schema"
	"github.com/ssargent/shapebin/pkg/segment"
	"github.com/ssargent/shapebin/pkg/wire"
)

// items is the root-level unit of chunking: struct fields for Object roots,
// sequence elements for Array roots.
type items interface {
	Len() int
	Size(i, addr int) (uint64, error)
	Encode(w *wire.Writer, i int) error
}

type fieldItems struct {
	layout *leaf.Layout
	value  reflect.Value
}

func (f fieldItems) Len() int { return len(f.layout.Fields) }

func (f fieldItems) Size(i, addr int) (uint64, error) {
	field := f.layout.Fields[i]
	n, err := field.Layout.Size(f.value.Field(field.Index), addr)
	return n, withPath(err, field.Name)
}

func (f fieldItems) Encode(w *wire.Writer, i int) error {
	field := f.layout.Fields[i]
	return withPath(field.Layout.Encode(w, f.value.Field(field.Index)), field.Name)
}

type elemItems struct {
	layout *leaf.Layout
	value  reflect.Value
}

func (e elemItems) Len() int { return e.value.Len() }

func (e elemItems) Size(i, addr int) (uint64, error) {
	n, err := e.layout.Size(e.value.Index(i), addr)
	return n, withPath(err, indexSegment(int64(i)))
}

func (e elemItems) Encode(w *wire.Writer, i int) error {
	return withPath(e.layout.Encode(w, e.value.Index(i)), indexSegment(int64(i)))
}

func withPath(err error, segment string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{segment}, e.Path...)
		return e
	}
	return err
}

type encoder struct {
	opts   Options
	root   schema.Tag
	layout *leaf.Layout
	items  items
}

func (e *encoder) checkAddressLength() error {
	addr := e.opts.AddressLength
	if !wire.ValidAddressLength(addr) {
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Detail("address length %d is not a power of two in [1, %d]", addr, wire.MaxAddressLength).Build()
	}
	if addr > e.opts.NativeAddressLength {
		err := errors.AddressWidthUnsupported(addr, e.opts.NativeAddressLength)
		err.Phase = errors.PhaseEncode
		return err
	}
	return nil
}

// header sizes every item, plans the chunks and builds the header
func (e *encoder) header() (*Header, error) {
	if err := e.checkAddressLength(); err != nil {
		return nil, err
	}
	addr := e.opts.AddressLength

	n := e.items.Len()
	sizes := make([]uint64, n)
	var total uint64
	for i := 0; i < n; i++ {
		s, err := e.items.Size(i, addr)
		if err != nil {
			return nil, err
		}
		if total+s < total {
			return nil, errors.Overflow(errors.PhaseEncode, math.MaxUint64, addr)
		}
		sizes[i] = s
		total += s
	}
	if !wire.Fits(total, addr) {
		return nil, errors.Overflow(errors.PhaseEncode, total, addr)
	}
	if e.root == schema.TagArray && n > 0 && total == 0 {
		return nil, errors.Unsupported(errors.PhaseEncode, nil, e.layout.Type.String(),
			"sequence of zero-width elements cannot be counted")
	}

	subs, fields, err := schema.Analyze(e.layout)
	if err != nil {
		return nil, err
	}

	h := &Header{
		RootTag:       e.root,
		Endian:        e.opts.Endian,
		AddressLength: addr,
		TotalSize:     total,
		Segments:      segment.Plan(sizes),
		SubHeaders:    subs,
		Fields:        fields,
	}

	e.opts.Logger.Debug("header built",
		zap.Stringer("root", h.RootTag),
		zap.String("type", e.layout.Type.String()),
		zap.Int("items", n),
		zap.Int("sub_headers", len(subs)),
		zap.Uint64("total_size", total),
		zap.Int("address_length", addr),
		zap.Stringer("endian", h.Endian))
	return h, nil
}

// encodeBytes renders header and payload into a single buffer, encoding the
// chunks concurrently when enabled.
func (e *encoder) encodeBytes() ([]byte, error) {
	h, err := e.header()
	if err != nil {
		return nil, err
	}
	if h.TotalSize > uint64(math.MaxInt-h.Len()) {
		return nil, errors.Overflow(errors.PhaseEncode, h.TotalSize, e.opts.AddressLength)
	}

	var head bytes.Buffer
	if _, err := h.WriteTo(&head); err != nil {
		return nil, err
	}
	buf := make([]byte, head.Len()+int(h.TotalSize))
	copy(buf, head.Bytes())
	payload := buf[head.Len():]

	chunks := h.Segments.Chunks(int64(e.items.Len()), h.TotalSize)
	err = run(e.opts, func(j int) error {
		return e.encodeChunk(j, chunks[j], payload)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *encoder) encodeChunk(j int, c segment.Range, payload []byte) error {
	e.opts.Logger.Debug("encoding chunk",
		zap.Int("chunk", j),
		zap.Int64("item_lo", c.ItemLo),
		zap.Int64("item_hi", c.ItemHi),
		zap.Uint64("bytes", c.Len()))

	region := wire.NewRegion(payload[c.ByteLo:c.ByteHi])
	w := wire.NewWriter(region, e.opts.Endian, e.opts.AddressLength)
	for i := c.ItemLo; i < c.ItemHi; i++ {
		if err := e.items.Encode(w, int(i)); err != nil {
			return err
		}
	}
	if !region.Full() {
		return errors.New(errors.PhaseEncode, errors.KindMalformedPayload).
			Detail("chunk %d wrote %d of %d bytes", j, region.Len(), c.Len()).Build()
	}
	return nil
}

// encodeTo writes header and payload to out in a single sequential pass
func (e *encoder) encodeTo(out io.Writer) (int64, error) {
	h, err := e.header()
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(out)
	n, err := h.WriteTo(bw)
	if err != nil {
		return n, err
	}
	w := wire.NewWriter(bw, e.opts.Endian, e.opts.AddressLength)
	for i := 0; i < e.items.Len(); i++ {
		if err := e.items.Encode(w, i); err != nil {
			return n + w.Written(), err
		}
	}
	if uint64(w.Written()) != h.TotalSize {
		return n + w.Written(), errors.New(errors.PhaseEncode, errors.KindMalformedPayload).
			Detail("wrote %d payload bytes, header declares %d", w.Written(), h.TotalSize).Build()
	}
	if err := bw.Flush(); err != nil {
		return n + w.Written(), err
	}
	return n + w.Written(), nil
}

// run executes fn for every chunk, as a fork-join over segment.K goroutines
// when concurrency is enabled. The first error is returned.
func run(o Options, fn func(j int) error) error {
	if !o.Concurrent {
		for j := 0; j < segment.K; j++ {
			if err := fn(j); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	for j := 0; j < segment.K; j++ {
		g.Go(func() error {
			return fn(j)
		})
	}
	return g.Wait()
}
