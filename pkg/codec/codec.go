package codec

import (
	"io"
	"reflect"
	"time"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/leaf"
	"github.com/ssargent/shapebin/pkg/schema"
	"github.com/ssargent/shapebin/pkg/wire"
)

// Either holds the result of decoding a blob whose root tag is not known in
// advance: a single object or a sequence.
type Either[T any] struct {
	tag    schema.Tag
	object T
	array  []T
}

// Tag returns the root tag of the decoded blob
func (e Either[T]) Tag() schema.Tag { return e.tag }

// Object returns the decoded object, if the blob held one
func (e Either[T]) Object() (T, bool) {
	return e.object, e.tag == schema.TagObject
}

// Array returns the decoded sequence, if the blob held one
func (e Either[T]) Array() ([]T, bool) {
	return e.array, e.tag == schema.TagArray
}

// Codec encodes and decodes values of type T with a fixed set of options.
// The compiled layout of T is reused across calls; headers are not.
type Codec[T any] struct {
	opts   Options
	layout *leaf.Layout
}

// New compiles T and returns a codec for it
func New[T any](opts ...Option) (*Codec[T], error) {
	o := newOptions(opts)
	l, err := leaf.Compile(reflect.TypeFor[T](), o.Names)
	if err != nil {
		return nil, err
	}
	return &Codec[T]{opts: o, layout: l}, nil
}

// Options returns the resolved options of the codec
func (c *Codec[T]) Options() Options { return c.opts }

func (c *Codec[T]) objectEncoder(v *T) (*encoder, error) {
	if c.layout.Kind != leaf.KindStruct {
		return nil, errors.Unsupported(errors.PhaseEncode, nil, c.layout.Type.String(), "only structs encode as an object")
	}
	return &encoder{
		opts:   c.opts,
		root:   schema.TagObject,
		layout: c.layout,
		items:  fieldItems{layout: c.layout, value: reflect.ValueOf(v).Elem()},
	}, nil
}

func (c *Codec[T]) seqEncoder(vs []T) *encoder {
	return &encoder{
		opts:   c.opts,
		root:   schema.TagArray,
		layout: c.layout,
		items:  elemItems{layout: c.layout, value: reflect.ValueOf(vs)},
	}
}

// Encode serializes the struct v as an Object blob
func (c *Codec[T]) Encode(v T) ([]byte, error) {
	start := time.Now()
	enc, err := c.objectEncoder(&v)
	var out []byte
	if err == nil {
		out, err = enc.encodeBytes()
	}
	c.opts.observeEncode(schema.TagObject, int64(len(out)), start, err)
	return out, err
}

// EncodeSeq serializes vs as an Array blob
func (c *Codec[T]) EncodeSeq(vs []T) ([]byte, error) {
	start := time.Now()
	out, err := c.seqEncoder(vs).encodeBytes()
	c.opts.observeEncode(schema.TagArray, int64(len(out)), start, err)
	return out, err
}

// EncodeTo streams the Object blob of v to w
func (c *Codec[T]) EncodeTo(w io.Writer, v T) (int64, error) {
	start := time.Now()
	enc, err := c.objectEncoder(&v)
	var n int64
	if err == nil {
		n, err = enc.encodeTo(w)
	}
	c.opts.observeEncode(schema.TagObject, n, start, err)
	return n, err
}

// EncodeSeqTo streams the Array blob of vs to w
func (c *Codec[T]) EncodeSeqTo(w io.Writer, vs []T) (int64, error) {
	start := time.Now()
	n, err := c.seqEncoder(vs).encodeTo(w)
	c.opts.observeEncode(schema.TagArray, n, start, err)
	return n, err
}

func (c *Codec[T]) decoder(h *Header, src payload) (*decoder, error) {
	bound, err := bind(h, c.layout, c.opts)
	if err != nil {
		return nil, err
	}
	return &decoder{opts: c.opts, header: h, layout: bound, src: src}, nil
}

func (c *Codec[T]) object(h *Header, src payload) (T, error) {
	var out T
	if h.RootTag != schema.TagObject {
		return out, errors.InvalidRootTag(h.RootTag)
	}
	if c.layout.Kind != leaf.KindStruct {
		return out, errors.Unsupported(errors.PhaseDecode, nil, c.layout.Type.String(), "only structs decode from an object")
	}
	d, err := c.decoder(h, src)
	if err != nil {
		return out, err
	}
	if err := d.object(reflect.ValueOf(&out).Elem()); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (c *Codec[T]) array(h *Header, src payload) ([]T, error) {
	if h.RootTag != schema.TagArray {
		return nil, errors.InvalidRootTag(h.RootTag)
	}
	d, err := c.decoder(h, src)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := d.array(reflect.ValueOf(&out).Elem()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Codec[T]) either(h *Header, src payload) (Either[T], error) {
	switch h.RootTag {
	case schema.TagObject:
		v, err := c.object(h, src)
		if err != nil {
			return Either[T]{}, err
		}
		return Either[T]{tag: schema.TagObject, object: v}, nil
	case schema.TagArray:
		vs, err := c.array(h, src)
		if err != nil {
			return Either[T]{}, err
		}
		return Either[T]{tag: schema.TagArray, array: vs}, nil
	default:
		return Either[T]{}, errors.InvalidRootTag(h.RootTag)
	}
}

// decode runs fn over a parsed source and reports the outcome to the observer
func decode[R any](o Options, size int64, parse func() (*Header, payload, error), fn func(*Header, payload) (R, error)) (R, error) {
	start := time.Now()
	var out R
	h, src, err := parse()
	root := schema.TagValue
	if err == nil {
		root = h.RootTag
		out, err = fn(h, src)
	}
	o.observeDecode(root, size, start, err)
	return out, err
}

// Decode decodes an Object or Array blob
func (c *Codec[T]) Decode(data []byte) (Either[T], error) {
	return decode(c.opts, int64(len(data)), func() (*Header, payload, error) { return parseBytes(data, c.opts) }, c.either)
}

// DecodeObject decodes an Object blob
func (c *Codec[T]) DecodeObject(data []byte) (T, error) {
	return decode(c.opts, int64(len(data)), func() (*Header, payload, error) { return parseBytes(data, c.opts) }, c.object)
}

// DecodeArray decodes an Array blob
func (c *Codec[T]) DecodeArray(data []byte) ([]T, error) {
	return decode(c.opts, int64(len(data)), func() (*Header, payload, error) { return parseBytes(data, c.opts) }, c.array)
}

// DecodeReaderAt decodes size bytes of ra, reading chunks concurrently
func (c *Codec[T]) DecodeReaderAt(ra io.ReaderAt, size int64) (Either[T], error) {
	return decode(c.opts, size, func() (*Header, payload, error) { return parseReaderAt(ra, size, c.opts) }, c.either)
}

// DecodeStream decodes a blob read sequentially from r
func (c *Codec[T]) DecodeStream(r io.Reader) (Either[T], error) {
	return decode(c.opts, 0, func() (*Header, payload, error) { return parseStream(r, c.opts) }, c.either)
}

// DecodeStreamObject decodes an Object blob read sequentially from r
func (c *Codec[T]) DecodeStreamObject(r io.Reader) (T, error) {
	return decode(c.opts, 0, func() (*Header, payload, error) { return parseStream(r, c.opts) }, c.object)
}

// DecodeStreamArray decodes an Array blob read sequentially from r
func (c *Codec[T]) DecodeStreamArray(r io.Reader) ([]T, error) {
	return decode(c.opts, 0, func() (*Header, payload, error) { return parseStream(r, c.opts) }, c.array)
}

// Encode serializes the struct v as an Object blob
func Encode[T any](v T, opts ...Option) ([]byte, error) {
	c, err := New[T](opts...)
	if err != nil {
		return nil, err
	}
	return c.Encode(v)
}

// EncodeSeq serializes vs as an Array blob
func EncodeSeq[T any](vs []T, opts ...Option) ([]byte, error) {
	c, err := New[T](opts...)
	if err != nil {
		return nil, err
	}
	return c.EncodeSeq(vs)
}

// EncodeTo streams the Object blob of v to w
func EncodeTo[T any](w io.Writer, v T, opts ...Option) (int64, error) {
	c, err := New[T](opts...)
	if err != nil {
		return 0, err
	}
	return c.EncodeTo(w, v)
}

// EncodeSeqTo streams the Array blob of vs to w
func EncodeSeqTo[T any](w io.Writer, vs []T, opts ...Option) (int64, error) {
	c, err := New[T](opts...)
	if err != nil {
		return 0, err
	}
	return c.EncodeSeqTo(w, vs)
}

// Decode decodes an Object or Array blob into T
func Decode[T any](data []byte, opts ...Option) (Either[T], error) {
	c, err := New[T](opts...)
	if err != nil {
		return Either[T]{}, err
	}
	return c.Decode(data)
}

// DecodeObject decodes an Object blob into T
func DecodeObject[T any](data []byte, opts ...Option) (T, error) {
	c, err := New[T](opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.DecodeObject(data)
}

// DecodeArray decodes an Array blob into a []T
func DecodeArray[T any](data []byte, opts ...Option) ([]T, error) {
	c, err := New[T](opts...)
	if err != nil {
		return nil, err
	}
	return c.DecodeArray(data)
}

// DecodeReaderAt decodes size bytes of ra, reading chunks concurrently
func DecodeReaderAt[T any](ra io.ReaderAt, size int64, opts ...Option) (Either[T], error) {
	c, err := New[T](opts...)
	if err != nil {
		return Either[T]{}, err
	}
	return c.DecodeReaderAt(ra, size)
}

// DecodeStream decodes a blob read sequentially from r
func DecodeStream[T any](r io.Reader, opts ...Option) (Either[T], error) {
	c, err := New[T](opts...)
	if err != nil {
		return Either[T]{}, err
	}
	return c.DecodeStream(r)
}

// DecodeStreamObject decodes an Object blob read sequentially from r
func DecodeStreamObject[T any](r io.Reader, opts ...Option) (T, error) {
	c, err := New[T](opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.DecodeStreamObject(r)
}

// DecodeStreamArray decodes an Array blob read sequentially from r
func DecodeStreamArray[T any](r io.Reader, opts ...Option) ([]T, error) {
	c, err := New[T](opts...)
	if err != nil {
		return nil, err
	}
	return c.DecodeStreamArray(r)
}

// InspectHeader parses the header of a blob without a target type
func InspectHeader(data []byte, opts ...Option) (*Header, error) {
	o := newOptions(opts)
	h, _, err := parseBytes(data, o)
	return h, err
}

// ReadHeader parses a header from r, leaving r positioned at the payload
func ReadHeader(r io.Reader, opts ...Option) (*Header, error) {
	o := newOptions(opts)
	return readHeader(wire.NewReader(r, wire.Big, 1), o.NativeAddressLength)
}
