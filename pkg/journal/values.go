package journal

import (
	"fmt"

	"github.com/ssargent/shapebin/pkg/codec"
)

// AppendValue encodes v as an Object blob and appends it
func AppendValue[T any](w *Writer, v T, opts ...codec.Option) (int64, error) {
	blob, err := codec.Encode(v, opts...)
	if err != nil {
		return 0, err
	}
	return w.Append(blob)
}

// AppendSeq encodes vs as an Array blob and appends it
func AppendSeq[T any](w *Writer, vs []T, opts ...codec.Option) (int64, error) {
	blob, err := codec.EncodeSeq(vs, opts...)
	if err != nil {
		return 0, err
	}
	return w.Append(blob)
}

// ReadValues decodes every frame of the journal at path into T. Array blobs
// contribute all of their elements in order.
func ReadValues[T any](path string, opts ...codec.Option) ([]T, error) {
	r, err := NewReader(ReaderConfig{FilePath: path})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	c, err := codec.New[T](opts...)
	if err != nil {
		return nil, err
	}

	var out []T
	it := r.Iterator()
	for it.Next() {
		decoded, err := c.Decode(it.Frame().Payload)
		if err != nil {
			return nil, fmt.Errorf("journal: blob at offset %d: %w", it.Offset(), err)
		}
		if v, ok := decoded.Object(); ok {
			out = append(out, v)
		} else if vs, ok := decoded.Array(); ok {
			out = append(out, vs...)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
