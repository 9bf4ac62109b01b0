// Package codec provides self-describing binary serialization of Go values.
//
// A blob is a header followed by a payload. The header describes the shape of
// the encoded type well enough that a reader can check compatibility with its
// own type before touching the payload, and it records how the payload was
// split so the reader can decode the four chunks in parallel.
//
// # Header Format
//
// All multi-byte integers use the header's byte order; "A" denotes an integer
// of the header's address length.
//
//	[Flag(1)][TotalSize(A)]
//	[4(A)][ItemTable(4*A)][4(A)][ByteTable(4*A)]
//	[SubHeaderCount(A)]{[Tag(1)][ID(8)][FieldMap]}...
//	[FieldMap]
//
// The flag byte packs tag<<6 | endian<<5 | log2(address length). A field map
// is a count followed by (name, sub-header index) pairs; names are
// address-prefixed byte strings. Sub-headers only reference earlier
// sub-headers, so the graph is a DAG in dependency order.
//
// # Shapes
//
// Structs are described as Object with one entry per field. Slices and arrays
// are Array with a single "[]" entry, maps are Array with "key" and "value"
// entries and pointers are Array with a single "?" entry. Everything else is a
// Value: scalars, strings and types implementing encoding.BinaryMarshaler.
//
// # Usage
//
//	type Point struct {
//	    X, Y float64
//	}
//
//	data, err := codec.Encode(Point{X: 1, Y: 2})
//	if err != nil {
//	    return err
//	}
//
//	p, err := codec.DecodeObject[Point](data)
//	if err != nil {
//	    return err // errors.ErrSchemaMismatch if the shapes differ
//	}
//
// Sequences use EncodeSeq and DecodeArray. Decode accepts either root and
// returns an Either.
//
// # Compatibility
//
// Decoding checks field names, shape tags and scalar types recursively. Field
// order may differ between writer and reader: the payload is read in the
// writer's order. Go type names of structs, slices and maps are not compared,
// so an identically shaped type from another package decodes the same blob.
//
// # Thread Safety
//
// Codec values are safe for concurrent use. Encoding to a byte slice and
// decoding from a byte slice or io.ReaderAt run the four chunks on separate
// goroutines unless WithConcurrency(false) is given.
package codec
