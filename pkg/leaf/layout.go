// Package leaf compiles Go types into layouts that size, encode and decode
// values in the shapebin payload format.
package leaf

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/meta"
)

// Kind classifies a layout node
type Kind uint8

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindComplex64
	KindComplex128
	KindString
	KindBinary // encoding.BinaryMarshaler / BinaryUnmarshaler pair
	KindBytes  // []byte fast path of KindSlice
	KindStruct
	KindSlice
	KindArray
	KindMap
	KindPointer
)

var kindNames = [...]string{
	KindBool:       "bool",
	KindInt8:       "int8",
	KindInt16:      "int16",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindUint8:      "uint8",
	KindUint16:     "uint16",
	KindUint32:     "uint32",
	KindUint64:     "uint64",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindComplex64:  "complex64",
	KindComplex128: "complex128",
	KindString:     "string",
	KindBinary:     "binary",
	KindBytes:      "bytes",
	KindStruct:     "struct",
	KindSlice:      "slice",
	KindArray:      "array",
	KindMap:        "map",
	KindPointer:    "pointer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// fixedWidths holds the encoded width of fixed-size scalar kinds
var fixedWidths = map[Kind]uint64{
	KindBool:       1,
	KindInt8:       1,
	KindUint8:      1,
	KindInt16:      2,
	KindUint16:     2,
	KindInt32:      4,
	KindUint32:     4,
	KindFloat32:    4,
	KindInt64:      8,
	KindUint64:     8,
	KindFloat64:    8,
	KindComplex64:  8,
	KindComplex128: 16,
}

// Layout is the compiled encoding plan for one Go type
type Layout struct {
	Type   reflect.Type
	Kind   Kind
	Fields []Field // KindStruct, in payload order
	Elem   *Layout // KindSlice, KindBytes, KindArray, KindPointer, map values
	Key    *Layout // KindMap
	Len    int     // KindArray
}

// Field is one struct member of a layout
type Field struct {
	Name     string // wire name, after the name transform
	Index    int
	Writable bool
	Layout   *Layout
}

// IsValue reports whether the layout is a scalar leaf
func (l *Layout) IsValue() bool {
	switch l.Kind {
	case KindStruct, KindSlice, KindBytes, KindArray, KindMap, KindPointer:
		return false
	default:
		return true
	}
}

// WireName returns the canonical name of a scalar layout. Named scalar types
// share the name of their underlying kind; marshaler types use their type name.
func (l *Layout) WireName() string {
	if l.Kind == KindBinary {
		return l.Type.String()
	}
	return l.Kind.String()
}

// Field looks up a struct field by wire name
func (l *Layout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// WithFieldOrder returns a copy of a struct layout whose fields follow names.
// names must be a permutation of the layout's field names.
func (l *Layout) WithFieldOrder(names []string) (*Layout, error) {
	if l.Kind != KindStruct {
		return nil, fmt.Errorf("%s is not a struct layout", l.Type)
	}
	if len(names) != len(l.Fields) {
		return nil, fmt.Errorf("%s has %d fields, order lists %d", l.Type, len(l.Fields), len(names))
	}
	fields := make([]Field, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		f, ok := l.Field(name)
		if !ok || seen[name] {
			return nil, fmt.Errorf("%s has no field %q", l.Type, name)
		}
		seen[name] = true
		fields = append(fields, f)
	}
	cp := *l
	cp.Fields = fields
	return &cp, nil
}

var (
	marshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
)

// Compile builds the layout of t. Field names are passed through names.
func Compile(t reflect.Type, names meta.NameTransform) (*Layout, error) {
	c := &compiler{
		names:  names,
		active: make(map[reflect.Type]bool),
	}
	return c.compile(t, nil)
}

type compiler struct {
	names  meta.NameTransform
	active map[reflect.Type]bool
}

func (c *compiler) compile(t reflect.Type, path []string) (*Layout, error) {
	if t.Kind() != reflect.Pointer && t.Implements(marshalerType) && reflect.PointerTo(t).Implements(unmarshalerType) {
		return &Layout{Type: t, Kind: KindBinary}, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Layout{Type: t, Kind: KindBool}, nil
	case reflect.Int8:
		return &Layout{Type: t, Kind: KindInt8}, nil
	case reflect.Int16:
		return &Layout{Type: t, Kind: KindInt16}, nil
	case reflect.Int32:
		return &Layout{Type: t, Kind: KindInt32}, nil
	case reflect.Int, reflect.Int64:
		return &Layout{Type: t, Kind: KindInt64}, nil
	case reflect.Uint8:
		return &Layout{Type: t, Kind: KindUint8}, nil
	case reflect.Uint16:
		return &Layout{Type: t, Kind: KindUint16}, nil
	case reflect.Uint32:
		return &Layout{Type: t, Kind: KindUint32}, nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return &Layout{Type: t, Kind: KindUint64}, nil
	case reflect.Float32:
		return &Layout{Type: t, Kind: KindFloat32}, nil
	case reflect.Float64:
		return &Layout{Type: t, Kind: KindFloat64}, nil
	case reflect.Complex64:
		return &Layout{Type: t, Kind: KindComplex64}, nil
	case reflect.Complex128:
		return &Layout{Type: t, Kind: KindComplex128}, nil
	case reflect.String:
		return &Layout{Type: t, Kind: KindString}, nil
	}

	if c.active[t] {
		return nil, errors.Unsupported(errors.PhaseAnalyze, path, t.String(), "recursive type")
	}
	c.active[t] = true
	defer delete(c.active, t)

	switch t.Kind() {
	case reflect.Struct:
		return c.compileStruct(t, path)
	case reflect.Slice:
		elem, err := c.compile(t.Elem(), append(path, "[]"))
		if err != nil {
			return nil, err
		}
		kind := KindSlice
		if elem.Kind == KindUint8 {
			kind = KindBytes
		}
		return &Layout{Type: t, Kind: kind, Elem: elem}, nil
	case reflect.Array:
		elem, err := c.compile(t.Elem(), append(path, "[]"))
		if err != nil {
			return nil, err
		}
		return &Layout{Type: t, Kind: KindArray, Elem: elem, Len: t.Len()}, nil
	case reflect.Map:
		key, err := c.compile(t.Key(), append(path, "key"))
		if err != nil {
			return nil, err
		}
		elem, err := c.compile(t.Elem(), append(path, "value"))
		if err != nil {
			return nil, err
		}
		return &Layout{Type: t, Kind: KindMap, Key: key, Elem: elem}, nil
	case reflect.Pointer:
		elem, err := c.compile(t.Elem(), append(path, "?"))
		if err != nil {
			return nil, err
		}
		return &Layout{Type: t, Kind: KindPointer, Elem: elem}, nil
	default:
		return nil, errors.Unsupported(errors.PhaseAnalyze, path, t.String(), "kind "+t.Kind().String()+" cannot be encoded")
	}
}

func (c *compiler) compileStruct(t reflect.Type, path []string) (*Layout, error) {
	fields := meta.Fields(t)
	l := &Layout{Type: t, Kind: KindStruct, Fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		name := c.names.Apply(f.Name)
		fl, err := c.compile(f.Type, append(path, name))
		if err != nil {
			return nil, err
		}
		l.Fields = append(l.Fields, Field{
			Name:     name,
			Index:    f.Index,
			Writable: f.Writable,
			Layout:   fl,
		})
	}
	return l, nil
}

// MinSize returns the smallest number of bytes any value of the layout
// occupies with the given address width.
func (l *Layout) MinSize(addr int) uint64 {
	if w, ok := fixedWidths[l.Kind]; ok {
		return w
	}
	switch l.Kind {
	case KindString, KindBinary, KindBytes, KindSlice, KindMap:
		return uint64(addr)
	case KindArray:
		return uint64(addr) + uint64(l.Len)*l.Elem.MinSize(addr)
	case KindPointer:
		return 1
	case KindStruct:
		var n uint64
		for _, f := range l.Fields {
			n += f.Layout.MinSize(addr)
		}
		return n
	}
	return 0
}

// fixed returns the encoded width when every value of the layout has the same size
func (l *Layout) fixed(addr int) (uint64, bool) {
	if w, ok := fixedWidths[l.Kind]; ok {
		return w, true
	}
	switch l.Kind {
	case KindArray:
		if w, ok := l.Elem.fixed(addr); ok {
			return uint64(addr) + uint64(l.Len)*w, true
		}
	case KindStruct:
		var n uint64
		for _, f := range l.Fields {
			w, ok := f.Layout.fixed(addr)
			if !ok {
				return 0, false
			}
			n += w
		}
		return n, true
	}
	return 0, false
}

// Size returns the encoded size of v with the given address width
func (l *Layout) Size(v reflect.Value, addr int) (uint64, error) {
	if w, ok := l.fixed(addr); ok {
		return w, nil
	}
	switch l.Kind {
	case KindString:
		return uint64(addr) + uint64(v.Len()), nil
	case KindBytes:
		return uint64(addr) + uint64(v.Len()), nil
	case KindBinary:
		p, err := marshal(v)
		if err != nil {
			return 0, errors.Leaf(errors.PhaseEncode, nil, err)
		}
		return uint64(addr) + uint64(len(p)), nil
	case KindPointer:
		if v.IsNil() {
			return 1, nil
		}
		n, err := l.Elem.Size(v.Elem(), addr)
		return 1 + n, err
	case KindSlice, KindArray:
		total := uint64(addr)
		if w, ok := l.Elem.fixed(addr); ok {
			return total + uint64(v.Len())*w, nil
		}
		for i := 0; i < v.Len(); i++ {
			n, err := l.Elem.Size(v.Index(i), addr)
			if err != nil {
				return 0, prependPath(err, indexSegment(i))
			}
			total += n
		}
		return total, nil
	case KindMap:
		total := uint64(addr)
		iter := v.MapRange()
		for iter.Next() {
			kn, err := l.Key.Size(iter.Key(), addr)
			if err != nil {
				return 0, prependPath(err, "key")
			}
			vn, err := l.Elem.Size(iter.Value(), addr)
			if err != nil {
				return 0, prependPath(err, "value")
			}
			total += kn + vn
		}
		return total, nil
	case KindStruct:
		var total uint64
		for _, f := range l.Fields {
			n, err := f.Layout.Size(v.Field(f.Index), addr)
			if err != nil {
				return 0, prependPath(err, f.Name)
			}
			total += n
		}
		return total, nil
	}
	return 0, errors.Unsupported(errors.PhaseEncode, nil, l.Type.String(), "no size for kind "+l.Kind.String())
}

func marshal(v reflect.Value) ([]byte, error) {
	return v.Interface().(encoding.BinaryMarshaler).MarshalBinary()
}

func indexSegment(i int) string {
	return fmt.Sprintf("[%d]", i)
}

// prependPath adds a leading path segment to a codec error
func prependPath(err error, segment string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append([]string{segment}, e.Path...)
		return e
	}
	return err
}
