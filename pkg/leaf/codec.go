package leaf

import (
	"encoding"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/wire"
)

// capHint bounds up-front allocations driven by counts read off the wire
const capHint = 4096

// Encode writes v to w
func (l *Layout) Encode(w *wire.Writer, v reflect.Value) error {
	switch l.Kind {
	case KindBool:
		var b uint8
		if v.Bool() {
			b = 1
		}
		return encodeErr(w.Uint8(b))
	case KindInt8:
		return encodeErr(w.Uint8(uint8(v.Int())))
	case KindInt16:
		return encodeErr(w.Uint16(uint16(v.Int())))
	case KindInt32:
		return encodeErr(w.Uint32(uint32(v.Int())))
	case KindInt64:
		return encodeErr(w.Uint64(uint64(v.Int())))
	case KindUint8:
		return encodeErr(w.Uint8(uint8(v.Uint())))
	case KindUint16:
		return encodeErr(w.Uint16(uint16(v.Uint())))
	case KindUint32:
		return encodeErr(w.Uint32(uint32(v.Uint())))
	case KindUint64:
		return encodeErr(w.Uint64(v.Uint()))
	case KindFloat32:
		return encodeErr(w.Uint32(math.Float32bits(float32(v.Float()))))
	case KindFloat64:
		return encodeErr(w.Uint64(math.Float64bits(v.Float())))
	case KindComplex64:
		c := v.Complex()
		if err := w.Uint32(math.Float32bits(float32(real(c)))); err != nil {
			return encodeErr(err)
		}
		return encodeErr(w.Uint32(math.Float32bits(float32(imag(c)))))
	case KindComplex128:
		c := v.Complex()
		if err := w.Uint64(math.Float64bits(real(c))); err != nil {
			return encodeErr(err)
		}
		return encodeErr(w.Uint64(math.Float64bits(imag(c))))
	case KindString:
		return encodeErr(w.Text(v.String()))
	case KindBytes:
		return encodeErr(w.Sized(v.Bytes()))
	case KindBinary:
		p, err := marshal(v)
		if err != nil {
			return errors.Leaf(errors.PhaseEncode, nil, err)
		}
		return encodeErr(w.Sized(p))
	case KindPointer:
		if v.IsNil() {
			return encodeErr(w.Uint8(0))
		}
		if err := w.Uint8(1); err != nil {
			return encodeErr(err)
		}
		return prependPath(l.Elem.Encode(w, v.Elem()), "?")
	case KindSlice, KindArray:
		return l.encodeSeq(w, v)
	case KindMap:
		return l.encodeMap(w, v)
	case KindStruct:
		for _, f := range l.Fields {
			if err := f.Layout.Encode(w, v.Field(f.Index)); err != nil {
				return prependPath(err, f.Name)
			}
		}
		return nil
	}
	return errors.Unsupported(errors.PhaseEncode, nil, l.Type.String(), "cannot encode kind "+l.Kind.String())
}

func (l *Layout) encodeSeq(w *wire.Writer, v reflect.Value) error {
	n := v.Len()
	if err := w.Address(uint64(n)); err != nil {
		return encodeErr(err)
	}
	for i := 0; i < n; i++ {
		if err := l.Elem.Encode(w, v.Index(i)); err != nil {
			return prependPath(err, indexSegment(i))
		}
	}
	return nil
}

func (l *Layout) encodeMap(w *wire.Writer, v reflect.Value) error {
	keys := v.MapKeys()
	sortKeys(keys)
	if err := w.Address(uint64(len(keys))); err != nil {
		return encodeErr(err)
	}
	for i, k := range keys {
		if err := l.Key.Encode(w, k); err != nil {
			return prependPath(prependPath(err, "key"), indexSegment(i))
		}
		if err := l.Elem.Encode(w, v.MapIndex(k)); err != nil {
			return prependPath(prependPath(err, "value"), indexSegment(i))
		}
	}
	return nil
}

// sortKeys orders map keys of ordered kinds so equal maps encode to equal bytes.
// Keys of other kinds keep map iteration order.
func sortKeys(keys []reflect.Value) {
	if len(keys) < 2 {
		return
	}
	var less func(a, b reflect.Value) bool
	switch keys[0].Kind() {
	case reflect.String:
		less = func(a, b reflect.Value) bool { return a.String() < b.String() }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		less = func(a, b reflect.Value) bool { return a.Int() < b.Int() }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		less = func(a, b reflect.Value) bool { return a.Uint() < b.Uint() }
	case reflect.Float32, reflect.Float64:
		less = func(a, b reflect.Value) bool { return a.Float() < b.Float() }
	case reflect.Bool:
		less = func(a, b reflect.Value) bool { return !a.Bool() && b.Bool() }
	default:
		return
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
}

// Decode reads a value from r into v, which must be settable
func (l *Layout) Decode(r *wire.Reader, v reflect.Value) error {
	switch l.Kind {
	case KindBool:
		b, err := r.Uint8()
		if err != nil {
			return decodeErr(err)
		}
		if b > 1 {
			return errors.Leaf(errors.PhaseDecode, nil, fmt.Errorf("invalid bool byte 0x%02x", b))
		}
		v.SetBool(b == 1)
	case KindInt8:
		u, err := r.Uint8()
		if err != nil {
			return decodeErr(err)
		}
		v.SetInt(int64(int8(u)))
	case KindInt16:
		u, err := r.Uint16()
		if err != nil {
			return decodeErr(err)
		}
		v.SetInt(int64(int16(u)))
	case KindInt32:
		u, err := r.Uint32()
		if err != nil {
			return decodeErr(err)
		}
		v.SetInt(int64(int32(u)))
	case KindInt64:
		u, err := r.Uint64()
		if err != nil {
			return decodeErr(err)
		}
		if v.OverflowInt(int64(u)) {
			return errors.Leaf(errors.PhaseDecode, nil, fmt.Errorf("value %d overflows %s", int64(u), v.Type()))
		}
		v.SetInt(int64(u))
	case KindUint8:
		u, err := r.Uint8()
		if err != nil {
			return decodeErr(err)
		}
		v.SetUint(uint64(u))
	case KindUint16:
		u, err := r.Uint16()
		if err != nil {
			return decodeErr(err)
		}
		v.SetUint(uint64(u))
	case KindUint32:
		u, err := r.Uint32()
		if err != nil {
			return decodeErr(err)
		}
		v.SetUint(uint64(u))
	case KindUint64:
		u, err := r.Uint64()
		if err != nil {
			return decodeErr(err)
		}
		if v.OverflowUint(u) {
			return errors.Leaf(errors.PhaseDecode, nil, fmt.Errorf("value %d overflows %s", u, v.Type()))
		}
		v.SetUint(u)
	case KindFloat32:
		u, err := r.Uint32()
		if err != nil {
			return decodeErr(err)
		}
		v.SetFloat(float64(math.Float32frombits(u)))
	case KindFloat64:
		u, err := r.Uint64()
		if err != nil {
			return decodeErr(err)
		}
		v.SetFloat(math.Float64frombits(u))
	case KindComplex64:
		re, err := r.Uint32()
		if err != nil {
			return decodeErr(err)
		}
		im, err := r.Uint32()
		if err != nil {
			return decodeErr(err)
		}
		v.SetComplex(complex(float64(math.Float32frombits(re)), float64(math.Float32frombits(im))))
	case KindComplex128:
		re, err := r.Uint64()
		if err != nil {
			return decodeErr(err)
		}
		im, err := r.Uint64()
		if err != nil {
			return decodeErr(err)
		}
		v.SetComplex(complex(math.Float64frombits(re), math.Float64frombits(im)))
	case KindString:
		s, err := r.Text()
		if err != nil {
			return decodeErr(err)
		}
		v.SetString(s)
	case KindBytes:
		p, err := r.Sized()
		if err != nil {
			return decodeErr(err)
		}
		if len(p) == 0 {
			v.Set(reflect.Zero(l.Type))
			return nil
		}
		v.SetBytes(p)
	case KindBinary:
		p, err := r.Sized()
		if err != nil {
			return decodeErr(err)
		}
		ptr := reflect.New(l.Type)
		if err := ptr.Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(p); err != nil {
			return errors.Leaf(errors.PhaseDecode, nil, err)
		}
		v.Set(ptr.Elem())
	case KindPointer:
		present, err := r.Uint8()
		if err != nil {
			return decodeErr(err)
		}
		switch present {
		case 0:
			v.Set(reflect.Zero(l.Type))
		case 1:
			ptr := reflect.New(l.Type.Elem())
			if err := l.Elem.Decode(r, ptr.Elem()); err != nil {
				return prependPath(err, "?")
			}
			v.Set(ptr)
		default:
			return errors.Leaf(errors.PhaseDecode, nil, fmt.Errorf("invalid presence byte 0x%02x", present))
		}
	case KindSlice:
		return l.decodeSlice(r, v)
	case KindArray:
		return l.decodeArray(r, v)
	case KindMap:
		return l.decodeMap(r, v)
	case KindStruct:
		for _, f := range l.Fields {
			target := v.Field(f.Index)
			if !f.Writable {
				target = reflect.New(f.Layout.Type).Elem()
			}
			if err := f.Layout.Decode(r, target); err != nil {
				return prependPath(err, f.Name)
			}
		}
	default:
		return errors.Unsupported(errors.PhaseDecode, nil, l.Type.String(), "cannot decode kind "+l.Kind.String())
	}
	return nil
}

func (l *Layout) decodeSlice(r *wire.Reader, v reflect.Value) error {
	n, err := r.Count(int(l.Elem.MinSize(r.Width())))
	if err != nil {
		return decodeErr(err)
	}
	if n == 0 {
		v.Set(reflect.Zero(l.Type))
		return nil
	}
	// zero-width elements consume no bytes, so n is not bounded by the input
	if l.Elem.MinSize(r.Width()) == 0 {
		if n > math.MaxInt {
			return malformedCount(n, l.Type)
		}
		v.Set(reflect.MakeSlice(l.Type, int(n), int(n)))
		return nil
	}
	s := reflect.MakeSlice(l.Type, 0, int(min(n, capHint)))
	for i := uint64(0); i < n; i++ {
		s = reflect.Append(s, reflect.Zero(l.Elem.Type))
		if err := l.Elem.Decode(r, s.Index(int(i))); err != nil {
			return prependPath(err, indexSegment(int(i)))
		}
	}
	v.Set(s)
	return nil
}

func (l *Layout) decodeArray(r *wire.Reader, v reflect.Value) error {
	n, err := r.Address()
	if err != nil {
		return decodeErr(err)
	}
	if n != uint64(l.Len) {
		return errors.Leaf(errors.PhaseDecode, nil, fmt.Errorf("array count %d does not match length %d of %s", n, l.Len, l.Type))
	}
	for i := 0; i < l.Len; i++ {
		if err := l.Elem.Decode(r, v.Index(i)); err != nil {
			return prependPath(err, indexSegment(i))
		}
	}
	return nil
}

func (l *Layout) decodeMap(r *wire.Reader, v reflect.Value) error {
	n, err := r.Count(int(l.Key.MinSize(r.Width()) + l.Elem.MinSize(r.Width())))
	if err != nil {
		return decodeErr(err)
	}
	if n == 0 {
		v.Set(reflect.Zero(l.Type))
		return nil
	}
	// a map of zero-width keys holds at most one entry
	if n > 1 && l.Key.MinSize(r.Width()) == 0 && l.Elem.MinSize(r.Width()) == 0 {
		return malformedCount(n, l.Type)
	}
	m := reflect.MakeMapWithSize(l.Type, int(min(n, capHint)))
	for i := uint64(0); i < n; i++ {
		k := reflect.New(l.Key.Type).Elem()
		if err := l.Key.Decode(r, k); err != nil {
			return prependPath(prependPath(err, "key"), indexSegment(int(i)))
		}
		e := reflect.New(l.Elem.Type).Elem()
		if err := l.Elem.Decode(r, e); err != nil {
			return prependPath(prependPath(err, "value"), indexSegment(int(i)))
		}
		m.SetMapIndex(k, e)
	}
	v.Set(m)
	return nil
}

func malformedCount(n uint64, t reflect.Type) error {
	return errors.New(errors.PhaseDecode, errors.KindMalformedPayload).
		Detail("count %d is not valid for zero-width %s", n, t).Build()
}

func encodeErr(err error) error {
	if err == nil {
		return nil
	}
	var oe *wire.OverflowError
	if stderrors.As(err, &oe) {
		return errors.Overflow(errors.PhaseEncode, oe.Value, oe.Width)
	}
	return errors.Leaf(errors.PhaseEncode, nil, err)
}

func decodeErr(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.New(errors.PhaseDecode, errors.KindTruncated).Cause(err).Build()
	}
	var oe *wire.OverflowError
	if stderrors.As(err, &oe) {
		return errors.Overflow(errors.PhaseDecode, oe.Value, oe.Width)
	}
	return errors.Leaf(errors.PhaseDecode, nil, err)
}
