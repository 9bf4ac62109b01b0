// Package schema turns compiled layouts into the deduplicated SubHeader graph
// stored in shapebin headers, and compares such graphs for compatibility.
package schema

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/leaf"
)

// Tag is the shape of a described type
type Tag uint8

const (
	TagValue  Tag = 0
	TagObject Tag = 1
	TagArray  Tag = 2
)

func (t Tag) String() string {
	switch t {
	case TagValue:
		return "Value"
	case TagObject:
		return "Object"
	case TagArray:
		return "Array"
	default:
		return "Tag(" + strconv.Itoa(int(t)) + ")"
	}
}

// Valid reports whether t is one of the three defined tags
func (t Tag) Valid() bool {
	return t <= TagArray
}

// Entry names of Array-shaped descriptors
const (
	ElemName   = "[]"
	KeyName    = "key"
	ValueName  = "value"
	OptionName = "?"
)

// Entry maps a field name to the index of its SubHeader
type Entry struct {
	Name  string
	Index uint64
}

// Fields is an ordered field map. Order is payload order; lookups are by name.
type Fields []Entry

// Lookup returns the SubHeader index recorded for name
func (f Fields) Lookup(name string) (uint64, bool) {
	for _, e := range f {
		if e.Name == name {
			return e.Index, true
		}
	}
	return 0, false
}

// Names returns the entry names in order
func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i, e := range f {
		names[i] = e.Name
	}
	return names
}

// SubHeader describes one distinct type in a header
type SubHeader struct {
	ID     uint64
	Tag    Tag
	Fields Fields
}

// TagOf returns the tag a layout is described with
func TagOf(l *leaf.Layout) Tag {
	switch {
	case l.IsValue():
		return TagValue
	case l.Kind == leaf.KindStruct:
		return TagObject
	default:
		return TagArray
	}
}

// TypeID returns the identity hash of a layout
func TypeID(l *leaf.Layout) uint64 {
	if l.IsValue() {
		return xxhash.Sum64String(l.WireName())
	}
	return xxhash.Sum64String(l.Type.String())
}

type child struct {
	name   string
	layout *leaf.Layout
}

func children(l *leaf.Layout) []child {
	switch l.Kind {
	case leaf.KindStruct:
		out := make([]child, len(l.Fields))
		for i, f := range l.Fields {
			out[i] = child{name: f.Name, layout: f.Layout}
		}
		return out
	case leaf.KindSlice, leaf.KindBytes, leaf.KindArray:
		return []child{{name: ElemName, layout: l.Elem}}
	case leaf.KindMap:
		return []child{{name: KeyName, layout: l.Key}, {name: ValueName, layout: l.Elem}}
	case leaf.KindPointer:
		return []child{{name: OptionName, layout: l.Elem}}
	default:
		return nil
	}
}

type key struct {
	id  uint64
	tag Tag
}

type arena struct {
	subs  []SubHeader
	index map[key]uint64
	types map[uint64]reflect.Type
}

func (a *arena) add(l *leaf.Layout, path []string) (uint64, error) {
	k := key{id: TypeID(l), tag: TagOf(l)}
	if i, ok := a.index[k]; ok {
		if k.tag != TagValue && a.types[i] != l.Type {
			return 0, errors.Unsupported(errors.PhaseAnalyze, path, l.Type.String(),
				fmt.Sprintf("type identity collides with %s", a.types[i]))
		}
		return i, nil
	}

	kids := children(l)
	fields := make(Fields, 0, len(kids))
	for _, c := range kids {
		idx, err := a.add(c.layout, append(path, c.name))
		if err != nil {
			return 0, err
		}
		fields = append(fields, Entry{Name: c.name, Index: idx})
	}

	i := uint64(len(a.subs))
	a.subs = append(a.subs, SubHeader{ID: k.id, Tag: k.tag, Fields: fields})
	a.index[k] = i
	a.types[i] = l.Type
	return i, nil
}

// Analyze builds the SubHeader arena and root field map of a layout. Struct
// layouts contribute one root entry per field; any other layout contributes a
// single entry with an empty name.
func Analyze(l *leaf.Layout) ([]SubHeader, Fields, error) {
	a := &arena{
		index: make(map[key]uint64),
		types: make(map[uint64]reflect.Type),
	}

	var roots []child
	if l.Kind == leaf.KindStruct {
		roots = children(l)
	} else {
		roots = []child{{name: "", layout: l}}
	}

	fields := make(Fields, 0, len(roots))
	for _, c := range roots {
		idx, err := a.add(c.layout, []string{c.name})
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, Entry{Name: c.name, Index: idx})
	}
	return a.subs, fields, nil
}

// Validate checks the structural invariants of a parsed SubHeader graph
func Validate(subs []SubHeader, fields Fields) error {
	seen := make(map[key]int, len(subs))
	for i, s := range subs {
		if !s.Tag.Valid() {
			return errors.Malformed("sub-header %d has invalid tag %d", i, uint8(s.Tag))
		}
		if s.Tag == TagValue && len(s.Fields) > 0 {
			return errors.Malformed("value sub-header %d has %d fields", i, len(s.Fields))
		}
		k := key{id: s.ID, tag: s.Tag}
		if j, ok := seen[k]; ok {
			return errors.Malformed("sub-headers %d and %d share id %016x and tag %s", j, i, s.ID, s.Tag)
		}
		seen[k] = i
		if err := validateFields(s.Fields, uint64(i), fmt.Sprintf("sub-header %d", i)); err != nil {
			return err
		}
	}
	return validateFields(fields, uint64(len(subs)), "root")
}

func validateFields(fields Fields, limit uint64, owner string) error {
	names := make(map[string]bool, len(fields))
	for _, e := range fields {
		if e.Index >= limit {
			return errors.Malformed("%s field %q references index %d, limit %d", owner, e.Name, e.Index, limit)
		}
		if names[e.Name] {
			return errors.Malformed("%s has duplicate field %q", owner, e.Name)
		}
		names[e.Name] = true
	}
	return nil
}

// Same reports whether got describes the same shape as want. Names are
// compared as sets, tags must agree and Value descriptors must share their
// ID. Object and Array IDs are not compared. The returned error is a
// SchemaMismatch carrying the path of the first difference.
func Same(wantSubs []SubHeader, want Fields, gotSubs []SubHeader, got Fields) error {
	c := &comparer{
		want: wantSubs,
		got:  gotSubs,
		done: make(map[[2]uint64]bool),
	}
	return c.fields(want, got, nil)
}

type comparer struct {
	want, got []SubHeader
	done      map[[2]uint64]bool
}

func (c *comparer) fields(want, got Fields, path []string) error {
	for _, w := range want {
		g, ok := got.Lookup(w.Name)
		if !ok {
			return errors.SchemaMismatch(appendPath(path, w.Name), "", "field missing from header")
		}
		if err := c.sub(w.Index, g, appendPath(path, w.Name)); err != nil {
			return err
		}
	}
	for _, g := range got {
		if _, ok := want.Lookup(g.Name); !ok {
			return errors.SchemaMismatch(appendPath(path, g.Name), "", "header has field unknown to the target type")
		}
	}
	return nil
}

func (c *comparer) sub(wi, gi uint64, path []string) error {
	pair := [2]uint64{wi, gi}
	if c.done[pair] {
		return nil
	}
	if wi >= uint64(len(c.want)) || gi >= uint64(len(c.got)) {
		return errors.SchemaMismatch(path, "", "dangling sub-header reference")
	}
	w, g := c.want[wi], c.got[gi]
	if w.Tag != g.Tag {
		return errors.SchemaMismatch(path, "", fmt.Sprintf("tag %s, header has %s", w.Tag, g.Tag))
	}
	if w.Tag == TagValue && w.ID != g.ID {
		return errors.SchemaMismatch(path, "", fmt.Sprintf("value id %016x, header has %016x", w.ID, g.ID))
	}
	if err := c.fields(w.Fields, g.Fields, path); err != nil {
		return err
	}
	c.done[pair] = true
	return nil
}

func appendPath(path []string, name string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, name)
}
