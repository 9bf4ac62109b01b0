package schema

import (
	"reflect"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/leaf"
	"github.com/ssargent/shapebin/pkg/meta"
)

type Point struct {
	X float64
	Y float64
}

type Line struct {
	From  Point
	To    Point
	Label string
}

type Shape struct {
	Points []Point
	Origin *Point
	Index  map[string]Point
}

// PointAlias has the shape of Point under another Go type name.
type PointAlias struct {
	Y float64
	X float64
}

type Point3 struct {
	X float64
	Y float64
	Z float64
}

type IntPoint struct {
	X int
	Y int64
}

func analyze(t *testing.T, v any, names meta.NameTransform) ([]SubHeader, Fields) {
	t.Helper()
	l, err := leaf.Compile(reflect.TypeOf(v), names)
	require.NoError(t, err)
	subs, fields, err := Analyze(l)
	require.NoError(t, err)
	require.NoError(t, Validate(subs, fields))
	return subs, fields
}

func TestAnalyzePoint(t *testing.T) {
	subs, fields := analyze(t, Point{}, nil)

	require.Len(t, subs, 1)
	assert.Equal(t, TagValue, subs[0].Tag)
	assert.Equal(t, xxhash.Sum64String("float64"), subs[0].ID)
	assert.Empty(t, subs[0].Fields)

	assert.Equal(t, Fields{{Name: "X", Index: 0}, {Name: "Y", Index: 0}}, fields)
}

func TestAnalyzeDeduplicates(t *testing.T) {
	subs, fields := analyze(t, Line{}, nil)

	// float64, Point, string
	require.Len(t, subs, 3)
	assert.Equal(t, TagValue, subs[0].Tag)
	assert.Equal(t, TagObject, subs[1].Tag)
	assert.Equal(t, Fields{{Name: "X", Index: 0}, {Name: "Y", Index: 0}}, subs[1].Fields)
	assert.Equal(t, TagValue, subs[2].Tag)

	assert.Equal(t, Fields{
		{Name: "From", Index: 1},
		{Name: "To", Index: 1},
		{Name: "Label", Index: 2},
	}, fields)

	seen := map[key]bool{}
	for _, s := range subs {
		k := key{id: s.ID, tag: s.Tag}
		assert.False(t, seen[k], "duplicate sub-header %v", k)
		seen[k] = true
	}
}

func TestAnalyzeArrayShapes(t *testing.T) {
	subs, fields := analyze(t, Shape{}, nil)

	points, ok := fields.Lookup("Points")
	require.True(t, ok)
	assert.Equal(t, TagArray, subs[points].Tag)
	assert.Equal(t, []string{ElemName}, subs[points].Fields.Names())

	origin, _ := fields.Lookup("Origin")
	assert.Equal(t, TagArray, subs[origin].Tag)
	assert.Equal(t, []string{OptionName}, subs[origin].Fields.Names())

	index, _ := fields.Lookup("Index")
	assert.Equal(t, TagArray, subs[index].Tag)
	assert.Equal(t, []string{KeyName, ValueName}, subs[index].Fields.Names())

	// Every reference points backwards
	for i, s := range subs {
		for _, e := range s.Fields {
			assert.Less(t, e.Index, uint64(i))
		}
	}
}

func TestAnalyzeScalarRoot(t *testing.T) {
	subs, fields := analyze(t, int32(0), nil)
	require.Len(t, subs, 1)
	assert.Equal(t, Fields{{Name: "", Index: 0}}, fields)
	assert.Equal(t, xxhash.Sum64String("int32"), subs[0].ID)
}

func TestTypeIDNormalisesInts(t *testing.T) {
	a, err := leaf.Compile(reflect.TypeOf(int(0)), nil)
	require.NoError(t, err)
	b, err := leaf.Compile(reflect.TypeOf(int64(0)), nil)
	require.NoError(t, err)
	assert.Equal(t, TypeID(a), TypeID(b))
}

func TestSame(t *testing.T) {
	wantSubs, want := analyze(t, Point{}, nil)

	t.Run("identical", func(t *testing.T) {
		gotSubs, got := analyze(t, Point{}, nil)
		assert.NoError(t, Same(wantSubs, want, gotSubs, got))
	})

	t.Run("reordered fields from another type", func(t *testing.T) {
		gotSubs, got := analyze(t, PointAlias{}, nil)
		assert.NoError(t, Same(wantSubs, want, gotSubs, got))
	})

	t.Run("extra field", func(t *testing.T) {
		gotSubs, got := analyze(t, Point3{}, nil)
		err := Same(wantSubs, want, gotSubs, got)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
		var e *errors.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, []string{"Z"}, e.Path)
	})

	t.Run("value type differs", func(t *testing.T) {
		gotSubs, got := analyze(t, IntPoint{}, nil)
		err := Same(wantSubs, want, gotSubs, got)
		var e *errors.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, errors.KindSchemaMismatch, e.Kind)
		assert.Equal(t, []string{"X"}, e.Path)
	})

	t.Run("name transform on one side", func(t *testing.T) {
		gotSubs, got := analyze(t, Point{}, meta.SnakeCase)
		assert.ErrorIs(t, Same(wantSubs, want, gotSubs, got), errors.ErrSchemaMismatch)
	})

	t.Run("nested path", func(t *testing.T) {
		lineSubs, line := analyze(t, Line{}, nil)
		type Point struct {
			X float64
			Y string
		}
		type Line struct {
			From  Point
			To    Point
			Label string
		}
		gotSubs, got := analyze(t, Line{}, nil)
		err := Same(lineSubs, line, gotSubs, got)
		var e *errors.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, []string{"From", "Y"}, e.Path)
	})
}

func TestValidate(t *testing.T) {
	valueID := xxhash.Sum64String("int64")

	testCases := []struct {
		name   string
		subs   []SubHeader
		fields Fields
	}{
		{
			name:   "forward reference",
			subs:   []SubHeader{{ID: 1, Tag: TagObject, Fields: Fields{{Name: "a", Index: 0}}}},
			fields: Fields{{Name: "root", Index: 0}},
		},
		{
			name:   "root beyond arena",
			subs:   []SubHeader{{ID: valueID, Tag: TagValue}},
			fields: Fields{{Name: "root", Index: 1}},
		},
		{
			name:   "value with fields",
			subs:   []SubHeader{{ID: valueID, Tag: TagValue}, {ID: valueID + 1, Tag: TagValue, Fields: Fields{{Name: "a", Index: 0}}}},
			fields: Fields{},
		},
		{
			name:   "duplicate id and tag",
			subs:   []SubHeader{{ID: valueID, Tag: TagValue}, {ID: valueID, Tag: TagValue}},
			fields: Fields{},
		},
		{
			name:   "invalid tag",
			subs:   []SubHeader{{ID: valueID, Tag: Tag(3)}},
			fields: Fields{},
		},
		{
			name:   "duplicate name",
			subs:   []SubHeader{{ID: valueID, Tag: TagValue}},
			fields: Fields{{Name: "a", Index: 0}, {Name: "a", Index: 0}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.subs, tc.fields)
			assert.ErrorIs(t, err, errors.ErrMalformedHeader)
		})
	}

	// Same id under different tags is allowed
	assert.NoError(t, Validate([]SubHeader{{ID: 7, Tag: TagValue}, {ID: 7, Tag: TagArray, Fields: Fields{{Name: ElemName, Index: 0}}}}, Fields{{Name: "a", Index: 1}}))
}
