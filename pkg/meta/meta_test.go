package meta

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagged struct {
	ID       int64
	Name     string `shapebin:"display_name"`
	Version  int    `shapebin:",readonly"`
	Internal string `shapebin:"-"`
	hidden   bool
	Dash     string `shapebin:"-,"`
}

func TestFields(t *testing.T) {
	fields := Fields(reflect.TypeOf(tagged{}))
	require.Len(t, fields, 4)

	assert.Equal(t, "ID", fields[0].Name)
	assert.Equal(t, 0, fields[0].Index)
	assert.True(t, fields[0].Writable)

	assert.Equal(t, "display_name", fields[1].Name)
	assert.Equal(t, 1, fields[1].Index)

	assert.Equal(t, "Version", fields[2].Name)
	assert.False(t, fields[2].Writable)

	// "-," names the field "-" rather than skipping it
	assert.Equal(t, "-", fields[3].Name)
	assert.Equal(t, 5, fields[3].Index)
}

func TestFieldsCached(t *testing.T) {
	a := Fields(reflect.TypeOf(tagged{}))
	b := Fields(reflect.TypeOf(tagged{}))
	assert.Equal(t, reflect.ValueOf(a).Pointer(), reflect.ValueOf(b).Pointer())
}

func TestNameTransforms(t *testing.T) {
	testCases := []struct {
		name      string
		transform NameTransform
		in        string
		want      string
	}{
		{name: "nil", transform: nil, in: "FieldName", want: "FieldName"},
		{name: "identity", transform: Identity, in: "FieldName", want: "FieldName"},
		{name: "snake", transform: SnakeCase, in: "FieldName", want: "field_name"},
		{name: "screaming", transform: ScreamingSnakeCase, in: "FieldName", want: "FIELD_NAME"},
		{name: "kebab", transform: KebabCase, in: "FieldName", want: "field-name"},
		{name: "camel", transform: CamelCase, in: "FieldName", want: "fieldName"},
		{name: "pascal", transform: PascalCase, in: "field_name", want: "FieldName"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.transform.Apply(tc.in))
		})
	}
}

func TestParseNameTransform(t *testing.T) {
	tr, err := ParseNameTransform("")
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = ParseNameTransform("snake_case")
	require.NoError(t, err)
	assert.Equal(t, "user_id", tr.Apply("UserID"))

	_, err = ParseNameTransform("leet")
	assert.Error(t, err)
}
