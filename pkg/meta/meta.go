// Package meta is the reflection layer of shapebin: it lists the encodable
// fields of struct types in a stable order and applies field-name transforms.
package meta

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
)

// TagName is the struct tag consulted for field options
const TagName = "shapebin"

// Field describes one encodable struct field
type Field struct {
	Name     string // wire name before any NameTransform
	Index    int    // index into reflect.Type.Field
	Writable bool   // false for fields tagged readonly
	Type     reflect.Type
}

var fieldCache sync.Map // reflect.Type -> []Field

// Fields returns the encodable fields of struct type t in declaration order.
// Unexported fields and fields tagged `shapebin:"-"` are skipped.
func Fields(t reflect.Type) []Field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]Field)
	}

	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		name, opts := parseTag(tag)
		if name == "" {
			name = sf.Name
		}
		fields = append(fields, Field{
			Name:     name,
			Index:    i,
			Writable: !hasOption(opts, "readonly"),
			Type:     sf.Type,
		})
	}

	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]Field)
}

func parseTag(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

func hasOption(opts, option string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == option {
			return true
		}
	}
	return false
}

// NameTransform maps a Go field name to its wire name
type NameTransform func(string) string

// Apply runs the transform, treating nil as identity
func (t NameTransform) Apply(name string) string {
	if t == nil {
		return name
	}
	return t(name)
}

// Identity leaves names unchanged
func Identity(name string) string { return name }

// SnakeCase maps FieldName to field_name
func SnakeCase(name string) string { return strcase.ToSnake(name) }

// ScreamingSnakeCase maps FieldName to FIELD_NAME
func ScreamingSnakeCase(name string) string { return strcase.ToScreamingSnake(name) }

// KebabCase maps FieldName to field-name
func KebabCase(name string) string { return strcase.ToKebab(name) }

// CamelCase maps FieldName to fieldName
func CamelCase(name string) string { return strcase.ToLowerCamel(name) }

// PascalCase maps field_name to FieldName
func PascalCase(name string) string { return strcase.ToCamel(name) }

// ParseNameTransform resolves a configured casing name
func ParseNameTransform(name string) (NameTransform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "identity":
		return nil, nil
	case "snake", "snake_case":
		return SnakeCase, nil
	case "screaming_snake", "screaming_snake_case":
		return ScreamingSnakeCase, nil
	case "kebab", "kebab-case":
		return KebabCase, nil
	case "camel", "camelcase", "lower_camel":
		return CamelCase, nil
	case "pascal", "pascalcase":
		return PascalCase, nil
	default:
		return nil, fmt.Errorf("unknown name case %q", name)
	}
}
