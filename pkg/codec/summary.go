package codec

import (
	"fmt"

	"github.com/ssargent/shapebin/pkg/schema"
	"github.com/ssargent/shapebin/pkg/segment"
)

// Summary is a JSON-friendly view of a Header
type Summary struct {
	Root          string            `json:"root" yaml:"root"`
	Endian        string            `json:"endian" yaml:"endian"`
	AddressLength int               `json:"address_length" yaml:"address_length"`
	HeaderSize    int64             `json:"header_size" yaml:"header_size"`
	TotalSize     uint64            `json:"total_size" yaml:"total_size"`
	ItemSegments  [segment.K]uint64 `json:"item_segments" yaml:"item_segments"`
	ByteSegments  [segment.K]uint64 `json:"byte_segments" yaml:"byte_segments"`
	SubHeaders    []SubSummary      `json:"sub_headers" yaml:"sub_headers"`
	Fields        []EntryView       `json:"fields" yaml:"fields"`
}

// SubSummary describes one sub-header
type SubSummary struct {
	Index  int         `json:"index" yaml:"index"`
	Tag    string      `json:"tag" yaml:"tag"`
	ID     string      `json:"id" yaml:"id"`
	Fields []EntryView `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// EntryView is a field map entry
type EntryView struct {
	Name  string `json:"name" yaml:"name"`
	Index uint64 `json:"index" yaml:"index"`
}

// Summary flattens the header for display
func (h *Header) Summary() Summary {
	s := Summary{
		Root:          h.RootTag.String(),
		Endian:        h.Endian.String(),
		AddressLength: h.AddressLength,
		HeaderSize:    h.Len(),
		TotalSize:     h.TotalSize,
		ItemSegments:  h.Segments.Items,
		ByteSegments:  h.Segments.Bytes,
		SubHeaders:    make([]SubSummary, len(h.SubHeaders)),
		Fields:        entryViews(h.Fields),
	}
	for i, sub := range h.SubHeaders {
		s.SubHeaders[i] = SubSummary{
			Index:  i,
			Tag:    sub.Tag.String(),
			ID:     fmt.Sprintf("%016x", sub.ID),
			Fields: entryViews(sub.Fields),
		}
	}
	return s
}

func entryViews(fields schema.Fields) []EntryView {
	out := make([]EntryView, len(fields))
	for i, f := range fields {
		out[i] = EntryView{Name: f.Name, Index: f.Index}
	}
	return out
}
