// Package segment plans the fixed four-way split of a payload into chunks of
// roughly equal byte size, aligned on item boundaries.
package segment

import (
	"fmt"
)

// K is the number of chunks. It is part of the wire format.
const K = 4

// Table holds the start of each chunk as an item index and a byte offset
// relative to the payload. Entry 0 is always (0, 0).
type Table struct {
	Items [K]uint64
	Bytes [K]uint64
}

// Plan splits items of the given sizes into K chunks. Chunk j starts at the
// first item whose preceding bytes reach total*j/K.
func Plan(sizes []uint64) Table {
	var total uint64
	for _, s := range sizes {
		total += s
	}

	var t Table
	var item int
	var cumulative uint64
	for j := 1; j < K; j++ {
		target := total / K * uint64(j)
		target += total % K * uint64(j) / K
		for item < len(sizes) && cumulative < target {
			cumulative += sizes[item]
			item++
		}
		t.Items[j] = uint64(item)
		t.Bytes[j] = cumulative
	}
	return t
}

// Validate checks that both tables are non-decreasing, start at zero and stay
// within total bytes.
func (t Table) Validate(total uint64) error {
	if t.Items[0] != 0 || t.Bytes[0] != 0 {
		return fmt.Errorf("segment tables must start at 0, got item %d byte %d", t.Items[0], t.Bytes[0])
	}
	for j := 1; j < K; j++ {
		if t.Items[j] < t.Items[j-1] {
			return fmt.Errorf("item table decreases at %d: %d < %d", j, t.Items[j], t.Items[j-1])
		}
		if t.Bytes[j] < t.Bytes[j-1] {
			return fmt.Errorf("byte table decreases at %d: %d < %d", j, t.Bytes[j], t.Bytes[j-1])
		}
	}
	if t.Bytes[K-1] > total {
		return fmt.Errorf("byte table entry %d exceeds total size %d", t.Bytes[K-1], total)
	}
	return nil
}

// Range is the span of one chunk. ItemHi is -1 when the chunk runs to the
// end of an item sequence of unknown length.
type Range struct {
	ItemLo, ItemHi int64
	ByteLo, ByteHi uint64
}

// Len returns the byte length of the chunk
func (r Range) Len() uint64 { return r.ByteHi - r.ByteLo }

// Chunk returns chunk j. nItems is the item count, or -1 if unknown.
func (t Table) Chunk(j int, nItems int64, total uint64) Range {
	r := Range{
		ItemLo: int64(t.Items[j]),
		ByteLo: t.Bytes[j],
	}
	if j+1 < K {
		r.ItemHi = int64(t.Items[j+1])
		r.ByteHi = t.Bytes[j+1]
	} else {
		r.ItemHi = nItems
		r.ByteHi = total
	}
	return r
}

// Chunks returns all K chunk ranges
func (t Table) Chunks(nItems int64, total uint64) [K]Range {
	var out [K]Range
	for j := 0; j < K; j++ {
		out[j] = t.Chunk(j, nItems, total)
	}
	return out
}
