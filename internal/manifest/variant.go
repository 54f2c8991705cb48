// SPDX-License-Identifier: MIT

// Package manifest parses multi-variant master playlists into an immutable
// per-load variant table.
package manifest

import "fmt"

// Variant describes one selectable quality rendition of an asset.
type Variant struct {
	Index       int    // stable ordinal, position in the master playlist
	Height      int    // vertical resolution in pixels, 0 when unknown
	BitrateKbps int    // estimated peak bitrate in kbit/s, 0 when unknown
	Codecs      string // raw CODECS attribute, may be empty
	Name        string // NFC-normalized NAME attribute, may be empty
	URI         string // rendition playlist location as written in the manifest
}

// Label returns a human-readable quality label for dashboards.
func (v Variant) Label() string {
	if v.Height > 0 {
		return fmt.Sprintf("%dp", v.Height)
	}
	if v.BitrateKbps > 0 {
		return fmt.Sprintf("%d kbps", v.BitrateKbps)
	}
	return fmt.Sprintf("variant %d", v.Index)
}

// Table is the set of variants offered by one master manifest. A table is
// built once per manifest load and never mutated afterwards; a fresh load
// replaces it wholesale. Duplicate renditions are kept as written so that
// indices keep matching the decoder's level numbering.
type Table struct {
	variants []Variant
}

// NewTable builds a table from the given variants, preserving order.
// The slice is copied, so callers may reuse it.
func NewTable(variants []Variant) *Table {
	vs := make([]Variant, len(variants))
	copy(vs, variants)
	return &Table{variants: vs}
}

// Len returns the number of variants. Safe on a nil table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.variants)
}

// At returns the variant at index. The second return is false when index
// is out of range; At never panics.
func (t *Table) At(index int) (Variant, bool) {
	if t == nil || index < 0 || index >= len(t.variants) {
		return Variant{}, false
	}
	return t.variants[index], true
}

// Variants returns a copy of all variants in manifest order.
func (t *Table) Variants() []Variant {
	if t == nil {
		return nil
	}
	vs := make([]Variant, len(t.variants))
	copy(vs, t.variants)
	return vs
}

// ClampIndex maps an arbitrary requested index to the nearest valid one.
// Returns -1 when the table is empty.
func (t *Table) ClampIndex(index int) int {
	n := t.Len()
	if n == 0 {
		return -1
	}
	if index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}
