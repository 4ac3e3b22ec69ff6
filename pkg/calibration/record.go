// Package calibration holds the per-scenario parameter records that drive a
// savings model, and the loader that reads them from tabular input.
package calibration

import (
	"fmt"
	"math"
	"sort"
)

// Record is one row of calibration input. Index is the zero-based position
// of the row in its source; Label is the scenario or item name. Records are
// treated as immutable once loaded.
type Record struct {
	Index  int
	Label  string
	Fields map[string]float64
}

// NewRecord builds a Record, copying fields so the caller's map can be reused.
func NewRecord(index int, label string, fields map[string]float64) Record {
	copied := make(map[string]float64, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Record{Index: index, Label: label, Fields: copied}
}

// ID returns a human-readable identity for error messages and logs.
func (r Record) ID() string {
	if r.Label != "" {
		return fmt.Sprintf("%s (row %d)", r.Label, r.Index+1)
	}
	return fmt.Sprintf("row %d", r.Index+1)
}

// Lookup returns the named field and whether it is present.
func (r Record) Lookup(name string) (float64, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Get returns the named field, failing when it is absent or not a finite
// number (unparseable cells are loaded as NaN).
func (r Record) Get(name string) (float64, error) {
	v, ok := r.Fields[name]
	if !ok {
		return 0, fmt.Errorf("missing field %q", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("field %q is not a finite number", name)
	}
	return v, nil
}

// Names returns the record's field names in sorted order.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of the record with one field replaced.
func (r Record) With(name string, value float64) Record {
	out := NewRecord(r.Index, r.Label, r.Fields)
	out.Fields[name] = value
	return out
}

// ApplyShared copies the named fields of the first record onto every other
// record. Parameters such as m_T describe the environment rather than the
// item, so only the first row's value is honoured. Names the first record
// lacks are ignored.
func ApplyShared(records []Record, names []string) []Record {
	if len(records) == 0 || len(names) == 0 {
		return records
	}
	out := make([]Record, len(records))
	out[0] = records[0]
	for i := 1; i < len(records); i++ {
		rec := records[i]
		for _, name := range names {
			if v, ok := records[0].Fields[name]; ok {
				rec = rec.With(name, v)
			}
		}
		out[i] = rec
	}
	return out
}
