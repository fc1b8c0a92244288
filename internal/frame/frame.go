// Package frame provides the columnar table passed between pipeline stages.
//
// A Frame always carries the station_id and recorded_at key columns plus an
// optional availability_target column. Every other column is named and is
// either numeric (float64, NaN = missing) or categorical (string, "" = missing).
//
// Column slices are shared between a frame and its clones. Stages must replace
// columns with SetFloats/SetStrings instead of writing into returned slices.
package frame

import (
	"fmt"
	"time"
)

// Key column names.
const (
	ColStationID  = "station_id"
	ColRecordedAt = "recorded_at"
	ColTarget     = "availability_target"
)

// Kind distinguishes numeric and categorical columns.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

// String returns the kind name.
func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// TargetMode describes the state of the availability_target column.
type TargetMode int

const (
	// TargetAbsent means the frame carries no target column.
	TargetAbsent TargetMode = iota
	// TargetLabeled means Target holds classes for rows where TargetValid is true.
	TargetLabeled
	// TargetPlaceholder means Target exists for shape compatibility only.
	// Its values are not forecastable labels.
	TargetPlaceholder
)

// Column is a named column of either kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64 // set when Kind == Numeric
	Strings []string  // set when Kind == Categorical
}

// Frame is a row-aligned table of named columns.
type Frame struct {
	StationID  []string
	RecordedAt []time.Time

	Target      []int
	TargetValid []bool
	TargetMode  TargetMode

	columns []*Column
	index   map[string]int
}

// New creates a frame with the given key columns. Slices are copied.
func New(stationIDs []string, recordedAt []time.Time) *Frame {
	if len(stationIDs) != len(recordedAt) {
		panic(fmt.Sprintf("frame: key length mismatch %d != %d", len(stationIDs), len(recordedAt)))
	}
	f := &Frame{
		StationID:  make([]string, len(stationIDs)),
		RecordedAt: make([]time.Time, len(recordedAt)),
		index:      make(map[string]int),
	}
	copy(f.StationID, stationIDs)
	copy(f.RecordedAt, recordedAt)
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.StationID)
}

// Names returns column names in insertion order. Key columns are not included.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// NamesOfKind returns names of columns of the given kind in insertion order.
func (f *Frame) NamesOfKind(k Kind) []string {
	var names []string
	for _, c := range f.columns {
		if c.Kind == k {
			names = append(names, c.Name)
		}
	}
	return names
}

// Columns returns the column headers in insertion order.
func (f *Frame) Columns() []*Column {
	out := make([]*Column, len(f.columns))
	copy(out, f.columns)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a column by name, nil if absent.
func (f *Frame) Column(name string) *Column {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.columns[i]
}

// Floats returns numeric values of a column.
func (f *Frame) Floats(name string) ([]float64, bool) {
	c := f.Column(name)
	if c == nil || c.Kind != Numeric {
		return nil, false
	}
	return c.Floats, true
}

// Strings returns values of a categorical column.
func (f *Frame) Strings(name string) ([]string, bool) {
	c := f.Column(name)
	if c == nil || c.Kind != Categorical {
		return nil, false
	}
	return c.Strings, true
}

// SetFloats adds or replaces a numeric column.
func (f *Frame) SetFloats(name string, values []float64) {
	f.checkLen(name, len(values))
	f.set(&Column{Name: name, Kind: Numeric, Floats: values})
}

// SetStrings adds or replaces a categorical column.
func (f *Frame) SetStrings(name string, values []string) {
	f.checkLen(name, len(values))
	f.set(&Column{Name: name, Kind: Categorical, Strings: values})
}

func (f *Frame) set(c *Column) {
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if i, ok := f.index[c.Name]; ok {
		f.columns[i] = c
		return
	}
	f.index[c.Name] = len(f.columns)
	f.columns = append(f.columns, c)
}

func (f *Frame) checkLen(name string, n int) {
	if n != f.Len() {
		panic(fmt.Sprintf("frame: column %q has %d rows, frame has %d", name, n, f.Len()))
	}
}

// Drop removes columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := f.columns[:0:0]
	for _, c := range f.columns {
		if _, ok := drop[c.Name]; !ok {
			kept = append(kept, c)
		}
	}
	f.columns = kept
	f.reindex()
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.columns))
	for i, c := range f.columns {
		f.index[c.Name] = i
	}
}

// Clone returns a frame with its own column list. Column data is shared.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		StationID:   f.StationID,
		RecordedAt:  f.RecordedAt,
		Target:      f.Target,
		TargetValid: f.TargetValid,
		TargetMode:  f.TargetMode,
		columns:     make([]*Column, len(f.columns)),
	}
	copy(out.columns, f.columns)
	out.reindex()
	return out
}

// Project returns a clone restricted to the named columns, in the given order.
// Names that do not exist are skipped and returned as missing.
func (f *Frame) Project(names []string) (*Frame, []string) {
	out := f.Clone()
	out.columns = make([]*Column, 0, len(names))
	var missing []string
	for _, n := range names {
		c := f.Column(n)
		if c == nil {
			missing = append(missing, n)
			continue
		}
		out.columns = append(out.columns, c)
	}
	out.reindex()
	return out, missing
}

// Take returns a new frame holding rows idx in the given order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{
		StationID:  make([]string, len(idx)),
		RecordedAt: make([]time.Time, len(idx)),
		TargetMode: f.TargetMode,
		columns:    make([]*Column, len(f.columns)),
	}
	for j, i := range idx {
		out.StationID[j] = f.StationID[i]
		out.RecordedAt[j] = f.RecordedAt[i]
	}
	if f.Target != nil {
		out.Target = make([]int, len(idx))
		for j, i := range idx {
			out.Target[j] = f.Target[i]
		}
	}
	if f.TargetValid != nil {
		out.TargetValid = make([]bool, len(idx))
		for j, i := range idx {
			out.TargetValid[j] = f.TargetValid[i]
		}
	}
	for k, c := range f.columns {
		nc := &Column{Name: c.Name, Kind: c.Kind}
		switch c.Kind {
		case Numeric:
			nc.Floats = make([]float64, len(idx))
			for j, i := range idx {
				nc.Floats[j] = c.Floats[i]
			}
		case Categorical:
			nc.Strings = make([]string, len(idx))
			for j, i := range idx {
				nc.Strings[j] = c.Strings[i]
			}
		}
		out.columns[k] = nc
	}
	out.reindex()
	return out
}

// SetTarget attaches labels. valid marks rows that carry a real label.
func (f *Frame) SetTarget(target []int, valid []bool) {
	f.checkLen(ColTarget, len(target))
	f.checkLen(ColTarget, len(valid))
	f.Target = target
	f.TargetValid = valid
	f.TargetMode = TargetLabeled
}

// SetPlaceholderTarget attaches a zero target that must not be used as labels.
func (f *Frame) SetPlaceholderTarget() {
	f.Target = make([]int, f.Len())
	f.TargetValid = nil
	f.TargetMode = TargetPlaceholder
}

// Labels returns the target when it holds real labels for every row.
func (f *Frame) Labels() ([]int, bool) {
	if f.TargetMode != TargetLabeled {
		return nil, false
	}
	for _, ok := range f.TargetValid {
		if !ok {
			return nil, false
		}
	}
	return f.Target, true
}

// Matrix returns row-major values for the named numeric columns.
func (f *Frame) Matrix(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, n := range names {
		v, ok := f.Floats(n)
		if !ok {
			return nil, fmt.Errorf("matrix column %q: not a numeric column", n)
		}
		cols[j] = v
	}
	rows := make([][]float64, f.Len())
	for i := range rows {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows, nil
}
