package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Sentinel errors for frame construction and decoding.
var (
	ErrLengthMismatch = errors.New("frame: column length mismatch")
	ErrDuplicateName  = errors.New("frame: duplicate column name")
	ErrNilColumn      = errors.New("frame: column is nil")
	ErrNilFrame       = errors.New("frame: frame is nil")
	ErrCorrupt        = errors.New("frame: payload is corrupt")
)

// Kind is the element type of a column.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// TimeLayout is the text layout used when rendering time cells.
const TimeLayout = "2006-01-02 15:04:05"

// Column is a named, typed vector. Only the slice matching Kind is populated.
type Column struct {
	Name    string
	Kind    Kind
	Ints    []int64
	Floats  []float64
	Strings []string
	Bools   []bool
	Times   []time.Time
}

// Ints creates an integer column.
func Ints(name string, values ...int64) *Column {
	return &Column{Name: name, Kind: KindInt, Ints: values}
}

// Floats creates a float column.
func Floats(name string, values ...float64) *Column {
	return &Column{Name: name, Kind: KindFloat, Floats: values}
}

// Strings creates a string column.
func Strings(name string, values ...string) *Column {
	return &Column{Name: name, Kind: KindString, Strings: values}
}

// Bools creates a boolean column.
func Bools(name string, values ...bool) *Column {
	return &Column{Name: name, Kind: KindBool, Bools: values}
}

// Times creates a time column. Values are normalized to UTC.
func Times(name string, values ...time.Time) *Column {
	utc := make([]time.Time, len(values))
	for i, t := range values {
		utc[i] = t.UTC()
	}
	return &Column{Name: name, Kind: KindTime, Times: utc}
}

// RangeIndex returns the default index 0..n-1.
func RangeIndex(n int) *Column {
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i)
	}
	return Ints("", values...)
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindInt:
		return len(c.Ints)
	case KindFloat:
		return len(c.Floats)
	case KindString:
		return len(c.Strings)
	case KindBool:
		return len(c.Bools)
	case KindTime:
		return len(c.Times)
	default:
		return 0
	}
}

// Value returns cell i as a Go value.
func (c *Column) Value(i int) any {
	switch c.Kind {
	case KindInt:
		return c.Ints[i]
	case KindFloat:
		return c.Floats[i]
	case KindString:
		return c.Strings[i]
	case KindBool:
		return c.Bools[i]
	case KindTime:
		return c.Times[i]
	default:
		return nil
	}
}

// Format renders cell i as text.
func (c *Column) Format(i int) string {
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.Ints[i], 10)
	case KindFloat:
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	case KindString:
		return c.Strings[i]
	case KindBool:
		return strconv.FormatBool(c.Bools[i])
	case KindTime:
		return c.Times[i].UTC().Format(TimeLayout)
	default:
		return ""
	}
}

// Equal reports whether two columns hold the same name, kind and values.
// NaN compares equal to NaN.
func (c *Column) Equal(o *Column) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Name != o.Name || c.Kind != o.Kind || c.Len() != o.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		switch c.Kind {
		case KindInt:
			if c.Ints[i] != o.Ints[i] {
				return false
			}
		case KindFloat:
			a, b := c.Floats[i], o.Floats[i]
			if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		case KindString:
			if c.Strings[i] != o.Strings[i] {
				return false
			}
		case KindBool:
			if c.Bools[i] != o.Bools[i] {
				return false
			}
		case KindTime:
			if !c.Times[i].Equal(o.Times[i]) {
				return false
			}
		}
	}
	return true
}

// Frame is a tabular result: an index plus equally sized columns.
type Frame struct {
	Index   *Column
	Columns []*Column
}

// New builds a frame with a range index from the given columns.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{}
	for _, col := range cols {
		if err := f.Add(col); err != nil {
			return nil, err
		}
	}
	if f.Index == nil {
		f.Index = RangeIndex(0)
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Add appends a column. The first column fixes the row count and, when no
// index is set, installs a range index of that length.
func (f *Frame) Add(col *Column) error {
	if col == nil {
		return ErrNilColumn
	}
	if f.Index == nil || (len(f.Columns) == 0 && f.Index.Len() == 0) {
		f.Index = RangeIndex(col.Len())
	}
	if col.Len() != f.Index.Len() {
		return fmt.Errorf("%w: column %q has %d rows, frame has %d", ErrLengthMismatch, col.Name, col.Len(), f.Index.Len())
	}
	if _, ok := f.Column(col.Name); ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, col.Name)
	}
	f.Columns = append(f.Columns, col)
	return nil
}

// SetIndex replaces the index. Its length must match the row count.
func (f *Frame) SetIndex(idx *Column) error {
	if idx == nil {
		return ErrNilColumn
	}
	if len(f.Columns) > 0 && idx.Len() != f.Len() {
		return fmt.Errorf("%w: index has %d rows, frame has %d", ErrLengthMismatch, idx.Len(), f.Len())
	}
	f.Index = idx
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f.Index == nil {
		return 0
	}
	return f.Index.Len()
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Equal reports whether two frames have identical index, columns and values.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if !f.Index.Equal(o.Index) || len(f.Columns) != len(o.Columns) {
		return false
	}
	for i := range f.Columns {
		if !f.Columns[i].Equal(o.Columns[i]) {
			return false
		}
	}
	return true
}
