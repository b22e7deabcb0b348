package frame

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
)

// encodingVersion is bumped whenever wireFrame changes incompatibly.
const encodingVersion = 1

// ContentType identifies an encoded frame on the wire.
const ContentType = "application/x-datahub-frame"

type wireFrame struct {
	Version int          `cbor:"v"`
	Index   wireColumn   `cbor:"i"`
	Columns []wireColumn `cbor:"c"`
}

type wireColumn struct {
	Name    string    `cbor:"n"`
	Kind    Kind      `cbor:"k"`
	Ints    []int64   `cbor:"ints,omitempty"`
	Floats  []float64 `cbor:"floats,omitempty"`
	Strings []string  `cbor:"strings,omitempty"`
	Bools   []bool    `cbor:"bools,omitempty"`
	Times   []int64   `cbor:"times,omitempty"` // unix nanoseconds, UTC
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Encode serializes f into its compressed byte form. The output is
// deterministic for equal frames.
func Encode(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrNilFrame
	}
	w := wireFrame{Version: encodingVersion, Columns: make([]wireColumn, len(f.Columns))}
	idx := f.Index
	if idx == nil {
		idx = RangeIndex(0)
	}
	w.Index = toWire(idx)
	for i, c := range f.Columns {
		w.Columns[i] = toWire(c)
	}

	raw, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("frame: encode: %w", err)
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("frame: compress: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("frame: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("frame: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a payload produced by Encode.
func Decode(payload []byte) (*Frame, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var w wireFrame
	if err := cbor.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if w.Version != encodingVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, w.Version)
	}

	f := &Frame{Index: fromWire(w.Index)}
	for _, wc := range w.Columns {
		col := fromWire(wc)
		if col.Len() != f.Index.Len() {
			return nil, fmt.Errorf("%w: column %q has %d rows, index has %d", ErrCorrupt, col.Name, col.Len(), f.Index.Len())
		}
		f.Columns = append(f.Columns, col)
	}
	return f, nil
}

func toWire(c *Column) wireColumn {
	wc := wireColumn{
		Name:    c.Name,
		Kind:    c.Kind,
		Ints:    c.Ints,
		Floats:  c.Floats,
		Strings: c.Strings,
		Bools:   c.Bools,
	}
	if c.Kind == KindTime {
		wc.Times = make([]int64, len(c.Times))
		for i, t := range c.Times {
			wc.Times[i] = t.UnixNano()
		}
	}
	return wc
}

func fromWire(wc wireColumn) *Column {
	c := &Column{Name: wc.Name, Kind: wc.Kind}
	switch wc.Kind {
	case KindInt:
		c.Ints = nonNil(wc.Ints)
	case KindFloat:
		c.Floats = nonNil(wc.Floats)
	case KindString:
		c.Strings = nonNil(wc.Strings)
	case KindBool:
		c.Bools = nonNil(wc.Bools)
	case KindTime:
		c.Times = make([]time.Time, len(wc.Times))
		for i, ns := range wc.Times {
			c.Times[i] = time.Unix(0, ns).UTC()
		}
	}
	return c
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
