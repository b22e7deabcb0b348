package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/datahub/frame"
)

// renderJSON writes the column-oriented form {"col": {"<index>": value}}.
// Keys are emitted in frame order, which encoding/json maps would not keep.
func renderJSON(f *frame.Frame) ([]byte, error) {
	keys := make([][]byte, f.Len())
	for i := range keys {
		s, _ := text(f.Index, i)
		k, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for ci, c := range f.Columns {
		if ci > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteString(":{")
		for row := 0; row < f.Len(); row++ {
			if row > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[row])
			buf.WriteByte(':')
			if err := appendJSONValue(&buf, c, row); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func appendJSONValue(buf *bytes.Buffer, c *frame.Column, i int) error {
	switch c.Kind {
	case frame.KindInt:
		buf.WriteString(strconv.FormatInt(c.Ints[i], 10))
	case frame.KindFloat:
		v := c.Floats[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
		} else {
			buf.WriteString(formatFloat(v))
		}
	case frame.KindBool:
		buf.WriteString(strconv.FormatBool(c.Bools[i]))
	case frame.KindTime:
		b, err := json.Marshal(c.Times[i].UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		buf.Write(b)
	default:
		b, err := json.Marshal(c.Format(i))
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func parseJSON(body []byte) (*frame.Frame, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object of columns", ErrMalformed)
	}

	f := &frame.Frame{}
	var keys []string
	var perr error
	first := true
	root.ForEach(func(name, col gjson.Result) bool {
		if !col.IsObject() {
			perr = fmt.Errorf("%w: column %q is not an object", ErrMalformed, name.String())
			return false
		}
		var ks []string
		var vals []gjson.Result
		col.ForEach(func(k, v gjson.Result) bool {
			ks = append(ks, k.String())
			vals = append(vals, v)
			return true
		})
		if first {
			keys, first = ks, false
		} else if !slices.Equal(keys, ks) {
			perr = fmt.Errorf("%w: column %q has a different index", ErrMalformed, name.String())
			return false
		}
		if err := f.Add(jsonColumn(name.String(), vals)); err != nil {
			perr = err
			return false
		}
		return true
	})
	if perr != nil {
		return nil, perr
	}
	if err := f.SetIndex(inferIndex("", keys)); err != nil {
		return nil, err
	}
	return f, nil
}

// jsonColumn picks a column kind from the JSON value types.
func jsonColumn(name string, vals []gjson.Result) *frame.Column {
	if len(vals) == 0 {
		return frame.Strings(name)
	}

	var numbers, nulls, bools, strs int
	integral := true
	for _, v := range vals {
		switch v.Type {
		case gjson.Number:
			numbers++
			if strings.ContainsAny(v.Raw, ".eE") {
				integral = false
			}
		case gjson.Null:
			nulls++
		case gjson.True, gjson.False:
			bools++
		case gjson.String:
			strs++
		}
	}

	switch {
	case numbers == len(vals) && integral:
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i] = v.Int()
		}
		return frame.Ints(name, out...)
	case numbers+nulls == len(vals):
		out := make([]float64, len(vals))
		for i, v := range vals {
			if v.Type == gjson.Null {
				out[i] = math.NaN()
				continue
			}
			out[i] = v.Float()
		}
		return frame.Floats(name, out...)
	case bools == len(vals):
		out := make([]bool, len(vals))
		for i, v := range vals {
			out[i] = v.Bool()
		}
		return frame.Bools(name, out...)
	}

	cells := make([]string, len(vals))
	for i, v := range vals {
		cells[i] = v.String()
	}
	if strs == len(vals) {
		if times, ok := parseAll(cells, func(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }); ok {
			return frame.Times(name, times...)
		}
	}
	return frame.Strings(name, cells...)
}
