package output

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/datahub/frame"
)

// textTimeLayout keeps sub-second precision and drops trailing zeros.
const textTimeLayout = "2006-01-02 15:04:05.999999999"

// indexHeader names an unnamed index once it is reset into a column.
const indexHeader = "index"

// text renders cell i of c. The boolean is false for missing values.
func text(c *frame.Column, i int) (string, bool) {
	switch c.Kind {
	case frame.KindFloat:
		v := c.Floats[i]
		if math.IsNaN(v) {
			return "", false
		}
		return formatFloat(v), true
	case frame.KindTime:
		return c.Times[i].UTC().Format(textTimeLayout), true
	default:
		return c.Format(i), true
	}
}

// formatFloat always carries a decimal point or exponent so a float column
// never reads back as integers.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func isNullText(s string) bool {
	return s == "" || s == "NaN" || s == "nan"
}

// inferColumn builds a column from text cells, picking the narrowest kind
// that accepts every cell: int, float, bool, time, then string.
func inferColumn(name string, cells []string) *frame.Column {
	if len(cells) == 0 {
		return frame.Strings(name)
	}
	if ints, ok := parseAll(cells, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }); ok {
		return frame.Ints(name, ints...)
	}
	if floats, ok := parseFloats(cells); ok {
		return frame.Floats(name, floats...)
	}
	if bools, ok := parseAll(cells, parseBoolWord); ok {
		return frame.Bools(name, bools...)
	}
	if times, ok := parseAll(cells, func(s string) (time.Time, error) { return time.Parse(frame.TimeLayout, s) }); ok {
		return frame.Times(name, times...)
	}
	return frame.Strings(name, cells...)
}

func parseAll[T any](cells []string, parse func(string) (T, error)) ([]T, bool) {
	out := make([]T, len(cells))
	for i, s := range cells {
		v, err := parse(s)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func parseFloats(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, s := range cells {
		if isNullText(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

type notBoolError struct{}

func (notBoolError) Error() string { return "not a boolean" }

func parseBoolWord(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, notBoolError{}
}

// inferIndex is inferColumn with an integer default for zero rows.
func inferIndex(name string, cells []string) *frame.Column {
	if len(cells) == 0 {
		return frame.Ints(name)
	}
	return inferColumn(name, cells)
}

// buildFrame assembles parsed columns, turning the first into the index.
func buildFrame(header []string, cols [][]string) (*frame.Frame, error) {
	if len(header) == 0 {
		return &frame.Frame{Index: frame.RangeIndex(0)}, nil
	}
	name := header[0]
	if name == indexHeader {
		name = ""
	}
	index := inferIndex(name, cols[0])

	f := &frame.Frame{}
	for i := 1; i < len(header); i++ {
		if err := f.Add(inferColumn(header[i], cols[i])); err != nil {
			return nil, err
		}
	}
	if err := f.SetIndex(index); err != nil {
		return nil, err
	}
	return f, nil
}
