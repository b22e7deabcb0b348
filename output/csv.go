package output

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jonwraymond/datahub/frame"
)

// renderCSV writes the index as the first column, headed by its name.
func renderCSV(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{f.Index.Name}, f.Names()...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	record := make([]string, len(header))
	for row := 0; row < f.Len(); row++ {
		record[0], _ = text(f.Index, row)
		for i, c := range f.Columns {
			record[i+1], _ = text(c, row)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func parseCSV(body []byte) (*frame.Frame, error) {
	r := csv.NewReader(bytes.NewReader(body))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		// A frame without columns renders as a single blank header line.
		return &frame.Frame{Index: frame.RangeIndex(0)}, nil
	}

	header := records[0]
	cols := make([][]string, len(header))
	for _, rec := range records[1:] {
		for i := range header {
			cols[i] = append(cols[i], rec[i])
		}
	}
	return buildFrame(header, cols)
}
