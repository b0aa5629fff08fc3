package table

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// WriteJSONLines writes one JSON object per row, keys in column order.
// Missing values are written as null. ReadJSON with the "lines" orient reads
// it back.
func WriteJSONLines(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	keys := make([][]byte, len(t.cols))
	for j, c := range t.cols {
		k, err := json.Marshal(c.Name())
		if err != nil {
			return err
		}
		keys[j] = k
	}
	for i := range t.NumRows() {
		_ = bw.WriteByte('{')
		for j, c := range t.cols {
			if j > 0 {
				_ = bw.WriteByte(',')
			}
			_, _ = bw.Write(keys[j])
			_ = bw.WriteByte(':')
			v := c.Value(i)
			if f, ok := v.(float64); ok && math.IsNaN(f) {
				v = nil
			}
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", i, c.Name(), err)
			}
			_, _ = bw.Write(data)
		}
		_, _ = bw.WriteString("}\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write json lines: %w", err)
	}
	return nil
}
