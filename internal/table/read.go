package table

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// CSVOptions configures ReadCSV.
type CSVOptions struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune
	// DTypes forces the type of some columns instead of inferring it.
	DTypes map[string]DType
	// Index names the row index of the resulting table.
	Index string
}

// ReadCSV reads a table from CSV with a header row. Column types are
// inferred unless set in opts; empty cells are missing values.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		t, _ := New()
		return t, nil
	}
	header := records[0]
	rows := records[1:]
	cols := make([]*Column, len(header))
	for j, name := range header {
		raw := make([]string, len(rows))
		for i, rec := range rows {
			raw[i] = rec[j]
		}
		c, err := textColumn(name, raw, opts.DTypes[name])
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		cols[j] = c
	}
	t, err := New(cols...)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	t.index = opts.Index
	return t, nil
}

// textColumn builds a column from text cells. Numeric and boolean text is
// parsed; a column mixing text with other values keeps the raw text.
func textColumn(name string, raw []string, d DType) (*Column, error) {
	parsed := make([]any, len(raw))
	for i, s := range raw {
		parsed[i] = parseCell(s)
	}
	if d == "" || d == Category {
		natural := inferDType(parsed)
		if natural == String {
			for i, s := range raw {
				parsed[i] = s
			}
		}
		if d == Category {
			return categoricalFromAny(name, parsed, natural)
		}
		d = natural
	}
	return fromAny(name, parsed, d)
}

func parseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// ReadJSON reads a table from JSON in one of three layouts:
//
//   - "values": an array of rows, each an array of values. Column names are
//     taken from names, defaulting to "0", "1", ...
//   - "records": an array of objects, one per row.
//   - "columns": an object mapping each column to an array of values or to an
//     object keyed by row label.
//   - "lines": one object per line, as written by WriteJSONLines.
//
// Column order follows the input.
func ReadJSON(r io.Reader, orient string, names ...string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	var t *Table
	switch orient {
	case "values":
		var rows [][]any
		if err = unmarshalNumbers(data, &rows); err == nil {
			t, err = FromValues(rows, names...)
		}
	case "records":
		var raw []json.RawMessage
		if err = json.Unmarshal(data, &raw); err == nil {
			t, err = readRecords(raw)
		}
	case "lines":
		t, err = readLines(data)
	case "columns", "":
		t, err = readColumns(data)
	default:
		err = fmt.Errorf("unknown orient %q", orient)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	return t, nil
}

// FromValues builds a table from rows of values. Short rows are padded with
// missing values.
func FromValues(rows [][]any, names ...string) (*Table, error) {
	width := len(names)
	for _, row := range rows {
		width = max(width, len(row))
	}
	cols := make([]*Column, width)
	for j := range width {
		name := strconv.Itoa(j)
		if j < len(names) {
			name = names[j]
		}
		values := make([]any, len(rows))
		for i, row := range rows {
			if j < len(row) {
				values[i] = normalize(row[j])
			}
		}
		c, err := fromAny(name, values, "")
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}
	return New(cols...)
}

// FromRecords builds a table from one map per row. Columns are ordered as
// given, or sorted by name when columns is empty. Keys missing from a record
// are missing values.
func FromRecords(records []map[string]any, columns ...string) (*Table, error) {
	if len(columns) == 0 {
		seen := make(map[string]struct{})
		for _, rec := range records {
			for k := range rec {
				seen[k] = struct{}{}
			}
		}
		columns = sortedNames(seen)
	}
	cols := make([]*Column, len(columns))
	for j, name := range columns {
		values := make([]any, len(records))
		for i, rec := range records {
			values[i] = normalize(rec[name])
		}
		c, err := fromAny(name, values, "")
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}
	return New(cols...)
}

// FromColumns builds a table from a map of column values. Columns are ordered
// as given, or sorted by name when order is empty.
func FromColumns(columns map[string][]any, order ...string) (*Table, error) {
	if len(order) == 0 {
		order = sortedNames(columns)
	}
	cols := make([]*Column, len(order))
	for j, name := range order {
		values, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		norm := make([]any, len(values))
		for i, v := range values {
			norm[i] = normalize(v)
		}
		c, err := fromAny(name, norm, "")
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}
	return New(cols...)
}

func readLines(data []byte) (*Table, error) {
	var raw []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(nil, 16<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		raw = append(raw, json.RawMessage(bytes.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return readRecords(raw)
}

func readRecords(raw []json.RawMessage) (*Table, error) {
	var order []string
	seen := make(map[string]struct{})
	records := make([]map[string]any, len(raw))
	for i, msg := range raw {
		keys, values, err := decodeObject(msg)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rec := make(map[string]any, len(keys))
		for j, k := range keys {
			var v any
			if err := unmarshalNumbers(values[j], &v); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			rec[k] = v
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				order = append(order, k)
			}
		}
		records[i] = rec
	}
	return FromRecords(records, order...)
}

func readColumns(data []byte) (*Table, error) {
	keys, raw, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	columns := make(map[string][]any, len(keys))
	for i, k := range keys {
		msg := bytes.TrimSpace(raw[i])
		if len(msg) > 0 && msg[0] == '{' {
			labels, cells, err := decodeObject(msg)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", k, err)
			}
			values := make([]any, len(cells))
			for j, cell := range cells {
				if err := unmarshalNumbers(cell, &values[j]); err != nil {
					return nil, fmt.Errorf("column %q: %w", k, err)
				}
			}
			columns[k] = orderByLabel(labels, values)
			continue
		}
		var values []any
		if err := unmarshalNumbers(msg, &values); err != nil {
			return nil, fmt.Errorf("column %q: %w", k, err)
		}
		columns[k] = values
	}
	return FromColumns(columns, keys...)
}

// orderByLabel orders values by their row labels, numerically when every
// label is an integer.
func orderByLabel(labels []string, values []any) []any {
	idx := make([]int, len(labels))
	nums := make([]int64, len(labels))
	numeric := true
	for i, l := range labels {
		idx[i] = i
		n, err := strconv.ParseInt(l, 10, 64)
		if err != nil {
			numeric = false
		}
		nums[i] = n
	}
	if numeric {
		slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(nums[a], nums[b]) })
	}
	out := make([]any, len(values))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// decodeObject decodes a JSON object keeping the key order.
func decodeObject(data []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	var values []json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected key, got %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// normalize maps decoded values onto the types columns accept.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case nil, int64, float64, string, bool:
		return v
	default:
		return fmt.Sprint(v)
	}
}
