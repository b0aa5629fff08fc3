// Handles Parquet persistence through Arrow.

package table

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Schema metadata keys.
const (
	metaDTypes      = "exa:dtypes"
	metaCategorical = "exa:categorical"
	metaIndex       = "exa:index"
)

// WriteParquet writes t to w as a Snappy compressed Parquet file.
//
// Categorical columns are written with their decoded values; a missing level
// is written as null.
func WriteParquet(w io.Writer, t *Table) error {
	if t.NumCols() == 0 {
		return fmt.Errorf("failed to write parquet: table has no columns")
	}
	mem := memory.NewGoAllocator()
	fields := make([]arrow.Field, len(t.cols))
	columns := make([]arrow.Column, len(t.cols))
	dtypes := make(map[string]DType, len(t.cols))
	var categorical []string
	for i, c := range t.cols {
		arr := buildArray(mem, c)
		defer arr.Release()
		fields[i] = arrow.Field{Name: c.name, Type: arr.DataType(), Nullable: true}
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		defer chunked.Release()
		columns[i] = *arrow.NewColumn(fields[i], chunked)
		dtypes[c.name] = c.dtype
		if c.categorical {
			categorical = append(categorical, c.name)
		}
	}
	dt, err := json.Marshal(dtypes)
	if err != nil {
		return fmt.Errorf("failed to encode dtypes: %w", err)
	}
	cat, err := json.Marshal(categorical)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	md := arrow.NewMetadata(
		[]string{metaDTypes, metaCategorical, metaIndex},
		[]string{string(dt), string(cat), t.index},
	)
	schema := arrow.NewSchema(fields, &md)
	tbl := array.NewTable(schema, columns, int64(t.NumRows()))
	defer tbl.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	// The writer closes sinks that implement io.Closer; w belongs to the
	// caller.
	writer, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w}, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := writer.WriteTable(tbl, max(tbl.NumRows(), 1)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write table to parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads a table written by WriteParquet, or any Parquet file
// with primitive columns. When columns is non-empty only those are returned,
// in that order, and each must exist.
func ReadParquet(r io.Reader, columns ...string) (*Table, error) {
	ras, ok := r.(parquet.ReaderAtSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet: %w", err)
		}
		ras = bytes.NewReader(data)
	}
	pf, err := file.NewParquetReader(ras, file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	tbl, err := reader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	defer tbl.Release()

	lookup := func(key string) string {
		md := tbl.Schema().Metadata()
		if i := md.FindKey(key); i >= 0 {
			return md.Values()[i]
		}
		if v := pf.MetaData().KeyValueMetadata().FindValue(key); v != nil {
			return *v
		}
		return ""
	}
	dtypes := map[string]DType{}
	if s := lookup(metaDTypes); s != "" {
		if err := json.Unmarshal([]byte(s), &dtypes); err != nil {
			return nil, fmt.Errorf("failed to decode dtypes: %w", err)
		}
	}
	var categorical []string
	if s := lookup(metaCategorical); s != "" {
		if err := json.Unmarshal([]byte(s), &categorical); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
	}

	var want []int
	if len(columns) == 0 {
		for i := range int(tbl.NumCols()) {
			want = append(want, i)
		}
	} else {
		byName := make(map[string]int, tbl.NumCols())
		for i := range int(tbl.NumCols()) {
			byName[tbl.Column(i).Name()] = i
		}
		var missing []string
		for _, name := range columns {
			i, ok := byName[name]
			if !ok {
				missing = append(missing, name)
				continue
			}
			want = append(want, i)
		}
		if missing != nil {
			return nil, fmt.Errorf("columns %v not found in parquet file", missing)
		}
	}

	cols := make([]*Column, 0, len(want))
	for _, i := range want {
		col := tbl.Column(i)
		values, dict := columnValues(col.Data().Chunks())
		d := dtypes[col.Name()]
		var c *Column
		if dict || slices.Contains(categorical, col.Name()) {
			c, err = categoricalFromAny(col.Name(), values, d)
		} else {
			c, err = fromAny(col.Name(), values, d)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet column: %w", err)
		}
		cols = append(cols, c)
	}
	t, err := New(cols...)
	if err != nil {
		return nil, err
	}
	t.index = lookup(metaIndex)
	return t, nil
}

func buildArray(mem memory.Allocator, c *Column) arrow.Array {
	var valid []bool
	src := c
	if c.categorical {
		// Missing levels become nulls; codes >= 0 are valid.
		valid = make([]bool, len(c.codes))
		for i, code := range c.codes {
			valid[i] = code >= 0
		}
		src = c.decode()
	}
	switch v := src.data.(type) {
	case []int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(v, valid)
		return b.NewArray()
	default:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		s, _ := v.([]string)
		b.AppendValues(s, valid)
		return b.NewArray()
	}
}

// columnValues flattens chunks into plain Go values with nil for nulls. It
// reports whether the chunks were dictionary encoded.
func columnValues(chunks []arrow.Array) ([]any, bool) {
	var out []any
	dict := false
	for _, arr := range chunks {
		if _, ok := arr.(*array.Dictionary); ok {
			dict = true
		}
		for i := range arr.Len() {
			out = append(out, valueAt(arr, i))
		}
	}
	return out, dict
}

func valueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint64:
		if v := a.Value(i); v <= math.MaxInt64 {
			return int64(v)
		}
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Dictionary:
		return valueAt(a.Dictionary(), a.GetValueIndex(i))
	default:
		return arr.ValueStr(i)
	}
}
