package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/exa-analytics/exa/internal/table"
)

// ValuesExt is the extension of the file holding a Field's arrays.
const ValuesExt = ".values.qet"

// Field is a Dataset describing a set of fields, paired with one array of
// values per field.
type Field struct {
	*Dataset
	// FieldValues holds the values of each field, in field order.
	FieldValues [][]float64
}

// NewField creates a Field.
func NewField(values [][]float64, opts ...Option) (*Field, error) {
	d, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return &Field{Dataset: d, FieldValues: values}, nil
}

// Save saves the dataset then writes the field values to
// <name>.values.qet.
func (f *Field) Save(name, dir string) (string, error) {
	dir, err := f.Dataset.Save(name, dir)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = f.Name
	}
	if len(f.FieldValues) == 0 {
		return dir, nil
	}
	if err := writeFile(filepath.Join(dir, name+ValuesExt), f.WriteValues); err != nil {
		return "", err
	}
	return dir, nil
}

// Load loads the dataset then restores the field values when
// <name>.values.qet exists.
func (f *Field) Load(name, dir string) (string, error) {
	dir, err := f.Dataset.Load(name, dir)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = f.Name
	}
	vf, err := os.Open(filepath.Join(dir, name+ValuesExt)) //nolint:gosec // G304: path is built from the save directory
	if errors.Is(err, fs.ErrNotExist) {
		f.log().Warn("field values do not exist", "file", name+ValuesExt)
		return dir, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open field values: %w", err)
	}
	defer vf.Close()
	if err := f.ReadValues(vf); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteValues writes the field values as a long table with columns "field"
// and "value".
func (f *Field) WriteValues(w io.Writer) error {
	var fields []int64
	var values []float64
	for i, arr := range f.FieldValues {
		for _, v := range arr {
			fields = append(fields, int64(i))
			values = append(values, v)
		}
	}
	if fields == nil {
		fields, values = []int64{}, []float64{}
	}
	t, err := table.New(table.NewColumn("field", fields), table.NewColumn("value", values))
	if err != nil {
		return err
	}
	return table.WriteParquet(w, t)
}

// ReadValues replaces the field values with those read from r.
func (f *Field) ReadValues(r io.Reader) error {
	t, err := table.ReadParquet(r, "field", "value")
	if err != nil {
		return fmt.Errorf("failed to read field values: %w", err)
	}
	fields, ok := table.Values[int64](t.Column("field"))
	if !ok {
		return fmt.Errorf("failed to read field values: field column is %s", t.DType("field"))
	}
	values, ok := table.Values[float64](t.Column("value"))
	if !ok {
		return fmt.Errorf("failed to read field values: value column is %s", t.DType("value"))
	}
	var out [][]float64
	for i, fi := range fields {
		if fi < 0 {
			return fmt.Errorf("failed to read field values: negative field %d", fi)
		}
		for int64(len(out)) <= fi {
			out = append(out, []float64{})
		}
		out[fi] = append(out[fi], values[i])
	}
	f.FieldValues = out
	return nil
}

// Copy returns a deep copy of the field and its values.
func (f *Field) Copy() (*Field, error) {
	d, err := f.Dataset.Copy()
	if err != nil {
		return nil, err
	}
	values := make([][]float64, len(f.FieldValues))
	for i, v := range f.FieldValues {
		values[i] = slices.Clone(v)
	}
	return &Field{Dataset: d, FieldValues: values}, nil
}
