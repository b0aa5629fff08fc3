package reference

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/table"
)

// ReadCSV reads a CSV file. The path is the first positional argument or the
// "path" keyword. Keywords "sep" (single character), "index" and "dtypes"
// (column to type name) are optional.
func ReadCSV(args []any, kws map[string]any) (dataset.Payload, error) {
	path, err := pathArg("read_csv", args, kws)
	if err != nil {
		return dataset.Empty(), err
	}
	var opts table.CSVOptions
	if sep, ok := kws["sep"].(string); ok && sep != "" {
		r, n := utf8.DecodeRuneInString(sep)
		if n != len(sep) {
			return dataset.Empty(), fmt.Errorf("read_csv: sep must be one character, got %q", sep)
		}
		opts.Comma = r
	}
	if index, ok := kws["index"].(string); ok {
		opts.Index = index
	}
	if raw, ok := kws["dtypes"]; ok {
		if opts.DTypes, err = dtypes(raw); err != nil {
			return dataset.Empty(), fmt.Errorf("read_csv: %w", err)
		}
	}
	f, err := os.Open(path) //nolint:gosec // G304: caller supplied path
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_csv: %w", err)
	}
	defer f.Close()
	t, err := table.ReadCSV(f, opts)
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_csv %s: %w", path, err)
	}
	return dataset.TablePayload(t), nil
}

// ReadJSON reads a JSON file. Keywords "orient" and "names" select the layout
// and, for the values layout, the column names.
func ReadJSON(args []any, kws map[string]any) (dataset.Payload, error) {
	path, err := pathArg("read_json", args, kws)
	if err != nil {
		return dataset.Empty(), err
	}
	orient, _ := kws["orient"].(string)
	names, err := stringsKw("names", kws)
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_json: %w", err)
	}
	f, err := os.Open(path) //nolint:gosec // G304: caller supplied path
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_json: %w", err)
	}
	defer f.Close()
	t, err := table.ReadJSON(f, orient, names...)
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_json %s: %w", path, err)
	}
	return dataset.TablePayload(t), nil
}

// ReadParquet reads a Parquet file, optionally restricted to the "columns"
// keyword.
func ReadParquet(args []any, kws map[string]any) (dataset.Payload, error) {
	path, err := pathArg("read_parquet", args, kws)
	if err != nil {
		return dataset.Empty(), err
	}
	cols, err := stringsKw("columns", kws)
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_parquet: %w", err)
	}
	f, err := os.Open(path) //nolint:gosec // G304: caller supplied path
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_parquet: %w", err)
	}
	defer f.Close()
	t, err := table.ReadParquet(f, cols...)
	if err != nil {
		return dataset.Empty(), fmt.Errorf("read_parquet %s: %w", path, err)
	}
	return dataset.TablePayload(t), nil
}

func pathArg(fn string, args []any, kws map[string]any) (string, error) {
	var v any
	switch {
	case len(args) > 0:
		v = args[0]
	case kws["path"] != nil:
		v = kws["path"]
	default:
		return "", fmt.Errorf("%s: missing path", fn)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s: path must be a non-empty string, got %v", fn, v)
	}
	return s, nil
}

func stringsKw(key string, kws map[string]any) ([]string, error) {
	switch x := kws[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: want string, got %T", key, i, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: want list of strings, got %T", key, x)
	}
}

func dtypes(raw any) (map[string]table.DType, error) {
	var m map[string]any
	switch x := raw.(type) {
	case map[string]table.DType:
		return x, nil
	case map[string]string:
		m = make(map[string]any, len(x))
		for k, v := range x {
			m[k] = v
		}
	case map[string]any:
		m = x
	default:
		return nil, fmt.Errorf("dtypes: want mapping, got %T", raw)
	}
	out := make(map[string]table.DType, len(m))
	for col, v := range m {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("dtypes.%s: want type name, got %T", col, v)
		}
		d, err := table.ParseDType(s)
		if err != nil {
			return nil, fmt.Errorf("dtypes.%s: %w", col, err)
		}
		out[col] = d
	}
	return out, nil
}
