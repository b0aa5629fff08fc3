// Handles the YAML manifest persisted next to a dataset's table.

package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/exa-analytics/exa/internal/table"
)

// Manifest is the persisted form of a Dataset's configuration.
type Manifest struct {
	Name       string            `yaml:"name" json:"name" jsonschema:"description=Base file name of the dataset"`
	Meta       map[string]any    `yaml:"meta" json:"meta" jsonschema:"description=Free-form metadata"`
	Source     string            `yaml:"source,omitempty" json:"source,omitempty" jsonschema:"description=Dotted name of the source function (module.attribute)"`
	CallArgs   []any             `yaml:"call_args" json:"call_args" jsonschema:"description=Positional arguments passed to the source"`
	CallKws    map[string]any    `yaml:"call_kws" json:"call_kws" jsonschema:"description=Keyword arguments passed to the source"`
	Cardinal   string            `yaml:"cardinal" json:"cardinal" jsonschema:"description=Column shared as a join key across datasets; must be one of indexes"`
	Index      string            `yaml:"index" json:"index" jsonschema:"description=Name of the row index"`
	Indexes    []string          `yaml:"indexes" json:"indexes" jsonschema:"description=Columns whose combined values are unique"`
	Columns    []string          `yaml:"columns" json:"columns" jsonschema:"description=Columns the table must contain"`
	Categories map[string]string `yaml:"categories" json:"categories" jsonschema:"description=Categorical columns mapped to their natural type"`
}

// manifestKeys is the order in which manifest keys are applied. Indexes
// precede cardinal so that it can be validated against them.
var manifestKeys = []string{
	"name", "meta", "indexes", "columns", "categories", "index",
	"cardinal", "source", "call_args", "call_kws",
}

// ManifestSchema returns the JSON Schema of the manifest.
func ManifestSchema() ([]byte, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.Reflect(&Manifest{})
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest schema: %w", err)
	}
	return data, nil
}

// Manifest returns the persisted form of the configuration.
func (d *Dataset) Manifest() *Manifest {
	m := &Manifest{
		Name:       d.Name,
		Meta:       orEmptyMap(d.Meta),
		Source:     d.sourceName,
		CallArgs:   d.CallArgs,
		CallKws:    orEmptyMap(d.CallKws),
		Cardinal:   d.cardinal,
		Index:      d.Index,
		Indexes:    d.Indexes,
		Columns:    d.Columns,
		Categories: make(map[string]string, len(d.Categories)),
	}
	if m.CallArgs == nil {
		m.CallArgs = []any{}
	}
	if m.Indexes == nil {
		m.Indexes = []string{}
	}
	if m.Columns == nil {
		m.Columns = []string{}
	}
	for k, v := range d.Categories {
		m.Categories[k] = string(v)
	}
	return m
}

// WriteManifest writes the configuration as YAML.
func (d *Dataset) WriteManifest(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d.Manifest()); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

// ReadManifest reads a YAML manifest and applies every key to d.
func (d *Dataset) ReadManifest(r io.Reader) error {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	return d.applyManifest(raw)
}

func (d *Dataset) applyManifest(raw map[string]any) error {
	if _, ok := raw["cardinal"]; ok {
		// Validated against the manifest's own indexes once both are applied.
		d.cardinal = ""
	}
	for _, k := range manifestKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if err := d.Set(k, v); err != nil {
			return err
		}
	}
	extra := slices.Sorted(maps.Keys(raw))
	for _, k := range extra {
		if !slices.Contains(manifestKeys, k) {
			if err := d.Set(k, raw[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyList(l []any) []any {
	if l == nil {
		return []any{}
	}
	return l
}

// samePersisted reports whether a and b encode to the same YAML.
func samePersisted(a, b any) bool {
	x, errA := yaml.Marshal(a)
	y, errB := yaml.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(x, y)
}

func asString(key string, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	default:
		return "", fmt.Errorf("%s: want string, got %T", key, v)
	}
}

func asMap(key string, v any) (map[string]any, error) {
	switch x := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return x, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: want mapping, got %T", key, v)
	}
}

func asList(key string, v any) ([]any, error) {
	switch x := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return x, nil
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: want sequence, got %T", key, v)
	}
}

func asStrings(key string, v any) ([]string, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	l, err := asList(key, v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(l))
	for i, e := range l {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: want string, got %T", key, i, e)
		}
		out[i] = s
	}
	return out, nil
}

func asCategories(v any) (map[string]table.DType, error) {
	if c, ok := v.(map[string]table.DType); ok {
		return c, nil
	}
	m, err := asMap("categories", v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]table.DType, len(m))
	for col, typ := range m {
		var s string
		switch x := typ.(type) {
		case string:
			s = x
		case table.DType:
			s = string(x)
		default:
			return nil, fmt.Errorf("categories.%s: want type name, got %T", col, typ)
		}
		d, err := table.ParseDType(s)
		if err != nil {
			return nil, fmt.Errorf("categories.%s: %w", col, err)
		}
		if !d.IsNatural() {
			return nil, fmt.Errorf("categories.%s: %s is not a natural type", col, d)
		}
		out[col] = d
	}
	return out, nil
}
