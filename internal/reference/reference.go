// Package reference provides sources backed by bundled reference data and
// by files on disk.
//
// The loaders are registered under dotted names so that manifests can name
// them:
//
//	exa.reference.load_isotopes
//	exa.reference.load_constants
//	exa.reference.load_units
//	exa.io.read_csv
//	exa.io.read_json
//	exa.io.read_parquet
package reference

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/exa-analytics/exa/internal/config"
	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/table"
)

//go:embed static/*
var static embed.FS

// IsotopeColumns are the columns of the isotopes table.
var IsotopeColumns = []string{
	"A", "Z", "af", "afu", "cov_radius", "van_radius", "g",
	"mass", "massu", "name", "eneg", "quad", "spin", "symbol", "color",
}

// ConstantColumns are the columns of the constants table.
var ConstantColumns = []string{"symbol", "name", "value", "units", "uncertainty"}

// Static returns the bundled resource files.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Loader reads reference tables from the configured resource directory,
// falling back to the bundled files.
type Loader struct {
	cfg *config.Config
}

// NewLoader returns a Loader reading from cfg. A nil cfg uses
// config.Default() at load time.
func NewLoader(cfg *config.Config) *Loader {
	return &Loader{cfg: cfg}
}

func (l *Loader) config() *config.Config {
	if l.cfg != nil {
		return l.cfg
	}
	return config.Default()
}

// Open opens a resource by name.
func (l *Loader) Open(name string) (io.ReadCloser, error) {
	if p := l.config().Resource(name); p != "" {
		f, err := os.Open(p) //nolint:gosec // G304: resource directory is configured
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to open resource %s: %w", name, err)
		}
	}
	f, err := Static().Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource %s: %w", name, err)
	}
	return f, nil
}

func (l *Loader) readJSON(name, orient string, names ...string) (*table.Table, error) {
	f, err := l.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := table.ReadJSON(f, orient, names...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return t, nil
}

// Isotopes returns the isotopes table sorted by symbol then mass number.
func (l *Loader) Isotopes() (*table.Table, error) {
	t, err := l.readJSON("isotopes.json", "values", IsotopeColumns...)
	if err != nil {
		return nil, err
	}
	return t.SortBy("symbol", "A")
}

// Constants returns the physical constants table.
func (l *Loader) Constants() (*table.Table, error) {
	return l.readJSON("constants.json", "values", ConstantColumns...)
}

// Units returns the unit conversion table.
func (l *Loader) Units() (*table.Table, error) {
	return l.readJSON("units.json", "columns")
}

// IsotopesManifest opens the manifest describing the isotopes dataset.
func (l *Loader) IsotopesManifest() (io.ReadCloser, error) {
	return l.Open("isotopes.yml")
}

func tableSource(load func() (*table.Table, error)) dataset.Func {
	return func([]any, map[string]any) (dataset.Payload, error) {
		t, err := load()
		if err != nil {
			return dataset.Empty(), err
		}
		return dataset.TablePayload(t), nil
	}
}

// Register adds the reference loaders and the file readers to reg.
func Register(reg *dataset.Registry, cfg *config.Config) error {
	l := NewLoader(cfg)
	sources := []struct {
		name string
		fn   dataset.Func
	}{
		{"exa.reference.load_isotopes", tableSource(l.Isotopes)},
		{"exa.reference.load_constants", tableSource(l.Constants)},
		{"exa.reference.load_units", tableSource(l.Units)},
		{"exa.io.read_csv", ReadCSV},
		{"exa.io.read_json", ReadJSON},
		{"exa.io.read_parquet", ReadParquet},
	}
	for _, s := range sources {
		if err := reg.Register(s.name, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// Datasets returns the isotopes, constants and units datasets, each sourced
// from the loaders registered in reg.
func Datasets(reg *dataset.Registry, opts ...dataset.Option) ([]*dataset.Dataset, error) {
	defs := []struct {
		name, source string
		extra        []dataset.Option
	}{
		{"isotopes", "exa.reference.load_isotopes", []dataset.Option{
			dataset.WithIndex("isotope"),
			dataset.WithIndexes("symbol", "A"),
			dataset.WithColumns(IsotopeColumns...),
			dataset.WithCategories(map[string]table.DType{"symbol": table.String, "Z": table.Int64}),
		}},
		{"constants", "exa.reference.load_constants", []dataset.Option{
			dataset.WithIndexes("symbol"),
			dataset.WithColumns(ConstantColumns...),
		}},
		{"units", "exa.reference.load_units", []dataset.Option{
			dataset.WithIndexes("dimension", "unit"),
			dataset.WithCategories(map[string]table.DType{"dimension": table.String}),
		}},
	}
	out := make([]*dataset.Dataset, 0, len(defs))
	for _, def := range defs {
		o := append([]dataset.Option{
			dataset.WithName(def.name),
			dataset.WithResolver(reg),
			dataset.WithSourceName(def.source),
		}, def.extra...)
		d, err := dataset.New(append(o, opts...)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", def.name, err)
		}
		out = append(out, d)
	}
	return out, nil
}
