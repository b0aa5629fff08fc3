package reference

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/exa-analytics/exa/internal/config"
	"github.com/exa-analytics/exa/internal/dataset"
	"github.com/exa-analytics/exa/internal/table"
)

func TestIsotopes(t *testing.T) {
	tbl, err := NewLoader(&config.Config{SaveDir: t.TempDir()}).Isotopes()
	if err != nil {
		t.Fatalf("Isotopes failed: %v", err)
	}
	if !slices.Equal(tbl.Columns(), IsotopeColumns) {
		t.Errorf("Columns() = %v", tbl.Columns())
	}
	if tbl.NumRows() == 0 {
		t.Fatal("no isotopes")
	}
	symbols, _ := table.Values[string](tbl.Column("symbol"))
	masses, _ := table.Values[int64](tbl.Column("A"))
	for i := 1; i < len(symbols); i++ {
		if symbols[i-1] > symbols[i] || (symbols[i-1] == symbols[i] && masses[i-1] >= masses[i]) {
			t.Fatalf("rows %d and %d out of order: %s%d %s%d", i-1, i, symbols[i-1], masses[i-1], symbols[i], masses[i])
		}
	}
	if got := tbl.DType("eneg"); got != table.Float64 {
		t.Errorf("eneg = %s, want float64", got)
	}
}

func TestConstantsAndUnits(t *testing.T) {
	l := NewLoader(nil)
	c, err := l.Constants()
	if err != nil {
		t.Fatalf("Constants failed: %v", err)
	}
	if c.NumRows() == 0 || !slices.Equal(c.Columns(), ConstantColumns) {
		t.Errorf("Constants() = %v", c)
	}
	u, err := l.Units()
	if err != nil {
		t.Fatalf("Units failed: %v", err)
	}
	if !slices.Equal(u.Columns(), []string{"dimension", "unit", "factor"}) {
		t.Errorf("Units() = %v", u)
	}
	// Row labels are ordered numerically, so "10" sorts last.
	if v, _ := u.Value("unit", u.NumRows()-1); v != "fs" {
		t.Errorf("last unit = %v, want fs", v)
	}
}

func TestResourceOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "constants.json"), []byte(`[["x","override",1.0,"",0.0]]`), 0o600); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(&config.Config{SaveDir: dir, ResourceDir: dir})
	c, err := l.Constants()
	if err != nil {
		t.Fatalf("Constants failed: %v", err)
	}
	if c.NumRows() != 1 {
		t.Errorf("Constants() has %d rows, want the override", c.NumRows())
	}
	// Files absent from the resource directory come from the bundle.
	if _, err := l.Units(); err != nil {
		t.Errorf("Units failed: %v", err)
	}
}

func TestDatasets(t *testing.T) {
	reg := dataset.NewRegistry()
	if err := Register(reg, nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	ds, err := Datasets(reg)
	if err != nil {
		t.Fatalf("Datasets failed: %v", err)
	}
	for _, d := range ds {
		t.Run(d.Name, func(t *testing.T) {
			tbl, err := d.Table()
			if err != nil {
				t.Fatalf("Table failed: %v", err)
			}
			if tbl.NumRows() == 0 {
				t.Error("empty table")
			}
		})
	}
	iso, _ := ds[0].Table()
	if iso.IndexName() != "isotope" {
		t.Errorf("IndexName() = %q", iso.IndexName())
	}
	for _, col := range []string{"symbol", "Z"} {
		if iso.DType(col) != table.Category {
			t.Errorf("%s = %s, want category", col, iso.DType(col))
		}
	}
}

func TestIsotopesManifest(t *testing.T) {
	reg := dataset.NewRegistry()
	if err := Register(reg, nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	l := NewLoader(nil)
	f, err := l.IsotopesManifest()
	if err != nil {
		t.Fatalf("IsotopesManifest failed: %v", err)
	}
	defer f.Close()
	d, err := dataset.FromTarball(f, nil, dataset.WithResolver(reg))
	if err != nil {
		t.Fatalf("FromTarball failed: %v", err)
	}
	tbl, err := d.Table()
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if tbl.IndexName() != "isotope" {
		t.Errorf("IndexName() = %q", tbl.IndexName())
	}
	if tbl.DType("symbol") != table.Category || tbl.DType("Z") != table.Category {
		t.Errorf("DTypes() = %v", tbl.DTypes())
	}
	want, _ := l.Isotopes()
	if r, c := tbl.Shape(); r != want.NumRows() || c != want.NumCols() {
		t.Errorf("Shape() = (%d, %d)", r, c)
	}
}
