package dataset

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/exa-analytics/exa/internal/table"
)

func TestManifestKeys(t *testing.T) {
	d, err := New(WithName("iso"), WithIndexes("id"), WithCardinal("id"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var buf bytes.Buffer
	if err := d.WriteManifest(&buf); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	if _, ok := raw["source"]; ok {
		t.Error("manifest has a source key without a source")
	}
	for _, k := range manifestKeys {
		if k == "source" {
			continue
		}
		if _, ok := raw[k]; !ok {
			t.Errorf("manifest is missing %q", k)
		}
	}

	r := NewRegistry()
	r.MustRegister("exa.reference.load_units", loadUnits)
	d.resolver = r
	if err := d.SetSourceValue("exa.reference.load_units"); err != nil {
		t.Fatalf("SetSourceName failed: %v", err)
	}
	buf.Reset()
	if err := d.WriteManifest(&buf); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	if !strings.Contains(buf.String(), "source: exa.reference.load_units") {
		t.Errorf("manifest lacks the source:\n%s", buf.String())
	}
}

func TestReadManifest(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"empty", "", false},
		{"full", "name: iso\nindexes: [id]\ncolumns: [id, symbol]\ncategories: {symbol: string}\ncardinal: id\nmeta: {a: 1}\ncall_args: [1]\ncall_kws: {k: v}\n", false},
		{"unknown key", "name: iso\nextra: true\n", false},
		{"bad yaml", "name: [", true},
		{"bad cardinal", "indexes: [id]\ncardinal: other\n", true},
		{"bad category type", "categories: {symbol: category}\n", true},
		{"unknown category type", "categories: {symbol: complex}\n", true},
		{"bad columns", "columns: id\n", true},
		{"bad source", "source: nowhere.fn\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(WithResolver(NewRegistry()))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			err = d.ReadManifest(strings.NewReader(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadManifest() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadManifestValues(t *testing.T) {
	d, _ := New()
	in := "name: iso\nindexes: [id]\ncolumns: [id, symbol]\ncategories: {symbol: string}\ncardinal: id\nindex: isotope\n"
	if err := d.ReadManifest(strings.NewReader(in)); err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if d.Name != "iso" || d.Index != "isotope" || d.Cardinal() != "id" {
		t.Errorf("ReadManifest() = %+v", d.Manifest())
	}
	if !slices.Equal(d.Columns, []string{"id", "symbol"}) {
		t.Errorf("Columns = %v", d.Columns)
	}
	if !maps.Equal(d.Categories, map[string]table.DType{"symbol": table.String}) {
		t.Errorf("Categories = %v", d.Categories)
	}
}

func TestManifestSchema(t *testing.T) {
	data, err := ManifestSchema()
	if err != nil {
		t.Fatalf("ManifestSchema failed: %v", err)
	}
	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	got := slices.Sorted(maps.Keys(s.Properties))
	want := slices.Sorted(slices.Values(manifestKeys))
	if !slices.Equal(got, want) {
		t.Errorf("schema properties = %v, want %v", got, want)
	}
}
