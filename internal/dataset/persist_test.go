package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/exa-analytics/exa/internal/config"
	exaerrors "github.com/exa-analytics/exa/internal/errors"
	"github.com/exa-analytics/exa/internal/table"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d, err := New(
		WithName("isotopes"),
		WithMeta(map[string]any{"origin": "test", "version": 2}),
		WithCallArgs("a"),
		WithCallKws(map[string]any{"n": 1}),
		WithIndex("isotope"),
		WithIndexes("id"),
		WithColumns("id", "symbol", "mass"),
		WithCategories(map[string]table.DType{"symbol": table.String}),
		WithCardinal("id"),
		WithTable(isotopes(t)),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := d.Save("", dir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got != dir {
		t.Errorf("Save() = %q, want %q", got, dir)
	}
	for _, f := range []string{"isotopes.yml", "isotopes.qet"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s not written: %v", f, err)
		}
	}
	if !d.Cached() {
		t.Error("Save left the cache empty")
	}

	fresh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := fresh.Load("isotopes", dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !fresh.Equal(d) {
		t.Errorf("loaded manifest = %+v, want %+v", fresh.Manifest(), d.Manifest())
	}
	want, _ := d.Table()
	loaded, err := fresh.Table()
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if !loaded.Equal(want) {
		t.Errorf("loaded table = %v, want %v", loaded, want)
	}
	if loaded.DType("symbol") != table.Category {
		t.Errorf("symbol = %s, want category", loaded.DType("symbol"))
	}
}

func TestSaveWithoutTable(t *testing.T) {
	dir := t.TempDir()
	d, err := New(WithName("tmp_data"), WithConfig(&config.Config{SaveDir: dir}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := d.Save("", ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tmp_data.yml")); err != nil {
		t.Errorf("manifest not written to the configured directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tmp_data.qet")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("data file written without a table: %v", err)
	}
	nameless, _ := New()
	if _, err := nameless.Save("", dir); err == nil {
		t.Error("Save without a name succeeded")
	}
}

func TestLoadMissingFiles(t *testing.T) {
	d, err := New(WithName("nothing"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := d.Load("", t.TempDir()); err != nil {
		t.Errorf("Load of missing files failed: %v", err)
	}
	if d.Cached() {
		t.Error("Load cached something from nothing")
	}
}

func TestLoadSkipsValidation(t *testing.T) {
	dup, _ := table.New(table.NewColumn("id", []int64{1, 1}), table.NewColumn("v", []float64{1, 2}))
	var data bytes.Buffer
	if err := table.WriteParquet(&data, dup); err != nil {
		t.Fatalf("WriteParquet failed: %v", err)
	}
	manifest := "name: dup\nindexes: [id]\ncolumns: [id]\nunknown_key: 1\n"
	fsys := fstest.MapFS{
		"dup.yml": {Data: []byte(manifest)},
		"dup.qet": {Data: data.Bytes()},
	}
	d, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.LoadFS(fsys, "dup"); err != nil {
		t.Fatalf("LoadFS failed: %v", err)
	}
	if !d.Cached() {
		t.Fatal("LoadFS did not cache the table")
	}
	// Loading is restricted to the declared columns.
	if got := d.cache.table.Columns(); len(got) != 1 || got[0] != "id" {
		t.Errorf("loaded columns = %v, want [id]", got)
	}
	if _, err := d.Data(); !errors.Is(err, exaerrors.ErrUniqueness) {
		t.Errorf("Data() = %v, want uniqueness error on access", err)
	}
}

func TestFromTarball(t *testing.T) {
	src, err := New(WithName("iso"), WithIndexes("id"), WithCategories(map[string]table.DType{"symbol": table.String}), WithTable(isotopes(t)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var manifest, data bytes.Buffer
	if err := src.WriteManifest(&manifest); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	if err := src.WriteTable(&data); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	d, err := FromTarball(&manifest, bytes.NewReader(data.Bytes()))
	if err != nil {
		t.Fatalf("FromTarball failed: %v", err)
	}
	if !d.Equal(src) {
		t.Errorf("FromTarball manifest = %+v", d.Manifest())
	}
	want, _ := src.Table()
	got, err := d.Table()
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("FromTarball table = %v, want %v", got, want)
	}

	only, err := FromTarball(bytes.NewBufferString("name: bare\n"), nil)
	if err != nil {
		t.Fatalf("FromTarball failed: %v", err)
	}
	if only.Name != "bare" || only.Cached() {
		t.Errorf("FromTarball without data = %v", only)
	}
}

func TestWriteTableOpaque(t *testing.T) {
	d, _ := New(WithPayload(Opaque("text")))
	if err := d.WriteTable(&bytes.Buffer{}); err == nil {
		t.Error("WriteTable of opaque payload succeeded")
	}
}

func TestFromManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yml")
	if err := os.WriteFile(path, []byte("name: test\nsource: os.path.isfile\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	reg.MustRegister("os.path.isfile", func(args []any, _ map[string]any) (Payload, error) {
		if len(args) != 1 {
			return Empty(), errors.New("isfile takes exactly one argument")
		}
		return Opaque(true), nil
	})
	d, err := FromManifest(path, WithResolver(reg))
	if err != nil {
		t.Fatalf("FromManifest failed: %v", err)
	}
	if d.Name != "test" || d.SourceName() != "os.path.isfile" {
		t.Errorf("FromManifest() = %+v", d.Manifest())
	}
	if _, err := d.Data(); err == nil {
		t.Error("Data() without arguments succeeded")
	}
	if _, err := FromManifest(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("FromManifest of a missing file succeeded")
	}
}

func TestSaveLoadWithoutCardinal(t *testing.T) {
	dir := t.TempDir()
	d, err := New(WithName("k"), WithIndexes("id"), WithTable(isotopes(t)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := d.Save("", dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	fresh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := fresh.Load("k", dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if fresh.Cardinal() != "" {
		t.Errorf("Cardinal() = %q, want unset", fresh.Cardinal())
	}
	if !fresh.Equal(d) {
		t.Errorf("loaded manifest = %+v, want %+v", fresh.Manifest(), d.Manifest())
	}
}

func TestLoadReplacesCardinal(t *testing.T) {
	dir := t.TempDir()
	saved, err := New(WithName("k"), WithIndexes("a"), WithCardinal("a"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := saved.Save("", dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	d, err := New(WithIndexes("x"), WithCardinal("x"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := d.Load("k", dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Cardinal() != "a" {
		t.Errorf("Cardinal() = %q, want a", d.Cardinal())
	}
}

func TestSaveLoadMetaTypes(t *testing.T) {
	dir := t.TempDir()
	d, err := New(
		WithName("tagged"),
		WithMeta(map[string]any{"tags": []string{"a", "b"}, "n": int64(3)}),
		WithCallArgs([]string{"x"}, int64(1)),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := d.Save("", dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	fresh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := fresh.Load("tagged", dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !fresh.Equal(d) {
		t.Errorf("loaded manifest = %+v, want %+v", fresh.Manifest(), d.Manifest())
	}
	other, _ := New(WithName("tagged"), WithMeta(map[string]any{"tags": []string{"a"}}))
	if other.Equal(d) {
		t.Error("datasets with different meta compare equal")
	}
}
