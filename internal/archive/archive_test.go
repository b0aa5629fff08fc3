package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/exa-analytics/exa/internal/dataset"
	exaerrors "github.com/exa-analytics/exa/internal/errors"
	"github.com/exa-analytics/exa/internal/table"
)

func atoms(t *testing.T, name string) *dataset.Dataset {
	t.Helper()
	tbl, err := table.New(
		table.NewColumn("atom", []int64{0, 1, 2}),
		table.NewColumn("symbol", []string{"O", "H", "H"}),
	)
	if err != nil {
		t.Fatalf("table.New failed: %v", err)
	}
	d, err := dataset.New(
		dataset.WithName(name),
		dataset.WithIndexes("atom"),
		dataset.WithCategories(map[string]table.DType{"symbol": table.String}),
		dataset.WithTable(tbl),
	)
	if err != nil {
		t.Fatalf("dataset.New failed: %v", err)
	}
	return d
}

func TestPackUnpack(t *testing.T) {
	water := atoms(t, "water")
	bare, _ := dataset.New(dataset.WithName("bare"), dataset.WithMeta(map[string]any{"k": "v"}))
	var buf bytes.Buffer
	if err := Pack(&buf, water, bare); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	got, err := Unpack(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Unpack() returned %d datasets, want 2", len(got))
	}
	if !got[0].Equal(water) || !got[1].Equal(bare) {
		t.Errorf("Unpack() = %v, %v", got[0].Manifest(), got[1].Manifest())
	}
	want, _ := water.Table()
	tbl, err := got[0].Table()
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if !tbl.Equal(want) {
		t.Errorf("unpacked table = %v, want %v", tbl, want)
	}
	if got[1].Cached() {
		t.Error("bare dataset gained a table")
	}
}

func TestPackErrors(t *testing.T) {
	nameless, _ := dataset.New()
	if err := Pack(&bytes.Buffer{}, nameless); err == nil {
		t.Error("Pack of a nameless dataset succeeded")
	}
	if _, err := Unpack(bytes.NewReader([]byte("not gzip"))); err == nil {
		t.Error("Unpack of garbage succeeded")
	}
}

func TestUnpackSkipsValidation(t *testing.T) {
	tbl, _ := table.New(table.NewColumn("atom", []int64{1, 1}))
	loose, _ := dataset.New(dataset.WithName("dup"), dataset.WithTable(tbl))
	var buf bytes.Buffer
	if err := Pack(&buf, loose); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	got, err := Unpack(&buf, dataset.WithIndexes("atom"))
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	// The manifest carries empty indexes, overriding the option.
	if len(got[0].Indexes) != 0 {
		t.Fatalf("Indexes = %v", got[0].Indexes)
	}
	got[0].Indexes = []string{"atom"}
	if _, err := got[0].Data(); !errors.Is(err, exaerrors.ErrUniqueness) {
		t.Errorf("Data() = %v, want uniqueness error", err)
	}
}

func TestPackFileExtract(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"water", "ice"} {
		if _, err := atoms(t, name).Save("", src); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	tarball := filepath.Join(t.TempDir(), "atoms.tar.gz")
	if err := PackFile(tarball, src, "water", "ice"); err != nil {
		t.Fatalf("PackFile failed: %v", err)
	}
	if err := PackFile(filepath.Join(t.TempDir(), "x.tar.gz"), src, "steam"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("PackFile of a missing dataset = %v", err)
	}

	f, err := os.Open(tarball)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dst := t.TempDir()
	names, err := Extract(f, dst)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !slices.Equal(names, []string{"water", "ice"}) {
		t.Errorf("Extract() = %v", names)
	}
	d, _ := dataset.New()
	if _, err := d.Load("ice", dst); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !d.Equal(atoms(t, "ice")) {
		t.Errorf("extracted manifest = %v", d.Manifest())
	}
}
