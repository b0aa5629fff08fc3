// Handles saving and loading datasets as a manifest plus a Parquet file.

package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/exa-analytics/exa/internal/table"
)

// File extensions of the two persisted files.
const (
	ManifestExt = ".yml"
	DataExt     = ".qet"
)

// ManifestFile returns the manifest file name for name.
func ManifestFile(name string) string {
	return name + ManifestExt
}

// DataFile returns the data file name for name.
func DataFile(name string) string {
	return name + DataExt
}

// Save writes the table to <name>.qet and the configuration to <name>.yml in
// dir. Empty name and dir default to the dataset name and the configured
// save directory. The cache is released while the manifest is written and
// restored afterwards. It returns the directory used.
func (d *Dataset) Save(name, dir string) (string, error) {
	if name == "" {
		name = d.Name
	}
	if name == "" {
		return "", errors.New("failed to save dataset: no name")
	}
	if dir == "" {
		dir = d.config().SaveDir
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create save directory: %w", err)
	}
	p, err := d.Data()
	if err != nil {
		return "", err
	}
	if t, ok := p.Table(); ok {
		if err := writeFile(filepath.Join(dir, DataFile(name)), func(w io.Writer) error {
			return table.WriteParquet(w, t)
		}); err != nil {
			return "", err
		}
		d.cache = Empty()
	}
	if err := writeFile(filepath.Join(dir, ManifestFile(name)), d.WriteManifest); err != nil {
		d.cache = p
		return "", err
	}
	if !p.IsEmpty() {
		if _, err := d.SetData(p); err != nil {
			return "", err
		}
	}
	d.log().Info("saved dataset", "dir", dir, "name", name)
	return dir, nil
}

// WriteTable writes the cached table as Parquet. It fails when the payload
// is not a table.
func (d *Dataset) WriteTable(w io.Writer) error {
	p, err := d.Data()
	if err != nil {
		return err
	}
	t, ok := p.Table()
	if !ok {
		return fmt.Errorf("failed to write table: payload is %s", p.Kind())
	}
	return table.WriteParquet(w, t)
}

// Load reads <name>.yml and <name>.qet from dir. Empty name and dir default
// to the dataset name and the configured save directory. Missing files are
// logged and skipped. The loaded table is not validated. It returns the
// directory used.
func (d *Dataset) Load(name, dir string) (string, error) {
	if name == "" {
		name = d.Name
	}
	if dir == "" {
		dir = d.config().SaveDir
	}
	d.log().Info("loading dataset", "dir", dir, "name", name)
	if err := d.LoadFS(os.DirFS(dir), name); err != nil {
		return "", err
	}
	return dir, nil
}

// LoadFS is like Load but reads from fsys.
func (d *Dataset) LoadFS(fsys fs.FS, name string) error {
	mf, err := fsys.Open(ManifestFile(name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.log().Warn("manifest does not exist", "file", ManifestFile(name))
	case err != nil:
		return fmt.Errorf("failed to open manifest: %w", err)
	default:
		err := d.ReadManifest(mf)
		_ = mf.Close()
		if err != nil {
			return err
		}
	}
	df, err := fsys.Open(DataFile(name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.log().Warn("data file does not exist", "file", DataFile(name))
		return nil
	case err != nil:
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer df.Close()
	t, err := table.ReadParquet(df, d.Columns...)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", DataFile(name), err)
	}
	d.cache = TablePayload(t)
	return nil
}

// FromTarball builds a dataset from a manifest and an optional Parquet
// stream, typically members of an archive. The table is not validated.
func FromTarball(manifest, data io.Reader, opts ...Option) (*Dataset, error) {
	d, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		if err := d.ReadManifest(manifest); err != nil {
			return nil, err
		}
	}
	if data != nil {
		t, err := table.ReadParquet(data)
		if err != nil {
			return nil, fmt.Errorf("failed to read data: %w", err)
		}
		d.cache = TablePayload(t)
	}
	return d, nil
}

// FromManifest builds a dataset from the YAML manifest at path. Its table is
// produced by the manifest's source on first access.
func FromManifest(path string, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller supplied manifest path
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return FromTarball(f, nil, opts...)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is built from the save directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
