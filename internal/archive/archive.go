// Package archive reads and writes datasets as gzip compressed tarballs.
//
// Each dataset is stored as two members, <name>.yml and <name>.qet, the same
// files dataset.Save writes. A dataset without a table has no .qet member.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/exa-analytics/exa/internal/dataset"
)

// Writer writes datasets to a tarball.
type Writer struct {
	gz  *gzip.Writer
	tw  *tar.Writer
	now time.Time
}

// NewWriter returns a Writer compressing to w. Close must be called to flush
// the archive.
func NewWriter(w io.Writer) *Writer {
	gz := gzip.NewWriter(w)
	return &Writer{gz: gz, tw: tar.NewWriter(gz), now: time.Now()}
}

// Add writes the manifest and, when the payload is a table, the data of d.
func (w *Writer) Add(d *dataset.Dataset) error {
	if d.Name == "" {
		return errors.New("failed to archive dataset: no name")
	}
	var buf bytes.Buffer
	if err := d.WriteManifest(&buf); err != nil {
		return err
	}
	if err := w.member(dataset.ManifestFile(d.Name), buf.Bytes()); err != nil {
		return err
	}
	p, err := d.Data()
	if err != nil {
		return err
	}
	if _, ok := p.Table(); !ok {
		return nil
	}
	buf.Reset()
	if err := d.WriteTable(&buf); err != nil {
		return err
	}
	return w.member(dataset.DataFile(d.Name), buf.Bytes())
}

// AddFS copies the saved files of the named dataset from fsys.
func (w *Writer) AddFS(fsys fs.FS, name string) error {
	found := false
	for _, f := range []string{dataset.ManifestFile(name), dataset.DataFile(name), name + dataset.ValuesExt} {
		data, err := fs.ReadFile(fsys, f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		if err := w.member(f, data); err != nil {
			return err
		}
		found = true
	}
	if !found {
		return fmt.Errorf("failed to archive %s: %w", name, fs.ErrNotExist)
	}
	return nil
}

func (w *Writer) member(name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: w.now,
		Format:  tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Close flushes the tarball.
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar: %w", err)
	}
	if err := w.gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip: %w", err)
	}
	return nil
}

// Pack writes datasets to w as a tarball.
func Pack(w io.Writer, datasets ...*dataset.Dataset) error {
	aw := NewWriter(w)
	for _, d := range datasets {
		if err := aw.Add(d); err != nil {
			_ = aw.Close()
			return err
		}
	}
	return aw.Close()
}

// PackFile writes the saved datasets names found in dir to a tarball at
// path.
func PackFile(path, dir string, names ...string) error {
	f, err := os.Create(path) //nolint:gosec // G304: caller supplied archive path
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	aw := NewWriter(f)
	fsys := os.DirFS(dir)
	for _, name := range names {
		if err = aw.AddFS(fsys, name); err != nil {
			break
		}
	}
	if cerr := aw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close archive: %w", cerr)
	}
	return err
}

type members struct {
	manifest, data []byte
}

// Unpack reads every dataset of a tarball, in member order. The tables are
// not validated.
func Unpack(r io.Reader, opts ...dataset.Option) ([]*dataset.Dataset, error) {
	byName, order, err := read(r)
	if err != nil {
		return nil, err
	}
	out := make([]*dataset.Dataset, 0, len(order))
	for _, name := range order {
		m := byName[name]
		var data io.Reader
		if m.data != nil {
			data = bytes.NewReader(m.data)
		}
		var manifest io.Reader
		if m.manifest != nil {
			manifest = bytes.NewReader(m.manifest)
		}
		d, err := dataset.FromTarball(manifest, data, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack %s: %w", name, err)
		}
		if d.Name == "" {
			d.Name = name
		}
		out = append(out, d)
	}
	return out, nil
}

// Extract writes the members of a tarball into dir and returns the dataset
// names found.
func Extract(r io.Reader, dir string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	defer gz.Close()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	var names []string
	seen := map[string]bool{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		base, ok := memberBase(hdr.Name)
		if !ok {
			continue
		}
		dst := filepath.Join(dir, path.Base(hdr.Name))
		f, err := os.Create(dst) //nolint:gosec // G304: name is reduced to its base
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dst, err)
		}
		_, err = io.Copy(f, tr) //nolint:gosec // G110: archives are produced by Pack
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}
		if !seen[base] {
			seen[base] = true
			names = append(names, base)
		}
	}
	return names, nil
}

func read(r io.Reader) (map[string]*members, []string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	defer gz.Close()
	byName := map[string]*members{}
	var order []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		base, ok := memberBase(hdr.Name)
		if !ok || strings.HasSuffix(hdr.Name, dataset.ValuesExt) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		m, ok := byName[base]
		if !ok {
			m = &members{}
			byName[base] = m
			order = append(order, base)
		}
		if strings.HasSuffix(hdr.Name, dataset.ManifestExt) {
			m.manifest = data
		} else {
			m.data = data
		}
	}
	return byName, order, nil
}

// memberBase returns the dataset name of a member, or false when the member
// is not a dataset file.
func memberBase(name string) (string, bool) {
	name = path.Base(name)
	for _, ext := range []string{dataset.ValuesExt, dataset.ManifestExt, dataset.DataExt} {
		if base, ok := strings.CutSuffix(name, ext); ok && base != "" {
			return base, true
		}
	}
	return "", false
}
