// Package history keeps a save directory under git so that every saved
// dataset can be read back at an earlier revision.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/exa-analytics/exa/internal/config"
	"github.com/exa-analytics/exa/internal/dataset"
)

// Commit is an entry of a dataset's history.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"` // Subject line.
	Body    string    `json:"body"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	Date    time.Time `json:"date"`
}

// Repo is a save directory tracked by git.
type Repo struct {
	dir   string
	name  string
	email string
	repo  *gogit.Repository
	mu    sync.Mutex
}

// Open opens the git repository at dir, initializing it when needed. name
// and email sign the commits.
func Open(dir, name, email string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		if repo, err = gogit.PlainInit(dir, false); err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open git repo: %w", err)
	}
	return &Repo{dir: dir, name: name, email: email, repo: repo}, nil
}

// OpenConfig opens the save directory of cfg.
func OpenConfig(cfg *config.Config) (*Repo, error) {
	return Open(cfg.SaveDir, cfg.GitAuthor, cfg.GitEmail)
}

// Dir returns the working directory.
func (r *Repo) Dir() string {
	return r.dir
}

// Save saves d into the working directory and commits its files. It returns
// the commit hash, or "" when nothing changed.
func (r *Repo) Save(d *dataset.Dataset, msg string) (string, error) {
	if _, err := d.Save("", r.dir); err != nil {
		return "", err
	}
	if msg == "" {
		msg = "save " + d.Name
	}
	return r.Commit(msg, files(r.dir, d.Name)...)
}

// Commit stages files, relative to the working directory, and commits them.
// It returns "" when the files are unchanged.
func (r *Repo) Commit(msg string, files ...string) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, f := range files {
		if _, err := w.Add(f); err != nil {
			return "", fmt.Errorf("failed to stage %s: %w", f, err)
		}
	}
	status, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree status: %w", err)
	}
	staged := false
	for _, f := range files {
		switch status.File(f).Staging {
		case gogit.Added, gogit.Modified, gogit.Deleted, gogit.Renamed:
			staged = true
		}
	}
	if !staged {
		return "", nil
	}
	sig := &object.Signature{Name: r.name, Email: r.email, When: time.Now()}
	h, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return h.String(), nil
}

// History returns the commits that touched the files of the named dataset,
// newest first, limited to n when n > 0.
func (r *Repo) History(name string, n int) ([]*Commit, error) {
	tracked := map[string]bool{}
	for _, f := range fileNames(name) {
		tracked[f] = true
	}
	iter, err := r.repo.Log(&gogit.LogOptions{PathFilter: func(p string) bool { return tracked[p] }})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()
	var commits []*Commit
	for n <= 0 || len(commits) < n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, body, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Body:    strings.TrimSpace(body),
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			Date:    c.Author.When,
		})
	}
	return commits, nil
}

// FS returns the tree at rev, which is anything git rev-parse accepts that
// go-git supports: hashes, HEAD, HEAD~1, branch names.
func (r *Repo) FS(rev string) (fs.FS, error) {
	if rev == "" {
		rev = "HEAD"
	}
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	c, err := r.repo.CommitObject(*h)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", rev, err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree of %s: %w", rev, err)
	}
	return &commitFS{tree: tree}, nil
}

// Load loads the named dataset into d as it was at rev.
func (r *Repo) Load(d *dataset.Dataset, name, rev string) error {
	fsys, err := r.FS(rev)
	if err != nil {
		return err
	}
	return d.LoadFS(fsys, name)
}

func fileNames(name string) []string {
	return []string{dataset.ManifestFile(name), dataset.DataFile(name), name + dataset.ValuesExt}
}

func files(dir, name string) []string {
	var out []string
	for _, f := range fileNames(name) {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// commitFS implements fs.FS over the files of a commit tree.
type commitFS struct {
	tree *object.Tree
}

func (c *commitFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &dirFile{name: "."}, nil
	}
	f, err := c.tree.File(name)
	if err != nil {
		if _, terr := c.tree.Tree(name); terr == nil {
			return &dirFile{name: name}, nil
		}
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &memFile{Reader: bytes.NewReader([]byte(contents)), name: path.Base(name), size: f.Size}, nil
}

// memFile is a file read from a commit. It supports io.ReaderAt and
// io.Seeker so that Parquet readers need not buffer it again.
type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *memFile) Stat() (fs.FileInfo, error) {
	return &fileInfo{name: f.name, size: f.size}, nil
}

func (f *memFile) Close() error { return nil }

type dirFile struct {
	name string
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return &fileInfo{name: path.Base(d.name), dir: true}, nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *dirFile) Close() error { return nil }

type fileInfo struct {
	name string
	size int64
	dir  bool
}

func (f *fileInfo) Name() string { return f.name }
func (f *fileInfo) Size() int64  { return f.size }
func (f *fileInfo) Mode() fs.FileMode {
	if f.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (f *fileInfo) ModTime() time.Time { return time.Time{} }
func (f *fileInfo) IsDir() bool        { return f.dir }
func (f *fileInfo) Sys() any           { return nil }
