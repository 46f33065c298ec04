// Package gitbase reads the committed version of working tree files with
// libgit2, so that a file can be analysed against a git revision instead of
// an explicit old copy.
package gitbase

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors for baseline lookup.
var (
	ErrOutsideWorkdir = errors.New("path is outside the repository work tree")
	ErrBareRepository = errors.New("repository has no work tree")
	ErrNotBlob        = errors.New("revision path is not a file")
)

// Repository wraps a libgit2 repository with a work tree.
type Repository struct {
	repo    *git2go.Repository
	workdir string
}

// Discover opens the repository containing path.
func Discover(path string) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	root, err := git2go.Discover(abs, false, nil)
	if err != nil {
		return nil, fmt.Errorf("discover repository for %s: %w", path, err)
	}

	return Open(root)
}

// Open opens the repository at path.
func Open(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	if repo.IsBare() {
		repo.Free()

		return nil, ErrBareRepository
	}

	workdir, err := filepath.EvalSymlinks(repo.Workdir())
	if err != nil {
		repo.Free()

		return nil, fmt.Errorf("resolve work tree: %w", err)
	}

	return &Repository{repo: repo, workdir: workdir}, nil
}

// Workdir returns the root of the work tree.
func (r *Repository) Workdir() string {
	return r.workdir
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Rel returns path relative to the work tree, with forward slashes.
func (r *Repository) Rel(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(r.workdir, filepath.Join(dir, filepath.Base(abs)))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkdir, path)
	}

	return filepath.ToSlash(rel), nil
}

// Contents returns the content of the work tree file path at revision rev,
// e.g. "HEAD" or "main~2".
func (r *Repository) Contents(rev, path string) ([]byte, error) {
	rel, err := r.Rel(path)
	if err != nil {
		return nil, err
	}

	obj, err := r.repo.RevparseSingle(rev + ":" + rel)
	if err != nil {
		return nil, fmt.Errorf("lookup %s at %s: %w", rel, rev, err)
	}
	defer obj.Free()

	blob, err := obj.AsBlob()
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrNotBlob, rel, rev)
	}
	defer blob.Free()

	content := blob.Contents()

	return append([]byte(nil), content...), nil
}
