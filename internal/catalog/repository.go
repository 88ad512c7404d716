// Package catalog is the shared collection of check-and-fix items: where
// they are stored, the rules for publishing them, and bundles for moving
// them between machines.
package catalog

import (
	"bytes"
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// Repository stores published items. An item is identified by its ID and
// version; several versions of one ID may be held.
type Repository interface {
	List(ctx context.Context) ([]checks.Item, error)
	Get(ctx context.Context, id uuid.UUID, version string) (checks.Item, error)
	Put(ctx context.Context, it checks.Item) error
	Delete(ctx context.Context, id uuid.UUID, version string) error
}

// objectName is the slash-separated relative name of an item's XML
// document, shared by every backend and by bundles.
func objectName(id uuid.UUID, version string) string {
	return id.String() + "/" + url.PathEscape(version) + ".xml"
}

func ref(id uuid.UUID, version string) string {
	return id.String() + "@" + version
}

func sortItems(items []checks.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !strings.EqualFold(a.Name, b.Name) {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		if c := checks.CompareVersions(a.Version, b.Version); c != 0 {
			return c < 0
		}
		return a.ID.String() < b.ID.String()
	})
}

// DirRepository keeps one XML file per item version under a directory:
// <dir>/<id>/<version>.xml.
type DirRepository struct {
	dir string
}

// NewDirRepository returns a repository rooted at dir, creating it if needed.
func NewDirRepository(dir string) (*DirRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIO("create", dir, err)
	}
	return &DirRepository{dir: dir}, nil
}

func (r *DirRepository) path(id uuid.UUID, version string) string {
	return filepath.Join(r.dir, filepath.FromSlash(objectName(id, version)))
}

// List reads every item file. Unreadable documents fail the listing.
func (r *DirRepository) List(ctx context.Context) ([]checks.Item, error) {
	var items []checks.Item
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".xml" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		it, err := readItem(path)
		if err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// Get reads one item version.
func (r *DirRepository) Get(_ context.Context, id uuid.UUID, version string) (checks.Item, error) {
	it, err := readItem(r.path(id, version))
	if errors.Is(err, fs.ErrNotExist) {
		return checks.Item{}, errors.NewNotFound("check", ref(id, version))
	}
	return it, err
}

// Put writes an item version, replacing any file already there.
func (r *DirRepository) Put(_ context.Context, it checks.Item) error {
	data, err := checks.MarshalXML(it)
	if err != nil {
		return err
	}
	path := r.path(it.ID, it.Version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIO("create", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// Delete removes an item version.
func (r *DirRepository) Delete(_ context.Context, id uuid.UUID, version string) error {
	path := r.path(id, version)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.NewNotFound("check", ref(id, version))
		}
		return errors.NewIO("remove", path, err)
	}
	// Drop the id directory once its last version is gone.
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func readItem(path string) (checks.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return checks.Item{}, err
		}
		return checks.Item{}, errors.NewIO("read", path, err)
	}
	defer f.Close()

	it, err := checks.DecodeXML(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return checks.Item{}, err
	}
	return it, nil
}
