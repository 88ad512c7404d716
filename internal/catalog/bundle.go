package catalog

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/archive"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/validation"
)

// bundleRoot is the directory every bundle entry lives under.
const bundleRoot = "checks"

var bundleTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ExportBundle writes items as a tar.xz stream of item XML documents. The
// output depends only on the items, not on their order or the clock.
func ExportBundle(w io.Writer, items []checks.Item) error {
	sorted := append([]checks.Item(nil), items...)
	sortItems(sorted)

	aw, err := archive.NewWriter(w, archive.FormatTarXZ, bundleTime)
	if err != nil {
		return err
	}
	for _, it := range sorted {
		data, err := checks.MarshalXML(it)
		if err != nil {
			return err
		}
		if err := aw.AddFile(path.Join(bundleRoot, objectName(it.ID, it.Version)), data); err != nil {
			return err
		}
	}
	return aw.Close()
}

// ImportBundle reads a bundle written by ExportBundle. Every item is
// validated; the first bad entry fails the import.
func ImportBundle(r io.Reader) ([]checks.Item, error) {
	ar, err := archive.NewReader(r, archive.FormatTarXZ)
	if err != nil {
		return nil, &errors.ParseError{Format: "check bundle", Message: err.Error(), Err: err}
	}
	defer ar.Close()

	var items []checks.Item
	err = ar.Iterate(func(h *tar.Header, content io.Reader) (bool, error) {
		name, err := validation.EntryPath(bundleRoot, h.Name)
		if err != nil {
			return true, &errors.ParseError{Format: "check bundle", Path: h.Name, Message: err.Error(), Err: err}
		}
		if path.Ext(name) != ".xml" {
			return false, nil
		}
		it, err := checks.DecodeXML(content)
		if err != nil {
			return true, errors.Wrapf(err, "bundle entry %s", h.Name)
		}
		if err := it.Validate(); err != nil {
			return true, errors.Wrapf(err, "bundle entry %s", h.Name)
		}
		items = append(items, it)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// ImportReport counts the outcome of publishing a bundle.
type ImportReport struct {
	Published []string `json:"published"`
	Skipped   []string `json:"skipped"`
}

// Import publishes every item of a bundle. Versions already in the catalog
// are skipped; any other publish failure stops the import.
func (c *Catalog) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	items, err := ImportBundle(r)
	if err != nil {
		return nil, err
	}
	report := &ImportReport{}
	for _, it := range items {
		if _, err := c.Publish(ctx, it); err != nil {
			if errors.Is(err, errors.ErrAlreadyExists) {
				report.Skipped = append(report.Skipped, it.Key())
				continue
			}
			return report, fmt.Errorf("importing %s: %w", it.Key(), err)
		}
		report.Published = append(report.Published, it.Key())
	}
	return report, nil
}
