package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/script"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/archive"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/catalog"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/validation"
)

// ChecksGroup contains catalog operations.
type ChecksGroup struct {
	List      ChecksListCmd      `cmd:"" help:"List published checks"`
	Validate  ChecksValidateCmd  `cmd:"" help:"Validate check definition files"`
	Publish   ChecksPublishCmd   `cmd:"" help:"Publish check definition files to the catalog"`
	Unpublish ChecksUnpublishCmd `cmd:"" help:"Remove one version of a check from the catalog"`
	Export    ChecksExportCmd    `cmd:"" help:"Export the catalog as a tar.xz bundle"`
	Import    ChecksImportCmd    `cmd:"" help:"Publish every check in a bundle"`
}

// ChecksListCmd lists the catalog.
type ChecksListCmd struct {
	Latest bool `help:"Only the newest version of each check"`
	JSON   bool `help:"Print checks as JSON"`
}

func (c *ChecksListCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var items []checks.Item
	if c.Latest {
		items, err = a.Catalog.Latest(ctx)
	} else {
		items, err = a.Catalog.List(ctx)
	}
	if err != nil {
		return err
	}
	if c.JSON {
		if items == nil {
			items = []checks.Item{}
		}
		return writeJSON(g.stdout, items)
	}
	for _, it := range items {
		g.printf("%s\t%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Version, it.Scope, it.DisplayDescription())
	}
	g.printf("%d checks\n", len(items))
	return nil
}

func readItem(path string) (checks.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return checks.Item{}, err
	}
	defer f.Close()
	if err := checkFileType(f, path); err != nil {
		return checks.Item{}, err
	}
	it, err := checks.DecodeXML(f)
	if err != nil {
		return checks.Item{}, fmt.Errorf("%s: %w", path, err)
	}
	return it, nil
}

// checkBundleName rejects bundle paths that are not named .tar.xz.
func checkBundleName(path string) error {
	if archive.DetectFormat(path) != archive.FormatTarXZ {
		return fmt.Errorf("%s: bundles are tar.xz files", path)
	}
	return nil
}

// checkFileType sniffs f against its name and rewinds it.
func checkFileType(f *os.File, path string) error {
	if _, err := validation.ValidateFileType(f, path); err != nil {
		return err
	}
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// ChecksValidateCmd validates definition files without publishing them.
type ChecksValidateCmd struct {
	Files []string `arg:"" help:"Check definition XML files" type:"existingfile"`
}

func (c *ChecksValidateCmd) Run(g *Globals) error {
	scripts := script.Default()
	var errs []error
	for _, path := range c.Files {
		it, err := readItem(path)
		if err == nil {
			err = catalog.Verify(scripts, it)
		}
		if err != nil {
			g.printf("FAIL\t%s\t%v\n", path, err)
			errs = append(errs, err)
			continue
		}
		g.printf("ok\t%s\t%s\n", path, it.Key())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d files failed validation", len(errs), len(c.Files))
	}
	return nil
}

// ChecksPublishCmd publishes definition files.
type ChecksPublishCmd struct {
	Files []string `arg:"" help:"Check definition XML files" type:"existingfile"`
}

func (c *ChecksPublishCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range c.Files {
		it, err := readItem(path)
		if err != nil {
			return err
		}
		published, err := a.Catalog.Publish(ctx, it)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		g.printf("published\t%s\t%s\n", published.ID, published.Key())
	}
	return nil
}

// ChecksUnpublishCmd removes one published version.
type ChecksUnpublishCmd struct {
	ID      string `arg:"" help:"Check ID"`
	Version string `arg:"" help:"Check version"`
}

func (c *ChecksUnpublishCmd) Run(ctx context.Context, g *Globals) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("invalid check id %q: %w", c.ID, err)
	}
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Catalog.Unpublish(ctx, id, c.Version); err != nil {
		return err
	}
	g.printf("unpublished\t%s@%s\n", id, c.Version)
	return nil
}

// ChecksExportCmd writes the catalog to a bundle.
type ChecksExportCmd struct {
	Out    string   `short:"o" required:"" help:"Output bundle path (.tar.xz)" type:"path"`
	Latest bool     `help:"Only the newest version of each check"`
	Check  []string `short:"k" help:"Check name or ID to export (repeatable, default all)"`
}

func (c *ChecksExportCmd) Run(ctx context.Context, g *Globals) error {
	if err := checkBundleName(c.Out); err != nil {
		return err
	}
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var items []checks.Item
	switch {
	case len(c.Check) > 0:
		items, err = a.Catalog.Select(ctx, c.Check...)
	case c.Latest:
		items, err = a.Catalog.Latest(ctx)
	default:
		items, err = a.Catalog.List(ctx)
	}
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := catalog.ExportBundle(&buf, items); err != nil {
		return err
	}
	if err := atomic.WriteFile(c.Out, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", c.Out, err)
	}
	g.printf("exported %d checks to %s\n", len(items), c.Out)
	return nil
}

// ChecksImportCmd publishes a bundle. Checks already in the catalog are
// skipped.
type ChecksImportCmd struct {
	Bundle string `arg:"" help:"Bundle path (.tar.xz)" type:"existingfile"`
}

func (c *ChecksImportCmd) Run(ctx context.Context, g *Globals) error {
	if err := checkBundleName(c.Bundle); err != nil {
		return err
	}
	f, err := os.Open(c.Bundle)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := checkFileType(f, c.Bundle); err != nil {
		return err
	}

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Catalog.Import(ctx, f)
	if report != nil {
		for _, key := range report.Published {
			g.printf("published\t%s\n", key)
		}
		for _, key := range report.Skipped {
			g.printf("skipped\t%s\n", key)
		}
	}
	return err
}
