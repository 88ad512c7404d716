package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/runner"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/config"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/host"
)

func testConfig(t *testing.T, backend string) config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Store = backend
	cfg.Workers = 2
	return cfg
}

func projectDir(t *testing.T) *host.Dir {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		host.SettingsFile: "<ScriptureText><Name>TST</Name><BooksPresent>" +
			"0000000000000000000000000000000000000001</BooksPresent></ScriptureText>",
		"41MAT.SFM": "\\id MAT\n\\c 1\n\\v 1 teh start\n\\v 2 and teh end\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	d, err := host.Open(dir, nil)
	if err != nil {
		t.Fatalf("host.Open failed: %v", err)
	}
	return d
}

func spelling() checks.Item {
	it := checks.NewItem("Spelling", "1")
	it.DefaultDescription = "Misspelling"
	it.CheckRegex = `\bteh\b`
	it.FixRegex = "the"
	return it
}

func TestOpenBackends(t *testing.T) {
	for _, backend := range []string{config.StoreMemory, config.StoreFile, config.StoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			a, err := Open(context.Background(), testConfig(t, backend), nil)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer a.Close()
			if err := a.Data.Put(context.Background(), "TST", "k", "v"); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			v, ok, err := a.Data.Get(context.Background(), "TST", "k")
			if err != nil || !ok || v != "v" {
				t.Errorf("Get = %q, %v, %v", v, ok, err)
			}
		})
	}
}

func TestRunDismissRerun(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t, config.StoreMemory), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()
	if _, err := a.Catalog.Publish(ctx, spelling()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	dir := projectDir(t)
	req := RunRequest{Dir: dir, Selector: runner.Selector{Scope: checks.ScopeBook, Book: 40}}

	res, err := a.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(res.Findings))
	}
	stored, err := a.Results.Get(ctx, "TST", 40)
	if err != nil || len(stored) != 2 {
		t.Fatalf("stored %d findings, %v", len(stored), err)
	}

	if _, err := a.Dismiss(ctx, "TST", "proper noun", res.Findings[0]); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}
	res, err = a.Run(ctx, req)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(res.Findings) != 1 || res.Suppressed != 1 || res.Findings[0].Location.Verse != 2 {
		t.Errorf("second run = %d findings, %d suppressed", len(res.Findings), res.Suppressed)
	}
}

func TestRunUnknownCheck(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t, config.StoreMemory), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()
	_, err = a.Run(ctx, RunRequest{Dir: projectDir(t), Checks: []string{"nope"},
		Selector: runner.Selector{Scope: checks.ScopeBook, Book: 40}})
	if err == nil {
		t.Error("Run with an unknown check should fail")
	}
}
