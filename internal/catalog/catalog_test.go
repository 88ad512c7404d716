package catalog

import (
	"bytes"
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/archive"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/validation"
)

func item(name, version string) checks.Item {
	it := checks.NewItem(name, version)
	it.DefaultDescription = name + " problem"
	it.CheckRegex = `\bteh\b`
	it.FixRegex = "the"
	it.Languages = []string{"en"}
	it.Tags = []string{"spelling"}
	return it
}

// countingRepo counts listings of the wrapped repository.
type countingRepo struct {
	Repository
	lists atomic.Int32
}

func (r *countingRepo) List(ctx context.Context) ([]checks.Item, error) {
	r.lists.Add(1)
	return r.Repository.List(ctx)
}

func newCatalog(t *testing.T) (*Catalog, *countingRepo) {
	t.Helper()
	dir, err := NewDirRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirRepository failed: %v", err)
	}
	repo := &countingRepo{Repository: dir}
	return New(repo, Options{ListTTL: time.Hour}), repo
}

func TestDirRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := NewDirRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirRepository failed: %v", err)
	}

	a := item("Spelling", "1.0")
	b := item("Alpha", "2")
	for _, it := range []checks.Item{a, b} {
		if err := repo.Put(ctx, it); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	got, err := repo.Get(ctx, a.ID, a.Version)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Alpha" || list[1].Name != "Spelling" {
		t.Errorf("List = %+v", list)
	}

	if err := repo.Delete(ctx, a.ID, a.Version); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, a.ID, a.Version); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
	if err := repo.Delete(ctx, a.ID, a.Version); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete error = %v", err)
	}
}

func TestDirRepositoryCorruptFile(t *testing.T) {
	dir := t.TempDir()
	repo, _ := NewDirRepository(dir)
	if err := os.MkdirAll(dir+"/x", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/x/1.xml", []byte("<CheckAndFixItem><Id>nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := repo.List(context.Background())
	var perr *errors.ParseError
	if !errors.As(err, &perr) || perr.Path == "" {
		t.Errorf("List error = %v, want a parse error naming the file", err)
	}
}

func TestPublishRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)

	bad := item("Spelling", "1")
	bad.CheckRegex = ""
	bad.FixRegex = ""
	_, err := c.Publish(ctx, bad)
	var verr *errors.ValidationError
	if !errors.As(err, &verr) || verr.Field != "checkRegex" {
		t.Fatalf("Publish error = %v, want checkRegex validation", err)
	}
	if n, _ := c.Len(ctx); n != 0 {
		t.Errorf("catalog size = %d after rejected publish", n)
	}
}

func TestPublishDuplicateLeavesCatalogUnchanged(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)

	if _, err := c.Publish(ctx, item("Spelling", "1.0")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if _, err := c.Publish(ctx, item("Other", "1.0")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	before, _ := c.List(ctx)

	dup := item("spelling", "1.0")
	dup.Description = "a different body"
	_, err := c.Publish(ctx, dup)
	if !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("duplicate Publish error = %v, want already exists", err)
	}

	after, _ := c.List(ctx)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("catalog changed (-before +after):\n%s", diff)
	}
	c.Refresh()
	stored, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != len(before) {
		t.Errorf("repository holds %d items, want %d", len(stored), len(before))
	}
}

func TestPublishVersionMustIncrease(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)

	v1 := item("Spelling", "1.2")
	if _, err := c.Publish(ctx, v1); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	older := v1
	older.Name = "Spelling renamed"
	older.Version = "1.1"
	_, err := c.Publish(ctx, older)
	var verr *errors.ValidationError
	if !errors.As(err, &verr) || verr.Field != "version" {
		t.Fatalf("Publish of older version error = %v", err)
	}

	v2 := v1
	v2.Version = "1.10"
	v2.CheckRegex = `\bteh\b|\bhte\b`
	if _, err := c.Publish(ctx, v2); err != nil {
		t.Fatalf("Publish of newer version failed: %v", err)
	}

	latest, err := c.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(latest) != 1 || latest[0].Version != "1.10" {
		t.Errorf("Latest = %+v", latest)
	}
	if n, _ := c.Len(ctx); n != 2 {
		t.Errorf("Len = %d, want both versions", n)
	}

	got, err := c.Get(ctx, v1.ID, "1.2")
	if err != nil || got.CheckRegex != v1.CheckRegex {
		t.Errorf("Get old version = %+v, %v", got, err)
	}
}

func TestPublishSeesOtherCatalogs(t *testing.T) {
	ctx := context.Background()
	dir, err := NewDirRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirRepository failed: %v", err)
	}
	a := New(dir, Options{ListTTL: time.Hour})
	b := New(dir, Options{ListTTL: time.Hour})

	// a caches an empty listing before b publishes.
	if n, _ := a.Len(ctx); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
	if _, err := b.Publish(ctx, item("Spelling", "1.0")); err != nil {
		t.Fatalf("Publish through b failed: %v", err)
	}
	if _, err := a.Publish(ctx, item("Spelling", "1.0")); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("Publish through a error = %v, want already exists", err)
	}

	stored, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("repository holds %d items, want 1", len(stored))
	}
}

// slowRepo widens the window between the publish check and the write.
type slowRepo struct {
	Repository
}

func (r slowRepo) Put(ctx context.Context, it checks.Item) error {
	time.Sleep(5 * time.Millisecond)
	return r.Repository.Put(ctx, it)
}

func TestConcurrentPublishStoresOnce(t *testing.T) {
	ctx := context.Background()
	dir, err := NewDirRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirRepository failed: %v", err)
	}
	c := New(slowRepo{dir}, Options{ListTTL: time.Hour})

	const callers = 8
	var wg sync.WaitGroup
	var published atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Publish(ctx, item("Spelling", "1.0"))
			switch {
			case err == nil:
				published.Add(1)
			case !errors.Is(err, errors.ErrAlreadyExists):
				t.Errorf("Publish error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := published.Load(); got != 1 {
		t.Errorf("%d publishes succeeded, want 1", got)
	}
	stored, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("repository holds %d items, want 1", len(stored))
	}
}

func TestPublishCompilesScripts(t *testing.T) {
	ctx := context.Background()
	c, repo := newCatalog(t)

	bad := item("Scripted", "1")
	bad.FixScript = "#!builtin no-such-script"
	_, err := c.Publish(ctx, bad)
	var verr *errors.ValidationError
	if !errors.As(err, &verr) || verr.Field != "fixScript" {
		t.Fatalf("Publish error = %v, want fixScript validation", err)
	}
	if got := repo.lists.Load(); got != 0 {
		t.Errorf("repository listed %d times for a rejected item, want 0", got)
	}

	good := item("Scripted", "1")
	good.FixScript = "#!builtin dedupe"
	if _, err := c.Publish(ctx, good); err != nil {
		t.Fatalf("Publish with a known builtin failed: %v", err)
	}
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	a, _ := c.Publish(ctx, item("Spelling", "1"))
	b, _ := c.Publish(ctx, item("Punctuation", "1"))

	all, err := c.Select(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("Select() = %d items, %v", len(all), err)
	}

	got, err := c.Select(ctx, "spelling", b.ID.String(), "SPELLING")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("Select = %+v", got)
	}

	if _, err := c.Select(ctx, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Select(missing) error = %v", err)
	}
}

func TestListingIsCached(t *testing.T) {
	ctx := context.Background()
	c, repo := newCatalog(t)

	for i := 0; i < 3; i++ {
		if _, err := c.List(ctx); err != nil {
			t.Fatalf("List failed: %v", err)
		}
	}
	if _, err := c.Publish(ctx, item("Spelling", "1")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if n, _ := c.Len(ctx); n != 1 {
		t.Errorf("Len after publish = %d, want 1", n)
	}
	// One listing for the reads, one for the publish check.
	if got := repo.lists.Load(); got != 2 {
		t.Errorf("repository listed %d times, want 2", got)
	}

	c.Refresh()
	_, _ = c.List(ctx)
	if got := repo.lists.Load(); got != 3 {
		t.Errorf("repository listed %d times after Refresh, want 3", got)
	}
}

func TestUnpublish(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	it, _ := c.Publish(ctx, item("Spelling", "1"))

	if err := c.Unpublish(ctx, it.ID, it.Version); err != nil {
		t.Fatalf("Unpublish failed: %v", err)
	}
	if _, err := c.Get(ctx, it.ID, it.Version); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get after Unpublish error = %v", err)
	}
	if err := c.Unpublish(ctx, it.ID, it.Version); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Unpublish error = %v", err)
	}
}

func TestBundleRoundTrip(t *testing.T) {
	items := []checks.Item{item("Spelling", "1"), item("Alpha", "3.1")}
	items[1].FixRegex = ""
	items[1].FixScript = "#!builtin dedupe"

	var first, second bytes.Buffer
	if err := ExportBundle(&first, items); err != nil {
		t.Fatalf("ExportBundle failed: %v", err)
	}
	if err := ExportBundle(&second, []checks.Item{items[1], items[0]}); err != nil {
		t.Fatalf("ExportBundle failed: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("bundles of the same items differ")
	}

	got, err := ImportBundle(&first)
	if err != nil {
		t.Fatalf("ImportBundle failed: %v", err)
	}
	want := []checks.Item{items[1], items[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}
}

func TestImportBundleErrors(t *testing.T) {
	_, err := ImportBundle(bytes.NewReader([]byte("not a bundle")))
	var perr *errors.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("ImportBundle(garbage) error = %v, want a parse error", err)
	}

	invalid := item("Spelling", "1")
	invalid.DefaultDescription = ""
	var buf bytes.Buffer
	if err := ExportBundle(&buf, []checks.Item{invalid}); err != nil {
		t.Fatalf("ExportBundle failed: %v", err)
	}
	_, err = ImportBundle(&buf)
	var verr *errors.ValidationError
	if !errors.As(err, &verr) || verr.Field != "defaultDescription" {
		t.Errorf("ImportBundle(invalid) error = %v", err)
	}
}

func TestImportBundleRejectsEscapingEntries(t *testing.T) {
	data, err := checks.MarshalXML(item("Spelling", "1"))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"../spelling.xml", "/checks/spelling.xml", "other/spelling.xml"} {
		var buf bytes.Buffer
		aw, err := archive.NewWriter(&buf, archive.FormatTarXZ, time.Time{})
		if err != nil {
			t.Fatal(err)
		}
		if err := aw.AddFile(name, data); err != nil {
			t.Fatal(err)
		}
		if err := aw.Close(); err != nil {
			t.Fatal(err)
		}
		_, err = ImportBundle(&buf)
		if !errors.Is(err, validation.ErrPathTraversal) {
			t.Errorf("ImportBundle with entry %q error = %v, want path traversal", name, err)
		}
	}
}

func TestCatalogImport(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	existing, _ := c.Publish(ctx, item("Spelling", "1"))
	fresh := item("Punctuation", "2")

	var buf bytes.Buffer
	if err := ExportBundle(&buf, []checks.Item{existing, fresh}); err != nil {
		t.Fatalf("ExportBundle failed: %v", err)
	}
	report, err := c.Import(ctx, &buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	want := &ImportReport{Published: []string{fresh.Key()}, Skipped: []string{existing.Key()}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	if n, _ := c.Len(ctx); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestNewS3RepositoryConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   S3Config
		field string
	}{
		{"no endpoint", S3Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}, "endpoint"},
		{"no keys", S3Config{Endpoint: "localhost:9000", Bucket: "b"}, "access_key"},
		{"no bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Repository(tt.cfg)
			var verr *errors.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("error = %v, want field %s", err, tt.field)
			}
		})
	}

	repo, err := NewS3Repository(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"})
	if err != nil {
		t.Fatalf("NewS3Repository failed: %v", err)
	}
	id := uuid.MustParse("6f1c1b0e-8d0a-4a57-9f39-2b8f0f6d6a11")
	if got := repo.key(id, "1.0"); got != "checks/6f1c1b0e-8d0a-4a57-9f39-2b8f0f6d6a11/1.0.xml" {
		t.Errorf("key = %q", got)
	}
}

// TestS3Repository runs against a live S3-compatible server when
// VERSECHECK_TEST_S3_ENDPOINT is set.
func TestS3Repository(t *testing.T) {
	endpoint := os.Getenv("VERSECHECK_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("VERSECHECK_TEST_S3_ENDPOINT not set")
	}
	ctx := context.Background()
	repo, err := NewS3Repository(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("VERSECHECK_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("VERSECHECK_TEST_S3_SECRET_KEY"),
		Bucket:    "versecheck-test",
		Prefix:    "test-" + uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("NewS3Repository failed: %v", err)
	}

	it := item("Spelling", "1")
	if err := repo.Put(ctx, it); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := repo.Get(ctx, it.ID, it.Version)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(it, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("List = %d items, %v", len(list), err)
	}
	if err := repo.Delete(ctx, it.ID, it.Version); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, it.ID, it.Version); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
}
