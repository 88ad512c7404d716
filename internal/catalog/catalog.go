package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/script"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/cache"
)

// DefaultListTTL is how long a repository listing is served from memory.
const DefaultListTTL = 5 * time.Minute

// Options configure a Catalog.
type Options struct {
	ListTTL time.Duration
	Logger  *slog.Logger
	// Scripts compiles fixScript bodies at publish time. Defaults to
	// script.Default().
	Scripts *script.Registry
}

// Catalog applies publish rules on top of a Repository and caches its
// listing.
type Catalog struct {
	repo    Repository
	items   *cache.TTLCache[string, checks.Item]
	scripts *script.Registry
	log     *slog.Logger

	// publishMu serialises the read-check-write of Publish.
	publishMu sync.Mutex
}

// New wraps repo.
func New(repo Repository, opts Options) *Catalog {
	ttl := opts.ListTTL
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	scripts := opts.Scripts
	if scripts == nil {
		scripts = script.Default()
	}
	c := &Catalog{repo: repo, scripts: scripts, log: log}
	c.items = cache.New(ttl, func(ctx context.Context) (map[string]checks.Item, error) {
		items, err := repo.List(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "listing catalog")
		}
		out := make(map[string]checks.Item, len(items))
		for _, it := range items {
			out[ref(it.ID, it.Version)] = it
		}
		return out, nil
	})
	return c
}

// List returns every published item version, sorted by name then version.
func (c *Catalog) List(ctx context.Context) ([]checks.Item, error) {
	all, err := c.items.All(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]checks.Item, 0, len(all))
	for _, it := range all {
		items = append(items, it)
	}
	sortItems(items)
	return items, nil
}

// Len returns the number of published item versions.
func (c *Catalog) Len(ctx context.Context) (int, error) {
	all, err := c.items.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// Latest returns the highest version of every item ID.
func (c *Catalog) Latest(ctx context.Context) ([]checks.Item, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	latest := make(map[uuid.UUID]int)
	var out []checks.Item
	for _, it := range all {
		i, ok := latest[it.ID]
		if !ok {
			latest[it.ID] = len(out)
			out = append(out, it)
			continue
		}
		if checks.CompareVersions(it.Version, out[i].Version) > 0 {
			out[i] = it
		}
	}
	sortItems(out)
	return out, nil
}

// Select returns the latest version of each named item. A selector matches
// an item's ID or, case-insensitively, its name. No selectors selects
// everything.
func (c *Catalog) Select(ctx context.Context, selectors ...string) ([]checks.Item, error) {
	latest, err := c.Latest(ctx)
	if err != nil || len(selectors) == 0 {
		return latest, err
	}
	var out []checks.Item
	seen := make(map[uuid.UUID]bool)
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		found := false
		for _, it := range latest {
			if it.ID.String() == strings.ToLower(sel) || strings.EqualFold(it.Name, sel) {
				found = true
				if !seen[it.ID] {
					seen[it.ID] = true
					out = append(out, it)
				}
			}
		}
		if !found {
			return nil, errors.NewNotFound("check", sel)
		}
	}
	return out, nil
}

// Get returns one item version.
func (c *Catalog) Get(ctx context.Context, id uuid.UUID, version string) (checks.Item, error) {
	it, ok, err := c.items.Get(ctx, ref(id, version))
	if err != nil {
		return checks.Item{}, err
	}
	if !ok {
		return checks.Item{}, errors.NewNotFound("check", ref(id, version))
	}
	return it, nil
}

// Verify reports whether it could be published: its fields validate, its
// pipeline builds and every fixScript compiles against reg.
func Verify(reg *script.Registry, it checks.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	p, err := it.Pipeline()
	if err != nil {
		return err
	}
	for _, ph := range p.Phases {
		if ph.Kind != checks.PhaseScript {
			continue
		}
		if _, err := reg.Compile(ph.Source); err != nil {
			return err
		}
	}
	return nil
}

// Publish validates it and adds it to the catalog. Nothing is written when
// validation fails, when the name and version are already published, or
// when the item's ID is already published at the same or a higher version.
// The checks read the repository itself, not the cached listing, so a
// version published through another Catalog is seen.
func (c *Catalog) Publish(ctx context.Context, it checks.Item) (checks.Item, error) {
	if err := Verify(c.scripts, it); err != nil {
		return checks.Item{}, err
	}
	it = trimmed(it)

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	existing, err := c.repo.List(ctx)
	if err != nil {
		return checks.Item{}, errors.Wrap(err, "listing catalog")
	}
	for _, e := range existing {
		if strings.EqualFold(e.Name, it.Name) && checks.CompareVersions(e.Version, it.Version) == 0 {
			return checks.Item{}, errors.NewAlreadyExists("check", it.Key())
		}
	}
	for _, e := range existing {
		if e.ID == it.ID && checks.CompareVersions(it.Version, e.Version) <= 0 {
			return checks.Item{}, errors.NewValidation("version",
				fmt.Sprintf("version %s must be greater than the published version %s", it.Version, e.Version))
		}
	}

	if err := c.repo.Put(ctx, it); err != nil {
		return checks.Item{}, errors.Wrapf(err, "publishing %s", it.Key())
	}
	c.items.Set(ref(it.ID, it.Version), it)
	c.log.Info("check published", "check", it.Name, "version", it.Version, "id", it.ID)
	return it, nil
}

// Unpublish removes one item version.
func (c *Catalog) Unpublish(ctx context.Context, id uuid.UUID, version string) error {
	if err := c.repo.Delete(ctx, id, version); err != nil {
		return err
	}
	c.items.Delete(ref(id, version))
	c.log.Info("check unpublished", "id", id, "version", version)
	return nil
}

// Refresh drops the cached listing.
func (c *Catalog) Refresh() {
	c.items.Invalidate()
}

func trimmed(it checks.Item) checks.Item {
	it.Name = strings.TrimSpace(it.Name)
	it.Version = strings.TrimSpace(it.Version)
	it.DefaultDescription = strings.TrimSpace(it.DefaultDescription)
	return it
}
