package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// Plugin data keys.
const (
	ResultsKeyPrefix = "results-"
	IgnoreListKey    = "ignore-list"
)

// ResultsKey returns the key holding one book's findings, e.g. "results-MAT".
func ResultsKey(book int) (string, error) {
	code := canon.CodeFromNum(book)
	if code == "" {
		return "", errors.NewValidation("book", "unknown book number")
	}
	return ResultsKeyPrefix + code, nil
}

func getJSON[T any](ctx context.Context, data PluginData, project, key string) ([]T, error) {
	raw, ok, err := data.Get(ctx, project, key)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if !ok || strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Path: project + "/" + key, Message: err.Error(), Err: err}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func putJSON[T any](ctx context.Context, data PluginData, project, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return data.Put(ctx, project, key, string(raw))
}

// ResultStore keeps the findings of each project and book. Put replaces a
// book's findings wholesale.
type ResultStore struct {
	data PluginData
}

// NewResultStore returns a ResultStore over data.
func NewResultStore(data PluginData) *ResultStore {
	return &ResultStore{data: data}
}

// Get returns a book's findings, or an empty slice if none were stored.
func (s *ResultStore) Get(ctx context.Context, project string, book int) ([]checks.Finding, error) {
	key, err := ResultsKey(book)
	if err != nil {
		return nil, err
	}
	return getJSON[checks.Finding](ctx, s.data, project, key)
}

// Put replaces a book's findings.
func (s *ResultStore) Put(ctx context.Context, project string, book int, findings []checks.Finding) error {
	key, err := ResultsKey(book)
	if err != nil {
		return err
	}
	return putJSON(ctx, s.data, project, key, findings)
}

// IgnoreStore keeps each project's dismissed findings. Add and Remove do a
// read-modify-write under a lock held by this value only; other processes
// sharing the backend are not coordinated.
type IgnoreStore struct {
	data PluginData
	mu   sync.Mutex
}

// NewIgnoreStore returns an IgnoreStore over data.
func NewIgnoreStore(data PluginData) *IgnoreStore {
	return &IgnoreStore{data: data}
}

// Get returns the ignore list, or an empty slice if none was stored.
func (s *IgnoreStore) Get(ctx context.Context, project string) ([]checks.IgnoreItem, error) {
	return getJSON[checks.IgnoreItem](ctx, s.data, project, IgnoreListKey)
}

// Put replaces the ignore list.
func (s *IgnoreStore) Put(ctx context.Context, project string, items []checks.IgnoreItem) error {
	return putJSON(ctx, s.data, project, IgnoreListKey, items)
}

// Keys returns the set of ignored finding keys.
func (s *IgnoreStore) Keys(ctx context.Context, project string) (map[string]struct{}, error) {
	items, err := s.Get(ctx, project)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(items))
	for _, it := range items {
		keys[it.Key] = struct{}{}
	}
	return keys, nil
}

// Add stores items, replacing any existing item with the same key.
func (s *IgnoreStore) Add(ctx context.Context, project string, items ...checks.IgnoreItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, project)
	if err != nil {
		return err
	}
	index := make(map[string]int, len(current))
	for i, it := range current {
		index[it.Key] = i
	}
	for _, it := range items {
		if it.Key == "" {
			return errors.NewValidation("key", "ignore item has no key")
		}
		if i, ok := index[it.Key]; ok {
			current[i] = it
			continue
		}
		index[it.Key] = len(current)
		current = append(current, it)
	}
	return s.Put(ctx, project, current)
}

// Remove deletes items by key and reports how many were removed.
func (s *IgnoreStore) Remove(ctx context.Context, project string, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, project)
	if err != nil {
		return 0, err
	}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	kept := current[:0]
	for _, it := range current {
		if !drop[it.Key] {
			kept = append(kept, it)
		}
	}
	removed := len(current) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.Put(ctx, project, kept)
}
