// Package store persists findings and ignore lists through a small
// project-scoped key/value interface with several backends.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// PluginData is the host's per-project key/value store. Get reports false
// when the key has never been written.
type PluginData interface {
	Get(ctx context.Context, project, key string) (string, bool, error)
	Put(ctx context.Context, project, key, value string) error
}

func checkKey(project, key string) error {
	if strings.TrimSpace(project) == "" {
		return errors.NewValidation("project", "project name must not be empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.NewValidation("key", "key must not be empty")
	}
	return nil
}

// Memory is an in-process PluginData.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, project, key string) (string, bool, error) {
	if err := checkKey(project, key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[project][key]
	return v, ok, nil
}

func (m *Memory) Put(_ context.Context, project, key, value string) error {
	if err := checkKey(project, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[project] == nil {
		m.data[project] = make(map[string]string)
	}
	m.data[project][key] = value
	return nil
}
