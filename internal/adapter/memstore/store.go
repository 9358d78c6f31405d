// Package memstore provides in-process implementations of the backing store
// and the session ledger for local development and tests.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/backingstore"
)

// Store keeps scripts and assets in memory.
type Store struct {
	mu      sync.RWMutex
	scripts map[string]string
	assets  map[string][]byte
}

var _ backingstore.Store = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		scripts: make(map[string]string),
		assets:  make(map[string][]byte),
	}
}

func (s *Store) GetScript(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.scripts[name]
	if !ok {
		return "", fmt.Errorf("script %s: %w", name, domain.ErrNotFound)
	}
	return src, nil
}

func (s *Store) UpsertScript(_ context.Context, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[name] = content
	return nil
}

func (s *Store) DeleteScript(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scripts[name]; !ok {
		return fmt.Errorf("script %s: %w", name, domain.ErrNotFound)
	}
	delete(s.scripts, name)
	return nil
}

func (s *Store) GetAsset(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.assets[path]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", path, domain.ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) UpsertAsset(_ context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[path] = append([]byte(nil), content...)
	return nil
}

func (s *Store) DeleteAsset(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[path]; !ok {
		return fmt.Errorf("asset %s: %w", path, domain.ErrNotFound)
	}
	delete(s.assets, path)
	return nil
}

// Scripts returns the stored script names.
func (s *Store) Scripts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.scripts))
	for name := range s.scripts {
		out = append(out, name)
	}
	return out
}
