// Package memstore is the in-memory target repository. The CLI runs on it,
// and the application-layer tests use it in place of Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/aivis/internal/domain/target"
	"github.com/turtacn/aivis/pkg/errors"
	"github.com/turtacn/aivis/pkg/types/common"
)

// TargetStore is a mutex-guarded map keyed by target ID. Values are stored
// as copies so callers can never alias the store's state.
type TargetStore struct {
	mu      sync.RWMutex
	targets map[common.ID]target.Target
}

// NewTargetStore builds an empty store.
func NewTargetStore() *TargetStore {
	return &TargetStore{targets: make(map[common.ID]target.Target)}
}

var _ target.Repository = (*TargetStore)(nil)

// Create stores a new target; duplicate IDs conflict.
func (s *TargetStore) Create(_ context.Context, t *target.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[t.ID]; ok {
		return errors.Conflict("target already exists: " + t.ID.String())
	}
	s.targets[t.ID] = clone(t)
	return nil
}

// GetByID returns a copy of the stored target.
func (s *TargetStore) GetByID(_ context.Context, id common.ID) (*target.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, errors.NotFound("target not found: " + id.String())
	}
	out := clone(&t)
	return &out, nil
}

// Update replaces an existing target.
func (s *TargetStore) Update(_ context.Context, t *target.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[t.ID]; !ok {
		return errors.NotFound("target not found: " + t.ID.String())
	}
	s.targets[t.ID] = clone(t)
	return nil
}

// Delete removes a target.
func (s *TargetStore) Delete(_ context.Context, id common.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[id]; !ok {
		return errors.NotFound("target not found: " + id.String())
	}
	delete(s.targets, id)
	return nil
}

// List returns targets newest first.
func (s *TargetStore) List(_ context.Context, limit, offset int) ([]*target.Target, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	all := make([]target.Target, 0, len(s.targets))
	for _, t := range s.targets {
		all = append(all, t)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*target.Target, len(all))
	for i := range all {
		t := clone(&all[i])
		out[i] = &t
	}
	return out, nil
}

// clone deep-copies the slices so store and caller never share state.
func clone(t *target.Target) target.Target {
	c := *t
	c.Keywords = append(c.Keywords[:0:0], t.Keywords...)
	c.Prompts = append(c.Prompts[:0:0], t.Prompts...)
	return c
}
