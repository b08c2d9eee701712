package memstore

import (
	"context"
	"sync"

	"github.com/idilsaglam/checklist/internal/model"
)

// Store keeps the snapshot in process memory. It backs the "memory"
// storage setting and the tests of packages built on the check list.
type Store struct {
	mu    sync.Mutex
	items []model.Item
	saves int
	err   error
}

// New seeds the store with an initial snapshot.
func New(items ...model.Item) *Store {
	return &Store{items: model.CloneItems(items)}
}

func (s *Store) Load(ctx context.Context) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneItems(s.items), nil
}

func (s *Store) Save(ctx context.Context, items []model.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.items = model.CloneItems(items)
	s.saves++
	return nil
}

// FailWith makes every later Save return err; nil restores normal writes.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Saves reports how many snapshots were written.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Snapshot returns the last written list.
func (s *Store) Snapshot() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneItems(s.items)
}
