// Package memory is an in-process ledger with the same contract as the
// SQLite repository. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expenses/internal/core"
)

type partition struct {
	nextID int64
	items  []core.Expense
}

type Store struct {
	mu         sync.RWMutex
	partitions map[core.Category]*partition
}

func New() *Store {
	return &Store{partitions: map[core.Category]*partition{}}
}

// Initialize creates any missing partition and leaves existing ones alone.
func (s *Store) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range core.Categories() {
		if _, ok := s.partitions[c]; !ok {
			s.partitions[c] = &partition{nextID: 1}
		}
	}
	return nil
}

func (s *Store) partition(c core.Category) (*partition, error) {
	p, ok := s.partitions[c]
	if !ok {
		return nil, fmt.Errorf("%w: no partition for %s", core.ErrUnknownCategory, c)
	}
	return p, nil
}

// Add stores the expense under a fresh id. Ids are never reused.
func (s *Store) Add(_ context.Context, e core.NewExpense) (int64, error) {
	e = e.Normalized()
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.partition(e.Category)
	if err != nil {
		return 0, err
	}
	id := p.nextID
	p.nextID++
	p.items = append(p.items, core.Expense{ID: id, Date: e.Date, Title: e.Title, Cost: e.Cost})
	return id, nil
}

func (s *Store) ListAll(_ context.Context, c core.Category) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.partition(c)
	if err != nil {
		return nil, err
	}
	return append(make([]core.Expense, 0, len(p.items)), p.items...), nil
}

func (s *Store) ListCombined(_ context.Context) ([]core.TaggedExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.TaggedExpense, 0)
	for _, c := range core.Categories() {
		p, ok := s.partitions[c]
		if !ok {
			continue
		}
		for _, e := range p.items {
			out = append(out, e.Tag(c))
		}
	}
	return out, nil
}

// Delete removes id if present; absent ids are ignored.
func (s *Store) Delete(_ context.Context, c core.Category, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.partition(c)
	if err != nil {
		return err
	}
	for i, e := range p.items {
		if e.ID == id {
			p.items = append(p.items[:i], p.items[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
