package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/code-escrow/pkg/bank/account"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records map[string]*account.Record
}

// New returns a new in memory account.Store
func New() account.Store {
	return &store{
		records: make(map[string]*account.Record),
	}
}

// Get implements account.Store.Get
func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[address]
	if !ok {
		return nil, account.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// SaveBatch implements account.Store.SaveBatch
func (s *store) SaveBatch(_ context.Context, records ...*account.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, record := range records {
		if record.IsPurged() {
			delete(s.records, record.Address)
			continue
		}

		if existing, ok := s.records[record.Address]; ok {
			record.Id = existing.Id
		} else {
			s.last++
			record.Id = s.last
		}
		record.LastUpdatedAt = now

		cloned := record.Clone()
		s.records[record.Address] = &cloned
	}

	return nil
}

// Count implements account.Store.Count
func (s *store) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.records)), nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = 0
	s.records = make(map[string]*account.Record)
}
