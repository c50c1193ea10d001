// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
)

// Storage keeps credits in process memory. They are lost on restart.
type Storage struct {
	mutex    sync.Mutex
	credits  map[uint256.Int]storage.Credits
	stranded uint256.Int
}

func NewStorage() *Storage {
	return &Storage{credits: make(map[uint256.Int]storage.Credits)}
}

func (s *Storage) Get(_ context.Context, amount *uint256.Int) (storage.Credits, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.credits[*amount], nil
}

func (s *Storage) Put(_ context.Context, amount *uint256.Int, prev, next storage.Credits) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if cur := s.credits[*amount]; cur != prev {
		return fmt.Errorf("%w: credits for %v are %v, expected %v", storage.ErrStorageRace, amount, cur, prev)
	}
	if next.IsZero() {
		delete(s.credits, *amount)
	} else {
		s.credits[*amount] = next
	}
	return nil
}

func (s *Storage) All(_ context.Context) ([]storage.Entry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries := make([]storage.Entry, 0, len(s.credits))
	for amount, credits := range s.credits {
		amount := amount
		entries = append(entries, storage.Entry{Amount: &amount, Credits: credits})
	}
	storage.SortEntries(entries)
	return entries, nil
}

func (s *Storage) Stranded(_ context.Context) (*uint256.Int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stranded.Clone(), nil
}

func (s *Storage) PutStranded(_ context.Context, prev, next *uint256.Int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.stranded.Eq(prev) {
		return fmt.Errorf("%w: stranded output is %v, expected %v", storage.ErrStorageRace, &s.stranded, prev)
	}
	s.stranded.Set(next)
	return nil
}
