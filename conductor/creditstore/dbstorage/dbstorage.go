// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package dbstorage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
)

var (
	// Keys outside the credit range sort before it, hence the prefix ".".
	strandedKey     = []byte(".stranded")
	creditKeyPrefix = []byte("a")
)

// Storage implements ethdb based storage for the credit tables.
type Storage struct {
	// Lock serializes the read-compare-write of conditional puts.
	lock sync.Mutex
	db   ethdb.Database
}

func New(db ethdb.Database) *Storage {
	return &Storage{db: db}
}

func creditKey(amount *uint256.Int) []byte {
	return append(append([]byte{}, creditKeyPrefix...), storage.AmountKey(amount)...)
}

func (s *Storage) get(amount *uint256.Int) (storage.Credits, error) {
	key := creditKey(amount)
	has, err := s.db.Has(key)
	if err != nil {
		return storage.Credits{}, err
	}
	if !has {
		return storage.Credits{}, nil
	}
	val, err := s.db.Get(key)
	if err != nil {
		return storage.Credits{}, err
	}
	return storage.DecodeCredits(val)
}

func (s *Storage) Get(_ context.Context, amount *uint256.Int) (storage.Credits, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.get(amount)
}

func (s *Storage) Put(_ context.Context, amount *uint256.Int, prev, next storage.Credits) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cur, err := s.get(amount)
	if err != nil {
		return err
	}
	if cur != prev {
		return fmt.Errorf("%w: credits for %v are %v, expected %v", storage.ErrStorageRace, amount, cur, prev)
	}
	if next.IsZero() {
		return s.db.Delete(creditKey(amount))
	}
	val, err := storage.EncodeCredits(next)
	if err != nil {
		return fmt.Errorf("encoding credits: %w", err)
	}
	return s.db.Put(creditKey(amount), val)
}

func (s *Storage) All(_ context.Context) ([]storage.Entry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	it := s.db.NewIterator(creditKeyPrefix, nil)
	defer it.Release()
	var entries []storage.Entry
	for it.Next() {
		amount, err := storage.AmountFromKey(it.Key()[len(creditKeyPrefix):])
		if err != nil {
			return nil, err
		}
		credits, err := storage.DecodeCredits(it.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, storage.Entry{Amount: amount, Credits: credits})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterating credits: %w", err)
	}
	return entries, nil
}

func (s *Storage) stranded() (*uint256.Int, error) {
	has, err := s.db.Has(strandedKey)
	if err != nil {
		return nil, err
	}
	if !has {
		return new(uint256.Int), nil
	}
	val, err := s.db.Get(strandedKey)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(val), nil
}

func (s *Storage) Stranded(_ context.Context) (*uint256.Int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stranded()
}

func (s *Storage) PutStranded(_ context.Context, prev, next *uint256.Int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cur, err := s.stranded()
	if err != nil {
		return err
	}
	if !cur.Eq(prev) {
		return fmt.Errorf("%w: stranded output is %v, expected %v", storage.ErrStorageRace, cur, prev)
	}
	if next.IsZero() {
		return s.db.Delete(strandedKey)
	}
	return s.db.Put(strandedKey, storage.AmountKey(next))
}
