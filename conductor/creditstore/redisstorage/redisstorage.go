// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package redisstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
)

// Storage keeps the credit tables in a redis hash so that several conductors
// can share them. Conditional writes use optimistic WATCH transactions.
type Storage struct {
	client      redis.UniversalClient
	creditsKey  string
	strandedKey string
}

func NewStorage(client redis.UniversalClient, key string) (*Storage, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	return &Storage{
		client:      client,
		creditsKey:  key + ".credits",
		strandedKey: key + ".stranded",
	}, nil
}

func field(amount *uint256.Int) string {
	return amount.Dec()
}

// reader is satisfied by both the client and a WATCH transaction.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func readCredits(ctx context.Context, cmd reader, key string, amount *uint256.Int) (storage.Credits, error) {
	data, err := cmd.HGet(ctx, key, field(amount)).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.Credits{}, nil
	}
	if err != nil {
		return storage.Credits{}, err
	}
	return storage.DecodeCredits(data)
}

func (s *Storage) Get(ctx context.Context, amount *uint256.Int) (storage.Credits, error) {
	return readCredits(ctx, s.client, s.creditsKey, amount)
}

func (s *Storage) Put(ctx context.Context, amount *uint256.Int, prev, next storage.Credits) error {
	var encoded []byte
	if !next.IsZero() {
		var err error
		encoded, err = storage.EncodeCredits(next)
		if err != nil {
			return fmt.Errorf("encoding credits: %w", err)
		}
	}
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readCredits(ctx, tx, s.creditsKey, amount)
		if err != nil {
			return err
		}
		if cur != prev {
			return fmt.Errorf("%w: credits for %v are %v, expected %v", storage.ErrStorageRace, amount, cur, prev)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if encoded == nil {
				pipe.HDel(ctx, s.creditsKey, field(amount))
			} else {
				pipe.HSet(ctx, s.creditsKey, field(amount), encoded)
			}
			return nil
		})
		return err
	}, s.creditsKey)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: credits for %v changed concurrently", storage.ErrStorageRace, amount)
	}
	return err
}

func (s *Storage) All(ctx context.Context) ([]storage.Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.creditsKey).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]storage.Entry, 0, len(fields))
	for f, data := range fields {
		amount, err := uint256.FromDecimal(f)
		if err != nil {
			return nil, fmt.Errorf("parsing credit field %q: %w", f, err)
		}
		credits, err := storage.DecodeCredits([]byte(data))
		if err != nil {
			return nil, err
		}
		entries = append(entries, storage.Entry{Amount: amount, Credits: credits})
	}
	storage.SortEntries(entries)
	return entries, nil
}

func readStranded(ctx context.Context, cmd reader, key string) (*uint256.Int, error) {
	val, err := cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return uint256.FromDecimal(val)
}

func (s *Storage) Stranded(ctx context.Context) (*uint256.Int, error) {
	return readStranded(ctx, s.client, s.strandedKey)
}

func (s *Storage) PutStranded(ctx context.Context, prev, next *uint256.Int) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readStranded(ctx, tx, s.strandedKey)
		if err != nil {
			return err
		}
		if !cur.Eq(prev) {
			return fmt.Errorf("%w: stranded output is %v, expected %v", storage.ErrStorageRace, cur, prev)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next.IsZero() {
				pipe.Del(ctx, s.strandedKey)
			} else {
				pipe.Set(ctx, s.strandedKey, next.Dec(), 0)
			}
			return nil
		})
		return err
	}, s.strandedKey)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: stranded output changed concurrently", storage.ErrStorageRace)
	}
	return err
}
