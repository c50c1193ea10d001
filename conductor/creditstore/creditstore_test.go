// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package creditstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/conductor/creditstore/dbstorage"
	"github.com/offchainlabs/conductor/conductor/creditstore/memory"
	"github.com/offchainlabs/conductor/conductor/creditstore/redisstorage"
	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
	"github.com/offchainlabs/conductor/util/redisutil"
)

func newRedisStorage(ctx context.Context, t *testing.T) *redisstorage.Storage {
	t.Helper()
	redisUrl := redisutil.CreateTestRedis(ctx, t)
	client, err := redisutil.RedisClientFromURL(redisUrl)
	if err != nil {
		t.Fatalf("RedisClientFromURL(%q) unexpected error: %v", redisUrl, err)
	}
	s, err := redisstorage.NewStorage(client, t.Name())
	if err != nil {
		t.Fatalf("redisstorage.NewStorage() unexpected error: %v", err)
	}
	return s
}

// Returns a map of all empty storages.
func storages(ctx context.Context, t *testing.T) map[string]Storage {
	t.Helper()
	return map[string]Storage{
		"memory": memory.NewStorage(),
		"db":     dbstorage.New(rawdb.NewTable(rawdb.NewMemoryDatabase(), storage.CreditStorePrefix)),
		"redis":  newRedisStorage(ctx, t),
	}
}

func amounts(values ...uint64) []*uint256.Int {
	var res []*uint256.Int
	for _, v := range values {
		res = append(res, uint256.NewInt(v))
	}
	return res
}

func TestPutAndGet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for name, s := range storages(ctx, t) {
		t.Run(name, func(t *testing.T) {
			amount := uint256.NewInt(50)
			got, err := s.Get(ctx, amount)
			if err != nil {
				t.Fatalf("Get(%v) unexpected error: %v", amount, err)
			}
			if !got.IsZero() {
				t.Errorf("Get(%v) = %v want zero credits", amount, got)
			}
			want := storage.Credits{Token: 2}
			if err := s.Put(ctx, amount, storage.Credits{}, want); err != nil {
				t.Fatalf("Put(%v) unexpected error: %v", amount, err)
			}
			got, err = s.Get(ctx, amount)
			if err != nil {
				t.Fatalf("Get(%v) unexpected error: %v", amount, err)
			}
			if got != want {
				t.Errorf("Get(%v) = %v want %v", amount, got, want)
			}
			if err := s.Put(ctx, amount, want, storage.Credits{}); err != nil {
				t.Fatalf("Put(%v) unexpected error: %v", amount, err)
			}
			entries, err := s.All(ctx)
			if err != nil {
				t.Fatalf("All() unexpected error: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("All() = %v want no entries after clearing", entries)
			}
		})
	}
}

func TestPutDetectsRace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for name, s := range storages(ctx, t) {
		t.Run(name, func(t *testing.T) {
			amount := uint256.NewInt(3)
			if err := s.Put(ctx, amount, storage.Credits{}, storage.Credits{Authorization: 1}); err != nil {
				t.Fatalf("Put(%v) unexpected error: %v", amount, err)
			}
			err := s.Put(ctx, amount, storage.Credits{}, storage.Credits{Token: 1})
			if !errors.Is(err, storage.ErrStorageRace) {
				t.Fatalf("Put(%v) with stale prev = %v want ErrStorageRace", amount, err)
			}
			got, err := s.Get(ctx, amount)
			if err != nil {
				t.Fatalf("Get(%v) unexpected error: %v", amount, err)
			}
			if want := (storage.Credits{Authorization: 1}); got != want {
				t.Errorf("Get(%v) = %v want %v", amount, got, want)
			}
		})
	}
}

func TestAllIsOrdered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	for name, s := range storages(ctx, t) {
		t.Run(name, func(t *testing.T) {
			var want []storage.Entry
			for i, amount := range append(amounts(9, 10, 1, 256), huge) {
				credits := storage.Credits{Token: uint64(i + 1)}
				if err := s.Put(ctx, amount, storage.Credits{}, credits); err != nil {
					t.Fatalf("Put(%v) unexpected error: %v", amount, err)
				}
				want = append(want, storage.Entry{Amount: amount, Credits: credits})
			}
			storage.SortEntries(want)
			got, err := s.All(ctx)
			if err != nil {
				t.Fatalf("All() unexpected error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("All() unexpected diff:\n%s", diff)
			}
		})
	}
}

func TestStranded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for name, s := range storages(ctx, t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Stranded(ctx)
			if err != nil {
				t.Fatalf("Stranded() unexpected error: %v", err)
			}
			if !got.IsZero() {
				t.Errorf("Stranded() = %v want 0", got)
			}
			if err := s.PutStranded(ctx, new(uint256.Int), uint256.NewInt(42)); err != nil {
				t.Fatalf("PutStranded() unexpected error: %v", err)
			}
			err = s.PutStranded(ctx, new(uint256.Int), uint256.NewInt(1))
			if !errors.Is(err, storage.ErrStorageRace) {
				t.Fatalf("PutStranded() with stale prev = %v want ErrStorageRace", err)
			}
			got, err = s.Stranded(ctx)
			if err != nil {
				t.Fatalf("Stranded() unexpected error: %v", err)
			}
			if !got.Eq(uint256.NewInt(42)) {
				t.Errorf("Stranded() = %v want 42", got)
			}
			if err := s.PutStranded(ctx, got, new(uint256.Int)); err != nil {
				t.Fatalf("PutStranded() unexpected error: %v", err)
			}
		})
	}
}

func TestOpenPersistsCredits(t *testing.T) {
	for _, engine := range []string{"leveldb", "pebble"} {
		t.Run(engine, func(t *testing.T) {
			ctx := context.Background()
			config := DefaultConfig
			config.DB.Engine = engine
			dataDir := t.TempDir()
			amount := uint256.NewInt(7)

			s, closer, err := Open(&config, dataDir)
			if err != nil {
				t.Fatalf("Open() unexpected error: %v", err)
			}
			if err := s.Put(ctx, amount, storage.Credits{}, storage.Credits{Token: 1}); err != nil {
				t.Fatalf("Put(%v) unexpected error: %v", amount, err)
			}
			if err := closer.Close(); err != nil {
				t.Fatalf("Close() unexpected error: %v", err)
			}

			s, closer, err = Open(&config, dataDir)
			if err != nil {
				t.Fatalf("reopening unexpected error: %v", err)
			}
			defer closer.Close()
			got, err := s.Get(ctx, amount)
			if err != nil {
				t.Fatalf("Get(%v) unexpected error: %v", amount, err)
			}
			if want := (storage.Credits{Token: 1}); got != want {
				t.Errorf("Get(%v) after reopen = %v want %v", amount, got, want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		mutate  func(*Config)
		wantErr bool
	}{
		{desc: "default", mutate: func(*Config) {}},
		{desc: "memory", mutate: func(c *Config) { c.Backend = BackendMemory }},
		{desc: "unknown backend", mutate: func(c *Config) { c.Backend = "etcd" }, wantErr: true},
		{desc: "unknown engine", mutate: func(c *Config) { c.DB.Engine = "badger" }, wantErr: true},
		{desc: "redis without url", mutate: func(c *Config) { c.Backend = BackendRedis }, wantErr: true},
		{desc: "redis", mutate: func(c *Config) { c.Backend = BackendRedis; c.RedisURL = "redis://localhost:6379/0" }},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			config := DefaultConfig
			tc.mutate(&config)
			err := config.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
