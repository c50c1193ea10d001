// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

// Package creditstore persists the conductor's per amount credit tables and its
// stranded output.
package creditstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/conductor/conductor/creditstore/dbstorage"
	"github.com/offchainlabs/conductor/conductor/creditstore/memory"
	"github.com/offchainlabs/conductor/conductor/creditstore/redisstorage"
	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
	"github.com/offchainlabs/conductor/util/redisutil"
)

// Storage is implemented by every credit store backend. Writes are
// conditional: they fail with storage.ErrStorageRace unless the stored value
// still equals prev.
type Storage interface {
	Get(ctx context.Context, amount *uint256.Int) (storage.Credits, error)
	Put(ctx context.Context, amount *uint256.Int, prev, next storage.Credits) error
	// All lists every amount with non-zero credits in ascending order.
	All(ctx context.Context) ([]storage.Entry, error)
	Stranded(ctx context.Context) (*uint256.Int, error)
	PutStranded(ctx context.Context, prev, next *uint256.Int) error
}

const (
	BackendMemory = "memory"
	BackendDB     = "db"
	BackendRedis  = "redis"
)

type DBConfig struct {
	Directory string `koanf:"directory"`
	Engine    string `koanf:"engine"`
	Cache     int    `koanf:"cache"`
	Handles   int    `koanf:"handles"`
}

type Config struct {
	Backend  string   `koanf:"backend"`
	DB       DBConfig `koanf:"db"`
	RedisURL string   `koanf:"redis-url"`
	RedisKey string   `koanf:"redis-key"`
}

var DefaultDBConfig = DBConfig{
	Directory: "credits",
	Engine:    "leveldb",
	Cache:     16,
	Handles:   16,
}

var DefaultConfig = Config{
	Backend:  BackendDB,
	DB:       DefaultDBConfig,
	RedisURL: "",
	RedisKey: "conductor",
}

var TestConfig = Config{
	Backend:  BackendMemory,
	DB:       DefaultDBConfig,
	RedisKey: "conductor-test",
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".backend", DefaultConfig.Backend, "credit store backend (memory, db or redis)")
	f.String(prefix+".db.directory", DefaultConfig.DB.Directory, "directory of the credit database")
	f.String(prefix+".db.engine", DefaultConfig.DB.Engine, "credit database engine (leveldb or pebble)")
	f.Int(prefix+".db.cache", DefaultConfig.DB.Cache, "credit database cache size in megabytes")
	f.Int(prefix+".db.handles", DefaultConfig.DB.Handles, "number of file handles of the credit database")
	f.String(prefix+".redis-url", DefaultConfig.RedisURL, "redis url of the shared credit store")
	f.String(prefix+".redis-key", DefaultConfig.RedisKey, "redis key prefix of the shared credit store")
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendDB:
		if c.DB.Directory == "" {
			return errors.New("credit store db directory is empty")
		}
		if c.DB.Engine != "leveldb" && c.DB.Engine != "pebble" {
			return fmt.Errorf("invalid credit store db engine %q", c.DB.Engine)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("credit store redis url is empty")
		}
		if c.RedisKey == "" {
			return errors.New("credit store redis key is empty")
		}
	default:
		return fmt.Errorf("invalid credit store backend %q", c.Backend)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the configured backend. Relative db directories are resolved
// against dataDir. The returned closer releases the backend's resources.
func Open(config *Config, dataDir string) (Storage, io.Closer, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	switch config.Backend {
	case BackendMemory:
		log.Warn("credit store is in memory, credits will be lost on restart")
		return memory.NewStorage(), nopCloser{}, nil
	case BackendDB:
		dir := config.DB.Directory
		if dataDir != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(dataDir, dir)
		}
		db, err := rawdb.Open(rawdb.OpenOptions{
			Type:      config.DB.Engine,
			Directory: dir,
			Namespace: "conductor/credits/",
			Cache:     config.DB.Cache,
			Handles:   config.DB.Handles,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening credit database at %s: %w", dir, err)
		}
		log.Info("opened credit database", "dir", dir, "engine", config.DB.Engine)
		return dbstorage.New(rawdb.NewTable(db, storage.CreditStorePrefix)), db, nil
	case BackendRedis:
		client, err := redisutil.RedisClientFromURL(config.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		s, err := redisstorage.NewStorage(client, config.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return s, client, nil
	}
	return nil, nil, fmt.Errorf("invalid credit store backend %q", config.Backend)
}
