// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"errors"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/conductor/util/redislock"
)

type KeeperConfig struct {
	Enable   bool          `koanf:"enable"`
	Interval time.Duration `koanf:"interval" reload:"hot"`
	// RetryRestored resubmits amounts whose credits were restored after a failed action.
	RetryRestored bool `koanf:"retry-restored" reload:"hot"`
	MaxBacklog    int  `koanf:"max-backlog" reload:"hot"`
}

type WatcherConfig struct {
	Enable        bool   `koanf:"enable"`
	FromPosition  uint64 `koanf:"from-position"`
	Lookback      uint64 `koanf:"lookback"`
	RescanDepth   uint64 `koanf:"rescan-depth" reload:"hot"`
	MaxRange      uint64 `koanf:"max-range" reload:"hot"`
	SeenCacheSize int    `koanf:"seen-cache-size"`
}

type Config struct {
	MaxBatchSize int                 `koanf:"max-batch-size" reload:"hot"`
	Keeper       KeeperConfig        `koanf:"keeper"`
	Watcher      WatcherConfig       `koanf:"watcher"`
	RedisURL     string              `koanf:"redis-url"`
	RedisLock    redislock.SimpleCfg `koanf:"redis-lock" reload:"hot"`
}

type ConfigFetcher func() *Config

func (c *Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return errors.New("max batch size must be positive")
	}
	if c.Keeper.Enable && c.Keeper.Interval <= 0 {
		return errors.New("keeper interval must be positive")
	}
	if c.Keeper.Enable && c.Keeper.MaxBacklog < c.MaxBatchSize {
		return errors.New("keeper max backlog must hold at least one batch")
	}
	if c.Watcher.Enable {
		if c.Watcher.MaxRange == 0 {
			return errors.New("watcher max range must be positive")
		}
		if c.Watcher.SeenCacheSize <= 0 {
			return errors.New("watcher seen cache size must be positive")
		}
	}
	if c.RedisLock.Enable && c.RedisURL == "" {
		return errors.New("redis lock enabled without a redis url")
	}
	return c.RedisLock.Validate()
}

var DefaultKeeperConfig = KeeperConfig{
	Enable:        true,
	Interval:      time.Second * 15,
	RetryRestored: true,
	MaxBacklog:    4096,
}

var DefaultWatcherConfig = WatcherConfig{
	Enable:        true,
	FromPosition:  0,
	Lookback:      7200,
	RescanDepth:   8,
	MaxRange:      1000,
	SeenCacheSize: 4096,
}

var DefaultConfig = Config{
	MaxBatchSize: 64,
	Keeper:       DefaultKeeperConfig,
	Watcher:      DefaultWatcherConfig,
	RedisURL:     "",
	RedisLock:    redislock.DefaultCfg,
}

var TestConfig = Config{
	MaxBatchSize: 16,
	Keeper: KeeperConfig{
		Enable:        false,
		Interval:      time.Millisecond * 10,
		RetryRestored: true,
		MaxBacklog:    64,
	},
	Watcher: WatcherConfig{
		Enable:        false,
		Lookback:      1000,
		RescanDepth:   2,
		MaxRange:      100,
		SeenCacheSize: 128,
	},
	RedisLock: redislock.DefaultCfg,
}

func KeeperConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enable", DefaultKeeperConfig.Enable, "periodically execute rides for newly announced messages")
	f.Duration(prefix+".interval", DefaultKeeperConfig.Interval, "time between keeper passes")
	f.Bool(prefix+".retry-restored", DefaultKeeperConfig.RetryRestored, "resubmit amounts holding both credits after a failed value action")
	f.Int(prefix+".max-backlog", DefaultKeeperConfig.MaxBacklog, "maximum number of announced amounts remembered while waiting to be executed")
}

func WatcherConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enable", DefaultWatcherConfig.Enable, "watch the messaging core for messages addressed to the conductor")
	f.Uint64(prefix+".from-position", DefaultWatcherConfig.FromPosition, "position to start watching from (0 means head minus lookback)")
	f.Uint64(prefix+".lookback", DefaultWatcherConfig.Lookback, "how far behind head to start watching when from-position is unset")
	f.Uint64(prefix+".rescan-depth", DefaultWatcherConfig.RescanDepth, "positions already scanned that are scanned again to survive reorgs")
	f.Uint64(prefix+".max-range", DefaultWatcherConfig.MaxRange, "maximum positions scanned per pass")
	f.Int(prefix+".seen-cache-size", DefaultWatcherConfig.SeenCacheSize, "number of recently seen messages remembered for deduplication")
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Int(prefix+".max-batch-size", DefaultConfig.MaxBatchSize, "maximum number of rides executed per batch")
	KeeperConfigAddOptions(prefix+".keeper", f)
	WatcherConfigAddOptions(prefix+".watcher", f)
	f.String(prefix+".redis-url", DefaultConfig.RedisURL, "redis url used by the conductor lock")
	redislock.AddConfigOptions(prefix+".redis-lock", f)
}
