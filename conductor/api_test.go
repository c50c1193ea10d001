// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/conductor/bridge/simbridge"
	"github.com/offchainlabs/conductor/conductor/creditstore"
	"github.com/offchainlabs/conductor/conductor/creditstore/memory"
	"github.com/offchainlabs/conductor/conductor/creditstore/redisstorage"
	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
	"github.com/offchainlabs/conductor/util/redislock"
	"github.com/offchainlabs/conductor/util/redisutil"
)

func dialAPI(t *testing.T, c *Conductor) *rpc.Client {
	t.Helper()
	server := rpc.NewServer()
	t.Cleanup(server.Stop)
	for _, api := range c.APIs() {
		Require(t, server.RegisterName(api.Namespace, api.Service))
	}
	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)
	return client
}

func TestAPI(t *testing.T) {
	ctx := context.Background()
	f := simbridge.NewFixture()
	c := newTestConductor(t, f, nil)
	client := dialAPI(t, c)

	f.SendTokenMessage(uint256.NewInt(50))
	f.SendAuthorization(uint256.NewInt(50))
	f.SendTokenMessage(uint256.NewInt(2))

	var results []RideResultJSON
	Require(t, client.CallContext(ctx, &results, "conductor_executeRides", []string{"50", "0x2", "0"}))
	require.Len(t, results, 3)
	require.Equal(t, RideSettled, results[0].Status)
	require.True(t, results[0].Output.Eq(uint256.NewInt(50)))
	require.Equal(t, RidePending, results[1].Status)
	require.Equal(t, uint64(1), results[1].Credits.Token)
	require.Equal(t, RideRejected, results[2].Status)
	require.Contains(t, results[2].Error, ErrZeroAmount.Error())

	var credits CreditsResult
	Require(t, client.CallContext(ctx, &credits, "conductor_pendingCredits", "2"))
	require.Equal(t, uint64(1), credits.Token)
	require.Zero(t, credits.Authorization)

	var all []CreditsResult
	Require(t, client.CallContext(ctx, &all, "conductor_allCredits"))
	require.Len(t, all, 1)
	require.True(t, all[0].Amount.Eq(uint256.NewInt(2)))

	var stranded *uint256.Int
	Require(t, client.CallContext(ctx, &stranded, "conductor_strandedOutput"))
	require.True(t, stranded.IsZero())
	Require(t, client.CallContext(ctx, &stranded, "conductor_forwardStranded"))
	require.True(t, stranded.IsZero())
}

func TestRedisLockSerializesConductors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	redisUrl := redisutil.CreateTestRedis(ctx, t)
	client, err := redisutil.RedisClientFromURL(redisUrl)
	Require(t, err)
	store, err := redisstorage.NewStorage(client, t.Name())
	Require(t, err)

	config := TestConfig
	config.RedisURL = redisUrl
	config.RedisLock = redislock.SimpleCfg{
		Enable:          true,
		LockoutDuration: time.Minute,
		RefreshDuration: time.Second * 30,
		Key:             t.Name() + ".lock",
	}
	fetcher := func() *Config { return &config }
	lockFetcher := func() *redislock.SimpleCfg { return &config.RedisLock }

	f := simbridge.NewFixture()
	newLocked := func() *Conductor {
		lock, err := redislock.NewSimple(client, lockFetcher, nil)
		Require(t, err)
		c, err := NewConductor(fetcher, f.Inbox(), f.Gateway(), f.Action(), store, lock, nil)
		Require(t, err)
		return c
	}
	first := newLocked()
	second := newLocked()

	amount := uint256.NewInt(30)
	f.SendTokenMessage(amount)
	results, err := first.ExecuteRides(ctx, []*uint256.Int{amount})
	Require(t, err)
	requireStatuses(t, results, RidePending)

	f.SendAuthorization(amount)
	_, err = second.ExecuteRides(ctx, []*uint256.Int{amount})
	require.ErrorIs(t, err, ErrLockNotHeld)
	_, err = second.ForwardStranded(ctx)
	require.ErrorIs(t, err, ErrLockNotHeld)

	results, err = first.ExecuteRides(ctx, []*uint256.Int{amount})
	Require(t, err)
	requireStatuses(t, results, RideSettled)
	requireNoCredits(t, second)
}

// brokenStore fails every read of one amount.
type brokenStore struct {
	creditstore.Storage
	broken *uint256.Int
}

func (s brokenStore) Get(ctx context.Context, amount *uint256.Int) (storage.Credits, error) {
	if amount.Eq(s.broken) {
		return storage.Credits{}, errors.New("disk on fire")
	}
	return s.Storage.Get(ctx, amount)
}

func TestAPIReportsRidesProcessedBeforeAbort(t *testing.T) {
	ctx := context.Background()
	f := simbridge.NewFixture()
	c := newTestConductor(t, f, brokenStore{Storage: memory.NewStorage(), broken: uint256.NewInt(7)})
	client := dialAPI(t, c)
	before := f.Balances()
	f.SendTokenMessage(uint256.NewInt(50))
	f.SendAuthorization(uint256.NewInt(50))

	var results []RideResultJSON
	err := client.CallContext(ctx, &results, "conductor_executeRides", []string{"50", "7", "8"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 1 rides")
	var dataErr rpc.DataError
	require.True(t, errors.As(err, &dataErr))
	processed, ok := dataErr.ErrorData().([]interface{})
	require.True(t, ok, "unexpected error data %v", dataErr.ErrorData())
	require.Len(t, processed, 1)
	require.Equal(t, string(RideSettled), processed[0].(map[string]interface{})["status"])

	requireBalances(t, settled(before, uint256.NewInt(50)), f.Balances())
}

func TestAPIRejectsMissingAmount(t *testing.T) {
	client := dialAPI(t, newTestConductor(t, simbridge.NewFixture(), nil))
	var credits CreditsResult
	err := client.CallContext(context.Background(), &credits, "conductor_pendingCredits", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrZeroAmount.Error())
}

type fixedSource struct {
	amounts []*uint256.Int
}

func (s *fixedSource) NextAmounts(context.Context) ([]*uint256.Int, error) {
	amounts := s.amounts
	s.amounts = nil
	return amounts, nil
}

func TestKeeperKeepsBacklogWhileLockHeldElsewhere(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	redisUrl := redisutil.CreateTestRedis(ctx, t)
	client, err := redisutil.RedisClientFromURL(redisUrl)
	Require(t, err)
	store, err := redisstorage.NewStorage(client, t.Name())
	Require(t, err)

	config := TestConfig
	config.RedisURL = redisUrl
	config.RedisLock = redislock.SimpleCfg{
		Enable:          true,
		LockoutDuration: time.Minute,
		RefreshDuration: time.Second * 30,
		Key:             t.Name() + ".lock",
	}
	fetcher := func() *Config { return &config }
	lockFetcher := func() *redislock.SimpleCfg { return &config.RedisLock }

	f := simbridge.NewFixture()
	holderLock, err := redislock.NewSimple(client, lockFetcher, nil)
	Require(t, err)
	holder, err := NewConductor(fetcher, f.Inbox(), f.Gateway(), f.Action(), store, holderLock, nil)
	Require(t, err)
	keeperLock, err := redislock.NewSimple(client, lockFetcher, nil)
	Require(t, err)
	amount := uint256.NewInt(30)
	keeper, err := NewConductor(fetcher, f.Inbox(), f.Gateway(), f.Action(), store, keeperLock, &fixedSource{amounts: []*uint256.Int{amount}})
	Require(t, err)

	before := f.Balances()
	f.SendTokenMessage(amount)
	f.SendAuthorization(amount)
	_, err = holder.ExecuteRides(ctx, nil)
	Require(t, err)

	keeper.keeperPass(ctx, struct{}{})
	require.Equal(t, []*uint256.Int{amount}, keeper.backlog)
	requireBalances(t, before, f.Balances())

	holderLock.Release(ctx)
	keeper.keeperPass(ctx, struct{}{})
	require.Empty(t, keeper.backlog)
	requireBalances(t, settled(before, amount), f.Balances())
}
