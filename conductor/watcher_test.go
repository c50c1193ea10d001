// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/conductor/bridge"
	"github.com/offchainlabs/conductor/bridge/simbridge"
	"github.com/offchainlabs/conductor/conductor/creditstore/memory"
	"github.com/offchainlabs/conductor/util/testhelpers"
)

func fixtureAddresses(f *simbridge.Fixture) Addresses {
	return Addresses{
		Self:           f.Self,
		InputGateway:   f.InputGateway,
		Counterpart:    simbridge.L2CounterpartAddress,
		InputL2Gateway: simbridge.InputL2GatewayAddress,
	}
}

func testWatcherConfig() *WatcherConfig {
	config := TestConfig.Watcher
	return &config
}

func TestWatcherYieldsBothStreams(t *testing.T) {
	ctx := context.Background()
	f := simbridge.NewFixture()
	watcher := NewMessageWatcher(f.Chain.LogReader(), fixtureAddresses(f), testWatcherConfig)

	amounts, err := watcher.NextAmounts(ctx)
	Require(t, err)
	require.Empty(t, amounts)

	f.SendTokenMessage(uint256.NewInt(1))
	f.SendAuthorization(uint256.NewInt(2))
	// Not ours: a withdrawal to someone else, an authorization from a stranger
	// and a malformed authorization.
	f.Chain.SendMessageToL1(bridge.TokenWithdrawalMessage(simbridge.InputL2GatewayAddress, f.InputGateway, testhelpers.RandomAddress(), uint256.NewInt(3)))
	f.Chain.SendMessageToL1(bridge.AuthorizationMessage(uint256.NewInt(1234), f.Self, uint256.NewInt(4)))
	f.Chain.SendMessageToL1(&bridge.L2ToL1Message{
		FromAddress: simbridge.L2CounterpartAddress,
		ToAddress:   f.Self,
		Payload:     []*uint256.Int{uint256.NewInt(5)},
	})

	amounts, err = watcher.NextAmounts(ctx)
	Require(t, err)
	require.Equal(t, amountsOf(1, 2), amounts)

	// Rescanning the tail yields nothing new.
	amounts, err = watcher.NextAmounts(ctx)
	Require(t, err)
	require.Empty(t, amounts)

	f.SendAuthorization(uint256.NewInt(2))
	amounts, err = watcher.NextAmounts(ctx)
	Require(t, err)
	require.Equal(t, amountsOf(2), amounts)
}

func TestWatcherRespectsMaxRange(t *testing.T) {
	ctx := context.Background()
	f := simbridge.NewFixture()
	config := TestConfig.Watcher
	config.MaxRange = 2
	config.RescanDepth = 0
	watcher := NewMessageWatcher(f.Chain.LogReader(), fixtureAddresses(f), func() *WatcherConfig { return &config })
	_, err := watcher.NextAmounts(ctx)
	Require(t, err)

	for i := uint64(1); i <= 5; i++ {
		f.SendAuthorization(uint256.NewInt(i))
	}
	var all []*uint256.Int
	for i := 0; i < 3; i++ {
		amounts, err := watcher.NextAmounts(ctx)
		Require(t, err)
		require.LessOrEqual(t, len(amounts), 2)
		all = append(all, amounts...)
	}
	require.Equal(t, amountsOf(1, 2, 3, 4, 5), all)
}

func TestKeeperSettlesAnnouncedRides(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := simbridge.NewFixture()
	config := TestConfig
	config.Keeper.Enable = true
	watcher := NewMessageWatcher(f.Chain.LogReader(), fixtureAddresses(f), func() *WatcherConfig { return &config.Watcher })
	c, err := NewConductor(func() *Config { return &config }, f.Inbox(), f.Gateway(), f.Action(), memory.NewStorage(), nil, watcher)
	Require(t, err)
	before := f.Balances()

	c.Start(ctx)
	defer c.StopAndWait()

	amounts := amountsOf(1, 2, 3, 50)
	for _, amount := range amounts {
		f.SendAuthorization(amount)
	}
	time.Sleep(50 * time.Millisecond)
	for _, amount := range amounts {
		f.SendTokenMessage(amount)
	}
	want := settled(before, sum(amounts))
	require.Eventually(t, func() bool {
		return f.Chain.BalanceOf(f.OutputToken, f.OutputGateway).Eq(want.OutputGateway)
	}, 5*time.Second, 10*time.Millisecond)
	requireBalances(t, want, f.Balances())
}

func TestKeeperRetriesRestoredRides(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := simbridge.NewFixture()
	store := memory.NewStorage()
	amount := uint256.NewInt(8)
	before := f.Balances()
	f.SendTokenMessage(amount)
	f.SendAuthorization(amount)
	f.Chain.SetExecuteError(f.Target, errTestPaused)

	results, err := newTestConductor(t, f, store).ExecuteRides(ctx, []*uint256.Int{amount})
	Require(t, err)
	require.ErrorIs(t, results[0].Err, ErrValueActionFailed)
	f.Chain.SetExecuteError(f.Target, nil)

	config := TestConfig
	config.Keeper.Enable = true
	keeper, err := NewConductor(func() *Config { return &config }, f.Inbox(), f.Gateway(), f.Action(), store, nil, nil)
	Require(t, err)
	keeper.Start(ctx)
	defer keeper.StopAndWait()

	want := settled(before, amount)
	require.Eventually(t, func() bool {
		return f.Chain.BalanceOf(f.OutputToken, f.OutputGateway).Eq(want.OutputGateway)
	}, 5*time.Second, 10*time.Millisecond)
	requireBalances(t, want, f.Balances())
	requireNoCredits(t, keeper)
}

func TestTriggerWakesKeeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := simbridge.NewFixture()
	config := TestConfig
	config.Keeper.Enable = true
	config.Keeper.Interval = time.Hour
	watcher := NewMessageWatcher(f.Chain.LogReader(), fixtureAddresses(f), func() *WatcherConfig { return &config.Watcher })
	c, err := NewConductor(func() *Config { return &config }, f.Inbox(), f.Gateway(), f.Action(), memory.NewStorage(), nil, watcher)
	Require(t, err)
	before := f.Balances()
	c.Start(ctx)
	defer c.StopAndWait()

	amount := uint256.NewInt(21)
	f.SendTokenMessage(amount)
	f.SendAuthorization(amount)
	want := settled(before, amount)
	require.Eventually(t, func() bool {
		c.Trigger()
		return f.Chain.BalanceOf(f.OutputToken, f.OutputGateway).Eq(want.OutputGateway)
	}, 5*time.Second, 10*time.Millisecond)
}
