// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package simbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/conductor/bridge"
	"github.com/offchainlabs/conductor/util/testhelpers"
)

func Require(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, printables...)
}

func Fail(t *testing.T, printables ...interface{}) {
	t.Helper()
	testhelpers.FailImpl(t, printables...)
}

func TestInboxConsumesOnce(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	inbox := f.Inbox()
	amount := uint256.NewInt(50)

	consumed, err := inbox.TryConsumeAuthorization(ctx, amount)
	Require(t, err)
	if consumed {
		Fail(t, "consumed a message that was never sent")
	}

	f.SendAuthorization(amount)
	consumed, err = inbox.TryConsumeAuthorization(ctx, amount)
	Require(t, err)
	if !consumed {
		Fail(t, "failed to consume a pending message")
	}
	consumed, err = inbox.TryConsumeAuthorization(ctx, amount)
	Require(t, err)
	if consumed {
		Fail(t, "consumed the same message twice")
	}
}

func TestInboxIgnoresForeignSender(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	amount := uint256.NewInt(3)
	f.Chain.SendMessageToL1(bridge.AuthorizationMessage(OutputL2GatewayAddress, f.Self, amount))

	consumed, err := f.Inbox().TryConsumeAuthorization(ctx, amount)
	Require(t, err)
	require.False(t, consumed)
}

func TestGatewayPull(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	gateway := f.Gateway()
	amount := uint256.NewInt(7)

	pulled, err := gateway.Pull(ctx, bridge.InputToken, amount)
	Require(t, err)
	require.False(t, pulled)

	f.SendTokenMessage(amount)
	pulled, err = gateway.Pull(ctx, bridge.InputToken, amount)
	Require(t, err)
	require.True(t, pulled)

	custody, err := gateway.Custody(ctx, bridge.InputToken)
	Require(t, err)
	require.True(t, custody.Eq(amount))
	require.True(t, f.Chain.BalanceOf(f.InputToken, f.InputGateway).Eq(new(uint256.Int).Sub(InitialSupply, amount)))

	pulled, err = gateway.Pull(ctx, bridge.InputToken, amount)
	Require(t, err)
	require.False(t, pulled)
}

func TestGatewayPushWithoutPriorApproval(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	amount := uint256.NewInt(11)
	Require(t, f.Chain.Mint(f.OutputToken, f.Self, amount))
	require.True(t, f.Chain.Allowance(f.OutputToken, f.Self, f.OutputGateway).IsZero())

	Require(t, f.Gateway().Push(ctx, bridge.OutputToken, amount))

	require.True(t, f.Chain.BalanceOf(f.OutputToken, f.Self).IsZero())
	require.True(t, f.Chain.BalanceOf(f.OutputToken, f.OutputGateway).Eq(amount))
	deposits := f.Chain.Deposits()
	require.Len(t, deposits, 1)
	require.Equal(t, f.OutputGateway, deposits[0].Gateway)
	require.True(t, deposits[0].Recipient.Eq(L2RecipientAddress))
	require.True(t, deposits[0].Amount.Eq(amount))
}

func TestGatewayPushInsufficientCustody(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	err := f.Gateway().Push(ctx, bridge.OutputToken, uint256.NewInt(1))
	if !errors.Is(err, bridge.ErrInsufficientCustody) {
		Fail(t, "expected insufficient custody, got", err)
	}
	require.Empty(t, f.Chain.Deposits())
}

func TestGatewayPushFailureKeepsCustody(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	amount := uint256.NewInt(5)
	Require(t, f.Chain.Mint(f.OutputToken, f.Self, amount))
	f.Chain.SetDepositError(f.OutputGateway, errors.New("gateway paused"))

	err := f.Gateway().Push(ctx, bridge.OutputToken, amount)
	require.Error(t, err)
	require.True(t, f.Chain.BalanceOf(f.OutputToken, f.Self).Eq(amount))
}

func TestActionMeasuresOutput(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	amount := uint256.NewInt(50)
	Require(t, f.Chain.Mint(f.InputToken, f.Self, amount))

	output, err := f.Action().Invoke(ctx, amount)
	Require(t, err)
	require.True(t, output.Eq(amount))
	require.True(t, f.Chain.BalanceOf(f.InputToken, f.Self).IsZero())
	require.True(t, f.Chain.BalanceOf(f.OutputToken, f.Self).Eq(amount))
	require.True(t, f.Chain.BalanceOf(f.InputToken, f.Target).Eq(new(uint256.Int).Add(InitialSupply, amount)))
}

func TestActionWrongSelector(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	amount := uint256.NewInt(2)
	Require(t, f.Chain.Mint(f.InputToken, f.Self, amount))
	action := bridge.NewAction(f.Self, f.Chain.Target(f.Target, f.Self), [4]byte{1, 2, 3, 4}, f.Chain.Token(f.InputToken, f.Self), f.Chain.Token(f.OutputToken, f.Self))

	_, err := action.Invoke(ctx, amount)
	require.ErrorIs(t, err, ErrUnknownSelector)
	require.True(t, f.Chain.BalanceOf(f.InputToken, f.Self).Eq(amount))
}

func TestLogReader(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	reader := f.Chain.LogReader()

	head, err := reader.Head(ctx)
	Require(t, err)
	require.Zero(t, head)

	f.SendTokenMessage(uint256.NewInt(1))
	f.SendAuthorization(uint256.NewInt(1))
	f.SendAuthorization(uint256.NewInt(1))

	head, err = reader.Head(ctx)
	Require(t, err)
	require.Equal(t, uint64(3), head)

	msgs, err := reader.MessagesInRange(ctx, 0, head, []common.Address{f.Self})
	Require(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, msgs[0].Message.Hash(), msgs[1].Message.Hash())
	require.NotEqual(t, msgs[0].ID, msgs[1].ID)

	msgs, err = reader.MessagesInRange(ctx, 1, 1, []common.Address{f.Self, f.InputGateway})
	Require(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, f.InputGateway, msgs[0].Message.ToAddress)
}
