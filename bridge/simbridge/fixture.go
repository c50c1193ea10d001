// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package simbridge

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/bridge"
)

var (
	InputL2GatewayAddress  = uint256.MustFromHex("0x2222222222222222222222222222222222222220")
	OutputL2GatewayAddress = uint256.MustFromHex("0x2222222222222222222222222222222222222221")
	L2CounterpartAddress   = uint256.MustFromHex("0x2222222222222222222222222222222222222222")
	L2RecipientAddress     = uint256.MustFromHex("0x2222222222222222222222222222222222222223")

	// DepositSelector is deposit(uint256).
	DepositSelector = [4]byte{0xb6, 0xb5, 0x5f, 0x25}

	InitialSupply = uint256.NewInt(999999999999999)
)

// Fixture is a freshly deployed environment: two tokens, their gateways, a
// funded value action target and the conductor's own L1 address.
type Fixture struct {
	Chain *Chain

	Self          common.Address
	InputToken    common.Address
	OutputToken   common.Address
	InputGateway  common.Address
	OutputGateway common.Address
	Target        common.Address
}

func NewFixture() *Fixture {
	chain := NewChain()
	f := &Fixture{Chain: chain}
	f.InputToken = chain.DeployToken()
	f.OutputToken = chain.DeployToken()
	f.Target = chain.DeployTarget(f.InputToken, f.OutputToken, DepositSelector)
	f.InputGateway = chain.DeployGateway(f.InputToken, InputL2GatewayAddress)
	f.OutputGateway = chain.DeployGateway(f.OutputToken, OutputL2GatewayAddress)
	f.Self = chain.NewAddress()

	mustMint(chain, f.InputToken, f.Target, InitialSupply)
	mustMint(chain, f.OutputToken, f.Target, InitialSupply)
	mustMint(chain, f.InputToken, f.InputGateway, InitialSupply)
	return f
}

func mustMint(chain *Chain, token, to common.Address, amount *uint256.Int) {
	if err := chain.Mint(token, to, amount); err != nil {
		panic(err)
	}
}

// SendTokenMessage withdraws amount input tokens on L2 toward the conductor.
func (f *Fixture) SendTokenMessage(amount *uint256.Int) {
	f.Chain.SendMessageToL1(bridge.TokenWithdrawalMessage(InputL2GatewayAddress, f.InputGateway, f.Self, amount))
}

// SendAuthorization confirms amount from the L2 counterpart.
func (f *Fixture) SendAuthorization(amount *uint256.Int) {
	f.Chain.SendMessageToL1(bridge.AuthorizationMessage(L2CounterpartAddress, f.Self, amount))
}

func (f *Fixture) Inbox() *bridge.MessageInbox {
	return bridge.NewMessageInbox(f.Chain.Relay(f.Self), L2CounterpartAddress, f.Self)
}

func (f *Fixture) Gateway() *bridge.Gateway {
	return bridge.NewGateway(f.Self, L2RecipientAddress).
		WithRole(bridge.InputToken, f.Chain.Gateway(f.InputGateway, f.Self), f.Chain.Token(f.InputToken, f.Self)).
		WithRole(bridge.OutputToken, f.Chain.Gateway(f.OutputGateway, f.Self), f.Chain.Token(f.OutputToken, f.Self))
}

func (f *Fixture) Action() *bridge.Action {
	return bridge.NewAction(
		f.Self,
		f.Chain.Target(f.Target, f.Self),
		DepositSelector,
		f.Chain.Token(f.InputToken, f.Self),
		f.Chain.Token(f.OutputToken, f.Self),
	)
}

// Balances is a snapshot of every balance the ride properties talk about.
type Balances struct {
	InputGateway  *uint256.Int
	OutputGateway *uint256.Int
	TargetInput   *uint256.Int
	TargetOutput  *uint256.Int
	SelfInput     *uint256.Int
	SelfOutput    *uint256.Int
}

func (f *Fixture) Balances() Balances {
	return Balances{
		InputGateway:  f.Chain.BalanceOf(f.InputToken, f.InputGateway),
		OutputGateway: f.Chain.BalanceOf(f.OutputToken, f.OutputGateway),
		TargetInput:   f.Chain.BalanceOf(f.InputToken, f.Target),
		TargetOutput:  f.Chain.BalanceOf(f.OutputToken, f.Target),
		SelfInput:     f.Chain.BalanceOf(f.InputToken, f.Self),
		SelfOutput:    f.Chain.BalanceOf(f.OutputToken, f.Self),
	}
}
