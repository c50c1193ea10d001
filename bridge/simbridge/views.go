// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package simbridge

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/bridge"
)

// Relay is the messaging core as seen by caller.
type Relay struct {
	chain  *Chain
	caller common.Address
}

func (c *Chain) Relay(caller common.Address) *Relay {
	return &Relay{chain: c, caller: caller}
}

func (r *Relay) ConsumeMessage(ctx context.Context, msg *bridge.L2ToL1Message) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := r.chain.ConsumeMessage(r.caller, msg)
	if errors.Is(err, ErrInvalidMessage) {
		return false, nil
	}
	return err == nil, err
}

// Token is an ERC-20 token as seen by caller.
type Token struct {
	chain  *Chain
	token  common.Address
	caller common.Address
}

func (c *Chain) Token(token, caller common.Address) *Token {
	return &Token{chain: c, token: token, caller: caller}
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.chain.BalanceOf(t.token, owner), nil
}

func (t *Token) Approve(ctx context.Context, spender common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.chain.Approve(t.token, t.caller, spender, amount)
}

// Gateway is a token gateway as seen by caller.
type Gateway struct {
	chain   *Chain
	gateway common.Address
	caller  common.Address
}

func (c *Chain) Gateway(gw, caller common.Address) *Gateway {
	return &Gateway{chain: c, gateway: gw, caller: caller}
}

func (g *Gateway) Address() common.Address {
	return g.gateway
}

func (g *Gateway) Withdraw(ctx context.Context, amount *uint256.Int, recipient common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := g.chain.Withdraw(g.gateway, amount, recipient)
	if errors.Is(err, ErrInvalidMessage) {
		return false, nil
	}
	return err == nil, err
}

func (g *Gateway) Deposit(ctx context.Context, amount *uint256.Int, l2Recipient *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.chain.Deposit(g.gateway, g.caller, amount, l2Recipient)
}

// Target is the value action target as seen by caller.
type Target struct {
	chain  *Chain
	target common.Address
	caller common.Address
}

func (c *Chain) Target(tgt, caller common.Address) *Target {
	return &Target{chain: c, target: tgt, caller: caller}
}

func (t *Target) Address() common.Address {
	return t.target
}

func (t *Target) Execute(ctx context.Context, selector [4]byte, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.chain.Execute(t.target, t.caller, selector, amount)
}

// LogReader scans the messaging core's announcements.
type LogReader struct {
	chain *Chain
}

func (c *Chain) LogReader() *LogReader {
	return &LogReader{chain: c}
}

func (r *LogReader) Head(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.chain.head(), nil
}

func (r *LogReader) MessagesInRange(ctx context.Context, from, to uint64, recipients []common.Address) ([]bridge.LoggedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.chain.messagesInRange(from, to, recipients), nil
}
