// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type TokenRole uint8

const (
	InputToken TokenRole = iota
	OutputToken
)

func (r TokenRole) String() string {
	switch r {
	case InputToken:
		return "input"
	case OutputToken:
		return "output"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

var (
	ErrInsufficientCustody = errors.New("insufficient local custody")
	ErrUnknownTokenRole    = errors.New("unknown token role")
	// ErrOutcomeUnknown is returned once a transaction was sent but whether it
	// took effect could not be determined. Callers must assume it did.
	ErrOutcomeUnknown = errors.New("transaction outcome unknown")
)

// The contract level backends. Implementations are bound to the conductor's own
// L1 account, which is the sender of every call they make.

// MessageRelay is the L2->L1 messaging core.
type MessageRelay interface {
	// ConsumeMessage consumes one instance of msg, which must be addressed to
	// the caller. It returns false without side effects if none is pending, and
	// ErrOutcomeUnknown if the consumption was sent but not confirmed.
	ConsumeMessage(ctx context.Context, msg *L2ToL1Message) (bool, error)
}

// TokenContract is an ERC-20 token.
type TokenContract interface {
	BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *uint256.Int) error
}

// GatewayContract is the L1 side of a token bridge.
type GatewayContract interface {
	Address() common.Address
	// Withdraw releases amount tokens to recipient by consuming the matching
	// withdrawal message. It returns false without side effects if the message
	// is absent, and ErrOutcomeUnknown if the withdrawal was sent but not
	// confirmed.
	Withdraw(ctx context.Context, amount *uint256.Int, recipient common.Address) (bool, error)
	// Deposit pulls amount tokens from the caller and relays them to l2Recipient.
	Deposit(ctx context.Context, amount *uint256.Int, l2Recipient *uint256.Int) error
}

// ActionTarget is the external value producing contract.
type ActionTarget interface {
	Address() common.Address
	Execute(ctx context.Context, selector [4]byte, amount *uint256.Int) error
}

// The adapters the conductor drives.

type AuthorizationInbox interface {
	TryConsumeAuthorization(ctx context.Context, amount *uint256.Int) (bool, error)
}

type TokenGateway interface {
	Pull(ctx context.Context, role TokenRole, amount *uint256.Int) (bool, error)
	Push(ctx context.Context, role TokenRole, amount *uint256.Int) error
	Custody(ctx context.Context, role TokenRole) (*uint256.Int, error)
}

type ValueAction interface {
	Invoke(ctx context.Context, input *uint256.Int) (*uint256.Int, error)
}

// MessageInbox builds the exact expected message identity and probes the relay.
type MessageInbox struct {
	relay       MessageRelay
	counterpart *uint256.Int
	self        common.Address
}

func NewMessageInbox(relay MessageRelay, counterpart *uint256.Int, self common.Address) *MessageInbox {
	return &MessageInbox{
		relay:       relay,
		counterpart: counterpart,
		self:        self,
	}
}

// TryConsume consumes a message from sender addressed to us with the given payload.
func (i *MessageInbox) TryConsume(ctx context.Context, sender *uint256.Int, payload []*uint256.Int) (bool, error) {
	return i.relay.ConsumeMessage(ctx, &L2ToL1Message{
		FromAddress: sender,
		ToAddress:   i.self,
		Payload:     payload,
	})
}

func (i *MessageInbox) TryConsumeAuthorization(ctx context.Context, amount *uint256.Int) (bool, error) {
	return i.TryConsume(ctx, i.counterpart, AmountPayload(amount))
}

type gatewayRole struct {
	gateway GatewayContract
	token   TokenContract
}

// Gateway pulls tokens into and pushes them out of local custody.
type Gateway struct {
	self        common.Address
	l2Recipient *uint256.Int
	roles       map[TokenRole]gatewayRole
}

func NewGateway(self common.Address, l2Recipient *uint256.Int) *Gateway {
	return &Gateway{
		self:        self,
		l2Recipient: l2Recipient,
		roles:       make(map[TokenRole]gatewayRole),
	}
}

// WithRole registers the gateway and token serving role.
func (g *Gateway) WithRole(role TokenRole, gateway GatewayContract, token TokenContract) *Gateway {
	g.roles[role] = gatewayRole{gateway: gateway, token: token}
	return g
}

func (g *Gateway) role(role TokenRole) (gatewayRole, error) {
	r, ok := g.roles[role]
	if !ok {
		return gatewayRole{}, fmt.Errorf("%w: %v", ErrUnknownTokenRole, role)
	}
	return r, nil
}

func (g *Gateway) Pull(ctx context.Context, role TokenRole, amount *uint256.Int) (bool, error) {
	r, err := g.role(role)
	if err != nil {
		return false, err
	}
	return r.gateway.Withdraw(ctx, amount, g.self)
}

func (g *Gateway) Push(ctx context.Context, role TokenRole, amount *uint256.Int) error {
	r, err := g.role(role)
	if err != nil {
		return err
	}
	custody, err := r.token.BalanceOf(ctx, g.self)
	if err != nil {
		return err
	}
	if custody.Lt(amount) {
		return fmt.Errorf("%w: have %v %v tokens, need %v", ErrInsufficientCustody, custody, role, amount)
	}
	if err := r.token.Approve(ctx, r.gateway.Address(), amount); err != nil {
		return fmt.Errorf("approving %v gateway: %w", role, err)
	}
	if err := r.gateway.Deposit(ctx, amount, g.l2Recipient); err != nil {
		return fmt.Errorf("depositing into %v gateway: %w", role, err)
	}
	return nil
}

func (g *Gateway) Custody(ctx context.Context, role TokenRole) (*uint256.Int, error) {
	r, err := g.role(role)
	if err != nil {
		return nil, err
	}
	return r.token.BalanceOf(ctx, g.self)
}

// Action invokes the target through a fixed selector and measures the output by
// balance delta.
type Action struct {
	self        common.Address
	target      ActionTarget
	selector    [4]byte
	inputToken  TokenContract
	outputToken TokenContract
}

func NewAction(self common.Address, target ActionTarget, selector [4]byte, inputToken, outputToken TokenContract) *Action {
	return &Action{
		self:        self,
		target:      target,
		selector:    selector,
		inputToken:  inputToken,
		outputToken: outputToken,
	}
}

// Errors wrap ErrOutcomeUnknown only once the action itself may have run.
func (a *Action) Invoke(ctx context.Context, input *uint256.Int) (*uint256.Int, error) {
	if err := a.inputToken.Approve(ctx, a.target.Address(), input); err != nil {
		// An approval alone moves nothing.
		return nil, fmt.Errorf("approving action target: %v", err)
	}
	before, err := a.outputToken.BalanceOf(ctx, a.self)
	if err != nil {
		return nil, err
	}
	if err := a.target.Execute(ctx, a.selector, input); err != nil {
		return nil, err
	}
	after, err := a.outputToken.BalanceOf(ctx, a.self)
	if err != nil {
		return nil, fmt.Errorf("%w: action ran but its output could not be read: %v", ErrOutcomeUnknown, err)
	}
	output, underflow := new(uint256.Int).SubOverflow(after, before)
	if underflow {
		return nil, fmt.Errorf("output custody decreased from %v to %v during action", before, after)
	}
	return output, nil
}
