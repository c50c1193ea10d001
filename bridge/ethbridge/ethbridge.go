// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

// Package ethbridge backs the conductor's adapters with the real L1 contracts.
package ethbridge

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/offchainlabs/conductor/bridge"
	"github.com/offchainlabs/conductor/solgen/go/starknetgen"
)

// Client is the part of an L1 node connection the adapters use.
// *ethclient.Client implements it.
type Client interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// L1 holds the conductor's L1 account and the contracts it talks to.
type L1 struct {
	client     Client
	deployment *Deployment
	self       common.Address

	confirmations uint64
	txTimeout     time.Duration

	txMutex sync.Mutex
	auth    *bind.TransactOpts

	messaging *starknetgen.IStarknetMessaging
}

func NewL1(ctx context.Context, client Client, config *Config) (*L1, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	deployment, err := config.Deployment()
	if err != nil {
		return nil, err
	}
	key, err := config.Key()
	if err != nil {
		return nil, err
	}
	chainID := new(big.Int).SetUint64(config.ChainID)
	if config.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "reading L1 chain id")
		}
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	messaging, err := starknetgen.NewIStarknetMessaging(deployment.Messaging, client)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &L1{
		client:        client,
		deployment:    deployment,
		self:          crypto.PubkeyToAddress(key.PublicKey),
		confirmations: config.Confirmations,
		txTimeout:     config.TxTimeout,
		auth:          auth,
		messaging:     messaging,
	}, nil
}

func (l *L1) Self() common.Address {
	return l.self
}

func (l *L1) Deployment() *Deployment {
	return l.deployment
}

// transact sends one transaction at a time from our account and waits for it
// to succeed. Once sent, the wait ignores cancellation of ctx, and a tx that
// is not mined within the timeout is reported as bridge.ErrOutcomeUnknown.
func (l *L1) transact(ctx context.Context, what string, send func(*bind.TransactOpts) (*types.Transaction, error)) error {
	l.txMutex.Lock()
	defer l.txMutex.Unlock()
	opts := *l.auth
	opts.Context = ctx
	tx, err := send(&opts)
	if err != nil {
		return errors.Wrapf(err, "sending %s", what)
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.txTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, l.client, tx)
	if err != nil {
		log.Error("sent L1 transaction was not confirmed", "what", what, "tx", tx.Hash(), "nonce", tx.Nonce(), "err", err)
		return errors.Wrapf(bridge.ErrOutcomeUnknown, "waiting for %s tx %v: %v", what, tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.Errorf("%s tx %v reverted", what, tx.Hash())
	}
	log.Debug("L1 transaction succeeded", "what", what, "tx", tx.Hash(), "block", receipt.BlockNumber, "gas", receipt.GasUsed)
	return nil
}

func callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func toBigs(words []*uint256.Int) []*big.Int {
	res := make([]*big.Int, len(words))
	for i, word := range words {
		res[i] = word.ToBig()
	}
	return res
}

func fromBig(x *big.Int) (*uint256.Int, error) {
	if x.Sign() < 0 {
		return nil, errors.Errorf("negative value %v", x)
	}
	res, overflow := uint256.FromBig(x)
	if overflow {
		return nil, errors.Errorf("value %v overflows uint256", x)
	}
	return res, nil
}

// pending reports whether the relay holds at least one instance of msg.
func (l *L1) pending(ctx context.Context, msg *bridge.L2ToL1Message) (bool, error) {
	count, err := l.messaging.L2ToL1Messages(callOpts(ctx), msg.Hash())
	if err != nil {
		return false, errors.Wrapf(err, "reading message count of %v", msg.Hash())
	}
	return count.Sign() > 0, nil
}

// Relay consumes messages addressed to our own account.
type Relay struct {
	l1 *L1
}

func (l *L1) Relay() *Relay {
	return &Relay{l1: l}
}

func (r *Relay) ConsumeMessage(ctx context.Context, msg *bridge.L2ToL1Message) (bool, error) {
	if msg.ToAddress != r.l1.self {
		return false, errors.Errorf("cannot consume %v addressed to %v", msg, msg.ToAddress)
	}
	found, err := r.l1.pending(ctx, msg)
	if err != nil || !found {
		return false, err
	}
	err = r.l1.transact(ctx, "consumeMessageFromL2", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return r.l1.messaging.ConsumeMessageFromL2(opts, msg.FromAddress.ToBig(), toBigs(msg.Payload))
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

type Token struct {
	l1      *L1
	address common.Address
	erc20   *starknetgen.IERC20
}

func (l *L1) Token(address common.Address) (*Token, error) {
	erc20, err := starknetgen.NewIERC20(address, l.client)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Token{l1: l, address: address, erc20: erc20}, nil
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error) {
	balance, err := t.erc20.BalanceOf(callOpts(ctx), owner)
	if err != nil {
		return nil, errors.Wrapf(err, "reading balance of %v in token %v", owner, t.address)
	}
	return fromBig(balance)
}

func (t *Token) Approve(ctx context.Context, spender common.Address, amount *uint256.Int) error {
	return t.l1.transact(ctx, "approve", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return t.erc20.Approve(opts, spender, amount.ToBig())
	})
}

// Gateway is an L1 token bridge whose withdrawals are announced by its L2
// counterpart.
type Gateway struct {
	l1          *L1
	address     common.Address
	counterpart *uint256.Int
	bridge      *starknetgen.IStarknetTokenBridge
}

func (l *L1) Gateway(address common.Address, counterpart *uint256.Int) (*Gateway, error) {
	b, err := starknetgen.NewIStarknetTokenBridge(address, l.client)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Gateway{l1: l, address: address, counterpart: counterpart, bridge: b}, nil
}

func (g *Gateway) Address() common.Address {
	return g.address
}

// Withdraw probes for the withdrawal message first, since the gateway reverts
// rather than reporting its absence.
func (g *Gateway) Withdraw(ctx context.Context, amount *uint256.Int, recipient common.Address) (bool, error) {
	msg := bridge.TokenWithdrawalMessage(g.counterpart, g.address, recipient, amount)
	found, err := g.l1.pending(ctx, msg)
	if err != nil || !found {
		return false, err
	}
	err = g.l1.transact(ctx, "withdraw", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return g.bridge.Withdraw(opts, amount.ToBig(), recipient)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *Gateway) Deposit(ctx context.Context, amount *uint256.Int, l2Recipient *uint256.Int) error {
	return g.l1.transact(ctx, "deposit", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return g.bridge.Deposit(opts, amount.ToBig(), l2Recipient.ToBig())
	})
}

// Target calls the value action through a raw selector.
type Target struct {
	l1       *L1
	address  common.Address
	contract *bind.BoundContract
}

func (l *L1) Target(address common.Address) *Target {
	return &Target{
		l1:       l,
		address:  address,
		contract: bind.NewBoundContract(address, abi.ABI{}, l.client, l.client, l.client),
	}
}

func (t *Target) Address() common.Address {
	return t.address
}

// ExecuteCalldata is selector followed by the ABI encoding of amount.
func ExecuteCalldata(selector [4]byte, amount *uint256.Int) []byte {
	word := amount.Bytes32()
	return append(selector[:], word[:]...)
}

func (t *Target) Execute(ctx context.Context, selector [4]byte, amount *uint256.Int) error {
	data := ExecuteCalldata(selector, amount)
	return t.l1.transact(ctx, "value action", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return t.contract.RawTransact(opts, data)
	})
}

// Inbox, TokenGateway and Action assemble the conductor's adapters from the
// deployment.

func (l *L1) Inbox() *bridge.MessageInbox {
	return bridge.NewMessageInbox(l.Relay(), l.deployment.L2Counterpart, l.self)
}

func (l *L1) TokenGateway() (*bridge.Gateway, error) {
	d := l.deployment
	inputToken, err := l.Token(d.InputToken)
	if err != nil {
		return nil, err
	}
	outputToken, err := l.Token(d.OutputToken)
	if err != nil {
		return nil, err
	}
	inputGateway, err := l.Gateway(d.InputGateway, d.InputL2Gateway)
	if err != nil {
		return nil, err
	}
	outputGateway, err := l.Gateway(d.OutputGateway, d.OutputL2Gateway)
	if err != nil {
		return nil, err
	}
	return bridge.NewGateway(l.self, d.L2Recipient).
		WithRole(bridge.InputToken, inputGateway, inputToken).
		WithRole(bridge.OutputToken, outputGateway, outputToken), nil
}

func (l *L1) Action() (*bridge.Action, error) {
	d := l.deployment
	inputToken, err := l.Token(d.InputToken)
	if err != nil {
		return nil, err
	}
	outputToken, err := l.Token(d.OutputToken)
	if err != nil {
		return nil, err
	}
	return bridge.NewAction(l.self, l.Target(d.ActionTarget), d.ActionSelector, inputToken, outputToken), nil
}
