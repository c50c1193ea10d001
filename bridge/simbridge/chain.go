// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

// Package simbridge is an in-memory stand-in for the L1 contracts the conductor
// talks to: ERC-20 tokens, the L2->L1 messaging core, token gateways and a value
// action target that swaps one input unit for one output unit.
package simbridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/bridge"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownContract       = errors.New("no contract at address")
	ErrUnknownSelector       = errors.New("function selector was not recognized")
	ErrInvalidMessage        = errors.New("INVALID_MESSAGE_TO_CONSUME")
)

type gateway struct {
	token       common.Address
	counterpart *uint256.Int
	depositErr  error
}

type target struct {
	inputToken  common.Address
	outputToken common.Address
	selector    [4]byte
	executeErr  error
}

// Chain holds the whole simulated L1 state. Every method is atomic.
type Chain struct {
	mutex      sync.Mutex
	balances   map[common.Address]map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*uint256.Int
	messages   map[common.Hash]uint64
	messageLog []bridge.LoggedMessage
	deposits   []bridge.L1ToL2Deposit
	gateways   map[common.Address]*gateway
	targets    map[common.Address]*target
	nonce      uint64
}

func NewChain() *Chain {
	return &Chain{
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*uint256.Int),
		messages:   make(map[common.Hash]uint64),
		gateways:   make(map[common.Address]*gateway),
		targets:    make(map[common.Address]*target),
	}
}

// NewAddress derives a fresh deterministic contract address.
func (c *Chain) NewAddress() common.Address {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.nonce++
	return common.BytesToAddress(crypto.Keccak256(uint256.NewInt(c.nonce).Bytes())[12:])
}

func (c *Chain) DeployToken() common.Address {
	addr := c.NewAddress()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.balances[addr] = make(map[common.Address]*uint256.Int)
	c.allowances[addr] = make(map[common.Address]map[common.Address]*uint256.Int)
	return addr
}

func (c *Chain) DeployGateway(token common.Address, counterpart *uint256.Int) common.Address {
	addr := c.NewAddress()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.gateways[addr] = &gateway{token: token, counterpart: counterpart}
	return addr
}

func (c *Chain) DeployTarget(inputToken, outputToken common.Address, selector [4]byte) common.Address {
	addr := c.NewAddress()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.targets[addr] = &target{inputToken: inputToken, outputToken: outputToken, selector: selector}
	return addr
}

// SetDepositError makes every deposit into gw fail with err until reset with nil.
func (c *Chain) SetDepositError(gw common.Address, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.gateways[gw].depositErr = err
}

// SetExecuteError makes every action on tgt fail with err until reset with nil.
func (c *Chain) SetExecuteError(tgt common.Address, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.targets[tgt].executeErr = err
}

func (c *Chain) balanceLocked(token, owner common.Address) *uint256.Int {
	if b, ok := c.balances[token][owner]; ok {
		return b
	}
	return new(uint256.Int)
}

func (c *Chain) allowanceLocked(token, owner, spender common.Address) *uint256.Int {
	if a, ok := c.allowances[token][owner][spender]; ok {
		return a
	}
	return new(uint256.Int)
}

func (c *Chain) Mint(token, to common.Address, amount *uint256.Int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	balances, ok := c.balances[token]
	if !ok {
		return fmt.Errorf("%w: token %v", ErrUnknownContract, token)
	}
	balances[to] = new(uint256.Int).Add(c.balanceLocked(token, to), amount)
	return nil
}

func (c *Chain) BalanceOf(token, owner common.Address) *uint256.Int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.balanceLocked(token, owner).Clone()
}

func (c *Chain) Allowance(token, owner, spender common.Address) *uint256.Int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.allowanceLocked(token, owner, spender).Clone()
}

func (c *Chain) Approve(token, owner, spender common.Address, amount *uint256.Int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	allowances, ok := c.allowances[token]
	if !ok {
		return fmt.Errorf("%w: token %v", ErrUnknownContract, token)
	}
	if allowances[owner] == nil {
		allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	allowances[owner][spender] = amount.Clone()
	return nil
}

func (c *Chain) transferLocked(token, from, to common.Address, amount *uint256.Int) error {
	balances, ok := c.balances[token]
	if !ok {
		return fmt.Errorf("%w: token %v", ErrUnknownContract, token)
	}
	fromBalance := c.balanceLocked(token, from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %v has %v, needs %v", ErrInsufficientBalance, from, fromBalance, amount)
	}
	balances[from] = new(uint256.Int).Sub(fromBalance, amount)
	balances[to] = new(uint256.Int).Add(c.balanceLocked(token, to), amount)
	return nil
}

func (c *Chain) transferFromLocked(token, spender, from, to common.Address, amount *uint256.Int) error {
	allowance := c.allowanceLocked(token, from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %v may spend %v of %v, needs %v", ErrInsufficientAllowance, spender, allowance, from, amount)
	}
	if err := c.transferLocked(token, from, to, amount); err != nil {
		return err
	}
	c.allowances[token][from][spender] = new(uint256.Int).Sub(allowance, amount)
	return nil
}

// SendMessageToL1 delivers msg to the messaging core as if sent from L2.
func (c *Chain) SendMessageToL1(msg *bridge.L2ToL1Message) common.Hash {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	hash := msg.Hash()
	c.messages[hash]++
	position := uint64(len(c.messageLog)) + 1
	c.messageLog = append(c.messageLog, bridge.LoggedMessage{
		Position: position,
		ID:       crypto.Keccak256Hash(hash.Bytes(), uint256.NewInt(position).Bytes()),
		Message:  msg,
	})
	return hash
}

// PendingMessages is the number of unconsumed instances of the message hash.
func (c *Chain) PendingMessages(hash common.Hash) uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.messages[hash]
}

func (c *Chain) consumeLocked(caller common.Address, msg *bridge.L2ToL1Message) error {
	if msg.ToAddress != caller {
		return fmt.Errorf("%w: message is addressed to %v, not %v", ErrInvalidMessage, msg.ToAddress, caller)
	}
	hash := msg.Hash()
	if c.messages[hash] == 0 {
		return ErrInvalidMessage
	}
	c.messages[hash]--
	return nil
}

// ConsumeMessage consumes msg on behalf of caller, which must be its recipient.
func (c *Chain) ConsumeMessage(caller common.Address, msg *bridge.L2ToL1Message) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.consumeLocked(caller, msg)
}

// Withdraw consumes the gateway's withdrawal message for recipient and releases
// the tokens from its escrow.
func (c *Chain) Withdraw(gw common.Address, amount *uint256.Int, recipient common.Address) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	g, ok := c.gateways[gw]
	if !ok {
		return fmt.Errorf("%w: gateway %v", ErrUnknownContract, gw)
	}
	msg := bridge.TokenWithdrawalMessage(g.counterpart, gw, recipient, amount)
	if err := c.consumeLocked(gw, msg); err != nil {
		return err
	}
	if err := c.transferLocked(g.token, gw, recipient, amount); err != nil {
		// Roll back the consumption so a failed call has no effect.
		c.messages[msg.Hash()]++
		return err
	}
	return nil
}

// Deposit escrows amount of the caller's tokens in the gateway and records the
// transfer toward l2Recipient.
func (c *Chain) Deposit(gw, caller common.Address, amount *uint256.Int, l2Recipient *uint256.Int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	g, ok := c.gateways[gw]
	if !ok {
		return fmt.Errorf("%w: gateway %v", ErrUnknownContract, gw)
	}
	if g.depositErr != nil {
		return g.depositErr
	}
	if err := c.transferFromLocked(g.token, gw, caller, gw, amount); err != nil {
		return err
	}
	c.deposits = append(c.deposits, bridge.L1ToL2Deposit{
		Gateway:   gw,
		Sender:    caller,
		Recipient: l2Recipient.Clone(),
		Amount:    amount.Clone(),
	})
	return nil
}

func (c *Chain) Deposits() []bridge.L1ToL2Deposit {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]bridge.L1ToL2Deposit(nil), c.deposits...)
}

// Execute pulls amount input tokens from caller and pays out the same amount of
// output tokens.
func (c *Chain) Execute(tgt, caller common.Address, selector [4]byte, amount *uint256.Int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	t, ok := c.targets[tgt]
	if !ok {
		return fmt.Errorf("%w: target %v", ErrUnknownContract, tgt)
	}
	if selector != t.selector {
		return fmt.Errorf("%w: %x", ErrUnknownSelector, selector)
	}
	if t.executeErr != nil {
		return t.executeErr
	}
	if c.balanceLocked(t.outputToken, tgt).Lt(amount) {
		return fmt.Errorf("%w: target is out of output tokens", ErrInsufficientBalance)
	}
	if err := c.transferFromLocked(t.inputToken, tgt, caller, tgt, amount); err != nil {
		return err
	}
	return c.transferLocked(t.outputToken, tgt, caller, amount)
}

// head is the position of the most recent message announcement. Positions
// start at 1, like block numbers after genesis.
func (c *Chain) head() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return uint64(len(c.messageLog))
}

func (c *Chain) messagesInRange(from, to uint64, recipients []common.Address) []bridge.LoggedMessage {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var found []bridge.LoggedMessage
	if from == 0 {
		from = 1
	}
	for pos := from; pos <= to && pos <= uint64(len(c.messageLog)); pos++ {
		logged := c.messageLog[pos-1]
		for _, recipient := range recipients {
			if logged.Message.ToAddress == recipient {
				found = append(found, logged)
				break
			}
		}
	}
	return found
}
