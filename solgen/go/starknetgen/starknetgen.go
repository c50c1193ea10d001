// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

// Package starknetgen holds abigen style bindings for the L1 contracts the
// conductor talks to: the Starknet messaging core, the token bridge gateways
// and ERC-20 tokens.
package starknetgen

import (
	"errors"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Reference imports to suppress errors if they are not otherwise used.
var (
	_ = errors.New
	_ = big.NewInt
	_ = ethereum.NotFound
	_ = abi.ConvertType
)

// IStarknetMessagingMetaData contains all meta data concerning the IStarknetMessaging contract.
var IStarknetMessagingMetaData = &bind.MetaData{
	ABI: "[{\"anonymous\":false,\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"fromAddress\",\"type\":\"uint256\",\"indexed\":true},{\"internalType\":\"address\",\"name\":\"toAddress\",\"type\":\"address\",\"indexed\":true},{\"internalType\":\"uint256[]\",\"name\":\"payload\",\"type\":\"uint256[]\",\"indexed\":false}],\"name\":\"LogMessageToL1\",\"type\":\"event\"},{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"fromAddress\",\"type\":\"uint256\"},{\"internalType\":\"uint256[]\",\"name\":\"payload\",\"type\":\"uint256[]\"}],\"name\":\"consumeMessageFromL2\",\"outputs\":[{\"internalType\":\"bytes32\",\"name\":\"\",\"type\":\"bytes32\"}],\"stateMutability\":\"nonpayable\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"bytes32\",\"name\":\"msgHash\",\"type\":\"bytes32\"}],\"name\":\"l2ToL1Messages\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"}]",
}

// IStarknetTokenBridgeMetaData contains all meta data concerning the IStarknetTokenBridge contract.
var IStarknetTokenBridgeMetaData = &bind.MetaData{
	ABI: "[{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"amount\",\"type\":\"uint256\"},{\"internalType\":\"uint256\",\"name\":\"l2Recipient\",\"type\":\"uint256\"}],\"name\":\"deposit\",\"outputs\":[],\"stateMutability\":\"payable\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"uint256\",\"name\":\"amount\",\"type\":\"uint256\"},{\"internalType\":\"address\",\"name\":\"recipient\",\"type\":\"address\"}],\"name\":\"withdraw\",\"outputs\":[],\"stateMutability\":\"nonpayable\",\"type\":\"function\"}]",
}

// IERC20MetaData contains all meta data concerning the IERC20 contract.
var IERC20MetaData = &bind.MetaData{
	ABI: "[{\"inputs\":[{\"internalType\":\"address\",\"name\":\"owner\",\"type\":\"address\"},{\"internalType\":\"address\",\"name\":\"spender\",\"type\":\"address\"}],\"name\":\"allowance\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"address\",\"name\":\"spender\",\"type\":\"address\"},{\"internalType\":\"uint256\",\"name\":\"amount\",\"type\":\"uint256\"}],\"name\":\"approve\",\"outputs\":[{\"internalType\":\"bool\",\"name\":\"\",\"type\":\"bool\"}],\"stateMutability\":\"nonpayable\",\"type\":\"function\"},{\"inputs\":[{\"internalType\":\"address\",\"name\":\"account\",\"type\":\"address\"}],\"name\":\"balanceOf\",\"outputs\":[{\"internalType\":\"uint256\",\"name\":\"\",\"type\":\"uint256\"}],\"stateMutability\":\"view\",\"type\":\"function\"}]",
}

// IStarknetMessagingCaller is a read-only binding to the contract.
type IStarknetMessagingCaller struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IStarknetMessagingTransactor is a write-only binding to the contract.
type IStarknetMessagingTransactor struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IStarknetMessagingFilterer is a log filtering binding to the contract events.
type IStarknetMessagingFilterer struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IStarknetMessaging is a binding around a deployed contract.
type IStarknetMessaging struct {
	IStarknetMessagingCaller     // Read-only binding to the contract
	IStarknetMessagingTransactor // Write-only binding to the contract
	IStarknetMessagingFilterer   // Log filterer for contract events
}

// NewIStarknetMessaging creates a new instance of IStarknetMessaging, bound to a specific deployed contract.
func NewIStarknetMessaging(address common.Address, backend bind.ContractBackend) (*IStarknetMessaging, error) {
	contract, err := bindIStarknetMessaging(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &IStarknetMessaging{IStarknetMessagingCaller: IStarknetMessagingCaller{contract: contract}, IStarknetMessagingTransactor: IStarknetMessagingTransactor{contract: contract}, IStarknetMessagingFilterer: IStarknetMessagingFilterer{contract: contract}}, nil
}

// bindIStarknetMessaging binds a generic wrapper to an already deployed contract.
func bindIStarknetMessaging(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := IStarknetMessagingMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, *parsed, caller, transactor, filterer), nil
}

// RawTransact initiates a plain transaction to move funds to the contract, calling
// its default method if one is available.
func (_IStarknetMessaging *IStarknetMessagingTransactor) RawTransact(opts *bind.TransactOpts, calldata []byte) (*types.Transaction, error) {
	return _IStarknetMessaging.contract.RawTransact(opts, calldata)
}

// L2ToL1Messages is a free data retrieval call binding the contract method 0xa46efaf3.
//
// Solidity: function l2ToL1Messages(bytes32 msgHash) view returns(uint256)
func (_IStarknetMessaging *IStarknetMessagingCaller) L2ToL1Messages(opts *bind.CallOpts, msgHash [32]byte) (*big.Int, error) {
	var out []interface{}
	err := _IStarknetMessaging.contract.Call(opts, &out, "l2ToL1Messages", msgHash)

	if err != nil {
		return *new(*big.Int), err
	}

	out0 := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	return out0, err
}

// ConsumeMessageFromL2 is a paid mutator transaction binding the contract method 0x2c9dd5c0.
//
// Solidity: function consumeMessageFromL2(uint256 fromAddress, uint256[] payload) returns(bytes32)
func (_IStarknetMessaging *IStarknetMessagingTransactor) ConsumeMessageFromL2(opts *bind.TransactOpts, fromAddress *big.Int, payload []*big.Int) (*types.Transaction, error) {
	return _IStarknetMessaging.contract.Transact(opts, "consumeMessageFromL2", fromAddress, payload)
}

// IStarknetMessagingLogMessageToL1Iterator is returned from FilterLogMessageToL1 and is used to iterate over the raw logs and unpacked data for LogMessageToL1 events raised by the IStarknetMessaging contract.
type IStarknetMessagingLogMessageToL1Iterator struct {
	Event *IStarknetMessagingLogMessageToL1 // Event containing the contract specifics and raw log

	contract *bind.BoundContract // Generic contract to use for unpacking event data
	event    string              // Event name to use for unpacking event data

	logs chan types.Log        // Log channel receiving the found contract events
	sub  ethereum.Subscription // Subscription for errors, completion and termination
	done bool                  // Whether the subscription completed delivering logs
	fail error                 // Occurred error to stop iteration
}

// Next advances the iterator to the subsequent event, returning whether there
// are any more events found. In case of a retrieval or parsing error, false is
// returned and Error() can be queried for the exact failure.
func (it *IStarknetMessagingLogMessageToL1Iterator) Next() bool {
	// If the iterator failed, stop iterating
	if it.fail != nil {
		return false
	}
	// If the iterator completed, deliver directly whatever's available
	if it.done {
		select {
		case log := <-it.logs:
			it.Event = new(IStarknetMessagingLogMessageToL1)
			if err := it.contract.UnpackLog(it.Event, it.event, log); err != nil {
				it.fail = err
				return false
			}
			it.Event.Raw = log
			return true

		default:
			return false
		}
	}
	// Iterator still in progress, wait for either a data or an error event
	select {
	case log := <-it.logs:
		it.Event = new(IStarknetMessagingLogMessageToL1)
		if err := it.contract.UnpackLog(it.Event, it.event, log); err != nil {
			it.fail = err
			return false
		}
		it.Event.Raw = log
		return true

	case err := <-it.sub.Err():
		it.done = true
		it.fail = err
		return it.Next()
	}
}

// Error returns any retrieval or parsing error occurred during filtering.
func (it *IStarknetMessagingLogMessageToL1Iterator) Error() error {
	return it.fail
}

// Close terminates the iteration process, releasing any pending underlying
// resources.
func (it *IStarknetMessagingLogMessageToL1Iterator) Close() error {
	it.sub.Unsubscribe()
	return nil
}

// IStarknetMessagingLogMessageToL1 represents a LogMessageToL1 event raised by the IStarknetMessaging contract.
type IStarknetMessagingLogMessageToL1 struct {
	FromAddress *big.Int
	ToAddress   common.Address
	Payload     []*big.Int
	Raw         types.Log // Blockchain specific contextual infos
}

// FilterLogMessageToL1 is a free log retrieval operation binding the contract event 0x4264ac208b5fde633ccdd42e0f12c3d6d443a4f3779bbf886925b94665b63a22.
//
// Solidity: event LogMessageToL1(uint256 indexed fromAddress, address indexed toAddress, uint256[] payload)
func (_IStarknetMessaging *IStarknetMessagingFilterer) FilterLogMessageToL1(opts *bind.FilterOpts, fromAddress []*big.Int, toAddress []common.Address) (*IStarknetMessagingLogMessageToL1Iterator, error) {

	var fromAddressRule []interface{}
	for _, fromAddressItem := range fromAddress {
		fromAddressRule = append(fromAddressRule, fromAddressItem)
	}
	var toAddressRule []interface{}
	for _, toAddressItem := range toAddress {
		toAddressRule = append(toAddressRule, toAddressItem)
	}

	logs, sub, err := _IStarknetMessaging.contract.FilterLogs(opts, "LogMessageToL1", fromAddressRule, toAddressRule)
	if err != nil {
		return nil, err
	}
	return &IStarknetMessagingLogMessageToL1Iterator{contract: _IStarknetMessaging.contract, event: "LogMessageToL1", logs: logs, sub: sub}, nil
}

// ParseLogMessageToL1 is a log parse operation binding the contract event 0x4264ac208b5fde633ccdd42e0f12c3d6d443a4f3779bbf886925b94665b63a22.
//
// Solidity: event LogMessageToL1(uint256 indexed fromAddress, address indexed toAddress, uint256[] payload)
func (_IStarknetMessaging *IStarknetMessagingFilterer) ParseLogMessageToL1(log types.Log) (*IStarknetMessagingLogMessageToL1, error) {
	event := new(IStarknetMessagingLogMessageToL1)
	if err := _IStarknetMessaging.contract.UnpackLog(event, "LogMessageToL1", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

// IStarknetTokenBridgeCaller is a read-only binding to the contract.
type IStarknetTokenBridgeCaller struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IStarknetTokenBridgeTransactor is a write-only binding to the contract.
type IStarknetTokenBridgeTransactor struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IStarknetTokenBridgeFilterer is a log filtering binding to the contract events.
type IStarknetTokenBridgeFilterer struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IStarknetTokenBridge is a binding around a deployed contract.
type IStarknetTokenBridge struct {
	IStarknetTokenBridgeCaller     // Read-only binding to the contract
	IStarknetTokenBridgeTransactor // Write-only binding to the contract
	IStarknetTokenBridgeFilterer   // Log filterer for contract events
}

// NewIStarknetTokenBridge creates a new instance of IStarknetTokenBridge, bound to a specific deployed contract.
func NewIStarknetTokenBridge(address common.Address, backend bind.ContractBackend) (*IStarknetTokenBridge, error) {
	contract, err := bindIStarknetTokenBridge(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &IStarknetTokenBridge{IStarknetTokenBridgeCaller: IStarknetTokenBridgeCaller{contract: contract}, IStarknetTokenBridgeTransactor: IStarknetTokenBridgeTransactor{contract: contract}, IStarknetTokenBridgeFilterer: IStarknetTokenBridgeFilterer{contract: contract}}, nil
}

// bindIStarknetTokenBridge binds a generic wrapper to an already deployed contract.
func bindIStarknetTokenBridge(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := IStarknetTokenBridgeMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, *parsed, caller, transactor, filterer), nil
}

// RawTransact initiates a plain transaction to move funds to the contract, calling
// its default method if one is available.
func (_IStarknetTokenBridge *IStarknetTokenBridgeTransactor) RawTransact(opts *bind.TransactOpts, calldata []byte) (*types.Transaction, error) {
	return _IStarknetTokenBridge.contract.RawTransact(opts, calldata)
}

// Deposit is a paid mutator transaction binding the contract method 0xe2bbb158.
//
// Solidity: function deposit(uint256 amount, uint256 l2Recipient) payable returns()
func (_IStarknetTokenBridge *IStarknetTokenBridgeTransactor) Deposit(opts *bind.TransactOpts, amount *big.Int, l2Recipient *big.Int) (*types.Transaction, error) {
	return _IStarknetTokenBridge.contract.Transact(opts, "deposit", amount, l2Recipient)
}

// Withdraw is a paid mutator transaction binding the contract method 0x00f714ce.
//
// Solidity: function withdraw(uint256 amount, address recipient) returns()
func (_IStarknetTokenBridge *IStarknetTokenBridgeTransactor) Withdraw(opts *bind.TransactOpts, amount *big.Int, recipient common.Address) (*types.Transaction, error) {
	return _IStarknetTokenBridge.contract.Transact(opts, "withdraw", amount, recipient)
}

// IERC20Caller is a read-only binding to the contract.
type IERC20Caller struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IERC20Transactor is a write-only binding to the contract.
type IERC20Transactor struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IERC20Filterer is a log filtering binding to the contract events.
type IERC20Filterer struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// IERC20 is a binding around a deployed contract.
type IERC20 struct {
	IERC20Caller     // Read-only binding to the contract
	IERC20Transactor // Write-only binding to the contract
	IERC20Filterer   // Log filterer for contract events
}

// NewIERC20 creates a new instance of IERC20, bound to a specific deployed contract.
func NewIERC20(address common.Address, backend bind.ContractBackend) (*IERC20, error) {
	contract, err := bindIERC20(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &IERC20{IERC20Caller: IERC20Caller{contract: contract}, IERC20Transactor: IERC20Transactor{contract: contract}, IERC20Filterer: IERC20Filterer{contract: contract}}, nil
}

// bindIERC20 binds a generic wrapper to an already deployed contract.
func bindIERC20(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := IERC20MetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, *parsed, caller, transactor, filterer), nil
}

// RawTransact initiates a plain transaction to move funds to the contract, calling
// its default method if one is available.
func (_IERC20 *IERC20Transactor) RawTransact(opts *bind.TransactOpts, calldata []byte) (*types.Transaction, error) {
	return _IERC20.contract.RawTransact(opts, calldata)
}

// Allowance is a free data retrieval call binding the contract method 0xdd62ed3e.
//
// Solidity: function allowance(address owner, address spender) view returns(uint256)
func (_IERC20 *IERC20Caller) Allowance(opts *bind.CallOpts, owner common.Address, spender common.Address) (*big.Int, error) {
	var out []interface{}
	err := _IERC20.contract.Call(opts, &out, "allowance", owner, spender)

	if err != nil {
		return *new(*big.Int), err
	}

	out0 := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	return out0, err
}

// BalanceOf is a free data retrieval call binding the contract method 0x70a08231.
//
// Solidity: function balanceOf(address account) view returns(uint256)
func (_IERC20 *IERC20Caller) BalanceOf(opts *bind.CallOpts, account common.Address) (*big.Int, error) {
	var out []interface{}
	err := _IERC20.contract.Call(opts, &out, "balanceOf", account)

	if err != nil {
		return *new(*big.Int), err
	}

	out0 := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	return out0, err
}

// Approve is a paid mutator transaction binding the contract method 0x095ea7b3.
//
// Solidity: function approve(address spender, uint256 amount) returns(bool)
func (_IERC20 *IERC20Transactor) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return _IERC20.contract.Transact(opts, "approve", spender, amount)
}
