// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"errors"

	"github.com/offchainlabs/conductor/bridge"
)

var (
	ErrZeroAmount          = errors.New("zero amount ride")
	ErrInsufficientCustody = bridge.ErrInsufficientCustody
	// ErrOutcomeUnknown means a transaction was sent but whether it succeeded
	// could not be determined. For the value action the ride's credits stay
	// spent.
	ErrOutcomeUnknown = bridge.ErrOutcomeUnknown
	// ErrValueActionFailed means both messages for the ride were consumed but the
	// action did not run. The credits are restored so the ride can be retried.
	ErrValueActionFailed = errors.New("value action failed")
	// ErrPushFailed means the action ran but its output could not be bridged
	// back. The output stays in local custody and is recorded as stranded.
	ErrPushFailed    = errors.New("pushing output failed")
	ErrProbeFailed   = errors.New("probing for message failed")
	ErrLockNotHeld   = errors.New("conductor lock is held by another process")
	ErrBatchTooLarge = errors.New("ride batch too large")
)
