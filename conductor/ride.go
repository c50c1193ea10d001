// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
)

type RideStatus string

const (
	// RideSettled rides ran the value action and bridged the output back.
	RideSettled RideStatus = "settled"
	// RidePending rides are missing one or both of their messages.
	RidePending  RideStatus = "pending"
	RideRejected RideStatus = "rejected"
	RideFailed   RideStatus = "failed"
)

// RideResult is the outcome of one batch entry.
type RideResult struct {
	Amount *uint256.Int
	Status RideStatus
	// Output is set once the value action has run, even if pushing it failed.
	Output *uint256.Int
	// Credits left pending for Amount after the entry was processed.
	Credits storage.Credits
	Err     error
}

func (r RideResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("ride %v %s: %v", r.Amount, r.Status, r.Err)
	}
	return fmt.Sprintf("ride %v %s", r.Amount, r.Status)
}
