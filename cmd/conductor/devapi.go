// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package main

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/bridge/simbridge"
)

// DevAPI plays the L2 side of the simulated bridge.
type DevAPI struct {
	fixture *simbridge.Fixture
	// sent wakes the keeper once messages were sent.
	sent func()
}

func (a *DevAPI) notify() {
	if a.sent != nil {
		a.sent()
	}
}

func (a *DevAPI) SendTokenMessage(ctx context.Context, amount *uint256.Int) error {
	a.fixture.SendTokenMessage(amount)
	a.notify()
	return nil
}

func (a *DevAPI) SendAuthorization(ctx context.Context, amount *uint256.Int) error {
	a.fixture.SendAuthorization(amount)
	a.notify()
	return nil
}

// SendRide sends both halves of a ride.
func (a *DevAPI) SendRide(ctx context.Context, amount *uint256.Int) error {
	a.fixture.SendTokenMessage(amount)
	a.fixture.SendAuthorization(amount)
	a.notify()
	return nil
}

func (a *DevAPI) Balances(ctx context.Context) (simbridge.Balances, error) {
	return a.fixture.Balances(), nil
}
