// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

const Namespace string = "conductor"

type ConductorAPI struct {
	conductor *Conductor
}

func NewConductorAPI(conductor *Conductor) *ConductorAPI {
	return &ConductorAPI{conductor: conductor}
}

func (c *Conductor) APIs() []rpc.API {
	return []rpc.API{{
		Namespace: Namespace,
		Version:   "1.0",
		Service:   NewConductorAPI(c),
		Public:    true,
	}}
}

type CreditsResult struct {
	Amount        *uint256.Int `json:"amount"`
	Token         uint64       `json:"token"`
	Authorization uint64       `json:"authorization"`
}

type RideResultJSON struct {
	Amount  *uint256.Int  `json:"amount"`
	Status  RideStatus    `json:"status"`
	Output  *uint256.Int  `json:"output,omitempty"`
	Credits CreditsResult `json:"credits"`
	Error   string        `json:"error,omitempty"`
}

// BatchAbortedError is returned over RPC when a batch aborted after some of
// its rides were processed. The processed rides are in the error data.
type BatchAbortedError struct {
	Results []RideResultJSON
	err     error
}

func (e *BatchAbortedError) Error() string {
	return fmt.Sprintf("ride batch aborted after %d rides: %v", len(e.Results), e.err)
}

func (e *BatchAbortedError) Unwrap() error {
	return e.err
}

func (e *BatchAbortedError) ErrorData() interface{} {
	return e.Results
}

func rideResultsJSON(results []RideResult) []RideResultJSON {
	res := make([]RideResultJSON, 0, len(results))
	for _, result := range results {
		r := RideResultJSON{
			Amount: result.Amount,
			Status: result.Status,
			Output: result.Output,
			Credits: CreditsResult{
				Amount:        result.Amount,
				Token:         result.Credits.Token,
				Authorization: result.Credits.Authorization,
			},
		}
		if result.Err != nil {
			r.Error = result.Err.Error()
		}
		res = append(res, r)
	}
	return res
}

func (a *ConductorAPI) ExecuteRides(ctx context.Context, amounts []*uint256.Int) ([]RideResultJSON, error) {
	results, err := a.conductor.ExecuteRides(ctx, amounts)
	if err != nil {
		if len(results) == 0 {
			return nil, err
		}
		return nil, &BatchAbortedError{Results: rideResultsJSON(results), err: err}
	}
	return rideResultsJSON(results), nil
}

func (a *ConductorAPI) PendingCredits(ctx context.Context, amount *uint256.Int) (CreditsResult, error) {
	credits, err := a.conductor.PendingCredits(ctx, amount)
	if err != nil {
		return CreditsResult{}, err
	}
	return CreditsResult{Amount: amount, Token: credits.Token, Authorization: credits.Authorization}, nil
}

func (a *ConductorAPI) AllCredits(ctx context.Context) ([]CreditsResult, error) {
	entries, err := a.conductor.AllCredits(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]CreditsResult, 0, len(entries))
	for _, entry := range entries {
		res = append(res, CreditsResult{
			Amount:        entry.Amount,
			Token:         entry.Credits.Token,
			Authorization: entry.Credits.Authorization,
		})
	}
	return res, nil
}

func (a *ConductorAPI) StrandedOutput(ctx context.Context) (*uint256.Int, error) {
	return a.conductor.StrandedOutput(ctx)
}

func (a *ConductorAPI) ForwardStranded(ctx context.Context) (*uint256.Int, error) {
	return a.conductor.ForwardStranded(ctx)
}
