// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"math"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
)

var (
	ridesSettledCounter       = metrics.NewRegisteredCounter("conductor/rides/settled", nil)
	ridesPendingCounter       = metrics.NewRegisteredCounter("conductor/rides/pending", nil)
	ridesRejectedCounter      = metrics.NewRegisteredCounter("conductor/rides/rejected", nil)
	ridesFailedCounter        = metrics.NewRegisteredCounter("conductor/rides/failed", nil)
	actionFailedCounter       = metrics.NewRegisteredCounter("conductor/action/failed", nil)
	pushFailedCounter         = metrics.NewRegisteredCounter("conductor/push/failed", nil)
	outcomeUnknownCounter     = metrics.NewRegisteredCounter("conductor/tx/outcome_unknown", nil)
	tokenMessagesCounter      = metrics.NewRegisteredCounter("conductor/messages/token", nil)
	authMessagesCounter       = metrics.NewRegisteredCounter("conductor/messages/authorization", nil)
	pendingTokenGauge         = metrics.NewRegisteredGauge("conductor/credits/token", nil)
	pendingAuthorizationGauge = metrics.NewRegisteredGauge("conductor/credits/authorization", nil)
	strandedOutputGauge       = metrics.NewRegisteredGauge("conductor/stranded", nil)
	watcherPositionGauge      = metrics.NewRegisteredGauge("conductor/watcher/position", nil)
)

func countResult(result RideResult) {
	switch result.Status {
	case RideSettled:
		ridesSettledCounter.Inc(1)
	case RidePending:
		ridesPendingCounter.Inc(1)
	case RideRejected:
		ridesRejectedCounter.Inc(1)
	case RideFailed:
		ridesFailedCounter.Inc(1)
	}
}

func saturatingInt64(x *uint256.Int) int64 {
	if !x.IsUint64() || x.Uint64() > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(x.Uint64())
}

func updateCreditGauges(entries []storage.Entry, stranded *uint256.Int) {
	var token, authorization uint64
	for _, entry := range entries {
		token += entry.Credits.Token
		authorization += entry.Credits.Authorization
	}
	pendingTokenGauge.Update(saturatingInt64(uint256.NewInt(token)))
	pendingAuthorizationGauge.Update(saturatingInt64(uint256.NewInt(authorization)))
	strandedOutputGauge.Update(saturatingInt64(stranded))
}
