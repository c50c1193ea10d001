// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package util

import (
	"fmt"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"

	"github.com/offchainlabs/conductor/cmd/genericconf"
)

// StartMetrics serves the metrics registry when --metrics is given.
// The flag has to be on the command line since go-ethereum reads it at init.
func StartMetrics(enable bool, config *genericconf.MetricsServerConfig) error {
	if !enable {
		return nil
	}
	if !metrics.Enabled {
		return fmt.Errorf("metrics must be enabled via command line by adding --metrics, json config has no effect")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	go metrics.CollectProcessMetrics(config.UpdateInterval)
	exp.Setup(fmt.Sprintf("%v:%v", config.Addr, config.Port))
	return nil
}
