// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/conductor/cmd/genericconf"
	"github.com/offchainlabs/conductor/cmd/util"
	"github.com/offchainlabs/conductor/cmd/util/confighelpers"
)

func main() {
	os.Exit(mainImpl())
}

// Returns the exit code
func mainImpl() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config, err := ParseConductorNode(os.Args[1:])
	if err != nil {
		confighelpers.PrintErrorAndExit(err, printSampleUsage)
	}

	err = genericconf.InitLog(config.LogType, config.LogLevel, &config.FileLogging, genericconf.DefaultPathResolver(config.DataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	defer func() {
		if err := genericconf.CloseLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
		}
	}()

	if err := util.StartMetrics(config.Metrics, &config.MetricsServer); err != nil {
		log.Error("error starting metrics", "err", err)
		return 1
	}

	node, err := newConductorNode(ctx, config)
	if err != nil {
		log.Error("error creating conductor", "err", err)
		return 1
	}
	node.Start(ctx)

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	<-sigint
	// cause future ctrl+c's to panic
	close(sigint)
	log.Info("shutting down because of sigint")

	node.StopAndWait()
	return 0
}
