// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/conductor/bridge/ethbridge"
	"github.com/offchainlabs/conductor/cmd/genericconf"
	"github.com/offchainlabs/conductor/cmd/util/confighelpers"
	"github.com/offchainlabs/conductor/conductor"
	"github.com/offchainlabs/conductor/conductor/creditstore"
)

type ConductorNodeConfig struct {
	Conf          genericconf.ConfConfig          `koanf:"conf"`
	LogLevel      string                          `koanf:"log-level"`
	LogType       string                          `koanf:"log-type"`
	FileLogging   genericconf.FileLoggingConfig   `koanf:"file-logging"`
	DataDir       string                          `koanf:"data-dir"`
	Dev           bool                            `koanf:"dev"`
	L1            ethbridge.Config                `koanf:"l1"`
	Conductor     conductor.Config                `koanf:"conductor"`
	Credits       creditstore.Config              `koanf:"credits"`
	HTTP          genericconf.HTTPConfig          `koanf:"http"`
	Metrics       bool                            `koanf:"metrics"`
	MetricsServer genericconf.MetricsServerConfig `koanf:"metrics-server"`
}

var ConductorNodeConfigDefault = ConductorNodeConfig{
	Conf:          genericconf.ConfConfigDefault,
	LogLevel:      "INFO",
	LogType:       "plaintext",
	FileLogging:   genericconf.DefaultFileLoggingConfig,
	DataDir:       "",
	Dev:           false,
	L1:            ethbridge.DefaultConfig,
	Conductor:     conductor.DefaultConfig,
	Credits:       creditstore.DefaultConfig,
	HTTP:          genericconf.HTTPConfigDefault,
	Metrics:       false,
	MetricsServer: genericconf.MetricsServerConfigDefault,
}

func ConductorNodeConfigAddOptions(f *flag.FlagSet) {
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("log-level", ConductorNodeConfigDefault.LogLevel, "log level, valid values are CRIT, ERROR, WARN, INFO, DEBUG, TRACE")
	f.String("log-type", ConductorNodeConfigDefault.LogType, "log type (plaintext or json)")
	genericconf.FileLoggingConfigAddOptions("file-logging", f)
	f.String("data-dir", ConductorNodeConfigDefault.DataDir, "directory relative paths are resolved against (default is the working directory)")
	f.Bool("dev", ConductorNodeConfigDefault.Dev, "run against an in-memory simulated bridge instead of L1")
	ethbridge.ConfigAddOptions("l1", f)
	conductor.ConfigAddOptions("conductor", f)
	creditstore.ConfigAddOptions("credits", f)
	genericconf.HTTPConfigAddOptions("http", f)
	f.Bool("metrics", ConductorNodeConfigDefault.Metrics, "enable metrics")
	genericconf.MetricsServerAddOptions("metrics-server", f)
}

func (c *ConductorNodeConfig) Validate() error {
	if !c.Dev {
		if err := c.L1.Validate(); err != nil {
			return fmt.Errorf("l1: %w", err)
		}
	}
	if err := c.Conductor.Validate(); err != nil {
		return fmt.Errorf("conductor: %w", err)
	}
	if err := c.Credits.Validate(); err != nil {
		return fmt.Errorf("credits: %w", err)
	}
	if c.Metrics {
		if err := c.MetricsServer.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func printSampleUsage(progname string) {
	fmt.Printf("\n")
	fmt.Printf("Sample usage:                  %s --help \n", progname)
	fmt.Printf("Simulated bridge:              %s --dev --http.port 8650\n", progname)
}

func ParseConductorNode(args []string) (*ConductorNodeConfig, error) {
	f := flag.NewFlagSet("conductor", flag.ContinueOnError)
	ConductorNodeConfigAddOptions(f)

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}

	var config ConductorNodeConfig
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, err
	}

	if config.Conf.Dump {
		err = confighelpers.DumpConfig(k, map[string]interface{}{
			"l1.private-key": "",
		})
		if err != nil {
			return nil, err
		}
		os.Exit(0)
	}

	if config.Dev && config.Credits.Backend == creditstore.BackendDB {
		// The simulated chain does not survive a restart, so neither should its credits.
		config.Credits.Backend = creditstore.BackendMemory
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
