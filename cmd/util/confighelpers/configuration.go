// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package confighelpers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
)

// ApplyOverrides loads, in increasing order of precedence, the config files,
// the environment and the JSON string named by the conf.* options.
func ApplyOverrides(f *flag.FlagSet, k *koanf.Koanf) error {
	// Apply command line options and environment variables
	if err := applyOverrideOverrides(f, k); err != nil {
		return err
	}

	for _, configFile := range k.Strings("conf.file") {
		// Config file overrides default values and is overridden by the rest
		if err := k.Load(file.Provider(configFile), json.Parser()); err != nil {
			return fmt.Errorf("error loading local config file %q: %w", configFile, err)
		}
	}
	if len(k.Strings("conf.file")) > 0 {
		if err := applyOverrideOverrides(f, k); err != nil {
			return err
		}
	}
	return nil
}

// applyOverrideOverrides for configuration values that need to be re-applied
// after loading a config file.
func applyOverrideOverrides(f *flag.FlagSet, k *koanf.Koanf) error {
	if err := loadEnvironmentVariables(k); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}
	if s := k.String("conf.string"); s != "" {
		if err := k.Load(rawbytes.Provider([]byte(s)), json.Parser()); err != nil {
			return fmt.Errorf("error loading conf.string: %w", err)
		}
	}
	// Command line options override everything else
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return fmt.Errorf("error loading command line options: %w", err)
	}
	return nil
}

// loadEnvironmentVariables maps PREFIX_SECTION__SUB_OPTION to section.sub-option.
func loadEnvironmentVariables(k *koanf.Koanf) error {
	envPrefix := k.String("conf.env-prefix")
	if len(envPrefix) == 0 {
		return nil
	}
	return k.Load(env.Provider(envPrefix+"_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix+"_"))
		s = strings.ReplaceAll(s, "__", "-")
		return strings.ReplaceAll(s, "_", ".")
	}), nil)
}

// BeginCommonParse parses args into f and returns the koanf instance holding
// the defaults plus every override.
func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		// Unexpected number of parameters
		return nil, fmt.Errorf("unexpected parameters: %v", f.Args())
	}

	k := koanf.New(".")

	// Initial application of command line parameters and environment variables
	if err := applyOverrideOverrides(f, k); err != nil {
		return nil, err
	}
	if err := ApplyOverrides(f, k); err != nil {
		return nil, err
	}
	return k, nil
}

// EndCommonParse decodes k into config, rejecting options no field consumes.
func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused: true,

		// Default values
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Metadata:         nil,
		Result:           config,
		WeaklyTypedInput: true,
	}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{DecoderConfig: &decoderConfig}); err != nil {
		return err
	}
	return nil
}

// DumpConfig blanks sensitive options in k before it is printed.
func DumpConfig(k *koanf.Koanf, extraOverrideFields map[string]interface{}) error {
	overrideFields := map[string]interface{}{"conf.dump": false}
	for key, value := range extraOverrideFields {
		overrideFields[key] = value
	}
	if err := k.Load(confmap.Provider(overrideFields, "."), nil); err != nil {
		return fmt.Errorf("error removing extra parameters before dump: %w", err)
	}
	c, err := k.Marshal(json.Parser())
	if err != nil {
		return fmt.Errorf("unable to marshal config file to JSON: %w", err)
	}
	fmt.Println(string(c))
	return nil
}

func PrintErrorAndExit(err error, usage func(string)) {
	if err != nil && errors.Is(err, flag.ErrHelp) {
		usage(os.Args[0])
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "\nERROR: %s\n\n", err.Error())
	usage(os.Args[0])
	os.Exit(1)
}
