// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package ethbridge

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	flag "github.com/spf13/pflag"
)

type Config struct {
	URL           string        `koanf:"url"`
	ChainID       uint64        `koanf:"chain-id"`
	PrivateKey    string        `koanf:"private-key"`
	Confirmations uint64        `koanf:"confirmations"`
	TxTimeout     time.Duration `koanf:"tx-timeout"`

	Messaging       string `koanf:"messaging"`
	InputToken      string `koanf:"input-token"`
	OutputToken     string `koanf:"output-token"`
	InputGateway    string `koanf:"input-gateway"`
	OutputGateway   string `koanf:"output-gateway"`
	InputL2Gateway  string `koanf:"input-l2-gateway"`
	OutputL2Gateway string `koanf:"output-l2-gateway"`
	L2Counterpart   string `koanf:"l2-counterpart"`
	L2Recipient     string `koanf:"l2-recipient"`
	ActionTarget    string `koanf:"action-target"`
	ActionSelector  string `koanf:"action-selector"`
}

var DefaultConfig = Config{
	URL:            "",
	ChainID:        0,
	PrivateKey:     "",
	Confirmations:  1,
	TxTimeout:      5 * time.Minute,
	ActionSelector: "0xb6b55f25",
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".url", DefaultConfig.URL, "L1 node RPC URL")
	f.Uint64(prefix+".chain-id", DefaultConfig.ChainID, "L1 chain id (0 = ask the node)")
	f.String(prefix+".private-key", DefaultConfig.PrivateKey, "hex private key of the conductor's own L1 account")
	f.Uint64(prefix+".confirmations", DefaultConfig.Confirmations, "blocks a message announcement must be buried under before it is watched")
	f.Duration(prefix+".tx-timeout", DefaultConfig.TxTimeout, "how long to wait for a sent transaction to be mined")
	f.String(prefix+".messaging", DefaultConfig.Messaging, "address of the L2->L1 messaging core")
	f.String(prefix+".input-token", DefaultConfig.InputToken, "address of the input token")
	f.String(prefix+".output-token", DefaultConfig.OutputToken, "address of the output token")
	f.String(prefix+".input-gateway", DefaultConfig.InputGateway, "address of the input token's L1 gateway")
	f.String(prefix+".output-gateway", DefaultConfig.OutputGateway, "address of the output token's L1 gateway")
	f.String(prefix+".input-l2-gateway", DefaultConfig.InputL2Gateway, "L2 counterpart of the input gateway")
	f.String(prefix+".output-l2-gateway", DefaultConfig.OutputL2Gateway, "L2 counterpart of the output gateway")
	f.String(prefix+".l2-counterpart", DefaultConfig.L2Counterpart, "L2 contract allowed to confirm ride amounts")
	f.String(prefix+".l2-recipient", DefaultConfig.L2Recipient, "L2 recipient of pushed output")
	f.String(prefix+".action-target", DefaultConfig.ActionTarget, "address of the value action contract")
	f.String(prefix+".action-selector", DefaultConfig.ActionSelector, "4-byte selector of the value action, called with the input amount")
}

// Deployment is the parsed form of the addresses in Config.
type Deployment struct {
	Messaging       common.Address
	InputToken      common.Address
	OutputToken     common.Address
	InputGateway    common.Address
	OutputGateway   common.Address
	InputL2Gateway  *uint256.Int
	OutputL2Gateway *uint256.Int
	L2Counterpart   *uint256.Int
	L2Recipient     *uint256.Int
	ActionTarget    common.Address
	ActionSelector  [4]byte
}

func parseL1Address(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s address must be set", name)
	}
	return addr, nil
}

// ParseL2Address parses an L2 address given in hex (leading zeros allowed) or
// in decimal.
func ParseL2Address(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, errors.New("empty L2 address")
	}
	var (
		addr *uint256.Int
		err  error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" {
			digits = "0"
		}
		addr, err = uint256.FromHex("0x" + digits)
	} else if strings.HasPrefix(s, "-") {
		err = errors.New("negative")
	} else {
		addr, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid L2 address %q: %w", s, err)
	}
	if addr.IsZero() {
		return nil, fmt.Errorf("L2 address %q is zero", s)
	}
	return addr, nil
}

func ParseSelector(s string) ([4]byte, error) {
	var selector [4]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return selector, fmt.Errorf("invalid selector %q: %w", s, err)
	}
	if len(b) != len(selector) {
		return selector, fmt.Errorf("selector %q is %d bytes, not 4", s, len(b))
	}
	copy(selector[:], b)
	return selector, nil
}

func (c *Config) Key() (*ecdsa.PrivateKey, error) {
	if c.PrivateKey == "" {
		return nil, errors.New("private key must be set")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func (c *Config) Deployment() (*Deployment, error) {
	d := &Deployment{}
	var err error
	for _, field := range []struct {
		name string
		in   string
		out  *common.Address
	}{
		{"messaging", c.Messaging, &d.Messaging},
		{"input token", c.InputToken, &d.InputToken},
		{"output token", c.OutputToken, &d.OutputToken},
		{"input gateway", c.InputGateway, &d.InputGateway},
		{"output gateway", c.OutputGateway, &d.OutputGateway},
		{"action target", c.ActionTarget, &d.ActionTarget},
	} {
		if *field.out, err = parseL1Address(field.name, field.in); err != nil {
			return nil, err
		}
	}
	for _, field := range []struct {
		name string
		in   string
		out  **uint256.Int
	}{
		{"input L2 gateway", c.InputL2Gateway, &d.InputL2Gateway},
		{"output L2 gateway", c.OutputL2Gateway, &d.OutputL2Gateway},
		{"L2 counterpart", c.L2Counterpart, &d.L2Counterpart},
		{"L2 recipient", c.L2Recipient, &d.L2Recipient},
	} {
		if *field.out, err = ParseL2Address(field.in); err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
	}
	if d.ActionSelector, err = ParseSelector(c.ActionSelector); err != nil {
		return nil, err
	}
	if d.InputToken == d.OutputToken {
		return nil, errors.New("input and output tokens must differ")
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("L1 URL must be set")
	}
	if c.TxTimeout <= 0 {
		return errors.New("tx timeout must be positive")
	}
	if _, err := c.Key(); err != nil {
		return err
	}
	_, err := c.Deployment()
	return err
}
