// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	// ErrStorageRace is returned by a conditional write whose expected previous
	// value no longer matches what is stored.
	ErrStorageRace = errors.New("storage race error")

	CreditStorePrefix string = "c" // the prefix for all credit store keys
)

// Credits are the unmatched halves of rides for a single amount.
type Credits struct {
	Token         uint64
	Authorization uint64
}

func (c Credits) IsZero() bool {
	return c.Token == 0 && c.Authorization == 0
}

func (c Credits) String() string {
	return fmt.Sprintf("{token: %d, authorization: %d}", c.Token, c.Authorization)
}

// Entry pairs an amount with its credits.
type Entry struct {
	Amount  *uint256.Int
	Credits Credits
}

func EncodeCredits(c Credits) ([]byte, error) {
	return rlp.EncodeToBytes(&c)
}

func DecodeCredits(data []byte) (Credits, error) {
	var c Credits
	if err := rlp.DecodeBytes(data, &c); err != nil {
		return Credits{}, fmt.Errorf("decoding credits: %w", err)
	}
	return c, nil
}

// SortEntries orders entries by ascending amount.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Amount.Lt(entries[j].Amount)
	})
}

// AmountKey is the fixed width big-endian key of an amount, which sorts
// lexicographically in amount order.
func AmountKey(amount *uint256.Int) []byte {
	key := amount.Bytes32()
	return key[:]
}

func AmountFromKey(key []byte) (*uint256.Int, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("credit key has %d bytes, expected 32", len(key))
	}
	return new(uint256.Int).SetBytes(key), nil
}
