// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package bridge

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const amountWordBits = 128

// TransferFromStarknet tags a gateway withdrawal payload.
const TransferFromStarknet = 0

var (
	ErrMalformedPayload = errors.New("malformed payload")

	amountWordMask = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), amountWordBits), uint256.NewInt(1))
)

// SplitAmount splits an amount into its low and high 128-bit words.
func SplitAmount(amount *uint256.Int) (low, high *uint256.Int) {
	low = new(uint256.Int).And(amount, amountWordMask)
	high = new(uint256.Int).Rsh(amount, amountWordBits)
	return low, high
}

// JoinAmount reassembles an amount from its two words. Words wider than 128 bits
// are rejected since they would alias another amount.
func JoinAmount(low, high *uint256.Int) (*uint256.Int, error) {
	if low.Gt(amountWordMask) || high.Gt(amountWordMask) {
		return nil, fmt.Errorf("%w: amount word exceeds 128 bits", ErrMalformedPayload)
	}
	amount := new(uint256.Int).Lsh(high, amountWordBits)
	return amount.Or(amount, low), nil
}

// AmountPayload is the amount confirmation payload: [low, high].
func AmountPayload(amount *uint256.Int) []*uint256.Int {
	low, high := SplitAmount(amount)
	return []*uint256.Int{low, high}
}

func ParseAmountPayload(payload []*uint256.Int) (*uint256.Int, error) {
	if len(payload) != 2 {
		return nil, fmt.Errorf("%w: amount payload has %d words", ErrMalformedPayload, len(payload))
	}
	return JoinAmount(payload[0], payload[1])
}

// TokenWithdrawalPayload is the gateway payload: [TRANSFER_FROM_STARKNET, recipient, low, high].
func TokenWithdrawalPayload(recipient common.Address, amount *uint256.Int) []*uint256.Int {
	low, high := SplitAmount(amount)
	return []*uint256.Int{
		uint256.NewInt(TransferFromStarknet),
		AddressToWord(recipient),
		low,
		high,
	}
}

func ParseTokenWithdrawalPayload(payload []*uint256.Int) (common.Address, *uint256.Int, error) {
	if len(payload) != 4 {
		return common.Address{}, nil, fmt.Errorf("%w: withdrawal payload has %d words", ErrMalformedPayload, len(payload))
	}
	if !payload[0].IsZero() {
		return common.Address{}, nil, fmt.Errorf("%w: unexpected transfer kind %v", ErrMalformedPayload, payload[0])
	}
	recipient, err := WordToAddress(payload[1])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	amount, err := JoinAmount(payload[2], payload[3])
	if err != nil {
		return common.Address{}, nil, err
	}
	return recipient, amount, nil
}
