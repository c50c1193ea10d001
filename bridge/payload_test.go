// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package bridge

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/conductor/util/testhelpers"
)

func Require(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, printables...)
}

func Fail(t *testing.T, printables ...interface{}) {
	t.Helper()
	testhelpers.FailImpl(t, printables...)
}

func TestSplitAmount(t *testing.T) {
	two128 := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	cases := []struct {
		amount *uint256.Int
		low    *uint256.Int
		high   *uint256.Int
	}{
		{uint256.NewInt(0), uint256.NewInt(0), uint256.NewInt(0)},
		{uint256.NewInt(50), uint256.NewInt(50), uint256.NewInt(0)},
		{new(uint256.Int).Sub(two128, uint256.NewInt(1)), amountWordMask, uint256.NewInt(0)},
		{two128, uint256.NewInt(0), uint256.NewInt(1)},
		{new(uint256.Int).Add(two128, uint256.NewInt(7)), uint256.NewInt(7), uint256.NewInt(1)},
		{new(uint256.Int).SetAllOne(), amountWordMask, amountWordMask},
	}
	for _, c := range cases {
		low, high := SplitAmount(c.amount)
		if !low.Eq(c.low) || !high.Eq(c.high) {
			Fail(t, "splitting", c.amount, "got", low, high, "expected", c.low, c.high)
		}
		joined, err := JoinAmount(low, high)
		Require(t, err)
		if !joined.Eq(c.amount) {
			Fail(t, "joined", joined, "expected", c.amount)
		}
	}
}

func TestJoinAmountRejectsWideWords(t *testing.T) {
	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	_, err := JoinAmount(wide, uint256.NewInt(0))
	if !errors.Is(err, ErrMalformedPayload) {
		Fail(t, "expected malformed payload, got", err)
	}
	_, err = JoinAmount(uint256.NewInt(0), wide)
	if !errors.Is(err, ErrMalformedPayload) {
		Fail(t, "expected malformed payload, got", err)
	}
}

func TestTokenWithdrawalPayload(t *testing.T) {
	recipient := testhelpers.RandomAddress()
	amount := testhelpers.RandomAmount()
	payload := TokenWithdrawalPayload(recipient, amount)
	require.Len(t, payload, 4)
	require.True(t, payload[0].IsZero())

	gotRecipient, gotAmount, err := ParseTokenWithdrawalPayload(payload)
	Require(t, err)
	require.Equal(t, recipient, gotRecipient)
	require.True(t, gotAmount.Eq(amount))

	payload[0] = uint256.NewInt(1)
	_, _, err = ParseTokenWithdrawalPayload(payload)
	require.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseAmountPayload(payload)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestWordToAddress(t *testing.T) {
	addr := testhelpers.RandomAddress()
	got, err := WordToAddress(AddressToWord(addr))
	Require(t, err)
	require.Equal(t, addr, got)

	_, err = WordToAddress(new(uint256.Int).Lsh(uint256.NewInt(1), 160))
	require.Error(t, err)
}

func TestMessageHash(t *testing.T) {
	self := common.HexToAddress("0x1111111111111111111111111111111111111111")
	counterpart := uint256.MustFromHex("0x2222222222222222222222222222222222222222")
	first := AuthorizationMessage(counterpart, self, uint256.NewInt(50))
	second := AuthorizationMessage(counterpart, self, uint256.NewInt(50))
	require.Equal(t, first.Hash(), second.Hash())
	require.Equal(t, common.HexToHash("0x4408d3e4481f8395d3ec924394dd972ba4ecc07327c2f45817cdb11d4048e669"), first.Hash())

	others := []*L2ToL1Message{
		AuthorizationMessage(counterpart, self, uint256.NewInt(51)),
		AuthorizationMessage(uint256.NewInt(1), self, uint256.NewInt(50)),
		AuthorizationMessage(counterpart, common.Address{}, uint256.NewInt(50)),
		{FromAddress: counterpart, ToAddress: self, Payload: []*uint256.Int{uint256.NewInt(50)}},
	}
	for _, other := range others {
		if other.Hash() == first.Hash() {
			Fail(t, "hash collision between", first, "and", other)
		}
	}
}
