// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package bridge

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// L2ToL1Message is a message sent from an L2 contract to an L1 address through
// the messaging relay. Its identity is its hash; the relay keeps a count per hash.
type L2ToL1Message struct {
	FromAddress *uint256.Int
	ToAddress   common.Address
	Payload     []*uint256.Int
}

// Hash matches the relay's keccak256(abi.encodePacked(from, to, len(payload), payload)).
func (m *L2ToL1Message) Hash() common.Hash {
	words := make([][]byte, 0, len(m.Payload)+3)
	from := m.FromAddress.Bytes32()
	words = append(words, from[:])
	words = append(words, common.LeftPadBytes(m.ToAddress.Bytes(), 32))
	length := uint256.NewInt(uint64(len(m.Payload))).Bytes32()
	words = append(words, length[:])
	for _, word := range m.Payload {
		b := word.Bytes32()
		words = append(words, b[:])
	}
	return crypto.Keccak256Hash(words...)
}

func (m *L2ToL1Message) String() string {
	return fmt.Sprintf("L2ToL1Message{from: %v, to: %v, payload: %v}", m.FromAddress.Hex(), m.ToAddress, m.Payload)
}

// AuthorizationMessage is the amount confirmation sent by the L2 counterpart to us.
func AuthorizationMessage(counterpart *uint256.Int, self common.Address, amount *uint256.Int) *L2ToL1Message {
	return &L2ToL1Message{
		FromAddress: counterpart,
		ToAddress:   self,
		Payload:     AmountPayload(amount),
	}
}

// TokenWithdrawalMessage is the message an L2 gateway sends to its L1 gateway to
// release amount units of its token to recipient.
func TokenWithdrawalMessage(l2Gateway *uint256.Int, l1Gateway common.Address, recipient common.Address, amount *uint256.Int) *L2ToL1Message {
	return &L2ToL1Message{
		FromAddress: l2Gateway,
		ToAddress:   l1Gateway,
		Payload:     TokenWithdrawalPayload(recipient, amount),
	}
}

// L1ToL2Deposit records funds a gateway relayed toward L2.
type L1ToL2Deposit struct {
	Gateway   common.Address
	Sender    common.Address
	Recipient *uint256.Int
	Amount    *uint256.Int
}

// AddressToWord widens an L1 address into a payload word.
func AddressToWord(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}

// WordToAddress narrows a payload word into an L1 address, failing when the
// word does not fit in 160 bits.
func WordToAddress(word *uint256.Int) (common.Address, error) {
	if word.BitLen() > 160 {
		return common.Address{}, fmt.Errorf("payload word %v is not an address", word.Hex())
	}
	b := word.Bytes32()
	return common.BytesToAddress(b[12:]), nil
}
