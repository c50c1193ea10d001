// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package ethbridge

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/offchainlabs/conductor/bridge"
	"github.com/offchainlabs/conductor/solgen/go/starknetgen"
)

// LogReader reads LogMessageToL1 announcements. Positions are L1 block numbers.
type LogReader struct {
	l1 *L1
}

func (l *L1) LogReader() *LogReader {
	return &LogReader{l1: l}
}

// Head is the newest block with enough confirmations.
func (r *LogReader) Head(ctx context.Context) (uint64, error) {
	latest, err := r.l1.client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if latest < r.l1.confirmations {
		return 0, nil
	}
	return latest - r.l1.confirmations, nil
}

func (r *LogReader) MessagesInRange(ctx context.Context, from, to uint64, recipients []common.Address) ([]bridge.LoggedMessage, error) {
	if from > to {
		return nil, nil
	}
	it, err := r.l1.messaging.FilterLogMessageToL1(&bind.FilterOpts{
		Start:   from,
		End:     &to,
		Context: ctx,
	}, nil, recipients)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer it.Close()
	var messages []bridge.LoggedMessage
	for it.Next() {
		logged, err := LoggedMessageFromEvent(it.Event)
		if err != nil {
			return nil, err
		}
		messages = append(messages, logged)
	}
	if err := it.Error(); err != nil {
		return nil, errors.WithStack(err)
	}
	return messages, nil
}

// LoggedMessageID identifies one announcement by the log that carried it.
func LoggedMessageID(txHash common.Hash, logIndex uint) common.Hash {
	var index [8]byte
	binary.BigEndian.PutUint64(index[:], uint64(logIndex))
	return crypto.Keccak256Hash(txHash[:], index[:])
}

func LoggedMessageFromEvent(ev *starknetgen.IStarknetMessagingLogMessageToL1) (bridge.LoggedMessage, error) {
	from, err := fromBig(ev.FromAddress)
	if err != nil {
		return bridge.LoggedMessage{}, errors.Wrap(err, "message sender")
	}
	payload := make([]*uint256.Int, len(ev.Payload))
	for i, word := range ev.Payload {
		if payload[i], err = fromBig(word); err != nil {
			return bridge.LoggedMessage{}, errors.Wrapf(err, "payload word %d", i)
		}
	}
	return bridge.LoggedMessage{
		Position: ev.Raw.BlockNumber,
		ID:       LoggedMessageID(ev.Raw.TxHash, ev.Raw.Index),
		Message: &bridge.L2ToL1Message{
			FromAddress: from,
			ToAddress:   ev.ToAddress,
			Payload:     payload,
		},
	}, nil
}
