// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// LoggedMessage is an L2->L1 message as announced by the relay's event log.
type LoggedMessage struct {
	Position uint64
	// ID is unique per announcement, so the same message sent twice yields two IDs.
	ID      common.Hash
	Message *L2ToL1Message
}

// MessageLogReader scans the relay's announcements of L2->L1 messages.
type MessageLogReader interface {
	Head(ctx context.Context) (uint64, error)
	// MessagesInRange returns the messages announced at positions [from, to]
	// that are addressed to one of the given recipients.
	MessagesInRange(ctx context.Context, from, to uint64, recipients []common.Address) ([]LoggedMessage, error)
}
