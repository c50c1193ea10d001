// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package conductor

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/bridge"
	"github.com/offchainlabs/conductor/util/containers"
)

// Addresses identify the two message streams a conductor joins.
type Addresses struct {
	Self           common.Address
	InputGateway   common.Address
	Counterpart    *uint256.Int
	InputL2Gateway *uint256.Int
}

// MessageWatcher turns the relay's message announcements into ride amounts.
// Each announcement of a token transfer to us or of an authorization from our
// counterpart yields its amount once.
type MessageWatcher struct {
	reader    bridge.MessageLogReader
	addresses Addresses
	config    func() *WatcherConfig

	mutex       sync.Mutex
	initialized bool
	next        uint64
	seen        *containers.LruCache[common.Hash, struct{}]
}

func NewMessageWatcher(reader bridge.MessageLogReader, addresses Addresses, config func() *WatcherConfig) *MessageWatcher {
	return &MessageWatcher{
		reader:    reader,
		addresses: addresses,
		config:    config,
		seen:      containers.NewLruCache[common.Hash, struct{}](config().SeenCacheSize),
	}
}

// classify returns the ride amount carried by msg, or nil if msg is not part
// of either stream.
func (w *MessageWatcher) classify(msg *bridge.L2ToL1Message) *uint256.Int {
	switch {
	case msg.ToAddress == w.addresses.Self && msg.FromAddress.Eq(w.addresses.Counterpart):
		amount, err := bridge.ParseAmountPayload(msg.Payload)
		if err != nil {
			log.Warn("ignoring malformed authorization message", "msg", msg, "err", err)
			return nil
		}
		return amount
	case msg.ToAddress == w.addresses.InputGateway && msg.FromAddress.Eq(w.addresses.InputL2Gateway):
		recipient, amount, err := bridge.ParseTokenWithdrawalPayload(msg.Payload)
		if err != nil {
			log.Warn("ignoring malformed token message", "msg", msg, "err", err)
			return nil
		}
		if recipient != w.addresses.Self {
			return nil
		}
		return amount
	}
	return nil
}

// NextAmounts scans the positions announced since the previous call, plus a
// few already scanned ones in case they were reorged.
func (w *MessageWatcher) NextAmounts(ctx context.Context) ([]*uint256.Int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	config := w.config()
	head, err := w.reader.Head(ctx)
	if err != nil {
		return nil, err
	}
	if !w.initialized {
		switch {
		case config.FromPosition != 0:
			w.next = config.FromPosition
		case head > config.Lookback:
			w.next = head - config.Lookback
		default:
			w.next = 0
		}
		w.initialized = true
		log.Info("watching for ride messages", "from", w.next, "head", head)
	}
	if head < w.next {
		return nil, nil
	}
	from := w.next
	if from > config.RescanDepth {
		from -= config.RescanDepth
	} else {
		from = 0
	}
	to := head
	if to-w.next >= config.MaxRange {
		to = w.next + config.MaxRange - 1
	}
	logged, err := w.reader.MessagesInRange(ctx, from, to, []common.Address{w.addresses.Self, w.addresses.InputGateway})
	if err != nil {
		return nil, err
	}
	var amounts []*uint256.Int
	for _, l := range logged {
		if w.seen.Contains(l.ID) {
			continue
		}
		w.seen.Add(l.ID, struct{}{})
		amount := w.classify(l.Message)
		if amount == nil {
			continue
		}
		log.Debug("ride message announced", "position", l.Position, "to", l.Message.ToAddress, "amount", amount)
		amounts = append(amounts, amount)
	}
	w.next = to + 1
	watcherPositionGauge.Update(int64(to))
	return amounts, nil
}
