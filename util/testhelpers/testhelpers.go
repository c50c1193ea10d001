// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package testhelpers

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"regexp"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/util/colors"
)

// Fail a test should an error occur
func RequireImpl(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatal(colors.Red, printables, err, colors.Clear)
	}
}

func FailImpl(t *testing.T, printables ...interface{}) {
	t.Helper()
	t.Fatal(colors.Red, printables, colors.Clear)
}

func RandomizeSlice(slice []byte) []byte {
	_, err := rand.Read(slice)
	if err != nil {
		panic(err)
	}
	return slice
}

func RandomHash() common.Hash {
	var hash common.Hash
	RandomizeSlice(hash[:])
	return hash
}

func RandomAddress() common.Address {
	var address common.Address
	RandomizeSlice(address[:])
	return address
}

// Computes a psuedo-random uint64 on the interval [min, max]
func RandomUint64(min, max uint64) uint64 {
	return uint64(rand.Uint64()%(max-min+1) + min)
}

// RandomAmount returns a non-zero amount that fits in a single 128-bit payload word.
func RandomAmount() *uint256.Int {
	return uint256.NewInt(RandomUint64(1, 1<<40))
}

type LogHandler struct {
	mutex         sync.Mutex
	t             *testing.T
	records       []slog.Record
	streamHandler slog.Handler
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.streamHandler.Enabled(context.Background(), level)
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return h.streamHandler.WithGroup(name)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.streamHandler.WithAttrs(attrs)
}

func (h *LogHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.streamHandler.Handle(ctx, record); err != nil {
		return err
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *LogHandler) WasLogged(pattern string) bool {
	re, err := regexp.Compile(pattern)
	RequireImpl(h.t, err)
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, record := range h.records {
		if re.MatchString(record.Message) {
			return true
		}
	}
	return false
}

func (h *LogHandler) WasLoggedAtLevel(pattern string, level slog.Level) bool {
	re, err := regexp.Compile(pattern)
	RequireImpl(h.t, err)
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, record := range h.records {
		if record.Level == level && re.MatchString(record.Message) {
			return true
		}
	}
	return false
}

func newLogHandler(t *testing.T) *LogHandler {
	return &LogHandler{
		t:             t,
		records:       make([]slog.Record, 0),
		streamHandler: log.NewTerminalHandler(os.Stderr, false),
	}
}

func InitTestLog(t *testing.T, level slog.Level) *LogHandler {
	handler := newLogHandler(t)
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(level)
	log.SetDefault(log.NewLogger(glogger))
	return handler
}
