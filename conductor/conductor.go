// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

// Package conductor settles rides: it joins token transfers and amount
// authorizations bridged from L2, runs the value action once both halves of a
// ride are present and bridges the output back to L2.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/conductor/bridge"
	"github.com/offchainlabs/conductor/conductor/creditstore"
	"github.com/offchainlabs/conductor/conductor/creditstore/storage"
	"github.com/offchainlabs/conductor/util/redislock"
	"github.com/offchainlabs/conductor/util/stopwaiter"
)

// AmountSource yields amounts worth attempting, typically because a message
// for them was just announced.
type AmountSource interface {
	NextAmounts(ctx context.Context) ([]*uint256.Int, error)
}

type Conductor struct {
	stopwaiter.StopWaiter
	config  ConfigFetcher
	inbox   bridge.AuthorizationInbox
	gateway bridge.TokenGateway
	action  bridge.ValueAction
	store   creditstore.Storage
	lock    *redislock.Simple
	source  AmountSource

	// mutex serializes every operation touching the credit tables or custody.
	mutex sync.Mutex

	// backlog is only touched by the keeper thread.
	backlog []*uint256.Int
	trigger chan struct{}
}

// NewConductor builds a conductor. lock and source may be nil: without a lock
// the process assumes it is the only writer of the store, and without a source
// the keeper only retries rides whose action failed.
func NewConductor(
	config ConfigFetcher,
	inbox bridge.AuthorizationInbox,
	gateway bridge.TokenGateway,
	action bridge.ValueAction,
	store creditstore.Storage,
	lock *redislock.Simple,
	source AmountSource,
) (*Conductor, error) {
	if err := config().Validate(); err != nil {
		return nil, err
	}
	if inbox == nil || gateway == nil || action == nil || store == nil {
		return nil, errors.New("conductor is missing an adapter or its credit store")
	}
	return &Conductor{
		config:  config,
		inbox:   inbox,
		gateway: gateway,
		action:  action,
		store:   store,
		lock:    lock,
		source:  source,
		trigger: make(chan struct{}, 1),
	}, nil
}

// Trigger wakes the keeper ahead of its interval, typically because new
// messages were just sent.
func (c *Conductor) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

func (c *Conductor) acquire(ctx context.Context) error {
	if c.lock != nil && !c.lock.AttemptLock(ctx) {
		return ErrLockNotHeld
	}
	return nil
}

// ExecuteRides attempts every amount in order. Entries that are not ready, are
// rejected or fail do not stop the batch; the returned error is set only when
// the batch was aborted, in which case the results cover the entries processed
// so far.
func (c *Conductor) ExecuteRides(ctx context.Context, amounts []*uint256.Int) ([]RideResult, error) {
	if maxBatch := c.config().MaxBatchSize; len(amounts) > maxBatch {
		return nil, fmt.Errorf("%w: %d rides, max %d", ErrBatchTooLarge, len(amounts), maxBatch)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	results := make([]RideResult, 0, len(amounts))
	for _, amount := range amounts {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := c.executeRide(ctx, amount)
		if err != nil {
			log.Error("aborting ride batch", "amount", amount, "processed", len(results), "err", err)
			return results, err
		}
		countResult(result)
		results = append(results, result)
	}
	return results, nil
}

// putCredits ignores cancellation since the messages behind a credit change
// have already been consumed.
func (c *Conductor) putCredits(ctx context.Context, amount *uint256.Int, prev, next storage.Credits) error {
	if err := c.store.Put(context.WithoutCancel(ctx), amount, prev, next); err != nil {
		return fmt.Errorf("updating credits for %v from %v to %v: %w", amount, prev, next, err)
	}
	return nil
}

// executeRide processes a single entry. Only errors that must abort the batch
// are returned; everything else is reported through the result.
func (c *Conductor) executeRide(ctx context.Context, amount *uint256.Int) (RideResult, error) {
	result := RideResult{Amount: amount}
	if amount == nil || amount.IsZero() {
		result.Status = RideRejected
		result.Err = ErrZeroAmount
		return result, nil
	}
	credits, err := c.store.Get(ctx, amount)
	if err != nil {
		return result, fmt.Errorf("reading credits for %v: %w", amount, err)
	}
	if credits.Token == 0 {
		pulled, err := c.gateway.Pull(ctx, bridge.InputToken, amount)
		if errors.Is(err, bridge.ErrOutcomeUnknown) {
			// The withdrawal was sent for a message that was there, so count it.
			outcomeUnknownCounter.Inc(1)
			log.Error("withdrawal outcome unknown, crediting input tokens", "amount", amount, "err", err)
			pulled, err = true, nil
		}
		if err != nil {
			result.Status = RideFailed
			result.Credits = credits
			result.Err = fmt.Errorf("%w: pulling %v input tokens: %v", ErrProbeFailed, amount, err)
			log.Warn("failed to probe for token message", "amount", amount, "err", err)
			return result, nil
		}
		if pulled {
			next := credits
			next.Token++
			if err := c.putCredits(ctx, amount, credits, next); err != nil {
				return result, err
			}
			credits = next
			tokenMessagesCounter.Inc(1)
			log.Info("pulled input tokens", "amount", amount)
		}
	}
	if credits.Authorization == 0 {
		consumed, err := c.inbox.TryConsumeAuthorization(ctx, amount)
		if errors.Is(err, bridge.ErrOutcomeUnknown) {
			outcomeUnknownCounter.Inc(1)
			log.Error("authorization consumption outcome unknown, crediting authorization", "amount", amount, "err", err)
			consumed, err = true, nil
		}
		if err != nil {
			result.Status = RideFailed
			result.Credits = credits
			result.Err = fmt.Errorf("%w: consuming authorization for %v: %v", ErrProbeFailed, amount, err)
			log.Warn("failed to probe for authorization message", "amount", amount, "err", err)
			return result, nil
		}
		if consumed {
			next := credits
			next.Authorization++
			if err := c.putCredits(ctx, amount, credits, next); err != nil {
				return result, err
			}
			credits = next
			authMessagesCounter.Inc(1)
			log.Info("consumed authorization", "amount", amount)
		}
	}
	if credits.Token == 0 || credits.Authorization == 0 {
		result.Status = RidePending
		result.Credits = credits
		return result, nil
	}
	return c.ride(ctx, amount, credits)
}

// ride spends one credit of each kind on an execution of the value action and
// pushes its output. The credits are restored if the action never ran.
func (c *Conductor) ride(ctx context.Context, amount *uint256.Int, credits storage.Credits) (RideResult, error) {
	result := RideResult{Amount: amount, Status: RideFailed}
	spent := storage.Credits{Token: credits.Token - 1, Authorization: credits.Authorization - 1}
	if err := c.putCredits(ctx, amount, credits, spent); err != nil {
		return result, err
	}
	restore := func(cause error) (RideResult, error) {
		if err := c.putCredits(ctx, amount, spent, credits); err != nil {
			log.Error("failed to restore credits, ride needs manual recovery", "amount", amount, "cause", cause, "err", err)
			return result, err
		}
		result.Credits = credits
		result.Err = cause
		return result, nil
	}

	custody, err := c.gateway.Custody(ctx, bridge.InputToken)
	if err != nil {
		return restore(fmt.Errorf("%w: reading input custody: %v", ErrProbeFailed, err))
	}
	if custody.Lt(amount) {
		log.Error("input custody does not cover ride", "amount", amount, "custody", custody)
		return restore(fmt.Errorf("%w: have %v input tokens, ride needs %v", ErrInsufficientCustody, custody, amount))
	}

	// Once the action is invoked the ride runs to completion regardless of cancellation.
	rideCtx := context.WithoutCancel(ctx)
	output, err := c.action.Invoke(rideCtx, amount)
	if errors.Is(err, bridge.ErrOutcomeUnknown) {
		// The action may have run with the ride's input, so restoring the
		// credits could spend custody belonging to other rides.
		actionFailedCounter.Inc(1)
		outcomeUnknownCounter.Inc(1)
		log.Error("value action outcome unknown, credits stay spent and custody needs manual reconciliation", "amount", amount, "err", err)
		result.Credits = spent
		result.Err = fmt.Errorf("%w: value action: %v", ErrOutcomeUnknown, err)
		return result, nil
	}
	if err != nil {
		actionFailedCounter.Inc(1)
		log.Error("value action failed after both messages were consumed, credits restored", "amount", amount, "err", err)
		return restore(fmt.Errorf("%w: %v", ErrValueActionFailed, err))
	}
	result.Output = output
	result.Credits = spent
	if output.IsZero() {
		log.Warn("value action produced no output", "amount", amount)
		result.Status = RideSettled
		return result, nil
	}
	if err := c.gateway.Push(rideCtx, bridge.OutputToken, output); err != nil {
		pushFailedCounter.Inc(1)
		log.Error("failed to push ride output, output is stranded in custody", "amount", amount, "output", output, "err", err)
		if serr := c.addStranded(rideCtx, output); serr != nil {
			return result, serr
		}
		result.Err = fmt.Errorf("%w: %v", ErrPushFailed, err)
		return result, nil
	}
	result.Status = RideSettled
	log.Info("ride settled", "amount", amount, "output", output)
	return result, nil
}

func (c *Conductor) addStranded(ctx context.Context, output *uint256.Int) error {
	prev, err := c.store.Stranded(ctx)
	if err != nil {
		return fmt.Errorf("reading stranded output: %w", err)
	}
	next, overflow := new(uint256.Int).AddOverflow(prev, output)
	if overflow {
		return fmt.Errorf("stranded output overflows: %v + %v", prev, output)
	}
	if err := c.store.PutStranded(ctx, prev, next); err != nil {
		return fmt.Errorf("recording %v stranded output: %w", output, err)
	}
	return nil
}

// PendingCredits returns the unmatched credits held for amount.
func (c *Conductor) PendingCredits(ctx context.Context, amount *uint256.Int) (storage.Credits, error) {
	if amount == nil {
		return storage.Credits{}, fmt.Errorf("%w: no amount given", ErrZeroAmount)
	}
	return c.store.Get(ctx, amount)
}

// AllCredits lists every amount with unmatched credits.
func (c *Conductor) AllCredits(ctx context.Context) ([]storage.Entry, error) {
	return c.store.All(ctx)
}

// StrandedOutput is the output left in custody by failed pushes.
func (c *Conductor) StrandedOutput(ctx context.Context) (*uint256.Int, error) {
	return c.store.Stranded(ctx)
}

// ForwardStranded pushes all stranded output to L2 and returns the amount
// forwarded.
func (c *Conductor) ForwardStranded(ctx context.Context) (*uint256.Int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	stranded, err := c.store.Stranded(ctx)
	if err != nil {
		return nil, err
	}
	if stranded.IsZero() {
		return stranded, nil
	}
	if err := c.gateway.Push(ctx, bridge.OutputToken, stranded); err != nil {
		pushFailedCounter.Inc(1)
		return nil, fmt.Errorf("%w: forwarding %v stranded output: %v", ErrPushFailed, stranded, err)
	}
	if err := c.store.PutStranded(context.WithoutCancel(ctx), stranded, new(uint256.Int)); err != nil {
		log.Error("forwarded stranded output but failed to clear it", "amount", stranded, "err", err)
		return stranded, err
	}
	log.Info("forwarded stranded output", "amount", stranded)
	return stranded, nil
}

// restoredAmounts are amounts holding both kinds of credit, which only happens
// after a ride's action failed.
func restoredAmounts(entries []storage.Entry) []*uint256.Int {
	var amounts []*uint256.Int
	for _, entry := range entries {
		if entry.Credits.Token > 0 && entry.Credits.Authorization > 0 {
			amounts = append(amounts, entry.Amount)
		}
	}
	return amounts
}

func containsAmount(amounts []*uint256.Int, amount *uint256.Int) bool {
	for _, a := range amounts {
		if a.Eq(amount) {
			return true
		}
	}
	return false
}

// keeperPass drains the amount source and executes the backlog in batches.
// Amounts left over by an aborted batch, or refused because another process
// holds the lock, stay in the backlog for the next pass.
func (c *Conductor) keeperPass(ctx context.Context, _ struct{}) time.Duration {
	config := c.config()
	if c.source != nil {
		amounts, err := c.source.NextAmounts(ctx)
		if err != nil {
			log.Warn("failed to read new ride amounts", "err", err)
		}
		c.backlog = append(c.backlog, amounts...)
	}
	if config.Keeper.RetryRestored {
		entries, err := c.store.All(ctx)
		if err != nil {
			log.Warn("failed to list credits", "err", err)
		}
		for _, amount := range restoredAmounts(entries) {
			if !containsAmount(c.backlog, amount) {
				c.backlog = append(c.backlog, amount)
			}
		}
	}
	for len(c.backlog) > 0 && ctx.Err() == nil {
		batch := c.backlog
		if len(batch) > config.MaxBatchSize {
			batch = batch[:config.MaxBatchSize]
		}
		results, err := c.ExecuteRides(ctx, batch)
		c.backlog = c.backlog[len(results):]
		if errors.Is(err, ErrLockNotHeld) {
			log.Debug("not executing rides, lock held elsewhere", "backlog", len(c.backlog))
			break
		}
		if err != nil {
			log.Warn("ride batch aborted", "err", err)
			break
		}
		for _, result := range results {
			if result.Err != nil && result.Status != RideRejected {
				log.Warn("ride failed", "amount", result.Amount, "status", result.Status, "err", result.Err)
			}
		}
	}
	c.trimBacklog(config.Keeper.MaxBacklog)
	c.updateGauges(ctx)
	return config.Keeper.Interval
}

// trimBacklog drops the oldest amounts beyond max.
func (c *Conductor) trimBacklog(max int) {
	if len(c.backlog) <= max {
		return
	}
	dropped := len(c.backlog) - max
	log.Warn("ride backlog full, dropping oldest amounts", "dropped", dropped, "kept", max)
	c.backlog = append([]*uint256.Int(nil), c.backlog[dropped:]...)
}

func (c *Conductor) updateGauges(ctx context.Context) {
	entries, err := c.store.All(ctx)
	if err != nil {
		return
	}
	stranded, err := c.store.Stranded(ctx)
	if err != nil {
		return
	}
	updateCreditGauges(entries, stranded)
}

func (c *Conductor) Start(ctxIn context.Context) {
	c.StopWaiter.Start(ctxIn, c)
	if c.lock != nil {
		c.lock.Start(ctxIn)
	}
	if !c.config().Keeper.Enable {
		return
	}
	stopwaiter.CallIterativelyWith[struct{}](&c.StopWaiter, c.keeperPass, c.trigger)
}

func (c *Conductor) StopAndWait() {
	c.StopWaiter.StopAndWait()
	if c.lock != nil {
		c.lock.StopAndWait()
	}
}
