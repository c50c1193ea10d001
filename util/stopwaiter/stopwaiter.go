// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

// Package stopwaiter ties the background threads of a component to one
// context so they can be stopped together.
package stopwaiter

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const stopDelayWarningTimeout = 30 * time.Second

var (
	errNotStarted        = errors.New("not started")
	errStartedTwice      = errors.New("start after start")
	errStartAfterStopped = errors.New("thread launched after stop")
)

// StopWaiter is embedded by components owning background threads. Misuse
// (starting twice, launching before start) panics.
type StopWaiter struct {
	mutex     sync.Mutex // guards everything but threads
	name      string
	started   bool
	stopped   bool
	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	threads sync.WaitGroup
}

func typeName(parent any) string {
	return strings.TrimPrefix(reflect.TypeOf(parent).String(), "*")
}

// Start derives the threads' context from ctx. Starting an already stopped
// StopWaiter leaves it cancelled.
func (s *StopWaiter) Start(ctx context.Context, parent any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		panic(errStartedTwice)
	}
	s.started = true
	s.name = typeName(parent)
	s.parentCtx = ctx
	s.ctx, s.cancel = context.WithCancel(ctx)
	if s.stopped {
		s.cancel()
	}
}

func (s *StopWaiter) Started() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}

func (s *StopWaiter) Stopped() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stopped
}

// GetParentContext returns the context given to Start, which outlives stop.
func (s *StopWaiter) GetParentContext() (context.Context, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		return nil, errNotStarted
	}
	return s.parentCtx, nil
}

// StopOnly cancels the threads without waiting for them. It reports whether
// this call did the cancelling.
func (s *StopWaiter) StopOnly() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cancelled := s.started && !s.stopped
	if cancelled {
		s.cancel()
	}
	s.stopped = true
	return cancelled
}

// StopAndWait may be called any number of times, even before Start.
func (s *StopWaiter) StopAndWait() {
	s.stopAndWait(stopDelayWarningTimeout)
}

func (s *StopWaiter) stopAndWait(warnAfter time.Duration) {
	if !s.StopOnly() {
		return
	}
	done := s.doneChannel()
	timer := time.NewTimer(warnAfter)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
		log.Warn("taking too long to stop", "name", s.name, "delay[s]", warnAfter.Seconds())
	}
	<-done
}

// doneChannel is closed once the context is cancelled and every thread returned.
func (s *StopWaiter) doneChannel() <-chan struct{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
		ctx := s.ctx
		go func() {
			<-ctx.Done()
			s.threads.Wait()
			close(s.done)
		}()
	}
	return s.done
}

// LaunchThread runs thread with the StopWaiter's context. Threads launched
// after stop are silently skipped.
func (s *StopWaiter) LaunchThread(thread func(context.Context)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.started {
		panic(errNotStarted)
	}
	if s.stopped {
		log.Debug("not launching thread", "name", s.name, "err", errStartAfterStopped)
		return
	}
	ctx := s.ctx
	s.threads.Add(1)
	go func() {
		defer s.threads.Done()
		thread(ctx)
	}()
}

// CallIteratively calls foo until stopped, sleeping for the interval it returns.
func (s *StopWaiter) CallIteratively(foo func(context.Context) time.Duration) {
	s.LaunchThread(func(ctx context.Context) {
		for {
			interval := foo(ctx)
			if ctx.Err() != nil {
				return
			}
			if interval == 0 {
				continue
			}
			if !sleep(ctx, interval) {
				return
			}
		}
	})
}

// CallIterativelyWith is CallIteratively where a value received from trigger
// cuts the sleep short and is passed to the next call. Calls after a full
// sleep get the zero value.
func CallIterativelyWith[T any](s *StopWaiter, foo func(context.Context, T) time.Duration, trigger <-chan T) {
	s.LaunchThread(func(ctx context.Context) {
		var val T
		for {
			interval := foo(ctx, val)
			if ctx.Err() != nil {
				return
			}
			var zero T
			val = zero
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			case val = <-trigger:
				timer.Stop()
			}
		}
	})
}

// sleep waits for d or ctx, and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
