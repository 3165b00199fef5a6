/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-ttlcache/log"
)

// ErrPeriodicWorkerStop is an error that may be used for interrupting PeriodicWorker's loop.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker error")

const panicStackSize = 8192

// PanicError is returned by PeriodicWorker when the underlying worker panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

// Error returns a string representation of the recovered panic.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %+v", e.Value)
}

// Worker performs some (usually long-running) work.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorker represents a worker that runs underlying worker periodically.
// Errors and panics of the underlying worker are logged and don't stop the loop.
type PeriodicWorker struct {
	worker            Worker
	logger            log.FieldLogger
	initialDelay      time.Duration
	intervalDelay     time.Duration
	intervalDelayFunc func(worker Worker, err error) time.Duration
	errorLogLimiter   *rate.Sometimes
}

// PeriodicWorkerOpts contains optional parameters for constructing PeriodicWorker.
type PeriodicWorkerOpts struct {
	InitialDelay time.Duration

	// IntervalDelayFunc is called after every run (including failed and panicked ones)
	// and returns a delay before the next run.
	IntervalDelayFunc func(worker Worker, err error) time.Duration

	// ErrorLogInterval limits logging of failed runs: the first error is always logged,
	// subsequent ones not more often than once per interval. Zero means every error is logged.
	ErrorLogInterval time.Duration
}

// NewPeriodicWorker creates a new instance of PeriodicWorker with constant delays.
func NewPeriodicWorker(worker Worker, intervalDelay time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return NewPeriodicWorkerWithOpts(worker, intervalDelay, logger, PeriodicWorkerOpts{})
}

// NewPeriodicWorkerWithOpts creates a new instance of PeriodicWorker
// with an ability to specify different optional parameters.
func NewPeriodicWorkerWithOpts(
	worker Worker, intervalDelay time.Duration, logger log.FieldLogger, opts PeriodicWorkerOpts,
) *PeriodicWorker {
	pw := &PeriodicWorker{
		worker:            worker,
		initialDelay:      opts.InitialDelay,
		intervalDelay:     intervalDelay,
		intervalDelayFunc: opts.IntervalDelayFunc,
		logger:            logger,
	}
	if opts.ErrorLogInterval > 0 {
		pw.errorLogLimiter = &rate.Sometimes{First: 1, Interval: opts.ErrorLogInterval}
	}
	return pw
}

// Run runs PeriodicWorker loop until the context is canceled or the worker returns ErrPeriodicWorkerStop.
func (pw *PeriodicWorker) Run(ctx context.Context) error {
	pw.logger.Infof("running periodic worker (initialDelay=%s, intervalDelay=%s)...",
		pw.initialDelay, pw.intervalDelay)
	defer pw.logger.Info("periodic worker stopped successfully")

	timer := time.NewTimer(pw.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		err := pw.runWorker(ctx)
		if err != nil {
			if errors.Is(err, ErrPeriodicWorkerStop) {
				return nil
			}
			pw.logError(err)
		}

		nextDelay := pw.intervalDelay
		if pw.intervalDelayFunc != nil {
			nextDelay = pw.intervalDelayFunc(pw.worker, err)
		}
		timer.Reset(nextDelay)
	}
}

func (pw *PeriodicWorker) runWorker(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			stack := make([]byte, panicStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			err = &PanicError{Value: p, Stack: stack}
		}
	}()
	return pw.worker.Run(ctx)
}

func (pw *PeriodicWorker) logError(err error) {
	logFn := func() {
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			pw.logger.Error("periodically running worker panicked", log.Error(err), log.Bytes("stack", panicErr.Stack))
			return
		}
		pw.logger.Error("periodically running worker finished with error", log.Error(err))
	}
	if pw.errorLogLimiter == nil {
		logFn()
		return
	}
	pw.errorLogLimiter.Do(logFn)
}
