/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"

	"github.com/acronis/go-ttlcache/log"
	"github.com/acronis/go-ttlcache/retry"
	"github.com/acronis/go-ttlcache/service"
)

// DefaultSweepFailureBackoffInitialInterval is the first delay before retrying a failed sweep.
const DefaultSweepFailureBackoffInitialInterval = 100 * time.Millisecond

const sweepFailureLogInterval = 10 * time.Second

// SweeperStatus describes the state of the background sweeper.
type SweeperStatus struct {
	// Running is false after the cache is closed.
	Running bool

	// TotalSweeps is the number of finished sweeps, both successful and failed.
	TotalSweeps uint64

	// ConsecutiveFailures is reset to 0 by a successful sweep.
	ConsecutiveFailures uint64

	// LastSweepAt is the start time of the last finished sweep.
	LastSweepAt time.Time

	// LastSweepErr is the error of the last sweep, nil if it succeeded.
	LastSweepErr error
}

// Healthy reports whether the sweeper is running and its last sweep succeeded.
func (s SweeperStatus) Healthy() bool {
	return s.Running && s.LastSweepErr == nil
}

type sweeper struct {
	sweep            func() int
	checkInterval    func() time.Duration
	logger           log.FieldLogger
	metricsCollector MetricsCollector
	unit             *service.WorkerUnit

	// Fields below are used only by the sweeping goroutine.
	failureBackOff backoff.BackOff
	sweepStartedAt time.Time
	removed        int

	running             atomic.Bool
	totalSweeps         atomic.Uint64
	consecutiveFailures atomic.Uint64
	lastSweepAt         atomic.Time
	lastSweepErr        atomic.Error
}

func newSweeper(
	sweep func() int, checkInterval func() time.Duration, logger log.FieldLogger, mc MetricsCollector, opts Options,
) *sweeper {
	s := &sweeper{
		sweep:            sweep,
		checkInterval:    checkInterval,
		logger:           logger,
		metricsCollector: mc,
		failureBackOff:   retry.WithDelayCap(opts.SweepFailureBackoff, checkInterval).NewBackOff(),
	}

	periodicWorker := service.NewPeriodicWorkerWithOpts(service.WorkerFunc(s.runOnce), checkInterval(), logger,
		service.PeriodicWorkerOpts{
			IntervalDelayFunc: s.nextDelay,
			ErrorLogInterval:  sweepFailureLogInterval,
		})

	worker := service.WorkerFunc(func(ctx context.Context) error {
		defer s.running.Store(false)
		return periodicWorker.Run(ctx)
	})

	var metricsRegisterer service.MetricsRegisterer
	if mr, ok := mc.(service.MetricsRegisterer); ok {
		metricsRegisterer = mr
	}
	s.unit = service.NewWorkerUnitWithOpts(worker, service.WorkerUnitOpts{
		MetricsRegisterer:   metricsRegisterer,
		GracefulStopTimeout: opts.GracefulStopTimeout,
	})
	return s
}

func (s *sweeper) start() {
	s.running.Store(true)
	// PeriodicWorker returns only nil, so nothing is ever sent to fatalErr.
	go s.unit.Start(make(chan error, 1))
}

func (s *sweeper) stop() error {
	return s.unit.Stop(true)
}

func (s *sweeper) runOnce(_ context.Context) error {
	s.sweepStartedAt = time.Now()
	s.removed = 0
	s.removed = s.sweep()
	return nil
}

// nextDelay is called by PeriodicWorker after every sweep, including the ones that panicked.
func (s *sweeper) nextDelay(_ service.Worker, err error) time.Duration {
	elapsed := time.Since(s.sweepStartedAt)
	s.metricsCollector.ObserveSweep(elapsed, err)
	s.totalSweeps.Inc()
	s.lastSweepAt.Store(s.sweepStartedAt)
	s.lastSweepErr.Store(err)

	if err != nil {
		s.consecutiveFailures.Inc()
		return s.failureBackOff.NextBackOff()
	}

	s.consecutiveFailures.Store(0)
	s.failureBackOff.Reset()
	if s.removed > 0 {
		s.logger.Debug("expired entries removed",
			log.Int("removed", s.removed), log.DurationIn(elapsed, time.Millisecond))
	}
	return s.checkInterval()
}

func (s *sweeper) status() SweeperStatus {
	return SweeperStatus{
		Running:             s.running.Load(),
		TotalSweeps:         s.totalSweeps.Load(),
		ConsecutiveFailures: s.consecutiveFailures.Load(),
		LastSweepAt:         s.lastSweepAt.Load(),
		LastSweepErr:        s.lastSweepErr.Load(),
	}
}
