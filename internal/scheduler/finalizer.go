// Package scheduler runs the daily sweep that finishes bookings whose stay
// has ended.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/iliyamo/rental-booking/internal/clock"
	"github.com/iliyamo/rental-booking/internal/config"
	"github.com/iliyamo/rental-booking/internal/metrics"
)

// ErrRunInProgress is returned by RunOnce while another run is active.
var ErrRunInProgress = errors.New("finalizer run already in progress")

// Sweeper finishes elapsed bookings and reports how many it finished.
type Sweeper interface {
	FinishElapsed(ctx context.Context) (int, error)
}

// Finalizer triggers a Sweeper once a day at a fixed UTC time.
type Finalizer struct {
	sweeper Sweeper
	clock   clock.Clock
	hour    int
	minute  int
	running atomic.Bool
	log     *slog.Logger
}

// NewFinalizer returns a Finalizer that runs at the UTC wall-clock time at
// ("HH:MM").
func NewFinalizer(s Sweeper, at string, clk clock.Clock, log *slog.Logger) (*Finalizer, error) {
	h, m, err := config.ParseClock(at)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Finalizer{sweeper: s, clock: clk, hour: h, minute: m, log: log.With("component", "finalizer")}, nil
}

// RunOnce performs one sweep now.  Runs never overlap.
func (f *Finalizer) RunOnce(ctx context.Context) (int, error) {
	if !f.running.CompareAndSwap(false, true) {
		metrics.FinalizerRuns.WithLabelValues("skipped").Inc()
		return 0, ErrRunInProgress
	}
	defer f.running.Store(false)

	started := f.clock.Now()
	n, err := f.sweeper.FinishElapsed(ctx)
	if err != nil {
		metrics.FinalizerRuns.WithLabelValues("failed").Inc()
		f.log.Error("finalizer run failed", "finished", n, "err", err)
		return n, err
	}
	metrics.FinalizerRuns.WithLabelValues("ok").Inc()
	f.log.Info("finalizer run complete", "finished", n, "took", f.clock.Now().Sub(started))
	return n, nil
}

// Start runs the daily loop until ctx is cancelled.
func (f *Finalizer) Start(ctx context.Context) {
	for {
		now := f.clock.Now()
		next := nextDaily(now, f.hour, f.minute)
		f.log.Debug("finalizer scheduled", "at", next)
		select {
		case <-ctx.Done():
			return
		case <-f.clock.After(next.Sub(now)):
		}
		if _, err := f.RunOnce(ctx); errors.Is(err, ErrRunInProgress) {
			f.log.Warn("finalizer tick skipped, previous run still active")
		}
	}
}

// nextDaily returns the first hour:minute UTC strictly after now.
func nextDaily(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
