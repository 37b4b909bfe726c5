// Package dispatcher implements the worker pool from spec.md §4.5: fixed
// parallelism N, each worker polling JobStore.ReserveNextRunnable with
// exponential backoff when idle, plus a supervisor that reopens stale
// reservations left behind by a crashed worker.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/domain/repositories"
	"github.com/openkaraoke/studio/internal/eventbus"
)

const (
	minBackoff             = 100 * time.Millisecond
	maxBackoff             = 2 * time.Second
	staleReservationAge    = 60 * time.Second
	supervisorPollInterval = 15 * time.Second
)

// Runner executes the pipeline appropriate for a reserved job.
type Runner interface {
	Run(ctx context.Context, job *entities.Job) error
}

// Dispatcher owns the worker pool.
type Dispatcher struct {
	jobStore repositories.JobStore
	runner   Runner
	bus      *eventbus.Bus
	logger   *zap.Logger

	concurrency int

	wg   sync.WaitGroup
	stop chan struct{}
}

// New constructs a Dispatcher with the given worker count (minimum 1, per
// spec.md §6.4 "worker_concurrency").
func New(jobStore repositories.JobStore, runner Runner, bus *eventbus.Bus, logger *zap.Logger, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		jobStore:    jobStore,
		runner:      runner,
		bus:         bus,
		logger:      logger,
		concurrency: concurrency,
		stop:        make(chan struct{}),
	}
}

// Start launches the worker goroutines and the supervisor. It returns
// immediately; call Stop to shut down.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx, i)
	}
	d.wg.Add(1)
	go d.supervisorLoop(ctx)
}

// Stop signals all workers and the supervisor to exit and waits for them.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, index int) {
	defer d.wg.Done()
	backoff := minBackoff

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		default:
		}

		job, err := d.jobStore.ReserveNextRunnable(ctx)
		if err != nil {
			d.logger.Warn("reservation attempt failed", zap.Int("worker", index), zap.Error(err))
			backoff = sleepBackoff(ctx, d.stop, backoff)
			continue
		}
		if job == nil {
			backoff = sleepBackoff(ctx, d.stop, backoff)
			continue
		}

		backoff = minBackoff
		d.bus.Publish(eventbus.TopicJobUpdated, *job)
		d.runJob(ctx, index, job)
	}
}

// runJob executes the pipeline for one reservation to completion without
// yielding it, per spec.md §4.5.
func (d *Dispatcher) runJob(ctx context.Context, workerIndex int, job *entities.Job) {
	d.logger.Info("worker picked up job",
		zap.Int("worker", workerIndex), zap.String("job", job.ID), zap.String("kind", string(job.Kind)))

	err := d.runner.Run(ctx, job)
	if err == nil {
		d.logger.Info("job completed", zap.String("job", job.ID))
	}

	final, getErr := d.jobStore.GetJob(ctx, job.ID)
	if getErr != nil {
		d.logger.Error("failed to re-read job after pipeline run", zap.String("job", job.ID), zap.Error(getErr))
		return
	}

	switch final.Status {
	case entities.JobCompleted:
		d.bus.Publish(eventbus.TopicJobCompleted, *final)
	case entities.JobCancelled:
		d.bus.Publish(eventbus.TopicJobCancelled, *final)
	case entities.JobFailed:
		d.bus.Publish(eventbus.TopicJobFailed, *final)
	default:
		if err != nil {
			d.logger.Error("pipeline returned error leaving job non-terminal",
				zap.String("job", job.ID), zap.String("status", string(final.Status)), zap.Error(err))
		}
	}
}

// supervisorLoop reopens jobs left in a reserved/running state past
// staleReservationAge, recovering from a worker crash (spec.md §4.5).
func (d *Dispatcher) supervisorLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(supervisorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			n, err := d.jobStore.RequeueStaleReservations(ctx, int(staleReservationAge.Seconds()))
			if err != nil {
				d.logger.Warn("supervisor requeue pass failed", zap.Error(err))
				continue
			}
			if n > 0 {
				d.logger.Warn("supervisor requeued stale job reservations", zap.Int("count", n))
			}
		}
	}
}

// sleepBackoff sleeps for the current backoff (or returns early on
// shutdown) and returns the next, doubled and capped, backoff duration.
func sleepBackoff(ctx context.Context, stop chan struct{}, current time.Duration) time.Duration {
	timer := time.NewTimer(current)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-stop:
	case <-timer.C:
	}

	next := current * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}
