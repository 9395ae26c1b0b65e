// Package syncloop implements DatabaseSyncLoop (C7): a throttled background
// loop that reconciles the in-memory running-execution registry against
// the durable store, adapted from the teacher's ticker-driven reconciler
// shape.
package syncloop

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/scalecore/scheduler/pkg/cleanup"
	"github.com/scalecore/scheduler/pkg/cluster"
	"github.com/scalecore/scheduler/pkg/execution"
	"github.com/scalecore/scheduler/pkg/log"
	"github.com/scalecore/scheduler/pkg/metrics"
	"github.com/scalecore/scheduler/pkg/model"
	"github.com/scalecore/scheduler/pkg/runningjob"
	"github.com/scalecore/scheduler/pkg/storage"
)

// Throttle is the floor between successive ticks (spec §4.7).
const Throttle = 10 * time.Second

// CatalogSyncers groups the upstream catalog refreshes the sync loop
// performs before reconciling running executions (steps 1-4 of §4.7). Each
// is optional; a nil func is skipped. The scheduler core does not define
// what these refresh — they are owned by the deployable wrapper — so the
// loop only calls whatever the caller wires in.
type CatalogSyncers struct {
	SchedulerSettings func(ctx context.Context) error
	JobTypes          func(ctx context.Context) error
	Workspaces        func(ctx context.Context) error
	Nodes             func(ctx context.Context) error
}

// Loop is DatabaseSyncLoop: runs in its own goroutine at a fixed throttle
// period, reconciling cancellations, timeouts, and completion drainage.
type Loop struct {
	store    storage.JobExecutionStore
	registry *runningjob.Manager
	cleanup  *cleanup.Manager
	driver   cluster.ExecutorDriver
	syncers  CatalogSyncers
	logger   zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Loop over its collaborators.
func New(store storage.JobExecutionStore, registry *runningjob.Manager, cleanupMgr *cleanup.Manager, driver cluster.ExecutorDriver, syncers CatalogSyncers) *Loop {
	return &Loop{
		store:    store,
		registry: registry,
		cleanup:  cleanupMgr,
		driver:   driver,
		syncers:  syncers,
		logger:   log.WithComponent("syncloop"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the loop in its own goroutine until Stop is called.
func (l *Loop) Start(ctx context.Context) {
	go l.run(ctx)
}

// Stop signals the loop to stop at its next check and blocks until the
// in-flight iteration completes.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		started := time.Now()
		timer := metrics.NewTimer()
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.SyncLoopErrorsTotal.Inc()
					l.logger.Error().Interface("panic", r).Msg("sync loop tick panicked, continuing")
				}
			}()
			if err := l.tick(ctx); err != nil {
				metrics.SyncLoopErrorsTotal.Inc()
				l.logger.Error().Err(err).Msg("sync loop tick failed")
			} else {
				metrics.SyncLoopTicksTotal.Inc()
			}
		}()
		timer.ObserveDuration(metrics.SyncLoopTickDuration)

		elapsed := time.Since(started)
		if elapsed < Throttle {
			wait := time.Duration(math.Ceil(float64(Throttle-elapsed)/float64(time.Second))) * time.Second
			select {
			case <-time.After(wait):
			case <-l.stopCh:
				return
			}
		}
	}
}

// tick performs one reconciliation pass per spec §4.7.
func (l *Loop) tick(ctx context.Context) error {
	for _, sync := range []func(context.Context) error{
		l.syncers.SchedulerSettings,
		l.syncers.JobTypes,
		l.syncers.Workspaces,
		l.syncers.Nodes,
	} {
		if sync == nil {
			continue
		}
		if err := sync(ctx); err != nil {
			l.logger.Error().Err(err).Msg("catalog sync failed")
		}
	}

	return l.reconcileRunningExecutions(ctx)
}

func (l *Loop) reconcileRunningExecutions(ctx context.Context) error {
	running := l.registry.GetAll()
	if len(running) == 0 {
		return nil
	}

	ids := make([]int64, len(running))
	byID := make(map[int64]*execution.RunningJobExecution, len(running))
	for i, e := range running {
		ids[i] = e.ID()
		byID[e.ID()] = e
	}

	rows, err := l.store.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, row := range rows {
		exe, ok := byID[row.ID]
		if !ok {
			continue
		}
		l.reconcileOne(ctx, row, exe, now)
	}
	return nil
}

func (l *Loop) reconcileOne(ctx context.Context, row *model.JobExecution, exe *execution.RunningJobExecution, now time.Time) {
	var toKill interface{ ID() string }

	switch {
	case row.Status == model.StatusCanceled:
		if t := exe.ExecutionCanceled(ctx); t != nil {
			toKill = t
		}
	case l.store.IsTimedOut(row, now):
		if t := exe.ExecutionTimedOut(ctx, now); t != nil {
			toKill = t
		}
	}

	if toKill != nil {
		if err := l.driver.KillTask(toKill.ID()); err != nil {
			l.logger.Error().Err(err).Str("task_id", toKill.ID()).Msg("failed to kill task")
		} else {
			l.logger.Info().Str("task_id", toKill.ID()).Msg("killed task")
		}
	}

	if exe.IsFinished() {
		l.registry.Remove(exe.ID())
		l.cleanup.Enqueue(exe.NodeID(), exe)
	}
}
