// Package jobs runs the pipeline's background work on River: deferred photo
// deletion after a meal record is removed, and a nightly sweep for photos
// whose records are gone.
package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/robfig/cron/v3"
)

// orphanSweepSchedule runs the sweep nightly, off peak.
const orphanSweepSchedule = "0 3 * * *"

// Manager owns the River client: enqueueing, workers, and the periodic
// orphan sweep.
type Manager struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	log    *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager creates the job manager with both workers registered. The
// client exists before Start, so jobs can be enqueued while workers are
// still offline.
func NewManager(pool *pgxpool.Pool, cleanup *PhotoCleanupWorker, sweep *OrphanSweepWorker, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, cleanup)
	river.AddWorker(workers, sweep)

	schedule, err := parseCronSchedule(orphanSweepSchedule)
	if err != nil {
		return nil, fmt.Errorf("jobs: parse sweep schedule: %w", err)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				schedule,
				func() (river.JobArgs, *river.InsertOpts) {
					return OrphanSweepArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: false},
			),
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: create river client: %w", err)
	}

	return &Manager{pool: pool, client: client, log: log}, nil
}

// Start begins processing jobs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("jobs: start: %w", err)
	}
	m.started = true
	m.log.Info("job manager started")
	return nil
}

// Stop shuts the manager down, waiting for in-flight jobs to finish.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("jobs: stop: %w", err)
	}
	m.started = false
	m.log.Info("job manager stopped")
	return nil
}

// EnqueuePhotoCleanup schedules deletion of a stored photo.
func (m *Manager) EnqueuePhotoCleanup(ctx context.Context, objectKey string) error {
	_, err := m.client.Insert(ctx, PhotoCleanupArgs{ObjectKey: objectKey}, nil)
	if err != nil {
		return fmt.Errorf("jobs: enqueue photo cleanup: %w", err)
	}
	return nil
}

// EnqueuePhotoCleanupTx schedules photo deletion inside a caller-owned
// transaction. The job becomes visible only if the transaction commits,
// which keeps record deletes and photo deletes atomic.
func (m *Manager) EnqueuePhotoCleanupTx(ctx context.Context, tx pgx.Tx, objectKey string) error {
	_, err := m.client.InsertTx(ctx, tx, PhotoCleanupArgs{ObjectKey: objectKey}, nil)
	if err != nil {
		return fmt.Errorf("jobs: enqueue photo cleanup: %w", err)
	}
	return nil
}

type cronScheduleAdapter struct {
	schedule cron.Schedule
}

func (a *cronScheduleAdapter) Next(current time.Time) time.Time {
	return a.schedule.Next(current)
}

func parseCronSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &cronScheduleAdapter{schedule: schedule}, nil
}
