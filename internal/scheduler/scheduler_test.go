package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storeops/internal/cascade"
	"storeops/internal/cleanup"
	"storeops/internal/config"
	"storeops/internal/database"
	"storeops/internal/metrics"
	"storeops/internal/models"
	"storeops/internal/objectstore"
	"storeops/internal/scheduler"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db      *gorm.DB
	objects *objectstore.Memory
	queue   *scheduler.Queue
	worker  *scheduler.Worker
	metrics *metrics.Metrics
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Type:     "sqlite",
		SQLite:   config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "queue.db")},
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.InitSchema(db))
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, db.Create(&models.Store{ID: "store-1", Name: "Shibuya"}).Error)
	require.NoError(t, db.Create(&models.CleaningPhoto{
		ID:       "cp-1",
		StoreID:  "store-1",
		PhotoURL: "https://cdn.example.com/storage/v1/object/public/cleaning-photos/store-1/floor.jpg",
	}).Error)

	f := &fixture{
		db:      db,
		objects: objectstore.NewMemory(),
		metrics: metrics.New("test", prometheus.NewRegistry()),
		clock:   &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.objects.Put("cleaning-photos", "store-1/floor.jpg")

	data := database.NewGormStore(db)
	engine := cascade.NewEngine(data, f.objects, cascade.DefaultManifest(), cascade.DefaultConfig(), nil)
	service := cleanup.NewService(data, engine, cleanup.Config{}, cleanup.Options{})

	f.queue = scheduler.NewQueue(db).WithClock(f.clock.now)
	f.worker = scheduler.NewWorker(f.queue, service, f.metrics, nil)
	return f
}

func TestEnqueueReusesOpenJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1", Reason: models.DeletionReasonAdmin})
	require.NoError(t, err)
	second, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	stats, err := f.queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[models.JobStatusPending])
	assert.Equal(t, int64(0), stats[models.JobStatusDone])
}

func TestWorkerCompletesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1", RequestedBy: "ops"})
	require.NoError(t, err)

	ran, err := f.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	got, err := f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.CompletedAt)
	assert.Zero(t, f.objects.Len())

	var store models.Store
	require.NoError(t, f.db.First(&store, "id = ?", "store-1").Error)
	assert.True(t, store.IsDeleted())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.JobsProcessed.WithLabelValues(models.JobStatusDone)))

	ran, err = f.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestWorkerRetriesWithBackoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.objects.FailOn("cleaning-photos", "store-1/floor.jpg", errors.New("503 slow down"))

	job, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)

	ran, err := f.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	got, err := f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.LastError, "503 slow down")
	require.NotNil(t, got.NextRetryAt)
	assert.True(t, got.NextRetryAt.Equal(f.clock.t.Add(time.Minute)))

	// not due yet
	ran, err = f.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	f.objects.FailOn("cleaning-photos", "store-1/floor.jpg", nil)
	f.clock.advance(2 * time.Minute)
	assert.Equal(t, 1, f.worker.Drain(ctx, 0))

	got, err = f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.LastError)
}

func TestWorkerPermanentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.worker.Drain(ctx, 0))

	got, err := f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPermanentFail, got.Status)
	assert.Nil(t, got.NextRetryAt)
	assert.NotNil(t, got.CompletedAt)
}

func TestWorkerAlreadyDeletedCountsAsDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deletedAt := f.clock.t
	require.NoError(t, f.db.Model(&models.Store{}).Where("id = ?", "store-1").Update("deleted_at", deletedAt).Error)

	job, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.worker.Drain(ctx, 5))

	got, err := f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, got.Status)
}

func TestFailGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	job.Attempts = models.MaxJobAttempts
	require.NoError(t, f.queue.Fail(ctx, job, errors.New("deadlock"), false))

	got, err := f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Nil(t, got.NextRetryAt)
	assert.NotNil(t, got.CompletedAt)

	// a closed failure no longer blocks a new request
	again, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, again.ID)
}

func TestNextReclaimsExpiredLease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)

	claimed, err := f.queue.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)

	// the worker died: nothing is due while the lease holds
	f.clock.advance(models.JobLease - time.Minute)
	none, err := f.queue.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	f.clock.advance(2 * time.Minute)
	again, err := f.queue.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)

	// the reclaimed job runs to completion
	require.NoError(t, f.queue.Complete(ctx, again))
	got, err := f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, got.Status)
}

func TestStaleClaimLosesToTakeover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	_, err = f.queue.Next(ctx)
	require.NoError(t, err)

	f.clock.advance(models.JobLease + time.Minute)
	first, err := f.queue.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	// the lease was just renewed, so a second worker finds nothing
	second, err := f.queue.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestWorkerRunsReclaimedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	_, err = f.queue.Next(ctx)
	require.NoError(t, err)

	f.clock.advance(models.JobLease + time.Minute)
	ran, err := f.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	got, err := f.queue.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, got.Status)
	assert.Zero(t, f.objects.Len())
}

func TestPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	require.NoError(t, f.queue.Complete(ctx, old))

	f.clock.advance(48 * time.Hour)
	open, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-2"})
	require.NoError(t, err)

	n, err := f.queue.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.queue.Get(ctx, old.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = f.queue.Get(ctx, open.ID)
	assert.NoError(t, err)
}

func TestNextRetryDelay(t *testing.T) {
	assert.Equal(t, time.Minute, models.NextRetryDelay(-1))
	assert.Equal(t, time.Minute, models.NextRetryDelay(0))
	assert.Equal(t, 15*time.Minute, models.NextRetryDelay(2))
	assert.Equal(t, 4*time.Hour, models.NextRetryDelay(10))
}

func TestSchedulerStartStop(t *testing.T) {
	f := newFixture(t)

	disabled := scheduler.New(f.worker, f.queue, scheduler.Config{}, nil)
	require.NoError(t, disabled.Start())
	assert.False(t, disabled.IsRunning())

	bad := scheduler.New(f.worker, f.queue, scheduler.Config{Enabled: true, PollSchedule: "not a schedule"}, nil)
	assert.Error(t, bad.Start())

	s := scheduler.New(f.worker, f.queue, scheduler.DefaultConfig(), nil)
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Len(t, s.Cron().Entries(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.False(t, s.IsRunning())
}

func TestRunNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.queue.Enqueue(ctx, cleanup.Request{StoreID: "store-1"})
	require.NoError(t, err)
	_, err = f.queue.Enqueue(ctx, cleanup.Request{StoreID: "missing"})
	require.NoError(t, err)

	s := scheduler.New(f.worker, f.queue, scheduler.DefaultConfig(), nil)
	assert.Equal(t, 2, s.RunNow(ctx))
}
