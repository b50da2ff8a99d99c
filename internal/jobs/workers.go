package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/dmitrymomot/snapmeal/internal/meal"
	"github.com/dmitrymomot/snapmeal/pkg/storage"
)

// PhotoCleanupArgs deletes one stored photo.
type PhotoCleanupArgs struct {
	ObjectKey string `json:"object_key"`
}

func (PhotoCleanupArgs) Kind() string { return "photo_cleanup" }

// PhotoCleanupWorker removes a photo from the object store. Deleting a
// missing key succeeds, so retried jobs stay idempotent.
type PhotoCleanupWorker struct {
	river.WorkerDefaults[PhotoCleanupArgs]

	store storage.Store
	log   *slog.Logger
}

func NewPhotoCleanupWorker(store storage.Store, log *slog.Logger) *PhotoCleanupWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PhotoCleanupWorker{store: store, log: log}
}

func (w *PhotoCleanupWorker) Work(ctx context.Context, job *river.Job[PhotoCleanupArgs]) error {
	if err := w.store.Delete(ctx, job.Args.ObjectKey); err != nil {
		return err
	}
	w.log.InfoContext(ctx, "deleted meal photo",
		slog.String("object_key", job.Args.ObjectKey))
	return nil
}

// OrphanSweepArgs triggers a scan for photos with no surviving record.
type OrphanSweepArgs struct{}

func (OrphanSweepArgs) Kind() string { return "orphan_photo_sweep" }

// orphanGracePeriod keeps freshly uploaded photos out of the sweep; a photo
// legitimately has no record between upload and analysis.
const orphanGracePeriod = 24 * time.Hour

// OrphanSweepWorker lists every stored meal photo and deletes those no
// record references, skipping anything uploaded within the grace period.
type OrphanSweepWorker struct {
	river.WorkerDefaults[OrphanSweepArgs]

	store storage.Store
	repo  meal.Repository
	log   *slog.Logger
}

func NewOrphanSweepWorker(store storage.Store, repo meal.Repository, log *slog.Logger) *OrphanSweepWorker {
	if log == nil {
		log = slog.Default()
	}
	return &OrphanSweepWorker{store: store, repo: repo, log: log}
}

func (w *OrphanSweepWorker) Work(ctx context.Context, _ *river.Job[OrphanSweepArgs]) error {
	objects, err := w.store.List(ctx, "meals/")
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-orphanGracePeriod)
	candidates := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.LastModified.Before(cutoff) {
			candidates = append(candidates, obj.Key)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	referenced, err := w.repo.ExistingObjectKeys(ctx, candidates)
	if err != nil {
		return err
	}

	var deleted int
	for _, key := range candidates {
		if _, ok := referenced[key]; ok {
			continue
		}
		if err := w.store.Delete(ctx, key); err != nil {
			w.log.WarnContext(ctx, "failed to delete orphan photo",
				slog.String("object_key", key),
				slog.Any("error", err))
			continue
		}
		deleted++
	}

	w.log.InfoContext(ctx, "orphan photo sweep finished",
		slog.Int("scanned", len(objects)),
		slog.Int("deleted", deleted))
	return nil
}
