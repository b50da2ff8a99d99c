package meal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/snapmeal/pkg/db"
)

// CleanupEnqueuer schedules deletion of a stored photo inside a transaction,
// so the photo delete becomes visible only if the record delete commits.
type CleanupEnqueuer interface {
	EnqueuePhotoCleanupTx(ctx context.Context, tx pgx.Tx, objectKey string) error
}

// DeletionService removes a meal record together with its photo. The record
// row and the cleanup job leave in one transaction; the photo itself is
// deleted asynchronously by the job worker.
type DeletionService struct {
	pool    *pgxpool.Pool
	repo    Repository
	cleanup CleanupEnqueuer
	log     *slog.Logger
}

// NewDeletionService creates a deletion service.
func NewDeletionService(pool *pgxpool.Pool, repo Repository, cleanup CleanupEnqueuer, log *slog.Logger) *DeletionService {
	if log == nil {
		log = slog.Default()
	}
	return &DeletionService{pool: pool, repo: repo, cleanup: cleanup, log: log}
}

// Delete removes the record after an ownership check and schedules its photo
// for cleanup. Returns ErrRecordNotFound or ErrNotOwner accordingly.
func (s *DeletionService) Delete(ctx context.Context, recordID, ownerID uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		return ErrNotOwner
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.repo.DeleteTx(ctx, tx, recordID); err != nil {
			return err
		}
		return s.cleanup.EnqueuePhotoCleanupTx(ctx, tx, rec.ObjectKey)
	})
	if err != nil {
		return fmt.Errorf("meal: delete record: %w", err)
	}

	s.log.InfoContext(ctx, "meal record deleted",
		slog.String("record_id", recordID.String()),
		slog.String("object_key", rec.ObjectKey))
	return nil
}
