package meal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists analysis records.
type Repository interface {
	// Create inserts a new record.
	Create(ctx context.Context, r *Record) error

	// GetByID returns a record or ErrRecordNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// Update supersedes a record in place, keeping its id.
	Update(ctx context.Context, r *Record) error

	// ListByOwnerBetween returns an owner's records created in [from, to),
	// oldest first.
	ListByOwnerBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]Record, error)

	// DeleteTx removes a record within a caller-owned transaction, so the
	// delete can commit atomically with the photo-cleanup job insert.
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// ExistingObjectKeys filters keys down to those referenced by any record.
	ExistingObjectKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
}

// PostgresRepository is the pgx-backed Repository. Items are stored as a
// JSONB document; the item list is always read and written whole, matching
// how corrections supersede records.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository on the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const recordColumns = `id, owner_id, object_key, items, total_protein_grams, total_carbs_grams, total_fat_grams, confidence_level, notes, created_at`

func (r *PostgresRepository) Create(ctx context.Context, rec *Record) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO meal_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.OwnerID, rec.ObjectKey, items,
		rec.TotalProteinGrams, rec.TotalCarbsGrams, rec.TotalFatGrams,
		rec.Confidence, rec.Notes, rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM meal_records
		WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *Record) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE meal_records
		SET items = $2,
		    total_protein_grams = $3,
		    total_carbs_grams = $4,
		    total_fat_grams = $5,
		    confidence_level = $6,
		    notes = $7
		WHERE id = $1`,
		rec.ID, items,
		rec.TotalProteinGrams, rec.TotalCarbsGrams, rec.TotalFatGrams,
		rec.Confidence, rec.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByOwnerBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM meal_records
		WHERE owner_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM meal_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRepository) ExistingObjectKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	if len(keys) == 0 {
		return map[string]struct{}{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT object_key
		FROM meal_records
		WHERE object_key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(keys))
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		existing[key] = struct{}{}
	}
	return existing, rows.Err()
}

// scanRecord reads one record from a row, decoding the JSONB item list.
func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var items []byte

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.ObjectKey, &items,
		&rec.TotalProteinGrams, &rec.TotalCarbsGrams, &rec.TotalFatGrams,
		&rec.Confidence, &rec.Notes, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ Repository = (*PostgresRepository)(nil)
