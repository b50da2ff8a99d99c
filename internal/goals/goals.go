// Package goals manages per-owner nutrition targets: the optional daily
// carbohydrate ceiling the summary warns against, a protein target, and the
// timezone that defines the owner's calendar day.
package goals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrGoalsNotFound = errors.New("goals: not set for owner")

// Goals are one owner's nutrition targets. Zero-value pointers mean the
// target is unset.
type Goals struct {
	OwnerID              uuid.UUID `json:"owner_id"`
	DailyProteinGrams    *float64  `json:"daily_protein_grams,omitempty"`
	DailyCarbsLimitGrams *float64  `json:"daily_carbs_limit_grams,omitempty"`
	Timezone             string    `json:"timezone"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Repository persists nutrition goals.
type Repository interface {
	// Get returns an owner's goals or ErrGoalsNotFound.
	Get(ctx context.Context, ownerID uuid.UUID) (*Goals, error)

	// Upsert creates or replaces an owner's goals.
	Upsert(ctx context.Context, g *Goals) error
}

// PostgresRepository is the pgx-backed Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository on the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID uuid.UUID) (*Goals, error) {
	var g Goals
	err := r.pool.QueryRow(ctx, `
		SELECT owner_id, daily_protein_grams, daily_carbs_limit_grams, timezone, updated_at
		FROM nutrition_goals
		WHERE owner_id = $1`, ownerID).
		Scan(&g.OwnerID, &g.DailyProteinGrams, &g.DailyCarbsLimitGrams, &g.Timezone, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalsNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, g *Goals) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO nutrition_goals (owner_id, daily_protein_grams, daily_carbs_limit_grams, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE
		SET daily_protein_grams = EXCLUDED.daily_protein_grams,
		    daily_carbs_limit_grams = EXCLUDED.daily_carbs_limit_grams,
		    timezone = EXCLUDED.timezone,
		    updated_at = EXCLUDED.updated_at`,
		g.OwnerID, g.DailyProteinGrams, g.DailyCarbsLimitGrams, g.Timezone, g.UpdatedAt,
	)
	return err
}

var _ Repository = (*PostgresRepository)(nil)
