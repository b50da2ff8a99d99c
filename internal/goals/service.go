package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher fans a goals update out to everything interested in it, such as
// other devices of the same owner. Delivery is best effort and only the most
// recent value matters.
type Publisher interface {
	Publish(ctx context.Context, g Goals) error
}

// Service reads and updates nutrition goals. Updates are broadcast through
// the publisher so stale readers converge on the latest value.
type Service struct {
	repo Repository
	pub  Publisher
	log  *slog.Logger
}

// NewService creates a goals service. The publisher may be nil; updates are
// then persisted without broadcasting.
func NewService(repo Repository, pub Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, pub: pub, log: log}
}

// Get returns the owner's goals, or defaults (UTC, no targets) when the
// owner never set any.
func (s *Service) Get(ctx context.Context, ownerID uuid.UUID) (*Goals, error) {
	g, err := s.repo.Get(ctx, ownerID)
	if errors.Is(err, ErrGoalsNotFound) {
		return &Goals{OwnerID: ownerID, Timezone: "UTC"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("goals: get: %w", err)
	}
	return g, nil
}

// Update validates and persists the owner's goals, then broadcasts the new
// value. A publish failure is logged, not returned; the write already
// succeeded and readers will catch up on their next fetch.
func (s *Service) Update(ctx context.Context, g Goals) (*Goals, error) {
	if g.Timezone == "" {
		g.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(g.Timezone); err != nil {
		return nil, fmt.Errorf("goals: unknown timezone %q", g.Timezone)
	}
	if g.DailyProteinGrams != nil && *g.DailyProteinGrams < 0 {
		return nil, fmt.Errorf("goals: daily protein target must not be negative")
	}
	if g.DailyCarbsLimitGrams != nil && *g.DailyCarbsLimitGrams < 0 {
		return nil, fmt.Errorf("goals: daily carbs limit must not be negative")
	}

	g.UpdatedAt = time.Now().UTC()
	if err := s.repo.Upsert(ctx, &g); err != nil {
		return nil, fmt.Errorf("goals: upsert: %w", err)
	}

	if s.pub != nil {
		if err := s.pub.Publish(ctx, g); err != nil {
			s.log.WarnContext(ctx, "failed to broadcast goals update",
				slog.String("owner_id", g.OwnerID.String()),
				slog.Any("error", err))
		}
	}
	return &g, nil
}

// Settings resolves the owner's timezone and carb ceiling for daily
// summaries. Owners without goals get UTC and no ceiling.
func (s *Service) Settings(ctx context.Context, ownerID uuid.UUID) (*time.Location, *float64, error) {
	g, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return loc, g.DailyCarbsLimitGrams, nil
}
