package goals_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snapmeal/internal/goals"
)

type fakeRepository struct {
	stored map[uuid.UUID]goals.Goals
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{stored: make(map[uuid.UUID]goals.Goals)}
}

func (f *fakeRepository) Get(_ context.Context, ownerID uuid.UUID) (*goals.Goals, error) {
	g, ok := f.stored[ownerID]
	if !ok {
		return nil, fmt.Errorf("no goals for %s: %w", ownerID, goals.ErrGoalsNotFound)
	}
	return &g, nil
}

func (f *fakeRepository) Upsert(_ context.Context, g *goals.Goals) error {
	f.stored[g.OwnerID] = *g
	return nil
}

type capturingPublisher struct {
	published []goals.Goals
}

func (c *capturingPublisher) Publish(_ context.Context, g goals.Goals) error {
	c.published = append(c.published, g)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func TestServiceGetDefaults(t *testing.T) {
	t.Parallel()

	svc := goals.NewService(newFakeRepository(), nil, nil)
	ownerID := uuid.New()

	g, err := svc.Get(context.Background(), ownerID)
	require.NoError(t, err)
	require.Equal(t, ownerID, g.OwnerID)
	require.Equal(t, "UTC", g.Timezone)
	require.Nil(t, g.DailyProteinGrams)
	require.Nil(t, g.DailyCarbsLimitGrams)
}

func TestServiceUpdate(t *testing.T) {
	t.Parallel()

	t.Run("persists and broadcasts", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		pub := &capturingPublisher{}
		svc := goals.NewService(repo, pub, nil)
		ownerID := uuid.New()

		updated, err := svc.Update(context.Background(), goals.Goals{
			OwnerID:              ownerID,
			DailyCarbsLimitGrams: floatPtr(150),
			Timezone:             "Europe/Kyiv",
		})
		require.NoError(t, err)
		require.False(t, updated.UpdatedAt.IsZero())

		stored, err := svc.Get(context.Background(), ownerID)
		require.NoError(t, err)
		require.Equal(t, 150.0, *stored.DailyCarbsLimitGrams)

		require.Len(t, pub.published, 1)
		require.Equal(t, ownerID, pub.published[0].OwnerID)
	})

	t.Run("defaults empty timezone to UTC", func(t *testing.T) {
		t.Parallel()

		svc := goals.NewService(newFakeRepository(), nil, nil)
		updated, err := svc.Update(context.Background(), goals.Goals{OwnerID: uuid.New()})
		require.NoError(t, err)
		require.Equal(t, "UTC", updated.Timezone)
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		t.Parallel()

		svc := goals.NewService(newFakeRepository(), nil, nil)
		_, err := svc.Update(context.Background(), goals.Goals{
			OwnerID:  uuid.New(),
			Timezone: "Mars/Olympus_Mons",
		})
		require.Error(t, err)
	})

	t.Run("rejects negative targets", func(t *testing.T) {
		t.Parallel()

		svc := goals.NewService(newFakeRepository(), nil, nil)
		_, err := svc.Update(context.Background(), goals.Goals{
			OwnerID:              uuid.New(),
			DailyCarbsLimitGrams: floatPtr(-1),
		})
		require.Error(t, err)

		_, err = svc.Update(context.Background(), goals.Goals{
			OwnerID:           uuid.New(),
			DailyProteinGrams: floatPtr(-10),
		})
		require.Error(t, err)
	})
}

func TestServiceSettings(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	svc := goals.NewService(repo, nil, nil)
	ownerID := uuid.New()

	loc, limit, err := svc.Settings(context.Background(), ownerID)
	require.NoError(t, err)
	require.Equal(t, "UTC", loc.String())
	require.Nil(t, limit)

	_, err = svc.Update(context.Background(), goals.Goals{
		OwnerID:              ownerID,
		DailyCarbsLimitGrams: floatPtr(120),
		Timezone:             "America/New_York",
	})
	require.NoError(t, err)

	loc, limit, err = svc.Settings(context.Background(), ownerID)
	require.NoError(t, err)
	require.Equal(t, "America/New_York", loc.String())
	require.Equal(t, 120.0, *limit)
}
