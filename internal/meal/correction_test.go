package meal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snapmeal/pkg/logger"
)

// fakeRepository is an in-memory Repository for service tests.
type fakeRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
	creates int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{records: make(map[uuid.UUID]Record)}
}

func (f *fakeRepository) Create(_ context.Context, r *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.records[r.ID] = *r
	return nil
}

func (f *fakeRepository) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := rec
	copied.Items = append([]Item(nil), rec.Items...)
	return &copied, nil
}

func (f *fakeRepository) Update(_ context.Context, r *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[r.ID]; !ok {
		return ErrRecordNotFound
	}
	f.records[r.ID] = *r
	return nil
}

func (f *fakeRepository) ListByOwnerBetween(_ context.Context, ownerID uuid.UUID, from, to time.Time) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && !rec.CreatedAt.Before(from) && rec.CreatedAt.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepository) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeRepository) ExistingObjectKeys(_ context.Context, keys []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := make(map[string]struct{})
	for _, rec := range f.records {
		for _, key := range keys {
			if rec.ObjectKey == key {
				existing[key] = struct{}{}
			}
		}
	}
	return existing, nil
}

func seedRecord(t *testing.T, repo *fakeRepository, ownerID uuid.UUID) *Record {
	t.Helper()

	rec := &Record{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ObjectKey: "meals/" + ownerID.String() + "/01ABC.jpg",
		Items: []Item{
			{Name: "Grilled Chicken", PortionDescription: "1 breast", ProteinGrams: 30, CarbsGrams: 0, FatGrams: 3, Confidence: ConfidenceMedium},
			{Name: "Rice", PortionDescription: "1 cup", ProteinGrams: 4, CarbsGrams: 45, FatGrams: 1, Confidence: ConfidenceLow},
		},
		Confidence: ConfidenceMedium,
		CreatedAt:  time.Now().UTC(),
	}
	rec.RecomputeTotals()
	require.NoError(t, repo.Create(context.Background(), rec))
	return rec
}

func TestCorrectionApply(t *testing.T) {
	t.Parallel()

	t.Run("replaces matched item and recomputes totals", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		ownerID := uuid.New()
		rec := seedRecord(t, repo, ownerID)
		svc := NewCorrectionService(repo, logger.NewNope())

		updated, err := svc.Apply(context.Background(), rec.ID, ownerID, []ItemOverride{
			{Name: "Grilled Chicken", ProteinGrams: 42, FatGrams: 5},
		})
		require.NoError(t, err)
		require.Len(t, updated.Items, 2)

		chicken := updated.Items[0]
		require.Equal(t, "Grilled Chicken", chicken.Name)
		require.Equal(t, 42.0, chicken.ProteinGrams)
		require.True(t, chicken.IsUserEdited)
		require.Equal(t, ConfidenceHigh, chicken.Confidence)
		// Portion survives an override that does not restate it.
		require.Equal(t, "1 breast", chicken.PortionDescription)

		require.Equal(t, 46.0, updated.TotalProteinGrams)
		require.Equal(t, 45.0, updated.TotalCarbsGrams)
		require.Equal(t, 6.0, updated.TotalFatGrams)
	})

	t.Run("appends unmatched override", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		ownerID := uuid.New()
		rec := seedRecord(t, repo, ownerID)
		svc := NewCorrectionService(repo, logger.NewNope())

		updated, err := svc.Apply(context.Background(), rec.ID, ownerID, []ItemOverride{
			{Name: "Olive Oil", FatGrams: 14},
		})
		require.NoError(t, err)
		require.Len(t, updated.Items, 3)
		require.Equal(t, "Olive Oil", updated.Items[2].Name)
		require.True(t, updated.Items[2].IsUserEdited)
		require.Equal(t, 18.0, updated.TotalFatGrams)
	})

	t.Run("idempotent for a repeated payload", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		ownerID := uuid.New()
		rec := seedRecord(t, repo, ownerID)
		svc := NewCorrectionService(repo, logger.NewNope())

		overrides := []ItemOverride{
			{Name: "Rice", ProteinGrams: 5, CarbsGrams: 50, FatGrams: 1},
			{Name: "Butter", FatGrams: 10},
		}

		first, err := svc.Apply(context.Background(), rec.ID, ownerID, overrides)
		require.NoError(t, err)
		second, err := svc.Apply(context.Background(), rec.ID, ownerID, overrides)
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Len(t, second.Items, 3)
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		ownerID := uuid.New()
		rec := seedRecord(t, repo, ownerID)
		svc := NewCorrectionService(repo, logger.NewNope())

		updated, err := svc.Apply(context.Background(), rec.ID, ownerID, []ItemOverride{
			{Name: "rice", CarbsGrams: 40},
		})
		require.NoError(t, err)
		require.Len(t, updated.Items, 2)
		require.Equal(t, 40.0, updated.TotalCarbsGrams)
	})

	t.Run("unknown record", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		svc := NewCorrectionService(repo, logger.NewNope())

		_, err := svc.Apply(context.Background(), uuid.New(), uuid.New(), []ItemOverride{{Name: "X", ProteinGrams: 1}})
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("foreign owner is rejected", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		rec := seedRecord(t, repo, uuid.New())
		svc := NewCorrectionService(repo, logger.NewNope())

		_, err := svc.Apply(context.Background(), rec.ID, uuid.New(), []ItemOverride{{Name: "X", ProteinGrams: 1}})
		require.ErrorIs(t, err, ErrNotOwner)
	})
}

func TestCorrectionValidation(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	ownerID := uuid.New()
	rec := seedRecord(t, repo, ownerID)
	svc := NewCorrectionService(repo, logger.NewNope())

	t.Run("empty name cites the exact field", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Apply(context.Background(), rec.ID, ownerID, []ItemOverride{
			{Name: "", ProteinGrams: 5},
		})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 1)
		require.Equal(t, "items[0].name", verr.Fields[0].Field)
	})

	t.Run("collects every violation", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Apply(context.Background(), rec.ID, ownerID, []ItemOverride{
			{Name: "OK", ProteinGrams: -1},
			{Name: "", CarbsGrams: -2, FatGrams: -3},
		})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		fields := make([]string, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = f.Field
		}
		require.ElementsMatch(t, []string{
			"items[0].protein_grams",
			"items[1].name",
			"items[1].carbs_grams",
			"items[1].fat_grams",
		}, fields)
	})

	t.Run("name that is only markup is empty after sanitization", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Apply(context.Background(), rec.ID, ownerID, []ItemOverride{
			{Name: "<script>alert(1)</script>", ProteinGrams: 5},
		})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "items[0].name", verr.Fields[0].Field)
	})

	t.Run("empty override list", func(t *testing.T) {
		t.Parallel()

		_, err := svc.Apply(context.Background(), rec.ID, ownerID, nil)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "items", verr.Fields[0].Field)
	})
}

func TestTotalsInvariantAfterCorrections(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	ownerID := uuid.New()
	rec := seedRecord(t, repo, ownerID)
	svc := NewCorrectionService(repo, logger.NewNope())

	updated, err := svc.Apply(context.Background(), rec.ID, ownerID, []ItemOverride{
		{Name: "Rice", ProteinGrams: 6, CarbsGrams: 55, FatGrams: 2},
		{Name: "Avocado", ProteinGrams: 2, CarbsGrams: 9, FatGrams: 15},
	})
	require.NoError(t, err)

	var protein, carbs, fat float64
	for _, item := range updated.Items {
		protein += item.ProteinGrams
		carbs += item.CarbsGrams
		fat += item.FatGrams
	}
	require.Equal(t, protein, updated.TotalProteinGrams)
	require.Equal(t, carbs, updated.TotalCarbsGrams)
	require.Equal(t, fat, updated.TotalFatGrams)
}
