package meal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snapmeal/pkg/logger"
)

func recordWithTotals(ownerID uuid.UUID, createdAt time.Time, protein, carbs, fat float64) Record {
	rec := Record{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ObjectKey: "meals/" + ownerID.String() + "/" + uuid.NewString() + ".jpg",
		Items: []Item{
			{Name: "Meal", ProteinGrams: protein, CarbsGrams: carbs, FatGrams: fat, Confidence: ConfidenceMedium},
		},
		Confidence: ConfidenceMedium,
		CreatedAt:  createdAt,
	}
	rec.RecomputeTotals()
	return rec
}

func TestBuildDailySummary(t *testing.T) {
	t.Parallel()

	t.Run("two meals", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		now := time.Now().UTC()
		records := []Record{
			recordWithTotals(ownerID, now, 30, 0, 3),
			recordWithTotals(ownerID, now, 25, 45, 13),
		}

		s := BuildDailySummary("2026-09-01", records, nil)

		require.Equal(t, 2, s.MealCount)
		require.Equal(t, Macros{ProteinGrams: 55, CarbsGrams: 45, FatGrams: 16}, s.Macros)
		// 55*4 + 45*4 + 16*9 = 544 kcal.
		require.Equal(t, 544.0, s.TotalCalories)

		// Shares of calories, not of grams: 220/544, 180/544, 144/544.
		require.Equal(t, MacroPercentages{Protein: 40, Carbs: 33, Fat: 26}, s.Percentages)
		require.False(t, s.CarbWarning)
	})

	t.Run("percentages are rounded independently", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		now := time.Now().UTC()
		records := []Record{recordWithTotals(ownerID, now, 10, 10, 10)}

		s := BuildDailySummary("2026-09-01", records, nil)

		// 40 + 40 + 90 = 170 kcal; 24% + 24% + 53% = 101. Not a bug.
		total := s.Percentages.Protein + s.Percentages.Carbs + s.Percentages.Fat
		require.Equal(t, 101, total)
	})

	t.Run("no meals", func(t *testing.T) {
		t.Parallel()

		s := BuildDailySummary("2026-09-01", nil, nil)

		require.Zero(t, s.MealCount)
		require.Zero(t, s.TotalCalories)
		require.Equal(t, MacroPercentages{}, s.Percentages)
		require.False(t, s.CarbWarning)
	})

	t.Run("carb warning against the owner ceiling", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		now := time.Now().UTC()
		records := []Record{recordWithTotals(ownerID, now, 20, 120, 10)}
		limit := 100.0

		s := BuildDailySummary("2026-09-01", records, &limit)
		require.True(t, s.CarbWarning)

		relaxed := 200.0
		s = BuildDailySummary("2026-09-01", records, &relaxed)
		require.False(t, s.CarbWarning)
	})
}

// fixedSettings implements OwnerSettings with static values.
type fixedSettings struct {
	loc       *time.Location
	carbLimit *float64
}

func (f fixedSettings) Settings(_ context.Context, _ uuid.UUID) (*time.Location, *float64, error) {
	loc := f.loc
	if loc == nil {
		loc = time.UTC
	}
	return loc, f.carbLimit, nil
}

func TestSummaryServiceDaily(t *testing.T) {
	t.Parallel()

	t.Run("windows on the owner's calendar day", func(t *testing.T) {
		t.Parallel()

		repo := newFakeRepository()
		ownerID := uuid.New()

		inDay := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		dayBefore := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)

		for _, rec := range []Record{
			recordWithTotals(ownerID, inDay, 30, 0, 3),
			recordWithTotals(ownerID, dayBefore, 99, 99, 99),
		} {
			r := rec
			require.NoError(t, repo.Create(context.Background(), &r))
		}

		svc := NewSummaryService(repo, fixedSettings{}, nil, logger.NewNope())

		s, err := svc.Daily(context.Background(), ownerID, "2026-09-01")
		require.NoError(t, err)
		require.Equal(t, 1, s.MealCount)
		require.Equal(t, 30.0, s.Macros.ProteinGrams)
	})

	t.Run("malformed date", func(t *testing.T) {
		t.Parallel()

		svc := NewSummaryService(newFakeRepository(), fixedSettings{}, nil, logger.NewNope())

		_, err := svc.Daily(context.Background(), uuid.New(), "01-09-2026")

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "date", verr.Fields[0].Field)
	})
}
