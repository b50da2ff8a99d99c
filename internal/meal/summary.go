package meal

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snapmeal/pkg/cache"
)

// Energy densities in kcal per gram, per the Atwater factors.
const (
	KcalPerGramProtein = 4
	KcalPerGramCarbs   = 4
	KcalPerGramFat     = 9
)

// summaryCacheTTL keeps repeat dashboard loads cheap while bounding
// staleness; writes invalidate the day's entry eagerly anyway.
const summaryCacheTTL = 5 * time.Minute

// Macros holds gram sums per macro-nutrient.
type Macros struct {
	ProteinGrams float64 `json:"protein_grams"`
	CarbsGrams   float64 `json:"carbs_grams"`
	FatGrams     float64 `json:"fat_grams"`
}

// MacroPercentages holds each macro's share of total calories. Each value is
// rounded independently, so the three need not sum to exactly 100.
type MacroPercentages struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fat     int `json:"fat"`
}

// DailySummary aggregates one owner's meals over one local calendar day.
type DailySummary struct {
	Date           string           `json:"date"`
	MealCount      int              `json:"meal_count"`
	Macros         Macros           `json:"macros"`
	TotalCalories  float64          `json:"total_calories"`
	Percentages    MacroPercentages `json:"percentages"`
	CarbWarning    bool             `json:"carb_warning"`
	CarbLimitGrams *float64         `json:"carb_limit_grams,omitempty"`
}

// OwnerSettings resolves the per-owner preferences the summary depends on:
// the timezone that defines the calendar-day window and the optional
// carbohydrate ceiling.
type OwnerSettings interface {
	Settings(ctx context.Context, ownerID uuid.UUID) (loc *time.Location, carbLimitGrams *float64, err error)
}

// SummaryService computes daily aggregates over an owner's records.
type SummaryService struct {
	repo     Repository
	settings OwnerSettings
	cache    cache.Cache[DailySummary]
	log      *slog.Logger
}

// NewSummaryService creates a summary service. The cache may be nil, in
// which case every call recomputes.
func NewSummaryService(repo Repository, settings OwnerSettings, c cache.Cache[DailySummary], log *slog.Logger) *SummaryService {
	return &SummaryService{repo: repo, settings: settings, cache: c, log: log}
}

// Daily returns the aggregate for one calendar day in the owner's timezone.
// The date is "YYYY-MM-DD".
func (s *SummaryService) Daily(ctx context.Context, ownerID uuid.UUID, date string) (DailySummary, error) {
	loc, carbLimit, err := s.settings.Settings(ctx, ownerID)
	if err != nil {
		return DailySummary{}, err
	}

	dayStart, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		verr := &ValidationError{}
		verr.add("date", "must be formatted YYYY-MM-DD")
		return DailySummary{}, verr
	}

	compute := func(ctx context.Context) (DailySummary, time.Duration, error) {
		records, err := s.repo.ListByOwnerBetween(ctx, ownerID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return DailySummary{}, 0, err
		}
		return BuildDailySummary(date, records, carbLimit), summaryCacheTTL, nil
	}

	if s.cache == nil {
		summary, _, err := compute(ctx)
		return summary, err
	}
	return cache.GetOrSet(ctx, s.cache, summaryKey(ownerID, date), compute)
}

// InvalidateDay drops the cached summary for the day containing t in the
// owner's timezone. Called after any write that changes the day's records.
func (s *SummaryService) InvalidateDay(ctx context.Context, ownerID uuid.UUID, t time.Time) {
	if s.cache == nil {
		return
	}

	loc, _, err := s.settings.Settings(ctx, ownerID)
	if err != nil {
		loc = time.UTC
	}
	date := t.In(loc).Format("2006-01-02")

	if err := s.cache.Delete(ctx, summaryKey(ownerID, date)); err != nil {
		s.log.WarnContext(ctx, "summary cache invalidation failed",
			slog.String("owner_id", ownerID.String()),
			slog.String("date", date),
			slog.Any("error", err),
		)
	}
}

func summaryKey(ownerID uuid.UUID, date string) string {
	return ownerID.String() + ":" + date
}

// BuildDailySummary computes the aggregate for a set of records. Percentages
// are shares of calorie contribution, not gram ratios, and each is rounded
// on its own.
func BuildDailySummary(date string, records []Record, carbLimitGrams *float64) DailySummary {
	summary := DailySummary{
		Date:           date,
		MealCount:      len(records),
		CarbLimitGrams: carbLimitGrams,
	}

	for _, rec := range records {
		summary.Macros.ProteinGrams += rec.TotalProteinGrams
		summary.Macros.CarbsGrams += rec.TotalCarbsGrams
		summary.Macros.FatGrams += rec.TotalFatGrams
	}

	proteinKcal := summary.Macros.ProteinGrams * KcalPerGramProtein
	carbsKcal := summary.Macros.CarbsGrams * KcalPerGramCarbs
	fatKcal := summary.Macros.FatGrams * KcalPerGramFat
	summary.TotalCalories = proteinKcal + carbsKcal + fatKcal

	if summary.TotalCalories > 0 {
		summary.Percentages = MacroPercentages{
			Protein: int(math.Round(proteinKcal / summary.TotalCalories * 100)),
			Carbs:   int(math.Round(carbsKcal / summary.TotalCalories * 100)),
			Fat:     int(math.Round(fatKcal / summary.TotalCalories * 100)),
		}
	}

	if carbLimitGrams != nil && summary.Macros.CarbsGrams > *carbLimitGrams {
		summary.CarbWarning = true
	}

	return summary
}
