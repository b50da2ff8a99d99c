package meal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snapmeal/pkg/sanitizer"
)

// ItemOverride is one user-supplied correction for a recognized item.
// Matching is by name; an override whose name matches no existing item is
// appended as a new one.
type ItemOverride struct {
	Name               string  `json:"name"`
	PortionDescription string  `json:"portion_description,omitempty"`
	ProteinGrams       float64 `json:"protein_grams"`
	CarbsGrams         float64 `json:"carbs_grams"`
	FatGrams           float64 `json:"fat_grams"`
}

// CorrectionService merges user corrections into persisted records.
// User truth supersedes the AI estimate: every touched item is marked edited
// with confidence forced to high.
type CorrectionService struct {
	repo Repository
	log  *slog.Logger
}

// NewCorrectionService creates a correction service.
func NewCorrectionService(repo Repository, log *slog.Logger) *CorrectionService {
	return &CorrectionService{repo: repo, log: log}
}

// Apply validates overrides, merges them into the record's item list,
// recomputes totals, persists, and returns the full updated record so the
// client replaces its local copy wholesale. Applying the same payload twice
// yields an identical record: matches replace, they never accumulate.
func (s *CorrectionService) Apply(ctx context.Context, recordID, ownerID uuid.UUID, overrides []ItemOverride) (*Record, error) {
	cleaned, err := validateOverrides(overrides)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	record.Items = mergeOverrides(record.Items, cleaned)
	record.RecomputeTotals()

	if err := s.repo.Update(ctx, record); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "correction applied",
		slog.String("record_id", recordID.String()),
		slog.Int("overrides", len(cleaned)),
	)
	return record, nil
}

// validateOverrides sanitizes names and collects every violation into one
// ValidationError. Gram values must be finite and non-negative.
func validateOverrides(overrides []ItemOverride) ([]ItemOverride, error) {
	verr := &ValidationError{}

	if len(overrides) == 0 {
		verr.add("items", "at least one item override is required")
		return nil, verr.orNil()
	}

	cleaned := make([]ItemOverride, len(overrides))
	for i, o := range overrides {
		o.Name = sanitizer.Text(o.Name)
		o.PortionDescription = sanitizer.Text(o.PortionDescription)

		if o.Name == "" {
			verr.add(fmt.Sprintf("items[%d].name", i), "name must not be empty")
		}
		checkGrams(verr, fmt.Sprintf("items[%d].protein_grams", i), o.ProteinGrams)
		checkGrams(verr, fmt.Sprintf("items[%d].carbs_grams", i), o.CarbsGrams)
		checkGrams(verr, fmt.Sprintf("items[%d].fat_grams", i), o.FatGrams)

		cleaned[i] = o
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return cleaned, nil
}

func checkGrams(verr *ValidationError, field string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		verr.add(field, "must be a finite number")
		return
	}
	if v < 0 {
		verr.add(field, "must not be negative")
	}
}

// mergeOverrides replaces items matched by case-insensitive name and appends
// the rest. Touched items carry the user-truth marker.
func mergeOverrides(items []Item, overrides []ItemOverride) []Item {
	merged := make([]Item, len(items))
	copy(merged, items)

	for _, o := range overrides {
		corrected := Item{
			Name:               o.Name,
			PortionDescription: o.PortionDescription,
			ProteinGrams:       o.ProteinGrams,
			CarbsGrams:         o.CarbsGrams,
			FatGrams:           o.FatGrams,
			IsUserEdited:       true,
			Confidence:         ConfidenceHigh,
		}

		replaced := false
		for i := range merged {
			if strings.EqualFold(merged[i].Name, o.Name) {
				if corrected.PortionDescription == "" {
					corrected.PortionDescription = merged[i].PortionDescription
				}
				merged[i] = corrected
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, corrected)
		}
	}

	return merged
}
