// Package meal holds the analysis record domain: the persisted nutrient
// estimate for one captured meal photo, user corrections against it, and
// daily aggregation over an owner's records.
package meal

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound = errors.New("meal: record not found")
	ErrNotOwner       = errors.New("meal: record belongs to another owner")
)

// Confidence grades how sure the analysis engine is about an estimate.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is one of the known grades.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Item is one recognized food in a meal photo.
type Item struct {
	Name               string     `json:"name"`
	PortionDescription string     `json:"portion_description,omitempty"`
	ProteinGrams       float64    `json:"protein_grams"`
	CarbsGrams         float64    `json:"carbs_grams"`
	FatGrams           float64    `json:"fat_grams"`
	IsUserEdited       bool       `json:"is_user_edited"`
	Confidence         Confidence `json:"confidence_level"`
}

// Record is the persisted nutrient estimate for one meal photo. Totals are
// always derived from the item list; they are never written independently.
type Record struct {
	ID                uuid.UUID  `json:"id"`
	OwnerID           uuid.UUID  `json:"owner_id"`
	ObjectKey         string     `json:"object_key"`
	Items             []Item     `json:"items"`
	TotalProteinGrams float64    `json:"total_protein_grams"`
	TotalCarbsGrams   float64    `json:"total_carbs_grams"`
	TotalFatGrams     float64    `json:"total_fat_grams"`
	Confidence        Confidence `json:"confidence_level"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RecomputeTotals overwrites the record totals with sums over its items.
// Called after every mutation of the item list so the totals invariant
// cannot drift.
func (r *Record) RecomputeTotals() {
	var protein, carbs, fat float64
	for _, item := range r.Items {
		protein += item.ProteinGrams
		carbs += item.CarbsGrams
		fat += item.FatGrams
	}
	r.TotalProteinGrams = protein
	r.TotalCarbsGrams = carbs
	r.TotalFatGrams = fat
}
