package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/snapmeal/internal/goals"
	"github.com/dmitrymomot/snapmeal/internal/grant"
	"github.com/dmitrymomot/snapmeal/internal/meal"
	"github.com/dmitrymomot/snapmeal/pkg/goalsync"
	"github.com/dmitrymomot/snapmeal/pkg/id"
)

// UploadGranter mints presigned upload grants.
type UploadGranter interface {
	Issue(ctx context.Context, ownerID uuid.UUID, fileName, contentType string, sizeBytes int64) (*grant.Grant, error)
}

// Analyzer runs a photo through the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, ownerID uuid.UUID, objectKey string) (*meal.Record, error)
}

// Corrector applies user corrections to a record.
type Corrector interface {
	Apply(ctx context.Context, recordID, ownerID uuid.UUID, overrides []meal.ItemOverride) (*meal.Record, error)
}

// Summarizer aggregates an owner's day.
type Summarizer interface {
	Daily(ctx context.Context, ownerID uuid.UUID, date string) (meal.DailySummary, error)
	InvalidateDay(ctx context.Context, ownerID uuid.UUID, t time.Time)
}

// RecordReader reads persisted records.
type RecordReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*meal.Record, error)
	ListByOwnerBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]meal.Record, error)
}

// RecordDeleter removes a record and schedules photo cleanup.
type RecordDeleter interface {
	Delete(ctx context.Context, recordID, ownerID uuid.UUID) error
}

// GoalsService reads and updates nutrition goals.
type GoalsService interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*goals.Goals, error)
	Update(ctx context.Context, g goals.Goals) (*goals.Goals, error)
	Settings(ctx context.Context, ownerID uuid.UUID) (*time.Location, *float64, error)
}

// GoalsBus delivers goal updates to open sessions, one subscription per
// streaming connection.
type GoalsBus interface {
	Subscribe(id string) (*goalsync.Receiver[goals.Goals], error)
	Unsubscribe(id string)
}

// Handlers carries the API's service dependencies.
type Handlers struct {
	granter   UploadGranter
	analyzer  Analyzer
	corrector Corrector
	summaries Summarizer
	records   RecordReader
	deleter   RecordDeleter
	goals     GoalsService
	bus       GoalsBus
	log       *slog.Logger
}

// NewHandlers wires the API handlers.
func NewHandlers(
	granter UploadGranter,
	analyzer Analyzer,
	corrector Corrector,
	summaries Summarizer,
	records RecordReader,
	deleter RecordDeleter,
	goalsSvc GoalsService,
	bus GoalsBus,
	log *slog.Logger,
) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		granter:   granter,
		analyzer:  analyzer,
		corrector: corrector,
		summaries: summaries,
		records:   records,
		deleter:   deleter,
		goals:     goalsSvc,
		bus:       bus,
		log:       log,
	}
}

type uploadURLRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// CreateUploadURL issues a presigned upload grant for a meal photo.
func (h *Handlers) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "malformed request body", nil)
		return
	}

	g, err := h.granter.Issue(r.Context(), OwnerIDFromContext(r.Context()), req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type analyzeRequest struct {
	ObjectKey string `json:"object_key"`
}

// AnalyzeMeal runs the uploaded photo through the engine and returns the
// persisted record.
func (h *Handlers) AnalyzeMeal(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ObjectKey == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "object_key is required", nil)
		return
	}

	rec, err := h.analyzer.Analyze(r.Context(), OwnerIDFromContext(r.Context()), req.ObjectKey)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	h.summaries.InvalidateDay(r.Context(), rec.OwnerID, rec.CreatedAt)
	writeJSON(w, http.StatusOK, rec)
}

type correctionRequest struct {
	Items []meal.ItemOverride `json:"items"`
}

// CorrectMeal merges user corrections into a record and returns the full
// updated record.
func (h *Handlers) CorrectMeal(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "malformed record id", nil)
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "malformed request body", nil)
		return
	}

	rec, err := h.corrector.Apply(r.Context(), recordID, OwnerIDFromContext(r.Context()), req.Items)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	h.summaries.InvalidateDay(r.Context(), rec.OwnerID, rec.CreatedAt)
	writeJSON(w, http.StatusOK, rec)
}

// GetMeal returns a single record after an ownership check.
func (h *Handlers) GetMeal(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "malformed record id", nil)
		return
	}

	rec, err := h.records.GetByID(r.Context(), recordID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if rec.OwnerID != OwnerIDFromContext(r.Context()) {
		respondError(w, r, h.log, meal.ErrNotOwner)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListMeals returns the owner's records for one calendar day in their
// timezone, oldest first.
func (h *Handlers) ListMeals(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerIDFromContext(r.Context())

	loc, _, err := h.goals.Settings(r.Context(), ownerID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().In(loc).Format("2006-01-02")
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		respondError(w, r, h.log, &meal.ValidationError{Fields: []meal.FieldError{
			{Field: "date", Message: "must be formatted as YYYY-MM-DD"},
		}})
		return
	}

	records, err := h.records.ListByOwnerBetween(r.Context(), ownerID, day, day.AddDate(0, 0, 1))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if records == nil {
		records = []meal.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "meals": records})
}

// DeleteMeal removes a record and schedules its photo for deletion.
func (h *Handlers) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "malformed record id", nil)
		return
	}

	ownerID := OwnerIDFromContext(r.Context())
	if err := h.deleter.Delete(r.Context(), recordID, ownerID); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	h.summaries.InvalidateDay(r.Context(), ownerID, time.Now())
	w.WriteHeader(http.StatusNoContent)
}

// DailySummary aggregates the owner's day into totals, calories, and macro
// percentages.
func (h *Handlers) DailySummary(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerIDFromContext(r.Context())

	date := r.URL.Query().Get("date")
	if date == "" {
		loc, _, err := h.goals.Settings(r.Context(), ownerID)
		if err != nil {
			respondError(w, r, h.log, err)
			return
		}
		date = time.Now().In(loc).Format("2006-01-02")
	}

	summary, err := h.summaries.Daily(r.Context(), ownerID, date)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetGoals returns the owner's nutrition goals, defaulted when unset.
func (h *Handlers) GetGoals(w http.ResponseWriter, r *http.Request) {
	g, err := h.goals.Get(r.Context(), OwnerIDFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type goalsRequest struct {
	DailyProteinGrams    *float64 `json:"daily_protein_grams"`
	DailyCarbsLimitGrams *float64 `json:"daily_carbs_limit_grams"`
	Timezone             string   `json:"timezone"`
}

// UpdateGoals replaces the owner's nutrition goals and broadcasts the new
// value to their other sessions.
func (h *Handlers) UpdateGoals(w http.ResponseWriter, r *http.Request) {
	var req goalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "malformed request body", nil)
		return
	}

	ownerID := OwnerIDFromContext(r.Context())
	g, err := h.goals.Update(r.Context(), goals.Goals{
		OwnerID:              ownerID,
		DailyProteinGrams:    req.DailyProteinGrams,
		DailyCarbsLimitGrams: req.DailyCarbsLimitGrams,
		Timezone:             req.Timezone,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_goals", err.Error(), nil)
		return
	}

	// A timezone or carb-limit change shifts today's summary.
	h.summaries.InvalidateDay(r.Context(), ownerID, time.Now())
	writeJSON(w, http.StatusOK, g)
}

// StreamGoals pushes goal updates to the caller as server-sent events so an
// owner's other open sessions converge on the latest value without polling.
// Updates for other owners sharing the bus are filtered out.
func (h *Handlers) StreamGoals(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", nil)
		return
	}

	subID := id.NewULID()
	recv, err := h.bus.Subscribe(subID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	defer h.bus.Unsubscribe(subID)

	ownerID := OwnerIDFromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case g, ok := <-recv.C():
			if !ok {
				return
			}
			if g.OwnerID != ownerID {
				continue
			}
			payload, err := json.Marshal(g)
			if err != nil {
				h.log.ErrorContext(r.Context(), "encode goals event", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "event: goals\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
