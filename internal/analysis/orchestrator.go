package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/snapmeal/internal/grant"
	"github.com/dmitrymomot/snapmeal/internal/meal"
	"github.com/dmitrymomot/snapmeal/pkg/sanitizer"
	"github.com/dmitrymomot/snapmeal/pkg/storage"
)

var (
	ErrKeyOutsideNamespace = errors.New("analysis: object key outside owner namespace")
	ErrObjectNotFound      = errors.New("analysis: photo not found in storage")
	ErrAnalysisFailed      = errors.New("analysis: engine failed")
)

// Config bounds the orchestrator.
type Config struct {
	EngineTimeout time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"30s"`
}

// Orchestrator runs one photo through the full pipeline: ownership check,
// existence check, engine call under a hard deadline, and persistence. There
// is no automatic retry; a failed analysis surfaces to the caller, who may
// issue the request again.
type Orchestrator struct {
	store  storage.Store
	engine Engine
	repo   meal.Repository
	cfg    Config
	log    *slog.Logger

	// inflight collapses concurrent analyze calls for the same object key
	// into a single pipeline run; every caller gets that run's record.
	inflight singleflight.Group
}

// NewOrchestrator creates an analysis orchestrator. A zero timeout defaults
// to 30 seconds.
func NewOrchestrator(store storage.Store, engine Engine, repo meal.Repository, cfg Config, log *slog.Logger) *Orchestrator {
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{store: store, engine: engine, repo: repo, cfg: cfg, log: log}
}

// Analyze estimates the macro-nutrients of the photo at objectKey and
// persists the resulting record. Concurrent calls for the same key share one
// engine invocation and receive the same record.
func (o *Orchestrator) Analyze(ctx context.Context, ownerID uuid.UUID, objectKey string) (*meal.Record, error) {
	if !strings.HasPrefix(objectKey, grant.OwnerPrefix(ownerID)) {
		return nil, fmt.Errorf("%w: %s", ErrKeyOutsideNamespace, objectKey)
	}

	v, err, _ := o.inflight.Do(objectKey, func() (any, error) {
		return o.analyze(ctx, ownerID, objectKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*meal.Record), nil
}

func (o *Orchestrator) analyze(ctx context.Context, ownerID uuid.UUID, objectKey string) (*meal.Record, error) {
	info, err := o.store.Head(ctx, objectKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectKey)
		}
		return nil, fmt.Errorf("analysis: check photo: %w", err)
	}

	body, err := o.store.Get(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("analysis: fetch photo: %w", err)
	}
	photo, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("analysis: read photo: %w", err)
	}

	engineCtx, cancel := context.WithTimeout(ctx, o.cfg.EngineTimeout)
	defer cancel()

	started := time.Now()
	est, err := o.engine.Estimate(engineCtx, photo, info.ContentType)
	if err != nil {
		o.log.ErrorContext(ctx, "meal analysis failed",
			slog.String("object_key", objectKey),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	record := &meal.Record{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ObjectKey: objectKey,
		Items:     mapItems(est.Items),
		CreatedAt: time.Now().UTC(),
	}
	record.Confidence = overallConfidence(record.Items)
	record.RecomputeTotals()

	if err := o.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("analysis: persist record: %w", err)
	}

	o.log.InfoContext(ctx, "meal analyzed",
		slog.String("object_key", objectKey),
		slog.String("record_id", record.ID.String()),
		slog.Int("items", len(record.Items)),
		slog.Duration("elapsed", time.Since(started)))

	return record, nil
}

// mapItems converts engine output into domain items. Names pass through the
// sanitizer since they render on clients as-is; unknown confidence grades
// degrade to low rather than failing the whole analysis.
func mapItems(estimated []EstimatedItem) []meal.Item {
	items := make([]meal.Item, 0, len(estimated))
	for _, e := range estimated {
		conf := meal.Confidence(e.Confidence)
		if !conf.Valid() {
			conf = meal.ConfidenceLow
		}
		items = append(items, meal.Item{
			Name:               sanitizer.Text(e.Name),
			PortionDescription: sanitizer.Text(e.PortionDescription),
			ProteinGrams:       e.ProteinGrams,
			CarbsGrams:         e.CarbsGrams,
			FatGrams:           e.FatGrams,
			Confidence:         conf,
		})
	}
	return items
}

// overallConfidence is the weakest grade among the items.
func overallConfidence(items []meal.Item) meal.Confidence {
	rank := map[meal.Confidence]int{
		meal.ConfidenceLow:    0,
		meal.ConfidenceMedium: 1,
		meal.ConfidenceHigh:   2,
	}
	overall := meal.ConfidenceHigh
	for _, item := range items {
		if rank[item.Confidence] < rank[overall] {
			overall = item.Confidence
		}
	}
	if len(items) == 0 {
		return meal.ConfidenceLow
	}
	return overall
}
