// Package analysis turns uploaded meal photos into persisted meal records.
// An external vision engine does the recognition; the orchestrator owns
// validation, timeouts, and persistence.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EstimatedItem is one food the engine recognized on the photo.
type EstimatedItem struct {
	Name               string  `json:"name"`
	PortionDescription string  `json:"portion_description"`
	ProteinGrams       float64 `json:"protein_grams"`
	CarbsGrams         float64 `json:"carbs_grams"`
	FatGrams           float64 `json:"fat_grams"`
	Confidence         string  `json:"confidence"`
}

// Estimate is the engine's full answer for one photo. The engine reports its
// own totals, but those are advisory only; persisted totals are always
// recomputed from the items.
type Estimate struct {
	Items             []EstimatedItem `json:"items"`
	TotalProteinGrams float64         `json:"total_protein_grams"`
	TotalCarbsGrams   float64         `json:"total_carbs_grams"`
	TotalFatGrams     float64         `json:"total_fat_grams"`
}

// Engine estimates macro-nutrients from photo bytes.
type Engine interface {
	Estimate(ctx context.Context, photo []byte, contentType string) (*Estimate, error)
}

// EngineConfig configures the HTTP vision engine client.
type EngineConfig struct {
	EndpointURL string        `env:"ANALYSIS_ENGINE_URL,required"`
	APIKey      string        `env:"ANALYSIS_ENGINE_API_KEY"`
	Timeout     time.Duration `env:"ANALYSIS_ENGINE_TIMEOUT" envDefault:"30s"`
}

// HTTPEngine calls a remote vision engine over HTTP. The photo is posted as
// the request body with its original content type.
type HTTPEngine struct {
	cfg    EngineConfig
	client *http.Client
}

// NewHTTPEngine creates an engine client. The http.Client carries no timeout
// of its own; the orchestrator bounds each call through the context.
func NewHTTPEngine(cfg EngineConfig) *HTTPEngine {
	return &HTTPEngine{cfg: cfg, client: &http.Client{}}
}

func (e *HTTPEngine) Estimate(ctx context.Context, photo []byte, contentType string) (*Estimate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.EndpointURL, bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("analysis: build engine request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis: call engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("analysis: engine returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var est Estimate
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil {
		return nil, fmt.Errorf("analysis: decode engine response: %w", err)
	}
	if len(est.Items) == 0 {
		return nil, errors.New("analysis: engine recognized no food items")
	}
	return &est, nil
}

var _ Engine = (*HTTPEngine)(nil)
