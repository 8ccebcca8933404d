package texts

import (
	"context"
	"fmt"

	"github.com/agnosto/board-collector/config"
)

// Scorer classifies a text into per-category probabilities in [0,1].
type Scorer interface {
	Score(ctx context.Context, text string) (map[string]float64, error)
}

// ScoreError is returned when the classifier could not score a text.
type ScoreError struct {
	Provider string
	Err      error
}

func (e *ScoreError) Error() string {
	return fmt.Sprintf("score with %s: %v", e.Provider, e.Err)
}

func (e *ScoreError) Unwrap() error {
	return e.Err
}

// DefaultWeights is the category weight table used when none is configured.
func DefaultWeights() map[string]float64 {
	return config.CreateDefaultConfig().Toxicity.Weights
}

// Reduce collapses category probabilities into one score: the largest
// probability divided by its category weight, clamped to [0,1]. Categories
// missing from weights count with weight 1.
func Reduce(probs map[string]float64, weights map[string]float64) float64 {
	var score float64
	for category, p := range probs {
		w, ok := weights[category]
		if !ok || w <= 0 {
			w = 1
		}
		if v := p / w; v > score {
			score = v
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

// NopScorer scores every text as harmless. It is used when no classifier
// is configured.
type NopScorer struct{}

func (NopScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	return map[string]float64{}, nil
}

// NewScorer returns the configured classifier wrapped so that it is built
// on first use.
func NewScorer(cfg *config.Config) Scorer {
	switch cfg.Toxicity.Provider {
	case "http":
		endpoint := cfg.Toxicity.Endpoint
		timeout := cfg.RequestTimeout()
		return NewLazyScorer("http", func(ctx context.Context) (Scorer, error) {
			return NewHTTPScorer(endpoint, timeout)
		})
	case "gemini":
		apiKey := cfg.Toxicity.APIKey
		model := cfg.Toxicity.GeminiModel
		categories := categoryNames(cfg.Toxicity.Weights)
		return NewLazyScorer("gemini", func(ctx context.Context) (Scorer, error) {
			return NewGeminiScorer(ctx, apiKey, model, categories)
		})
	default:
		return NopScorer{}
	}
}
