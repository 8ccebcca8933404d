package texts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// GeminiScorer uses a Gemini model as the toxicity classifier.
type GeminiScorer struct {
	client     *genai.Client
	model      string
	categories []string
}

func NewGeminiScorer(ctx context.Context, apiKey, model string, categories []string) (*GeminiScorer, error) {
	return newGeminiScorer(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, categories)
}

func newGeminiScorer(ctx context.Context, cc *genai.ClientConfig, model string, categories []string) (*GeminiScorer, error) {
	if cc.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiScorer{
		client:     client,
		model:      model,
		categories: categories,
	}, nil
}

func (s *GeminiScorer) prompt(text string) string {
	var b strings.Builder
	b.WriteString("Rate the following forum post for each category with a probability between 0 and 1.\n")
	b.WriteString("Answer with a single JSON object whose keys are exactly: ")
	b.WriteString(strings.Join(s.categories, ", "))
	b.WriteString(".\n\nPost:\n")
	b.WriteString(text)
	return b.String()
}

func (s *GeminiScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(s.prompt(text)), config)
	if err != nil {
		return nil, &ScoreError{Provider: "gemini", Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ScoreError{Provider: "gemini", Err: fmt.Errorf("no response from gemini")}
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result.WriteString(part.Text)
		}
	}

	probs, err := decodeScores(strings.NewReader(result.String()))
	if err != nil {
		return nil, &ScoreError{Provider: "gemini", Err: err}
	}
	return probs, nil
}

func categoryNames(weights map[string]float64) []string {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
