package texts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPScorer asks a model server for category probabilities. The server
// receives {"text": "..."} and answers with a JSON object of category
// names to probabilities.
type HTTPScorer struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPScorer(endpoint string, timeout time.Duration) (*HTTPScorer, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid toxicity endpoint %q", endpoint)
	}
	return &HTTPScorer{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, &ScoreError{Provider: "http", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ScoreError{Provider: "http", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &ScoreError{Provider: "http", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ScoreError{Provider: "http", Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}

	probs, err := decodeScores(resp.Body)
	if err != nil {
		return nil, &ScoreError{Provider: "http", Err: err}
	}
	return probs, nil
}

func decodeScores(r io.Reader) (map[string]float64, error) {
	var probs map[string]float64
	if err := json.NewDecoder(r).Decode(&probs); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %w", err)
	}
	for category, p := range probs {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("probability for %s out of range: %v", category, p)
		}
	}
	return probs, nil
}
