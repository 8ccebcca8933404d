package texts

import (
	"context"
	"errors"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/logger"
)

// ErrEmptyText is returned for an item with neither title nor body.
var ErrEmptyText = errors.New("empty text")

// Item is the opening post text of one new thread.
type Item struct {
	ThreadID int64
	Title    string
	Body     string
}

type Store interface {
	Save(ctx context.Context, threadID int64, title, content string, toxicity float64) (*models.TextEntry, error)
}

// Pipeline scores and stores new thread texts one at a time.
type Pipeline struct {
	scorer  Scorer
	store   Store
	weights map[string]float64
}

func NewPipeline(scorer Scorer, store Store, weights map[string]float64) *Pipeline {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	return &Pipeline{scorer: scorer, store: store, weights: weights}
}

// Process handles items sequentially. Items without text are skipped; a
// failing item is logged and does not stop the rest.
func (p *Pipeline) Process(ctx context.Context, items []Item) []models.TextEntry {
	entries := make([]models.TextEntry, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			logger.Logger.Printf("[ERROR] [texts] stopping early: %v", ctx.Err())
			break
		}

		entry, err := p.ProcessOne(ctx, item)
		if errors.Is(err, ErrEmptyText) {
			continue
		}
		if err != nil {
			logger.Logger.Printf("[ERROR] [texts] thread %d: %v", item.ThreadID, err)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries
}

func (p *Pipeline) ProcessOne(ctx context.Context, item Item) (*models.TextEntry, error) {
	title := StripMarkup(item.Title)
	body := StripMarkup(item.Body)
	if title == "" && body == "" {
		return nil, ErrEmptyText
	}

	text := title
	if body != "" {
		if text != "" {
			text += "\n"
		}
		text += body
	}

	probs, err := p.scorer.Score(ctx, text)
	if err != nil {
		return nil, err
	}

	return p.store.Save(ctx, item.ThreadID, title, body, Reduce(probs, p.weights))
}
