package texts

import (
	"context"
	"sync"

	"github.com/agnosto/board-collector/logger"
)

// LazyScorer builds its Scorer on the first call and shares it afterwards.
// A failed build is not retried: every later call returns the same error.
type LazyScorer struct {
	name string
	load func(ctx context.Context) (Scorer, error)

	once   sync.Once
	scorer Scorer
	err    error
}

func NewLazyScorer(name string, load func(ctx context.Context) (Scorer, error)) *LazyScorer {
	return &LazyScorer{name: name, load: load}
}

func (l *LazyScorer) get(ctx context.Context) (Scorer, error) {
	l.once.Do(func() {
		l.scorer, l.err = l.load(ctx)
		if l.err != nil {
			logger.Logger.Printf("[ERROR] [toxicity] failed to load %s scorer: %v", l.name, l.err)
			return
		}
		logger.Logger.Printf("[INFO] Loaded %s toxicity scorer", l.name)
	})
	return l.scorer, l.err
}

func (l *LazyScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, &ScoreError{Provider: l.name, Err: err}
	}
	return s.Score(ctx, text)
}
