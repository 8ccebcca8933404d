package service

import (
	"context"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/db/repository"
)

// Rates are per-minute averages over a window of the statistics log.
type Rates struct {
	Window           time.Duration `json:"window"`
	Cycles           int           `json:"cycles"`
	PostsPerMinute   float64       `json:"postsPerMinute"`
	ThreadsPerMinute float64       `json:"threadsPerMinute"`
	RepliesPerMinute float64       `json:"repliesPerMinute"`
}

// StatisticService records and aggregates per-cycle statistics
type StatisticService struct {
	repo repository.StatisticRepository
	now  func() time.Time
}

// NewStatisticService creates a new statistic service
func NewStatisticService(repo repository.StatisticRepository) *StatisticService {
	return &StatisticService{repo: repo, now: time.Now}
}

// Record appends one cycle's counts. NewPosts is derived, never passed in.
func (s *StatisticService) Record(ctx context.Context, newThreads, newReplies int) (*models.PostStatistic, error) {
	stat := &models.PostStatistic{
		NewThreads: newThreads,
		NewReplies: newReplies,
		Date:       s.now(),
	}
	stat.Derive()
	if err := s.repo.Create(ctx, stat); err != nil {
		return nil, persistErr("create post statistic", err)
	}
	return stat, nil
}

// Rates averages the statistics of the last window per minute.
func (s *StatisticService) Rates(ctx context.Context, window time.Duration) (Rates, error) {
	r := Rates{Window: window}
	if window <= 0 {
		return r, nil
	}

	stats, err := s.repo.Since(ctx, s.now().Add(-window))
	if err != nil {
		return r, persistErr("query post statistics", err)
	}

	var posts, threads, replies int
	for _, st := range stats {
		posts += st.NewPosts
		threads += st.NewThreads
		replies += st.NewReplies
	}

	minutes := window.Minutes()
	r.Cycles = len(stats)
	r.PostsPerMinute = float64(posts) / minutes
	r.ThreadsPerMinute = float64(threads) / minutes
	r.RepliesPerMinute = float64(replies) / minutes
	return r, nil
}
