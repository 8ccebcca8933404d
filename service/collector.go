package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/core"
	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/images"
	"github.com/agnosto/board-collector/logger"
	"github.com/agnosto/board-collector/texts"
	"github.com/agnosto/board-collector/threads"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Fetcher interface {
	FetchPages(ctx context.Context, since time.Duration) ([]threads.Page, bool, error)
	FetchThreadDetails(ctx context.Context, id int64) (threads.Post, error)
	ImageURL(m threads.Media) string
}

type ImageProcessor interface {
	Process(ctx context.Context, jobs []images.Job) []images.Result
}

type TextProcessor interface {
	Process(ctx context.Context, items []texts.Item) []models.TextEntry
}

type StatisticsRecorder interface {
	Record(ctx context.Context, newThreads, newReplies int) (*models.PostStatistic, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (images.SweepResult, error)
}

// Publisher receives the result of every successful cycle.
type Publisher interface {
	Publish(result CycleResult)
}

type RestartNotifier interface {
	NotifyRestart(err error, delay time.Duration)
}

// Deps are the collaborators of a Collector. Only Fetcher and Stats are
// required.
type Deps struct {
	Fetcher   Fetcher
	Images    ImageProcessor
	Texts     TextProcessor
	Stats     StatisticsRecorder
	Sweeper   Sweeper
	Publisher Publisher
	Notifier  RestartNotifier
}

type CycleStats struct {
	NewThreads   int     `json:"newThreads"`
	NewReplies   int     `json:"newReplies"`
	NewPosts     int     `json:"newPosts"`
	NewThreadIDs []int64 `json:"newThreadIds"`
	Clamped      []int64 `json:"clamped,omitempty"`
}

type CycleResult struct {
	ID             string                 `json:"id"`
	StartedAt      time.Time              `json:"startedAt"`
	Duration       time.Duration          `json:"duration"`
	NotModified    bool                   `json:"notModified"`
	CurrentThreads threads.Snapshot       `json:"currentThreads"`
	ActiveThreads  []threads.ActiveThread `json:"activeThreads"`
	Stats          CycleStats             `json:"stats"`
	Images         []images.Result        `json:"-"`
	StoredImages   int                    `json:"storedImages"`
	Reposts        int                    `json:"reposts"`
	ScoredTexts    int                    `json:"scoredTexts"`
	WordCloud      []texts.WordCount      `json:"wordCloud"`
}

// Collector drives fetch, delta, image and text processing on a fixed period.
type Collector struct {
	deps            Deps
	period          time.Duration
	errorBackoff    time.Duration
	restartDelay    time.Duration
	cleanupInterval time.Duration
	topN            int
	wordCloudSize   int

	// lastFetch is when the board listing was last answered, modified or not.
	lastFetch time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewCollector(cfg *config.Config, deps Deps) *Collector {
	return &Collector{
		deps:            deps,
		period:          cfg.CycleTime(),
		errorBackoff:    cfg.ErrorBackoff(),
		restartDelay:    cfg.RestartDelay(),
		cleanupInterval: cfg.CleanupInterval(),
		topN:            cfg.Dashboard.TopN,
		wordCloudSize:   cfg.Dashboard.WordCloudSize,
		now:             time.Now,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// nextWait is the remaining part of period after elapsed, never negative.
func nextWait(period, elapsed time.Duration) time.Duration {
	if w := period - elapsed; w > 0 {
		return w
	}
	return 0
}

// Run fetches the initial snapshot and then runs cycles until ctx is done.
// A failing cycle is logged and the next one starts after the error
// backoff instead of a full period. Run only returns early when the
// initial snapshot cannot be fetched.
func (c *Collector) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Printf("[ERROR] [collector] panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("collector panic: %v", r)
		}
	}()

	prev, err := c.initialSnapshot(ctx)
	if err != nil {
		return err
	}

	lastStart := c.now()
	wait := c.period

	for {
		if err := c.sleep(ctx, nextWait(wait, c.now().Sub(lastStart))); err != nil {
			return err
		}
		lastStart = c.now()

		result, err := c.cycle(ctx, prev)
		if result != nil {
			prev = result.CurrentThreads
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logCycleError(err)
			lastStart = c.now()
			wait = c.errorBackoff
			continue
		}
		wait = c.period
	}
}

// RunForever restarts Run after a constant delay every time it stops with
// an error, and keeps the retention sweep running alongside.
func (c *Collector) RunForever(ctx context.Context) error {
	if c.deps.Sweeper != nil && c.cleanupInterval > 0 {
		go c.cleanupLoop(ctx)
	}

	for {
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Logger.Printf("[ERROR] [collector] %v", err)
		logger.Logger.Printf("[INFO] Retry in %s", c.restartDelay)
		if c.deps.Notifier != nil {
			c.deps.Notifier.NotifyRestart(err, c.restartDelay)
		}

		if err := c.sleep(ctx, c.restartDelay); err != nil {
			return err
		}
	}
}

// RunOnce takes the initial snapshot, waits one period and runs a single
// cycle against it.
func (c *Collector) RunOnce(ctx context.Context) (*CycleResult, error) {
	prev, err := c.initialSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.sleep(ctx, c.period); err != nil {
		return nil, err
	}
	return c.cycle(ctx, prev)
}

// Cleanup runs one retention sweep.
func (c *Collector) Cleanup(ctx context.Context) (images.SweepResult, error) {
	if c.deps.Sweeper == nil {
		return images.SweepResult{}, errors.New("no sweeper configured")
	}
	logger.Logger.Printf("[INFO] Begin cleanup")
	res, err := c.deps.Sweeper.Sweep(ctx)
	if err != nil {
		logger.Logger.Printf("[ERROR] [cleanup] %v", err)
		return res, err
	}
	logger.Logger.Printf("[INFO] Finished cleanup")
	return res, nil
}

func (c *Collector) cleanupLoop(ctx context.Context) {
	logger.Logger.Printf("[INFO] Scheduled cleanup every %s", c.cleanupInterval)

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) initialSnapshot(ctx context.Context) (threads.Snapshot, error) {
	pages, _, err := c.deps.Fetcher.FetchPages(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch initial snapshot: %w", err)
	}
	c.lastFetch = c.now()
	snapshot := threads.Normalize(pages)
	logger.Logger.Printf("[INFO] Initial snapshot holds %d threads", len(snapshot))
	return snapshot, nil
}

// cycle runs one fetch-delta-process round against prev. The returned
// result is non-nil whenever a new snapshot was taken, even if a later
// step failed, so that the caller can move on from it.
func (c *Collector) cycle(ctx context.Context, prev threads.Snapshot) (*CycleResult, error) {
	result := &CycleResult{
		ID:        uuid.NewString(),
		StartedAt: c.now(),
	}

	pages, modified, err := c.deps.Fetcher.FetchPages(ctx, c.sinceLastFetch())
	if err != nil {
		return nil, err
	}
	c.lastFetch = c.now()

	current := prev
	if modified {
		current = threads.Normalize(pages)
	} else {
		result.NotModified = true
		logger.Logger.Printf("[INFO] [%s] Board not modified", result.ID[:8])
	}

	d := threads.ComputeDelta(prev, current)
	if len(d.Clamped) > 0 {
		logger.Logger.Printf("[ERROR] [cycle] reply count went down for threads %v, counted as zero", d.Clamped)
	}

	jobs, items := c.lookupNewThreads(ctx, current, d.NewThreadIDs)

	result.CurrentThreads = current
	result.Stats = CycleStats{
		NewThreads:   d.NewThreads(),
		NewReplies:   d.TotalNewReplies,
		NewPosts:     d.NewPosts(),
		NewThreadIDs: d.NewThreadIDs,
		Clamped:      d.Clamped,
	}

	var (
		imageResults []images.Result
		textEntries  []models.TextEntry
		g            errgroup.Group
	)
	if c.deps.Images != nil && len(jobs) > 0 {
		g.Go(func() (err error) {
			defer recoverStage("images", &err)
			imageResults = c.deps.Images.Process(ctx, jobs)
			return ctx.Err()
		})
	}
	if c.deps.Texts != nil && len(items) > 0 {
		g.Go(func() (err error) {
			defer recoverStage("texts", &err)
			textEntries = c.deps.Texts.Process(ctx, items)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	result.Images = imageResults
	for _, r := range imageResults {
		if r.Outcome == images.Duplicate {
			result.Reposts++
		} else {
			result.StoredImages++
		}
	}
	result.ScoredTexts = len(textEntries)
	result.WordCloud = wordCloud(items, c.wordCloudSize)

	if _, err := c.deps.Stats.Record(ctx, d.NewThreads(), d.TotalNewReplies); err != nil {
		return result, err
	}

	result.ActiveThreads = threads.ActiveThreads(current, d, c.topN)
	result.Duration = c.now().Sub(result.StartedAt)

	logger.Logger.Printf("[INFO] [%s] New threads: %d, new replies: %d, images stored: %d, reposts: %d, texts: %d",
		result.ID[:8], result.Stats.NewThreads, result.Stats.NewReplies, result.StoredImages, result.Reposts, result.ScoredTexts)

	if c.deps.Publisher != nil {
		c.deps.Publisher.Publish(*result)
	}
	return result, nil
}

// sinceLastFetch is the If-Modified-Since window for the next listing
// request. Zero before the first answer, which makes the request
// unconditional.
func (c *Collector) sinceLastFetch() time.Duration {
	if c.lastFetch.IsZero() {
		return 0
	}
	return c.now().Sub(c.lastFetch)
}

// recoverStage turns a panic inside one pipeline goroutine into that
// goroutine's error, so the cycle fails instead of the process.
func recoverStage(stage string, err *error) {
	if r := recover(); r != nil {
		logger.Logger.Printf("[ERROR] [%s] panic: %v\n%s", stage, r, debug.Stack())
		*err = fmt.Errorf("%s pipeline panic: %v", stage, r)
	}
}

func wordCloud(items []texts.Item, n int) []texts.WordCount {
	posts := make([]string, 0, len(items))
	for _, it := range items {
		posts = append(posts, it.Title+"\n"+it.Body)
	}
	return texts.WordCloud(posts, n)
}

// lookupNewThreads fetches the opening post of every new thread, folds it
// into current and collects the work for both pipelines. Threads whose
// details cannot be fetched are logged and left out.
func (c *Collector) lookupNewThreads(ctx context.Context, current threads.Snapshot, ids []int64) ([]images.Job, []texts.Item) {
	var (
		jobs  []images.Job
		items []texts.Item
	)

	for _, id := range ids {
		op, err := c.deps.Fetcher.FetchThreadDetails(ctx, id)
		if err != nil {
			logger.Logger.Printf("[ERROR] [cycle] details for thread %d: %v", id, err)
			continue
		}

		t := current[id].WithDetails(op)
		current[id] = t

		if t.Media != nil && t.Media.IsImage() {
			jobs = append(jobs, images.Job{
				ThreadID: id,
				URL:      c.deps.Fetcher.ImageURL(*t.Media),
				FileName: t.Media.FileName(),
			})
		}
		items = append(items, texts.Item{ThreadID: id, Title: t.Subject, Body: t.Comment})
	}

	return jobs, items
}

func logCycleError(err error) {
	var fe *core.FetchError
	if errors.As(err, &fe) {
		logger.Logger.Printf("[ERROR] [cycle] fetch %s failed (status %d): %v", fe.URL, fe.StatusCode, err)
		return
	}
	logger.Logger.Printf("[ERROR] [cycle] %v", err)
}
