package images

import (
	"context"
	"fmt"
	"os"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/db/service"
	"github.com/agnosto/board-collector/logger"
)

// Outcome is the terminal state of one processed image.
type Outcome int

const (
	Stored Outcome = iota + 1
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Job is one attachment of a newly discovered thread.
type Job struct {
	ThreadID int64
	URL      string
	FileName string
}

type Result struct {
	Job      Job
	Outcome  Outcome
	Entry    models.ImageEntry
	Distance int
}

// Store is the persistent side of deduplication.
type Store interface {
	FindNearDuplicate(ctx context.Context, hash string) (*service.Match, error)
	SaveNew(ctx context.Context, hash, fileName string) (*models.ImageEntry, error)
	RecordDuplicate(ctx context.Context, entryID uint) (*models.ImageEntry, error)
}

type Fetcher interface {
	Download(ctx context.Context, url, fileName string) (string, error)
}

type RepostNotifier interface {
	NotifyRepost(entry models.ImageEntry)
}

// Pipeline runs download, optimize, hash and dedup for one image at a time.
type Pipeline struct {
	fetcher         Fetcher
	optimizer       *Optimizer
	hasher          Hasher
	store           Store
	notifier        RepostNotifier
	repostThreshold int
}

func NewPipeline(fetcher Fetcher, optimizer *Optimizer, store Store) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		optimizer: optimizer,
		store:     store,
	}
}

// WithRepostNotifier makes the pipeline report an entry once its encounter
// count reaches threshold.
func (p *Pipeline) WithRepostNotifier(n RepostNotifier, threshold int) *Pipeline {
	p.notifier = n
	p.repostThreshold = threshold
	return p
}

// Process handles jobs sequentially. A failing image is logged and skipped;
// the returned results cover the images that reached a terminal state.
func (p *Pipeline) Process(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			logger.Logger.Printf("[ERROR] [images] stopping with %d images left: %v", len(jobs)-len(results), ctx.Err())
			break
		}

		res, err := p.ProcessOne(ctx, job)
		if err != nil {
			logger.Logger.Printf("[ERROR] [images] thread %d: %v", job.ThreadID, err)
			continue
		}
		results = append(results, res)
	}
	return results
}

func (p *Pipeline) ProcessOne(ctx context.Context, job Job) (Result, error) {
	res := Result{Job: job}

	downloaded, err := p.fetcher.Download(ctx, job.URL, job.FileName)
	if err != nil {
		return res, err
	}

	optimized, err := p.optimizer.Optimize(downloaded)
	if err != nil {
		os.Remove(downloaded)
		return res, err
	}

	hash, err := p.hasher.Hash(optimized)
	if err != nil {
		os.Remove(optimized)
		return res, err
	}

	match, err := p.store.FindNearDuplicate(ctx, hash)
	if err != nil {
		os.Remove(optimized)
		return res, fmt.Errorf("dedup lookup for %s: %w", job.FileName, err)
	}

	if match == nil {
		entry, err := p.store.SaveNew(ctx, hash, job.FileName)
		if err != nil {
			os.Remove(optimized)
			return res, fmt.Errorf("save %s: %w", job.FileName, err)
		}
		res.Outcome = Stored
		res.Entry = *entry
		logger.Logger.Printf("[INFO] Stored new image %s", job.FileName)
		return res, nil
	}

	entry, err := p.store.RecordDuplicate(ctx, match.Entry.ID)
	if err != nil {
		os.Remove(optimized)
		return res, fmt.Errorf("record duplicate of %d: %w", match.Entry.ID, err)
	}
	if err := os.Remove(optimized); err != nil {
		logger.Logger.Printf("[ERROR] [images] failed to delete redundant %s: %v", optimized, err)
	}

	res.Outcome = Duplicate
	res.Entry = *entry
	res.Distance = match.Distance
	logger.Logger.Printf("[INFO] %s is a repost of %s (distance %d, seen %d times)",
		job.FileName, entry.FileName, match.Distance, entry.TotalEncounters)

	if p.notifier != nil && p.repostThreshold > 0 && entry.TotalEncounters == p.repostThreshold {
		p.notifier.NotifyRepost(*entry)
	}
	return res, nil
}
