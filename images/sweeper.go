package images

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/logger"
	"github.com/dustin/go-humanize"
)

type ExpiryStore interface {
	Expired(ctx context.Context, retention time.Duration) ([]models.ImageEntry, error)
	Remove(ctx context.Context, entryID uint) error
}

// Sweeper enforces the retention window on stored images.
type Sweeper struct {
	store     ExpiryStore
	dir       string
	retention time.Duration
}

type SweepResult struct {
	Entries int
	Files   int
	Freed   uint64
}

func NewSweeper(store ExpiryStore, optimizedDir string, retention time.Duration) *Sweeper {
	return &Sweeper{store: store, dir: optimizedDir, retention: retention}
}

// Sweep deletes every entry older than the retention window together with
// its encounters and its optimized file. Entries that fail to delete are
// logged and left for the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	expired, err := s.store.Expired(ctx, s.retention)
	if err != nil {
		return res, err
	}

	for _, entry := range expired {
		if err := s.store.Remove(ctx, entry.ID); err != nil {
			logger.Logger.Printf("[ERROR] [cleanup] entry %d: %v", entry.ID, err)
			continue
		}
		res.Entries++

		path := filepath.Join(s.dir, filepath.Base(entry.FileName))
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err == nil {
			err = os.Remove(path)
		}
		if err != nil {
			logger.Logger.Printf("[ERROR] [cleanup] failed to delete %s: %v", path, err)
			continue
		}
		res.Files++
		res.Freed += uint64(info.Size())
	}

	logger.Logger.Printf("[INFO] Cleanup removed %d entries and %d files (%s)",
		res.Entries, res.Files, humanize.Bytes(res.Freed))
	return res, nil
}
