package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/db/repository"
	"github.com/agnosto/board-collector/logger"
	"github.com/corona10/goimagehash"
)

// Match is the stored entry closest to a looked-up hash.
type Match struct {
	Entry    models.ImageEntry
	Distance int
}

// ImageService handles the persistent side of image deduplication
type ImageService struct {
	repo      repository.ImageRepository
	threshold int
	batchSize int
	now       func() time.Time
}

// NewImageService creates a new image service. Hashes within threshold
// bits of each other are treated as the same image.
func NewImageService(repo repository.ImageRepository, threshold, batchSize int) *ImageService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ImageService{
		repo:      repo,
		threshold: threshold,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HashDistance is the number of differing bits of two hashes rendered as
// 64-character binary strings.
func HashDistance(a, b string) (int, error) {
	ha, err := parseHash(a)
	if err != nil {
		return 0, err
	}
	hb, err := parseHash(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}

func parseHash(s string) (*goimagehash.ImageHash, error) {
	if len(s) != 64 {
		return nil, fmt.Errorf("invalid hash %q: want 64 binary digits, got %d", s, len(s))
	}
	v, err := strconv.ParseUint(s, 2, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return goimagehash.NewImageHash(v, goimagehash.PHash), nil
}

// FindNearDuplicate scans every stored hash and returns the closest entry
// within the threshold, or nil. Ties go to the entry inserted first. An
// exact match ends the scan.
func (s *ImageService) FindNearDuplicate(ctx context.Context, hash string) (*Match, error) {
	target, err := parseHash(hash)
	if err != nil {
		return nil, err
	}

	var best *Match
	err = s.repo.ScanHashes(ctx, s.batchSize, func(batch []models.ImageEntry) error {
		for _, entry := range batch {
			stored, err := parseHash(entry.Hash)
			if err != nil {
				logger.Logger.Printf("[ERROR] [dedup] skipping entry %d: %v", entry.ID, err)
				continue
			}
			d, err := target.Distance(stored)
			if err != nil {
				return err
			}
			if d > s.threshold {
				continue
			}
			if best == nil || d < best.Distance {
				best = &Match{Entry: entry, Distance: d}
			}
			if d == 0 {
				return repository.ErrStopScan
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, persistErr("scan image hashes", err)
	}
	return best, nil
}

// SaveNew stores a previously unseen image with its first encounter.
func (s *ImageService) SaveNew(ctx context.Context, hash, fileName string) (*models.ImageEntry, error) {
	entry := &models.ImageEntry{
		Hash:            hash,
		FileName:        fileName,
		TotalEncounters: 1,
		Date:            s.now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, persistErr("create image entry", err)
	}
	return entry, nil
}

// RecordDuplicate adds an encounter to an existing entry.
func (s *ImageService) RecordDuplicate(ctx context.Context, entryID uint) (*models.ImageEntry, error) {
	entry, err := s.repo.AddEncounter(ctx, entryID, s.now())
	if err != nil {
		return nil, persistErr(fmt.Sprintf("add encounter to entry %d", entryID), err)
	}
	return entry, nil
}

// Expired returns the entries first seen before now - retention.
func (s *ImageService) Expired(ctx context.Context, retention time.Duration) ([]models.ImageEntry, error) {
	entries, err := s.repo.FindOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return nil, persistErr("find expired image entries", err)
	}
	return entries, nil
}

// Remove deletes an entry and its encounters.
func (s *ImageService) Remove(ctx context.Context, entryID uint) error {
	return persistErr(fmt.Sprintf("delete image entry %d", entryID), s.repo.Delete(ctx, entryID))
}

func (s *ImageService) Encounters(ctx context.Context, entryID uint) (int64, error) {
	n, err := s.repo.CountEncounters(ctx, entryID)
	return n, persistErr("count encounters", err)
}
