package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"gorm.io/gorm"
)

// ErrStopScan may be returned from a ScanHashes callback to end the scan
// early. ScanHashes then returns nil.
var ErrStopScan = errors.New("stop scan")

// ImageRepository defines the storage operations behind image deduplication
type ImageRepository interface {
	// Create inserts entry together with its first encounter.
	Create(ctx context.Context, entry *models.ImageEntry) error
	FindByID(ctx context.Context, id uint) (*models.ImageEntry, error)
	// ScanHashes visits every entry in ascending id order, batchSize rows at a time.
	ScanHashes(ctx context.Context, batchSize int, fn func(batch []models.ImageEntry) error) error
	// AddEncounter records a sighting and increments the entry's counter by one.
	AddEncounter(ctx context.Context, entryID uint, at time.Time) (*models.ImageEntry, error)
	CountEncounters(ctx context.Context, entryID uint) (int64, error)
	FindOlderThan(ctx context.Context, cutoff time.Time) ([]models.ImageEntry, error)
	// Delete removes an entry and all of its encounters.
	Delete(ctx context.Context, entryID uint) error
}

// GormImageRepository implements ImageRepository using GORM
type GormImageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &GormImageRepository{db: db}
}

func (r *GormImageRepository) Create(ctx context.Context, entry *models.ImageEntry) error {
	if entry.TotalEncounters == 0 {
		entry.TotalEncounters = 1
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Create(&models.ImageEncounter{EntryID: entry.ID, Date: entry.Date}).Error
	})
}

func (r *GormImageRepository) FindByID(ctx context.Context, id uint) (*models.ImageEntry, error) {
	var entry models.ImageEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *GormImageRepository) ScanHashes(ctx context.Context, batchSize int, fn func(batch []models.ImageEntry) error) error {
	var batch []models.ImageEntry
	err := r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
	if errors.Is(err, ErrStopScan) {
		return nil
	}
	return err
}

func (r *GormImageRepository) AddEncounter(ctx context.Context, entryID uint, at time.Time) (*models.ImageEntry, error) {
	var entry models.ImageEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ImageEntry{}).
			Where("id = ?", entryID).
			UpdateColumn("total_encounters", gorm.Expr("total_encounters + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Create(&models.ImageEncounter{EntryID: entryID, Date: at}).Error; err != nil {
			return err
		}
		return tx.First(&entry, entryID).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *GormImageRepository) CountEncounters(ctx context.Context, entryID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ImageEncounter{}).Where("entry_id = ?", entryID).Count(&count).Error
	return count, err
}

func (r *GormImageRepository) FindOlderThan(ctx context.Context, cutoff time.Time) ([]models.ImageEntry, error) {
	var entries []models.ImageEntry
	err := r.db.WithContext(ctx).Where("date < ?", cutoff).Order("id").Find(&entries).Error
	return entries, err
}

func (r *GormImageRepository) Delete(ctx context.Context, entryID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entry_id = ?", entryID).Delete(&models.ImageEncounter{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ImageEntry{}, entryID).Error
	})
}
