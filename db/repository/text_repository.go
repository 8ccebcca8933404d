package repository

import (
	"context"

	"github.com/agnosto/board-collector/db/models"
	"gorm.io/gorm"
)

// TextRepository defines the interface for text entry operations
type TextRepository interface {
	Create(ctx context.Context, entry *models.TextEntry) error
	FindByThread(ctx context.Context, threadID int64) (*models.TextEntry, error)
}

// GormTextRepository implements TextRepository using GORM
type GormTextRepository struct {
	db *gorm.DB
}

// NewTextRepository creates a new text repository
func NewTextRepository(db *gorm.DB) TextRepository {
	return &GormTextRepository{db: db}
}

func (r *GormTextRepository) Create(ctx context.Context, entry *models.TextEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormTextRepository) FindByThread(ctx context.Context, threadID int64) (*models.TextEntry, error) {
	var entry models.TextEntry
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
