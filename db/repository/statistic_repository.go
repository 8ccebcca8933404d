package repository

import (
	"context"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"gorm.io/gorm"
)

// StatisticRepository stores the append-only per-cycle statistics log
type StatisticRepository interface {
	Create(ctx context.Context, stat *models.PostStatistic) error
	// Since returns the statistics recorded at or after t, oldest first.
	Since(ctx context.Context, t time.Time) ([]models.PostStatistic, error)
}

// GormStatisticRepository implements StatisticRepository using GORM
type GormStatisticRepository struct {
	db *gorm.DB
}

// NewStatisticRepository creates a new statistic repository
func NewStatisticRepository(db *gorm.DB) StatisticRepository {
	return &GormStatisticRepository{db: db}
}

func (r *GormStatisticRepository) Create(ctx context.Context, stat *models.PostStatistic) error {
	return r.db.WithContext(ctx).Create(stat).Error
}

func (r *GormStatisticRepository) Since(ctx context.Context, t time.Time) ([]models.PostStatistic, error) {
	var stats []models.PostStatistic
	err := r.db.WithContext(ctx).Where("date >= ?", t).Order("date").Find(&stats).Error
	return stats, err
}
