package models

import (
	"time"

	"gorm.io/gorm"
)

// PostStatistic is the per-cycle delta, appended once per cycle.
type PostStatistic struct {
	ID         uint      `gorm:"primaryKey" bson:"_id" json:"id"`
	NewThreads int       `gorm:"not null" bson:"new_threads" json:"newThreads"`
	NewReplies int       `gorm:"not null" bson:"new_replies" json:"newReplies"`
	NewPosts   int       `gorm:"not null" bson:"new_posts" json:"newPosts"`
	Date       time.Time `gorm:"index;not null" bson:"date" json:"date"`
}

// TableName overrides the table name
func (PostStatistic) TableName() string {
	return "post_stats"
}

// Derive sets NewPosts from its parts; it is never taken from the caller.
func (s *PostStatistic) Derive() {
	s.NewPosts = s.NewThreads + s.NewReplies
	if s.Date.IsZero() {
		s.Date = time.Now()
	}
}

func (s *PostStatistic) BeforeCreate(tx *gorm.DB) error {
	s.Derive()
	return nil
}
