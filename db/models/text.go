package models

import (
	"time"
)

// TextEntry holds the opening post text of a new thread and its toxicity.
type TextEntry struct {
	ID       uint      `gorm:"primaryKey" bson:"_id" json:"id"`
	ThreadID int64     `gorm:"index;not null" bson:"thread_id" json:"threadId"`
	Title    string    `bson:"title,omitempty" json:"title,omitempty"`
	Content  string    `bson:"content,omitempty" json:"content,omitempty"`
	Toxicity float64   `gorm:"not null" bson:"toxicity" json:"toxicity"`
	Date     time.Time `gorm:"index;not null" bson:"date" json:"date"`
}

// TableName overrides the table name
func (TextEntry) TableName() string {
	return "text_entries"
}
