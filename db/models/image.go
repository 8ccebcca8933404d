package models

import (
	"time"
)

// ImageEntry is one distinct image, identified by its perceptual hash.
type ImageEntry struct {
	ID              uint      `gorm:"primaryKey" bson:"_id" json:"id"`
	Hash            string    `gorm:"index;not null" bson:"hash" json:"hash"`
	FileName        string    `gorm:"not null" bson:"file_name" json:"fileName"`
	TotalEncounters int       `gorm:"not null;default:1" bson:"total_encounters" json:"totalEncounters"`
	Date            time.Time `gorm:"index;not null" bson:"date" json:"date"`
}

// TableName overrides the table name
func (ImageEntry) TableName() string {
	return "image_entries"
}

// ImageEncounter records one sighting of an entry, the first one included.
type ImageEncounter struct {
	ID      uint      `gorm:"primaryKey" bson:"_id" json:"id"`
	EntryID uint      `gorm:"index;not null" bson:"entry_id" json:"entryId"`
	Date    time.Time `gorm:"not null" bson:"date" json:"date"`
}

// TableName overrides the table name
func (ImageEncounter) TableName() string {
	return "image_encounters"
}
