package models

import "time"

// Sticker is a file synced from a Telegram sticker set into the sticker dir.
type Sticker struct {
	ID           uint   `gorm:"primaryKey"`
	FileUniqueID string `gorm:"uniqueIndex;not null"`
	FileID       string
	SetName      string `gorm:"index"`
	Filename     string
	Emoji        string
	Width        int
	Height       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
