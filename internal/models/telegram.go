package models

import "time"

// TelegramUser is anyone who has opened the bot or the Mini App.
type TelegramUser struct {
	ID             uint  `gorm:"primarykey"`
	TelegramUserID int64 `gorm:"uniqueIndex"`
	ChatID         int64
	Username       string
	FirstName      string
	Language       string
	Deliverable    bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ShareLink records a shared artifact link. The image itself is never stored.
type ShareLink struct {
	ID             uint  `gorm:"primarykey"`
	TelegramUserID int64 `gorm:"index"`
	Link           string
	PostURL        string
	Sticker        string
	CreatedAt      time.Time
}
