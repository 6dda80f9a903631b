package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lojf/xraid/internal/models"
)

// UpsertTelegramUser creates the user on first contact and refreshes the
// profile fields on every later one.
func UpsertTelegramUser(g *gorm.DB, u models.TelegramUser) (models.TelegramUser, error) {
	var tu models.TelegramUser
	err := g.Where("telegram_user_id = ?", u.TelegramUserID).
		Assign(models.TelegramUser{
			ChatID:      u.ChatID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			Language:    u.Language,
			Deliverable: true,
		}).
		FirstOrCreate(&tu, models.TelegramUser{TelegramUserID: u.TelegramUserID}).Error
	return tu, err
}

// RecordShare stores a share link for a user.
func RecordShare(g *gorm.DB, s models.ShareLink) error {
	return g.Create(&s).Error
}

// RecentShares returns a user's latest share links, newest first.
func RecentShares(g *gorm.DB, telegramUserID int64, limit int) ([]models.ShareLink, error) {
	var out []models.ShareLink
	err := g.Where("telegram_user_id = ?", telegramUserID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpsertSticker inserts or updates a synced sticker keyed by FileUniqueID.
func UpsertSticker(g *gorm.DB, s models.Sticker) error {
	return g.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_unique_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_id", "set_name", "filename", "emoji", "width", "height", "updated_at"}),
	}).Create(&s).Error
}

// StickersInSet lists synced stickers of one set ordered by filename.
func StickersInSet(g *gorm.DB, set string) ([]models.Sticker, error) {
	var out []models.Sticker
	err := g.Where("set_name = ?", set).Order("filename asc").Find(&out).Error
	return out, err
}
