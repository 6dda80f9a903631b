package bot

import (
	"errors"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/lojf/xraid/internal/events"
	"github.com/lojf/xraid/internal/models"
)

// Subscribe makes the dispatcher deliver every recorded share link to its
// owner's private chat.
func (d *Dispatcher) Subscribe() {
	events.OnShared = d.NotifyShare
}

// NotifyShare sends the link and its QR code to the user. Users who never
// started the bot, or who blocked it, are skipped.
func (d *Dispatcher) NotifyShare(s models.ShareLink) {
	if d.db == nil {
		return
	}
	var tu models.TelegramUser
	if err := d.db.Where("telegram_user_id = ? AND deliverable = ?", s.TelegramUserID, true).First(&tu).Error; err != nil {
		return
	}

	msg := "🎯 <b>Your X Raid image is live</b>\n" + html.EscapeString(s.Link)
	if err := d.c.SendMessage(tu.ChatID, msg, nil); err != nil {
		d.undeliverable(&tu, err)
		return
	}
	png, err := qrcode.Encode(s.Link, qrcode.Medium, 256)
	if err != nil {
		return
	}
	if err := d.c.SendPhoto(tu.ChatID, "share-qr.png", png, ""); err != nil {
		d.log.Warn("send share qr", "chat", tu.ChatID, "err", err)
	}
}

// undeliverable flags users who blocked the bot so later shares skip them.
func (d *Dispatcher) undeliverable(tu *models.TelegramUser, err error) {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code == 403 {
		d.db.Model(tu).Update("deliverable", false)
		return
	}
	d.log.Warn("send share link", "chat", tu.ChatID, "err", err)
}
