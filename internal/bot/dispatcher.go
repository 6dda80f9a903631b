package bot

import (
	"fmt"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/lojf/xraid/internal/db"
	"github.com/lojf/xraid/internal/models"
	"github.com/lojf/xraid/internal/share"
)

const menuText = "X Raid"

type Dispatcher struct {
	c      *Client
	appURL string
	db     *gorm.DB
	log    *slog.Logger

	// Updates counts handled updates by kind when set.
	Updates *prometheus.CounterVec
}

// NewDispatcher routes updates for c. appURL is the Mini App page; when
// empty the bot answers without web app buttons. g may be nil.
func NewDispatcher(c *Client, appURL string, g *gorm.DB, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{c: c, appURL: appURL, db: g, log: log}
}

// AppKeyboard is an inline keyboard with one button opening the Mini App.
func AppKeyboard(appURL string) any {
	return map[string]any{
		"inline_keyboard": [][]map[string]any{
			{{"text": "Open X Raid", "web_app": map[string]string{"url": appURL}}},
		},
	}
}

func (d *Dispatcher) Handle(u *tgbotapi.Update) {
	switch {
	case u.Message != nil:
		d.count("message")
		d.handleMessage(u.Message)
	case u.InlineQuery != nil:
		d.count("inline_query")
		d.handleInline(u.InlineQuery)
	default:
		d.count("other")
	}
}

func (d *Dispatcher) handleMessage(m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil {
		return
	}
	chat := m.Chat.ID

	if d.db != nil {
		if _, err := db.UpsertTelegramUser(d.db, models.TelegramUser{
			TelegramUserID: m.From.ID,
			ChatID:         chat,
			Username:       m.From.UserName,
			FirstName:      m.From.FirstName,
			Language:       m.From.LanguageCode,
		}); err != nil {
			d.log.Error("upsert telegram user", "user", m.From.ID, "err", err)
		}
	}

	switch m.Command() {
	case "start":
		d.handleStart(chat, m.From.FirstName)
	case "shares":
		d.handleShares(chat, m.From.ID)
	case "help":
		_ = d.c.SendMessage(chat, helpText, nil)
	default:
		_ = d.c.SendMessage(chat, "Send /start to open X Raid or /help for more.", nil)
	}
}

const helpText = "Paste an X post link in the app, drop a sticker on its image, then " +
	"download, copy or share the result.\n\n" +
	"/start opens the app\n/shares lists your recent share links"

func (d *Dispatcher) handleStart(chat int64, firstName string) {
	hello := "Hi"
	if firstName != "" {
		hello += " " + html.EscapeString(firstName)
	}
	if d.appURL == "" {
		_ = d.c.SendMessage(chat, hello+"! The app is not published yet.", nil)
		return
	}
	if err := d.c.SendMessage(chat, hello+"! Tap the button below to raid a post.", AppKeyboard(d.appURL)); err != nil {
		d.log.Warn("send start reply", "chat", chat, "err", err)
	}
	if err := d.c.SetMenuButton(chat, menuText, d.appURL); err != nil {
		d.log.Warn("set menu button", "chat", chat, "err", err)
	}
}

func (d *Dispatcher) handleShares(chat, userID int64) {
	if d.db == nil {
		_ = d.c.SendMessage(chat, "Share history is not available.", nil)
		return
	}
	links, err := db.RecentShares(d.db, userID, 5)
	if err != nil {
		d.log.Error("recent shares", "user", userID, "err", err)
		_ = d.c.SendMessage(chat, "Could not load your shares. Please try again.", nil)
		return
	}
	if len(links) == 0 {
		_ = d.c.SendMessage(chat, "You have not shared anything yet.", nil)
		return
	}
	var b strings.Builder
	b.WriteString("<b>Your recent shares</b>\n")
	for i, l := range links {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, l.CreatedAt.Format("02 Jan 15:04"), html.EscapeString(l.Link))
	}
	_ = d.c.SendMessage(chat, b.String(), nil)
}

// handleInline answers the share query the Mini App opens with
// switchInlineQuery, so the user can post the link into a group.
func (d *Dispatcher) handleInline(q *tgbotapi.InlineQuery) {
	text := strings.TrimSpace(q.Query)
	if text == "" {
		if d.appURL == "" {
			return
		}
		text = "Raid with me: " + d.appURL
	}
	title := "Share your X Raid image"
	if !strings.HasPrefix(text, share.InlineQueryPrefix) {
		title = "Send message"
	}
	if err := d.c.AnswerInline(q.ID, title, text); err != nil {
		d.log.Warn("answer inline query", "query", q.ID, "err", err)
	}
}

func (d *Dispatcher) count(kind string) {
	if d.Updates != nil {
		d.Updates.WithLabelValues(kind).Inc()
	}
}
