package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client is the slice of the Bot API the server uses.
type Client struct {
	api *tgbotapi.BotAPI
}

// NewClient connects with token against the public Bot API.
func NewClient(token string) (*Client, error) {
	return NewClientWithEndpoint(token, tgbotapi.APIEndpoint)
}

// NewClientWithEndpoint connects against endpoint, a format string taking
// the token and the method name.
func NewClientWithEndpoint(token, endpoint string) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("bot: connect: %w", err)
	}
	return &Client{api: api}, nil
}

// API exposes the underlying client, e.g. for the sticker syncer.
func (c *Client) API() *tgbotapi.BotAPI { return c.api }

// Username is the bot's @handle without the at sign.
func (c *Client) Username() string { return c.api.Self.UserName }

func (c *Client) SendMessage(chatID int64, text string, replyMarkup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = replyMarkup
	_, err := c.api.Send(msg)
	return err
}

// SendPhoto uploads png as a photo.
func (c *Client) SendPhoto(chatID int64, name string, png []byte, caption string) error {
	p := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	p.Caption = caption
	_, err := c.api.Send(p)
	return err
}

// SetMenuButton points the chat's menu button at the Mini App.
func (c *Client) SetMenuButton(chatID int64, text, appURL string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	if err := params.AddInterface("menu_button", map[string]any{
		"type":    "web_app",
		"text":    text,
		"web_app": map[string]string{"url": appURL},
	}); err != nil {
		return err
	}
	_, err := c.api.MakeRequest("setChatMenuButton", params)
	return err
}

// AnswerInline replies to an inline query with a single article that posts
// text into the chat.
func (c *Client) AnswerInline(queryID, title, text string) error {
	article := tgbotapi.NewInlineQueryResultArticle(queryID, title, text)
	article.Description = text
	_, err := c.api.Request(tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		Results:       []interface{}{article},
		IsPersonal:    true,
	})
	return err
}

// SetWebhook registers url for updates; polling stops working until it is
// removed again.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("bot: webhook url: %w", err)
	}
	_, err = c.api.Request(wh)
	return err
}

// DeleteWebhook switches the bot back to getUpdates.
func (c *Client) DeleteWebhook() error {
	_, err := c.api.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}
