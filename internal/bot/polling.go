package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Poll receives updates with getUpdates until ctx is done. Any registered
// webhook is removed first, since Telegram refuses getUpdates while one is set.
func (d *Dispatcher) Poll(ctx context.Context) error {
	if err := d.c.DeleteWebhook(); err != nil {
		return err
	}
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := d.c.api.GetUpdatesChan(cfg)
	d.log.Info("telegram long polling started", "bot", d.c.Username())

	for {
		select {
		case <-ctx.Done():
			d.c.api.StopReceivingUpdates()
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			d.Handle(&u)
		}
	}
}
