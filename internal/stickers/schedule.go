package stickers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule runs s.Sync(set) on a five-field cron expression. A tick that
// arrives while the previous sync is still running is skipped. The
// returned stop function waits for an in-flight sync to finish.
func Schedule(ctx context.Context, spec, set string, s *Syncer, onDone func(Result, error)) (stop func(), err error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))

	var running sync.Mutex
	_, err = c.AddFunc(spec, func() {
		if !running.TryLock() {
			s.logger().Warn("sticker sync still running, skipping tick", "set", set)
			return
		}
		defer running.Unlock()

		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		res, err := s.Sync(runCtx, set)
		if err != nil {
			s.logger().Error("scheduled sticker sync failed", "set", set, "err", err)
		}
		if onDone != nil {
			onDone(res, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("stickers: invalid sync schedule %q: %w", spec, err)
	}

	c.Start()
	slog.Info("sticker sync scheduled", "set", set, "spec", spec)
	return func() { <-c.Stop().Done() }, nil
}
