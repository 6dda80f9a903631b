// Command server runs the X Raid Mini App: the web editor, its export
// endpoints and the companion Telegram bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lojf/xraid/internal/bot"
	"github.com/lojf/xraid/internal/config"
	"github.com/lojf/xraid/internal/db"
	"github.com/lojf/xraid/internal/handlers"
	"github.com/lojf/xraid/internal/live"
	"github.com/lojf/xraid/internal/metrics"
	"github.com/lojf/xraid/internal/overlay"
	"github.com/lojf/xraid/internal/post"
	"github.com/lojf/xraid/internal/share"
	"github.com/lojf/xraid/internal/stickers"
	"github.com/lojf/xraid/internal/web"
)

const stickerPrefix = "/stickers/"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xraid",
		Short:         "X post sticker raids for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	root.AddCommand(serveCmd(), stickersCmd(), configCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := db.Init(cfg.DBPath); err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	m := metrics.New()

	cat := stickers.NewCatalog(cfg.StickerDir, stickerPrefix, logger)
	if err := cat.Reload(); err != nil {
		logger.Warn("sticker catalog", "dir", cfg.StickerDir, "err", err)
	}
	go func() {
		if err := cat.Watch(ctx); err != nil {
			logger.Error("sticker watcher stopped", "err", err)
		}
	}()

	loader := overlay.NewHTTPLoader(cat.FS(), stickerPrefix)
	loader.Allow = cfg.CrossOriginAllow
	loader.Origin = origin(cfg.PublicURL)
	exporter := &overlay.Exporter{
		Loader: loader,
		Policy: overlay.ParsePolicy(cfg.CrossOriginPolicy),
		Logger: logger,
	}
	posts := post.NewClient(cfg.TweetAPIBase)

	deps := web.Deps{
		Stickers:      cat,
		Posts:         posts,
		Exporter:      exporter,
		Uploader:      share.NewUploader(cfg.UploadURL),
		Auth:          handlers.TelegramAuth{BotToken: cfg.BotToken, MaxAge: cfg.InitDataMaxAge},
		DB:            db.Conn(),
		Metrics:       m,
		Live:          newLiveServer(cfg, cat, posts, m, logger),
		WebhookSecret: cfg.WebhookSecret,
	}

	if cfg.BotEnabled() {
		d, err := startBot(ctx, cfg, cat, m, logger)
		if err != nil {
			return err
		}
		deps.Bot = d
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.Router(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("X Raid listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newLiveServer builds the /live editor channel. CROSS_ORIGIN_ALLOW also
// admits pages embedded from those origins.
func newLiveServer(cfg config.Config, cat live.StickerLookup, posts live.PostFetcher, m *metrics.Metrics, logger *slog.Logger) *live.Server {
	return &live.Server{
		Stickers: cat,
		Posts:    posts,
		Options: overlay.Options{
			DefaultSize:   cfg.OverlayDefaultSize,
			ClampToParent: cfg.OverlayClamp,
		},
		Logger:         logger,
		Sessions:       m.LiveSessions,
		AllowedOrigins: cfg.CrossOriginAllow,
	}
}

// startBot connects the bot, wires share notifications and picks webhook or
// long polling delivery. The sticker sync schedule runs off the same client.
func startBot(ctx context.Context, cfg config.Config, cat *stickers.Catalog, m *metrics.Metrics, logger *slog.Logger) (*bot.Dispatcher, error) {
	c, err := bot.NewClient(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	appURL := ""
	if cfg.PublicURL != "" {
		appURL = cfg.PublicURL + "/x-raid"
	}
	d := bot.NewDispatcher(c, appURL, db.Conn(), logger)
	d.Updates = m.BotUpdates
	d.Subscribe()

	switch {
	case cfg.Polling:
		go func() {
			if err := d.Poll(ctx); err != nil {
				logger.Error("telegram polling stopped", "err", err)
			}
		}()
	case cfg.PublicURL != "":
		hook := cfg.PublicURL + "/tg/webhook?secret=" + url.QueryEscape(cfg.WebhookSecret)
		if err := c.SetWebhook(hook); err != nil {
			return nil, fmt.Errorf("set webhook: %w", err)
		}
		logger.Info("telegram webhook registered", "bot", c.Username())
	default:
		logger.Warn("bot has neither polling nor PUBLIC_URL; updates will not arrive")
	}

	if cfg.StickerSyncCron != "" && cfg.StickerPack != "" {
		s := &stickers.Syncer{API: c.API(), Dir: cat.Dir(), DB: db.Conn(), Logger: logger}
		stopSync, err := stickers.Schedule(ctx, cfg.StickerSyncCron, cfg.StickerPack, s, func(_ stickers.Result, err error) {
			m.StickerSyncs.WithLabelValues(metrics.Outcome(err)).Inc()
		})
		if err != nil {
			return nil, err
		}
		go func() {
			<-ctx.Done()
			stopSync()
		}()
	}
	return d, nil
}

// origin reduces a public URL to scheme://host.
func origin(public string) string {
	u, err := url.Parse(public)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func stickersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stickers",
		Short: "Sticker catalog maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync [set]",
		Short: "Download a Telegram sticker set into the sticker directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			set := cfg.StickerPack
			if len(args) == 1 {
				set = args[0]
			}
			if !cfg.BotEnabled() {
				return errors.New("sticker sync needs TG_BOT_TOKEN")
			}
			c, err := bot.NewClient(cfg.BotToken)
			if err != nil {
				return err
			}
			if err := db.Init(cfg.DBPath); err != nil {
				return fmt.Errorf("db init: %w", err)
			}
			s := &stickers.Syncer{API: c.API(), Dir: cfg.StickerDir, DB: db.Conn(), Logger: cfg.Logger()}
			res, err := s.Sync(cmd.Context(), set)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d downloaded, %d already present, %d skipped\n", set, res.Downloaded, res.Existing, res.Skipped)
			return nil
		},
	})
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the resolved values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Printf("Configuration OK\n  addr: %s\n  db: %s\n  stickers: %s\n  cross-origin: %s\n  bot: %v\n",
				cfg.Addr, cfg.DBPath, cfg.StickerDir, cfg.CrossOriginPolicy, cfg.BotEnabled())
			return nil
		},
	})
	return cmd
}
