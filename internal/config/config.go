// Package config resolves server settings from defaults, an optional YAML
// file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the server reads.
type Config struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`

	BotToken      string `yaml:"bot_token"`
	WebhookSecret string `yaml:"webhook_secret"`
	Polling       bool   `yaml:"polling"`
	PublicURL     string `yaml:"public_url"`

	StickerDir      string `yaml:"sticker_dir"`
	StickerPack     string `yaml:"sticker_pack"`
	StickerSyncCron string `yaml:"sticker_sync_cron"`

	TweetAPIBase string `yaml:"tweet_api_base"`
	UploadURL    string `yaml:"upload_url"`

	CrossOriginPolicy  string        `yaml:"cross_origin_policy"`
	CrossOriginAllow   []string      `yaml:"cross_origin_allow"`
	OverlayDefaultSize float64       `yaml:"overlay_default_size"`
	OverlayClamp       bool          `yaml:"overlay_clamp"`
	InitDataMaxAge     time.Duration `yaml:"init_data_max_age"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		Addr:               ":8080",
		DBPath:             "xraid.db",
		StickerDir:         "stickers",
		TweetAPIBase:       "https://react-tweet.vercel.app",
		UploadURL:          "https://file.io",
		CrossOriginPolicy:  "strict",
		OverlayDefaultSize: 100,
		InitDataMaxAge:     24 * time.Hour,
		LogLevel:           "info",
	}
}

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment apply.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		expanded, err := expandEnv(raw)
		if err != nil {
			return cfg, fmt.Errorf("config: expanding variables in %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Addr = getEnv("ADDR", c.Addr)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.BotToken = getEnv("TG_BOT_TOKEN", c.BotToken)
	c.WebhookSecret = getEnv("TG_WEBHOOK_SECRET", c.WebhookSecret)
	c.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", c.PublicURL), "/")
	c.StickerDir = getEnv("STICKER_DIR", c.StickerDir)
	c.StickerPack = getEnv("STICKER_PACK", c.StickerPack)
	c.StickerSyncCron = getEnv("STICKER_SYNC_CRON", c.StickerSyncCron)
	c.TweetAPIBase = getEnv("TWEET_API_BASE", c.TweetAPIBase)
	c.UploadURL = getEnv("UPLOAD_URL", c.UploadURL)
	c.CrossOriginPolicy = getEnv("CROSS_ORIGIN_POLICY", c.CrossOriginPolicy)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("TG_POLLING"); v != "" {
		c.Polling = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("OVERLAY_CLAMP"); v != "" {
		c.OverlayClamp = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CROSS_ORIGIN_ALLOW"); v != "" {
		c.CrossOriginAllow = splitList(v)
	}
	if v := os.Getenv("OVERLAY_DEFAULT_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: OVERLAY_DEFAULT_SIZE: %w", err)
		}
		c.OverlayDefaultSize = f
	}
	if v := os.Getenv("INIT_DATA_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: INIT_DATA_MAX_AGE: %w", err)
		}
		c.InitDataMaxAge = d
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	switch strings.ToLower(c.CrossOriginPolicy) {
	case "strict", "lenient":
	default:
		errs = append(errs, fmt.Errorf("cross_origin_policy %q: want strict or lenient", c.CrossOriginPolicy))
	}
	if c.OverlayDefaultSize <= 0 {
		errs = append(errs, fmt.Errorf("overlay_default_size %v: must be positive", c.OverlayDefaultSize))
	}
	if c.BotToken != "" && !c.Polling && c.WebhookSecret == "" {
		errs = append(errs, errors.New("webhook mode needs TG_WEBHOOK_SECRET"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level maps LogLevel onto a slog level; unknown values mean info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Logger builds the process logger.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.Level()}))
}

// BotEnabled reports whether a Telegram token is configured.
func (c Config) BotEnabled() bool { return c.BotToken != "" }

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Unresolved variables without a default are reported together.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error
	out := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		if len(subs) > 2 && subs[2] != nil {
			return subs[2]
		}
		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})
	return out, errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
