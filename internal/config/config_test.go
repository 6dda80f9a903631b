package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every key Load reads so the host environment cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ADDR", "DB_PATH", "TG_BOT_TOKEN", "TG_WEBHOOK_SECRET", "TG_POLLING",
		"PUBLIC_URL", "STICKER_DIR", "STICKER_PACK", "STICKER_SYNC_CRON",
		"TWEET_API_BASE", "UPLOAD_URL", "CROSS_ORIGIN_POLICY", "CROSS_ORIGIN_ALLOW",
		"OVERLAY_DEFAULT_SIZE", "OVERLAY_CLAMP", "INIT_DATA_MAX_AGE", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.OverlayDefaultSize != 100 || cfg.CrossOriginPolicy != "strict" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.BotEnabled() {
		t.Error("bot enabled without token")
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.Level())
	}
}

func TestLoadYAMLWithExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("XRAID_TEST_PACK", "raidpack")
	path := filepath.Join(t.TempDir(), "xraid.yaml")
	body := `
addr: ":9090"
sticker_pack: ${XRAID_TEST_PACK}
upload_url: ${XRAID_TEST_UNSET:-https://uploads.example}
cross_origin_policy: lenient
cross_origin_allow: [pbs.twimg.com]
init_data_max_age: 1h
log_level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.StickerPack != "raidpack" || cfg.UploadURL != "https://uploads.example" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.CrossOriginAllow) != 1 || cfg.CrossOriginAllow[0] != "pbs.twimg.com" {
		t.Errorf("allow = %v", cfg.CrossOriginAllow)
	}
	if cfg.InitDataMaxAge != time.Hour || cfg.Level() != slog.LevelDebug {
		t.Errorf("max age = %v level = %v", cfg.InitDataMaxAge, cfg.Level())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "xraid.yaml")
	_ = os.WriteFile(path, []byte("addr: \":9090\"\n"), 0o644)
	t.Setenv("ADDR", ":7070")
	t.Setenv("CROSS_ORIGIN_ALLOW", "a.example, b.example,,")
	t.Setenv("TG_POLLING", "1")
	t.Setenv("TG_BOT_TOKEN", "1:x")
	t.Setenv("PUBLIC_URL", "https://raid.example/")
	t.Setenv("OVERLAY_CLAMP", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" || !cfg.Polling || cfg.PublicURL != "https://raid.example" || !cfg.OverlayClamp {
		t.Errorf("cfg = %+v", cfg)
	}
	if strings.Join(cfg.CrossOriginAllow, "|") != "a.example|b.example" {
		t.Errorf("allow = %v", cfg.CrossOriginAllow)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	unresolved := filepath.Join(dir, "u.yaml")
	_ = os.WriteFile(unresolved, []byte("bot_token: ${XRAID_TEST_NOPE}\n"), 0o644)
	if _, err := Load(unresolved); err == nil || !strings.Contains(err.Error(), "XRAID_TEST_NOPE") {
		t.Errorf("unresolved: %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}

	t.Setenv("CROSS_ORIGIN_POLICY", "yolo")
	if _, err := Load(""); err == nil {
		t.Error("bad policy accepted")
	}
	t.Setenv("CROSS_ORIGIN_POLICY", "")

	t.Setenv("OVERLAY_DEFAULT_SIZE", "abc")
	if _, err := Load(""); err == nil {
		t.Error("bad size accepted")
	}
	t.Setenv("OVERLAY_DEFAULT_SIZE", "")

	t.Setenv("TG_BOT_TOKEN", "1:x")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "TG_WEBHOOK_SECRET") {
		t.Errorf("webhook without secret: %v", err)
	}
}
