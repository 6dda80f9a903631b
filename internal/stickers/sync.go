package stickers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"github.com/lojf/xraid/internal/db"
	"github.com/lojf/xraid/internal/models"
)

const maxStickerBytes = 5 << 20

// StickerAPI is the part of the Bot API the syncer needs; *tgbotapi.BotAPI
// satisfies it.
type StickerAPI interface {
	GetStickerSet(config tgbotapi.GetStickerSetConfig) (tgbotapi.StickerSet, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Syncer downloads every image of a Telegram sticker set into the catalog
// directory. Files already on disk are kept; animated (.tgs) and video
// stickers are skipped because they cannot be composited.
type Syncer struct {
	API    StickerAPI
	HTTP   *http.Client
	Dir    string
	DB     *gorm.DB // optional; records each synced file
	Logger *slog.Logger
}

// Result summarises one sync run.
type Result struct {
	Downloaded int
	Existing   int
	Skipped    int
}

// Sync fetches set and writes its stickers to s.Dir.
func (s *Syncer) Sync(ctx context.Context, set string) (Result, error) {
	var res Result
	if set == "" {
		return res, fmt.Errorf("stickers: no sticker set name configured")
	}
	ss, err := s.API.GetStickerSet(tgbotapi.GetStickerSetConfig{Name: set})
	if err != nil {
		return res, fmt.Errorf("stickers: getStickerSet %s: %w", set, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return res, fmt.Errorf("stickers: create %s: %w", s.Dir, err)
	}

	for _, st := range ss.Stickers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if st.IsAnimated {
			res.Skipped++
			continue
		}
		fileURL, err := s.API.GetFileDirectURL(st.FileID)
		if err != nil {
			return res, fmt.Errorf("stickers: getFile %s: %w", st.FileID, err)
		}
		name, err := fileName(fileURL)
		if err != nil || !IsSticker(name) {
			res.Skipped++
			continue
		}

		dst := filepath.Join(s.Dir, name)
		if _, err := os.Stat(dst); err == nil {
			res.Existing++
		} else {
			if err := s.download(ctx, fileURL, dst); err != nil {
				return res, err
			}
			res.Downloaded++
		}

		if s.DB != nil {
			rec := models.Sticker{
				FileUniqueID: st.FileUniqueID,
				FileID:       st.FileID,
				SetName:      ss.Name,
				Filename:     name,
				Emoji:        st.Emoji,
				Width:        st.Width,
				Height:       st.Height,
			}
			if err := db.UpsertSticker(s.DB, rec); err != nil {
				return res, fmt.Errorf("stickers: record %s: %w", name, err)
			}
		}
	}

	s.logger().Info("sticker set synced", "set", set, "downloaded", res.Downloaded, "existing", res.Existing, "skipped", res.Skipped)
	return res, nil
}

// fileName takes the base name of the Bot API file path. The URL carries
// the bot token, so it is never logged or returned in errors.
func fileName(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("stickers: empty file name")
	}
	return name, nil
}

func (s *Syncer) download(ctx context.Context, fileURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("stickers: build download request: %w", err)
	}
	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("stickers: download %s failed", filepath.Base(dst))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stickers: download %s: %s", filepath.Base(dst), resp.Status)
	}

	tmp, err := os.CreateTemp(s.Dir, ".sticker-*.tmp")
	if err != nil {
		return fmt.Errorf("stickers: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxStickerBytes)); err != nil {
		tmp.Close()
		return fmt.Errorf("stickers: write %s: %w", filepath.Base(dst), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stickers: close %s: %w", filepath.Base(dst), err)
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
