package events

import "github.com/lojf/xraid/internal/models"

// OnShared is called after a share link has been recorded for a Telegram
// user. The export handler calls it if it's set.
var OnShared func(s models.ShareLink)
