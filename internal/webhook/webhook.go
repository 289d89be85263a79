// Package webhook receives translation results pushed back by the server
// and applies them through the same bulk update path as pull.
package webhook

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/survos/lingua/internal/store"
	"github.com/survos/lingua/internal/wire"
)

// Route is the webhook path.
const Route = "/_lingua/webhook"

// maxBody caps accepted payloads.
const maxBody = 8 << 20

// BulkUpdater applies resolved texts.
type BulkUpdater interface {
	ApplyTranslations(ctx context.Context, u store.Update, translations map[string]string) (int64, error)
}

// Receiver handles webhook calls.
type Receiver struct {
	updater BulkUpdater
	key     string
	logger  *slog.Logger
}

// New creates a Receiver. An empty key disables authentication.
func New(updater BulkUpdater, key string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{updater: updater, key: key, logger: logger}
}

// Register mounts the webhook on r.
func (rc *Receiver) Register(r gin.IRoutes) {
	r.POST(Route, rc.handle)
}

// Handler returns a gin engine serving only the webhook.
func (rc *Receiver) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	rc.Register(r)
	return r
}

func (rc *Receiver) authorized(c *gin.Context) bool {
	if rc.key == "" {
		return true
	}
	got := c.GetHeader("X-Api-Key")
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(rc.key)) == 1
}

func (rc *Receiver) handle(c *gin.Context) {
	if !rc.authorized(c) {
		c.JSON(http.StatusForbidden, gin.H{"status": "forbidden"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "unreadable body"})
		return
	}
	items, err := wire.DecodeCallback(body)
	if err != nil {
		rc.logger.Warn("webhook payload rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	byLocale := make(map[string]map[string]string)
	for _, it := range items {
		if it.Key == "" || it.Target == "" || it.Text == "" {
			continue
		}
		if byLocale[it.Target] == nil {
			byLocale[it.Target] = make(map[string]string)
		}
		byLocale[it.Target][it.Key] = it.Text
	}

	locales := make([]string, 0, len(byLocale))
	for loc := range byLocale {
		locales = append(locales, loc)
	}
	sort.Strings(locales)

	var updated int64
	for _, loc := range locales {
		n, err := rc.updater.ApplyTranslations(c.Request.Context(), store.Update{Locale: loc}, byLocale[loc])
		if err != nil {
			rc.logger.Error("webhook update failed", "locale", loc, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "update failed"})
			return
		}
		updated += n
	}

	rc.logger.Info("lingua webhook received", "items", len(items), "updated", updated)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "received": len(items), "updated": updated})
}
