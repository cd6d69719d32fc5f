package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// Keys are scoped by the value scope returns for the request. Requests
// without the header pass through. Server errors release the key so the
// client can retry.
func Middleware(store Store, ttl time.Duration, scope func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		header := c.GetHeader(HeaderKey)
		if header == "" {
			c.Next()
			return
		}
		key := scope(c) + ":" + c.FullPath() + ":" + header
		ctx := c.Request.Context()

		reserved, err := store.Reserve(ctx, key, ttl)
		if err != nil {
			logger.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			rec, ok, err := store.Get(ctx, key)
			switch {
			case err != nil:
				logger.Warn("idempotency lookup failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			case !ok || rec.Pending():
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			default:
				c.Header(HeaderReplayed, "true")
				c.Data(rec.Status, rec.ContentType, rec.Body)
				c.Abort()
			}
			return
		}

		// Runs while a panic unwinds too, so a crashed handler never leaves
		// the key pending.
		stored := false
		defer func() {
			if stored {
				return
			}
			if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn("idempotency release failed", zap.Error(err))
			}
		}()

		rw := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		status := rw.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		rec := Record{Status: status, ContentType: rw.Header().Get("Content-Type"), Body: rw.buf.Bytes()}
		if err := store.Save(ctx, key, rec, ttl); err != nil {
			logger.Warn("idempotency save failed", zap.Error(err))
			return
		}
		stored = true
	}
}
