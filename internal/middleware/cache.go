package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// WithResponseMeta gives handlers a per-request map that ends up in the
// response envelope's meta field.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, gin.H{})
		c.Set("request_started", time.Now())
		c.Next()
	}
}

// SetCacheHit marks whether the response body came from the cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta(c)["cache_hit"] = hit
}

// ResponseMeta returns the metadata for the current response with processing
// time filled in, or nil when nothing was recorded.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	h, ok := value.(gin.H)
	if !ok || len(h) == 0 {
		return nil
	}
	if started, ok := c.Get("request_started"); ok {
		h["processing_time_ms"] = time.Since(started.(time.Time)).Milliseconds()
	}
	return h
}

func meta(c *gin.Context) gin.H {
	if value, exists := c.Get(responseMetaKey); exists {
		if h, ok := value.(gin.H); ok {
			return h
		}
	}
	h := gin.H{}
	c.Set(responseMetaKey, h)
	return h
}
