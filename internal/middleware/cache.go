package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey      = "response_meta"
	responseMetaStartKey = "response_meta_start"
	cacheHitKey          = "cache_hit"
)

// WithResponseMeta initialises response metadata storage on the request
// context so handlers can report processing time and cache hits.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records cache hit information for the current response.
func SetCacheHit(c *gin.Context, hit bool) {
	meta := ensureMeta(c)
	meta[cacheHitKey] = hit
}

// ExtractMeta returns the metadata map stored on the context, stamping the
// elapsed processing time. Handlers call it at serialisation time, which is
// the last point the duration can still make it into the response body.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	typed, ok := meta.(map[string]interface{})
	if !ok {
		return nil
	}
	if start, exists := c.Get(responseMetaStartKey); exists {
		if ts, ok := start.(time.Time); ok {
			typed["processing_time_ms"] = time.Since(ts).Milliseconds()
		}
	}
	return typed
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
