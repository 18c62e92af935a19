package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "admissions_response_meta"

// ResponseMeta collects what a handler reports next to its payload: whether
// the pipeline summary came from cache and any operator warnings.
type ResponseMeta struct {
	started  time.Time
	cacheHit *bool
	warnings []string
}

// WithResponseMeta starts a ResponseMeta for every request.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &ResponseMeta{started: time.Now()})
		c.Next()
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaFor(c).cacheHit = &hit
}

// AddWarnings appends non-fatal warnings such as exhausted interview capacity.
func AddWarnings(c *gin.Context, warnings ...string) {
	meta := metaFor(c)
	meta.warnings = append(meta.warnings, warnings...)
}

// ExtractMeta renders the collected metadata for the response envelope. It
// returns nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := value.(*ResponseMeta)
	if !ok {
		return nil
	}
	out := map[string]interface{}{}
	if meta.cacheHit != nil {
		out["cache_hit"] = *meta.cacheHit
	}
	if len(meta.warnings) > 0 {
		out["warnings"] = meta.warnings
	}
	if len(out) == 0 {
		return nil
	}
	if !meta.started.IsZero() {
		out["processing_time_ms"] = time.Since(meta.started).Milliseconds()
	}
	return out
}

func metaFor(c *gin.Context) *ResponseMeta {
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(*ResponseMeta); ok {
			return meta
		}
	}
	meta := &ResponseMeta{}
	c.Set(responseMetaKey, meta)
	return meta
}
