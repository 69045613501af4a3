package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/insight-compliance-api/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

type responseMeta struct {
	start  time.Time
	fields map[string]interface{}
}

// WithResponseMeta starts the processing clock reported in the envelope meta block.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now(), fields: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from Redis.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// SetMeta attaches a handler supplied value to the meta block.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if m := metaFor(c); m != nil {
		m.fields[key] = value
	}
}

// ResponseMeta snapshots the meta block with the elapsed processing time and
// the request id. Without WithResponseMeta the clock starts on first use.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	m := metaFor(c)
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m.fields)+2)
	for k, v := range m.fields {
		out[k] = v
	}
	out["processing_time_ms"] = time.Since(m.start).Milliseconds()
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	return out
}

func metaFor(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if m, ok := v.(*responseMeta); ok {
			return m
		}
	}
	m := &responseMeta{start: time.Now(), fields: map[string]interface{}{}}
	c.Set(responseMetaKey, m)
	return m
}
