package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's key for a retryable write.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"

	defaultIdemMaxLen = 128
)

var idemKeyRE = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether the key already completed its operation for this
// caller. Replays are answered from the stored result and skip rate limiting.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; it should match the storage column.
	// Defaults to 128.
	MaxLen int
	// Scope names the operation a request performs, e.g. "requests.create".
	// Requests mapped to "" are not looked up.
	Scope func(c *gin.Context) string
}

// IdempotencyLookup reports whether an unexpired record exists for
// (userID, scope, key) at now.
type IdempotencyLookup func(ctx context.Context, userID int, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator checks the Idempotency-Key header and, for scoped
// requests by an authenticated user, marks known keys as replays. Requests
// without the header pass through. A malformed key is rejected with 400. A
// failed lookup is logged and the request proceeds as a first attempt; the
// unique index on stored keys still prevents a duplicate write.
//
// Mount it after RequireAuth and before the rate limiter.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	invalidMsg := HeaderIdempotencyKey + " must be 1-" + strconv.Itoa(maxLen) + " characters of A-Z a-z 0-9 . _ ~ : -"

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !idemKeyRE.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    invalidMsg,
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup == nil || opts.Scope == nil {
			c.Next()
			return
		}
		uid, scope := userIDFromCtx(c), opts.Scope(c)
		if uid == 0 || scope == "" {
			c.Next()
			return
		}
		exists, err := lookup(c.Request.Context(), uid, scope, key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup")
		}
		if exists {
			c.Set(ctxKeyIdemReplay, true)
		}
		c.Next()
	}
}

// userIDFromCtx extracts the authenticated user id set by RequireAuth, or 0.
func userIDFromCtx(c *gin.Context) int {
	if id, ok := c.Get(ctxKeyUserID); ok {
		if v, ok := id.(int); ok {
			return v
		}
	}
	return 0
}
