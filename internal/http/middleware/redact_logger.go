package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const redacted = "[REDACTED]"

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are masked in addition to Authorization, Cookie and
	// Set-Cookie. Matching is case-insensitive.
	MaskHeaders []string
	// MaskParams are query parameters whose values are always masked, in
	// addition to DefaultMaskParams.
	MaskParams []string
}

// DefaultMaskParams are the query parameters that carry a user's identity
// (the long-poll inbox address and the "my orders" lookups).
var DefaultMaskParams = []string{"user_email", "email", "token"}

var (
	// UUIDs go first so the phone pattern cannot eat their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrub replaces ids, email addresses and phone numbers in s.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger is the production access log. It never logs bodies, masks
// credentials and identity parameters outright, and scrubs anything that
// looks like an email, phone number or UUID from the remaining query values
// and headers.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet([]string{"Authorization", "Cookie", "Set-Cookie"}, opts.MaskHeaders)
	maskParams := lowerSet(DefaultMaskParams, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()
		path := routeOf(c)

		// The scoped logger only carries the correlation id and route.
		l := requestLogger(c, path)
		attachLogger(c, l)

		c.Next()

		ev := accessEvent(l, c, path)
		if ev == nil {
			return
		}
		ev.Str("query", redactQuery(c.Request.URL.RawQuery, maskParams)).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", redactHeaders(c.Request.Header, maskHeaders)).
			Msg("http_request")
	}
}

// redactQuery masks whole values of sensitive parameters and scrubs the
// rest. Keys are sorted for stable output. An unparsable query is scrubbed
// as a single string.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(truncate(raw, maxQueryLogLength))
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		_, masked := mask[strings.ToLower(k)]
		for _, v := range vals[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			if masked {
				b.WriteString(redacted)
			} else {
				b.WriteString(scrub(v))
			}
		}
	}
	return truncate(b.String(), maxQueryLogLength)
}

func redactHeaders(h map[string][]string, mask map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := mask[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}

func lowerSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, s := range list {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				set[s] = struct{}{}
			}
		}
	}
	return set
}
