// Package redact strips contact channels and payment handles from text
// before it reaches audit logs. Model summaries and error strings quote the
// analyzed post, and events must not republish a scammer's phone number,
// wallet, or off-platform handle.
package redact

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	emailRe  = regexp.MustCompile(`(?i)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe  = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	urlRe    = regexp.MustCompile(`https?://[^\s"'<>]+`)
	btcRe    = regexp.MustCompile(`\b(?:bc1[a-z0-9]{20,}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`)
	ethRe    = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	handleRe = regexp.MustCompile(`(?i)(telegram|whatsapp|signal|cash\s*app|venmo|zelle|wechat)\s*[:@]\s*\S+`)
	bearerRe = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._\-+/=]+`)
	apiKeyRe = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)[A-Za-z0-9._\-+/=]+`)
)

// String redacts contact channels, wallets, and credentials from free-form
// text. Anything that survives is safe to write to an event sink.
func String(s string) string {
	if s == "" {
		return s
	}

	out := s
	out = bearerRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = urlRe.ReplaceAllStringFunc(out, redactURL)
	out = emailRe.ReplaceAllString(out, "[EMAIL]")
	out = handleRe.ReplaceAllString(out, "${1}:[HANDLE]")
	out = btcRe.ReplaceAllString(out, "[WALLET]")
	out = ethRe.ReplaceAllString(out, "[WALLET]")
	out = phoneRe.ReplaceAllString(out, "[PHONE]")
	return out
}

// Sprintf formats like fmt.Sprintf and redacts the result.
func Sprintf(format string, args ...any) string {
	return String(fmt.Sprintf(format, args...))
}

// redactURL keeps the scheme and host so an event still shows where a lure
// pointed, and drops the path, which is where tracking tokens live.
func redactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[URL]"
	}

	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "." || base == "/" || base == "" {
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	return fmt.Sprintf("%s://%s/[PATH]", u.Scheme, u.Host)
}
