package jsanalysis

import (
	"net/url"
	"regexp"
	"strings"
)

var sensitiveKeywords = []string{
	"secret", "password", "token", "apikey", "api_key", "auth",
	"private", "key", "credential", "pass", "jwt",
}

// networkCallNames are compared case-insensitively against the callee name.
var networkCallNames = map[string]bool{
	"fetch": true, "get": true, "post": true, "put": true, "delete": true,
	"ajax": true, "open": true, "send": true, "request": true,
}

var (
	versionSegment = regexp.MustCompile(`/v[1-9][0-9]*/`)
	wordRun        = regexp.MustCompile(`\w{8,}`)
)

// isSensitiveName reports whether name contains a credential-ish keyword.
func isSensitiveName(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, k := range sensitiveKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// looksLikePath reports whether s reads like a URL path or API endpoint.
func looksLikePath(s string) bool {
	if len([]rune(s)) < 2 {
		return false
	}
	switch {
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"), strings.HasPrefix(s, "../"):
		return true
	case strings.Contains(s, "/api/"):
		return true
	case versionSegment.MatchString(s):
		return true
	}
	return strings.Contains(s, "/") && !strings.Contains(s, " ") && !strings.HasPrefix(s, "data:")
}

// looksLikeSecret: long single-token strings with a run of word characters,
// or strings whose head names a credential.
func looksLikeSecret(s string) bool {
	if len([]rune(s)) > 12 && !strings.Contains(s, " ") && wordRun.MatchString(s) {
		return true
	}
	return isSensitiveName(prefixRunes(s, 30))
}

// resolveAgainst resolves ref against base; when that is impossible the
// literal is returned unchanged.
func resolveAgainst(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base != nil {
		return base.ResolveReference(r).String()
	}
	if r.IsAbs() {
		return r.String()
	}
	return ref
}

// parseBase returns nil unless raw is an absolute URL.
func parseBase(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil
	}
	return u
}

func prefixRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// shorten keeps the first 50 characters, marking the cut with "...".
func shorten(s string) string {
	if len([]rune(s)) > 50 {
		return prefixRunes(s, 50) + "..."
	}
	return s
}
