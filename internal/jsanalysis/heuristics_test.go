package jsanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePath(t *testing.T) {
	tests := map[string]bool{
		"/":                 false,
		"/a":                true,
		"./x":               true,
		"../x":              true,
		"https://h/api/x":   true,
		"foo/v2/bar":        true,
		"text/html":         true,
		"a / b":             false,
		"data:image/png":    false,
		"plainword":         false,
		"x":                 false,
	}
	for in, want := range tests {
		assert.Equal(t, want, looksLikePath(in), in)
	}
}

func TestIsSensitiveName(t *testing.T) {
	assert.True(t, isSensitiveName("API_KEY"))
	assert.True(t, isSensitiveName("userPassword"))
	assert.True(t, isSensitiveName("jwtHeader"))
	assert.False(t, isSensitiveName("username"))
	assert.False(t, isSensitiveName(""))
}

func TestLooksLikeSecret(t *testing.T) {
	assert.True(t, looksLikeSecret("abcdefgh12345"))
	assert.False(t, looksLikeSecret("abc-def-ghi-jkl"))
	assert.True(t, looksLikeSecret("my token here"))
	assert.False(t, looksLikeSecret("hello there"))
}

func TestDecodeStringLiteral(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"plain"`, "plain"},
		{`'single'`, "single"},
		{`"a\nb"`, "a\nb"},
		{`"\x41B\u{43}"`, "ABC"},
		{`"\uD83D\uDE00"`, "\U0001F600"},
		{`"it\'s"`, "it's"},
		{`"a\` + "\n" + `b"`, "ab"},
		{`"\q"`, "q"},
		{`"\xZZ"`, "xZZ"},
		{`"é\é"`, "éé"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeStringLiteral(tt.raw), tt.raw)
	}
}

func TestResolveAgainst(t *testing.T) {
	base := parseBase("https://shop.test/static/app.js")
	assert.Equal(t, "https://shop.test/api/x", resolveAgainst(base, "/api/x"))
	assert.Equal(t, "https://shop.test/static/rel", resolveAgainst(base, "rel"))
	assert.Equal(t, "https://cdn.test/a", resolveAgainst(base, "//cdn.test/a"))
	assert.Equal(t, "/api/x", resolveAgainst(nil, "/api/x"))
	assert.Equal(t, "https://x.test/y", resolveAgainst(nil, "https://x.test/y"))
	assert.Nil(t, parseBase("relative/path"))
}
