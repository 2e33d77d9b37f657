package models

import "time"

// MaxMatchLength caps every MatchedText stored or reported
const MaxMatchLength = 300

// TruncateMatch shortens s to MaxMatchLength characters, ending in "..." when cut.
func TruncateMatch(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxMatchLength {
		return s
	}
	return string(runes[:MaxMatchLength-3]) + "..."
}

// Finding is one regex match produced by a pattern set
type Finding struct {
	SourceSet   string `json:"source_set"`
	Pattern     string `json:"pattern"`
	MatchedText string `json:"matched_text"`
	SourceURL   string `json:"source_url,omitempty"`
}

// ScriptRecord is one unique script body, keyed by its content hash
type ScriptRecord struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	ContentHash   string    `json:"content_hash"`
	Findings      []Finding `json:"findings"`
	HasSourceMap  bool      `json:"has_sourcemap"`
	CreatedAt     time.Time `json:"created_at"`
	LastScannedAt time.Time `json:"last_scanned_at"`
}

// PatternSet is a named group of regular expressions sharing flags
type PatternSet struct {
	Name     string   `json:"name"`
	Flags    string   `json:"flags,omitempty"`
	Patterns []string `json:"patterns"`
}

// ScopeConfig holds the raw include and exclude regex lists
type ScopeConfig struct {
	IncludePatterns []string `json:"includeList" validate:"dive,regexp"`
	ExcludePatterns []string `json:"excludeList" validate:"dive,regexp"`
}

// ExtractedEndpoint is a URL or path pulled out of script source by jsluice
type ExtractedEndpoint struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
	Type   string `json:"type,omitempty"`
}
