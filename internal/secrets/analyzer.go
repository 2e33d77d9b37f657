// Package secrets runs the active regex pattern sets over script bodies.
package secrets

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
)

// compiled is a cache entry; re is nil when the pattern does not compile.
type compiled struct {
	re  *regexp.Regexp
	err error
}

// Analyzer matches pattern sets against content. It is safe for concurrent use.
type Analyzer struct {
	cache  sync.Map // flag prefix + pattern -> *compiled
	logger zerolog.Logger
}

// NewAnalyzer creates a regex analyzer
func NewAnalyzer(logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		logger: logger.With().Str("component", "RegexAnalyzer").Logger(),
	}
}

// Scan returns every match of every pattern in sets, sets in name order and
// patterns in file order. Invalid patterns are skipped. A panic while
// matching stops the scan and returns what was found so far.
func (a *Analyzer) Scan(body []byte, sourceURL string, sets map[string]models.PatternSet) (findings []models.Finding) {
	findings = []models.Finding{}
	if len(sets) == 0 {
		return findings
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Str("url", sourceURL).Msg("Regex scan aborted")
		}
	}()

	content := string(body)
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		set := sets[name]
		prefix := flagPrefix(set.Flags)
		for _, pattern := range set.Patterns {
			if pattern == "" {
				continue
			}
			re := a.compile(prefix, pattern, name)
			if re == nil {
				continue
			}
			for _, match := range re.FindAllString(content, -1) {
				findings = append(findings, models.Finding{
					SourceSet:   name,
					Pattern:     pattern,
					MatchedText: models.TruncateMatch(match),
					SourceURL:   sourceURL,
				})
			}
		}
	}

	if len(findings) > 0 {
		a.logger.Debug().Int("count", len(findings)).Str("url", sourceURL).Msg("Regex findings")
	}
	return findings
}

func (a *Analyzer) compile(prefix, pattern, setName string) *regexp.Regexp {
	key := prefix + "\x00" + pattern
	if v, ok := a.cache.Load(key); ok {
		return v.(*compiled).re
	}

	re, err := regexp.Compile(prefix + pattern)
	entry, loaded := a.cache.LoadOrStore(key, &compiled{re: re, err: err})
	if err != nil && !loaded {
		a.logger.Warn().Err(err).Str("set", setName).Str("pattern", pattern).Msg("Skipping pattern that does not compile")
	}
	return entry.(*compiled).re
}

// flagPrefix maps JS-style flags onto a Go inline flag group. 'g' is
// implicit and unknown letters are ignored.
func flagPrefix(flags string) string {
	var b strings.Builder
	for _, f := range "ims" {
		if strings.ContainsRune(flags, f) {
			b.WriteRune(f)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}
