package jsanalysis

import (
	"github.com/BishopFox/jsluice"
	"github.com/holmes-py/JS-DeepLens/internal/models"
)

// ExtractEndpoints lists the URLs jsluice recognises in body, resolved
// against sourceURL when it is absolute and deduplicated by resolved URL.
func (a *Analyzer) ExtractEndpoints(body []byte, sourceURL string) (endpoints []models.ExtractedEndpoint) {
	endpoints = []models.ExtractedEndpoint{}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Str("url", sourceURL).Msg("Endpoint extraction aborted")
		}
	}()

	results := jsluice.NewAnalyzer(body).GetURLs()
	a.logger.Debug().Str("url", sourceURL).Int("jsluice_url_count", len(results)).Msg("jsluice analysis completed")

	base := parseBase(sourceURL)
	seen := make(map[string]struct{}, len(results))
	for _, res := range results {
		if res.URL == "" {
			continue
		}
		resolved := resolveAgainst(base, res.URL)
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}

		kind := res.Type
		if kind == "" {
			kind = "unknown"
		}
		endpoints = append(endpoints, models.ExtractedEndpoint{
			URL:    resolved,
			Method: res.Method,
			Type:   kind,
		})
	}
	return endpoints
}
