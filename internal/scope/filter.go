// Package scope decides whether a script URL belongs to the current project scope.
package scope

import (
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
)

// snapshot is an immutable compiled view of one ScopeConfig
type snapshot struct {
	config  models.ScopeConfig
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// Filter holds the active scope. Readers never block writers.
type Filter struct {
	current  atomic.Pointer[snapshot]
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewFilter returns a filter with an empty scope (everything in scope).
func NewFilter(logger zerolog.Logger) *Filter {
	f := &Filter{
		validate: newValidator(),
		logger:   logger.With().Str("component", "ScopeFilter").Logger(),
	}
	f.current.Store(&snapshot{})
	return f
}

// NewFilterLenient builds a filter from persisted lists, skipping patterns
// that no longer compile instead of failing startup.
func NewFilterLenient(cfg models.ScopeConfig, logger zerolog.Logger) *Filter {
	f := NewFilter(logger)
	snap := &snapshot{
		config: models.ScopeConfig{
			IncludePatterns: keepValid(cfg.IncludePatterns, "include", f.logger),
			ExcludePatterns: keepValid(cfg.ExcludePatterns, "exclude", f.logger),
		},
	}
	snap.include = compileAll(snap.config.IncludePatterns)
	snap.exclude = compileAll(snap.config.ExcludePatterns)
	f.current.Store(snap)
	return f
}

// Validate checks that every pattern of cfg compiles.
func (f *Filter) Validate(cfg models.ScopeConfig) error {
	err := f.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		pattern, _ := e.Value().(string)
		_, compileErr := regexp.Compile(pattern)
		msg := "invalid regular expression"
		if compileErr != nil {
			msg = fmt.Sprintf("invalid regular expression: %v", compileErr)
		}
		return common.NewValidationError(e.Field(), pattern, msg)
	}
	return common.WrapError(err, "scope validation")
}

// Update validates cfg and, only if every pattern is valid, swaps it in.
func (f *Filter) Update(cfg models.ScopeConfig) error {
	if err := f.Validate(cfg); err != nil {
		return err
	}
	snap := &snapshot{
		config: models.ScopeConfig{
			IncludePatterns: copyStrings(cfg.IncludePatterns),
			ExcludePatterns: copyStrings(cfg.ExcludePatterns),
		},
	}
	snap.include = compileAll(snap.config.IncludePatterns)
	snap.exclude = compileAll(snap.config.ExcludePatterns)
	f.current.Store(snap)

	f.logger.Info().
		Int("include", len(snap.include)).
		Int("exclude", len(snap.exclude)).
		Msg("Scope updated")
	return nil
}

// Config returns a copy of the active lists.
func (f *Filter) Config() models.ScopeConfig {
	snap := f.current.Load()
	return models.ScopeConfig{
		IncludePatterns: copyStrings(snap.config.IncludePatterns),
		ExcludePatterns: copyStrings(snap.config.ExcludePatterns),
	}
}

// IsInScope: (no include patterns OR one matches) AND no exclude pattern matches.
func (f *Filter) IsInScope(url string) bool {
	if url == "" {
		return false
	}
	snap := f.current.Load()

	if len(snap.include) > 0 && !anyMatch(snap.include, url) {
		return false
	}
	return !anyMatch(snap.exclude, url)
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// compileAll compiles non-empty patterns; callers have already validated them.
func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		}
	}
	return out
}

func keepValid(patterns []string, list string, logger zerolog.Logger) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			logger.Warn().Str("list", list).Str("pattern", p).Err(err).Msg("Skipping invalid persisted scope pattern")
			continue
		}
		out = append(out, p)
	}
	return out
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	return v
}
