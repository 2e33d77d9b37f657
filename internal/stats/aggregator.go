package stats

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/notifier"
	"github.com/rs/zerolog"
)

// RecordCounter is the subset of the record store used for totals.
type RecordCounter interface {
	CountAll(ctx context.Context) (int64, error)
	ListAllURLs(ctx context.Context) ([]string, error)
}

// ScopeMatcher decides whether a URL is in scope.
type ScopeMatcher interface {
	IsInScope(url string) bool
}

// Aggregator keeps the dashboard counters.
type Aggregator struct {
	requests atomic.Int64
	scripts  atomic.Int64

	records   RecordCounter
	scope     ScopeMatcher
	publisher notifier.Publisher
	logger    zerolog.Logger

	mu      sync.Mutex
	total   int64
	inScope int64
}

func NewAggregator(records RecordCounter, scope ScopeMatcher, pub notifier.Publisher, logger zerolog.Logger) *Aggregator {
	if pub == nil {
		pub = notifier.NopPublisher{}
	}
	return &Aggregator{
		records:   records,
		scope:     scope,
		publisher: pub,
		logger:    logger.With().Str("component", "StatsAggregator").Logger(),
	}
}

// RecordRequest counts one observed network request.
func (a *Aggregator) RecordRequest() {
	a.requests.Add(1)
}

// RecordScriptReceived counts one submitted script, new or not.
func (a *Aggregator) RecordScriptReceived() {
	a.scripts.Add(1)
}

// Refresh recomputes store totals against the live scope and publishes them.
// Store failures keep the last known totals.
func (a *Aggregator) Refresh(ctx context.Context) models.Stats {
	a.mu.Lock()
	if total, err := a.records.CountAll(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to count records, keeping last value")
	} else {
		a.total = total
	}
	if urls, err := a.records.ListAllURLs(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to list record URLs, keeping last value")
	} else {
		var n int64
		for _, u := range urls {
			if a.scope.IsInScope(u) {
				n++
			}
		}
		a.inScope = n
	}
	s := models.Stats{
		RequestsSeen:    a.requests.Load(),
		ScriptsReceived: a.scripts.Load(),
		TotalRecords:    a.total,
		InScopeRecords:  a.inScope,
	}
	a.mu.Unlock()

	a.publisher.Publish(notifier.EventStatsUpdate, s)
	return s
}
