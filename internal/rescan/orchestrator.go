package rescan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/datastore"
	"github.com/holmes-py/JS-DeepLens/internal/ingest"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/notifier"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Start while a job is in flight.
var ErrAlreadyRunning = errors.New("rescan already in progress")

// RecordStore is the subset of the record store a rescan touches.
type RecordStore interface {
	ListForRescan(ctx context.Context) ([]datastore.RescanItem, error)
	UpdateFindings(ctx context.Context, id int64, findings []models.Finding, hasSourceMap bool, scannedAt time.Time) error
}

// BlobReader reads stored script bodies.
type BlobReader interface {
	Get(hash string) ([]byte, error)
}

// Options tunes progress reporting and pacing.
type Options struct {
	ProgressEvery int
	YieldDelay    time.Duration
}

// Orchestrator re-runs the active pattern sets over every stored body, one job at a time.
type Orchestrator struct {
	records   RecordStore
	blobs     BlobReader
	patterns  ingest.PatternSource
	scanner   ingest.Scanner
	publisher notifier.Publisher
	opts      Options
	logger    zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.Mutex
	last *models.RescanSummary
}

func NewOrchestrator(records RecordStore, blobs BlobReader, src ingest.PatternSource, scanner ingest.Scanner, pub notifier.Publisher, opts Options, logger zerolog.Logger) *Orchestrator {
	if pub == nil {
		pub = notifier.NopPublisher{}
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	return &Orchestrator{
		records:   records,
		blobs:     blobs,
		patterns:  src,
		scanner:   scanner,
		publisher: pub,
		opts:      opts,
		logger:    logger.With().Str("component", "RescanOrchestrator").Logger(),
	}
}

// Start launches a job bound to ctx and returns its id. The active pattern
// selection is captured before Start returns.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	sets := o.patterns.Snapshot().Sets
	jobID := uuid.NewString()

	o.wg.Add(1)
	go o.run(ctx, jobID, sets)
	return jobID, nil
}

// Running reports whether a job is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Wait blocks until the current job, if any, has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// LastSummary returns the summary of the most recent finished job.
func (o *Orchestrator) LastSummary() (models.RescanSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return models.RescanSummary{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) run(ctx context.Context, jobID string, sets map[string]models.PatternSet) {
	defer o.wg.Done()
	defer o.running.Store(false)

	log := o.logger.With().Str("job_id", jobID).Logger()
	start := time.Now()
	summary := models.RescanSummary{JobID: jobID}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Rescan aborted")
			summary.Status = models.RescanStatusError
			summary.Message = fmt.Sprintf("Re-scan aborted: %v", r)
		}
		summary.Elapsed = time.Since(start)
		o.mu.Lock()
		last := summary
		o.last = &last
		o.mu.Unlock()
		o.publisher.Publish(notifier.EventRescanComplete, summary)
		log.Info().Str("status", string(summary.Status)).Int("processed", summary.Processed).
			Int("errors", summary.Errors).Dur("elapsed", summary.Elapsed).Msg("Rescan finished")
	}()

	items, err := o.records.ListForRescan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list records for rescan")
		summary.Status = models.RescanStatusError
		summary.Message = "Failed to list stored content."
		return
	}
	summary.Total = len(items)
	if len(items) == 0 {
		summary.Status = models.RescanStatusSuccess
		summary.Message = "No content found."
		return
	}
	log.Info().Int("total", len(items)).Int("sets", len(sets)).Msg("Rescan started")

	var failures common.ErrorCollector

	for i, item := range items {
		if res := common.CheckCancellation(ctx); res.Cancelled {
			summary.Status = models.RescanStatusError
			summary.Message = "cancelled"
			return
		}

		if err := o.rescanOne(ctx, item, sets); err != nil {
			failures.AddWithContext(err, fmt.Sprintf("record %d", item.ID))
			summary.Errors = failures.Count()
			log.Warn().Err(err).Int64("id", item.ID).Str("url", item.URL).Msg("Failed to rescan record")
		}
		summary.Processed++

		last := i == len(items)-1
		if summary.Processed%o.opts.ProgressEvery == 0 || last {
			o.publisher.Publish(notifier.EventRescanProgress, models.RescanProgress{
				JobID: jobID, Processed: summary.Processed, Total: summary.Total,
			})
		}
		if !last && o.opts.YieldDelay > 0 {
			if err := common.WaitWithCancellation(ctx, o.opts.YieldDelay); err != nil {
				summary.Status = models.RescanStatusError
				summary.Message = "cancelled"
				return
			}
		}
	}

	if failures.HasErrors() {
		log.Debug().AnErr("failures", failures.Error()).Msg("Rescan record failures")
		summary.Status = models.RescanStatusCompletedWithErrors
		summary.Message = fmt.Sprintf("Re-scan finished with %d error(s).", summary.Errors)
	} else {
		summary.Status = models.RescanStatusSuccess
		summary.Message = "Re-scan finished."
	}
}

func (o *Orchestrator) rescanOne(ctx context.Context, item datastore.RescanItem, sets map[string]models.PatternSet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while rescanning: %v", r)
		}
	}()

	body, err := o.blobs.Get(item.ContentHash)
	if err != nil {
		return common.WrapError(err, "read stored body")
	}
	findings := o.scanner.Scan(body, item.URL, sets)
	return o.records.UpdateFindings(ctx, item.ID, findings, ingest.HasSourceMap(body), time.Now().UTC())
}
