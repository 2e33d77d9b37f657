package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/notifier"
	"github.com/holmes-py/JS-DeepLens/internal/patterns"
	"github.com/rs/zerolog"
)

var sourceMapRegex = regexp.MustCompile(`//[#@]\s*sourceMappingURL=\S+`)

// ContentHash is the lowercase hex sha1 of body.
func ContentHash(body []byte) string {
	sum := sha1.Sum(body)
	return hex.EncodeToString(sum[:])
}

// HasSourceMap reports whether body carries a sourceMappingURL marker.
func HasSourceMap(body []byte) bool {
	return sourceMapRegex.Match(body)
}

// RecordStore is the subset of the record store ingestion needs.
type RecordStore interface {
	ExistsHash(ctx context.Context, hash string) (bool, error)
	Insert(ctx context.Context, rec *models.ScriptRecord) (bool, error)
}

// BlobStore stores script bodies by content hash.
type BlobStore interface {
	Put(hash string, body []byte) error
}

// PatternSource yields the currently active pattern sets.
type PatternSource interface {
	Snapshot() patterns.Snapshot
}

// Scanner runs pattern sets over a body.
type Scanner interface {
	Scan(body []byte, sourceURL string, sets map[string]models.PatternSet) []models.Finding
}

// Result describes the outcome of one Ingest call.
type Result struct {
	IsNew        bool
	FindingCount int
	Record       *models.ScriptRecord
}

// Pipeline turns captured script bodies into stored, scanned records.
type Pipeline struct {
	records   RecordStore
	blobs     BlobStore
	patterns  PatternSource
	scanner   Scanner
	publisher notifier.Publisher
	logger    zerolog.Logger
}

func NewPipeline(records RecordStore, blobs BlobStore, src PatternSource, scanner Scanner, pub notifier.Publisher, logger zerolog.Logger) *Pipeline {
	if pub == nil {
		pub = notifier.NopPublisher{}
	}
	return &Pipeline{
		records:   records,
		blobs:     blobs,
		patterns:  src,
		scanner:   scanner,
		publisher: pub,
		logger:    logger.With().Str("component", "IngestPipeline").Logger(),
	}
}

// Ingest stores body once per distinct content. Content already seen yields
// IsNew=false without analysis or notification.
func (p *Pipeline) Ingest(ctx context.Context, url string, body []byte) (Result, error) {
	if url == "" {
		return Result{}, common.NewValidationError("url", url, "missing URL")
	}
	hash := ContentHash(body)
	log := p.logger.With().Str("url", url).Str("hash", hash).Logger()

	exists, err := p.records.ExistsHash(ctx, hash)
	if err != nil {
		return Result{}, err
	}
	if exists {
		log.Debug().Msg("Content already stored")
		return Result{}, nil
	}

	if err := p.blobs.Put(hash, body); err != nil {
		log.Error().Err(err).Msg("Failed to store script body")
		return Result{}, common.NewStorageError("store script body", err)
	}

	findings := p.scan(body, url)
	now := time.Now().UTC()
	rec := &models.ScriptRecord{
		URL:           url,
		ContentHash:   hash,
		Findings:      findings,
		HasSourceMap:  HasSourceMap(body),
		CreatedAt:     now,
		LastScannedAt: now,
	}

	inserted, err := p.records.Insert(ctx, rec)
	if err != nil {
		log.Error().Err(err).Msg("Failed to insert record")
		return Result{}, err
	}
	if !inserted {
		log.Debug().Msg("Concurrent duplicate absorbed")
		return Result{}, nil
	}

	log.Info().Int64("id", rec.ID).Int("findings", len(findings)).Bool("sourcemap", rec.HasSourceMap).Msg("Stored new script")
	p.publisher.Publish(notifier.EventRecordCreated, models.RecordCreatedEvent{Record: *rec, Findings: findings})
	return Result{IsNew: true, FindingCount: len(findings), Record: rec}, nil
}

func (p *Pipeline) scan(body []byte, url string) (findings []models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("url", url).Msg("Pattern scan panicked, storing without findings")
			findings = []models.Finding{}
		}
	}()
	return p.scanner.Scan(body, url, p.patterns.Snapshot().Sets)
}
