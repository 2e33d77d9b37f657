package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/datastore"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/notifier"
	"github.com/holmes-py/JS-DeepLens/internal/patterns"
	"github.com/holmes-py/JS-DeepLens/internal/secrets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPatterns struct{ sets map[string]models.PatternSet }

func (s staticPatterns) Snapshot() patterns.Snapshot {
	return patterns.Snapshot{Sets: s.sets}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (r *recordingPublisher) Publish(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notifier.Event{Name: name, Payload: payload})
}

type failingBlobs struct{}

func (failingBlobs) Put(string, []byte) error { return errors.New("disk full") }

type panickingScanner struct{}

func (panickingScanner) Scan([]byte, string, map[string]models.PatternSet) []models.Finding {
	panic("bad pattern engine")
}

type fixture struct {
	pipeline *Pipeline
	records  *datastore.RecordStore
	blobs    *datastore.BlobStore
	pub      *recordingPublisher
}

func newFixture(t *testing.T, sets map[string]models.PatternSet) fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := datastore.Open(filepath.Join(dir, "database.db"), 5000, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	blobs, err := datastore.NewBlobStore(filepath.Join(dir, "js_files"), zerolog.Nop())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	p := NewPipeline(db.Records(), blobs, staticPatterns{sets: sets}, secrets.NewAnalyzer(zerolog.Nop()), pub, zerolog.Nop())
	return fixture{pipeline: p, records: db.Records(), blobs: blobs, pub: pub}
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", ContentHash(nil))
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", ContentHash([]byte("abc")))
}

func TestHasSourceMap(t *testing.T) {
	assert.True(t, HasSourceMap([]byte("x();\n//# sourceMappingURL=app.js.map")))
	assert.True(t, HasSourceMap([]byte("//@ sourceMappingURL=a.map")))
	assert.False(t, HasSourceMap([]byte("// sourceMappingURL=a.map")))
	assert.False(t, HasSourceMap([]byte("//# sourceMappingURL=")))
}

func TestIngest_NewThenDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]models.PatternSet{
		"tokens.json": {Name: "tokens.json", Patterns: []string{`tok_[0-9]+`}},
	})
	body := []byte(`var a = "tok_123"; var b = "tok_456";`)

	res, err := f.pipeline.Ingest(ctx, "https://a.test/app.js", body)
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, 2, res.FindingCount)
	require.NotNil(t, res.Record)

	stored, err := f.blobs.Get(ContentHash(body))
	require.NoError(t, err)
	assert.Equal(t, body, stored)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, notifier.EventRecordCreated, f.pub.events[0].Name)
	ev := f.pub.events[0].Payload.(models.RecordCreatedEvent)
	assert.Len(t, ev.Findings, 2)
	assert.Equal(t, res.Record.ID, ev.Record.ID)

	res, err = f.pipeline.Ingest(ctx, "https://other.test/copy.js", body)
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Zero(t, res.FindingCount)
	assert.Len(t, f.pub.events, 1)

	n, err := f.records.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestIngest_NoActiveSets(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.pipeline.Ingest(context.Background(), "https://a.test/app.js", []byte("//# sourceMappingURL=app.map"))
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Zero(t, res.FindingCount)
	assert.True(t, res.Record.HasSourceMap)
	assert.Empty(t, res.Record.Findings)
}

func TestIngest_EmptyBodyIsValid(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.pipeline.Ingest(context.Background(), "https://a.test/empty.js", []byte{})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", res.Record.ContentHash)
}

func TestIngest_MissingURL(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.pipeline.Ingest(context.Background(), "", []byte("x"))
	assert.True(t, common.IsValidation(err))
}

func TestIngest_BlobFailureCreatesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	pub := &recordingPublisher{}
	p := NewPipeline(f.records, failingBlobs{}, staticPatterns{}, secrets.NewAnalyzer(zerolog.Nop()), pub, zerolog.Nop())

	_, err := p.Ingest(ctx, "https://a.test/app.js", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrStorage))
	assert.NotContains(t, err.Error(), "js_files")

	n, err := f.records.CountAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.events)
}

func TestIngest_ScannerPanicStoresWithoutFindings(t *testing.T) {
	f := newFixture(t, nil)
	p := NewPipeline(f.records, f.blobs, staticPatterns{}, panickingScanner{}, f.pub, zerolog.Nop())

	res, err := p.Ingest(context.Background(), "https://a.test/app.js", []byte("x"))
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Zero(t, res.FindingCount)
}

func TestIngest_ConcurrentSameBody(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	body := []byte("console.log(1)")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.pipeline.Ingest(ctx, "https://a.test/app.js", body)
			assert.NoError(t, err)
			if res.IsNew {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)
	f.pub.mu.Lock()
	assert.Len(t, f.pub.events, 1)
	f.pub.mu.Unlock()
}
