package rescan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/datastore"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/notifier"
	"github.com/holmes-py/JS-DeepLens/internal/patterns"
	"github.com/holmes-py/JS-DeepLens/internal/secrets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRecords struct {
	mu      sync.Mutex
	items   []datastore.RescanItem
	listErr error
	updated map[int64][]models.Finding
	block   chan struct{}
}

func (f *fakeRecords) ListForRescan(context.Context) ([]datastore.RescanItem, error) {
	if f.block != nil {
		<-f.block
	}
	return f.items, f.listErr
}

func (f *fakeRecords) UpdateFindings(_ context.Context, id int64, findings []models.Finding, _ bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[int64][]models.Finding{}
	}
	f.updated[id] = findings
	return nil
}

type fakeBlobs map[string]string

func (b fakeBlobs) Get(hash string) ([]byte, error) {
	body, ok := b[hash]
	if !ok {
		return nil, common.NewNotFoundError("content", hash)
	}
	return []byte(body), nil
}

type staticPatterns map[string]models.PatternSet

func (s staticPatterns) Snapshot() patterns.Snapshot { return patterns.Snapshot{Sets: s} }

type recordingPublisher struct {
	mu       sync.Mutex
	progress []models.RescanProgress
	done     []models.RescanSummary
}

func (r *recordingPublisher) Publish(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch name {
	case notifier.EventRescanProgress:
		r.progress = append(r.progress, payload.(models.RescanProgress))
	case notifier.EventRescanComplete:
		r.done = append(r.done, payload.(models.RescanSummary))
	}
}

func items(n int) ([]datastore.RescanItem, fakeBlobs) {
	var out []datastore.RescanItem
	blobs := fakeBlobs{}
	for i := 1; i <= n; i++ {
		hash := fmt.Sprintf("hash-%d", i)
		out = append(out, datastore.RescanItem{ID: int64(i), URL: "https://a.test/x.js", ContentHash: hash})
		blobs[hash] = "token_abc"
	}
	return out, blobs
}

func newOrchestrator(records RecordStore, blobs BlobReader, pub notifier.Publisher) *Orchestrator {
	sets := staticPatterns{"t.json": {Name: "t.json", Patterns: []string{`token_[a-z]+`}}}
	return NewOrchestrator(records, blobs, sets, secrets.NewAnalyzer(zerolog.Nop()), pub,
		Options{ProgressEvery: 10, YieldDelay: time.Millisecond}, zerolog.Nop())
}

func TestOrchestrator_ProgressAndSuccess(t *testing.T) {
	list, blobs := items(25)
	records := &fakeRecords{items: list}
	pub := &recordingPublisher{}
	o := newOrchestrator(records, blobs, pub)

	jobID, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	o.Wait()

	var processed []int
	for _, p := range pub.progress {
		processed = append(processed, p.Processed)
		assert.Equal(t, 25, p.Total)
		assert.Equal(t, jobID, p.JobID)
	}
	assert.Equal(t, []int{10, 20, 25}, processed)

	require.Len(t, pub.done, 1)
	summary := pub.done[0]
	assert.Equal(t, models.RescanStatusSuccess, summary.Status)
	assert.Equal(t, 25, summary.Processed)
	assert.Zero(t, summary.Errors)
	assert.Len(t, records.updated, 25)
	assert.Len(t, records.updated[1], 1)
	assert.False(t, o.Running())

	last, ok := o.LastSummary()
	require.True(t, ok)
	assert.Equal(t, jobID, last.JobID)
}

func TestOrchestrator_MissingBlobCountsError(t *testing.T) {
	list, blobs := items(3)
	delete(blobs, list[1].ContentHash)
	records := &fakeRecords{items: list}
	pub := &recordingPublisher{}
	o := newOrchestrator(records, blobs, pub)

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	o.Wait()

	require.Len(t, pub.done, 1)
	assert.Equal(t, models.RescanStatusCompletedWithErrors, pub.done[0].Status)
	assert.Equal(t, 1, pub.done[0].Errors)
	assert.Equal(t, 3, pub.done[0].Processed)
	assert.Len(t, records.updated, 2)
}

func TestOrchestrator_EmptyStore(t *testing.T) {
	pub := &recordingPublisher{}
	o := newOrchestrator(&fakeRecords{}, fakeBlobs{}, pub)

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	o.Wait()

	require.Len(t, pub.done, 1)
	assert.Equal(t, models.RescanStatusSuccess, pub.done[0].Status)
	assert.Equal(t, "No content found.", pub.done[0].Message)
	assert.Empty(t, pub.progress)
}

func TestOrchestrator_ListFailure(t *testing.T) {
	pub := &recordingPublisher{}
	o := newOrchestrator(&fakeRecords{listErr: errors.New("db locked")}, fakeBlobs{}, pub)

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	o.Wait()

	require.Len(t, pub.done, 1)
	assert.Equal(t, models.RescanStatusError, pub.done[0].Status)
	assert.False(t, o.Running())
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	records := &fakeRecords{block: make(chan struct{})}
	o := newOrchestrator(records, fakeBlobs{}, &recordingPublisher{})

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, o.Running())

	_, err = o.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(records.block)
	o.Wait()
	assert.False(t, o.Running())

	records.block = nil
	_, err = o.Start(context.Background())
	require.NoError(t, err)
	o.Wait()
}

func TestOrchestrator_Cancellation(t *testing.T) {
	list, blobs := items(50)
	pub := &recordingPublisher{}
	o := NewOrchestrator(&fakeRecords{items: list}, blobs, staticPatterns{}, secrets.NewAnalyzer(zerolog.Nop()), pub,
		Options{ProgressEvery: 10, YieldDelay: 50 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := o.Start(ctx)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	cancel()
	o.Wait()

	require.Len(t, pub.done, 1)
	assert.Equal(t, models.RescanStatusError, pub.done[0].Status)
	assert.Equal(t, "cancelled", pub.done[0].Message)
	assert.Less(t, pub.done[0].Processed, 50)
}

type panickingScanner struct{}

func (panickingScanner) Scan([]byte, string, map[string]models.PatternSet) []models.Finding {
	panic("boom")
}

func TestOrchestrator_PerItemPanicIsCounted(t *testing.T) {
	list, blobs := items(2)
	pub := &recordingPublisher{}
	o := NewOrchestrator(&fakeRecords{items: list}, blobs, staticPatterns{}, panickingScanner{}, pub,
		Options{ProgressEvery: 1}, zerolog.Nop())

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	o.Wait()

	require.Len(t, pub.done, 1)
	assert.Equal(t, models.RescanStatusCompletedWithErrors, pub.done[0].Status)
	assert.Equal(t, 2, pub.done[0].Errors)
	assert.Len(t, pub.progress, 2)
}

type swappablePatterns struct {
	mu   sync.Mutex
	sets map[string]models.PatternSet
}

func (s *swappablePatterns) Snapshot() patterns.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return patterns.Snapshot{Sets: s.sets}
}

func (s *swappablePatterns) set(sets map[string]models.PatternSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = sets
}

func TestOrchestrator_UsesSelectionFromStart(t *testing.T) {
	list, blobs := items(3)
	records := &fakeRecords{items: list, block: make(chan struct{})}
	src := &swappablePatterns{sets: map[string]models.PatternSet{
		"t.json": {Name: "t.json", Patterns: []string{`token_[a-z]+`}},
	}}
	o := NewOrchestrator(records, blobs, src, secrets.NewAnalyzer(zerolog.Nop()), nil,
		Options{ProgressEvery: 10}, zerolog.Nop())

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	src.set(map[string]models.PatternSet{
		"other.json": {Name: "other.json", Patterns: []string{`nothing_here`}},
	})
	close(records.block)
	o.Wait()

	records.mu.Lock()
	defer records.mu.Unlock()
	require.Len(t, records.updated, 3)
	for id, findings := range records.updated {
		require.Len(t, findings, 1, "record %d", id)
		assert.Equal(t, "t.json", findings[0].SourceSet)
		assert.Equal(t, "token_abc", findings[0].MatchedText)
	}
}
