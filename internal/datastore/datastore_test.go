package datastore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "database.db"), 5000, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	records := openTestDB(t).Records()

	rec := &models.ScriptRecord{
		URL:          "https://a.test/app.js",
		ContentHash:  hashA,
		Findings:     []models.Finding{{SourceSet: "tokens.json", Pattern: "tok_[0-9]+", MatchedText: "tok_1"}},
		HasSourceMap: true,
	}
	inserted, err := records.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, rec.ID)

	got, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, got.URL)
	assert.Equal(t, rec.Findings, got.Findings)
	assert.True(t, got.HasSourceMap)

	byHash, err := records.GetByHash(ctx, hashA)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byHash.ID)

	exists, err := records.ExistsHash(ctx, hashA)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRecordStore_DuplicateHashIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	records := openTestDB(t).Records()

	first := &models.ScriptRecord{URL: "https://a.test/1.js", ContentHash: hashA}
	second := &models.ScriptRecord{URL: "https://b.test/2.js", ContentHash: hashA}

	ok, err := records.Insert(ctx, first)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = records.Insert(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, second.ID)

	n, err := records.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := records.GetByHash(ctx, hashA)
	require.NoError(t, err)
	assert.Equal(t, "https://a.test/1.js", got.URL)
}

func TestRecordStore_ConcurrentInsertSameHash(t *testing.T) {
	ctx := context.Background()
	records := openTestDB(t).Records()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := records.Insert(ctx, &models.ScriptRecord{URL: "https://a.test/x.js", ContentHash: hashB})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, newCount)
}

func TestRecordStore_NotFound(t *testing.T) {
	ctx := context.Background()
	records := openTestDB(t).Records()

	_, err := records.GetByID(ctx, 42)
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))

	_, err = records.GetByHash(ctx, hashA)
	assert.True(t, common.IsNotFound(err))

	err = records.UpdateFindings(ctx, 42, nil, false, time.Now())
	assert.True(t, common.IsNotFound(err))
}

func TestRecordStore_ListPageDescending(t *testing.T) {
	ctx := context.Background()
	records := openTestDB(t).Records()

	for i := 0; i < 5; i++ {
		hash := strings.Repeat(string(rune('0'+i)), 40)
		_, err := records.Insert(ctx, &models.ScriptRecord{URL: "https://a.test/" + hash[:1] + ".js", ContentHash: hash})
		require.NoError(t, err)
	}

	page, err := records.ListPage(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)
	assert.NotNil(t, page[0].Findings)

	rest, err := records.ListPage(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 3)

	urls, err := records.ListAllURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 5)

	items, err := records.ListForRescan(ctx)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Less(t, items[0].ID, items[4].ID)
}

func TestRecordStore_UpdateFindingsReplaces(t *testing.T) {
	ctx := context.Background()
	records := openTestDB(t).Records()

	rec := &models.ScriptRecord{
		URL:         "https://a.test/app.js",
		ContentHash: hashA,
		Findings:    []models.Finding{{SourceSet: "old", Pattern: "x", MatchedText: "x"}},
	}
	_, err := records.Insert(ctx, rec)
	require.NoError(t, err)

	scanned := time.Now().Add(time.Hour)
	require.NoError(t, records.UpdateFindings(ctx, rec.ID, nil, true, scanned))

	got, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Findings)
	assert.True(t, got.HasSourceMap)
	assert.Equal(t, scanned.UnixMilli(), got.LastScannedAt.UnixMilli())
}

func TestConfigStore(t *testing.T) {
	ctx := context.Background()
	settings := openTestDB(t).Settings()

	v, err := settings.Get(ctx, "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	require.NoError(t, settings.Set(ctx, "k", "v1"))
	require.NoError(t, settings.Set(ctx, "k", "v2"))
	v, err = settings.Get(ctx, "k", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	include, err := EncodeStringList([]string{"^https://a\\.test"})
	require.NoError(t, err)
	exclude, err := EncodeStringList(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", exclude)

	require.NoError(t, settings.SetMany(ctx, map[string]string{
		KeyScopeIncludeList: include,
		KeyScopeExcludeList: exclude,
	}))
	list, err := settings.GetStringList(ctx, KeyScopeIncludeList)
	require.NoError(t, err)
	assert.Equal(t, []string{"^https://a\\.test"}, list)

	require.NoError(t, settings.Set(ctx, KeySelectedPatternFiles, "not json"))
	list, err = settings.GetStringList(ctx, KeySelectedPatternFiles)
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestBlobStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "js_files")
	blobs, err := NewBlobStore(dir, zerolog.Nop())
	require.NoError(t, err)

	_, err = blobs.Get(hashA)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	require.NoError(t, blobs.Put(hashA, []byte("var a = 1;")))
	body, err := blobs.Get(hashA)
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;", string(body))

	_, err = os.Stat(filepath.Join(dir, hashA+".js"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")

	err = blobs.Put("../escape", []byte("x"))
	assert.True(t, common.IsValidation(err))
}

func TestParquetWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer, err := NewParquetWriter(dir, DefaultParquetWriterConfig(), zerolog.Nop())
	require.NoError(t, err)

	scanned := time.UnixMilli(1700000000000).UTC()
	rows := FlattenFindings([]models.ScriptRecord{
		{
			ID:            1,
			URL:           "https://a.test/app.js",
			ContentHash:   hashA,
			LastScannedAt: scanned,
			Findings: []models.Finding{
				{SourceSet: "tokens.json", Pattern: "a", MatchedText: "a"},
				{SourceSet: "tokens.json", Pattern: "b", MatchedText: "b"},
			},
		},
		{ID: 2, URL: "https://a.test/empty.js", ContentHash: hashB},
	})
	require.Len(t, rows, 2)

	result, err := writer.Write(ctx, "out.parquet", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsWritten)
	assert.Equal(t, filepath.Join(dir, "out.parquet"), result.FilePath)
	assert.Positive(t, result.FileSize)

	loaded, err := parquet.ReadFile[models.FindingRow](result.FilePath)
	require.NoError(t, err)
	assert.Equal(t, rows, loaded)
}

func TestParquetWriter_RejectsPathInName(t *testing.T) {
	writer, err := NewParquetWriter(t.TempDir(), DefaultParquetWriterConfig(), zerolog.Nop())
	require.NoError(t, err)

	for _, name := range []string{"../x.parquet", ".", "..", "out.csv", ".parquet"} {
		_, err = writer.Write(context.Background(), name, nil)
		assert.True(t, common.IsValidation(err), name)
	}

	_, err = NewParquetWriter("", DefaultParquetWriterConfig(), zerolog.Nop())
	assert.Error(t, err)
}
