package datastore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
)

const recordColumns = `id, url, content_hash, findings, has_sourcemap, created_at, last_scanned_at`

// RescanItem is the minimal view of a record needed to re-run pattern sets.
type RescanItem struct {
	ID          int64
	URL         string
	ContentHash string
}

// RecordStore persists ScriptRecords in the analyzed_scripts table.
type RecordStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Insert stores rec unless a record with the same content hash exists.
// It reports false without error for a duplicate hash. On success rec.ID is set.
func (s *RecordStore) Insert(ctx context.Context, rec *models.ScriptRecord) (bool, error) {
	findingsJSON, err := marshalFindings(rec.Findings)
	if err != nil {
		return false, common.NewStorageError("encode findings", err)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastScannedAt.IsZero() {
		rec.LastScannedAt = now
	}

	query := `INSERT INTO analyzed_scripts (url, content_hash, findings, has_sourcemap, created_at, last_scanned_at)
	VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(content_hash) DO NOTHING`
	result, err := s.db.ExecContext(ctx, query, rec.URL, rec.ContentHash, findingsJSON,
		boolToInt(rec.HasSourceMap), rec.CreatedAt.UnixMilli(), rec.LastScannedAt.UnixMilli())
	if err != nil {
		s.logger.Error().Err(err).Str("hash", rec.ContentHash).Msg("Failed to insert record")
		return false, common.NewStorageError("insert record", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, common.NewStorageError("insert record", err)
	}
	if affected == 0 {
		s.logger.Debug().Str("hash", rec.ContentHash).Msg("Duplicate content hash, insert skipped")
		return false, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return false, common.NewStorageError("insert record", err)
	}
	rec.ID = id
	return true, nil
}

// GetByID loads one record. Unknown ids yield a *common.NotFoundError.
func (s *RecordStore) GetByID(ctx context.Context, id int64) (models.ScriptRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM analyzed_scripts WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScriptRecord{}, common.NewNotFoundError("record", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return models.ScriptRecord{}, common.NewStorageError("get record", err)
	}
	return rec, nil
}

// GetByHash loads the record holding the given content hash.
func (s *RecordStore) GetByHash(ctx context.Context, hash string) (models.ScriptRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM analyzed_scripts WHERE content_hash = ?`, hash)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScriptRecord{}, common.NewNotFoundError("content", hash)
	}
	if err != nil {
		return models.ScriptRecord{}, common.NewStorageError("get record by hash", err)
	}
	return rec, nil
}

// ExistsHash reports whether a record for hash is already stored.
func (s *RecordStore) ExistsHash(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM analyzed_scripts WHERE content_hash = ? LIMIT 1`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, common.NewStorageError("lookup hash", err)
	}
	return true, nil
}

// ListPage returns records ordered by descending id.
func (s *RecordStore) ListPage(ctx context.Context, offset, limit int) ([]models.ScriptRecord, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM analyzed_scripts ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, common.NewStorageError("list records", err)
	}
	defer rows.Close()

	records := make([]models.ScriptRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, common.NewStorageError("scan record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("list records", err)
	}
	return records, nil
}

// UpdateFindings replaces the findings of a record wholesale.
func (s *RecordStore) UpdateFindings(ctx context.Context, id int64, findings []models.Finding, hasSourceMap bool, scannedAt time.Time) error {
	findingsJSON, err := marshalFindings(findings)
	if err != nil {
		return common.NewStorageError("encode findings", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE analyzed_scripts SET findings = ?, has_sourcemap = ?, last_scanned_at = ? WHERE id = ?`,
		findingsJSON, boolToInt(hasSourceMap), scannedAt.UnixMilli(), id)
	if err != nil {
		s.logger.Error().Err(err).Int64("id", id).Msg("Failed to update findings")
		return common.NewStorageError("update findings", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return common.NewNotFoundError("record", strconv.FormatInt(id, 10))
	}
	return nil
}

// CountAll returns the number of stored records.
func (s *RecordStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyzed_scripts`).Scan(&n); err != nil {
		return 0, common.NewStorageError("count records", err)
	}
	return n, nil
}

// ListAllURLs returns the URL of every record.
func (s *RecordStore) ListAllURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM analyzed_scripts`)
	if err != nil {
		return nil, common.NewStorageError("list urls", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, common.NewStorageError("scan url", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("list urls", err)
	}
	return urls, nil
}

// ListForRescan returns every record that has a content hash, oldest first.
func (s *RecordStore) ListForRescan(ctx context.Context) ([]RescanItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, content_hash FROM analyzed_scripts WHERE content_hash IS NOT NULL AND content_hash != '' ORDER BY id ASC`)
	if err != nil {
		return nil, common.NewStorageError("list rescan items", err)
	}
	defer rows.Close()

	var items []RescanItem
	for rows.Next() {
		var it RescanItem
		if err := rows.Scan(&it.ID, &it.URL, &it.ContentHash); err != nil {
			return nil, common.NewStorageError("scan rescan item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("list rescan items", err)
	}
	return items, nil
}

func scanRecord(row rowScanner) (models.ScriptRecord, error) {
	var (
		rec           models.ScriptRecord
		findingsJSON  sql.NullString
		hasSourceMap  int
		createdAt     int64
		lastScannedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.URL, &rec.ContentHash, &findingsJSON, &hasSourceMap, &createdAt, &lastScannedAt); err != nil {
		return rec, err
	}
	rec.HasSourceMap = hasSourceMap != 0
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.LastScannedAt = time.UnixMilli(lastScannedAt).UTC()
	rec.Findings = []models.Finding{}
	if findingsJSON.Valid && findingsJSON.String != "" {
		if err := json.UnmarshalFromString(findingsJSON.String, &rec.Findings); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func marshalFindings(findings []models.Finding) (string, error) {
	if findings == nil {
		findings = []models.Finding{}
	}
	return json.MarshalToString(findings)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
