package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

const parquetExt = ".parquet"

// ParquetWriterConfig holds configuration for ParquetWriter
type ParquetWriterConfig struct {
	CompressionType string
	BatchSize       int
}

// DefaultParquetWriterConfig returns default configuration
func DefaultParquetWriterConfig() ParquetWriterConfig {
	return ParquetWriterConfig{
		CompressionType: "zstd",
		BatchSize:       1000,
	}
}

// ParquetWriter exports regex findings of stored records as parquet files.
type ParquetWriter struct {
	exportDir    string
	logger       zerolog.Logger
	writerConfig ParquetWriterConfig
}

// WriteResult contains the result of a write operation
type WriteResult struct {
	FilePath       string        `json:"file_path"`
	RecordsWritten int           `json:"rows_written"`
	FileSize       int64         `json:"file_size"`
	WriteTime      time.Duration `json:"write_time_ns"`
}

// NewParquetWriter creates a writer rooted at exportDir.
func NewParquetWriter(exportDir string, cfg ParquetWriterConfig, logger zerolog.Logger) (*ParquetWriter, error) {
	if exportDir == "" {
		return nil, common.NewValidationError("export_dir", exportDir, "export directory is not configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultParquetWriterConfig().BatchSize
	}
	return &ParquetWriter{
		exportDir:    exportDir,
		logger:       logger.With().Str("component", "ParquetWriter").Logger(),
		writerConfig: cfg,
	}, nil
}

// FlattenFindings turns records into one row per regex finding.
func FlattenFindings(records []models.ScriptRecord) []models.FindingRow {
	var rows []models.FindingRow
	for _, rec := range records {
		for _, f := range rec.Findings {
			rows = append(rows, models.FindingRow{
				RecordID:      rec.ID,
				URL:           rec.URL,
				ContentHash:   rec.ContentHash,
				SourceSet:     f.SourceSet,
				Pattern:       f.Pattern,
				MatchedText:   f.MatchedText,
				HasSourceMap:  rec.HasSourceMap,
				LastScannedAt: rec.LastScannedAt.UnixMilli(),
			})
		}
	}
	return rows
}

// Write stores rows in fileName under the export directory, replacing any
// previous file with that name. An empty fileName gets a timestamped name.
func (pw *ParquetWriter) Write(ctx context.Context, fileName string, rows []models.FindingRow) (*WriteResult, error) {
	startTime := time.Now()

	if err := pw.checkCancellation(ctx, "write start"); err != nil {
		return nil, err
	}

	filePath, err := pw.prepareOutputFile(fileName, startTime)
	if err != nil {
		return nil, err
	}

	written, err := pw.writeToParquetFile(ctx, filePath, rows)
	if err != nil {
		return nil, err
	}

	var fileSize int64
	if info, statErr := os.Stat(filePath); statErr == nil {
		fileSize = info.Size()
	}

	result := &WriteResult{
		FilePath:       filePath,
		RecordsWritten: written,
		FileSize:       fileSize,
		WriteTime:      time.Since(startTime),
	}
	pw.logger.Info().
		Str("file_path", result.FilePath).
		Int("records_written", result.RecordsWritten).
		Dur("write_time", result.WriteTime).
		Msg("Wrote findings to Parquet file")
	return result, nil
}

func (pw *ParquetWriter) checkCancellation(ctx context.Context, operation string) error {
	if result := common.CheckCancellationWithLog(ctx, pw.logger, operation); result.Cancelled {
		return result.Error
	}
	return nil
}

func (pw *ParquetWriter) prepareOutputFile(fileName string, now time.Time) (string, error) {
	if err := os.MkdirAll(pw.exportDir, 0755); err != nil {
		return "", common.WrapError(err, "failed to create export directory")
	}
	if fileName == "" {
		fileName = fmt.Sprintf("findings-%s.parquet", now.UTC().Format("20060102-150405"))
	}
	if fileName == "." || fileName == ".." || filepath.Base(fileName) != fileName {
		return "", common.NewValidationError("file_name", fileName, "must be a bare file name")
	}
	if !strings.HasSuffix(fileName, parquetExt) || fileName == parquetExt {
		return "", common.NewValidationError("file_name", fileName, "must end in "+parquetExt)
	}
	return filepath.Join(pw.exportDir, fileName), nil
}

func (pw *ParquetWriter) writeToParquetFile(ctx context.Context, filePath string, rows []models.FindingRow) (int, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return 0, common.WrapError(err, "failed to create parquet file")
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[models.FindingRow](file, pw.getCompressionOption())

	written := 0
	for start := 0; start < len(rows); start += pw.writerConfig.BatchSize {
		if err := pw.checkCancellation(ctx, "parquet batch"); err != nil {
			_ = writer.Close()
			return written, err
		}
		end := min(start+pw.writerConfig.BatchSize, len(rows))
		n, err := writer.Write(rows[start:end])
		written += n
		if err != nil {
			_ = writer.Close()
			return written, common.WrapError(err, "failed to write findings to parquet file")
		}
	}

	if err := writer.Close(); err != nil {
		return written, common.WrapError(err, "failed to finalize parquet file")
	}
	return written, nil
}

func (pw *ParquetWriter) getCompressionOption() parquet.WriterOption {
	switch pw.writerConfig.CompressionType {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}
