package models

// FindingRow is one regex finding flattened for parquet export.
type FindingRow struct {
	RecordID      int64  `parquet:"record_id"`
	URL           string `parquet:"url"`
	ContentHash   string `parquet:"content_hash"`
	SourceSet     string `parquet:"source_set"`
	Pattern       string `parquet:"pattern"`
	MatchedText   string `parquet:"matched_text"`
	HasSourceMap  bool   `parquet:"has_sourcemap"`
	LastScannedAt int64  `parquet:"last_scanned_at,timestamp(millisecond)"`
}
