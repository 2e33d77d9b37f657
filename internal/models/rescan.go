package models

import "time"

// RescanStatus is the terminal state of a rescan job
type RescanStatus string

const (
	RescanStatusSuccess             RescanStatus = "success"
	RescanStatusCompletedWithErrors RescanStatus = "completed-with-errors"
	RescanStatusError               RescanStatus = "error"
)

// RescanProgress is published periodically while a job runs
type RescanProgress struct {
	JobID     string `json:"job_id"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// RescanSummary is published once when a job ends
type RescanSummary struct {
	JobID     string        `json:"job_id"`
	Status    RescanStatus  `json:"status"`
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Errors    int           `json:"errors"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Message   string        `json:"message,omitempty"`
}

// Stats mirrors the dashboard counters
type Stats struct {
	RequestsSeen    int64 `json:"requests_seen"`
	ScriptsReceived int64 `json:"scripts_received"`
	TotalRecords    int64 `json:"total_records"`
	InScopeRecords  int64 `json:"in_scope_records"`
}
