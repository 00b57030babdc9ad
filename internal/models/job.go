package models

import (
	"encoding/json"
	"strings"
	"time"
)

// JobStatus is the normalized state reported by the analysis backend.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// IsTerminal reports whether no further progress is expected for this status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// NormalizeStatus maps raw backend status strings onto JobStatus.
// A missing status means the backend has accepted the job but not started it.
func NormalizeStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running":
		return JobStatusRunning
	case "success", "succeeded", "completed":
		return JobStatusSuccess
	case "failed", "error":
		return JobStatusFailed
	default:
		return JobStatusQueued
	}
}

// FlexTime is a timestamp field that tolerates the heterogeneous date strings
// the analysis backend emits. Unparseable or absent values leave Valid false
// rather than failing the whole status decode.
type FlexTime struct {
	Time  time.Time
	Valid bool
}

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.Valid = false

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Non-string value (null, number, object): timing unavailable.
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range flexTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			t.Valid = true
			return nil
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Job is the read-only projection of an analysis job owned by the Job Service.
// Result fields are populated only at or after terminal status.
type Job struct {
	SessionID          string   `json:"session_id"`
	RawStatus          string   `json:"status"`
	StartTime          FlexTime `json:"start_time"`
	TriggerStartTime   FlexTime `json:"trigger_start_time"` // Some backend versions report this instead of start_time
	ExpectedFinishTime FlexTime `json:"expected_finish_time"`
	Message            string   `json:"message,omitempty"`
	Report             string   `json:"report,omitempty"`
	LogFile            string   `json:"log_file,omitempty"`
	DocumentID         string   `json:"document_id,omitempty"`
	PDFPath            string   `json:"pdf_path,omitempty"`
}

// Status returns the normalized job status.
func (j Job) Status() JobStatus {
	return NormalizeStatus(j.RawStatus)
}

// EffectiveStart returns start_time, falling back to trigger_start_time.
func (j Job) EffectiveStart() FlexTime {
	if j.StartTime.Valid {
		return j.StartTime
	}
	return j.TriggerStartTime
}

// HasTiming reports whether the backend has committed to a time estimate.
func (j Job) HasTiming() bool {
	return j.EffectiveStart().Valid && j.ExpectedFinishTime.Valid
}

// PollSample is an immutable snapshot produced by one successful status poll.
// Samples are totally ordered by ObservedAt.
type PollSample struct {
	ObservedAt time.Time
	Job        Job
}
