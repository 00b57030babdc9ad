package models

import "time"

// Provenance distinguishes live backend data from static fallback samples.
type Provenance string

const (
	ProvenanceLive   Provenance = "live"
	ProvenanceSample Provenance = "sample"
)

// SessionDocument is the persisted output of a completed analysis session.
type SessionDocument struct {
	SessionID  string     `json:"session_id" badgerhold:"key"`
	Status     string     `json:"status"`
	UserName   string     `json:"user_name,omitempty"`
	Report     string     `json:"report,omitempty"`
	LogFile    string     `json:"log_file,omitempty"`
	DocumentID string     `json:"document_id,omitempty"`
	PDFPath    string     `json:"pdf_path,omitempty"`
	Provenance Provenance `json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
