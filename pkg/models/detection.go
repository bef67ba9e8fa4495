package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Detection is one classified finding inside a completed job's result, flattened
// out of the result document so it can be queried geometrically. Confidence is
// normalized to the 0-100 range.
type Detection struct {
	ID         uuid.UUID       `db:"id"          json:"id"`
	JobID      uuid.UUID       `db:"job_id"      json:"job_id"`
	Category   string          `db:"category"    json:"category"`
	Confidence float64         `db:"confidence"  json:"confidence"`
	Severity   string          `db:"severity"    json:"severity"`
	Latitude   float64         `db:"latitude"    json:"latitude"`
	Longitude  float64         `db:"longitude"   json:"longitude"`
	Attributes json.RawMessage `db:"attributes"  json:"attributes,omitempty"`
	DetectedAt time.Time       `db:"detected_at" json:"detected_at"`
}

// ValidSeverity reports whether s is a known severity level.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
