package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
	AlertStatusDismissed    = "dismissed"
)

// Alert is a notification-worthy finding derived from a completed job's
// detections crossing a confidence threshold, or from an aggregate summary
// metric exceeding its trigger. Alerts never mutate the originating job.
type Alert struct {
	ID          uuid.UUID `db:"id"            json:"id"`
	SourceJobID uuid.UUID `db:"source_job_id" json:"source_job_id"`
	Owner       string    `db:"owner"         json:"owner"`
	Zone        string    `db:"zone"          json:"zone"`
	Category    string    `db:"category"      json:"category"`
	Severity    string    `db:"severity"      json:"severity"`
	Confidence  float64   `db:"confidence"    json:"confidence"`
	Latitude    float64   `db:"latitude"      json:"latitude"`
	Longitude   float64   `db:"longitude"     json:"longitude"`
	Message     string    `db:"message"       json:"message"`
	Status      string    `db:"status"        json:"status"`
	CreatedAt   time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"    json:"updated_at"`
}

// ValidAlertStatus reports whether s is a known alert lifecycle status.
func ValidAlertStatus(s string) bool {
	switch s {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusDismissed:
		return true
	}
	return false
}
