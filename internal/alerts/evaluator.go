// Package alerts turns completed job results into notification-worthy alert
// entities. Alert creation is best-effort: a failed write is logged and never
// rolls back the owning job's completed state.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
)

// DefaultConfidenceThreshold applies when the caller supplies none.
const DefaultConfidenceThreshold = 70.0

// Evaluator inspects completed-job detections against a confidence threshold
// and emits alerts. It only ever creates alert rows; job records are never
// touched.
type Evaluator struct {
	store store.Store
}

func NewEvaluator(s store.Store) *Evaluator {
	return &Evaluator{store: s}
}

// EvaluateJob builds and persists alerts for a completed job. Returns the
// number of alerts written; write failures are logged and skipped.
func (e *Evaluator) EvaluateJob(ctx context.Context, job *models.Job, detections []*models.Detection, threshold float64) int {
	built := BuildAlerts(job, detections, threshold)

	created := 0
	for _, a := range built {
		if err := e.store.CreateAlert(ctx, a); err != nil {
			slog.Error("alert write failed", "job_id", job.ID, "category", a.Category, "error", err)
			continue
		}
		created++
	}
	return created
}

// BuildAlerts derives the alert set for a completed job: one alert per
// detection at or above the threshold, plus at most one aggregate alert when a
// summary metric exceeds its trigger.
func BuildAlerts(job *models.Job, detections []*models.Detection, threshold float64) []*models.Alert {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	zone := zoneName(job.Input)
	now := time.Now().UTC()

	var alerts []*models.Alert
	for _, d := range detections {
		if d.Confidence < threshold {
			continue
		}
		severity := d.Severity
		if !models.ValidSeverity(severity) {
			severity = models.SeverityMedium
		}
		alerts = append(alerts, &models.Alert{
			ID:          uuid.New(),
			SourceJobID: job.ID,
			Owner:       job.Owner,
			Zone:        zone,
			Category:    d.Category,
			Severity:    severity,
			Confidence:  d.Confidence,
			Latitude:    d.Latitude,
			Longitude:   d.Longitude,
			Message:     fmt.Sprintf("%s detected with %.0f%% confidence", d.Category, d.Confidence),
			Status:      models.AlertStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if agg := aggregateAlert(job, zone, now); agg != nil {
		alerts = append(alerts, agg)
	}
	return alerts
}

// aggregateAlert fires a single alert when a summary metric in the result
// document crosses its per-kind trigger, with severity escalated by magnitude.
func aggregateAlert(job *models.Job, zone string, now time.Time) *models.Alert {
	if len(job.Result) == 0 {
		return nil
	}

	var category, message, severity string
	confidence := summaryNumber(job.Result, "confidenceScore")

	switch job.Kind {
	case models.KindDeforestation:
		loss := summaryNumber(job.Result, "forestLossPercentage")
		if loss <= 5 {
			return nil
		}
		category = "forest_loss"
		severity = models.SeverityHigh
		if loss > 15 {
			severity = models.SeverityCritical
		}
		message = fmt.Sprintf("Forest loss of %.1f%% detected", loss)
	case models.KindFire:
		fires := summaryNumber(job.Result, "activeFires")
		if fires <= 0 {
			return nil
		}
		category = "active_fire"
		severity = models.SeverityHigh
		if fires >= 10 {
			severity = models.SeverityCritical
		}
		message = fmt.Sprintf("%.0f active fire(s) detected", fires)
	case models.KindMining:
		sites := summaryNumber(job.Result, "miningSites")
		if sites <= 0 {
			return nil
		}
		category = "mining_activity"
		severity = models.SeverityHigh
		message = fmt.Sprintf("%.0f mining site(s) detected", sites)
	default:
		return nil
	}

	lat, lng := boundsCenter(job.Input)
	return &models.Alert{
		ID:          uuid.New(),
		SourceJobID: job.ID,
		Owner:       job.Owner,
		Zone:        zone,
		Category:    category,
		Severity:    severity,
		Confidence:  confidence,
		Latitude:    lat,
		Longitude:   lng,
		Message:     message,
		Status:      models.AlertStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// summaryNumber reads a numeric field out of the result document's summary
// block. Result shapes are executor-specific, so lookups are best-effort.
func summaryNumber(result json.RawMessage, field string) float64 {
	var doc struct {
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(result, &doc); err != nil {
		return 0
	}
	if v, ok := doc.Summary[field].(float64); ok {
		return v
	}
	return 0
}

func zoneName(input json.RawMessage) string {
	var doc struct {
		Zone     string `json:"zone"`
		ZoneName string `json:"zoneName"`
	}
	if err := json.Unmarshal(input, &doc); err != nil {
		return ""
	}
	if doc.Zone != "" {
		return doc.Zone
	}
	return doc.ZoneName
}

func boundsCenter(input json.RawMessage) (float64, float64) {
	var doc struct {
		Bounds struct {
			MinLat float64 `json:"minLat"`
			MinLng float64 `json:"minLng"`
			MaxLat float64 `json:"maxLat"`
			MaxLng float64 `json:"maxLng"`
		} `json:"bounds"`
	}
	if err := json.Unmarshal(input, &doc); err != nil {
		return 0, 0
	}
	return (doc.Bounds.MinLat + doc.Bounds.MaxLat) / 2, (doc.Bounds.MinLng + doc.Bounds.MaxLng) / 2
}
