// Package stats is the read-side aggregation engine. It only ever reads
// completed job records, detections, and alerts; nothing here mutates state.
package stats

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
)

// ReadStore is the subset of the data layer the aggregation engine needs.
type ReadStore interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, error)
	ListDetectionsNear(ctx context.Context, filter store.DetectionFilter) ([]*models.Detection, error)
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*models.Alert, int, error)
}

// Service computes trends, hotspot rankings, and proximity lookups over
// historical completed jobs.
type Service struct {
	store ReadStore
}

func NewService(s ReadStore) *Service {
	return &Service{store: s}
}

// completedJobs loads the terminal-success records inside a window. The store
// may hold a mix of terminal and in-flight jobs at any moment; everything else
// is filtered out here.
func (s *Service) completedJobs(ctx context.Context, kind, owner string, since, until time.Time) ([]*models.Job, error) {
	return s.store.ListJobs(ctx, store.JobFilter{
		Status: models.JobStatusCompleted,
		Kind:   kind,
		Owner:  owner,
		Since:  since,
		Until:  until,
	})
}

// magnitudeField maps each analysis kind to the summary metric used for
// trend sums and hotspot ranking.
var magnitudeField = map[string]string{
	models.KindDeforestation:  "forestLossPercentage",
	models.KindFire:           "activeFires",
	models.KindMining:         "miningSites",
	models.KindBuildingHeight: "averageHeight",
}

// magnitude extracts the ranking metric from a completed job's result summary.
func magnitude(job *models.Job) float64 {
	field, ok := magnitudeField[job.Kind]
	if !ok {
		field = "confidenceScore"
	}
	return summaryNumber(job.Result, field)
}

func confidence(job *models.Job) float64 {
	return summaryNumber(job.Result, "confidenceScore")
}

func summaryNumber(result json.RawMessage, field string) float64 {
	var doc struct {
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(result, &doc); err != nil {
		return 0
	}
	if v, ok := doc.Summary[field].(float64); ok && !math.IsNaN(v) {
		return v
	}
	return 0
}

func inputCenter(input json.RawMessage) (float64, float64) {
	var doc struct {
		Bounds struct {
			MinLat float64 `json:"minLat"`
			MinLng float64 `json:"minLng"`
			MaxLat float64 `json:"maxLat"`
			MaxLng float64 `json:"maxLng"`
		} `json:"bounds"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.Unmarshal(input, &doc); err != nil {
		return 0, 0
	}
	if doc.Bounds.MinLat != 0 || doc.Bounds.MaxLat != 0 || doc.Bounds.MinLng != 0 || doc.Bounds.MaxLng != 0 {
		return (doc.Bounds.MinLat + doc.Bounds.MaxLat) / 2, (doc.Bounds.MinLng + doc.Bounds.MaxLng) / 2
	}
	return doc.Latitude, doc.Longitude
}
