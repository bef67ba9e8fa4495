package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/orbitalscope/terralens/internal/geo"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
)

// Default lookback for the proximity search when the caller gives none.
const defaultNearbyWindow = 30 * 24 * time.Hour

// NearbyParams describes a point-radius lookup.
type NearbyParams struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Since     time.Time
}

// NearbyReport holds the detections and unresolved alerts within radius, plus
// an overall area risk classification.
type NearbyReport struct {
	Detections     []*models.Detection `json:"detections"`
	Alerts         []*models.Alert     `json:"alerts"`
	CategoryCounts map[string]int      `json:"category_counts"`
	CriticalAlerts int                 `json:"critical_alerts"`
	AreaRisk       string              `json:"area_risk"`
}

// Nearby geometrically filters stored detections by haversine distance and
// pairs them with active alerts in the window. The store query uses a coarse
// bounding box; exact distance filtering happens here.
func (s *Service) Nearby(ctx context.Context, params NearbyParams) (*NearbyReport, error) {
	since := params.Since
	if since.IsZero() {
		since = time.Now().UTC().Add(-defaultNearbyWindow)
	}

	latDelta := params.RadiusKm / 111.32
	lngDelta := latDelta
	if cosLat := math.Cos(params.Latitude * math.Pi / 180); cosLat > 0.01 {
		lngDelta = latDelta / cosLat
	}

	detections, err := s.store.ListDetectionsNear(ctx, store.DetectionFilter{
		MinLat: params.Latitude - latDelta,
		MaxLat: params.Latitude + latDelta,
		MinLng: params.Longitude - lngDelta,
		MaxLng: params.Longitude + lngDelta,
		Since:  since,
	})
	if err != nil {
		return nil, fmt.Errorf("loading detections: %w", err)
	}

	report := &NearbyReport{
		Detections:     []*models.Detection{},
		Alerts:         []*models.Alert{},
		CategoryCounts: map[string]int{},
	}

	for _, d := range detections {
		if geo.HaversineKm(params.Latitude, params.Longitude, d.Latitude, d.Longitude) > params.RadiusKm {
			continue
		}
		report.Detections = append(report.Detections, d)
		report.CategoryCounts[d.Category]++
	}

	active, _, err := s.store.ListAlerts(ctx, store.AlertFilter{
		Status: models.AlertStatusActive,
		Since:  since,
		Limit:  100,
	})
	if err != nil {
		return nil, fmt.Errorf("loading alerts: %w", err)
	}
	for _, a := range active {
		if geo.HaversineKm(params.Latitude, params.Longitude, a.Latitude, a.Longitude) > params.RadiusKm {
			continue
		}
		report.Alerts = append(report.Alerts, a)
		if a.Severity == models.SeverityCritical {
			report.CriticalAlerts++
		}
	}

	report.AreaRisk = classifyAreaRisk(report.CategoryCounts, report.CriticalAlerts)
	return report, nil
}

// classifyAreaRisk derives the overall rating from detection category counts
// and the number of critical alerts in range.
func classifyAreaRisk(categories map[string]int, criticalAlerts int) string {
	switch {
	case criticalAlerts > 0 || categories["active_fire"] > 0:
		return RiskHigh
	case categories["mining_activity"] > 0 || categories["forest_loss"] >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}
