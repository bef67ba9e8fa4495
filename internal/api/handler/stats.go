package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/stats"
)

// StatsService is the read-side aggregation surface.
type StatsService interface {
	Trends(ctx context.Context, params stats.TrendParams) (*stats.TrendReport, error)
	Hotspots(ctx context.Context, params stats.HotspotParams) ([]stats.Hotspot, error)
	Nearby(ctx context.Context, params stats.NearbyParams) (*stats.NearbyReport, error)
}

const (
	defaultNearbyRadiusKm = 10
	maxNearbyRadiusKm     = 100
)

// NewTrendsHandler returns the handler for GET /api/v1/stats/trends.
func NewTrendsHandler(svc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		params := stats.TrendParams{Kind: q.Get("kind")}
		var ok bool
		if params.Since, ok = queryTime(w, q.Get("since"), "since"); !ok {
			return
		}
		if params.Until, ok = queryTime(w, q.Get("until"), "until"); !ok {
			return
		}

		report, err := svc.Trends(r.Context(), params)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, report)
	}
}

// NewHotspotsHandler returns the handler for GET /api/v1/stats/hotspots.
func NewHotspotsHandler(svc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		params := stats.HotspotParams{Kind: q.Get("kind")}
		var ok bool
		if params.Since, ok = queryTime(w, q.Get("since"), "since"); !ok {
			return
		}
		if params.Until, ok = queryTime(w, q.Get("until"), "until"); !ok {
			return
		}

		hotspots, err := svc.Hotspots(r.Context(), params)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if hotspots == nil {
			hotspots = []stats.Hotspot{}
		}
		response.JSON(w, hotspots)
	}
}

// NewNearbyHandler returns the handler for GET /api/v1/stats/nearby. The lat
// and lng parameters are mandatory; radiusKm defaults to 10 and caps at 100.
func NewNearbyHandler(svc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr != nil || lngErr != nil {
			response.Error(w, http.StatusBadRequest, "MISSING_COORDINATES",
				"lat and lng query parameters are required", nil)
			return
		}

		radius := defaultNearbyRadiusKm * 1.0
		if raw := q.Get("radiusKm"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"radiusKm must be a positive number", nil)
				return
			}
			radius = parsed
		}
		if radius > maxNearbyRadiusKm {
			radius = maxNearbyRadiusKm
		}

		params := stats.NearbyParams{Latitude: lat, Longitude: lng, RadiusKm: radius}
		var ok bool
		if params.Since, ok = queryTime(w, q.Get("since"), "since"); !ok {
			return
		}

		report, err := svc.Nearby(r.Context(), params)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, report)
	}
}

// queryTime parses an optional RFC3339 parameter, writing the error response
// itself when the value is malformed.
func queryTime(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			name+" must be a valid RFC3339 timestamp", nil)
		return time.Time{}, false
	}
	return t, true
}
