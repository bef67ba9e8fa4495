// Package handler contains one constructor per endpoint. Handlers depend on
// narrow interfaces so tests can stub the services directly.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/orbitalscope/terralens/internal/api/middleware"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/geo"
	"github.com/orbitalscope/terralens/internal/jobs"
	"github.com/orbitalscope/terralens/pkg/models"
)

const maxBodyBytes = 1 << 20

// Submitter admits one analysis job.
type Submitter interface {
	Submit(ctx context.Context, params jobs.SubmitParams) (*jobs.Receipt, error)
}

// Kinds that analyze an area and therefore must carry bounds or point+radius.
var areaKinds = map[string]bool{
	models.KindDeforestation:  true,
	models.KindMining:         true,
	models.KindFire:           true,
	models.KindBuildingHeight: true,
	models.KindSegmentation:   true,
	models.KindImagery:        true,
}

// Kinds that operate on a coordinate; a bounds rectangle or radius is optional.
var pointKinds = map[string]bool{
	models.KindPropertyPredict:   true,
	models.KindInvestment:        true,
	models.KindEnvironmentalRisk: true,
}

// NewSubmitHandler returns the handler for POST /api/v1/analyze and its
// /analyze/{kind} form. The request names its kind (path or body) and either
// an explicit bounds rectangle or a center point with a radius in meters;
// everything else in the body is passed through to the analysis process
// untouched.
func NewSubmitHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read request body", nil)
			return
		}

		var req struct {
			Kind         string      `json:"kind"`
			AnalysisType string      `json:"analysisType"`
			Bounds       *geo.Bounds `json:"bounds"`
			Latitude     *float64    `json:"latitude"`
			Longitude    *float64    `json:"longitude"`
			RadiusMeters *float64    `json:"radiusMeters"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		kind := chi.URLParam(r, "kind")
		if kind == "" {
			kind = req.Kind
		}
		if kind == "" {
			kind = req.AnalysisType
		}
		if kind == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "kind is required", nil)
			return
		}
		if kind == models.KindBatchHeightChunk {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"batch chunks are created via the batch endpoint", nil)
			return
		}

		bounds, errResp := resolveBounds(kind, req.Bounds, req.Latitude, req.Longitude, req.RadiusMeters)
		if errResp != nil {
			response.Error(w, http.StatusBadRequest, errResp.code, errResp.message, nil)
			return
		}

		receipt, err := svc.Submit(r.Context(), jobs.SubmitParams{
			Kind:   kind,
			Owner:  mw.GetOwner(r),
			Bounds: bounds,
			Input:  body,
		})
		if err != nil {
			writeSubmitError(w, err)
			return
		}

		resp := map[string]any{
			"processingId":  receipt.Job.ID,
			"status":        "processing",
			"estimatedTime": receipt.EstimatedSecs,
		}
		if bounds != nil {
			resp["areaKm2"] = receipt.AreaKm2
		}
		response.Accepted(w, resp)
	}
}

type requestError struct {
	code    string
	message string
}

// resolveBounds turns the request geometry into a validated-later rectangle.
// Point kinds only need a coordinate; area kinds need a rectangle one way or
// the other.
func resolveBounds(kind string, bounds *geo.Bounds, lat, lng, radiusMeters *float64) (*geo.Bounds, *requestError) {
	if bounds != nil {
		return bounds, nil
	}

	hasPoint := lat != nil && lng != nil
	if hasPoint && radiusMeters != nil {
		b := geo.FromPointRadius(*lat, *lng, *radiusMeters)
		return &b, nil
	}

	switch {
	case pointKinds[kind]:
		if !hasPoint {
			return nil, &requestError{"MISSING_COORDINATES", "latitude and longitude are required"}
		}
		return nil, nil
	case areaKinds[kind]:
		return nil, &requestError{"MISSING_COORDINATES",
			"bounds, or latitude/longitude with radiusMeters, are required"}
	default:
		return nil, nil
	}
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidKind):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, geo.ErrInvalidBounds):
		response.Error(w, http.StatusBadRequest, "INVALID_BOUNDS", err.Error(), nil)
	case errors.Is(err, geo.ErrAreaTooLarge):
		response.Error(w, http.StatusBadRequest, "AREA_TOO_LARGE", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
