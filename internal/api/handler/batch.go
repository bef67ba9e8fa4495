package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	mw "github.com/orbitalscope/terralens/internal/api/middleware"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/jobs"
)

// BatchSubmitter admits a batch of height-estimation units.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, params jobs.BatchParams) (*jobs.BatchReceipt, error)
}

// NewBatchHandler returns the handler for
// POST /api/v1/analyze/building-height/batch. The batch fans out into chunk
// jobs, each individually pollable.
func NewBatchHandler(svc BatchSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Buildings []json.RawMessage `json:"buildings"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		receipt, err := svc.SubmitBatch(r.Context(), jobs.BatchParams{
			Owner: mw.GetOwner(r),
			Units: req.Buildings,
		})
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrEmptyBatch):
				response.Error(w, http.StatusBadRequest, "EMPTY_BATCH",
					"buildings must contain at least one unit", nil)
			case errors.Is(err, jobs.ErrBatchTooLarge):
				response.Error(w, http.StatusBadRequest, "BATCH_TOO_LARGE", err.Error(), nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		results := make([]map[string]any, 0, len(receipt.Chunks))
		for _, chunk := range receipt.Chunks {
			results = append(results, map[string]any{
				"processingId": chunk.ID,
				"chunkIndex":   *chunk.ChunkIndex,
				"unitCount":    chunkUnitCount(chunk.Input),
				"status":       chunk.Status,
			})
		}

		response.Accepted(w, map[string]any{
			"batchId":    receipt.BatchID,
			"totalUnits": receipt.TotalUnits,
			"chunks":     len(receipt.Chunks),
			"results":    results,
		})
	}
}

// chunkUnitCount reads how many building units a chunk job carries.
func chunkUnitCount(input json.RawMessage) int {
	var doc struct {
		Buildings []json.RawMessage `json:"buildings"`
	}
	if err := json.Unmarshal(input, &doc); err != nil {
		return 0
	}
	return len(doc.Buildings)
}
