package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
)

// JobGetter loads a single job for polling.
type JobGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type pollResponse struct {
	ProcessingID uuid.UUID       `json:"processingId"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	Metadata     pollMetadata    `json:"metadata"`
}

type pollMetadata struct {
	Kind             string     `json:"kind"`
	Owner            string     `json:"owner"`
	CreatedAt        time.Time  `json:"createdAt"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	ProcessingTimeMs int64      `json:"processingTimeMs,omitempty"`
	BatchID          *uuid.UUID `json:"batchId,omitempty"`
	ChunkIndex       *int       `json:"chunkIndex,omitempty"`
}

// NewPollHandler returns the handler for GET /api/v1/analyze/{jobID}. Clients
// poll until status is completed or failed.
func NewPollHandler(svc JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		job, err := svc.Get(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "No such job", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		resp := pollResponse{
			ProcessingID: job.ID,
			Status:       job.Status,
			Metadata: pollMetadata{
				Kind:             job.Kind,
				Owner:            job.Owner,
				CreatedAt:        job.CreatedAt,
				StartedAt:        job.StartedAt,
				CompletedAt:      job.CompletedAt,
				ProcessingTimeMs: job.ProcessingTime().Milliseconds(),
				BatchID:          job.BatchID,
				ChunkIndex:       job.ChunkIndex,
			},
		}
		if job.Status == models.JobStatusCompleted {
			resp.Result = job.Result
		}
		if job.Status == models.JobStatusFailed && job.ErrorMessage != nil {
			resp.Error = *job.ErrorMessage
		}

		response.JSON(w, resp)
	}
}
