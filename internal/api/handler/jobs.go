package handler

import (
	"context"
	"net/http"
	"time"

	mw "github.com/orbitalscope/terralens/internal/api/middleware"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
)

// JobLister lists jobs for the history endpoint.
type JobLister interface {
	List(ctx context.Context, filter store.JobFilter) ([]*models.Job, error)
}

type jobSummary struct {
	ProcessingID string     `json:"processingId"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// NewListJobsHandler returns the handler for GET /api/v1/jobs, the caller's
// own submission history. Result documents are deliberately excluded; the poll
// endpoint serves those.
func NewListJobsHandler(svc JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		jobs, err := svc.List(r.Context(), store.JobFilter{
			Owner:  mw.GetOwner(r),
			Status: q.Get("status"),
			Kind:   q.Get("kind"),
			Limit:  queryInt(q.Get("limit"), 50),
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		summaries := make([]jobSummary, 0, len(jobs))
		for _, j := range jobs {
			summaries = append(summaries, jobSummary{
				ProcessingID: j.ID.String(),
				Kind:         j.Kind,
				Status:       j.Status,
				CreatedAt:    j.CreatedAt,
				CompletedAt:  j.CompletedAt,
			})
		}
		response.JSON(w, summaries)
	}
}
