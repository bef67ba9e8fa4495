package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/pkg/models"
)

const (
	// A batch request carries at most this many building units.
	maxBatchUnits = 1000
	// Units per chunk job. A full batch fans out into ceil(N/50) jobs.
	batchChunkSize = 50
)

var (
	ErrEmptyBatch    = errors.New("batch contains no units")
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d units", maxBatchUnits)
)

// BatchParams is one batch height-estimation request: a list of building
// descriptors to be processed in chunks.
type BatchParams struct {
	Owner string
	Units []json.RawMessage
}

// BatchReceipt describes the fan-out. Chunks are returned in index order; the
// client tracks completion by polling each chunk's processingId.
type BatchReceipt struct {
	BatchID    uuid.UUID
	TotalUnits int
	Chunks     []*models.Job
}

// SubmitBatch splits the units into fixed-size chunks and admits one job per
// chunk, all sharing a batch ID. Every chunk row is written before any chunk is
// scheduled, so a partially scheduled batch is still fully pollable.
func (s *Service) SubmitBatch(ctx context.Context, params BatchParams) (*BatchReceipt, error) {
	if len(params.Units) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(params.Units) > maxBatchUnits {
		return nil, ErrBatchTooLarge
	}

	owner := params.Owner
	if owner == "" {
		owner = models.OwnerAnonymous
	}

	batchID := s.newID()
	now := s.now()

	var chunks []*models.Job
	for start := 0; start < len(params.Units); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(params.Units) {
			end = len(params.Units)
		}
		index := start / batchChunkSize

		input, err := json.Marshal(map[string]any{
			"batchId":    batchID.String(),
			"chunkIndex": index,
			"buildings":  params.Units[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("encoding chunk %d: %w", index, err)
		}

		idx := index
		job := &models.Job{
			ID:         s.newID(),
			Kind:       models.KindBatchHeightChunk,
			Owner:      owner,
			Status:     models.JobStatusQueued,
			Input:      input,
			BatchID:    &batchID,
			ChunkIndex: &idx,
			CreatedAt:  now,
		}
		if err := s.store.CreateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("persisting chunk %d: %w", index, err)
		}
		s.metrics.JobsSubmitted.WithLabelValues(job.Kind).Inc()
		chunks = append(chunks, job)
	}

	for _, chunk := range chunks {
		s.cacheStatus(ctx, chunk.ID, chunk.Status)
		if err := s.pool.enqueue(ctx, task{id: chunk.ID}); err != nil {
			slog.Warn("chunk admitted but not enqueued", "job_id", chunk.ID, "error", err)
		}
	}

	return &BatchReceipt{
		BatchID:    batchID,
		TotalUnits: len(params.Units),
		Chunks:     chunks,
	}, nil
}
