package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Analysis kinds. Each kind maps to one external executor script and carries
// its own payload schema and area ceiling.
const (
	KindDeforestation     = "deforestation"
	KindMining            = "mining"
	KindFire              = "fire"
	KindBuildingHeight    = "building-height"
	KindBatchHeightChunk  = "batch-height-chunk"
	KindSegmentation      = "segmentation"
	KindImagery           = "imagery"
	KindPropertyPredict   = "property-prediction"
	KindInvestment        = "investment"
	KindEnvironmentalRisk = "environmental-risk"
)

// OwnerAnonymous is the sentinel owner for unauthenticated submissions.
const OwnerAnonymous = "anonymous"

// Job tracks one unit of asynchronous analysis work. The API returns the job ID
// as processingId on submission; the client polls GET /api/v1/analyze/{jobID}
// until status is completed or failed.
type Job struct {
	ID           uuid.UUID       `db:"id"            json:"id"`
	Kind         string          `db:"kind"          json:"kind"`
	Owner        string          `db:"owner"         json:"owner"`
	Status       string          `db:"status"        json:"status"`
	Input        json.RawMessage `db:"input"         json:"input"`
	Result       json.RawMessage `db:"result"        json:"result,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	BatchID      *uuid.UUID      `db:"batch_id"      json:"batch_id,omitempty"`
	ChunkIndex   *int            `db:"chunk_index"   json:"chunk_index,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	StartedAt    *time.Time      `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ProcessingTime is the externally reported duration: completion minus creation.
// Zero until the job is terminal.
func (j *Job) ProcessingTime() time.Duration {
	if j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.CreatedAt)
}

// ValidKind reports whether kind is one of the supported analysis kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindDeforestation, KindMining, KindFire, KindBuildingHeight,
		KindBatchHeightChunk, KindSegmentation, KindImagery,
		KindPropertyPredict, KindInvestment, KindEnvironmentalRisk:
		return true
	}
	return false
}
