// Package jobs is the orchestration core: it admits analysis requests as
// asynchronous jobs, drives them to completed or failed, and fans completed
// results out to the detection and alert stores. Direct submissions enter the
// state machine at processing; batch chunks enter at queued and are claimed
// by the worker that runs them.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/internal/alerts"
	"github.com/orbitalscope/terralens/internal/cache"
	"github.com/orbitalscope/terralens/internal/executor"
	"github.com/orbitalscope/terralens/internal/geo"
	"github.com/orbitalscope/terralens/internal/metrics"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
)

var ErrInvalidKind = errors.New("unsupported analysis kind")

// Cached status entries are a fast path for pollers, not the source of truth.
const statusCacheTTL = time.Hour

// Service owns the asynchronous job lifecycle. Submission writes the durable
// record before anything is scheduled, so an accepted processingId can always
// be polled even if the process dies immediately after.
type Service struct {
	store     store.Store
	cache     cache.Cache
	invoker   executor.Invoker
	evaluator *alerts.Evaluator
	metrics   *metrics.Metrics
	pool      *dispatcher

	newID func() uuid.UUID
	now   func() time.Time
}

func NewService(st store.Store, c cache.Cache, inv executor.Invoker, m *metrics.Metrics, workers int) *Service {
	return &Service{
		store:     st,
		cache:     c,
		invoker:   inv,
		evaluator: alerts.NewEvaluator(st),
		metrics:   m,
		pool:      newDispatcher(workers),
		newID:     uuid.New,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the executor worker pool. Workers stop when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.pool.start(ctx, s.runJob)
}

// Wait blocks until all workers have drained after cancellation.
func (s *Service) Wait() {
	s.pool.wait()
}

// SubmitParams is one admission request. Bounds is nil for kinds that operate
// on point parameters rather than an area.
type SubmitParams struct {
	Kind   string
	Owner  string
	Bounds *geo.Bounds
	Input  json.RawMessage
}

// Receipt is what the API returns on admission.
type Receipt struct {
	Job           *models.Job
	AreaKm2       float64
	EstimatedSecs int
}

// Submit validates the request, persists the job already in its processing
// state, and hands it to the worker pool. Validation failures reject
// synchronously; nothing is written unless the request is admissible.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*Receipt, error) {
	if !models.ValidKind(params.Kind) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, params.Kind)
	}

	owner := params.Owner
	if owner == "" {
		owner = models.OwnerAnonymous
	}

	var area float64
	if params.Bounds != nil {
		var err error
		area, err = geo.CheckArea(*params.Bounds, params.Kind)
		if err != nil {
			return nil, err
		}
	}

	// Direct submissions skip the queued state: the caller is told the job is
	// processing, and a poll must never contradict that. The queued state and
	// its claim transition are reserved for batch chunks.
	now := s.now()
	job := &models.Job{
		ID:        s.newID(),
		Kind:      params.Kind,
		Owner:     owner,
		Status:    models.JobStatusProcessing,
		Input:     params.Input,
		CreatedAt: now,
		StartedAt: &now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persisting job: %w", err)
	}

	s.metrics.JobsSubmitted.WithLabelValues(job.Kind).Inc()
	s.cacheStatus(ctx, job.ID, job.Status)

	if err := s.pool.enqueue(ctx, task{id: job.ID, claimed: true}); err != nil {
		// The durable record exists; the job stays put until requeued.
		slog.Warn("job admitted but not enqueued", "job_id", job.ID, "error", err)
	}

	return &Receipt{
		Job:           job,
		AreaKm2:       area,
		EstimatedSecs: EstimatedSeconds(job.Kind),
	}, nil
}

// Get returns the job for polling. Callers see exactly the persisted state.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}

// List exposes filtered job listings for the history endpoints.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]*models.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// runJob executes one job end to end. Unclaimed tasks (batch chunks) must win
// the conditional claim transition first: when two workers race for the same
// record, exactly one wins and the other walks away without side effects.
func (s *Service) runJob(ctx context.Context, t task) {
	id := t.id
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		slog.Error("loading admitted job", "job_id", id, "error", err)
		return
	}

	if !t.claimed {
		claimed, err := s.store.TransitionJob(ctx, id, models.JobStatusProcessing)
		if err != nil {
			slog.Error("claiming job", "job_id", id, "error", err)
			return
		}
		if !claimed {
			return
		}
		s.cacheStatus(ctx, id, models.JobStatusProcessing)
	}
	slog.Info("job started", "job_id", id, "kind", job.Kind)

	var params map[string]any
	if len(job.Input) > 0 {
		if err := json.Unmarshal(job.Input, &params); err != nil {
			s.failJob(ctx, job, fmt.Errorf("decoding job input: %w", err))
			return
		}
	}

	result, err := s.invoker.Invoke(ctx, executor.Request{
		JobID:  job.ID,
		Kind:   job.Kind,
		Params: params,
	})
	if err != nil {
		s.failJob(ctx, job, err)
		return
	}
	s.completeJob(ctx, job, result)
}

func (s *Service) completeJob(ctx context.Context, job *models.Job, result json.RawMessage) {
	ok, err := s.store.TransitionJob(ctx, job.ID, models.JobStatusCompleted, store.WithResult(result))
	if err != nil {
		slog.Error("completing job", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		slog.Warn("completed transition lost", "job_id", job.ID)
		return
	}

	detections := ExtractDetections(job, result, s.now(), s.newID)
	if len(detections) > 0 {
		if err := s.store.InsertDetections(ctx, detections); err != nil {
			slog.Error("persisting detections", "job_id", job.ID, "error", err)
		}
	}

	// Alert evaluation reads the result document off the job record.
	job.Result = result
	job.Status = models.JobStatusCompleted
	created := s.evaluator.EvaluateJob(ctx, job, detections, confidenceThreshold(job.Input))
	if created > 0 {
		s.metrics.AlertsCreated.Add(float64(created))
	}

	s.metrics.JobsCompleted.WithLabelValues(job.Kind).Inc()
	s.metrics.JobDuration.WithLabelValues(job.Kind).Observe(s.now().Sub(job.CreatedAt).Seconds())
	s.cacheStatus(ctx, job.ID, models.JobStatusCompleted)
	slog.Info("job completed", "job_id", job.ID, "kind", job.Kind,
		"detections", len(detections), "alerts", created)
}

func (s *Service) failJob(ctx context.Context, job *models.Job, cause error) {
	ok, err := s.store.TransitionJob(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorMessage(cause.Error()))
	if err != nil {
		slog.Error("failing job", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		slog.Warn("failed transition lost", "job_id", job.ID)
		return
	}

	s.metrics.JobsFailed.WithLabelValues(job.Kind).Inc()
	s.metrics.JobDuration.WithLabelValues(job.Kind).Observe(s.now().Sub(job.CreatedAt).Seconds())
	s.cacheStatus(ctx, job.ID, models.JobStatusFailed)
	slog.Warn("job failed", "job_id", job.ID, "kind", job.Kind, "error", cause)
}

// confidenceThreshold reads the caller-supplied alert threshold out of the
// submission payload. Absent or non-positive values fall back to the default.
func confidenceThreshold(input json.RawMessage) float64 {
	var doc struct {
		ConfidenceThreshold float64 `json:"confidenceThreshold"`
	}
	if err := json.Unmarshal(input, &doc); err != nil || doc.ConfidenceThreshold <= 0 {
		return alerts.DefaultConfidenceThreshold
	}
	return doc.ConfidenceThreshold
}

// cacheStatus is strictly best-effort; a cache outage never affects a job.
func (s *Service) cacheStatus(ctx context.Context, id uuid.UUID, status string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJobStatus(ctx, id, status, statusCacheTTL); err != nil {
		slog.Debug("status cache write failed", "job_id", id, "error", err)
	}
}

// estimatedSeconds is the advertised wall-clock estimate per kind, surfaced in
// the admission response so clients can pick a sane polling interval.
var estimatedSeconds = map[string]int{
	models.KindDeforestation:     45,
	models.KindMining:            60,
	models.KindFire:              30,
	models.KindBuildingHeight:    25,
	models.KindBatchHeightChunk:  120,
	models.KindSegmentation:      180,
	models.KindImagery:           15,
	models.KindPropertyPredict:   10,
	models.KindInvestment:        10,
	models.KindEnvironmentalRisk: 60,
}

func EstimatedSeconds(kind string) int {
	if secs, ok := estimatedSeconds[kind]; ok {
		return secs
	}
	return 60
}
