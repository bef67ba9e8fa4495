package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/internal/executor"
	"github.com/orbitalscope/terralens/internal/geo"
	"github.com/orbitalscope/terralens/internal/metrics"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/orbitalscope/terralens/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with the same conditional-transition
// semantics as the SQL implementation.
type memStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*models.Job
	detections []*models.Detection
	alerts     []*models.Alert
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[uuid.UUID]*models.Job)}
}

var memTransitionSources = map[string][]string{
	models.JobStatusProcessing: {models.JobStatusQueued},
	models.JobStatusCompleted:  {models.JobStatusProcessing},
	models.JobStatusFailed:     {models.JobStatusProcessing},
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return store.ErrDuplicateKey
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) TransitionJob(_ context.Context, id uuid.UUID, to string, opts ...store.JobUpdateOption) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return false, nil
	}
	legal := false
	for _, src := range memTransitionSources[to] {
		if j.Status == src {
			legal = true
			break
		}
	}
	if !legal {
		return false, nil
	}

	update := store.BuildJobUpdate(opts...)
	now := time.Now().UTC()
	j.Status = to
	switch to {
	case models.JobStatusProcessing:
		j.StartedAt = &now
	case models.JobStatusCompleted, models.JobStatusFailed:
		j.CompletedAt = &now
	}
	if update.Result != nil {
		j.Result = update.Result
	}
	if update.ErrorMessage != nil {
		j.ErrorMessage = update.ErrorMessage
	}
	return true, nil
}

func (m *memStore) ListJobs(_ context.Context, filter store.JobFilter) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) InsertDetections(_ context.Context, detections []*models.Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = append(m.detections, detections...)
	return nil
}

func (m *memStore) ListDetectionsNear(context.Context, store.DetectionFilter) ([]*models.Detection, error) {
	return nil, nil
}

func (m *memStore) CreateAlert(_ context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *memStore) ListAlerts(context.Context, store.AlertFilter) ([]*models.Alert, int, error) {
	return nil, 0, nil
}

func (m *memStore) UpdateAlertStatus(context.Context, uuid.UUID, string, string) error {
	return nil
}

func (m *memStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error { return nil }
func (m *memStore) CreateAPIKey(context.Context, *models.APIKey) error    { return nil }
func (m *memStore) ListAPIKeys(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) RevokeAPIKey(context.Context, uuid.UUID, string) error { return nil }

// stubInvoker returns a canned result or error per invocation.
type stubInvoker struct {
	mu      sync.Mutex
	result  json.RawMessage
	err     error
	invoked []executor.Request
}

func (f *stubInvoker) Invoke(_ context.Context, req executor.Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoked = append(f.invoked, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestService(st store.Store, inv executor.Invoker) *Service {
	return NewService(st, nil, inv, metrics.New(prometheus.NewRegistry()), 2)
}

func validBounds() *geo.Bounds {
	return &geo.Bounds{MinLat: -3.259, MinLng: -64.259, MaxLat: -3.241, MaxLng: -64.241}
}

func TestSubmit_PersistsProcessingJob(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, &stubInvoker{})

	receipt, err := svc.Submit(context.Background(), SubmitParams{
		Kind:   models.KindDeforestation,
		Owner:  "acme",
		Bounds: validBounds(),
		Input:  json.RawMessage(`{"bounds":{"minLat":-3.259,"minLng":-64.259,"maxLat":-3.241,"maxLng":-64.241}}`),
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusProcessing, receipt.Job.Status)
	assert.Equal(t, "acme", receipt.Job.Owner)
	assert.Greater(t, receipt.AreaKm2, 0.0)
	assert.Equal(t, 45, receipt.EstimatedSecs)

	// Workers never started, so this is what an immediate poll observes.
	stored, err := st.GetJob(context.Background(), receipt.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, stored.Status)
	require.NotNil(t, stored.StartedAt)
}

func TestSubmit_DefaultsOwnerToAnonymous(t *testing.T) {
	svc := newTestService(newMemStore(), &stubInvoker{})

	receipt, err := svc.Submit(context.Background(), SubmitParams{
		Kind:  models.KindImagery,
		Input: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OwnerAnonymous, receipt.Job.Owner)
}

func TestSubmit_RejectsUnknownKind(t *testing.T) {
	svc := newTestService(newMemStore(), &stubInvoker{})

	_, err := svc.Submit(context.Background(), SubmitParams{Kind: "weather"})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestSubmit_RejectsOversizedArea(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, &stubInvoker{})

	// Roughly 150 km², over the 100 km² building-height ceiling.
	_, err := svc.Submit(context.Background(), SubmitParams{
		Kind:   models.KindBuildingHeight,
		Bounds: &geo.Bounds{MinLat: 0, MinLng: 0, MaxLat: 0.11, MaxLng: 0.11},
	})
	assert.ErrorIs(t, err, geo.ErrAreaTooLarge)
	assert.Empty(t, st.jobs)
}

func TestSubmit_RejectsInvertedBounds(t *testing.T) {
	svc := newTestService(newMemStore(), &stubInvoker{})

	_, err := svc.Submit(context.Background(), SubmitParams{
		Kind:   models.KindDeforestation,
		Bounds: &geo.Bounds{MinLat: 5, MinLng: 0, MaxLat: 1, MaxLng: 1},
	})
	assert.ErrorIs(t, err, geo.ErrInvalidBounds)
}

func TestRunJob_CompletesAndFansOut(t *testing.T) {
	st := newMemStore()
	inv := &stubInvoker{result: json.RawMessage(`{
		"summary": {"forestLossPercentage": 18.2, "confidenceScore": 91},
		"detections": [
			{"category": "forest_loss", "confidence": 92, "latitude": -3.25, "longitude": -64.25, "areaKm2": 1.2}
		]
	}`)}
	svc := newTestService(st, inv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	receipt, err := svc.Submit(ctx, SubmitParams{
		Kind:   models.KindDeforestation,
		Owner:  "acme",
		Bounds: validBounds(),
		Input:  json.RawMessage(`{"zone":"amazon-west","bounds":{"minLat":-3.259,"minLng":-64.259,"maxLat":-3.241,"maxLng":-64.241}}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := st.GetJob(ctx, receipt.Job.ID)
		return err == nil && j.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	job, err := st.GetJob(ctx, receipt.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.JSONEq(t, string(inv.result), string(job.Result))
	assert.Nil(t, job.ErrorMessage)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.detections, 1)
	assert.Equal(t, "forest_loss", st.detections[0].Category)
	assert.Equal(t, 92.0, st.detections[0].Confidence)

	// One per-detection alert plus the >15% forest-loss aggregate.
	require.Len(t, st.alerts, 2)
	assert.Equal(t, models.SeverityCritical, st.alerts[1].Severity)
	assert.Equal(t, "amazon-west", st.alerts[1].Zone)
}

func TestRunJob_FailureRecordsErrorMessage(t *testing.T) {
	st := newMemStore()
	inv := &stubInvoker{err: errors.New("analysis process exited with code 1: no imagery available")}
	svc := newTestService(st, inv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	receipt, err := svc.Submit(ctx, SubmitParams{
		Kind:   models.KindFire,
		Bounds: validBounds(),
		Input:  json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := st.GetJob(ctx, receipt.Job.ID)
		return err == nil && j.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	job, err := st.GetJob(ctx, receipt.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "no imagery available")
	assert.Nil(t, job.Result)
	assert.Empty(t, st.detections)
}

func TestRunJob_SkipsAlreadyClaimedChunk(t *testing.T) {
	st := newMemStore()
	inv := &stubInvoker{result: json.RawMessage(`{"summary":{}}`)}
	svc := newTestService(st, inv)

	// A chunk another worker already moved to processing.
	job := &models.Job{
		ID:        uuid.New(),
		Kind:      models.KindBatchHeightChunk,
		Owner:     models.OwnerAnonymous,
		Status:    models.JobStatusProcessing,
		Input:     json.RawMessage(`{}`),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateJob(context.Background(), job))

	svc.runJob(context.Background(), task{id: job.ID})

	inv.mu.Lock()
	defer inv.mu.Unlock()
	assert.Empty(t, inv.invoked, "a claimed chunk must not be executed twice")
}

func TestRunJob_PassesInputAsExecutorParams(t *testing.T) {
	st := newMemStore()
	inv := &stubInvoker{result: json.RawMessage(`{"summary":{}}`)}
	svc := newTestService(st, inv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	receipt, err := svc.Submit(ctx, SubmitParams{
		Kind:  models.KindImagery,
		Input: json.RawMessage(`{"zoom": 14, "bounds": {"minLat": -3.259, "minLng": -64.259, "maxLat": -3.241, "maxLng": -64.241}}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := st.GetJob(ctx, receipt.Job.ID)
		return err == nil && j.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	require.Len(t, inv.invoked, 1)
	assert.Equal(t, receipt.Job.ID, inv.invoked[0].JobID)
	assert.Equal(t, models.KindImagery, inv.invoked[0].Kind)
	assert.Equal(t, 14.0, inv.invoked[0].Params["zoom"])
}

func TestRunJob_CallerSuppliedConfidenceThreshold(t *testing.T) {
	st := newMemStore()
	inv := &stubInvoker{result: json.RawMessage(`{
		"summary": {"forestLossPercentage": 2.0},
		"detections": [
			{"category": "forest_loss", "confidence": 92, "latitude": -3.25, "longitude": -64.25}
		]
	}`)}
	svc := newTestService(st, inv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	submit := func(input string) {
		t.Helper()
		receipt, err := svc.Submit(ctx, SubmitParams{
			Kind:   models.KindDeforestation,
			Bounds: validBounds(),
			Input:  json.RawMessage(input),
		})
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			j, err := st.GetJob(ctx, receipt.Job.ID)
			return err == nil && j.Terminal()
		}, 2*time.Second, 10*time.Millisecond)
	}

	// A 95 threshold silences the 92-confidence detection.
	submit(`{"confidenceThreshold": 95}`)
	st.mu.Lock()
	assert.Empty(t, st.alerts)
	st.mu.Unlock()

	// Without a caller threshold the default (70) lets it through.
	submit(`{}`)
	st.mu.Lock()
	assert.Len(t, st.alerts, 1)
	st.mu.Unlock()
}

func TestConfidenceThreshold(t *testing.T) {
	assert.Equal(t, 95.0, confidenceThreshold(json.RawMessage(`{"confidenceThreshold": 95}`)))
	assert.Equal(t, 70.0, confidenceThreshold(json.RawMessage(`{}`)))
	assert.Equal(t, 70.0, confidenceThreshold(json.RawMessage(`{"confidenceThreshold": -5}`)))
	assert.Equal(t, 70.0, confidenceThreshold(nil))
}

func TestEstimatedSeconds(t *testing.T) {
	assert.Equal(t, 45, EstimatedSeconds(models.KindDeforestation))
	assert.Equal(t, 180, EstimatedSeconds(models.KindSegmentation))
	assert.Equal(t, 60, EstimatedSeconds("something-else"))
}
