package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// TransitionJob moves a job to the given status as a single conditional
	// update: the write only happens if the job is currently in a state the
	// target is reachable from. Returns false when another writer got there
	// first (or the job does not exist), so concurrent executors can never
	// both claim the same record.
	TransitionJob(ctx context.Context, id uuid.UUID, to string, opts ...JobUpdateOption) (bool, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)

	InsertDetections(ctx context.Context, detections []*models.Detection) error
	ListDetectionsNear(ctx context.Context, filter DetectionFilter) ([]*models.Detection, error)

	CreateAlert(ctx context.Context, alert *models.Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, int, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, owner, status string) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, owner string) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, owner string) error
}

// JobFilter selects jobs for listing and aggregation queries.
type JobFilter struct {
	Status string
	Kind   string
	Owner  string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// DetectionFilter selects detections inside a bounding box and time window.
// The box is a coarse SQL prefilter; callers refine with haversine distance.
type DetectionFilter struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
	Since  time.Time
	Limit  int
}

// AlertFilter selects alerts for the retrieval API and the proximity lookup.
type AlertFilter struct {
	Owner    string
	Category string
	Severity string
	Zone     string
	Status   string
	Since    time.Time
	Page     int
	Limit    int
}

// JobUpdate carries the optional fields written alongside a transition.
// Exported so fake stores can interpret the options the same way the real one
// does.
type JobUpdate struct {
	Result       json.RawMessage
	ErrorMessage *string
}

type JobUpdateOption func(*JobUpdate)

// BuildJobUpdate folds the options into one update descriptor.
func BuildJobUpdate(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// WithResult attaches the executor's parsed output to a completed transition.
func WithResult(result json.RawMessage) JobUpdateOption {
	return func(u *JobUpdate) {
		u.Result = result
	}
}

// WithErrorMessage attaches the failure description to a failed transition.
func WithErrorMessage(msg string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.ErrorMessage = &msg
	}
}
