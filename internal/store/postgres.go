package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orbitalscope/terralens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

const jobColumns = `id, kind, owner, status, input, result, error_message, batch_id, chunk_index, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Kind, &j.Owner, &j.Status, &j.Input, &j.Result,
		&j.ErrorMessage, &j.BatchID, &j.ChunkIndex, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, kind, owner, status, input, batch_id, chunk_index, created_at, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Kind, job.Owner, job.Status, job.Input, job.BatchID, job.ChunkIndex,
		job.CreatedAt, job.StartedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// Legal source states for each transition target. Terminal states have no
// outgoing edges, so a terminal job can never be rewritten.
var transitionSources = map[string][]string{
	models.JobStatusProcessing: {models.JobStatusQueued},
	models.JobStatusCompleted:  {models.JobStatusProcessing},
	models.JobStatusFailed:     {models.JobStatusProcessing},
}

func (s *PostgresStore) TransitionJob(ctx context.Context, id uuid.UUID, to string, opts ...JobUpdateOption) (bool, error) {
	sources, ok := transitionSources[to]
	if !ok {
		return false, fmt.Errorf("invalid job status transition target: %s", to)
	}

	params := BuildJobUpdate(opts...)

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2`
	args := []any{id, to}
	argIdx := 3

	if to == models.JobStatusProcessing {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if to == models.JobStatusCompleted || to == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.Result != nil {
		query += fmt.Sprintf(", result = $%d", argIdx)
		args = append(args, params.Result)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	query += fmt.Sprintf(" WHERE id = $1 AND status = ANY($%d)", argIdx)
	args = append(args, sources)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition job to %s: %w", to, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	conditions := []string{"1=1"}
	var args []any
	argIdx := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, filter.Kind)
		argIdx++
	}
	if filter.Owner != "" {
		conditions = append(conditions, fmt.Sprintf("owner = $%d", argIdx))
		args = append(args, filter.Owner)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIdx))
		args = append(args, filter.Until)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	query := fmt.Sprintf(
		`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		jobColumns, strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// --- Detections ---

func (s *PostgresStore) InsertDetections(ctx context.Context, detections []*models.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range detections {
		batch.Queue(
			`INSERT INTO detections (id, job_id, category, confidence, severity, latitude, longitude, attributes, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			d.ID, d.JobID, d.Category, d.Confidence, d.Severity,
			d.Latitude, d.Longitude, d.Attributes, d.DetectedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range detections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListDetectionsNear(ctx context.Context, filter DetectionFilter) ([]*models.Detection, error) {
	conditions := []string{
		"latitude BETWEEN $1 AND $2",
		"longitude BETWEEN $3 AND $4",
	}
	args := []any{filter.MinLat, filter.MaxLat, filter.MinLng, filter.MaxLng}
	argIdx := 5

	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("detected_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	query := fmt.Sprintf(
		`SELECT id, job_id, category, confidence, severity, latitude, longitude, attributes, detected_at
		 FROM detections WHERE %s ORDER BY detected_at DESC LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	var detections []*models.Detection
	for rows.Next() {
		var d models.Detection
		if err := rows.Scan(&d.ID, &d.JobID, &d.Category, &d.Confidence, &d.Severity,
			&d.Latitude, &d.Longitude, &d.Attributes, &d.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		detections = append(detections, &d)
	}
	return detections, rows.Err()
}

// --- Alerts ---

func (s *PostgresStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, source_job_id, owner, zone, category, severity, confidence, latitude, longitude, message, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		alert.ID, alert.SourceJobID, alert.Owner, alert.Zone, alert.Category,
		alert.Severity, alert.Confidence, alert.Latitude, alert.Longitude,
		alert.Message, alert.Status, alert.CreatedAt, alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argIdx := 1

	if filter.Owner != "" {
		conditions = append(conditions, fmt.Sprintf("owner = $%d", argIdx))
		args = append(args, filter.Owner)
		argIdx++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argIdx))
		args = append(args, filter.Severity)
		argIdx++
	}
	if filter.Zone != "" {
		conditions = append(conditions, fmt.Sprintf("zone = $%d", argIdx))
		args = append(args, filter.Zone)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM alerts WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT id, source_job_id, owner, zone, category, severity, confidence, latitude, longitude, message, status, created_at, updated_at
		 FROM alerts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.SourceJobID, &a.Owner, &a.Zone, &a.Category,
			&a.Severity, &a.Confidence, &a.Latitude, &a.Longitude, &a.Message,
			&a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, total, rows.Err()
}

func (s *PostgresStore) UpdateAlertStatus(ctx context.Context, id uuid.UUID, owner, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET status = $3, updated_at = NOW() WHERE id = $1 AND owner = $2`,
		id, owner, status)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Owner, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, owner string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE owner = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, owner string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner = $2 AND deleted_at IS NULL`, id, owner)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Owner, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
