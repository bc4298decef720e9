package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'scheduled',
	categories    JSONB NOT NULL,
	locations     JSONB NOT NULL,
	country       TEXT NOT NULL DEFAULT '',
	min_rating    DOUBLE PRECISION NOT NULL DEFAULT 0,
	target_leads  INTEGER NOT NULL,
	leads_found   INTEGER NOT NULL DEFAULT 0,
	scheduled_for TIMESTAMPTZ,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	last_error    TEXT NOT NULL DEFAULT '',
	procs         JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analyzed_businesses (
	identity      TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	analyzed_at   TIMESTAMPTZ NOT NULL,
	prospect      BOOLEAN NOT NULL DEFAULT false,
	skip_reason   TEXT NOT NULL DEFAULT '',
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	converted     BOOLEAN NOT NULL DEFAULT false,
	lead_id       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	name       TEXT NOT NULL,
	tier       TEXT NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_leads_job_id ON leads(job_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusScheduled
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	categories, err := json.Marshal(job.Categories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal categories")
	}
	locations, err := json.Marshal(job.Locations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal locations")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, categories, locations, country, min_rating, target_leads, scheduled_for, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, string(job.Status), string(categories), string(locations),
		job.Country, job.MinRating, job.TargetLeads, job.ScheduledFor, now, now,
	)
	return eris.Wrap(err, "postgres: insert job")
}

const pgJobColumns = `id, status, categories, locations, country, min_rating, target_leads, leads_found,
	scheduled_for, started_at, completed_at, last_error, procs, created_at, updated_at`

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + pgJobColumns + ` FROM jobs WHERE 1=1`
	var args []any
	n := 1

	if filter.Status != "" {
		query += ` AND status = $1`
		args = append(args, string(filter.Status))
		n++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT $` + itoa(n)
	args = append(args, limit)
	n++

	if filter.Offset > 0 {
		query += ` OFFSET $` + itoa(n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (s *PostgresStore) MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, started_at = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		string(model.JobStatusRunning), startedAt.UTC(), time.Now().UTC(), jobID, string(model.JobStatusScheduled),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark job running %s", jobID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) FinishJob(ctx context.Context, jobID string, status model.JobStatus, leadsFound int, lastError string) (bool, error) {
	if !status.Terminal() {
		return false, eris.Errorf("postgres: %s is not a terminal status", status)
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, leads_found = $2, last_error = $3, completed_at = $4, updated_at = $5
		 WHERE id = $6 AND status NOT IN ($7, $8)`,
		string(status), leadsFound, lastError, now, now,
		jobID, string(model.JobStatusCompleted), string(model.JobStatusFailed),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: finish job %s", jobID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, jobID string, leadsFound int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET leads_found = $1, updated_at = $2 WHERE id = $3`,
		leadsFound, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job progress %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) ListUnfinishedJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgJobColumns+` FROM jobs WHERE status IN ($1, $2) ORDER BY created_at`,
		string(model.JobStatusScheduled), string(model.JobStatusRunning),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unfinished jobs")
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (s *PostgresStore) SaveJobProcs(ctx context.Context, jobID string, procs []model.TrackedProcess) error {
	if procs == nil {
		procs = []model.TrackedProcess{}
	}
	procsJSON, err := json.Marshal(procs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal procs")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET procs = $1, updated_at = $2 WHERE id = $3`,
		string(procsJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save job procs %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) ClearJobProcs(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET procs = '[]', updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "postgres: clear job procs %s", jobID)
}

func (s *PostgresStore) UpsertAnalyzed(ctx context.Context, rec model.AnalyzedBusinessRecord) error {
	if rec.AnalyzedAt.IsZero() {
		rec.AnalyzedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyzed_businesses (identity, name, location, country, analyzed_at, prospect, skip_reason, quality_score, converted, lead_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (identity) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			country = EXCLUDED.country,
			analyzed_at = EXCLUDED.analyzed_at,
			prospect = EXCLUDED.prospect,
			skip_reason = EXCLUDED.skip_reason,
			quality_score = EXCLUDED.quality_score,
			converted = EXCLUDED.converted,
			lead_id = EXCLUDED.lead_id`,
		rec.Identity, rec.Name, rec.Location, rec.Country, rec.AnalyzedAt,
		rec.Prospect, rec.SkipReason, rec.QualityScore, rec.Converted, rec.LeadID,
	)
	return eris.Wrapf(err, "postgres: upsert analyzed %s", rec.Identity)
}

func (s *PostgresStore) GetAnalyzed(ctx context.Context, identity string) (*model.AnalyzedBusinessRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT identity, name, location, country, analyzed_at, prospect, skip_reason, quality_score, converted, lead_id
		 FROM analyzed_businesses WHERE identity = $1`,
		identity,
	)

	var rec model.AnalyzedBusinessRecord
	err := row.Scan(&rec.Identity, &rec.Name, &rec.Location, &rec.Country, &rec.AnalyzedAt,
		&rec.Prospect, &rec.SkipReason, &rec.QualityScore, &rec.Converted, &rec.LeadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get analyzed")
	}
	return &rec, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, jobID string, lead model.EnrichedLead) (string, error) {
	id := uuid.New().String()
	data, err := json.Marshal(lead)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal lead")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, job_id, name, tier, score, data, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, jobID, lead.Name, string(lead.Qualification.Tier), lead.Qualification.Score,
		string(data), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert lead for job %s", jobID)
	}
	return id, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, jobID string) ([]model.EnrichedLead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM leads WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leads for job %s", jobID)
	}
	defer rows.Close()

	var leads []model.EnrichedLead
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		var lead model.EnrichedLead
		if err := json.Unmarshal([]byte(data), &lead); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func collectJobs(rows pgx.Rows) ([]model.Job, error) {
	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
