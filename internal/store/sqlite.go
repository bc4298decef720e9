package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'scheduled',
	categories    TEXT NOT NULL,
	locations     TEXT NOT NULL,
	country       TEXT NOT NULL DEFAULT '',
	min_rating    REAL NOT NULL DEFAULT 0,
	target_leads  INTEGER NOT NULL,
	leads_found   INTEGER NOT NULL DEFAULT 0,
	scheduled_for DATETIME,
	started_at    DATETIME,
	completed_at  DATETIME,
	last_error    TEXT NOT NULL DEFAULT '',
	procs         TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analyzed_businesses (
	identity      TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	analyzed_at   DATETIME NOT NULL,
	prospect      INTEGER NOT NULL DEFAULT 0,
	skip_reason   TEXT NOT NULL DEFAULT '',
	quality_score REAL NOT NULL DEFAULT 0,
	converted     INTEGER NOT NULL DEFAULT 0,
	lead_id       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	name       TEXT NOT NULL,
	tier       TEXT NOT NULL,
	score      REAL NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_leads_job_id ON leads(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
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
		return eris.Wrap(err, "sqlite: marshal categories")
	}
	locations, err := json.Marshal(job.Locations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal locations")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, categories, locations, country, min_rating, target_leads, scheduled_for, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), string(categories), string(locations),
		job.Country, job.MinRating, job.TargetLeads, job.ScheduledFor, now, now,
	)
	return eris.Wrap(err, "sqlite: insert job")
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.JobStatusRunning), startedAt.UTC(), time.Now().UTC(), jobID, string(model.JobStatusScheduled),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark job running %s", jobID)
	}
	n, err := res.RowsAffected()
	return n == 1, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) FinishJob(ctx context.Context, jobID string, status model.JobStatus, leadsFound int, lastError string) (bool, error) {
	if !status.Terminal() {
		return false, eris.Errorf("sqlite: %s is not a terminal status", status)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, leads_found = ?, last_error = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		string(status), leadsFound, lastError, now, now,
		jobID, string(model.JobStatusCompleted), string(model.JobStatusFailed),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: finish job %s", jobID)
	}
	n, err := res.RowsAffected()
	return n == 1, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, jobID string, leadsFound int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET leads_found = ?, updated_at = ? WHERE id = ?`,
		leadsFound, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job progress %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) ListUnfinishedJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?) ORDER BY created_at`,
		string(model.JobStatusScheduled), string(model.JobStatusRunning),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unfinished jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list unfinished iterate")
}

func (s *SQLiteStore) SaveJobProcs(ctx context.Context, jobID string, procs []model.TrackedProcess) error {
	if procs == nil {
		procs = []model.TrackedProcess{}
	}
	procsJSON, err := json.Marshal(procs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal procs")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET procs = ?, updated_at = ? WHERE id = ?`,
		string(procsJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save job procs %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) ClearJobProcs(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET procs = '[]', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "sqlite: clear job procs %s", jobID)
}

func (s *SQLiteStore) UpsertAnalyzed(ctx context.Context, rec model.AnalyzedBusinessRecord) error {
	if rec.AnalyzedAt.IsZero() {
		rec.AnalyzedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyzed_businesses (identity, name, location, country, analyzed_at, prospect, skip_reason, quality_score, converted, lead_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			country = excluded.country,
			analyzed_at = excluded.analyzed_at,
			prospect = excluded.prospect,
			skip_reason = excluded.skip_reason,
			quality_score = excluded.quality_score,
			converted = excluded.converted,
			lead_id = excluded.lead_id`,
		rec.Identity, rec.Name, rec.Location, rec.Country, rec.AnalyzedAt,
		rec.Prospect, rec.SkipReason, rec.QualityScore, rec.Converted, rec.LeadID,
	)
	return eris.Wrapf(err, "sqlite: upsert analyzed %s", rec.Identity)
}

func (s *SQLiteStore) GetAnalyzed(ctx context.Context, identity string) (*model.AnalyzedBusinessRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identity, name, location, country, analyzed_at, prospect, skip_reason, quality_score, converted, lead_id
		 FROM analyzed_businesses WHERE identity = ?`,
		identity,
	)

	var rec model.AnalyzedBusinessRecord
	err := row.Scan(&rec.Identity, &rec.Name, &rec.Location, &rec.Country, &rec.AnalyzedAt,
		&rec.Prospect, &rec.SkipReason, &rec.QualityScore, &rec.Converted, &rec.LeadID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get analyzed")
	}
	return &rec, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, jobID string, lead model.EnrichedLead) (string, error) {
	id := uuid.New().String()
	data, err := json.Marshal(lead)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal lead")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, job_id, name, tier, score, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, jobID, lead.Name, string(lead.Qualification.Tier), lead.Qualification.Score,
		string(data), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert lead for job %s", jobID)
	}
	return id, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, jobID string) ([]model.EnrichedLead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM leads WHERE job_id = ? ORDER BY created_at`, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list leads for job %s", jobID)
	}
	defer rows.Close()

	var leads []model.EnrichedLead
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		var lead model.EnrichedLead
		if err := json.Unmarshal([]byte(data), &lead); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

// helpers

const jobColumns = `id, status, categories, locations, country, min_rating, target_leads, leads_found,
	scheduled_for, started_at, completed_at, last_error, procs, created_at, updated_at`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var status, categoriesJSON, locationsJSON, procsJSON string
	var scheduledFor, startedAt, completedAt sql.NullTime

	err := row.Scan(&j.ID, &status, &categoriesJSON, &locationsJSON, &j.Country, &j.MinRating,
		&j.TargetLeads, &j.LeadsFound, &scheduledFor, &startedAt, &completedAt,
		&j.LastError, &procsJSON, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan job")
	}

	j.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(categoriesJSON), &j.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	if err := json.Unmarshal([]byte(locationsJSON), &j.Locations); err != nil {
		return nil, eris.Wrap(err, "unmarshal locations")
	}
	if err := json.Unmarshal([]byte(procsJSON), &j.Procs); err != nil {
		return nil, eris.Wrap(err, "unmarshal procs")
	}
	if scheduledFor.Valid {
		j.ScheduledFor = &scheduledFor.Time
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}
