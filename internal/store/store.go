// Package store persists the mock service state: optimization requests on
// the dashboard side and simulation jobs on the DSS side.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	_ "modernc.org/sqlite"
)

// Request statuses as reported by the dashboard API.
const (
	RequestSubmitted  = "submitted"
	RequestProcessing = "processing"
	RequestJobRunning = "dss_job_running"
	RequestCompleted  = "completed"
	RequestFailed     = "failed"
)

// Job statuses as reported by the DSS API.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// RequestRecord is one optimization request tracked by the dashboard.
type RequestRecord struct {
	RequestID        string         `db:"request_id"`
	UserID           string         `db:"user_id"`
	BuildingID       string         `db:"building_id"`
	OptimizationType string         `db:"optimization_type"`
	CallbackURL      sql.NullString `db:"callback_url"`
	Status           string         `db:"status"`
	DSSJobID         sql.NullString `db:"dss_job_id"`
	Error            sql.NullString `db:"error"`
	ResultJSON       types.JSONText `db:"result"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	CompletedAt      *time.Time     `db:"completed_at"`
}

// JobRecord is one simulation job tracked by the DSS service.
type JobRecord struct {
	JobID            string         `db:"job_id"`
	BuildingID       string         `db:"building_id"`
	OptimizationType string         `db:"optimization_type"`
	ParametersJSON   types.JSONText `db:"parameters"`
	CallbackURL      sql.NullString `db:"callback_url"`
	Status           string         `db:"status"`
	Progress         int            `db:"progress"`
	ResultJSON       types.JSONText `db:"result"`
	Error            sql.NullString `db:"error"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	CompletedAt      *time.Time     `db:"completed_at"`
}

// Store is the database handle shared by the mock services.
type Store struct {
	*sqlx.DB
}

// Open creates a store. An empty path opens an in-memory database, matching
// the mock services' default of starting with no state; a non-empty path
// persists across restarts.
func Open(path string) (*Store, error) {
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	if path != "" {
		dsn = "file:" + path + "?_pragma=temp_store(2)&_pragma=journal_mode(wal)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Pin to a single connection: each :memory: connection is a separate
	// database, and sqlite allows one writer anyway.
	db.SetMaxOpenConns(1)

	s := &Store{DB: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	slog.Debug("store initialized", "path", path)
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.Exec(`
		CREATE TABLE IF NOT EXISTS requests (
			request_id        text PRIMARY KEY,
			user_id           text NOT NULL,
			building_id       text NOT NULL,
			optimization_type text NOT NULL,
			callback_url      text,
			status            text NOT NULL,
			dss_job_id        text,
			error             text,
			result            text,
			created_at        timestamp NOT NULL,
			updated_at        timestamp NOT NULL,
			completed_at      timestamp
		);
	`)
	if err != nil {
		return fmt.Errorf("creating requests table: %w", err)
	}

	_, err = s.Exec(`
		CREATE INDEX IF NOT EXISTS idx_requests_user ON requests (user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user index on requests table: %w", err)
	}

	_, err = s.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			job_id            text PRIMARY KEY,
			building_id       text NOT NULL,
			optimization_type text NOT NULL,
			parameters        text,
			callback_url      text,
			status            text NOT NULL,
			progress          integer NOT NULL DEFAULT 0,
			result            text,
			error             text,
			created_at        timestamp NOT NULL,
			updated_at        timestamp NOT NULL,
			completed_at      timestamp
		);
	`)
	if err != nil {
		return fmt.Errorf("creating jobs table: %w", err)
	}
	return nil
}

// InsertRequest stores a new request record.
func (s *Store) InsertRequest(r *RequestRecord) error {
	_, err := s.NamedExec(`
		INSERT INTO requests (request_id, user_id, building_id, optimization_type, callback_url, status, dss_job_id, error, result, created_at, updated_at, completed_at)
		VALUES (:request_id, :user_id, :building_id, :optimization_type, :callback_url, :status, :dss_job_id, :error, :result, :created_at, :updated_at, :completed_at)
	`, r)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	return nil
}

// GetRequest returns the request with the given id, or nil when absent.
func (s *Store) GetRequest(id string) (*RequestRecord, error) {
	var r RequestRecord
	err := s.Get(&r, "SELECT * FROM requests WHERE request_id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return &r, nil
}

// ListRequests returns all requests, newest first.
func (s *Store) ListRequests() ([]RequestRecord, error) {
	var requests []RequestRecord
	err := s.Select(&requests, "SELECT * FROM requests ORDER BY created_at DESC, request_id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return requests, nil
}

// SetRequestStatus moves a request to the given status.
func (s *Store) SetRequestStatus(id, status string) error {
	_, err := s.Exec("UPDATE requests SET status = ?, updated_at = ? WHERE request_id = ?", status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating request status: %w", err)
	}
	return nil
}

// SetRequestJob records the DSS job handed the request and moves it to the
// job-running status.
func (s *Store) SetRequestJob(id, jobID string) error {
	_, err := s.Exec("UPDATE requests SET status = ?, dss_job_id = ?, updated_at = ? WHERE request_id = ?",
		RequestJobRunning, jobID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating request job: %w", err)
	}
	return nil
}

// FailRequest marks a request failed with the given message.
func (s *Store) FailRequest(id, message string) error {
	_, err := s.Exec("UPDATE requests SET status = ?, error = ?, updated_at = ? WHERE request_id = ?",
		RequestFailed, message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failing request: %w", err)
	}
	return nil
}

// CompleteRequest marks a request completed and stores the job result.
func (s *Store) CompleteRequest(id string, result types.JSONText) error {
	now := time.Now().UTC()
	_, err := s.Exec("UPDATE requests SET status = ?, result = ?, updated_at = ?, completed_at = ? WHERE request_id = ?",
		RequestCompleted, result, now, now, id)
	if err != nil {
		return fmt.Errorf("completing request: %w", err)
	}
	return nil
}

// FindRequestByUserAndJob locates the request a DSS callback belongs to, or
// nil when no request of that user references the job.
func (s *Store) FindRequestByUserAndJob(userID, jobID string) (*RequestRecord, error) {
	var r RequestRecord
	err := s.Get(&r, "SELECT * FROM requests WHERE user_id = ? AND dss_job_id = ?", userID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding request by user and job: %w", err)
	}
	return &r, nil
}

// InsertJob stores a new job record.
func (s *Store) InsertJob(j *JobRecord) error {
	_, err := s.NamedExec(`
		INSERT INTO jobs (job_id, building_id, optimization_type, parameters, callback_url, status, progress, result, error, created_at, updated_at, completed_at)
		VALUES (:job_id, :building_id, :optimization_type, :parameters, :callback_url, :status, :progress, :result, :error, :created_at, :updated_at, :completed_at)
	`, j)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// GetJob returns the job with the given id, or nil when absent.
func (s *Store) GetJob(id string) (*JobRecord, error) {
	var j JobRecord
	err := s.Get(&j, "SELECT * FROM jobs WHERE job_id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &j, nil
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs() ([]JobRecord, error) {
	var jobs []JobRecord
	err := s.Select(&jobs, "SELECT * FROM jobs ORDER BY created_at DESC, job_id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

// SetJobProgress moves a job to the given status and progress percentage.
// Cancelled jobs are left untouched so a cancellation cannot be overwritten
// by a lagging simulation step; the returned flag reports whether the row
// changed.
func (s *Store) SetJobProgress(id, status string, progress int) (bool, error) {
	res, err := s.Exec("UPDATE jobs SET status = ?, progress = ?, updated_at = ? WHERE job_id = ? AND status NOT IN (?, ?, ?)",
		status, progress, time.Now().UTC(), id, JobCancelled, JobCompleted, JobFailed)
	if err != nil {
		return false, fmt.Errorf("updating job progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating job progress: %w", err)
	}
	return n > 0, nil
}

// CompleteJob marks a job completed with full progress and the result payload.
func (s *Store) CompleteJob(id string, result types.JSONText) (bool, error) {
	now := time.Now().UTC()
	res, err := s.Exec("UPDATE jobs SET status = ?, progress = 100, result = ?, updated_at = ?, completed_at = ? WHERE job_id = ? AND status NOT IN (?, ?, ?)",
		JobCompleted, result, now, now, id, JobCancelled, JobCompleted, JobFailed)
	if err != nil {
		return false, fmt.Errorf("completing job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("completing job: %w", err)
	}
	return n > 0, nil
}

// FailJob marks a job failed with the given message.
func (s *Store) FailJob(id, message string) error {
	_, err := s.Exec("UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE job_id = ?",
		JobFailed, message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	return nil
}

// CancelJob marks a job cancelled.
func (s *Store) CancelJob(id string) error {
	_, err := s.Exec("UPDATE jobs SET status = ?, updated_at = ? WHERE job_id = ?",
		JobCancelled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("cancelling job: %w", err)
	}
	return nil
}
