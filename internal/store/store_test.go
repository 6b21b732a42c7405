package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRequest(id, userID string) *RequestRecord {
	now := time.Now().UTC()
	return &RequestRecord{
		RequestID:        id,
		UserID:           userID,
		BuildingID:       "building_001",
		OptimizationType: "energy_efficiency",
		Status:           RequestSubmitted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newJob(id string) *JobRecord {
	now := time.Now().UTC()
	return &JobRecord{
		JobID:            id,
		BuildingID:       "building_001",
		OptimizationType: "energy_efficiency",
		Status:           JobPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestRequestLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.InsertRequest(newRequest("req_1", "user_a")); err != nil {
		t.Fatal(err)
	}

	r, err := s.GetRequest("req_1")
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || r.Status != RequestSubmitted {
		t.Fatalf("fresh request: %+v", r)
	}

	if err := s.SetRequestStatus("req_1", RequestProcessing); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRequestJob("req_1", "job_42"); err != nil {
		t.Fatal(err)
	}

	r, err = s.GetRequest("req_1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != RequestJobRunning || r.DSSJobID.String != "job_42" {
		t.Fatalf("after job hand-off: status=%q job=%q", r.Status, r.DSSJobID.String)
	}

	result := types.JSONText(`{"optimization_score":0.85}`)
	if err := s.CompleteRequest("req_1", result); err != nil {
		t.Fatal(err)
	}
	r, err = s.GetRequest("req_1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != RequestCompleted || r.CompletedAt == nil {
		t.Fatalf("after completion: status=%q completed_at=%v", r.Status, r.CompletedAt)
	}
	if string(r.ResultJSON) != string(result) {
		t.Errorf("result JSON: got %s", r.ResultJSON)
	}
}

func TestGetRequest_Absent(t *testing.T) {
	// WHY: handlers turn a nil record into a 404; absence must not surface
	// as an error.
	t.Parallel()
	s := newTestStore(t)

	r, err := s.GetRequest("req_missing")
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Errorf("expected nil for an absent request, got %+v", r)
	}
}

func TestFailRequest(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.InsertRequest(newRequest("req_f", "user_a")); err != nil {
		t.Fatal(err)
	}
	if err := s.FailRequest("req_f", "dss unreachable"); err != nil {
		t.Fatal(err)
	}

	r, err := s.GetRequest("req_f")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != RequestFailed || r.Error.String != "dss unreachable" {
		t.Fatalf("failed request: status=%q error=%q", r.Status, r.Error.String)
	}
}

func TestFindRequestByUserAndJob(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	req := newRequest("req_cb", "user_a")
	req.DSSJobID = sql.NullString{String: "job_cb", Valid: true}
	if err := s.InsertRequest(req); err != nil {
		t.Fatal(err)
	}

	r, err := s.FindRequestByUserAndJob("user_a", "job_cb")
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || r.RequestID != "req_cb" {
		t.Fatalf("lookup: %+v", r)
	}

	r, err = s.FindRequestByUserAndJob("user_b", "job_cb")
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Errorf("wrong user must not match, got %+v", r)
	}
}

func TestListRequests_NewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	older := newRequest("req_old", "user_a")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	if err := s.InsertRequest(older); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertRequest(newRequest("req_new", "user_a")); err != nil {
		t.Fatal(err)
	}

	requests, err := s.ListRequests()
	if err != nil {
		t.Fatal(err)
	}
	if len(requests) != 2 || requests[0].RequestID != "req_new" {
		t.Fatalf("order: %+v", requests)
	}
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.InsertJob(newJob("job_1")); err != nil {
		t.Fatal(err)
	}

	changed, err := s.SetJobProgress("job_1", JobRunning, 50)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("progress update on a pending job must apply")
	}

	result := types.JSONText(`{"energy_savings_kwh":245.8}`)
	changed, err = s.CompleteJob("job_1", result)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("completion of a running job must apply")
	}

	j, err := s.GetJob("job_1")
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != JobCompleted || j.Progress != 100 || j.CompletedAt == nil {
		t.Fatalf("completed job: %+v", j)
	}
}

func TestCancelledJobStaysCancelled(t *testing.T) {
	// WHY: the simulation loop keeps ticking after a cancellation request;
	// its late updates must not resurrect the job.
	t.Parallel()
	s := newTestStore(t)

	if err := s.InsertJob(newJob("job_c")); err != nil {
		t.Fatal(err)
	}
	if err := s.CancelJob("job_c"); err != nil {
		t.Fatal(err)
	}

	changed, err := s.SetJobProgress("job_c", JobRunning, 75)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("progress update must not apply to a cancelled job")
	}

	changed, err = s.CompleteJob("job_c", types.JSONText(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("completion must not apply to a cancelled job")
	}

	j, err := s.GetJob("job_c")
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != JobCancelled {
		t.Errorf("status: got %q, want %q", j.Status, JobCancelled)
	}
}

func TestOpen_OnDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.InsertJob(newJob("job_d")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening the same file must see the previous state.
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	j, err := s2.GetJob("job_d")
	if err != nil {
		t.Fatal(err)
	}
	if j == nil {
		t.Fatal("job not visible after reopening the on-disk store")
	}
}
