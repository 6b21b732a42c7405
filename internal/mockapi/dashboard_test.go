package mockapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Data-Cellar/dss-sequence-example/internal/store"
)

// newDashboardServer starts a dashboard whose SelfURL points back at its own
// test listener, so DSS callbacks can reach the webhook endpoint.
func newDashboardServer(t *testing.T, dssURL, apiKey string) (*httptest.Server, *store.Store) {
	t.Helper()
	st := newTestStore(t)

	// The listener must exist before the dashboard can learn its own URL.
	srv := httptest.NewUnstartedServer(nil)
	t.Cleanup(srv.Close)

	dash := NewDashboard(DashboardConfig{
		Store:   st,
		DSSURL:  dssURL,
		APIKey:  apiKey,
		SelfURL: "http://" + srv.Listener.Addr().String(),
	})
	srv.Config.Handler = dash.Router()
	srv.Start()
	return srv, st
}

func TestDashboardHealth(t *testing.T) {
	t.Parallel()
	srv, _ := newDashboardServer(t, "http://localhost:1", "")

	resp, body := getJSON(t, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want %q", health.Status, "healthy")
	}
	if health.Service != DashboardService {
		t.Errorf("service = %q, want %q", health.Service, DashboardService)
	}
}

func TestDashboardRequestTool_Validation(t *testing.T) {
	t.Parallel()
	srv, _ := newDashboardServer(t, "http://localhost:1", "")

	tests := []struct {
		name string
		body string
	}{
		{"empty_body", ""},
		{"malformed_json", `{"user_id":`},
		{"missing_user_id", `{"building_id":"building_001"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, srv.URL+"/f1/request-tool", tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestDashboardGetRequest_NotFound(t *testing.T) {
	t.Parallel()
	srv, _ := newDashboardServer(t, "http://localhost:1", "")

	resp, body := getJSON(t, srv.URL+"/f1/requests/no-such-request", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Request not found") {
		t.Errorf("body %s does not explain the missing request", body)
	}
}

func TestDashboardRequestIDFormat(t *testing.T) {
	t.Parallel()
	srv, _ := newDashboardServer(t, "http://localhost:1", "")

	_, body := postJSON(t, srv.URL+"/f1/request-tool", `{"user_id":"alice"}`, nil)
	var created ToolResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if !strings.HasPrefix(created.RequestID, "req_") {
		t.Errorf("request_id %q lacks the req_ prefix", created.RequestID)
	}
	if !strings.HasSuffix(created.RequestID, "_alice") {
		t.Errorf("request_id %q lacks the user suffix", created.RequestID)
	}
	if created.Status != store.RequestSubmitted {
		t.Errorf("status = %q, want %q", created.Status, store.RequestSubmitted)
	}

	// The embedded timestamp must parse back.
	stamp := strings.TrimSuffix(strings.TrimPrefix(created.RequestID, "req_"), "_alice")
	if _, err := time.ParseInLocation("20060102_150405", stamp, time.Local); err != nil {
		t.Errorf("request_id timestamp %q does not parse: %v", stamp, err)
	}
}

func TestDashboardDispatchFailure(t *testing.T) {
	t.Parallel()

	// A DSS stand-in that refuses every job.
	dss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(dss.Close)

	srv, _ := newDashboardServer(t, dss.URL, "")

	_, body := postJSON(t, srv.URL+"/f1/request-tool", `{"user_id":"bob"}`, nil)
	var created ToolResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	var view RequestView
	waitFor(t, 5*time.Second, func() bool {
		_, body := getJSON(t, srv.URL+"/f1/requests/"+created.RequestID, nil)
		if err := json.Unmarshal(body, &view); err != nil {
			return false
		}
		return view.Status == store.RequestFailed
	})

	if view.Error == "" {
		t.Error("failed request carries no error message")
	}
	if view.DSSJobID != "" {
		t.Errorf("failed request has a job id: %q", view.DSSJobID)
	}
}

func TestDashboardCallbackWithoutMatch(t *testing.T) {
	t.Parallel()
	srv, _ := newDashboardServer(t, "http://localhost:1", "")

	resp, body := postJSON(t, srv.URL+"/webhooks/dss-callback/ghost",
		`{"job_id":"j1","status":"completed","result":{}}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "callback_received") {
		t.Errorf("body %s does not acknowledge the callback", body)
	}
}

// TestDashboardEndToEnd drives the full hand-off: tool request, background
// job dispatch with the API key, simulated DSS run, completion webhook back
// into the dashboard.
func TestDashboardEndToEnd(t *testing.T) {
	t.Parallel()

	const apiKey = "dss-backend-key"
	// The step delay keeps the simulation slower than the dashboard's
	// job-id bookkeeping, which the completion callback depends on.
	dssSrv, _ := newDSSServer(t, apiKey, 20*time.Millisecond)
	dashSrv, _ := newDashboardServer(t, dssSrv.URL, apiKey)

	resp, body := postJSON(t, dashSrv.URL+"/f1/request-tool",
		`{"building_id":"building_001","optimization_type":"energy_efficiency","user_id":"test-user-001"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request-tool status = %d, body %s", resp.StatusCode, body)
	}
	var created ToolResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	var view RequestView
	waitFor(t, 10*time.Second, func() bool {
		_, body := getJSON(t, dashSrv.URL+"/f1/requests/"+created.RequestID, nil)
		if err := json.Unmarshal(body, &view); err != nil {
			return false
		}
		return view.Status == store.RequestCompleted
	})

	if view.DSSJobID == "" {
		t.Fatal("completed request has no dss_job_id")
	}
	if view.CompletedAt == "" {
		t.Error("completed request has no completed_at")
	}

	var result OptimizationResult
	if err := json.Unmarshal(view.DSSResult, &result); err != nil {
		t.Fatalf("decoding dss_result: %v", err)
	}
	if want := CannedResult(); result.OptimizationScore != want.OptimizationScore {
		t.Errorf("optimization_score = %v, want %v", result.OptimizationScore, want.OptimizationScore)
	}

	// The job remains queryable on the DSS side with the shared key.
	jobResp, jobBody := getJSON(t, dssSrv.URL+"/f1/jobs/"+view.DSSJobID,
		map[string]string{APIKeyHeader: apiKey})
	if jobResp.StatusCode != http.StatusOK {
		t.Fatalf("job status = %d, body %s", jobResp.StatusCode, jobBody)
	}
	if len(jobBody) == 0 {
		t.Fatal("job response has an empty body")
	}

	// The listing view carries the finished request.
	_, listBody := getJSON(t, dashSrv.URL+"/f1/requests", nil)
	var listing struct {
		Requests []RequestView `json:"requests"`
	}
	if err := json.Unmarshal(listBody, &listing); err != nil {
		t.Fatalf("decoding listing: %v", err)
	}
	if len(listing.Requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(listing.Requests))
	}
	if listing.Requests[0].Status != store.RequestCompleted {
		t.Errorf("listed status = %q, want %q", listing.Requests[0].Status, store.RequestCompleted)
	}
}
