// Package mockapi implements the two HTTP services the integration probe
// drives: a dashboard backend that accepts energy-optimization tool requests
// and hands them off to a decision support system, and the DSS service that
// simulates running the jobs. Both stand in for the real services during
// proof-of-concept runs.
package mockapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Data-Cellar/dss-sequence-example/internal/store"
)

// APIKeyHeader carries the shared key on calls into the DSS service.
const APIKeyHeader = "X-API-Key"

// Defaults applied when a request leaves the corresponding field empty.
const (
	DefaultBuildingID       = "building_001"
	DefaultOptimizationType = "energy_efficiency"
)

// ToolRequest is the dashboard's job intake payload.
type ToolRequest struct {
	BuildingID       string `json:"building_id"`
	OptimizationType string `json:"optimization_type"`
	UserID           string `json:"user_id"`
	CallbackURL      string `json:"callback_url,omitempty"`
}

func (r *ToolRequest) applyDefaults() {
	if r.BuildingID == "" {
		r.BuildingID = DefaultBuildingID
	}
	if r.OptimizationType == "" {
		r.OptimizationType = DefaultOptimizationType
	}
}

// ToolResponse acknowledges a tool request.
type ToolResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	DSSJobID  string `json:"dss_job_id,omitempty"`
}

// RequestView is the JSON rendering of a tracked request.
type RequestView struct {
	RequestID        string          `json:"request_id"`
	UserID           string          `json:"user_id"`
	BuildingID       string          `json:"building_id"`
	OptimizationType string          `json:"optimization_type"`
	Status           string          `json:"status"`
	DSSJobID         string          `json:"dss_job_id,omitempty"`
	Error            string          `json:"error,omitempty"`
	DSSResult        json.RawMessage `json:"dss_result,omitempty"`
	CreatedAt        string          `json:"created_at"`
	CompletedAt      string          `json:"completed_at,omitempty"`
}

func requestView(r *store.RequestRecord) RequestView {
	v := RequestView{
		RequestID:        r.RequestID,
		UserID:           r.UserID,
		BuildingID:       r.BuildingID,
		OptimizationType: r.OptimizationType,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
	if r.DSSJobID.Valid {
		v.DSSJobID = r.DSSJobID.String
	}
	if r.Error.Valid {
		v.Error = r.Error.String
	}
	if len(r.ResultJSON) > 0 {
		v.DSSResult = json.RawMessage(r.ResultJSON)
	}
	if r.CompletedAt != nil {
		v.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return v
}

// JobRequest is the DSS job intake payload.
type JobRequest struct {
	BuildingID       string         `json:"building_id"`
	OptimizationType string         `json:"optimization_type"`
	Parameters       map[string]any `json:"parameters"`
}

func (r *JobRequest) applyDefaults() {
	if r.BuildingID == "" {
		r.BuildingID = DefaultBuildingID
	}
	if r.OptimizationType == "" {
		r.OptimizationType = DefaultOptimizationType
	}
	if r.Parameters == nil {
		r.Parameters = map[string]any{}
	}
}

// JobResponse acknowledges job creation.
type JobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// JobView is the JSON rendering of a tracked job.
type JobView struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

func jobView(j *store.JobRecord) JobView {
	v := JobView{
		JobID:     j.JobID,
		Status:    j.Status,
		Progress:  j.Progress,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
	}
	if len(j.ResultJSON) > 0 {
		v.Result = json.RawMessage(j.ResultJSON)
	}
	if j.Error.Valid {
		v.Error = j.Error.String
	}
	if j.CompletedAt != nil {
		v.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return v
}

// CallbackPayload is what the DSS posts to a job's callback URL on
// completion, and what the dashboard's webhook endpoint expects.
type CallbackPayload struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// OptimizationResult is the outcome payload of a completed job.
type OptimizationResult struct {
	EnergySavingsKWh   float64  `json:"energy_savings_kwh"`
	CostReductionEUR   float64  `json:"cost_reduction_eur"`
	CO2ReductionKg     float64  `json:"co2_reduction_kg"`
	OptimizationScore  float64  `json:"optimization_score"`
	RecommendedActions []string `json:"recommended_actions"`
}

// CannedResult returns the fixed outcome every successful simulation reports.
func CannedResult() OptimizationResult {
	return OptimizationResult{
		EnergySavingsKWh:  245.8,
		CostReductionEUR:  48.72,
		CO2ReductionKg:    98.32,
		OptimizationScore: 0.85,
		RecommendedActions: []string{
			"Reduce HVAC temperature by 2°C during off-peak hours",
			"Implement smart lighting controls in zone B",
			"Schedule high-energy equipment during low-cost periods",
		},
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}
