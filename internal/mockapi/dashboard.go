package mockapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"

	"github.com/Data-Cellar/dss-sequence-example/internal/store"
)

// DashboardService names the dashboard in health responses.
const DashboardService = "Dashboard Backend API (DSS F1 Energy Optimization)"

// DashboardConfig wires a Dashboard to its store and to the DSS service.
type DashboardConfig struct {
	Store *store.Store
	// DSSURL is the base URL jobs are dispatched to.
	DSSURL string
	// APIKey is sent to the DSS service on the X-API-Key header.
	APIKey string
	// SelfURL is the base URL the DSS can reach this service on; completion
	// callbacks are addressed under it.
	SelfURL string
	Client  *http.Client
}

// Dashboard is the mock dashboard backend. It accepts optimization tool
// requests, dispatches them to the DSS service in the background, and
// receives completion webhooks.
type Dashboard struct {
	store   *store.Store
	dssURL  string
	apiKey  string
	selfURL string
	client  *http.Client
}

func NewDashboard(cfg DashboardConfig) *Dashboard {
	client := cfg.Client
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Dashboard{
		store:   cfg.Store,
		dssURL:  cfg.DSSURL,
		apiKey:  cfg.APIKey,
		selfURL: cfg.SelfURL,
		client:  client,
	}
}

// Router builds the dashboard's HTTP surface.
func (d *Dashboard) Router() *gin.Engine {
	router := gin.New()

	f1 := router.Group("/f1")
	{
		f1.POST("/request-tool", d.RequestTool)
		f1.GET("/requests", d.ListRequests)
		f1.GET("/requests/:id", d.GetRequest)
	}

	router.POST("/webhooks/dss-callback/:user_id", d.Callback)
	router.GET("/health", d.Health)

	return router
}

func (d *Dashboard) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": DashboardService})
}

// RequestTool registers a new optimization request and starts its hand-off
// to the DSS service.
func (d *Dashboard) RequestTool(c *gin.Context) {
	var req ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id is required"})
		return
	}
	req.applyDefaults()

	now := time.Now()
	requestID := fmt.Sprintf("req_%s_%s", now.Format("20060102_150405"), req.UserID)

	rec := &store.RequestRecord{
		RequestID:        requestID,
		UserID:           req.UserID,
		BuildingID:       req.BuildingID,
		OptimizationType: req.OptimizationType,
		Status:           store.RequestSubmitted,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
	if req.CallbackURL != "" {
		rec.CallbackURL = sql.NullString{String: req.CallbackURL, Valid: true}
	}
	if err := d.store.InsertRequest(rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	go d.process(requestID, req)

	slog.Info("tool request submitted", "request_id", requestID, "building_id", req.BuildingID, "optimization_type", req.OptimizationType)
	c.JSON(http.StatusOK, ToolResponse{
		RequestID: requestID,
		Status:    store.RequestSubmitted,
		Message:   fmt.Sprintf("DSS F1 energy optimization request submitted for building %s (%s)", req.BuildingID, req.OptimizationType),
	})
}

// process runs the hand-off for one request. Failures are recorded on the
// request rather than returned; the submitter polls for the outcome.
func (d *Dashboard) process(requestID string, req ToolRequest) {
	if err := d.store.SetRequestStatus(requestID, store.RequestProcessing); err != nil {
		slog.Error("updating request", "request_id", requestID, "error", err)
		return
	}

	jobID, err := d.dispatchJob(req)
	if err != nil {
		slog.Error("dispatching job", "request_id", requestID, "error", err)
		if err := d.store.FailRequest(requestID, err.Error()); err != nil {
			slog.Error("failing request", "request_id", requestID, "error", err)
		}
		return
	}

	if err := d.store.SetRequestJob(requestID, jobID); err != nil {
		slog.Error("updating request", "request_id", requestID, "error", err)
		return
	}
	slog.Info("job dispatched", "request_id", requestID, "job_id", jobID)
}

// dispatchJob creates the DSS job backing a request and returns its id. The
// callback URL handed to the DSS points back at this service's webhook
// endpoint for the requesting user.
func (d *Dashboard) dispatchJob(req ToolRequest) (string, error) {
	body, err := json.Marshal(JobRequest{
		BuildingID:       req.BuildingID,
		OptimizationType: req.OptimizationType,
		Parameters:       map[string]any{},
	})
	if err != nil {
		return "", fmt.Errorf("encoding job request: %w", err)
	}

	callback := d.selfURL + "/webhooks/dss-callback/" + url.PathEscape(req.UserID)
	endpoint := d.dssURL + "/f1/jobs?callback_url=" + url.QueryEscape(callback)

	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building job request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set(APIKeyHeader, d.apiKey)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling DSS service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("DSS service returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	var jobResp JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&jobResp); err != nil {
		return "", fmt.Errorf("decoding job response: %w", err)
	}
	if jobResp.JobID == "" {
		return "", errors.New("DSS service returned no job_id")
	}
	return jobResp.JobID, nil
}

func (d *Dashboard) GetRequest(c *gin.Context) {
	rec, err := d.store.GetRequest(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Request not found"})
		return
	}
	c.JSON(http.StatusOK, requestView(rec))
}

func (d *Dashboard) ListRequests(c *gin.Context) {
	recs, err := d.store.ListRequests()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	views := make([]RequestView, 0, len(recs))
	for i := range recs {
		views = append(views, requestView(&recs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"requests": views})
}

// Callback receives the DSS completion webhook and closes out the matching
// request. Callbacks that match no request are acknowledged and dropped.
func (d *Dashboard) Callback(c *gin.Context) {
	userID := c.Param("user_id")

	var payload CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	slog.Info("received DSS callback", "user_id", userID, "job_id", payload.JobID, "status", payload.Status)

	rec, err := d.store.FindRequestByUserAndJob(userID, payload.JobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if rec != nil {
		if err := d.store.CompleteRequest(rec.RequestID, types.JSONText(payload.Result)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		slog.Info("request completed", "request_id", rec.RequestID, "job_id", payload.JobID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "callback_received"})
}
