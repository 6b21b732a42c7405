package mockapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Data-Cellar/dss-sequence-example/internal/store"
)

// DSSService names the decision support system in health responses.
const DSSService = "DSS F1 (Energy Optimization) Mock API"

// DefaultStepDelay paces the simulation's progress steps.
const DefaultStepDelay = 2 * time.Second

// DSSConfig wires a DSS to its store.
type DSSConfig struct {
	Store *store.Store
	// APIKey guards the /f1 endpoints; empty leaves them open.
	APIKey string
	// StepDelay overrides the pause between simulation steps. Tests shrink
	// it so a full run finishes in milliseconds.
	StepDelay time.Duration
	Client    *http.Client
}

// DSS is the mock decision support system. Jobs it accepts are advanced
// through a fixed progress schedule by a background simulation, which posts
// a completion webhook when a callback URL was supplied.
type DSS struct {
	store     *store.Store
	apiKey    string
	stepDelay time.Duration
	client    *http.Client
}

func NewDSS(cfg DSSConfig) *DSS {
	stepDelay := cfg.StepDelay
	if stepDelay <= 0 {
		stepDelay = DefaultStepDelay
	}
	client := cfg.Client
	if client == nil {
		client = defaultHTTPClient()
	}
	return &DSS{
		store:     cfg.Store,
		apiKey:    cfg.APIKey,
		stepDelay: stepDelay,
		client:    client,
	}
}

// RequireAPIKey rejects requests whose X-API-Key header does not match the
// configured key. An empty key disables the check.
func RequireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key != "" && c.GetHeader(APIKeyHeader) != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid API key"})
			return
		}
		c.Next()
	}
}

// Router builds the DSS's HTTP surface.
func (d *DSS) Router() *gin.Engine {
	router := gin.New()

	f1 := router.Group("/f1", RequireAPIKey(d.apiKey))
	{
		f1.POST("/jobs", d.CreateJob)
		f1.GET("/jobs", d.ListJobs)
		f1.GET("/jobs/:id", d.GetJob)
		f1.DELETE("/jobs/:id", d.CancelJob)
	}

	router.GET("/health", d.Health)

	return router
}

func (d *DSS) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": DSSService})
}

// CreateJob registers a new simulation job and starts advancing it in the
// background. A callback_url query parameter, when present, is notified on
// completion.
func (d *DSS) CreateJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	req.applyDefaults()

	params, err := json.Marshal(req.Parameters)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	jobID := uuid.New().String()
	now := time.Now().UTC()
	rec := &store.JobRecord{
		JobID:            jobID,
		BuildingID:       req.BuildingID,
		OptimizationType: req.OptimizationType,
		ParametersJSON:   params,
		Status:           store.JobPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	callback := c.Query("callback_url")
	if callback != "" {
		rec.CallbackURL = sql.NullString{String: callback, Valid: true}
	}
	if err := d.store.InsertJob(rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	go d.simulate(jobID, callback)

	slog.Info("job created", "job_id", jobID, "building_id", req.BuildingID, "optimization_type", req.OptimizationType)
	c.JSON(http.StatusOK, JobResponse{
		JobID:     jobID,
		Status:    store.JobPending,
		Message:   fmt.Sprintf("DSS F1 energy optimization job created for building %s (%s)", req.BuildingID, req.OptimizationType),
		CreatedAt: now.Format(time.RFC3339),
	})
}

// simulate advances a job through the fixed progress schedule and completes
// it with the canned result. A cancellation observed between steps stops the
// run; the guarded store updates report that as an unchanged row.
func (d *DSS) simulate(jobID, callbackURL string) {
	for i, progress := range []int{10, 25, 50, 75, 90} {
		if i > 0 {
			time.Sleep(d.stepDelay)
		}
		changed, err := d.store.SetJobProgress(jobID, store.JobRunning, progress)
		if err != nil {
			slog.Error("updating job progress", "job_id", jobID, "error", err)
			return
		}
		if !changed {
			slog.Info("job no longer running, stopping simulation", "job_id", jobID)
			return
		}
	}
	time.Sleep(d.stepDelay)

	result, err := json.Marshal(CannedResult())
	if err != nil {
		slog.Error("encoding job result", "job_id", jobID, "error", err)
		if err := d.store.FailJob(jobID, err.Error()); err != nil {
			slog.Error("failing job", "job_id", jobID, "error", err)
		}
		return
	}

	changed, err := d.store.CompleteJob(jobID, result)
	if err != nil {
		slog.Error("completing job", "job_id", jobID, "error", err)
		return
	}
	if !changed {
		slog.Info("job no longer running, stopping simulation", "job_id", jobID)
		return
	}
	slog.Info("job completed", "job_id", jobID)

	if callbackURL != "" {
		d.notify(jobID, callbackURL, result)
	}
}

// notify posts the completion webhook. Delivery is best-effort: a failed
// callback is logged and the job stays completed.
func (d *DSS) notify(jobID, callbackURL string, result json.RawMessage) {
	payload, err := json.Marshal(CallbackPayload{
		JobID:  jobID,
		Status: store.JobCompleted,
		Result: result,
	})
	if err != nil {
		slog.Error("encoding callback", "job_id", jobID, "error", err)
		return
	}

	resp, err := d.client.Post(callbackURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Error("posting callback", "job_id", jobID, "url", callbackURL, "error", err)
		return
	}
	defer resp.Body.Close()
	slog.Info("sent completion callback", "job_id", jobID, "url", callbackURL, "status", resp.Status)
}

func (d *DSS) GetJob(c *gin.Context) {
	rec, err := d.store.GetJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, jobView(rec))
}

func (d *DSS) ListJobs(c *gin.Context) {
	recs, err := d.store.ListJobs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	views := make([]JobView, 0, len(recs))
	for i := range recs {
		views = append(views, jobView(&recs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

// CancelJob stops a pending or running job. Finished jobs cannot be
// cancelled.
func (d *DSS) CancelJob(c *gin.Context) {
	id := c.Param("id")
	rec, err := d.store.GetJob(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}
	if rec.Status == store.JobCompleted || rec.Status == store.JobFailed {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Cannot cancel completed or failed job"})
		return
	}
	if err := d.store.CancelJob(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	slog.Info("job cancelled", "job_id", id)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Job %s cancelled", id)})
}
