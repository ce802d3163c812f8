// Package api implements the Service Facade from spec §4.F: the gin routes
// that accept submissions, run them through the orchestrator, and return
// structured verdicts. Route/response conventions (StandardResponse
// envelope, error codes, gin wiring) are grounded on the teacher's HTTP
// layer (internal/middleware, cmd/ main wiring) — the endpoint set itself
// is new, since the teacher's routes are project/file/AI-request CRUD with
// no equivalent here.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"apex-build/internal/judge"
	"apex-build/internal/metrics"
	"apex-build/internal/orchestrator"
	"apex-build/internal/registry"
	"apex-build/internal/wsstatus"
)

// StandardResponse is the facade's uniform success/error envelope.
type StandardResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError is the structured error body for a non-2xx StandardResponse.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler wires the orchestrator, registry, and live-status hub into gin
// routes. Construct one per process in cmd/server/main.go.
type Handler struct {
	orch    *orchestrator.Orchestrator
	reg     *registry.Registry
	hub     *wsstatus.Hub
	metrics *metrics.Metrics
	version string
}

// New constructs a Handler. version is surfaced by GET /healthz.
func New(orch *orchestrator.Orchestrator, reg *registry.Registry, hub *wsstatus.Hub, version string) *Handler {
	return &Handler{orch: orch, reg: reg, hub: hub, metrics: metrics.Get(), version: version}
}

// Register mounts every judge-facade route onto r (spec §4.F).
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.handleHealth)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/evaluate", h.handleEvaluate)
		v1.POST("/evaluate/batch", h.handleEvaluateBatch)
		v1.POST("/evaluate/batch/optimized", h.handleEvaluateBatchOptimized)
		v1.GET("/languages", h.handleLanguages)
		v1.GET("/limits", h.handleLimits)
		v1.GET("/ws/status/:submission_id", h.hub.HandleSubscribe)
	}
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: gin.H{
		"status":  "ok",
		"version": h.version,
	}})
}

func (h *Handler) handleLanguages(c *gin.Context) {
	rows, err := h.reg.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "REGISTRY_UNAVAILABLE", err.Error())
		return
	}
	languages := make([]string, 0, len(rows))
	for _, row := range rows {
		languages = append(languages, row.Language)
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: gin.H{"languages": languages}})
}

func (h *Handler) handleLimits(c *gin.Context) {
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: gin.H{
		"max_compile_timeout_s":   judge.MaxCompileTimeout.Seconds(),
		"max_execution_timeout_s": judge.MaxExecutionTimeout.Seconds(),
		"max_memory_bytes":        judge.MaxMemoryBytes,
		"max_cpu_cores":           judge.MaxCPUCores,
		"max_source_bytes":        judge.MaxSourceBytes,
		"max_batch_size":          judge.MaxBatchSize,
		"defaults":                judge.DefaultResourceLimits(),
	}})
}

// evaluateRequest is the POST /api/v1/evaluate body: a single submission.
type evaluateRequest struct {
	judge.Submission
	SubmissionID string `json:"submission_id"`
}

func (h *Handler) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "CONFIG_INVALID", err.Error())
		return
	}
	sub := req.Submission

	if req.SubmissionID != "" {
		h.hub.Publish(req.SubmissionID, wsstatus.StageQueued, nil)
	}

	start := time.Now()
	v, err := h.orch.Evaluate(c.Request.Context(), &sub)
	if err != nil {
		var cfgErr *judge.ConfigError
		if errors.As(err, &cfgErr) {
			respondError(c, http.StatusBadRequest, "CONFIG_INVALID", cfgErr.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	h.metrics.RecordEvaluation(string(sub.Language), string(v.Status), time.Since(start), time.Duration(v.Metrics.CompileMs)*time.Millisecond)

	if req.SubmissionID != "" {
		h.hub.Publish(req.SubmissionID, wsstatus.StageClassified, v)
	}

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: v})
}

// batchRequest is the POST /api/v1/evaluate/batch body: independently
// compiled submissions (no compile-once optimization).
type batchRequest struct {
	Submissions []judge.Submission `json:"submissions"`
}

func (h *Handler) handleEvaluateBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "CONFIG_INVALID", err.Error())
		return
	}
	if len(req.Submissions) > judge.MaxBatchSize {
		respondError(c, http.StatusBadRequest, "CONFIG_INVALID", "batch exceeds maximum size")
		return
	}

	verdicts := make([]judge.Verdict, len(req.Submissions))
	for i := range req.Submissions {
		sub := req.Submissions[i]
		v, err := h.orch.Evaluate(c.Request.Context(), &sub)
		if err != nil {
			var cfgErr *judge.ConfigError
			if errors.As(err, &cfgErr) {
				respondError(c, http.StatusBadRequest, "CONFIG_INVALID", cfgErr.Error())
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		verdicts[i] = v
	}
	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: gin.H{"verdicts": verdicts}})
}

// optimizedBatchRequest is the POST /api/v1/evaluate/batch/optimized body:
// one shared source compiled once per distinct schema, run many times
// (spec §4.D EvaluateBatch).
type optimizedBatchRequest struct {
	Language judge.Language     `json:"language"`
	Source   string             `json:"source"`
	Configs  []judge.Submission `json:"configs"`
}

func (h *Handler) handleEvaluateBatchOptimized(c *gin.Context) {
	var req optimizedBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "CONFIG_INVALID", err.Error())
		return
	}
	if len(req.Configs) > judge.MaxBatchSize {
		respondError(c, http.StatusBadRequest, "CONFIG_INVALID", "batch exceeds maximum size")
		return
	}

	configs := make([]*judge.Submission, len(req.Configs))
	for i := range req.Configs {
		req.Configs[i].Language = req.Language
		req.Configs[i].Source = req.Source
		configs[i] = &req.Configs[i]
	}

	verdicts, err := h.orch.EvaluateBatch(c.Request.Context(), req.Language, req.Source, configs)
	if err != nil {
		var cfgErr *judge.ConfigError
		if errors.As(err, &cfgErr) {
			respondError(c, http.StatusBadRequest, "CONFIG_INVALID", cfgErr.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	recompiled := 0
	for i, v := range verdicts {
		if i > 0 && v.Metrics.Recompiled {
			recompiled++
		}
	}
	h.metrics.RecordBatch(len(req.Configs), recompiled)

	c.JSON(http.StatusOK, StandardResponse{Success: true, Data: gin.H{"verdicts": verdicts}})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, StandardResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}
