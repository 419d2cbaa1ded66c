package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/application/service"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Warnings lists best-effort steps that failed after the primary write
	Warnings []string `json:"warnings,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateRecordRequest is the body of POST /api/records
type CreateRecordRequest struct {
	Title          string            `json:"title"`
	Client         string            `json:"client"`
	Pricing        float64           `json:"pricing"`
	Content        string            `json:"content"`
	AllocatedHours float64           `json:"allocated_hours"`
	CustomFields   map[string]string `json:"custom_fields"`
	OwnerID        int64             `json:"owner_id"`
	ActorID        int64             `json:"actor_id" binding:"required"`
}

// UpdateRecordRequest is the body of PATCH /api/records/:id
type UpdateRecordRequest struct {
	Version int                    `json:"version" binding:"required"`
	ActorID int64                  `json:"actor_id" binding:"required"`
	Fields  map[string]interface{} `json:"fields" binding:"required"`
}

// ActorRequest identifies who performs a body-less action
type ActorRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
}

// CommentRequest is the body of POST /api/records/:id/comments
type CommentRequest struct {
	ActorEmail string `json:"actor_email" binding:"required"`
	Comment    string `json:"comment"`
}

// StartWorkflowRequest is the optional body of POST /api/records/:id/workflow
type StartWorkflowRequest struct {
	Amount *float64 `json:"amount"`
}

// ApprovalActionRequest is the body of POST /api/records/:id/approvals/:approvalId
type ApprovalActionRequest struct {
	Action     string `json:"action" binding:"required"`
	ActorEmail string `json:"actor_email" binding:"required"`
	Comment    string `json:"comment"`
}

// ListRecordsRequest represents query parameters for listing records
type ListRecordsRequest struct {
	Status        string `form:"status"`
	IncludeHidden bool   `form:"include_hidden"`
	Limit         int    `form:"limit"`
	Offset        int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateRecord handles POST /api/records
func (h *Handlers) CreateRecord(c *gin.Context) {
	var req CreateRecordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.services.Records.CreateRecord(c.Request.Context(), service.CreateRecordInput{
		Title:          req.Title,
		Client:         req.Client,
		Pricing:        req.Pricing,
		Content:        req.Content,
		AllocatedHours: req.AllocatedHours,
		CustomFields:   req.CustomFields,
		OwnerID:        req.OwnerID,
		ActorID:        req.ActorID,
	})
	if err != nil {
		h.fail(c, "create record", err)
		return
	}
	h.ok(c, http.StatusCreated, out, out.SideEffects)
}

// ListRecords handles GET /api/records
func (h *Handlers) ListRecords(c *gin.Context) {
	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	records, err := h.services.Records.ListRecords(c.Request.Context(), port.RecordFilter{
		Status:        req.Status,
		IncludeHidden: req.IncludeHidden,
		Limit:         req.Limit,
		Offset:        req.Offset,
	})
	if err != nil {
		h.fail(c, "list records", err)
		return
	}
	h.ok(c, http.StatusOK, records, nil)
}

// GetRecord handles GET /api/records/:id
func (h *Handlers) GetRecord(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	record, err := h.services.Records.GetRecord(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get record", err)
		return
	}
	h.ok(c, http.StatusOK, record, nil)
}

// UpdateRecord handles PATCH /api/records/:id
func (h *Handlers) UpdateRecord(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateRecordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.services.Records.UpdateFields(c.Request.Context(), id, req.Version, req.Fields, req.ActorID)
	if err != nil {
		h.fail(c, "update record", err)
		return
	}
	h.ok(c, http.StatusOK, out, out.SideEffects)
}

// HideRecord handles POST /api/records/:id/hide
func (h *Handlers) HideRecord(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ActorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.services.Records.HideRecord(c.Request.Context(), id, req.ActorID)
	if err != nil {
		h.fail(c, "hide record", err)
		return
	}
	h.ok(c, http.StatusOK, out, out.SideEffects)
}

// AddComment handles POST /api/records/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	effect, err := h.services.Records.AddComment(c.Request.Context(), id, req.ActorEmail, req.Comment)
	if err != nil {
		h.fail(c, "add comment", err)
		return
	}
	h.ok(c, http.StatusCreated, gin.H{"record_id": id}, service.SideEffects{effect})
}

// StartWorkflow handles POST /api/records/:id/workflow
func (h *Handlers) StartWorkflow(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req StartWorkflowRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	result, err := h.services.Approvals.StartWorkflow(c.Request.Context(), id, req.Amount)
	if err != nil {
		h.fail(c, "start workflow", err)
		return
	}
	if !result.Started {
		resp := Response{Success: true, Data: result}
		if result.Skipped != nil {
			resp.Warnings = []string{result.Skipped.Error()}
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	h.ok(c, http.StatusCreated, result, result.SideEffects)
}

// GetWorkflowState handles GET /api/records/:id/workflow?actor_email=
func (h *Handlers) GetWorkflowState(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	state, err := h.services.Approvals.GetWorkflowState(c.Request.Context(), id, c.Query("actor_email"))
	if err != nil {
		h.fail(c, "get workflow state", err)
		return
	}
	h.ok(c, http.StatusOK, state, nil)
}

// ProcessApproval handles POST /api/records/:id/approvals/:approvalId
func (h *Handlers) ProcessApproval(c *gin.Context) {
	recordID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	approvalID, ok := h.pathID(c, "approvalId")
	if !ok {
		return
	}
	var req ApprovalActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.services.Approvals.ProcessApproval(c.Request.Context(), service.ProcessApprovalInput{
		RecordID:   recordID,
		ApprovalID: approvalID,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		ActorEmail: req.ActorEmail,
		Comment:    req.Comment,
	})
	if err != nil {
		h.fail(c, "process approval", err)
		return
	}
	h.ok(c, http.StatusOK, out, out.SideEffects)
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}, effects service.SideEffects) {
	resp := Response{Success: true, Data: data}
	for _, e := range effects.Failed() {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s: %v", e.Name, e.Err))
	}
	c.JSON(status, resp)
}

// fail maps domain errors to status codes. Unexpected errors are logged
// and their detail is not exposed.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
		msg = op + " failed"
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, fmt.Sprintf("invalid %s: %q", name, raw))
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrRecordNotFound),
		errors.Is(err, workflow.ErrApprovalNotFound),
		errors.Is(err, workflow.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrPermissionDenied),
		errors.Is(err, workflow.ErrActorNotFound):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrWorkflowAlreadyExists),
		errors.Is(err, workflow.ErrDuplicateRequest),
		errors.Is(err, workflow.ErrConflict),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrDeleteNotAllowed):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrCommentRequired),
		errors.Is(err, workflow.ErrValidationFailed),
		errors.Is(err, workflow.ErrInvalidAmount),
		errors.Is(err, workflow.ErrInvalidField),
		errors.Is(err, workflow.ErrInvalidAction):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
