package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/proposal-review/internal/application/service"
)

// CreateAdjustmentRequest is the body of POST /api/records/:id/adjustments
type CreateAdjustmentRequest struct {
	RequesterID   int64   `json:"requester_id" binding:"required"`
	CurrentAmount float64 `json:"current_amount"`
	Reason        string  `json:"reason"`
}

// DecideAdjustmentRequest is the body of approve and reject calls
type DecideAdjustmentRequest struct {
	ApproverID    int64   `json:"approver_id" binding:"required"`
	CurrentAmount float64 `json:"current_amount"`
	Comment       string  `json:"comment"`
	Reason        string  `json:"reason"`
}

// ReverseAdjustmentRequest is the body of POST /api/adjustments/:requestId/reverse
type ReverseAdjustmentRequest struct {
	AdminID int64  `json:"admin_id" binding:"required"`
	Reason  string `json:"reason"`
}

// CreateAdjustment handles POST /api/records/:id/adjustments
func (h *Handlers) CreateAdjustment(c *gin.Context) {
	recordID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CreateAdjustmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.services.Adjustments.CreateRequest(c.Request.Context(), service.CreateAdjustmentInput{
		RecordID:      recordID,
		RequesterID:   req.RequesterID,
		CurrentAmount: req.CurrentAmount,
		Reason:        req.Reason,
	})
	if err != nil {
		h.fail(c, "create adjustment request", err)
		return
	}
	h.ok(c, http.StatusCreated, out, out.SideEffects)
}

// ListAdjustments handles GET /api/records/:id/adjustments
func (h *Handlers) ListAdjustments(c *gin.Context) {
	recordID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	reqs, err := h.services.Adjustments.ListRequests(c.Request.Context(), recordID)
	if err != nil {
		h.fail(c, "list adjustment requests", err)
		return
	}
	h.ok(c, http.StatusOK, reqs, nil)
}

// GetAdjustment handles GET /api/adjustments/:requestId
func (h *Handlers) GetAdjustment(c *gin.Context) {
	id, ok := h.pathID(c, "requestId")
	if !ok {
		return
	}
	req, err := h.services.Adjustments.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get adjustment request", err)
		return
	}
	h.ok(c, http.StatusOK, req, nil)
}

// ApproveAdjustment handles POST /api/adjustments/:requestId/approve
func (h *Handlers) ApproveAdjustment(c *gin.Context) {
	id, ok := h.pathID(c, "requestId")
	if !ok {
		return
	}
	var req DecideAdjustmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.services.Adjustments.ApproveRequest(c.Request.Context(), id, req.ApproverID, req.CurrentAmount, req.Comment)
	if err != nil {
		h.fail(c, "approve adjustment request", err)
		return
	}
	h.ok(c, http.StatusOK, out, out.SideEffects)
}

// RejectAdjustment handles POST /api/adjustments/:requestId/reject
func (h *Handlers) RejectAdjustment(c *gin.Context) {
	id, ok := h.pathID(c, "requestId")
	if !ok {
		return
	}
	var req DecideAdjustmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = req.Comment
	}
	out, err := h.services.Adjustments.RejectRequest(c.Request.Context(), id, req.ApproverID, reason, req.CurrentAmount)
	if err != nil {
		h.fail(c, "reject adjustment request", err)
		return
	}
	h.ok(c, http.StatusOK, out, out.SideEffects)
}

// ReverseAdjustment handles POST /api/adjustments/:requestId/reverse
func (h *Handlers) ReverseAdjustment(c *gin.Context) {
	id, ok := h.pathID(c, "requestId")
	if !ok {
		return
	}
	var req ReverseAdjustmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, err := h.services.Adjustments.ReverseRequest(c.Request.Context(), id, req.AdminID, req.Reason)
	if err != nil {
		h.fail(c, "reverse adjustment request", err)
		return
	}
	h.ok(c, http.StatusOK, out, out.SideEffects)
}

// DeleteAdjustment handles DELETE /api/adjustments/:requestId?admin_id=
func (h *Handlers) DeleteAdjustment(c *gin.Context) {
	id, ok := h.pathID(c, "requestId")
	if !ok {
		return
	}
	var q struct {
		AdminID int64 `form:"admin_id" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "admin_id is required")
		return
	}

	out, err := h.services.Adjustments.DeleteRequest(c.Request.Context(), id, q.AdminID)
	if err != nil {
		h.fail(c, "delete adjustment request", err)
		return
	}
	h.ok(c, http.StatusOK, out, out.SideEffects)
}
