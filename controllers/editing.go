package controllers

import (
	"net/http"
	"strings"

	"bursary-management-api/services"

	"github.com/gin-gonic/gin"
)

type editIdentityRequest struct {
	Reference string `json:"reference_number" binding:"required"`
	Email     string `json:"email" binding:"required"`
}

type editRequest struct {
	Email string `json:"email" binding:"required"`
	services.EditFields
}

// POST /api/v1/applications/check-edit-eligibility
func (h *Handlers) CheckEditEligibility(c *gin.Context) {
	var req editIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "reference_number and email are required")
		return
	}

	result, err := h.Applications.CheckEligibility(c.Request.Context(), req.Reference, req.Email, h.Applications.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result.Kind == services.KindEmailMismatch {
		h.respondError(c, result.Err())
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/applications/get-for-edit
func (h *Handlers) GetForEdit(c *gin.Context) {
	var req editIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "reference_number and email are required")
		return
	}

	app, eligibility, err := h.Applications.GetForEdit(c.Request.Context(), req.Reference, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"application":         app,
		"edit_time_remaining": eligibility.TimeRemainingText,
	})
}

// PATCH /api/v1/applications/:reference/edit
func (h *Handlers) EditApplication(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	reference := strings.TrimSpace(c.Param("reference"))
	app, err := h.Applications.ApplyEdit(c.Request.Context(), reference, req.Email, req.EditFields)
	if err != nil {
		h.respondError(c, err)
		return
	}

	remaining := ""
	if result, err := h.Applications.CheckEligibility(c.Request.Context(), app.Reference, app.Email, h.Applications.Now()); err == nil {
		remaining = result.TimeRemainingText
	}
	c.JSON(http.StatusOK, gin.H{
		"message":             "Application updated successfully",
		"reference_number":    app.Reference,
		"edit_time_remaining": remaining,
		"application":         app,
	})
}
