package controllers

import (
	"net/http"
	"strconv"

	"bursary-management-api/middleware"
	"bursary-management-api/repository"

	"github.com/gin-gonic/gin"
)

type statusChangeRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type bulkStatusRequest struct {
	References []string `json:"references" binding:"required,min=1"`
	Status     string   `json:"status" binding:"required"`
	Reason     string   `json:"reason"`
}

// GET /api/v1/admin/applications
func (h *Handlers) AdminListApplications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := repository.ApplicationFilter{
		Status:          c.Query("status"),
		Ward:            c.Query("ward"),
		LevelOfStudy:    c.Query("level_of_study"),
		InstitutionType: c.Query("institution_type"),
		FamilyStatus:    c.Query("family_status"),
		Search:          c.Query("search"),
		Page:            page,
		PageSize:        pageSize,
	}

	result, err := h.Applications.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/admin/applications/:reference
func (h *Handlers) AdminGetApplication(c *gin.Context) {
	app, err := h.Applications.Get(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// GET /api/v1/admin/applications/stats
func (h *Handlers) AdminApplicationStats(c *gin.Context) {
	stats, err := h.Applications.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// POST /api/v1/admin/applications/:reference/status
func (h *Handlers) AdminChangeStatus(c *gin.Context) {
	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	result, err := h.Applications.Transition(c.Request.Context(), c.Param("reference"), req.Status, middleware.CurrentAdmin(c), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/v1/admin/applications/bulk-status
func (h *Handlers) AdminBulkChangeStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "references and status are required")
		return
	}

	result, err := h.Applications.BulkTransition(c.Request.Context(), req.References, req.Status, middleware.CurrentAdmin(c), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/admin/applications/:reference/history
func (h *Handlers) AdminStatusHistory(c *gin.Context) {
	reference := c.Param("reference")
	entries, err := h.Applications.History(c.Request.Context(), reference)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reference_number": reference,
		"history":          entries,
	})
}
