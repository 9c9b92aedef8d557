package controllers

import (
	"net/http"
	"strconv"

	"bursary-management-api/services"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/deadline
func (h *Handlers) DeadlineStatus(c *gin.Context) {
	status, err := h.Deadlines.Status(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GET /api/v1/admin/deadlines
func (h *Handlers) AdminListDeadlines(c *gin.Context) {
	windows, err := h.Deadlines.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deadlines": windows, "total": len(windows)})
}

// POST /api/v1/admin/deadlines
func (h *Handlers) AdminCreateDeadline(c *gin.Context) {
	var in services.DeadlineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	window, err := h.Deadlines.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, window)
}

// PUT /api/v1/admin/deadlines/:id
func (h *Handlers) AdminUpdateDeadline(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid deadline id")
		return
	}
	var in services.DeadlineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	window, err := h.Deadlines.Update(c.Request.Context(), uint(id), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, window)
}
