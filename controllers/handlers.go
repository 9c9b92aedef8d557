package controllers

import (
	"errors"
	"net/http"

	"bursary-management-api/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handlers binds the HTTP endpoints to the engine services.
type Handlers struct {
	Applications *services.ApplicationService
	Deadlines    *services.DeadlineService
	Duplicates   *services.DuplicateDetector
	Auth         *services.AuthService
	Logger       *logrus.Logger
	// Ping reports store health; nil skips the check.
	Ping func() error
}

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:            http.StatusNotFound,
	services.KindGenerationExhausted: http.StatusServiceUnavailable,
	services.KindAlreadyFinal:        http.StatusConflict,
	services.KindNoStatusChange:      http.StatusConflict,
	services.KindSubmissionClosed:    http.StatusForbidden,
	services.KindEmailMismatch:       http.StatusForbidden,
	services.KindWindowExpired:       http.StatusForbidden,
	services.KindNotPending:          http.StatusForbidden,
	services.KindInvalidStatus:       http.StatusBadRequest,
	services.KindValidation:          http.StatusBadRequest,
	services.KindDuplicate:           http.StatusConflict,
	services.KindUnauthorized:        http.StatusUnauthorized,
}

// StatusForKind returns the HTTP status used for an engine error kind.
func StatusForKind(kind services.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes an engine error as {"error", "code"}; anything else is
// logged and reported as an internal error.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var engineErr *services.Error
	if errors.As(err, &engineErr) {
		if engineErr.ExistingReference != "" {
			h.Logger.WithField("existing_reference", engineErr.ExistingReference).Info("duplicate submission refused")
		}
		c.JSON(StatusForKind(engineErr.Kind), gin.H{"success": false, "error": engineErr.Reason, "code": engineErr.Kind})
		return
	}

	h.Logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg, "code": services.KindValidation})
}
