package controllers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"bursary-management-api/models"
	"bursary-management-api/services"

	"github.com/gin-gonic/gin"
)

// multipart field names that carry documents
var documentFields = []string{
	models.DocumentIDFront,
	models.DocumentIDBack,
	models.DocumentAdmissionLetter,
	models.DocumentFatherDeathCertificate,
	models.DocumentMotherDeathCertificate,
	models.DocumentOther,
}

// CreateApplication accepts a new application as JSON or multipart form data.
// POST /api/v1/applications
func (h *Handlers) CreateApplication(c *gin.Context) {
	var (
		in      services.ApplicationInput
		uploads []services.DocumentUpload
	)

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&in); err != nil {
			badRequest(c, err.Error())
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			badRequest(c, "invalid multipart form")
			return
		}
		var files []multipart.File
		defer func() {
			for _, f := range files {
				f.Close()
			}
		}()
		for _, kind := range documentFields {
			for _, fh := range form.File[kind] {
				f, err := fh.Open()
				if err != nil {
					badRequest(c, fmt.Sprintf("cannot read %s", fh.Filename))
					return
				}
				files = append(files, f)
				uploads = append(uploads, services.DocumentUpload{
					Kind:        kind,
					Filename:    fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Size:        fh.Size,
					Content:     f,
				})
			}
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.Applications.Create(c.Request.Context(), in, uploads)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetApplication returns the tracking view of one application. Personal
// fields are only served through get-for-edit or the admin group.
// GET /api/v1/applications/:reference
func (h *Handlers) GetApplication(c *gin.Context) {
	app, err := h.Applications.Get(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.Public())
}

// CheckDuplicate lets the form warn about an existing application before it
// is submitted.
// POST /api/v1/applications/check-duplicate
func (h *Handlers) CheckDuplicate(c *gin.Context) {
	var query services.DuplicateQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.Duplicates.Check(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
