// Package repository holds the persistence contract of the application
// engine and its GORM and in-memory implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"bursary-management-api/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert or update violates a unique
	// constraint (application reference or ID number, admin username).
	ErrDuplicateKey = errors.New("duplicate key")
)

// ApplicationFilter narrows an admin listing. Empty fields do not filter.
type ApplicationFilter struct {
	Status          string
	Ward            string
	LevelOfStudy    string
	InstitutionType string
	FamilyStatus    string
	Search          string // matched against name, ID number, reference, institution, email
	Page            int    // 1-based
	PageSize        int
}

// Offset returns the row offset for the filter's page.
func (f ApplicationFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// RecentMatch looks for non-rejected applications submitted at or after
// Since whose non-empty fields all match. Names and institutions compare
// case-insensitively.
type RecentMatch struct {
	Email           string
	PhoneNumber     string
	InstitutionName string
	AdmissionNumber string
	FullName        string
	Ward            string
	Since           time.Time
}

// StatusCounts aggregates applications per status.
type StatusCounts struct {
	Total           int64  `json:"total_applications"`
	Pending         int64  `json:"pending_count"`
	Approved        int64  `json:"approved_count"`
	Rejected        int64  `json:"rejected_count"`
	AmountRequested uint64 `json:"total_amount_requested"`
	AmountApproved  uint64 `json:"approved_amount"`
}

// ApplicationRepository persists applications and their documents.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, reference string) (*models.Application, error)
	// LockApplication loads the application and holds a row lock on it until
	// the surrounding transaction ends.
	LockApplication(ctx context.Context, reference string) (*models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id uint, status string) error
	UpdateApplicationFields(ctx context.Context, id uint, fields map[string]any) error
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error)
	CountByStatus(ctx context.Context) (*StatusCounts, error)
	FindByIDNumber(ctx context.Context, idNumber string) (*models.Application, error)
	FindRecent(ctx context.Context, match RecentMatch) ([]models.Application, error)

	AddDocument(ctx context.Context, doc *models.ApplicationDocument) error
	ListDocumentHandles(ctx context.Context) ([]string, error)
}

// StatusLogRepository is the append-only audit log.
type StatusLogRepository interface {
	AppendStatusLog(ctx context.Context, entry *models.StatusLogEntry) error
	// ListStatusLogs returns the entries of one application, newest first.
	ListStatusLogs(ctx context.Context, applicationID uint) ([]models.StatusLogEntry, error)
}

type DeadlineRepository interface {
	ListDeadlines(ctx context.Context, activeOnly bool) ([]models.DeadlineWindow, error)
	GetDeadline(ctx context.Context, id uint) (*models.DeadlineWindow, error)
	SaveDeadline(ctx context.Context, d *models.DeadlineWindow) error
}

type NotificationRepository interface {
	RecordNotification(ctx context.Context, rec *models.NotificationRecord) error
}

type AdminRepository interface {
	FindAdminByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	SaveAdmin(ctx context.Context, user *models.AdminUser) error
}

// Store is the single authoritative record store. Transaction runs fn
// against a Store bound to one transaction; returning an error rolls back
// every write fn made.
type Store interface {
	ApplicationRepository
	StatusLogRepository
	DeadlineRepository
	NotificationRepository
	AdminRepository

	Transaction(ctx context.Context, fn func(tx Store) error) error
}
