package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bursary-management-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of GORM. The DB must be opened with
// TranslateError enabled so unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the engine tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Application{},
		&models.ApplicationDocument{},
		&models.StatusLogEntry{},
		&models.DeadlineWindow{},
		&models.NotificationRecord{},
		&models.AdminUser{},
	)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

func (s *GormStore) CreateApplication(ctx context.Context, app *models.Application) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(app).Error)
}

func (s *GormStore) GetApplication(ctx context.Context, reference string) (*models.Application, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).Preload("Documents").
		Where("reference = ?", reference).
		First(&app).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *GormStore) LockApplication(ctx context.Context, reference string) (*models.Application, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).
		First(&app).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *GormStore) UpdateApplicationStatus(ctx context.Context, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateApplicationFields(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Application{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Ward != "" {
		query = query.Where("ward = ?", filter.Ward)
	}
	if filter.LevelOfStudy != "" {
		query = query.Where("level_of_study = ?", filter.LevelOfStudy)
	}
	if filter.InstitutionType != "" {
		query = query.Where("institution_type = ?", filter.InstitutionType)
	}
	if filter.FamilyStatus != "" {
		query = query.Where("family_status = ?", filter.FamilyStatus)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(full_name) LIKE ? OR LOWER(id_number) LIKE ? OR LOWER(reference) LIKE ? OR LOWER(institution_name) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	var apps []models.Application
	q := query.Order("submitted_at DESC").Order("id DESC")
	if filter.PageSize > 0 {
		q = q.Limit(filter.PageSize).Offset(filter.Offset())
	}
	if err := q.Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	return apps, total, nil
}

func (s *GormStore) CountByStatus(ctx context.Context) (*StatusCounts, error) {
	var rows []struct {
		Status string
		Count  int64
		Amount uint64
	}
	if err := s.db.WithContext(ctx).Model(&models.Application{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}

	counts := &StatusCounts{}
	for _, row := range rows {
		counts.Total += row.Count
		counts.AmountRequested += row.Amount
		switch row.Status {
		case models.StatusPending:
			counts.Pending = row.Count
		case models.StatusApproved:
			counts.Approved = row.Count
			counts.AmountApproved = row.Amount
		case models.StatusRejected:
			counts.Rejected = row.Count
		}
	}
	return counts, nil
}

func (s *GormStore) FindByIDNumber(ctx context.Context, idNumber string) (*models.Application, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).Where("id_number = ?", idNumber).First(&app).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *GormStore) FindRecent(ctx context.Context, match RecentMatch) ([]models.Application, error) {
	query := s.db.WithContext(ctx).
		Where("status <> ?", models.StatusRejected).
		Where("submitted_at >= ?", match.Since)

	if match.Email != "" {
		query = query.Where("LOWER(email) = ?", strings.ToLower(match.Email))
	}
	if match.PhoneNumber != "" {
		query = query.Where("phone_number = ?", match.PhoneNumber)
	}
	if match.InstitutionName != "" {
		query = query.Where("LOWER(institution_name) = ?", strings.ToLower(match.InstitutionName))
	}
	if match.AdmissionNumber != "" {
		query = query.Where("admission_number = ?", match.AdmissionNumber)
	}
	if match.FullName != "" {
		query = query.Where("LOWER(full_name) = ?", strings.ToLower(match.FullName))
	}
	if match.Ward != "" {
		query = query.Where("ward = ?", match.Ward)
	}

	var apps []models.Application
	if err := query.Order("submitted_at DESC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("find recent applications: %w", err)
	}
	return apps, nil
}

func (s *GormStore) AddDocument(ctx context.Context, doc *models.ApplicationDocument) error {
	return translate(s.db.WithContext(ctx).Create(doc).Error)
}

func (s *GormStore) ListDocumentHandles(ctx context.Context) ([]string, error) {
	var handles []string
	if err := s.db.WithContext(ctx).Model(&models.ApplicationDocument{}).
		Pluck("blob_handle", &handles).Error; err != nil {
		return nil, fmt.Errorf("list document handles: %w", err)
	}
	return handles, nil
}

func (s *GormStore) AppendStatusLog(ctx context.Context, entry *models.StatusLogEntry) error {
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) ListStatusLogs(ctx context.Context, applicationID uint) ([]models.StatusLogEntry, error) {
	var entries []models.StatusLogEntry
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("changed_at DESC").Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	return entries, nil
}

func (s *GormStore) ListDeadlines(ctx context.Context, activeOnly bool) ([]models.DeadlineWindow, error) {
	query := s.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var windows []models.DeadlineWindow
	if err := query.Order("end_date DESC").Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return windows, nil
}

func (s *GormStore) GetDeadline(ctx context.Context, id uint) (*models.DeadlineWindow, error) {
	var window models.DeadlineWindow
	if err := s.db.WithContext(ctx).First(&window, id).Error; err != nil {
		return nil, translate(err)
	}
	return &window, nil
}

func (s *GormStore) SaveDeadline(ctx context.Context, d *models.DeadlineWindow) error {
	return translate(s.db.WithContext(ctx).Save(d).Error)
}

func (s *GormStore) RecordNotification(ctx context.Context, rec *models.NotificationRecord) error {
	return translate(s.db.WithContext(ctx).Create(rec).Error)
}

func (s *GormStore) FindAdminByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var user models.AdminUser
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) SaveAdmin(ctx context.Context, user *models.AdminUser) error {
	return translate(s.db.WithContext(ctx).Save(user).Error)
}
