package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bursary-management-api/metrics"
	"bursary-management-api/models"
	"bursary-management-api/repository"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const activeWindowsKey = "active"

// DeadlineStatus is the public answer to "is submission open right now".
type DeadlineStatus struct {
	IsOpen        bool       `json:"is_open"`
	Name          string     `json:"name,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
	Message       string     `json:"message,omitempty"`
}

// DeadlineInput carries the admin-editable fields of a window.
type DeadlineInput struct {
	Name      string    `json:"name" validate:"required,max=255"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	IsActive  *bool     `json:"is_active"`
}

type DeadlineService struct {
	store repository.Store
	now   func() time.Time
	// nil when caching is disabled
	cache *expirable.LRU[string, []models.DeadlineWindow]
}

// NewDeadlineService builds the service. A zero cacheTTL disables caching of
// the active window list.
func NewDeadlineService(store repository.Store, cacheTTL time.Duration, now func() time.Time) *DeadlineService {
	if now == nil {
		now = time.Now
	}
	s := &DeadlineService{store: store, now: now}
	if cacheTTL > 0 {
		s.cache = expirable.NewLRU[string, []models.DeadlineWindow](1, nil, cacheTTL)
	}
	return s
}

func (s *DeadlineService) activeWindows(ctx context.Context) ([]models.DeadlineWindow, error) {
	if s.cache != nil {
		if windows, ok := s.cache.Get(activeWindowsKey); ok {
			metrics.DeadlineCacheHits.Inc()
			return windows, nil
		}
		metrics.DeadlineCacheMisses.Inc()
	}

	windows, err := s.store.ListDeadlines(ctx, true)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(activeWindowsKey, windows)
	}
	return windows, nil
}

func (s *DeadlineService) invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// pickWindow returns the authoritative window among active ones: latest
// start date, then most recently created, then highest id.
func pickWindow(windows []models.DeadlineWindow) *models.DeadlineWindow {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]models.DeadlineWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.After(b.StartDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return &sorted[0]
}

// CurrentWindow returns the authoritative active window, or nil when none is
// active.
func (s *DeadlineService) CurrentWindow(ctx context.Context) (*models.DeadlineWindow, error) {
	windows, err := s.activeWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load deadline windows: %w", err)
	}
	return pickWindow(windows), nil
}

// Status reports whether submission is open at the service clock.
func (s *DeadlineService) Status(ctx context.Context) (*DeadlineStatus, error) {
	window, err := s.CurrentWindow(ctx)
	if err != nil {
		return nil, err
	}
	if window == nil {
		return &DeadlineStatus{Message: "No active application deadline"}, nil
	}

	now := s.now()
	start, end := window.StartDate, window.EndDate
	status := &DeadlineStatus{
		IsOpen:        window.IsOpen(now),
		Name:          window.Name,
		StartDate:     &start,
		EndDate:       &end,
		DaysRemaining: window.DaysRemaining(now),
	}
	switch {
	case now.Before(start):
		status.Message = fmt.Sprintf("Applications open on %s", start.Format("2 January 2006"))
	case now.After(end):
		status.Message = "The application deadline has passed"
	}
	return status, nil
}

// IsOpen is shorthand for Status().IsOpen.
func (s *DeadlineService) IsOpen(ctx context.Context) (bool, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.IsOpen, nil
}

// List returns every window, newest end date first.
func (s *DeadlineService) List(ctx context.Context) ([]models.DeadlineWindow, error) {
	windows, err := s.store.ListDeadlines(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return windows, nil
}

func (in *DeadlineInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	return nil
}

// Create stores a new window. Windows are active unless stated otherwise.
func (s *DeadlineService) Create(ctx context.Context, in DeadlineInput) (*models.DeadlineWindow, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	window := &models.DeadlineWindow{
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		IsActive:  in.IsActive == nil || *in.IsActive,
	}
	if err := s.store.SaveDeadline(ctx, window); err != nil {
		return nil, fmt.Errorf("save deadline: %w", err)
	}
	s.invalidate()
	return window, nil
}

// Update replaces the editable fields of window id.
func (s *DeadlineService) Update(ctx context.Context, id uint, in DeadlineInput) (*models.DeadlineWindow, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	window, err := s.store.GetDeadline(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "deadline %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load deadline: %w", err)
	}

	window.Name = in.Name
	window.StartDate = in.StartDate
	window.EndDate = in.EndDate
	if in.IsActive != nil {
		window.IsActive = *in.IsActive
	}
	if err := s.store.SaveDeadline(ctx, window); err != nil {
		return nil, fmt.Errorf("save deadline: %w", err)
	}
	s.invalidate()
	return window, nil
}
