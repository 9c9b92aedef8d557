package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bursary-management-api/metrics"
	"bursary-management-api/models"
	"bursary-management-api/repository"
)

// Eligibility is the answer of the edit gate. When CanEdit is false Kind and
// Reason say why; Status and SubmittedAt are only filled once the caller's
// email has matched.
type Eligibility struct {
	CanEdit           bool          `json:"can_edit"`
	Kind              ErrorKind     `json:"code,omitempty"`
	Reason            string        `json:"reason"`
	Status            string        `json:"status,omitempty"`
	SubmittedAt       *time.Time    `json:"submitted_at,omitempty"`
	TimeRemaining     time.Duration `json:"-"`
	TimeRemainingText string        `json:"edit_time_remaining,omitempty"`
}

// Err returns the gate failure as an engine error, or nil when editing is
// allowed.
func (e *Eligibility) Err() error {
	if e.CanEdit {
		return nil
	}
	return newError(e.Kind, "%s", e.Reason)
}

func emailsMatch(stored, claimed string) bool {
	return strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(claimed))
}

// evaluate runs the gate checks against a loaded application. window is the
// current deadline window, nil when none is active.
func (s *ApplicationService) evaluate(app *models.Application, claimedEmail string, now time.Time, window *models.DeadlineWindow) *Eligibility {
	if !emailsMatch(app.Email, claimedEmail) {
		return &Eligibility{Kind: KindEmailMismatch, Reason: "Email does not match application record"}
	}

	submitted := app.SubmittedAt
	result := &Eligibility{Status: app.Status, SubmittedAt: &submitted}

	if !app.IsPending() {
		result.Kind = KindNotPending
		result.Reason = "Rejected applications cannot be edited. Please submit a new application"
		if app.Status == models.StatusApproved {
			result.Reason = "Application has been approved and cannot be edited"
		}
		return result
	}

	elapsed := now.Sub(app.SubmittedAt)
	if elapsed > s.cfg.EditWindow {
		result.Kind = KindWindowExpired
		result.Reason = fmt.Sprintf("Edit window expired. Applications can only be edited within %g hours of submission", s.cfg.EditWindow.Hours())
		return result
	}

	// Editing also stops once the current submission window has closed.
	if window != nil && !window.IsOpen(now) {
		result.Kind, result.Reason = KindWindowExpired, "Application deadline has passed"
		return result
	}

	result.CanEdit = true
	result.Reason = "Application can be edited"
	result.TimeRemaining = s.cfg.EditWindow - elapsed
	if result.TimeRemaining < 0 {
		result.TimeRemaining = 0
	}
	result.TimeRemainingText = formatHoursMinutes(result.TimeRemaining)
	return result
}

// CheckEligibility reports whether the holder of claimedEmail may edit the
// application at now. It is a pure read; ApplyEdit repeats every check.
func (s *ApplicationService) CheckEligibility(ctx context.Context, reference, claimedEmail string, now time.Time) (*Eligibility, error) {
	app, err := s.store.GetApplication(ctx, strings.TrimSpace(reference))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(reference)
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	window, err := s.deadlines.CurrentWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("check eligibility: %w", err)
	}
	result := s.evaluate(app, claimedEmail, now, window)
	if !result.CanEdit {
		metrics.EngineRejections.WithLabelValues("check_eligibility", string(result.Kind)).Inc()
	}
	return result, nil
}

// GetForEdit returns the full application when the caller may edit it.
func (s *ApplicationService) GetForEdit(ctx context.Context, reference, claimedEmail string) (*models.Application, *Eligibility, error) {
	result, err := s.CheckEligibility(ctx, reference, claimedEmail, s.now())
	if err != nil {
		return nil, nil, err
	}
	if err := result.Err(); err != nil {
		return nil, result, err
	}
	app, err := s.store.GetApplication(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, nil, fmt.Errorf("load application: %w", err)
	}
	return app, result, nil
}

// ApplyEdit overwrites the supplied content fields after re-validating the
// gate under a row lock. Reference, status and submission time never change
// and no audit entry is written.
func (s *ApplicationService) ApplyEdit(ctx context.Context, reference, claimedEmail string, fields EditFields) (*models.Application, error) {
	// Read outside the transaction; the window is store-wide, not per row.
	window, err := s.deadlines.CurrentWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply edit: %w", err)
	}

	var (
		updated *models.Application
		cols    map[string]any
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		app, err := tx.LockApplication(ctx, strings.TrimSpace(reference))
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(reference)
		}
		if err != nil {
			return fmt.Errorf("lock application: %w", err)
		}

		if err := s.evaluate(app, claimedEmail, s.now(), window).Err(); err != nil {
			return err
		}
		if err := fields.Validate(); err != nil {
			return err
		}
		cols = fields.columns()

		if len(cols) > 0 {
			if err := tx.UpdateApplicationFields(ctx, app.ID, cols); err != nil {
				return fmt.Errorf("update application: %w", err)
			}
		}
		updated, err = tx.GetApplication(ctx, app.Reference)
		return err
	})
	if err != nil {
		if kind := KindOf(err); kind != "" {
			metrics.EngineRejections.WithLabelValues("apply_edit", string(kind)).Inc()
		}
		return nil, err
	}

	s.logger.WithField("reference", updated.Reference).WithField("fields", len(cols)).Info("application edited by applicant")
	return updated, nil
}

// formatHoursMinutes renders the edit time left as "N hour(s) M minute(s)",
// dropping the hour part when it is zero. It is only called while editing is
// still allowed, so anything under a minute reads "less than a minute".
func formatHoursMinutes(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%d hour(s) %d minute(s)", hours, minutes)
	}
	return fmt.Sprintf("%d minute(s)", minutes)
}
