package services

import (
	"context"
	"testing"
	"time"

	"bursary-management-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibilityWindow(t *testing.T) {
	e := newEngine(t, true)
	res := e.create(t, validInput(1))
	email := "Applicant1@Example.com "

	tests := []struct {
		name    string
		elapsed time.Duration
		canEdit bool
		text    string
	}{
		{"fresh", 0, true, "24 hour(s) 0 minute(s)"},
		{"ninety minutes in", 90 * time.Minute, true, "22 hour(s) 30 minute(s)"},
		{"last hour", 23*time.Hour + 15*time.Minute, true, "45 minute(s)"},
		{"one minute left", 24*time.Hour - time.Minute, true, "1 minute(s)"},
		{"thirty seconds left", 24*time.Hour - 30*time.Second, true, "less than a minute"},
		{"exactly at the limit", 24 * time.Hour, true, "less than a minute"},
		{"one minute late", 24*time.Hour + time.Minute, false, ""},
		{"days later", 72 * time.Hour, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.svc.CheckEligibility(context.Background(), res.Reference, email, testStart.Add(tt.elapsed))
			require.NoError(t, err)
			assert.Equal(t, tt.canEdit, got.CanEdit)
			assert.Equal(t, tt.text, got.TimeRemainingText)
			if !tt.canEdit {
				assert.Equal(t, KindWindowExpired, got.Kind)
				assert.Contains(t, got.Reason, "expired")
				assert.ErrorIs(t, got.Err(), ErrWindowExpired)
			} else {
				assert.NoError(t, got.Err())
			}
		})
	}
}

func TestEligibilityUnknownReference(t *testing.T) {
	e := newEngine(t, true)
	_, err := e.svc.CheckEligibility(context.Background(), "MNG-ZZZZZZZZ", "a@x.com", testStart)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEligibilityStopsWhenDeadlinePasses(t *testing.T) {
	e := newEngine(t, true)
	ctx := context.Background()
	res := e.create(t, validInput(1))

	windows, err := e.svc.Deadlines().List(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	_, err = e.svc.Deadlines().Update(ctx, windows[0].ID, DeadlineInput{
		Name:      windows[0].Name,
		StartDate: windows[0].StartDate,
		EndDate:   testStart.Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := e.svc.CheckEligibility(ctx, res.Reference, "applicant1@example.com", testStart.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, got.CanEdit)
	assert.Equal(t, KindWindowExpired, got.Kind)
	assert.Equal(t, "Application deadline has passed", got.Reason)
}

func TestGetForEdit(t *testing.T) {
	e := newEngine(t, true)
	res := e.create(t, validInput(1))

	app, elig, err := e.svc.GetForEdit(context.Background(), res.Reference, "applicant1@example.com")
	require.NoError(t, err)
	assert.True(t, elig.CanEdit)
	assert.Equal(t, res.Reference, app.Reference)

	app, elig, err = e.svc.GetForEdit(context.Background(), res.Reference, "someone@else.com")
	assert.ErrorIs(t, err, ErrEmailMismatch)
	assert.Nil(t, app)
	require.NotNil(t, elig)
	assert.False(t, elig.CanEdit)
}

func TestApplyEditChangesContentOnly(t *testing.T) {
	e := newEngine(t, true)
	ctx := context.Background()
	res := e.create(t, validInput(1))
	e.clock.Advance(3 * time.Hour)

	amount := uint(40000)
	newEmail := "New.Address@Example.com"
	phone := "0798 765 432"
	income := "low"
	updated, err := e.svc.ApplyEdit(ctx, res.Reference, "applicant1@example.com", EditFields{
		Email:        &newEmail,
		Amount:       &amount,
		PhoneNumber:  &phone,
		FatherIncome: &income,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.address@example.com", updated.Email)
	assert.EqualValues(t, 40000, updated.Amount)
	assert.Equal(t, "+254798765432", updated.PhoneNumber)
	require.NotNil(t, updated.FatherIncome)
	assert.Equal(t, "low", *updated.FatherIncome)

	assert.Equal(t, res.Reference, updated.Reference)
	assert.Equal(t, models.StatusPending, updated.Status)
	assert.True(t, updated.SubmittedAt.Equal(testStart), "submitted_at must not move")

	history, err := e.svc.History(ctx, res.Reference)
	require.NoError(t, err)
	assert.Len(t, history, 1, "edits are not audited as transitions")

	_, err = e.svc.ApplyEdit(ctx, res.Reference, "applicant1@example.com", EditFields{Amount: &amount})
	assert.ErrorIs(t, err, ErrEmailMismatch)
	_, err = e.svc.ApplyEdit(ctx, res.Reference, "new.address@example.com", EditFields{Amount: &amount})
	assert.NoError(t, err)
}

func TestApplyEditRechecksTheWindow(t *testing.T) {
	e := newEngine(t, true)
	ctx := context.Background()
	res := e.create(t, validInput(1))

	elig, err := e.svc.CheckEligibility(ctx, res.Reference, "applicant1@example.com", e.clock.Now())
	require.NoError(t, err)
	require.True(t, elig.CanEdit)

	e.clock.Advance(25 * time.Hour)
	amount := uint(1)
	_, err = e.svc.ApplyEdit(ctx, res.Reference, "applicant1@example.com", EditFields{Amount: &amount})
	assert.ErrorIs(t, err, ErrWindowExpired)

	app, err := e.svc.Get(ctx, res.Reference)
	require.NoError(t, err)
	assert.EqualValues(t, 25000, app.Amount)
}

func TestApplyEditValidatesFields(t *testing.T) {
	e := newEngine(t, true)
	res := e.create(t, validInput(1))

	ward := "westlands"
	_, err := e.svc.ApplyEdit(context.Background(), res.Reference, "applicant1@example.com", EditFields{Ward: &ward})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.ApplyEdit(context.Background(), "MNG-00000000", "applicant1@example.com", EditFields{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyEditReportsUnknownReferenceBeforeBadFields(t *testing.T) {
	e := newEngine(t, true)
	e.create(t, validInput(1))

	ward := "westlands"
	_, err := e.svc.ApplyEdit(context.Background(), "MNG-00000000", "applicant1@example.com", EditFields{Ward: &ward})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestFormatHoursMinutes(t *testing.T) {
	assert.Equal(t, "less than a minute", formatHoursMinutes(0))
	assert.Equal(t, "less than a minute", formatHoursMinutes(30*time.Second))
	assert.Equal(t, "1 minute(s)", formatHoursMinutes(time.Minute))
	assert.Equal(t, "1 hour(s) 1 minute(s)", formatHoursMinutes(61*time.Minute))
}
