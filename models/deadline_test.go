package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadlineWindowIsOpen(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)
	w := DeadlineWindow{Name: "March intake", StartDate: start, EndDate: end, IsActive: true}

	tests := []struct {
		name string
		now  time.Time
		open bool
		days int
	}{
		{"before start", start.Add(-time.Second), false, 0},
		{"at start", start, true, 31},
		{"middle", time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC), true, 2},
		{"last hour", end.Add(-time.Hour), true, 1},
		{"at end", end, true, 0},
		{"after end", end.Add(time.Second), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, w.IsOpen(tt.now))
			assert.Equal(t, tt.days, w.DaysRemaining(tt.now))
		})
	}

	w.IsActive = false
	assert.False(t, w.IsOpen(start.Add(time.Hour)))
}

func TestApplicationStatusHelpers(t *testing.T) {
	app := Application{Status: StatusPending}
	assert.True(t, app.IsPending())
	assert.False(t, app.IsFinal())

	app.Status = StatusRejected
	assert.False(t, app.IsPending())
	assert.True(t, app.IsFinal())

	assert.True(t, ValidStatus(StatusApproved))
	assert.False(t, ValidStatus("archived"))
	assert.True(t, ValidDocumentKind(DocumentAdmissionLetter))
	assert.False(t, ValidDocumentKind("passport"))
	assert.True(t, IsAllowedContentType("application/pdf"))
	assert.False(t, IsAllowedContentType("text/html"))
}
