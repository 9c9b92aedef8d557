package services

import (
	"context"
	"testing"
	"time"

	"bursary-management-api/config"
	"bursary-management-api/models"
	"bursary-management-api/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedApplication(t *testing.T, store repository.Store, ref, status string, submitted time.Time, in ApplicationInput) {
	t.Helper()
	require.NoError(t, in.Validate())
	app := in.toModel()
	app.Reference = ref
	app.Status = status
	app.SubmittedAt = submitted
	require.NoError(t, store.CreateApplication(context.Background(), &app))
}

func TestDuplicateRules(t *testing.T) {
	store := repository.NewMemoryStore()
	now := testStart
	seedApplication(t, store, "MNG-RECENT01", models.StatusPending, now.AddDate(0, 0, -10), validInput(1))
	seedApplication(t, store, "MNG-OLD00001", models.StatusApproved, now.AddDate(-1, 0, 0), validInput(2))
	seedApplication(t, store, "MNG-REJECT01", models.StatusRejected, now.AddDate(0, 0, -1), validInput(3))

	d := NewDuplicateDetector(store, 180*24*time.Hour, func() time.Time { return now }, config.NewDiscardLogger())

	query := func(in ApplicationInput) DuplicateQuery {
		return DuplicateQuery{
			IDNumber:        in.IDNumber,
			Email:           in.Email,
			PhoneNumber:     in.PhoneNumber,
			InstitutionName: in.InstitutionName,
			AdmissionNumber: in.AdmissionNumber,
			FullName:        in.FullName,
			Ward:            in.Ward,
		}
	}

	tests := []struct {
		name       string
		query      DuplicateQuery
		duplicate  bool
		suspicious bool
		match      string
		existing   string
	}{
		{
			name:  "fresh applicant",
			query: query(validInput(9)),
		},
		{
			name:      "id number of an old approved application",
			query:     DuplicateQuery{IDNumber: validInput(2).IDNumber},
			duplicate: true,
			match:     MatchExactID,
			existing:  "MNG-OLD00001",
		},
		{
			name:      "id number of a rejected application",
			query:     DuplicateQuery{IDNumber: " " + validInput(3).IDNumber + " "},
			duplicate: true,
			match:     MatchExactID,
			existing:  "MNG-REJECT01",
		},
		{
			name:      "same email and phone in another format",
			query:     DuplicateQuery{Email: "APPLICANT1@EXAMPLE.COM", PhoneNumber: "254712345678"},
			duplicate: true,
			match:     MatchEmailPhone,
			existing:  "MNG-RECENT01",
		},
		{
			name:  "email and phone of an application outside the lookback",
			query: DuplicateQuery{Email: validInput(2).Email, PhoneNumber: validInput(2).PhoneNumber},
		},
		{
			name:  "email and phone of a rejected application",
			query: DuplicateQuery{Email: validInput(3).Email, PhoneNumber: validInput(3).PhoneNumber},
		},
		{
			name:      "same admission number at the same institution",
			query:     DuplicateQuery{InstitutionName: "machakos university", AdmissionNumber: validInput(1).AdmissionNumber},
			duplicate: true,
			match:     MatchInstitutionAdmission,
			existing:  "MNG-RECENT01",
		},
		{
			name:       "same name, ward and institution",
			query:      DuplicateQuery{FullName: "applicant number 1", Ward: "kivaa", InstitutionName: "Machakos University"},
			suspicious: true,
			match:      MatchFuzzy,
			existing:   "MNG-RECENT01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Check(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.duplicate, got.IsDuplicate)
			assert.Equal(t, tt.suspicious, got.IsSuspicious)
			assert.Equal(t, tt.match, got.MatchType)
			assert.Equal(t, tt.existing, got.ExistingReference)
			if tt.duplicate {
				assert.ErrorIs(t, got.Err(), ErrDuplicate)
			} else {
				assert.NoError(t, got.Err())
			}
		})
	}
}
