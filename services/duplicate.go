package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bursary-management-api/repository"
	"bursary-management-api/utils"

	"github.com/sirupsen/logrus"
)

// Match types reported by the duplicate detector.
const (
	MatchExactID              = "exact_id"
	MatchEmailPhone           = "email_phone"
	MatchInstitutionAdmission = "institution_admission"
	MatchFuzzy                = "fuzzy"
)

// DuplicateQuery holds the identifying fields of a prospective application.
type DuplicateQuery struct {
	IDNumber        string `json:"id_number"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	InstitutionName string `json:"institution_name"`
	AdmissionNumber string `json:"admission_number"`
	FullName        string `json:"full_name"`
	Ward            string `json:"ward"`
}

// DuplicateCheck is the outcome of a duplicate query. IsDuplicate blocks
// submission; IsSuspicious is only a warning. ExistingReference is kept for
// logging and is never serialized.
type DuplicateCheck struct {
	IsDuplicate       bool   `json:"is_duplicate"`
	IsSuspicious      bool   `json:"is_suspicious"`
	MatchType         string `json:"match_type,omitempty"`
	Reason            string `json:"reason,omitempty"`
	ExistingReference string `json:"-"`
}

// Err converts a blocking result into a Duplicate error, nil otherwise.
func (d *DuplicateCheck) Err() error {
	if d == nil || !d.IsDuplicate {
		return nil
	}
	return &Error{Kind: KindDuplicate, Reason: d.Reason, ExistingReference: d.ExistingReference}
}

type DuplicateDetector struct {
	store    repository.Store
	lookback time.Duration
	now      func() time.Time
	logger   *logrus.Logger
}

func NewDuplicateDetector(store repository.Store, lookback time.Duration, now func() time.Time, logger *logrus.Logger) *DuplicateDetector {
	if now == nil {
		now = time.Now
	}
	return &DuplicateDetector{store: store, lookback: lookback, now: now, logger: logger}
}

func (p *DuplicateQuery) normalize() {
	p.IDNumber = utils.SanitizeInput(p.IDNumber)
	p.Email = strings.ToLower(utils.SanitizeInput(p.Email))
	p.PhoneNumber = utils.NormalizePhone(p.PhoneNumber)
	p.InstitutionName = utils.SanitizeInput(p.InstitutionName)
	p.AdmissionNumber = utils.SanitizeInput(p.AdmissionNumber)
	p.FullName = utils.SanitizeInput(p.FullName)
	p.Ward = utils.SanitizeInput(p.Ward)
}

// Check runs the detection rules in order of strength and returns the first
// hit. An ID number match blocks regardless of age or status; the other rules
// only consider non-rejected applications inside the lookback period.
func (d *DuplicateDetector) Check(ctx context.Context, query DuplicateQuery) (*DuplicateCheck, error) {
	query.normalize()

	if query.IDNumber != "" {
		existing, err := d.store.FindByIDNumber(ctx, query.IDNumber)
		switch {
		case err == nil:
			d.logger.WithFields(logrus.Fields{"match_type": MatchExactID, "existing_reference": existing.Reference}).Warn("duplicate application detected")
			return &DuplicateCheck{
				IsDuplicate:       true,
				MatchType:         MatchExactID,
				Reason:            "An application with this ID number already exists. Use your reference number to track it",
				ExistingReference: existing.Reference,
			}, nil
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("lookup id number: %w", err)
		}
	}

	since := d.now().Add(-d.lookback)

	if query.Email != "" && query.PhoneNumber != "" {
		ref, err := d.firstRecent(ctx, repository.RecentMatch{Email: query.Email, PhoneNumber: query.PhoneNumber, Since: since})
		if err != nil {
			return nil, err
		}
		if ref != "" {
			d.logger.WithFields(logrus.Fields{"match_type": MatchEmailPhone, "existing_reference": ref}).Warn("duplicate application detected")
			return &DuplicateCheck{
				IsDuplicate:       true,
				MatchType:         MatchEmailPhone,
				Reason:            "An application with this email and phone number already exists",
				ExistingReference: ref,
			}, nil
		}
	}

	if query.InstitutionName != "" && query.AdmissionNumber != "" {
		ref, err := d.firstRecent(ctx, repository.RecentMatch{InstitutionName: query.InstitutionName, AdmissionNumber: query.AdmissionNumber, Since: since})
		if err != nil {
			return nil, err
		}
		if ref != "" {
			d.logger.WithFields(logrus.Fields{"match_type": MatchInstitutionAdmission, "existing_reference": ref}).Warn("duplicate application detected")
			return &DuplicateCheck{
				IsDuplicate:       true,
				MatchType:         MatchInstitutionAdmission,
				Reason:            fmt.Sprintf("An application for %s with admission number %s already exists", query.InstitutionName, query.AdmissionNumber),
				ExistingReference: ref,
			}, nil
		}
	}

	if query.FullName != "" && query.Ward != "" && query.InstitutionName != "" {
		ref, err := d.firstRecent(ctx, repository.RecentMatch{FullName: query.FullName, Ward: query.Ward, InstitutionName: query.InstitutionName, Since: since})
		if err != nil {
			return nil, err
		}
		if ref != "" {
			d.logger.WithFields(logrus.Fields{"match_type": MatchFuzzy, "existing_reference": ref}).Info("possible duplicate application")
			return &DuplicateCheck{
				IsSuspicious:      true,
				MatchType:         MatchFuzzy,
				Reason:            "A similar application was found. If this is not you, proceed",
				ExistingReference: ref,
			}, nil
		}
	}

	return &DuplicateCheck{}, nil
}

func (d *DuplicateDetector) firstRecent(ctx context.Context, match repository.RecentMatch) (string, error) {
	apps, err := d.store.FindRecent(ctx, match)
	if err != nil {
		return "", fmt.Errorf("find recent applications: %w", err)
	}
	if len(apps) == 0 {
		return "", nil
	}
	return apps[0].Reference, nil
}
