package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"bursary-management-api/config"
	"bursary-management-api/metrics"
	"bursary-management-api/models"
	"bursary-management-api/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// DefaultMaxUploadSize caps a single document upload.
	DefaultMaxUploadSize int64 = 5 << 20
)

// NotificationSink accepts notifications after commit. *Dispatcher satisfies it.
type NotificationSink interface {
	Dispatch(n Notification)
}

type discardSink struct{}

func (discardSink) Dispatch(Notification) {}

// DocumentUpload is one file submitted with a new application.
type DocumentUpload struct {
	Kind        string
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// CreateResult is returned to the applicant after a successful submission.
type CreateResult struct {
	Reference   string    `json:"reference_number"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	// Warning carries a non-blocking duplicate notice.
	Warning string `json:"warning,omitempty"`
}

// TransitionResult reports a committed status change.
type TransitionResult struct {
	Message   string `json:"message"`
	Reference string `json:"reference_number"`
	NewStatus string `json:"new_status"`
}

// BulkItem is the outcome for one reference of a bulk transition.
type BulkItem struct {
	Reference string    `json:"reference_number"`
	Success   bool      `json:"success"`
	Code      ErrorKind `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type BulkResult struct {
	Updated int        `json:"updated"`
	Failed  int        `json:"failed"`
	Items   []BulkItem `json:"items"`
}

// ApplicationPage is one page of an admin listing.
type ApplicationPage struct {
	Items      []models.Application `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}

// Stats is the admin overview.
type Stats struct {
	repository.StatusCounts
	ApprovalRate  float64 `json:"approval_rate"`
	RejectionRate float64 `json:"rejection_rate"`
	PendingRate   float64 `json:"pending_rate"`
}

// ApplicationServiceOptions carries the collaborators of ApplicationService.
// Nil fields get working defaults.
type ApplicationServiceOptions struct {
	Deadlines     *DeadlineService
	Duplicates    *DuplicateDetector
	Notifications NotificationSink
	Blobs         BlobStore
	MaxUploadSize int64
	Logger        *logrus.Logger
	Now           func() time.Time
}

// ApplicationService implements the application lifecycle: submission,
// status transitions with audit trail, applicant edits and admin queries.
type ApplicationService struct {
	store         repository.Store
	cfg           config.EngineConfig
	refs          *ReferenceGenerator
	deadlines     *DeadlineService
	duplicates    *DuplicateDetector
	notifications NotificationSink
	blobs         BlobStore
	maxUpload     int64
	logger        *logrus.Logger
	now           func() time.Time
}

func NewApplicationService(store repository.Store, cfg config.EngineConfig, opts ApplicationServiceOptions) *ApplicationService {
	s := &ApplicationService{
		store:         store,
		cfg:           cfg,
		refs:          NewReferenceGenerator(cfg.ReferencePrefix, cfg.ReferenceLength),
		deadlines:     opts.Deadlines,
		duplicates:    opts.Duplicates,
		notifications: opts.Notifications,
		blobs:         opts.Blobs,
		maxUpload:     opts.MaxUploadSize,
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = config.NewDiscardLogger()
	}
	if s.deadlines == nil {
		s.deadlines = NewDeadlineService(store, cfg.DeadlineCacheTTL, s.now)
	}
	if s.duplicates == nil {
		s.duplicates = NewDuplicateDetector(store, cfg.DuplicateLookback, s.now, s.logger)
	}
	if s.notifications == nil {
		s.notifications = discardSink{}
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadSize
	}
	return s
}

// Now returns the engine clock.
func (s *ApplicationService) Now() time.Time { return s.now() }

// Deadlines exposes the deadline service the engine consults.
func (s *ApplicationService) Deadlines() *DeadlineService { return s.deadlines }

func (s *ApplicationService) reject(op string, err error) error {
	if kind := KindOf(err); kind != "" {
		metrics.EngineRejections.WithLabelValues(op, string(kind)).Inc()
	}
	return err
}

// sniffLen is how much of an upload is read to detect its type.
const sniffLen = 3072

// sniffContentType replaces the declared content type with the one detected
// from the leading bytes and keeps those bytes in front of the content.
func sniffContentType(u *DocumentUpload) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read %s: %w", u.Filename, err)
	}
	head = head[:n]
	u.ContentType = mimetype.Detect(head).String()
	u.Content = io.MultiReader(bytes.NewReader(head), u.Content)
	return nil
}

// validateUploads checks every upload and rewrites its ContentType to the
// detected type.
func (s *ApplicationService) validateUploads(uploads []DocumentUpload) error {
	for i := range uploads {
		u := &uploads[i]
		if !models.ValidDocumentKind(u.Kind) {
			return newError(KindValidation, "unknown document kind %q", u.Kind)
		}
		if u.Content == nil {
			return newError(KindValidation, "%s: empty file", u.Filename)
		}
		declared := u.ContentType
		if err := sniffContentType(u); err != nil {
			return err
		}
		if !models.IsAllowedContentType(u.ContentType) {
			s.logger.WithFields(logrus.Fields{
				"file":     u.Filename,
				"declared": declared,
				"detected": u.ContentType,
			}).Warn("upload rejected by content type")
			return newError(KindValidation, "%s: only PDF, JPEG and PNG files are accepted", u.Filename)
		}
		if u.Size > s.maxUpload {
			return newError(KindValidation, "%s: file exceeds %d MB", u.Filename, s.maxUpload>>20)
		}
	}
	if len(uploads) > 0 && s.blobs == nil {
		return newError(KindValidation, "document uploads are not enabled")
	}
	return nil
}

func (s *ApplicationService) storeUploads(ctx context.Context, uploads []DocumentUpload) ([]models.ApplicationDocument, error) {
	docs := make([]models.ApplicationDocument, 0, len(uploads))
	for _, u := range uploads {
		key := NewBlobKey(s.now(), u.Filename)
		handle, err := s.blobs.Put(ctx, key, io.LimitReader(u.Content, s.maxUpload), u.Size, u.ContentType)
		if err != nil {
			s.discardBlobs(docs)
			return nil, fmt.Errorf("store %s: %w", u.Filename, err)
		}
		docs = append(docs, models.ApplicationDocument{
			Kind:         u.Kind,
			OriginalName: u.Filename,
			ContentType:  u.ContentType,
			Size:         u.Size,
			BlobHandle:   handle,
		})
	}
	return docs, nil
}

// discardBlobs removes blobs written for a submission that did not commit.
// Anything missed here is picked up by the orphan cleanup job.
func (s *ApplicationService) discardBlobs(docs []models.ApplicationDocument) {
	for _, d := range docs {
		if err := s.blobs.Delete(context.Background(), d.BlobHandle); err != nil {
			s.logger.WithError(err).WithField("handle", d.BlobHandle).Warn("discard uploaded blob")
		}
	}
}

// Create validates and stores a new application with status pending and its
// creation audit entry. Submission is refused while no deadline window is
// open. A generated reference that collides with an existing one is replaced,
// up to the configured number of attempts.
func (s *ApplicationService) Create(ctx context.Context, in ApplicationInput, uploads []DocumentUpload) (*CreateResult, error) {
	open, err := s.deadlines.IsOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("check deadline: %w", err)
	}
	if !open {
		return nil, s.reject("create", newError(KindSubmissionClosed, "Applications are currently closed"))
	}

	if err := in.Validate(); err != nil {
		return nil, s.reject("create", err)
	}
	if err := s.validateUploads(uploads); err != nil {
		return nil, s.reject("create", err)
	}

	dup, err := s.duplicates.Check(ctx, DuplicateQuery{
		IDNumber:        in.IDNumber,
		Email:           in.Email,
		PhoneNumber:     in.PhoneNumber,
		InstitutionName: in.InstitutionName,
		AdmissionNumber: in.AdmissionNumber,
		FullName:        in.FullName,
		Ward:            in.Ward,
	})
	if err != nil {
		return nil, err
	}
	if err := dup.Err(); err != nil {
		return nil, s.reject("create", err)
	}

	docs, err := s.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}

	app, err := s.insertWithReference(ctx, in, docs)
	if err != nil {
		s.discardBlobs(docs)
		return nil, s.reject("create", err)
	}

	metrics.ApplicationsCreated.Inc()
	s.logger.WithFields(logrus.Fields{
		"reference": app.Reference,
		"ward":      app.Ward,
		"documents": len(docs),
	}).Info("application submitted")

	s.notifications.Dispatch(Notification{
		Event:       models.EventCreated,
		Application: *app,
		NewStatus:   models.StatusPending,
	})

	result := &CreateResult{Reference: app.Reference, Status: app.Status, SubmittedAt: app.SubmittedAt}
	if dup.IsSuspicious {
		result.Warning = dup.Reason
	}
	return result, nil
}

func (s *ApplicationService) insertWithReference(ctx context.Context, in ApplicationInput, docs []models.ApplicationDocument) (*models.Application, error) {
	for attempt := 1; attempt <= s.cfg.ReferenceMaxAttempts; attempt++ {
		reference, err := s.refs.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate reference: %w", err)
		}

		app := in.toModel()
		app.Reference = reference
		app.Status = models.StatusPending
		app.SubmittedAt = s.now()

		err = s.store.Transaction(ctx, func(tx repository.Store) error {
			if err := tx.CreateApplication(ctx, &app); err != nil {
				return err
			}
			entry := &models.StatusLogEntry{
				ApplicationID: app.ID,
				OldStatus:     nil,
				NewStatus:     models.StatusPending,
				ChangedBy:     models.SystemActor,
				ChangedAt:     app.SubmittedAt,
			}
			if err := tx.AppendStatusLog(ctx, entry); err != nil {
				return fmt.Errorf("append creation log: %w", err)
			}
			for i := range docs {
				docs[i].ID = 0
				docs[i].ApplicationID = app.ID
				if err := tx.AddDocument(ctx, &docs[i]); err != nil {
					return fmt.Errorf("add document: %w", err)
				}
			}
			return nil
		})
		if err == nil {
			return &app, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("create application: %w", err)
		}

		// The unique violation is either the reference or the ID number.
		// An ID number taken since the duplicate check is a duplicate, not a
		// collision.
		if existing, lookupErr := s.store.FindByIDNumber(ctx, app.IDNumber); lookupErr == nil {
			return nil, &Error{
				Kind:              KindDuplicate,
				Reason:            "An application with this ID number already exists. Use your reference number to track it",
				ExistingReference: existing.Reference,
			}
		}
		metrics.ReferenceCollisions.Inc()
		s.logger.WithFields(logrus.Fields{"reference": reference, "attempt": attempt}).Warn("reference collision, regenerating")
	}
	return nil, newError(KindGenerationExhausted, "could not allocate a unique reference after %d attempts", s.cfg.ReferenceMaxAttempts)
}

// Get returns the application with its documents.
func (s *ApplicationService) Get(ctx context.Context, reference string) (*models.Application, error) {
	app, err := s.store.GetApplication(ctx, strings.TrimSpace(reference))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.reject("get", notFound(reference))
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	return app, nil
}

// Transition moves a pending application to approved or rejected. The status
// update and its audit entry commit together under a row lock; the applicant
// is notified only after commit.
func (s *ApplicationService) Transition(ctx context.Context, reference, newStatus, actor, reason string) (*TransitionResult, error) {
	reference = strings.TrimSpace(reference)
	newStatus = strings.ToLower(strings.TrimSpace(newStatus))
	if actor == "" {
		actor = models.SystemActor
	}
	var reasonPtr *string
	if r := strings.TrimSpace(reason); r != "" {
		reasonPtr = &r
	}

	var (
		app       *models.Application
		oldStatus string
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		app, err = tx.LockApplication(ctx, reference)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(reference)
		}
		if err != nil {
			return fmt.Errorf("lock application: %w", err)
		}
		oldStatus = app.Status

		if err := checkTransition(app, newStatus); err != nil {
			return err
		}
		if err := tx.UpdateApplicationStatus(ctx, app.ID, newStatus); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		old := oldStatus
		entry := &models.StatusLogEntry{
			ApplicationID: app.ID,
			OldStatus:     &old,
			NewStatus:     newStatus,
			ChangedBy:     actor,
			Reason:        reasonPtr,
			ChangedAt:     s.now(),
		}
		if err := tx.AppendStatusLog(ctx, entry); err != nil {
			return fmt.Errorf("append status log: %w", err)
		}
		app.Status = newStatus
		return nil
	})
	if err != nil {
		return nil, s.reject("transition", err)
	}

	metrics.StatusTransitions.WithLabelValues(newStatus).Inc()
	s.logger.WithFields(logrus.Fields{
		"reference":  reference,
		"old_status": oldStatus,
		"new_status": newStatus,
		"changed_by": actor,
	}).Info("application status changed")

	s.notifications.Dispatch(Notification{
		Event:       models.EventStatusChanged,
		Application: *app,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Reason:      reasonPtr,
	})

	return &TransitionResult{
		Message:   fmt.Sprintf("Application %s has been %s", reference, newStatus),
		Reference: reference,
		NewStatus: newStatus,
	}, nil
}

// BulkTransition applies Transition to each reference independently; one
// failure does not stop the rest.
func (s *ApplicationService) BulkTransition(ctx context.Context, references []string, newStatus, actor, reason string) (*BulkResult, error) {
	status := strings.ToLower(strings.TrimSpace(newStatus))
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, s.reject("bulk_transition", newError(KindInvalidStatus, "status %q is not a valid decision; use approved or rejected", newStatus))
	}
	if len(references) == 0 {
		return nil, newError(KindValidation, "no applications selected")
	}

	result := &BulkResult{Items: make([]BulkItem, 0, len(references))}
	seen := make(map[string]bool, len(references))
	for _, ref := range references {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true

		item := BulkItem{Reference: ref}
		err := ctx.Err()
		if err == nil {
			_, err = s.Transition(ctx, ref, status, actor, reason)
		}
		if err != nil {
			var engineErr *Error
			if errors.As(err, &engineErr) {
				item.Code, item.Error = engineErr.Kind, engineErr.Reason
			} else {
				s.logger.WithError(err).WithField("reference", ref).Error("bulk status change failed")
				item.Code, item.Error = KindInternal, "The status could not be changed. Try again later"
			}
			result.Failed++
		} else {
			item.Success = true
			result.Updated++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// History returns the audit trail of an application, newest first.
func (s *ApplicationService) History(ctx context.Context, reference string) ([]models.StatusLogEntry, error) {
	app, err := s.store.GetApplication(ctx, strings.TrimSpace(reference))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.reject("history", notFound(reference))
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	entries, err := s.store.ListStatusLogs(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	return entries, nil
}

// List returns one page of applications, newest first.
func (s *ApplicationService) List(ctx context.Context, filter repository.ApplicationFilter) (*ApplicationPage, error) {
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, newError(KindValidation, "unknown status filter %q", filter.Status)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	switch {
	case filter.PageSize <= 0:
		filter.PageSize = defaultPageSize
	case filter.PageSize > maxPageSize:
		filter.PageSize = maxPageSize
	}
	filter.Search = strings.TrimSpace(filter.Search)

	items, total, err := s.store.ListApplications(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if items == nil {
		items = []models.Application{}
	}
	return &ApplicationPage{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.PageSize))),
	}, nil
}

// Stats returns status totals, amounts and rates in percent.
func (s *ApplicationService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	stats := &Stats{StatusCounts: *counts}
	if counts.Total > 0 {
		total := float64(counts.Total)
		stats.ApprovalRate = roundPercent(float64(counts.Approved) / total)
		stats.RejectionRate = roundPercent(float64(counts.Rejected) / total)
		stats.PendingRate = roundPercent(float64(counts.Pending) / total)
	}
	return stats, nil
}

func roundPercent(ratio float64) float64 {
	return math.Round(ratio*10000) / 100
}
