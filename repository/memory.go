package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bursary-management-api/models"
)

type memoryState struct {
	nextID        uint
	applications  map[uint]models.Application
	byReference   map[string]uint
	byIDNumber    map[string]uint
	documents     []models.ApplicationDocument
	statusLogs    []models.StatusLogEntry
	deadlines     map[uint]models.DeadlineWindow
	notifications []models.NotificationRecord
	admins        map[uint]models.AdminUser
}

func newMemoryState() *memoryState {
	return &memoryState{
		applications: make(map[uint]models.Application),
		byReference:  make(map[string]uint),
		byIDNumber:   make(map[string]uint),
		deadlines:    make(map[uint]models.DeadlineWindow),
		admins:       make(map[uint]models.AdminUser),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		nextID:        s.nextID,
		applications:  make(map[uint]models.Application, len(s.applications)),
		byReference:   make(map[string]uint, len(s.byReference)),
		byIDNumber:    make(map[string]uint, len(s.byIDNumber)),
		documents:     append([]models.ApplicationDocument(nil), s.documents...),
		statusLogs:    append([]models.StatusLogEntry(nil), s.statusLogs...),
		deadlines:     make(map[uint]models.DeadlineWindow, len(s.deadlines)),
		notifications: append([]models.NotificationRecord(nil), s.notifications...),
		admins:        make(map[uint]models.AdminUser, len(s.admins)),
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.byReference {
		c.byReference[k] = v
	}
	for k, v := range s.byIDNumber {
		c.byIDNumber[k] = v
	}
	for k, v := range s.deadlines {
		c.deadlines[k] = v
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	return c
}

func (s *memoryState) id() uint {
	s.nextID++
	return s.nextID
}

// MemoryStore is an in-process Store. Transactions are serialized by a single
// mutex and rolled back by restoring a snapshot, which gives the same
// row-lock semantics the engine relies on from SQL stores.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memoryState
	inTx  bool
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, state: newMemoryState(), now: time.Now}
}

// SetClock replaces the time source used for created_at/updated_at stamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	defer s.lock()()
	s.now = now
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	tx := &MemoryStore{mu: s.mu, state: s.state, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) CreateApplication(_ context.Context, app *models.Application) error {
	defer s.lock()()
	if _, ok := s.state.byReference[app.Reference]; ok {
		return fmt.Errorf("%w: reference %s", ErrDuplicateKey, app.Reference)
	}
	if _, ok := s.state.byIDNumber[app.IDNumber]; ok {
		return fmt.Errorf("%w: id_number %s", ErrDuplicateKey, app.IDNumber)
	}
	now := s.now()
	app.ID = s.state.id()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	stored := *app
	stored.Documents = nil
	stored.StatusLogs = nil
	s.state.applications[app.ID] = stored
	s.state.byReference[app.Reference] = app.ID
	s.state.byIDNumber[app.IDNumber] = app.ID
	return nil
}

func (s *MemoryStore) findByReference(reference string) (models.Application, bool) {
	id, ok := s.state.byReference[reference]
	if !ok {
		return models.Application{}, false
	}
	return s.state.applications[id], true
}

func (s *MemoryStore) GetApplication(_ context.Context, reference string) (*models.Application, error) {
	defer s.lock()()
	app, ok := s.findByReference(reference)
	if !ok {
		return nil, ErrNotFound
	}
	for _, doc := range s.state.documents {
		if doc.ApplicationID == app.ID {
			app.Documents = append(app.Documents, doc)
		}
	}
	return &app, nil
}

func (s *MemoryStore) LockApplication(_ context.Context, reference string) (*models.Application, error) {
	defer s.lock()()
	app, ok := s.findByReference(reference)
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (s *MemoryStore) UpdateApplicationStatus(_ context.Context, id uint, status string) error {
	defer s.lock()()
	app, ok := s.state.applications[id]
	if !ok {
		return ErrNotFound
	}
	app.Status = status
	app.UpdatedAt = s.now()
	s.state.applications[id] = app
	return nil
}

func (s *MemoryStore) UpdateApplicationFields(_ context.Context, id uint, fields map[string]any) error {
	defer s.lock()()
	app, ok := s.state.applications[id]
	if !ok {
		return ErrNotFound
	}
	oldIDNumber := app.IDNumber
	for column, value := range fields {
		if err := setApplicationColumn(&app, column, value); err != nil {
			return err
		}
	}
	if app.IDNumber != oldIDNumber {
		if other, taken := s.state.byIDNumber[app.IDNumber]; taken && other != id {
			return fmt.Errorf("%w: id_number %s", ErrDuplicateKey, app.IDNumber)
		}
		delete(s.state.byIDNumber, oldIDNumber)
		s.state.byIDNumber[app.IDNumber] = id
	}
	app.UpdatedAt = s.now()
	s.state.applications[id] = app
	return nil
}

func (s *MemoryStore) ListApplications(_ context.Context, filter ApplicationFilter) ([]models.Application, int64, error) {
	defer s.lock()()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var matched []models.Application
	for _, app := range s.state.applications {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.Ward != "" && app.Ward != filter.Ward {
			continue
		}
		if filter.LevelOfStudy != "" && app.LevelOfStudy != filter.LevelOfStudy {
			continue
		}
		if filter.InstitutionType != "" && app.InstitutionType != filter.InstitutionType {
			continue
		}
		if filter.FamilyStatus != "" && app.FamilyStatus != filter.FamilyStatus {
			continue
		}
		if search != "" && !containsAny(search, app.FullName, app.IDNumber, app.Reference, app.InstitutionName, app.Email) {
			continue
		}
		matched = append(matched, app)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if filter.PageSize > 0 {
		start := filter.Offset()
		if start >= len(matched) {
			return []models.Application{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func containsAny(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CountByStatus(_ context.Context) (*StatusCounts, error) {
	defer s.lock()()
	counts := &StatusCounts{}
	for _, app := range s.state.applications {
		counts.Total++
		counts.AmountRequested += uint64(app.Amount)
		switch app.Status {
		case models.StatusPending:
			counts.Pending++
		case models.StatusApproved:
			counts.Approved++
			counts.AmountApproved += uint64(app.Amount)
		case models.StatusRejected:
			counts.Rejected++
		}
	}
	return counts, nil
}

func (s *MemoryStore) FindByIDNumber(_ context.Context, idNumber string) (*models.Application, error) {
	defer s.lock()()
	id, ok := s.state.byIDNumber[idNumber]
	if !ok {
		return nil, ErrNotFound
	}
	app := s.state.applications[id]
	return &app, nil
}

func (s *MemoryStore) FindRecent(_ context.Context, match RecentMatch) ([]models.Application, error) {
	defer s.lock()()
	var out []models.Application
	for _, app := range s.state.applications {
		if app.Status == models.StatusRejected || app.SubmittedAt.Before(match.Since) {
			continue
		}
		if match.Email != "" && !strings.EqualFold(app.Email, match.Email) {
			continue
		}
		if match.PhoneNumber != "" && app.PhoneNumber != match.PhoneNumber {
			continue
		}
		if match.InstitutionName != "" && !strings.EqualFold(app.InstitutionName, match.InstitutionName) {
			continue
		}
		if match.AdmissionNumber != "" && app.AdmissionNumber != match.AdmissionNumber {
			continue
		}
		if match.FullName != "" && !strings.EqualFold(app.FullName, match.FullName) {
			continue
		}
		if match.Ward != "" && app.Ward != match.Ward {
			continue
		}
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (s *MemoryStore) AddDocument(_ context.Context, doc *models.ApplicationDocument) error {
	defer s.lock()()
	if _, ok := s.state.applications[doc.ApplicationID]; !ok {
		return ErrNotFound
	}
	doc.ID = s.state.id()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	s.state.documents = append(s.state.documents, *doc)
	return nil
}

func (s *MemoryStore) ListDocumentHandles(_ context.Context) ([]string, error) {
	defer s.lock()()
	handles := make([]string, 0, len(s.state.documents))
	for _, doc := range s.state.documents {
		handles = append(handles, doc.BlobHandle)
	}
	return handles, nil
}

func (s *MemoryStore) AppendStatusLog(_ context.Context, entry *models.StatusLogEntry) error {
	defer s.lock()()
	if _, ok := s.state.applications[entry.ApplicationID]; !ok {
		return ErrNotFound
	}
	entry.ID = s.state.id()
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = s.now()
	}
	s.state.statusLogs = append(s.state.statusLogs, *entry)
	return nil
}

func (s *MemoryStore) ListStatusLogs(_ context.Context, applicationID uint) ([]models.StatusLogEntry, error) {
	defer s.lock()()
	var entries []models.StatusLogEntry
	for _, e := range s.state.statusLogs {
		if e.ApplicationID == applicationID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ChangedAt.Equal(entries[j].ChangedAt) {
			return entries[i].ChangedAt.After(entries[j].ChangedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func (s *MemoryStore) ListDeadlines(_ context.Context, activeOnly bool) ([]models.DeadlineWindow, error) {
	defer s.lock()()
	var windows []models.DeadlineWindow
	for _, w := range s.state.deadlines {
		if activeOnly && !w.IsActive {
			continue
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].EndDate.After(windows[j].EndDate) })
	return windows, nil
}

func (s *MemoryStore) GetDeadline(_ context.Context, id uint) (*models.DeadlineWindow, error) {
	defer s.lock()()
	w, ok := s.state.deadlines[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (s *MemoryStore) SaveDeadline(_ context.Context, d *models.DeadlineWindow) error {
	defer s.lock()()
	now := s.now()
	if d.ID == 0 {
		d.ID = s.state.id()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.state.deadlines[d.ID] = *d
	return nil
}

func (s *MemoryStore) RecordNotification(_ context.Context, rec *models.NotificationRecord) error {
	defer s.lock()()
	rec.ID = s.state.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.state.notifications = append(s.state.notifications, *rec)
	return nil
}

// Notifications returns every recorded delivery attempt.
func (s *MemoryStore) Notifications() []models.NotificationRecord {
	defer s.lock()()
	return append([]models.NotificationRecord(nil), s.state.notifications...)
}

func (s *MemoryStore) FindAdminByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	defer s.lock()()
	for _, u := range s.state.admins {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveAdmin(_ context.Context, user *models.AdminUser) error {
	defer s.lock()()
	for id, u := range s.state.admins {
		if u.Username == user.Username && id != user.ID {
			return fmt.Errorf("%w: username %s", ErrDuplicateKey, user.Username)
		}
	}
	now := s.now()
	if user.ID == 0 {
		user.ID = s.state.id()
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.state.admins[user.ID] = *user
	return nil
}

// setApplicationColumn applies one column update using the same column names
// the SQL store writes.
func setApplicationColumn(app *models.Application, column string, value any) error {
	var ok bool
	switch column {
	case "email":
		app.Email, ok = value.(string)
	case "full_name":
		app.FullName, ok = value.(string)
	case "gender":
		app.Gender, ok = value.(string)
	case "disability":
		app.Disability, ok = value.(bool)
	case "id_number":
		app.IDNumber, ok = value.(string)
	case "phone_number":
		app.PhoneNumber, ok = value.(string)
	case "guardian_phone":
		app.GuardianPhone, ok = value.(string)
	case "guardian_id":
		app.GuardianID, ok = value.(string)
	case "ward":
		app.Ward, ok = value.(string)
	case "village":
		app.Village, ok = value.(string)
	case "chief_name":
		app.ChiefName, ok = value.(string)
	case "chief_phone":
		app.ChiefPhone, ok = value.(string)
	case "sub_chief_name":
		app.SubChiefName, ok = value.(string)
	case "sub_chief_phone":
		app.SubChiefPhone, ok = value.(string)
	case "level_of_study":
		app.LevelOfStudy, ok = value.(string)
	case "institution_type":
		app.InstitutionType, ok = value.(string)
	case "institution_name":
		app.InstitutionName, ok = value.(string)
	case "admission_number":
		app.AdmissionNumber, ok = value.(string)
	case "amount":
		app.Amount, ok = value.(uint)
	case "mode_of_study":
		app.ModeOfStudy, ok = value.(string)
	case "year_of_study":
		app.YearOfStudy, ok = value.(string)
	case "family_status":
		app.FamilyStatus, ok = value.(string)
	case "father_income":
		app.FatherIncome, ok = value.(*string)
	case "mother_income":
		app.MotherIncome, ok = value.(*string)
	default:
		return fmt.Errorf("column %q is not updatable", column)
	}
	if !ok {
		return fmt.Errorf("column %q: unexpected value type %T", column, value)
	}
	return nil
}
