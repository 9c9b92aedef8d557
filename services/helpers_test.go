package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bursary-management-api/config"
	"bursary-management-api/models"
	"bursary-management-api/repository"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingSink) Dispatch(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingSink) events() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

type engine struct {
	store *repository.MemoryStore
	clock *testClock
	sink  *recordingSink
	svc   *ApplicationService
}

var testStart = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func testEngineConfig() config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.DeadlineCacheTTL = 0
	return cfg
}

// newEngine builds an engine over an in-memory store. With open set, a
// deadline window covering the next 30 days is active.
func newEngine(t *testing.T, open bool) *engine {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := newTestClock(testStart)
	store.SetClock(clock.Now)
	if open {
		saveWindow(t, store, "2025 intake", clock.Now().Add(-24*time.Hour), clock.Now().Add(30*24*time.Hour))
	}
	sink := &recordingSink{}
	svc := NewApplicationService(store, testEngineConfig(), ApplicationServiceOptions{
		Notifications: sink,
		Now:           clock.Now,
	})
	return &engine{store: store, clock: clock, sink: sink, svc: svc}
}

func saveWindow(t *testing.T, store repository.Store, name string, start, end time.Time) *models.DeadlineWindow {
	t.Helper()
	w := &models.DeadlineWindow{Name: name, StartDate: start, EndDate: end, IsActive: true}
	require.NoError(t, store.SaveDeadline(context.Background(), w))
	return w
}

func validInput(n int) ApplicationInput {
	return ApplicationInput{
		Email:           fmt.Sprintf("applicant%d@example.com", n),
		FullName:        fmt.Sprintf("Applicant Number %d", n),
		Gender:          "female",
		IDNumber:        fmt.Sprintf("3%07d", n),
		PhoneNumber:     "0712345678",
		GuardianPhone:   "0723456789",
		GuardianID:      "22334455",
		Ward:            "kivaa",
		Village:         "Kivaa Market",
		ChiefName:       "John Mutua",
		ChiefPhone:      "0734567890",
		SubChiefName:    "Mary Wambua",
		SubChiefPhone:   "0745678901",
		LevelOfStudy:    "degree",
		InstitutionType: "university",
		InstitutionName: "Machakos University",
		AdmissionNumber: fmt.Sprintf("ADM/%d/2025", n),
		Amount:          25000,
		ModeOfStudy:     "full-time",
		YearOfStudy:     "first-year",
		FamilyStatus:    "single-parent",
		Confirmation:    true,
	}
}

func (e *engine) create(t *testing.T, in ApplicationInput) *CreateResult {
	t.Helper()
	res, err := e.svc.Create(context.Background(), in, nil)
	require.NoError(t, err)
	return res
}

// fixedEntropy returns the queued byte slices in order, repeating the last.
func fixedEntropy(values ...byte) func() ([]byte, error) {
	var mu sync.Mutex
	i := 0
	return func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		buf := make([]byte, 14)
		for j := range buf {
			buf[j] = v
		}
		return buf, nil
	}
}
