package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"bursary-management-api/config"
	"bursary-management-api/controllers"
	"bursary-management-api/middleware"
	"bursary-management-api/repository"
	"bursary-management-api/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	apps   *services.ApplicationService
	blobs  *services.LocalBlobStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	logger := config.NewDiscardLogger()
	blobs, err := services.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	engineCfg := config.DefaultEngineConfig()
	engineCfg.DeadlineCacheTTL = 0
	deadlines := services.NewDeadlineService(store, 0, nil)
	duplicates := services.NewDuplicateDetector(store, engineCfg.DuplicateLookback, nil, logger)
	apps := services.NewApplicationService(store, engineCfg, services.ApplicationServiceOptions{
		Deadlines:  deadlines,
		Duplicates: duplicates,
		Blobs:      blobs,
		Logger:     logger,
	})
	auth := services.NewAuthService(store, "route-test-secret", time.Hour, logger)
	_, err = auth.CreateAdmin(context.Background(), "admin1", "admin1@example.com", "password123")
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, &controllers.Handlers{
		Applications: apps,
		Deadlines:    deadlines,
		Duplicates:   duplicates,
		Auth:         auth,
		Logger:       logger,
	}, middleware.NewRateLimiter(0, 0))
	return &testServer{router: router, apps: apps, blobs: blobs}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "admin1", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return body["token"].(string)
}

func (s *testServer) openSubmissions(t *testing.T, token string) {
	t.Helper()
	now := time.Now().UTC()
	w, _ := s.do(t, http.MethodPost, "/api/v1/admin/deadlines", gin.H{
		"name":       "2025 intake",
		"start_date": now.Add(-24 * time.Hour).Format(time.RFC3339),
		"end_date":   now.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func applicationBody(n int) services.ApplicationInput {
	return services.ApplicationInput{
		Email:           fmt.Sprintf("student%d@example.com", n),
		FullName:        fmt.Sprintf("Student %d", n),
		Gender:          "male",
		IDNumber:        fmt.Sprintf("2%07d", n),
		PhoneNumber:     "0712 345 678",
		GuardianPhone:   "0723456789",
		GuardianID:      "11223344",
		Ward:            "ndithini",
		Village:         "Ndithini",
		ChiefName:       "Chief Musyoka",
		ChiefPhone:      "0734567890",
		SubChiefName:    "Sub Chief Nduku",
		SubChiefPhone:   "0745678901",
		LevelOfStudy:    "diploma",
		InstitutionType: "college",
		InstitutionName: "Kenya Medical Training College",
		AdmissionNumber: fmt.Sprintf("KMTC/%d", n),
		Amount:          15000,
		ModeOfStudy:     "full-time",
		YearOfStudy:     "second-year",
		FamilyStatus:    "total-orphan",
		Confirmation:    true,
	}
}

func TestApplicationLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/v1/deadline", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["is_open"])

	w, body = s.do(t, http.MethodPost, "/api/v1/applications", applicationBody(1), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "submission_closed", body["code"])

	token := s.login(t)
	s.openSubmissions(t, token)

	w, body = s.do(t, http.MethodGet, "/api/v1/deadline", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["is_open"])
	assert.EqualValues(t, 30, body["days_remaining"])

	w, body = s.do(t, http.MethodPost, "/api/v1/applications", applicationBody(1), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ref := body["reference_number"].(string)
	assert.Equal(t, "pending", body["status"])

	w, body = s.do(t, http.MethodPost, "/api/v1/applications", applicationBody(1), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate", body["code"])
	assert.NotContains(t, body, "existing_reference")
	assert.NotContains(t, w.Body.String(), ref)

	// The public tracking view carries no personal fields.
	w, body = s.do(t, http.MethodGet, "/api/v1/applications/"+ref, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ref, body["reference_number"])
	assert.Equal(t, "pending", body["status"])
	for _, key := range []string{"email", "phone_number", "id_number", "guardian_id"} {
		assert.NotContains(t, body, key)
	}

	w, body = s.do(t, http.MethodPost, "/api/v1/applications/check-duplicate", gin.H{"id_number": applicationBody(1).IDNumber}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["is_duplicate"])
	assert.NotContains(t, w.Body.String(), ref)

	w, _ = s.do(t, http.MethodGet, "/api/v1/admin/applications/"+ref, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/v1/admin/applications/"+ref, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student1@example.com", body["email"])
	assert.Equal(t, "+254712345678", body["phone_number"])

	// Applicant edit flow.
	w, body = s.do(t, http.MethodPost, "/api/v1/applications/check-edit-eligibility", gin.H{"reference_number": ref, "email": "someone@else.com"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "email_mismatch", body["code"])

	w, body = s.do(t, http.MethodPost, "/api/v1/applications/check-edit-eligibility", gin.H{"reference_number": ref, "email": "STUDENT1@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["can_edit"])
	assert.NotEmpty(t, body["edit_time_remaining"])

	w, body = s.do(t, http.MethodPost, "/api/v1/applications/get-for-edit", gin.H{"reference_number": ref, "email": "student1@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ref, body["application"].(map[string]any)["reference_number"])

	w, body = s.do(t, http.MethodPatch, "/api/v1/applications/"+ref+"/edit", gin.H{"email": "student1@example.com", "amount": 18000}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 18000, body["application"].(map[string]any)["amount"])

	// Admin decision.
	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+ref+"/status", gin.H{"status": "approved"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+ref+"/status", gin.H{"status": "approved", "reason": "meets criteria"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", body["new_status"])

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+ref+"/status", gin.H{"status": "approved"}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_status_change", body["code"])

	w, body = s.do(t, http.MethodGet, "/api/v1/admin/applications/"+ref+"/history", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	history := body["history"].([]any)
	require.Len(t, history, 2)
	newest := history[0].(map[string]any)
	assert.Equal(t, "admin1", newest["changed_by"])
	assert.Equal(t, "pending", newest["old_status"])
	assert.Nil(t, history[1].(map[string]any)["old_status"])

	w, body = s.do(t, http.MethodPost, "/api/v1/applications/check-edit-eligibility", gin.H{"reference_number": ref, "email": "student1@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["can_edit"])
	assert.Equal(t, "not_pending", body["code"])

	w, body = s.do(t, http.MethodPatch, "/api/v1/applications/"+ref+"/edit", gin.H{"email": "student1@example.com", "amount": 1}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_pending", body["code"])

	w, body = s.do(t, http.MethodGet, "/api/v1/admin/applications/stats", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["approved_count"])
	assert.EqualValues(t, 100, body["approval_rate"])
}

func TestAdminListingAndBulkStatus(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	s.openSubmissions(t, token)

	var refs []string
	for i := 1; i <= 3; i++ {
		w, body := s.do(t, http.MethodPost, "/api/v1/applications", applicationBody(i), "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		refs = append(refs, body["reference_number"].(string))
	}

	w, body := s.do(t, http.MethodPost, "/api/v1/admin/applications/bulk-status", gin.H{
		"references": []string{refs[0], refs[1], "MNG-NOPE0000"},
		"status":     "rejected",
		"reason":     "incomplete",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, body["updated"])
	assert.EqualValues(t, 1, body["failed"])

	w, body = s.do(t, http.MethodGet, "/api/v1/admin/applications?status=pending&page_size=10", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, refs[2], items[0].(map[string]any)["reference_number"])

	w, body = s.do(t, http.MethodGet, "/api/v1/admin/applications?status=bogus", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", body["code"])

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/applications/"+refs[2]+"/status", gin.H{"status": "archived"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_status", body["code"])
}

func TestAdminDeadlineManagement(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	s.openSubmissions(t, token)

	w, body := s.do(t, http.MethodGet, "/api/v1/admin/deadlines", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
	id := body["deadlines"].([]any)[0].(map[string]any)["id"]

	now := time.Now().UTC()
	w, _ = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/deadlines/%v", id), gin.H{
		"name":       "2025 intake (closed)",
		"start_date": now.Add(-48 * time.Hour).Format(time.RFC3339),
		"end_date":   now.Add(-time.Hour).Format(time.RFC3339),
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = s.do(t, http.MethodGet, "/api/v1/deadline", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["is_open"])

	w, _ = s.do(t, http.MethodPut, "/api/v1/admin/deadlines/abc", gin.H{}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/deadlines", gin.H{
		"name":       "backwards",
		"start_date": now.Format(time.RFC3339),
		"end_date":   now.Add(-time.Hour).Format(time.RFC3339),
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", body["code"])
}

func TestMultipartSubmissionStoresDocuments(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	s.openSubmissions(t, token)

	in := applicationBody(7)
	fields := map[string]string{
		"email": in.Email, "full_name": in.FullName, "gender": in.Gender, "id_number": in.IDNumber,
		"phone_number": in.PhoneNumber, "guardian_phone": in.GuardianPhone, "guardian_id": in.GuardianID,
		"ward": in.Ward, "village": in.Village, "chief_name": in.ChiefName, "chief_phone": in.ChiefPhone,
		"sub_chief_name": in.SubChiefName, "sub_chief_phone": in.SubChiefPhone,
		"level_of_study": in.LevelOfStudy, "institution_type": in.InstitutionType,
		"institution_name": in.InstitutionName, "admission_number": in.AdmissionNumber,
		"amount": "15000", "mode_of_study": in.ModeOfStudy, "year_of_study": in.YearOfStudy,
		"family_status": in.FamilyStatus, "confirmation": "true",
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="admission_letter"; filename="letter.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	app, err := s.apps.Get(context.Background(), created["reference_number"].(string))
	require.NoError(t, err)
	require.Len(t, app.Documents, 1)
	assert.Equal(t, "admission_letter", app.Documents[0].Kind)
	assert.Equal(t, "letter.pdf", app.Documents[0].OriginalName)

	blobs, err := s.blobs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, blobs, 1)
}

func TestMiscRoutes(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/v1/applications/MNG-ZZZZZZZZ", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["code"])

	w, body = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "admin1", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", body["code"])

	w, body = s.do(t, http.MethodPost, "/api/v1/applications/check-duplicate", gin.H{"id_number": "99999999"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["is_duplicate"])
}
