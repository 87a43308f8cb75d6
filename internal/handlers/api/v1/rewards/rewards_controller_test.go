package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"engagehub/internal/events"
	"engagehub/internal/middleware"
	"engagehub/internal/models"
	"engagehub/internal/response"
	"engagehub/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ===============================
// FAKE SERVICES
// ===============================

type fakeAttendance struct {
	awarded []int64
}

func (f *fakeAttendance) CalculateAttendanceBonus(ctx context.Context, studentID int64) (*services.AttendanceBonus, error) {
	if studentID == 404 {
		return nil, services.EntityNotFoundError("student", studentID)
	}
	return &services.AttendanceBonus{StudentID: studentID, PointsEarned: 50, BadgeIDs: []int64{}, Message: "Weekly attendance bonus!"}, nil
}

func (f *fakeAttendance) AwardAttendanceBonus(ctx context.Context, studentID int64) (*services.AttendanceBonusAward, error) {
	f.awarded = append(f.awarded, studentID)
	return &services.AttendanceBonusAward{StudentID: studentID, PointsAwarded: 50, BadgesAwarded: []int64{}}, nil
}

func (f *fakeAttendance) GetStreaks(ctx context.Context, studentID int64) (*services.StreakSummary, error) {
	return &services.StreakSummary{StudentID: studentID, Current: 3, Longest: 9}, nil
}

func (f *fakeAttendance) StudentsWithAttendance(ctx context.Context) ([]int64, error) {
	return nil, nil
}

type fakeEvidence struct {
	submitted *services.SubmitEvidenceRequest
	reviewed  *services.ReviewRequest
	limit     int
}

func (f *fakeEvidence) Submit(ctx context.Context, req *services.SubmitEvidenceRequest) (*models.EvidenceSubmission, error) {
	f.submitted = req
	return &models.EvidenceSubmission{ID: 31, TeacherID: req.TeacherID, BadgeID: req.BadgeID, EvidenceLink: req.EvidenceLink, Status: models.SubmissionPending}, nil
}

func (f *fakeEvidence) Review(ctx context.Context, req *services.ReviewRequest) (*models.EvidenceSubmission, error) {
	f.reviewed = req
	if !req.Reviewer.IsAdmin() {
		return nil, services.NewUnauthorizedError("only admins can review evidence")
	}
	return &models.EvidenceSubmission{ID: req.SubmissionID, TeacherID: 3, Status: models.SubmissionApproved}, nil
}

func (f *fakeEvidence) GetSubmission(ctx context.Context, id int64) (*models.EvidenceSubmission, error) {
	if id != 31 {
		return nil, services.EntityNotFoundError("submission", id)
	}
	return &models.EvidenceSubmission{ID: 31, TeacherID: 3, Status: models.SubmissionPending}, nil
}

func (f *fakeEvidence) ListPending(ctx context.Context, limit int) ([]*models.EvidenceSubmission, error) {
	f.limit = limit
	return []*models.EvidenceSubmission{{ID: 31, TeacherID: 3}}, nil
}

type fakeCompletions struct {
	published *services.CompletionRequest
	userID    int64
	day       time.Time
}

func (f *fakeCompletions) Publish(ctx context.Context, req *services.CompletionRequest) (*events.CompletionEvent, error) {
	if req.EventType != events.MissionCompleted && req.EventType != events.ChallengeCompleted {
		return nil, services.NewValidationError("unsupported event type", nil)
	}
	f.published = req
	return events.NewCompletionEvent(req.EventType, req.UserID, req.IsTeacher, req.ActivityID, req.ActivityTitle, decimal.Zero, req.BadgeID, time.Now()), nil
}

func (f *fakeCompletions) Dispatch(ctx context.Context, req *services.CompletionRequest) (*events.DispatchReport, error) {
	return &events.DispatchReport{}, nil
}

func (f *fakeCompletions) Counts(ctx context.Context, userID int64, day time.Time) (*services.CompletionCounts, error) {
	f.userID, f.day = userID, day
	return &services.CompletionCounts{Day: day.Format(time.DateOnly), ByType: map[string]int64{events.MissionCompleted: 4}, ForUser: 1}, nil
}

// ===============================
// TEST HARNESS
// ===============================

type harness struct {
	attendance  *fakeAttendance
	evidence    *fakeEvidence
	completions *fakeCompletions
	handler     http.Handler
}

func newHarness() *harness {
	h := &harness{
		attendance:  &fakeAttendance{},
		evidence:    &fakeEvidence{},
		completions: &fakeCompletions{},
	}

	builder := response.NewBuilder(&response.Config{APIVersion: "v1", IncludeRequestID: true, MaskInternalErrors: true}, nil)
	controller := NewRewardsController(&services.ServiceCollection{
		Attendance:  h.attendance,
		Evidence:    h.evidence,
		Completions: h.completions,
	}, zap.NewNop(), builder)

	r := chi.NewRouter()
	r.Use(middleware.Actor(builder))
	r.Route("/api/v1", controller.Routes)
	h.handler = r
	return h
}

func (h *harness) do(t *testing.T, method, path, body string, actor *models.Actor) (*httptest.ResponseRecorder, response.APIResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(middleware.HeaderXUserID, strconv.FormatInt(actor.UserID, 10))
		req.Header.Set(middleware.HeaderXUserRole, string(actor.Role))
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var envelope response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return rec, envelope
}

var (
	teacher = &models.Actor{UserID: 3, Role: models.RoleTeacher}
	admin   = &models.Actor{UserID: 100, Role: models.RoleAdmin}
	student = &models.Actor{UserID: 7, Role: models.RoleStudent}
)

// ===============================
// TESTS
// ===============================

func TestRewardsController_PublishCompletion(t *testing.T) {
	h := newHarness()

	rec, body := h.do(t, http.MethodPost, "/api/v1/completions",
		`{"event_type":"mission.completed","user_id":7,"activity_id":11,"activity_title":"Recycling drive","hours_awarded":"1.5"}`, nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, body.Success)
	require.NotNil(t, h.completions.published)
	assert.Equal(t, "1.5", h.completions.published.HoursAwarded.String())

	rec, body = h.do(t, http.MethodPost, "/api/v1/completions", `{"event_type":"quiz.completed","user_id":7,"activity_id":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrorTypeValidation, body.Error.Type)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/completions", `{"event_type":"mission.completed","surprise":true}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec, body = h.do(t, http.MethodPost, "/api/v1/completions", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is required", body.Error.Message)
}

func TestRewardsController_Attendance(t *testing.T) {
	h := newHarness()

	rec, body := h.do(t, http.MethodGet, "/api/v1/students/7/attendance-bonus", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, float64(50), data["points_earned"])

	rec, _ = h.do(t, http.MethodPost, "/api/v1/students/7/attendance-bonus", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, h.attendance.awarded)

	rec, body = h.do(t, http.MethodGet, "/api/v1/students/7/streaks", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(9), body.Data.(map[string]interface{})["longest"])

	rec, _ = h.do(t, http.MethodGet, "/api/v1/students/abc/streaks", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = h.do(t, http.MethodGet, "/api/v1/students/404/attendance-bonus", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, services.ErrorTypeNotFound, body.Error.Type)
}

func TestRewardsController_SubmitEvidence(t *testing.T) {
	h := newHarness()
	payload := `{"badge_id":2,"evidence_link":"https://drive.example.org/portfolio"}`

	rec, _ := h.do(t, http.MethodPost, "/api/v1/evidence", payload, student)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, h.evidence.submitted)

	rec, body := h.do(t, http.MethodPost, "/api/v1/evidence", payload, teacher)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, body.Success)
	require.NotNil(t, h.evidence.submitted)
	assert.Equal(t, int64(3), h.evidence.submitted.TeacherID, "teacher comes from the gateway identity")
}

func TestRewardsController_ReviewEvidence(t *testing.T) {
	h := newHarness()
	payload := `{"approved":true,"hours_override":2.5,"notes":"Well evidenced"}`

	rec, _ := h.do(t, http.MethodPost, "/api/v1/evidence/31/review", payload, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := h.do(t, http.MethodPost, "/api/v1/evidence/31/review", payload, teacher)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, services.ErrorTypeUnauthorized, body.Error.Type)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/evidence/31/review", payload, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.evidence.reviewed.HoursOverride)
	assert.Equal(t, "2.5", h.evidence.reviewed.HoursOverride.String())
	assert.Equal(t, int64(100), h.evidence.reviewed.Reviewer.UserID)
}

func TestRewardsController_GetEvidence(t *testing.T) {
	h := newHarness()

	rec, _ := h.do(t, http.MethodGet, "/api/v1/evidence/31", "", teacher)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/evidence/31", "", &models.Actor{UserID: 4, Role: models.RoleTeacher})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/evidence/31", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/evidence/99", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRewardsController_ListPendingEvidence(t *testing.T) {
	h := newHarness()

	rec, _ := h.do(t, http.MethodGet, "/api/v1/evidence/pending", "", teacher)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := h.do(t, http.MethodGet, "/api/v1/evidence/pending?limit=10", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 10, h.evidence.limit)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/evidence/pending?limit=ten", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRewardsController_CompletionCounts(t *testing.T) {
	h := newHarness()

	rec, body := h.do(t, http.MethodGet, "/api/v1/analytics/completions?date=2024-03-15&user_id=7", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), h.completions.userID)
	assert.Equal(t, "2024-03-15", h.completions.day.Format(time.DateOnly))
	assert.Equal(t, "2024-03-15", body.Data.(map[string]interface{})["day"])

	rec, _ = h.do(t, http.MethodGet, "/api/v1/analytics/completions?date=15-03-2024", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/analytics/completions?user_id=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
