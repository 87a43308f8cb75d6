// ===============================
// FILE: internal/handlers/api/v1/rewards/rewards_controller.go
// ===============================

package rewards

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"engagehub/internal/contextutils"
	"engagehub/internal/middleware"
	"engagehub/internal/models"
	"engagehub/internal/response"
	"engagehub/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// request bodies beyond this are rejected
const maxBodyBytes = 64 << 10

// RewardsController exposes the achievement pipeline over HTTP
type RewardsController struct {
	attendance  services.AttendanceBonusService
	evidence    services.EvidenceService
	completions services.CompletionService
	clock       services.Clock

	logger          *zap.Logger
	responseBuilder *response.Builder
}

// NewRewardsController creates a controller over the service collection
func NewRewardsController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *RewardsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewardsController{
		attendance:      serviceCollection.Attendance,
		evidence:        serviceCollection.Evidence,
		completions:     serviceCollection.Completions,
		clock:           services.SystemClock(),
		logger:          logger,
		responseBuilder: responseBuilder,
	}
}

// Routes mounts the controller under /api/v1
func (c *RewardsController) Routes(r chi.Router) {
	r.Post("/completions", c.PublishCompletion)

	r.Route("/students/{id}", func(r chi.Router) {
		r.Get("/attendance-bonus", c.CalculateAttendanceBonus)
		r.Post("/attendance-bonus", c.AwardAttendanceBonus)
		r.Get("/streaks", c.GetStreaks)
	})

	r.Route("/evidence", func(r chi.Router) {
		r.Use(middleware.RequireActor(c.responseBuilder))
		r.Post("/", c.SubmitEvidence)
		r.Get("/pending", c.ListPendingEvidence)
		r.Get("/{id}", c.GetEvidence)
		r.Post("/{id}/review", c.ReviewEvidence)
	})

	r.Get("/analytics/completions", c.GetCompletionCounts)
}

// ===============================
// COMPLETIONS
// ===============================

// PublishCompletion handles POST /api/v1/completions
func (c *RewardsController) PublishCompletion(w http.ResponseWriter, r *http.Request) {
	var req services.CompletionRequest
	if !c.decode(w, r, &req) {
		return
	}

	event, err := c.completions.Publish(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteAccepted(w, r, map[string]interface{}{
		"event_id":   event.GetEventID(),
		"event_type": event.GetEventType(),
	})
}

// GetCompletionCounts handles GET /api/v1/analytics/completions
func (c *RewardsController) GetCompletionCounts(w http.ResponseWriter, r *http.Request) {
	day := c.clock.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			c.responseBuilder.WriteError(w, r, services.NewValidationError("date must be YYYY-MM-DD", err))
			return
		}
		day = parsed
	}

	var userID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.responseBuilder.WriteError(w, r, services.NewValidationError("user_id must be a positive integer", err))
			return
		}
		userID = id
	}

	counts, err := c.completions.Counts(r.Context(), userID, day)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, counts)
}

// ===============================
// ATTENDANCE
// ===============================

// CalculateAttendanceBonus handles GET /api/v1/students/{id}/attendance-bonus
func (c *RewardsController) CalculateAttendanceBonus(w http.ResponseWriter, r *http.Request) {
	studentID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	bonus, err := c.attendance.CalculateAttendanceBonus(r.Context(), studentID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, bonus)
}

// AwardAttendanceBonus handles POST /api/v1/students/{id}/attendance-bonus
func (c *RewardsController) AwardAttendanceBonus(w http.ResponseWriter, r *http.Request) {
	studentID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	award, err := c.attendance.AwardAttendanceBonus(r.Context(), studentID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.logger.Info("Attendance bonus awarded via API",
		zap.Int64("student_id", studentID),
		zap.Int("points_awarded", award.PointsAwarded),
		zap.Int("badges_awarded", len(award.BadgesAwarded)),
	)
	c.responseBuilder.WriteSuccess(w, r, award)
}

// GetStreaks handles GET /api/v1/students/{id}/streaks
func (c *RewardsController) GetStreaks(w http.ResponseWriter, r *http.Request) {
	studentID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	summary, err := c.attendance.GetStreaks(r.Context(), studentID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, summary)
}

// ===============================
// EVIDENCE
// ===============================

// SubmitEvidenceBody is the teacher's submission payload
type SubmitEvidenceBody struct {
	BadgeID      int64   `json:"badge_id"`
	EvidenceLink string  `json:"evidence_link"`
	Notes        *string `json:"notes,omitempty"`
}

// ReviewEvidenceBody is the admin's decision payload
type ReviewEvidenceBody struct {
	Approved      bool             `json:"approved"`
	Notes         *string          `json:"notes,omitempty"`
	HoursOverride *decimal.Decimal `json:"hours_override,omitempty"`
}

// SubmitEvidence handles POST /api/v1/evidence
func (c *RewardsController) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	actor, ok := contextutils.GetActor(r.Context())
	if !ok || actor.Role != models.RoleTeacher {
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("only teachers can submit evidence"))
		return
	}

	var body SubmitEvidenceBody
	if !c.decode(w, r, &body) {
		return
	}

	submission, err := c.evidence.Submit(r.Context(), &services.SubmitEvidenceRequest{
		TeacherID:    actor.UserID,
		BadgeID:      body.BadgeID,
		EvidenceLink: body.EvidenceLink,
		Notes:        body.Notes,
	})
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteCreated(w, r, submission)
}

// ReviewEvidence handles POST /api/v1/evidence/{id}/review
func (c *RewardsController) ReviewEvidence(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	// admin check happens in the service
	actor, _ := contextutils.GetActor(r.Context())

	var body ReviewEvidenceBody
	if !c.decode(w, r, &body) {
		return
	}

	submission, err := c.evidence.Review(r.Context(), &services.ReviewRequest{
		SubmissionID:  submissionID,
		Approved:      body.Approved,
		Reviewer:      actor,
		Notes:         body.Notes,
		HoursOverride: body.HoursOverride,
	})
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	c.responseBuilder.WriteSuccess(w, r, submission)
}

// GetEvidence handles GET /api/v1/evidence/{id}
func (c *RewardsController) GetEvidence(w http.ResponseWriter, r *http.Request) {
	submissionID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	actor, _ := contextutils.GetActor(r.Context())
	submission, err := c.evidence.GetSubmission(r.Context(), submissionID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if !actor.IsAdmin() && actor.UserID != submission.TeacherID {
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("submission belongs to another teacher"))
		return
	}

	c.responseBuilder.WriteSuccess(w, r, submission)
}

// ListPendingEvidence handles GET /api/v1/evidence/pending
func (c *RewardsController) ListPendingEvidence(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextutils.GetActor(r.Context())
	if !actor.IsAdmin() {
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("only admins can view the review queue"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.responseBuilder.WriteError(w, r, services.NewValidationError("limit must be an integer", err))
			return
		}
		limit = n
	}

	pending, err := c.evidence.ListPending(r.Context(), limit)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, pending)
}

// ===============================
// HELPER METHODS
// ===============================

func (c *RewardsController) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		c.responseBuilder.WriteError(w, r, services.NewValidationError("id must be a positive integer", err))
		return 0, false
	}
	return id, true
}

func (c *RewardsController) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		message := "Invalid request body format"
		if errors.Is(err, io.EOF) {
			message = "Request body is required"
		}
		c.logger.Warn("Failed to decode request body",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		c.responseBuilder.WriteError(w, r, services.NewValidationError(message, err))
		return false
	}
	return true
}
