package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"engagehub/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = models.Actor{UserID: 100, Role: models.RoleAdmin}

func submitRequest(teacherID, badgeID int64) *SubmitEvidenceRequest {
	return &SubmitEvidenceRequest{
		TeacherID:    teacherID,
		BadgeID:      badgeID,
		EvidenceLink: "https://drive.example.org/portfolio/3",
	}
}

func TestEvidence_SubmitAndApprove(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence(100, 101)
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, submission.Status)
	require.NotNil(t, submission.HoursAwarded)
	assert.Equal(t, "4", submission.HoursAwarded.String())

	notices := f.notifier.notices()
	require.Len(t, notices, 2)
	assert.Equal(t, NoticeSubmission, notices[0].kind)

	reviewed, err := svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, reviewed.Status)
	assert.Equal(t, int64(100), *reviewed.ReviewerID)

	hours, err := f.ledger.HoursTotal(ctx, 3, models.AudienceTeacher)
	require.NoError(t, err)
	assert.Equal(t, "4", hours.String())
	require.Len(t, f.ledgerRepo.hours, 1)
	assert.Equal(t, ActivityTypeCPDBadge, f.ledgerRepo.hours[0].ActivityType)
	assert.Equal(t, "submission:1", f.ledgerRepo.hours[0].ActivityRef)

	held, err := f.awards.GetActive(ctx, 3, 2, models.AudienceTeacher)
	require.NoError(t, err)
	assert.NotNil(t, held)

	last := f.notifier.notices()[2]
	assert.Equal(t, NoticeReview, last.kind)
	assert.True(t, last.approved)

	// review is single-shot
	_, err = svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin})
	assert.True(t, IsValidationError(err))
	hours, _ = f.ledger.HoursTotal(ctx, 3, models.AudienceTeacher)
	assert.Equal(t, "4", hours.String())
}

func TestEvidence_ApproveWithOverride(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	override := decimal.RequireFromString("2.5")
	reviewed, err := svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin, HoursOverride: &override})
	require.NoError(t, err)
	assert.Equal(t, "2.5", reviewed.HoursAwarded.String())

	hours, _ := f.ledger.HoursTotal(ctx, 3, models.AudienceTeacher)
	assert.Equal(t, "2.5", hours.String())
}

func TestEvidence_ZeroHoursSkipsAccrual(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	zero := decimal.Zero
	_, err = svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin, HoursOverride: &zero})
	require.NoError(t, err)
	assert.Zero(t, f.ledgerRepo.hoursCount())
	assert.Equal(t, 1, f.awards.count())
}

func TestEvidence_RejectWritesNoLedgerEntries(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	notes := "Link is not accessible"
	reviewed, err := svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: false, Reviewer: admin, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionRejected, reviewed.Status)
	assert.Equal(t, notes, *reviewed.ReviewNotes)

	assert.Zero(t, f.ledgerRepo.hoursCount())
	assert.Zero(t, f.awards.count())
	last := f.notifier.notices()
	require.Len(t, last, 1)
	assert.False(t, last[0].approved)

	// a rejected claim frees the teacher to submit again
	_, err = svc.Submit(ctx, submitRequest(3, 2))
	assert.NoError(t, err)
}

func TestEvidence_SubmitRules(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	_, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, submitRequest(3, 2))
	assert.True(t, IsValidationError(err), "second live submission")

	_, err = svc.Submit(ctx, submitRequest(3, 1))
	assert.True(t, IsNotFoundError(err), "student only badge")

	_, err = svc.Submit(ctx, submitRequest(3, 404))
	assert.True(t, IsNotFoundError(err))

	bad := submitRequest(3, 2)
	bad.EvidenceLink = "not a link"
	_, err = svc.Submit(ctx, bad)
	assert.True(t, IsValidationError(err))
}

func TestEvidence_ReviewRules(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	teacher := models.Actor{UserID: 3, Role: models.RoleTeacher}
	_, err = svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: teacher})
	assert.True(t, IsUnauthorizedError(err))

	_, err = svc.Review(ctx, &ReviewRequest{SubmissionID: 999, Approved: true, Reviewer: admin})
	assert.True(t, IsNotFoundError(err))

	negative := decimal.NewFromInt(-1)
	_, err = svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin, HoursOverride: &negative})
	assert.True(t, IsValidationError(err))

	stored, err := svc.GetSubmission(ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, stored.Status)

	pending, err := svc.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEvidence_ConcurrentReviewsApplyOnce(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin}); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&wins))
	assert.Equal(t, 1, f.ledgerRepo.hoursCount())
}

func TestEvidence_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(testNow)
	f.notifier.err = errStoreDown
	svc := f.evidence(100)
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	reviewed, err := svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, reviewed.Status)

	hours, _ := f.ledger.HoursTotal(ctx, 3, models.AudienceTeacher)
	assert.Equal(t, "4", hours.String())
}

func TestEvidence_CreditFailureReopensSubmission(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	f.ledgerRepo.failHours = 1
	override := decimal.RequireFromString("2.5")
	_, err = svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin, HoursOverride: &override})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeInternal, GetServiceError(err).Type)

	stored, err := svc.GetSubmission(ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, stored.Status)
	assert.Nil(t, stored.ReviewerID)
	assert.Equal(t, "4", stored.HoursAwarded.String(), "override is discarded")
	assert.Zero(t, f.ledgerRepo.hoursCount())
	assert.Len(t, f.notifier.notices(), 0, "no decision to announce yet")

	// the admin retries and the teacher is credited once
	reviewed, err := svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, reviewed.Status)

	hours, _ := f.ledger.HoursTotal(ctx, 3, models.AudienceTeacher)
	assert.Equal(t, "4", hours.String())
	assert.Equal(t, 1, f.awards.count())

	notices := f.notifier.notices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeReview, notices[0].kind)
	assert.True(t, notices[0].approved)
}

func TestEvidence_CreditFailureStillNotifiesWhenApprovalStands(t *testing.T) {
	f := newFixture(testNow)
	svc := f.evidence()
	ctx := context.Background()

	submission, err := svc.Submit(ctx, submitRequest(3, 2))
	require.NoError(t, err)

	f.ledgerRepo.failHours = 1
	f.submissions.failReopen = true
	_, err = svc.Review(ctx, &ReviewRequest{SubmissionID: submission.ID, Approved: true, Reviewer: admin})
	require.Error(t, err)

	stored, err := svc.GetSubmission(ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, stored.Status)

	notices := f.notifier.notices()
	require.Len(t, notices, 1)
	assert.True(t, notices[0].approved)
}
