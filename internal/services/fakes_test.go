package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"engagehub/internal/models"
	"engagehub/internal/repositories"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

var errStoreDown = errors.New("store unavailable")

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// ===============================
// BADGES
// ===============================

type fakeBadgeRepo struct {
	mu     sync.Mutex
	badges map[int64]*models.Badge
	nextID int64
}

func newFakeBadgeRepo(badges ...*models.Badge) *fakeBadgeRepo {
	r := &fakeBadgeRepo{badges: make(map[int64]*models.Badge)}
	for _, b := range badges {
		_ = r.Create(context.Background(), b)
	}
	return r
}

func (r *fakeBadgeRepo) Create(ctx context.Context, badge *models.Badge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if badge.ID == 0 {
		r.nextID++
		badge.ID = r.nextID
	} else if badge.ID > r.nextID {
		r.nextID = badge.ID
	}
	r.badges[badge.ID] = badge
	return nil
}

func (r *fakeBadgeRepo) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.badges[id], nil
}

func (r *fakeBadgeRepo) GetByCode(ctx context.Context, code string) (*models.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.badges {
		if b.Code == code {
			return b, nil
		}
	}
	return nil, nil
}

func (r *fakeBadgeRepo) ListActive(ctx context.Context, audience models.Audience) ([]*models.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Badge
	for _, b := range r.badges {
		if b.IsActive && b.AvailableTo(audience) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ===============================
// AWARDS
// ===============================

type fakeAwardRepo struct {
	mu     sync.Mutex
	awards []*models.Award
	err    error
	// hideActive makes GetActive miss so the conditional insert decides
	hideActive bool
}

func (r *fakeAwardRepo) GetActive(ctx context.Context, userID, badgeID int64, audience models.Audience) (*models.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.hideActive {
		return nil, nil
	}
	return r.live(userID, badgeID, audience), nil
}

func (r *fakeAwardRepo) live(userID, badgeID int64, audience models.Audience) *models.Award {
	for _, a := range r.awards {
		if a.UserID == userID && a.BadgeID == badgeID && a.Audience == audience && a.Status != models.AwardRejected {
			return a
		}
	}
	return nil
}

func (r *fakeAwardRepo) CreateIfAbsent(ctx context.Context, award *models.Award) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.live(award.UserID, award.BadgeID, award.Audience) != nil {
		return false, nil
	}
	award.ID = int64(len(r.awards) + 1)
	r.awards = append(r.awards, award)
	return true, nil
}

func (r *fakeAwardRepo) ListByUser(ctx context.Context, userID int64, audience models.Audience) ([]*models.Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Award
	for _, a := range r.awards {
		if a.UserID == userID && a.Audience == audience {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAwardRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.awards)
}

// ===============================
// LEDGER
// ===============================

type fakeLedgerRepo struct {
	mu     sync.Mutex
	hours  []*models.HoursEntry
	points []*models.PointsEntry
	// failHours fails the next n hours inserts
	failHours int
}

func (r *fakeLedgerRepo) InsertHours(ctx context.Context, entry *models.HoursEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failHours > 0 {
		r.failHours--
		return errStoreDown
	}
	entry.ID = int64(len(r.hours) + 1)
	r.hours = append(r.hours, entry)
	return nil
}

func (r *fakeLedgerRepo) ListHours(ctx context.Context, userID int64, audience models.Audience) ([]*models.HoursEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.HoursEntry
	for _, h := range r.hours {
		if h.UserID == userID && h.Audience == audience {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) SumHours(ctx context.Context, userID int64, audience models.Audience) (decimal.Decimal, error) {
	entries, _ := r.ListHours(ctx, userID, audience)
	total := decimal.Zero
	for _, h := range entries {
		total = total.Add(h.Hours)
	}
	return total, nil
}

func (r *fakeLedgerRepo) InsertPointsIfAbsent(ctx context.Context, entry *models.PointsEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exists := slices.ContainsFunc(r.points, func(p *models.PointsEntry) bool {
		return p.UserID == entry.UserID && p.Reason == entry.Reason && p.SourceRef == entry.SourceRef
	})
	if exists {
		return false, nil
	}
	entry.ID = int64(len(r.points) + 1)
	r.points = append(r.points, entry)
	return true, nil
}

func (r *fakeLedgerRepo) SumPoints(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, p := range r.points {
		if p.UserID == userID {
			total += int64(p.Points)
		}
	}
	return total, nil
}

func (r *fakeLedgerRepo) hoursCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hours)
}

// ===============================
// ATTENDANCE
// ===============================

type fakeAttendanceRepo struct {
	records []*models.AttendanceRecord
	since   time.Time
}

func (r *fakeAttendanceRepo) ListSince(ctx context.Context, studentID int64, since time.Time) ([]*models.AttendanceRecord, error) {
	r.since = since
	var out []*models.AttendanceRecord
	for _, rec := range r.records {
		if rec.StudentID == studentID && !rec.Date.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) ListStudentsSince(ctx context.Context, since time.Time) ([]int64, error) {
	var ids []int64
	for _, rec := range r.records {
		if !rec.Date.Before(since) && !slices.Contains(ids, rec.StudentID) {
			ids = append(ids, rec.StudentID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ===============================
// SUBMISSIONS
// ===============================

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[int64]*models.EvidenceSubmission
	nextID      int64
	failReopen  bool
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: make(map[int64]*models.EvidenceSubmission)}
}

func (r *fakeSubmissionRepo) activeLocked(teacherID, badgeID int64) *models.EvidenceSubmission {
	for _, s := range r.submissions {
		if s.TeacherID == teacherID && s.BadgeID == badgeID &&
			(s.Status == models.SubmissionPending || s.Status == models.SubmissionApproved) {
			return s
		}
	}
	return nil
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, submission *models.EvidenceSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeLocked(submission.TeacherID, submission.BadgeID) != nil {
		return repositories.ErrDuplicate
	}
	r.nextID++
	submission.ID = r.nextID
	stored := *submission
	r.submissions[submission.ID] = &stored
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, id int64) (*models.EvidenceSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (r *fakeSubmissionRepo) GetActive(ctx context.Context, teacherID, badgeID int64) (*models.EvidenceSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked(teacherID, badgeID), nil
}

func (r *fakeSubmissionRepo) CompleteReview(ctx context.Context, review *repositories.SubmissionReview) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[review.SubmissionID]
	if !ok || s.Status != models.SubmissionPending {
		return false, nil
	}
	s.Status = review.Status
	s.ReviewerID = &review.ReviewerID
	reviewedAt := review.ReviewedAt
	s.ReviewedAt = &reviewedAt
	s.ReviewNotes = review.Notes
	s.HoursAwarded = review.HoursAwarded
	return true, nil
}

func (r *fakeSubmissionRepo) ReopenReview(ctx context.Context, review *repositories.SubmissionReview, hours *decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReopen {
		return false, errStoreDown
	}
	s, ok := r.submissions[review.SubmissionID]
	if !ok || s.Status != review.Status || s.ReviewerID == nil || *s.ReviewerID != review.ReviewerID {
		return false, nil
	}
	s.Status = models.SubmissionPending
	s.ReviewerID = nil
	s.ReviewedAt = nil
	s.ReviewNotes = nil
	s.HoursAwarded = hours
	return true, nil
}

func (r *fakeSubmissionRepo) ListPending(ctx context.Context, limit int) ([]*models.EvidenceSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.EvidenceSubmission
	for _, s := range r.submissions {
		if s.Status == models.SubmissionPending {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *models.EvidenceSubmission) int { return int(a.ID - b.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ===============================
// NOTIFIER
// ===============================

type sentNotice struct {
	kind     string
	userID   int64
	approved bool
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (n *fakeNotifier) record(notice sentNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notice)
	return n.err
}

func (n *fakeNotifier) NotifySubmission(ctx context.Context, adminID int64, submission *models.EvidenceSubmission, teacherName, badgeName string) error {
	return n.record(sentNotice{kind: NoticeSubmission, userID: adminID})
}

func (n *fakeNotifier) NotifyBadgeApproval(ctx context.Context, submission *models.EvidenceSubmission, badgeName string, approved bool) error {
	return n.record(sentNotice{kind: NoticeReview, userID: submission.TeacherID, approved: approved})
}

func (n *fakeNotifier) NotifyCompletion(ctx context.Context, userID int64, activityKind, activityTitle string) error {
	return n.record(sentNotice{kind: NoticeCompletion, userID: userID})
}

func (n *fakeNotifier) notices() []sentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotice, len(n.sent))
	copy(out, n.sent)
	return out
}

// ===============================
// FIXTURES
// ===============================

func hoursPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func perfectAttendanceBadge() *models.Badge {
	return &models.Badge{ID: 1, Code: "PERFECT_ATTENDANCE", Name: "Perfect Attendance", Audience: models.AudienceStudent, IsActive: true}
}

func teacherBadge() *models.Badge {
	return &models.Badge{ID: 2, Code: "DIGITAL_PEDAGOGY", Name: "Digital Pedagogy", Audience: models.AudienceTeacher, Hours: hoursPtr(4), IsActive: true}
}

type fixture struct {
	badges      *fakeBadgeRepo
	awards      *fakeAwardRepo
	ledgerRepo  *fakeLedgerRepo
	attendance  *fakeAttendanceRepo
	submissions *fakeSubmissionRepo
	notifier    *fakeNotifier
	clock       fixedClock
	ledger      LedgerService
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		badges:      newFakeBadgeRepo(perfectAttendanceBadge(), teacherBadge()),
		awards:      &fakeAwardRepo{},
		ledgerRepo:  &fakeLedgerRepo{},
		attendance:  &fakeAttendanceRepo{},
		submissions: newFakeSubmissionRepo(),
		notifier:    &fakeNotifier{},
		clock:       fixedClock{now: now},
	}
	f.ledger = NewLedgerService(f.badges, f.awards, f.ledgerRepo, f.clock, nil)
	return f
}

func (f *fixture) evidence(adminIDs ...int64) EvidenceService {
	return NewEvidenceService(f.submissions, f.badges, f.ledger, f.notifier, NewStaticDirectory(adminIDs, nil), f.clock, nil)
}

func (f *fixture) bonus() AttendanceBonusService {
	return NewAttendanceBonusService(f.attendance, f.badges, f.ledger, f.clock, nil, nil)
}

func (f *fixture) stores() Stores {
	return Stores{Badge: f.badges, Award: f.awards, Ledger: f.ledgerRepo, Attendance: f.attendance, Submission: f.submissions}
}
