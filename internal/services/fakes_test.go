package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

type fakeQueue struct {
	mu       sync.Mutex
	payloads []models.JobPayload
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, p models.JobPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, p)
	return nil
}

func (q *fakeQueue) notifications() []models.NotificationPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.NotificationPayload
	for _, p := range q.payloads {
		if n, ok := p.(models.NotificationPayload); ok {
			out = append(out, n)
		}
	}
	return out
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (p *fakePublisher) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

// fakeContentStore matches topics against titles and tags, case-insensitively.
type fakeContentStore struct {
	mu        sync.Mutex
	items     []models.Content
	creates   int
	searchErr error
}

func (s *fakeContentStore) SearchByTopic(_ context.Context, topic string, limit int) ([]models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var out []models.Content
	for _, c := range s.items {
		if len(out) == limit {
			break
		}
		if containsFold(c.Title, topic) || hasTag(c, topic) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeContentStore) GetByID(_ context.Context, id uuid.UUID) (*models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.items {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeContentStore) GetByExternalID(_ context.Context, externalID string) (*models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.items {
		if c.ExternalID != nil && *c.ExternalID == externalID {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CreateWithTag keeps external ids unique the way the content table does:
// a second insert for a known id returns the stored row.
func (s *fakeContentStore) CreateWithTag(_ context.Context, c *models.Content, tag string) (*models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ExternalID != nil {
		for _, existing := range s.items {
			if existing.ExternalID != nil && *existing.ExternalID == *c.ExternalID {
				cp := existing
				return &cp, nil
			}
		}
	}
	s.creates++
	c.ID = uuid.New()
	c.Tags = []string{tag}
	s.items = append(s.items, *c)
	return c, nil
}

func (s *fakeContentStore) List(_ context.Context, limit, offset int) ([]models.Content, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.items) {
		return nil, len(s.items), nil
	}
	end := offset + limit
	if end > len(s.items) {
		end = len(s.items)
	}
	return append([]models.Content(nil), s.items[offset:end]...), len(s.items), nil
}

func (s *fakeContentStore) ListByTags(_ context.Context, tags []string, limit int) ([]models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Content
	for _, c := range s.items {
		if len(out) == limit {
			break
		}
		for _, t := range tags {
			if hasTag(c, t) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeContentStore) ListExcluding(_ context.Context, exclude []uuid.UUID, limit int) ([]models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []models.Content
	for _, c := range s.items {
		if len(out) == limit {
			break
		}
		if !skip[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func hasTag(c models.Content, tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, strings.TrimSpace(tag)) {
			return true
		}
	}
	return false
}

func newContent(title string, tags ...string) models.Content {
	return models.Content{
		ID:              uuid.New(),
		Title:           title,
		URL:             "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Source:          "seed",
		Type:            models.ContentTypeArticle,
		DurationSeconds: 300,
		Tags:            tags,
	}
}

type fakePlanStore struct {
	mu        sync.Mutex
	plans     map[uuid.UUID]*models.StudyPlan
	sessions  map[uuid.UUID][]models.StudySession
	createErr error
	assignErr error
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{
		plans:    make(map[uuid.UUID]*models.StudyPlan),
		sessions: make(map[uuid.UUID][]models.StudySession),
	}
}

func (s *fakePlanStore) CreateWithSessions(_ context.Context, plan *models.StudyPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	plan.ID = uuid.New()
	plan.CreatedAt = time.Now()
	for i := range plan.Sessions {
		plan.Sessions[i].ID = uuid.New()
		plan.Sessions[i].PlanID = plan.ID
	}
	stored := *plan
	stored.Sessions = nil
	s.plans[plan.ID] = &stored
	s.sessions[plan.ID] = append([]models.StudySession(nil), plan.Sessions...)
	return nil
}

func (s *fakePlanStore) GetByID(_ context.Context, id uuid.UUID) (*models.StudyPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePlanStore) GetLatestByUser(_ context.Context, userID uuid.UUID) (*models.StudyPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.StudyPlan
	for _, p := range s.plans {
		if p.UserID == userID && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *fakePlanStore) ListSessions(_ context.Context, planID uuid.UUID) ([]models.StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StudySession(nil), s.sessions[planID]...), nil
}

func (s *fakePlanStore) ListUnhydratedSessions(_ context.Context, planID uuid.UUID) ([]models.StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StudySession
	for _, sess := range s.sessions[planID] {
		if sess.ContentID == nil {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *fakePlanStore) AssignContent(_ context.Context, sessionID, contentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignErr != nil {
		return false, s.assignErr
	}
	for planID, list := range s.sessions {
		for i := range list {
			if list[i].ID != sessionID {
				continue
			}
			if list[i].ContentID != nil {
				return false, nil
			}
			id := contentID
			s.sessions[planID][i].ContentID = &id
			return true, nil
		}
	}
	return false, nil
}

type fakeResolver struct {
	pool  []models.Content
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, _, _ string, limit int) ([]models.Content, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(r.pool) > limit {
		return r.pool[:limit], nil
	}
	return r.pool, nil
}

type fakeSessionHistory struct {
	completed []models.CompletedSession
	active    []uuid.UUID
	from, to  time.Time
}

func (h *fakeSessionHistory) ListCompletedInRange(_ context.Context, _ uuid.UUID, from, to time.Time) ([]models.CompletedSession, error) {
	h.from, h.to = from, to
	return h.completed, nil
}

func (h *fakeSessionHistory) ListActiveUsers(_ context.Context, from, to time.Time) ([]uuid.UUID, error) {
	h.from, h.to = from, to
	return h.active, nil
}

type fakeReportStore struct {
	reports map[string]*models.WeeklyReport
	upserts int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[string]*models.WeeklyReport)}
}

func reportKey(userID uuid.UUID, weekStart time.Time) string {
	return userID.String() + "|" + weekStart.Format(time.RFC3339)
}

func (s *fakeReportStore) Upsert(_ context.Context, r *models.WeeklyReport) error {
	s.upserts++
	key := reportKey(r.UserID, r.WeekStartDate)
	if existing, ok := s.reports[key]; ok {
		r.ID = existing.ID
	} else {
		r.ID = uuid.New()
	}
	cp := *r
	s.reports[key] = &cp
	return nil
}

func (s *fakeReportStore) GetLatestByUser(_ context.Context, userID uuid.UUID) (*models.WeeklyReport, error) {
	var latest *models.WeeklyReport
	for _, r := range s.reports {
		if r.UserID == userID && (latest == nil || r.WeekStartDate.After(latest.WeekStartDate)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

// fakeUserStore holds one user row and mimics the locking transactions of
// the user repository with a mutex.
type fakeUserStore struct {
	mu     sync.Mutex
	user   models.User
	ledger []models.XPTransaction
	prefs  *models.Preferences
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{user: models.User{ID: uuid.New(), Email: "learner@example.com", Level: 1, Role: "LEARNER"}}
}

func (s *fakeUserStore) ApplyXP(_ context.Context, userID uuid.UUID, amount int, source string, levelUp func(xp, level int) (int, int)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID != s.user.ID {
		return nil, repository.ErrNotFound
	}
	s.ledger = append(s.ledger, models.XPTransaction{ID: uuid.New(), UserID: userID, Amount: amount, Source: source})
	s.user.CurrentXP, s.user.Level = levelUp(s.user.CurrentXP+amount, s.user.Level)
	u := s.user
	return &u, nil
}

func (s *fakeUserStore) UpdateStreak(_ context.Context, userID uuid.UUID, now time.Time, next func(last *time.Time, streak int, now time.Time) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID != s.user.ID {
		return 0, repository.ErrNotFound
	}
	s.user.CurrentStreak = next(s.user.LastActivity, s.user.CurrentStreak, now)
	s.user.LastActivity = &now
	return s.user.CurrentStreak, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.user.ID {
		return nil, repository.ErrNotFound
	}
	u := s.user
	return &u, nil
}

func (s *fakeUserStore) GetPreferences(_ context.Context, userID uuid.UUID) (*models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil || s.prefs.UserID != userID {
		return nil, repository.ErrNotFound
	}
	p := *s.prefs
	return &p, nil
}

func (s *fakeUserStore) UpsertPreferences(_ context.Context, p *models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	cp := *p
	s.prefs = &cp
	return nil
}
