package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/metrics"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

type fakeLearningSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.LearningSession
	events   map[uuid.UUID]models.InteractionEvent
	users    *fakeUserStore
	endErr   error
}

func newFakeLearningSessionStore(users *fakeUserStore) *fakeLearningSessionStore {
	return &fakeLearningSessionStore{
		sessions: make(map[uuid.UUID]*models.LearningSession),
		events:   make(map[uuid.UUID]models.InteractionEvent),
		users:    users,
	}
}

func (s *fakeLearningSessionStore) Create(_ context.Context, sess *models.LearningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = uuid.New()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *fakeLearningSessionStore) GetByID(_ context.Context, id uuid.UUID) (*models.LearningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// EndWithReward mirrors the repository transaction: when endErr is set the
// write fails as a whole and neither the session nor the user changes.
func (s *fakeLearningSessionStore) EndWithReward(
	_ context.Context,
	sessionID, userID uuid.UUID,
	endTime time.Time,
	source string,
	reward func(durationSeconds int, p models.Progress) (int, models.Progress),
) (*models.EndSessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID || sess.EndTime != nil {
		return nil, repository.ErrNotFound
	}
	if s.endErr != nil {
		err := s.endErr
		s.endErr = nil
		return nil, err
	}

	s.users.mu.Lock()
	defer s.users.mu.Unlock()
	u := &s.users.user
	d := int(endTime.Sub(sess.StartTime).Round(time.Second).Seconds())
	earned, next := reward(d, models.Progress{XP: u.CurrentXP, Level: u.Level, Streak: u.CurrentStreak, LastActivity: u.LastActivity})
	if earned > 0 {
		sid := sessionID
		s.users.ledger = append(s.users.ledger, models.XPTransaction{ID: uuid.New(), UserID: userID, SessionID: &sid, Amount: earned, Source: source})
	}
	u.CurrentXP, u.Level, u.CurrentStreak, u.LastActivity = next.XP, next.Level, next.Streak, next.LastActivity

	sess.EndTime = &endTime
	sess.DurationSeconds = &d
	sess.IsCompleted = true
	cp := *sess
	return &models.EndSessionResult{Session: &cp, XPAwarded: earned, Streak: next.Streak}, nil
}

func (s *fakeLearningSessionStore) InsertEvents(_ context.Context, events []models.InteractionEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range events {
		if _, dup := s.events[e.ID]; dup {
			continue
		}
		s.events[e.ID] = e
		n++
	}
	return n, nil
}

type sessionFixture struct {
	svc     *SessionService
	store   *fakeLearningSessionStore
	users   *fakeUserStore
	content models.Content
	clock   time.Time
}

func newSessionFixture() *sessionFixture {
	users := newFakeUserStore()
	f := &sessionFixture{
		store:   newFakeLearningSessionStore(users),
		users:   users,
		content: newContent("Go Channels"),
		clock:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	rewards := NewGamificationService(f.users, time.UTC, logger.NewNop())
	rewards.now = func() time.Time { return f.clock }
	f.svc = NewSessionService(f.store, &fakeContentStore{items: []models.Content{f.content}}, rewards, logger.NewNop())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestSessionLifecycle_AwardsXPOnce(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	userID := f.users.user.ID

	sess, err := f.svc.Start(ctx, userID, f.content.ID)
	require.NoError(t, err)
	assert.False(t, sess.IsCompleted)

	f.clock = f.clock.Add(12*time.Minute + 20*time.Second)
	result, err := f.svc.End(ctx, userID, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Session.DurationSeconds)
	assert.Equal(t, 740, *result.Session.DurationSeconds)
	assert.True(t, result.Session.IsCompleted)
	assert.Equal(t, 123, result.XPAwarded)
	assert.Equal(t, 1, result.Streak)

	_, err = f.svc.End(ctx, userID, sess.ID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, f.users.ledger, 1)
	require.NotNil(t, f.users.ledger[0].SessionID)
	assert.Equal(t, sess.ID, *f.users.ledger[0].SessionID)
	assert.Equal(t, 2, f.users.user.Level)
	assert.Equal(t, 23, f.users.user.CurrentXP)
}

func TestSessionEnd_FailedRewardLeavesSessionOpenForRetry(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	userID := f.users.user.ID

	sess, err := f.svc.Start(ctx, userID, f.content.ID)
	require.NoError(t, err)
	f.clock = f.clock.Add(10 * time.Minute)

	f.store.endErr = errors.New("db timeout")
	_, err = f.svc.End(ctx, userID, sess.ID)
	require.Error(t, err)

	stored, err := f.store.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EndTime)
	assert.Empty(t, f.users.ledger)

	result, err := f.svc.End(ctx, userID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, result.XPAwarded)
	assert.Equal(t, 1, result.Streak)
	assert.Len(t, f.users.ledger, 1)
	assert.Equal(t, 2, f.users.user.Level)
	assert.Equal(t, 0, f.users.user.CurrentXP)
}

func TestSessionEnd_GaugeCountsOnlySessionsStartedHere(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	userID := f.users.user.ID
	gauge := metrics.Get().ActiveSessions
	before := testutil.ToFloat64(gauge)

	sess, err := f.svc.Start(ctx, userID, f.content.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(gauge))

	// Started by an earlier process.
	orphan := &models.LearningSession{UserID: userID, ContentID: f.content.ID, StartTime: f.clock}
	require.NoError(t, f.store.Create(ctx, orphan))

	f.clock = f.clock.Add(time.Minute)
	_, err = f.svc.End(ctx, userID, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(gauge))

	_, err = f.svc.End(ctx, userID, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, before, testutil.ToFloat64(gauge))
}

func TestSessionEnd_OtherUsersSessionIsNotFound(t *testing.T) {
	f := newSessionFixture()
	sess, err := f.svc.Start(context.Background(), f.users.user.ID, f.content.ID)
	require.NoError(t, err)

	_, err = f.svc.End(context.Background(), uuid.New(), sess.ID)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSessionStart_UnknownContent(t *testing.T) {
	f := newSessionFixture()

	_, err := f.svc.Start(context.Background(), f.users.user.ID, uuid.New())
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = f.svc.Start(context.Background(), f.users.user.ID, uuid.Nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLogEvents_SkipsDuplicates(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	userID := f.users.user.ID
	sess, err := f.svc.Start(ctx, userID, f.content.ID)
	require.NoError(t, err)

	eventID := uuid.New()
	events := []models.InteractionEvent{
		{ID: eventID, Type: models.EventView},
		{Type: models.EventLike, Metadata: []byte(`{"source":"feed"}`)},
	}

	n, err := f.svc.LogEvents(ctx, userID, sess.ID, events)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.LogEvents(ctx, userID, sess.ID, []models.InteractionEvent{{ID: eventID, Type: models.EventView}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stored := f.store.events[eventID]
	assert.Equal(t, sess.ID, stored.SessionID)
	assert.Equal(t, userID, stored.UserID)
	assert.Equal(t, f.clock, stored.Timestamp)
}

func TestLogEvents_Validation(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sess, err := f.svc.Start(ctx, f.users.user.ID, f.content.ID)
	require.NoError(t, err)

	_, err = f.svc.LogEvents(ctx, f.users.user.ID, sess.ID, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "events")

	_, err = f.svc.LogEvents(ctx, f.users.user.ID, sess.ID, []models.InteractionEvent{{Type: "SCROLL"}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "events[0].type")

	_, err = f.svc.LogEvents(ctx, uuid.New(), sess.ID, []models.InteractionEvent{{Type: models.EventView}})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
