package mentions

import (
	"context"
	"testing"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockScoring is a mock implementation of the scoring hook
type MockScoring struct {
	mock.Mock
}

func (m *MockScoring) OnTerminal(ctx context.Context, mention *models.Mention) error {
	args := m.Called(mention)
	return args.Error(0)
}

func newTestMention(id string) *models.Mention {
	mentionedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &models.Mention{
		ID:               id,
		OrganizationID:   "org-1",
		InstagramStoryID: "story-" + id,
		MentionedAt:      mentionedAt,
		ExpiresAt:        mentionedAt.Add(24 * time.Hour),
		State:            models.MentionStateNew,
	}
}

func TestService_Complete(t *testing.T) {
	store := repository.NewMemoryStore()
	mockScoring := &MockScoring{}
	service := NewService(store.Mentions(), mockScoring, nil)

	mention := newTestMention("m1")
	mention.ReachCount = 500
	require.NoError(t, store.Mentions().Create(context.Background(), mention))

	mockScoring.On("OnTerminal", mock.Anything).Return(nil)

	err := service.Complete(context.Background(), "m1", 1200)
	require.NoError(t, err)

	updated, err := store.Mentions().GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, models.MentionStateCompleted, updated.State)
	assert.Equal(t, 1200, updated.ReachCount)
	assert.True(t, updated.Processed)
	require.NotNil(t, updated.ProcessedAt)
	mockScoring.AssertNumberOfCalls(t, "OnTerminal", 1)
}

func TestService_Complete_KeepsMaxReach(t *testing.T) {
	store := repository.NewMemoryStore()
	mockScoring := &MockScoring{}
	service := NewService(store.Mentions(), mockScoring, nil)

	mention := newTestMention("m1")
	mention.ReachCount = 1500
	require.NoError(t, store.Mentions().Create(context.Background(), mention))

	mockScoring.On("OnTerminal", mock.Anything).Return(nil)

	// A smaller final probe result must not overwrite the observed maximum.
	require.NoError(t, service.Complete(context.Background(), "m1", 900))

	updated, err := store.Mentions().GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1500, updated.ReachCount)
}

func TestService_SecondTerminalTransitionIsRejected(t *testing.T) {
	store := repository.NewMemoryStore()
	mockScoring := &MockScoring{}
	service := NewService(store.Mentions(), mockScoring, nil)

	require.NoError(t, store.Mentions().Create(context.Background(), newTestMention("m1")))
	mockScoring.On("OnTerminal", mock.Anything).Return(nil)

	require.NoError(t, service.Complete(context.Background(), "m1", 1000))

	// Duplicate webhook delivery: every further terminal attempt is a no-op.
	assert.ErrorIs(t, service.Complete(context.Background(), "m1", 2000), ErrInvalidTransition)
	assert.ErrorIs(t, service.FlagEarlyDelete(context.Background(), "m1"), ErrInvalidTransition)
	assert.ErrorIs(t, service.Expire(context.Background(), "m1"), ErrInvalidTransition)

	updated, err := store.Mentions().GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, models.MentionStateCompleted, updated.State)
	assert.Equal(t, 1000, updated.ReachCount)
	mockScoring.AssertNumberOfCalls(t, "OnTerminal", 1)
}

func TestService_ProcessedMatchesTerminalState(t *testing.T) {
	tests := []struct {
		name       string
		transition func(*Service) error
		expected   models.MentionState
	}{
		{
			name:       "completed",
			transition: func(s *Service) error { return s.Complete(context.Background(), "m1", 100) },
			expected:   models.MentionStateCompleted,
		},
		{
			name:       "flagged early delete",
			transition: func(s *Service) error { return s.FlagEarlyDelete(context.Background(), "m1") },
			expected:   models.MentionStateFlaggedEarlyDelete,
		},
		{
			name:       "expired unknown",
			transition: func(s *Service) error { return s.Expire(context.Background(), "m1") },
			expected:   models.MentionStateExpiredUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			mockScoring := &MockScoring{}
			service := NewService(store.Mentions(), mockScoring, nil)

			mention := newTestMention("m1")
			require.NoError(t, store.Mentions().Create(context.Background(), mention))
			assert.False(t, mention.Processed)

			mockScoring.On("OnTerminal", mock.Anything).Return(nil)
			require.NoError(t, tt.transition(service))

			updated, err := store.Mentions().GetByID(context.Background(), "m1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, updated.State)
			assert.True(t, updated.State.Terminal())
			assert.True(t, updated.Processed)
			assert.NotNil(t, updated.ProcessedAt)
		})
	}
}

func TestService_PublishesTerminalEvents(t *testing.T) {
	store := repository.NewMemoryStore()
	mockScoring := &MockScoring{}
	publisher := &capturePublisher{}
	service := NewService(store.Mentions(), mockScoring, publisher)

	mention := newTestMention("m1")
	ambassadorID := "amb-1"
	mention.MatchedAmbassadorID = &ambassadorID
	require.NoError(t, store.Mentions().Create(context.Background(), mention))

	mockScoring.On("OnTerminal", mock.Anything).Return(nil)
	require.NoError(t, service.Complete(context.Background(), "m1", 750))

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, models.EventMentionCompleted, event.Type)
	assert.Equal(t, "m1", event.MentionID)
	assert.Equal(t, "amb-1", event.AmbassadorID)
	assert.Equal(t, 750, event.Reach)
}

type capturePublisher struct {
	events []models.Event
}

func (p *capturePublisher) Publish(event models.Event) {
	p.events = append(p.events, event)
}
