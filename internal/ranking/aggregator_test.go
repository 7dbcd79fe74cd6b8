package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore() *repository.MemoryStore {
	store := repository.NewMemoryStore()

	store.SeedAmbassador(models.Ambassador{
		ID:                "amb-a",
		OrganizationID:    "org-1",
		InstagramUser:     "ana",
		GlobalPoints:      300,
		GlobalCategory:    models.CategorySilver,
		PerformanceStatus: models.StatusCumple,
		CompletedTasks:    3,
		FailedTasks:       0,
		CreatedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	store.SeedAmbassador(models.Ambassador{
		ID:                "amb-b",
		OrganizationID:    "org-1",
		InstagramUser:     "bruno",
		GlobalPoints:      300,
		GlobalCategory:    models.CategorySilver,
		PerformanceStatus: models.StatusAdvertencia,
		CompletedTasks:    2,
		FailedTasks:       1,
		CreatedAt:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	store.SeedAmbassador(models.Ambassador{
		ID:                "amb-c",
		OrganizationID:    "org-1",
		InstagramUser:     "carla",
		GlobalPoints:      900,
		GlobalCategory:    models.CategoryGold,
		PerformanceStatus: models.StatusCumple,
		CompletedTasks:    5,
		FailedTasks:       0,
		CreatedAt:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	store.SeedAmbassador(models.Ambassador{
		ID:                "amb-other-org",
		OrganizationID:    "org-2",
		InstagramUser:     "diego",
		GlobalPoints:      5000,
		PerformanceStatus: models.StatusCumple,
	})

	return store
}

func TestAggregator_Rank_OrderAndTieBreak(t *testing.T) {
	store := seedStore()
	aggregator := NewAggregator(store.Ambassadors(), store.Mentions())

	snapshot, err := aggregator.Rank(context.Background(), "org-1", nil)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 3)

	// Points descending; the earlier joiner wins the 300-point tie.
	assert.Equal(t, "amb-c", snapshot.Entries[0].AmbassadorID)
	assert.Equal(t, "amb-a", snapshot.Entries[1].AmbassadorID)
	assert.Equal(t, "amb-b", snapshot.Entries[2].AmbassadorID)

	for i, entry := range snapshot.Entries {
		assert.Equal(t, i+1, entry.Rank)
	}

	assert.Equal(t, 100, snapshot.Entries[0].CompletionRate)
	assert.Equal(t, 100, snapshot.Entries[1].CompletionRate)
	assert.Equal(t, 67, snapshot.Entries[2].CompletionRate)
}

func TestAggregator_Rank_Distribution(t *testing.T) {
	store := seedStore()
	aggregator := NewAggregator(store.Ambassadors(), store.Mentions())

	snapshot, err := aggregator.Rank(context.Background(), "org-1", nil)
	require.NoError(t, err)

	distribution := snapshot.Distribution
	assert.Equal(t, 2, distribution[models.StatusCumple].Count)
	assert.Equal(t, 67, distribution[models.StatusCumple].Percentage)
	assert.Equal(t, 1, distribution[models.StatusAdvertencia].Count)
	assert.Equal(t, 33, distribution[models.StatusAdvertencia].Percentage)
	assert.Equal(t, 0, distribution[models.StatusNoCumple].Count)
	assert.Equal(t, 0, distribution[models.StatusExclusivo].Count)
}

func TestAggregator_Rank_EmptyOrganization(t *testing.T) {
	store := repository.NewMemoryStore()
	aggregator := NewAggregator(store.Ambassadors(), store.Mentions())

	snapshot, err := aggregator.Rank(context.Background(), "org-empty", nil)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Entries)
	assert.Equal(t, 0, snapshot.Distribution[models.StatusCumple].Percentage)
}

func TestAggregator_Rank_WindowFiltersByMentions(t *testing.T) {
	store := seedStore()

	ambassadorID := "amb-a"
	mention := &models.Mention{
		ID:                  "m1",
		OrganizationID:      "org-1",
		MentionedAt:         time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		State:               models.MentionStateCompleted,
		MatchedAmbassadorID: &ambassadorID,
	}
	require.NoError(t, store.Mentions().Create(context.Background(), mention))

	aggregator := NewAggregator(store.Ambassadors(), store.Mentions())

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	snapshot, err := aggregator.Rank(context.Background(), "org-1", &Window{From: &from, To: &to})
	require.NoError(t, err)

	// Only ambassadors with a mention inside the window appear.
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "amb-a", snapshot.Entries[0].AmbassadorID)
	assert.Equal(t, 1, snapshot.Entries[0].Rank)
}

func TestAggregator_MentionStats(t *testing.T) {
	store := repository.NewMemoryStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mentionsData := []models.Mention{
		{ID: "m1", OrganizationID: "org-1", MentionedAt: base, State: models.MentionStateNew},
		{ID: "m2", OrganizationID: "org-1", MentionedAt: base.Add(time.Hour), State: models.MentionStateCompleted, ReachCount: 1200},
		{ID: "m3", OrganizationID: "org-1", MentionedAt: base.Add(2 * time.Hour), State: models.MentionStateCompleted, ReachCount: 800},
		{ID: "m4", OrganizationID: "org-1", MentionedAt: base.Add(3 * time.Hour), State: models.MentionStateExpiredUnknown},
		{ID: "m5", OrganizationID: "org-1", MentionedAt: base.Add(4 * time.Hour), State: models.MentionStateFlaggedEarlyDelete},
		{ID: "m6", OrganizationID: "org-2", MentionedAt: base, State: models.MentionStateCompleted, ReachCount: 9999},
	}
	for i := range mentionsData {
		require.NoError(t, store.Mentions().Create(context.Background(), &mentionsData[i]))
	}

	aggregator := NewAggregator(store.Ambassadors(), store.Mentions())

	stats, err := aggregator.MentionStats(context.Background(), "org-1", StatsFilters{})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.Flagged)
	assert.Equal(t, 2000, stats.TotalReach)

	completedOnly, err := aggregator.MentionStats(context.Background(), "org-1", StatsFilters{State: models.MentionStateCompleted})
	require.NoError(t, err)
	assert.Equal(t, 2, completedOnly.Total)
	assert.Equal(t, 2, completedOnly.Completed)

	from := base.Add(90 * time.Minute)
	windowed, err := aggregator.MentionStats(context.Background(), "org-1", StatsFilters{From: &from})
	require.NoError(t, err)
	assert.Equal(t, 3, windowed.Total)
}

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		completed int
		failed    int
		expected  int
	}{
		{0, 0, 0},
		{1, 0, 100},
		{0, 1, 0},
		{2, 1, 67},
		{1, 2, 33},
		{1, 1, 50},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CompletionRate(tt.completed, tt.failed),
			"completed=%d failed=%d", tt.completed, tt.failed)
	}
}
