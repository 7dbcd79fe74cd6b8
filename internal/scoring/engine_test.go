package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []models.Event
}

func (p *capturePublisher) Publish(event models.Event) {
	p.events = append(p.events, event)
}

func testConfig() *config.Config {
	return &config.Config{
		BasePoints: 100,
		ReachTiers: []config.ReachTier{
			{Threshold: 1000, Bonus: 50},
			{Threshold: 10000, Bonus: 150},
			{Threshold: 100000, Bonus: 400},
		},
		SilverThreshold:  100,
		GoldThreshold:    500,
		DiamondThreshold: 2000,
		CumpleRate:       0.8,
		AdvertenciaRate:  0.5,
	}
}

func terminalMention(state models.MentionState, ambassadorID, fiestaID string, reach int) *models.Mention {
	mention := &models.Mention{
		ID:             "m1",
		OrganizationID: "org-1",
		State:          state,
		ReachCount:     reach,
		Processed:      true,
	}
	if ambassadorID != "" {
		mention.MatchedAmbassadorID = &ambassadorID
	}
	if fiestaID != "" {
		mention.MatchedFiestaID = &fiestaID
	}
	return mention
}

func TestEngine_CategoryFor(t *testing.T) {
	engine := NewEngine(testConfig(), nil, nil, nil)

	tests := []struct {
		points   int
		expected models.Category
	}{
		{0, models.CategoryBronze},
		{99, models.CategoryBronze},
		{100, models.CategorySilver},
		{499, models.CategorySilver},
		{500, models.CategoryGold},
		{1999, models.CategoryGold},
		{2000, models.CategoryDiamond},
		{10000, models.CategoryDiamond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, engine.CategoryFor(tt.points), "points=%d", tt.points)
	}
}

func TestEngine_ReachBonus(t *testing.T) {
	engine := NewEngine(testConfig(), nil, nil, nil)

	tests := []struct {
		reach    int
		expected int
	}{
		{0, 0},
		{999, 0},
		{1000, 50},
		{9999, 50},
		{10000, 150},
		{100000, 400},
		{1000000, 400},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, engine.ReachBonus(tt.reach), "reach=%d", tt.reach)
	}
}

func TestEngine_OnTerminal_Completed(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedAmbassador(models.Ambassador{ID: "amb-1", OrganizationID: "org-1"})
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

	mention := terminalMention(models.MentionStateCompleted, "amb-1", "fiesta-1", 12000)
	require.NoError(t, store.Mentions().Create(context.Background(), mention))

	require.NoError(t, engine.OnTerminal(context.Background(), mention))

	ambassador, err := store.Ambassadors().GetByID(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, 1, ambassador.CompletedTasks)
	assert.Equal(t, 0, ambassador.FailedTasks)
	assert.Equal(t, 250, ambassador.GlobalPoints) // 100 base + 150 reach bonus
	assert.Equal(t, models.CategorySilver, ambassador.GlobalCategory)
	assert.Equal(t, models.StatusCumple, ambassador.PerformanceStatus)
	assert.Equal(t, 1, ambassador.EventsParticipated)
}

func TestEngine_OnTerminal_EventsParticipatedOncePerFiesta(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedAmbassador(models.Ambassador{ID: "amb-1", OrganizationID: "org-1"})
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

	ambassadorID := "amb-1"
	fiestaID := "fiesta-1"
	first := &models.Mention{
		ID:                  "m1",
		State:               models.MentionStateCompleted,
		MatchedAmbassadorID: &ambassadorID,
		MatchedFiestaID:     &fiestaID,
	}
	require.NoError(t, store.Mentions().Create(context.Background(), first))
	require.NoError(t, engine.OnTerminal(context.Background(), first))

	second := &models.Mention{
		ID:                  "m2",
		State:               models.MentionStateCompleted,
		MatchedAmbassadorID: &ambassadorID,
		MatchedFiestaID:     &fiestaID,
	}
	require.NoError(t, store.Mentions().Create(context.Background(), second))
	require.NoError(t, engine.OnTerminal(context.Background(), second))

	ambassador, err := store.Ambassadors().GetByID(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ambassador.CompletedTasks)
	assert.Equal(t, 1, ambassador.EventsParticipated)
}

func TestEngine_OnTerminal_FailuresCountAgainstAmbassador(t *testing.T) {
	tests := []struct {
		name  string
		state models.MentionState
	}{
		{"flagged early delete", models.MentionStateFlaggedEarlyDelete},
		{"expired unknown", models.MentionStateExpiredUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			store.SeedAmbassador(models.Ambassador{ID: "amb-1", OrganizationID: "org-1"})
			engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

			mention := terminalMention(tt.state, "amb-1", "", 0)
			require.NoError(t, store.Mentions().Create(context.Background(), mention))
			require.NoError(t, engine.OnTerminal(context.Background(), mention))

			ambassador, err := store.Ambassadors().GetByID(context.Background(), "amb-1")
			require.NoError(t, err)
			assert.Equal(t, 1, ambassador.FailedTasks)
			assert.Equal(t, 0, ambassador.CompletedTasks)
			assert.Equal(t, 0, ambassador.GlobalPoints)
			assert.Equal(t, models.StatusNoCumple, ambassador.PerformanceStatus)
		})
	}
}

func TestEngine_OnTerminal_PerformanceStatusFromCompletionRate(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedAmbassador(models.Ambassador{
		ID:             "amb-1",
		OrganizationID: "org-1",
		CompletedTasks: 1,
	})
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

	// One completed, one failed: 50% sits on the advertencia cutoff.
	mention := terminalMention(models.MentionStateExpiredUnknown, "amb-1", "", 0)
	require.NoError(t, store.Mentions().Create(context.Background(), mention))
	require.NoError(t, engine.OnTerminal(context.Background(), mention))

	ambassador, err := store.Ambassadors().GetByID(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdvertencia, ambassador.PerformanceStatus)
}

func TestEngine_OnTerminal_UnmatchedMentionIsExcluded(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedAmbassador(models.Ambassador{ID: "amb-1", OrganizationID: "org-1"})
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

	mention := terminalMention(models.MentionStateCompleted, "", "", 5000)
	require.NoError(t, store.Mentions().Create(context.Background(), mention))
	require.NoError(t, engine.OnTerminal(context.Background(), mention))

	ambassador, err := store.Ambassadors().GetByID(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, 0, ambassador.CompletedTasks)
	assert.Equal(t, 0, ambassador.GlobalPoints)
}

func TestEngine_OnTerminal_DeletedAmbassadorDoesNotFailPipeline(t *testing.T) {
	store := repository.NewMemoryStore()
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

	mention := terminalMention(models.MentionStateCompleted, "amb-gone", "", 100)
	require.NoError(t, store.Mentions().Create(context.Background(), mention))

	assert.NoError(t, engine.OnTerminal(context.Background(), mention))
}

func TestEngine_OnTerminal_RejectsNonTerminalMention(t *testing.T) {
	store := repository.NewMemoryStore()
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

	mention := terminalMention(models.MentionStateNew, "amb-1", "", 0)
	assert.Error(t, engine.OnTerminal(context.Background(), mention))
}

func TestEngine_OnTerminal_PublishesTierChange(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedAmbassador(models.Ambassador{
		ID:             "amb-1",
		OrganizationID: "org-1",
		GlobalPoints:   80,
		GlobalCategory: models.CategoryBronze,
	})
	publisher := &capturePublisher{}
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), publisher)

	mention := terminalMention(models.MentionStateCompleted, "amb-1", "", 100)
	require.NoError(t, store.Mentions().Create(context.Background(), mention))
	require.NoError(t, engine.OnTerminal(context.Background(), mention))

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, models.EventAmbassadorTierChanged, event.Type)
	assert.Equal(t, models.CategoryBronze, event.OldCategory)
	assert.Equal(t, models.CategorySilver, event.NewCategory)
	assert.Equal(t, 180, event.Points)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, time.Minute)
}

func TestEngine_ExclusivePromotion(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedAmbassador(models.Ambassador{
		ID:                "amb-1",
		OrganizationID:    "org-1",
		PerformanceStatus: models.StatusCumple,
	})
	engine := NewEngine(testConfig(), store.Ambassadors(), store.Mentions(), nil)

	require.NoError(t, engine.PromoteExclusive(context.Background(), "amb-1"))
	ambassador, err := store.Ambassadors().GetByID(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.True(t, ambassador.Exclusive)
	assert.Equal(t, models.StatusExclusivo, ambassador.PerformanceStatus)

	// The flag survives scoring: high points alone never grant exclusivo,
	// and scoring never revokes it.
	mention := terminalMention(models.MentionStateCompleted, "amb-1", "", 200000)
	require.NoError(t, store.Mentions().Create(context.Background(), mention))
	require.NoError(t, engine.OnTerminal(context.Background(), mention))

	ambassador, err = store.Ambassadors().GetByID(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExclusivo, ambassador.PerformanceStatus)

	require.NoError(t, engine.DemoteExclusive(context.Background(), "amb-1"))
	ambassador, err = store.Ambassadors().GetByID(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.False(t, ambassador.Exclusive)
	assert.Equal(t, models.StatusCumple, ambassador.PerformanceStatus)
}
