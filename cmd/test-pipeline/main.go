package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/events"
	"github.com/JJVergara/evasystem-sub001/internal/ingestion"
	"github.com/JJVergara/evasystem-sub001/internal/matching"
	"github.com/JJVergara/evasystem-sub001/internal/mentions"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/ranking"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/JJVergara/evasystem-sub001/internal/scoring"
	"github.com/JJVergara/evasystem-sub001/internal/tracking"
)

// ScriptedProber returns pre-decided observations per story, so the whole
// pipeline can run offline.
type ScriptedProber struct {
	results map[string]models.ProbeResult
}

func (p *ScriptedProber) CheckStory(ctx context.Context, storyID, username string) (models.ProbeResult, error) {
	if result, ok := p.results[storyID]; ok {
		return result, nil
	}
	return models.ProbeResult{Outcome: models.ProbeIndeterminate}, nil
}

func main() {
	fmt.Println("🏆 Campaign Verification Service - Pipeline Test")
	fmt.Println("================================================")

	cfg := &config.Config{
		StoryTTL:                24 * time.Hour,
		MinDwellTime:            20 * time.Hour,
		RecheckOffsets:          []time.Duration{1 * time.Hour, 6 * time.Hour, 23 * time.Hour},
		IndeterminateBackoff:    15 * time.Minute,
		MaxIndeterminateRetries: 3,
		BasePoints:              100,
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
		IngestBuffer:     16,
	}

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	now := base

	store := repository.NewMemoryStore()
	store.SeedAmbassador(models.Ambassador{
		ID:             "amb-maria",
		OrganizationID: "org-demo",
		InstagramUser:  "maria.demo",
		GlobalCategory: models.CategoryBronze,
		CreatedAt:      base.Add(-30 * 24 * time.Hour),
	})
	store.SeedAmbassador(models.Ambassador{
		ID:             "amb-jose",
		OrganizationID: "org-demo",
		InstagramUser:  "jose.demo",
		GlobalCategory: models.CategoryBronze,
		CreatedAt:      base.Add(-20 * 24 * time.Hour),
	})
	store.SeedFiesta(models.Fiesta{
		ID:             "fiesta-verano",
		OrganizationID: "org-demo",
		Name:           "Fiesta Verano",
		PrimaryHashtag: "#fiestaverano",
		Status:         models.FiestaStatusActive,
		StartsAt:       base.Add(-24 * time.Hour),
		EndsAt:         base.Add(7 * 24 * time.Hour),
	})

	bus := events.NewBus(64)
	engine := scoring.NewEngine(cfg, store.Ambassadors(), store.Mentions(), bus)
	machine := mentions.NewService(store.Mentions(), engine, bus)
	machine.SetNow(func() time.Time { return now })

	prober := &ScriptedProber{results: map[string]models.ProbeResult{
		"story-1": {Outcome: models.ProbeAlive, Reach: 12500},
		"story-2": {Outcome: models.ProbeRemoved},
	}}
	tracker := tracking.NewTracker(cfg, store.Mentions(), machine, prober)
	tracker.SetNow(func() time.Time { return now })

	matcher := matching.NewService()
	ingester := ingestion.NewService(cfg, matcher, store.Mentions(), store.Ambassadors(), store.Fiestas())
	ingester.SetNow(func() time.Time { return now })

	sampleEvents := []models.RawMentionEvent{
		{
			OrganizationID:   "org-demo",
			Username:         "maria.demo",
			Caption:          "Nos vemos esta noche! #FiestaVerano",
			InstagramStoryID: "story-1",
			ObservedAt:       base,
		},
		{
			OrganizationID:   "org-demo",
			Username:         "jose.demo",
			Caption:          "Vamos #fiestaverano",
			InstagramStoryID: "story-2",
			ObservedAt:       base,
		},
	}

	fmt.Printf("\n📥 Ingesting %d sample mention events...\n", len(sampleEvents))
	ctx := context.Background()
	for _, event := range sampleEvents {
		mention, err := ingester.ProcessEvent(ctx, event)
		if err != nil {
			fmt.Printf("❌ Ingest failed for %s: %v\n", event.InstagramStoryID, err)
			os.Exit(1)
		}
		matched := "unmatched"
		if mention.MatchedAmbassadorID != nil {
			matched = "ambassador " + *mention.MatchedAmbassadorID
		}
		fmt.Printf("   • %s from @%s (%s)\n", mention.InstagramStoryID, mention.InstagramUsername, matched)
	}

	// First recheck window: story-1 alive, story-2 already deleted.
	now = base.Add(90 * time.Minute)
	fmt.Printf("\n🔍 Sweep at +%s...\n", now.Sub(base))
	if err := tracker.RunSweep(ctx); err != nil {
		fmt.Printf("❌ Sweep failed: %v\n", err)
		os.Exit(1)
	}

	// Past the dwell threshold: story-1 can now complete.
	now = base.Add(21 * time.Hour)
	fmt.Printf("🔍 Sweep at +%s...\n", now.Sub(base))
	if err := tracker.RunSweep(ctx); err != nil {
		fmt.Printf("❌ Sweep failed: %v\n", err)
		os.Exit(1)
	}

	snapshot, err := ranking.NewAggregator(store.Ambassadors(), store.Mentions()).Rank(ctx, "org-demo", nil)
	if err != nil {
		fmt.Printf("❌ Ranking failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("📊 LEADERBOARD org-demo")
	fmt.Println(strings.Repeat("=", 60))
	for _, entry := range snapshot.Entries {
		fmt.Printf("   %d. @%-12s %4d pts  %-8s %-12s %3d%% completion\n",
			entry.Rank, entry.InstagramUser, entry.Points, entry.Category, entry.Status, entry.CompletionRate)
	}
	fmt.Println("\n💭 Performance distribution:")
	for status, bucket := range snapshot.Distribution {
		fmt.Printf("   • %-12s %d (%d%%)\n", status, bucket.Count, bucket.Percentage)
	}

	fmt.Println("\n📬 Events published:")
	for {
		select {
		case event := <-bus.Events():
			fmt.Printf("   • %s mention=%s ambassador=%s points=%d reach=%d\n",
				event.Type, event.MentionID, event.AmbassadorID, event.Points, event.Reach)
		default:
			fmt.Println("\n✅ Pipeline test completed!")
			return
		}
	}
}
