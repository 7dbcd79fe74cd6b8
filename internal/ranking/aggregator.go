package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
)

// Window bounds an optional time filter on mentioned_at.
type Window struct {
	From *time.Time
	To   *time.Time
}

// StatsFilters narrows the mention stats query.
type StatsFilters struct {
	State models.MentionState
	From  *time.Time
	To    *time.Time
}

// Aggregator derives leaderboards and distribution statistics. It never
// mutates state and tolerates reading a slightly stale snapshot while the
// scoring engine writes.
type Aggregator struct {
	ambassadors repository.AmbassadorRepository
	mentions    repository.MentionRepository
}

// NewAggregator creates a ranking aggregator.
func NewAggregator(ambassadors repository.AmbassadorRepository, mentions repository.MentionRepository) *Aggregator {
	return &Aggregator{
		ambassadors: ambassadors,
		mentions:    mentions,
	}
}

// Rank produces the leaderboard snapshot for an organization, optionally
// restricted to ambassadors with mentions inside the window.
func (a *Aggregator) Rank(ctx context.Context, organizationID string, window *Window) (*models.RankingSnapshot, error) {
	ambassadors, err := a.ambassadors.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ambassadors: %w", err)
	}

	if window != nil && (window.From != nil || window.To != nil) {
		ambassadors, err = a.filterByWindow(ctx, organizationID, ambassadors, window)
		if err != nil {
			return nil, err
		}
	}

	// Points descending; earlier joiners rank higher on ties.
	sort.SliceStable(ambassadors, func(i, j int) bool {
		if ambassadors[i].GlobalPoints != ambassadors[j].GlobalPoints {
			return ambassadors[i].GlobalPoints > ambassadors[j].GlobalPoints
		}
		return ambassadors[i].CreatedAt.Before(ambassadors[j].CreatedAt)
	})

	entries := make([]models.RankingEntry, 0, len(ambassadors))
	for i, ambassador := range ambassadors {
		entries = append(entries, models.RankingEntry{
			AmbassadorID:   ambassador.ID,
			InstagramUser:  ambassador.InstagramUser,
			Rank:           i + 1,
			Points:         ambassador.GlobalPoints,
			Category:       ambassador.GlobalCategory,
			Status:         ambassador.PerformanceStatus,
			CompletionRate: CompletionRate(ambassador.CompletedTasks, ambassador.FailedTasks),
		})
	}

	return &models.RankingSnapshot{
		OrganizationID: organizationID,
		GeneratedAt:    time.Now(),
		Entries:        entries,
		Distribution:   a.distribution(ambassadors),
	}, nil
}

// filterByWindow keeps ambassadors that have at least one mention whose
// mentioned_at falls inside the window.
func (a *Aggregator) filterByWindow(ctx context.Context, organizationID string, ambassadors []models.Ambassador, window *Window) ([]models.Ambassador, error) {
	mentionsInWindow, err := a.mentions.ListByOrganization(ctx, organizationID, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions for window: %w", err)
	}

	active := make(map[string]bool)
	for _, mention := range mentionsInWindow {
		if mention.MatchedAmbassadorID != nil {
			active[*mention.MatchedAmbassadorID] = true
		}
	}

	var filtered []models.Ambassador
	for _, ambassador := range ambassadors {
		if active[ambassador.ID] {
			filtered = append(filtered, ambassador)
		}
	}
	return filtered, nil
}

// distribution counts ambassadors per performance status. Percentages are
// rounded independently per bucket and may not sum to exactly 100.
func (a *Aggregator) distribution(ambassadors []models.Ambassador) models.PerformanceDistribution {
	statuses := []models.PerformanceStatus{
		models.StatusCumple,
		models.StatusAdvertencia,
		models.StatusNoCumple,
		models.StatusExclusivo,
	}

	counts := make(map[models.PerformanceStatus]int)
	for _, ambassador := range ambassadors {
		counts[ambassador.PerformanceStatus]++
	}

	distribution := make(models.PerformanceDistribution, len(statuses))
	total := len(ambassadors)
	for _, status := range statuses {
		percentage := 0
		if total > 0 {
			percentage = int(math.Round(float64(counts[status]) / float64(total) * 100))
		}
		distribution[status] = models.StatusBucket{Count: counts[status], Percentage: percentage}
	}
	return distribution
}

// MentionStats summarizes the organization's mentions for the dashboard.
func (a *Aggregator) MentionStats(ctx context.Context, organizationID string, filters StatsFilters) (*models.MentionStats, error) {
	mentionsList, err := a.mentions.ListByOrganization(ctx, organizationID, filters.From, filters.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}

	stats := &models.MentionStats{}
	for _, mention := range mentionsList {
		if filters.State != "" && mention.State != filters.State {
			continue
		}
		stats.Total++
		switch mention.State {
		case models.MentionStateNew:
			stats.New++
		case models.MentionStateCompleted:
			stats.Completed++
			stats.TotalReach += mention.ReachCount
		case models.MentionStateExpiredUnknown:
			stats.Expired++
		case models.MentionStateFlaggedEarlyDelete:
			stats.Flagged++
		}
	}
	return stats, nil
}

// CompletionRate is the rounded percentage of completed terminal mentions.
// A zero denominator yields 0.
func CompletionRate(completed, failed int) int {
	total := completed + failed
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
