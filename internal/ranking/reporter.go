package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/archive"
	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/notifications"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/sirupsen/logrus"
)

// Reporter produces the scheduled ranking report per organization: a
// leaderboard snapshot delivered through the notification channels and
// archived alongside the day's mentions for the audit trail.
type Reporter struct {
	cfg        *config.Config
	aggregator *Aggregator
	notifier   notifications.NotificationInterface
	store      archive.Store
	mentions   repository.MentionRepository
}

// NewReporter creates a ranking reporter.
func NewReporter(cfg *config.Config, aggregator *Aggregator, notifier notifications.NotificationInterface, store archive.Store, mentions repository.MentionRepository) *Reporter {
	return &Reporter{
		cfg:        cfg,
		aggregator: aggregator,
		notifier:   notifier,
		store:      store,
		mentions:   mentions,
	}
}

// RunDailyReport generates, archives and sends the ranking report for every
// configured organization. Per-organization failures are logged and the
// remaining organizations still run.
func (r *Reporter) RunDailyReport(ctx context.Context) error {
	if len(r.cfg.ReportOrganizations) == 0 {
		logrus.Debug("No organizations configured for the scheduled ranking report")
		return nil
	}

	var firstErr error
	for _, orgID := range r.cfg.ReportOrganizations {
		if err := r.reportOrganization(ctx, orgID); err != nil {
			logrus.Errorf("Ranking report failed for org %s: %v", orgID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Reporter) reportOrganization(ctx context.Context, orgID string) error {
	snapshot, err := r.aggregator.Rank(ctx, orgID, nil)
	if err != nil {
		return fmt.Errorf("failed to rank org %s: %w", orgID, err)
	}

	stamp := snapshot.GeneratedAt.Format("2006-01-02-15-04-05")

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.store.Put(fmt.Sprintf("rankings/%s/%s.json", orgID, stamp), data); err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}

	if err := r.archiveRecentMentions(ctx, orgID, snapshot.GeneratedAt, stamp); err != nil {
		return err
	}

	if err := r.notifier.SendRankingReport(snapshot); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	logrus.Infof("Ranking report for org %s: %d ambassadors", orgID, len(snapshot.Entries))
	return nil
}

func (r *Reporter) archiveRecentMentions(ctx context.Context, orgID string, generatedAt time.Time, stamp string) error {
	from := generatedAt.Add(-24 * time.Hour)
	recent, err := r.mentions.ListByOrganization(ctx, orgID, &from, nil)
	if err != nil {
		return fmt.Errorf("failed to list recent mentions: %w", err)
	}
	if len(recent) == 0 {
		return nil
	}

	data, err := json.Marshal(recent)
	if err != nil {
		return fmt.Errorf("failed to marshal mentions: %w", err)
	}
	if err := r.store.Put(fmt.Sprintf("mentions/%s/%s.json", orgID, stamp), data); err != nil {
		return fmt.Errorf("failed to archive mentions: %w", err)
	}
	return nil
}
