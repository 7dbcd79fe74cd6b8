package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/mentions"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/sirupsen/logrus"
)

// Prober asks the platform whether a story is still alive and what its
// reach is now.
type Prober interface {
	CheckStory(ctx context.Context, storyID, username string) (models.ProbeResult, error)
}

// StateMachine is the subset of the mention state machine the tracker drives.
type StateMachine interface {
	Complete(ctx context.Context, mentionID string, reach int) error
	FlagEarlyDelete(ctx context.Context, mentionID string) error
	Expire(ctx context.Context, mentionID string) error
}

// Metrics holds tracker counters exposed on the metrics endpoint.
type Metrics struct {
	LastSweep     time.Time `json:"last_sweep"`
	SweepDuration string    `json:"sweep_duration"`
	ChecksRun     int       `json:"checks_run"`
	Alive         int       `json:"alive"`
	Removed       int       `json:"removed"`
	Indeterminate int       `json:"indeterminate"`
	Completed     int       `json:"completed"`
	Flagged       int       `json:"flagged"`
	Expired       int       `json:"expired"`
	ErrorCount    int       `json:"error_count"`
}

// Tracker schedules and executes recheck observations for unresolved
// mentions and feeds the results to the state machine. The cron scheduler
// decides when sweeps fire; the tracker only decides what each fire does.
type Tracker struct {
	cfg      *config.Config
	mentions repository.MentionRepository
	machine  StateMachine
	prober   Prober
	nowFn    func() time.Time

	mu      sync.RWMutex
	metrics Metrics
}

// NewTracker creates a reach tracker.
func NewTracker(cfg *config.Config, mentionRepo repository.MentionRepository, machine StateMachine, prober Prober) *Tracker {
	return &Tracker{
		cfg:      cfg,
		mentions: mentionRepo,
		machine:  machine,
		prober:   prober,
		nowFn:    time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (t *Tracker) SetNow(nowFn func() time.Time) {
	t.nowFn = nowFn
}

// RunSweep walks all unresolved mentions once: expires those past their
// deadline and probes those whose next recheck is due.
func (t *Tracker) RunSweep(ctx context.Context) error {
	start := t.nowFn()

	unprocessed, err := t.mentions.ListUnprocessed(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unprocessed mentions: %w", err)
	}

	logrus.Debugf("Recheck sweep over %d unresolved mentions", len(unprocessed))
	errorCount := 0

	for i := range unprocessed {
		mention := unprocessed[i]
		now := t.nowFn()

		if !now.Before(mention.ExpiresAt) {
			if err := t.machine.Expire(ctx, mention.ID); err != nil {
				if errors.Is(err, mentions.ErrInvalidTransition) {
					continue
				}
				logrus.Errorf("Failed to expire mention %s: %v", mention.ID, err)
				errorCount++
				continue
			}
			t.bump(func(m *Metrics) { m.Expired++ })
			continue
		}

		if !t.due(&mention, now) {
			continue
		}

		if err := t.CheckMention(ctx, &mention); err != nil {
			logrus.Errorf("Recheck failed for mention %s: %v", mention.ID, err)
			errorCount++
		}
	}

	t.mu.Lock()
	t.metrics.LastSweep = start
	t.metrics.SweepDuration = t.nowFn().Sub(start).String()
	t.metrics.ErrorCount += errorCount
	t.mu.Unlock()

	return nil
}

// due decides whether a mention needs a probe now. Scheduled rechecks fire
// at configured offsets from mentioned_at; indeterminate results retry with
// doubling backoff up to the attempt cap, after which the mention is left
// to expire naturally.
func (t *Tracker) due(mention *models.Mention, now time.Time) bool {
	if mention.IndeterminateStreak > 0 {
		if mention.IndeterminateStreak > t.cfg.MaxIndeterminateRetries {
			return false
		}
		if mention.LastCheckAt == nil {
			return true
		}
		backoff := t.cfg.IndeterminateBackoff << (mention.IndeterminateStreak - 1)
		return !now.Before(mention.LastCheckAt.Add(backoff))
	}

	if mention.ScheduleIndex >= len(t.cfg.RecheckOffsets) {
		return false
	}
	return !now.Before(mention.MentionedAt.Add(t.cfg.RecheckOffsets[mention.ScheduleIndex]))
}

// CheckMention runs one probe for a mention and applies the outcome.
func (t *Tracker) CheckMention(ctx context.Context, mention *models.Mention) error {
	// The sweep listing is a snapshot; an overlapping sweep may have resolved
	// this mention since. Work from the current row, never the listed copy.
	current, err := t.mentions.GetByID(ctx, mention.ID)
	if err != nil {
		return fmt.Errorf("failed to reload mention %s: %w", mention.ID, err)
	}
	if current.State.Terminal() {
		return nil
	}
	mention = current

	now := t.nowFn()

	result, err := t.prober.CheckStory(ctx, mention.InstagramStoryID, mention.InstagramUsername)
	if err != nil {
		// Probe failures are never fatal to the pipeline; they degrade to
		// an indeterminate observation and get retried.
		logrus.Warnf("ProbeIndeterminate: mention %s: %v", mention.ID, err)
		result = models.ProbeResult{Outcome: models.ProbeIndeterminate}
	}

	mention.ChecksCount++
	mention.LastCheckAt = &now

	switch result.Outcome {
	case models.ProbeAlive:
		t.bump(func(m *Metrics) { m.ChecksRun++; m.Alive++ })
		return t.handleAlive(ctx, mention, result.Reach, now)
	case models.ProbeRemoved:
		t.bump(func(m *Metrics) { m.ChecksRun++; m.Removed++ })
		return t.handleRemoved(ctx, mention, now)
	default:
		t.bump(func(m *Metrics) { m.ChecksRun++; m.Indeterminate++ })
		return t.handleIndeterminate(ctx, mention)
	}
}

func (t *Tracker) handleAlive(ctx context.Context, mention *models.Mention, reach int, now time.Time) error {
	mention.IndeterminateStreak = 0
	t.skipElapsedOffsets(mention, now)
	if reach > mention.ReachCount {
		mention.ReachCount = reach
	}

	ok, err := t.persistCheck(ctx, mention)
	if err != nil || !ok {
		return err
	}

	if now.Sub(mention.MentionedAt) >= t.cfg.MinDwellTime {
		if err := t.machine.Complete(ctx, mention.ID, mention.ReachCount); err != nil {
			if errors.Is(err, mentions.ErrInvalidTransition) {
				return nil
			}
			return err
		}
		t.bump(func(m *Metrics) { m.Completed++ })
	}
	return nil
}

func (t *Tracker) handleRemoved(ctx context.Context, mention *models.Mention, now time.Time) error {
	t.skipElapsedOffsets(mention, now)

	ok, err := t.persistCheck(ctx, mention)
	if err != nil || !ok {
		return err
	}

	if now.Sub(mention.MentionedAt) < t.cfg.MinDwellTime {
		if err := t.machine.FlagEarlyDelete(ctx, mention.ID); err != nil {
			if errors.Is(err, mentions.ErrInvalidTransition) {
				return nil
			}
			return err
		}
		t.bump(func(m *Metrics) { m.Flagged++ })
		return nil
	}

	// Removed after the dwell window without a conclusive live observation:
	// completion can no longer be verified, so the mention rides out its
	// deadline into expired_unknown.
	logrus.Infof("Mention %s removed after dwell window without verification, leaving to expire", mention.ID)
	return nil
}

func (t *Tracker) handleIndeterminate(ctx context.Context, mention *models.Mention) error {
	mention.IndeterminateStreak++
	if mention.IndeterminateStreak > t.cfg.MaxIndeterminateRetries {
		logrus.Warnf("Mention %s exhausted %d indeterminate retries, leaving to expire",
			mention.ID, t.cfg.MaxIndeterminateRetries)
	}

	_, err := t.persistCheck(ctx, mention)
	return err
}

// skipElapsedOffsets moves the schedule past every offset that has already
// elapsed; a late sweep should not fire a burst of redundant probes.
func (t *Tracker) skipElapsedOffsets(mention *models.Mention, now time.Time) {
	for mention.ScheduleIndex < len(t.cfg.RecheckOffsets) &&
		!now.Before(mention.MentionedAt.Add(t.cfg.RecheckOffsets[mention.ScheduleIndex])) {
		mention.ScheduleIndex++
	}
}

// persistCheck writes probe bookkeeping. It reports false when the mention
// was resolved by a concurrent sweep, in which case no transition may follow.
func (t *Tracker) persistCheck(ctx context.Context, mention *models.Mention) (bool, error) {
	if err := t.mentions.Update(ctx, mention); err != nil {
		if errors.Is(err, repository.ErrStaleMention) {
			logrus.Debugf("Mention %s resolved by a concurrent sweep, dropped check state", mention.ID)
			return false, nil
		}
		return false, fmt.Errorf("failed to persist check for mention %s: %w", mention.ID, err)
	}
	return true, nil
}

func (t *Tracker) bump(fn func(*Metrics)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.metrics)
}

// GetMetrics returns current tracker metrics as JSON.
func (t *Tracker) GetMetrics() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	data, _ := json.MarshalIndent(t.metrics, "", "  ")
	return string(data)
}
