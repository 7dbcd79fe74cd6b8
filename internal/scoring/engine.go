package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Publisher delivers fire-and-forget domain events.
type Publisher interface {
	Publish(event models.Event)
}

// Engine converts terminal mentions into ambassador points, counters and
// tiers. It is the only writer of ambassador counters; category and
// performance status are always recomputed here, never set directly.
type Engine struct {
	cfg         *config.Config
	ambassadors repository.AmbassadorRepository
	mentions    repository.MentionRepository
	bus         Publisher
}

// NewEngine creates a scoring engine.
func NewEngine(cfg *config.Config, ambassadors repository.AmbassadorRepository, mentions repository.MentionRepository, bus Publisher) *Engine {
	return &Engine{
		cfg:         cfg,
		ambassadors: ambassadors,
		mentions:    mentions,
		bus:         bus,
	}
}

// OnTerminal scores a mention that just reached a terminal state. The state
// machine guarantees it is called exactly once per mention.
func (e *Engine) OnTerminal(ctx context.Context, mention *models.Mention) error {
	if !mention.State.Terminal() {
		return fmt.Errorf("scoring conflict: mention %s is not terminal (state %s)", mention.ID, mention.State)
	}

	if mention.MatchedAmbassadorID == nil {
		logrus.Debugf("Mention %s reached %s unmatched, excluded from scoring", mention.ID, mention.State)
		return nil
	}

	ambassador, err := e.ambassadors.GetByID(ctx, *mention.MatchedAmbassadorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Ambassador deleted mid-flight: the mention keeps its audit
			// trail, counters simply have nowhere to go.
			logrus.Warnf("Ambassador %s not found while scoring mention %s", *mention.MatchedAmbassadorID, mention.ID)
			return nil
		}
		return fmt.Errorf("failed to load ambassador %s: %w", *mention.MatchedAmbassadorID, err)
	}

	oldCategory := ambassador.GlobalCategory

	switch mention.State {
	case models.MentionStateCompleted:
		points := e.cfg.BasePoints + e.ReachBonus(mention.ReachCount)
		ambassador.CompletedTasks++
		ambassador.GlobalPoints += points
		logrus.Infof("Scored mention %s: %d points for ambassador %s (reach %d)",
			mention.ID, points, ambassador.ID, mention.ReachCount)

		if mention.MatchedFiestaID != nil {
			first, err := e.isFirstCompletionForFiesta(ctx, mention)
			if err != nil {
				return err
			}
			if first {
				ambassador.EventsParticipated++
			}
		}
	case models.MentionStateFlaggedEarlyDelete, models.MentionStateExpiredUnknown:
		ambassador.FailedTasks++
	}

	ambassador.GlobalCategory = e.CategoryFor(ambassador.GlobalPoints)
	ambassador.PerformanceStatus = e.statusFor(ambassador)

	if err := e.ambassadors.Update(ctx, ambassador); err != nil {
		return fmt.Errorf("failed to update ambassador %s: %w", ambassador.ID, err)
	}

	if ambassador.GlobalCategory != oldCategory && e.bus != nil {
		e.bus.Publish(models.Event{
			ID:             uuid.NewString(),
			Type:           models.EventAmbassadorTierChanged,
			OrganizationID: ambassador.OrganizationID,
			AmbassadorID:   ambassador.ID,
			Points:         ambassador.GlobalPoints,
			OldCategory:    oldCategory,
			NewCategory:    ambassador.GlobalCategory,
			CreatedAt:      time.Now(),
		})
	}

	return nil
}

func (e *Engine) isFirstCompletionForFiesta(ctx context.Context, mention *models.Mention) (bool, error) {
	count, err := e.mentions.CountCompletedForFiesta(ctx, *mention.MatchedAmbassadorID, *mention.MatchedFiestaID, mention.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count completions for fiesta %s: %w", *mention.MatchedFiestaID, err)
	}
	return count == 0, nil
}

// ReachBonus is the monotonic step bonus for a reach count: the highest
// configured tier at or below the observed reach wins.
func (e *Engine) ReachBonus(reach int) int {
	bonus := 0
	for _, tier := range e.cfg.ReachTiers {
		if reach >= tier.Threshold {
			bonus = tier.Bonus
		}
	}
	return bonus
}

// CategoryFor maps total points to a tier through the configured ascending
// thresholds.
func (e *Engine) CategoryFor(points int) models.Category {
	switch {
	case points >= e.cfg.DiamondThreshold:
		return models.CategoryDiamond
	case points >= e.cfg.GoldThreshold:
		return models.CategoryGold
	case points >= e.cfg.SilverThreshold:
		return models.CategorySilver
	default:
		return models.CategoryBronze
	}
}

// statusFor derives the compliance rating from the completion rate. The
// exclusivo segment is only entered through the explicit promotion flag.
func (e *Engine) statusFor(ambassador *models.Ambassador) models.PerformanceStatus {
	if ambassador.Exclusive {
		return models.StatusExclusivo
	}

	total := ambassador.CompletedTasks + ambassador.FailedTasks
	if total == 0 {
		// No terminal mentions yet: nothing to hold against them.
		return models.StatusCumple
	}

	rate := float64(ambassador.CompletedTasks) / float64(total)
	switch {
	case rate >= e.cfg.CumpleRate:
		return models.StatusCumple
	case rate >= e.cfg.AdvertenciaRate:
		return models.StatusAdvertencia
	default:
		return models.StatusNoCumple
	}
}

// PromoteExclusive flags an ambassador as part of the exclusive segment.
// This is an explicit administrative rule, never inferred from points.
func (e *Engine) PromoteExclusive(ctx context.Context, ambassadorID string) error {
	return e.setExclusive(ctx, ambassadorID, true)
}

// DemoteExclusive removes the exclusive flag and restores the derived status.
func (e *Engine) DemoteExclusive(ctx context.Context, ambassadorID string) error {
	return e.setExclusive(ctx, ambassadorID, false)
}

func (e *Engine) setExclusive(ctx context.Context, ambassadorID string, exclusive bool) error {
	ambassador, err := e.ambassadors.GetByID(ctx, ambassadorID)
	if err != nil {
		return fmt.Errorf("failed to load ambassador %s: %w", ambassadorID, err)
	}

	ambassador.Exclusive = exclusive
	ambassador.PerformanceStatus = e.statusFor(ambassador)
	return e.ambassadors.Update(ctx, ambassador)
}
