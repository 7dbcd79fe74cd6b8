package mentions

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidTransition is returned when a transition is attempted on a
// mention that is already in a terminal state, or to a non-terminal target.
// It is a no-op, never fatal: duplicate webhook deliveries and racing
// rechecks are expected.
var ErrInvalidTransition = errors.New("invalid state transition")

// ScoringHook receives the terminal mention exactly once. The state
// machine's transition guard is what enforces the exactly-once contract.
type ScoringHook interface {
	OnTerminal(ctx context.Context, mention *models.Mention) error
}

// Publisher delivers fire-and-forget domain events.
type Publisher interface {
	Publish(event models.Event)
}

// Service is the mention lifecycle state machine. All terminal transitions
// go through here; per-mention serialization makes a second terminal attempt
// a rejected no-op rather than a double score.
type Service struct {
	mentions repository.MentionRepository
	scoring  ScoringHook
	bus      Publisher
	locks    [64]sync.Mutex
	nowFn    func() time.Time
}

// NewService creates the state machine.
func NewService(mentions repository.MentionRepository, scoring ScoringHook, bus Publisher) *Service {
	return &Service{
		mentions: mentions,
		scoring:  scoring,
		bus:      bus,
		nowFn:    time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(nowFn func() time.Time) {
	s.nowFn = nowFn
}

// Complete transitions a mention to completed with its final reach count.
func (s *Service) Complete(ctx context.Context, mentionID string, reach int) error {
	return s.transition(ctx, mentionID, models.MentionStateCompleted, reach)
}

// FlagEarlyDelete transitions a mention removed before the minimum dwell time.
func (s *Service) FlagEarlyDelete(ctx context.Context, mentionID string) error {
	return s.transition(ctx, mentionID, models.MentionStateFlaggedEarlyDelete, 0)
}

// Expire transitions a mention that passed its deadline without a conclusive
// observation.
func (s *Service) Expire(ctx context.Context, mentionID string) error {
	return s.transition(ctx, mentionID, models.MentionStateExpiredUnknown, 0)
}

func (s *Service) transition(ctx context.Context, mentionID string, target models.MentionState, reach int) error {
	if !target.Terminal() {
		return ErrInvalidTransition
	}

	lock := s.lockFor(mentionID)
	lock.Lock()
	defer lock.Unlock()

	mention, err := s.mentions.GetByID(ctx, mentionID)
	if err != nil {
		return fmt.Errorf("failed to load mention %s: %w", mentionID, err)
	}

	if mention.State.Terminal() {
		logrus.Warnf("InvalidStateTransition: mention %s already %s, rejected %s", mentionID, mention.State, target)
		return ErrInvalidTransition
	}

	now := s.nowFn()
	mention.State = target
	mention.Processed = true
	mention.ProcessedAt = &now
	if target == models.MentionStateCompleted && reach > mention.ReachCount {
		mention.ReachCount = reach
	}

	if err := s.mentions.Update(ctx, mention); err != nil {
		return fmt.Errorf("failed to persist transition for mention %s: %w", mentionID, err)
	}

	logrus.Infof("Mention %s transitioned to %s (reach %d, checks %d)",
		mentionID, target, mention.ReachCount, mention.ChecksCount)

	if err := s.scoring.OnTerminal(ctx, mention); err != nil {
		return fmt.Errorf("scoring failed for mention %s: %w", mentionID, err)
	}

	s.publishTerminalEvent(mention)
	return nil
}

func (s *Service) publishTerminalEvent(mention *models.Mention) {
	if s.bus == nil {
		return
	}

	event := models.Event{
		ID:             uuid.NewString(),
		OrganizationID: mention.OrganizationID,
		MentionID:      mention.ID,
		Reach:          mention.ReachCount,
		CreatedAt:      s.nowFn(),
	}
	if mention.MatchedAmbassadorID != nil {
		event.AmbassadorID = *mention.MatchedAmbassadorID
	}
	if mention.MatchedFiestaID != nil {
		event.FiestaID = *mention.MatchedFiestaID
	}

	switch mention.State {
	case models.MentionStateCompleted:
		event.Type = models.EventMentionCompleted
	case models.MentionStateFlaggedEarlyDelete:
		event.Type = models.EventMentionFlagged
	case models.MentionStateExpiredUnknown:
		event.Type = models.EventMentionExpired
	default:
		return
	}

	s.bus.Publish(event)
}

// lockFor returns the stripe lock guarding a mention id.
func (s *Service) lockFor(mentionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(mentionID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}
