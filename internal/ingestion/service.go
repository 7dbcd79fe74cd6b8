package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/matching"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Metrics holds ingestion counters exposed on the metrics endpoint.
type Metrics struct {
	Received        int       `json:"received"`
	Created         int       `json:"created"`
	Duplicates      int       `json:"duplicates"`
	Dropped         int       `json:"dropped"`
	MatchedBoth     int       `json:"matched_both"`
	Unmatched       int       `json:"unmatched"`
	LastEventAt     time.Time `json:"last_event_at"`
	ProcessingError int       `json:"processing_errors"`
}

// Service consumes raw mention events from the webhook receiver, resolves
// them through the matcher and creates mentions in state new. Events flow
// through a buffered channel so recheck work never blocks ingestion.
type Service struct {
	cfg         *config.Config
	matcher     *matching.Service
	mentions    repository.MentionRepository
	ambassadors repository.AmbassadorRepository
	fiestas     repository.FiestaRepository
	ch          chan models.RawMentionEvent
	nowFn       func() time.Time

	mu      sync.RWMutex
	metrics Metrics
}

// NewService creates the ingestion pipeline.
func NewService(cfg *config.Config, matcher *matching.Service, mentionRepo repository.MentionRepository, ambassadors repository.AmbassadorRepository, fiestas repository.FiestaRepository) *Service {
	return &Service{
		cfg:         cfg,
		matcher:     matcher,
		mentions:    mentionRepo,
		ambassadors: ambassadors,
		fiestas:     fiestas,
		ch:          make(chan models.RawMentionEvent, cfg.IngestBuffer),
		nowFn:       time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(nowFn func() time.Time) {
	s.nowFn = nowFn
}

// Enqueue hands an event to the pipeline without blocking. It reports false
// when the buffer is full.
func (s *Service) Enqueue(event models.RawMentionEvent) bool {
	select {
	case s.ch <- event:
		return true
	default:
		s.bump(func(m *Metrics) { m.Dropped++ })
		logrus.Warnf("Ingestion buffer full, dropped event for story %s", event.InstagramStoryID)
		return false
	}
}

// Run consumes the pipeline until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	logrus.Info("Ingestion pipeline started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Ingestion pipeline stopped")
			return
		case event := <-s.ch:
			if _, err := s.ProcessEvent(ctx, event); err != nil {
				s.bump(func(m *Metrics) { m.ProcessingError++ })
				logrus.Errorf("Failed to process event for story %s: %v", event.InstagramStoryID, err)
			}
		}
	}
}

// ProcessEvent matches one raw event and creates its mention. Duplicate
// deliveries for a story already on record are ignored. The returned
// mention is nil for duplicates.
func (s *Service) ProcessEvent(ctx context.Context, event models.RawMentionEvent) (*models.Mention, error) {
	s.bump(func(m *Metrics) { m.Received++; m.LastEventAt = s.nowFn() })

	if event.OrganizationID == "" || event.InstagramStoryID == "" {
		return nil, fmt.Errorf("event missing organization_id or instagram_story_id")
	}

	existing, err := s.mentions.GetByStoryID(ctx, event.OrganizationID, event.InstagramStoryID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate story: %w", err)
	}
	if existing != nil {
		s.bump(func(m *Metrics) { m.Duplicates++ })
		logrus.Debugf("Duplicate delivery for story %s, ignored", event.InstagramStoryID)
		return nil, nil
	}

	ambassadors, err := s.ambassadors.ListByOrganization(ctx, event.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate ambassadors: %w", err)
	}
	fiestas, err := s.fiestas.ListActiveByOrganization(ctx, event.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate campaigns: %w", err)
	}

	match := s.matcher.Match(event, ambassadors, fiestas)

	observedAt := event.ObservedAt
	if observedAt.IsZero() {
		observedAt = s.nowFn()
	}

	mention := &models.Mention{
		ID:                  uuid.NewString(),
		OrganizationID:      event.OrganizationID,
		InstagramUsername:   event.Username,
		InstagramStoryID:    event.InstagramStoryID,
		MentionedAt:         observedAt,
		ExpiresAt:           observedAt.Add(s.cfg.StoryTTL),
		State:               models.MentionStateNew,
		MatchedAmbassadorID: match.AmbassadorID,
		MatchedFiestaID:     match.FiestaID,
	}

	if err := s.mentions.Create(ctx, mention); err != nil {
		return nil, fmt.Errorf("failed to create mention: %w", err)
	}

	s.bump(func(m *Metrics) {
		m.Created++
		if match.AmbassadorID != nil && match.FiestaID != nil {
			m.MatchedBoth++
		}
		if match.AmbassadorID == nil && match.FiestaID == nil {
			m.Unmatched++
		}
	})

	logrus.Infof("Created mention %s for story %s (ambassador matched: %t, campaign matched: %t)",
		mention.ID, event.InstagramStoryID, match.AmbassadorID != nil, match.FiestaID != nil)
	return mention, nil
}

// Handler is the webhook endpoint accepting raw mention events.
func (s *Service) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.RawMentionEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
			return
		}
		if event.OrganizationID == "" || event.InstagramStoryID == "" {
			http.Error(w, `{"error":"organization_id and instagram_story_id are required"}`, http.StatusBadRequest)
			return
		}

		if !s.Enqueue(event) {
			http.Error(w, `{"error":"ingestion buffer full"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted"}`))
	}
}

func (s *Service) bump(fn func(*Metrics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.metrics)
}

// GetMetrics returns current ingestion metrics as JSON.
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
