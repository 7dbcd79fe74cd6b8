package repository

import (
	"context"
	"sync"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
)

// MemoryStore is an in-memory implementation of all three repositories.
// It backs local development runs and the test suite. Entity views are
// exposed through Mentions, Ambassadors and Fiestas.
type MemoryStore struct {
	mu          sync.RWMutex
	mentions    map[string]models.Mention
	ambassadors map[string]models.Ambassador
	fiestas     map[string]models.Fiesta
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mentions:    make(map[string]models.Mention),
		ambassadors: make(map[string]models.Ambassador),
		fiestas:     make(map[string]models.Fiesta),
	}
}

// Mentions returns the mention repository view.
func (s *MemoryStore) Mentions() MentionRepository { return &memoryMentions{store: s} }

// Ambassadors returns the ambassador repository view.
func (s *MemoryStore) Ambassadors() AmbassadorRepository { return &memoryAmbassadors{store: s} }

// Fiestas returns the campaign repository view.
func (s *MemoryStore) Fiestas() FiestaRepository { return &memoryFiestas{store: s} }

// SeedAmbassador inserts an ambassador record directly, for tests and local runs.
func (s *MemoryStore) SeedAmbassador(ambassador models.Ambassador) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ambassador.CreatedAt.IsZero() {
		ambassador.CreatedAt = time.Now()
	}
	s.ambassadors[ambassador.ID] = ambassador
}

// SeedFiesta inserts a campaign record directly, for tests and local runs.
func (s *MemoryStore) SeedFiesta(fiesta models.Fiesta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fiesta.CreatedAt.IsZero() {
		fiesta.CreatedAt = time.Now()
	}
	s.fiestas[fiesta.ID] = fiesta
}

type memoryMentions struct {
	store *MemoryStore
}

var _ MentionRepository = (*memoryMentions)(nil)

func (r *memoryMentions) Create(ctx context.Context, mention *models.Mention) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now()
	if mention.CreatedAt.IsZero() {
		mention.CreatedAt = now
	}
	mention.UpdatedAt = now
	r.store.mentions[mention.ID] = *mention
	return nil
}

func (r *memoryMentions) Update(ctx context.Context, mention *models.Mention) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.mentions[mention.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Processed && !mention.Processed {
		return ErrStaleMention
	}
	mention.UpdatedAt = time.Now()
	r.store.mentions[mention.ID] = *mention
	return nil
}

func (r *memoryMentions) GetByID(ctx context.Context, id string) (*models.Mention, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	mention, ok := r.store.mentions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &mention, nil
}

func (r *memoryMentions) GetByStoryID(ctx context.Context, organizationID, storyID string) (*models.Mention, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, mention := range r.store.mentions {
		if mention.OrganizationID == organizationID && mention.InstagramStoryID == storyID {
			m := mention
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryMentions) ListUnprocessed(ctx context.Context) ([]models.Mention, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []models.Mention
	for _, mention := range r.store.mentions {
		if !mention.Processed {
			result = append(result, mention)
		}
	}
	return result, nil
}

func (r *memoryMentions) ListByOrganization(ctx context.Context, organizationID string, from, to *time.Time) ([]models.Mention, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []models.Mention
	for _, mention := range r.store.mentions {
		if mention.OrganizationID != organizationID {
			continue
		}
		if from != nil && mention.MentionedAt.Before(*from) {
			continue
		}
		if to != nil && mention.MentionedAt.After(*to) {
			continue
		}
		result = append(result, mention)
	}
	return result, nil
}

func (r *memoryMentions) CountCompletedForFiesta(ctx context.Context, ambassadorID, fiestaID, excludeMentionID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, mention := range r.store.mentions {
		if mention.ID == excludeMentionID {
			continue
		}
		if mention.State != models.MentionStateCompleted {
			continue
		}
		if mention.MatchedAmbassadorID == nil || *mention.MatchedAmbassadorID != ambassadorID {
			continue
		}
		if mention.MatchedFiestaID == nil || *mention.MatchedFiestaID != fiestaID {
			continue
		}
		count++
	}
	return count, nil
}

type memoryAmbassadors struct {
	store *MemoryStore
}

var _ AmbassadorRepository = (*memoryAmbassadors)(nil)

func (r *memoryAmbassadors) GetByID(ctx context.Context, id string) (*models.Ambassador, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ambassador, ok := r.store.ambassadors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ambassador, nil
}

func (r *memoryAmbassadors) ListByOrganization(ctx context.Context, organizationID string) ([]models.Ambassador, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []models.Ambassador
	for _, ambassador := range r.store.ambassadors {
		if ambassador.OrganizationID == organizationID {
			result = append(result, ambassador)
		}
	}
	return result, nil
}

func (r *memoryAmbassadors) Update(ctx context.Context, ambassador *models.Ambassador) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.ambassadors[ambassador.ID]; !ok {
		return ErrNotFound
	}
	ambassador.UpdatedAt = time.Now()
	r.store.ambassadors[ambassador.ID] = *ambassador
	return nil
}

type memoryFiestas struct {
	store *MemoryStore
}

var _ FiestaRepository = (*memoryFiestas)(nil)

func (r *memoryFiestas) GetByID(ctx context.Context, id string) (*models.Fiesta, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	fiesta, ok := r.store.fiestas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &fiesta, nil
}

func (r *memoryFiestas) ListActiveByOrganization(ctx context.Context, organizationID string) ([]models.Fiesta, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []models.Fiesta
	for _, fiesta := range r.store.fiestas {
		if fiesta.OrganizationID == organizationID && fiesta.Status == models.FiestaStatusActive {
			result = append(result, fiesta)
		}
	}
	return result, nil
}
