package repository

import (
	"context"
	"errors"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStaleMention is returned when an update carries an unprocessed copy of
// a mention that has already reached a terminal state. Check bookkeeping
// from an overlapping sweep must never resurrect a resolved mention.
var ErrStaleMention = errors.New("stale mention update rejected")

// MentionRepository defines persistence for mentions.
type MentionRepository interface {
	Create(ctx context.Context, mention *models.Mention) error
	Update(ctx context.Context, mention *models.Mention) error
	GetByID(ctx context.Context, id string) (*models.Mention, error)
	GetByStoryID(ctx context.Context, organizationID, storyID string) (*models.Mention, error)
	ListUnprocessed(ctx context.Context) ([]models.Mention, error)
	ListByOrganization(ctx context.Context, organizationID string, from, to *time.Time) ([]models.Mention, error)
	CountCompletedForFiesta(ctx context.Context, ambassadorID, fiestaID, excludeMentionID string) (int, error)
}

// AmbassadorRepository defines persistence for ambassadors.
type AmbassadorRepository interface {
	GetByID(ctx context.Context, id string) (*models.Ambassador, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]models.Ambassador, error)
	Update(ctx context.Context, ambassador *models.Ambassador) error
}

// FiestaRepository defines read access to campaigns. The pipeline never
// mutates campaigns; administration flows own them.
type FiestaRepository interface {
	GetByID(ctx context.Context, id string) (*models.Fiesta, error)
	ListActiveByOrganization(ctx context.Context, organizationID string) ([]models.Fiesta, error)
}
