package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresStore is the production repository implementation backed by
// Postgres through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore opens a connection and migrates the pipeline tables.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&models.Mention{}, &models.Ambassador{}, &models.Fiesta{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logrus.Info("Connected to Postgres and migrated schema")
	return &PostgresStore{db: db}, nil
}

// Mentions returns the mention repository view.
func (s *PostgresStore) Mentions() MentionRepository { return &postgresMentions{db: s.db} }

// Ambassadors returns the ambassador repository view.
func (s *PostgresStore) Ambassadors() AmbassadorRepository { return &postgresAmbassadors{db: s.db} }

// Fiestas returns the campaign repository view.
func (s *PostgresStore) Fiestas() FiestaRepository { return &postgresFiestas{db: s.db} }

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type postgresMentions struct {
	db *gorm.DB
}

var _ MentionRepository = (*postgresMentions)(nil)

func (r *postgresMentions) Create(ctx context.Context, mention *models.Mention) error {
	return r.db.WithContext(ctx).Create(mention).Error
}

func (r *postgresMentions) Update(ctx context.Context, mention *models.Mention) error {
	query := r.db.WithContext(ctx).Model(&models.Mention{}).Where("id = ?", mention.ID)
	if !mention.Processed {
		// Check bookkeeping must not overwrite a row another worker already
		// resolved; the condition makes the write a no-op in that race.
		query = query.Where("processed = ?", false)
	}

	result := query.Select("*").Omit("id", "created_at").Updates(mention)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, mention.ID); err != nil {
			return err
		}
		return ErrStaleMention
	}
	return nil
}

func (r *postgresMentions) GetByID(ctx context.Context, id string) (*models.Mention, error) {
	var mention models.Mention
	if err := r.db.WithContext(ctx).First(&mention, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &mention, nil
}

func (r *postgresMentions) GetByStoryID(ctx context.Context, organizationID, storyID string) (*models.Mention, error) {
	var mention models.Mention
	err := r.db.WithContext(ctx).
		First(&mention, "organization_id = ? AND instagram_story_id = ?", organizationID, storyID).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &mention, nil
}

func (r *postgresMentions) ListUnprocessed(ctx context.Context) ([]models.Mention, error) {
	var mentions []models.Mention
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("mentioned_at ASC").
		Find(&mentions).Error
	return mentions, err
}

func (r *postgresMentions) ListByOrganization(ctx context.Context, organizationID string, from, to *time.Time) ([]models.Mention, error) {
	query := r.db.WithContext(ctx).Where("organization_id = ?", organizationID)
	if from != nil {
		query = query.Where("mentioned_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("mentioned_at <= ?", *to)
	}

	var mentions []models.Mention
	err := query.Order("mentioned_at ASC").Find(&mentions).Error
	return mentions, err
}

func (r *postgresMentions) CountCompletedForFiesta(ctx context.Context, ambassadorID, fiestaID, excludeMentionID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Mention{}).
		Where("matched_ambassador_id = ? AND matched_fiesta_id = ? AND state = ? AND id <> ?",
			ambassadorID, fiestaID, models.MentionStateCompleted, excludeMentionID).
		Count(&count).Error
	return int(count), err
}

type postgresAmbassadors struct {
	db *gorm.DB
}

var _ AmbassadorRepository = (*postgresAmbassadors)(nil)

func (r *postgresAmbassadors) GetByID(ctx context.Context, id string) (*models.Ambassador, error) {
	var ambassador models.Ambassador
	if err := r.db.WithContext(ctx).First(&ambassador, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &ambassador, nil
}

func (r *postgresAmbassadors) ListByOrganization(ctx context.Context, organizationID string) ([]models.Ambassador, error) {
	var ambassadors []models.Ambassador
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at ASC").
		Find(&ambassadors).Error
	return ambassadors, err
}

func (r *postgresAmbassadors) Update(ctx context.Context, ambassador *models.Ambassador) error {
	result := r.db.WithContext(ctx).Save(ambassador)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type postgresFiestas struct {
	db *gorm.DB
}

var _ FiestaRepository = (*postgresFiestas)(nil)

func (r *postgresFiestas) GetByID(ctx context.Context, id string) (*models.Fiesta, error) {
	var fiesta models.Fiesta
	if err := r.db.WithContext(ctx).First(&fiesta, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &fiesta, nil
}

func (r *postgresFiestas) ListActiveByOrganization(ctx context.Context, organizationID string) ([]models.Fiesta, error) {
	var fiestas []models.Fiesta
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, models.FiestaStatusActive).
		Find(&fiestas).Error
	return fiestas, err
}
