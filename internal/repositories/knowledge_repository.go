package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cicerone/internal/models/db_models"
)

type KnowledgeRepository interface {
	Upsert(ctx context.Context, row *db_models.POIKnowledge) error
	GetByPoiID(ctx context.Context, poiID uuid.UUID) (*db_models.POIKnowledge, error)
}

type knowledgeRepository struct {
	db *gorm.DB
}

func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

// Upsert replaces the fact sheet wholesale, keyed on poi_id. Concurrent
// writers for the same POI serialize on the conflict target instead of
// erroring.
func (r *knowledgeRepository) Upsert(ctx context.Context, row *db_models.POIKnowledge) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poi_id"}},
			UpdateAll: true,
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert knowledge for poi %s: %w", row.PoiID, err)
	}
	return nil
}

func (r *knowledgeRepository) GetByPoiID(ctx context.Context, poiID uuid.UUID) (*db_models.POIKnowledge, error) {
	var row db_models.POIKnowledge
	err := r.db.WithContext(ctx).First(&row, "poi_id = ?", poiID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
