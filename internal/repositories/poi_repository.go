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

type POIRepository interface {
	InsertOrGet(ctx context.Context, poi *db_models.POI) (*db_models.POI, bool, error)
	GetByPlaceID(ctx context.Context, placeID string) (*db_models.POI, error)
	GetByID(ctx context.Context, id string) (*db_models.POI, error)
	UpdateGuideArtifacts(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

type poiRepository struct {
	db *gorm.DB
}

func NewPOIRepository(db *gorm.DB) POIRepository {
	return &poiRepository{db: db}
}

// InsertOrGet resolves place identity with the unique constraint as the
// arbiter: a concurrent insert of the same place_id loses the race and reads
// the winner's row back. The bool reports whether a row was created.
func (r *poiRepository) InsertOrGet(ctx context.Context, poi *db_models.POI) (*db_models.POI, bool, error) {
	existing, err := r.GetByPlaceID(ctx, poi.PlaceID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "place_id"}},
			DoNothing: true,
		}).
		Create(poi)
	if result.Error != nil {
		return nil, false, fmt.Errorf("insert poi %s: %w", poi.PlaceID, result.Error)
	}

	if result.RowsAffected == 0 {
		// Lost the race; the winner's row must exist now.
		winner, err := r.GetByPlaceID(ctx, poi.PlaceID)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, fmt.Errorf("poi %s missing after insert conflict", poi.PlaceID)
		}
		return winner, false, nil
	}

	return poi, true, nil
}

// ────────────────────────────────────────────────────────────────
// Read helpers return default value + nil error when no rows match.
// ────────────────────────────────────────────────────────────────

func (r *poiRepository) GetByPlaceID(ctx context.Context, placeID string) (*db_models.POI, error) {
	var poi db_models.POI
	err := r.db.WithContext(ctx).First(&poi, "place_id = ?", placeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &poi, nil
}

func (r *poiRepository) GetByID(ctx context.Context, id string) (*db_models.POI, error) {
	var poi db_models.POI
	err := r.db.WithContext(ctx).First(&poi, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &poi, nil
}

// UpdateGuideArtifacts applies a partial column update so tiers that failed
// this run never blank out previously stored content.
func (r *poiRepository) UpdateGuideArtifacts(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&db_models.POI{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update poi %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
