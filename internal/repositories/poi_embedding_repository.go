package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cicerone/internal/models/db_models"
)

// SimilarPoi is an embedding row plus its cosine similarity to the query
// vector.
type SimilarPoi struct {
	db_models.PoiEmbedding
	Similarity float64 `gorm:"column:similarity"`
}

type PoiEmbeddingRepository interface {
	Upsert(ctx context.Context, row *db_models.PoiEmbedding) error
	GetByPoiID(ctx context.Context, poiID string) (*db_models.PoiEmbedding, error)
	SearchSimilar(ctx context.Context, vector pgvector.Vector, excludePoiID string, limit int) ([]SimilarPoi, error)
}

type poiEmbeddingRepository struct {
	db *gorm.DB
}

func NewPoiEmbeddingRepository(db *gorm.DB) PoiEmbeddingRepository {
	return &poiEmbeddingRepository{db: db}
}

func (r *poiEmbeddingRepository) Upsert(ctx context.Context, row *db_models.PoiEmbedding) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poi_id"}},
			UpdateAll: true,
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert embedding for poi %s: %w", row.PoiID, err)
	}
	return nil
}

func (r *poiEmbeddingRepository) GetByPoiID(ctx context.Context, poiID string) (*db_models.PoiEmbedding, error) {
	var row db_models.PoiEmbedding
	err := r.db.WithContext(ctx).First(&row, "poi_id = ?", poiID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *poiEmbeddingRepository) SearchSimilar(ctx context.Context, vector pgvector.Vector, excludePoiID string, limit int) ([]SimilarPoi, error) {
	var results []SimilarPoi

	vecStr := vector.String()

	query := `
        SELECT *, (1 - (embedding <=> $1)) AS similarity
        FROM poi_embeddings
        WHERE poi_id <> $2
          AND (1 - (embedding <=> $1)) > 0.5
        ORDER BY embedding <=> $1
        LIMIT $3
    `

	err := r.db.WithContext(ctx).Raw(query, vecStr, excludePoiID, limit).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
