package db_models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PoiEmbedding mirrors the knowledge overview into vector space for the
// related-POI lookup. Written best-effort after a knowledge run.
type PoiEmbedding struct {
	PoiID     string `gorm:"primaryKey;column:poi_id"`
	Name      string
	Overview  string          `gorm:"type:text"`
	Tags      pq.StringArray  `gorm:"type:text[]"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}
