package db_models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// POIKnowledge is the structured fact sheet, one row per POI, replaced
// wholesale on every successful knowledge run.
type POIKnowledge struct {
	BaseModel
	PoiID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;column:poi_id"`

	Overview             string `gorm:"type:text"`
	HistoricalContext    string `gorm:"type:text"`
	ArchitecturalDetails string `gorm:"type:text"`
	CulturalSignificance string `gorm:"type:text"`
	PracticalInfo        string `gorm:"type:text"`
	VisitorExperience    string `gorm:"type:text"`

	// Opaque JSON payload; "{}" when the model response was unusable.
	KeyFacts string         `gorm:"type:jsonb"`
	Trivia   pq.StringArray `gorm:"type:text[]"`
	Sources  pq.StringArray `gorm:"type:text[]"`

	LastUpdated time.Time
}

func (POIKnowledge) TableName() string { return "poi_knowledge" }

// SetSection routes a generated text into its column by section name.
func (k *POIKnowledge) SetSection(name, text string) {
	switch name {
	case "overview":
		k.Overview = text
	case "historical_context":
		k.HistoricalContext = text
	case "architectural_details":
		k.ArchitecturalDetails = text
	case "cultural_significance":
		k.CulturalSignificance = text
	case "practical_info":
		k.PracticalInfo = text
	case "visitor_experience":
		k.VisitorExperience = text
	}
}
