package db_models

import (
	"time"

	"github.com/lib/pq"
)

// Narration tiers, ordered by depth.
const (
	TierBrief    = "brief"
	TierDetailed = "detailed"
	TierComplete = "complete"
)

var Tiers = []string{TierBrief, TierDetailed, TierComplete}

// POI is the canonical row for an external place. PlaceID comes from the
// upstream place provider and uniquely determines the row; the mapping is
// created on first resolution and never changed afterwards.
type POI struct {
	BaseModel
	PlaceID   string `gorm:"uniqueIndex;not null"`
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	Tags      pq.StringArray `gorm:"type:text[]"`

	// Last source excerpt the narration was generated from.
	SourceText string `gorm:"type:text"`

	TranscriptBrief    string `gorm:"type:text"`
	TranscriptDetailed string `gorm:"type:text"`
	TranscriptComplete string `gorm:"type:text"`

	AudioPathBrief    string
	AudioPathDetailed string
	AudioPathComplete string

	// Null means audio was never generated; the freshness signal.
	AudioGeneratedAt *time.Time
}

func (p *POI) TranscriptFor(tier string) string {
	switch tier {
	case TierBrief:
		return p.TranscriptBrief
	case TierDetailed:
		return p.TranscriptDetailed
	case TierComplete:
		return p.TranscriptComplete
	}
	return ""
}

func (p *POI) AudioPathFor(tier string) string {
	switch tier {
	case TierBrief:
		return p.AudioPathBrief
	case TierDetailed:
		return p.AudioPathDetailed
	case TierComplete:
		return p.AudioPathComplete
	}
	return ""
}

func (p *POI) HasAllTranscripts() bool {
	return p.TranscriptBrief != "" && p.TranscriptDetailed != "" && p.TranscriptComplete != ""
}

// Column names for per-tier partial updates.

func TranscriptColumn(tier string) string {
	switch tier {
	case TierBrief:
		return "transcript_brief"
	case TierDetailed:
		return "transcript_detailed"
	case TierComplete:
		return "transcript_complete"
	}
	return ""
}

func AudioPathColumn(tier string) string {
	switch tier {
	case TierBrief:
		return "audio_path_brief"
	case TierDetailed:
		return "audio_path_detailed"
	case TierComplete:
		return "audio_path_complete"
	}
	return ""
}
