package response_models

import "encoding/json"

// Track and part grades used in per-POI reports.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// TierTexts maps narration tiers to a value (transcript, storage path or
// signed URL depending on context).
type TierTexts struct {
	Brief    string `json:"brief,omitempty"`
	Detailed string `json:"detailed,omitempty"`
	Complete string `json:"complete,omitempty"`
}

func (t TierTexts) IsEmpty() bool {
	return t.Brief == "" && t.Detailed == "" && t.Complete == ""
}

// KnowledgeSheet is the outward shape of a stored fact sheet.
type KnowledgeSheet struct {
	Overview             string          `json:"overview,omitempty"`
	HistoricalContext    string          `json:"historicalContext,omitempty"`
	ArchitecturalDetails string          `json:"architecturalDetails,omitempty"`
	CulturalSignificance string          `json:"culturalSignificance,omitempty"`
	PracticalInfo        string          `json:"practicalInfo,omitempty"`
	VisitorExperience    string          `json:"visitorExperience,omitempty"`
	KeyFacts             json.RawMessage `json:"keyFacts,omitempty"`
	Trivia               []string        `json:"trivia"`
	Sources              []string        `json:"sources,omitempty"`
	LastUpdated          string          `json:"lastUpdated,omitempty"`
}

// TrackReport grades one generation track part by part (tier names for the
// audio track, section names for knowledge).
type TrackReport struct {
	Status string            `json:"status"`
	Parts  map[string]string `json:"parts,omitempty"`
}

// GuideResult is the per-POI pipeline outcome.
type GuideResult struct {
	Success            bool            `json:"success"`
	PoiID              string          `json:"poiId"`
	SkippedMarker      bool            `json:"skippedMarker,omitempty"`
	Skipped            bool            `json:"skipped,omitempty"`
	AudioGenerated     bool            `json:"audioGenerated"`
	KnowledgeGenerated bool            `json:"knowledgeGenerated"`
	Transcripts        TierTexts       `json:"transcripts"`
	AudioPaths         TierTexts       `json:"audioPaths"`
	Knowledge          *KnowledgeSheet `json:"knowledge,omitempty"`
	AudioTrack         *TrackReport    `json:"audioTrack,omitempty"`
	KnowledgeTrack     *TrackReport    `json:"knowledgeTrack,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// TourGuideSummary aggregates a batch run. Every input POI appears in
// Results exactly once, in input order.
type TourGuideSummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Results   []GuideResult `json:"results"`
}
