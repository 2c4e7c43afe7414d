package request_models

// SourceRef names a piece of source material so the deep narration tier can
// carry attribution.
type SourceRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PlaceInput is the caller-supplied identity and source material for one POI.
type PlaceInput struct {
	PlaceID    string      `json:"place_id" binding:"required"`
	Name       string      `json:"name" binding:"required"`
	Address    string      `json:"address"`
	Latitude   float64     `json:"latitude"`
	Longitude  float64     `json:"longitude"`
	Tags       []string    `json:"tags"`
	SourceText string      `json:"source_text"`
	Sources    []SourceRef `json:"sources"`
}

// GenerateOptions selects which tracks run. Audio and knowledge default to
// true when omitted; force regenerates even when stored artifacts are fresh.
type GenerateOptions struct {
	Audio     *bool `json:"audio"`
	Knowledge *bool `json:"knowledge"`
	Force     bool  `json:"force"`
}

func (o GenerateOptions) WantAudio() bool     { return o.Audio == nil || *o.Audio }
func (o GenerateOptions) WantKnowledge() bool { return o.Knowledge == nil || *o.Knowledge }

type GenerateGuideRequest struct {
	Poi     PlaceInput      `json:"poi" binding:"required"`
	Options GenerateOptions `json:"options"`
}

type GenerateTourRequest struct {
	Pois    []PlaceInput    `json:"pois" binding:"required,min=1,dive"`
	Options GenerateOptions `json:"options"`
}
