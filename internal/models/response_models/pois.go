package response_models

type POI struct {
	ID               string    `json:"id"`
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	Address          string    `json:"address,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Tags             []string  `json:"tags,omitempty"`
	Transcripts      TierTexts `json:"transcripts"`
	AudioPaths       TierTexts `json:"audio_paths"`
	AudioURLs        TierTexts `json:"audio_urls,omitempty"`
	AudioGeneratedAt string    `json:"audio_generated_at,omitempty"`
	CreatedAt        string    `json:"created_at,omitempty"`
}

type RelatedPOI struct {
	PoiID      string   `json:"poi_id"`
	Name       string   `json:"name"`
	Overview   string   `json:"overview,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Similarity float64  `json:"similarity"`
}
