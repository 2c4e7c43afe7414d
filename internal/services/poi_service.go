package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"cicerone/internal/models/db_models"
	"cicerone/internal/models/request_models"
	"cicerone/internal/models/response_models"
	"cicerone/internal/repositories"
	"cicerone/pkg/utils"
)

// FreshnessReport says which generation tracks still need work for a POI.
// Knowledge carries the stored row when one exists so skip paths can answer
// without a second read.
type FreshnessReport struct {
	NeedsAudio     bool
	NeedsKnowledge bool
	Knowledge      *db_models.POIKnowledge
}

type POIServiceInterface interface {
	// ResolvePOI maps an external place id onto a stored row, creating a
	// minimal one on first sight. Safe under concurrent resolution of the
	// same place.
	ResolvePOI(ctx context.Context, place request_models.PlaceInput) (*db_models.POI, error)

	// InspectFreshness never fails: an unreadable freshness record is
	// reported as stale so the pipeline regenerates instead of aborting.
	InspectFreshness(ctx context.Context, poi *db_models.POI, opts GenerationOptions) FreshnessReport

	GetPOI(ctx context.Context, id string) (*response_models.POI, error)
	GetKnowledge(ctx context.Context, id string) (*response_models.KnowledgeSheet, error)
	GetRelated(ctx context.Context, id string, limit int) ([]response_models.RelatedPOI, error)
}

type PoiService struct {
	poiRepository       repositories.POIRepository
	knowledgeRepository repositories.KnowledgeRepository
	embeddingRepository repositories.PoiEmbeddingRepository
	audioService        AudioServiceInterface
	logger              *zap.Logger
}

func NewPOIService(
	poiRepository repositories.POIRepository,
	knowledgeRepository repositories.KnowledgeRepository,
	embeddingRepository repositories.PoiEmbeddingRepository,
	audioService AudioServiceInterface,
	logger *zap.Logger,
) POIServiceInterface {
	return &PoiService{
		poiRepository:       poiRepository,
		knowledgeRepository: knowledgeRepository,
		embeddingRepository: embeddingRepository,
		audioService:        audioService,
		logger:              logger,
	}
}

func (p *PoiService) ResolvePOI(ctx context.Context, place request_models.PlaceInput) (*db_models.POI, error) {
	if strings.TrimSpace(place.PlaceID) == "" || strings.TrimSpace(place.Name) == "" {
		return nil, utils.ErrInvalidInput
	}

	row := &db_models.POI{
		PlaceID:   strings.TrimSpace(place.PlaceID),
		Name:      place.Name,
		Address:   place.Address,
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
		Tags:      place.Tags,
	}

	poi, created, err := p.poiRepository.InsertOrGet(ctx, row)
	if err != nil {
		p.logger.Error("poi resolution failed",
			zap.String("place_id", place.PlaceID),
			zap.Error(err))
		return nil, utils.ErrDatabaseError
	}

	if created {
		p.logger.Info("registered new poi",
			zap.String("place_id", poi.PlaceID),
			zap.String("poi_id", poi.ID.String()))
	}
	return poi, nil
}

func (p *PoiService) InspectFreshness(ctx context.Context, poi *db_models.POI, opts GenerationOptions) FreshnessReport {
	report := FreshnessReport{}

	if opts.Audio {
		report.NeedsAudio = opts.Force || poi.AudioGeneratedAt == nil || !poi.HasAllTranscripts()
	}

	if opts.Knowledge {
		existing, err := p.knowledgeRepository.GetByPoiID(ctx, poi.ID)
		if err != nil {
			p.logger.Warn("knowledge freshness lookup failed, regenerating",
				zap.String("poi_id", poi.ID.String()),
				zap.Error(err))
			report.NeedsKnowledge = true
			return report
		}
		report.Knowledge = existing
		report.NeedsKnowledge = opts.Force || existing == nil
	}

	return report
}

func (p *PoiService) GetPOI(ctx context.Context, id string) (*response_models.POI, error) {
	poi, err := p.poiRepository.GetByID(ctx, id)
	if err != nil {
		p.logger.Error("poi lookup failed", zap.String("poi_id", id), zap.Error(err))
		return nil, utils.ErrDatabaseError
	}
	if poi == nil {
		return nil, utils.ErrPOINotFound
	}

	resp := &response_models.POI{
		ID:        poi.ID.String(),
		PlaceID:   poi.PlaceID,
		Name:      poi.Name,
		Address:   poi.Address,
		Latitude:  poi.Latitude,
		Longitude: poi.Longitude,
		Tags:      poi.Tags,
		Transcripts: response_models.TierTexts{
			Brief:    poi.TranscriptBrief,
			Detailed: poi.TranscriptDetailed,
			Complete: poi.TranscriptComplete,
		},
		AudioPaths: response_models.TierTexts{
			Brief:    poi.AudioPathBrief,
			Detailed: poi.AudioPathDetailed,
			Complete: poi.AudioPathComplete,
		},
		AudioGeneratedAt: utils.FormatRFC3339Ptr(poi.AudioGeneratedAt),
		CreatedAt:        utils.FormatRFC3339(utils.FromUnixSeconds(poi.CreatedAt)),
	}
	resp.AudioURLs = response_models.TierTexts{
		Brief:    p.signPath(poi.AudioPathBrief),
		Detailed: p.signPath(poi.AudioPathDetailed),
		Complete: p.signPath(poi.AudioPathComplete),
	}
	return resp, nil
}

// signPath is best-effort: a signing failure leaves the URL empty and the
// stored path still usable by the caller.
func (p *PoiService) signPath(path string) string {
	if path == "" {
		return ""
	}
	url, err := p.audioService.SignedURL(path)
	if err != nil {
		p.logger.Warn("signing audio url failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return url
}

func (p *PoiService) GetKnowledge(ctx context.Context, id string) (*response_models.KnowledgeSheet, error) {
	poi, err := p.poiRepository.GetByID(ctx, id)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if poi == nil {
		return nil, utils.ErrPOINotFound
	}

	row, err := p.knowledgeRepository.GetByPoiID(ctx, poi.ID)
	if err != nil {
		p.logger.Error("knowledge lookup failed", zap.String("poi_id", id), zap.Error(err))
		return nil, utils.ErrDatabaseError
	}
	if row == nil {
		return nil, utils.ErrKnowledgeNotFound
	}
	return knowledgeSheet(row), nil
}

func (p *PoiService) GetRelated(ctx context.Context, id string, limit int) ([]response_models.RelatedPOI, error) {
	if limit < 1 || limit > 100 {
		return nil, utils.ErrInvalidPageSize
	}

	poi, err := p.poiRepository.GetByID(ctx, id)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if poi == nil {
		return nil, utils.ErrPOINotFound
	}

	anchor, err := p.embeddingRepository.GetByPoiID(ctx, poi.ID.String())
	if err != nil {
		p.logger.Error("embedding lookup failed", zap.String("poi_id", id), zap.Error(err))
		return nil, utils.ErrDatabaseError
	}
	if anchor == nil {
		// No embedding yet means no knowledge run yet.
		return []response_models.RelatedPOI{}, nil
	}

	similar, err := p.embeddingRepository.SearchSimilar(ctx, anchor.Embedding, anchor.PoiID, limit)
	if err != nil {
		p.logger.Error("similarity search failed", zap.String("poi_id", id), zap.Error(err))
		return nil, utils.ErrDatabaseError
	}

	related := make([]response_models.RelatedPOI, 0, len(similar))
	for _, hit := range similar {
		related = append(related, response_models.RelatedPOI{
			PoiID:      hit.PoiID,
			Name:       hit.Name,
			Overview:   hit.Overview,
			Tags:       hit.Tags,
			Similarity: hit.Similarity,
		})
	}
	return related, nil
}
