package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cicerone/internal/models/db_models"
	"cicerone/internal/models/request_models"
	"cicerone/internal/models/response_models"
	"cicerone/internal/repositories"
	"cicerone/pkg/utils"
)

// GenerationOptions is the resolved form of the request flags; an absent
// flag defaults to on.
type GenerationOptions struct {
	Audio     bool
	Knowledge bool
	Force     bool
}

func optionsFrom(opts request_models.GenerateOptions) GenerationOptions {
	return GenerationOptions{
		Audio:     opts.WantAudio(),
		Knowledge: opts.WantKnowledge(),
		Force:     opts.Force,
	}
}

// Route markers are synthetic tour waypoints (start and end pins), not
// places worth narrating.
var routeMarkerPhrases = []string{
	"starting point",
	"start point",
	"end point",
	"ending point",
	"route marker",
}

func IsRouteMarker(name string, tags []string) bool {
	lower := strings.ToLower(name)
	for _, phrase := range routeMarkerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	for _, tag := range tags {
		switch strings.ToLower(strings.TrimSpace(tag)) {
		case "route-marker", "route_marker":
			return true
		}
	}
	return false
}

type GuideServiceInterface interface {
	// GenerateGuide runs the full pipeline for one place. The returned error
	// is non-nil only when identity resolution failed; every later failure
	// is folded into the result instead.
	GenerateGuide(ctx context.Context, req request_models.GenerateGuideRequest) (response_models.GuideResult, error)

	GenerateForTour(ctx context.Context, req request_models.GenerateTourRequest) response_models.TourGuideSummary
}

type GuideService struct {
	poiService          POIServiceInterface
	contentService      ContentServiceInterface
	knowledgeService    KnowledgeServiceInterface
	audioService        AudioServiceInterface
	poiRepository       repositories.POIRepository
	knowledgeRepository repositories.KnowledgeRepository
	embeddingClient     utils.EmbeddingClientInterface
	embeddingRepository repositories.PoiEmbeddingRepository
	logger              *zap.Logger
}

func NewGuideService(
	poiService POIServiceInterface,
	contentService ContentServiceInterface,
	knowledgeService KnowledgeServiceInterface,
	audioService AudioServiceInterface,
	poiRepository repositories.POIRepository,
	knowledgeRepository repositories.KnowledgeRepository,
	embeddingClient utils.EmbeddingClientInterface,
	embeddingRepository repositories.PoiEmbeddingRepository,
	logger *zap.Logger,
) GuideServiceInterface {
	return &GuideService{
		poiService:          poiService,
		contentService:      contentService,
		knowledgeService:    knowledgeService,
		audioService:        audioService,
		poiRepository:       poiRepository,
		knowledgeRepository: knowledgeRepository,
		embeddingClient:     embeddingClient,
		embeddingRepository: embeddingRepository,
		logger:              logger,
	}
}

type audioOutcome struct {
	transcripts map[string]string
	paths       map[string]string
	report      *response_models.TrackReport
	persisted   bool
	err         error
}

type knowledgeOutcome struct {
	row       *db_models.POIKnowledge
	report    *response_models.TrackReport
	persisted bool
	err       error
}

func (g *GuideService) GenerateGuide(ctx context.Context, req request_models.GenerateGuideRequest) (response_models.GuideResult, error) {
	result := response_models.GuideResult{PoiID: req.Poi.PlaceID}

	poi, err := g.poiService.ResolvePOI(ctx, req.Poi)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.Success = true

	if IsRouteMarker(req.Poi.Name, req.Poi.Tags) {
		g.logger.Info("route marker skipped",
			zap.String("place_id", poi.PlaceID),
			zap.String("poi_id", poi.ID.String()))
		result.SkippedMarker = true
		return result, nil
	}

	opts := optionsFrom(req.Options)
	freshness := g.poiService.InspectFreshness(ctx, poi, opts)

	if !freshness.NeedsAudio && !freshness.NeedsKnowledge {
		g.logger.Info("guide already fresh",
			zap.String("place_id", poi.PlaceID),
			zap.String("poi_id", poi.ID.String()))
		result.Skipped = true
		result.Transcripts = transcriptsOf(poi)
		result.AudioPaths = audioPathsOf(poi)
		result.Knowledge = knowledgeSheet(freshness.Knowledge)
		if opts.Audio {
			result.AudioTrack = &response_models.TrackReport{Status: response_models.StatusSkipped}
		}
		if opts.Knowledge {
			result.KnowledgeTrack = &response_models.TrackReport{Status: response_models.StatusSkipped}
		}
		return result, nil
	}

	// The audio and knowledge tracks touch disjoint tables and disjoint
	// result fields, so they run side by side and settle independently.
	var (
		audio     audioOutcome
		knowledge knowledgeOutcome
	)
	tracks, tctx := errgroup.WithContext(ctx)
	if freshness.NeedsAudio {
		tracks.Go(func() error {
			audio = g.runAudioTrack(tctx, poi, req.Poi)
			return nil
		})
	}
	if freshness.NeedsKnowledge {
		tracks.Go(func() error {
			knowledge = g.runKnowledgeTrack(tctx, poi, req.Poi)
			return nil
		})
	}
	_ = tracks.Wait()

	if freshness.NeedsAudio {
		result.AudioTrack = audio.report
		result.AudioGenerated = audio.persisted
		for tier, text := range audio.transcripts {
			setTier(&result.Transcripts, tier, text)
		}
		for tier, path := range audio.paths {
			setTier(&result.AudioPaths, tier, path)
		}
		if audio.err != nil {
			result.Error = appendReason(result.Error, "audio: "+audio.err.Error())
		}
	} else {
		result.Transcripts = transcriptsOf(poi)
		result.AudioPaths = audioPathsOf(poi)
		if opts.Audio {
			result.AudioTrack = &response_models.TrackReport{Status: response_models.StatusSkipped}
		}
	}

	if freshness.NeedsKnowledge {
		result.KnowledgeTrack = knowledge.report
		result.KnowledgeGenerated = knowledge.persisted
		result.Knowledge = knowledgeSheet(knowledge.row)
		if knowledge.err != nil {
			result.Error = appendReason(result.Error, "knowledge: "+knowledge.err.Error())
		}
	} else {
		result.Knowledge = knowledgeSheet(freshness.Knowledge)
		if opts.Knowledge {
			result.KnowledgeTrack = &response_models.TrackReport{Status: response_models.StatusSkipped}
		}
	}

	g.logger.Info("guide run finished",
		zap.String("place_id", poi.PlaceID),
		zap.String("poi_id", poi.ID.String()),
		zap.Bool("audio_generated", result.AudioGenerated),
		zap.Bool("knowledge_generated", result.KnowledgeGenerated))
	return result, nil
}

// runAudioTrack narrates, synthesizes and persists. Tier failures shrink the
// outcome instead of aborting it; only a persist failure fails the track
// outright.
func (g *GuideService) runAudioTrack(ctx context.Context, poi *db_models.POI, place request_models.PlaceInput) audioOutcome {
	out := audioOutcome{
		transcripts: map[string]string{},
		paths:       map[string]string{},
		report:      &response_models.TrackReport{Parts: map[string]string{}},
	}

	content := g.contentService.GenerateTieredContent(ctx, poi, place.SourceText, place.Sources)
	out.transcripts = content.Transcripts
	for tier, tierErr := range content.Errors {
		out.report.Parts[tier] = "content: " + tierErr.Error()
	}

	if len(content.Transcripts) > 0 {
		var mu sync.Mutex
		synth, sctx := errgroup.WithContext(ctx)
		for tier, text := range content.Transcripts {
			tier, text := tier, text
			synth.Go(func() error {
				path, synthErr := g.audioService.SynthesizeTier(sctx, poi.PlaceID, tier, text)

				mu.Lock()
				defer mu.Unlock()
				if synthErr != nil {
					out.report.Parts[tier] = "synthesis: " + synthErr.Error()
					return nil
				}
				out.paths[tier] = path
				out.report.Parts[tier] = response_models.StatusOK
				return nil
			})
		}
		_ = synth.Wait()
	}

	// Persist only what this run produced so a failed tier never blanks a
	// previously stored one.
	updates := map[string]interface{}{}
	for tier, text := range out.transcripts {
		updates[db_models.TranscriptColumn(tier)] = text
	}
	for tier, path := range out.paths {
		updates[db_models.AudioPathColumn(tier)] = path
	}
	if strings.TrimSpace(place.SourceText) != "" {
		updates["source_text"] = place.SourceText
	}
	if len(out.paths) > 0 {
		updates["audio_generated_at"] = time.Now().UTC()
	}

	if err := g.poiRepository.UpdateGuideArtifacts(ctx, poi.ID, updates); err != nil {
		g.logger.Error("persisting guide artifacts failed",
			zap.String("poi_id", poi.ID.String()),
			zap.Error(err))
		out.err = utils.ErrDatabaseError
		out.report.Parts["persist"] = err.Error()
		out.report.Status = response_models.StatusFailed
		return out
	}
	out.persisted = len(out.paths) > 0

	switch {
	case len(out.paths) == len(db_models.Tiers):
		out.report.Status = response_models.StatusOK
	case len(out.paths) > 0:
		out.report.Status = response_models.StatusPartial
	default:
		out.report.Status = response_models.StatusFailed
	}
	return out
}

func (g *GuideService) runKnowledgeTrack(ctx context.Context, poi *db_models.POI, place request_models.PlaceInput) knowledgeOutcome {
	out := knowledgeOutcome{
		report: &response_models.TrackReport{Parts: map[string]string{}},
	}

	res := g.knowledgeService.GenerateKnowledge(ctx, poi, place.SourceText, place.Sources)
	for _, part := range KnowledgeParts {
		if partErr, failed := res.Errors[part]; failed {
			out.report.Parts[part] = partErr.Error()
		} else {
			out.report.Parts[part] = response_models.StatusOK
		}
	}
	out.row = res.Knowledge

	if res.Knowledge == nil {
		out.report.Status = response_models.StatusFailed
		return out
	}

	if err := g.knowledgeRepository.Upsert(ctx, res.Knowledge); err != nil {
		g.logger.Error("persisting knowledge failed",
			zap.String("poi_id", poi.ID.String()),
			zap.Error(err))
		out.err = utils.ErrDatabaseError
		out.report.Parts["persist"] = err.Error()
		out.report.Status = response_models.StatusFailed
		return out
	}
	out.persisted = true

	if len(res.Errors) == 0 {
		out.report.Status = response_models.StatusOK
	} else {
		out.report.Status = response_models.StatusPartial
	}

	g.upsertEmbedding(ctx, poi, res.Knowledge)
	return out
}

// upsertEmbedding feeds the related-places index. Best-effort: a failure
// costs similarity hits, never the knowledge run.
func (g *GuideService) upsertEmbedding(ctx context.Context, poi *db_models.POI, row *db_models.POIKnowledge) {
	if strings.TrimSpace(row.Overview) == "" {
		return
	}

	input := row.Overview
	if len(poi.Tags) > 0 {
		input += "\nTags: " + strings.Join(poi.Tags, ", ")
	}

	vector, err := g.embeddingClient.GetEmbedding(ctx, input)
	if err != nil {
		g.logger.Warn("embedding poi overview failed",
			zap.String("poi_id", poi.ID.String()),
			zap.Error(err))
		return
	}

	err = g.embeddingRepository.Upsert(ctx, &db_models.PoiEmbedding{
		PoiID:     poi.ID.String(),
		Name:      poi.Name,
		Overview:  row.Overview,
		Tags:      poi.Tags,
		Embedding: vector,
	})
	if err != nil {
		g.logger.Warn("storing poi embedding failed",
			zap.String("poi_id", poi.ID.String()),
			zap.Error(err))
	}
}

// GenerateForTour fans out one independent pipeline per place. A fatal
// failure on one place never cancels or delays the rest.
func (g *GuideService) GenerateForTour(ctx context.Context, req request_models.GenerateTourRequest) response_models.TourGuideSummary {
	results := make([]response_models.GuideResult, len(req.Pois))

	var fan errgroup.Group
	for i, place := range req.Pois {
		i, place := i, place
		fan.Go(func() error {
			res, _ := g.GenerateGuide(ctx, request_models.GenerateGuideRequest{
				Poi:     place,
				Options: req.Options,
			})
			results[i] = res
			return nil
		})
	}
	_ = fan.Wait()

	summary := response_models.TourGuideSummary{
		Total:   len(results),
		Results: results,
	}
	for _, res := range results {
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	g.logger.Info("tour run finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary
}

func transcriptsOf(poi *db_models.POI) response_models.TierTexts {
	return response_models.TierTexts{
		Brief:    poi.TranscriptBrief,
		Detailed: poi.TranscriptDetailed,
		Complete: poi.TranscriptComplete,
	}
}

func audioPathsOf(poi *db_models.POI) response_models.TierTexts {
	return response_models.TierTexts{
		Brief:    poi.AudioPathBrief,
		Detailed: poi.AudioPathDetailed,
		Complete: poi.AudioPathComplete,
	}
}

func setTier(t *response_models.TierTexts, tier, value string) {
	switch tier {
	case db_models.TierBrief:
		t.Brief = value
	case db_models.TierDetailed:
		t.Detailed = value
	case db_models.TierComplete:
		t.Complete = value
	}
}

func appendReason(existing, add string) string {
	if existing == "" {
		return add
	}
	if add == "" {
		return existing
	}
	return existing + "; " + add
}
