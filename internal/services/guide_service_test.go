package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cicerone/internal/models/db_models"
	"cicerone/internal/models/request_models"
	"cicerone/internal/models/response_models"
	mem "cicerone/pkg/memcache"
)

type fakeEmbeddingClient struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeEmbeddingClient) GetEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return pgvector.Vector{}, f.err
	}
	return pgvector.NewVector([]float32{0.1, 0.2, 0.3}), nil
}

// guideCompletionFake answers both the narration and the fact-sheet prompts.
func guideCompletionFake() *fakeCompletionClient {
	return &fakeCompletionClient{
		textFunc: func(system, prompt string, maxTokens int) (string, error) {
			if reply, ok := tierReply(prompt); ok {
				return reply, nil
			}
			if reply, ok := sectionReply(prompt); ok {
				return reply, nil
			}
			return "", errors.New("unexpected prompt")
		},
		jsonFunc: func(system, prompt string, maxTokens int) (string, error) {
			switch {
			case strings.Contains(prompt, "Collect the hard facts"):
				return `{"built": 1889}`, nil
			case strings.Contains(prompt, "surprising, specific trivia"):
				return `["Fact one.", "Fact two."]`, nil
			}
			return "", errors.New("unexpected json prompt")
		},
	}
}

type guideFixture struct {
	completion    *fakeCompletionClient
	speech        *fakeSpeechClient
	storage       *fakeObjectStorage
	poiRepo       *fakePOIRepo
	knowledgeRepo *fakeKnowledgeRepo
	embeddingRepo *fakeEmbeddingRepo
	embedding     *fakeEmbeddingClient
	service       GuideServiceInterface
}

// newGuideFixture wires the real services over in-memory fakes so a guide
// run exercises the whole pipeline.
func newGuideFixture() *guideFixture {
	fix := &guideFixture{
		completion:    guideCompletionFake(),
		speech:        &fakeSpeechClient{},
		storage:       newFakeStorage(),
		poiRepo:       newFakePOIRepo(),
		knowledgeRepo: newFakeKnowledgeRepo(),
		embeddingRepo: newFakeEmbeddingRepo(),
		embedding:     &fakeEmbeddingClient{},
	}

	logger := zap.NewNop()
	audio := NewAudioService(fix.speech, fix.storage, mem.NewSignedURLs(), "alloy", "en", time.Hour, logger)
	poiService := NewPOIService(fix.poiRepo, fix.knowledgeRepo, fix.embeddingRepo, audio, logger)
	content := NewContentService(fix.completion, logger)
	knowledge := NewKnowledgeService(fix.completion, logger)

	fix.service = NewGuideService(
		poiService, content, knowledge, audio,
		fix.poiRepo, fix.knowledgeRepo, fix.embedding, fix.embeddingRepo,
		logger,
	)
	return fix
}

func guideRequest() request_models.GenerateGuideRequest {
	return request_models.GenerateGuideRequest{
		Poi: request_models.PlaceInput{
			PlaceID:    "place-123",
			Name:       "Iron Tower",
			Address:    "1 Champ de Mars",
			Tags:       []string{"landmark"},
			SourceText: "Some source material.",
		},
	}
}

// seedFreshPOI stores a place with complete artifacts and a knowledge row.
func (fix *guideFixture) seedFreshPOI() *db_models.POI {
	now := time.Now()
	poi := testPOI()
	poi.TranscriptBrief = "stored brief"
	poi.TranscriptDetailed = "stored detailed"
	poi.TranscriptComplete = "stored complete"
	poi.AudioPathBrief = "guides/place-123/en/brief_1.mp3"
	poi.AudioPathDetailed = "guides/place-123/en/detailed_1.mp3"
	poi.AudioPathComplete = "guides/place-123/en/complete_1.mp3"
	poi.AudioGeneratedAt = &now
	fix.poiRepo.seed(poi)
	fix.knowledgeRepo.rows[poi.ID] = &db_models.POIKnowledge{PoiID: poi.ID, Overview: "stored overview"}
	return poi
}

func TestGenerateGuide_FullRun(t *testing.T) {
	fix := newGuideFixture()

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "place-123", result.PoiID)
	assert.True(t, result.AudioGenerated)
	assert.True(t, result.KnowledgeGenerated)
	assert.False(t, result.Skipped)

	assert.Equal(t, "Brief hook about the iron tower.", result.Transcripts.Brief)
	assert.Equal(t, "Detailed walking tour of the iron tower.", result.Transcripts.Detailed)
	assert.Contains(t, result.Transcripts.Complete, "Complete in-depth story of the iron tower.")

	assert.Contains(t, result.AudioPaths.Brief, "guides/place-123/en/brief_")
	assert.Contains(t, result.AudioPaths.Detailed, "guides/place-123/en/detailed_")
	assert.Contains(t, result.AudioPaths.Complete, "guides/place-123/en/complete_")

	require.NotNil(t, result.Knowledge)
	assert.Equal(t, "Overview of the iron tower.", result.Knowledge.Overview)
	assert.Equal(t, []string{"Fact one.", "Fact two."}, result.Knowledge.Trivia)

	require.NotNil(t, result.AudioTrack)
	assert.Equal(t, response_models.StatusOK, result.AudioTrack.Status)
	require.NotNil(t, result.KnowledgeTrack)
	assert.Equal(t, response_models.StatusOK, result.KnowledgeTrack.Status)

	// Everything was persisted: transcripts, paths, source text, the
	// freshness stamp, the knowledge row and the similarity embedding.
	updates := fix.poiRepo.lastUpdate()
	require.NotNil(t, updates)
	assert.Contains(t, updates, "transcript_brief")
	assert.Contains(t, updates, "audio_path_complete")
	assert.Contains(t, updates, "source_text")
	assert.Contains(t, updates, "audio_generated_at")
	assert.Equal(t, 1, fix.knowledgeRepo.upserts)
	assert.Equal(t, 1, fix.embeddingRepo.upserts)
	assert.Len(t, fix.storage.uploads, 3)
}

func TestGenerateGuide_SkipsFreshPOI(t *testing.T) {
	fix := newGuideFixture()
	fix.seedFreshPOI()

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Skipped)
	assert.False(t, result.AudioGenerated)
	assert.False(t, result.KnowledgeGenerated)

	// Nothing was generated, stored values are echoed back.
	assert.Equal(t, 0, fix.completion.callCount())
	assert.Equal(t, 0, fix.speech.callCount())
	assert.Equal(t, "stored brief", result.Transcripts.Brief)
	assert.Equal(t, "guides/place-123/en/complete_1.mp3", result.AudioPaths.Complete)
	require.NotNil(t, result.Knowledge)
	assert.Equal(t, "stored overview", result.Knowledge.Overview)

	require.NotNil(t, result.AudioTrack)
	assert.Equal(t, response_models.StatusSkipped, result.AudioTrack.Status)
}

func TestGenerateGuide_ForceRegenerates(t *testing.T) {
	fix := newGuideFixture()
	fix.seedFreshPOI()

	req := guideRequest()
	req.Options = request_models.GenerateOptions{Force: true}
	result, err := fix.service.GenerateGuide(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.True(t, result.AudioGenerated)
	assert.True(t, result.KnowledgeGenerated)
	assert.Greater(t, fix.completion.callCount(), 0)
	assert.Equal(t, "Brief hook about the iron tower.", result.Transcripts.Brief)
}

func TestGenerateGuide_RouteMarkerShortCircuits(t *testing.T) {
	fix := newGuideFixture()

	req := guideRequest()
	req.Poi.PlaceID = "marker-1"
	req.Poi.Name = "Starting Point of the Old Town Walk"
	result, err := fix.service.GenerateGuide(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.SkippedMarker)
	assert.Equal(t, 0, fix.completion.callCount())
	assert.Equal(t, 0, fix.speech.callCount())
	assert.Nil(t, result.AudioTrack)
	assert.Nil(t, result.Knowledge)
}

func TestIsRouteMarker(t *testing.T) {
	assert.True(t, IsRouteMarker("Starting Point", nil))
	assert.True(t, IsRouteMarker("the END POINT of the walk", nil))
	assert.True(t, IsRouteMarker("Harbor Route Marker 4", nil))
	assert.True(t, IsRouteMarker("Harbor Plaza", []string{"route-marker"}))
	assert.True(t, IsRouteMarker("Harbor Plaza", []string{" Route_Marker "}))
	assert.False(t, IsRouteMarker("Pointe du Raz", []string{"landmark"}))
	assert.False(t, IsRouteMarker("Harbor Plaza", []string{"viewpoint"}))
}

func TestGenerateGuide_ResolutionFailureIsFatal(t *testing.T) {
	fix := newGuideFixture()
	fix.poiRepo.insertErr = errors.New("connection refused")

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "place-123", result.PoiID)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 0, fix.completion.callCount())
}

func TestGenerateGuide_PartialContentFailure(t *testing.T) {
	fix := newGuideFixture()
	base := fix.completion.textFunc
	fix.completion.textFunc = func(system, prompt string, maxTokens int) (string, error) {
		if strings.Contains(prompt, "Write the detailed narration") {
			return "", errors.New("model unavailable")
		}
		return base(system, prompt, maxTokens)
	}

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.AudioGenerated)

	require.NotNil(t, result.AudioTrack)
	assert.Equal(t, response_models.StatusPartial, result.AudioTrack.Status)
	assert.Contains(t, result.AudioTrack.Parts[db_models.TierDetailed], "content:")
	assert.Equal(t, response_models.StatusOK, result.AudioTrack.Parts[db_models.TierBrief])

	assert.Empty(t, result.Transcripts.Detailed)
	assert.NotEmpty(t, result.AudioPaths.Brief)
	assert.Empty(t, result.AudioPaths.Detailed)

	// The failed tier must not blank a stored value.
	updates := fix.poiRepo.lastUpdate()
	require.NotNil(t, updates)
	assert.NotContains(t, updates, "transcript_detailed")
	assert.Contains(t, updates, "transcript_brief")
}

func TestGenerateGuide_PartialSynthesisFailure(t *testing.T) {
	fix := newGuideFixture()
	fix.speech.synthesizeFunc = func(text, voice string) ([]byte, error) {
		if strings.Contains(text, "Complete in-depth story") {
			return nil, errors.New("tts rejected")
		}
		return []byte("mp3"), nil
	}

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.NoError(t, err)
	assert.True(t, result.AudioGenerated)

	require.NotNil(t, result.AudioTrack)
	assert.Equal(t, response_models.StatusPartial, result.AudioTrack.Status)
	assert.Contains(t, result.AudioTrack.Parts[db_models.TierComplete], "synthesis:")

	// The transcript still made it, only the audio is missing.
	assert.NotEmpty(t, result.Transcripts.Complete)
	assert.Empty(t, result.AudioPaths.Complete)
	updates := fix.poiRepo.lastUpdate()
	assert.Contains(t, updates, "transcript_complete")
	assert.NotContains(t, updates, "audio_path_complete")
}

func TestGenerateGuide_KnowledgeTotalFailure(t *testing.T) {
	fix := newGuideFixture()
	base := fix.completion.textFunc
	fix.completion.textFunc = func(system, prompt string, maxTokens int) (string, error) {
		if _, ok := sectionReply(prompt); ok {
			return "", errors.New("model down")
		}
		return base(system, prompt, maxTokens)
	}
	fix.completion.jsonFunc = func(system, prompt string, maxTokens int) (string, error) {
		return "", errors.New("model down")
	}

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.AudioGenerated)
	assert.False(t, result.KnowledgeGenerated)
	assert.Nil(t, result.Knowledge)

	require.NotNil(t, result.KnowledgeTrack)
	assert.Equal(t, response_models.StatusFailed, result.KnowledgeTrack.Status)
	assert.Equal(t, 0, fix.knowledgeRepo.upserts)
	assert.Equal(t, 0, fix.embeddingRepo.upserts)
}

func TestGenerateGuide_AudioPersistFailure(t *testing.T) {
	fix := newGuideFixture()
	fix.poiRepo.updateErr = errors.New("disk full")

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AudioGenerated)
	assert.Contains(t, result.Error, "audio")

	require.NotNil(t, result.AudioTrack)
	assert.Equal(t, response_models.StatusFailed, result.AudioTrack.Status)

	// The knowledge track settles on its own.
	assert.True(t, result.KnowledgeGenerated)
	assert.Equal(t, 1, fix.knowledgeRepo.upserts)
}

func TestGenerateGuide_OptionsGating(t *testing.T) {
	disabled := false

	t.Run("knowledge only", func(t *testing.T) {
		fix := newGuideFixture()

		req := guideRequest()
		req.Options = request_models.GenerateOptions{Audio: &disabled}
		result, err := fix.service.GenerateGuide(context.Background(), req)

		require.NoError(t, err)
		assert.False(t, result.AudioGenerated)
		assert.True(t, result.KnowledgeGenerated)
		assert.Equal(t, 0, fix.speech.callCount())
		assert.Nil(t, result.AudioTrack)
		assert.True(t, result.Transcripts.IsEmpty())

		_, sawTierPrompt := fix.completion.textPromptContaining("narration for this point of interest")
		assert.False(t, sawTierPrompt)
	})

	t.Run("audio only", func(t *testing.T) {
		fix := newGuideFixture()

		req := guideRequest()
		req.Options = request_models.GenerateOptions{Knowledge: &disabled}
		result, err := fix.service.GenerateGuide(context.Background(), req)

		require.NoError(t, err)
		assert.True(t, result.AudioGenerated)
		assert.False(t, result.KnowledgeGenerated)
		assert.Nil(t, result.Knowledge)
		assert.Nil(t, result.KnowledgeTrack)
		assert.Equal(t, 0, fix.knowledgeRepo.upserts)
	})
}

func TestGenerateGuide_EmbeddingFailureIsTolerated(t *testing.T) {
	fix := newGuideFixture()
	fix.embedding.err = errors.New("embedding quota exhausted")

	result, err := fix.service.GenerateGuide(context.Background(), guideRequest())

	require.NoError(t, err)
	assert.True(t, result.KnowledgeGenerated)
	assert.Equal(t, 0, fix.embeddingRepo.upserts)
}

func TestGenerateForTour(t *testing.T) {
	fix := newGuideFixture()

	req := request_models.GenerateTourRequest{
		Pois: []request_models.PlaceInput{
			{PlaceID: "p-1", Name: "Iron Tower", SourceText: "src"},
			{PlaceID: "p-2", Name: ""},
			{PlaceID: "p-3", Name: "Old Cathedral"},
		},
	}
	summary := fix.service.GenerateForTour(context.Background(), req)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 3)

	// Results keep input order and one bad place never sinks its neighbors.
	assert.Equal(t, "p-1", summary.Results[0].PoiID)
	assert.True(t, summary.Results[0].Success)
	assert.Equal(t, "p-2", summary.Results[1].PoiID)
	assert.False(t, summary.Results[1].Success)
	assert.NotEmpty(t, summary.Results[1].Error)
	assert.Equal(t, "p-3", summary.Results[2].PoiID)
	assert.True(t, summary.Results[2].Success)
	assert.True(t, summary.Results[2].AudioGenerated)
}

func TestGenerateForTour_MarkersInTour(t *testing.T) {
	fix := newGuideFixture()

	req := request_models.GenerateTourRequest{
		Pois: []request_models.PlaceInput{
			{PlaceID: "m-1", Name: "Starting Point"},
			{PlaceID: "p-1", Name: "Iron Tower"},
			{PlaceID: "m-2", Name: "Ending Point", Tags: []string{"route_marker"}},
		},
	}
	summary := fix.service.GenerateForTour(context.Background(), req)

	assert.Equal(t, 3, summary.Succeeded)
	assert.True(t, summary.Results[0].SkippedMarker)
	assert.False(t, summary.Results[1].SkippedMarker)
	assert.True(t, summary.Results[2].SkippedMarker)
}
