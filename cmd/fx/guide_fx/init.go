package guide_fx

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"cicerone/internal/api/controllers"
	"cicerone/internal/infra"
	"cicerone/internal/repositories"
	"cicerone/internal/services"
	mem "cicerone/pkg/memcache"
	"cicerone/pkg/utils"
)

var Module = fx.Provide(
	provideContentService,
	provideAudioService,
	provideGuideService,
	provideGuideController)

func provideContentService(
	completion utils.CompletionClientInterface,
	logger *zap.Logger,
) services.ContentServiceInterface {
	return services.NewContentService(completion, logger)
}

func provideAudioService(
	speech utils.SpeechClientInterface,
	storage infra.ObjectStorage,
	cache mem.SignedURLStore,
	logger *zap.Logger,
) services.AudioServiceInterface {
	voice := getEnvWithDefault("TTS_VOICE", "alloy")
	language := getEnvWithDefault("GUIDE_LANGUAGE", "en")

	signTTL := time.Hour
	if raw := os.Getenv("SIGNED_URL_TTL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			signTTL = time.Duration(secs) * time.Second
		}
	}

	return services.NewAudioService(speech, storage, cache, voice, language, signTTL, logger)
}

func provideGuideService(
	poiService services.POIServiceInterface,
	contentService services.ContentServiceInterface,
	knowledgeService services.KnowledgeServiceInterface,
	audioService services.AudioServiceInterface,
	poiRepo repositories.POIRepository,
	knowledgeRepo repositories.KnowledgeRepository,
	embeddingClient utils.EmbeddingClientInterface,
	embeddingRepo repositories.PoiEmbeddingRepository,
	logger *zap.Logger,
) services.GuideServiceInterface {
	return services.NewGuideService(
		poiService,
		contentService,
		knowledgeService,
		audioService,
		poiRepo,
		knowledgeRepo,
		embeddingClient,
		embeddingRepo,
		logger,
	)
}

func provideGuideController(guideService services.GuideServiceInterface) *controllers.GuideController {
	return controllers.NewGuideController(guideService)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
