package poisfx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cicerone/internal/api/controllers"
	"cicerone/internal/repositories"
	"cicerone/internal/services"
)

var Module = fx.Provide(
	providePoisRepo, provideEmbeddingRepo, providePoisService, providePoisController)

func providePoisRepo(db *gorm.DB) repositories.POIRepository {
	return repositories.NewPOIRepository(db)
}

func provideEmbeddingRepo(db *gorm.DB) repositories.PoiEmbeddingRepository {
	return repositories.NewPoiEmbeddingRepository(db)
}

func providePoisService(
	poiRepo repositories.POIRepository,
	knowledgeRepo repositories.KnowledgeRepository,
	embeddingRepo repositories.PoiEmbeddingRepository,
	audioService services.AudioServiceInterface,
	logger *zap.Logger,
) services.POIServiceInterface {
	return services.NewPOIService(poiRepo, knowledgeRepo, embeddingRepo, audioService, logger)
}

func providePoisController(poiService services.POIServiceInterface) *controllers.POIsController {
	return controllers.NewPOIsController(poiService)
}
