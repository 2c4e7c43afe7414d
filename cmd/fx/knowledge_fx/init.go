package knowledge_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cicerone/internal/repositories"
	"cicerone/internal/services"
	"cicerone/pkg/utils"
)

var Module = fx.Provide(
	provideKnowledgeRepo, provideKnowledgeService)

func provideKnowledgeRepo(db *gorm.DB) repositories.KnowledgeRepository {
	return repositories.NewKnowledgeRepository(db)
}

func provideKnowledgeService(
	completion utils.CompletionClientInterface,
	logger *zap.Logger,
) services.KnowledgeServiceInterface {
	return services.NewKnowledgeService(completion, logger)
}
