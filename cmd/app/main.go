package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"cicerone/cmd/fx/ai_fx"
	"cicerone/cmd/fx/db_fx"
	"cicerone/cmd/fx/guide_fx"
	"cicerone/cmd/fx/knowledge_fx"
	"cicerone/cmd/fx/logger_fx"
	"cicerone/cmd/fx/memcache_fx"
	poisfx "cicerone/cmd/fx/pois_fx"
	"cicerone/cmd/fx/storage_fx"
	"cicerone/internal/api/controllers"
	"cicerone/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on process environment")
	}

	app := fx.New(
		logger_fx.Module,
		db_fx.Module,
		storage_fx.Module,
		ai_fx.Module,
		memcache_fx.Module,
		poisfx.Module,
		knowledge_fx.Module,
		guide_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),

		fx.WithLogger(func(lg *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: lg}
		}),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine, lg *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			go func() {
				lg.Info("starting http server", zap.String("port", port))
				if err := engine.Run(":" + port); err != nil {
					lg.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			lg.Info("stopping http server")
			return nil
		},
	})
}

func ProvideRouter(
	guideController *controllers.GuideController,
	poisController *controllers.POIsController) *gin.Engine {

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.TraceIDMiddleware())

	RegisterRoutes(r, guideController, poisController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	guideController *controllers.GuideController,
	poisController *controllers.POIsController) {

	guidesGroup := r.Group("/guides")
	guidesGroup.Use(middleware.JWTAuthMiddleware())
	guidesGroup.POST("/poi", guideController.GeneratePoiGuide)
	guidesGroup.POST("/tour", guideController.GenerateTourGuides)

	poisGroup := r.Group("/pois")
	poisGroup.GET("/:id", poisController.GetPoiById)
	poisGroup.GET("/:id/knowledge", poisController.GetPoiKnowledge)
	poisGroup.GET("/:id/related", poisController.GetRelatedPois)
}
