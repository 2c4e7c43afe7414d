package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cicerone/internal/models/request_models"
	"cicerone/internal/services"
	"cicerone/pkg/utils"
)

type GuideController struct {
	guideService services.GuideServiceInterface
}

func NewGuideController(guideService services.GuideServiceInterface) *GuideController {
	return &GuideController{
		guideService: guideService,
	}
}

// GeneratePoiGuide runs the pipeline for one place. Partial failures still
// answer 200 with per-track detail in the body; only an unresolvable place
// maps to an error status.
func (g *GuideController) GeneratePoiGuide(c *gin.Context) {
	var req request_models.GenerateGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := g.guideService.GenerateGuide(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Guide generation finished")
}

// GenerateTourGuides runs one pipeline per place concurrently and always
// answers 200; per-place outcomes live in the summary.
func (g *GuideController) GenerateTourGuides(c *gin.Context) {
	var req request_models.GenerateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	summary := g.guideService.GenerateForTour(c.Request.Context(), req)
	utils.RespondSuccess(c, summary, "Tour generation finished")
}
