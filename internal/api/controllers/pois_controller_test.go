package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cicerone/internal/models/db_models"
	"cicerone/internal/models/request_models"
	"cicerone/internal/models/response_models"
	"cicerone/internal/services"
	"cicerone/pkg/middleware"
	"cicerone/pkg/utils"
)

type fakePOIReadService struct {
	poi     *response_models.POI
	sheet   *response_models.KnowledgeSheet
	related []response_models.RelatedPOI
	err     error
}

func (f *fakePOIReadService) ResolvePOI(ctx context.Context, place request_models.PlaceInput) (*db_models.POI, error) {
	return nil, utils.ErrInvalidInput
}

func (f *fakePOIReadService) InspectFreshness(ctx context.Context, poi *db_models.POI, opts services.GenerationOptions) services.FreshnessReport {
	return services.FreshnessReport{}
}

func (f *fakePOIReadService) GetPOI(ctx context.Context, id string) (*response_models.POI, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.poi, nil
}

func (f *fakePOIReadService) GetKnowledge(ctx context.Context, id string) (*response_models.KnowledgeSheet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sheet, nil
}

func (f *fakePOIReadService) GetRelated(ctx context.Context, id string, limit int) ([]response_models.RelatedPOI, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.related, nil
}

type fakeGuideRunner struct {
	result  response_models.GuideResult
	err     error
	summary response_models.TourGuideSummary
}

func (f *fakeGuideRunner) GenerateGuide(ctx context.Context, req request_models.GenerateGuideRequest) (response_models.GuideResult, error) {
	return f.result, f.err
}

func (f *fakeGuideRunner) GenerateForTour(ctx context.Context, req request_models.GenerateTourRequest) response_models.TourGuideSummary {
	return f.summary
}

type envelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	TraceID string          `json:"trace_id"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(poiService services.POIServiceInterface, guideService services.GuideServiceInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.TraceIDMiddleware())

	pois := NewPOIsController(poiService)
	guide := NewGuideController(guideService)
	r.GET("/pois/:id", pois.GetPoiById)
	r.GET("/pois/:id/knowledge", pois.GetPoiKnowledge)
	r.GET("/pois/:id/related", pois.GetRelatedPois)
	r.POST("/guides/poi", guide.GeneratePoiGuide)
	r.POST("/guides/tour", guide.GenerateTourGuides)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace-ID", "trace-123")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestGetPoiById(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &fakePOIReadService{poi: &response_models.POI{ID: "abc", Name: "Iron Tower"}}
		r := newTestRouter(svc, &fakeGuideRunner{})

		w, env := doJSON(t, r, http.MethodGet, "/pois/abc", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, "trace-123", env.TraceID)
		assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))

		var poi response_models.POI
		require.NoError(t, json.Unmarshal(env.Data, &poi))
		assert.Equal(t, "Iron Tower", poi.Name)
	})

	t.Run("not found", func(t *testing.T) {
		svc := &fakePOIReadService{err: utils.ErrPOINotFound}
		r := newTestRouter(svc, &fakeGuideRunner{})

		w, env := doJSON(t, r, http.MethodGet, "/pois/missing", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "error", env.Status)
		assert.Equal(t, "POI not found", env.Message)
	})
}

func TestGetPoiKnowledge_NotFound(t *testing.T) {
	svc := &fakePOIReadService{err: utils.ErrKnowledgeNotFound}
	r := newTestRouter(svc, &fakeGuideRunner{})

	w, env := doJSON(t, r, http.MethodGet, "/pois/abc/knowledge", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No knowledge stored for this POI", env.Message)
}

func TestGetRelatedPois(t *testing.T) {
	t.Run("default limit", func(t *testing.T) {
		svc := &fakePOIReadService{related: []response_models.RelatedPOI{{PoiID: "other", Similarity: 0.8}}}
		r := newTestRouter(svc, &fakeGuideRunner{})

		w, env := doJSON(t, r, http.MethodGet, "/pois/abc/related", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var related []response_models.RelatedPOI
		require.NoError(t, json.Unmarshal(env.Data, &related))
		require.Len(t, related, 1)
		assert.Equal(t, "other", related[0].PoiID)
	})

	t.Run("limit out of range", func(t *testing.T) {
		r := newTestRouter(&fakePOIReadService{}, &fakeGuideRunner{})

		w, env := doJSON(t, r, http.MethodGet, "/pois/abc/related?limit=500", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid limit (must be 1-100)", env.Message)
	})

	t.Run("limit not a number", func(t *testing.T) {
		r := newTestRouter(&fakePOIReadService{}, &fakeGuideRunner{})

		w, _ := doJSON(t, r, http.MethodGet, "/pois/abc/related?limit=many", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGeneratePoiGuide(t *testing.T) {
	t.Run("renders the pipeline result", func(t *testing.T) {
		guide := &fakeGuideRunner{result: response_models.GuideResult{Success: true, PoiID: "p-1", AudioGenerated: true}}
		r := newTestRouter(&fakePOIReadService{}, guide)

		w, env := doJSON(t, r, http.MethodPost, "/guides/poi",
			`{"poi": {"place_id": "p-1", "name": "Iron Tower"}}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Guide generation finished", env.Message)

		var result response_models.GuideResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.True(t, result.Success)
		assert.Equal(t, "p-1", result.PoiID)
	})

	t.Run("missing required fields", func(t *testing.T) {
		r := newTestRouter(&fakePOIReadService{}, &fakeGuideRunner{})

		w, env := doJSON(t, r, http.MethodPost, "/guides/poi", `{"poi": {"place_id": "p-1"}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", env.Message)
	})

	t.Run("resolution failure maps through the sentinel", func(t *testing.T) {
		guide := &fakeGuideRunner{err: utils.ErrDatabaseError}
		r := newTestRouter(&fakePOIReadService{}, guide)

		w, _ := doJSON(t, r, http.MethodPost, "/guides/poi",
			`{"poi": {"place_id": "p-1", "name": "Iron Tower"}}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGenerateTourGuides(t *testing.T) {
	t.Run("summary is always 200", func(t *testing.T) {
		guide := &fakeGuideRunner{summary: response_models.TourGuideSummary{Total: 2, Succeeded: 1, Failed: 1}}
		r := newTestRouter(&fakePOIReadService{}, guide)

		w, env := doJSON(t, r, http.MethodPost, "/guides/tour",
			`{"pois": [{"place_id": "p-1", "name": "A"}, {"place_id": "p-2", "name": "B"}]}`)

		assert.Equal(t, http.StatusOK, w.Code)

		var summary response_models.TourGuideSummary
		require.NoError(t, json.Unmarshal(env.Data, &summary))
		assert.Equal(t, 2, summary.Total)
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("empty tour is rejected", func(t *testing.T) {
		r := newTestRouter(&fakePOIReadService{}, &fakeGuideRunner{})

		w, _ := doJSON(t, r, http.MethodPost, "/guides/tour", `{"pois": []}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
