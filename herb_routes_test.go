package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/herbenzoayurvedic-eng/herbs/config"
	"github.com/herbenzoayurvedic-eng/herbs/models"
	"github.com/herbenzoayurvedic-eng/herbs/services"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *services.HerbService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Herb{}))

	svc := services.NewHerbService(db, zap.NewNop())
	normalizer := services.NewLegacyNormalizer(zap.NewNop())

	router := gin.New()
	setupHerbRoutes(router, svc, normalizer, nil, cfg, zap.NewNop())
	return router, svc
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func validPayload() map[string]any {
	return map[string]any{
		"name":                        "Ashwagandha",
		"commonNames":                 []string{"Indian Ginseng"},
		"scientificName":              "Withania somnifera",
		"introduction":                "An evergreen shrub.",
		"backgroundAndTraditionalUse": "Ayurvedic rasayana.",
		"activeConstituents":          "Withanolides.",
		"mechanismOfAction":           "HPA axis modulation.",
		"healthBenefits": []map[string]string{
			{"benefitName": "Stress reduction", "evidenceSummary": "RCTs.", "evidenceRating": "Strong"},
		},
		"safetyAndSideEffects":           "Well tolerated.",
		"toxicity":                       "Low.",
		"warningsAndContraindications":   "Avoid during pregnancy.",
		"drugInteractions":               "Sedatives.",
		"recommendedDosage":              "300-600 mg daily.",
		"references":                     "Chandrasekhar et al. 2012.",
		"activePharmaceuticalIngredient": map[string]string{"name": "Withanolide A"},
	}
}

func TestCreateAndFetchEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &config.Config{})

	w := doJSON(router, http.MethodPost, "/api/herbs", validPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := parseEnvelope(t, w)
	assert.True(t, env.Success)

	var created models.Herb
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotZero(t, created.ID)
	assert.Equal(t, "ashwagandha", created.Slug)

	// per ID
	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/herbs/%d", created.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env = parseEnvelope(t, w)
	assert.True(t, env.Success)

	var fetched models.Herb
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, "Ashwagandha", fetched.Name)
	assert.Equal(t, "Low.", fetched.Toxicity)

	// per Slug
	w = doJSON(router, http.MethodGet, "/api/herbs/slug/ashwagandha", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestListEndpointCardShape(t *testing.T) {
	router, _ := newTestRouter(t, &config.Config{})
	w := doJSON(router, http.MethodPost, "/api/herbs", validPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/herbs", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := parseEnvelope(t, w)
	require.True(t, env.Success)

	var cards []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "Ashwagandha", cards[0]["name"])
	assert.Equal(t, "ashwagandha", cards[0]["slug"])
	assert.NotContains(t, cards[0], "toxicity")
	assert.NotContains(t, cards[0], "drugInteractions")
	assert.NotContains(t, cards[0], "healthBenefits")
}

func TestCreateMissingFieldsResponse(t *testing.T) {
	router, _ := newTestRouter(t, &config.Config{})

	payload := validPayload()
	delete(payload, "toxicity")
	delete(payload, "references")

	w := doJSON(router, http.MethodPost, "/api/herbs", payload, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "missing required fields: toxicity, references", env.Message)
}

func TestCreateDuplicateNameResponse(t *testing.T) {
	router, _ := newTestRouter(t, &config.Config{})

	w := doJSON(router, http.MethodPost, "/api/herbs", validPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/herbs", validPayload(), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "A herb with this name already exists", env.Message)
}

func TestGetByIDErrorStatuses(t *testing.T) {
	router, _ := newTestRouter(t, &config.Config{})

	// syntaktisch gültige, aber unbekannte ID
	w := doJSON(router, http.MethodGet, "/api/herbs/4711", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := parseEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Herb not found", env.Message)

	// strukturell ungültige ID
	w = doJSON(router, http.MethodGet, "/api/herbs/not-a-number", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env = parseEnvelope(t, w)
	assert.Equal(t, "Invalid herb ID", env.Message)
}

func TestUpdateEndpointWhitelist(t *testing.T) {
	router, _ := newTestRouter(t, &config.Config{})

	w := doJSON(router, http.MethodPost, "/api/herbs", validPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Herb
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &created))

	w = doJSON(router, http.MethodPut, fmt.Sprintf("/api/herbs/%d", created.ID), map[string]any{
		"introduction": "Updated intro.",
		"id":           1234,
		"createdAt":    "1999-01-01T00:00:00Z",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Herb
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Updated intro.", updated.Introduction)
}

func TestDeleteEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &config.Config{})

	w := doJSON(router, http.MethodPost, "/api/herbs", validPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Herb
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &created))

	w = doJSON(router, http.MethodDelete, fmt.Sprintf("/api/herbs/%d", created.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := parseEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Herb deleted successfully", env.Message)

	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/herbs/%d", created.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportEndpoint(t *testing.T) {
	router, svc := newTestRouter(t, &config.Config{})

	docs := []map[string]any{
		{
			"Herb_Name":                      "Holy Basil",
			"Common_Names":                   []string{"Tulsi"},
			"Scientific_Name":                "Ocimum tenuiflorum",
			"Introduction":                   "Aromatic perennial.",
			"Background_and_Traditional_Use": "Ayurveda.",
			"Active_Constituents":            "Eugenol.",
			"Mechanism_of_Action":            "Adaptogenic.",
			"Health_Benefits": []map[string]string{
				{"Benefit_Name": "Immunity", "Evidence_Summary": "Trials.", "Evidence_Rating": "Moderate"},
			},
			"Safety_and_Side_Effects":          "Well tolerated.",
			"Toxicity":                         "Low.",
			"Warnings_and_Contraindications":   "None.",
			"Drug_Interactions":                "None.",
			"Recommended_Dosage":               "300 mg.",
			"Seasonal_usage":                   "Winter.",
			"References":                       "Cohen 2014.",
			"Active_Pharmaceutical_Ingredient": map[string]string{"Name": "Eugenol"},
			"Image-url":                        "https://img.example/tulsi.jpg",
		},
	}

	w := doJSON(router, http.MethodPost, "/api/herbs/import", docs, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var stats services.ImportStats
	require.NoError(t, json.Unmarshal(parseEnvelope(t, w).Data, &stats))
	assert.Equal(t, 1, stats.Created)

	got, err := svc.GetBySlug(context.Background(), "holy-basil")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/tulsi.jpg", got.ImageURL)
}

func TestAPIKeyGuardsMutatingRoutes(t *testing.T) {
	cfg := &config.Config{APISecretKey: "s3cret"}
	router, _ := newTestRouter(t, cfg)

	// Schreiben ohne Key wird abgelehnt
	w := doJSON(router, http.MethodPost, "/api/herbs", validPayload(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Lesen bleibt öffentlich
	w = doJSON(router, http.MethodGet, "/api/herbs", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Mit Key geht es durch
	w = doJSON(router, http.MethodPost, "/api/herbs", validPayload(), map[string]string{"X-API-KEY": "s3cret"})
	assert.Equal(t, http.StatusCreated, w.Code)
}
