package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcabrera/citewatch/internal/config"
	"github.com/rcabrera/citewatch/internal/enrich"
	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/middleware"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/query"
	"github.com/rcabrera/citewatch/internal/services"
	"github.com/rcabrera/citewatch/internal/store"
	"github.com/rcabrera/citewatch/internal/temporal"
)

func testEngine() config.EngineConfig {
	return config.EngineConfig{
		UTCOffsetHours:       8,
		ComplianceWindowDays: 7,
		RepeatMinViolations:  3,
		MaxFetch:             5000,
	}
}

// newViolationRouter wires a router over an in-memory store.
func newViolationRouter(t *testing.T) (*gin.Engine, *store.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemStore()
	log := logger.New("test")
	tz := temporal.New(temporal.DefaultOffsetHours)
	joiner := enrich.NewJoiner(mem.Users(), log)
	svc := services.NewViolationService(mem.Violations(), query.NewFilter(tz, log), joiner, tz, testEngine(), log)

	handler := NewViolationHandler(svc)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	v1 := router.Group("/api/v1")
	{
		violations := v1.Group("/violations")
		{
			violations.POST("", handler.Create)
			violations.GET("", handler.List)
			violations.GET("/:id", handler.Get)
			violations.PATCH("/:id/status", handler.UpdateStatus)
			violations.DELETE("/:id", handler.Delete)
		}
	}

	return router, mem
}

func postViolation(t *testing.T, router *gin.Engine, body map[string]interface{}) models.EnrichedViolation {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/violations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, "create failed: %s", w.Body.String())

	var created models.EnrichedViolation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created
}

func TestCreateViolation(t *testing.T) {
	router, mem := newViolationRouter(t)

	enforcer := mem.SeedUser(models.User{
		FullName: "Officer Reyes", BadgeNumber: "B-104",
		Role: models.RoleEnforcer, IsActive: true,
	})

	created := postViolation(t, router, map[string]interface{}{
		"enforcerId": enforcer.ID,
		"name":       "Juan Dela Cruz",
		"plate":      "ABC-1234",
		"type":       "illegal parking",
		"fineAmount": 500,
		"capturedAt": "1-15-2025 14.30.00",
	})

	assert.NotEmpty(t, created.ID)
	assert.Contains(t, created.ViolationNumber, "VIO-20250115-")
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, "Officer Reyes", created.EnforcerName)
}

func TestCreateViolation_ValidationError(t *testing.T) {
	router, _ := newViolationRouter(t)

	// Missing required name and type.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/violations",
		bytes.NewReader([]byte(`{"fineAmount": 500}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "VALIDATION_ERROR", response["error"]["code"])
}

func TestGetViolation(t *testing.T) {
	router, _ := newViolationRouter(t)

	created := postViolation(t, router, map[string]interface{}{
		"name": "Juan Dela Cruz", "type": "speeding", "fineAmount": 100,
	})

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/violations/"+created.ID, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var got models.EnrichedViolation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, models.UnknownActor, got.EnforcerName, "no enforcer reference yields the placeholder")
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/violations/00000000-0000-0000-0000-000000000000", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListViolations(t *testing.T) {
	router, _ := newViolationRouter(t)

	for i := 1; i <= 5; i++ {
		postViolation(t, router, map[string]interface{}{
			"name":       fmt.Sprintf("Violator %d", i),
			"type":       "speeding",
			"fineAmount": i * 100,
			"capturedAt": "3-1-2025 09.00.00",
		})
	}

	t.Run("paged", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/violations?pageSize=2&page=2&sortBy=fineAmount&sortDir=asc", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var page services.ViolationPage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 5, page.TotalRecords)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 2, page.CurrentPage)
		require.Len(t, page.Items, 2)
		assert.Equal(t, 300.0, page.Items[0].FineAmount)
		assert.Equal(t, 400.0, page.Items[1].FineAmount)
	})

	t.Run("invalid sort key", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/violations?sortBy=bogus", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid date", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/violations?dateFrom=15-01-2025", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("date range", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/violations?dateFrom=2025-03-01&dateTo=2025-03-01", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var page services.ViolationPage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 5, page.TotalRecords, "all records fall on the captured day")
	})
}

func TestUpdateViolationStatus(t *testing.T) {
	router, _ := newViolationRouter(t)

	created := postViolation(t, router, map[string]interface{}{
		"name": "Juan Dela Cruz", "type": "speeding", "fineAmount": 100,
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/violations/"+created.ID+"/status",
			bytes.NewReader([]byte(`{"status":"refunded"}`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("paid", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/violations/"+created.ID+"/status",
			bytes.NewReader([]byte(`{"status":"paid"}`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var updated models.Violation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, models.StatusPaid, updated.Status)
		assert.NotNil(t, updated.PaidAt)
	})

	t.Run("missing id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/violations/00000000-0000-0000-0000-000000000000/status",
			bytes.NewReader([]byte(`{"status":"paid"}`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteViolation(t *testing.T) {
	router, _ := newViolationRouter(t)

	created := postViolation(t, router, map[string]interface{}{
		"name": "Juan Dela Cruz", "type": "speeding", "fineAmount": 100,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/violations/"+created.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/violations/"+created.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
