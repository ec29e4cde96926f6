package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medcoding/medcoding/internal/catalog"
	"github.com/medcoding/medcoding/internal/domain/coding"
	"github.com/medcoding/medcoding/internal/platform/fhir"
	"github.com/medcoding/medcoding/internal/platform/middleware"
	"github.com/medcoding/medcoding/internal/platform/openapi"
	"github.com/medcoding/medcoding/internal/platform/telemetry"
)

// newTestServer wires the full HTTP stack the way cmd/coding-server does,
// over the shipped catalog, without a network listener. Each test gets its
// own server so response caches never leak between tests.
func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	logger := zerolog.New(io.Discard)
	cat := catalog.Default()

	tel := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "coding-server",
		ServiceVersion: "0.1.0",
		Environment:    "test",
	})
	catalogMetrics := tel.CatalogMetrics()
	catalogMetrics.SetDiagnosisCodes(int64(len(cat.Diagnoses)))
	catalogMetrics.SetModifierCodes(int64(len(cat.Modifiers)))
	catalogMetrics.SetPairEdits(int64(len(cat.PairEdits)))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", "If-None-Match"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(tel.TracingMiddleware())
	e.Use(tel.MetricsMiddleware())
	e.Use(middleware.RequestTimeout(30 * time.Second))

	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	fhirGroup.Use(middleware.RateLimit(rateLimitCfg))

	fhirGroup.Use(middleware.BodyLimit("1M"))

	cacheCtx, cancelCache := context.WithCancel(context.Background())
	t.Cleanup(cancelCache)

	cacheStore := middleware.NewInMemoryCacheStore()
	cacheStore.StartCleanup(cacheCtx, 5*time.Minute)

	cacheCfg := middleware.DefaultCacheConfig()
	apiV1.Use(middleware.ETagMiddleware(cacheCfg))
	apiV1.Use(middleware.ResponseCacheMiddleware(cacheStore, 10*time.Minute))
	fhirGroup.Use(middleware.ETagMiddleware(cacheCfg))
	fhirGroup.Use(middleware.ResponseCacheMiddleware(cacheStore, 10*time.Minute))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/catalog", catalog.HealthHandler(cat))
	e.GET("/metrics", tel.PrometheusHandler())

	capBuilder := fhir.NewCapabilityBuilder("http://localhost:8080/fhir", "0.1.0")
	capBuilder.AddOperation("CodeSystem", fhir.OperationCapability{
		Name:       "lookup",
		Definition: "http://hl7.org/fhir/OperationDefinition/CodeSystem-lookup",
	})
	capBuilder.AddOperation("CodeSystem", fhir.OperationCapability{
		Name:       "validate-code",
		Definition: "http://hl7.org/fhir/OperationDefinition/CodeSystem-validate-code",
	})
	capBuilder.AddOperation("ValueSet", fhir.OperationCapability{
		Name:       "expand",
		Definition: "http://hl7.org/fhir/OperationDefinition/ValueSet-expand",
	})
	capHandler := fhir.NewCapabilityHandler(capBuilder)
	capHandler.RegisterRoutes(fhirGroup)

	openAPIGen := openapi.NewGenerator(capBuilder, "0.1.0", "http://localhost:8080")
	openAPIGen.RegisterRoutes(apiV1)

	diagnosisRepo := coding.NewDiagnosisRepoMem(cat.Diagnoses)
	modifierRepo := coding.NewModifierRepoMem(cat.Modifiers)
	pairRepo := coding.NewPairEditRepoMem(cat.PairEdits)
	codingHandler := coding.NewHandler(coding.NewService(diagnosisRepo, modifierRepo, pairRepo))
	codingHandler.RegisterRoutes(apiV1, fhirGroup)

	return e
}

// doGet performs a GET against the in-process server.
func doGet(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// doPostJSON performs a POST with a JSON body against the in-process server.
func doPostJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to parse response %q: %v", rec.Body.String(), err)
	}
}
