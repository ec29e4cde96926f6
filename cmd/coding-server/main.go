package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medcoding/medcoding/internal/catalog"
	"github.com/medcoding/medcoding/internal/config"
	"github.com/medcoding/medcoding/internal/domain/coding"
	"github.com/medcoding/medcoding/internal/platform/fhir"
	"github.com/medcoding/medcoding/internal/platform/middleware"
	"github.com/medcoding/medcoding/internal/platform/openapi"
	"github.com/medcoding/medcoding/internal/platform/telemetry"
)

// version is reported by /health, the CapabilityStatement, and telemetry.
const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "coding-server",
		Short: "Medical billing code reference API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the coding API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the code catalogs",
	}

	// catalog validate
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the catalogs and check their invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			diagnoses, modifiers, ncci, err := catalogPaths(cmd)
			if err != nil {
				return err
			}

			cat, err := catalog.Load(diagnoses, modifiers, ncci)
			if err != nil {
				return fmt.Errorf("catalog validation failed: %w", err)
			}

			fmt.Printf("%-12s %d\n", "diagnoses", len(cat.Diagnoses))
			fmt.Printf("%-12s %d\n", "modifiers", len(cat.Modifiers))
			fmt.Printf("%-12s %d\n", "ncci pairs", len(cat.PairEdits))
			fmt.Println("Catalog OK.")
			return nil
		},
	}
	addCatalogPathFlags(validateCmd)
	cmd.AddCommand(validateCmd)

	// catalog export
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a loaded catalog table as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			outPath, _ := cmd.Flags().GetString("out")

			diagnoses, modifiers, ncci, err := catalogPaths(cmd)
			if err != nil {
				return err
			}

			cat, err := catalog.Load(diagnoses, modifiers, ncci)
			if err != nil {
				return err
			}

			out, err := exportTable(cat, table)
			if err != nil {
				return err
			}

			w := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	exportCmd.Flags().String("table", "all", "Table to export: diagnoses, modifiers, ncci, or all")
	exportCmd.Flags().String("out", "", "Write to a file instead of stdout")
	addCatalogPathFlags(exportCmd)
	cmd.AddCommand(exportCmd)

	return cmd
}

func addCatalogPathFlags(cmd *cobra.Command) {
	cmd.Flags().String("diagnoses", "", "Path to a diagnosis catalog JSON file")
	cmd.Flags().String("modifiers", "", "Path to a modifier catalog CSV file")
	cmd.Flags().String("ncci", "", "Path to an NCCI pair edit JSON file")
}

// catalogPaths resolves the table override paths for catalog subcommands.
// Flags take precedence over the environment configuration.
func catalogPaths(cmd *cobra.Command) (diagnoses, modifiers, ncci string, err error) {
	cfg, err := config.Load()
	if err != nil {
		return "", "", "", err
	}

	diagnoses, _ = cmd.Flags().GetString("diagnoses")
	modifiers, _ = cmd.Flags().GetString("modifiers")
	ncci, _ = cmd.Flags().GetString("ncci")

	if diagnoses == "" {
		diagnoses = cfg.DiagnosisCatalogPath
	}
	if modifiers == "" {
		modifiers = cfg.ModifierCatalogPath
	}
	if ncci == "" {
		ncci = cfg.NCCICatalogPath
	}
	return diagnoses, modifiers, ncci, nil
}

// exportTable selects the catalog table(s) for catalog export.
func exportTable(cat *catalog.Catalog, table string) (interface{}, error) {
	switch table {
	case "diagnoses":
		return cat.Diagnoses, nil
	case "modifiers":
		return cat.Modifiers, nil
	case "ncci":
		return cat.PairEdits, nil
	case "all":
		return map[string]interface{}{
			"diagnoses": cat.Diagnoses,
			"modifiers": cat.Modifiers,
			"ncci":      cat.PairEdits,
		}, nil
	}
	return nil, fmt.Errorf("unknown table %q (want diagnoses, modifiers, ncci, or all)", table)
}

// buildCapability registers the terminology surface advertised at /fhir/metadata.
func buildCapability(baseURL string) *fhir.CapabilityBuilder {
	b := fhir.NewCapabilityBuilder(baseURL, version)

	b.AddOperation("CodeSystem", fhir.OperationCapability{
		Name:          "lookup",
		Definition:    "http://hl7.org/fhir/OperationDefinition/CodeSystem-lookup",
		Documentation: "Look up a diagnosis or modifier code and return its display and properties",
	})
	b.AddOperation("CodeSystem", fhir.OperationCapability{
		Name:          "validate-code",
		Definition:    "http://hl7.org/fhir/OperationDefinition/CodeSystem-validate-code",
		Documentation: "Check whether a code is present in the diagnosis or modifier tables",
	})
	b.AddOperation("ValueSet", fhir.OperationCapability{
		Name:          "expand",
		Definition:    "http://hl7.org/fhir/OperationDefinition/ValueSet-expand",
		Documentation: "Expand the diagnosis value set, optionally filtered by search text",
	})

	return b
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Code catalog
	cat, err := catalog.Load(cfg.DiagnosisCatalogPath, cfg.ModifierCatalogPath, cfg.NCCICatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}
	logger.Info().
		Int("diagnoses", len(cat.Diagnoses)).
		Int("modifiers", len(cat.Modifiers)).
		Int("ncci_pairs", len(cat.PairEdits)).
		Msg("catalog loaded")

	// Telemetry
	tel := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "coding-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	if cfg.TelemetryEnabled {
		catalogMetrics := tel.CatalogMetrics()
		catalogMetrics.SetDiagnosisCodes(int64(len(cat.Diagnoses)))
		catalogMetrics.SetModifierCodes(int64(len(cat.Modifiers)))
		catalogMetrics.SetPairEdits(int64(len(cat.PairEdits)))
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", "If-None-Match"},
	}))
	e.Use(middleware.SecurityHeaders())
	if cfg.TelemetryEnabled {
		e.Use(tel.TracingMiddleware())
		e.Use(tel.MetricsMiddleware())
	}
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	// Rate limiting
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	fhirGroup.Use(middleware.RateLimit(rateLimitCfg))

	// Only the FHIR operations accept request bodies.
	fhirGroup.Use(middleware.BodyLimit("1M"))

	// Response caching. The catalog is immutable while the process runs.
	cacheCtx, cancelCache := context.WithCancel(context.Background())
	defer cancelCache()

	cacheStore := middleware.NewInMemoryCacheStore()
	cacheStore.StartCleanup(cacheCtx, 5*time.Minute)

	cacheCfg := middleware.DefaultCacheConfig()
	apiV1.Use(middleware.ETagMiddleware(cacheCfg))
	apiV1.Use(middleware.ResponseCacheMiddleware(cacheStore, 10*time.Minute))
	fhirGroup.Use(middleware.ETagMiddleware(cacheCfg))
	fhirGroup.Use(middleware.ResponseCacheMiddleware(cacheStore, 10*time.Minute))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/catalog", catalog.HealthHandler(cat))

	// Prometheus metrics
	if cfg.TelemetryEnabled {
		e.GET("/metrics", tel.PrometheusHandler())
	}

	// FHIR CapabilityStatement at /fhir/metadata
	serverURL := fmt.Sprintf("http://localhost:%s", cfg.Port)
	capBuilder := buildCapability(serverURL + "/fhir")
	capHandler := fhir.NewCapabilityHandler(capBuilder)
	capHandler.RegisterRoutes(fhirGroup)

	// OpenAPI spec and Swagger UI
	openAPIGen := openapi.NewGenerator(capBuilder, version, serverURL)
	openAPIGen.RegisterRoutes(apiV1)

	// Coding domain: diagnosis search, modifier suggestion, NCCI pair checks
	diagnosisRepo := coding.NewDiagnosisRepoMem(cat.Diagnoses)
	modifierRepo := coding.NewModifierRepoMem(cat.Modifiers)
	pairRepo := coding.NewPairEditRepoMem(cat.PairEdits)
	codingService := coding.NewService(diagnosisRepo, modifierRepo, pairRepo)
	codingHandler := coding.NewHandler(codingService)
	codingHandler.RegisterRoutes(apiV1, fhirGroup)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	if err := tel.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
