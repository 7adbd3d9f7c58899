package main

import (
	"context"
	"fmt"
	"os"

	"github.com/carvault/ingestor/cmd/ingestor/carstream"
	"github.com/carvault/ingestor/cmd/ingestor/codec"
	"github.com/carvault/ingestor/cmd/ingestor/handlers"
	"github.com/carvault/ingestor/cmd/ingestor/service"
	"github.com/carvault/ingestor/common/bootstrap"
	"github.com/carvault/ingestor/common/worker"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (store, logger, redis, telemetry)
	components, err := bootstrap.Setup(ctx, "ingestor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap ingestor: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// The production archive opener and the non-raw decoders are wired per
	// deployment; the defaults keep local runs self-contained.
	opener := carstream.NewMemoryOpener()
	codecs := codec.NewRegistry()

	var signaler *worker.Signaler
	if components.Redis != nil {
		signaler = worker.NewSignaler(components.Redis, components.Config.Ingest.CompletionQueue)
	}

	ingestor := service.NewIngestor(
		components.Store,
		opener,
		codecs,
		signaler,
		components.Config.Ingest.BlockConcurrency,
		components.Logger,
	)

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	registerRoutes(e, ingestor, components)

	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "ingestor",
		})
	})
}

// registerRoutes registers all application routes
func registerRoutes(e *echo.Echo, ingestor *service.Ingestor, components *bootstrap.Components) {
	ingestHandler := handlers.NewIngestHandler(ingestor, components.Logger)
	e.POST("/v1/ingest", ingestHandler.Ingest)
}

// startServer starts the Echo server on the configured port
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("Starting ingestor", "port", port)

	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
