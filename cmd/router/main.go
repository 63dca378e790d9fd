package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/workflow-router/cmd/router/container"
	routermw "github.com/lyzr/workflow-router/cmd/router/middleware"
	"github.com/lyzr/workflow-router/cmd/router/routes"
	"github.com/lyzr/workflow-router/common/bootstrap"
	"github.com/lyzr/workflow-router/common/server"
)

const serviceName = "workflow-router"

func main() {
	ctx := context.Background()

	// Bootstrap common components (store, logger, redis, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap %s: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Close()

	// Evict editing sessions nobody is using
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go serviceContainer.Sessions.Run(sweepCtx, components.Config.History.SessionIdleTTL)

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e, components)

	// Setup health check and metrics
	setupHealthCheck(e, components)

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server
	if err := startServer(ctx, e, components); err != nil {
		components.Logger.Error("Server error", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, components *bootstrap.Components) {
	e.Use(middleware.RequestID())
	e.Use(routermw.PropagateRequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			components.Logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
		AllowOriginFunc:  func(origin string) (bool, error) { return true, nil },
	}))
	e.Use(middleware.BodyLimit("2M"))
}

// setupHealthCheck registers the health check and metrics endpoints
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := components.Health(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": serviceName,
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
			"store":   components.Config.Store.Backend,
		})
	})

	if components.Telemetry != nil && components.Config.Telemetry.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(components.Telemetry.Handler()))
	}
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterAuthRoutes(e, serviceContainer)
	routes.RegisterWorkflowRoutes(e, serviceContainer)
	routes.RegisterCanvasRoutes(e, serviceContainer)
	routes.RegisterRecordRoutes(e, serviceContainer)
}

// startServer serves until SIGINT/SIGTERM, then drains requests
func startServer(ctx context.Context, e *echo.Echo, components *bootstrap.Components) error {
	cfg := components.Config
	writeTimeout := cfg.Generator.Timeout + 10*time.Second
	srv := server.New(serviceName, cfg.Service.Port, e, writeTimeout, components.Logger)
	return srv.Start(ctx)
}
