package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/bootstrap"
	"github.com/lyzr/workflow-router/common/cache"
	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/ratelimit"
	"github.com/lyzr/workflow-router/common/repository"
	"github.com/lyzr/workflow-router/common/rules"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Cache      cache.Cache
	Limiter    *ratelimit.RateLimiter // nil without redis
	Checker    *rules.Checker
	Generator  *clients.GeneratorClient

	// Repositories
	WorkflowRepo *repository.WorkflowRepository
	NodeRepo     *repository.NodeRepository
	EdgeRepo     *repository.EdgeRepository

	// Services
	AuthService     *service.AuthService
	RecordService   *service.RecordService
	ImportService   *service.ImportService
	Sessions        *service.SessionRegistry
	WorkflowService *service.WorkflowService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	// Initialize repositories
	workflowRepo := repository.NewWorkflowRepository(components.Store)
	nodeRepo := repository.NewNodeRepository(components.Store)
	edgeRepo := repository.NewEdgeRepository(components.Store)

	// Redis backs the list cache, the save lock and rate limits when present
	var listCache cache.Cache
	var limiter *ratelimit.RateLimiter
	sessionCfg := editor.SessionConfig{
		Nodes:        nodeRepo,
		Edges:        edgeRepo,
		Logger:       log,
		LockTTL:      cfg.Redis.SaveLockTTL,
		HistoryDepth: cfg.History.Depth,
	}
	if components.Redis != nil {
		listCache = cache.NewRedisCache(components.Redis, "vwf:cache:")
		limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), log)
		sessionCfg.Lock = components.Redis
	} else {
		log.Warn("redis not configured; caching, save locks and rate limits are process-local or off")
		listCache = cache.NewMemoryCache(log)
	}
	if components.Telemetry != nil {
		sessionCfg.Recorder = components.Telemetry
	}

	checker, err := rules.NewChecker()
	if err != nil {
		return nil, fmt.Errorf("failed to create rules checker: %w", err)
	}

	generator := clients.NewGeneratorClient(
		clients.NewHTTPClient(&http.Client{Timeout: cfg.Generator.Timeout}, log),
		clients.GeneratorConfig{
			APIKey:    cfg.Generator.APIKey,
			BaseURL:   cfg.Generator.BaseURL,
			Model:     cfg.Generator.Model,
			MaxTokens: cfg.Generator.MaxTokens,
		},
		log,
	)
	if !generator.Enabled() {
		log.Warn("ANTHROPIC_API_KEY not set; workflow generation is disabled")
	}

	// Initialize services (bottom-up: dependencies first)
	authService := service.NewAuthService(cfg.Auth, log)
	recordService := service.NewRecordService(components.Store, log)
	importService := service.NewImportService(workflowRepo, nodeRepo, edgeRepo, log)
	sessions := service.NewSessionRegistry(workflowRepo, sessionCfg, log)

	var timer service.Timer
	if components.Telemetry != nil {
		timer = components.Telemetry
		if err := components.Telemetry.Registry().Register(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "vwf_live_sessions",
				Help: "Editing sessions held in memory",
			},
			func() float64 { return float64(sessions.Len()) },
		)); err != nil {
			return nil, fmt.Errorf("failed to register session gauge: %w", err)
		}
	}

	workflowService := service.NewWorkflowService(
		workflowRepo,
		nodeRepo,
		edgeRepo,
		recordService,
		importService,
		generator,
		sessions,
		listCache,
		cfg.Redis.ListCacheTTL,
		timer,
		log,
	)

	return &Container{
		Components:      components,
		Cache:           listCache,
		Limiter:         limiter,
		Checker:         checker,
		Generator:       generator,
		WorkflowRepo:    workflowRepo,
		NodeRepo:        nodeRepo,
		EdgeRepo:        edgeRepo,
		AuthService:     authService,
		RecordService:   recordService,
		ImportService:   importService,
		Sessions:        sessions,
		WorkflowService: workflowService,
	}, nil
}

// Close releases what the container created itself
func (c *Container) Close() error {
	return c.Cache.Close()
}
