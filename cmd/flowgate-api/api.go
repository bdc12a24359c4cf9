// Package main provides the Flowgate API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/flowgate/flowgate/pkg/executor"
	"github.com/flowgate/flowgate/pkg/persistence"
	"github.com/flowgate/flowgate/pkg/services"
	"github.com/flowgate/flowgate/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	executor    *executor.Executor
	cache       *redis.Client
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	executor *executor.Executor,
	cache *redis.Client,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		executor:    executor,
		cache:       cache,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	executionService := services.NewExecution(a.persistence)
	instanceService := services.NewInstance(a.persistence, a.logger)
	dashboardService := services.NewDashboard(a.persistence, a.executor, a.logger)

	var cache redis.Cmdable
	if a.cache != nil {
		cache = a.cache
	}

	workflowService := services.NewWorkflow(a.persistence, cache, a.logger)

	handlers := web.NewAPIHandlers(
		executionService,
		instanceService,
		workflowService,
		dashboardService,
		a.executor,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowgate API")
	})

	app.Get("/health", handlers.HealthCheck)

	v1 := app.Group("/api/v1")

	i := v1.Group("/instances")
	i.Post("/", handlers.CreateInstance)
	i.Get("/", handlers.GetInstances)
	i.Get("/:id", handlers.GetInstance)
	i.Delete("/:id", handlers.DeactivateInstance)
	i.Get("/:id/workflows", handlers.GetWorkflows)
	i.Get("/:id/workflows/:workflowId", handlers.GetWorkflow)

	e := v1.Group("/executions")
	e.Post("/", handlers.QueueExecution)
	e.Get("/", handlers.GetExecutions)
	e.Get("/:runId", handlers.GetExecution)

	d := v1.Group("/dashboards")
	d.Post("/", handlers.CreateDashboard)
	d.Get("/", handlers.GetDashboards)
	d.Get("/:id", handlers.GetDashboard)
	d.Post("/:id/execute", handlers.ExecuteDashboard)

	v1.Post("/webhook/callback/:runId", handlers.HandleCallback)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
