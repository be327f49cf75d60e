// Package main provides the MeetFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/meetflow/meetflow/pkg/ai/router"
	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/persistence"
	"github.com/meetflow/meetflow/pkg/web"
	"github.com/meetflow/meetflow/pkg/workflow"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	orchestrator *workflow.Orchestrator
	delivery     *delivery.Orchestrator
	router       *router.Router
	validate     *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	orchestrator *workflow.Orchestrator,
	deliveryOrchestrator *delivery.Orchestrator,
	aiRouter *router.Router,
) *API {
	return &API{
		logger:       logger,
		persistence:  persistence,
		orchestrator: orchestrator,
		delivery:     deliveryOrchestrator,
		router:       aiRouter,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.orchestrator, a.delivery, a.router, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("MeetFlow API")
	})

	conversations := app.Group("/conversations")
	conversations.Post("/:id/messages", handlers.ProcessMessage)
	conversations.Post("/:id/advance", handlers.AdvanceStep)
	conversations.Post("/:id/ui", handlers.UIInteraction)
	conversations.Get("/:id/state", handlers.GetWorkflowState)
	conversations.Delete("/:id", handlers.ResetWorkflow)
	conversations.Patch("/:id/meeting", handlers.UpdateMeetingData)

	conversations.Get("/:id/agenda", handlers.GetAgendaApproval)
	conversations.Put("/:id/agenda", handlers.UpdateAgenda)
	conversations.Post("/:id/agenda/regenerate", handlers.RegenerateAgenda)
	conversations.Post("/:id/agenda/approve", handlers.ApproveAgenda)

	jobs := app.Group("/email-jobs")
	jobs.Get("/stats", handlers.GetEmailJobStats)
	jobs.Get("/:id", handlers.GetEmailJob)
	jobs.Post("/:id/cancel", handlers.CancelEmailJob)
	jobs.Post("/:id/retry", handlers.RetryEmailJob)

	ai := app.Group("/ai")
	ai.Get("/health", handlers.GetAIHealth)
	ai.Get("/analytics", handlers.GetAIAnalytics)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
