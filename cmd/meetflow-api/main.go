package main

import (
	"context"
	"fmt"
	"os"

	"github.com/meetflow/meetflow/pkg/cmd"
	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/eventbus"
	"github.com/meetflow/meetflow/pkg/events"
	"github.com/meetflow/meetflow/pkg/gateways/calendar"
	"github.com/meetflow/meetflow/pkg/gateways/mail"
	"github.com/meetflow/meetflow/pkg/log"
	"github.com/meetflow/meetflow/pkg/otelhelper"
	"github.com/meetflow/meetflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	app := &cli.Command{
		Name:                  "meetflow-api",
		Usage:                 "Conversational meeting scheduling API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL (redis://... or a filesystem path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "anthropic-api-key",
				Usage:   "API key for the Anthropic provider",
				Sources: cli.EnvVars("ANTHROPIC_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key for the OpenAI provider",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "mail-access-token",
				Usage:   "Access token used for agenda batch sends",
				Sources: cli.EnvVars("MAIL_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "janitor-schedule",
				Usage:   "Cron schedule for purging finished email jobs",
				Value:   "@hourly",
				Sources: cli.EnvVars("JANITOR_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("OTEL_TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing MeetFlow API")

			store, err := cmd.NewPersistence(command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			bus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			var tracer trace.Tracer

			if command.Bool("tracing") {
				tracerProvider, err := otelhelper.InitTracer(ctx, "meetflow-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := tracerProvider.Shutdown(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()

				tracer = tracerProvider.Tracer("meetflow-api")

				if wb, ok := bus.(*eventbus.WatermillEventBus); ok {
					wb.SetTracer(tracer)
				}
			}

			bus.Handle(events.WorkflowCompletedEvent, func(ctx context.Context, event any) error {
				if e, ok := event.(*events.WorkflowCompleted); ok {
					logger.InfoContext(ctx, "Workflow completed",
						"conversation_id", e.ConversationID, "meeting_id", e.MeetingID)
				}

				return nil
			})
			bus.Handle(events.EmailJobCompletedEvent, func(ctx context.Context, event any) error {
				if e, ok := event.(*events.EmailJobCompleted); ok {
					logger.InfoContext(ctx, "Email job finished",
						"job_id", e.JobID, "status", e.Status,
						"emails_sent", e.EmailsSent, "emails_failed", e.EmailsFailed)
				}

				return nil
			})

			if err := bus.Subscribe(ctx); err != nil {
				return err
			}

			aiRouter, err := cmd.NewRouter(cmd.RouterConfig{
				AnthropicAPIKey: command.String("anthropic-api-key"),
				OpenAIAPIKey:    command.String("openai-api-key"),
			}, logger)
			if err != nil {
				return err
			}

			if tracer != nil {
				aiRouter.SetTracer(tracer)
			}

			deliveryOrchestrator := delivery.NewOrchestrator(
				mail.NewInMemoryGateway(), store.EmailJobs(), bus, logger)

			if tracer != nil {
				deliveryOrchestrator.SetTracer(tracer)
			}

			janitor, err := deliveryOrchestrator.StartJanitor(ctx, command.String("janitor-schedule"))
			if err != nil {
				return err
			}
			defer janitor.Stop()

			accessToken := command.String("mail-access-token")

			orchestrator, err := workflow.New(workflow.Deps{
				States:        store.WorkflowStates(),
				Conversations: store.Conversations(),
				Router:        aiRouter,
				Calendar:      calendar.NewInMemoryGateway(),
				Delivery:      deliveryOrchestrator,
				Bus:           bus,
				Users: workflow.UserResolverFunc(func(_ context.Context, userID string) (mail.User, error) {
					return mail.User{ID: userID, AccessToken: accessToken}, nil
				}),
				Logger: logger,
			})
			if err != nil {
				return err
			}

			if tracer != nil {
				orchestrator.SetTracer(tracer)
			}

			api := NewAPI(logger, store, orchestrator, deliveryOrchestrator, aiRouter)

			logger.InfoContext(ctx, "Starting MeetFlow API", "port", command.Int("port"))

			return api.Start(command.Int("port"))
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("Failed to run MeetFlow API", "error", err)
		os.Exit(1)
	}
}
