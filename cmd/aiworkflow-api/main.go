package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/ccxxllhl2/ai-workflow/pkg/cmd"
	"github.com/ccxxllhl2/ai-workflow/pkg/llm"
	"github.com/ccxxllhl2/ai-workflow/pkg/log"
	"github.com/ccxxllhl2/ai-workflow/pkg/otelhelper"
	"github.com/ccxxllhl2/ai-workflow/pkg/registry"
	"github.com/ccxxllhl2/ai-workflow/pkg/workflow"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "aiworkflow-api",
		Usage:                 "Create, run and manage AI workflows",
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
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-base-url",
				Usage:   "Base URL of the OpenAI-compatible completion endpoint",
				Value:   "https://api.openai.com/v1",
				Sources: cli.EnvVars("LLM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for the completion endpoint",
				Sources: cli.EnvVars("LLM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, none)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing AI Workflow API")

			persistence, err := cmd.NewPersistence(command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"))

			if eventBus != nil {
				defer func() {
					err := eventBus.Close()
					if err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			engineOpts := []workflow.EngineOption{}
			if eventBus != nil {
				engineOpts = append(engineOpts, workflow.WithEventBus(eventBus))
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "aiworkflow-api")
				if err != nil {
					return err
				}

				engineOpts = append(engineOpts, workflow.WithTracer(tracer))
			}

			client := llm.NewHTTPClient(command.String("llm-base-url"), command.String("llm-api-key"))
			engine := workflow.NewEngine(persistence, registry.NewRegistry(), client, engineOpts...)

			api := NewAPI(logger, persistence, engine)

			return api.Start(command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
