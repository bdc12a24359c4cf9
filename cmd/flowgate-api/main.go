package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/flowgate/flowgate/pkg/cmd"
	"github.com/flowgate/flowgate/pkg/executor"
	"github.com/flowgate/flowgate/pkg/log"
)

const (
	defaultPort            = 8000
	defaultShutdownTimeout = 30 * time.Second
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowgate-api",
		Usage:                 "Relay workflow executions to n8n instances",
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
				Name:    "backend-url",
				Usage:   "Externally reachable base URL of this API, used for callback addresses",
				Value:   executor.DefaultBackendURL,
				Sources: cli.EnvVars("BACKEND_URL"),
			},
			&cli.StringFlag{
				Name:     "callback-secret",
				Usage:    "Shared secret remote workflows must echo on callbacks",
				Required: true,
				Sources:  cli.EnvVars("CALLBACK_SECRET"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the workflow listing cache (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
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

			logger.InfoContext(ctx, "Initializing Flowgate API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			cache, err := cmd.NewRedisClient(command.String("redis-url"))
			if err != nil {
				return err
			}

			if cache != nil {
				defer func() {
					if err := cache.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close cache", "error", err)
					}
				}()
			}

			exec := executor.NewExecutor(persistence, executor.Config{
				BackendURL:     command.String("backend-url"),
				CallbackSecret: command.String("callback-secret"),
			}, logger)

			defer func() {
				drainCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
				defer cancel()

				if err := exec.Shutdown(drainCtx); err != nil {
					logger.ErrorContext(ctx, "Dispatcher drain incomplete", "error", err)
				}
			}()

			api := NewAPI(logger, persistence, exec, cache)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
