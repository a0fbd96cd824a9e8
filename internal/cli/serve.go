package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victornm/trivia/internal/infra/postgres"
	"github.com/victornm/trivia/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply postgres migrations before starting")
	return cmd
}

func runServe(ctx context.Context, configPath string, migrate bool) error {
	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if migrate {
		if _, err := postgres.Migrate(ctx, c.Postgres.DSN()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s, err := server.Init(c)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "server: shutting down")
	case err = <-errc:
		slog.ErrorContext(ctx, "server: stopped with error", "error", err)
	}

	s.Shutdown()
	return err
}
