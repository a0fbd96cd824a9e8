package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/victornm/trivia/internal/infra/postgres"
	"github.com/victornm/trivia/internal/question"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *configPath, seed)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "load the sample quizzes after migrating")
	return cmd
}

func runMigrate(ctx context.Context, configPath string, seed bool) error {
	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	group, err := postgres.Migrate(ctx, c.Postgres.DSN())
	if err != nil {
		return err
	}
	if group.IsZero() {
		slog.InfoContext(ctx, "migrate: nothing to migrate")
	} else {
		slog.InfoContext(ctx, "migrate: applied", "group", group.String())
	}

	if !seed {
		return nil
	}

	db, err := pgxpool.New(ctx, c.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	quizzes, err := question.SampleQuizzes()
	if err != nil {
		return fmt.Errorf("sample quizzes: %w", err)
	}

	if err := postgres.Seed(ctx, db, quizzes); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	slog.InfoContext(ctx, "migrate: seeded sample quizzes", "quizzes", len(quizzes))
	return nil
}
