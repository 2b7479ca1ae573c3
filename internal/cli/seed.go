package cli

import (
	"context"
	"fmt"
	"log"

	"devopsfarm-quiz/internal/config"
	"devopsfarm-quiz/internal/infra/mongodb"
	pgloader "devopsfarm-quiz/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	mongoopt "go.mongodb.org/mongo-driver/mongo/options"
)

// NewSeedCmd inserts the sample quiz into the configured content store.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the content store with a sample quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	quiz := sampleQuiz()

	switch {
	case cfg.Mongo.URI != "":
		client, err := mongodrv.Connect(ctx, mongoopt.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
		if err := mongodb.NewContentStore(client, cfg.Mongo.Database).SaveQuiz(ctx, quiz); err != nil {
			return err
		}
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pgloader.NewContentLoader(pool).SaveQuiz(ctx, quiz); err != nil {
			return err
		}
	default:
		return fmt.Errorf("no content store configured")
	}

	log.Printf("seeded quiz %q", quiz.ID)
	return nil
}
