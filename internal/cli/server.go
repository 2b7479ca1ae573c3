package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devopsfarm-quiz/internal/config"
	"devopsfarm-quiz/internal/domain"
	apiclient "devopsfarm-quiz/internal/infra/api"
	"devopsfarm-quiz/internal/infra/memory"
	"devopsfarm-quiz/internal/infra/mongodb"
	pgloader "devopsfarm-quiz/internal/infra/postgres"
	infraredis "devopsfarm-quiz/internal/infra/redis"
	"devopsfarm-quiz/internal/session"
	transport "devopsfarm-quiz/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	mongoopt "go.mongodb.org/mongo-driver/mongo/options"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var mongoClient *mongodrv.Client
	if cfg.Mongo.URI != "" {
		mongoClient, err = mongodrv.Connect(ctx, mongoopt.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return err
		}
		defer func() {
			_ = mongoClient.Disconnect(context.Background())
		}()
	}

	// Quiz content comes from the document store when configured, falling
	// back to Postgres JSONB and finally to a built-in sample quiz.
	var loader memory.ContentLoader
	switch {
	case mongoClient != nil:
		loader = mongodb.NewContentStore(mongoClient, cfg.Mongo.Database)
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewContentLoader(pool)
	default:
		loader = memory.NewStaticContentLoader(sampleQuiz())
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var content session.ContentRepository
	if redisClient != nil {
		content = infraredis.NewContentRepository(redisClient, loader, quizTTL)
	} else {
		content = memory.NewContentRepository(loader, quizTTL)
	}

	var kv session.KeyValueStore
	if redisClient != nil {
		sessionTTL := config.Duration(cfg.Redis.TTL, 24*time.Hour)
		kv = infraredis.NewKVStore(redisClient, sessionTTL)
	} else {
		kv = memory.NewKVStore()
	}

	var responses *mongodb.ResponseStore
	if mongoClient != nil {
		responses = mongodb.NewResponseStore(mongoClient, cfg.Mongo.Database)
	}

	var recorder session.ResponseRecorder
	switch {
	case cfg.Submission.Endpoint != "":
		recorder = apiclient.NewRecorder(cfg.Submission.Endpoint)
	case responses != nil:
		recorder = responses
	default:
		recorder = memory.NewResponseRecorder()
	}

	sessions := session.NewManager(content, kv, recorder, session.Options{
		TermsWindow:  config.Duration(cfg.Quiz.TermsWindow, 600*time.Second),
		QuizDuration: config.Duration(cfg.Quiz.Duration, 3600*time.Second),
	})

	var browser transport.DocumentBrowser
	if responses != nil {
		browser = responses
	}
	rest := transport.NewRESTHandler(content, recorder, browser, cfg.Mongo.BrowseCollection)
	router := transport.NewRouter(rest, transport.NewWSHandler(sessions))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuiz provides demo content for storage-less runs; production reads
// authored quizzes from the document store.
func sampleQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID:    "quiz-1",
		Title: "General Knowledge",
		Categories: []domain.Category{
			{
				ID:       "c1",
				Category: "General",
				Questions: []domain.Question{
					{
						ID:            "q1",
						Question:      "What is 2 + 2?",
						CorrectAnswer: "4",
						Value:         10,
						Options: []domain.OptionItem{
							{ID: "o1", Option: "3"},
							{ID: "o2", Option: "4"},
							{ID: "o3", Option: "5"},
						},
					},
					{
						ID:            "q2",
						Question:      "Which planet is known as the Red Planet?",
						CorrectAnswer: "Mars",
						Value:         20,
						Options: []domain.OptionItem{
							{ID: "o1", Option: "Venus"},
							{ID: "o2", Option: "Mars"},
							{ID: "o3", Option: "Jupiter"},
						},
					},
				},
			},
		},
	}
}
