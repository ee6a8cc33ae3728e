package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/events"
	"github.com/phrazzld/inkwell-api/internal/generation"
	"github.com/phrazzld/inkwell-api/internal/ledger"
	"github.com/phrazzld/inkwell-api/internal/platform/gemini"
	"github.com/phrazzld/inkwell-api/internal/platform/memory"
	"github.com/phrazzld/inkwell-api/internal/platform/ollama"
	"github.com/phrazzld/inkwell-api/internal/platform/postgres"
	"github.com/phrazzld/inkwell-api/internal/queue"
	"github.com/phrazzld/inkwell-api/internal/redact"
	"github.com/phrazzld/inkwell-api/internal/service"
	"github.com/phrazzld/inkwell-api/internal/service/auth"
	"github.com/phrazzld/inkwell-api/internal/store"
	"github.com/phrazzld/inkwell-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// nil unless the postgres driver is in use
	db *sql.DB

	// Stores
	jobs     store.JobStore
	articles store.ArticleStore
	accounts store.AccountStore

	// nil for the in-memory stores
	transactor store.Transactor

	ledger            *ledger.Ledger
	queue             queue.Queue
	emitter           *events.InMemoryEventEmitter
	kafka             *events.KafkaPublisher
	jwtService        auth.JWTService
	generationService service.GenerationService
	runner            *task.Runner
}

// newApplication creates a new application instance with all dependencies initialized.
// The runner is created but not started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	if err = app.setupStores(ctx); err != nil {
		return nil, err
	}

	if err = app.setupQueue(ctx); err != nil {
		return nil, err
	}

	if err = app.setupEvents(); err != nil {
		return nil, err
	}

	assembler, err := setupAssembler(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	app.ledger = ledger.New(app.accounts,
		ledger.WithLogger(logger),
		ledger.WithOveragePolicy(ledger.OveragePolicy(cfg.Ledger.OveragePolicy)))
	logger.Info("credit ledger initialized", "overage_policy", app.ledger.Policy())

	app.generationService, err = service.NewGenerationService(
		app.jobs,
		app.articles,
		app.ledger,
		app.queue,
		assembler,
		app.emitter,
		logger,
		service.WithTransactor(app.transactor, func(accounts store.AccountStore) service.CreditLedger {
			return app.ledger.WithStore(accounts)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}

	processor, err := task.NewGenerationProcessor(
		app.jobs,
		app.articles,
		app.ledger,
		assembler,
		app.emitter,
		task.ProcessorConfig{
			PacingDelay: time.Duration(cfg.Task.PacingDelayMs) * time.Millisecond,
			MaxAttempts: cfg.Task.MaxAttempts,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation processor: %w", err)
	}

	app.runner = task.NewRunner(app.queue, app.jobs, processor, task.NewRunnerConfig(cfg.Task), logger)
	app.runner.SetErrorHandler(func(jobID uuid.UUID, err error) {
		logger.Warn("job delivery failed, will retry",
			"job_id", jobID,
			"error", redact.Error(err))
	})

	return app, nil
}

// setupStores opens the configured record store.
func (app *application) setupStores(ctx context.Context) error {
	switch app.config.Database.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, app.config.Database.URL,
			app.config.Database.MaxOpenConns, app.config.Database.MaxIdleConns)
		if err != nil {
			return err
		}
		app.db = db
		if err := postgres.Migrate(ctx, db, app.logger, "up"); err != nil {
			return err
		}
		app.jobs = postgres.NewPostgresJobStore(db, app.logger)
		app.articles = postgres.NewPostgresArticleStore(db, app.logger)
		app.accounts = postgres.NewPostgresAccountStore(db, app.logger)
		app.transactor = postgres.NewTransactor(db, app.logger)
		app.logger.Info("database connection established")
	default:
		app.jobs = memory.NewJobStore()
		app.articles = memory.NewArticleStore()
		app.accounts = memory.NewAccountStore()
		app.logger.Warn("using in-memory stores, data is lost on restart")
	}
	return nil
}

// setupQueue creates the configured job queue.
func (app *application) setupQueue(ctx context.Context) error {
	switch app.config.Queue.Driver {
	case "redis":
		client, err := queue.NewRedisClient(ctx,
			app.config.Queue.RedisAddr, app.config.Queue.RedisPassword, app.config.Queue.RedisDB)
		if err != nil {
			return err
		}
		// The queue owns the client and closes it.
		app.queue = queue.NewRedisQueue(client, app.config.Queue.KeyPrefix, app.logger)
		app.logger.Info("redis job queue connected", "prefix", app.config.Queue.KeyPrefix)
	default:
		app.queue = queue.NewMemoryQueue(app.config.Task.QueueSize, app.logger)
	}
	return nil
}

// setupEvents creates the event emitter and, when brokers are configured,
// attaches the Kafka publisher.
func (app *application) setupEvents() error {
	app.emitter = events.NewInMemoryEventEmitter(app.logger)

	if len(app.config.Events.KafkaBrokers) == 0 {
		return nil
	}

	producer, err := events.NewKafkaProducer(app.config.Events.KafkaBrokers)
	if err != nil {
		return err
	}
	app.kafka = events.NewKafkaPublisher(producer, app.config.Events.KafkaTopic, app.logger)
	app.emitter.RegisterHandler(app.kafka)
	app.logger.Info("publishing job events to kafka", "topic", app.config.Events.KafkaTopic)
	return nil
}

// setupAssembler registers every configured provider and returns the
// assembler that drives them. The default model must be among them.
func setupAssembler(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*generation.Assembler, error) {
	registry := generation.NewRegistry(cfg.DefaultModel, logger)
	var opts []generation.AssemblerOption

	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewGeminiGenerator(ctx, logger, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini provider: %w", err)
		}
		if err := registry.Register(generation.NewPromptProvider(gemini.ProviderName, g)); err != nil {
			return nil, err
		}
		if cfg.ImageModel != "" {
			opts = append(opts, generation.WithImageGenerator(g))
		}
	}

	if cfg.OllamaModel != "" {
		c, err := ollama.NewClient(logger, cfg, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama provider: %w", err)
		}
		if err := registry.Register(generation.NewPromptProvider(ollama.ProviderName, c)); err != nil {
			return nil, err
		}
	}

	if _, err := registry.Resolve(""); err != nil {
		return nil, err
	}
	logger.Info("generation providers registered",
		"providers", registry.Names(),
		"default", cfg.DefaultModel,
		"images_enabled", len(opts) > 0)

	return generation.NewAssembler(registry, logger, opts...), nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.queue != nil {
		if err := app.queue.Close(); err != nil {
			app.logger.Error("error closing job queue", "error", err)
		}
	}

	if app.kafka != nil {
		if err := app.kafka.Close(); err != nil {
			app.logger.Error("error closing kafka producer", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
