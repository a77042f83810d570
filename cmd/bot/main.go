package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/bot"
	"github.com/xaenox/planner-bot/internal/calendar"
	"github.com/xaenox/planner-bot/internal/classifier"
	"github.com/xaenox/planner-bot/internal/director"
	"github.com/xaenox/planner-bot/internal/idempotency"
	"github.com/xaenox/planner-bot/internal/kvstore"
	"github.com/xaenox/planner-bot/internal/llm"
	"github.com/xaenox/planner-bot/internal/parser"
	"github.com/xaenox/planner-bot/internal/pipeline"
	"github.com/xaenox/planner-bot/internal/ratelimit"
	"github.com/xaenox/planner-bot/internal/storage"
	"github.com/xaenox/planner-bot/internal/worker"
	"github.com/xaenox/planner-bot/pkg/config"
)

func main() {
	// .env is optional, real deployments use environment variables
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Key-value store backs rate limits, idempotency and pending events
	var store kvstore.Store
	if cfg.Redis.UseInMemory {
		logger.Info("Using in-memory key-value store")
		store = kvstore.NewMemoryStore()
	} else {
		logger.Info("Using Redis key-value store")
		store, err = kvstore.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	}
	defer store.Close()

	var db storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		db = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		db, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer db.Close()

	limiter := ratelimit.New(store, logger)
	d := director.New(limiter, director.Limits{
		GPTPerHour:     cfg.Director.GPTPerHour,
		GPTPerDay:      cfg.Director.GPTPerDay,
		WhisperPerHour: cfg.Director.WhisperPerHour,
		WhisperPerDay:  cfg.Director.WhisperPerDay,
	}, logger)

	rules := classifier.DefaultRules()
	if cfg.Rules.Path != "" {
		rules, err = classifier.LoadRules(cfg.Rules.Path)
		if err != nil {
			logger.Fatal("Failed to load classifier rules", zap.Error(err), zap.String("path", cfg.Rules.Path))
		}
	}
	ruleSet, err := rules.Compile()
	if err != nil {
		logger.Fatal("Failed to compile classifier rules", zap.Error(err))
	}
	local := classifier.NewLocal(ruleSet, logger)

	openai := llm.NewOpenAI(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.WhisperModel,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second,
	)
	gpt := parser.New(openai, logger)

	p := pipeline.New(d, local, gpt, logger)

	cal := calendar.NewClient(
		cfg.Calendar.BaseURL,
		time.Duration(cfg.Calendar.TimeoutSeconds)*time.Second,
		logger,
	)
	guard := idempotency.New(store, logger)

	w := worker.New(cal, guard, worker.Config{
		QueueSize:  cfg.Worker.QueueSize,
		MaxRetries: cfg.Worker.MaxRetries,
		RetryDelay: time.Duration(cfg.Worker.RetryDelaySeconds) * time.Second,
	}, logger)
	w.Start(context.Background())
	defer w.Stop()

	if err := w.RegisterHourlySweep(func() {
		logger.Info("Worker queue status", zap.Int("depth", w.QueueDepth()))
	}); err != nil {
		logger.Fatal("Failed to register hourly sweep", zap.Error(err))
	}

	b, err := bot.New(cfg.Telegram.Token, p, d, db, store, w, openai, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
