package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/logging"
	mysqlClient "docqa/internal/platform/mysql"
	rabbitmqClient "docqa/internal/platform/rabbitmq"
	redisClient "docqa/internal/platform/redis"
	"docqa/internal/repository"
	"docqa/internal/worker"
)

type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	MySQL        *gorm.DB
	Redis        *redis.Client
	MQConn       *amqp.Connection
	IngestWorker *worker.IngestWorker

	Engine *Engine
	Files  *app.FileService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	a.Redis = redisCli

	engine, err := NewEngine(cfg, redisCli, a.Logger)
	if err != nil {
		return err
	}
	a.Engine = engine

	var publisher app.IngestPublisher
	if cfg.Ingest.Async {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
		publisher = rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)
	}

	files, err := app.NewFileService(
		repository.NewFileRepository(mysqlDB),
		engine.RAG,
		publisher,
		cfg.App.UploadDir,
		a.Logger,
	)
	if err != nil {
		return err
	}
	a.Files = files

	if a.MQConn != nil {
		ingestWorker := worker.NewIngestWorker(a.MQConn, files, cfg.RabbitMQ.IngestQueue, a.Logger)
		if err := ingestWorker.Start(ctx); err != nil {
			return fmt.Errorf("start ingest worker failed: %w", err)
		}
		a.IngestWorker = ingestWorker
	}

	a.Logger.Info("app initialized",
		zap.String("env", cfg.App.Env),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("async_ingest", cfg.Ingest.Async),
		zap.Bool("raw_text_cache", redisCli != nil),
		zap.Int("index_chunks", engine.Index.Count()),
	)
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		if err := mysqlClient.Close(a.MySQL); err != nil {
			closeErr = err
		}
	}
	if a.Engine != nil {
		if err := a.Engine.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
