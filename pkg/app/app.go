// Package app 按配置组装所有组件，供 HTTP 服务和命令行共用
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/dictionary"
	"github.com/z-wentao/lingoflow/pkg/language"
	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/maimemo"
	"github.com/z-wentao/lingoflow/pkg/queue"
	"github.com/z-wentao/lingoflow/pkg/scheduler"
	"github.com/z-wentao/lingoflow/pkg/storage"
	"github.com/z-wentao/lingoflow/pkg/tts"
	"github.com/z-wentao/lingoflow/pkg/worker"
)

// App 应用上下文
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	LLM        *llm.Service
	Languages  *language.Registry
	Dictionary *dictionary.Service
	Records    storage.RecordStore
	Jobs       *storage.JobStore
	Queue      queue.Queue
	Workers    *worker.Pool
	Scheduler  *scheduler.Scheduler
}

// New 创建所有组件，但不启动后台任务
func New(cfg *config.Config, l *slog.Logger) (*App, error) {
	l = logger.OrDefault(l)

	llmClient := llm.NewClient(cfg.LLM, l)
	llmService := llm.NewService(llmClient, llm.NewRecentWords(llm.DefaultRecentWords), l)

	router, err := tts.NewRouterFromConfig(cfg.TTS, l)
	if err != nil {
		return nil, err
	}
	registry := language.NewRegistry(llmClient, router, l)

	records, cleaner, err := NewRecordStore(cfg.Storage, l)
	if err != nil {
		return nil, err
	}

	q, err := NewQueue(cfg.Queue, cfg.Worker.PoolSize, l)
	if err != nil {
		records.Close()
		return nil, err
	}

	dict := dictionary.NewService(llmService, registry, records, cfg.TTS.MaxConcurrency, l)
	jobs := storage.NewJobStore()

	a := &App{
		Config:     cfg,
		Logger:     l,
		LLM:        llmService,
		Languages:  registry,
		Dictionary: dict,
		Records:    records,
		Jobs:       jobs,
		Queue:      q,
		Workers:    worker.NewPool(q, jobs, dict, cfg.Worker.PoolSize, time.Duration(cfg.Worker.TimeoutSeconds)*time.Second, l),
		Scheduler:  scheduler.New(cfg.Scheduler, llmService, dict, cleaner, l),
	}
	return a, nil
}

// NewRecordStore 按存储类型创建记录存储；Redis 参与时同时返回索引清理器
func NewRecordStore(cfg config.StorageConfig, l *slog.Logger) (storage.RecordStore, scheduler.IndexCleaner, error) {
	ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour

	switch cfg.Type {
	case "", "file":
		s, err := storage.NewFileRecordStore(cfg.Dir, l)
		return s, nil, err

	case "memory":
		return storage.NewMemoryRecordStore(), nil, nil

	case "redis":
		s, err := storage.NewRedisRecordStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, ttl)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case "postgres":
		s, err := newPostgres(cfg.Postgres.DSN)
		return s, nil, err

	case "hybrid":
		hot, err := storage.NewRedisRecordStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, ttl)
		if err != nil {
			return nil, nil, err
		}
		durable, err := newPostgres(cfg.Postgres.DSN)
		if err != nil {
			hot.Close()
			return nil, nil, err
		}
		return storage.NewHybridRecordStore(hot, durable, l), hot, nil
	}
	return nil, nil, fmt.Errorf("不支持的存储类型: %s", cfg.Type)
}

func newPostgres(dsn string) (*storage.PostgresRecordStore, error) {
	s, err := storage.NewPostgresRecordStore(dsn)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewQueue 按队列类型创建任务队列，prefetch 为 RabbitMQ 的预取数量
func NewQueue(cfg config.QueueConfig, prefetch int, l *slog.Logger) (queue.Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return queue.NewMemoryQueue(cfg.BufferSize), nil
	case "rabbitmq":
		return queue.NewRabbitMQQueue(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName, prefetch, l)
	}
	return nil, fmt.Errorf("不支持的队列类型: %s", cfg.Type)
}

// Maimemo 用调用方提供的 token 创建墨墨客户端
func (a *App) Maimemo(token string) *maimemo.Client {
	return maimemo.NewClient(a.Config.Maimemo.BaseURL, token, a.Logger)
}

// Start 启动 Worker 池和调度器
func (a *App) Start() error {
	a.Workers.Start()
	return a.Scheduler.Start()
}

// Close 按依赖顺序关闭：先停后台任务，再关队列和存储
func (a *App) Close() error {
	a.Scheduler.Stop()
	a.Workers.Stop()
	return errors.Join(
		a.Queue.Close(),
		a.Jobs.Close(),
		a.Records.Close(),
	)
}
