// Package scheduler 定时任务：每日单词和 Redis 索引清理
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
)

// WordSource 生成随机单词
type WordSource interface {
	GenerateRandomWord(ctx context.Context, style string) (string, error)
}

// Querier 执行单词查询
type Querier interface {
	QueryWord(ctx context.Context, word string, languages []string, exampleCount int) (*models.QueryResult, error)
}

// IndexCleaner 清理过期的索引项
type IndexCleaner interface {
	CleanExpired() (int, error)
}

// Scheduler 基于 cron 表达式的定时任务
type Scheduler struct {
	cfg     config.SchedulerConfig
	words   WordSource
	querier Querier
	cleaner IndexCleaner // 可以为 nil
	timeout time.Duration
	logger  *slog.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New 创建调度器，cleaner 为 nil 时不注册清理任务
func New(cfg config.SchedulerConfig, words WordSource, querier Querier, cleaner IndexCleaner, l *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:     cfg,
		words:   words,
		querier: querier,
		cleaner: cleaner,
		timeout: 5 * time.Minute,
		logger:  logger.OrDefault(l).With("component", "scheduler"),
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 注册已配置的任务并启动；没有任何任务时不启动
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	jobs := 0
	if s.cfg.WordOfTheDay != "" {
		if _, err := s.cron.AddFunc(s.cfg.WordOfTheDay, func() { s.RunWordOfTheDay() }); err != nil {
			return fmt.Errorf("无效的每日单词 cron 表达式 '%s': %w", s.cfg.WordOfTheDay, err)
		}
		jobs++
	}
	if s.cfg.IndexCleanupCron != "" && s.cleaner != nil {
		if _, err := s.cron.AddFunc(s.cfg.IndexCleanupCron, func() { s.RunIndexCleanup() }); err != nil {
			return fmt.Errorf("无效的索引清理 cron 表达式 '%s': %w", s.cfg.IndexCleanupCron, err)
		}
		jobs++
	}

	if jobs == 0 {
		s.logger.Info("未配置定时任务")
		return nil
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("调度器已启动", "jobs", jobs)
	return nil
}

// Stop 停止接受新任务并等待正在运行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("调度器已停止")
}

// RunWordOfTheDay 生成随机单词并查询
func (s *Scheduler) RunWordOfTheDay() (*models.QueryResult, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	word, err := s.words.GenerateRandomWord(ctx, s.cfg.WordStyle)
	if err != nil {
		s.logger.Warn("生成每日单词失败", "style", s.cfg.WordStyle, "err", err)
		return nil, err
	}

	result, err := s.querier.QueryWord(ctx, word, s.cfg.Languages, s.cfg.ExampleCount)
	if err != nil {
		s.logger.Error("每日单词查询失败", "word", word, "err", err)
		return nil, err
	}

	s.logger.Info("每日单词", "word", word, "id", result.ID)
	return result, nil
}

// RunIndexCleanup 清理过期索引
func (s *Scheduler) RunIndexCleanup() {
	if s.cleaner == nil {
		return
	}
	removed, err := s.cleaner.CleanExpired()
	if err != nil {
		s.logger.Warn("清理索引失败", "err", err)
		return
	}
	s.logger.Info("索引清理完成", "removed", removed)
}
