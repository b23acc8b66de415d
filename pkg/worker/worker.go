// Package worker 异步查询任务的 Worker 池
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/queue"
	"github.com/z-wentao/lingoflow/pkg/storage"
)

// Querier 执行单词查询
type Querier interface {
	QueryWord(ctx context.Context, word string, languages []string, exampleCount int) (*models.QueryResult, error)
}

// Pool 多个 Worker 共享一个队列
type Pool struct {
	queue   queue.Queue
	store   *storage.JobStore
	querier Querier
	size    int
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool 创建 Worker 池，size 和 timeout 非正数时使用默认值
func NewPool(q queue.Queue, store *storage.JobStore, querier Querier, size int, timeout time.Duration, l *slog.Logger) *Pool {
	if size <= 0 {
		size = 2
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		queue:   q,
		store:   store,
		querier: querier,
		size:    size,
		timeout: timeout,
		logger:  logger.OrDefault(l).With("component", "worker"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动所有 Worker
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(i + 1)
	}
	p.logger.Info("Worker 池已启动", "size", p.size)
}

// Stop 停止所有 Worker 并等待正在处理的任务结束
func (p *Pool) Stop() {
	p.logger.Info("正在停止 Worker 池...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Worker 池已停止")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	log := p.logger.With("worker", id)

	for {
		job, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				log.Debug("Worker 已停止")
				return
			}
			log.Warn("从队列获取任务失败", "err", err)
			select {
			case <-time.After(time.Second):
			case <-p.ctx.Done():
				return
			}
			continue
		}

		p.process(log, job)
	}
}

// process 处理单个任务；结果写入任务存储后确认消息
func (p *Pool) process(log *slog.Logger, job *models.LookupJob) {
	log = log.With("job_id", job.JobID, "word", job.Word)

	// 通过其他进程入队的任务在本地还没有记录
	if _, err := p.store.Get(job.JobID); errors.Is(err, storage.ErrNotFound) {
		job.Status = models.StatusPending
		_ = p.store.Save(job)
	}
	_ = p.store.Update(job.JobID, func(j *models.LookupJob) {
		j.Status = models.StatusProcessing
	})
	log.Info("开始处理任务")

	// 不继承 p.ctx，Stop 时让正在处理的任务跑完
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.querier.QueryWord(ctx, job.Word, job.Languages, job.ExampleCount)
	if err != nil {
		log.Error("任务失败", "err", err)
		_ = p.store.Update(job.JobID, func(j *models.LookupJob) {
			j.Status = models.StatusFailed
			j.Error = err.Error()
			j.CompletedAt = time.Now()
		})
		if nackErr := p.queue.Nack(job, false); nackErr != nil {
			log.Warn("拒绝消息失败", "err", nackErr)
		}
		return
	}

	_ = p.store.Update(job.JobID, func(j *models.LookupJob) {
		j.Status = models.StatusCompleted
		j.RecordID = result.ID
		j.Result = result
		j.CompletedAt = time.Now()
	})
	if ackErr := p.queue.Ack(job); ackErr != nil {
		log.Warn("确认消息失败", "err", ackErr)
	}
	log.Info("任务完成", "record_id", result.ID, "elapsed", time.Since(start).Round(time.Millisecond))
}
