package queue

import (
	"context"
	"sync"

	"github.com/z-wentao/lingoflow/pkg/models"
)

// MemoryQueue 基于 Channel 的内存队列实现
type MemoryQueue struct {
	queue     chan *models.LookupJob
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MemoryQueue{
		queue:  make(chan *models.LookupJob, bufferSize),
		closed: make(chan struct{}),
	}
}

// Enqueue 将任务加入队列，队列满时立即返回错误
func (mq *MemoryQueue) Enqueue(job *models.LookupJob) error {
	select {
	case <-mq.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case mq.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue 从队列取出任务（阻塞等待）
func (mq *MemoryQueue) Dequeue(ctx context.Context) (*models.LookupJob, error) {
	select {
	case job := <-mq.queue:
		return job, nil
	case <-mq.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack 内存队列无需确认
func (mq *MemoryQueue) Ack(*models.LookupJob) error {
	return nil
}

// Nack requeue 为 true 时放回队列
func (mq *MemoryQueue) Nack(job *models.LookupJob, requeue bool) error {
	if !requeue {
		return nil
	}
	return mq.Enqueue(job)
}

// Len 队列中等待的任务数
func (mq *MemoryQueue) Len() int {
	return len(mq.queue)
}

// Close 关闭队列
func (mq *MemoryQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.closed) })
	return nil
}
