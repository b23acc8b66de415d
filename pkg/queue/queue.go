package queue

import (
	"context"
	"errors"

	"github.com/z-wentao/lingoflow/pkg/models"
)

var (
	ErrQueueFull   = errors.New("队列已满")
	ErrQueueClosed = errors.New("队列已关闭")
)

// Queue 查询任务队列接口，内存和 RabbitMQ 两种实现
type Queue interface {
	// Enqueue 将任务加入队列
	Enqueue(job *models.LookupJob) error

	// Dequeue 从队列取出任务（阻塞，ctx 取消时返回）
	Dequeue(ctx context.Context) (*models.LookupJob, error)

	// Ack 确认消息（任务处理结束）
	Ack(job *models.LookupJob) error

	// Nack 拒绝消息
	// requeue: 是否重新入队
	Nack(job *models.LookupJob, requeue bool) error

	// Close 关闭队列
	Close() error
}
