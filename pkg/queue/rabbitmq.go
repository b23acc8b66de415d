package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
)

// RabbitMQQueue RabbitMQ 队列实现
// 1. 单一 Consumer（所有 Worker 共享）
// 2. 通过 QoS prefetchCount 控制并发
// 3. 手动 Ack/Nack 保证消息可靠性
type RabbitMQQueue struct {
	url       string
	queueName string
	prefetch  int
	closed    chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger

	// 发布消息用的连接和通道
	publishConn    *amqp.Connection
	publishChannel *amqp.Channel
	publishMutex   sync.Mutex

	// 消费消息用的连接和通道
	consumeConn    *amqp.Connection
	consumeChannel *amqp.Channel
	deliveries     <-chan amqp.Delivery // 所有 Worker 共享

	// RabbitMQ Channel 不是并发安全的
	ackMutex sync.Mutex
}

// NewRabbitMQQueue 创建 RabbitMQ 队列，prefetch 一般等于 Worker 数量
func NewRabbitMQQueue(url, queueName string, prefetch int, l *slog.Logger) (*RabbitMQQueue, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	rq := &RabbitMQQueue{
		url:       url,
		queueName: queueName,
		prefetch:  prefetch,
		closed:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.OrDefault(l).With("component", "rabbitmq", "queue", queueName),
	}

	if err := rq.setupPublisher(); err != nil {
		cancel()
		return nil, fmt.Errorf("初始化发布者失败: %w", err)
	}

	if err := rq.setupConsumer(); err != nil {
		cancel()
		rq.closePublisher()
		return nil, fmt.Errorf("初始化消费者失败: %w", err)
	}

	rq.logger.Info("RabbitMQ 队列初始化成功", "prefetch", prefetch)
	return rq, nil
}

func (rq *RabbitMQQueue) dialAndDeclare() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(rq.url)
	if err != nil {
		return nil, nil, fmt.Errorf("连接失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("创建 RabbitMQ Channel 失败: %w", err)
	}

	// 声明持久化队列（幂等操作）
	_, err = ch.QueueDeclare(
		rq.queueName, // name
		true,         // durable
		false,        // autoDelete
		false,        // exclusive
		false,        // noWait
		nil,          // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("声明队列失败: %w", err)
	}
	return conn, ch, nil
}

func (rq *RabbitMQQueue) setupPublisher() error {
	conn, ch, err := rq.dialAndDeclare()
	if err != nil {
		return err
	}
	rq.publishConn = conn
	rq.publishChannel = ch
	return nil
}

func (rq *RabbitMQQueue) setupConsumer() error {
	conn, ch, err := rq.dialAndDeclare()
	if err != nil {
		return err
	}

	// 预取数量 = Worker 数量，每个 Worker 各拿一条
	if err := ch.Qos(rq.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("设置 QoS 失败: %w", err)
	}

	deliveries, err := ch.Consume(
		rq.queueName,         // queue
		"lingoflow-consumer", // consumer tag
		false,                // autoAck: 手动确认
		false,                // exclusive
		false,                // noLocal
		false,                // noWait
		nil,                  // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("启动消费失败: %w", err)
	}

	rq.consumeConn = conn
	rq.consumeChannel = ch
	rq.deliveries = deliveries
	return nil
}

// Enqueue 发布任务，5 秒超时
func (rq *RabbitMQQueue) Enqueue(job *models.LookupJob) error {
	rq.publishMutex.Lock()
	defer rq.publishMutex.Unlock()

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(rq.ctx, 5*time.Second)
	defer cancel()

	err = rq.publishChannel.PublishWithContext(
		ctx,
		"",           // exchange: 默认 exchange
		rq.queueName, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    job.JobID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Dequeue 所有 Worker 共享同一个 deliveries channel，每条消息只会被一个 Worker 读取
func (rq *RabbitMQQueue) Dequeue(ctx context.Context) (*models.LookupJob, error) {
	select {
	case <-rq.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case delivery, ok := <-rq.deliveries:
		if !ok {
			return nil, fmt.Errorf("消费通道已关闭: %w", ErrQueueClosed)
		}

		var job models.LookupJob
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			// 坏消息直接丢弃，不重新入队
			rq.nackInternal(delivery.DeliveryTag, false)
			return nil, fmt.Errorf("反序列化任务失败: %w", err)
		}

		job.DeliveryTag = delivery.DeliveryTag
		job.RabbitMQDelivery = &delivery
		return &job, nil
	}
}

func (rq *RabbitMQQueue) Ack(job *models.LookupJob) error {
	if job.RabbitMQDelivery == nil {
		return nil
	}
	return rq.ackInternal(job.DeliveryTag)
}

func (rq *RabbitMQQueue) Nack(job *models.LookupJob, requeue bool) error {
	if job.RabbitMQDelivery == nil {
		return nil
	}
	return rq.nackInternal(job.DeliveryTag, requeue)
}

func (rq *RabbitMQQueue) ackInternal(deliveryTag uint64) error {
	rq.ackMutex.Lock()
	defer rq.ackMutex.Unlock()

	return rq.consumeChannel.Ack(deliveryTag, false)
}

func (rq *RabbitMQQueue) nackInternal(deliveryTag uint64, requeue bool) error {
	rq.ackMutex.Lock()
	defer rq.ackMutex.Unlock()

	return rq.consumeChannel.Nack(deliveryTag, false, requeue)
}

// Close 关闭队列
func (rq *RabbitMQQueue) Close() error {
	rq.closeOnce.Do(func() {
		close(rq.closed)
		rq.cancel()

		if rq.consumeChannel != nil {
			rq.consumeChannel.Close()
		}
		if rq.consumeConn != nil {
			rq.consumeConn.Close()
		}
		rq.closePublisher()

		rq.logger.Info("RabbitMQ 队列已关闭")
	})
	return nil
}

func (rq *RabbitMQQueue) closePublisher() {
	if rq.publishChannel != nil {
		rq.publishChannel.Close()
	}
	if rq.publishConn != nil {
		rq.publishConn.Close()
	}
}

// QueueInfo 队列中的消息数和消费者数
func (rq *RabbitMQQueue) QueueInfo() (messages, consumers int, err error) {
	rq.publishMutex.Lock()
	defer rq.publishMutex.Unlock()

	q, err := rq.publishChannel.QueueInspect(rq.queueName)
	if err != nil {
		return 0, 0, err
	}
	return q.Messages, q.Consumers, nil
}
