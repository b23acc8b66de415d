package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
)

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(2)

	require.NoError(t, q.Enqueue(&models.LookupJob{JobID: "1"}))
	require.NoError(t, q.Enqueue(&models.LookupJob{JobID: "2"}))
	assert.ErrorIs(t, q.Enqueue(&models.LookupJob{JobID: "3"}), ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", job.JobID)

	require.NoError(t, q.Nack(job, true))
	job, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", job.JobID)
	job, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", job.JobID, "requeued job comes back")
}

func TestMemoryQueue_DequeueCancel(t *testing.T) {
	q := NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Enqueue(&models.LookupJob{}), ErrQueueClosed)
}

func TestRabbitMQQueue(t *testing.T) {
	url := os.Getenv("LINGOFLOW_TEST_RABBITMQ_URL")
	if url == "" {
		t.Skip("LINGOFLOW_TEST_RABBITMQ_URL 未设置")
	}

	q, err := NewRabbitMQQueue(url, "lingoflow_test_lookups", 1, logger.Discard())
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue(&models.LookupJob{JobID: "job-1", Word: "hello", Languages: []string{"en"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, "hello", job.Word)
	assert.NotNil(t, job.RabbitMQDelivery)
	require.NoError(t, q.Ack(job))
}
