package models

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// LookupJob 异步查询任务
type LookupJob struct {
	JobID        string       `json:"job_id"`
	Word         string       `json:"word"`
	Languages    []string     `json:"languages"`
	ExampleCount int          `json:"example_count"`
	Status       JobStatus    `json:"status"`
	RecordID     string       `json:"record_id,omitempty"`
	Result       *QueryResult `json:"result,omitempty"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	CompletedAt  time.Time    `json:"completed_at"`

	// RabbitMQ 相关（不序列化到 JSON）
	DeliveryTag      uint64 `json:"-"`
	RabbitMQDelivery any    `json:"-"`
}

// Done 任务是否已结束
func (j *LookupJob) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
