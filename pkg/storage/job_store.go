package storage

import (
	"sort"
	"sync"

	"github.com/z-wentao/lingoflow/pkg/models"
)

// JobStore 异步查询任务存储（内存实现）
// Get 和 List 返回副本，修改只能通过 Update
type JobStore struct {
	jobs map[string]*models.LookupJob
	mu   sync.RWMutex
}

// NewJobStore 创建任务存储
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*models.LookupJob),
	}
}

// Save 保存任务
func (js *JobStore) Save(job *models.LookupJob) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	cp := *job
	js.jobs[job.JobID] = &cp
	return nil
}

// Get 获取任务
func (js *JobStore) Get(jobID string) (*models.LookupJob, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return nil, ErrNotFound
	}

	cp := *job
	return &cp, nil
}

// Update 在锁内修改任务
func (js *JobStore) Update(jobID string, updateFn func(*models.LookupJob)) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return ErrNotFound
	}

	updateFn(job)
	return nil
}

// List 列出所有任务，最新的在前
func (js *JobStore) List() ([]*models.LookupJob, error) {
	js.mu.RLock()
	jobs := make([]*models.LookupJob, 0, len(js.jobs))
	for _, job := range js.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	js.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Close 关闭存储（内存存储无需关闭）
func (js *JobStore) Close() error {
	return nil
}
