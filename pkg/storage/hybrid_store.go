package storage

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
)

const (
	hybridBatchSize     = 50
	hybridFlushInterval = 5 * time.Second
)

// HybridRecordStore 混合存储：Redis（热数据）+ 持久化存储（冷数据）
// 写入立即进 Redis，持久化存储由后台批量同步
type HybridRecordStore struct {
	hot       RecordStore
	durable   RecordStore
	syncQueue chan *models.QueryRecord
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once

	// 尚未同步的记录和同步前已被删除的记录
	mu       sync.Mutex
	pending  map[string]int
	deleted  map[string]struct{}
	interval time.Duration
	logger   *slog.Logger
}

// NewHybridRecordStore 创建混合存储并启动同步协程
func NewHybridRecordStore(hot, durable RecordStore, l *slog.Logger) *HybridRecordStore {
	return newHybridRecordStore(hot, durable, hybridFlushInterval, l)
}

func newHybridRecordStore(hot, durable RecordStore, interval time.Duration, l *slog.Logger) *HybridRecordStore {
	s := &HybridRecordStore{
		hot:       hot,
		durable:   durable,
		syncQueue: make(chan *models.QueryRecord, 100),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		pending:   make(map[string]int),
		deleted:   make(map[string]struct{}),
		interval:  interval,
		logger:    logger.OrDefault(l).With("component", "hybrid_store"),
	}

	go s.syncWorker()

	s.logger.Info("混合存储初始化成功")
	return s
}

// Save 立即写热存储，异步写持久化存储
// 写热存储之前先登记 pending，保证并发的 Delete 能留下删除标记
func (s *HybridRecordStore) Save(record *models.QueryRecord) error {
	s.track(record.ID)
	if err := s.hot.Save(record); err != nil {
		s.untrack(record.ID)
		s.logger.Warn("Redis 写入失败，直接写持久化存储", "id", record.ID, "err", err)
		return s.durable.Save(record)
	}

	s.asyncSync(record)
	return nil
}

// Get 优先热存储，未命中查持久化存储并回写
func (s *HybridRecordStore) Get(id string) (*models.QueryRecord, error) {
	record, err := s.hot.Get(id)
	if err == nil {
		return record, nil
	}

	record, err = s.durable.Get(id)
	if err != nil {
		return nil, err
	}

	if err := s.hot.Save(record); err != nil {
		s.logger.Warn("回写 Redis 失败", "id", id, "err", err)
	}
	return record, nil
}

// List 合并两层数据，热存储失败时只用持久化存储
func (s *HybridRecordStore) List() ([]*models.QueryRecord, error) {
	durable, err := s.durable.List()
	if err != nil {
		return nil, err
	}

	hot, err := s.hot.List()
	if err != nil {
		s.logger.Warn("Redis 列表查询失败，降级到持久化存储", "err", err)
		return durable, nil
	}

	seen := make(map[string]struct{}, len(hot)+len(durable))
	merged := make([]*models.QueryRecord, 0, len(hot)+len(durable))
	for _, list := range [][]*models.QueryRecord{hot, durable} {
		for _, r := range list {
			key := recordKey(r)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}
	sortNewestFirst(merged)
	return merged, nil
}

// Delete 两层都删除，任一层存在即成功
func (s *HybridRecordStore) Delete(id string) error {
	s.mu.Lock()
	if s.pending[id] > 0 {
		s.deleted[id] = struct{}{}
	}
	s.mu.Unlock()

	hotErr := s.hot.Delete(id)
	durableErr := s.durable.Delete(id)
	if hotErr == nil || durableErr == nil {
		return nil
	}
	if !errors.Is(hotErr, ErrNotFound) {
		s.logger.Warn("Redis 删除失败", "id", id, "err", hotErr)
	}
	return durableErr
}

// DeleteByTimestamp 先在合并列表中定位，有 ID 的记录按 ID 删除
func (s *HybridRecordStore) DeleteByTimestamp(ts float64) error {
	records, err := s.List()
	if err != nil {
		return err
	}

	timestamps := make([]float64, len(records))
	for i, r := range records {
		timestamps[i] = r.UnixSeconds()
	}
	i := nearest(timestamps, ts)
	if i < 0 {
		return ErrNotFound
	}

	if id := records[i].ID; id != "" {
		return s.Delete(id)
	}
	return s.durable.DeleteByTimestamp(ts)
}

// Close 停止同步协程，写完剩余数据后关闭两层存储
func (s *HybridRecordStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		select {
		case <-s.doneCh:
		case <-time.After(5 * time.Second):
			s.logger.Warn("同步队列清空超时", "remaining", len(s.syncQueue))
		}
	})

	hotErr := s.hot.Close()
	durableErr := s.durable.Close()
	s.logger.Info("混合存储已关闭")
	return errors.Join(hotErr, durableErr)
}

func (s *HybridRecordStore) track(id string) {
	s.mu.Lock()
	s.pending[id]++
	s.mu.Unlock()
}

// untrack 减少 pending 计数，返回期间是否被删除
func (s *HybridRecordStore) untrack(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, gone := s.deleted[id]
	if s.pending[id]--; s.pending[id] <= 0 {
		delete(s.pending, id)
		delete(s.deleted, id)
	}
	return gone
}

func (s *HybridRecordStore) isDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, gone := s.deleted[id]
	return gone
}

func (s *HybridRecordStore) asyncSync(record *models.QueryRecord) {
	select {
	case s.syncQueue <- record:
	default:
		s.logger.Warn("同步队列已满，同步写入持久化存储")
		s.batchSave([]*models.QueryRecord{record})
	}
}

// syncWorker 批量写入（50 条或 5 秒）
func (s *HybridRecordStore) syncWorker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	batch := make([]*models.QueryRecord, 0, hybridBatchSize)

	for {
		select {
		case record := <-s.syncQueue:
			batch = append(batch, record)
			if len(batch) >= hybridBatchSize {
				s.batchSave(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.batchSave(batch)
				batch = batch[:0]
			}

		case <-s.stopCh:
			for drained := false; !drained; {
				select {
				case record := <-s.syncQueue:
					batch = append(batch, record)
				default:
					drained = true
				}
			}
			s.batchSave(batch)
			return
		}
	}
}

func (s *HybridRecordStore) batchSave(records []*models.QueryRecord) {
	if len(records) == 0 {
		return
	}

	saved := 0
	for _, record := range records {
		if s.syncOne(record) {
			saved++
		}
	}

	s.logger.Debug("批量同步完成", "saved", saved, "total", len(records))
}

// syncOne 写入持久化存储时不持锁；写入期间被删除的记录写完后再删掉
func (s *HybridRecordStore) syncOne(record *models.QueryRecord) bool {
	if s.isDeleted(record.ID) {
		s.untrack(record.ID)
		return false
	}

	err := s.durable.Save(record)
	if s.untrack(record.ID) {
		if err == nil {
			if delErr := s.durable.Delete(record.ID); delErr != nil && !errors.Is(delErr, ErrNotFound) {
				s.logger.Warn("删除已同步的记录失败", "id", record.ID, "err", delErr)
			}
		}
		return false
	}
	if err != nil {
		s.logger.Error("同步记录失败", "id", record.ID, "err", err)
		return false
	}
	return true
}
