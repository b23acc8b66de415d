package storage

import (
	"sync"

	"github.com/z-wentao/lingoflow/pkg/models"
)

// MemoryRecordStore 内存记录存储，进程退出即丢失
type MemoryRecordStore struct {
	records map[string]*models.QueryRecord
	mu      sync.RWMutex
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]*models.QueryRecord),
	}
}

func (s *MemoryRecordStore) Save(record *models.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey(record)] = record
	return nil
}

func (s *MemoryRecordStore) Get(id string) (*models.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *MemoryRecordStore) List() ([]*models.QueryRecord, error) {
	s.mu.RLock()
	records := make([]*models.QueryRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mu.RUnlock()

	sortNewestFirst(records)
	return records, nil
}

func (s *MemoryRecordStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryRecordStore) DeleteByTimestamp(ts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.records))
	timestamps := make([]float64, 0, len(s.records))
	for k, r := range s.records {
		keys = append(keys, k)
		timestamps = append(timestamps, r.UnixSeconds())
	}

	i := nearest(timestamps, ts)
	if i < 0 {
		return ErrNotFound
	}
	delete(s.records, keys[i])
	return nil
}

func (s *MemoryRecordStore) Close() error {
	return nil
}
