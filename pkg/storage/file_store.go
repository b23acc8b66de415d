package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/utils"
)

// 旧记录的时间戳没有时区，按 UTC 处理
const legacyTimestampLayout = "2006-01-02T15:04:05.999999"

// FileRecordStore 每条记录一个 JSON 文件：<word>_<秒级时间戳，6 位小数>.json
type FileRecordStore struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileRecordStore 创建文件存储，目录不存在时自动创建
func NewFileRecordStore(dir string, l *slog.Logger) (*FileRecordStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建记录目录失败: %w", err)
	}
	return &FileRecordStore{
		dir:    dir,
		logger: logger.OrDefault(l).With("component", "file_store"),
	}, nil
}

// Dir 记录目录
func (s *FileRecordStore) Dir() string {
	return s.dir
}

// Save 写入新文件；同名文件已存在时时间戳加 1 微秒重试
func (s *FileRecordStore) Save(record *models.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID != "" {
		if path, _, err := s.findByID(record.ID); err == nil {
			return s.writeFile(path, record, os.O_WRONLY|os.O_TRUNC)
		}
	}

	word := utils.SanitizeFilename(record.Word)
	for attempt := 0; attempt < 1000; attempt++ {
		path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", word, strconv.FormatFloat(record.UnixSeconds(), 'f', 6, 64)))
		err := s.writeFile(path, record, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		record.Timestamp = record.Timestamp.Add(time.Microsecond)
	}
	return fmt.Errorf("保存记录失败: 文件名冲突过多 (%s)", record.Word)
}

func (s *FileRecordStore) writeFile(path string, record *models.QueryRecord, flag int) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return fmt.Errorf("创建记录文件失败: %w", err)
	}
	_, err = writeRecord(f, buf.Bytes())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// 新建的文件写失败时删掉，避免留下半截记录
		if flag&os.O_EXCL != 0 {
			os.Remove(path)
		}
		return fmt.Errorf("写入记录文件失败: %w", err)
	}
	return nil
}

// writeRecord 测试中替换以模拟写入失败
var writeRecord = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

func (s *FileRecordStore) Get(id string) (*models.QueryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, record, err := s.findByID(id)
	return record, err
}

// List 读取目录下所有记录，无法解析的文件跳过
func (s *FileRecordStore) List() ([]*models.QueryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.scan()
	if err != nil {
		return nil, err
	}

	records := make([]*models.QueryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.record)
	}
	sortNewestFirst(records)
	return records, nil
}

func (s *FileRecordStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, _, err := s.findByID(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("删除记录文件失败: %w", err)
	}
	return nil
}

// DeleteByTimestamp 从文件名解析时间戳，兼容没有 ID 的旧记录
func (s *FileRecordStore) DeleteByTimestamp(ts float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("读取记录目录失败: %w", err)
	}

	paths := make([]string, 0, len(files))
	timestamps := make([]float64, 0, len(files))
	for _, path := range files {
		fileTS, ok := timestampFromFilename(path)
		if !ok {
			continue
		}
		paths = append(paths, path)
		timestamps = append(timestamps, fileTS)
	}

	i := nearest(timestamps, ts)
	if i < 0 {
		return ErrNotFound
	}
	if err := os.Remove(paths[i]); err != nil {
		return fmt.Errorf("删除记录文件失败: %w", err)
	}
	s.logger.Info("已删除记录", "file", filepath.Base(paths[i]))
	return nil
}

func (s *FileRecordStore) Close() error {
	return nil
}

type fileEntry struct {
	path   string
	record *models.QueryRecord
}

func (s *FileRecordStore) scan() ([]fileEntry, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("读取记录目录失败: %w", err)
	}

	entries := make([]fileEntry, 0, len(files))
	for _, path := range files {
		record, err := readRecordFile(path)
		if err != nil {
			s.logger.Warn("跳过无法读取的记录文件", "file", filepath.Base(path), "err", err)
			continue
		}
		entries = append(entries, fileEntry{path: path, record: record})
	}
	return entries, nil
}

func (s *FileRecordStore) findByID(id string) (string, *models.QueryRecord, error) {
	if id == "" {
		return "", nil, ErrNotFound
	}
	entries, err := s.scan()
	if err != nil {
		return "", nil, err
	}
	for _, e := range entries {
		if e.record.ID == id {
			return e.path, e.record, nil
		}
	}
	return "", nil, ErrNotFound
}

// readRecordFile 解析记录文件，兼容无时区的旧时间戳
func readRecordFile(path string) (*models.QueryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		models.QueryRecord
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	record := raw.QueryRecord
	switch {
	case raw.Timestamp == "":
		ts, ok := timestampFromFilename(path)
		if !ok {
			return nil, errors.New("缺少时间戳")
		}
		record.Timestamp = models.FromUnixSeconds(ts)
	default:
		t, err := parseTimestamp(raw.Timestamp)
		if err != nil {
			return nil, err
		}
		record.Timestamp = t
	}
	return &record, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(legacyTimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析时间戳 %q: %w", s, err)
	}
	return t, nil
}

// timestampFromFilename 取最后一个 "_" 之后的部分作为时间戳
func timestampFromFilename(path string) (float64, bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return 0, false
	}
	ts, err := strconv.ParseFloat(name[idx+1:], 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
