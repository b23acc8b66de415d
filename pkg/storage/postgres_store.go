package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/z-wentao/lingoflow/pkg/models"
)

const querySchema = `
CREATE TABLE IF NOT EXISTS query_records (
    id         TEXT PRIMARY KEY,
    word       TEXT NOT NULL,
    languages  JSONB NOT NULL,
    results    JSONB NOT NULL,
    ts         DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_records_ts ON query_records (ts DESC);
`

type PostgresRecordStore struct {
	db *sql.DB
}

// NewPostgresRecordStore 创建 PostgreSQL 记录存储
func NewPostgresRecordStore(connStr string) (*PostgresRecordStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &PostgresRecordStore{db: db}, nil
}

// EnsureSchema 建表（幂等）
func (s *PostgresRecordStore) EnsureSchema() error {
	if _, err := s.db.Exec(querySchema); err != nil {
		return fmt.Errorf("创建数据表失败: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) Save(record *models.QueryRecord) error {
	if record.ID == "" {
		return errors.New("记录缺少 ID")
	}

	languagesJSON, err := json.Marshal(record.Languages)
	if err != nil {
		return fmt.Errorf("序列化 languages 失败: %w", err)
	}
	resultsJSON, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("序列化 results 失败: %w", err)
	}

	query := `
    INSERT INTO query_records (id, word, languages, results, ts, created_at)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id)
    DO UPDATE SET
    word = EXCLUDED.word,
    languages = EXCLUDED.languages,
    results = EXCLUDED.results,
    ts = EXCLUDED.ts,
    created_at = EXCLUDED.created_at
    `

	_, err = s.db.Exec(query,
		record.ID,
		record.Word,
		languagesJSON,
		resultsJSON,
		record.UnixSeconds(),
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("保存到数据库失败: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, word, languages, results, created_at FROM query_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.QueryRecord, error) {
	var record models.QueryRecord
	var languagesJSON, resultsJSON []byte

	if err := row.Scan(&record.ID, &record.Word, &languagesJSON, &resultsJSON, &record.Timestamp); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(languagesJSON, &record.Languages); err != nil {
		return nil, fmt.Errorf("反序列化 languages 失败: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &record.Results); err != nil {
		return nil, fmt.Errorf("反序列化 results 失败: %w", err)
	}
	record.Timestamp = record.Timestamp.UTC()
	return &record, nil
}

func (s *PostgresRecordStore) Get(id string) (*models.QueryRecord, error) {
	record, err := scanRecord(s.db.QueryRow(selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	return record, nil
}

// List 按时间倒序列出记录
func (s *PostgresRecordStore) List() ([]*models.QueryRecord, error) {
	rows, err := s.db.Query(selectColumns + ` ORDER BY ts DESC`)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	records := make([]*models.QueryRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresRecordStore) Delete(id string) error {
	return s.execDelete(`DELETE FROM query_records WHERE id = $1`, id)
}

// DeleteByTimestamp 删除误差范围内最接近的一条
func (s *PostgresRecordStore) DeleteByTimestamp(ts float64) error {
	query := `
    DELETE FROM query_records WHERE id = (
        SELECT id FROM query_records
        WHERE abs(ts - $1) < $2
        ORDER BY abs(ts - $1)
        LIMIT 1
    )
    `
	return s.execDelete(query, ts, TimestampTolerance)
}

func (s *PostgresRecordStore) execDelete(query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("删除记录失败: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("获取删除结果失败: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRecordStore) Close() error {
	return s.db.Close()
}
