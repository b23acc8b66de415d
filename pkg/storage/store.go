package storage

import (
	"errors"
	"math"
	"sort"

	"github.com/z-wentao/lingoflow/pkg/models"
)

// ErrNotFound 记录或任务不存在
var ErrNotFound = errors.New("记录不存在")

// TimestampTolerance 按时间戳删除时允许的误差（秒）
const TimestampTolerance = 1e-3

// RecordStore 查询记录存储接口
type RecordStore interface {
	// Save 保存记录，ID 相同时覆盖
	Save(record *models.QueryRecord) error

	// Get 按 ID 获取记录
	Get(id string) (*models.QueryRecord, error)

	// List 列出所有记录，最新的在前
	List() ([]*models.QueryRecord, error)

	// Delete 按 ID 删除记录
	Delete(id string) error

	// DeleteByTimestamp 删除时间戳最接近 ts 且误差在 TimestampTolerance 内的记录
	DeleteByTimestamp(ts float64) error

	// Close 关闭存储连接
	Close() error
}

// sortNewestFirst 按时间倒序排序
func sortNewestFirst(records []*models.QueryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

// nearest 返回时间戳最接近 ts 的下标，超出误差返回 -1
func nearest(timestamps []float64, ts float64) int {
	best, bestDiff := -1, math.Inf(1)
	for i, candidate := range timestamps {
		diff := math.Abs(candidate - ts)
		if diff < TimestampTolerance && diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

// recordKey 去重用的键，旧记录没有 ID 时用时间戳
func recordKey(r *models.QueryRecord) string {
	if r.ID != "" {
		return r.ID
	}
	return r.Word + "@" + r.Timestamp.Format("2006-01-02T15:04:05.000000")
}
