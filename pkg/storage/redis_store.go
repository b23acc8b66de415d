package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/z-wentao/lingoflow/pkg/models"
)

const redisIndexKey = "lingoflow:queries:index"

// RedisRecordStore Redis 记录存储
// 记录以 JSON 保存在 lingoflow:query:{id}，有序集合按时间戳做索引
type RedisRecordStore struct {
	client *redis.Client
	ttl    time.Duration // 0 表示不过期
	ctx    context.Context
}

// NewRedisRecordStore 创建 Redis 记录存储
func NewRedisRecordStore(addr, password string, db int, ttl time.Duration) (*RedisRecordStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	return &RedisRecordStore{
		client: client,
		ttl:    ttl,
		ctx:    ctx,
	}, nil
}

func (rs *RedisRecordStore) getKey(id string) string {
	return fmt.Sprintf("lingoflow:query:%s", id)
}

// Save 没有 ID 的记录无法放进 Redis
func (rs *RedisRecordStore) Save(record *models.QueryRecord) error {
	if record.ID == "" {
		return errors.New("记录缺少 ID")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(rs.ctx, rs.getKey(record.ID), data, rs.ttl)
	pipe.ZAdd(rs.ctx, redisIndexKey, redis.Z{
		Score:  record.UnixSeconds(),
		Member: record.ID,
	})
	if _, err := pipe.Exec(rs.ctx); err != nil {
		return fmt.Errorf("保存到 Redis 失败: %w", err)
	}
	return nil
}

func (rs *RedisRecordStore) Get(id string) (*models.QueryRecord, error) {
	data, err := rs.client.Get(rs.ctx, rs.getKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("从 Redis 获取失败: %w", err)
	}

	var record models.QueryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("反序列化记录失败: %w", err)
	}
	return &record, nil
}

// List 按索引倒序读取，已过期的记录顺便从索引删除
func (rs *RedisRecordStore) List() ([]*models.QueryRecord, error) {
	ids, err := rs.client.ZRevRange(rs.ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("获取记录索引失败: %w", err)
	}

	records := make([]*models.QueryRecord, 0, len(ids))
	for _, id := range ids {
		record, err := rs.Get(id)
		if errors.Is(err, ErrNotFound) {
			rs.client.ZRem(rs.ctx, redisIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (rs *RedisRecordStore) Delete(id string) error {
	deleted, err := rs.client.Del(rs.ctx, rs.getKey(id)).Result()
	if err != nil {
		return fmt.Errorf("删除记录失败: %w", err)
	}
	rs.client.ZRem(rs.ctx, redisIndexKey, id)

	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (rs *RedisRecordStore) DeleteByTimestamp(ts float64) error {
	candidates, err := rs.client.ZRangeByScoreWithScores(rs.ctx, redisIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatFloat(ts-TimestampTolerance, 'f', -1, 64),
		Max: strconv.FormatFloat(ts+TimestampTolerance, 'f', -1, 64),
	}).Result()
	if err != nil {
		return fmt.Errorf("按时间戳查询索引失败: %w", err)
	}

	timestamps := make([]float64, len(candidates))
	for i, z := range candidates {
		timestamps[i] = z.Score
	}
	i := nearest(timestamps, ts)
	if i < 0 {
		return ErrNotFound
	}

	id, _ := candidates[i].Member.(string)
	return rs.Delete(id)
}

func (rs *RedisRecordStore) Close() error {
	return rs.client.Close()
}

// CleanExpired 清理索引中已过期的记录，返回清理数量
func (rs *RedisRecordStore) CleanExpired() (int, error) {
	ids, err := rs.client.ZRange(rs.ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		exists, err := rs.client.Exists(rs.ctx, rs.getKey(id)).Result()
		if err != nil {
			continue
		}
		if exists == 0 {
			rs.client.ZRem(rs.ctx, redisIndexKey, id)
			removed++
		}
	}
	return removed, nil
}
