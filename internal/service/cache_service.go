package service

import (
	"context"
	"encoding/json"
	"school_quiz_backend/internal/config"
	"school_quiz_backend/pkg/logger"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

/* =========================================================
   读穿缓存。纯优化层：任何 redis 故障只影响延迟，不影响正确性。
   所有写操作在返回前同步失效其影响范围内的 key。
========================================================= */

type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeleteByPrefix(ctx context.Context, prefix string)
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) bool {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		logger.Log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		logger.Log.Warn("cache entry unmarshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Log.Warn("cache entry marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warn("cache delete failed", zap.Error(err))
	}
}

// DeleteByPrefix 用 SCAN 游标逐批删除，避免 KEYS 阻塞
func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			logger.Log.Warn("cache scan failed", zap.String("prefix", prefix), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				logger.Log.Warn("cache delete failed", zap.Error(err))
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

/* =========================================================
   key 构造与各资源的 TTL
========================================================= */

type CacheTTLs struct {
	Quiz   time.Duration
	List   time.Duration
	Result time.Duration
}

func TTLsFromConfig(cfg *config.CacheConfig) CacheTTLs {
	return CacheTTLs{
		Quiz:   ttlOrDefault(cfg.QuizTTLSeconds, 5*time.Minute),
		List:   ttlOrDefault(cfg.ListTTLSeconds, time.Minute),
		Result: ttlOrDefault(cfg.ResultTTLSeconds, 2*time.Minute),
	}
}

func ttlOrDefault(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

func quizCacheKey(quizID string, role string) string {
	return "quiz:def:" + quizID + ":" + role
}

func classQuizzesCacheKey(schoolID, classID, role string, page, limit int) string {
	return "quiz:class:" + schoolID + ":" + classID + ":" + role + ":" + pageKey(page, limit)
}

func schoolQuizzesCacheKey(schoolID, role string, page, limit int) string {
	return "quiz:school:" + schoolID + ":" + role + ":" + pageKey(page, limit)
}

func resultCacheKey(resultID string) string {
	return "result:id:" + resultID
}

func quizResultsCacheKey(quizID string, page, limit int) string {
	return "result:quiz:" + quizID + ":" + pageKey(page, limit)
}

func studentResultsCacheKey(studentID string, page, limit int) string {
	return "result:student:" + studentID + ":" + pageKey(page, limit)
}

func pageKey(page, limit int) string {
	return "p" + strconv.Itoa(page) + ":l" + strconv.Itoa(limit)
}
