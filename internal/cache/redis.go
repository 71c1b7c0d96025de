package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const recentKey = "faults:recent"

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
	limit  int64
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return newRedisClient(client, cfg), nil
}

func newRedisClient(client *redis.Client, cfg config.RedisConfig) *RedisClient {
	limit := cfg.RecentLimit
	if limit <= 0 {
		limit = 1000
	}
	return &RedisClient{client: client, ttl: cfg.TTL, limit: limit}
}

func faultKey(rec models.FaultRecord) string {
	return fmt.Sprintf("fault:%s:%s", rec.DeviceID, rec.ID)
}

func deviceRecentKey(deviceID string) string {
	return recentKey + ":" + deviceID
}

// InsertRow caches rec and pushes it onto the global and per-device recent
// lists. The table name is not part of the key; every row shares one table.
func (r *RedisClient) InsertRow(ctx context.Context, _ string, rec models.FaultRecord) error {
	key := faultKey(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal fault: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, r.ttl)
		for _, list := range []string{recentKey, deviceRecentKey(rec.DeviceID)} {
			pipe.LPush(ctx, list, key)
			pipe.LTrim(ctx, list, 0, r.limit-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store fault in Redis: %w", err)
	}
	return nil
}

// GetRecentFaults returns up to count rows, newest first. An empty deviceID
// reads the global list.
func (r *RedisClient) GetRecentFaults(ctx context.Context, deviceID string, count int64) ([]models.FaultRecord, error) {
	listKey := recentKey
	if deviceID != "" {
		listKey = deviceRecentKey(deviceID)
	}

	keys, err := r.client.LRange(ctx, listKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent fault keys: %w", err)
	}

	faults := make([]models.FaultRecord, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get fault %s: %w", key, err)
		}

		var rec models.FaultRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		faults = append(faults, rec)
	}

	return faults, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
