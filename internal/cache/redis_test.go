package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

func newTestClient(t *testing.T, limit int64) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := newRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), config.RedisConfig{
		RecentLimit: limit,
		TTL:         time.Hour,
	})
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func record(device string, i int) models.FaultRecord {
	return models.FaultRecord{
		ID:             fmt.Sprintf("rec-%d", i),
		DeviceID:       device,
		Timestamp:      time.Date(2024, 6, 1, 8, i, 0, 0, time.UTC),
		DiagnosticName: "Temperature Sensor Dx",
		Message:        "Temperature Sensor Dx: No problems were detected.",
		Color:          models.ColorGreen,
	}
}

func TestInsertRowAndRecentFaults(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestClient(t, 3)

	for i := 0; i < 4; i++ {
		require.NoError(t, r.InsertRow(ctx, models.FaultTable, record("ahu-1", i)))
	}
	require.NoError(t, r.InsertRow(ctx, models.FaultTable, record("ahu-2", 9)))

	all, err := r.GetRecentFaults(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3, "global list is trimmed")
	assert.Equal(t, "rec-9", all[0].ID)
	assert.Equal(t, "rec-3", all[1].ID)

	dev, err := r.GetRecentFaults(ctx, "ahu-1", 2)
	require.NoError(t, err)
	require.Len(t, dev, 2)
	assert.Equal(t, []string{"rec-3", "rec-2"}, []string{dev[0].ID, dev[1].ID})
	assert.Equal(t, time.Date(2024, 6, 1, 8, 3, 0, 0, time.UTC), dev[0].Timestamp.UTC())

	assert.Equal(t, time.Hour, mr.TTL("fault:ahu-1:rec-3"))
}

func TestRecentFaultsSkipsExpiredRows(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestClient(t, 0)

	require.NoError(t, r.InsertRow(ctx, models.FaultTable, record("ahu-1", 1)))
	require.NoError(t, r.InsertRow(ctx, models.FaultTable, record("ahu-1", 2)))
	mr.Del("fault:ahu-1:rec-2")

	got, err := r.GetRecentFaults(ctx, "ahu-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rec-1", got[0].ID)
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
