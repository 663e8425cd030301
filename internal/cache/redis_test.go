package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/apiserver/config"
)

func TestOpenWithoutAddress(t *testing.T) {
	c, err := Open(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestUnreachableServerReportsErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewLeaderboardCache(client, 0)
	defer c.Close()

	assert.Equal(t, defaultTTL, c.ttl)

	_, _, ok, err := c.Get(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Invalidate(context.Background()))
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "sentinel:leaderboard:v0", snapshotKey(0))
	assert.Equal(t, "sentinel:leaderboard:v12", snapshotKey(12))
}
