package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRevokerBypassesWithoutRedis(t *testing.T) {
	ctx := context.Background()
	r := NewRevoker(ctx, nil, nil)
	require.False(t, r.Available())

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
	require.NoError(t, r.Close())
}

func TestRevokerFallsBackWhenRedisUnreachable(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := NewRevoker(context.Background(), &redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	}, logger)
	require.False(t, r.Available())
}
