package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const revokedKeyPrefix = "auth:revoked:"

// Revoker records logged-out token ids in Redis until they would have expired anyway.
// A Revoker without a reachable Redis accepts every token and drops revocations.
type Revoker struct {
	client *redis.Client
	logger logrus.FieldLogger
	now    func() time.Time

	warnedUnavailable atomic.Bool
}

// NewRevoker pings Redis and falls back to bypass mode when it is unreachable.
func NewRevoker(ctx context.Context, opts *redis.Options, logger logrus.FieldLogger) *Revoker {
	if opts == nil || opts.Addr == "" {
		return &Revoker{logger: logger, now: time.Now}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if logger != nil {
			logger.WithError(err).Warn("redis unavailable, token revocation disabled")
		}
		_ = client.Close()
		return &Revoker{logger: logger, now: time.Now}
	}
	return &Revoker{client: client, logger: logger, now: time.Now}
}

// NewRevokerWithClient wraps an existing client without pinging it.
func NewRevokerWithClient(client *redis.Client, logger logrus.FieldLogger) *Revoker {
	return &Revoker{client: client, logger: logger, now: time.Now}
}

// Available reports whether revocations are persisted.
func (r *Revoker) Available() bool {
	return r != nil && r.client != nil
}

// Revoke marks the token id as logged out until expiresAt.
func (r *Revoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !r.Available() || tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// IsRevoked reports whether the token id was logged out.
func (r *Revoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !r.Available() || tokenID == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.warnUnavailableOnce(err)
		return false, err
	}
	return n > 0, nil
}

// Close releases the Redis connection.
func (r *Revoker) Close() error {
	if !r.Available() {
		return nil
	}
	return r.client.Close()
}

func (r *Revoker) warnUnavailableOnce(err error) {
	if r.logger == nil {
		return
	}
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.logger.WithError(err).Warn("redis unavailable, bypassing token revocation")
	}
}
