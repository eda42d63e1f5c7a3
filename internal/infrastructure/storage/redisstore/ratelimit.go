package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ContentRewriter/internal/config"
	"ContentRewriter/internal/ports"
)

const defaultPrefix = "ratelimit:"

// RateLimitStore keeps last request times as unix nanoseconds in Redis.
type RateLimitStore struct {
	client *redis.Client
	prefix string
}

var _ ports.RateLimitStore = (*RateLimitStore)(nil)

// Connect parses a redis:// URL or a host:port address and pings the server.
func Connect(ctx context.Context, cfg config.RedisConfig) (*RateLimitStore, error) {
	client, err := newClient(cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, cfg.KeyPrefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *RateLimitStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RateLimitStore{client: client, prefix: prefix}
}

func newClient(rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("redis url is empty")
	}
	if strings.HasPrefix(rawURL, "redis://") || strings.HasPrefix(rawURL, "rediss://") {
		opt, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: rawURL}), nil
}

func (s *RateLimitStore) key(service string) string {
	return s.prefix + service
}

func (s *RateLimitStore) LastRequest(ctx context.Context, service string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.key(service)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get %s: %w", s.key(service), err)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode %s: %w", s.key(service), err)
	}
	return time.Unix(0, nanos), true, nil
}

func (s *RateLimitStore) TouchRequest(ctx context.Context, service string, at time.Time) error {
	if err := s.client.Set(ctx, s.key(service), strconv.FormatInt(at.UnixNano(), 10), 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key(service), err)
	}
	return nil
}

// Close releases the client.
func (s *RateLimitStore) Close() error {
	return s.client.Close()
}
