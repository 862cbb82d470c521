// Package cache stores judged verdicts in redis, keyed by a digest of the
// request, so identical resubmissions skip the sandbox.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codearena/judge/types"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds the configuration for the redis client
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// RedisCache caches passed and failed verdicts with zstd compressed values
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *zap.Logger
}

// New connects to redis and checks the connection
func New(conf Config, logger *zap.Logger) (*RedisCache, error) {
	if conf.Addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewWithClient(client, conf, logger)
}

// NewWithClient creates the cache over an existing client
func NewWithClient(client *redis.Client, conf Config, logger *zap.Logger) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if conf.Prefix == "" {
		conf.Prefix = "arena-judge:verdict:"
	}
	if conf.TTL <= 0 {
		conf.TTL = time.Hour
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &RedisCache{
		client: client,
		ttl:    conf.TTL,
		prefix: conf.Prefix,
		enc:    enc,
		dec:    dec,
		logger: logger,
	}, nil
}

// Key returns the digest identifying the request content. The request id
// is not part of it.
func Key(req *types.ExecutionRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00", req.Language, len(req.SourceCode), req.SourceCode)
	for _, tc := range req.TestCases {
		fmt.Fprintf(h, "%d\x00%s\x00%d\x00%s\x00", len(tc.Input), tc.Input, len(tc.Output), tc.Output)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached verdict. Redis failures are logged and reported as
// a miss.
func (c *RedisCache) Get(ctx context.Context, req *types.ExecutionRequest) (types.Verdict, bool) {
	key := c.prefix + Key(req)
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Verdict{}, false
	}
	if err != nil {
		c.logger.Warn("verdict cache get failed", zap.String("key", key), zap.Error(err))
		return types.Verdict{}, false
	}
	raw, err := c.dec.DecodeAll(b, nil)
	if err != nil {
		c.logger.Warn("verdict cache entry corrupted", zap.String("key", key), zap.Error(err))
		return types.Verdict{}, false
	}
	var v types.Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("verdict cache entry corrupted", zap.String("key", key), zap.Error(err))
		return types.Verdict{}, false
	}
	return v, true
}

// Put stores a passed or failed verdict, error verdicts are never cached
func (c *RedisCache) Put(ctx context.Context, req *types.ExecutionRequest, v types.Verdict) {
	if v.Status != types.StatusPassed && v.Status != types.StatusFailed {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to encode verdict", zap.Error(err))
		return
	}
	key := c.prefix + Key(req)
	if err := c.client.Set(ctx, key, c.enc.EncodeAll(raw, nil), c.ttl).Err(); err != nil {
		c.logger.Warn("verdict cache put failed", zap.String("key", key), zap.Error(err))
	}
}

// Close closes the redis client
func (c *RedisCache) Close() error {
	c.dec.Close()
	return c.client.Close()
}
