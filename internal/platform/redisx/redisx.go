package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/envutil"
)

// ErrNotConfigured is returned by NewFromEnv when REDIS_ADDR is unset.
var ErrNotConfigured = errors.New("missing REDIS_ADDR")

// NewFromEnv dials REDIS_ADDR (with optional REDIS_PASSWORD / REDIS_DB) and
// pings it before returning.
func NewFromEnv(ctx context.Context) (*goredis.Client, error) {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, ErrNotConfigured
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
