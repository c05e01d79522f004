package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/visadesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyLoginUser = "login:user:%s"
	keyLoginIP   = "login:ip:%s"
)

var ErrRateLimited = errors.New("rate_limited")

// LoginLimiter throttles login attempts per username and per client IP.
// A nil limiter allows everything.
type LoginLimiter struct {
	bucket *TokenBucket
	client *redis.Client
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewLoginLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*LoginLimiter, error) {
	limitCfg := cfg.RateLimit
	log = log.Named("ratelimit.login")

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if !limitCfg.Enabled || addr == "" {
		log.Info("login rate limiting disabled")
		return nil, nil
	}
	if limitCfg.LoginRate <= 0 || limitCfg.LoginBurst <= 0 {
		return nil, errors.New("login rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis unreachable, login attempts will fail open", zap.Error(err))
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
	}

	return &LoginLimiter{
		bucket: NewTokenBucket(client),
		client: client,
		rate:   limitCfg.LoginRate,
		burst:  limitCfg.LoginBurst,
		log:    log,
	}, nil
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow checks both buckets. Redis failures fail open so an outage does not
// lock every operator out.
func (l *LoginLimiter) Allow(ctx context.Context, username, ip string) error {
	if !l.Enabled() {
		return nil
	}
	for _, key := range loginKeys(username, ip) {
		res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
		if err != nil {
			l.log.Warn("login rate limit check failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !res.Allowed {
			return ErrRateLimited
		}
	}
	return nil
}

func loginKeys(username, ip string) []string {
	keys := make([]string, 0, 2)
	if u := strings.ToLower(strings.TrimSpace(username)); u != "" {
		keys = append(keys, fmt.Sprintf(keyLoginUser, u))
	}
	if addr := strings.TrimSpace(ip); addr != "" {
		keys = append(keys, fmt.Sprintf(keyLoginIP, addr))
	}
	return keys
}
