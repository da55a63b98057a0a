package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/lingobill/pkg/config"
)

var ErrHealthcheckFailed = errors.New("redis healthcheck failed")

// NewClient connects to redis when an address is configured. Without one it
// returns a nil client and callers fall back to process-local state.
func NewClient(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (goredis.UniversalClient, error) {
	if cfg.Redis.Addr == "" {
		l.Infow("redis address not configured, using in-process rate limiting")
		return nil, nil
	}
	c := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := Healthcheck(c)(ctx); err != nil {
				return err
			}
			l.Infow("connected to redis", "addr", cfg.Redis.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Infow("closing redis client")
			return c.Close()
		},
	})
	return c, nil
}

// Healthcheck returns a probe that fails when redis does not answer PING.
func Healthcheck(client goredis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := client.Ping(ctx).Result(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// NewLimiterFromClient picks the redis limiter when a client exists.
func NewLimiterFromClient(client goredis.UniversalClient) Limiter {
	if client == nil {
		return NewLocalLimiter()
	}
	return NewRedisLimiter(client)
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(NewLimiterFromClient),
)

func RateLimitKey(scope, userID string) string {
	return fmt.Sprintf("rate_limit:%s:%s", scope, userID)
}
